/*
payslip.go - Payslip and line item types

PURPOSE:
  A Payslip references one contract and one period, and holds the ordered
  line items produced by evaluating a ruleset. Line items are immutable
  once the payslip reaches the done state; display-time currency
  projection never touches them.

STATE MACHINE:
  draft -> computed -> done

  The engine may evaluate at draft or computed. Projections are allowed in
  any state. Only done payslips count toward the Aguinaldos fiscal-year
  limit. After done, only metadata flags (payment sent, email sent) change.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateDraft    State = "draft"
	StateComputed State = "computed"
	StateDone     State = "done"
)

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one computed payslip line, amount in the primary currency.
type LineItem struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Sequence int             `json:"sequence"`
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`

	// Detail records calculation notes (e.g. a fiscal-year clamp).
	Detail string `json:"detail,omitempty"`

	// Accounting posting pair; both empty when the line does not post.
	DebitAccount  string `json:"debit_account,omitempty"`
	CreditAccount string `json:"credit_account,omitempty"`
}

// Posts reports whether the line produces a journal posting.
func (l LineItem) Posts() bool {
	return l.DebitAccount != "" || l.CreditAccount != ""
}

// =============================================================================
// PAYSLIP
// =============================================================================

type Payslip struct {
	ID          string     `json:"id"`
	ContractID  string     `json:"contract_id"`
	EmployeeRef string     `json:"employee_ref"`
	RulesetCode string     `json:"ruleset_code"`
	Period      Period     `json:"period"`
	State       State      `json:"state"`
	Lines       []LineItem `json:"lines"`

	// Metadata flags, mutable after done.
	PaymentSent bool `json:"payment_sent"`
	EmailSent   bool `json:"email_sent"`
}

// Line returns the line with the given code.
func (p *Payslip) Line(code string) (LineItem, bool) {
	for _, l := range p.Lines {
		if l.Code == code {
			return l, true
		}
	}
	return LineItem{}, false
}

// LineAmount returns the amount of the line with the given code, or zero.
func (p *Payslip) LineAmount(code string) decimal.Decimal {
	l, ok := p.Line(code)
	if !ok {
		return decimal.Zero
	}
	return l.Amount
}

// CategoryAmount returns the amount of the single line in the given
// category, or zero. Meaningful for gross, total_deduction and net.
func (p *Payslip) CategoryAmount(cat Category) decimal.Decimal {
	for _, l := range p.Lines {
		if l.Category == cat {
			return l.Amount
		}
	}
	return decimal.Zero
}

// Gross, TotalDeduction and Net read the three total lines.
func (p *Payslip) Gross() decimal.Decimal          { return p.CategoryAmount(CategoryGross) }
func (p *Payslip) TotalDeduction() decimal.Decimal { return p.CategoryAmount(CategoryTotalDeduction) }
func (p *Payslip) Net() decimal.Decimal            { return p.CategoryAmount(CategoryNet) }

// ValidateTotals checks the stored-value invariants:
//
//	gross == sum(earnings)
//	total_deduction == sum(deductions)
//	net == gross + total_deduction
//
// Exact equality on the stored 2-dp values.
func (p *Payslip) ValidateTotals() error {
	earnings := decimal.Zero
	deductions := decimal.Zero
	for _, l := range p.Lines {
		switch {
		case l.Category.IsEarning():
			earnings = earnings.Add(l.Amount)
		case l.Category == CategoryDeduction:
			deductions = deductions.Add(l.Amount)
		}
	}
	if !p.Gross().Equal(earnings) {
		return &InvariantViolationError{Ruleset: p.RulesetCode,
			Detail: "gross does not equal sum of earnings"}
	}
	if !p.TotalDeduction().Equal(deductions) {
		return &InvariantViolationError{Ruleset: p.RulesetCode,
			Detail: "total_deduction does not equal sum of deductions"}
	}
	if !p.Net().Equal(p.Gross().Add(p.TotalDeduction())) {
		return &InvariantViolationError{Ruleset: p.RulesetCode,
			Detail: "net does not equal gross + total_deduction"}
	}
	return nil
}
