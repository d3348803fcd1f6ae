/*
projector.go - Read-only currency projection of payslips

PURPOSE:
  Projects a payslip's stored primary-currency line items into a display
  currency. Projection is a pure function producing a transient view; it
  never writes back. Stored amounts stay USD forever.

THE INTEREST EXCEPTION:
  Every non-interest amount converts by the single rate chosen by the
  resolution policy (override > user date > latest). The interest line is
  instead SUBSTITUTED with the accrual calculator's month-by-month result,
  so the liquidation report and the interest breakdown report can never
  disagree, whatever rate the user overrides.
*/
package report

import (
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// PROJECTED VIEW
// =============================================================================

// ProjectedLine pairs a stored primary amount with its display conversion.
type ProjectedLine struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Category      engine.Category `json:"category"`
	Detail        string          `json:"detail,omitempty"`
	AmountPrimary decimal.Decimal `json:"amount_primary"`
	Amount        decimal.Decimal `json:"amount"`

	// Substituted marks amounts that bypass the display rate (interest).
	Substituted bool `json:"substituted,omitempty"`
}

// ProjectedView is the transient display model. Never persisted.
type ProjectedView struct {
	PayslipID  string          `json:"payslip_id"`
	Currency   string          `json:"currency"`
	Rate       decimal.Decimal `json:"rate"`
	RateSource string          `json:"rate_source"`
	Lines      []ProjectedLine `json:"lines"`

	Gross          decimal.Decimal `json:"gross"`
	TotalDeduction decimal.Decimal `json:"total_deduction"`
	Net            decimal.Decimal `json:"net"`
}

// Project converts slip's lines into displayCurrency using res. Amounts
// for codes present in substitutions (already in the display currency)
// are used verbatim instead of being converted.
func Project(slip *engine.Payslip, displayCurrency string, res currency.Resolution,
	substitutions map[string]decimal.Decimal) *ProjectedView {

	view := &ProjectedView{
		PayslipID:  slip.ID,
		Currency:   displayCurrency,
		Rate:       res.Rate,
		RateSource: res.Source,
	}

	for _, l := range slip.Lines {
		pl := ProjectedLine{
			Code:          l.Code,
			Name:          l.Name,
			Category:      l.Category,
			Detail:        l.Detail,
			AmountPrimary: l.Amount,
		}
		if sub, ok := substitutions[l.Code]; ok {
			pl.Amount = engine.Round2(sub)
			pl.Substituted = true
		} else {
			pl.Amount = engine.Round2(l.Amount.Mul(res.Rate))
		}
		view.Lines = append(view.Lines, pl)

		switch l.Category {
		case engine.CategoryGross:
			view.Gross = pl.Amount
		case engine.CategoryTotalDeduction:
			view.TotalDeduction = pl.Amount
		case engine.CategoryNet:
			view.Net = pl.Amount
		}
	}

	// Keep the net identity in the display currency: substituted lines
	// shift the benefit total away from a single-rate conversion.
	recomputeTotals(view)
	return view
}

func recomputeTotals(v *ProjectedView) {
	earnings := decimal.Zero
	deductions := decimal.Zero
	for _, l := range v.Lines {
		switch {
		case l.Category.IsEarning():
			earnings = earnings.Add(l.Amount)
		case l.Category == engine.CategoryDeduction:
			deductions = deductions.Add(l.Amount)
		}
	}
	for i, l := range v.Lines {
		switch l.Category {
		case engine.CategoryGross:
			v.Lines[i].Amount = earnings
		case engine.CategoryTotalDeduction:
			v.Lines[i].Amount = deductions
		case engine.CategoryNet:
			v.Lines[i].Amount = earnings.Add(deductions)
		}
	}
	v.Gross = earnings
	v.TotalDeduction = deductions
	v.Net = earnings.Add(deductions)
}
