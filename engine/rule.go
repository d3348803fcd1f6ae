/*
rule.go - Salary rule and ruleset definitions

PURPOSE:
  A Rule is a declarative record: what to compute (amount kind), when
  (condition), where it lands (category), and whether it posts to the books
  (debit/credit accounts). A Ruleset is an ordered collection with exactly
  one gross, one total-deduction, and one net rule.

AMOUNT KINDS:
  AmountFixed:      A constant (rarely used; severance flat fees)
  AmountPercentOf:  percentage of a previously computed line, by code
  AmountExpression: whitelisted expression over the environment (expr.go)

VALIDATION:
  Validate() runs when a ruleset is loaded, NOT when payslips are computed.
  It rejects duplicate codes, missing/duplicate totals, totals sequenced
  before their contributors, and expressions referencing unknown names.
  A ruleset that passes Validate cannot fail structurally at eval time.
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORIES
// =============================================================================

type Category string

const (
	CategoryBasic          Category = "basic"
	CategoryAllowance      Category = "allowance"
	CategoryDeduction      Category = "deduction"
	CategoryGross          Category = "gross"
	CategoryTotalDeduction Category = "total_deduction"
	CategoryNet            Category = "net"

	// CategoryInfo lines carry computed figures (service months, daily
	// salaries) that later rules and reports reference by code. They are
	// excluded from gross/net totals and never post.
	CategoryInfo Category = "info"
)

// IsEarning reports whether the category contributes to gross.
func (c Category) IsEarning() bool {
	return c == CategoryBasic || c == CategoryAllowance
}

// =============================================================================
// RULE
// =============================================================================

type AmountKind string

const (
	AmountFixed      AmountKind = "fixed"
	AmountPercentOf  AmountKind = "percent_of"
	AmountExpression AmountKind = "expression"
)

// Rule computes one payslip line.
type Rule struct {
	Code     string
	Name     string
	Sequence int
	Category Category

	// Condition is evaluated first; nil means always. A false condition
	// skips the rule entirely (no line emitted).
	Condition *Expr

	Kind    AmountKind
	Fixed   decimal.Decimal // AmountFixed
	RefCode string          // AmountPercentOf: code of the referenced line
	Percent decimal.Decimal // AmountPercentOf: percentage applied to it
	Amount  *Expr           // AmountExpression

	// Cap, when set, clamps the amount to max(0, min(amount, cap)). The
	// clamp is recorded on the line's Detail field, never raised as an
	// error (Aguinaldos fiscal-year budget).
	Cap *Expr

	// Accounting posting pair. Both empty means the rule does not post.
	DebitAccount  string
	CreditAccount string
}

// Posts reports whether the rule produces a journal posting.
func (r Rule) Posts() bool {
	return r.DebitAccount != "" || r.CreditAccount != ""
}

// =============================================================================
// RULESET
// =============================================================================

// Ruleset is an ordered set of rules sharing one evaluation environment.
type Ruleset struct {
	Code  string
	Name  string
	Rules []Rule
}

// Ordered returns the rules sorted by Sequence, ties broken by original
// position (stable).
func (rs *Ruleset) Ordered() []Rule {
	out := make([]Rule, len(rs.Rules))
	copy(out, rs.Rules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Rule returns the rule with the given code.
func (rs *Ruleset) Rule(code string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Code == code {
			return r, true
		}
	}
	return Rule{}, false
}

// Validate checks the structural invariants of the ruleset and resolves
// every expression identifier against known environment names and
// earlier-sequenced rule codes.
func (rs *Ruleset) Validate(knownVars map[string]bool) error {
	ordered := rs.Ordered()

	codes := map[string]int{} // code -> sequence
	var grossSeq, totalDedSeq, netSeq []int
	for _, r := range ordered {
		if _, dup := codes[r.Code]; dup {
			return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("duplicate rule code %s", r.Code)}
		}
		codes[r.Code] = r.Sequence
		switch r.Category {
		case CategoryGross:
			grossSeq = append(grossSeq, r.Sequence)
		case CategoryTotalDeduction:
			totalDedSeq = append(totalDedSeq, r.Sequence)
		case CategoryNet:
			netSeq = append(netSeq, r.Sequence)
		case CategoryBasic, CategoryAllowance, CategoryDeduction, CategoryInfo:
		default:
			return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("rule %s: unknown category %q", r.Code, r.Category)}
		}
	}

	for cat, seqs := range map[string][]int{"gross": grossSeq, "total_deduction": totalDedSeq, "net": netSeq} {
		if len(seqs) != 1 {
			return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("ruleset must contain exactly one %s rule, found %d", cat, len(seqs))}
		}
	}

	// Totals must follow their contributors.
	for _, r := range ordered {
		switch r.Category {
		case CategoryBasic, CategoryAllowance:
			if r.Sequence >= grossSeq[0] {
				return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("earning %s sequenced at/after gross", r.Code)}
			}
		case CategoryDeduction:
			if r.Sequence >= totalDedSeq[0] {
				return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("deduction %s sequenced at/after total_deduction", r.Code)}
			}
		}
	}
	if netSeq[0] <= grossSeq[0] || netSeq[0] <= totalDedSeq[0] {
		return &InvariantViolationError{Ruleset: rs.Code, Detail: "net rule must follow gross and total_deduction"}
	}

	// Resolve identifiers: environment names plus earlier rule codes.
	for _, r := range ordered {
		resolvable := func(name string) bool {
			if knownVars[name] {
				return true
			}
			seq, ok := codes[name]
			return ok && seq < r.Sequence
		}
		for _, e := range []*Expr{r.Condition, r.Amount, r.Cap} {
			if e == nil {
				continue
			}
			for _, id := range e.Identifiers() {
				if !resolvable(id) {
					return &InvariantViolationError{
						Ruleset: rs.Code,
						Detail:  fmt.Sprintf("rule %s references unknown identifier %q", r.Code, id),
					}
				}
			}
		}
		if r.Kind == AmountPercentOf {
			seq, ok := codes[r.RefCode]
			if !ok || seq >= r.Sequence {
				return &InvariantViolationError{
					Ruleset: rs.Code,
					Detail:  fmt.Sprintf("rule %s: percent_of references %q which is not an earlier rule", r.Code, r.RefCode),
				}
			}
		}
		// Total categories may omit the amount: the evaluator substitutes
		// the running category sums.
		isTotal := r.Category == CategoryGross || r.Category == CategoryTotalDeduction || r.Category == CategoryNet
		if r.Kind == AmountExpression && r.Amount == nil && !isTotal {
			return &InvariantViolationError{Ruleset: rs.Code, Detail: fmt.Sprintf("rule %s: expression amount missing", r.Code)}
		}
	}

	return nil
}
