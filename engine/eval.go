/*
eval.go - Ordered ruleset evaluation

PURPOSE:
  Runs a validated ruleset against a pre-resolved environment and produces
  the payslip line items. Evaluation is deterministic: everything a rule
  can observe is either a scalar the caller resolved BEFORE evaluation
  (contract fields, proration factors, the payslip-date spot rate, the
  fiscal-year Aguinaldos budget) or the amount of an earlier rule.

DETERMINISM CONTRACT:
  The evaluator never performs I/O. Rate lookups, history queries and
  contract reads all happen in the orchestration layer, which bakes the
  results into Inputs.Vars. Two evaluations with equal inputs produce
  byte-equal lines, regardless of batch ordering.

ERROR BEHAVIOR:
  Any condition or amount failure aborts the payslip with a RuleEvalError
  naming the offending rule; the caller reports it verbatim and rolls back
  that payslip only.
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS - Pre-resolved evaluation environment
// =============================================================================

// Inputs carries every scalar visible to rule expressions.
type Inputs struct {
	Vars map[string]decimal.Decimal
}

// NewInputs returns an empty environment.
func NewInputs() Inputs {
	return Inputs{Vars: map[string]decimal.Decimal{}}
}

// Set binds an environment name.
func (in Inputs) Set(name string, v decimal.Decimal) Inputs {
	in.Vars[name] = v
	return in
}

// Known returns the name set for load-time ruleset validation.
func (in Inputs) Known() map[string]bool {
	known := make(map[string]bool, len(in.Vars))
	for k := range in.Vars {
		known[k] = true
	}
	return known
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator runs rulesets. One evaluator instance processes one payslip's
// rules in order; it holds no shared state.
type Evaluator struct{}

// Run evaluates rs against in and returns the ordered line items.
func (Evaluator) Run(rs *Ruleset, in Inputs) ([]LineItem, error) {
	computed := map[string]decimal.Decimal{}
	env := func(name string) (decimal.Decimal, bool) {
		if v, ok := computed[name]; ok {
			return v, true
		}
		v, ok := in.Vars[name]
		return v, ok
	}

	var lines []LineItem
	earnings := decimal.Zero
	deductions := decimal.Zero

	for _, rule := range rs.Ordered() {
		if rule.Condition != nil {
			ok, err := rule.Condition.EvalBool(env)
			if err != nil {
				return nil, &RuleEvalError{Code: rule.Code, Cause: err}
			}
			if !ok {
				continue
			}
		}

		var amount decimal.Decimal
		var err error
		switch {
		// Total rules without an explicit formula read the running sums.
		case rule.Category == CategoryGross && rule.Amount == nil && rule.Kind != AmountFixed:
			amount = earnings
		case rule.Category == CategoryTotalDeduction && rule.Amount == nil && rule.Kind != AmountFixed:
			amount = deductions
		case rule.Category == CategoryNet && rule.Amount == nil && rule.Kind != AmountFixed:
			amount = earnings.Add(deductions)
		case rule.Kind == AmountFixed:
			amount = rule.Fixed
		case rule.Kind == AmountPercentOf:
			ref, ok := computed[rule.RefCode]
			if !ok {
				err = fmt.Errorf("referenced line %s not computed", rule.RefCode)
				break
			}
			amount = ref.Mul(rule.Percent).Div(decimal.NewFromInt(100))
		case rule.Kind == AmountExpression:
			amount, err = rule.Amount.Eval(env)
		default:
			err = fmt.Errorf("unknown amount kind %q", rule.Kind)
		}
		if err != nil {
			return nil, &RuleEvalError{Code: rule.Code, Cause: err}
		}

		detail := ""
		if rule.Cap != nil {
			capVal, err := rule.Cap.Eval(env)
			if err != nil {
				return nil, &RuleEvalError{Code: rule.Code, Cause: err}
			}
			if capVal.IsNegative() {
				capVal = decimal.Zero
			}
			if amount.GreaterThan(capVal) {
				detail = fmt.Sprintf("clamped from %s to %s",
					Round2(amount).StringFixed(2), Round2(capVal).StringFixed(2))
				amount = capVal
			}
		}

		amount = Round2(amount)
		computed[rule.Code] = amount

		switch {
		case rule.Category.IsEarning():
			earnings = earnings.Add(amount)
		case rule.Category == CategoryDeduction:
			deductions = deductions.Add(amount)
		}

		lines = append(lines, LineItem{
			Code:          rule.Code,
			Name:          rule.Name,
			Sequence:      rule.Sequence,
			Category:      rule.Category,
			Amount:        amount,
			Detail:        detail,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
		})
	}

	return lines, nil
}
