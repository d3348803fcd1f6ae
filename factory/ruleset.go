/*
Package factory provides JSON to Go ruleset conversion.

PURPOSE:
  Converts JSON ruleset definitions into engine.Ruleset objects. This
  enables rule configuration without code changes - payroll admins can
  define statutory rules in JSON, and the factory creates the proper Go
  structs and validates them at load time.

WHY JSON?
  - Non-developers can adjust rates and formulas
  - Easy integration with admin UI
  - Version control for statutory rule revisions
  - Database storage of ruleset configs

JSON SCHEMA:
  {
    "code": "VE_BIWEEKLY_V2",
    "name": "Nomina Quincenal",
    "rules": [
      {
        "code": "VE_SALARY_V2",
        "name": "Sueldo Base",
        "sequence": 10,
        "category": "basic",
        "amount": "contract.salary_base * factor"
      },
      {
        "code": "VE_SSO_DED_V2",
        "name": "S.S.O.",
        "sequence": 50,
        "category": "deduction",
        "amount": "-min(contract.salary_base, sso_ceiling / rate_now) * sso_rate * factor",
        "debit_account": "5101.01",
        "credit_account": "2105.01"
      }
    ]
  }

KEY FEATURES:
  - Validates JSON structure and expression syntax
  - Rejects unknown identifiers at load time, not at payslip time
  - Supports fixed, percent_of and expression amounts
  - Optional condition and cap expressions per rule

USAGE:
  factory := NewRulesetFactory(payroll.BaseVars())

  rs, err := factory.ParseRuleset(jsonString)

  // Use in system
  lines, err := evaluator.Run(rs, inputs)

SEE ALSO:
  - engine/rule.go: Rule and Ruleset type definitions
  - payroll/ruleset.go: Go-based statutory ruleset definitions
  - liquidation/ruleset.go: separation settlement ruleset
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesetJSON is the JSON representation of a ruleset.
type RulesetJSON struct {
	Code  string     `json:"code"`
	Name  string     `json:"name"`
	Rules []RuleJSON `json:"rules"`
}

// RuleJSON is the JSON representation of one salary rule.
type RuleJSON struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Category string `json:"category"`

	Condition string `json:"condition,omitempty"`

	// Exactly one of Fixed / PercentOf / Amount, except for gross,
	// total_deduction and net rules which may omit all three and take
	// the implicit category sums.
	Fixed     *float64       `json:"fixed,omitempty"`
	PercentOf *PercentOfJSON `json:"percent_of,omitempty"`
	Amount    string         `json:"amount,omitempty"`

	Cap string `json:"cap,omitempty"`

	DebitAccount  string `json:"debit_account,omitempty"`
	CreditAccount string `json:"credit_account,omitempty"`
}

// PercentOfJSON applies a percentage to an earlier line, by code.
type PercentOfJSON struct {
	Ref     string  `json:"ref"`
	Percent float64 `json:"percent"`
}

// =============================================================================
// RULESET FACTORY
// =============================================================================

// RulesetFactory converts JSON rulesets to validated engine.Ruleset values.
type RulesetFactory struct {
	knownVars map[string]bool
}

// NewRulesetFactory creates a factory that resolves rule identifiers
// against the given environment variable names.
func NewRulesetFactory(knownVars map[string]bool) *RulesetFactory {
	return &RulesetFactory{knownVars: knownVars}
}

// ParseRuleset parses a JSON string into a validated Ruleset.
func (f *RulesetFactory) ParseRuleset(jsonStr string) (*engine.Ruleset, error) {
	var rj RulesetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesetJSON to a validated engine.Ruleset.
func (f *RulesetFactory) FromJSON(rj RulesetJSON) (*engine.Ruleset, error) {
	if rj.Code == "" {
		return nil, fmt.Errorf("ruleset code is required")
	}

	rs := &engine.Ruleset{Code: rj.Code, Name: rj.Name}
	for _, raw := range rj.Rules {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("ruleset %s: %w", rj.Code, err)
		}
		rs.Rules = append(rs.Rules, rule)
	}

	if err := rs.Validate(f.knownVars); err != nil {
		return nil, err
	}
	return rs, nil
}

// ToJSON converts a Ruleset back to its JSON representation.
func (f *RulesetFactory) ToJSON(rs *engine.Ruleset) RulesetJSON {
	rj := RulesetJSON{Code: rs.Code, Name: rs.Name}
	for _, r := range rs.Ordered() {
		raw := RuleJSON{
			Code:          r.Code,
			Name:          r.Name,
			Sequence:      r.Sequence,
			Category:      string(r.Category),
			DebitAccount:  r.DebitAccount,
			CreditAccount: r.CreditAccount,
		}
		if r.Condition != nil {
			raw.Condition = r.Condition.Source()
		}
		if r.Cap != nil {
			raw.Cap = r.Cap.Source()
		}
		switch r.Kind {
		case engine.AmountFixed:
			v, _ := r.Fixed.Float64()
			raw.Fixed = &v
		case engine.AmountPercentOf:
			pct, _ := r.Percent.Float64()
			raw.PercentOf = &PercentOfJSON{Ref: r.RefCode, Percent: pct}
		case engine.AmountExpression:
			if r.Amount != nil {
				raw.Amount = r.Amount.Source()
			}
		}
		rj.Rules = append(rj.Rules, raw)
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRule(raw RuleJSON) (engine.Rule, error) {
	if raw.Code == "" {
		return engine.Rule{}, fmt.Errorf("rule code is required")
	}

	rule := engine.Rule{
		Code:          raw.Code,
		Name:          raw.Name,
		Sequence:      raw.Sequence,
		Category:      parseCategory(raw.Category),
		DebitAccount:  raw.DebitAccount,
		CreditAccount: raw.CreditAccount,
	}

	if raw.Condition != "" {
		cond, err := engine.ParseExpr(raw.Condition)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: condition: %w", raw.Code, err)
		}
		rule.Condition = cond
	}
	if raw.Cap != "" {
		capExpr, err := engine.ParseExpr(raw.Cap)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: cap: %w", raw.Code, err)
		}
		rule.Cap = capExpr
	}

	set := 0
	if raw.Fixed != nil {
		set++
	}
	if raw.PercentOf != nil {
		set++
	}
	if raw.Amount != "" {
		set++
	}
	if set > 1 {
		return engine.Rule{}, fmt.Errorf("rule %s: fixed, percent_of and amount are mutually exclusive", raw.Code)
	}

	switch {
	case raw.Fixed != nil:
		rule.Kind = engine.AmountFixed
		rule.Fixed = decimal.NewFromFloat(*raw.Fixed)

	case raw.PercentOf != nil:
		if raw.PercentOf.Ref == "" {
			return engine.Rule{}, fmt.Errorf("rule %s: percent_of requires ref", raw.Code)
		}
		rule.Kind = engine.AmountPercentOf
		rule.RefCode = raw.PercentOf.Ref
		rule.Percent = decimal.NewFromFloat(raw.PercentOf.Percent)

	case raw.Amount != "":
		rule.Kind = engine.AmountExpression
		amt, err := engine.ParseExpr(raw.Amount)
		if err != nil {
			return engine.Rule{}, fmt.Errorf("rule %s: amount: %w", raw.Code, err)
		}
		rule.Amount = amt

	default:
		// Only total rules may omit the amount; Validate enforces it.
		rule.Kind = engine.AmountExpression
	}

	return rule, nil
}

func parseCategory(s string) engine.Category {
	switch s {
	case "basic":
		return engine.CategoryBasic
	case "allowance":
		return engine.CategoryAllowance
	case "deduction":
		return engine.CategoryDeduction
	case "gross":
		return engine.CategoryGross
	case "total_deduction":
		return engine.CategoryTotalDeduction
	case "net":
		return engine.CategoryNet
	case "info":
		return engine.CategoryInfo
	default:
		// Validate rejects unknown categories with the rule code attached.
		return engine.Category(s)
	}
}
