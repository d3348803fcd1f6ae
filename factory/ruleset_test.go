package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/factory"
	"github.com/nominave/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const biweeklyJSON = `{
  "code": "CUSTOM_BIWEEKLY",
  "name": "Custom bi-weekly",
  "rules": [
    {
      "code": "SALARY",
      "name": "Salario Base",
      "sequence": 10,
      "category": "basic",
      "amount": "contract.salary_base * factor"
    },
    {
      "code": "SSO",
      "name": "S.S.O.",
      "sequence": 50,
      "category": "deduction",
      "amount": "-min(contract.salary_base, sso_ceiling / rate_now) * sso_rate * factor",
      "debit_account": "5101.01",
      "credit_account": "2105.01"
    },
    {
      "code": "GROSS",
      "name": "Total Asignaciones",
      "sequence": 100,
      "category": "gross"
    },
    {
      "code": "DED",
      "name": "Total Deducciones",
      "sequence": 110,
      "category": "total_deduction"
    },
    {
      "code": "NET",
      "name": "Neto",
      "sequence": 120,
      "category": "net"
    }
  ]
}`

func newFactory() *factory.RulesetFactory {
	return factory.NewRulesetFactory(payroll.BaseVars())
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseRuleset_ValidJSON(t *testing.T) {
	// GIVEN: A well-formed JSON ruleset over known environment names
	// WHEN: Parsing
	// THEN: A validated ruleset usable by the evaluator comes back

	rs, err := newFactory().ParseRuleset(biweeklyJSON)
	require.NoError(t, err)

	assert.Equal(t, "CUSTOM_BIWEEKLY", rs.Code)
	require.Len(t, rs.Rules, 5)

	sso, ok := rs.Rule("SSO")
	require.True(t, ok)
	assert.Equal(t, engine.CategoryDeduction, sso.Category)
	assert.Equal(t, "5101.01", sso.DebitAccount)
	assert.True(t, sso.Posts())

	// The parsed ruleset actually runs.
	in := engine.NewInputs()
	in.Set(payroll.VarSalaryBase, engine.MustDecimal("100"))
	in.Set(payroll.VarFactor, engine.MustDecimal("0.5"))
	in.Set(payroll.VarRateNow, engine.MustDecimal("5"))
	in.Set(payroll.VarSSORate, engine.MustDecimal("0.045"))
	in.Set(payroll.VarSSOCeiling, engine.MustDecimal("1300"))
	lines, err := (engine.Evaluator{}).Run(rs, in)
	require.NoError(t, err)
	assert.Len(t, lines, 5)
}

func TestParseRuleset_MalformedJSON(t *testing.T) {
	// GIVEN: Broken JSON
	// WHEN: Parsing
	// THEN: A parse error, not a panic

	_, err := newFactory().ParseRuleset(`{"code": "X", "rules": [`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse ruleset JSON")
}

func TestParseRuleset_MissingRulesetCode(t *testing.T) {
	// GIVEN: A ruleset without a code
	// WHEN: Parsing
	// THEN: Rejected

	_, err := newFactory().ParseRuleset(`{"name": "anonymous", "rules": []}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code is required")
}

func TestParseRuleset_BadExpression_NamesRule(t *testing.T) {
	// GIVEN: A rule with an unparsable amount
	// WHEN: Parsing
	// THEN: The error names the rule

	bad := `{"code": "X", "rules": [
	  {"code": "BROKEN", "sequence": 10, "category": "basic", "amount": "1 +"}
	]}`
	_, err := newFactory().ParseRuleset(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKEN")
}

func TestParseRuleset_UnknownIdentifier_RejectedAtLoad(t *testing.T) {
	// GIVEN: A syntactically valid amount over an unknown name
	// WHEN: Parsing
	// THEN: Load-time validation rejects it; no payslip ever sees it

	bad := `{"code": "X", "rules": [
	  {"code": "GHOST", "sequence": 10, "category": "basic", "amount": "phantom * 2"},
	  {"code": "GROSS", "sequence": 100, "category": "gross"},
	  {"code": "DED", "sequence": 110, "category": "total_deduction"},
	  {"code": "NET", "sequence": 120, "category": "net"}
	]}`
	_, err := newFactory().ParseRuleset(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "phantom")
}

func TestParseRuleset_MutuallyExclusiveAmounts(t *testing.T) {
	// GIVEN: A rule declaring both fixed and amount
	// WHEN: Parsing
	// THEN: Rejected

	bad := `{"code": "X", "rules": [
	  {"code": "BOTH", "sequence": 10, "category": "basic", "fixed": 5, "amount": "1 + 1"}
	]}`
	_, err := newFactory().ParseRuleset(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestParseRuleset_PercentOfRequiresRef(t *testing.T) {
	// GIVEN: A percent_of with no ref code
	// WHEN: Parsing
	// THEN: Rejected

	bad := `{"code": "X", "rules": [
	  {"code": "PCT", "sequence": 10, "category": "basic", "percent_of": {"percent": 10}}
	]}`
	_, err := newFactory().ParseRuleset(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percent_of requires ref")
}

func TestParseRuleset_UnknownCategory_Rejected(t *testing.T) {
	// GIVEN: A category outside the known set
	// WHEN: Parsing
	// THEN: Validation rejects it with the rule code attached

	bad := `{"code": "X", "rules": [
	  {"code": "ODD", "sequence": 10, "category": "mystery", "amount": "1"},
	  {"code": "GROSS", "sequence": 100, "category": "gross"},
	  {"code": "DED", "sequence": 110, "category": "total_deduction"},
	  {"code": "NET", "sequence": 120, "category": "net"}
	]}`
	_, err := newFactory().ParseRuleset(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestParseRuleset_ConditionAndCap(t *testing.T) {
	// GIVEN: A rule with a condition and a fiscal-budget cap
	// WHEN: Parsing and running with the budget nearly spent
	// THEN: Both expressions are wired through to the engine

	src := `{"code": "AG", "rules": [
	  {
	    "code": "BONUS",
	    "sequence": 10,
	    "category": "allowance",
	    "condition": "contract.salary_base > 0",
	    "amount": "contract.salary_base * 2 * bimonthly_factor",
	    "cap": "contract.salary_base * 2 - aguinaldo_paid_fy"
	  },
	  {"code": "GROSS", "sequence": 100, "category": "gross"},
	  {"code": "DED", "sequence": 110, "category": "total_deduction"},
	  {"code": "NET", "sequence": 120, "category": "net"}
	]}`
	rs, err := newFactory().ParseRuleset(src)
	require.NoError(t, err)

	in := engine.NewInputs()
	in.Set(payroll.VarSalaryBase, engine.MustDecimal("100"))
	in.Set(payroll.VarBiMonthlyFactor, engine.MustDecimal("0.5"))
	in.Set(payroll.VarAguinaldoPaidFY, engine.MustDecimal("180"))
	lines, err := (engine.Evaluator{}).Run(rs, in)
	require.NoError(t, err)

	var bonus engine.LineItem
	for _, l := range lines {
		if l.Code == "BONUS" {
			bonus = l
		}
	}
	assert.True(t, bonus.Amount.Equal(engine.MustDecimal("20")))
	assert.Equal(t, "clamped from 100.00 to 20.00", bonus.Detail)
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestRulesetFactory_RoundTrip(t *testing.T) {
	// GIVEN: The built-in bi-weekly ruleset
	// WHEN: Converting to JSON and parsing back
	// THEN: The reconstructed ruleset validates and matches rule for rule

	f := newFactory()
	original := payroll.PayrollRulesetV2()

	rj := f.ToJSON(original)
	rebuilt, err := f.FromJSON(rj)
	require.NoError(t, err)

	require.Len(t, rebuilt.Rules, len(original.Rules))
	for _, want := range original.Ordered() {
		got, ok := rebuilt.Rule(want.Code)
		require.True(t, ok, "rule %s lost in round trip", want.Code)
		assert.Equal(t, want.Sequence, got.Sequence)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.DebitAccount, got.DebitAccount)
		assert.Equal(t, want.CreditAccount, got.CreditAccount)
		if want.Amount != nil {
			require.NotNil(t, got.Amount)
			assert.Equal(t, want.Amount.Source(), got.Amount.Source())
		}
	}
}
