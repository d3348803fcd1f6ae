package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominave/payroll-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func validRuleset() *engine.Ruleset {
	return &engine.Ruleset{
		Code: "VALID",
		Name: "Valid ruleset",
		Rules: []engine.Rule{
			exprRule("BASE", 10, engine.CategoryBasic, "salary * factor"),
			exprRule("SSO", 50, engine.CategoryDeduction, "-(BASE * 0.045)"),
			totalRule("GROSS", 100, engine.CategoryGross),
			totalRule("DED", 110, engine.CategoryTotalDeduction),
			totalRule("NET", 120, engine.CategoryNet),
		},
	}
}

func knownVars() map[string]bool {
	return map[string]bool{"salary": true, "factor": true}
}

func assertInvariantViolation(t *testing.T, err error, fragment string) {
	t.Helper()
	require.Error(t, err)
	var viol *engine.InvariantViolationError
	require.ErrorAs(t, err, &viol)
	assert.Contains(t, viol.Error(), fragment)
}

// =============================================================================
// STRUCTURAL VALIDATION
// =============================================================================

func TestRulesetValidate_ValidRuleset_Passes(t *testing.T) {
	// GIVEN: A well-formed ruleset over known environment names
	// WHEN: Validating at load time
	// THEN: No error

	assert.NoError(t, validRuleset().Validate(knownVars()))
}

func TestRulesetValidate_DuplicateCode_Rejected(t *testing.T) {
	// GIVEN: Two rules sharing a code
	// WHEN: Validating
	// THEN: Rejected naming the duplicate

	rs := validRuleset()
	rs.Rules = append(rs.Rules, exprRule("BASE", 20, engine.CategoryAllowance, "1"))

	assertInvariantViolation(t, rs.Validate(knownVars()), "duplicate rule code BASE")
}

func TestRulesetValidate_MissingTotals_Rejected(t *testing.T) {
	// GIVEN: Rulesets missing one of gross / total_deduction / net
	// WHEN: Validating
	// THEN: Each is rejected

	for _, drop := range []string{"GROSS", "DED", "NET"} {
		rs := validRuleset()
		var kept []engine.Rule
		for _, r := range rs.Rules {
			if r.Code != drop {
				kept = append(kept, r)
			}
		}
		rs.Rules = kept
		assertInvariantViolation(t, rs.Validate(knownVars()), "exactly one")
	}
}

func TestRulesetValidate_DuplicateNet_Rejected(t *testing.T) {
	// GIVEN: Two net rules
	// WHEN: Validating
	// THEN: Rejected (exactly one of each total)

	rs := validRuleset()
	rs.Rules = append(rs.Rules, totalRule("NET2", 130, engine.CategoryNet))

	assertInvariantViolation(t, rs.Validate(knownVars()), "exactly one net")
}

func TestRulesetValidate_EarningAfterGross_Rejected(t *testing.T) {
	// GIVEN: An earning sequenced after the gross total
	// WHEN: Validating
	// THEN: Rejected; the sum would silently miss it at eval time

	rs := validRuleset()
	rs.Rules = append(rs.Rules, exprRule("LATE", 105, engine.CategoryAllowance, "10"))

	assertInvariantViolation(t, rs.Validate(knownVars()), "sequenced at/after gross")
}

func TestRulesetValidate_DeductionAfterTotalDeduction_Rejected(t *testing.T) {
	// GIVEN: A deduction sequenced after the total_deduction rule
	// WHEN: Validating
	// THEN: Rejected

	rs := validRuleset()
	rs.Rules = append(rs.Rules, exprRule("LATECUT", 115, engine.CategoryDeduction, "-1"))

	assertInvariantViolation(t, rs.Validate(knownVars()), "sequenced at/after total_deduction")
}

func TestRulesetValidate_NetBeforeTotals_Rejected(t *testing.T) {
	// GIVEN: A net rule sequenced before total_deduction
	// WHEN: Validating
	// THEN: Rejected

	rs := validRuleset()
	for i := range rs.Rules {
		if rs.Rules[i].Code == "NET" {
			rs.Rules[i].Sequence = 105
		}
	}
	assertInvariantViolation(t, rs.Validate(knownVars()), "net rule must follow")
}

func TestRulesetValidate_UnknownCategory_Rejected(t *testing.T) {
	// GIVEN: A rule with a category outside the known set
	// WHEN: Validating
	// THEN: Rejected

	rs := validRuleset()
	rs.Rules = append(rs.Rules, engine.Rule{
		Code: "ODD", Sequence: 20, Category: engine.Category("mystery"),
		Kind: engine.AmountExpression, Amount: engine.MustParseExpr("1"),
	})
	assertInvariantViolation(t, rs.Validate(knownVars()), "unknown category")
}

// =============================================================================
// IDENTIFIER RESOLUTION
// =============================================================================

func TestRulesetValidate_UnknownIdentifier_Rejected(t *testing.T) {
	// GIVEN: An amount referencing a name that is neither an environment
	//        variable nor an earlier rule
	// WHEN: Validating
	// THEN: Rejected at LOAD time, naming rule and identifier

	rs := validRuleset()
	rs.Rules = append(rs.Rules, exprRule("GHOST", 20, engine.CategoryAllowance, "phantom * 2"))

	err := rs.Validate(knownVars())
	assertInvariantViolation(t, err, "GHOST")
	assert.Contains(t, err.Error(), `"phantom"`)
}

func TestRulesetValidate_ForwardRuleReference_Rejected(t *testing.T) {
	// GIVEN: A rule reading a code sequenced after it
	// WHEN: Validating
	// THEN: Rejected; rules may only read earlier lines

	rs := validRuleset()
	rs.Rules = append(rs.Rules, exprRule("EAGER", 5, engine.CategoryBasic, "BASE * 2"))

	assertInvariantViolation(t, rs.Validate(knownVars()), "EAGER")
}

func TestRulesetValidate_PercentOfForwardRef_Rejected(t *testing.T) {
	// GIVEN: A percent_of rule referencing a later (or missing) code
	// WHEN: Validating
	// THEN: Rejected

	rs := validRuleset()
	rs.Rules = append(rs.Rules, engine.Rule{
		Code: "PCT", Sequence: 20, Category: engine.CategoryAllowance,
		Kind: engine.AmountPercentOf, RefCode: "GROSS", Percent: dec("10"),
	})
	assertInvariantViolation(t, rs.Validate(knownVars()), "percent_of")
}

func TestRulesetValidate_ConditionIdentifiers_Checked(t *testing.T) {
	// GIVEN: A condition over an unknown name
	// WHEN: Validating
	// THEN: Rejected, same as amounts

	rs := validRuleset()
	r := exprRule("CONDED", 20, engine.CategoryAllowance, "1")
	r.Condition = engine.MustParseExpr("nowhere > 0")
	rs.Rules = append(rs.Rules, r)

	assertInvariantViolation(t, rs.Validate(knownVars()), `"nowhere"`)
}

func TestRulesetValidate_MissingAmount_NonTotal_Rejected(t *testing.T) {
	// GIVEN: A basic rule with no formula
	// WHEN: Validating
	// THEN: Rejected; only total rules may omit the amount

	rs := validRuleset()
	rs.Rules = append(rs.Rules, engine.Rule{
		Code: "EMPTY", Sequence: 20, Category: engine.CategoryBasic,
		Kind: engine.AmountExpression,
	})
	assertInvariantViolation(t, rs.Validate(knownVars()), "amount missing")
}

// =============================================================================
// ORDERING
// =============================================================================

func TestRuleset_Ordered_StableOnTies(t *testing.T) {
	// GIVEN: Two rules sharing a sequence number
	// WHEN: Ordering
	// THEN: Declaration order breaks the tie

	rs := &engine.Ruleset{
		Code: "TIES",
		Rules: []engine.Rule{
			exprRule("FIRST", 10, engine.CategoryBasic, "1"),
			exprRule("SECOND", 10, engine.CategoryBasic, "2"),
		},
	}
	ordered := rs.Ordered()
	assert.Equal(t, "FIRST", ordered[0].Code)
	assert.Equal(t, "SECOND", ordered[1].Code)
}
