package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// payrollInputs builds the full evaluation environment the orchestration
// layer resolves before running the bi-weekly ruleset.
func payrollInputs(c *payroll.Contract, p engine.Period, rateNow string) engine.Inputs {
	in := engine.NewInputs()
	in.Set(payroll.VarSalaryBase, c.SalaryBase)
	in.Set(payroll.VarBonusRegular, c.BonusRegular)
	in.Set(payroll.VarExtraBonus, c.ExtraBonus)
	in.Set(payroll.VarCestaTicket, c.CestaTicket)
	in.Set(payroll.VarARIRate, c.ARIRate)
	in.Set(payroll.VarFactor, p.ProrationFactor())
	in.Set(payroll.VarBiMonthlyFactor, p.BiMonthlyFactor())
	in.Set(payroll.VarPeriodDays, dec("15"))
	in.Set(payroll.VarRateNow, dec(rateNow))
	in.Set(payroll.VarSSORate, dec("0.045"))
	in.Set(payroll.VarFAOVRate, dec("0.01"))
	in.Set(payroll.VarPARORate, dec("0.005"))
	in.Set(payroll.VarSSOCeiling, dec("1300"))
	in.Set(payroll.VarAguinaldoPaidFY, dec("0"))
	return in
}

func firstHalfNovember() engine.Period {
	return engine.NewPeriod(
		engine.NewDate(2025, time.November, 1),
		engine.NewDate(2025, time.November, 15),
	)
}

func amountOf(t *testing.T, lines []engine.LineItem, code string) engine.LineItem {
	t.Helper()
	for _, l := range lines {
		if l.Code == code {
			return l
		}
	}
	t.Fatalf("line %s missing", code)
	return engine.LineItem{}
}

// =============================================================================
// RULESET STRUCTURE
// =============================================================================

func TestPayrollRulesetV2_ValidatesAgainstBaseVars(t *testing.T) {
	// GIVEN: The built-in bi-weekly and Aguinaldos rulesets
	// WHEN: Validating against the known environment names
	// THEN: Both pass; they are constructed at startup and must never fail

	assert.NoError(t, payroll.PayrollRulesetV2().Validate(payroll.BaseVars()))
	assert.NoError(t, payroll.AguinaldosRulesetV2().Validate(payroll.BaseVars()))
}

func TestPayrollRulesetV2_OnlyDeductionsAndNetPost(t *testing.T) {
	// GIVEN: The bi-weekly ruleset
	// WHEN: Inspecting posting accounts
	// THEN: Earnings carry none; deductions and net carry a full pair

	rs := payroll.PayrollRulesetV2()
	for _, r := range rs.Rules {
		switch r.Category {
		case engine.CategoryBasic, engine.CategoryAllowance, engine.CategoryGross, engine.CategoryTotalDeduction:
			assert.False(t, r.Posts(), "%s must not post", r.Code)
		case engine.CategoryDeduction, engine.CategoryNet:
			assert.True(t, r.Posts(), "%s must post", r.Code)
			assert.NotEmpty(t, r.DebitAccount)
			assert.NotEmpty(t, r.CreditAccount)
		}
	}
}

// =============================================================================
// BI-WEEKLY PAYROLL
// =============================================================================

func TestPayrollRulesetV2_StandardFirstHalf(t *testing.T) {
	// GIVEN: Monthly breakdown 119.21 / 36.69 / 0 / 40.00, ARI 1%,
	//        first half of November (factor 0.5), spot rate well below the
	//        SSO ceiling threshold
	// WHEN: Evaluating
	// THEN: Each line prorates to half the monthly amount; only salary_base
	//       feeds the deductions

	c := standardContract()
	in := payrollInputs(c, firstHalfNovember(), "5")

	lines, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(), in)
	require.NoError(t, err)

	expected := map[string]string{
		payroll.CodeSalary:      "59.61", // 119.21 * 0.5 = 59.605, half away from zero
		payroll.CodeBonus:       "18.35", // 36.69 * 0.5 = 18.345
		payroll.CodeExtraBonus:  "0.00",
		payroll.CodeCestaTicket: "20.00",
		payroll.CodeGross:       "97.96",
		payroll.CodeSSO:         "-2.68", // -(119.21 * 0.045 * 0.5)
		payroll.CodeFAOV:        "-0.60", // -(119.21 * 0.01 * 0.5)
		payroll.CodePARO:        "-0.30", // -(119.21 * 0.005 * 0.5)
		payroll.CodeARI:         "-0.60", // -(119.21 * 1% * 0.5)
		payroll.CodeTotalDed:    "-4.18",
		payroll.CodeNet:         "93.78",
	}
	for code, want := range expected {
		got := amountOf(t, lines, code).Amount
		assert.True(t, got.Equal(dec(want)), "%s: want %s, got %s", code, want, got)
	}
}

func TestPayrollRulesetV2_BonusesExemptFromDeductions(t *testing.T) {
	// GIVEN: Two contracts with equal salary_base but very different bonuses
	// WHEN: Evaluating both
	// THEN: All deduction lines are identical; only earnings differ

	p := firstHalfNovember()
	lean := standardContract()
	lean.BonusRegular = dec("0")
	lean.CestaTicket = dec("0")
	lean.Wage = lean.ComponentSum()

	rich := standardContract()
	rich.BonusRegular = dec("500")
	rich.ExtraBonus = dec("250")
	rich.Wage = rich.ComponentSum()

	leanLines, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(), payrollInputs(lean, p, "5"))
	require.NoError(t, err)
	richLines, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(), payrollInputs(rich, p, "5"))
	require.NoError(t, err)

	for _, code := range []string{payroll.CodeSSO, payroll.CodeFAOV, payroll.CodePARO, payroll.CodeARI, payroll.CodeTotalDed} {
		a := amountOf(t, leanLines, code).Amount
		b := amountOf(t, richLines, code).Amount
		assert.True(t, a.Equal(b), "%s must not see bonuses: %s vs %s", code, a, b)
	}
}

func TestPayrollRulesetV2_SSOCeiling_HighEarner(t *testing.T) {
	// GIVEN: salary_base 500 with the spot rate at 200 VEB/USD
	//        (ceiling = 1300 / 200 = 6.50, far below the salary)
	// WHEN: Evaluating
	// THEN: SSO uses the capped base: -(6.50 * 0.045 * 0.5) = -0.15;
	//       FAOV and PARO still use the full base

	c := standardContract()
	c.SalaryBase = dec("500")
	c.Wage = c.ComponentSum()

	lines, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(),
		payrollInputs(c, firstHalfNovember(), "200"))
	require.NoError(t, err)

	assert.True(t, amountOf(t, lines, payroll.CodeSSO).Amount.Equal(dec("-0.15")))
	assert.True(t, amountOf(t, lines, payroll.CodeFAOV).Amount.Equal(dec("-2.50")),
		"FAOV is not subject to the ceiling")
	assert.True(t, amountOf(t, lines, payroll.CodePARO).Amount.Equal(dec("-1.25")))
}

func TestPayrollRulesetV2_SSOCeiling_RateMovesDeduction(t *testing.T) {
	// GIVEN: The same high earner with a devalued spot rate
	// WHEN: The rate doubles
	// THEN: The USD ceiling halves and so does the SSO deduction

	c := standardContract()
	c.SalaryBase = dec("500")
	c.Wage = c.ComponentSum()
	p := firstHalfNovember()

	at200, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(), payrollInputs(c, p, "200"))
	require.NoError(t, err)
	at400, err := (engine.Evaluator{}).Run(payroll.PayrollRulesetV2(), payrollInputs(c, p, "400"))
	require.NoError(t, err)

	// 1300/400 = 3.25 -> -(3.25 * 0.045 * 0.5) = -0.073125 -> -0.07
	assert.True(t, amountOf(t, at200, payroll.CodeSSO).Amount.Equal(dec("-0.15")))
	assert.True(t, amountOf(t, at400, payroll.CodeSSO).Amount.Equal(dec("-0.07")))
}

// =============================================================================
// AGUINALDOS
// =============================================================================

// aguinaldoInputs resolves the Christmas-bonus environment with the given
// fiscal-year consumption.
func aguinaldoInputs(salaryBase, paidFY string, p engine.Period) engine.Inputs {
	in := engine.NewInputs()
	in.Set(payroll.VarSalaryBase, dec(salaryBase))
	in.Set(payroll.VarBonusRegular, dec("0"))
	in.Set(payroll.VarExtraBonus, dec("0"))
	in.Set(payroll.VarCestaTicket, dec("0"))
	in.Set(payroll.VarARIRate, dec("0"))
	in.Set(payroll.VarFactor, p.ProrationFactor())
	in.Set(payroll.VarBiMonthlyFactor, p.BiMonthlyFactor())
	in.Set(payroll.VarPeriodDays, dec("15"))
	in.Set(payroll.VarRateNow, dec("5"))
	in.Set(payroll.VarSSORate, dec("0.045"))
	in.Set(payroll.VarFAOVRate, dec("0.01"))
	in.Set(payroll.VarPARORate, dec("0.005"))
	in.Set(payroll.VarSSOCeiling, dec("1300"))
	in.Set(payroll.VarAguinaldoPaidFY, dec(paidFY))
	return in
}

func TestAguinaldosRulesetV2_HalfOfAnnualBenefit(t *testing.T) {
	// GIVEN: salary_base 100, nothing paid this fiscal year
	// WHEN: Evaluating a standard half (bimonthly factor 0.5)
	// THEN: 100 * 2 * 0.5 = 100.00, no clamp, no deductions

	lines, err := (engine.Evaluator{}).Run(payroll.AguinaldosRulesetV2(),
		aguinaldoInputs("100", "0", firstHalfNovember()))
	require.NoError(t, err)

	ag := amountOf(t, lines, payroll.CodeAguinaldo)
	assert.True(t, ag.Amount.Equal(dec("100")))
	assert.Empty(t, ag.Detail)
	assert.True(t, amountOf(t, lines, payroll.CodeAguinaldoNet).Amount.Equal(dec("100")))
	assert.True(t, amountOf(t, lines, payroll.CodeAguinaldoTotalDed).Amount.IsZero())
}

func TestAguinaldosRulesetV2_FiscalYearClamp(t *testing.T) {
	// GIVEN: salary_base 100 (annual budget 200), 180 already paid
	// WHEN: Evaluating the next half
	// THEN: The 100.00 half clamps to the remaining 20.00, recorded on the
	//       line detail instead of failing

	lines, err := (engine.Evaluator{}).Run(payroll.AguinaldosRulesetV2(),
		aguinaldoInputs("100", "180", firstHalfNovember()))
	require.NoError(t, err)

	ag := amountOf(t, lines, payroll.CodeAguinaldo)
	assert.True(t, ag.Amount.Equal(dec("20")))
	assert.Equal(t, "clamped from 100.00 to 20.00", ag.Detail)
	assert.True(t, amountOf(t, lines, payroll.CodeAguinaldoNet).Amount.Equal(dec("20")))
}

func TestAguinaldosRulesetV2_BudgetExhausted_PaysZero(t *testing.T) {
	// GIVEN: The full annual budget already consumed
	// WHEN: Evaluating another half
	// THEN: The line clamps to zero rather than going negative

	lines, err := (engine.Evaluator{}).Run(payroll.AguinaldosRulesetV2(),
		aguinaldoInputs("100", "200", firstHalfNovember()))
	require.NoError(t, err)

	ag := amountOf(t, lines, payroll.CodeAguinaldo)
	assert.True(t, ag.Amount.IsZero())
	assert.Equal(t, "clamped from 100.00 to 0.00", ag.Detail)
}
