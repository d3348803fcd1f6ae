/*
ruleset.go - Venezuelan bi-weekly payroll ruleset (V2)

PURPOSE:
  Declares the earning and deduction rules of the bi-weekly structure as
  engine rules. Monthly contract amounts are prorated by period_days/30.
  Only salary_base is subject to deductions; the bonuses and cesta ticket
  are exempt.

ENVIRONMENT:
  The orchestration layer resolves every scalar before evaluation:
  contract fields, the proration factors, the payslip-date spot rate
  (rate_now, for the SSO ceiling), the statutory rates, and the fiscal-year
  Aguinaldos budget already consumed. Rules never perform lookups.

ACCOUNTING:
  Only deductions and the net line post. Earnings carry no accounts in
  this structure.
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

// Rule and ruleset codes.
const (
	RulesetPayrollV2    = "VE_BIWEEKLY_V2"
	RulesetAguinaldosV2 = "VE_AGUINALDOS_V2"

	CodeSalary      = "VE_SALARY_V2"
	CodeBonus       = "VE_BONUS_V2"
	CodeExtraBonus  = "VE_EXTRABONUS_V2"
	CodeCestaTicket = "VE_CESTA_TICKET_V2"
	CodeGross       = "VE_GROSS_V2"
	CodeSSO         = "VE_SSO_DED_V2"
	CodeFAOV        = "VE_FAOV_DED_V2"
	CodePARO        = "VE_PARO_DED_V2"
	CodeARI         = "VE_ARI_DED_V2"
	CodeTotalDed    = "VE_TOTAL_DED_V2"
	CodeNet         = "VE_NET_V2"

	CodeAguinaldo         = "VE_AGUINALDO_V2"
	CodeAguinaldoGross    = "VE_AGUINALDO_GROSS_V2"
	CodeAguinaldoTotalDed = "VE_AGUINALDO_TOTAL_DED_V2"
	CodeAguinaldoNet      = "VE_AGUINALDO_NET_V2"
)

// Environment names shared by the rulesets.
const (
	VarSalaryBase      = "contract.salary_base"
	VarBonusRegular    = "contract.bonus_regular"
	VarExtraBonus      = "contract.extra_bonus"
	VarCestaTicket     = "contract.cesta_ticket"
	VarARIRate         = "contract.ari_rate"
	VarFactor          = "factor"
	VarBiMonthlyFactor = "bimonthly_factor"
	VarPeriodDays      = "period_days"
	VarRateNow         = "rate_now"
	VarSSORate         = "sso_rate"
	VarFAOVRate        = "faov_rate"
	VarPARORate        = "paro_rate"
	VarSSOCeiling      = "sso_ceiling" // secondary-currency units
	VarAguinaldoPaidFY = "aguinaldo_paid_fy"
)

// Posting accounts. Liability accounts per deduction agency, one clearing
// account for net wages payable.
const (
	acctPayrollExpense = "5101.01"
	acctSSOPayable     = "2105.01"
	acctFAOVPayable    = "2105.02"
	acctPAROPayable    = "2105.03"
	acctARIPayable     = "2105.04"
	acctWagesPayable   = "2101.01"
)

// PayrollRulesetV2 builds the bi-weekly earning/deduction structure.
func PayrollRulesetV2() *engine.Ruleset {
	return &engine.Ruleset{
		Code: RulesetPayrollV2,
		Name: "Salarios Venezuela V2 (bi-weekly)",
		Rules: []engine.Rule{
			{
				Code: CodeSalary, Name: "Salario Base", Sequence: 10,
				Category: engine.CategoryBasic, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.salary_base * factor"),
			},
			{
				Code: CodeBonus, Name: "Bono Regular", Sequence: 20,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.bonus_regular * factor"),
			},
			{
				Code: CodeExtraBonus, Name: "Bono Extra", Sequence: 30,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.extra_bonus * factor"),
			},
			{
				Code: CodeCestaTicket, Name: "Cesta Ticket", Sequence: 40,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.cesta_ticket * factor"),
			},
			{
				// SSO base is capped at the statutory secondary-currency
				// ceiling converted with the payslip-date spot rate.
				Code: CodeSSO, Name: "S.S.O.", Sequence: 50,
				Category: engine.CategoryDeduction, Kind: engine.AmountExpression,
				Amount:       engine.MustParseExpr("-min(contract.salary_base, sso_ceiling / rate_now) * sso_rate * factor"),
				DebitAccount: acctPayrollExpense, CreditAccount: acctSSOPayable,
			},
			{
				Code: CodeFAOV, Name: "F.A.O.V.", Sequence: 60,
				Category: engine.CategoryDeduction, Kind: engine.AmountExpression,
				Amount:       engine.MustParseExpr("-contract.salary_base * faov_rate * factor"),
				DebitAccount: acctPayrollExpense, CreditAccount: acctFAOVPayable,
			},
			{
				Code: CodePARO, Name: "Paro Forzoso", Sequence: 70,
				Category: engine.CategoryDeduction, Kind: engine.AmountExpression,
				Amount:       engine.MustParseExpr("-contract.salary_base * paro_rate * factor"),
				DebitAccount: acctPayrollExpense, CreditAccount: acctPAROPayable,
			},
			{
				Code: CodeARI, Name: "A.R.I.", Sequence: 80,
				Category: engine.CategoryDeduction, Kind: engine.AmountExpression,
				Amount:       engine.MustParseExpr("-contract.salary_base * (contract.ari_rate / 100) * factor"),
				DebitAccount: acctPayrollExpense, CreditAccount: acctARIPayable,
			},
			{
				Code: CodeGross, Name: "Total Asignaciones", Sequence: 90,
				Category: engine.CategoryGross, Kind: engine.AmountExpression,
			},
			{
				Code: CodeTotalDed, Name: "Total Deducciones", Sequence: 100,
				Category: engine.CategoryTotalDeduction, Kind: engine.AmountExpression,
			},
			{
				Code: CodeNet, Name: "Neto a Pagar", Sequence: 110,
				Category: engine.CategoryNet, Kind: engine.AmountExpression,
				DebitAccount: acctPayrollExpense, CreditAccount: acctWagesPayable,
			},
		},
	}
}

// AguinaldosRulesetV2 builds the bi-monthly Christmas-bonus structure.
// The annual benefit is 2x salary_base, paid in 50% halves; the cap clamps
// the current amount to whatever remains of the fiscal-year budget.
func AguinaldosRulesetV2() *engine.Ruleset {
	return &engine.Ruleset{
		Code: RulesetAguinaldosV2,
		Name: "Aguinaldos Venezuela V2",
		Rules: []engine.Rule{
			{
				Code: CodeAguinaldo, Name: "Aguinaldos", Sequence: 10,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.salary_base * 2 * bimonthly_factor"),
				Cap:    engine.MustParseExpr("contract.salary_base * 2 - aguinaldo_paid_fy"),
			},
			{
				Code: CodeAguinaldoGross, Name: "Total Asignaciones", Sequence: 20,
				Category: engine.CategoryGross, Kind: engine.AmountExpression,
			},
			{
				Code: CodeAguinaldoTotalDed, Name: "Total Deducciones", Sequence: 30,
				Category: engine.CategoryTotalDeduction, Kind: engine.AmountExpression,
			},
			{
				Code: CodeAguinaldoNet, Name: "Neto a Pagar", Sequence: 40,
				Category: engine.CategoryNet, Kind: engine.AmountExpression,
				DebitAccount: acctPayrollExpense, CreditAccount: acctWagesPayable,
			},
		},
	}
}

// BaseVars returns the environment names the payroll rulesets may
// reference, with zero placeholder values. Used for load-time validation.
func BaseVars() map[string]bool {
	known := map[string]bool{}
	for _, name := range []string{
		VarSalaryBase, VarBonusRegular, VarExtraBonus, VarCestaTicket,
		VarARIRate, VarFactor, VarBiMonthlyFactor, VarPeriodDays,
		VarRateNow, VarSSORate, VarFAOVRate, VarPARORate, VarSSOCeiling,
		VarAguinaldoPaidFY,
	} {
		known[name] = true
	}
	return known
}

// contractVars binds the contract fields into an evaluation environment.
func contractVars(in engine.Inputs, c *Contract) engine.Inputs {
	in.Set(VarSalaryBase, c.SalaryBase)
	in.Set(VarBonusRegular, c.BonusRegular)
	in.Set(VarExtraBonus, c.ExtraBonus)
	in.Set(VarCestaTicket, c.CestaTicket)
	in.Set(VarARIRate, c.ARIRate)
	return in
}

// periodVars binds the period facts.
func periodVars(in engine.Inputs, p engine.Period) engine.Inputs {
	in.Set(VarFactor, p.ProrationFactor())
	in.Set(VarBiMonthlyFactor, p.BiMonthlyFactor())
	in.Set(VarPeriodDays, decimal.NewFromInt(int64(p.Days())))
	return in
}
