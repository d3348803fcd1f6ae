/*
ruleset.go - Liquidation (separation) ruleset V2

PURPOSE:
  Computes the final settlement of a departing employee: prestaciones
  sociales (quarterly 15-day deposits of integral daily salary), vacation
  and vacation bonus at the progressive LOTTT Art. 190 rate, the interest
  accrued on prestaciones, and the deduction of vacation amounts already
  advanced.

SENIORITY:
  Measured from the original hire date, which may precede the current
  contract (rehires keep continuity). Months are 30-day months. Quarters
  already settled by a previous liquidation are not owed again.

ENVIRONMENT:
  service_months, paid_months, annual_vac_days and interest_total are
  resolved by the orchestration layer; the interest figure comes from the
  accrual calculator (interest.go), never from a spot conversion.
*/
package liquidation

import (
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
)

const (
	RulesetLiquidationV2 = "LIQUID_VE_V2"

	CodeServiceMonths   = "LIQUID_SERVICE_MONTHS_V2"
	CodeDailySalary     = "LIQUID_DAILY_SALARY_V2"
	CodeIntegralDaily   = "LIQUID_INTEGRAL_DAILY_V2"
	CodePrestaciones    = "LIQUID_PRESTACIONES_V2"
	CodeVacaciones      = "LIQUID_VACACIONES_V2"
	CodeBonoVacacional  = "LIQUID_BONO_VACACIONAL_V2"
	CodeIntereses       = "LIQUID_INTERESES_V2"
	CodeVacationPrepaid = "LIQUID_VACATION_PREPAID_V2"
	CodeGross           = "LIQUID_GROSS_V2"
	CodeTotalDed        = "LIQUID_TOTAL_DED_V2"
	CodeNet             = "LIQUID_NET_V2"
)

// Environment names specific to the liquidation ruleset.
const (
	VarServiceMonths   = "service_months"
	VarPaidMonths      = "paid_months" // settled by a previous liquidation
	VarAnnualVacDays   = "annual_vac_days"
	VarInterestTotal   = "interest_total"
	VarVacationPrepaid = "contract.vacation_prepaid"
)

const (
	acctBenefitExpense     = "5102.01"
	acctLiquidationPayable = "2102.01"
)

// RulesetV2 builds the liquidation structure.
func RulesetV2() *engine.Ruleset {
	return &engine.Ruleset{
		Code: RulesetLiquidationV2,
		Name: "Liquidación Venezuela V2",
		Rules: []engine.Rule{
			{
				Code: CodeServiceMonths, Name: "Meses de Servicio", Sequence: 10,
				Category: engine.CategoryInfo, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("service_months"),
			},
			{
				Code: CodeDailySalary, Name: "Salario Diario", Sequence: 20,
				Category: engine.CategoryInfo, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("contract.salary_base / 30"),
			},
			{
				// Integral daily salary includes both bonuses per labor law.
				Code: CodeIntegralDaily, Name: "Salario Integral Diario", Sequence: 30,
				Category: engine.CategoryInfo, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("(contract.salary_base + contract.bonus_regular + contract.extra_bonus) / 30"),
			},
			{
				// 15 days per completed quarter; quarters settled by a
				// previous liquidation are subtracted.
				Code: CodePrestaciones, Name: "Prestaciones Sociales", Sequence: 40,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("LIQUID_INTEGRAL_DAILY_V2 * 15 * (floor(service_months / 3) - floor(paid_months / 3))"),
			},
			{
				Code: CodeVacaciones, Name: "Vacaciones", Sequence: 50,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("(service_months / 12) * annual_vac_days * LIQUID_DAILY_SALARY_V2"),
			},
			{
				Code: CodeBonoVacacional, Name: "Bono Vacacional", Sequence: 60,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("(service_months / 12) * annual_vac_days * LIQUID_DAILY_SALARY_V2"),
			},
			{
				// Resolved by the accrual interest calculator; the rule
				// receives the finished scalar.
				Code: CodeIntereses, Name: "Intereses sobre Prestaciones", Sequence: 70,
				Category: engine.CategoryAllowance, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("interest_total"),
			},
			{
				Code: CodeVacationPrepaid, Name: "Vacaciones Prepagadas", Sequence: 80,
				Category: engine.CategoryDeduction, Kind: engine.AmountExpression,
				Amount: engine.MustParseExpr("-contract.vacation_prepaid"),
			},
			{
				Code: CodeGross, Name: "Total Beneficios", Sequence: 90,
				Category: engine.CategoryGross, Kind: engine.AmountExpression,
			},
			{
				Code: CodeTotalDed, Name: "Total Deducciones", Sequence: 100,
				Category: engine.CategoryTotalDeduction, Kind: engine.AmountExpression,
			},
			{
				Code: CodeNet, Name: "Neto Liquidación", Sequence: 110,
				Category: engine.CategoryNet, Kind: engine.AmountExpression,
				DebitAccount: acctBenefitExpense, CreditAccount: acctLiquidationPayable,
			},
		},
	}
}

// Vars returns the known environment names for load-time validation.
func Vars() map[string]bool {
	known := map[string]bool{}
	for _, name := range []string{
		"contract.salary_base", "contract.bonus_regular", "contract.extra_bonus",
		VarServiceMonths, VarPaidMonths, VarAnnualVacDays, VarInterestTotal,
		VarVacationPrepaid,
	} {
		known[name] = true
	}
	return known
}

// =============================================================================
// PROGRESSIVE VACATION DAYS - LOTTT Art. 190
// =============================================================================

// AnnualVacationDays returns the progressive annual entitlement:
//
//	< 1 year            15 days
//	1 to < 16 years     min(15 + (years - 1), 30), fractional
//	>= 16 years         30 days
func AnnualVacationDays(seniorityYears decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	fifteen := decimal.NewFromInt(15)
	thirty := decimal.NewFromInt(30)
	if seniorityYears.LessThan(one) {
		return fifteen
	}
	days := fifteen.Add(seniorityYears.Sub(one))
	if days.GreaterThan(thirty) {
		return thirty
	}
	return days
}
