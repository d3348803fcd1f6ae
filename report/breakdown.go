/*
breakdown.go - Liquidation breakdown view model ("Relación de Liquidación")

PURPOSE:
  A numbered benefit/deduction breakdown with human-readable formula and
  calculation strings, built from a liquidation payslip projection. The
  formula text is derived from the SAME figures as the amounts; the
  interest row never shows an inline formula, it references the detailed
  month-by-month schedule instead (the amounts come from different
  computations and an inline formula would lie).
*/
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/liquidation"
)

// =============================================================================
// VIEW MODEL
// =============================================================================

// BreakdownRow is one numbered benefit or deduction.
type BreakdownRow struct {
	Number      int             `json:"number"`
	Name        string          `json:"name"`
	Formula     string          `json:"formula"`
	Calculation string          `json:"calculation"`
	Detail      string          `json:"detail"`
	Amount      decimal.Decimal `json:"amount"`
}

// Breakdown is the full liquidation settlement view.
type Breakdown struct {
	PayslipID   string `json:"payslip_id"`
	EmployeeRef string `json:"employee_ref"`
	Currency    string `json:"currency"`

	ServiceYears  int             `json:"service_years"`
	ServiceMonths int             `json:"service_months"`
	TotalMonths   decimal.Decimal `json:"total_months"`

	OriginalHireDate engine.Date `json:"original_hire_date"`
	DateTo           engine.Date `json:"date_to"`

	SeniorityYears decimal.Decimal `json:"seniority_years"`
	BonoRate       decimal.Decimal `json:"bono_rate"` // progressive days/year

	Rate       decimal.Decimal `json:"rate"`
	RateSource string          `json:"rate_source"`

	Benefits   []BreakdownRow `json:"benefits"`
	Deductions []BreakdownRow `json:"deductions"`

	TotalBenefits   decimal.Decimal `json:"total_benefits"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	Net             decimal.Decimal `json:"net"`
}

// BreakdownInput carries everything the builder needs; the orchestration
// layer assembles it from the contract, the projection and the interest
// schedule.
type BreakdownInput struct {
	View             *ProjectedView
	EmployeeRef      string
	OriginalHireDate engine.Date
	DateTo           engine.Date
	ServiceMonths    decimal.Decimal
	PaidMonths       decimal.Decimal // service months settled by a previous liquidation
	SeniorityYears   decimal.Decimal
	AnnualVacDays    decimal.Decimal
	ScheduleMonths   int // row count of the interest schedule
}

// BuildLiquidationBreakdown assembles the settlement view from a
// projected liquidation payslip.
func BuildLiquidationBreakdown(in BreakdownInput) *Breakdown {
	v := in.View
	b := &Breakdown{
		PayslipID:        v.PayslipID,
		EmployeeRef:      in.EmployeeRef,
		Currency:         v.Currency,
		TotalMonths:      in.ServiceMonths,
		ServiceYears:     int(in.ServiceMonths.Div(decimal.NewFromInt(12)).IntPart()),
		ServiceMonths:    int(in.ServiceMonths.IntPart() % 12),
		OriginalHireDate: in.OriginalHireDate,
		DateTo:           in.DateTo,
		SeniorityYears:   in.SeniorityYears,
		BonoRate:         in.AnnualVacDays,
		Rate:             v.Rate,
		RateSource:       v.RateSource,
	}

	amount := func(code string) decimal.Decimal {
		for _, l := range v.Lines {
			if l.Code == code {
				return l.Amount
			}
		}
		return decimal.Zero
	}
	daily := amount(liquidation.CodeDailySalary)
	integral := amount(liquidation.CodeIntegralDaily)
	months := in.ServiceMonths

	number := 0
	addBenefit := func(name, formula, calculation, detail string, amt decimal.Decimal) {
		number++
		b.Benefits = append(b.Benefits, BreakdownRow{
			Number: number, Name: name, Formula: formula,
			Calculation: calculation, Detail: detail, Amount: amt,
		})
		b.TotalBenefits = b.TotalBenefits.Add(amt)
	}

	vacDays := months.Div(decimal.NewFromInt(12)).Mul(in.AnnualVacDays)
	addBenefit("Vacaciones",
		fmt.Sprintf("%s días por año × salario diario", in.AnnualVacDays.StringFixed(1)),
		fmt.Sprintf("(%s/12) × %s días × %s", months.StringFixed(2), in.AnnualVacDays.StringFixed(1), FormatAmount(daily)),
		fmt.Sprintf("%s días × %s", vacDays.StringFixed(1), FormatAmount(daily)),
		amount(liquidation.CodeVacaciones))

	addBenefit("Bono Vacacional",
		fmt.Sprintf("Tasa progresiva: %s días/año (%s años de antigüedad)", in.AnnualVacDays.StringFixed(1), in.SeniorityYears.StringFixed(2)),
		fmt.Sprintf("(%s/12) × %s días × %s", months.StringFixed(2), in.AnnualVacDays.StringFixed(1), FormatAmount(daily)),
		fmt.Sprintf("%s días × %s", vacDays.StringFixed(1), FormatAmount(daily)),
		amount(liquidation.CodeBonoVacacional))

	// Quarters already settled by a previous liquidation are paid out and
	// excluded; the rendered count must match the amount's basis.
	quarters := months.Div(decimal.NewFromInt(3)).Floor().
		Sub(in.PaidMonths.Div(decimal.NewFromInt(3)).Floor())
	addBenefit("Prestaciones Sociales",
		"15 días por trimestre × salario integral",
		fmt.Sprintf("%s trimestres × 15 días × %s", quarters.StringFixed(0), FormatAmount(integral)),
		fmt.Sprintf("%s días × %s", quarters.Mul(decimal.NewFromInt(15)).StringFixed(0), FormatAmount(integral)),
		amount(liquidation.CodePrestaciones))

	// The interest amount comes from the month-by-month accrual; the row
	// points at the schedule rather than pretending a one-line formula.
	addBenefit("Intereses sobre Prestaciones",
		"Acumulación mensual a tasas históricas",
		fmt.Sprintf("Acumulación mensual (%d meses) - ver desglose de intereses", in.ScheduleMonths),
		"Ver desglose mensual de intereses",
		amount(liquidation.CodeIntereses))

	prepaid := amount(liquidation.CodeVacationPrepaid)
	if !prepaid.IsZero() {
		b.Deductions = append(b.Deductions, BreakdownRow{
			Number:      1,
			Name:        "Vacaciones y Bono Prepagadas",
			Formula:     "Deducción por pago adelantado",
			Calculation: fmt.Sprintf("%s ya abonado", FormatAmount(prepaid.Abs())),
			Amount:      prepaid,
		})
		b.TotalDeductions = b.TotalDeductions.Add(prepaid)
	}

	b.Net = v.Net
	return b
}
