/*
xlsx.go - XLSX export of liquidation breakdown and interest schedule

PURPOSE:
  Spreadsheet output for the settlement documents at the presentation
  edge. The workbook mirrors the view models one row per line; nothing is
  computed here.
*/
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/nominave/payroll-engine/liquidation"
)

const breakdownSheet = "Liquidacion"
const scheduleSheet = "Intereses"

// WriteBreakdownXLSX renders the breakdown plus the interest schedule into
// a two-sheet workbook and returns the file bytes.
func WriteBreakdownXLSX(b *Breakdown, sched *liquidation.Schedule) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", breakdownSheet)

	set := func(sheet, cell string, value interface{}) {
		f.SetCellValue(sheet, cell, value)
	}

	set(breakdownSheet, "A1", "Relación de Liquidación")
	set(breakdownSheet, "A2", "Empleado")
	set(breakdownSheet, "B2", b.EmployeeRef)
	set(breakdownSheet, "A3", "Fecha de ingreso original")
	set(breakdownSheet, "B3", b.OriginalHireDate.String())
	set(breakdownSheet, "A4", "Fecha de egreso")
	set(breakdownSheet, "B4", b.DateTo.String())
	set(breakdownSheet, "A5", "Antigüedad")
	set(breakdownSheet, "B5", fmt.Sprintf("%d años, %d meses", b.ServiceYears, b.ServiceMonths))
	set(breakdownSheet, "A6", "Moneda")
	set(breakdownSheet, "B6", b.Currency)
	set(breakdownSheet, "A7", "Tasa")
	set(breakdownSheet, "B7", b.Rate.StringFixed(4))
	set(breakdownSheet, "C7", b.RateSource)

	row := 9
	header := []string{"#", "Concepto", "Fórmula", "Cálculo", "Monto"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		set(breakdownSheet, cell, h)
	}
	row++
	writeRow := func(r BreakdownRow) {
		set(breakdownSheet, fmt.Sprintf("A%d", row), r.Number)
		set(breakdownSheet, fmt.Sprintf("B%d", row), r.Name)
		set(breakdownSheet, fmt.Sprintf("C%d", row), r.Formula)
		set(breakdownSheet, fmt.Sprintf("D%d", row), r.Calculation)
		amt, _ := r.Amount.Float64()
		set(breakdownSheet, fmt.Sprintf("E%d", row), amt)
		row++
	}
	for _, r := range b.Benefits {
		writeRow(r)
	}
	for _, r := range b.Deductions {
		writeRow(r)
	}
	set(breakdownSheet, fmt.Sprintf("B%d", row), "Total Beneficios")
	totalBen, _ := b.TotalBenefits.Float64()
	set(breakdownSheet, fmt.Sprintf("E%d", row), totalBen)
	row++
	set(breakdownSheet, fmt.Sprintf("B%d", row), "Total Deducciones")
	totalDed, _ := b.TotalDeductions.Float64()
	set(breakdownSheet, fmt.Sprintf("E%d", row), totalDed)
	row++
	set(breakdownSheet, fmt.Sprintf("B%d", row), "Neto Liquidación")
	net, _ := b.Net.Float64()
	set(breakdownSheet, fmt.Sprintf("E%d", row), net)

	if sched != nil {
		if _, err := f.NewSheet(scheduleSheet); err != nil {
			return nil, err
		}
		writeSchedule(f, sched)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSchedule(f *excelize.File, sched *liquidation.Schedule) {
	headers := []string{
		"Mes", "Fecha", "Ingreso Mensual", "Salario Integral", "Días Depósito",
		"Depósito", "Prestaciones Acum.", "Tasa", "Interés del Mes", "Interés Acum.",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(scheduleSheet, cell, h)
	}
	for i, r := range sched.Rows {
		row := i + 2
		vals := []interface{}{
			r.MonthLabel,
			r.MonthDate.String(),
			toFloat(r.MonthlyIncome),
			toFloat(r.IntegralDaily),
			r.DepositDays,
			toFloat(r.DepositAmount),
			toFloat(r.AccumulatedPrestaciones),
			toFloat(r.ExchangeRate),
			toFloat(r.MonthInterest),
			toFloat(r.AccumulatedInterest),
		}
		for j, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(scheduleSheet, cell, v)
		}
	}
	totalRow := len(sched.Rows) + 2
	f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(scheduleSheet, fmt.Sprintf("J%d", totalRow), toFloat(sched.Total))
}

func toFloat(d interface{ Float64() (float64, bool) }) float64 {
	f, _ := d.Float64()
	return f
}
