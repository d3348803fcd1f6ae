/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the REST API. Request DTOs carry validator tags and are
  checked before any domain call; response DTOs render decimals as
  fixed-2 strings so clients never see float artifacts.

CONVENTIONS:
  - Dates travel as "YYYY-MM-DD" strings
  - Amounts travel as decimal strings ("1234.56")
  - Optional overrides are pointers; absent means "use the default policy"

SEE ALSO:
  - handlers.go: Handler implementations
  - payroll/service.go: The operations these DTOs feed
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/liquidation"
	"github.com/nominave/payroll-engine/payroll"
	"github.com/nominave/payroll-engine/report"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateContractRequest creates or replaces a contract.
type CreateContractRequest struct {
	ID          string `json:"id" validate:"required"`
	EmployeeRef string `json:"employee_ref" validate:"required"`
	DateStart   string `json:"date_start" validate:"required,datetime=2006-01-02"`

	SalaryBase   string `json:"salary_base" validate:"required"`
	BonusRegular string `json:"bonus_regular"`
	ExtraBonus   string `json:"extra_bonus"`
	CestaTicket  string `json:"cesta_ticket"`
	ARIRate      string `json:"ari_rate"`

	OriginalHireDate        string `json:"original_hire_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PreviousLiquidationDate string `json:"previous_liquidation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	VacationPrepaid         string `json:"vacation_prepaid,omitempty"`
}

// UpdateCompensationRequest applies an audited compensation change.
// Absent fields stay untouched.
type UpdateCompensationRequest struct {
	SalaryBase   *string `json:"salary_base,omitempty"`
	BonusRegular *string `json:"bonus_regular,omitempty"`
	ExtraBonus   *string `json:"extra_bonus,omitempty"`
	CestaTicket  *string `json:"cesta_ticket,omitempty"`
	ARIRate      *string `json:"ari_rate,omitempty"`

	// Audit free text, or spreadsheet provenance.
	Audit      string          `json:"audit,omitempty"`
	Provenance *ProvenanceJSON `json:"provenance,omitempty"`
}

// ProvenanceJSON identifies the spreadsheet cell a value came from.
type ProvenanceJSON struct {
	SheetTab  string `json:"sheet_tab" validate:"required"`
	Cell      string `json:"cell" validate:"required"`
	VEBAmount string `json:"veb_amount" validate:"required"`
	RateUsed  string `json:"rate_used" validate:"required"`
}

// PutRateRequest stores one exchange-rate record.
type PutRateRequest struct {
	Currency string `json:"currency" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Value    string `json:"value" validate:"required"`
}

// ComputeRequest computes one payslip for a contract and period.
type ComputeRequest struct {
	ContractID string `json:"contract_id" validate:"required"`
	DateFrom   string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo     string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

// BatchComputeRequest computes payslips for many contracts over one period.
type BatchComputeRequest struct {
	ContractIDs []string `json:"contract_ids" validate:"required,min=1"`
	DateFrom    string   `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo      string   `json:"date_to" validate:"required,datetime=2006-01-02"`
}

// FlagsRequest updates the post-confirmation metadata flags.
type FlagsRequest struct {
	PaymentSent *bool `json:"payment_sent,omitempty"`
	EmailSent   *bool `json:"email_sent,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ContractDTO is the wire form of a contract.
type ContractDTO struct {
	ID          string `json:"id"`
	EmployeeRef string `json:"employee_ref"`
	DateStart   string `json:"date_start"`

	Wage         string `json:"wage"`
	SalaryBase   string `json:"salary_base"`
	BonusRegular string `json:"bonus_regular"`
	ExtraBonus   string `json:"extra_bonus"`
	CestaTicket  string `json:"cesta_ticket"`
	ARIRate      string `json:"ari_rate"`

	OriginalHireDate        string `json:"original_hire_date,omitempty"`
	PreviousLiquidationDate string `json:"previous_liquidation_date,omitempty"`
	VacationPrepaid         string `json:"vacation_prepaid"`

	AuditNotes []AuditNoteDTO `json:"audit_notes,omitempty"`
}

// AuditNoteDTO is one audit-trail line.
type AuditNoteDTO struct {
	At   string `json:"at"`
	Note string `json:"note"`
}

// PayslipDTO is the wire form of a payslip with its lines.
type PayslipDTO struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contract_id"`
	EmployeeRef string    `json:"employee_ref"`
	RulesetCode string    `json:"ruleset_code"`
	DateFrom    string    `json:"date_from"`
	DateTo      string    `json:"date_to"`
	State       string    `json:"state"`
	PaymentSent bool      `json:"payment_sent"`
	EmailSent   bool      `json:"email_sent"`
	Lines       []LineDTO `json:"lines,omitempty"`

	Gross          string `json:"gross,omitempty"`
	TotalDeduction string `json:"total_deduction,omitempty"`
	Net            string `json:"net,omitempty"`
}

// LineDTO is one payslip line.
type LineDTO struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Sequence      int    `json:"sequence"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	Detail        string `json:"detail,omitempty"`
	DebitAccount  string `json:"debit_account,omitempty"`
	CreditAccount string `json:"credit_account,omitempty"`
}

// RateDTO is one exchange-rate record.
type RateDTO struct {
	Currency string `json:"currency"`
	Date     string `json:"date"`
	Value    string `json:"value"`
}

// ProjectedViewDTO is the display-currency rendering of a payslip.
type ProjectedViewDTO struct {
	PayslipID  string `json:"payslip_id"`
	Currency   string `json:"currency"`
	Rate       string `json:"rate"`
	RateSource string `json:"rate_source"`

	Lines          []ProjectedLineDTO `json:"lines"`
	Gross          string             `json:"gross"`
	TotalDeduction string             `json:"total_deduction"`
	Net            string             `json:"net"`
}

// ProjectedLineDTO is one projected line.
type ProjectedLineDTO struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	AmountPrimary string `json:"amount_primary"`
	Amount        string `json:"amount"`
	Detail        string `json:"detail,omitempty"`
	Substituted   bool   `json:"substituted,omitempty"`
}

// ScheduleDTO is the month-by-month interest schedule.
type ScheduleDTO struct {
	Currency string           `json:"currency"`
	Total    string           `json:"total"`
	Rows     []ScheduleRowDTO `json:"rows"`
}

// ScheduleRowDTO is one schedule month.
type ScheduleRowDTO struct {
	MonthIndex              int    `json:"month_index"`
	Month                   string `json:"month"`
	MonthlyIncome           string `json:"monthly_income"`
	IntegralDaily           string `json:"integral_daily"`
	DepositDays             int    `json:"deposit_days"`
	DepositAmount           string `json:"deposit_amount"`
	AccumulatedPrestaciones string `json:"accumulated_prestaciones"`
	ExchangeRate            string `json:"exchange_rate"`
	MonthInterest           string `json:"month_interest"`
	AccumulatedInterest     string `json:"accumulated_interest"`
}

// BatchResultDTO summarizes a batch run.
type BatchResultDTO struct {
	Payslips []PayslipDTO             `json:"payslips"`
	Errors   []payroll.BatchItemError `json:"errors,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toContractDTO(c *payroll.Contract) ContractDTO {
	dto := ContractDTO{
		ID:              c.ID,
		EmployeeRef:     c.EmployeeRef,
		DateStart:       c.DateStart.String(),
		Wage:            c.Wage.StringFixed(2),
		SalaryBase:      c.SalaryBase.StringFixed(2),
		BonusRegular:    c.BonusRegular.StringFixed(2),
		ExtraBonus:      c.ExtraBonus.StringFixed(2),
		CestaTicket:     c.CestaTicket.StringFixed(2),
		ARIRate:         c.ARIRate.StringFixed(2),
		VacationPrepaid: c.VacationPrepaid.StringFixed(2),
	}
	if !c.OriginalHireDate.IsZero() {
		dto.OriginalHireDate = c.OriginalHireDate.String()
	}
	if c.PreviousLiquidationDate != nil {
		dto.PreviousLiquidationDate = c.PreviousLiquidationDate.String()
	}
	for _, n := range c.AuditNotes {
		dto.AuditNotes = append(dto.AuditNotes, AuditNoteDTO{
			At:   n.At.Format("2006-01-02 15:04:05"),
			Note: n.Note,
		})
	}
	return dto
}

func toPayslipDTO(p *engine.Payslip, withLines bool) PayslipDTO {
	dto := PayslipDTO{
		ID:          p.ID,
		ContractID:  p.ContractID,
		EmployeeRef: p.EmployeeRef,
		RulesetCode: p.RulesetCode,
		DateFrom:    p.Period.DateFrom.String(),
		DateTo:      p.Period.DateTo.String(),
		State:       string(p.State),
		PaymentSent: p.PaymentSent,
		EmailSent:   p.EmailSent,
	}
	if !withLines {
		return dto
	}
	for _, l := range p.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			Code:          l.Code,
			Name:          l.Name,
			Sequence:      l.Sequence,
			Category:      string(l.Category),
			Amount:        l.Amount.StringFixed(2),
			Detail:        l.Detail,
			DebitAccount:  l.DebitAccount,
			CreditAccount: l.CreditAccount,
		})
	}
	dto.Gross = p.Gross().StringFixed(2)
	dto.TotalDeduction = p.TotalDeduction().StringFixed(2)
	dto.Net = p.Net().StringFixed(2)
	return dto
}

func toProjectedViewDTO(v *report.ProjectedView) ProjectedViewDTO {
	dto := ProjectedViewDTO{
		PayslipID:      v.PayslipID,
		Currency:       v.Currency,
		Rate:           v.Rate.String(),
		RateSource:     v.RateSource,
		Gross:          v.Gross.StringFixed(2),
		TotalDeduction: v.TotalDeduction.StringFixed(2),
		Net:            v.Net.StringFixed(2),
	}
	for _, l := range v.Lines {
		dto.Lines = append(dto.Lines, ProjectedLineDTO{
			Code:          l.Code,
			Name:          l.Name,
			Category:      string(l.Category),
			AmountPrimary: l.AmountPrimary.StringFixed(2),
			Amount:        l.Amount.StringFixed(2),
			Detail:        l.Detail,
			Substituted:   l.Substituted,
		})
	}
	return dto
}

func toScheduleDTO(s *liquidation.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		Currency: s.Currency,
		Total:    s.Total.StringFixed(2),
	}
	for _, row := range s.Rows {
		dto.Rows = append(dto.Rows, ScheduleRowDTO{
			MonthIndex:              row.MonthIndex,
			Month:                   row.MonthLabel,
			MonthlyIncome:           row.MonthlyIncome.StringFixed(2),
			IntegralDaily:           row.IntegralDaily.StringFixed(2),
			DepositDays:             row.DepositDays,
			DepositAmount:           row.DepositAmount.StringFixed(2),
			AccumulatedPrestaciones: row.AccumulatedPrestaciones.StringFixed(2),
			ExchangeRate:            row.ExchangeRate.StringFixed(2),
			MonthInterest:           row.MonthInterest.StringFixed(2),
			AccumulatedInterest:     row.AccumulatedInterest.StringFixed(2),
		})
	}
	return dto
}

func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
