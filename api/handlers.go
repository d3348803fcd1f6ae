/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                       List all contracts
    POST   /api/contracts                       Create contract
    GET    /api/contracts/{id}                  Get contract with audit trail
    PUT    /api/contracts/{id}/compensation     Audited compensation update
    GET    /api/contracts/{id}/payslips         Payslip history

  Rates:
    GET    /api/rates/{currency}                Rate history
    POST   /api/rates                           Store a rate record

  Payslips:
    POST   /api/payslips/compute                Bi-weekly payroll
    POST   /api/payslips/aguinaldos             Christmas bonus (FY-capped)
    POST   /api/payslips/liquidation            Separation settlement
    POST   /api/payslips/batch                  Batch payroll run
    GET    /api/payslips/{id}                   Payslip with lines
    POST   /api/payslips/{id}/confirm           computed -> done
    POST   /api/payslips/{id}/flags             Metadata flags after done
    GET    /api/payslips/{id}/view              Display-currency projection
    GET    /api/payslips/{id}/interest-schedule Month-by-month interest
    GET    /api/payslips/{id}/breakdown.xlsx    Settlement workbook

PROJECTION QUERY PARAMETERS:
  currency   display currency (default: secondary)
  rate       manual override, wins over everything
  rate_date  select the stored rate effective on that date

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid rates
  - 404: Contract or payslip not found
  - 409: Wage invariant violation, immutable payslip
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - payroll/service.go: The operations behind these handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/payroll"
	"github.com/nominave/payroll-engine/report"
	"github.com/nominave/payroll-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *payroll.Service

	// SecondaryCurrency is the default display currency for projections.
	SecondaryCurrency string

	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, svc *payroll.Service, secondaryCurrency string) *Handler {
	return &Handler{
		Store:             store,
		Service:           svc,
		SecondaryCurrency: secondaryCurrency,
		validate:          validator.New(),
	}
}

// decode unmarshals and validates a request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns all contracts.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i := range contracts {
		dtos[i] = toContractDTO(&contracts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContract returns a single contract with its audit trail.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// CreateContract creates a contract. The wage is derived from the four
// components; a breakdown that does not add up is rejected.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	c := &payroll.Contract{ID: req.ID, EmployeeRef: req.EmployeeRef}

	var err error
	if c.DateStart, err = engine.ParseDate(req.DateStart); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_start", err)
		return
	}
	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&c.SalaryBase, req.SalaryBase, "salary_base"},
		{&c.BonusRegular, req.BonusRegular, "bonus_regular"},
		{&c.ExtraBonus, req.ExtraBonus, "extra_bonus"},
		{&c.CestaTicket, req.CestaTicket, "cesta_ticket"},
		{&c.ARIRate, req.ARIRate, "ari_rate"},
		{&c.VacationPrepaid, req.VacationPrepaid, "vacation_prepaid"},
	}
	for _, f := range fields {
		if *f.dst, err = parseDecimalField(f.src); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+f.name, err)
			return
		}
	}
	if req.OriginalHireDate != "" {
		if c.OriginalHireDate, err = engine.ParseDate(req.OriginalHireDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid original_hire_date", err)
			return
		}
	}
	if req.PreviousLiquidationDate != "" {
		d, err := engine.ParseDate(req.PreviousLiquidationDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid previous_liquidation_date", err)
			return
		}
		c.PreviousLiquidationDate = &d
	}

	c.Wage = c.ComponentSum()
	if err := c.ValidateWage(); err != nil {
		writeDomainError(w, "Compensation breakdown rejected", err)
		return
	}

	if err := h.Store.SaveContract(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

// UpdateCompensation applies an audited compensation change. On a wage
// invariant violation nothing is written and the trail stays untouched.
func (h *Handler) UpdateCompensation(w http.ResponseWriter, r *http.Request) {
	var req UpdateCompensationRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	c, err := h.Store.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}

	var vals payroll.CompensationUpdate
	assign := []struct {
		dst  **decimal.Decimal
		src  *string
		name string
	}{
		{&vals.SalaryBase, req.SalaryBase, "salary_base"},
		{&vals.BonusRegular, req.BonusRegular, "bonus_regular"},
		{&vals.ExtraBonus, req.ExtraBonus, "extra_bonus"},
		{&vals.CestaTicket, req.CestaTicket, "cesta_ticket"},
		{&vals.ARIRate, req.ARIRate, "ari_rate"},
	}
	for _, a := range assign {
		if a.src == nil {
			continue
		}
		d, err := decimal.NewFromString(*a.src)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+a.name, err)
			return
		}
		*a.dst = &d
	}

	audit := req.Audit
	if req.Provenance != nil {
		veb, err := decimal.NewFromString(req.Provenance.VEBAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid veb_amount", err)
			return
		}
		rate, err := decimal.NewFromString(req.Provenance.RateUsed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid rate_used", err)
			return
		}
		audit = payroll.Provenance{
			SheetTab:  req.Provenance.SheetTab,
			Cell:      req.Provenance.Cell,
			VEBAmount: veb,
			RateUsed:  rate,
		}.Note()
	}

	if err := c.UpdateCompensation(vals, audit, time.Now().UTC()); err != nil {
		writeDomainError(w, "Compensation update rejected", err)
		return
	}
	if err := h.Store.SaveContract(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// ListContractPayslips returns the payslip headers for a contract.
func (h *Handler) ListContractPayslips(w http.ResponseWriter, r *http.Request) {
	slips, err := h.Store.ListPayslips(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payslips", err)
		return
	}
	dtos := make([]PayslipDTO, len(slips))
	for i := range slips {
		dtos[i] = toPayslipDTO(&slips[i], false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// PutRate stores one exchange-rate record.
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req PutRateRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value", err)
		return
	}

	rate := currency.Rate{Currency: req.Currency, Date: date, Value: value}
	if err := h.Store.PutRate(r.Context(), rate); err != nil {
		writeDomainError(w, "Failed to store rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, RateDTO{
		Currency: rate.Currency,
		Date:     rate.Date.String(),
		Value:    rate.Value.String(),
	})
}

// ListRates returns the rate history for a currency, oldest first.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRates(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rates", err)
		return
	}
	dtos := make([]RateDTO, len(rates))
	for i, rt := range rates {
		dtos[i] = RateDTO{Currency: rt.Currency, Date: rt.Date.String(), Value: rt.Value.String()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYSLIP HANDLERS
// =============================================================================

// ComputePayslip runs the bi-weekly payroll ruleset.
func (h *Handler) ComputePayslip(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, h.Service.ComputePayslip)
}

// ComputeAguinaldos runs the Christmas-bonus ruleset.
func (h *Handler) ComputeAguinaldos(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, h.Service.ComputeAguinaldos)
}

// ComputeLiquidation runs the separation settlement.
func (h *Handler) ComputeLiquidation(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, h.Service.ComputeLiquidation)
}

// compute parses the request and delegates to the given operation.
func (h *Handler) compute(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, contractID string, period engine.Period) (*engine.Payslip, error)) {

	var req ComputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	period, err := parsePeriod(req.DateFrom, req.DateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	slip, err := op(r.Context(), req.ContractID, period)
	if err != nil {
		writeDomainError(w, "Failed to compute payslip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayslipDTO(slip, true))
}

// ComputeBatch runs the payroll ruleset for many contracts, collecting
// per-item errors instead of aborting the whole run.
func (h *Handler) ComputeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchComputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	period, err := parsePeriod(req.DateFrom, req.DateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	result := h.Service.ComputeBatch(r.Context(), req.ContractIDs, period)
	dto := BatchResultDTO{Errors: result.Errors}
	for _, slip := range result.Payslips {
		dto.Payslips = append(dto.Payslips, toPayslipDTO(slip, true))
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetPayslip returns a payslip with its lines.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Store.GetPayslip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayslipDTO(slip, true))
}

// ConfirmPayslip advances the payslip to done.
func (h *Handler) ConfirmPayslip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.ConfirmPayslip(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to confirm payslip", err)
		return
	}
	slip, err := h.Store.GetPayslip(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to reload payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayslipDTO(slip, false))
}

// UpdateFlags flips the metadata flags. Allowed in any state, including
// done.
func (h *Handler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	var req FlagsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	slip, err := h.Store.GetPayslip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get payslip", err)
		return
	}
	if req.PaymentSent != nil {
		slip.PaymentSent = *req.PaymentSent
	}
	if req.EmailSent != nil {
		slip.EmailSent = *req.EmailSent
	}
	if err := h.Store.SavePayslip(r.Context(), slip); err != nil {
		writeDomainError(w, "Failed to update flags", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayslipDTO(slip, false))
}

// =============================================================================
// PROJECTION HANDLERS
// =============================================================================

// ProjectPayslip renders the payslip in a display currency.
// GET /api/payslips/{id}/view?currency=VEB&rate=36.50&rate_date=2023-10-15
func (h *Handler) ProjectPayslip(w http.ResponseWriter, r *http.Request) {
	displayCurrency, policy, err := h.projectionQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid projection parameters", err)
		return
	}

	view, err := h.Service.ProjectPayslip(r.Context(), chi.URLParam(r, "id"), displayCurrency, policy)
	if err != nil {
		writeDomainError(w, "Failed to project payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectedViewDTO(view))
}

// InterestSchedule returns the month-by-month interest accrual rows for a
// liquidation payslip. Overrides do not apply here.
func (h *Handler) InterestSchedule(w http.ResponseWriter, r *http.Request) {
	displayCurrency := r.URL.Query().Get("currency")
	if displayCurrency == "" {
		displayCurrency = h.SecondaryCurrency
	}

	sched, err := h.Service.InterestSchedule(r.Context(), chi.URLParam(r, "id"), displayCurrency)
	if err != nil {
		writeDomainError(w, "Failed to build interest schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(sched))
}

// BreakdownXLSX streams the settlement workbook.
func (h *Handler) BreakdownXLSX(w http.ResponseWriter, r *http.Request) {
	displayCurrency, policy, err := h.projectionQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid projection parameters", err)
		return
	}

	id := chi.URLParam(r, "id")
	breakdown, sched, err := h.Service.LiquidationBreakdown(r.Context(), id, displayCurrency, policy)
	if err != nil {
		writeDomainError(w, "Failed to build breakdown", err)
		return
	}

	book, err := report.WriteBreakdownXLSX(breakdown, sched)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="liquidacion-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(book)
}

// projectionQuery parses currency/rate/rate_date query parameters.
func (h *Handler) projectionQuery(r *http.Request) (string, currency.PolicyInputs, error) {
	q := r.URL.Query()
	displayCurrency := q.Get("currency")
	if displayCurrency == "" {
		displayCurrency = h.SecondaryCurrency
	}

	var policy currency.PolicyInputs
	if s := q.Get("rate"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return "", policy, fmt.Errorf("rate: %w", err)
		}
		policy.OverrideRate = &d
	}
	if s := q.Get("rate_date"); s != "" {
		d, err := engine.ParseDate(s)
		if err != nil {
			return "", policy, fmt.Errorf("rate_date: %w", err)
		}
		policy.RateDate = &d
	}
	return displayCurrency, policy, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePeriod(from, to string) (engine.Period, error) {
	df, err := engine.ParseDate(from)
	if err != nil {
		return engine.Period{}, fmt.Errorf("date_from: %w", err)
	}
	dt, err := engine.ParseDate(to)
	if err != nil {
		return engine.Period{}, fmt.Errorf("date_to: %w", err)
	}
	p := engine.Period{DateFrom: df, DateTo: dt}
	if !p.Valid() {
		return engine.Period{}, engine.ErrInvalidPeriod
	}
	return p, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrCompensationMismatch),
		errors.Is(err, engine.ErrPayslipImmutable):
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
