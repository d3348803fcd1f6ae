/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (payroll.ContractStore,
  payroll.PayslipStore, currency.RateStore) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

IMMUTABILITY ENFORCEMENT:
  Done payslips freeze their lines:
  - SavePayslip on a done payslip updates metadata flags only
  - Attempting to rewrite the lines of a done payslip fails with
    ErrPayslipImmutable
  - State only moves forward (draft -> computed -> done)

KEY TABLES:
  contracts:       Compensation breakdowns and fiscal metadata
  contract_audit:  Append-only provenance trail for compensation writes
  payslips:        Payslip headers (state machine)
  payslip_lines:   Computed line items, primary currency
  rates:           Exchange rate history (one row per currency/date)

INDEXES:
  - idx_payslips_contract_period: Aguinaldos fiscal-year sum (hot path)
  - idx_rates_currency_date: greatest-date-at-or-before rate lookups

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(params, store, store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/service.go: Interface definitions and orchestration
  - currency/rates.go: RateStore interface and in-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nominave/payroll-engine/currency"
	"github.com/nominave/payroll-engine/engine"
	"github.com/nominave/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite allows one writer, and a fresh pool
	// connection to a ":memory:" path would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Contracts
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		employee_ref TEXT NOT NULL,
		date_start TEXT NOT NULL,
		wage TEXT NOT NULL,
		salary_base TEXT NOT NULL,
		bonus_regular TEXT NOT NULL,
		extra_bonus TEXT NOT NULL,
		cesta_ticket TEXT NOT NULL,
		ari_rate TEXT NOT NULL,
		original_hire_date TEXT,
		previous_liquidation_date TEXT,
		prestaciones_reset_date TEXT,
		vacation_prepaid TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Audit trail (append-only: no UPDATE, no DELETE)
	CREATE TABLE IF NOT EXISTS contract_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL,
		at TEXT NOT NULL,
		note TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contract_audit_contract
		ON contract_audit(contract_id, at);

	-- Payslip headers
	CREATE TABLE IF NOT EXISTS payslips (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		employee_ref TEXT NOT NULL,
		ruleset_code TEXT NOT NULL,
		date_from TEXT NOT NULL,
		date_to TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'draft',
		payment_sent BOOLEAN DEFAULT FALSE,
		email_sent BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Aguinaldos fiscal-year sum filters by contract, ruleset and date_to
	CREATE INDEX IF NOT EXISTS idx_payslips_contract_period
		ON payslips(contract_id, ruleset_code, date_to);
	CREATE INDEX IF NOT EXISTS idx_payslips_state
		ON payslips(state);

	-- Computed line items, primary currency
	CREATE TABLE IF NOT EXISTS payslip_lines (
		payslip_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		detail TEXT,
		debit_account TEXT,
		credit_account TEXT,
		PRIMARY KEY (payslip_id, code)
	);

	CREATE INDEX IF NOT EXISTS idx_payslip_lines_payslip
		ON payslip_lines(payslip_id, sequence);

	-- Exchange rate history
	CREATE TABLE IF NOT EXISTS rates (
		currency TEXT NOT NULL,
		date TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (currency, date)
	);

	CREATE INDEX IF NOT EXISTS idx_rates_currency_date
		ON rates(currency, date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACT STORE (payroll.ContractStore interface)
// =============================================================================

// SaveContract upserts the contract and appends its new audit lines.
// Existing audit rows are never rewritten.
func (s *Store) SaveContract(ctx context.Context, c *payroll.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO contracts
		(id, employee_ref, date_start, wage, salary_base, bonus_regular, extra_bonus,
		 cesta_ticket, ari_rate, original_hire_date, previous_liquidation_date,
		 prestaciones_reset_date, vacation_prepaid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_ref = excluded.employee_ref,
			date_start = excluded.date_start,
			wage = excluded.wage,
			salary_base = excluded.salary_base,
			bonus_regular = excluded.bonus_regular,
			extra_bonus = excluded.extra_bonus,
			cesta_ticket = excluded.cesta_ticket,
			ari_rate = excluded.ari_rate,
			original_hire_date = excluded.original_hire_date,
			previous_liquidation_date = excluded.previous_liquidation_date,
			prestaciones_reset_date = excluded.prestaciones_reset_date,
			vacation_prepaid = excluded.vacation_prepaid,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		c.ID, c.EmployeeRef, c.DateStart.String(),
		c.Wage.String(), c.SalaryBase.String(), c.BonusRegular.String(),
		c.ExtraBonus.String(), c.CestaTicket.String(), c.ARIRate.String(),
		nullDate(&c.OriginalHireDate), nullDate(c.PreviousLiquidationDate),
		nullDate(c.PrestacionesResetDate), c.VacationPrepaid.String(),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}

	// Append only the audit lines not yet stored.
	var stored int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contract_audit WHERE contract_id = ?", c.ID,
	).Scan(&stored); err != nil {
		return err
	}
	for _, note := range c.AuditNotes[min(stored, len(c.AuditNotes)):] {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO contract_audit (contract_id, at, note) VALUES (?, ?, ?)",
			c.ID, note.At.UTC().Format(time.RFC3339), note.Note,
		); err != nil {
			return fmt.Errorf("failed to append audit note: %w", err)
		}
	}

	return tx.Commit()
}

// GetContract retrieves a contract with its audit trail.
func (s *Store) GetContract(ctx context.Context, id string) (*payroll.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c                                  payroll.Contract
		dateStart                          string
		wage, salaryBase, bonusRegular     string
		extraBonus, cestaTicket, ariRate   string
		vacationPrepaid                    string
		originalHire, prevLiq, prestaReset sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_ref, date_start, wage, salary_base, bonus_regular,
		       extra_bonus, cesta_ticket, ari_rate, original_hire_date,
		       previous_liquidation_date, prestaciones_reset_date, vacation_prepaid
		FROM contracts WHERE id = ?`, id,
	).Scan(&c.ID, &c.EmployeeRef, &dateStart, &wage, &salaryBase, &bonusRegular,
		&extraBonus, &cestaTicket, &ariRate, &originalHire, &prevLiq, &prestaReset,
		&vacationPrepaid)

	if err == sql.ErrNoRows {
		return nil, engine.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.DateStart, err = engine.ParseDate(dateStart); err != nil {
		return nil, fmt.Errorf("contract %s: bad date_start: %w", id, err)
	}
	c.Wage = mustDecimal(wage)
	c.SalaryBase = mustDecimal(salaryBase)
	c.BonusRegular = mustDecimal(bonusRegular)
	c.ExtraBonus = mustDecimal(extraBonus)
	c.CestaTicket = mustDecimal(cestaTicket)
	c.ARIRate = mustDecimal(ariRate)
	c.VacationPrepaid = mustDecimal(vacationPrepaid)
	if d := parseNullDate(originalHire); d != nil {
		c.OriginalHireDate = *d
	}
	c.PreviousLiquidationDate = parseNullDate(prevLiq)
	c.PrestacionesResetDate = parseNullDate(prestaReset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT at, note FROM contract_audit WHERE contract_id = ? ORDER BY id ASC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var at, note string
		if err := rows.Scan(&at, &note); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, at)
		c.AuditNotes = append(c.AuditNotes, payroll.AuditNote{At: t, Note: note})
	}

	return &c, rows.Err()
}

// ListContracts returns all contracts without their audit trails.
func (s *Store) ListContracts(ctx context.Context) ([]payroll.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_ref, date_start, wage, salary_base, bonus_regular,
		       extra_bonus, cesta_ticket, ari_rate, original_hire_date,
		       previous_liquidation_date, prestaciones_reset_date, vacation_prepaid
		FROM contracts ORDER BY employee_ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []payroll.Contract
	for rows.Next() {
		var (
			c                                  payroll.Contract
			dateStart                          string
			wage, salaryBase, bonusRegular     string
			extraBonus, cestaTicket, ariRate   string
			vacationPrepaid                    string
			originalHire, prevLiq, prestaReset sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.EmployeeRef, &dateStart, &wage, &salaryBase,
			&bonusRegular, &extraBonus, &cestaTicket, &ariRate, &originalHire,
			&prevLiq, &prestaReset, &vacationPrepaid); err != nil {
			return nil, err
		}
		if c.DateStart, err = engine.ParseDate(dateStart); err != nil {
			return nil, err
		}
		c.Wage = mustDecimal(wage)
		c.SalaryBase = mustDecimal(salaryBase)
		c.BonusRegular = mustDecimal(bonusRegular)
		c.ExtraBonus = mustDecimal(extraBonus)
		c.CestaTicket = mustDecimal(cestaTicket)
		c.ARIRate = mustDecimal(ariRate)
		c.VacationPrepaid = mustDecimal(vacationPrepaid)
		if d := parseNullDate(originalHire); d != nil {
			c.OriginalHireDate = *d
		}
		c.PreviousLiquidationDate = parseNullDate(prevLiq)
		c.PrestacionesResetDate = parseNullDate(prestaReset)
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// =============================================================================
// PAYSLIP STORE (payroll.PayslipStore interface)
// =============================================================================

// SavePayslip persists the payslip header and lines. Once a payslip is
// done its lines freeze: a save that would rewrite them fails with
// ErrPayslipImmutable. Metadata flags remain writable.
func (s *Store) SavePayslip(ctx context.Context, p *engine.Payslip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingState string
	err = tx.QueryRowContext(ctx,
		"SELECT state FROM payslips WHERE id = ?", p.ID).Scan(&existingState)
	switch {
	case err == sql.ErrNoRows:
		// new payslip
	case err != nil:
		return err
	case engine.State(existingState) == engine.StateDone:
		// Done payslips accept metadata-flag updates only.
		_, err = tx.ExecContext(ctx, `
			UPDATE payslips SET payment_sent = ?, email_sent = ?, updated_at = ?
			WHERE id = ?`,
			p.PaymentSent, p.EmailSent, time.Now().UTC().Format(time.RFC3339), p.ID)
		if err != nil {
			return err
		}
		if p.State != engine.StateDone || len(p.Lines) > 0 {
			same, cmpErr := s.linesUnchanged(ctx, tx, p)
			if cmpErr != nil {
				return cmpErr
			}
			if !same || p.State != engine.StateDone {
				return engine.ErrPayslipImmutable
			}
		}
		return tx.Commit()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payslips
		(id, contract_id, employee_ref, ruleset_code, date_from, date_to, state,
		 payment_sent, email_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			payment_sent = excluded.payment_sent,
			email_sent = excluded.email_sent,
			updated_at = excluded.updated_at`,
		p.ID, p.ContractID, p.EmployeeRef, p.RulesetCode,
		p.Period.DateFrom.String(), p.Period.DateTo.String(), string(p.State),
		p.PaymentSent, p.EmailSent, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save payslip: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM payslip_lines WHERE payslip_id = ?", p.ID); err != nil {
		return err
	}
	for _, l := range p.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payslip_lines
			(payslip_id, code, name, sequence, category, amount, detail,
			 debit_account, credit_account)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, l.Code, l.Name, l.Sequence, string(l.Category),
			l.Amount.String(), l.Detail, l.DebitAccount, l.CreditAccount,
		); err != nil {
			return fmt.Errorf("failed to save line %s: %w", l.Code, err)
		}
	}

	return tx.Commit()
}

// linesUnchanged compares the incoming lines against the stored ones.
func (s *Store) linesUnchanged(ctx context.Context, tx *sql.Tx, p *engine.Payslip) (bool, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT code, amount FROM payslip_lines WHERE payslip_id = ? ORDER BY sequence ASC", p.ID)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	stored := map[string]string{}
	for rows.Next() {
		var code, amount string
		if err := rows.Scan(&code, &amount); err != nil {
			return false, err
		}
		stored[code] = amount
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	if len(stored) != len(p.Lines) {
		return false, nil
	}
	for _, l := range p.Lines {
		amt, ok := stored[l.Code]
		if !ok || !mustDecimal(amt).Equal(l.Amount) {
			return false, nil
		}
	}
	return true, nil
}

// GetPayslip retrieves a payslip with its lines, ordered by sequence.
func (s *Store) GetPayslip(ctx context.Context, id string) (*engine.Payslip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                engine.Payslip
		dateFrom, dateTo string
		state            string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, contract_id, employee_ref, ruleset_code, date_from, date_to,
		       state, payment_sent, email_sent
		FROM payslips WHERE id = ?`, id,
	).Scan(&p.ID, &p.ContractID, &p.EmployeeRef, &p.RulesetCode,
		&dateFrom, &dateTo, &state, &p.PaymentSent, &p.EmailSent)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPayslipNotFound
	}
	if err != nil {
		return nil, err
	}

	p.State = engine.State(state)
	if p.Period.DateFrom, err = engine.ParseDate(dateFrom); err != nil {
		return nil, err
	}
	if p.Period.DateTo, err = engine.ParseDate(dateTo); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, sequence, category, amount, detail, debit_account, credit_account
		FROM payslip_lines WHERE payslip_id = ? ORDER BY sequence ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l                     engine.LineItem
			category, amount      string
			detail, debit, credit sql.NullString
		)
		if err := rows.Scan(&l.Code, &l.Name, &l.Sequence, &category, &amount,
			&detail, &debit, &credit); err != nil {
			return nil, err
		}
		l.Category = engine.Category(category)
		l.Amount = mustDecimal(amount)
		l.Detail = detail.String
		l.DebitAccount = debit.String
		l.CreditAccount = credit.String
		p.Lines = append(p.Lines, l)
	}

	return &p, rows.Err()
}

// SetPayslipState advances the payslip state. States only move forward.
func (s *Store) SetPayslipState(ctx context.Context, id string, state engine.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM payslips WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return engine.ErrPayslipNotFound
	}
	if err != nil {
		return err
	}
	if stateRank(engine.State(current)) > stateRank(state) {
		return engine.ErrPayslipImmutable
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE payslips SET state = ?, updated_at = ? WHERE id = ?",
		string(state), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func stateRank(st engine.State) int {
	switch st {
	case engine.StateDraft:
		return 0
	case engine.StateComputed:
		return 1
	case engine.StateDone:
		return 2
	}
	return -1
}

// DoneAguinaldoTotal sums the Aguinaldo lines of done payslips for the
// contract whose date_to falls within the fiscal year.
func (s *Store) DoneAguinaldoTotal(ctx context.Context, contractID string, fiscalYear engine.Period) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.amount
		FROM payslip_lines l
		JOIN payslips p ON p.id = l.payslip_id
		WHERE p.contract_id = ?
		  AND p.ruleset_code = ?
		  AND p.state = 'done'
		  AND p.date_to >= ? AND p.date_to <= ?
		  AND l.code = ?`,
		contractID, payroll.RulesetAguinaldosV2,
		fiscalYear.DateFrom.String(), fiscalYear.DateTo.String(),
		payroll.CodeAguinaldo)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(mustDecimal(amount))
	}
	return total, rows.Err()
}

// ListPayslips returns payslip headers for a contract, newest first.
// Lines are not loaded.
func (s *Store) ListPayslips(ctx context.Context, contractID string) ([]engine.Payslip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, employee_ref, ruleset_code, date_from, date_to,
		       state, payment_sent, email_sent
		FROM payslips WHERE contract_id = ?
		ORDER BY date_to DESC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slips []engine.Payslip
	for rows.Next() {
		var (
			p                engine.Payslip
			dateFrom, dateTo string
			state            string
		)
		if err := rows.Scan(&p.ID, &p.ContractID, &p.EmployeeRef, &p.RulesetCode,
			&dateFrom, &dateTo, &state, &p.PaymentSent, &p.EmailSent); err != nil {
			return nil, err
		}
		p.State = engine.State(state)
		if p.Period.DateFrom, err = engine.ParseDate(dateFrom); err != nil {
			return nil, err
		}
		if p.Period.DateTo, err = engine.ParseDate(dateTo); err != nil {
			return nil, err
		}
		slips = append(slips, p)
	}
	return slips, rows.Err()
}

// =============================================================================
// RATE STORE (currency.RateStore interface)
// =============================================================================

// PutRate stores one rate record. Re-importing a date overwrites it.
func (s *Store) PutRate(ctx context.Context, r currency.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Value.IsPositive() {
		return &engine.InvalidRateError{Rate: r.Value}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rates (currency, date, value, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(currency, date) DO UPDATE SET
			value = excluded.value`,
		r.Currency, r.Date.String(), r.Value.String(),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// RateOn returns the rate effective on the date: the record with the
// greatest date at or before it, falling back to the earliest record when
// the date precedes all history.
func (s *Store) RateOn(ctx context.Context, cur string, date engine.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM rates
		WHERE currency = ? AND date <= ?
		ORDER BY date DESC LIMIT 1`,
		cur, date.String()).Scan(&value)
	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx, `
			SELECT value FROM rates
			WHERE currency = ?
			ORDER BY date ASC LIMIT 1`,
			cur).Scan(&value)
		if err == sql.ErrNoRows {
			return decimal.Zero, &engine.RateUnavailableError{Currency: cur, Date: date}
		}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(value), nil
}

// LatestRate returns the most recent rate record for the currency.
func (s *Store) LatestRate(ctx context.Context, cur string) (currency.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dateStr, value string
	err := s.db.QueryRowContext(ctx, `
		SELECT date, value FROM rates
		WHERE currency = ?
		ORDER BY date DESC LIMIT 1`,
		cur).Scan(&dateStr, &value)
	if err == sql.ErrNoRows {
		return currency.Rate{}, &engine.RateUnavailableError{Currency: cur}
	}
	if err != nil {
		return currency.Rate{}, err
	}
	d, err := engine.ParseDate(dateStr)
	if err != nil {
		return currency.Rate{}, err
	}
	return currency.Rate{Currency: cur, Date: d, Value: mustDecimal(value)}, nil
}

// ListRates returns the rate history for a currency, oldest first.
func (s *Store) ListRates(ctx context.Context, cur string) ([]currency.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, value FROM rates
		WHERE currency = ?
		ORDER BY date ASC`, cur)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []currency.Rate
	for rows.Next() {
		var dateStr, value string
		if err := rows.Scan(&dateStr, &value); err != nil {
			return nil, err
		}
		d, err := engine.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		rates = append(rates, currency.Rate{Currency: cur, Date: d, Value: mustDecimal(value)})
	}
	return rates, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payslip_lines", "payslips", "contract_audit", "contracts", "rates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullDate(d *engine.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) *engine.Date {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	d, err := engine.ParseDate(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
