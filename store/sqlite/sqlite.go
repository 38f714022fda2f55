/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Production persistence for the billing engine. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users             Tenant identities
  billing_profiles  Issuer identity, one row per user
  companies         Billing clients, owned by a user
  projects          Subdivisions of a company
  hour_entries      The atomic facts; PRIMARY KEY (company_id, project_id, date)
  invoices          Immutable snapshots; UNIQUE (user_id, number)
  invoice_items     Frozen line items, cascade-deleted with their invoice

KEY CONSTRAINTS:
  - hour_entries uses '' (empty string) as the project_id of the
    unassigned-project bucket, so the primary key covers the
    one-entry-per-(company, project, date) invariant even without a
    project. SQL NULLs would make every row unique under the index.
  - UNIQUE(user_id, number) on invoices backs the number allocation; a
    race that slips past the transaction still cannot commit a duplicate.

NUMERIC STORAGE:
  Hours and money are decimal.Decimal serialized as TEXT. SQLite REAL is
  a float and floats do not bill clients correctly.

CONCURRENCY:
  Opened with WAL and _txlock=immediate: WithTx transactions take the
  write lock up front, which makes the max-plus-one invoice number
  allocation serializable.

USAGE:
  st, err := sqlite.New("./data/billable.db")   // or ":memory:"
  defer st.Close()

SEE ALSO:
  - billing/store.go: The interface this package implements
  - billing/store/memory.go: The in-memory implementation tests use
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tally/billable-engine/billing"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements billing.TxStore on SQLite.
type Store struct {
	db *sql.DB
	queries
}

// queries holds every statement; it runs against either the root connection
// or an open transaction.
type queries struct {
	db dbtx
}

// txStore is the Store view handed to WithTx callbacks.
type txStore struct {
	queries
}

// New opens (or creates) the database at dbPath. ":memory:" works for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer keeps _txlock=immediate meaningful.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, queries: queries{db: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS billing_profiles (
		user_id           TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		legal_name        TEXT NOT NULL,
		id_type           TEXT NOT NULL DEFAULT '',
		id_number         TEXT NOT NULL DEFAULT '',
		address           TEXT NOT NULL DEFAULT '',
		bank_name         TEXT NOT NULL DEFAULT '',
		bank_account      TEXT NOT NULL DEFAULT '',
		signature_image   TEXT NOT NULL DEFAULT '',
		legal_declaration TEXT NOT NULL DEFAULT '',
		updated_at        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS companies (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name              TEXT NOT NULL,
		hourly_rate       TEXT NOT NULL,
		billing_cycle_day INTEGER NOT NULL DEFAULT 1,
		client_legal_name TEXT NOT NULL DEFAULT '',
		client_tax_id     TEXT NOT NULL DEFAULT '',
		client_address    TEXT NOT NULL DEFAULT '',
		client_contact    TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_companies_user ON companies(user_id);

	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(company_id, name)
	);

	CREATE TABLE IF NOT EXISTS hour_entries (
		company_id  TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		project_id  TEXT NOT NULL DEFAULT '',
		date        TEXT NOT NULL,
		hours       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (company_id, project_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_company_date ON hour_entries(company_id, date);

	CREATE TABLE IF NOT EXISTS invoices (
		id                       TEXT PRIMARY KEY,
		user_id                  TEXT NOT NULL REFERENCES users(id),
		company_id               TEXT NOT NULL,
		number                   TEXT NOT NULL,
		status                   TEXT NOT NULL,
		period_start             TEXT NOT NULL,
		period_end               TEXT NOT NULL,
		issue_date               TEXT NOT NULL,
		total_hours              TEXT NOT NULL,
		hourly_rate              TEXT NOT NULL,
		total_amount             TEXT NOT NULL,
		issuer_legal_name        TEXT NOT NULL DEFAULT '',
		issuer_id_type           TEXT NOT NULL DEFAULT '',
		issuer_id_number         TEXT NOT NULL DEFAULT '',
		issuer_address           TEXT NOT NULL DEFAULT '',
		issuer_bank_name         TEXT NOT NULL DEFAULT '',
		issuer_bank_account      TEXT NOT NULL DEFAULT '',
		issuer_signature_image   TEXT NOT NULL DEFAULT '',
		issuer_legal_declaration TEXT NOT NULL DEFAULT '',
		client_name              TEXT NOT NULL DEFAULT '',
		client_legal_name        TEXT NOT NULL DEFAULT '',
		client_tax_id            TEXT NOT NULL DEFAULT '',
		client_address           TEXT NOT NULL DEFAULT '',
		client_contact           TEXT NOT NULL DEFAULT '',
		created_at               TEXT NOT NULL,
		UNIQUE(user_id, number)
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id);

	CREATE TABLE IF NOT EXISTS invoice_items (
		id         TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		concept    TEXT NOT NULL,
		hours      TEXT NOT NULL,
		rate       TEXT NOT NULL,
		total      TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_items_invoice ON invoice_items(invoice_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside an immediate transaction: the write lock is held
// from BEGIN, so concurrent WithTx calls serialize.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txStore{queries{db: tx}}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDate(s string) billing.Date {
	d, _ := billing.ParseDate(s)
	return d
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return billing.ErrNotFound
	}
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (q queries) CreateUser(ctx context.Context, u billing.User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		string(u.ID), u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func scanUser(row *sql.Row) (billing.User, error) {
	var u billing.User
	var id, createdAt string
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		return billing.User{}, notFound(err)
	}
	u.ID = billing.UserID(id)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (q queries) GetUser(ctx context.Context, id billing.UserID) (billing.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, string(id)))
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (billing.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

// =============================================================================
// BILLING PROFILES
// =============================================================================

func (q queries) PutBillingProfile(ctx context.Context, p billing.BillingProfile) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO billing_profiles
			(user_id, legal_name, id_type, id_number, address, bank_name, bank_account, signature_image, legal_declaration, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			legal_name = excluded.legal_name,
			id_type = excluded.id_type,
			id_number = excluded.id_number,
			address = excluded.address,
			bank_name = excluded.bank_name,
			bank_account = excluded.bank_account,
			signature_image = excluded.signature_image,
			legal_declaration = excluded.legal_declaration,
			updated_at = excluded.updated_at`,
		string(p.UserID), p.LegalName, p.IDType, p.IDNumber, p.Address,
		p.BankName, p.BankAccount, p.SignatureImage, p.LegalDeclaration,
		p.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (q queries) GetBillingProfile(ctx context.Context, userID billing.UserID) (billing.BillingProfile, error) {
	var p billing.BillingProfile
	var uid, updatedAt string
	err := q.db.QueryRowContext(ctx, `
		SELECT user_id, legal_name, id_type, id_number, address, bank_name, bank_account, signature_image, legal_declaration, updated_at
		FROM billing_profiles WHERE user_id = ?`, string(userID)).
		Scan(&uid, &p.LegalName, &p.IDType, &p.IDNumber, &p.Address,
			&p.BankName, &p.BankAccount, &p.SignatureImage, &p.LegalDeclaration, &updatedAt)
	if err != nil {
		return billing.BillingProfile{}, notFound(err)
	}
	p.UserID = billing.UserID(uid)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// COMPANIES
// =============================================================================

const companyColumns = `id, user_id, name, hourly_rate, billing_cycle_day, client_legal_name, client_tax_id, client_address, client_contact, created_at`

func clientColumns(c billing.Company) (string, string, string, string) {
	if c.Client == nil {
		return "", "", "", ""
	}
	return c.Client.LegalName, c.Client.TaxID, c.Client.Address, c.Client.Contact
}

func (q queries) CreateCompany(ctx context.Context, c billing.Company) error {
	legal, taxID, addr, contact := clientColumns(c)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO companies
			(`+companyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), string(c.UserID), c.Name, c.HourlyRate.String(), c.BillingCycleDay,
		legal, taxID, addr, contact, c.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func scanCompany(scan func(...any) error) (billing.Company, error) {
	var c billing.Company
	var id, userID, rate, createdAt string
	var legal, taxID, addr, contact string
	err := scan(&id, &userID, &c.Name, &rate, &c.BillingCycleDay, &legal, &taxID, &addr, &contact, &createdAt)
	if err != nil {
		return billing.Company{}, notFound(err)
	}
	c.ID = billing.CompanyID(id)
	c.UserID = billing.UserID(userID)
	c.HourlyRate = parseDec(rate)
	c.CreatedAt = parseTime(createdAt)
	if legal != "" || taxID != "" || addr != "" || contact != "" {
		c.Client = &billing.ClientProfile{LegalName: legal, TaxID: taxID, Address: addr, Contact: contact}
	}
	return c, nil
}

func (q queries) GetCompany(ctx context.Context, id billing.CompanyID) (billing.Company, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, string(id))
	return scanCompany(row.Scan)
}

func (q queries) ListCompanies(ctx context.Context, userID billing.UserID) ([]billing.Company, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE user_id = ? ORDER BY name`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Company
	for rows.Next() {
		c, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (q queries) UpdateCompany(ctx context.Context, c billing.Company) error {
	legal, taxID, addr, contact := clientColumns(c)
	res, err := q.db.ExecContext(ctx, `
		UPDATE companies SET name = ?, hourly_rate = ?, billing_cycle_day = ?,
			client_legal_name = ?, client_tax_id = ?, client_address = ?, client_contact = ?
		WHERE id = ?`,
		c.Name, c.HourlyRate.String(), c.BillingCycleDay, legal, taxID, addr, contact, string(c.ID))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (q queries) DeleteCompany(ctx context.Context, id billing.CompanyID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (q queries) CreateProject(ctx context.Context, p billing.Project) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (id, company_id, user_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(p.ID), string(p.CompanyID), string(p.UserID), p.Name, p.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (q queries) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	var p billing.Project
	var pid, companyID, userID, createdAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, company_id, user_id, name, created_at FROM projects WHERE id = ?`, string(id)).
		Scan(&pid, &companyID, &userID, &p.Name, &createdAt)
	if err != nil {
		return billing.Project{}, notFound(err)
	}
	p.ID = billing.ProjectID(pid)
	p.CompanyID = billing.CompanyID(companyID)
	p.UserID = billing.UserID(userID)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (q queries) ListProjects(ctx context.Context, companyID billing.CompanyID) ([]billing.Project, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, company_id, user_id, name, created_at FROM projects WHERE company_id = ? ORDER BY name`,
		string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Project
	for rows.Next() {
		var p billing.Project
		var pid, cid, uid, createdAt string
		if err := rows.Scan(&pid, &cid, &uid, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.ID = billing.ProjectID(pid)
		p.CompanyID = billing.CompanyID(cid)
		p.UserID = billing.UserID(uid)
		p.CreatedAt = parseTime(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (q queries) DeleteProject(ctx context.Context, id billing.ProjectID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// HOUR ENTRIES
// =============================================================================

func (q queries) GetEntry(ctx context.Context, k billing.EntryKey) (billing.HourEntry, error) {
	var e billing.HourEntry
	var companyID, projectID, date, hours, createdAt, updatedAt string
	err := q.db.QueryRowContext(ctx, `
		SELECT company_id, project_id, date, hours, description, created_at, updated_at
		FROM hour_entries WHERE company_id = ? AND project_id = ? AND date = ?`,
		string(k.CompanyID), string(k.ProjectID), k.Date.String()).
		Scan(&companyID, &projectID, &date, &hours, &e.Description, &createdAt, &updatedAt)
	if err != nil {
		return billing.HourEntry{}, notFound(err)
	}
	e.CompanyID = billing.CompanyID(companyID)
	e.ProjectID = billing.ProjectID(projectID)
	e.Date = parseDate(date)
	e.Hours = parseDec(hours)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (q queries) PutEntry(ctx context.Context, e billing.HourEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO hour_entries (company_id, project_id, date, hours, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, project_id, date) DO UPDATE SET
			hours = excluded.hours,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		string(e.CompanyID), string(e.ProjectID), e.Date.String(), e.Hours.String(),
		e.Description, e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (q queries) DeleteEntry(ctx context.Context, k billing.EntryKey) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM hour_entries WHERE company_id = ? AND project_id = ? AND date = ?`,
		string(k.CompanyID), string(k.ProjectID), k.Date.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (q queries) ListEntries(ctx context.Context, f billing.EntryFilter) ([]billing.HourEntry, error) {
	query := `SELECT company_id, project_id, date, hours, description, created_at, updated_at
		FROM hour_entries WHERE company_id = ?`
	args := []any{string(f.CompanyID)}

	if f.Project != nil {
		query += ` AND project_id = ?`
		args = append(args, string(*f.Project))
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY date, project_id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.HourEntry
	for rows.Next() {
		var e billing.HourEntry
		var companyID, projectID, date, hours, createdAt, updatedAt string
		if err := rows.Scan(&companyID, &projectID, &date, &hours, &e.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.CompanyID = billing.CompanyID(companyID)
		e.ProjectID = billing.ProjectID(projectID)
		e.Date = parseDate(date)
		e.Hours = parseDec(hours)
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, user_id, company_id, number, status, period_start, period_end, issue_date,
	total_hours, hourly_rate, total_amount,
	issuer_legal_name, issuer_id_type, issuer_id_number, issuer_address,
	issuer_bank_name, issuer_bank_account, issuer_signature_image, issuer_legal_declaration,
	client_name, client_legal_name, client_tax_id, client_address, client_contact,
	created_at`

func (q queries) CreateInvoice(ctx context.Context, inv billing.Invoice, items []billing.InvoiceItem) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inv.ID), string(inv.UserID), string(inv.CompanyID), inv.Number, string(inv.Status),
		inv.PeriodStart.String(), inv.PeriodEnd.String(), inv.IssueDate.String(),
		inv.TotalHours.String(), inv.HourlyRate.String(), inv.TotalAmount.String(),
		inv.Issuer.LegalName, inv.Issuer.IDType, inv.Issuer.IDNumber, inv.Issuer.Address,
		inv.Issuer.BankName, inv.Issuer.BankAccount, inv.Issuer.SignatureImage, inv.Issuer.LegalDeclaration,
		inv.Client.Name, inv.Client.LegalName, inv.Client.TaxID, inv.Client.Address, inv.Client.Contact,
		inv.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	for _, item := range items {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO invoice_items (id, invoice_id, concept, hours, rate, total, project_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, string(item.InvoiceID), item.Concept,
			item.Hours.String(), item.Rate.String(), item.Total.String(), string(item.ProjectID))
		if err != nil {
			return err
		}
	}
	return nil
}

func scanInvoice(scan func(...any) error) (billing.Invoice, error) {
	var inv billing.Invoice
	var id, userID, companyID, status string
	var periodStart, periodEnd, issueDate string
	var totalHours, hourlyRate, totalAmount, createdAt string
	err := scan(&id, &userID, &companyID, &inv.Number, &status,
		&periodStart, &periodEnd, &issueDate,
		&totalHours, &hourlyRate, &totalAmount,
		&inv.Issuer.LegalName, &inv.Issuer.IDType, &inv.Issuer.IDNumber, &inv.Issuer.Address,
		&inv.Issuer.BankName, &inv.Issuer.BankAccount, &inv.Issuer.SignatureImage, &inv.Issuer.LegalDeclaration,
		&inv.Client.Name, &inv.Client.LegalName, &inv.Client.TaxID, &inv.Client.Address, &inv.Client.Contact,
		&createdAt)
	if err != nil {
		return billing.Invoice{}, notFound(err)
	}
	inv.ID = billing.InvoiceID(id)
	inv.UserID = billing.UserID(userID)
	inv.CompanyID = billing.CompanyID(companyID)
	inv.Status = billing.InvoiceStatus(status)
	inv.PeriodStart = parseDate(periodStart)
	inv.PeriodEnd = parseDate(periodEnd)
	inv.IssueDate = parseDate(issueDate)
	inv.TotalHours = parseDec(totalHours)
	inv.HourlyRate = parseDec(hourlyRate)
	inv.TotalAmount = parseDec(totalAmount)
	inv.CreatedAt = parseTime(createdAt)
	return inv, nil
}

func (q queries) GetInvoice(ctx context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, string(id))
	return scanInvoice(row.Scan)
}

func (q queries) ListInvoices(ctx context.Context, userID billing.UserID) ([]billing.Invoice, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ? ORDER BY CAST(number AS INTEGER)`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (q queries) ListInvoiceItems(ctx context.Context, id billing.InvoiceID) ([]billing.InvoiceItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, invoice_id, concept, hours, rate, total, project_id
		FROM invoice_items WHERE invoice_id = ? ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.InvoiceItem
	for rows.Next() {
		var item billing.InvoiceItem
		var invoiceID, hours, rate, total, projectID string
		if err := rows.Scan(&item.ID, &invoiceID, &item.Concept, &hours, &rate, &total, &projectID); err != nil {
			return nil, err
		}
		item.InvoiceID = billing.InvoiceID(invoiceID)
		item.Hours = parseDec(hours)
		item.Rate = parseDec(rate)
		item.Total = parseDec(total)
		item.ProjectID = billing.ProjectID(projectID)
		result = append(result, item)
	}
	return result, rows.Err()
}

func (q queries) UpdateInvoiceStatus(ctx context.Context, id billing.InvoiceID, status billing.InvoiceStatus) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (q queries) DeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (q queries) MaxInvoiceNumber(ctx context.Context, userID billing.UserID) (int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT number FROM invoices WHERE user_id = ?`, string(userID))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(number); err == nil && n > max {
			max = n
		}
	}
	return max, rows.Err()
}
