/*
store.go - Persistence interface for the billing engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  engine is stateless between calls; everything durable lives behind Store.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   CRUD per entity plus the two queries the engine needs beyond
           plain CRUD - a filtered range scan over entries and the
           max-invoice-number lookup.
  TxStore: Store with a serializable transaction wrapper.

CONCURRENCY CONTRACT:
  - PutEntry is an upsert on the (company, project, date) key. Callers that
    read-modify-write (accumulate mode) MUST do so inside WithTx so a
    concurrent write to the same key cannot be lost.
  - Invoice number allocation (MaxInvoiceNumber + CreateInvoice) MUST run
    inside WithTx; it is the one place requiring serialization across a
    user's invoices.
  - WithTx calls are serializable with respect to each other. The memory
    store takes a global lock; the SQLite store uses BEGIN IMMEDIATE.

IMPLEMENTATIONS:
  - billing/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go:  Production SQLite

SEE ALSO:
  - reconcile.go: The main consumer of the entry operations
  - invoice.go: The consumer of the invoice operations
*/
package billing

import "context"

// =============================================================================
// ENTRY FILTER
// =============================================================================

// EntryFilter selects hour entries for a company.
// From/To are inclusive bounds; a nil bound is open-ended.
// A nil Project matches every project bucket; a non-nil Project matches only
// that bucket (pointer to NoProject selects the unassigned bucket alone).
type EntryFilter struct {
	CompanyID CompanyID
	From      *Date
	To        *Date
	Project   *ProjectID
}

// ProjectFilter is a convenience for taking the address of a ProjectID.
func ProjectFilter(id ProjectID) *ProjectID { return &id }

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence for all billing entities.
// Every method returns ErrNotFound (possibly wrapped) for missing rows.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	// Billing profiles (issuer identity; one per user, upserted)
	PutBillingProfile(ctx context.Context, p BillingProfile) error
	GetBillingProfile(ctx context.Context, userID UserID) (BillingProfile, error)

	// Companies
	CreateCompany(ctx context.Context, c Company) error
	GetCompany(ctx context.Context, id CompanyID) (Company, error)
	ListCompanies(ctx context.Context, userID UserID) ([]Company, error)
	UpdateCompany(ctx context.Context, c Company) error
	DeleteCompany(ctx context.Context, id CompanyID) error

	// Projects
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ProjectID) (Project, error)
	ListProjects(ctx context.Context, companyID CompanyID) ([]Project, error)
	DeleteProject(ctx context.Context, id ProjectID) error

	// Hour entries, keyed by (company, project, date)
	GetEntry(ctx context.Context, key EntryKey) (HourEntry, error)
	PutEntry(ctx context.Context, e HourEntry) error
	DeleteEntry(ctx context.Context, key EntryKey) error
	ListEntries(ctx context.Context, f EntryFilter) ([]HourEntry, error)

	// Invoices. CreateInvoice persists the invoice and its items atomically.
	CreateInvoice(ctx context.Context, inv Invoice, items []InvoiceItem) error
	GetInvoice(ctx context.Context, id InvoiceID) (Invoice, error)
	ListInvoices(ctx context.Context, userID UserID) ([]Invoice, error)
	ListInvoiceItems(ctx context.Context, id InvoiceID) ([]InvoiceItem, error)
	UpdateInvoiceStatus(ctx context.Context, id InvoiceID, status InvoiceStatus) error
	DeleteInvoice(ctx context.Context, id InvoiceID) error

	// MaxInvoiceNumber returns the highest numeric invoice number for the
	// user, 0 when the user has no invoices yet.
	MaxInvoiceNumber(ctx context.Context, userID UserID) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with serializable transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// inTx runs fn inside a transaction when the store supports it, and falls
// back to running fn directly otherwise. Engines use this so they work with
// any Store while getting real atomicity from a TxStore.
func inTx(ctx context.Context, s Store, fn func(Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(s)
}
