/*
Package billing is the hour-tracking and invoicing engine.

PURPOSE:
  This package contains the storage-agnostic domain logic for tracking
  billable hours per client company and project, and for reconciling those
  hours into sequential invoices.

KEY CONCEPTS IN THIS FILE (types.go):
  - User / Company / Project: the three-level ownership hierarchy
  - HourEntry: the atomic fact - hours worked on a date for a company/project
  - BillingProfile / ClientProfile: legal identities copied into invoices
  - Invoice / InvoiceItem: an immutable billing snapshot

DESIGN PRINCIPLES:
  1. Precision: hours and money use decimal.Decimal, never float64
  2. Ownership: nothing mutates without passing the Resolver first
  3. One entry per key: at most one HourEntry per (company, project, date),
     where "no project" is its own bucket
  4. Invoices are snapshots: issuer and client data are denormalized at
     creation time and never change when profiles are later edited

SEE ALSO:
  - store.go: Persistence interface the engine runs against
  - reconcile.go: The state-transition logic for entries
  - invoice.go: Aggregation into invoices
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CompanyID string
type ProjectID string
type InvoiceID string

// NoProject is the unassigned-project bucket. It is a distinct key: an entry
// with no project and an entry for project P on the same date coexist.
const NoProject ProjectID = ""

// =============================================================================
// HOURS BOUNDS
// =============================================================================

var (
	// MinHours / MaxHours bound any single day's entry. Zero is a valid
	// explicit value, distinct from "no entry".
	MinHours = decimal.Zero
	MaxHours = decimal.NewFromInt(24)
)

// validHours reports whether h is inside [0, 24].
func validHours(h decimal.Decimal) bool {
	return h.GreaterThanOrEqual(MinHours) && h.LessThanOrEqual(MaxHours)
}

// =============================================================================
// USER - Identity anchor of a tenant
// =============================================================================

type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// BillingProfile is the issuer identity attached to a User. An invoice can
// only be created once this exists; its fields are copied into the invoice.
type BillingProfile struct {
	UserID           UserID
	LegalName        string
	IDType           string // document type, e.g. "NIF", "CUIT", "passport"
	IDNumber         string
	Address          string
	BankName         string
	BankAccount      string
	SignatureImage   string // data URI or storage reference, rendered by reports
	LegalDeclaration string
	UpdatedAt        time.Time
}

// =============================================================================
// COMPANY - A billing client, owned by exactly one user
// =============================================================================

type Company struct {
	ID              CompanyID
	UserID          UserID
	Name            string
	HourlyRate      decimal.Decimal
	BillingCycleDay int // day of month the client's billing period starts
	Client          *ClientProfile
	CreatedAt       time.Time
}

// ClientProfile is the optional "bill-to" identity of a Company.
type ClientProfile struct {
	LegalName string
	TaxID     string
	Address   string
	Contact   string
}

// =============================================================================
// PROJECT - Optional subdivision of work under a company
// =============================================================================

type Project struct {
	ID        ProjectID
	CompanyID CompanyID
	UserID    UserID
	Name      string // unique within its company
	CreatedAt time.Time
}

// =============================================================================
// HOUR ENTRY - The atomic fact
// =============================================================================

// HourEntry records hours worked on a date for a company, optionally scoped
// to a project.
//
// INVARIANT: at most one entry per (CompanyID, ProjectID, Date), with
// ProjectID == NoProject being its own bucket. The Reconciler is the only
// code allowed to create or modify entries.
type HourEntry struct {
	CompanyID   CompanyID
	ProjectID   ProjectID // NoProject for the unassigned bucket
	Date        Date
	Hours       decimal.Decimal // within [0, 24]
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key identifies the entry's reconciliation slot.
func (e HourEntry) Key() EntryKey {
	return EntryKey{CompanyID: e.CompanyID, ProjectID: e.ProjectID, Date: e.Date}
}

// EntryKey is the uniqueness key for hour entries.
type EntryKey struct {
	CompanyID CompanyID
	ProjectID ProjectID
	Date      Date
}

// =============================================================================
// WEEKDAY STATS - Derived per-weekday aggregate
// =============================================================================

// WeekdayStats is a derived aggregate, recomputable at any time from entry
// history. Not a source of truth; only a reporting and gap-fill convenience.
type WeekdayStats struct {
	Average    decimal.Decimal
	TotalHours decimal.Decimal
	EntryCount int
}

// =============================================================================
// INVOICE - Immutable billing snapshot
// =============================================================================

type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Invoice is immutable once created, except for Status. Issuer and Client
// are denormalized copies taken at creation time: editing a profile later
// must never rewrite an invoice that may already have been sent.
type Invoice struct {
	ID          InvoiceID
	UserID      UserID
	CompanyID   CompanyID
	Number      string // zero-padded, strictly increasing per user ("001", "002", ...)
	Status      InvoiceStatus
	PeriodStart Date
	PeriodEnd   Date
	IssueDate   Date
	TotalHours  decimal.Decimal
	HourlyRate  decimal.Decimal
	TotalAmount decimal.Decimal
	Issuer      IssuerSnapshot
	Client      ClientSnapshot
	CreatedAt   time.Time
}

// IssuerSnapshot is the user's billing profile frozen into an invoice.
type IssuerSnapshot struct {
	LegalName        string
	IDType           string
	IDNumber         string
	Address          string
	BankName         string
	BankAccount      string
	SignatureImage   string
	LegalDeclaration string
}

// ClientSnapshot is the company's bill-to data frozen into an invoice.
type ClientSnapshot struct {
	Name      string
	LegalName string
	TaxID     string
	Address   string
	Contact   string
}

// InvoiceItem is one frozen line item. Total = Hours x Rate, computed once
// at aggregation time.
type InvoiceItem struct {
	ID        string
	InvoiceID InvoiceID
	Concept   string
	Hours     decimal.Decimal
	Rate      decimal.Decimal
	Total     decimal.Decimal
	ProjectID ProjectID // NoProject when the item covers the whole company
}
