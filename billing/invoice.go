/*
invoice.go - Invoice aggregation engine

PURPOSE:
  Sums a period's hour entries into an immutable invoice with line items,
  assigns the next sequential per-user invoice number, and guards the
  status state machine.

CREATION STEPS (atomic from the caller's perspective):
  1. Resolve company ownership (NotFound on failure)
  2. Require the user's billing profile (PreconditionFailed otherwise);
     an invoice never ships without a legal issuer identity
  3. Fetch entries in the period, optionally one project (EmptyPeriod on
     zero matches - a zero-item invoice is meaningless, not a draft)
  4. total_hours = sum; total_amount = total_hours * company rate
  5. Allocate number = max(user's numbers) + 1, zero-padded to 3 digits,
     "001" when none exist
  6. Persist invoice with issuer/client data frozen at this instant
  7. Persist one line item for the aggregation

NUMBER ALLOCATION:
  max-plus-one read-then-insert is a classic race. Steps 5-7 run in one
  serializable store transaction so two concurrent creations for the same
  user cannot allocate the same number. Cross-user creation is independent.

STATUS MACHINE:
  draft -> sent -> paid, with cancelled reachable from any non-terminal
  state. draft -> paid directly is legal: an operator may record a payment
  without having tracked the send. No backward moves. Legality lives in a
  single transition table, not scattered comparisons. Deletion is permitted
  only in draft, so a record that may already have been sent or paid cannot
  silently vanish.
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS TRANSITION TABLE
// =============================================================================

var legalTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft: {StatusSent, StatusPaid, StatusCancelled},
	StatusSent:  {StatusPaid, StatusCancelled},
	// paid and cancelled are terminal
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// =============================================================================
// INVOICER
// =============================================================================

type Invoicer struct {
	store    Store
	resolver *Resolver
	now      func() time.Time
}

func NewInvoicer(store Store) *Invoicer {
	return &Invoicer{store: store, resolver: NewResolver(store), now: time.Now}
}

// CreateInvoiceInput names what to aggregate.
type CreateInvoiceInput struct {
	UserID      UserID
	CompanyID   CompanyID
	PeriodStart Date
	PeriodEnd   Date
	Project     *ProjectID // nil aggregates every project bucket
	Concept     string
	IssueDate   *Date // nil defaults to today
}

// CreateInvoice aggregates the period into a new draft invoice.
func (iv *Invoicer) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	company, err := iv.resolver.Company(ctx, in.UserID, in.CompanyID)
	if err != nil {
		return Invoice{}, err
	}
	if in.Project != nil && *in.Project != NoProject {
		if _, err := iv.resolver.Project(ctx, in.UserID, in.CompanyID, *in.Project); err != nil {
			return Invoice{}, err
		}
	}
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() || in.PeriodStart.After(in.PeriodEnd) {
		return Invoice{}, &InvalidRangeError{Reason: "invalid invoice period"}
	}

	profile, err := iv.store.GetBillingProfile(ctx, in.UserID)
	if IsNotFound(err) {
		return Invoice{}, &PreconditionError{Reason: "billing profile not configured"}
	}
	if err != nil {
		return Invoice{}, err
	}

	entries, err := iv.store.ListEntries(ctx, EntryFilter{
		CompanyID: in.CompanyID,
		From:      &in.PeriodStart,
		To:        &in.PeriodEnd,
		Project:   in.Project,
	})
	if err != nil {
		return Invoice{}, err
	}
	if len(entries) == 0 {
		return Invoice{}, ErrEmptyPeriod
	}

	totalHours := decimal.Zero
	for _, e := range entries {
		totalHours = totalHours.Add(e.Hours)
	}
	totalAmount := totalHours.Mul(company.HourlyRate)

	issueDate := Today()
	if in.IssueDate != nil {
		issueDate = *in.IssueDate
	}

	invoice := Invoice{
		ID:          InvoiceID(uuid.NewString()),
		UserID:      in.UserID,
		CompanyID:   in.CompanyID,
		Status:      StatusDraft,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		IssueDate:   issueDate,
		TotalHours:  totalHours,
		HourlyRate:  company.HourlyRate,
		TotalAmount: totalAmount,
		Issuer:      snapshotIssuer(profile),
		Client:      snapshotClient(company),
		CreatedAt:   iv.now(),
	}

	item := InvoiceItem{
		ID:        uuid.NewString(),
		InvoiceID: invoice.ID,
		Concept:   in.Concept,
		Hours:     totalHours,
		Rate:      company.HourlyRate,
		Total:     totalAmount,
	}
	if in.Project != nil {
		item.ProjectID = *in.Project
	}

	// Number allocation and insert are one serializable transaction so two
	// concurrent creations for the same user cannot race to the same number.
	err = inTx(ctx, iv.store, func(s Store) error {
		max, err := s.MaxInvoiceNumber(ctx, in.UserID)
		if err != nil {
			return err
		}
		invoice.Number = FormatInvoiceNumber(max + 1)
		return s.CreateInvoice(ctx, invoice, []InvoiceItem{item})
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// FormatInvoiceNumber renders a sequence value as the zero-padded invoice
// number ("1" -> "001"). Values past 999 simply grow wider.
func FormatInvoiceNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}

func snapshotIssuer(p BillingProfile) IssuerSnapshot {
	return IssuerSnapshot{
		LegalName:        p.LegalName,
		IDType:           p.IDType,
		IDNumber:         p.IDNumber,
		Address:          p.Address,
		BankName:         p.BankName,
		BankAccount:      p.BankAccount,
		SignatureImage:   p.SignatureImage,
		LegalDeclaration: p.LegalDeclaration,
	}
}

func snapshotClient(c Company) ClientSnapshot {
	snap := ClientSnapshot{Name: c.Name}
	if c.Client != nil {
		snap.LegalName = c.Client.LegalName
		snap.TaxID = c.Client.TaxID
		snap.Address = c.Client.Address
		snap.Contact = c.Client.Contact
	}
	return snap
}

// =============================================================================
// STATUS AND LIFECYCLE
// =============================================================================

// Transition moves an owned invoice to a new status, enforcing the table.
func (iv *Invoicer) Transition(ctx context.Context, userID UserID, invoiceID InvoiceID, to InvoiceStatus) (Invoice, error) {
	if !to.Valid() {
		return Invoice{}, &TransitionError{To: to}
	}
	invoice, err := iv.get(ctx, userID, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if !CanTransition(invoice.Status, to) {
		return Invoice{}, &TransitionError{From: invoice.Status, To: to}
	}
	if err := iv.store.UpdateInvoiceStatus(ctx, invoiceID, to); err != nil {
		return Invoice{}, err
	}
	invoice.Status = to
	return invoice, nil
}

// Delete removes an invoice, permitted only while it is a draft.
func (iv *Invoicer) Delete(ctx context.Context, userID UserID, invoiceID InvoiceID) error {
	invoice, err := iv.get(ctx, userID, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status != StatusDraft {
		return &PreconditionError{Reason: fmt.Sprintf("only draft invoices can be deleted, this one is %s", invoice.Status)}
	}
	return iv.store.DeleteInvoice(ctx, invoiceID)
}

// Get returns an owned invoice with its line items.
func (iv *Invoicer) Get(ctx context.Context, userID UserID, invoiceID InvoiceID) (Invoice, []InvoiceItem, error) {
	invoice, err := iv.get(ctx, userID, invoiceID)
	if err != nil {
		return Invoice{}, nil, err
	}
	items, err := iv.store.ListInvoiceItems(ctx, invoiceID)
	if err != nil {
		return Invoice{}, nil, err
	}
	return invoice, items, nil
}

// List returns the user's invoices, oldest number first. A non-empty status
// narrows the result to that state; an unknown status is rejected.
func (iv *Invoicer) List(ctx context.Context, userID UserID, status InvoiceStatus) ([]Invoice, error) {
	if status != "" && !status.Valid() {
		return nil, &InvalidInputError{Field: "status", Value: string(status)}
	}
	invoices, err := iv.store.ListInvoices(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return invoices, nil
	}
	filtered := invoices[:0]
	for _, inv := range invoices {
		if inv.Status == status {
			filtered = append(filtered, inv)
		}
	}
	return filtered, nil
}

// get enforces the fail-closed ownership rule for invoices.
func (iv *Invoicer) get(ctx context.Context, userID UserID, invoiceID InvoiceID) (Invoice, error) {
	invoice, err := iv.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if invoice.UserID != userID {
		return Invoice{}, ErrNotFound
	}
	return invoice, nil
}
