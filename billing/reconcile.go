/*
reconcile.go - Entry reconciliation engine

PURPOSE:
  The one code path allowed to create or modify hour entries. Given a
  target date and a proposed hours value, decides whether to insert,
  replace, accumulate, or reject, under an explicit conflict-resolution
  mode. Everything else in the system (bulk fills, API edits, average
  backfill) funnels through here or respects the same key invariant.

MODES:
  set        - overwrite unconditionally (insert if absent)
  accumulate - insert if absent; otherwise add to the existing value and
               re-check the [0,24] bound. A sum past the bound fails the
               whole date and leaves it untouched - no clamping.
  error      - insert only if absent; an existing entry is an
               AlreadyExistsError naming the date and current value.

BULK SEMANTICS:
  Dates are processed independently; one date's failure never corrupts
  another's. Two batch policies exist and both are supported:
  - skip-existing: AlreadyExists becomes a silent no-op (recorded in
    Skipped), the batch continues
  - fail-fast: the first failure stops the batch and is returned as the
    batch error, alongside the partial result

CONCURRENCY:
  Each date's read-modify-write runs inside a store transaction, so a
  concurrent accumulate on the same key cannot lose an update and two
  error-mode inserts cannot both succeed.

SEE ALSO:
  - calendar.go: Expansion of (start, end, weekday filter) into dates
  - averages.go: Gap filling, which is deliberately NOT a set-mode bulk
*/
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MODES
// =============================================================================

type Mode string

const (
	ModeSet        Mode = "set"
	ModeAccumulate Mode = "accumulate"
	ModeError      Mode = "error"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeSet, ModeAccumulate, ModeError:
		return true
	}
	return false
}

// =============================================================================
// RESULTS
// =============================================================================

// Change reports what a reconciliation did to one date. OldValue is zero
// when the date had no prior entry; Existed distinguishes that from an
// explicit zero-hours entry.
type Change struct {
	Date     Date
	OldValue decimal.Decimal
	NewValue decimal.Decimal
	Existed  bool
}

// Failure pairs a date with the reason it was not changed.
type Failure struct {
	Date   Date
	Reason error
}

// BulkResult is the per-date outcome of a range reconciliation.
type BulkResult struct {
	Changes  []Change
	Skipped  []Date
	Failures []Failure
}

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	store    Store
	resolver *Resolver
	now      func() time.Time
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store, resolver: NewResolver(store), now: time.Now}
}

// Reconcile applies one hours value to one date under the given mode.
// Ownership of the (company, project) scope is checked first.
func (r *Reconciler) Reconcile(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID, date Date, hours decimal.Decimal, description string, mode Mode) (Change, error) {
	if !mode.Valid() {
		return Change{}, &InvalidInputError{Field: "mode", Value: string(mode)}
	}
	if date.IsZero() {
		return Change{}, &InvalidRangeError{Reason: "date is required"}
	}
	if !validHours(hours) {
		return Change{}, &OutOfBoundsError{Date: date, Resulting: hours}
	}
	if _, err := r.resolver.EntryScope(ctx, userID, companyID, projectID); err != nil {
		return Change{}, err
	}

	key := EntryKey{CompanyID: companyID, ProjectID: projectID, Date: date}

	var change Change
	err := inTx(ctx, r.store, func(s Store) error {
		var err error
		change, err = r.apply(ctx, s, key, hours, description, mode)
		return err
	})
	return change, err
}

// apply is the core state transition. It runs inside a transaction so the
// get/put pair is atomic per key.
func (r *Reconciler) apply(ctx context.Context, s Store, key EntryKey, hours decimal.Decimal, description string, mode Mode) (Change, error) {
	existing, err := s.GetEntry(ctx, key)
	switch {
	case err == nil:
		return r.applyExisting(ctx, s, existing, hours, description, mode)
	case errors.Is(err, ErrNotFound):
		return r.insert(ctx, s, key, hours, description)
	default:
		return Change{}, err
	}
}

func (r *Reconciler) insert(ctx context.Context, s Store, key EntryKey, hours decimal.Decimal, description string) (Change, error) {
	now := r.now()
	entry := HourEntry{
		CompanyID:   key.CompanyID,
		ProjectID:   key.ProjectID,
		Date:        key.Date,
		Hours:       hours,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.PutEntry(ctx, entry); err != nil {
		return Change{}, err
	}
	return Change{Date: key.Date, OldValue: decimal.Zero, NewValue: hours}, nil
}

func (r *Reconciler) applyExisting(ctx context.Context, s Store, existing HourEntry, hours decimal.Decimal, description string, mode Mode) (Change, error) {
	old := existing.Hours

	var next decimal.Decimal
	switch mode {
	case ModeSet:
		next = hours
	case ModeAccumulate:
		next = old.Add(hours)
		if !validHours(next) {
			return Change{}, &OutOfBoundsError{Date: existing.Date, Resulting: next}
		}
	case ModeError:
		return Change{}, &AlreadyExistsError{Date: existing.Date, Hours: old}
	}

	existing.Hours = next
	if description != "" {
		existing.Description = description
	}
	existing.UpdatedAt = r.now()
	if err := s.PutEntry(ctx, existing); err != nil {
		return Change{}, err
	}
	return Change{Date: existing.Date, OldValue: old, NewValue: next, Existed: true}, nil
}

// =============================================================================
// BULK RECONCILIATION
// =============================================================================

// BulkRequest reconciles the same hours value over an expanded date range.
type BulkRequest struct {
	UserID      UserID
	CompanyID   CompanyID
	ProjectID   ProjectID
	Start       Date
	End         Date
	Weekdays    []string // free-form tokens, see calendar.go
	Hours       decimal.Decimal
	Description string
	Mode        Mode

	// SkipExisting turns AlreadyExists failures into silent no-ops.
	SkipExisting bool
	// FailFast stops the batch at the first failure and returns it as the
	// batch error. Without it, failures are collected and the batch runs on.
	FailFast bool
}

// ReconcileRange applies the request date by date. The returned BulkResult
// always reflects everything processed, even when FailFast aborts early.
func (r *Reconciler) ReconcileRange(ctx context.Context, req BulkRequest) (BulkResult, error) {
	var result BulkResult

	if !req.Mode.Valid() {
		return result, &InvalidInputError{Field: "mode", Value: string(req.Mode)}
	}
	if !validHours(req.Hours) {
		return result, &OutOfBoundsError{Date: req.Start, Resulting: req.Hours}
	}
	if _, err := r.resolver.EntryScope(ctx, req.UserID, req.CompanyID, req.ProjectID); err != nil {
		return result, err
	}

	dates, err := ExpandRangeTokens(req.Start, req.End, req.Weekdays)
	if err != nil {
		return result, err
	}

	for _, date := range dates {
		key := EntryKey{CompanyID: req.CompanyID, ProjectID: req.ProjectID, Date: date}

		var change Change
		err := inTx(ctx, r.store, func(s Store) error {
			var err error
			change, err = r.apply(ctx, s, key, req.Hours, req.Description, req.Mode)
			return err
		})

		switch {
		case err == nil:
			result.Changes = append(result.Changes, change)
		case req.SkipExisting && errors.Is(err, ErrAlreadyExists):
			result.Skipped = append(result.Skipped, date)
		default:
			result.Failures = append(result.Failures, Failure{Date: date, Reason: err})
			if req.FailFast {
				return result, err
			}
		}
	}
	return result, nil
}

// =============================================================================
// DIRECT ENTRY ACCESS (ownership-checked reads and deletes)
// =============================================================================

// Entries lists a company's entries in [from, to], optionally limited to one
// project bucket. Nil bounds are open-ended.
func (r *Reconciler) Entries(ctx context.Context, userID UserID, companyID CompanyID, from, to *Date, project *ProjectID) ([]HourEntry, error) {
	if _, err := r.resolver.Company(ctx, userID, companyID); err != nil {
		return nil, err
	}
	return r.store.ListEntries(ctx, EntryFilter{CompanyID: companyID, From: from, To: to, Project: project})
}

// DeleteEntry removes one entry by key.
func (r *Reconciler) DeleteEntry(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID, date Date) error {
	if _, err := r.resolver.EntryScope(ctx, userID, companyID, projectID); err != nil {
		return err
	}
	return r.store.DeleteEntry(ctx, EntryKey{CompanyID: companyID, ProjectID: projectID, Date: date})
}
