/*
averages.go - Weekday average engine

PURPOSE:
  Computes per-weekday historical averages of a company's hour entries and
  uses them to fill gaps in a date range. The averages are derived data:
  recomputable at any time, never a source of truth.

NOT A SET-MODE BULK:
  FillWithAverages looks like bulk reconciliation but has different rules
  on purpose:
  - a weekday with zero history is skipped, never invented
  - an existing entry is only replaced when overwrite=true; the default
    never destroys user-entered data

CIRCULARITY:
  Filling a billing month from averages that include that same month would
  feed the fill back into itself. ComputeAverages therefore accepts a month
  to exclude, and FillWithAverages always excludes the entries inside the
  range it is about to fill.

SEE ALSO:
  - reconcile.go: The strict single-entry state transition
  - trends.go: The other read-side derivation over entries
*/
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// averagePrecision is the number of decimal places averages are rounded to.
// Finer than quarter-hour granularity, coarse enough to read.
const averagePrecision = 2

type AverageEngine struct {
	store    Store
	resolver *Resolver
	now      func() time.Time
}

func NewAverageEngine(store Store) *AverageEngine {
	return &AverageEngine{store: store, resolver: NewResolver(store), now: time.Now}
}

// =============================================================================
// COMPUTE
// =============================================================================

// ComputeAverages groups the company's whole entry history by canonical
// weekday. excludeMonth, when non-nil, drops that month's entries from the
// aggregation (the current billing month, typically).
func (a *AverageEngine) ComputeAverages(ctx context.Context, userID UserID, companyID CompanyID, excludeMonth *YearMonth) (map[Weekday]WeekdayStats, error) {
	if _, err := a.resolver.Company(ctx, userID, companyID); err != nil {
		return nil, err
	}

	exclude := func(Date) bool { return false }
	if excludeMonth != nil {
		exclude = excludeMonth.Contains
	}
	return a.aggregate(ctx, companyID, exclude)
}

func (a *AverageEngine) aggregate(ctx context.Context, companyID CompanyID, exclude func(Date) bool) (map[Weekday]WeekdayStats, error) {
	entries, err := a.store.ListEntries(ctx, EntryFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}

	stats := make(map[Weekday]WeekdayStats, 7)
	for _, e := range entries {
		if exclude(e.Date) {
			continue
		}
		wd := e.Date.Weekday()
		s := stats[wd]
		s.TotalHours = s.TotalHours.Add(e.Hours)
		s.EntryCount++
		stats[wd] = s
	}
	for wd, s := range stats {
		s.Average = s.TotalHours.Div(decimal.NewFromInt(int64(s.EntryCount))).Round(averagePrecision)
		stats[wd] = s
	}
	return stats, nil
}

// =============================================================================
// FILL
// =============================================================================

// FillWithAverages walks [start, end] and writes each date's weekday average
// into the given project bucket. Dates whose weekday has no history are
// skipped silently - zero history is a legitimate state, not an error.
// Existing entries are only replaced when overwrite is true.
//
// Averages are computed over history OUTSIDE the fill range, so a partially
// filled month never feeds its own fill.
func (a *AverageEngine) FillWithAverages(ctx context.Context, userID UserID, companyID CompanyID, projectID ProjectID, start, end Date, overwrite bool) ([]Change, error) {
	if _, err := a.resolver.EntryScope(ctx, userID, companyID, projectID); err != nil {
		return nil, err
	}

	dates, err := ExpandRange(start, end, nil)
	if err != nil {
		return nil, err
	}

	inRange := func(d Date) bool { return d.AfterOrEqual(start) && d.BeforeOrEqual(end) }
	averages, err := a.aggregate(ctx, companyID, inRange)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for _, date := range dates {
		stat, ok := averages[date.Weekday()]
		if !ok || stat.EntryCount == 0 {
			continue
		}

		key := EntryKey{CompanyID: companyID, ProjectID: projectID, Date: date}
		var change *Change
		err := inTx(ctx, a.store, func(s Store) error {
			var err error
			change, err = a.fillOne(ctx, s, key, stat.Average, overwrite)
			return err
		})
		if err != nil {
			return changes, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

// fillOne writes the average into one slot. A nil Change means the date was
// left alone (existing entry, overwrite off).
func (a *AverageEngine) fillOne(ctx context.Context, s Store, key EntryKey, average decimal.Decimal, overwrite bool) (*Change, error) {
	now := a.now()

	existing, err := s.GetEntry(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		entry := HourEntry{
			CompanyID: key.CompanyID,
			ProjectID: key.ProjectID,
			Date:      key.Date,
			Hours:     average,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.PutEntry(ctx, entry); err != nil {
			return nil, err
		}
		return &Change{Date: key.Date, OldValue: decimal.Zero, NewValue: average}, nil

	case err != nil:
		return nil, err
	}

	if !overwrite {
		return nil, nil
	}
	old := existing.Hours
	existing.Hours = average
	existing.UpdatedAt = now
	if err := s.PutEntry(ctx, existing); err != nil {
		return nil, err
	}
	return &Change{Date: key.Date, OldValue: old, NewValue: average, Existed: true}, nil
}
