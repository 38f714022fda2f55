package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/billable-engine/billing"
)

// =============================================================================
// COMPUTE
// =============================================================================

func TestComputeAverages_GroupsByCanonicalWeekday(t *testing.T) {
	// GIVEN: two Mondays (8h, 6h) and one Wednesday (4h)
	// WHEN:  computing averages over the full history
	// THEN:  Monday averages 7, Wednesday 4, every other weekday is absent
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2024-01-01", 8) // Monday
	f.seedEntry(t, billing.NoProject, "2024-01-08", 6) // Monday
	f.seedEntry(t, billing.NoProject, "2024-01-03", 4) // Wednesday

	eng := billing.NewAverageEngine(f.store)
	stats, err := eng.ComputeAverages(context.Background(), owner, f.company, nil)
	require.NoError(t, err)

	require.Len(t, stats, 2)
	assert.Equal(t, "7", stats[billing.Monday].Average.String())
	assert.Equal(t, 2, stats[billing.Monday].EntryCount)
	assert.Equal(t, "14", stats[billing.Monday].TotalHours.String())
	assert.Equal(t, "4", stats[billing.Wednesday].Average.String())
	_, ok := stats[billing.Friday]
	assert.False(t, ok, "weekday without history must not appear")
}

func TestComputeAverages_RoundsToTwoPlaces(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2024-01-02", 8) // Tuesday
	f.seedEntry(t, billing.NoProject, "2024-01-09", 8)
	f.seedEntry(t, billing.NoProject, "2024-01-16", 6)

	eng := billing.NewAverageEngine(f.store)
	stats, err := eng.ComputeAverages(context.Background(), owner, f.company, nil)
	require.NoError(t, err)

	// 22 / 3 = 7.333...
	assert.Equal(t, "7.33", stats[billing.Tuesday].Average.String())
}

func TestComputeAverages_ExcludeMonth(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2024-01-01", 8) // Monday, January
	f.seedEntry(t, billing.NoProject, "2024-02-05", 2) // Monday, February

	eng := billing.NewAverageEngine(f.store)
	feb := billing.YearMonth{Year: 2024, Month: 2}
	stats, err := eng.ComputeAverages(context.Background(), owner, f.company, &feb)
	require.NoError(t, err)

	assert.Equal(t, "8", stats[billing.Monday].Average.String())
	assert.Equal(t, 1, stats[billing.Monday].EntryCount)
}

func TestComputeAverages_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	eng := billing.NewAverageEngine(f.store)
	_, err := eng.ComputeAverages(context.Background(), intruder, f.company, nil)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

// =============================================================================
// FILL
// =============================================================================

func TestFillWithAverages_SkipsWeekdaysWithoutHistory(t *testing.T) {
	// History only covers Mondays, so a Mon-Fri fill range produces exactly
	// the Mondays and leaves the rest of the week empty. No invented data.
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2023-12-04", 8) // Monday
	f.seedEntry(t, billing.NoProject, "2023-12-11", 6) // Monday

	eng := billing.NewAverageEngine(f.store)
	changes, err := eng.FillWithAverages(context.Background(), owner, f.company, billing.NoProject,
		d("2024-01-01"), d("2024-01-14"), false)
	require.NoError(t, err)

	require.Len(t, changes, 2, "two Mondays in the range")
	for _, c := range changes {
		assert.Equal(t, billing.Monday, c.Date.Weekday())
		assert.Equal(t, "7", c.NewValue.String())
		assert.False(t, c.Existed)
	}
}

func TestFillWithAverages_DefaultPreservesExisting(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2023-12-04", 8) // Monday history
	f.seedEntry(t, billing.NoProject, "2024-01-08", 3) // Monday inside the range

	eng := billing.NewAverageEngine(f.store)
	ctx := context.Background()
	changes, err := eng.FillWithAverages(ctx, owner, f.company, billing.NoProject,
		d("2024-01-01"), d("2024-01-14"), false)
	require.NoError(t, err)

	// Only the empty Monday (Jan 1) was filled; Jan 8 kept its value.
	require.Len(t, changes, 1)
	assert.Equal(t, "2024-01-01", changes[0].Date.String())
	entry, err := f.store.GetEntry(ctx, billing.EntryKey{
		CompanyID: f.company, ProjectID: billing.NoProject, Date: d("2024-01-08"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3", entry.Hours.String())
}

func TestFillWithAverages_OverwriteReplacesExisting(t *testing.T) {
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2023-12-04", 8)
	f.seedEntry(t, billing.NoProject, "2024-01-08", 3)

	eng := billing.NewAverageEngine(f.store)
	ctx := context.Background()
	changes, err := eng.FillWithAverages(ctx, owner, f.company, billing.NoProject,
		d("2024-01-01"), d("2024-01-14"), true)
	require.NoError(t, err)

	require.Len(t, changes, 2, "both Mondays written, one as an overwrite")
	entry, err := f.store.GetEntry(ctx, billing.EntryKey{
		CompanyID: f.company, ProjectID: billing.NoProject, Date: d("2024-01-08"),
	})
	require.NoError(t, err)
	assert.Equal(t, "8", entry.Hours.String())
}

func TestFillWithAverages_RangeEntriesDoNotFeedTheirOwnFill(t *testing.T) {
	// GIVEN: Monday history of 8h outside the range and a 2h Monday inside it
	// WHEN:  filling with overwrite
	// THEN:  the average is 8 (outside history only), not pulled toward 2
	f := newFixture(t)
	f.seedEntry(t, billing.NoProject, "2023-12-04", 8)
	f.seedEntry(t, billing.NoProject, "2024-01-01", 2)

	eng := billing.NewAverageEngine(f.store)
	changes, err := eng.FillWithAverages(context.Background(), owner, f.company, billing.NoProject,
		d("2024-01-01"), d("2024-01-07"), true)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "8", changes[0].NewValue.String())
	assert.Equal(t, "2", changes[0].OldValue.String())
}

func TestFillWithAverages_EmptyHistoryFillsNothing(t *testing.T) {
	f := newFixture(t)
	eng := billing.NewAverageEngine(f.store)
	changes, err := eng.FillWithAverages(context.Background(), owner, f.company, billing.NoProject,
		d("2024-01-01"), d("2024-01-31"), false)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestFillWithAverages_InvertedRangeFails(t *testing.T) {
	f := newFixture(t)
	eng := billing.NewAverageEngine(f.store)
	_, err := eng.FillWithAverages(context.Background(), owner, f.company, billing.NoProject,
		d("2024-01-31"), d("2024-01-01"), false)
	assert.ErrorIs(t, err, billing.ErrInvalidRange)
}
