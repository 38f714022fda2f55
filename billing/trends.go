/*
trends.go - Read-side trend analytics

PURPOSE:
  Week-over-week and month-over-month hour/earnings deltas plus per-weekday
  productivity, derived purely from a slice of entries. No storage access,
  no mutation: callers load the entries, this file does arithmetic.

DEFINITIONS:
  - Weeks are Monday-Sunday, relative to asOf
  - A period's workingDays is the COUNT OF ENTRIES, not distinct calendar
    days (two project buckets on the same date are two working "slots")
  - Trend direction is stable while the delta stays under a threshold, so
    noise never reads as a trend; the thresholds are named values that
    callers can override, not magic numbers inside comparisons
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// THRESHOLDS AND DIRECTIONS
// =============================================================================

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// TrendThresholds are the minimum absolute hour deltas that count as a real
// trend rather than noise.
type TrendThresholds struct {
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
}

// DefaultTrendThresholds: under 1h week over week, or 2h month over month,
// reads as stable.
func DefaultTrendThresholds() TrendThresholds {
	return TrendThresholds{
		Weekly:  decimal.NewFromInt(1),
		Monthly: decimal.NewFromInt(2),
	}
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// PeriodStats summarizes one period of entries.
type PeriodStats struct {
	TotalHours            decimal.Decimal
	WorkingDays           int
	AvgHoursPerWorkingDay decimal.Decimal
	TotalEarnings         decimal.Decimal
}

// TrendReport is the full dashboard-facing derivation.
type TrendReport struct {
	ThisWeek  PeriodStats
	LastWeek  PeriodStats
	ThisMonth PeriodStats
	LastMonth PeriodStats

	WeeklyTrend  TrendDirection
	MonthlyTrend TrendDirection

	// WeekdayHours is total hours per canonical weekday over all entries,
	// the raw "which days am I productive on" signal.
	WeekdayHours map[Weekday]decimal.Decimal
}

// =============================================================================
// ANALYSIS
// =============================================================================

// AnalyzeTrends derives the report from entries as of the given date.
// Pure function: the entries slice is not modified.
func AnalyzeTrends(entries []HourEntry, hourlyRate decimal.Decimal, asOf Date, thresholds TrendThresholds) TrendReport {
	weekStart := asOf.StartOfWeek()
	weekEnd := weekStart.AddDays(6)
	lastWeekStart := weekStart.AddDays(-7)
	lastWeekEnd := weekStart.AddDays(-1)

	monthStart := asOf.StartOfMonth()
	monthEnd := asOf.EndOfMonth()
	lastMonthStart := monthStart.AddMonths(-1)
	lastMonthEnd := monthStart.AddDays(-1)

	report := TrendReport{
		ThisWeek:     statsBetween(entries, weekStart, weekEnd, hourlyRate),
		LastWeek:     statsBetween(entries, lastWeekStart, lastWeekEnd, hourlyRate),
		ThisMonth:    statsBetween(entries, monthStart, monthEnd, hourlyRate),
		LastMonth:    statsBetween(entries, lastMonthStart, lastMonthEnd, hourlyRate),
		WeekdayHours: make(map[Weekday]decimal.Decimal, 7),
	}

	for _, e := range entries {
		wd := e.Date.Weekday()
		report.WeekdayHours[wd] = report.WeekdayHours[wd].Add(e.Hours)
	}

	report.WeeklyTrend = direction(report.ThisWeek.TotalHours.Sub(report.LastWeek.TotalHours), thresholds.Weekly)
	report.MonthlyTrend = direction(report.ThisMonth.TotalHours.Sub(report.LastMonth.TotalHours), thresholds.Monthly)
	return report
}

func statsBetween(entries []HourEntry, from, to Date, hourlyRate decimal.Decimal) PeriodStats {
	var stats PeriodStats
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		stats.TotalHours = stats.TotalHours.Add(e.Hours)
		stats.WorkingDays++
	}
	if stats.WorkingDays > 0 {
		stats.AvgHoursPerWorkingDay = stats.TotalHours.
			Div(decimal.NewFromInt(int64(stats.WorkingDays))).
			Round(averagePrecision)
	}
	stats.TotalEarnings = stats.TotalHours.Mul(hourlyRate)
	return stats
}

func direction(delta, threshold decimal.Decimal) TrendDirection {
	if delta.Abs().LessThan(threshold) {
		return TrendStable
	}
	if delta.IsPositive() {
		return TrendUp
	}
	return TrendDown
}
