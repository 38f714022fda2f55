/*
calendar.go - Range expansion and weekday-name parsing

PURPOSE:
  Bulk operations take (start, end, weekday filter) and need a concrete,
  ordered list of dates to work on. This file turns that triple into dates
  and normalizes free-form weekday tokens into canonical indexes.

WEEKDAY ALIASES:
  The alias table accepts English full names, common English abbreviations,
  and Spanish names with and without accents (the product's original user
  base is Spanish-speaking). "mon", "Monday" and "Lunes" are the same
  filter entry. Duplicate tokens collapse to a set; an unknown token is an
  InvalidWeekdayError naming the offender.

SEE ALSO:
  - date.go: Date and the canonical Monday=0 numbering
  - reconcile.go: Bulk reconciliation over expanded ranges
*/
package billing

import (
	"sort"
	"strings"
)

// =============================================================================
// WEEKDAY ALIAS TABLE
// =============================================================================

var weekdayAliases = map[string]Weekday{
	// English
	"monday": Monday, "mon": Monday, "mo": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "tues": Tuesday, "tu": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "we": Wednesday,
	"thursday": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "th": Thursday,
	"friday": Friday, "fri": Friday, "fr": Friday,
	"saturday": Saturday, "sat": Saturday, "sa": Saturday,
	"sunday": Sunday, "sun": Sunday, "su": Sunday,

	// Spanish, with and without accents
	"lunes": Monday, "lun": Monday, "lu": Monday,
	"martes": Tuesday, "mar": Tuesday, "ma": Tuesday,
	"miercoles": Wednesday, "miércoles": Wednesday, "mie": Wednesday, "mié": Wednesday, "mi": Wednesday,
	"jueves": Thursday, "jue": Thursday, "ju": Thursday,
	"viernes": Friday, "vie": Friday, "vi": Friday,
	"sabado": Saturday, "sábado": Saturday, "sab": Saturday, "sáb": Saturday,
	"domingo": Sunday, "dom": Sunday, "do": Sunday,
}

// ParseWeekday normalizes one free-form token to its canonical index.
func ParseWeekday(token string) (Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if wd, ok := weekdayAliases[normalized]; ok {
		return wd, nil
	}
	return 0, &InvalidWeekdayError{Token: token}
}

// ParseWeekdays normalizes a list of tokens into a deduplicated, sorted set
// of canonical weekdays. Order of the input does not matter. An empty input
// yields an empty set, which filters nothing.
func ParseWeekdays(tokens []string) ([]Weekday, error) {
	seen := make(map[Weekday]bool, len(tokens))
	for _, token := range tokens {
		wd, err := ParseWeekday(token)
		if err != nil {
			return nil, err
		}
		seen[wd] = true
	}

	result := make([]Weekday, 0, len(seen))
	for wd := range seen {
		result = append(result, wd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// =============================================================================
// RANGE EXPANSION
// =============================================================================

// ExpandRange returns every date in [start, end] whose weekday is in the
// filter, ascending, endpoints inclusive. An empty filter keeps all days.
// start after end is an InvalidRangeError.
func ExpandRange(start, end Date, weekdays []Weekday) ([]Date, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &InvalidRangeError{Reason: "start and end dates are required"}
	}
	if start.After(end) {
		return nil, &InvalidRangeError{Reason: "start date " + start.String() + " is after end date " + end.String()}
	}

	keep := func(Weekday) bool { return true }
	if len(weekdays) > 0 {
		set := make(map[Weekday]bool, len(weekdays))
		for _, wd := range weekdays {
			set[wd] = true
		}
		keep = func(wd Weekday) bool { return set[wd] }
	}

	var dates []Date
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if keep(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// ExpandRangeTokens is ExpandRange with the filter still in token form, for
// callers that pass user input straight through.
func ExpandRangeTokens(start, end Date, tokens []string) ([]Date, error) {
	weekdays, err := ParseWeekdays(tokens)
	if err != nil {
		return nil, err
	}
	return ExpandRange(start, end, weekdays)
}
