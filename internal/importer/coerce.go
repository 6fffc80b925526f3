package importer

import (
	"fmt"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are assumed to be in
// the previous century.
const TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// cleanCell strips whitespace, surrounding quotes and Excel formula prefixes
// from a CSV cell.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	// Excel exports sometimes prefix cells with ="..." to force text
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	}
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

// cleanHeader normalizes a header cell for case-insensitive matching,
// dropping a UTF-8 byte order mark left by spreadsheet exports.
func cleanHeader(s string) string {
	return strings.ToLower(cleanCell(strings.TrimPrefix(s, "\uFEFF")))
}

// parseDate parses a date cell, trying unambiguous 4-digit-year layouts
// before 2-digit-year layouts with pivot adjustment.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Go maps 2-digit years 00-68 to 2000-2068; apply a consistent pivot
		if t.Year() > pivotYear {
			t = t.AddDate(-100, 0, 0)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseBool parses a boolean cell.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized boolean %q", s)
	}
}

// matchEnum matches a cell against allowed values case-insensitively and
// returns the canonical form.
func matchEnum(s string, allowed []string) (string, error) {
	for _, v := range allowed {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid value %q, expected one of %s", s, strings.Join(allowed, ", "))
}
