package datastore

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var scheduleRegex = regexp.MustCompile(`^every\s+(\d+)\s+(day|days|week|weeks|month|months)$`)

// ParseScheduleInterval converts a fertilizer schedule string into a duration.
// Accepted forms: "weekly", "biweekly", "monthly", "every N days|weeks|months".
// Months are approximated as 30 days.
func ParseScheduleInterval(schedule string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(schedule))
	switch s {
	case "":
		return 0, false
	case "daily":
		return 24 * time.Hour, true
	case "weekly":
		return 7 * 24 * time.Hour, true
	case "biweekly":
		return 14 * 24 * time.Hour, true
	case "monthly":
		return 30 * 24 * time.Hour, true
	}

	m := scheduleRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}

	var unit time.Duration
	switch {
	case strings.HasPrefix(m[2], "day"):
		unit = 24 * time.Hour
	case strings.HasPrefix(m[2], "week"):
		unit = 7 * 24 * time.Hour
	case strings.HasPrefix(m[2], "month"):
		unit = 30 * 24 * time.Hour
	}
	return time.Duration(n) * unit, true
}
