// Package schedule computes reminder occurrences from a medication's
// time-of-day and weekday recurrence rule.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pilltick/backend/pkg/model"
)

// ParseReminderTime parses a 24-hour "HH:MM" string
func ParseReminderTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid reminder time %q", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in reminder time %q", s)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in reminder time %q", s)
	}

	return hour, minute, nil
}

// OccurrencesWithin computes every occurrence of med's reminder strictly
// after from and at most from+horizon, in ascending order. A pure function
// of its arguments: an empty weekday set or an unparseable reminder time
// yields an empty sequence rather than an error.
func OccurrencesWithin(med model.Medication, from time.Time, horizon time.Duration) []time.Time {
	if len(med.ReminderDays) == 0 || horizon <= 0 {
		return nil
	}

	hour, minute, err := ParseReminderTime(med.ReminderTime)
	if err != nil {
		return nil
	}

	days := make(map[int]bool, len(med.ReminderDays))
	for _, d := range med.ReminderDays {
		days[d] = true
	}

	end := from.Add(horizon)
	maxOffset := int(horizon / (24 * time.Hour))
	if horizon%(24*time.Hour) != 0 {
		maxOffset++
	}

	var occurrences []time.Time
	for offset := 0; offset <= maxOffset; offset++ {
		day := from.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, from.Location())

		if !candidate.After(from) || candidate.After(end) {
			continue
		}
		if !days[int(candidate.Weekday())] {
			continue
		}

		occurrences = append(occurrences, candidate)
	}

	return occurrences
}
