package enums

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the tag used in offer availability schedules.
type Weekday string

const (
	WeekdayMonday    Weekday = "monday"
	WeekdayTuesday   Weekday = "tuesday"
	WeekdayWednesday Weekday = "wednesday"
	WeekdayThursday  Weekday = "thursday"
	WeekdayFriday    Weekday = "friday"
	WeekdaySaturday  Weekday = "saturday"
	WeekdaySunday    Weekday = "sunday"
)

var weekdayByTime = map[time.Weekday]Weekday{
	time.Monday:    WeekdayMonday,
	time.Tuesday:   WeekdayTuesday,
	time.Wednesday: WeekdayWednesday,
	time.Thursday:  WeekdayThursday,
	time.Friday:    WeekdayFriday,
	time.Saturday:  WeekdaySaturday,
	time.Sunday:    WeekdaySunday,
}

// WeekdayOf maps a time.Weekday to its schedule tag.
func WeekdayOf(day time.Weekday) Weekday {
	return weekdayByTime[day]
}

// IsValid reports whether the value is a known Weekday.
func (w Weekday) IsValid() bool {
	for _, candidate := range weekdayByTime {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWeekday accepts any casing of the weekday tag.
func ParseWeekday(value string) (Weekday, error) {
	day := Weekday(strings.ToLower(strings.TrimSpace(value)))
	if !day.IsValid() {
		return "", fmt.Errorf("invalid weekday %q", value)
	}
	return day, nil
}
