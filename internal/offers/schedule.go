package offers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// Schedule is a weekly availability window evaluated in merchant local time.
// An empty day set means every day; empty bounds mean all day.
type Schedule struct {
	Days  []enums.Weekday
	Start time.Duration
	End   time.Duration
}

// ParseSchedule validates a stored schedule. A nil input yields an always-open schedule.
func ParseSchedule(raw *models.AvailabilitySchedule) (Schedule, error) {
	if raw == nil {
		return Schedule{}, nil
	}
	var s Schedule
	for _, tag := range raw.Days {
		day, err := enums.ParseWeekday(tag)
		if err != nil {
			return Schedule{}, err
		}
		s.Days = append(s.Days, day)
	}

	var err error
	if s.Start, err = parseClock(raw.Start); err != nil {
		return Schedule{}, fmt.Errorf("start: %w", err)
	}
	if s.End, err = parseClock(raw.End); err != nil {
		return Schedule{}, fmt.Errorf("end: %w", err)
	}
	return s, nil
}

func parseClock(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("invalid time of day %q", value)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// AllDay reports whether the schedule has no time bounds.
func (s Schedule) AllDay() bool {
	return s.Start == 0 && (s.End == 0 || s.End == 24*time.Hour)
}

// Allows reports whether at, converted to loc, falls inside the schedule.
// A window whose end precedes its start runs past midnight and belongs to the
// day it started on.
func (s Schedule) Allows(at time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)

	if s.AllDay() {
		return s.hasDay(local.Weekday())
	}

	end := s.End
	if end == 0 {
		end = 24 * time.Hour
	}
	if s.Start < end {
		return s.hasDay(local.Weekday()) && offset >= s.Start && offset < end
	}

	// overnight window
	if offset >= s.Start {
		return s.hasDay(local.Weekday())
	}
	if offset < end {
		return s.hasDay(midnight.AddDate(0, 0, -1).Weekday())
	}
	return false
}

func (s Schedule) hasDay(day time.Weekday) bool {
	if len(s.Days) == 0 {
		return true
	}
	tag := enums.WeekdayOf(day)
	for _, d := range s.Days {
		if d == tag {
			return true
		}
	}
	return false
}
