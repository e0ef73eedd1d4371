package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	cronv3 "github.com/robfig/cron/v3"
)

type ScheduleFrequency string

const (
	FrequencyHourly  ScheduleFrequency = "hourly"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
	FrequencyCustom  ScheduleFrequency = "custom"
)

const scheduleDateLayout = "2006-01-02"

// WorkflowSchedule records when a workflow is meant to run. The engine never
// triggers it; it only validates the intent and derives NextRunAt.
type WorkflowSchedule struct {
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	Frequency      ScheduleFrequency `json:"frequency" yaml:"frequency"`
	Time           string            `json:"time,omitempty" yaml:"time"`
	Days           []string          `json:"days,omitempty" yaml:"days"`
	DayOfMonth     int               `json:"dayOfMonth,omitempty" yaml:"day_of_month"`
	CronExpression string            `json:"cronExpression,omitempty" yaml:"cron_expression"`
	Timezone       string            `json:"timezone,omitempty" yaml:"timezone"`
	StartDate      string            `json:"startDate,omitempty" yaml:"start_date"`
	EndDate        string            `json:"endDate,omitempty" yaml:"end_date"`
	NextRunAt      *time.Time        `json:"nextRunAt,omitempty" yaml:"-"`
}

var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var cronParser = cronv3.NewParser(cronv3.Minute | cronv3.Hour | cronv3.Dom | cronv3.Month | cronv3.Dow | cronv3.Descriptor)

func (s WorkflowSchedule) Clone() WorkflowSchedule {
	clone := s
	clone.Days = append([]string(nil), s.Days...)
	if s.NextRunAt != nil {
		next := *s.NextRunAt
		clone.NextRunAt = &next
	}
	return clone
}

// CronSpec renders the schedule as a five field cron expression.
func (s WorkflowSchedule) CronSpec() (string, error) {
	if s.Frequency == FrequencyHourly {
		return "0 * * * *", nil
	}
	if s.Frequency == FrequencyCustom {
		spec := strings.TrimSpace(s.CronExpression)
		if spec == "" {
			return "", NewValidationError("schedule.cronExpression", "required for custom frequency")
		}
		return spec, nil
	}

	hour, minute, err := parseClock(s.Time)
	if err != nil {
		return "", err
	}

	switch s.Frequency {
	case FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case FrequencyWeekly:
		if len(s.Days) == 0 {
			return "", NewValidationError("schedule.days", "at least one day is required for weekly frequency")
		}
		dows := make([]int, 0, len(s.Days))
		for _, day := range s.Days {
			dow, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
			if !ok {
				return "", NewValidationError("schedule.days", "unknown weekday %q", day)
			}
			dows = append(dows, dow)
		}
		sort.Ints(dows)
		parts := make([]string, len(dows))
		for i, dow := range dows {
			parts[i] = strconv.Itoa(dow)
		}
		return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(parts, ",")), nil
	case FrequencyMonthly:
		day := s.DayOfMonth
		if day == 0 {
			day = 1
		}
		if day < 1 || day > 31 {
			return "", NewValidationError("schedule.dayOfMonth", "must be between 1 and 31, got %d", s.DayOfMonth)
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, day), nil
	default:
		return "", NewValidationError("schedule.frequency", "unsupported frequency %q", s.Frequency)
	}
}

func (s WorkflowSchedule) Validate() error {
	if !s.Enabled && s.Frequency == "" {
		return nil
	}
	spec, err := s.CronSpec()
	if err != nil {
		return err
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return NewValidationError("schedule.cronExpression", "invalid cron expression %q: %v", spec, err)
	}
	if _, err := s.location(); err != nil {
		return err
	}

	start, err := parseScheduleDate("schedule.startDate", s.StartDate)
	if err != nil {
		return err
	}
	end, err := parseScheduleDate("schedule.endDate", s.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return NewValidationError("schedule.endDate", "must not be before startDate")
	}
	return nil
}

// NextRun returns the first activation strictly after from, honouring the
// start and end dates. ok is false when the schedule is disabled or has
// already ended.
func (s WorkflowSchedule) NextRun(from time.Time) (time.Time, bool, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, false, err
	}
	if !s.Enabled {
		return time.Time{}, false, nil
	}

	spec, _ := s.CronSpec()
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, false, NewValidationError("schedule.cronExpression", "invalid cron expression %q: %v", spec, err)
	}
	loc, _ := s.location()
	start, _ := parseScheduleDate("schedule.startDate", s.StartDate)
	end, _ := parseScheduleDate("schedule.endDate", s.EndDate)

	base := from.In(loc)
	if !start.IsZero() {
		startAt := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if startAt.After(base) {
			// Next is exclusive, step back so a match at midnight counts
			base = startAt.Add(-time.Nanosecond)
		}
	}

	next := schedule.Next(base)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	if !end.IsZero() {
		endAt := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		if !next.Before(endAt) {
			return time.Time{}, false, nil
		}
	}
	return next.UTC(), true, nil
}

// Resolve validates the schedule and returns a copy with NextRunAt set.
func (s WorkflowSchedule) Resolve(from time.Time) (WorkflowSchedule, error) {
	resolved := s.Clone()
	resolved.NextRunAt = nil

	next, ok, err := s.NextRun(from)
	if err != nil {
		return WorkflowSchedule{}, err
	}
	if ok {
		resolved.NextRunAt = &next
	}
	return resolved, nil
}

func (s WorkflowSchedule) location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, NewValidationError("schedule.timezone", "unknown timezone %q", s.Timezone)
	}
	return loc, nil
}

func parseClock(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, nil
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, NewValidationError("schedule.time", "expected HH:MM, got %q", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func parseScheduleDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(scheduleDateLayout, value)
	if err != nil {
		return time.Time{}, NewValidationError(field, "expected YYYY-MM-DD, got %q", value)
	}
	return parsed, nil
}
