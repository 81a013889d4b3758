package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // the guild zone must resolve on hosts without zoneinfo

	"guildbot/models"

	"github.com/robfig/cron/v3"
)

// RunAtLayout is the input format of one-shot announcement times
const RunAtLayout = "02.01.2006 15:04"

// ErrInvalidSchedule is returned for malformed schedule input
var ErrInvalidSchedule = errors.New("invalid schedule")

var weekdayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Trigger computes fire times for a job
type Trigger interface {
	// Next returns the first fire time after from; the zero time means the job is done
	Next(from time.Time) time.Time

	// Repeats reports whether the job stays registered after firing
	Repeats() bool
}

type cronTrigger struct {
	schedule cron.Schedule
}

func (t cronTrigger) Next(from time.Time) time.Time {
	return t.schedule.Next(from)
}

func (t cronTrigger) Repeats() bool {
	return true
}

// onceTrigger always answers with its instant, so a time missed during downtime fires as soon as it is armed
type onceTrigger struct {
	at time.Time
}

func (t onceTrigger) Next(time.Time) time.Time {
	return t.at
}

func (t onceTrigger) Repeats() bool {
	return false
}

// TriggerFor builds the trigger of a scheduled announcement in the guild zone
func TriggerFor(announcement *models.Announcement, loc *time.Location) (Trigger, error) {
	switch announcement.Kind {
	case models.AnnouncementDaily:
		hour, minute, err := ParseTimeOfDay(announcement.TimeOfDay)
		if err != nil {
			return nil, err
		}
		return cronTriggerFor(fmt.Sprintf("%d %d * * *", minute, hour), loc)

	case models.AnnouncementWeekly:
		hour, minute, err := ParseTimeOfDay(announcement.TimeOfDay)
		if err != nil {
			return nil, err
		}
		days, err := NormalizeWeekdays(announcement.Weekdays)
		if err != nil {
			return nil, err
		}
		return cronTriggerFor(fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(days, ",")), loc)

	case models.AnnouncementOnce:
		if announcement.RunAt == nil {
			return nil, fmt.Errorf("one-shot announcement %d has no run time: %w", announcement.ID, ErrInvalidSchedule)
		}
		return onceTrigger{at: *announcement.RunAt}, nil

	default:
		return nil, fmt.Errorf("announcement kind %q cannot be scheduled: %w", announcement.Kind, ErrInvalidSchedule)
	}
}

func cronTriggerFor(spec string, loc *time.Location) (Trigger, error) {
	schedule, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), spec))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron spec %q: %w", spec, err)
	}
	return cronTrigger{schedule: schedule}, nil
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("time of day %q must look like 09:30: %w", value, ErrInvalidSchedule)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// NormalizeWeekdays lowercases, dedupes and orders weekday names from mon to sun
func NormalizeWeekdays(days []string) ([]string, error) {
	seen := make(map[string]bool, len(days))
	for _, day := range days {
		day = strings.ToLower(strings.TrimSpace(day))
		if day == "" {
			continue
		}
		if !slices.Contains(weekdayOrder, day) {
			return nil, fmt.Errorf("unknown weekday %q: %w", day, ErrInvalidSchedule)
		}
		seen[day] = true
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("weekly schedule needs at least one weekday: %w", ErrInvalidSchedule)
	}

	normalized := make([]string, 0, len(seen))
	for _, day := range weekdayOrder {
		if seen[day] {
			normalized = append(normalized, day)
		}
	}
	return normalized, nil
}

// ParseRunAt parses a "DD.MM.YYYY HH:MM" time in the guild zone
func ParseRunAt(value string, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation(RunAtLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("run time %q must look like 31.12.2025 18:00: %w", value, ErrInvalidSchedule)
	}
	return parsed, nil
}
