package scheduler

import (
	"slices"
	"testing"
	"time"

	"guildbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func moscow(t testing.TB) *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func TestTriggerFor_Weekly(t *testing.T) {
	loc := moscow(t)
	trigger, err := TriggerFor(&models.Announcement{
		ID:        1,
		Kind:      models.AnnouncementWeekly,
		TimeOfDay: "09:05",
		Weekdays:  []string{"thu", "mon"},
	}, loc)
	require.NoError(t, err)
	assert.True(t, trigger.Repeats())

	// Sunday
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, loc)
	next := trigger.Next(from)
	assert.True(t, next.Equal(time.Date(2025, 6, 2, 9, 5, 0, 0, loc)), "got %v", next)

	next = trigger.Next(next)
	assert.True(t, next.Equal(time.Date(2025, 6, 5, 9, 5, 0, 0, loc)), "got %v", next)
}

func TestTriggerFor_DailyUsesGuildZone(t *testing.T) {
	loc := moscow(t)
	trigger, err := TriggerFor(&models.Announcement{Kind: models.AnnouncementDaily, TimeOfDay: "09:00"}, loc)
	require.NoError(t, err)

	// 05:30 UTC is 08:30 in Moscow
	from := time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC)
	next := trigger.Next(from)
	assert.True(t, next.Equal(time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)), "got %v", next)
}

func TestTriggerFor_Once(t *testing.T) {
	loc := moscow(t)
	at := time.Date(2025, 6, 3, 18, 0, 0, 0, loc)
	trigger, err := TriggerFor(&models.Announcement{Kind: models.AnnouncementOnce, RunAt: &at}, loc)
	require.NoError(t, err)

	assert.False(t, trigger.Repeats())
	assert.True(t, trigger.Next(at.Add(time.Hour)).Equal(at))
}

func TestTriggerFor_Invalid(t *testing.T) {
	loc := moscow(t)
	tests := []struct {
		name         string
		announcement models.Announcement
	}{
		{"immediate", models.Announcement{Kind: models.AnnouncementImmediate}},
		{"once without time", models.Announcement{Kind: models.AnnouncementOnce}},
		{"bad time of day", models.Announcement{Kind: models.AnnouncementDaily, TimeOfDay: "25:00"}},
		{"weekly without days", models.Announcement{Kind: models.AnnouncementWeekly, TimeOfDay: "09:00"}},
		{"unknown weekday", models.Announcement{Kind: models.AnnouncementWeekly, TimeOfDay: "09:00", Weekdays: []string{"funday"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TriggerFor(&tt.announcement, loc)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	hour, minute, err := ParseTimeOfDay(" 9:05 ")
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 5, minute)

	for _, value := range []string{"", "9", "24:00", "12:60", "noon"} {
		_, _, err := ParseTimeOfDay(value)
		assert.ErrorIs(t, err, ErrInvalidSchedule, value)
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	days, err := NormalizeWeekdays([]string{"SUN", " thu", "Mon", "thu", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"mon", "thu", "sun"}, days)

	_, err = NormalizeWeekdays([]string{" ", ""})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParseRunAt(t *testing.T) {
	loc := moscow(t)
	at, err := ParseRunAt("31.12.2025 18:00", loc)
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2025, 12, 31, 18, 0, 0, 0, loc)))

	_, err = ParseRunAt("2025-12-31 18:00", loc)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCronTriggerProperties(t *testing.T) {
	loc := moscow(t)

	rapid.Check(t, func(t *rapid.T) {
		hour := rapid.IntRange(0, 23).Draw(t, "hour")
		minute := rapid.IntRange(0, 59).Draw(t, "minute")
		days := rapid.SliceOfN(rapid.SampledFrom(weekdayOrder), 1, 7).Draw(t, "days")
		weekly := rapid.Bool().Draw(t, "weekly")
		from := time.Unix(rapid.Int64Range(1_700_000_000, 1_900_000_000).Draw(t, "from"), 0)

		announcement := &models.Announcement{
			Kind:      models.AnnouncementDaily,
			TimeOfDay: time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04"),
		}
		if weekly {
			announcement.Kind = models.AnnouncementWeekly
			announcement.Weekdays = days
		}

		trigger, err := TriggerFor(announcement, loc)
		if err != nil {
			t.Fatalf("trigger: %v", err)
		}

		next := trigger.Next(from)
		if !next.After(from) {
			t.Fatalf("next %v is not after %v", next, from)
		}

		local := next.In(loc)
		if local.Hour() != hour || local.Minute() != minute || local.Second() != 0 {
			t.Fatalf("next %v does not land on %02d:%02d", local, hour, minute)
		}

		limit := 24 * time.Hour
		if weekly {
			limit = 7 * 24 * time.Hour
			day := weekdayOrder[(int(local.Weekday())+6)%7]
			if !slices.Contains(days, day) {
				t.Fatalf("next %v falls on %s, want one of %v", local, day, days)
			}
		}
		if next.Sub(from) > limit {
			t.Fatalf("next %v is more than %v after %v", next, limit, from)
		}

		// A slot is never yielded twice
		if again := trigger.Next(next); !again.After(next) {
			t.Fatalf("slot %v repeated as %v", next, again)
		}
	})
}
