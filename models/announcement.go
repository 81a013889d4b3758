package models

import (
	"time"
)

// AnnouncementKind is the schedule type of an announcement
type AnnouncementKind string

const (
	AnnouncementImmediate AnnouncementKind = "immediate"
	AnnouncementDaily     AnnouncementKind = "daily"
	AnnouncementWeekly    AnnouncementKind = "weekly"
	AnnouncementOnce      AnnouncementKind = "once"
)

// Recurring reports whether the kind fires more than once
func (k AnnouncementKind) Recurring() bool {
	return k == AnnouncementDaily || k == AnnouncementWeekly
}

// Announcement is a broadcast message with its schedule
type Announcement struct {
	ID        int64            `db:"id"`
	Text      string           `db:"text"`
	Kind      AnnouncementKind `db:"kind"`
	TimeOfDay string           `db:"time_of_day"` // "HH:MM" for daily and weekly
	Weekdays  []string         `db:"weekdays"`    // "mon".."sun" for weekly
	RunAt     *time.Time       `db:"run_at"`      // once only
	IsActive  bool             `db:"is_active"`
	CreatedBy string           `db:"created_by"`
	CreatedAt time.Time        `db:"created_at"`
}

// AnnouncementRequest is the raw guildmaster input for a new announcement
type AnnouncementRequest struct {
	Text      string
	Kind      AnnouncementKind
	TimeOfDay string   // "HH:MM"
	Weekdays  []string // weekly only
	RunAt     string   // "DD.MM.YYYY HH:MM" in the guild timezone, once only
}

// BroadcastResult summarises a broadcast fan-out
type BroadcastResult struct {
	Recipients int
	Delivered  int
	Failed     int
}
