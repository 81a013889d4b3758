package audit

import (
	"context"
	"time"

	"guildbot/events"
	"guildbot/models"
	"guildbot/worker"

	log "github.com/sirupsen/logrus"
)

// TimestampLayout is the format of the timestamp column
const TimestampLayout = "02.01.2006 15:04:05"

// DefaultSheetNames maps queue names to the worksheet that mirrors them
var DefaultSheetNames = map[string]string{
	"Valor Stone":       "Valor",
	"Meteors":           "Meteors",
	"Fu Xi Pearls":      "Pearls",
	"Disk Experience":   "Disk XP",
	"Underworld Passes": "UW Passes",
	"Unity Signs":       "Unity",
	"Card Deck":         "Cards",
	"Card Essence":      "Card Essence",
	"Deity Stone":       "Deity",
	"Immortal Stones":   "Immortal",
	"Qilin":             "Qilin",
}

// Row is one line of the external audit sheet
type Row struct {
	Timestamp         string
	MainNickname      string
	CharacterNickname string
	Actor             string
	Status            string
}

// Values returns the row in column order
func (r Row) Values() []interface{} {
	return []interface{}{r.Timestamp, r.MainNickname, r.CharacterNickname, r.Actor, r.Status}
}

// Writer appends rows to an external sheet
type Writer interface {
	AppendRow(ctx context.Context, sheet string, row Row) error
}

// TaskSubmitter queues background work
type TaskSubmitter interface {
	Submit(name string, task worker.Task) bool
}

// Subscriber registers event handlers
type Subscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler)
}

// Mirror copies committed audit entries to the external sheet.
// Write failures are logged and dropped; the database row stays authoritative.
type Mirror struct {
	writer     Writer
	tasks      TaskSubmitter
	sheetNames map[string]string
	loc        *time.Location
}

// NewMirror creates a mirror. A nil sheetNames uses DefaultSheetNames.
func NewMirror(writer Writer, tasks TaskSubmitter, sheetNames map[string]string, loc *time.Location) *Mirror {
	if sheetNames == nil {
		sheetNames = DefaultSheetNames
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Mirror{
		writer:     writer,
		tasks:      tasks,
		sheetNames: sheetNames,
		loc:        loc,
	}
}

// Subscribe attaches the mirror to the event bus
func (m *Mirror) Subscribe(bus Subscriber) {
	bus.Subscribe(events.EventTypeAuditRecorded, m.handleAuditRecorded)
	log.Info("Audit mirror subscribed to audit events")
}

// SheetName returns the worksheet for a queue; unmapped queues use their own name
func (m *Mirror) SheetName(queueName string) string {
	if sheet, ok := m.sheetNames[queueName]; ok {
		return sheet
	}
	return queueName
}

// RowFor renders an audit entry as a sheet row
func (m *Mirror) RowFor(entry *models.AuditEntry) Row {
	return Row{
		Timestamp:         entry.CreatedAt.In(m.loc).Format(TimestampLayout),
		MainNickname:      entry.MainNickname,
		CharacterNickname: entry.CharacterNickname,
		Actor:             entry.ActorHandle,
		Status:            entry.StatusLabel(),
	}
}

func (m *Mirror) handleAuditRecorded(_ context.Context, event events.Event) {
	recorded, ok := event.(events.AuditRecordedEvent)
	if !ok {
		log.WithField("eventType", event.Type()).Error("Audit mirror received unexpected event")
		return
	}

	entry := recorded.Entry
	sheet := m.SheetName(entry.QueueName)
	row := m.RowFor(&entry)

	accepted := m.tasks.Submit("audit-mirror", func(ctx context.Context) error {
		if err := m.writer.AppendRow(ctx, sheet, row); err != nil {
			log.WithFields(log.Fields{
				"sheet":    sheet,
				"entry_id": entry.ID,
				"status":   row.Status,
				"error":    err,
			}).Error("Failed to mirror audit entry")
			return err
		}
		return nil
	})
	if !accepted {
		log.WithFields(log.Fields{
			"sheet":    sheet,
			"entry_id": entry.ID,
		}).Warn("Audit mirror task dropped")
	}
}
