package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guildbot/database"
	"guildbot/models"

	"github.com/jackc/pgx/v5"
)

const announcementColumns = `id, text, kind, time_of_day, weekdays, run_at, is_active, created_by, created_at`

// AnnouncementRepository implements the AnnouncementRepository interface
type AnnouncementRepository struct {
	q queryable
}

// NewAnnouncementRepository creates a new announcement repository
func NewAnnouncementRepository(db *database.DB) *AnnouncementRepository {
	return &AnnouncementRepository{q: db.Pool}
}

// newAnnouncementRepositoryWithTx creates a new announcement repository with a transaction
func newAnnouncementRepositoryWithTx(tx queryable) *AnnouncementRepository {
	return &AnnouncementRepository{q: tx}
}

// Weekdays are stored as a comma separated list, e.g. "mon,wed"
func joinWeekdays(days []string) string {
	return strings.Join(days, ",")
}

func splitWeekdays(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func scanAnnouncement(row pgx.Row) (*models.Announcement, error) {
	var a models.Announcement
	var kind, weekdays string
	err := row.Scan(&a.ID, &a.Text, &kind, &a.TimeOfDay, &weekdays, &a.RunAt, &a.IsActive, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Kind = models.AnnouncementKind(kind)
	a.Weekdays = splitWeekdays(weekdays)
	return &a, nil
}

// Create persists an announcement and fills its ID and CreatedAt
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	query := `
		INSERT INTO announcements (text, kind, time_of_day, weekdays, run_at, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		announcement.Text,
		string(announcement.Kind),
		announcement.TimeOfDay,
		joinWeekdays(announcement.Weekdays),
		announcement.RunAt,
		announcement.IsActive,
		announcement.CreatedBy,
	).Scan(&announcement.ID, &announcement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

// GetByID retrieves an announcement by ID
func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	announcement, err := scanAnnouncement(r.q.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement %d: %w", id, err)
	}
	return announcement, nil
}

// ListActive returns active announcements ordered by ID
func (r *AnnouncementRepository) ListActive(ctx context.Context) ([]*models.Announcement, error) {
	rows, err := r.q.Query(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active announcements: %w", err)
	}
	defer rows.Close()

	var announcements []*models.Announcement
	for rows.Next() {
		announcement, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, announcement)
	}
	return announcements, rows.Err()
}

// Deactivate clears the active flag and reports whether the row exists
func (r *AnnouncementRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	result, err := r.q.Exec(ctx, `UPDATE announcements SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate announcement %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
