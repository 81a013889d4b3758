package repository

import (
	"context"
	"fmt"

	"guildbot/database"
	"guildbot/models"
)

// AuditRepository implements the AuditRepository interface
type AuditRepository struct {
	q queryable
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{q: db.Pool}
}

// newAuditRepositoryWithTx creates a new audit repository with a transaction
func newAuditRepositoryWithTx(tx queryable) *AuditRepository {
	return &AuditRepository{q: tx}
}

// Append appends an audit entry and fills its ID and timestamp
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (member_id, queue_name, main_nickname, character_nickname, actor_handle, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.MemberID,
		entry.QueueName,
		entry.MainNickname,
		entry.CharacterNickname,
		entry.ActorHandle,
		string(entry.Status),
		entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry for member %d: %w", entry.MemberID, err)
	}
	return nil
}

// ListRecent returns the most recent audit entries
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, member_id, queue_name, main_nickname, character_nickname, actor_handle, status, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var status string
		err := rows.Scan(&e.ID, &e.MemberID, &e.QueueName, &e.MainNickname, &e.CharacterNickname,
			&e.ActorHandle, &status, &e.Detail, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Status = models.AuditStatus(status)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
