package repository

import (
	"context"
	"fmt"

	"guildbot/database"
	"guildbot/models"
)

// RewardHistoryRepository implements the RewardHistoryRepository interface
type RewardHistoryRepository struct {
	q queryable
}

// NewRewardHistoryRepository creates a new reward history repository
func NewRewardHistoryRepository(db *database.DB) *RewardHistoryRepository {
	return &RewardHistoryRepository{q: db.Pool}
}

// newRewardHistoryRepositoryWithTx creates a new reward history repository with a transaction
func newRewardHistoryRepositoryWithTx(tx queryable) *RewardHistoryRepository {
	return &RewardHistoryRepository{q: tx}
}

// Record appends a reward history entry and fills its ID and timestamp
func (r *RewardHistoryRepository) Record(ctx context.Context, entry *models.RewardHistoryEntry) error {
	query := `
		INSERT INTO reward_history (member_id, character_nickname, queue_name, issuer_handle)
		VALUES ($1, $2, $3, $4)
		RETURNING id, issued_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.MemberID,
		entry.CharacterNickname,
		entry.QueueName,
		entry.IssuerHandle,
	).Scan(&entry.ID, &entry.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to record reward for member %d: %w", entry.MemberID, err)
	}
	return nil
}

func (r *RewardHistoryRepository) list(ctx context.Context, query string, args ...any) ([]*models.RewardHistoryEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.RewardHistoryEntry
	for rows.Next() {
		var e models.RewardHistoryEntry
		if err := rows.Scan(&e.ID, &e.MemberID, &e.CharacterNickname, &e.QueueName, &e.IssuerHandle, &e.IssuedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ListByMember returns the member's most recent rewards
func (r *RewardHistoryRepository) ListByMember(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error) {
	entries, err := r.list(ctx, `
		SELECT id, member_id, character_nickname, queue_name, issuer_handle, issued_at
		FROM reward_history
		WHERE member_id = $1
		ORDER BY issued_at DESC, id DESC
		LIMIT $2
	`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards of member %d: %w", memberID, err)
	}
	return entries, nil
}

// ListRecent returns the most recent rewards across all members
func (r *RewardHistoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.RewardHistoryEntry, error) {
	entries, err := r.list(ctx, `
		SELECT id, member_id, character_nickname, queue_name, issuer_handle, issued_at
		FROM reward_history
		ORDER BY issued_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent rewards: %w", err)
	}
	return entries, nil
}
