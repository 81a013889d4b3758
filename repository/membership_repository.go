package repository

import (
	"context"
	"errors"
	"fmt"

	"guildbot/database"
	"guildbot/models"

	"github.com/jackc/pgx/v5"
)

// Every read joins the member and queue so callers get names without a second round trip
const membershipSelect = `
	SELECT qm.id, qm.member_id, qm.queue_id, qm.character_nickname, qm.joined_at,
	       q.name, m.handle, m.platform_id
	FROM queue_memberships qm
	JOIN queues q ON q.id = qm.queue_id
	JOIN members m ON m.id = qm.member_id
`

// MembershipRepository implements the MembershipRepository interface
type MembershipRepository struct {
	q queryable
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *database.DB) *MembershipRepository {
	return &MembershipRepository{q: db.Pool}
}

// newMembershipRepositoryWithTx creates a new membership repository with a transaction
func newMembershipRepositoryWithTx(tx queryable) *MembershipRepository {
	return &MembershipRepository{q: tx}
}

func scanMembership(row pgx.Row) (*models.Membership, error) {
	var ms models.Membership
	err := row.Scan(
		&ms.ID,
		&ms.MemberID,
		&ms.QueueID,
		&ms.CharacterNickname,
		&ms.JoinedAt,
		&ms.QueueName,
		&ms.MemberHandle,
		&ms.MemberPlatformID,
	)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

func (r *MembershipRepository) getOne(ctx context.Context, where string, args ...any) (*models.Membership, error) {
	membership, err := scanMembership(r.q.QueryRow(ctx, membershipSelect+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return membership, err
}

func (r *MembershipRepository) list(ctx context.Context, where string, args ...any) ([]*models.Membership, error) {
	rows, err := r.q.Query(ctx, membershipSelect+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}

// GetByID retrieves a membership by ID
func (r *MembershipRepository) GetByID(ctx context.Context, id int64) (*models.Membership, error) {
	membership, err := r.getOne(ctx, `WHERE qm.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership %d: %w", id, err)
	}
	return membership, nil
}

// GetByMemberAndQueue retrieves the membership for a (member, queue) pair
func (r *MembershipRepository) GetByMemberAndQueue(ctx context.Context, memberID, queueID int64) (*models.Membership, error) {
	membership, err := r.getOne(ctx, `WHERE qm.member_id = $1 AND qm.queue_id = $2`, memberID, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership of member %d in queue %d: %w", memberID, queueID, err)
	}
	return membership, nil
}

// ListByMember returns the member's memberships with queue names
func (r *MembershipRepository) ListByMember(ctx context.Context, memberID int64) ([]*models.Membership, error) {
	memberships, err := r.list(ctx, `WHERE qm.member_id = $1 ORDER BY qm.joined_at, qm.id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships of member %d: %w", memberID, err)
	}
	return memberships, nil
}

// ListByQueue returns a queue's memberships in join order
func (r *MembershipRepository) ListByQueue(ctx context.Context, queueID int64) ([]*models.Membership, error) {
	memberships, err := r.list(ctx, `WHERE qm.queue_id = $1 ORDER BY qm.joined_at, qm.id`, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships of queue %d: %w", queueID, err)
	}
	return memberships, nil
}

// ListByCharacter returns the member's memberships held under nickname
func (r *MembershipRepository) ListByCharacter(ctx context.Context, memberID int64, nickname string) ([]*models.Membership, error) {
	memberships, err := r.list(ctx, `WHERE qm.member_id = $1 AND qm.character_nickname = $2 ORDER BY qm.id`, memberID, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships of character %q: %w", nickname, err)
	}
	return memberships, nil
}

// CountByMember counts memberships across all queues
func (r *MembershipRepository) CountByMember(ctx context.Context, memberID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM queue_memberships WHERE member_id = $1`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships of member %d: %w", memberID, err)
	}
	return count, nil
}

// Create inserts a membership. It returns nil, nil when the (member, queue) pair already has one.
func (r *MembershipRepository) Create(ctx context.Context, memberID, queueID int64, nickname string) (*models.Membership, error) {
	query := `
		INSERT INTO queue_memberships (member_id, queue_id, character_nickname)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id, queue_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.q.QueryRow(ctx, query, memberID, queueID, nickname).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create membership of member %d in queue %d: %w", memberID, queueID, err)
	}

	return r.GetByID(ctx, id)
}

// UpdateCharacter changes the nickname of one membership
func (r *MembershipRepository) UpdateCharacter(ctx context.Context, id int64, nickname string) error {
	result, err := r.q.Exec(ctx, `UPDATE queue_memberships SET character_nickname = $1 WHERE id = $2`, nickname, id)
	if err != nil {
		return fmt.Errorf("failed to update membership %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("membership %d not found", id)
	}
	return nil
}

// Delete removes a membership and reports whether a row was removed.
// Concurrent deletes of the same row serialize on the row lock; the loser sees false.
func (r *MembershipRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM queue_memberships WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}
