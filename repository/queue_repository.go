package repository

import (
	"context"
	"errors"
	"fmt"

	"guildbot/database"
	"guildbot/models"

	"github.com/jackc/pgx/v5"
)

const queueColumns = `q.id, q.name, q.description, q.is_active, q.is_locked, q.created_at, q.updated_at`

// QueueRepository implements the QueueRepository interface
type QueueRepository struct {
	q queryable
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{q: db.Pool}
}

// newQueueRepositoryWithTx creates a new queue repository with a transaction
func newQueueRepositoryWithTx(tx queryable) *QueueRepository {
	return &QueueRepository{q: tx}
}

func queueScanTargets(q *models.QueueDefinition) []any {
	return []any{&q.ID, &q.Name, &q.Description, &q.IsActive, &q.IsLocked, &q.CreatedAt, &q.UpdatedAt}
}

func (r *QueueRepository) getOne(ctx context.Context, query string, arg any) (*models.QueueDefinition, error) {
	var queue models.QueueDefinition
	err := r.q.QueryRow(ctx, query, arg).Scan(queueScanTargets(&queue)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &queue, nil
}

// GetByID retrieves a queue by ID
func (r *QueueRepository) GetByID(ctx context.Context, id int64) (*models.QueueDefinition, error) {
	queue, err := r.getOne(ctx, `SELECT `+queueColumns+` FROM queues q WHERE q.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue %d: %w", id, err)
	}
	return queue, nil
}

// GetByName retrieves a queue by name
func (r *QueueRepository) GetByName(ctx context.Context, name string) (*models.QueueDefinition, error) {
	queue, err := r.getOne(ctx, `SELECT `+queueColumns+` FROM queues q WHERE q.name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue %q: %w", name, err)
	}
	return queue, nil
}

// CreateIfMissing inserts a queue unless one with the same name exists
func (r *QueueRepository) CreateIfMissing(ctx context.Context, name, description string) (bool, error) {
	result, err := r.q.Exec(ctx, `
		INSERT INTO queues (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, description)
	if err != nil {
		return false, fmt.Errorf("failed to create queue %q: %w", name, err)
	}
	return result.RowsAffected() > 0, nil
}

// ListActiveWithCounts returns active queues ordered by ID with their membership counts
func (r *QueueRepository) ListActiveWithCounts(ctx context.Context) ([]*models.QueueSummary, error) {
	query := `
		SELECT ` + queueColumns + `, COUNT(qm.id)
		FROM queues q
		LEFT JOIN queue_memberships qm ON qm.queue_id = q.id
		WHERE q.is_active
		GROUP BY q.id
		ORDER BY q.id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	defer rows.Close()

	var summaries []*models.QueueSummary
	for rows.Next() {
		var queue models.QueueDefinition
		var count int
		if err := rows.Scan(append(queueScanTargets(&queue), &count)...); err != nil {
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		summaries = append(summaries, &models.QueueSummary{Queue: &queue, MemberCount: count})
	}
	return summaries, rows.Err()
}

func (r *QueueRepository) update(ctx context.Context, id int64, column string, value any) error {
	query := fmt.Sprintf(`UPDATE queues SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	result, err := r.q.Exec(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update %s of queue %d: %w", column, id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("queue %d not found", id)
	}
	return nil
}

// SetLocked sets the locked flag
func (r *QueueRepository) SetLocked(ctx context.Context, id int64, locked bool) error {
	return r.update(ctx, id, "is_locked", locked)
}

// SetDescription updates the description
func (r *QueueRepository) SetDescription(ctx context.Context, id int64, description string) error {
	return r.update(ctx, id, "description", description)
}

// SetActive sets the active flag
func (r *QueueRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.update(ctx, id, "is_active", active)
}
