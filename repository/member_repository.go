package repository

import (
	"context"
	"errors"
	"fmt"

	"guildbot/database"
	"guildbot/models"

	"github.com/jackc/pgx/v5"
)

const memberColumns = `id, platform_id, handle, is_guildmaster, is_banned, personal_limit, created_at, updated_at`

// MemberRepository implements the MemberRepository interface
type MemberRepository struct {
	q queryable
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{q: db.Pool}
}

// newMemberRepositoryWithTx creates a new member repository with a transaction
func newMemberRepositoryWithTx(tx queryable) *MemberRepository {
	return &MemberRepository{q: tx}
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(
		&m.ID,
		&m.PlatformID,
		&m.Handle,
		&m.IsGuildmaster,
		&m.IsBanned,
		&m.PersonalLimit,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) getOne(ctx context.Context, query string, arg any) (*models.Member, error) {
	member, err := scanMember(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return member, err
}

// GetByID retrieves a member by internal ID
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	member, err := r.getOne(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	return member, nil
}

// GetByIDForUpdate retrieves a member and holds a row lock for the rest of the transaction
func (r *MemberRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Member, error) {
	member, err := r.getOne(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock member %d: %w", id, err)
	}
	return member, nil
}

// GetByPlatformID retrieves a member by their Discord ID
func (r *MemberRepository) GetByPlatformID(ctx context.Context, platformID int64) (*models.Member, error) {
	member, err := r.getOne(ctx, `SELECT `+memberColumns+` FROM members WHERE platform_id = $1`, platformID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member by platform ID %d: %w", platformID, err)
	}
	return member, nil
}

// GetByHandle retrieves a member by handle, ignoring case and a leading @
func (r *MemberRepository) GetByHandle(ctx context.Context, handle string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE LOWER(handle) = LOWER(LTRIM($1, '@')) ORDER BY id LIMIT 1`
	member, err := r.getOne(ctx, query, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to get member by handle %q: %w", handle, err)
	}
	return member, nil
}

// bootstrapLockKey serializes first-contact inserts while the members table is empty
const bootstrapLockKey int64 = 0x6775696c64

// Upsert creates the member or refreshes the handle of an existing one.
// Only the very first member gets the guildmaster flag. While the table is empty the insert
// runs under a transaction-scoped advisory lock, so Upsert must be called inside a transaction
// for that guarantee to hold.
func (r *MemberRepository) Upsert(ctx context.Context, platformID int64, handle string) (*models.Member, bool, error) {
	var populated bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members)`).Scan(&populated); err != nil {
		return nil, false, fmt.Errorf("failed to check for existing members: %w", err)
	}
	if !populated {
		// A waiter gets a fresh snapshot for the insert below and sees the winner's row.
		if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return nil, false, fmt.Errorf("failed to take bootstrap lock: %w", err)
		}
	}

	query := `
		INSERT INTO members (platform_id, handle, is_guildmaster)
		VALUES ($1, $2, NOT EXISTS (SELECT 1 FROM members))
		ON CONFLICT (platform_id) DO UPDATE
			SET handle = EXCLUDED.handle,
			    updated_at = CASE WHEN members.handle = EXCLUDED.handle THEN members.updated_at ELSE NOW() END
		RETURNING ` + memberColumns + `, (xmax = 0) AS inserted
	`

	var m models.Member
	var inserted bool
	err := r.q.QueryRow(ctx, query, platformID, handle).Scan(
		&m.ID,
		&m.PlatformID,
		&m.Handle,
		&m.IsGuildmaster,
		&m.IsBanned,
		&m.PersonalLimit,
		&m.CreatedAt,
		&m.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert member with platform ID %d: %w", platformID, err)
	}

	return &m, inserted, nil
}

func (r *MemberRepository) update(ctx context.Context, id int64, query string, arg any) error {
	result, err := r.q.Exec(ctx, query, arg, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("member %d not found", id)
	}
	return nil
}

// SetGuildmaster grants or revokes the guildmaster role
func (r *MemberRepository) SetGuildmaster(ctx context.Context, id int64, guildmaster bool) error {
	err := r.update(ctx, id, `UPDATE members SET is_guildmaster = $1, updated_at = NOW() WHERE id = $2`, guildmaster)
	if err != nil {
		return fmt.Errorf("failed to set guildmaster for member %d: %w", id, err)
	}
	return nil
}

// SetBanned sets the banned flag
func (r *MemberRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	err := r.update(ctx, id, `UPDATE members SET is_banned = $1, updated_at = NOW() WHERE id = $2`, banned)
	if err != nil {
		return fmt.Errorf("failed to set banned for member %d: %w", id, err)
	}
	return nil
}

// SetPersonalLimit stores a personal limit; nil clears the override
func (r *MemberRepository) SetPersonalLimit(ctx context.Context, id int64, limit *int) error {
	err := r.update(ctx, id, `UPDATE members SET personal_limit = $1, updated_at = NOW() WHERE id = $2`, limit)
	if err != nil {
		return fmt.Errorf("failed to set personal limit for member %d: %w", id, err)
	}
	return nil
}

func (r *MemberRepository) list(ctx context.Context, query string) ([]*models.Member, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// ListWithPersonalLimit returns members that override the global limit
func (r *MemberRepository) ListWithPersonalLimit(ctx context.Context) ([]*models.Member, error) {
	members, err := r.list(ctx, `SELECT `+memberColumns+` FROM members WHERE personal_limit IS NOT NULL ORDER BY handle, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal limits: %w", err)
	}
	return members, nil
}

// ListBroadcastRecipients returns every member that owns at least one character, banned or not
func (r *MemberRepository) ListBroadcastRecipients(ctx context.Context) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE EXISTS (SELECT 1 FROM characters c WHERE c.member_id = m.id)
		ORDER BY m.id
	`
	members, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast recipients: %w", err)
	}
	return members, nil
}

// List returns all members ordered by handle
func (r *MemberRepository) List(ctx context.Context) ([]*models.Member, error) {
	members, err := r.list(ctx, `SELECT `+memberColumns+` FROM members ORDER BY LOWER(handle), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
