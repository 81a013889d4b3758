package repository

import (
	"context"
	"errors"
	"fmt"

	"guildbot/database"
	"guildbot/models"

	"github.com/jackc/pgx/v5"
)

const characterColumns = `id, member_id, nickname, is_main, created_at`

// CharacterRepository implements the CharacterRepository interface
type CharacterRepository struct {
	q queryable
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db *database.DB) *CharacterRepository {
	return &CharacterRepository{q: db.Pool}
}

// newCharacterRepositoryWithTx creates a new character repository with a transaction
func newCharacterRepositoryWithTx(tx queryable) *CharacterRepository {
	return &CharacterRepository{q: tx}
}

func scanCharacter(row pgx.Row) (*models.Character, error) {
	var c models.Character
	if err := row.Scan(&c.ID, &c.MemberID, &c.Nickname, &c.IsMain, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CharacterRepository) getOne(ctx context.Context, query string, args ...any) (*models.Character, error) {
	character, err := scanCharacter(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return character, err
}

// GetByID retrieves a character by ID
func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*models.Character, error) {
	character, err := r.getOne(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get character %d: %w", id, err)
	}
	return character, nil
}

// GetByNickname retrieves a character by exact nickname
func (r *CharacterRepository) GetByNickname(ctx context.Context, nickname string) (*models.Character, error) {
	character, err := r.getOne(ctx, `SELECT `+characterColumns+` FROM characters WHERE nickname = $1`, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to get character %q: %w", nickname, err)
	}
	return character, nil
}

// GetMain returns the member's main character, or nil
func (r *CharacterRepository) GetMain(ctx context.Context, memberID int64) (*models.Character, error) {
	character, err := r.getOne(ctx, `SELECT `+characterColumns+` FROM characters WHERE member_id = $1 AND is_main`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get main character of member %d: %w", memberID, err)
	}
	return character, nil
}

// ListByMember returns the member's characters, main first
func (r *CharacterRepository) ListByMember(ctx context.Context, memberID int64) ([]*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE member_id = $1 ORDER BY is_main DESC, created_at, id`

	rows, err := r.q.Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters of member %d: %w", memberID, err)
	}
	defer rows.Close()

	var characters []*models.Character
	for rows.Next() {
		character, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, character)
	}
	return characters, rows.Err()
}

// Create creates a character
func (r *CharacterRepository) Create(ctx context.Context, memberID int64, nickname string, isMain bool) (*models.Character, error) {
	query := `
		INSERT INTO characters (member_id, nickname, is_main)
		VALUES ($1, $2, $3)
		RETURNING ` + characterColumns

	character, err := scanCharacter(r.q.QueryRow(ctx, query, memberID, nickname, isMain))
	if err != nil {
		return nil, fmt.Errorf("failed to create character %q: %w", nickname, err)
	}
	return character, nil
}

// SetMain makes characterID the member's only main character.
// The previous main is demoted first so the one-main index is never violated.
func (r *CharacterRepository) SetMain(ctx context.Context, memberID int64, characterID int64) error {
	_, err := r.q.Exec(ctx, `UPDATE characters SET is_main = FALSE WHERE member_id = $1 AND is_main AND id <> $2`, memberID, characterID)
	if err != nil {
		return fmt.Errorf("failed to demote main character of member %d: %w", memberID, err)
	}

	result, err := r.q.Exec(ctx, `UPDATE characters SET is_main = TRUE WHERE id = $1 AND member_id = $2`, characterID, memberID)
	if err != nil {
		return fmt.Errorf("failed to promote character %d: %w", characterID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("character %d not owned by member %d", characterID, memberID)
	}
	return nil
}

// Delete removes a character
func (r *CharacterRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete character %d: %w", id, err)
	}
	return nil
}
