package models

import (
	"time"
)

// Character is an in-game character owned by a member
type Character struct {
	ID        int64     `db:"id"`
	MemberID  int64     `db:"member_id"`
	Nickname  string    `db:"nickname"`
	IsMain    bool      `db:"is_main"`
	CreatedAt time.Time `db:"created_at"`
}

// DeletePolicy decides what happens to memberships held by a deleted character
type DeletePolicy string

const (
	// DeletePolicyAsk refuses to delete a character that still holds memberships
	DeletePolicyAsk      DeletePolicy = "ask"
	DeletePolicyReassign DeletePolicy = "reassign"
	DeletePolicyRemove   DeletePolicy = "remove"
)

// MainChange describes the outcome of a main character change request
type MainChange struct {
	MemberID             int64
	Previous             string // empty when the member had no main
	Current              string
	PromotedAlt          bool
	Applied              bool
	RequiresConfirmation bool
	MembershipsUpdated   int
}

// CharacterDeletion describes the outcome of deleting a character
type CharacterDeletion struct {
	Character           *Character
	Policy              DeletePolicy
	MembershipsAffected int
}
