package service

import (
	"errors"
)

// ErrorKind groups domain errors by how callers should react to them
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindAlreadyExists ErrorKind = "already_exists"
	KindInvalidState  ErrorKind = "invalid_state"
	KindValidation    ErrorKind = "validation"
	KindForbidden     ErrorKind = "forbidden"
)

// DomainError is a sentinel error with a kind
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func newDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

var (
	ErrNotFound       = newDomainError(KindNotFound, "not found")
	ErrNotMember      = newDomainError(KindNotFound, "not a member of this queue")
	ErrAlreadyIssued  = newDomainError(KindNotFound, "reward already issued")
	ErrAlreadyExists  = newDomainError(KindAlreadyExists, "already exists")
	ErrAlreadyMember  = newDomainError(KindAlreadyExists, "already a member of this queue")
	ErrQueueLocked    = newDomainError(KindInvalidState, "queue is locked")
	ErrLimitExceeded  = newDomainError(KindInvalidState, "membership limit reached")
	ErrMainRequired   = newDomainError(KindInvalidState, "a main character is required")
	ErrChoiceRequired = newDomainError(KindInvalidState, "character has queue memberships")
	ErrValidation     = newDomainError(KindValidation, "validation failed")
	ErrForbidden      = newDomainError(KindForbidden, "forbidden")
	ErrBanned         = newDomainError(KindForbidden, "member is banned")
)

// KindOf returns the kind of the first domain error in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return "", false
}
