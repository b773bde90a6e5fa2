package service

import (
	"errors"

	"shelfmate/backend/internal/booksearch"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrForbidden          = errors.New("operation not permitted")

	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrDuplicateRequest = errors.New("a pending friend request already exists")
	ErrAlreadyFriends   = errors.New("users are already friends")

	ErrInvalidStatus     = errors.New("invalid reading status")
	ErrJournalNotAllowed = errors.New("journal requires a finished or abandoned book")
	ErrJournalExists     = errors.New("book already has a journal")
	ErrInvalidRating     = errors.New("rating must be between 0 and 5")

	ErrSearchUnavailable = booksearch.ErrUnavailable
)

// Outcome is the result of a workflow mutation whose expected failures are
// silent: the caller learns whether anything changed, nothing more.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNotFound
	OutcomeDenied
)

func (o Outcome) Applied() bool { return o == OutcomeApplied }

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDenied:
		return "denied"
	}
	return "unknown"
}
