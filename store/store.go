// Package store is the single serialization point for pass mutation.
// Every write is conditional on the state the caller observed; a write that
// matches nothing is classified as NotFound or Conflict, never retried and
// never silently applied.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vedantsingh72/Gatepass/models"
)

var (
	ErrNotFound = errors.New("pass not found")
	// ErrConflict: the pass moved to a different state than the caller
	// observed. Callers surface it as "already processed", they do not retry.
	ErrConflict = errors.New("stale state")
)

// PassFilter narrows list queries. Zero values mean "no filter".
type PassFilter struct {
	StudentID uint
	Query     string // keyword in reason
	From      string // overlap window, YYYY-MM-DD
	To        string
	Page      int
	Size      int
}

// PassStore is the durable source of truth for passes.
//
// Advance / Finalize / Reject / Consume / Expire are conditional writes:
// they apply only when the stored state equals the caller's observed state
// and return ErrConflict (with the current row, when it still exists)
// otherwise. Approval-record appends happen in the same transaction as the
// state change — partial application is a store bug, not a caller concern.
type PassStore interface {
	Create(ctx context.Context, p *models.Pass) error
	Get(ctx context.Context, id string) (*models.Pass, error)
	GetByToken(ctx context.Context, token string) (*models.Pass, error)

	ListByState(ctx context.Context, state string, f PassFilter) ([]models.Pass, error)
	ListForStudent(ctx context.Context, studentID uint) ([]models.Pass, error)
	// ListCompleted returns terminal-or-used passes for the given students,
	// the aggregator's read set.
	ListCompleted(ctx context.Context, studentIDs []uint) ([]models.Pass, error)

	// Advance applies one non-final approval hop (from -> to) and appends rec.
	Advance(ctx context.Context, id, from, to string, rec *models.ApprovalRecord) (*models.Pass, error)
	// Finalize applies the final approval: rec, the approved hop and the
	// issuance (state issued, token, issuedAt) commit as one transaction, so
	// a pass never sits in approved without its token.
	Finalize(ctx context.Context, id, from string, rec *models.ApprovalRecord, token string, at time.Time) (*models.Pass, error)
	Reject(ctx context.Context, id, from string, rec *models.ApprovalRecord, reason string) (*models.Pass, error)
	// Consume flips issued -> used, conditional on state AND token. The loser
	// of a double scan observes ErrConflict and the row already in used.
	Consume(ctx context.Context, id, token string, at time.Time) (*models.Pass, error)
	Expire(ctx context.Context, id, from string) (*models.Pass, error)
}

// UserStore is the identity lookup the pass flow needs; credential checks
// stay in the auth handler.
type UserStore interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	ListStudentsByDepartment(ctx context.Context, department string) ([]models.User, error)
}

// OTPStore holds at most one pending verification code per email address.
type OTPStore interface {
	// ReplaceOTP installs a fresh code for the address, displacing any
	// previous row and resetting its attempt counter.
	ReplaceOTP(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	GetOTP(ctx context.Context, email string) (*models.EmailOTP, error)
	// FailOTP counts one wrong guess.
	FailOTP(ctx context.Context, email string) error
	DeleteOTP(ctx context.Context, email string) error
}
