// Package qr mints and consumes the single-use gate tokens.
//
// A token is GP1.<passID>.<approvedAtUnix>.<32 hex chars of crypto/rand>:
// unguessable, and resolved through the store's unique token column, so a
// scanned code maps to at most one pass and a forged or superseded code
// maps to none.
package qr

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/store"
)

const tokenPrefix = "GP1"

var (
	// ErrNotFound: unknown, forged or tampered token.
	ErrNotFound = errors.New("token not recognized")
	// ErrExpired: the current date falls outside [fromDate, toDate].
	ErrExpired = errors.New("pass expired")
	// ErrAlreadyUsed: the pass was consumed before this scan — including the
	// deterministic loser of a double-scan race.
	ErrAlreadyUsed = errors.New("pass already used")
)

// Engine validates and consumes tokens against the pass store. Now is
// injectable for the date-boundary tests.
type Engine struct {
	Passes store.PassStore
	Now    func() time.Time
}

func NewEngine(passes store.PassStore) *Engine {
	return &Engine{Passes: passes, Now: time.Now}
}

// Mint builds a fresh token for a pass being approved at the given time.
func Mint(passID string, approvedAt time.Time) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return fmt.Sprintf("%s.%s.%d.%s", tokenPrefix, passID, approvedAt.Unix(), hex.EncodeToString(buf)), nil
}

// Validate resolves a scanned token and consumes it exactly once.
// Resolution goes through the unique token column: anything that does not
// match a stored token verbatim is a forgery. On success the pass is in
// used with usedAt stamped; the returned row is what the gate operator sees.
func (e *Engine) Validate(ctx context.Context, token string) (*models.Pass, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	p, err := e.Passes.GetByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	now := e.Now()
	today := now.Format(models.DateLayout)

	if p.PastWindow(today) {
		// lazily retire the pass; a racing write here is harmless
		if models.Expirable(p.State) {
			_, _ = e.Passes.Expire(ctx, p.ID, p.State)
		}
		return nil, ErrExpired
	}
	if !p.InWindow(today) {
		// before fromDate: reject without touching state
		return nil, ErrExpired
	}

	switch p.State {
	case models.StateUsed:
		return nil, ErrAlreadyUsed
	case models.StateExpired:
		return nil, ErrExpired
	case models.StateIssued:
		// fall through to the conditional consume
	default:
		return nil, ErrNotFound
	}

	consumed, err := e.Passes.Consume(ctx, p.ID, token, now)
	if errors.Is(err, store.ErrConflict) {
		// exactly one scan wins; everyone else must see a terminal answer
		if consumed != nil && consumed.State == models.StateUsed {
			return nil, ErrAlreadyUsed
		}
		if consumed != nil && consumed.State == models.StateExpired {
			return nil, ErrExpired
		}
		return nil, ErrAlreadyUsed
	}
	if err != nil {
		return nil, err
	}
	return consumed, nil
}
