// Package refreshtokens declares the server-side repository contract for the
// refresh-token ledger. The ledger is the single source of truth for token
// state: rows are created, consumed, and revoked here, and never deleted.
package refreshtokens

import (
	"context"
	"time"

	"github.com/funews/funews/internal/server/models"
)

// Repository defines operations for issuing, inspecting, and transitioning
// refresh tokens.
//
// MarkUsedAndChain is the one call correctness hinges on: implementations
// MUST perform it as a single conditional state transition (one UPDATE
// guarded by the not-used/not-revoked predicate, or an equivalent
// row-locked transaction), never as separate read and write steps. Two
// concurrent rotations of the same token must see exactly one success.
type Repository interface {
	// Create generates a fresh opaque token for accountID with an expiry of
	// now+validity and stores it. The stored row starts unused and unrevoked.
	Create(ctx context.Context, accountID int64, validity time.Duration) (*models.RefreshToken, error)

	// Find looks up a refresh token by its opaque token string.
	// Returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindActiveByAccount returns the account's tokens whose derived active
	// predicate holds (not used, not revoked, not expired).
	FindActiveByAccount(ctx context.Context, accountID int64) ([]*models.RefreshToken, error)

	// MarkUsedAndChain atomically consumes the token and records its
	// replacement. Returns common.ErrConflict when the row was already used
	// or revoked at the moment of the attempt.
	MarkUsedAndChain(ctx context.Context, token string, replacedBy string) error

	// Revoke marks the token revoked with the given reason. Returns
	// common.ErrorNotFound when no such token exists; revoking an
	// already-revoked token is a no-op success.
	Revoke(ctx context.Context, token string, reason string) error

	// RevokeAllActiveForAccount revokes every currently-active token of the
	// account in one statement and returns how many rows changed.
	RevokeAllActiveForAccount(ctx context.Context, accountID int64, reason string) (int64, error)
}
