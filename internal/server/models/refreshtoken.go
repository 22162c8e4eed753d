package models

import "time"

// TokenState is the derived lifecycle state of a refresh token. The stored
// representation is a pair of one-way flags plus an expiry; the state makes
// the legal transitions explicit: Active → Consumed | Revoked | Expired,
// with no way back.
type TokenState int

const (
	// TokenActive means the token can still be redeemed.
	TokenActive TokenState = iota
	// TokenConsumed means rotation already spent this token; ReplacedByToken
	// points at its successor.
	TokenConsumed
	// TokenRevoked means the token was explicitly invalidated.
	TokenRevoked
	// TokenExpired means the expiry instant has passed. Time-derived only,
	// nothing is stored for this transition.
	TokenExpired
)

// RefreshToken is one issued long-lived credential. Rows are never deleted:
// consumed and revoked rows stay behind for audit and replay detection.
type RefreshToken struct {
	ID              int64
	Token           string
	AccountID       int64
	ExpiryDate      time.Time
	CreatedDate     time.Time
	IsUsed          bool
	IsRevoked       bool
	RevokedDate     *time.Time
	ReasonRevoked   *string
	ReplacedByToken *string
}

// State derives the lifecycle state at the given instant. Revocation wins
// over consumption so that a cascade revoke of a half-rotated chain reads as
// revoked, and both flags win over expiry.
func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.IsRevoked:
		return TokenRevoked
	case t.IsUsed:
		return TokenConsumed
	case !now.Before(t.ExpiryDate):
		return TokenExpired
	default:
		return TokenActive
	}
}

// Active reports whether the token can be redeemed: not consumed, not
// revoked, not expired. This derived predicate, not any stored column, is
// the authority for redemption decisions.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.State(now) == TokenActive
}
