// Package auth implements the stateless access-token codec: minting and
// verifying signed, time-bounded HS256 bearer tokens carrying account
// identity claims.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/funews/funews/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the claim set embedded in every access token: the registered
// claims (sub, iss, aud, jti, iat, exp) plus the account's email and role.
// Tokens are never stored server-side; validity is purely cryptographic and
// temporal.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AccountID parses the subject claim into the numeric account id.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// Codec mints and verifies access tokens. It is a pure function of its key
// material and safe for concurrent use.
type Codec struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewCodec builds a codec from the symmetric signing key, expected issuer
// and audience, and the access-token lifetime.
func NewCodec(key []byte, issuer, audience string, ttl time.Duration) *Codec {
	return &Codec{key: key, issuer: issuer, audience: audience, ttl: ttl}
}

// Mint signs a new access token for the account. Every token gets a fresh
// jti so individual tokens stay traceable in logs.
func (c *Codec) Mint(accountID int64, email string, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(c.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Role:  role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// keyFunc releases the key only for HS256 so an algorithm-substitution
// attempt fails closed before any claim is looked at.
func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, common.ErrInvalidToken
	}
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, common.ErrInvalidToken
	}
	return c.key, nil
}

// Verify checks signature, issuer, audience, and expiration with zero clock
// skew. Expired tokens yield common.ErrTokenExpired; every other failure is
// common.ErrInvalidToken.
func (c *Codec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// DecodeExpired recovers the claims from a possibly expired token. The
// signature, algorithm, issuer, and audience checks stay mandatory; only the
// expiration check is skipped. Used solely to re-establish identity during
// refresh, never to authorize an action.
func (c *Codec) DecodeExpired(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}

	// WithoutClaimsValidation skips issuer/audience too, so re-check them
	// here; only expiry is allowed to have lapsed.
	if claims.Issuer != c.issuer {
		return nil, common.ErrInvalidToken
	}
	if !claimsAudienceContains(claims.Audience, c.audience) {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func claimsAudienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
