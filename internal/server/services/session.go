// Package services contains server-side business logic. This file implements
// SessionService, which handles login, access token validation, and the
// rotation and revocation of server-stored refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/logging"
	"github.com/funews/funews/internal/server/auth"
	"github.com/funews/funews/internal/server/config"
	"github.com/funews/funews/internal/server/models"
	"github.com/funews/funews/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// ReasonRevokedByUser is recorded when an account owner revokes a token.
const ReasonRevokedByUser = "revoked by user"

// AccountInfo is the caller-visible slice of an account returned with a
// session.
type AccountInfo struct {
	ID    int64
	Name  string
	Email string
	Role  models.Role
}

// SessionPair bundles a short-lived JWT access token and a long-lived opaque
// refresh token, with their expiry instants and the account they belong to.
type SessionPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Account          AccountInfo
}

// SessionService provides authentication operations:
//   - Login: verify credentials and mint a session pair
//   - Refresh: rotate a refresh token and mint a new pair
//   - RevokeOne / RevokeAll: invalidate refresh tokens
//   - Validate: check an access token and return its claims
//
// Every denial surfaces as common.ErrorUnauthorized so callers cannot probe
// which check failed.
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	codec                        *auth.Codec
	refreshTokenValidityDuration time.Duration
	logger                       logging.Logger
}

// NewSessionService constructs a SessionService using repositories and server
// config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *SessionService {
	codec := auth.NewCodec([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience, cfg.AccessTokenValidityDuration)
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		codec:                        codec,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		logger:                       logger,
	}
}

// Login verifies the email/password pair and, on success, returns a new
// SessionPair. Unknown email, wrong password, and a deactivated account are
// indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, email, password string) (*SessionPair, error) {
	repo := s.repomanager.Accounts(s.db)
	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}
	if !account.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return s.issuePair(ctx, s.db, account)
}

// Refresh exchanges an expired (or still valid) access token plus its refresh
// token for a fresh pair. The old refresh token is consumed and chained to
// its replacement in one transaction; a second concurrent call with the same
// token loses the conditional update and is denied.
func (s *SessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionPair, error) {
	claims, err := s.codec.DecodeExpired(accessToken)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	accountID, err := claims.AccountID()
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.RefreshTokens(s.db)
	row, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if row.AccountID != accountID || !row.Active(time.Now()) {
		return nil, common.ErrorUnauthorized
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !account.IsActive {
		return nil, common.ErrorUnauthorized
	}

	var pair *SessionPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		replacement, err := repoTx.Create(ctx, accountID, s.refreshTokenValidityDuration)
		if err != nil {
			return fmt.Errorf("error creating replacement token: %w", err)
		}
		if err := repoTx.MarkUsedAndChain(ctx, refreshToken, replacement.Token); err != nil {
			return err
		}
		pair, err = s.mintPair(account, replacement)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Lost the rotation race: the token was consumed between Find
			// and the conditional update.
			s.logger.Warn(ctx, "refresh token reuse detected", "account_id", accountID)
			return nil, common.ErrorUnauthorized
		}
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// RevokeOne revokes a single refresh token owned by accountID. A caller who
// does not own the token is refused with Forbidden.
func (s *SessionService) RevokeOne(ctx context.Context, accountID int64, refreshToken string) error {
	repo := s.repomanager.RefreshTokens(s.db)
	row, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	if row.AccountID != accountID {
		return common.ErrorForbidden
	}
	if err := repo.Revoke(ctx, refreshToken, ReasonRevokedByUser); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RevokeAll revokes every active refresh token of the account and returns how
// many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, accountID int64, reason string) (int64, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	n, err := repo.RevokeAllActiveForAccount(ctx, accountID, reason)
	if err != nil {
		return 0, common.ErrorInternal
	}
	return n, nil
}

// Validate verifies the access token's signature, lifetime, issuer and
// audience, and returns its claims.
func (s *SessionService) Validate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}

// issuePair creates a fresh refresh token row and mints the matching access
// token.
func (s *SessionService) issuePair(ctx context.Context, db dbx.DBTX, account *models.Account) (*SessionPair, error) {
	row, err := s.repomanager.RefreshTokens(db).Create(ctx, account.ID, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	pair, err := s.mintPair(account, row)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return pair, nil
}

func (s *SessionService) mintPair(account *models.Account, row *models.RefreshToken) (*SessionPair, error) {
	access, expiresAt, err := s.codec.Mint(account.ID, account.Email, string(account.Role))
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &SessionPair{
		AccessToken:      access,
		AccessExpiresAt:  expiresAt,
		RefreshToken:     row.Token,
		RefreshExpiresAt: row.ExpiryDate,
		Account: AccountInfo{
			ID:    account.ID,
			Name:  account.Name,
			Email: account.Email,
			Role:  account.Role,
		},
	}, nil
}
