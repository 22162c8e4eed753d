package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/logging"
	"github.com/funews/funews/internal/server/models"
	"github.com/funews/funews/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Revocation reasons recorded when an administrative action invalidates
// sessions.
const (
	ReasonPasswordChanged    = "password changed"
	ReasonAccountDeactivated = "account deactivated"
)

// AccountService manages system accounts. Credential-affecting changes
// cascade into the refresh token ledger so stale sessions die with them.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *SessionService
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, sessions *SessionService, logger logging.Logger) *AccountService {
	return &AccountService{db: db, repomanager: m, sessions: sessions, logger: logger}
}

// Create registers a new account with a hashed password.
func (s *AccountService) Create(ctx context.Context, name, email, password string, role models.Role) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}
	repo := s.repomanager.Accounts(s.db)
	account, err := repo.Create(ctx, &models.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return account, nil
}

// Get returns one account by id.
func (s *AccountService) Get(ctx context.Context, id int64) (*models.Account, error) {
	return s.repomanager.Accounts(s.db).GetByID(ctx, id)
}

// List returns all accounts.
func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	return s.repomanager.Accounts(s.db).List(ctx)
}

// UpdateProfile changes an account's name and email.
func (s *AccountService) UpdateProfile(ctx context.Context, id int64, name, email string) error {
	return s.repomanager.Accounts(s.db).UpdateProfile(ctx, id, name, email)
}

// ChangePassword verifies the current password, stores the new digest, and
// revokes every active refresh token of the account. Existing access tokens
// ride out their short lifetime; nothing outlives them.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	repo := s.repomanager.Accounts(s.db)
	account, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(currentPassword)) != nil {
		return common.ErrorUnauthorized
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return common.ErrorInternal
	}
	n, err := s.sessions.RevokeAll(ctx, id, ReasonPasswordChanged)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "password changed, sessions revoked", "account_id", id, "revoked", n)
	return nil
}

// SetActive activates or deactivates an account. Deactivation revokes all of
// the account's active refresh tokens.
func (s *AccountService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repomanager.Accounts(s.db).SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active {
		n, err := s.sessions.RevokeAll(ctx, id, ReasonAccountDeactivated)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "account deactivated, sessions revoked", "account_id", id, "revoked", n)
	}
	return nil
}
