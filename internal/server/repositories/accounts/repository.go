// Package accounts declares the repository contract for system accounts —
// the credential store consulted on login and refresh.
package accounts

import (
	"context"

	"github.com/funews/funews/internal/server/models"
)

// Repository defines persistence operations for system accounts.
type Repository interface {
	// Create stores a new account and fills in its generated id.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// GetByEmail returns the account with the given email or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetByID returns the account with the given id or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// List returns all accounts ordered by id.
	List(ctx context.Context) ([]*models.Account, error)

	// UpdateProfile changes name and email.
	UpdateProfile(ctx context.Context, id int64, name, email string) error

	// UpdatePassword replaces the stored password digest.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SetActive flips the active flag.
	SetActive(ctx context.Context, id int64, active bool) error
}
