package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/server/models"
)

// PostgresRepository implements CRUD operations for accounts over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, name, email, password_hash, role, is_active, created_date`

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (name, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_date
	`
	err := r.db.QueryRowContext(ctx, query,
		account.Name, account.Email, account.PasswordHash, account.Role, account.IsActive).
		Scan(&account.ID, &account.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE lower(email) = lower($1)
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(&account.ID, &account.Name, &account.Email,
			&account.PasswordHash, &account.Role, &account.IsActive, &account.CreatedDate); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, name, email string) error {
	return r.execExpectingRow(ctx,
		`UPDATE accounts SET name = $2, email = $3 WHERE id = $1`, id, name, email)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.execExpectingRow(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.execExpectingRow(ctx,
		`UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.Name, &account.Email,
		&account.PasswordHash, &account.Role, &account.IsActive, &account.CreatedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

// execExpectingRow runs an UPDATE that must hit exactly one row; zero rows
// means the account does not exist.
func (r *PostgresRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}
