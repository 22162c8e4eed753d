package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/server/models"
)

// refreshTokenEntropy is how many random bytes back each opaque token.
const refreshTokenEntropy = 64

// PostgresRepository implements the ledger over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, token, account_id, expiry_date, created_date,
	is_used, is_revoked, revoked_date, reason_revoked, replaced_by_token`

// Create inserts a new refresh token for accountID with an expiry of
// now+validity. The opaque token string carries 64 bytes of entropy.
func (r *PostgresRepository) Create(ctx context.Context, accountID int64, validity time.Duration) (*models.RefreshToken, error) {
	token, err := common.MakeRandBase64String(refreshTokenEntropy)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	row := &models.RefreshToken{
		Token:      token,
		AccountID:  accountID,
		ExpiryDate: time.Now().Add(validity),
	}

	query := `
		INSERT INTO refresh_tokens (token, account_id, expiry_date)
		VALUES ($1, $2, $3)
		RETURNING id, created_date
	`
	if err := r.db.QueryRowContext(ctx, query, row.Token, row.AccountID, row.ExpiryDate).
		Scan(&row.ID, &row.CreatedDate); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row, nil
}

// Find returns the full ledger row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE token = $1
	`
	row := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&row.ID, &row.Token, &row.AccountID, &row.ExpiryDate, &row.CreatedDate,
		&row.IsUsed, &row.IsRevoked, &row.RevokedDate, &row.ReasonRevoked, &row.ReplacedByToken,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row, nil
}

// FindActiveByAccount returns the account's rows for which the derived
// active predicate holds at query time.
func (r *PostgresRepository) FindActiveByAccount(ctx context.Context, accountID int64) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE account_id = $1 AND NOT is_used AND NOT is_revoked AND expiry_date > now()
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		row := &models.RefreshToken{}
		if err := rows.Scan(
			&row.ID, &row.Token, &row.AccountID, &row.ExpiryDate, &row.CreatedDate,
			&row.IsUsed, &row.IsRevoked, &row.RevokedDate, &row.ReasonRevoked, &row.ReplacedByToken,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// MarkUsedAndChain consumes the token in a single conditional UPDATE. The
// WHERE clause carries the not-used/not-revoked guard, so of any number of
// concurrent callers exactly one sees an affected row; the rest get
// common.ErrConflict. This is what keeps double rotation impossible.
func (r *PostgresRepository) MarkUsedAndChain(ctx context.Context, token string, replacedBy string) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = TRUE, replaced_by_token = $2
		WHERE token = $1 AND NOT is_used AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, token, replacedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrConflict
	}
	return nil
}

// Revoke marks the token revoked. Missing rows return common.ErrorNotFound;
// a row that is already revoked stays as it was (the flag is one-way) and
// the call succeeds.
func (r *PostgresRepository) Revoke(ctx context.Context, token string, reason string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_date = now(), reason_revoked = $2
		WHERE token = $1 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, token, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)`, token).
		Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return nil
}

// RevokeAllActiveForAccount revokes every active row of the account in one
// statement. Returns the number of rows revoked; zero is a valid outcome.
func (r *PostgresRepository) RevokeAllActiveForAccount(ctx context.Context, accountID int64, reason string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_date = now(), reason_revoked = $2
		WHERE account_id = $1 AND NOT is_used AND NOT is_revoked AND expiry_date > now()
	`
	res, err := r.db.ExecContext(ctx, query, accountID, reason)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
