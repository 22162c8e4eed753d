package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const categoryColumns = `id, name, description, parent_id, is_active, is_deleted`

func (r *PostgresRepository) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	query := `
		INSERT INTO categories (name, description, parent_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		category.Name, category.Description, category.ParentID, category.IsActive).
		Scan(&category.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return category, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE id = $1 AND NOT is_deleted
	`
	category := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.Description,
		&category.ParentID, &category.IsActive, &category.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return category, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE NOT is_deleted
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.Description,
			&category.ParentID, &category.IsActive, &category.IsDeleted); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories
		SET name = $2, description = $3, parent_id = $4, is_active = $5
		WHERE id = $1 AND NOT is_deleted
	`
	res, err := r.db.ExecContext(ctx, query,
		category.ID, category.Name, category.Description, category.ParentID, category.IsActive)
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

// SoftDelete marks the category deleted unless an article still references
// it; the NOT EXISTS guard makes the check and the flip one statement.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE categories
		SET is_deleted = TRUE
		WHERE id = $1 AND NOT is_deleted
		  AND NOT EXISTS (
			SELECT 1 FROM articles WHERE category_id = $1 AND NOT is_deleted
		  )
	`
	res, err := r.db.ExecContext(ctx, query, id)
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
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND NOT is_deleted)`, id).
		Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return common.ErrConflict
}
