package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const articleColumns = `id, title, headline, content, source, status,
	category_id, created_by_id, updated_by_id, created_date, is_deleted`

func (r *PostgresRepository) Create(ctx context.Context, article *models.Article) (*models.Article, error) {
	query := `
		INSERT INTO articles (title, headline, content, source, status, category_id, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_date
	`
	err := r.db.QueryRowContext(ctx, query,
		article.Title, article.Headline, article.Content, article.Source,
		article.Status, article.CategoryID, article.CreatedByID).
		Scan(&article.ID, &article.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := r.replaceTags(ctx, article.ID, article.TagIDs); err != nil {
		return nil, err
	}
	return article, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE id = $1 AND NOT is_deleted
	`
	article := &models.Article{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&article.ID, &article.Title, &article.Headline, &article.Content,
		&article.Source, &article.Status, &article.CategoryID,
		&article.CreatedByID, &article.UpdatedByID, &article.CreatedDate, &article.IsDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	tagIDs, err := r.tagIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	article.TagIDs = tagIDs
	return article, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]*models.Article, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + articleColumns + `
		FROM articles
		WHERE NOT is_deleted`)
	var args []any
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		fmt.Fprintf(&sb, " AND category_id = $%d", len(args))
	}
	if filter.CreatedByID != 0 {
		args = append(args, filter.CreatedByID)
		fmt.Fprintf(&sb, " AND created_by_id = $%d", len(args))
	}
	if filter.PublishedOnly {
		args = append(args, models.ArticlePublished)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		fmt.Fprintf(&sb, " AND (title ILIKE $%d OR headline ILIKE $%d)", len(args), len(args))
	}
	sb.WriteString(" ORDER BY created_date DESC, id DESC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Article
	for rows.Next() {
		article := &models.Article{}
		if err := rows.Scan(
			&article.ID, &article.Title, &article.Headline, &article.Content,
			&article.Source, &article.Status, &article.CategoryID,
			&article.CreatedByID, &article.UpdatedByID, &article.CreatedDate, &article.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, article *models.Article) error {
	query := `
		UPDATE articles
		SET title = $2, headline = $3, content = $4, source = $5,
			status = $6, category_id = $7, updated_by_id = $8
		WHERE id = $1 AND NOT is_deleted
	`
	res, err := r.db.ExecContext(ctx, query,
		article.ID, article.Title, article.Headline, article.Content,
		article.Source, article.Status, article.CategoryID, article.UpdatedByID)
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
	return r.replaceTags(ctx, article.ID, article.TagIDs)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE articles SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`, id)
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

// replaceTags rewrites the article's tag links. Callers that need atomicity
// with the article row run the repository inside dbx.WithTx.
func (r *PostgresRepository) replaceTags(ctx context.Context, articleID int64, tagIDs []int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM article_tags WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO article_tags (article_id, tag_id) VALUES ($1, $2)`,
			articleID, tagID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) tagIDs(ctx context.Context, articleID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag_id FROM article_tags WHERE article_id = $1 ORDER BY tag_id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
