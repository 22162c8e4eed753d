package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/server/models"
	"github.com/funews/funews/internal/server/repositories/articles"
	"github.com/funews/funews/internal/server/repositories/repomanager"
)

// NewsService manages categories, articles, and tags.
type NewsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewNewsService(db *sql.DB, m repomanager.RepositoryManager) *NewsService {
	return &NewsService{db: db, repomanager: m}
}

// --- categories ---

func (s *NewsService) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	return s.repomanager.Categories(s.db).Create(ctx, category)
}

func (s *NewsService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.repomanager.Categories(s.db).GetByID(ctx, id)
}

func (s *NewsService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.repomanager.Categories(s.db).List(ctx)
}

func (s *NewsService) UpdateCategory(ctx context.Context, category *models.Category) error {
	return s.repomanager.Categories(s.db).Update(ctx, category)
}

// DeleteCategory soft-deletes a category; it fails with common.ErrConflict
// while articles still reference it.
func (s *NewsService) DeleteCategory(ctx context.Context, id int64) error {
	return s.repomanager.Categories(s.db).SoftDelete(ctx, id)
}

// --- articles ---

// CreateArticle stores the article and its tag links in one transaction.
func (s *NewsService) CreateArticle(ctx context.Context, article *models.Article) (*models.Article, error) {
	var created *models.Article
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Articles(tx).Create(ctx, article)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating article: %w", err)
	}
	return created, nil
}

func (s *NewsService) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	return s.repomanager.Articles(s.db).GetByID(ctx, id)
}

func (s *NewsService) ListArticles(ctx context.Context, filter articles.Filter) ([]*models.Article, error) {
	return s.repomanager.Articles(s.db).List(ctx, filter)
}

// UpdateArticle rewrites the article and replaces its tag links in one
// transaction, recording the updating account.
func (s *NewsService) UpdateArticle(ctx context.Context, article *models.Article, updatedByID int64) error {
	article.UpdatedByID = &updatedByID
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Articles(tx).Update(ctx, article)
	})
}

func (s *NewsService) DeleteArticle(ctx context.Context, id int64) error {
	return s.repomanager.Articles(s.db).SoftDelete(ctx, id)
}

// --- tags ---

func (s *NewsService) CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	return s.repomanager.Tags(s.db).Create(ctx, tag)
}

func (s *NewsService) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	return s.repomanager.Tags(s.db).GetByID(ctx, id)
}

func (s *NewsService) ListTags(ctx context.Context) ([]*models.Tag, error) {
	return s.repomanager.Tags(s.db).List(ctx)
}

func (s *NewsService) UpdateTag(ctx context.Context, tag *models.Tag) error {
	return s.repomanager.Tags(s.db).Update(ctx, tag)
}

func (s *NewsService) DeleteTag(ctx context.Context, id int64) error {
	return s.repomanager.Tags(s.db).SoftDelete(ctx, id)
}
