// Package articles declares persistence for news articles and their tag
// links.
package articles

import (
	"context"

	"github.com/funews/funews/internal/server/models"
)

// Filter narrows List results; zero values mean "no constraint".
type Filter struct {
	CategoryID  int64
	CreatedByID int64
	// PublishedOnly limits the result to published articles, which is what
	// unauthenticated readers get.
	PublishedOnly bool
	Search        string
}

type Repository interface {
	// Create inserts the article and its tag links.
	Create(ctx context.Context, article *models.Article) (*models.Article, error)
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	List(ctx context.Context, filter Filter) ([]*models.Article, error)
	// Update rewrites the article row and replaces its tag links.
	Update(ctx context.Context, article *models.Article) error
	SoftDelete(ctx context.Context, id int64) error
}
