// Package tags declares persistence for article tags.
package tags

import (
	"context"

	"github.com/funews/funews/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	GetByID(ctx context.Context, id int64) (*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
	Update(ctx context.Context, tag *models.Tag) error
	SoftDelete(ctx context.Context, id int64) error
}
