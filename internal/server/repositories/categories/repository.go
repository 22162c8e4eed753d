// Package categories declares persistence for news categories.
package categories

import (
	"context"

	"github.com/funews/funews/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, category *models.Category) (*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	// SoftDelete hides the category. It fails with common.ErrConflict if
	// any article still references it.
	SoftDelete(ctx context.Context, id int64) error
}
