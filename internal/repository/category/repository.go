package category

import (
	"context"

	"storefront/internal/domain"
)

const Collection = "categories"

type Repository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Save(ctx context.Context, c domain.Category) error
}
