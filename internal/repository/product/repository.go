package product

import (
	"context"

	"storefront/internal/domain"
)

const Collection = "products"

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Save(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id string) error
}
