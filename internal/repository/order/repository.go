package order

import (
	"context"

	"storefront/internal/domain"
)

const Collection = "orders"

type Repository interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}
