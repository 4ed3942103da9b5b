package cart

import (
	"context"

	"storefront/internal/domain"
)

// Collection holds cart root documents; line items live in a sub-collection
// per cart, see package lineitem.
const Collection = "shopping-carts"

type Repository interface {
	Get(ctx context.Context, id string) (*domain.Cart, error)
	// Create writes the root, merging into an existing one.
	Create(ctx context.Context, c domain.Cart) error
	SetUser(ctx context.Context, id string, userID *string) error
	Delete(ctx context.Context, id string) error
	FindByUser(ctx context.Context, userID string) (*domain.Cart, error)
	List(ctx context.Context) ([]domain.Cart, error)
}
