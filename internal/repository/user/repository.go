package user

import (
	"context"

	"storefront/internal/domain"
)

const Collection = "users"

// Repository persists and fetches users.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, u domain.User) error
}
