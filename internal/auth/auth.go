// Package auth turns bearer tokens into users.
package auth

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// ErrInvalidToken indicates the provided token could not be validated.
var ErrInvalidToken = errors.New("invalid token")

type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}
