package product

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
)

// cachedRepo is a cache-aside decorator for product lookups. Redis failures
// are logged and the call falls through to the wrapped repository.
type cachedRepo struct {
	Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCached(next Repository, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) Repository {
	return &cachedRepo{Repository: next, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(id string) string {
	return "storefront:product:" + id
}

func (r *cachedRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	raw, err := r.rdb.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		r.logger.Warn().Str("product_id", id).Msg("product cache: undecodable entry")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn().Err(err).Str("product_id", id).Msg("product cache: get")
	}

	p, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := r.rdb.Set(ctx, cacheKey(id), raw, r.ttl).Err(); err != nil {
			r.logger.Warn().Err(err).Str("product_id", id).Msg("product cache: set")
		}
	}
	return p, nil
}

func (r *cachedRepo) Save(ctx context.Context, p domain.Product) error {
	if err := r.Repository.Save(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

func (r *cachedRepo) Delete(ctx context.Context, id string) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedRepo) invalidate(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Warn().Err(err).Str("product_id", id).Msg("product cache: invalidate")
	}
}
