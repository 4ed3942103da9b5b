package product

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type countingRepo struct {
	Repository
	gets int
}

func (c *countingRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	c.gets++
	return c.Repository.Get(ctx, id)
}

func TestCachedRepo_ReadThroughAndInvalidate(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	inner := &countingRepo{Repository: New(docstore.NewMemory(), zerolog.Nop())}
	repo := NewCached(inner, rdb, time.Minute, zerolog.Nop())
	id := uuid.NewString()
	require.NoError(t, repo.Save(ctx, domain.Product{ID: id, Name: "Tea", Price: 3, Category: "drinks"}))

	for i := 0; i < 3; i++ {
		p, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Tea", p.Name)
	}
	assert.Equal(t, 1, inner.gets)

	require.NoError(t, repo.Save(ctx, domain.Product{ID: id, Name: "Green tea", Price: 3, Category: "drinks"}))
	p, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Green tea", p.Name)
	assert.Equal(t, 2, inner.gets)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCachedRepo_FallsThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	inner := New(docstore.NewMemory(), zerolog.Nop())
	require.NoError(t, inner.Save(ctx, domain.Product{ID: "p1", Name: "Tea", Price: 3, Category: "drinks"}))

	repo := NewCached(inner, rdb, time.Minute, zerolog.Nop())
	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Tea", p.Name)
}
