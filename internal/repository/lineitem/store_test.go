package lineitem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

func TestStore_PutListRemove(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	s := New(mem, "c1")

	require.NoError(t, s.Put(ctx, domain.LineItem{ProductID: "p2", Count: 1}))
	require.NoError(t, s.Put(ctx, domain.LineItem{ProductID: "p1", Count: 3}))
	require.NoError(t, s.Put(ctx, domain.LineItem{ProductID: "p1", Count: 4}))

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: "p1", Count: 4}, {ProductID: "p2", Count: 1}}, items)

	got, err := s.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)

	require.NoError(t, s.Remove(ctx, "p2"))
	require.NoError(t, s.Remove(ctx, "p2"))
	_, err = s.Get(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RejectsNonPositive(t *testing.T) {
	s := New(docstore.NewMemory(), "c1")
	err := s.Put(context.Background(), domain.LineItem{ProductID: "p1", Count: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestStore_ScopedToCart(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	a := New(mem, "a")
	b := New(mem, "b")

	require.NoError(t, a.Put(ctx, domain.LineItem{ProductID: "p1", Count: 2}))
	require.NoError(t, b.Put(ctx, domain.LineItem{ProductID: "p9", Count: 1}))
	require.NoError(t, a.RemoveAll(ctx))

	items, err := a.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "shopping-carts/a/products", Collection("a"))
}
