package cart

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cartid"
	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	cartrepo "storefront/internal/repository/cart"
	productrepo "storefront/internal/repository/product"
	productsvc "storefront/internal/service/product"
)

type sessionEnv struct {
	store     *docstore.Memory
	bus       *events.Local
	engine    *Engine
	projector *Projector
}

func newSessionEnv(t *testing.T) *sessionEnv {
	store := docstore.NewMemory()
	bus := events.NewLocal()
	products := seedCatalog(t, store)
	return &sessionEnv{
		store:     store,
		bus:       bus,
		engine:    newTestEngine(store, bus),
		projector: NewProjector(store, products),
	}
}

func (env *sessionEnv) open(t *testing.T, storage cartid.Storage) *Session {
	t.Helper()
	s, err := Open(context.Background(), env.engine, env.projector, cartid.NewResolver(storage), env.bus, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSession_SubscribeReplaysAndUpdates(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()

	ch, cancel := s.Subscribe()
	defer cancel()
	first := <-ch
	assert.True(t, first.IsEmpty())
	assert.Equal(t, s.CartID(), first.CartID)

	require.NoError(t, s.SetQuantity(ctx, "p1", 3))
	require.NoError(t, s.Add(ctx, "p2", 1))

	snap := s.Snapshot()
	assert.Equal(t, 4, snap.TotalQuantity)
	assert.InDelta(t, 9.99*3+1.10, snap.TotalPrice, domain.PriceTolerance)

	require.Eventually(t, func() bool {
		select {
		case got := <-ch:
			return got.TotalQuantity == 4
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSession_FollowsOtherSessions(t *testing.T) {
	env := newSessionEnv(t)
	storage := cartid.NewMemoryStorage()
	a := env.open(t, storage)
	b := env.open(t, storage)
	require.Equal(t, a.CartID(), b.CartID())

	require.NoError(t, a.SetQuantity(context.Background(), "p3", 2))
	require.Eventually(t, func() bool {
		return b.Snapshot().TotalQuantity == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Empty(context.Background()))
	require.Eventually(t, func() bool {
		return b.Snapshot().IsEmpty()
	}, time.Second, 5*time.Millisecond)
}

func TestSession_EmptyRemovesCart(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.SetQuantity(ctx, "p1", 1))
	require.NoError(t, s.SetQuantity(ctx, "p2", 1))

	require.NoError(t, s.Empty(ctx))
	assert.True(t, s.Snapshot().IsEmpty())
	_, err := cartrepo.New(env.store).Get(ctx, s.CartID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSession_BindUserStampsCurrentCart(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.SetQuantity(ctx, "p1", 1))
	cartID := s.CartID()

	require.NoError(t, s.BindUser(ctx, "u1"))
	assert.Equal(t, cartID, s.CartID())
	assert.Equal(t, "u1", s.UserID())

	root, err := cartrepo.New(env.store).Get(ctx, cartID)
	require.NoError(t, err)
	require.NotNil(t, root.UserID)
	assert.Equal(t, "u1", *root.UserID)
}

func TestSession_BindUserWithoutCartStampsLaterCreate(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, s.BindUser(ctx, "u1"))
	require.NoError(t, s.SetQuantity(ctx, "p2", 1))

	root, err := cartrepo.New(env.store).Get(ctx, s.CartID())
	require.NoError(t, err)
	require.NotNil(t, root.UserID)
	assert.Equal(t, "u1", *root.UserID)
}

func TestSession_BindUserSwitchesToOwnedCart(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	owned := env.open(t, cartid.NewMemoryStorage())
	require.NoError(t, owned.BindUser(ctx, "u1"))
	require.NoError(t, owned.SetQuantity(ctx, "p1", 2))

	guestStorage := cartid.NewMemoryStorage()
	guest := env.open(t, guestStorage)
	require.NoError(t, guest.SetQuantity(ctx, "p4", 1))
	guestCart := guest.CartID()

	require.NoError(t, guest.BindUser(ctx, "u1"))
	assert.Equal(t, owned.CartID(), guest.CartID())
	assert.Equal(t, 2, guest.Snapshot().TotalQuantity)

	stored, ok, err := guestStorage.GetItem(cartid.Slot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, owned.CartID(), stored)

	// The guest cart is left as it was; nothing is merged.
	root, err := cartrepo.New(env.store).Get(ctx, guestCart)
	require.NoError(t, err)
	assert.Nil(t, root.UserID)
}

func TestSession_UnbindUserRotatesOwnedCart(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.BindUser(ctx, "u1"))
	require.NoError(t, s.SetQuantity(ctx, "p1", 1))
	before := s.CartID()

	require.NoError(t, s.UnbindUser(ctx))
	assert.NotEqual(t, before, s.CartID())
	assert.Empty(t, s.UserID())
	assert.True(t, s.Snapshot().IsEmpty())

	_, err := cartrepo.New(env.store).Get(ctx, before)
	assert.NoError(t, err)
}

func TestSession_UnbindUserKeepsGuestCart(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.SetQuantity(ctx, "p1", 1))
	before := s.CartID()

	require.NoError(t, s.UnbindUser(ctx))
	assert.Equal(t, before, s.CartID())
}

func TestSession_BindUserRequiresID(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	assert.ErrorIs(t, s.BindUser(context.Background(), ""), domain.ErrUnauthorized)
}

func TestSession_Close(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ch, _ := s.Subscribe()
	<-ch

	s.Close()
	s.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.ErrorIs(t, s.SetQuantity(context.Background(), "p1", 1), ErrSessionClosed)

	late, _ := s.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestSession_RepricesOnCatalogChange(t *testing.T) {
	env := newSessionEnv(t)
	s := env.open(t, cartid.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, s.SetQuantity(ctx, "p1", 2))
	require.NoError(t, s.SetQuantity(ctx, "p2", 1))
	require.InDelta(t, 2*9.99+1.10, s.Snapshot().TotalPrice, domain.PriceTolerance)

	catalog := productsvc.New(productrepo.New(env.store, zerolog.Nop()), env.engine, env.bus, zerolog.Nop())
	_, err := catalog.Save(ctx, domain.Product{ID: "p1", Name: "Bread", Price: 20, Category: "bread"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.TotalPrice > 41.09 && snap.TotalPrice < 41.11
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, catalog.Delete(ctx, "p2"))
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.TotalQuantity == 2 && snap.TotalPrice > 39.99 && snap.TotalPrice < 40.01
	}, time.Second, 5*time.Millisecond)
}
