package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/lineitem"
)

func stores() map[string]func() docstore.Store {
	return map[string]func() docstore.Store{
		"transactional": func() docstore.Store { return docstore.NewMemory() },
		"sequential":    func() docstore.Store { return docstore.NonAtomic(docstore.NewMemory()) },
	}
}

func TestEngine_FirstAdd(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			e := newTestEngine(store, nil)

			plan, err := e.SetQuantity(ctx, "c1", "", "p1", 1)
			require.NoError(t, err)
			assert.Equal(t, TransitionCreate, plan.Transition)

			root, err := cartrepo.New(store).Get(ctx, "c1")
			require.NoError(t, err)
			assert.True(t, fixedNow.Equal(root.DateCreated))
			assert.Nil(t, root.UserID)

			list, err := lineitem.New(store, "c1").List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []domain.LineItem{{ProductID: "p1", Count: 1}}, list)
		})
	}
}

func TestEngine_FirstAddStampsUser(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	_, err := e.SetQuantity(ctx, "c1", "u1", "p1", 2)
	require.NoError(t, err)

	root, err := cartrepo.New(store).Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, root.UserID)
	assert.Equal(t, "u1", *root.UserID)
}

func TestEngine_IncrementKeepsDateCreated(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	_, err := e.SetQuantity(ctx, "c1", "", "p1", 1)
	require.NoError(t, err)

	e.now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	plan, err := e.SetQuantity(ctx, "c1", "", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, TransitionUpsert, plan.Transition)

	root, err := cartrepo.New(store).Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(root.DateCreated))

	item, err := lineitem.New(store, "c1").Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Count)
}

func TestEngine_LastItemRemovedEmptiesCart(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			bus := events.NewLocal()
			var got []events.Kind
			_, err := bus.Subscribe("c1", func(ev events.CartChanged) { got = append(got, ev.Kind) })
			require.NoError(t, err)
			e := newTestEngine(store, bus)

			_, err = e.SetQuantity(ctx, "c1", "", "p1", 3)
			require.NoError(t, err)
			plan, err := e.SetQuantity(ctx, "c1", "", "p1", 0)
			require.NoError(t, err)
			assert.Equal(t, TransitionRemoveLast, plan.Transition)
			assert.True(t, plan.Emptied)

			_, err = cartrepo.New(store).Get(ctx, "c1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assertConsistent(t, store, "c1")
			assert.Equal(t, []events.Kind{events.KindUpdated, events.KindEmptied}, got)
		})
	}
}

func TestEngine_PartialRemoval(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	_, err := e.SetQuantity(ctx, "c1", "", "p1", 1)
	require.NoError(t, err)
	_, err = e.SetQuantity(ctx, "c1", "", "p2", 2)
	require.NoError(t, err)

	plan, err := e.SetQuantity(ctx, "c1", "", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemove, plan.Transition)
	assert.False(t, plan.Emptied)

	_, err = cartrepo.New(store).Get(ctx, "c1")
	require.NoError(t, err)
	list, err := lineitem.New(store, "c1").List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: "p2", Count: 2}}, list)
}

func TestEngine_RemovalIsIdempotent(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			e := newTestEngine(store, nil)

			_, err := e.SetQuantity(ctx, "c1", "", "p1", 1)
			require.NoError(t, err)
			_, err = e.SetQuantity(ctx, "c1", "", "p1", 0)
			require.NoError(t, err)

			plan, err := e.SetQuantity(ctx, "c1", "", "p1", 0)
			require.NoError(t, err)
			assert.Equal(t, TransitionNone, plan.Transition)
			plan, err = e.SetQuantity(ctx, "c1", "", "p1", -5)
			require.NoError(t, err)
			assert.Equal(t, TransitionNone, plan.Transition)
			assertConsistent(t, store, "c1")
		})
	}
}

func TestEngine_AddQuantity(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	_, err := e.AddQuantity(ctx, "c1", "", "p1", 1)
	require.NoError(t, err)
	_, err = e.AddQuantity(ctx, "c1", "", "p1", 2)
	require.NoError(t, err)
	item, err := lineitem.New(store, "c1").Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, item.Count)

	plan, err := e.AddQuantity(ctx, "c1", "", "p1", -3)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemoveLast, plan.Transition)
	assertConsistent(t, store, "c1")
}

func TestEngine_RepairsEmptyRoot(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, cartrepo.New(store).Create(ctx, domain.Cart{ID: "c1", DateCreated: fixedNow}))
	e := newTestEngine(store, nil)

	plan, err := e.SetQuantity(ctx, "c1", "", "p9", 0)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemoveLast, plan.Transition)
	assert.NotEmpty(t, plan.Repair)
	assertConsistent(t, store, "c1")
}

func TestEngine_RepairsOrphanItems(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, lineitem.New(store, "c1").Put(ctx, domain.LineItem{ProductID: "p1", Count: 1}))
	require.NoError(t, lineitem.New(store, "c1").Put(ctx, domain.LineItem{ProductID: "p2", Count: 1}))
	e := newTestEngine(store, nil)

	plan, err := e.SetQuantity(ctx, "c1", "", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemove, plan.Transition)
	assertConsistent(t, store, "c1")
}

func TestEngine_Empty(t *testing.T) {
	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := mk()
			e := newTestEngine(store, nil)
			for _, p := range []string{"p1", "p2", "p3"} {
				_, err := e.SetQuantity(ctx, "c1", "", p, 2)
				require.NoError(t, err)
			}

			require.NoError(t, e.Empty(ctx, "c1"))
			require.NoError(t, e.Empty(ctx, "c1"))

			_, err := cartrepo.New(store).Get(ctx, "c1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assertConsistent(t, store, "c1")
		})
	}
}

func TestEngine_RemoveProductEverywhere(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	_, err := e.SetQuantity(ctx, "a", "", "p1", 1)
	require.NoError(t, err)
	_, err = e.SetQuantity(ctx, "b", "", "p1", 2)
	require.NoError(t, err)
	_, err = e.SetQuantity(ctx, "b", "", "p2", 1)
	require.NoError(t, err)
	_, err = e.SetQuantity(ctx, "c", "", "p3", 1)
	require.NoError(t, err)

	require.NoError(t, e.RemoveProductEverywhere(ctx, "p1"))

	_, err = cartrepo.New(store).Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	list, err := lineitem.New(store, "b").List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: "p2", Count: 1}}, list)
	list, err = lineitem.New(store, "c").List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	for _, id := range []string{"a", "b", "c"} {
		assertConsistent(t, store, id)
	}
}

func TestEngine_RemoveProductEverywhereSkipsRootlessItems(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)
	require.NoError(t, lineitem.New(store, "orphan").Put(ctx, domain.LineItem{ProductID: "p1", Count: 2}))

	require.NoError(t, e.RemoveProductEverywhere(ctx, "p1"))
	list, err := lineitem.New(store, "orphan").List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	plan, err := e.SetQuantity(ctx, "orphan", "", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemoveLast, plan.Transition)
	assert.NotEmpty(t, plan.Repair)
	list, err = lineitem.New(store, "orphan").List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assertConsistent(t, store, "orphan")
}

func TestEngine_RemoveProductEverywhereJoinsErrors(t *testing.T) {
	ctx := context.Background()
	store := newFaultStore()
	e := newTestEngine(store, nil)
	_, err := e.SetQuantity(ctx, "a", "", "p1", 1)
	require.NoError(t, err)
	_, err = e.SetQuantity(ctx, "b", "", "p1", 1)
	require.NoError(t, err)

	store.fail = func(method, collection string) error {
		if method == "delete" {
			return errors.New("unavailable")
		}
		return nil
	}
	err = e.RemoveProductEverywhere(ctx, "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart a")
	assert.Contains(t, err.Error(), "cart b")
	var ce *domain.CommunicationError
	assert.ErrorAs(t, err, &ce)
}

func TestEngine_AssignUser(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)
	user := "u1"

	err := e.AssignUser(ctx, "c1", &user)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.SetQuantity(ctx, "c1", "", "p1", 1)
	require.NoError(t, err)
	require.NoError(t, e.AssignUser(ctx, "c1", &user))

	found, err := e.FindUserCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)
}

func TestEngine_CommunicationErrors(t *testing.T) {
	boom := errors.New("deadline exceeded")
	cases := []struct {
		name   string
		setup  func(e *Engine)
		fail   func(method, collection string) error
		call   func(e *Engine) error
		wantOp string
	}{
		{
			name: "create cart",
			fail: func(method, collection string) error {
				if method == "create" && collection == cartrepo.Collection {
					return boom
				}
				return nil
			},
			call: func(e *Engine) error {
				_, err := e.SetQuantity(context.Background(), "c1", "", "p1", 1)
				return err
			},
			wantOp: OpCreateCart,
		},
		{
			name:  "update cart item",
			setup: func(e *Engine) { _, _ = e.SetQuantity(context.Background(), "c1", "", "p1", 1) },
			fail: func(method, collection string) error {
				if method == "create" && isItems(collection) {
					return boom
				}
				return nil
			},
			call: func(e *Engine) error {
				_, err := e.SetQuantity(context.Background(), "c1", "", "p1", 5)
				return err
			},
			wantOp: OpUpdateCartItem,
		},
		{
			name:  "remove cart item",
			setup: func(e *Engine) { _, _ = e.SetQuantity(context.Background(), "c1", "", "p1", 1) },
			fail: func(method, collection string) error {
				if method == "delete" {
					return boom
				}
				return nil
			},
			call: func(e *Engine) error {
				_, err := e.SetQuantity(context.Background(), "c1", "", "p1", 0)
				return err
			},
			wantOp: OpRemoveCartItem,
		},
		{
			name: "read cart",
			fail: func(method, collection string) error {
				if method == "get" {
					return boom
				}
				return nil
			},
			call: func(e *Engine) error {
				_, err := e.SetQuantity(context.Background(), "c1", "", "p1", 1)
				return err
			},
			wantOp: OpReadCart,
		},
		{
			name:  "empty cart",
			setup: func(e *Engine) { _, _ = e.SetQuantity(context.Background(), "c1", "", "p1", 1) },
			fail: func(method, collection string) error {
				if method == "delete" && collection == cartrepo.Collection {
					return boom
				}
				return nil
			},
			call:   func(e *Engine) error { return e.Empty(context.Background(), "c1") },
			wantOp: OpEmptyCart,
		},
		{
			name:  "assign cart",
			setup: func(e *Engine) { _, _ = e.SetQuantity(context.Background(), "c1", "", "p1", 1) },
			fail: func(method, collection string) error {
				if method == "update" {
					return boom
				}
				return nil
			},
			call: func(e *Engine) error {
				u := "u1"
				return e.AssignUser(context.Background(), "c1", &u)
			},
			wantOp: OpAssignCart,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFaultStore()
			e := newTestEngine(store, nil)
			if tc.setup != nil {
				tc.setup(e)
			}
			before := dump(t, store.mem)

			store.fail = tc.fail
			err := tc.call(e)

			var ce *domain.CommunicationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.wantOp, ce.Op)
			assert.ErrorIs(t, err, boom)

			// The transaction was not committed.
			store.fail = nil
			assert.Equal(t, before, dump(t, store.mem))
		})
	}
}

func TestEngine_SequentialFailureIsRepairedLater(t *testing.T) {
	ctx := context.Background()
	fs := newFaultStore()
	store := docstore.NonAtomic(fs)
	e := newTestEngine(store, nil)
	_, err := e.SetQuantity(ctx, "c1", "", "p1", 1)
	require.NoError(t, err)

	// The item delete lands, the root delete fails: an empty root remains.
	fs.fail = func(method, collection string) error {
		if method == "delete" && collection == cartrepo.Collection {
			return errors.New("unavailable")
		}
		return nil
	}
	_, err = e.SetQuantity(ctx, "c1", "", "p1", 0)
	var ce *domain.CommunicationError
	require.ErrorAs(t, err, &ce)

	fs.fail = nil
	plan, err := e.SetQuantity(ctx, "c1", "", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, TransitionRemoveLast, plan.Transition)
	assertConsistent(t, fs.mem, "c1")
}

func TestEngine_RandomSequencesKeepInvariant(t *testing.T) {
	carts := []string{"a", "b", "c"}
	products := []string{"p1", "p2", "p3", "p4"}

	for name, mk := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for seed := int64(1); seed <= 20; seed++ {
				rng := rand.New(rand.NewSource(seed))
				store := mk()
				e := newTestEngine(store, nil)

				for step := 0; step < 200; step++ {
					cartID := carts[rng.Intn(len(carts))]
					productID := products[rng.Intn(len(products))]
					var err error
					switch r := rng.Intn(10); {
					case r < 6:
						_, err = e.SetQuantity(ctx, cartID, "", productID, rng.Intn(5)-1)
					case r < 9:
						_, err = e.AddQuantity(ctx, cartID, "", productID, rng.Intn(5)-2)
					default:
						err = e.Empty(ctx, cartID)
					}
					require.NoError(t, err, fmt.Sprintf("seed %d step %d", seed, step))
					for _, id := range carts {
						assertConsistent(t, store, id)
					}
				}
			}
		})
	}
}

func TestEngine_ConcurrentWritersKeepInvariant(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	e := newTestEngine(store, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				p := fmt.Sprintf("p%d", rng.Intn(3))
				_, err := e.SetQuantity(ctx, "shared", "", p, rng.Intn(3))
				assert.NoError(t, err)
			}
		}(int64(w))
	}
	wg.Wait()
	assertConsistent(t, store, "shared")
}

func dump(t *testing.T, mem *docstore.Memory) map[string][]docstore.Doc {
	t.Helper()
	ctx := context.Background()
	out := map[string][]docstore.Doc{}
	roots, err := mem.GetAll(ctx, cartrepo.Collection)
	require.NoError(t, err)
	out[cartrepo.Collection] = roots
	for _, id := range []string{"c1"} {
		docs, err := mem.GetAll(ctx, lineitem.Collection(id))
		require.NoError(t, err)
		out[lineitem.Collection(id)] = docs
	}
	return out
}
