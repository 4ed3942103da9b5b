package cart

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/lineitem"
	"storefront/internal/repository/product"
)

// faultOps fails the calls fail returns an error for.
type faultOps struct {
	docstore.Ops
	fail func(method, collection string) error
}

func (f faultOps) check(method, collection string) error {
	if f.fail == nil {
		return nil
	}
	return f.fail(method, collection)
}

func (f faultOps) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	if err := f.check("get", collection); err != nil {
		return docstore.Doc{}, err
	}
	return f.Ops.Get(ctx, collection, id)
}

func (f faultOps) GetAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	if err := f.check("getall", collection); err != nil {
		return nil, err
	}
	return f.Ops.GetAll(ctx, collection)
}

func (f faultOps) Query(ctx context.Context, collection string, q docstore.Filter) ([]docstore.Doc, error) {
	if err := f.check("query", collection); err != nil {
		return nil, err
	}
	return f.Ops.Query(ctx, collection, q)
}

func (f faultOps) Create(ctx context.Context, collection, id string, data docstore.Data) error {
	if err := f.check("create", collection); err != nil {
		return err
	}
	return f.Ops.Create(ctx, collection, id, data)
}

func (f faultOps) Update(ctx context.Context, collection, id string, data docstore.Data) error {
	if err := f.check("update", collection); err != nil {
		return err
	}
	return f.Ops.Update(ctx, collection, id, data)
}

func (f faultOps) Delete(ctx context.Context, collection, id string) error {
	if err := f.check("delete", collection); err != nil {
		return err
	}
	return f.Ops.Delete(ctx, collection, id)
}

// faultStore is a memory store whose direct and transactional calls can be
// made to fail.
type faultStore struct {
	faultOps
	mem *docstore.Memory
}

func newFaultStore() *faultStore {
	mem := docstore.NewMemory()
	return &faultStore{faultOps: faultOps{Ops: mem}, mem: mem}
}

func (s *faultStore) Ping(ctx context.Context) error { return s.mem.Ping(ctx) }
func (s *faultStore) Close() error                   { return s.mem.Close() }

func (s *faultStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.mem.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, faultOps{Ops: tx, fail: s.fail})
	})
}

func isItems(collection string) bool {
	return len(collection) > len(cartrepo.Collection) && collection[:len(cartrepo.Collection)+1] == cartrepo.Collection+"/"
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(store docstore.Ops, bus events.Bus) *Engine {
	e := NewEngine(store, bus, nil, zerolog.Nop())
	e.now = func() time.Time { return fixedNow }
	return e
}

func seedCatalog(t *testing.T, store docstore.Ops) product.Repository {
	t.Helper()
	repo := product.New(store, zerolog.Nop())
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p1", Name: "Bread", Price: 9.99, Category: "bread"},
		{ID: "p2", Name: "Milk", Price: 1.10, Category: "dairy"},
		{ID: "p3", Name: "Apples", Price: 0.35, Category: "fruits"},
		{ID: "p4", Name: "Spinach", Price: 2.20, Category: "vegetables"},
	} {
		require.NoError(t, repo.Save(ctx, p))
	}
	return repo
}

// assertConsistent checks that cartID has a root exactly when it has items.
func assertConsistent(t *testing.T, store docstore.Ops, cartID string) {
	t.Helper()
	ctx := context.Background()
	_, err := cartrepo.New(store).Get(ctx, cartID)
	rootExists := err == nil
	if err != nil {
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	items, err := lineitem.New(store, cartID).List(ctx)
	require.NoError(t, err)
	for _, it := range items {
		require.Greater(t, it.Count, 0, "cart %s product %s", cartID, it.ProductID)
	}
	require.Equal(t, rootExists, len(items) > 0, "cart %s root=%v items=%d", cartID, rootExists, len(items))
}
