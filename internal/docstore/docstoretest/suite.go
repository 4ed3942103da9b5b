// Package docstoretest holds the behaviour every docstore backend must share.
package docstoretest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"storefront/internal/docstore"
)

// Suite runs the store contract. Backends embed it and set NewStore.
type Suite struct {
	suite.Suite
	NewStore func() docstore.Store

	store  docstore.Store
	prefix string
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore()
	s.prefix = "t" + uuid.NewString()[:8]
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *Suite) coll(name string) string {
	return s.prefix + "-" + name
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}

func (s *Suite) TestCreateGet() {
	ctx := context.Background()
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := s.store.Create(ctx, s.coll("carts"), "c1", docstore.Data{
		"dateCreated": when,
		"userId":      nil,
	})
	s.Require().NoError(err)

	doc, err := s.store.Get(ctx, s.coll("carts"), "c1")
	s.Require().NoError(err)
	s.Equal("c1", doc.ID)
	got, ok := docstore.Time(doc.Data["dateCreated"])
	s.Require().True(ok)
	s.True(when.Equal(got))
	s.Nil(docstore.OptString(doc.Data["userId"]))
}

func (s *Suite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), s.coll("carts"), "nope")
	s.ErrorIs(err, docstore.ErrNotFound)
}

func (s *Suite) TestCreateMerges() {
	ctx := context.Background()
	c := s.coll("products")
	s.Require().NoError(s.store.Create(ctx, c, "p1", docstore.Data{"name": "Tea", "price": 2.5}))
	s.Require().NoError(s.store.Create(ctx, c, "p1", docstore.Data{"price": 3.0}))

	doc, err := s.store.Get(ctx, c, "p1")
	s.Require().NoError(err)
	s.Equal("Tea", docstore.String(doc.Data["name"]))
	price, ok := docstore.Float(doc.Data["price"])
	s.True(ok)
	s.InDelta(3.0, price, 1e-9)
}

func (s *Suite) TestUpdate() {
	ctx := context.Background()
	c := s.coll("items")
	err := s.store.Update(ctx, c, "missing", docstore.Data{"count": 1})
	s.ErrorIs(err, docstore.ErrNotFound)

	s.Require().NoError(s.store.Create(ctx, c, "p1", docstore.Data{"count": 1}))
	s.Require().NoError(s.store.Update(ctx, c, "p1", docstore.Data{"count": 4}))
	doc, err := s.store.Get(ctx, c, "p1")
	s.Require().NoError(err)
	n, ok := docstore.Int(doc.Data["count"])
	s.True(ok)
	s.Equal(4, n)
}

func (s *Suite) TestDeleteIdempotent() {
	ctx := context.Background()
	c := s.coll("items")
	s.Require().NoError(s.store.Create(ctx, c, "p1", docstore.Data{"count": 1}))
	s.Require().NoError(s.store.Delete(ctx, c, "p1"))
	s.Require().NoError(s.store.Delete(ctx, c, "p1"))

	_, err := s.store.Get(ctx, c, "p1")
	s.ErrorIs(err, docstore.ErrNotFound)
}

func (s *Suite) TestSubCollectionsAreScoped() {
	ctx := context.Background()
	a := docstore.Path(s.coll("carts"), "a", "products")
	b := docstore.Path(s.coll("carts"), "b", "products")
	s.Require().NoError(s.store.Create(ctx, a, "p1", docstore.Data{"count": 1}))
	s.Require().NoError(s.store.Create(ctx, a, "p2", docstore.Data{"count": 2}))
	s.Require().NoError(s.store.Create(ctx, b, "p1", docstore.Data{"count": 5}))

	docs, err := s.store.GetAll(ctx, a)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("p1", docs[0].ID)
	s.Equal("p2", docs[1].ID)

	docs, err = s.store.GetAll(ctx, b)
	s.Require().NoError(err)
	s.Len(docs, 1)
}

func (s *Suite) TestQuery() {
	ctx := context.Background()
	c := s.coll("orders")
	s.Require().NoError(s.store.Create(ctx, c, "o1", docstore.Data{"userId": "u1", "totalPrice": 10.0, "tags": []interface{}{"gift"}}))
	s.Require().NoError(s.store.Create(ctx, c, "o2", docstore.Data{"userId": "u2", "totalPrice": 25.5, "tags": []interface{}{}}))
	s.Require().NoError(s.store.Create(ctx, c, "o3", docstore.Data{"userId": "u1", "totalPrice": 40.0, "tags": []interface{}{"gift", "rush"}}))

	ids := func(f docstore.Filter) []string {
		docs, err := s.store.Query(ctx, c, f)
		s.Require().NoError(err)
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	s.Equal([]string{"o1", "o3"}, ids(docstore.Where("userId", docstore.OpEq, "u1")))
	s.Equal([]string{"o2"}, ids(docstore.Where("userId", docstore.OpNe, "u1")))
	s.Equal([]string{"o2", "o3"}, ids(docstore.Where("totalPrice", docstore.OpGt, 10.0)))
	s.Equal([]string{"o1", "o2"}, ids(docstore.Where("totalPrice", docstore.OpLte, 25.5)))
	s.Equal([]string{"o2", "o3"}, ids(docstore.Where("totalPrice", docstore.OpGte, 25.5)))
	s.Equal([]string{"o1"}, ids(docstore.Where("totalPrice", docstore.OpLt, 25.5)))
	s.Equal([]string{"o2"}, ids(docstore.Where("userId", docstore.OpIn, []interface{}{"u2", "u9"})))
	s.Equal([]string{"o3"}, ids(docstore.Where("tags", docstore.OpArrayContains, "rush")))
	s.Empty(ids(docstore.Where("userId", docstore.OpEq, "nobody")))
}

func (s *Suite) TestTransactionCommits() {
	t, ok := s.store.(docstore.Transactor)
	if !ok {
		s.T().Skip("store has no transactions")
	}
	ctx := context.Background()
	c := s.coll("carts")
	err := t.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, c, "c1"); !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if err := tx.Create(ctx, c, "c1", docstore.Data{"userId": "u1"}); err != nil {
			return err
		}
		return tx.Create(ctx, docstore.Path(c, "c1", "products"), "p1", docstore.Data{"count": 1})
	})
	s.Require().NoError(err)

	_, err = s.store.Get(ctx, c, "c1")
	s.NoError(err)
	_, err = s.store.Get(ctx, docstore.Path(c, "c1", "products"), "p1")
	s.NoError(err)
}

func (s *Suite) TestTransactionRollsBackOnError() {
	t, ok := s.store.(docstore.Transactor)
	if !ok {
		s.T().Skip("store has no transactions")
	}
	ctx := context.Background()
	c := s.coll("carts")
	s.Require().NoError(s.store.Create(ctx, c, "c1", docstore.Data{"userId": "u1"}))

	boom := errors.New("boom")
	err := t.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Delete(ctx, c, "c1"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.Get(ctx, c, "c1")
	s.NoError(err)
}

func (s *Suite) TestTransactionUpdateMissingFails() {
	t, ok := s.store.(docstore.Transactor)
	if !ok {
		s.T().Skip("store has no transactions")
	}
	ctx := context.Background()
	c := s.coll("carts")
	err := t.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Create(ctx, c, "c1", docstore.Data{"n": 1}); err != nil {
			return err
		}
		return tx.Update(ctx, c, "c2", docstore.Data{"n": 2})
	})
	s.Error(err)

	_, err = s.store.Get(ctx, c, "c1")
	s.ErrorIs(err, docstore.ErrNotFound)
}

func (s *Suite) TestRunAtomicFallsBack() {
	ctx := context.Background()
	c := s.coll("carts")
	na := docstore.NonAtomic(s.store)
	s.False(docstore.IsAtomic(na))

	boom := errors.New("boom")
	err := docstore.RunAtomic(ctx, na, func(ctx context.Context, ops docstore.Ops) error {
		if err := ops.Create(ctx, c, "c1", docstore.Data{"n": 1}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	// Without a transaction the first write stays.
	_, err = s.store.Get(ctx, c, "c1")
	s.NoError(err)
}
