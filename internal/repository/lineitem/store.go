// Package lineitem stores the product counts of a single cart.
package lineitem

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

// Collection returns the sub-collection holding cartID's line items.
func Collection(cartID string) string {
	return docstore.Path(cartrepo.Collection, cartID, "products")
}

type Store interface {
	List(ctx context.Context) ([]domain.LineItem, error)
	Get(ctx context.Context, productID string) (*domain.LineItem, error)
	Put(ctx context.Context, item domain.LineItem) error
	Remove(ctx context.Context, productID string) error
	RemoveAll(ctx context.Context) error
}

type docsStore struct {
	ops        docstore.Ops
	collection string
}

// New scopes a Store to cartID. Every call stays inside that cart.
func New(ops docstore.Ops, cartID string) Store {
	return &docsStore{ops: ops, collection: Collection(cartID)}
}

func (s *docsStore) List(ctx context.Context) ([]domain.LineItem, error) {
	docs, err := s.ops.GetAll(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LineItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func (s *docsStore) Get(ctx context.Context, productID string) (*domain.LineItem, error) {
	doc, err := s.ops.Get(ctx, s.collection, productID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	item := fromDoc(doc)
	return &item, nil
}

func (s *docsStore) Put(ctx context.Context, item domain.LineItem) error {
	if item.Count < 1 {
		return fmt.Errorf("put %s count %d: %w", item.ProductID, item.Count, domain.ErrInvalidQuantity)
	}
	return s.ops.Create(ctx, s.collection, item.ProductID, docstore.Data{
		"id":    item.ProductID,
		"count": item.Count,
	})
}

func (s *docsStore) Remove(ctx context.Context, productID string) error {
	return s.ops.Delete(ctx, s.collection, productID)
}

func (s *docsStore) RemoveAll(ctx context.Context) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.Remove(ctx, it.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func fromDoc(doc docstore.Doc) domain.LineItem {
	n, _ := docstore.Int(doc.Data["count"])
	return domain.LineItem{ProductID: doc.ID, Count: n}
}
