package cart

import (
	"context"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/lineitem"
)

// Teardown removes a cart. It is split from PrepareTeardown so that the reads
// happen before any write of an enclosing transaction.
type Teardown struct {
	CartID string
	Items  []domain.LineItem
}

func PrepareTeardown(ctx context.Context, ops docstore.Ops, cartID string) (Teardown, error) {
	items, err := lineitem.New(ops, cartID).List(ctx)
	if err != nil {
		return Teardown{}, err
	}
	return Teardown{CartID: cartID, Items: items}, nil
}

// Apply deletes the line items and then the root, so that a partial failure
// never leaves items without a root.
func (t Teardown) Apply(ctx context.Context, ops docstore.Ops) error {
	items := lineitem.New(ops, t.CartID)
	for _, it := range t.Items {
		if err := items.Remove(ctx, it.ProductID); err != nil {
			return err
		}
	}
	return cartrepo.New(ops).Delete(ctx, t.CartID)
}
