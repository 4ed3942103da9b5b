package cart

import (
	"context"
	"errors"
	"sort"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/repository/lineitem"
)

// Project joins line items with catalog entries. Items whose product is not
// in catalog are left out. Items are summed in product id order so that the
// same inputs always give identical totals.
func Project(cartID string, items []domain.LineItem, catalog map[string]domain.Product) domain.ResolvedCart {
	sorted := make([]domain.LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	out := domain.ResolvedCart{CartID: cartID, Items: []domain.ResolvedCartItem{}}
	for _, it := range sorted {
		p, ok := catalog[it.ProductID]
		if !ok || it.Count < 1 {
			continue
		}
		line := domain.ResolvedCartItem{
			ProductID:  it.ProductID,
			Name:       p.Name,
			Price:      p.Price,
			Category:   p.Category,
			ImageURL:   p.ImageURL,
			Count:      it.Count,
			TotalPrice: p.Price * float64(it.Count),
		}
		out.Items = append(out.Items, line)
		out.TotalPrice += line.TotalPrice
		out.TotalQuantity += line.Count
	}
	return out
}

type productLookup interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// Projector resolves live carts against the catalog.
type Projector struct {
	store    docstore.Ops
	products productLookup
}

func NewProjector(store docstore.Ops, products productLookup) *Projector {
	return &Projector{store: store, products: products}
}

func (p *Projector) Resolve(ctx context.Context, cartID string) (domain.ResolvedCart, error) {
	items, err := lineitem.New(p.store, cartID).List(ctx)
	if err != nil {
		return domain.ResolvedCart{}, domain.Communication(OpReadCart, err)
	}
	catalog := make(map[string]domain.Product, len(items))
	for _, it := range items {
		prod, err := p.products.Get(ctx, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.ResolvedCart{}, domain.Communication(OpReadCart, err)
		}
		catalog[it.ProductID] = *prod
	}
	return Project(cartID, items, catalog), nil
}
