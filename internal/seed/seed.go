// Package seed loads a small demo catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"storefront/internal/docstore"
	"storefront/internal/domain"
	categoryrepo "storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"
)

var Categories = []domain.Category{
	{ID: "bread", Name: "Bread"},
	{ID: "dairy", Name: "Dairy"},
	{ID: "fruit", Name: "Fruit"},
	{ID: "vegetables", Name: "Vegetables"},
}

var Products = []domain.Product{
	{ID: "bread-sourdough", Name: "Sourdough loaf", Price: 4.5, Category: "bread"},
	{ID: "bread-rye", Name: "Rye bread", Price: 3.2, Category: "bread"},
	{ID: "dairy-milk", Name: "Whole milk", Price: 1.1, Category: "dairy"},
	{ID: "dairy-butter", Name: "Butter", Price: 2.35, Category: "dairy"},
	{ID: "fruit-apple", Name: "Apple", Price: 0.35, Category: "fruit"},
	{ID: "fruit-banana", Name: "Banana", Price: 0.25, Category: "fruit"},
	{ID: "veg-tomato", Name: "Tomato", Price: 0.6, Category: "vegetables"},
	{ID: "veg-lettuce", Name: "Lettuce", Price: 1.45, Category: "vegetables"},
}

// Apply writes the demo catalog. Existing documents with the same ids are
// overwritten, so running it twice is harmless.
func Apply(ctx context.Context, ops docstore.Ops) error {
	categories := categoryrepo.New(ops)
	for _, c := range Categories {
		if err := categories.Save(ctx, c); err != nil {
			return fmt.Errorf("save category %s: %w", c.ID, err)
		}
	}

	products := productrepo.New(ops, zerolog.Nop())
	for _, p := range Products {
		if err := products.Save(ctx, p); err != nil {
			return fmt.Errorf("save product %s: %w", p.ID, err)
		}
	}
	return nil
}
