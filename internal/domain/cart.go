package domain

import "time"

// Cart is the root document of a shopping cart. It exists in the store only
// while at least one LineItem references its id.
type Cart struct {
	ID          string     `json:"id"`
	DateCreated time.Time  `json:"dateCreated"`
	DateOrdered *time.Time `json:"dateOrdered,omitempty"`
	UserID      *string    `json:"userId,omitempty"`
}

// LineItem is one product's quantity within a cart. Count is always >= 1;
// absence of the item means zero.
type LineItem struct {
	ProductID string `json:"id"`
	Count     int    `json:"count"`
}

type ResolvedCartItem struct {
	ProductID  string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	ImageURL   string  `json:"imageUrl,omitempty"`
	Count      int     `json:"count"`
	TotalPrice float64 `json:"totalPrice"`
}

// ResolvedCart is the read-side projection of a cart joined with the catalog.
// TotalPrice is a float64 sum and may carry rounding error; compare it with
// PriceTolerance.
type ResolvedCart struct {
	CartID        string             `json:"cartId"`
	Items         []ResolvedCartItem `json:"items"`
	TotalPrice    float64            `json:"totalPrice"`
	TotalQuantity int                `json:"totalQuantity"`
}

// PriceTolerance is the absolute difference below which two totals are equal.
const PriceTolerance = 1e-6

func (c ResolvedCart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the count of productID in the cart, 0 when absent.
func (c ResolvedCart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Count
		}
	}
	return 0
}
