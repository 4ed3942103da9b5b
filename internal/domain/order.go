package domain

import "time"

type Shipping struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
}

type OrderProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Count int     `json:"count"`
}

// Order is an immutable snapshot of a cart taken at checkout.
type Order struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	CartID      string         `json:"shoppingCartId"`
	DateOrdered time.Time      `json:"dateOrdered"`
	TotalPrice  float64        `json:"totalPrice"`
	Shipping    Shipping       `json:"shipping"`
	Products    []OrderProduct `json:"products"`
}
