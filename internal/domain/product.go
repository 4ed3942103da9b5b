package domain

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Category string  `json:"category" validate:"required"`
	ImageURL string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}
