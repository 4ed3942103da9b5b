package domain

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
