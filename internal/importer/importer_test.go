package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type stubProducts struct {
	items []domain.Product
	err   error
}

func (s *stubProducts) Save(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

type stubCategories struct {
	items []domain.Category
}

func (s *stubCategories) Save(_ context.Context, c domain.Category) (*domain.Category, error) {
	s.items = append(s.items, c)
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,name,price,category,imageUrl
p1,Sourdough,4.50,bread,https://example.com/p1.jpg

p2,Rye,3.20,bread,
p3,Whole milk,1.10,dairy-products`

	products := &stubProducts{}
	categories := &stubCategories{}
	count, err := NewCSVImporter(strings.NewReader(csvData), products, categories).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.Len(t, products.items, 3)
	assert.Equal(t, domain.Product{ID: "p1", Name: "Sourdough", Price: 4.5, Category: "bread", ImageURL: "https://example.com/p1.jpg"}, products.items[0])
	assert.Empty(t, products.items[2].ImageURL)

	assert.Equal(t, []domain.Category{
		{ID: "bread", Name: "Bread"},
		{ID: "dairy-products", Name: "Dairy products"},
	}, categories.items)
}

func TestCSVImporter_MissingColumn(t *testing.T) {
	_, err := NewCSVImporter(strings.NewReader("id,name,category\np1,A,b"), &stubProducts{}, nil).Run(context.Background())
	assert.ErrorContains(t, err, `missing column "price"`)
}

func TestCSVImporter_InvalidRowStops(t *testing.T) {
	csvData := `id,name,price,category
p1,A,1,x
p2,B,cheap,x
p3,C,2,x`
	products := &stubProducts{}
	count, err := NewCSVImporter(strings.NewReader(csvData), products, nil).Run(context.Background())
	assert.Equal(t, 1, count)
	assert.ErrorContains(t, err, "line 3")
	assert.ErrorContains(t, err, `invalid price "cheap"`)
}

func TestCSVImporter_SaveErrorIsReported(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewCSVImporter(strings.NewReader("id,name,price,category\np1,A,1,x"), &stubProducts{err: boom}, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
