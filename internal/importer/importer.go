// Package importer loads catalog products from CSV.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Save(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Save(ctx context.Context, category domain.Category) (*domain.Category, error)
}

// requiredColumns must be present in the header row. imageUrl is optional.
var requiredColumns = []string{"id", "name", "price", "category"}

// CSVImporter reads rows of id,name,price,category,imageUrl and saves them as
// products. Each distinct category is saved once, named after its id.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:     csvr,
		products:   products,
		categories: categories,
	}
}

// Run imports every row and returns the number of products saved. It stops
// at the first invalid row.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	seen := make(map[string]bool)
	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := i.reader.FieldPos(0)

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if i.categories != nil && !seen[p.Category] {
			if _, err := i.categories.Save(ctx, domain.Category{ID: p.Category, Name: categoryName(p.Category)}); err != nil {
				return imported, fmt.Errorf("line %d: save category %q: %w", line, p.Category, err)
			}
			seen[p.Category] = true
		}
		if _, err := i.products.Save(ctx, p); err != nil {
			return imported, fmt.Errorf("line %d: save product %q: %w", line, p.ID, err)
		}
		imported++
	}
	return imported, nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		ID:       pick(record, index, "id"),
		Name:     pick(record, index, "name"),
		Category: pick(record, index, "category"),
		ImageURL: pick(record, index, "imageUrl"),
	}
	if p.ID == "" {
		return p, errors.New("id is required")
	}
	raw := pick(record, index, "price")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return p, fmt.Errorf("invalid price %q", raw)
	}
	p.Price = price
	return p, nil
}

func categoryName(id string) string {
	name := strings.ReplaceAll(id, "-", " ")
	if name == "" {
		return id
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
