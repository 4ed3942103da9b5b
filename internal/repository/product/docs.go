package product

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type docsRepo struct {
	ops    docstore.Ops
	logger zerolog.Logger
}

func New(ops docstore.Ops, logger zerolog.Logger) Repository {
	return &docsRepo{ops: ops, logger: logger}
}

func (r *docsRepo) List(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.ops.GetAll(ctx, Collection)
	if err != nil {
		r.logger.Error().Err(err).Msg("product repo: list")
		return nil, err
	}
	r.logger.Debug().Int("count", len(docs)).Msg("product repo: list")
	return fromDocs(docs), nil
}

func (r *docsRepo) ListByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	docs, err := r.ops.Query(ctx, Collection, docstore.Where("category", docstore.OpEq, category))
	if err != nil {
		r.logger.Error().Err(err).Str("category", category).Msg("product repo: list by category")
		return nil, err
	}
	return fromDocs(docs), nil
}

func (r *docsRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := r.ops.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("product repo: get")
		return nil, err
	}
	p := fromDoc(doc)
	return &p, nil
}

func (r *docsRepo) Save(ctx context.Context, p domain.Product) error {
	return r.ops.Create(ctx, Collection, p.ID, docstore.Data{
		"name":     p.Name,
		"price":    p.Price,
		"category": p.Category,
		"imageUrl": p.ImageURL,
	})
}

func (r *docsRepo) Delete(ctx context.Context, id string) error {
	return r.ops.Delete(ctx, Collection, id)
}

func fromDocs(docs []docstore.Doc) []domain.Product {
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out
}

func fromDoc(doc docstore.Doc) domain.Product {
	price, _ := docstore.Float(doc.Data["price"])
	return domain.Product{
		ID:       doc.ID,
		Name:     docstore.String(doc.Data["name"]),
		Price:    price,
		Category: docstore.String(doc.Data["category"]),
		ImageURL: docstore.String(doc.Data["imageUrl"]),
	}
}
