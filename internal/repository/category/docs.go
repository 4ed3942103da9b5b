package category

import (
	"context"
	"sort"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type docsRepo struct {
	ops docstore.Ops
}

func New(ops docstore.Ops) Repository {
	return &docsRepo{ops: ops}
}

// List returns categories ordered by name.
func (r *docsRepo) List(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.ops.GetAll(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Category{ID: d.ID, Name: docstore.String(d.Data["name"])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *docsRepo) Save(ctx context.Context, c domain.Category) error {
	return r.ops.Create(ctx, Collection, c.ID, docstore.Data{"name": c.Name})
}
