package user

import (
	"context"
	"errors"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type docsRepo struct {
	ops docstore.Ops
}

func New(ops docstore.Ops) Repository {
	return &docsRepo{ops: ops}
}

func (r *docsRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.ops.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		ID:      doc.ID,
		Name:    docstore.String(doc.Data["name"]),
		Email:   docstore.String(doc.Data["email"]),
		IsAdmin: docstore.Bool(doc.Data["isAdmin"]),
	}, nil
}

func (r *docsRepo) Save(ctx context.Context, u domain.User) error {
	return r.ops.Create(ctx, Collection, u.ID, docstore.Data{
		"name":    u.Name,
		"email":   u.Email,
		"isAdmin": u.IsAdmin,
	})
}
