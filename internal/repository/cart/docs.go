package cart

import (
	"context"
	"errors"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type docsRepo struct {
	ops docstore.Ops
}

// New binds the repository to ops, which may be a store or a transaction.
func New(ops docstore.Ops) Repository {
	return &docsRepo{ops: ops}
}

func (r *docsRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	doc, err := r.ops.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c := fromDoc(doc)
	return &c, nil
}

func (r *docsRepo) Create(ctx context.Context, c domain.Cart) error {
	return r.ops.Create(ctx, Collection, c.ID, toData(c))
}

func (r *docsRepo) SetUser(ctx context.Context, id string, userID *string) error {
	var v interface{}
	if userID != nil {
		v = *userID
	}
	err := r.ops.Update(ctx, Collection, id, docstore.Data{"userId": v})
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (r *docsRepo) Delete(ctx context.Context, id string) error {
	return r.ops.Delete(ctx, Collection, id)
}

// FindByUser returns the user's cart with the lowest id when several exist.
func (r *docsRepo) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	docs, err := r.ops.Query(ctx, Collection, docstore.Where("userId", docstore.OpEq, userID))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	c := fromDoc(docs[0])
	return &c, nil
}

func (r *docsRepo) List(ctx context.Context) ([]domain.Cart, error) {
	docs, err := r.ops.GetAll(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Cart, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func toData(c domain.Cart) docstore.Data {
	data := docstore.Data{
		"id":          c.ID,
		"dateCreated": c.DateCreated.UTC(),
		"dateOrdered": nil,
		"userId":      nil,
	}
	if c.DateOrdered != nil {
		data["dateOrdered"] = c.DateOrdered.UTC()
	}
	if c.UserID != nil {
		data["userId"] = *c.UserID
	}
	return data
}

func fromDoc(doc docstore.Doc) domain.Cart {
	c := domain.Cart{
		ID:          doc.ID,
		DateOrdered: docstore.OptTime(doc.Data["dateOrdered"]),
		UserID:      docstore.OptString(doc.Data["userId"]),
	}
	if t, ok := docstore.Time(doc.Data["dateCreated"]); ok {
		c.DateCreated = t
	}
	return c
}
