package order

import (
	"context"
	"errors"
	"sort"

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

func (r *docsRepo) Create(ctx context.Context, o domain.Order) error {
	return r.ops.Create(ctx, Collection, o.ID, toData(o))
}

func (r *docsRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	doc, err := r.ops.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	o := fromDoc(doc)
	return &o, nil
}

func (r *docsRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	docs, err := r.ops.Query(ctx, Collection, docstore.Where("userId", docstore.OpEq, userID))
	if err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

func (r *docsRepo) List(ctx context.Context) ([]domain.Order, error) {
	docs, err := r.ops.GetAll(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

// fromDocs orders the result newest first.
func fromDocs(docs []docstore.Doc) []domain.Order {
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateOrdered.After(out[j].DateOrdered) })
	return out
}

func toData(o domain.Order) docstore.Data {
	products := make([]interface{}, 0, len(o.Products))
	for _, p := range o.Products {
		products = append(products, map[string]interface{}{
			"id":    p.ID,
			"name":  p.Name,
			"price": p.Price,
			"count": p.Count,
		})
	}
	return docstore.Data{
		"userId":         o.UserID,
		"shoppingCartId": o.CartID,
		"dateOrdered":    o.DateOrdered.UTC(),
		"totalPrice":     o.TotalPrice,
		"shipping": map[string]interface{}{
			"name":    o.Shipping.Name,
			"address": o.Shipping.Address,
			"zipCode": o.Shipping.ZipCode,
			"city":    o.Shipping.City,
			"state":   o.Shipping.State,
		},
		"products": products,
	}
}

func fromDoc(doc docstore.Doc) domain.Order {
	o := domain.Order{
		ID:     doc.ID,
		UserID: docstore.String(doc.Data["userId"]),
		CartID: docstore.String(doc.Data["shoppingCartId"]),
	}
	if t, ok := docstore.Time(doc.Data["dateOrdered"]); ok {
		o.DateOrdered = t
	}
	o.TotalPrice, _ = docstore.Float(doc.Data["totalPrice"])

	if s := docstore.Map(doc.Data["shipping"]); s != nil {
		o.Shipping = domain.Shipping{
			Name:    docstore.String(s["name"]),
			Address: docstore.String(s["address"]),
			ZipCode: docstore.String(s["zipCode"]),
			City:    docstore.String(s["city"]),
			State:   docstore.String(s["state"]),
		}
	}
	for _, raw := range docstore.Slice(doc.Data["products"]) {
		m := docstore.Map(raw)
		if m == nil {
			continue
		}
		price, _ := docstore.Float(m["price"])
		count, _ := docstore.Int(m["count"])
		o.Products = append(o.Products, domain.OrderProduct{
			ID:    docstore.String(m["id"]),
			Name:  docstore.String(m["name"]),
			Price: price,
			Count: count,
		})
	}
	return o
}
