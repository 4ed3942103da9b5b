// Package docstore is a small document-database abstraction: collections of
// JSON-like documents addressed by id, with optional multi-document
// transactions. Collection paths may name sub-collections, for example
// "shopping-carts/abc/products".
package docstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// ErrReadAfterWrite is returned when a transaction reads after it has staged
// a write. All backends share the Firestore rule that reads come first.
var ErrReadAfterWrite = errors.New("docstore: read after write in transaction")

// Data is the field map of a document. Values are strings, bools, numbers,
// time.Time, nil, []interface{} or nested Data-shaped maps.
type Data = map[string]interface{}

type Doc struct {
	ID   string
	Data Data
}

type Operator string

const (
	OpEq            Operator = "=="
	OpNe            Operator = "!="
	OpLt            Operator = "<"
	OpLte           Operator = "<="
	OpGt            Operator = ">"
	OpGte           Operator = ">="
	OpIn            Operator = "in"
	OpArrayContains Operator = "array-contains"
)

// Filter is a single-field query condition.
type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

func Where(field string, op Operator, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Ops is the per-collection CRUD surface shared by stores and transactions.
type Ops interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	GetAll(ctx context.Context, collection string) ([]Doc, error)
	Query(ctx context.Context, collection string, f Filter) ([]Doc, error)
	// Create writes data, merging into the document when it already exists.
	Create(ctx context.Context, collection, id string, data Data) error
	// Update merges data into an existing document; ErrNotFound otherwise.
	Update(ctx context.Context, collection, id string, data Data) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	Ops
}

type Store interface {
	Ops
	Ping(ctx context.Context) error
	Close() error
}

// Transactor is implemented by stores that can run several operations as one
// atomic unit. fn may be invoked more than once when the backend retries.
type Transactor interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// RunAtomic runs fn inside a transaction when ops supports one and directly
// against ops otherwise. In the second case a failure part way leaves the
// earlier writes applied.
func RunAtomic(ctx context.Context, ops Ops, fn func(ctx context.Context, ops Ops) error) error {
	if t, ok := ops.(Transactor); ok {
		return t.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			return fn(ctx, tx)
		})
	}
	return fn(ctx, ops)
}

// IsAtomic reports whether RunAtomic will use a transaction for ops.
func IsAtomic(ops Ops) bool {
	_, ok := ops.(Transactor)
	return ok
}

type nonAtomic struct {
	Store
}

// NonAtomic hides the transaction capability of s so that RunAtomic falls
// back to sequential writes.
func NonAtomic(s Store) Store {
	if na, ok := s.(nonAtomic); ok {
		return na
	}
	return nonAtomic{Store: s}
}

// Path joins collection and document segments with "/".
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}
