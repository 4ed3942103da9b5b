// Package fsdocs is the Cloud Firestore backend of docstore.
package fsdocs

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront/internal/docstore"
)

type Store struct {
	client *firestore.Client
}

// Open creates a Firestore client. An empty credentialsFile uses Application
// Default Credentials; FIRESTORE_EMULATOR_HOST is honoured by the client.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return New(client), nil
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Ping lists the root collections; Firestore has no dedicated health call.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.Collections(ctx).GetAll(); err != nil {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	return fromSnapshot(snap, err)
}

func (s *Store) GetAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	return collect(s.client.Collection(collection).Documents(ctx))
}

func (s *Store) Query(ctx context.Context, collection string, f docstore.Filter) ([]docstore.Doc, error) {
	return collect(s.query(collection, f).Documents(ctx))
}

func (s *Store) Create(ctx context.Context, collection, id string, data docstore.Data) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, data docstore.Data) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates(data))
	return notFound(err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

// RunTransaction uses Firestore's optimistic transactions, which retry fn on
// contention. Reads must precede writes.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &txOps{s: s, t: t})
	})
}

func (s *Store) query(collection string, f docstore.Filter) firestore.Query {
	return s.client.Collection(collection).Where(f.Field, string(f.Op), f.Value)
}

type txOps struct {
	s *Store
	t *firestore.Transaction
}

func (x *txOps) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	snap, err := x.t.Get(x.s.client.Collection(collection).Doc(id))
	return fromSnapshot(snap, err)
}

func (x *txOps) GetAll(_ context.Context, collection string) ([]docstore.Doc, error) {
	return collect(x.t.Documents(x.s.client.Collection(collection)))
}

func (x *txOps) Query(_ context.Context, collection string, f docstore.Filter) ([]docstore.Doc, error) {
	return collect(x.t.Documents(x.s.query(collection, f)))
}

func (x *txOps) Create(_ context.Context, collection, id string, data docstore.Data) error {
	return x.t.Set(x.s.client.Collection(collection).Doc(id), data, firestore.MergeAll)
}

func (x *txOps) Update(_ context.Context, collection, id string, data docstore.Data) error {
	return x.t.Update(x.s.client.Collection(collection).Doc(id), updates(data))
}

func (x *txOps) Delete(_ context.Context, collection, id string) error {
	return x.t.Delete(x.s.client.Collection(collection).Doc(id))
}

func updates(data docstore.Data) []firestore.Update {
	out := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	return out
}

func fromSnapshot(snap *firestore.DocumentSnapshot, err error) (docstore.Doc, error) {
	if err != nil {
		return docstore.Doc{}, notFound(err)
	}
	if snap == nil || !snap.Exists() {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	return docstore.Doc{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func collect(it *firestore.DocumentIterator) ([]docstore.Doc, error) {
	defer it.Stop()
	var out []docstore.Doc
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
}

func notFound(err error) error {
	if err != nil && status.Code(err) == codes.NotFound {
		return docstore.ErrNotFound
	}
	return err
}
