// Package mongodocs keeps every document in one MongoDB collection keyed by
// "<collection>/<id>". Transactions need a replica set.
package mongodocs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/docstore"
)

const documentsCollection = "documents"

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, coll: client.Database(database).Collection(documentsCollection)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func key(collection, id string) string {
	return collection + "/" + id
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	var raw bson.M
	err := s.coll.FindOne(ctx, bson.M{"_id": key(collection, id)}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return docstore.Doc{}, docstore.ErrNotFound
		}
		return docstore.Doc{}, err
	}
	return toDoc(raw), nil
}

func (s *Store) GetAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	return s.find(ctx, bson.M{"collection": collection})
}

func (s *Store) Query(ctx context.Context, collection string, f docstore.Filter) ([]docstore.Doc, error) {
	cond, err := condition(f)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, bson.M{"collection": collection, "data." + f.Field: cond})
}

func condition(f docstore.Filter) (interface{}, error) {
	switch f.Op {
	case docstore.OpEq, docstore.OpArrayContains:
		return f.Value, nil
	case docstore.OpNe:
		return bson.M{"$exists": true, "$ne": f.Value}, nil
	case docstore.OpLt:
		return bson.M{"$lt": f.Value}, nil
	case docstore.OpLte:
		return bson.M{"$lte": f.Value}, nil
	case docstore.OpGt:
		return bson.M{"$gt": f.Value}, nil
	case docstore.OpGte:
		return bson.M{"$gte": f.Value}, nil
	case docstore.OpIn:
		return bson.M{"$in": docstore.Slice(f.Value)}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", f.Op)
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]docstore.Doc, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	out := make([]docstore.Doc, 0, len(raws))
	for _, raw := range raws {
		out = append(out, toDoc(raw))
	}
	return out, nil
}

func setFields(collection, id string, data docstore.Data) bson.M {
	set := bson.M{"collection": collection, "id": id}
	for k, v := range data {
		set["data."+k] = v
	}
	return set
}

func (s *Store) Create(ctx context.Context, collection, id string, data docstore.Data) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key(collection, id)},
		bson.M{"$set": setFields(collection, id, data)},
		options.Update().SetUpsert(true))
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, data docstore.Data) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key(collection, id)},
		bson.M{"$set": setFields(collection, id, data)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key(collection, id)})
	return err
}

// RunTransaction runs fn in a session transaction. The driver retries fn on
// transient transaction errors.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, sessionOps{s: s})
	})
	return err
}

// sessionOps is the Store seen from inside a transaction; it does not expose
// RunTransaction.
type sessionOps struct {
	s *Store
}

func (o sessionOps) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return o.s.Get(ctx, collection, id)
}

func (o sessionOps) GetAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	return o.s.GetAll(ctx, collection)
}

func (o sessionOps) Query(ctx context.Context, collection string, f docstore.Filter) ([]docstore.Doc, error) {
	return o.s.Query(ctx, collection, f)
}

func (o sessionOps) Create(ctx context.Context, collection, id string, data docstore.Data) error {
	return o.s.Create(ctx, collection, id, data)
}

func (o sessionOps) Update(ctx context.Context, collection, id string, data docstore.Data) error {
	return o.s.Update(ctx, collection, id, data)
}

func (o sessionOps) Delete(ctx context.Context, collection, id string) error {
	return o.s.Delete(ctx, collection, id)
}

func toDoc(raw bson.M) docstore.Doc {
	id, _ := raw["id"].(string)
	data, _ := normalize(raw["data"]).(map[string]interface{})
	if data == nil {
		data = docstore.Data{}
	}
	return docstore.Doc{ID: id, Data: data}
}

// normalize converts driver types into the plain Go values docstore uses.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	}
	return v
}
