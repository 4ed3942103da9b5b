package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Transactions hold a store-wide lock, so they
// are serialised and never need a retry.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]Data
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Data)}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(collection, id)
}

func (m *Memory) GetAll(ctx context.Context, collection string) ([]Doc, error) {
	return m.Query(ctx, collection, Filter{})
}

func (m *Memory) Query(ctx context.Context, collection string, f Filter) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(collection, f), nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, data Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(collection, id, data)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, data Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	m.merge(collection, id, data)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(collection, id)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error {
	return nil
}

// RunTransaction runs fn under the store lock. Writes are staged and applied
// after fn returns nil; a failing write rolls back the ones before it.
func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{m: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (m *Memory) get(collection, id string) (Doc, error) {
	data, ok := m.docs[collection][id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: cloneData(data)}, nil
}

func (m *Memory) query(collection string, f Filter) []Doc {
	out := make([]Doc, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		if f.Field != "" && !Match(data, f) {
			continue
		}
		out = append(out, Doc{ID: id, Data: cloneData(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) merge(collection, id string, data Data) {
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]Data)
		m.docs[collection] = coll
	}
	current, ok := coll[id]
	if !ok {
		current = make(Data, len(data))
		coll[id] = current
	}
	for k, v := range data {
		current[k] = cloneValue(v)
	}
}

func (m *Memory) remove(collection, id string) {
	coll, ok := m.docs[collection]
	if !ok {
		return
	}
	delete(coll, id)
	if len(coll) == 0 {
		delete(m.docs, collection)
	}
}

type txWrite struct {
	kind       string
	collection string
	id         string
	data       Data
}

type memoryTx struct {
	m      *Memory
	writes []txWrite
}

func (t *memoryTx) Get(ctx context.Context, collection, id string) (Doc, error) {
	if len(t.writes) > 0 {
		return Doc{}, ErrReadAfterWrite
	}
	return t.m.get(collection, id)
}

func (t *memoryTx) GetAll(ctx context.Context, collection string) ([]Doc, error) {
	return t.Query(ctx, collection, Filter{})
}

func (t *memoryTx) Query(ctx context.Context, collection string, f Filter) ([]Doc, error) {
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	return t.m.query(collection, f), nil
}

func (t *memoryTx) Create(ctx context.Context, collection, id string, data Data) error {
	t.writes = append(t.writes, txWrite{kind: "create", collection: collection, id: id, data: cloneData(data)})
	return nil
}

func (t *memoryTx) Update(ctx context.Context, collection, id string, data Data) error {
	t.writes = append(t.writes, txWrite{kind: "update", collection: collection, id: id, data: cloneData(data)})
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, collection, id string) error {
	t.writes = append(t.writes, txWrite{kind: "delete", collection: collection, id: id})
	return nil
}

type undo struct {
	collection string
	id         string
	prev       Data
	existed    bool
}

func (t *memoryTx) commit() error {
	undos := make([]undo, 0, len(t.writes))
	for _, w := range t.writes {
		prev, existed := t.m.docs[w.collection][w.id]
		if w.kind == "update" && !existed {
			t.rollback(undos)
			return ErrNotFound
		}
		undos = append(undos, undo{collection: w.collection, id: w.id, prev: cloneData(prev), existed: existed})
		switch w.kind {
		case "delete":
			t.m.remove(w.collection, w.id)
		default:
			t.m.merge(w.collection, w.id, w.data)
		}
	}
	return nil
}

func (t *memoryTx) rollback(undos []undo) {
	for i := len(undos) - 1; i >= 0; i-- {
		u := undos[i]
		t.m.remove(u.collection, u.id)
		if u.existed {
			t.m.merge(u.collection, u.id, u.prev)
		}
	}
}

func cloneData(d Data) Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneData(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneData(t[i])
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case *string:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}
