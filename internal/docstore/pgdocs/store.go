// Package pgdocs stores documents as jsonb rows in a single Postgres table.
package pgdocs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/docstore"
)

const maxTxAttempts = 5

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	ops
	pool *pgxpool.Pool
}

// New returns a Store on pool. The documents table must exist; see
// internal/migrate.
func New(pool *pgxpool.Pool) *Store {
	return &Store{ops: ops{q: pool}, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RunTransaction runs fn in a SERIALIZABLE transaction and retries it when
// Postgres reports a serialization failure.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, ops{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

type ops struct {
	q querier
}

func (o ops) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	var raw []byte
	err := o.q.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return docstore.Doc{}, docstore.ErrNotFound
		}
		return docstore.Doc{}, err
	}
	data, err := decode(raw)
	if err != nil {
		return docstore.Doc{}, err
	}
	return docstore.Doc{ID: id, Data: data}, nil
}

func (o ops) GetAll(ctx context.Context, collection string) ([]docstore.Doc, error) {
	return o.list(ctx, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`, collection)
}

func (o ops) Query(ctx context.Context, collection string, f docstore.Filter) ([]docstore.Doc, error) {
	cond, err := condition(f.Op)
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(f.Value)
	if err != nil {
		return nil, fmt.Errorf("encode filter value: %w", err)
	}
	sql := `SELECT id, data FROM documents WHERE collection = $1 AND ` + cond + ` ORDER BY id`
	return o.list(ctx, sql, collection, f.Field, string(value))
}

func condition(op docstore.Operator) (string, error) {
	sameType := `jsonb_typeof(data -> $2::text) = jsonb_typeof($3::jsonb) AND `
	switch op {
	case docstore.OpEq:
		return `data -> $2::text = $3::jsonb`, nil
	case docstore.OpNe:
		return `data -> $2::text IS NOT NULL AND data -> $2::text <> $3::jsonb`, nil
	case docstore.OpLt:
		return sameType + `data -> $2::text < $3::jsonb`, nil
	case docstore.OpLte:
		return sameType + `data -> $2::text <= $3::jsonb`, nil
	case docstore.OpGt:
		return sameType + `data -> $2::text > $3::jsonb`, nil
	case docstore.OpGte:
		return sameType + `data -> $2::text >= $3::jsonb`, nil
	case docstore.OpIn:
		return `data -> $2::text IS NOT NULL AND $3::jsonb @> jsonb_build_array(data -> $2::text)`, nil
	case docstore.OpArrayContains:
		return `jsonb_typeof(data -> $2::text) = 'array' AND data -> $2::text @> jsonb_build_array($3::jsonb)`, nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}

func (o ops) list(ctx context.Context, sql string, args ...any) ([]docstore.Doc, error) {
	rows, err := o.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docstore.Doc
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Doc{ID: id, Data: data})
	}
	return out, rows.Err()
}

func (o ops) Create(ctx context.Context, collection, id string, data docstore.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = o.q.Exec(ctx, `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE
SET data = documents.data || EXCLUDED.data, updated_at = now()`, collection, id, string(raw))
	return err
}

func (o ops) Update(ctx context.Context, collection, id string, data docstore.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tag, err := o.q.Exec(ctx, `
UPDATE documents SET data = data || $3::jsonb, updated_at = now()
WHERE collection = $1 AND id = $2`, collection, id, string(raw))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (o ops) Delete(ctx context.Context, collection, id string) error {
	_, err := o.q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return err
}

func decode(raw []byte) (docstore.Data, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data docstore.Data
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}
