package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolLedger/internal/model"
	"poolLedger/internal/store"
)

// Store persists entities in a single jsonb document table, keyed by
// (kind, id). Field filters translate to jsonb operators.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the entity table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entities (
			kind text NOT NULL,
			id text NOT NULL,
			data jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (kind, id)
		)
	`)
	return err
}

func (s *Store) Get(ctx context.Context, kind model.Kind, id string) (model.Entity, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM ledger_entities WHERE kind=$1 AND id=$2`, string(kind), id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return decode(kind, data)
}

func (s *Store) List(ctx context.Context, kind model.Kind, filters []store.Filter) ([]model.Entity, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT data FROM ledger_entities WHERE kind=$1`)
	args := []any{string(kind)}

	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			args = append(args, f.Field, f.Value)
			fmt.Fprintf(&query, " AND data->>$%d = $%d", len(args)-1, len(args))
		case store.OpNe:
			args = append(args, f.Field, f.Value)
			fmt.Fprintf(&query, " AND data->>$%d <> $%d", len(args)-1, len(args))
		default:
			return nil, fmt.Errorf("unsupported filter op: %s", f.Op)
		}
	}
	query.WriteString(" ORDER BY id")

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		entity, err := decode(kind, data)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, entities ...model.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
		}
		batch.Queue(`
			INSERT INTO ledger_entities (kind, id, data, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (kind, id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		`, string(e.EntityKind()), e.EntityID(), data)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entities {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind model.Kind, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ledger_entities WHERE kind=$1 AND id = ANY($2)`, string(kind), ids)
	return err
}

func decode(kind model.Kind, data []byte) (model.Entity, error) {
	entity, err := model.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return entity, nil
}
