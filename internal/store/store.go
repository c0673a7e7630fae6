package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"poolLedger/internal/model"
)

// ErrNotFound is returned by Get when no entity exists for the id.
var ErrNotFound = errors.New("entity not found")

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
)

// Filter restricts List results by a field (json tag) value.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Store is the persistence contract the engine runs against. Writes are
// best-effort upserts; no transactional guarantees are assumed.
type Store interface {
	Get(ctx context.Context, kind model.Kind, id string) (model.Entity, error)
	List(ctx context.Context, kind model.Kind, filters []Filter) ([]model.Entity, error)
	Upsert(ctx context.Context, entities ...model.Entity) error
	Delete(ctx context.Context, kind model.Kind, ids ...string) error
}

// Clone deep-copies an entity through its JSON form, so callers can
// mutate results without aliasing stored state.
func Clone(e model.Entity) (model.Entity, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityKind(), err)
	}
	out, err := model.New(e.EntityKind())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.EntityKind(), err)
	}
	return out, nil
}

// Matches evaluates filters against the entity's JSON representation.
func Matches(e model.Entity, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", e.EntityKind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}

	for _, f := range filters {
		raw, ok := fields[f.Field]
		if !ok {
			return false, nil
		}
		value := fmt.Sprintf("%v", raw)
		switch f.Op {
		case OpEq:
			if value != f.Value {
				return false, nil
			}
		case OpNe:
			if value == f.Value {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported filter op: %s", f.Op)
		}
	}
	return true, nil
}
