package memory

import (
	"context"
	"sort"
	"sync"

	"poolLedger/internal/model"
	"poolLedger/internal/store"
)

// Store is an in-memory entity store, used for tests and local runs.
type Store struct {
	mu   sync.RWMutex
	data map[model.Kind]map[string]model.Entity
}

func NewStore() *Store {
	return &Store{data: make(map[model.Kind]map[string]model.Entity)}
}

func (s *Store) Get(ctx context.Context, kind model.Kind, id string) (model.Entity, error) {
	s.mu.RLock()
	entity, ok := s.data[kind][id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Clone(entity)
}

func (s *Store) List(ctx context.Context, kind model.Kind, filters []store.Filter) ([]model.Entity, error) {
	s.mu.RLock()
	entities := make([]model.Entity, 0, len(s.data[kind]))
	for _, e := range s.data[kind] {
		entities = append(entities, e)
	}
	s.mu.RUnlock()

	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		ok, err := store.Matches(e, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		clone, err := store.Clone(e)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, entities ...model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		clone, err := store.Clone(e)
		if err != nil {
			return err
		}
		kind := clone.EntityKind()
		if s.data[kind] == nil {
			s.data[kind] = make(map[string]model.Entity)
		}
		s.data[kind][clone.EntityID()] = clone
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind model.Kind, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data[kind], id)
	}
	return nil
}
