package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
	"poolLedger/internal/store"
)

func TestGetReturnsNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(context.Background(), model.KindPoolInfo, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertThenGetClones(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	pool := &model.PoolInfo{ID: "p1", Symbol0: "A", FeeRate: decimal.NewFromFloat(0.003)}
	if err := s.Upsert(ctx, pool); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Mutating the original after upsert must not leak into the store.
	pool.Symbol0 = "CHANGED"

	ent, err := s.Get(ctx, model.KindPoolInfo, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got := ent.(*model.PoolInfo)
	if got.Symbol0 != "A" {
		t.Fatalf("symbol = %q, want A", got.Symbol0)
	}
	if !got.FeeRate.Equal(decimal.NewFromFloat(0.003)) {
		t.Fatalf("fee rate = %s", got.FeeRate)
	}

	// And mutating the returned copy must not change stored state.
	got.Symbol0 = "ALSO-CHANGED"
	ent, err = s.Get(ctx, model.KindPoolInfo, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ent.(*model.PoolInfo).Symbol0 != "A" {
		t.Fatalf("stored state aliased by read result")
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	rows := []model.Entity{
		&model.PoolTokenState{ID: "p1_b", PoolAddress: "p1", TokenAddress: "b"},
		&model.PoolTokenState{ID: "p1_a", PoolAddress: "p1", TokenAddress: "a"},
		&model.PoolTokenState{ID: "p2_a", PoolAddress: "p2", TokenAddress: "a"},
	}
	if err := s.Upsert(ctx, rows...); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	out, err := s.List(ctx, model.KindPoolTokenState, []store.Filter{
		{Field: "pool_address", Op: store.OpEq, Value: "p1"},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].EntityID() != "p1_a" || out[1].EntityID() != "p1_b" {
		t.Fatalf("order = %s, %s", out[0].EntityID(), out[1].EntityID())
	}

	out, err = s.List(ctx, model.KindPoolTokenState, []store.Filter{
		{Field: "token_address", Op: store.OpNe, Value: "a"},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].EntityID() != "p1_b" {
		t.Fatalf("!= filter returned %d rows", len(out))
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, &model.UserState{ID: "u1", User: "u1"}, &model.UserState{ID: "u2", User: "u2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, model.KindUserState, "u1", "u2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err := s.List(ctx, model.KindUserState, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("len = %d after delete", len(out))
	}
}
