package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"poolLedger/internal/chain"
	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store/memory"
)

func TestGetOrCreatePoolBootstrapsFromChain(t *testing.T) {
	st := memory.NewStore()
	prices := oracle.NewStatic()
	prices.SetTokenInfo(testTokenA, oracle.TokenInfo{Symbol: "A", Decimals: 6})
	prices.SetTokenInfo(testTokenB, oracle.TokenInfo{Symbol: "B", Decimals: 8})

	sqrtPrice, err := clmm.SqrtRatioX96(120)
	if err != nil {
		t.Fatalf("sqrt ratio: %v", err)
	}
	reader := &stubReader{objects: map[string]*chain.Object{
		testPool: {
			ID:   testPool,
			Type: "0xcetus::pool::Pool<" + testTokenA + ", " + testTokenB + ">",
			Fields: map[string]any{
				"fee_rate":           "2500",
				"current_sqrt_price": sqrtPrice.String(),
				"tick_spacing":       float64(60),
			},
		},
	}}
	registry := NewPoolRegistry(st, reader, prices, nil)

	pool := registry.GetOrCreatePool(context.Background(), testPool)
	if pool.Token0 != testTokenA || pool.Token1 != testTokenB {
		t.Fatalf("tokens = %q/%q", pool.Token0, pool.Token1)
	}
	if pool.Symbol0 != "A" || pool.Decimals1 != 8 {
		t.Fatalf("metadata = %q/%d", pool.Symbol0, pool.Decimals1)
	}
	if want := decimal.NewFromFloat(0.0025); !pool.FeeRate.Equal(want) {
		t.Fatalf("fee rate = %s, want %s", pool.FeeRate, want)
	}
	if pool.CurrentTick != 120 {
		t.Fatalf("current tick = %d, want 120", pool.CurrentTick)
	}
	if pool.TickSpacing != 60 {
		t.Fatalf("tick spacing = %d, want 60", pool.TickSpacing)
	}

	// Bootstrapped exactly once: the stored row now serves lookups.
	if _, err := st.Get(context.Background(), model.KindPoolInfo, testPool); err != nil {
		t.Fatalf("stored pool: %v", err)
	}
}

func TestGetOrCreatePoolCachesAcrossCalls(t *testing.T) {
	st := memory.NewStore()
	reader := &countingReader{}
	registry := NewPoolRegistry(st, reader, oracle.NewStatic(), nil)

	registry.GetOrCreatePool(context.Background(), testPool)
	registry.GetOrCreatePool(context.Background(), testPool)

	if reader.calls != 1 {
		t.Fatalf("chain reads = %d, want 1", reader.calls)
	}
}

func TestUpdateFeePersists(t *testing.T) {
	st := memory.NewStore()
	registry := NewPoolRegistry(st, &countingReader{}, oracle.NewStatic(), nil)
	ctx := context.Background()

	registry.GetOrCreatePool(ctx, testPool)
	rate := decimal.NewFromFloat(0.01)
	if err := registry.UpdateFee(ctx, testPool, rate); err != nil {
		t.Fatalf("update fee: %v", err)
	}

	ent, err := st.Get(ctx, model.KindPoolInfo, testPool)
	if err != nil {
		t.Fatalf("stored pool: %v", err)
	}
	if got := ent.(*model.PoolInfo).FeeRate; !got.Equal(rate) {
		t.Fatalf("fee rate = %s, want %s", got, rate)
	}
}

type countingReader struct {
	calls int
}

func (r *countingReader) GetObject(ctx context.Context, id string) (*chain.Object, error) {
	r.calls++
	return nil, context.Canceled
}
