package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"poolLedger/internal/chain"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store/memory"
)

const (
	testPool   = "0xpool"
	testTokenA = "0xa::coin::A"
	testTokenB = "0xb::coin::B"
)

var testTime = time.Unix(1_700_000_000, 0)

type capturedEvent struct {
	name   string
	fields map[string]any
}

type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *captureSink) Emit(name string, fields map[string]any) {
	c.mu.Lock()
	c.events = append(c.events, capturedEvent{name: name, fields: fields})
	c.mu.Unlock()
}

func (c *captureSink) byName(name string) []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedEvent
	for _, ev := range c.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type stubReader struct {
	objects map[string]*chain.Object
}

func (r *stubReader) GetObject(ctx context.Context, id string) (*chain.Object, error) {
	if obj, ok := r.objects[id]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %s not found", id)
}

type harness struct {
	store  *memory.Store
	prices *oracle.Static
	sink   *captureSink
	eng    *Engine
	snap   *Snapshotter
}

func newHarness(t *testing.T, fallback decimal.Decimal) *harness {
	t.Helper()

	st := memory.NewStore()
	prices := oracle.NewStatic()
	sink := &captureSink{}
	reader := &stubReader{objects: map[string]*chain.Object{}}

	registry := NewPoolRegistry(st, reader, prices, nil)
	tokens := NewTokenAccumulator(st, prices, fallback, sink, nil)
	positions := NewPositionLedger(st, registry, prices, fallback, nil)
	users := NewUserAggregate(st, prices, fallback, sink, nil)
	snap := NewSnapshotter(st, registry, tokens, users, 2, nil)
	t.Cleanup(snap.Close)

	return &harness{
		store:  st,
		prices: prices,
		sink:   sink,
		eng:    New(registry, tokens, positions, prices, fallback, sink, nil),
		snap:   snap,
	}
}

func (h *harness) seedTokens() {
	h.prices.SetTokenInfo(testTokenA, oracle.TokenInfo{Symbol: "A", Decimals: 6})
	h.prices.SetTokenInfo(testTokenB, oracle.TokenInfo{Symbol: "B", Decimals: 8})
	h.prices.SetPrice(testTokenA, decimal.NewFromInt(2))
	h.prices.SetPrice(testTokenB, decimal.NewFromInt(3))
}

func envelope(ev model.Event) model.Envelope {
	return model.Envelope{
		Protocol:  "cetus",
		TxHash:    "0xtx",
		Sender:    "0xsender",
		Timestamp: testTime,
		Event:     ev,
	}
}

func poolCreated() model.PoolCreated {
	return model.PoolCreated{
		PoolID:      testPool,
		Token0:      testTokenA,
		Token1:      testTokenB,
		FeeRate:     decimal.NewFromFloat(0.003),
		TickSpacing: 60,
	}
}

func liquidityChange(position, owner string, amount0, amount1, liquidity int64, lower, upper int32) model.LiquidityChange {
	return model.LiquidityChange{
		PoolID:         testPool,
		PositionID:     position,
		Owner:          owner,
		Amount0:        big.NewInt(amount0),
		Amount1:        big.NewInt(amount1),
		LiquidityDelta: big.NewInt(liquidity),
		TickLower:      lower,
		TickUpper:      upper,
	}
}

func (h *harness) tokenState(t *testing.T, token string) *model.PoolTokenState {
	t.Helper()
	ent, err := h.store.Get(context.Background(), model.KindPoolTokenState, model.PoolTokenStateID(testPool, token))
	if err != nil {
		t.Fatalf("token state for %s: %v", token, err)
	}
	return ent.(*model.PoolTokenState)
}

func (h *harness) position(t *testing.T, id string) *model.UserPosition {
	t.Helper()
	ent, err := h.store.Get(context.Background(), model.KindUserPosition, id)
	if err != nil {
		t.Fatalf("position %s: %v", id, err)
	}
	return ent.(*model.UserPosition)
}

func TestPoolCreatedBootstrapsTokenStates(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))

	ent, err := h.store.Get(ctx, model.KindPoolInfo, testPool)
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	pool := ent.(*model.PoolInfo)
	if pool.Symbol0 != "A" || pool.Symbol1 != "B" {
		t.Fatalf("symbols = %q/%q, want A/B", pool.Symbol0, pool.Symbol1)
	}
	if pool.Decimals0 != 6 || pool.Decimals1 != 8 {
		t.Fatalf("decimals = %d/%d, want 6/8", pool.Decimals0, pool.Decimals1)
	}

	for _, token := range []string{testTokenA, testTokenB} {
		state := h.tokenState(t, token)
		if !state.TokenAmount.IsZero() || !state.VolumeAmount.IsZero() || !state.TotalFeesUSD.IsZero() {
			t.Fatalf("token state for %s not zeroed: %+v", token, state)
		}
	}
	if rows := h.sink.byName("Pool"); len(rows) != 2 {
		t.Fatalf("Pool telemetry rows = %d, want 2", len(rows))
	}
}

func TestSwapAccumulatesVolumeCumulatively(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	swap := model.Swap{
		PoolID:    testPool,
		AToB:      true,
		AmountIn:  big.NewInt(1_000_000),
		AmountOut: big.NewInt(2_000),
		FeeAmount: big.NewInt(3_000),
	}
	h.eng.HandleEvent(ctx, envelope(swap))
	h.eng.HandleEvent(ctx, envelope(swap))

	stateA := h.tokenState(t, testTokenA)
	if want := decimal.NewFromInt(2); !stateA.VolumeAmount.Equal(want) {
		t.Fatalf("volume A = %s, want %s", stateA.VolumeAmount, want)
	}
	if want := decimal.NewFromInt(2); !stateA.TokenAmount.Equal(want) {
		t.Fatalf("balance A = %s, want %s", stateA.TokenAmount, want)
	}
	// fee 0.003 A at price 2, twice
	if want := decimal.NewFromFloat(0.012); !stateA.TotalFeesUSD.Equal(want) {
		t.Fatalf("total fees = %s, want %s", stateA.TotalFeesUSD, want)
	}

	stateB := h.tokenState(t, testTokenB)
	if want := decimal.NewFromFloat(0.00004); !stateB.VolumeAmount.Equal(want) {
		t.Fatalf("volume B = %s, want %s", stateB.VolumeAmount, want)
	}
	if want := decimal.NewFromFloat(-0.00004); !stateB.TokenAmount.Equal(want) {
		t.Fatalf("balance B = %s, want %s", stateB.TokenAmount, want)
	}

	if trades := h.sink.byName("Trade"); len(trades) != 2 {
		t.Fatalf("Trade telemetry rows = %d, want 2", len(trades))
	}
}

func TestSwapInputCoinResolvesLegs(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	// The direction flag claims token0 in, but the input coin type is
	// token1: the coin type wins and the volume lands on B.
	h.eng.HandleEvent(ctx, envelope(model.Swap{
		PoolID:    testPool,
		AToB:      true,
		TokenIn:   testTokenB,
		AmountIn:  big.NewInt(300_000_000),
		AmountOut: big.NewInt(2_000_000),
	}))

	stateB := h.tokenState(t, testTokenB)
	if want := decimal.NewFromInt(3); !stateB.VolumeAmount.Equal(want) {
		t.Fatalf("volume B = %s, want %s", stateB.VolumeAmount, want)
	}
	if want := decimal.NewFromInt(3); !stateB.TokenAmount.Equal(want) {
		t.Fatalf("balance B = %s, want %s", stateB.TokenAmount, want)
	}
	stateA := h.tokenState(t, testTokenA)
	if want := decimal.NewFromInt(-2); !stateA.TokenAmount.Equal(want) {
		t.Fatalf("balance A = %s, want %s", stateA.TokenAmount, want)
	}
}

func TestSwapUpdatesCurrentTick(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	tick := int32(-42)
	h.eng.HandleEvent(ctx, envelope(model.Swap{
		PoolID:    testPool,
		AToB:      true,
		AmountIn:  big.NewInt(1),
		AmountOut: big.NewInt(1),
		TickAfter: &tick,
	}))

	ent, err := h.store.Get(ctx, model.KindPoolInfo, testPool)
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if got := ent.(*model.PoolInfo).CurrentTick; got != -42 {
		t.Fatalf("current tick = %d, want -42", got)
	}
}

func TestPositionNeverGoesNegative(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000, -100, 100),
	}))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityRemoved{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 900_000, 50_000, 5_000, -100, 100),
	}))

	pos := h.position(t, "pos-1")
	if pos.Amount0.IsNegative() || pos.Amount1.IsNegative() || pos.AmountUSD.IsNegative() || pos.Liquidity.IsNegative() {
		t.Fatalf("position went negative: %+v", pos)
	}
	if !pos.Amount0.IsZero() || !pos.Liquidity.IsZero() {
		t.Fatalf("over-remove should clamp to zero, got amount0=%s liquidity=%s", pos.Amount0, pos.Liquidity)
	}
}

func TestDuplicateDeliveryDoublesCounters(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	add := model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000, -100, 100),
	}
	h.eng.HandleEvent(ctx, envelope(add))
	single := h.position(t, "pos-1")

	h.eng.HandleEvent(ctx, envelope(add))
	doubled := h.position(t, "pos-1")

	// Handlers are not idempotent: redelivery accumulates again.
	if want := single.Amount0.Mul(decimal.NewFromInt(2)); !doubled.Amount0.Equal(want) {
		t.Fatalf("amount0 after redelivery = %s, want %s", doubled.Amount0, want)
	}
	if want := single.Liquidity.Mul(decimal.NewFromInt(2)); !doubled.Liquidity.Equal(want) {
		t.Fatalf("liquidity after redelivery = %s, want %s", doubled.Liquidity, want)
	}
}

func TestPositionBoundsImmutable(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000, -100, 100),
	}))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000, -200, 200),
	}))

	pos := h.position(t, "pos-1")
	if pos.LowerTick != -100 || pos.UpperTick != 100 {
		t.Fatalf("bounds changed to [%d, %d], want [-100, 100]", pos.LowerTick, pos.UpperTick)
	}
}

func TestTransferRewritesOwnerOnly(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000, -100, 100),
	}))
	before := h.position(t, "pos-1")

	h.eng.HandleEvent(ctx, envelope(model.OwnershipTransferred{
		ObjectID:  "pos-1",
		FromOwner: "0xalice",
		ToOwner:   "0xbob",
	}))

	after := h.position(t, "pos-1")
	if after.UserAddress != "0xbob" {
		t.Fatalf("owner = %s, want 0xbob", after.UserAddress)
	}
	if !after.Amount0.Equal(before.Amount0) || !after.Amount1.Equal(before.Amount1) || !after.Liquidity.Equal(before.Liquidity) {
		t.Fatalf("transfer changed amounts: before %+v after %+v", before, after)
	}
}

func TestTransferRekeysCompositePosition(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("lp_0xalice", "0xalice", 500_000, 10_000, 1_000, -100, 100),
	}))

	h.eng.HandleEvent(ctx, envelope(model.OwnershipTransferred{
		ObjectID:    "lp_0xalice",
		NewObjectID: "lp_0xbob",
		FromOwner:   "0xalice",
		ToOwner:     "0xbob",
	}))

	rekeyed := h.position(t, "lp_0xbob")
	if rekeyed.UserAddress != "0xbob" {
		t.Fatalf("rekeyed owner = %s, want 0xbob", rekeyed.UserAddress)
	}
	// The old composite row is left behind, orphaned under the old owner.
	orphan := h.position(t, "lp_0xalice")
	if orphan.UserAddress != "0xalice" {
		t.Fatalf("orphan row owner = %s, want 0xalice", orphan.UserAddress)
	}
}

func TestSnapshotResetsPeriodCountersOnly(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	h.seedTokens()
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.Swap{
		PoolID:    testPool,
		AToB:      true,
		AmountIn:  big.NewInt(1_000_000),
		AmountOut: big.NewInt(2_000),
		FeeAmount: big.NewInt(3_000),
	}))
	h.eng.HandleEvent(ctx, envelope(model.LiquidityAdded{
		LiquidityChange: liquidityChange("pos-1", "0xalice", 500_000, 10_000, 1_000_000_000, -100, 100),
	}))

	balanceBefore := h.tokenState(t, testTokenA).TokenAmount

	if err := h.snap.Run(ctx, testTime.Add(24*time.Hour)); err != nil {
		t.Fatalf("snapshot run: %v", err)
	}

	stateA := h.tokenState(t, testTokenA)
	if !stateA.VolumeAmount.IsZero() || !stateA.VolumeUSD.IsZero() || !stateA.TotalFeesUSD.IsZero() {
		t.Fatalf("period counters not reset: %+v", stateA)
	}
	if !stateA.TokenAmount.Equal(balanceBefore) {
		t.Fatalf("balance changed across flush: %s != %s", stateA.TokenAmount, balanceBefore)
	}

	if rows := h.sink.byName("PoolSnapshot"); len(rows) != 2 {
		t.Fatalf("PoolSnapshot rows = %d, want 2", len(rows))
	}
	scores := h.sink.byName("UserScoreSnapshot")
	if len(scores) != 1 {
		t.Fatalf("UserScoreSnapshot rows = %d, want 1", len(scores))
	}
	total, err := decimal.NewFromString(scores[0].fields["total_value_usd"].(string))
	if err != nil {
		t.Fatalf("total_value_usd: %v", err)
	}
	if !total.IsPositive() {
		t.Fatalf("in-range position scored %s, want > 0", total)
	}
	inRange, err := decimal.NewFromString(scores[0].fields["in_range_value_usd"].(string))
	if err != nil {
		t.Fatalf("in_range_value_usd: %v", err)
	}
	if !inRange.Equal(total) {
		t.Fatalf("fully in-range position: in_range %s != total %s", inRange, total)
	}

	// The rollup is consumed: counters must be zero until the next cycle.
	ent, err := h.store.Get(ctx, model.KindUserPool, model.UserPoolID(testPool, "0xalice"))
	if err != nil {
		t.Fatalf("user pool: %v", err)
	}
	row := ent.(*model.UserPool)
	if !row.Amount0.IsZero() || !row.Amount1.IsZero() || !row.Amount0InRange.IsZero() || !row.Amount1InRange.IsZero() {
		t.Fatalf("user pool not reset: %+v", row)
	}
}

func TestMissingPriceFallback(t *testing.T) {
	h := newHarness(t, decimal.NewFromInt(1))
	h.prices.SetTokenInfo(testTokenA, oracle.TokenInfo{Symbol: "A", Decimals: 6})
	h.prices.SetTokenInfo(testTokenB, oracle.TokenInfo{Symbol: "B", Decimals: 8})
	ctx := context.Background()

	h.eng.HandleEvent(ctx, envelope(poolCreated()))
	h.eng.HandleEvent(ctx, envelope(model.Swap{
		PoolID:    testPool,
		AToB:      true,
		AmountIn:  big.NewInt(1_000_000),
		AmountOut: big.NewInt(2_000),
	}))

	stateA := h.tokenState(t, testTokenA)
	// No quote: the configured fallback of one prices 1.0 A at 1 USD.
	if want := decimal.NewFromInt(1); !stateA.VolumeUSD.Equal(want) {
		t.Fatalf("volume USD = %s, want %s", stateA.VolumeUSD, want)
	}
}

func TestUnknownPoolBootstrapDegradesToDefaults(t *testing.T) {
	h := newHarness(t, decimal.Zero)
	ctx := context.Background()

	// No pool-created event and the chain read fails: the swap still lands
	// on a zero-default pool record rather than erroring.
	h.eng.HandleEvent(ctx, envelope(model.Swap{
		PoolID:    testPool,
		AToB:      true,
		AmountIn:  big.NewInt(1_000),
		AmountOut: big.NewInt(1_000),
	}))

	ent, err := h.store.Get(ctx, model.KindPoolInfo, testPool)
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	pool := ent.(*model.PoolInfo)
	if pool.Symbol0 != "" || pool.Decimals0 != 0 {
		t.Fatalf("expected zero defaults, got %+v", pool)
	}
}
