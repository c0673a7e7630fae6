package clmm

import (
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestScaleRoundTrip(t *testing.T) {
	raw, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	if !ok {
		t.Fatalf("bad literal")
	}

	for d := int32(0); d <= 24; d++ {
		scaled := ScaleDown(raw, d)
		back := ScaleUp(scaled, d)
		if back.Cmp(raw) != 0 {
			t.Fatalf("decimals=%d: round trip %s != %s", d, back, raw)
		}
	}
}

func TestScaleDownValue(t *testing.T) {
	got := ScaleDown(big.NewInt(1_000_000), 6)
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", got)
	}
	if !ScaleDown(nil, 6).IsZero() {
		t.Fatalf("nil raw should scale to zero")
	}
}

func TestUnwrapTick(t *testing.T) {
	if got := UnwrapTick(100); got != 100 {
		t.Fatalf("positive tick changed: %d", got)
	}
	// 4294967196 is the bit pattern of -100.
	if got := UnwrapTick(4294967196); got != -100 {
		t.Fatalf("expected -100, got %d", got)
	}
	if got := UnwrapTick(2147483648); got != -2147483648 {
		t.Fatalf("expected min int32, got %d", got)
	}
}

func TestInRangeInclusive(t *testing.T) {
	cases := []struct {
		tick, lower, upper int32
		want               bool
	}{
		{0, -100, 100, true},
		{-100, -100, 100, true},
		{100, -100, 100, true},
		{101, -100, 100, false},
		{-101, -100, 100, false},
		{5, 5, 5, true},
	}
	for _, c := range cases {
		if got := InRange(c.tick, c.lower, c.upper); got != c.want {
			t.Fatalf("InRange(%d,%d,%d)=%v want %v", c.tick, c.lower, c.upper, got, c.want)
		}
	}
}

func TestSqrtRatioAtZero(t *testing.T) {
	got, err := SqrtRatioX96(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(big.Int).Lsh(big.NewInt(1), 96)
	if got.Cmp(want) != 0 {
		t.Fatalf("tick 0 sqrt price %s != 2^96", got)
	}
}

func TestSqrtRatioMatchesGeometricStep(t *testing.T) {
	q96f := math.Pow(2, 96)
	for _, tick := range []int32{-100000, -1000, -1, 1, 1000, 100000, 443636} {
		got, err := SqrtRatioX96(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		gotF, _ := new(big.Float).SetInt(got).Float64()
		wantF := math.Pow(1.0001, float64(tick)/2) * q96f
		rel := math.Abs(gotF-wantF) / wantF
		if rel > 1e-9 {
			t.Fatalf("tick %d: relative error %g too large", tick, rel)
		}
	}
}

func TestSqrtRatioMonotonic(t *testing.T) {
	prev, err := SqrtRatioX96(-500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for tick := int32(-499); tick <= 500; tick++ {
		cur, err := SqrtRatioX96(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("sqrt price not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestSqrtRatioOutOfRange(t *testing.T) {
	if _, err := SqrtRatioX96(MaxTick + 1); err == nil {
		t.Fatalf("expected error above max tick")
	}
	if _, err := SqrtRatioX96(MinTick - 1); err == nil {
		t.Fatalf("expected error below min tick")
	}
}

func TestTickAtSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int32{-443636, -100000, -1, 0, 1, 12345, 443636} {
		price, err := SqrtRatioX96(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		back, err := TickAtSqrtRatio(price)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if back != tick {
			t.Fatalf("round trip %d -> %d", tick, back)
		}
	}
}

func TestAmountsForLiquidityBelowRange(t *testing.T) {
	liq := decimal.NewFromInt(1_000_000_000)
	amount0, amount1, err := AmountsForLiquidity(-200, -100, 100, liq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() <= 0 {
		t.Fatalf("expected positive amount0, got %s", amount0)
	}
	if !amount1.IsZero() {
		t.Fatalf("expected zero amount1 below range, got %s", amount1)
	}
}

func TestAmountsForLiquidityAboveRange(t *testing.T) {
	liq := decimal.NewFromInt(1_000_000_000)
	amount0, amount1, err := AmountsForLiquidity(200, -100, 100, liq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount0.IsZero() {
		t.Fatalf("expected zero amount0 above range, got %s", amount0)
	}
	if amount1.Sign() <= 0 {
		t.Fatalf("expected positive amount1, got %s", amount1)
	}
}

func TestAmountsForLiquidityInRange(t *testing.T) {
	liq := decimal.NewFromInt(1_000_000_000)
	amount0, amount1, err := AmountsForLiquidity(0, -100, 100, liq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		t.Fatalf("expected both legs positive in range, got %s / %s", amount0, amount1)
	}
}

func TestAmountsForLiquidityZero(t *testing.T) {
	amount0, amount1, err := AmountsForLiquidity(0, -100, 100, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount0.IsZero() || !amount1.IsZero() {
		t.Fatalf("zero liquidity should yield zero amounts")
	}
}

func TestAmountsForLiquidityBadBounds(t *testing.T) {
	if _, _, err := AmountsForLiquidity(0, 100, -100, decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected error for inverted bounds")
	}
}
