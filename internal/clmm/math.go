package clmm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Tick bounds of the sqrt-price table, matching the usual CLMM range.
const (
	MinTick int32 = -443636
	MaxTick int32 = 443636
)

// ScaleDown converts a raw integer token amount into a decimal using the
// token's decimal count. Exact for any decimals in [0, 24].
func ScaleDown(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ScaleUp converts a scaled decimal amount back to raw integer units.
func ScaleUp(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

// UnwrapTick interprets a tick carried as an unsigned 32-bit bit pattern
// as its signed value (two's complement).
func UnwrapTick(bits uint32) int32 {
	return int32(bits)
}

// InRange reports whether tick lies within [lower, upper], inclusive on
// both bounds.
func InRange(tick, lower, upper int32) bool {
	return lower <= tick && tick <= upper
}

var (
	q32  = new(big.Int).Lsh(big.NewInt(1), 32)
	q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	one  = new(big.Int).Lsh(big.NewInt(1), 128)
	uMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// Per-bit multipliers for sqrt(1.0001)^(-2^i), Q128.
	tickFactors = []string{
		"fffcb933bd6fad37aa2d162d1a594001",
		"fff97272373d413259a46990580e213a",
		"fff2e50f5f656932ef12357cf3c7fdcc",
		"ffe5caca7e10e4e61c3624eaa0941cd0",
		"ffcb9843d60f6159c9db58835c926644",
		"ff973b41fa98c081472e6896dfb254c0",
		"ff2ea16466c96a3843ec78b326b52861",
		"fe5dee046a99a2a811c461f1969c3053",
		"fcbe86c7900a88aedcffc83b479aa3a4",
		"f987a7253ac413176f2b074cf7815e54",
		"f3392b0822b70005940c7a398e4b70f3",
		"e7159475a2c29b7443b29c7fa6e889d9",
		"d097f3bdfd2022b8845ad8f792aa5825",
		"a9f746462d870fdf8a65dc1f90e061e5",
		"70d869a156d2a1b890bb3df62baf32f7",
		"31be135f97d08fd981231505542fcfa6",
		"9aa508b5b7a84e1c677de54f3e99bc9",
		"5d6af8dedb81196699c329225ee604",
		"2216e584f5fa1ea926041bedfe98",
		"48a170391f7dc42444e8fa2",
	}
	tickMul []*big.Int
)

func init() {
	tickMul = make([]*big.Int, len(tickFactors))
	for i, s := range tickFactors {
		v, ok := new(big.Int).SetString(s, 16)
		if !ok {
			panic("clmm: bad tick factor " + s)
		}
		tickMul[i] = v
	}
}

// SqrtRatioX96 converts a signed tick index to the Q64.96 sqrt-price,
// sqrt(1.0001^tick) * 2^96, using the fixed-point per-bit table.
func SqrtRatioX96(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick out of range: %d", tick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-int64(tick))
	}

	ratio := new(big.Int).Set(one)
	if absTick&1 != 0 {
		ratio.Set(tickMul[0])
	}
	for i := 1; i < len(tickMul); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickMul[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(new(big.Int).Set(uMax), ratio)
	}

	// Round up when truncating Q128 down to Q96.
	rem := new(big.Int).Mod(ratio, q32)
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt-price is at most
// the given Q64.96 value.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("sqrt price must be positive")
	}

	lo, hi := MinTick, MaxTick
	loPrice, err := SqrtRatioX96(lo)
	if err != nil {
		return 0, err
	}
	if sqrtPriceX96.Cmp(loPrice) < 0 {
		return 0, fmt.Errorf("sqrt price below minimum tick")
	}

	for lo < hi {
		mid := lo + (hi-lo+1)/2
		midPrice, err := SqrtRatioX96(mid)
		if err != nil {
			return 0, err
		}
		if midPrice.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// AmountsForLiquidity splits a liquidity value into the raw token amounts
// it represents at the current tick, given the position's tick bounds.
// Amounts are in raw (un-decimaled) token units.
func AmountsForLiquidity(currentTick, lowerTick, upperTick int32, liquidity decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if lowerTick > upperTick {
		return decimal.Zero, decimal.Zero, fmt.Errorf("lower tick %d above upper tick %d", lowerTick, upperTick)
	}
	liq := liquidity.BigInt()
	if liq.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, nil
	}

	sqrtLower, err := SqrtRatioX96(lowerTick)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sqrtUpper, err := SqrtRatioX96(upperTick)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	switch {
	case currentTick < lowerTick:
		amount0 := amount0Delta(sqrtLower, sqrtUpper, liq)
		return decimal.NewFromBigInt(amount0, 0), decimal.Zero, nil
	case currentTick >= upperTick:
		amount1 := amount1Delta(sqrtLower, sqrtUpper, liq)
		return decimal.Zero, decimal.NewFromBigInt(amount1, 0), nil
	default:
		sqrtCurrent, err := SqrtRatioX96(currentTick)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		amount0 := amount0Delta(sqrtCurrent, sqrtUpper, liq)
		amount1 := amount1Delta(sqrtLower, sqrtCurrent, liq)
		return decimal.NewFromBigInt(amount0, 0), decimal.NewFromBigInt(amount1, 0), nil
	}
}

// amount0 = liq * (sqrtB - sqrtA) * 2^96 / (sqrtB * sqrtA)
func amount0Delta(sqrtA, sqrtB, liq *big.Int) *big.Int {
	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liq)
	num.Mul(num, q96)
	den := new(big.Int).Mul(sqrtB, sqrtA)
	return num.Div(num, den)
}

// amount1 = liq * (sqrtB - sqrtA) / 2^96
func amount1Delta(sqrtA, sqrtB, liq *big.Int) *big.Int {
	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liq)
	return num.Div(num, q96)
}
