package protocol

import (
	"fmt"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
)

func init() {
	register(aftermathAdapter{})
}

// aftermathAdapter maps the aftermath weighted-pool payloads onto the
// two-leg canonical shape: the first two pool coins become the token legs
// and deposits are full-range liquidity keyed by pool and issuer. Swap
// legs beyond the first of each side are dropped.
type aftermathAdapter struct{}

func (aftermathAdapter) Name() string { return "aftermath" }

func (aftermathAdapter) Decode(ev NativeEvent) (model.Event, error) {
	switch ev.Type {
	case "CreatedPoolEvent":
		var p struct {
			PoolID     string   `json:"pool_id"`
			Coins      []string `json:"coins"`
			FeesSwapIn []string `json:"fees_swap_in"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		if len(p.Coins) < 2 {
			return nil, fmt.Errorf("%w: aftermath pool with %d coins", ErrUnknownEvent, len(p.Coins))
		}
		created := model.PoolCreated{
			PoolID: p.PoolID,
			Token0: ensureHexPrefix(p.Coins[0]),
			Token1: ensureHexPrefix(p.Coins[1]),
		}
		if len(p.FeesSwapIn) > 0 {
			created.FeeRate = feeRate(p.FeesSwapIn[0])
		}
		return created, nil

	case "SwapEvent":
		var p struct {
			PoolID     string   `json:"pool_id"`
			TypesIn    []string `json:"types_in"`
			AmountsIn  []BigInt `json:"amounts_in"`
			AmountsOut []BigInt `json:"amounts_out"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		if len(p.AmountsIn) == 0 || len(p.AmountsOut) == 0 {
			return nil, fmt.Errorf("%w: aftermath swap without legs", ErrUnknownEvent)
		}
		swap := model.Swap{
			PoolID:    p.PoolID,
			AToB:      true,
			AmountIn:  p.AmountsIn[0].Int,
			AmountOut: p.AmountsOut[0].Int,
		}
		// The payload carries coin types, not a direction flag. The engine
		// settles the leg order against the pool record.
		if len(p.TypesIn) > 0 {
			swap.TokenIn = ensureHexPrefix(p.TypesIn[0])
		}
		return swap, nil

	case "DepositEvent", "WithdrawEvent":
		var p struct {
			PoolID        string   `json:"pool_id"`
			Issuer        string   `json:"issuer"`
			Types         []string `json:"types"`
			Deposits      []BigInt `json:"deposits"`
			Withdrawn     []BigInt `json:"withdrawn"`
			LPCoinsMinted BigInt   `json:"lp_coins_minted"`
			LPCoinsBurned BigInt   `json:"lp_coins_burned"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		amounts := p.Deposits
		liquidity := p.LPCoinsMinted
		if ev.Type == "WithdrawEvent" {
			amounts = p.Withdrawn
			liquidity = p.LPCoinsBurned
		}
		change := model.LiquidityChange{
			PoolID:         p.PoolID,
			PositionID:     p.PoolID + "-" + p.Issuer,
			Owner:          p.Issuer,
			LiquidityDelta: liquidity.Int,
			TickLower:      clmm.MinTick,
			TickUpper:      clmm.MaxTick,
		}
		if len(amounts) > 0 {
			change.Amount0 = amounts[0].Int
		}
		if len(amounts) > 1 {
			change.Amount1 = amounts[1].Int
		}
		if ev.Type == "WithdrawEvent" {
			return model.LiquidityRemoved{LiquidityChange: change}, nil
		}
		return model.LiquidityAdded{LiquidityChange: change}, nil
	}
	return nil, fmt.Errorf("%w: aftermath %s", ErrUnknownEvent, ev.Type)
}
