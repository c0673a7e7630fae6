package protocol

import (
	"fmt"

	"poolLedger/internal/model"
)

func init() {
	register(turbosAdapter{})
}

// turbosAdapter maps the turbos CLMM payloads. Mint and burn events carry
// no position object, so positions are keyed by the synthetic
// pool-owner-lowerTick-upperTick id.
type turbosAdapter struct{}

func (turbosAdapter) Name() string { return "turbos" }

func (turbosAdapter) Decode(ev NativeEvent) (model.Event, error) {
	switch ev.Type {
	case "PoolCreatedEvent":
		var p struct {
			Pool        string `json:"pool"`
			Fee         string `json:"fee"`
			TickSpacing int32  `json:"tick_spacing"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		// Token types are not in the event; the registry fills them from
		// the pool object on first reference.
		return model.PoolCreated{
			PoolID:      p.Pool,
			FeeRate:     feeRate(p.Fee),
			TickSpacing: p.TickSpacing,
		}, nil

	case "SwapEvent":
		var p struct {
			Pool        string `json:"pool"`
			AToB        bool   `json:"a_to_b"`
			AmountA     BigInt `json:"amount_a"`
			AmountB     BigInt `json:"amount_b"`
			FeeAmount   BigInt `json:"fee_amount"`
			ProtocolFee BigInt `json:"protocol_fee"`
			SqrtPrice   BigInt `json:"sqrt_price"`
			TickCurrent I32    `json:"tick_current_index"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		amountIn, amountOut := p.AmountA.Int, p.AmountB.Int
		if !p.AToB {
			amountIn, amountOut = p.AmountB.Int, p.AmountA.Int
		}
		tick := p.TickCurrent.Tick()
		return model.Swap{
			PoolID:         p.Pool,
			AToB:           p.AToB,
			AmountIn:       amountIn,
			AmountOut:      amountOut,
			FeeAmount:      p.FeeAmount.Int,
			ProtocolFee:    p.ProtocolFee.Int,
			SqrtPriceAfter: p.SqrtPrice.Int,
			TickAfter:      &tick,
		}, nil

	case "MintEvent", "BurnEvent":
		var p struct {
			Pool           string `json:"pool"`
			Owner          string `json:"owner"`
			TickLowerIndex I32    `json:"tick_lower_index"`
			TickUpperIndex I32    `json:"tick_upper_index"`
			LiquidityDelta BigInt `json:"liquidity_delta"`
			AmountA        BigInt `json:"amount_a"`
			AmountB        BigInt `json:"amount_b"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		lower, upper := p.TickLowerIndex.Tick(), p.TickUpperIndex.Tick()
		change := model.LiquidityChange{
			PoolID:         p.Pool,
			PositionID:     fmt.Sprintf("%s-%s-%d-%d", p.Pool, p.Owner, lower, upper),
			Owner:          p.Owner,
			Amount0:        p.AmountA.Int,
			Amount1:        p.AmountB.Int,
			LiquidityDelta: p.LiquidityDelta.Int,
			TickLower:      lower,
			TickUpper:      upper,
		}
		if ev.Type == "BurnEvent" {
			return model.LiquidityRemoved{LiquidityChange: change}, nil
		}
		return model.LiquidityAdded{LiquidityChange: change}, nil

	case "UpdatePoolFeeProtocolEvent":
		var p struct {
			Pool        string `json:"pool"`
			FeeProtocol string `json:"fee_protocol"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.FeeChanged{PoolID: p.Pool, NewFeeRate: feeRate(p.FeeProtocol)}, nil
	}
	return nil, fmt.Errorf("%w: turbos %s", ErrUnknownEvent, ev.Type)
}
