package protocol

import (
	"fmt"

	"poolLedger/internal/model"
)

func init() {
	register(flowxAdapter{})
}

// flowxAdapter maps the flowx v3 payloads. Add and remove share one
// ModifyLiquidity shape; the event type carries the direction.
type flowxAdapter struct{}

func (flowxAdapter) Name() string { return "flowx" }

func (flowxAdapter) Decode(ev NativeEvent) (model.Event, error) {
	switch ev.Type {
	case "PoolCreated":
		var p struct {
			PoolID      string `json:"pool_id"`
			CoinTypeX   string `json:"coin_type_x"`
			CoinTypeY   string `json:"coin_type_y"`
			FeeRate     string `json:"fee_rate"`
			TickSpacing int32  `json:"tick_spacing"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.PoolCreated{
			PoolID:      p.PoolID,
			Token0:      ensureHexPrefix(p.CoinTypeX),
			Token1:      ensureHexPrefix(p.CoinTypeY),
			FeeRate:     feeRate(p.FeeRate),
			TickSpacing: p.TickSpacing,
		}, nil

	case "Swap":
		var p struct {
			PoolID         string `json:"pool_id"`
			XForY          bool   `json:"x_for_y"`
			AmountX        BigInt `json:"amount_x"`
			AmountY        BigInt `json:"amount_y"`
			FeeAmount      BigInt `json:"fee_amount"`
			SqrtPriceAfter BigInt `json:"sqrt_price_after"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		amountIn, amountOut := p.AmountX.Int, p.AmountY.Int
		if !p.XForY {
			amountIn, amountOut = p.AmountY.Int, p.AmountX.Int
		}
		return model.Swap{
			PoolID:         p.PoolID,
			AToB:           p.XForY,
			AmountIn:       amountIn,
			AmountOut:      amountOut,
			FeeAmount:      p.FeeAmount.Int,
			SqrtPriceAfter: p.SqrtPriceAfter.Int,
		}, nil

	case "AddLiquidity", "RemoveLiquidity":
		var p struct {
			Sender         string `json:"sender"`
			PoolID         string `json:"pool_id"`
			PositionID     string `json:"position_id"`
			TickLowerIndex I32    `json:"tick_lower_index"`
			TickUpperIndex I32    `json:"tick_upper_index"`
			LiquidityDelta BigInt `json:"liquidity_delta"`
			AmountX        BigInt `json:"amount_x"`
			AmountY        BigInt `json:"amount_y"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		owner := p.Sender
		if owner == "" {
			owner = ev.Sender
		}
		change := model.LiquidityChange{
			PoolID:         p.PoolID,
			PositionID:     p.PositionID,
			Owner:          owner,
			Amount0:        p.AmountX.Int,
			Amount1:        p.AmountY.Int,
			LiquidityDelta: p.LiquidityDelta.Int,
			TickLower:      p.TickLowerIndex.Tick(),
			TickUpper:      p.TickUpperIndex.Tick(),
		}
		if ev.Type == "RemoveLiquidity" {
			return model.LiquidityRemoved{LiquidityChange: change}, nil
		}
		return model.LiquidityAdded{LiquidityChange: change}, nil

	case "SetProtocolFeeRate":
		var p struct {
			PoolID             string `json:"pool_id"`
			ProtocolFeeRateNew string `json:"protocol_fee_rate_x_new"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.FeeChanged{PoolID: p.PoolID, NewFeeRate: feeRate(p.ProtocolFeeRateNew)}, nil

	case "Transfer":
		return decodeObjectTransfer(ev)
	}
	return nil, fmt.Errorf("%w: flowx %s", ErrUnknownEvent, ev.Type)
}
