package protocol

import (
	"fmt"

	"poolLedger/internal/model"
)

func init() {
	register(cetusAdapter{})
}

// cetusAdapter maps the cetus CLMM event payloads. Positions are NFT
// objects, so the position id keys the ledger row directly.
type cetusAdapter struct{}

func (cetusAdapter) Name() string { return "cetus" }

func (cetusAdapter) Decode(ev NativeEvent) (model.Event, error) {
	switch ev.Type {
	case "CreatePoolEvent":
		var p struct {
			PoolID      string `json:"pool_id"`
			CoinTypeA   string `json:"coin_type_a"`
			CoinTypeB   string `json:"coin_type_b"`
			TickSpacing int32  `json:"tick_spacing"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.PoolCreated{
			PoolID:      p.PoolID,
			Token0:      ensureHexPrefix(p.CoinTypeA),
			Token1:      ensureHexPrefix(p.CoinTypeB),
			TickSpacing: p.TickSpacing,
		}, nil

	case "SwapEvent":
		var p struct {
			Pool           string `json:"pool"`
			AToB           bool   `json:"atob"`
			AmountIn       BigInt `json:"amount_in"`
			AmountOut      BigInt `json:"amount_out"`
			FeeAmount      BigInt `json:"fee_amount"`
			AfterSqrtPrice BigInt `json:"after_sqrt_price"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.Swap{
			PoolID:         p.Pool,
			AToB:           p.AToB,
			AmountIn:       p.AmountIn.Int,
			AmountOut:      p.AmountOut.Int,
			FeeAmount:      p.FeeAmount.Int,
			SqrtPriceAfter: p.AfterSqrtPrice.Int,
		}, nil

	case "AddLiquidityEvent", "RemoveLiquidityEvent":
		var p struct {
			Pool      string `json:"pool"`
			Position  string `json:"position"`
			TickLower I32    `json:"tick_lower"`
			TickUpper I32    `json:"tick_upper"`
			AmountA   BigInt `json:"amount_a"`
			AmountB   BigInt `json:"amount_b"`
			Liquidity BigInt `json:"liquidity"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		change := model.LiquidityChange{
			PoolID:         p.Pool,
			PositionID:     p.Position,
			Owner:          ev.Sender,
			Amount0:        p.AmountA.Int,
			Amount1:        p.AmountB.Int,
			LiquidityDelta: p.Liquidity.Int,
			TickLower:      p.TickLower.Tick(),
			TickUpper:      p.TickUpper.Tick(),
		}
		if ev.Type == "RemoveLiquidityEvent" {
			return model.LiquidityRemoved{LiquidityChange: change}, nil
		}
		return model.LiquidityAdded{LiquidityChange: change}, nil

	case "UpdateFeeRateEvent":
		var p struct {
			Pool       string `json:"pool"`
			NewFeeRate string `json:"new_fee_rate"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.FeeChanged{PoolID: p.Pool, NewFeeRate: feeRate(p.NewFeeRate)}, nil

	case "Transfer":
		return decodeObjectTransfer(ev)
	}
	return nil, fmt.Errorf("%w: cetus %s", ErrUnknownEvent, ev.Type)
}
