package protocol

import (
	"fmt"

	"poolLedger/internal/model"
)

func init() {
	register(kriyaAdapter{name: "kriya-clmm", compositeKeys: false})
	register(kriyaAdapter{name: "kriya-dex", compositeKeys: true})
}

// kriyaAdapter covers both kriya variants, which share payload shapes.
// The dex variant keys ledger rows by the position_user composite id, so
// ownership transfers re-key the row instead of rewriting it in place.
type kriyaAdapter struct {
	name          string
	compositeKeys bool
}

func (a kriyaAdapter) Name() string { return a.name }

func (a kriyaAdapter) positionKey(positionID, owner string) string {
	if a.compositeKeys {
		return positionID + "_" + owner
	}
	return positionID
}

func (a kriyaAdapter) Decode(ev NativeEvent) (model.Event, error) {
	switch ev.Type {
	case "PoolCreatedEvent":
		var p struct {
			PoolID      string `json:"pool_id"`
			TypeX       string `json:"type_x"`
			TypeY       string `json:"type_y"`
			FeeRate     string `json:"fee_rate"`
			TickSpacing int32  `json:"tick_spacing"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.PoolCreated{
			PoolID:      p.PoolID,
			Token0:      ensureHexPrefix(p.TypeX),
			Token1:      ensureHexPrefix(p.TypeY),
			FeeRate:     feeRate(p.FeeRate),
			TickSpacing: p.TickSpacing,
		}, nil

	case "SwapEvent":
		var p struct {
			PoolID         string `json:"pool_id"`
			XForY          bool   `json:"x_for_y"`
			AmountX        BigInt `json:"amount_x"`
			AmountY        BigInt `json:"amount_y"`
			SqrtPriceAfter BigInt `json:"sqrt_price_after"`
			TickIndex      I32    `json:"tick_index"`
			FeeAmount      BigInt `json:"fee_amount"`
			ProtocolFee    BigInt `json:"protocol_fee"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		amountIn, amountOut := p.AmountX.Int, p.AmountY.Int
		if !p.XForY {
			amountIn, amountOut = p.AmountY.Int, p.AmountX.Int
		}
		tick := p.TickIndex.Tick()
		return model.Swap{
			PoolID:         p.PoolID,
			AToB:           p.XForY,
			AmountIn:       amountIn,
			AmountOut:      amountOut,
			FeeAmount:      p.FeeAmount.Int,
			ProtocolFee:    p.ProtocolFee.Int,
			SqrtPriceAfter: p.SqrtPriceAfter.Int,
			TickAfter:      &tick,
		}, nil

	case "AddLiquidityEvent", "RemoveLiquidityEvent":
		var p struct {
			Sender         string `json:"sender"`
			PoolID         string `json:"pool_id"`
			PositionID     string `json:"position_id"`
			Liquidity      BigInt `json:"liquidity"`
			AmountX        BigInt `json:"amount_x"`
			AmountY        BigInt `json:"amount_y"`
			LowerTickIndex I32    `json:"lower_tick_index"`
			UpperTickIndex I32    `json:"upper_tick_index"`
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
			PositionID:     a.positionKey(p.PositionID, owner),
			Owner:          owner,
			Amount0:        p.AmountX.Int,
			Amount1:        p.AmountY.Int,
			LiquidityDelta: p.Liquidity.Int,
			TickLower:      p.LowerTickIndex.Tick(),
			TickUpper:      p.UpperTickIndex.Tick(),
		}
		if ev.Type == "RemoveLiquidityEvent" {
			return model.LiquidityRemoved{LiquidityChange: change}, nil
		}
		return model.LiquidityAdded{LiquidityChange: change}, nil

	case "SetProtocolSwapFeeRateEvent":
		var p struct {
			PoolID              string `json:"pool_id"`
			ProtocolFeeShareNew string `json:"protocol_fee_share_new"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.FeeChanged{PoolID: p.PoolID, NewFeeRate: feeRate(p.ProtocolFeeShareNew)}, nil

	case "Transfer":
		var p struct {
			ObjectID  string `json:"object_id"`
			Sender    string `json:"sender"`
			Recipient string `json:"recipient"`
		}
		if err := unmarshalPayload(ev, &p); err != nil {
			return nil, err
		}
		return model.OwnershipTransferred{
			ObjectID:    a.positionKey(p.ObjectID, p.Sender),
			NewObjectID: a.positionKey(p.ObjectID, p.Recipient),
			FromOwner:   p.Sender,
			ToOwner:     p.Recipient,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownEvent, a.name, ev.Type)
}
