package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store"
	"poolLedger/internal/telemetry"
)

// Direction marks whether a delta adds to or removes from a balance.
type Direction int

const (
	DirectionAdd Direction = iota + 1
	DirectionRemove
)

// TokenAccumulator maintains the rolling per (pool, token) state: balance,
// per-period volume, and per-period fees. Volume and fees reset on every
// snapshot flush; the balance carries across periods.
type TokenAccumulator struct {
	store    store.Store
	prices   oracle.Source
	fallback decimal.Decimal
	sink     telemetry.Sink
	logger   *zap.Logger
}

// NewTokenAccumulator builds an accumulator. fallback is the price
// substituted when the oracle has no quote.
func NewTokenAccumulator(st store.Store, prices oracle.Source, fallback decimal.Decimal, sink telemetry.Sink, logger *zap.Logger) *TokenAccumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &TokenAccumulator{
		store:    st,
		prices:   prices,
		fallback: fallback,
		sink:     sink,
		logger:   logger,
	}
}

// price resolves a token quote, degrading to the configured fallback when
// the oracle has no data. Never fails the caller.
func (a *TokenAccumulator) price(ctx context.Context, token string, at time.Time) decimal.Decimal {
	p, err := a.prices.Price(ctx, token, at)
	if err != nil {
		if !errors.Is(err, oracle.ErrNoPrice) {
			a.logger.Warn("price lookup failed", zap.String("token", token), zap.Error(err))
		}
		return a.fallback
	}
	return p
}

// GetOrCreate returns the state row for one pool token leg, creating a
// zeroed row on first reference.
func (a *TokenAccumulator) GetOrCreate(ctx context.Context, pool *model.PoolInfo, tokenIndex int, at time.Time) (*model.PoolTokenState, error) {
	token := pool.TokenAddress(tokenIndex)
	id := model.PoolTokenStateID(pool.ID, token)

	ent, err := a.store.Get(ctx, model.KindPoolTokenState, id)
	if err == nil {
		return ent.(*model.PoolTokenState), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("token state %s: %w", id, err)
	}

	symbol := pool.Symbol0
	if tokenIndex == 1 {
		symbol = pool.Symbol1
	}
	state := &model.PoolTokenState{
		ID:           id,
		Timestamp:    at.Unix(),
		PoolAddress:  pool.ID,
		TokenIndex:   tokenIndex,
		TokenAddress: token,
		TokenSymbol:  symbol,
		FeeRate:      pool.FeeRate,
	}
	if err := a.store.Upsert(ctx, state); err != nil {
		return nil, fmt.Errorf("token state %s: %w", id, err)
	}
	return state, nil
}

// ApplyDelta adjusts the token balance by a signed amount and accumulates
// the unsigned magnitude into the period volume counters.
func (a *TokenAccumulator) ApplyDelta(ctx context.Context, pool *model.PoolInfo, tokenIndex int, raw *big.Int, direction Direction, at time.Time) error {
	if raw == nil {
		return fmt.Errorf("%w: nil amount for pool %s", ErrMalformed, pool.ID)
	}
	state, err := a.GetOrCreate(ctx, pool, tokenIndex, at)
	if err != nil {
		return err
	}

	amount := clmm.ScaleDown(raw, pool.TokenDecimals(tokenIndex)).Abs()
	price := a.price(ctx, state.TokenAddress, at)

	if direction == DirectionRemove {
		state.TokenAmount = state.TokenAmount.Sub(amount)
	} else {
		state.TokenAmount = state.TokenAmount.Add(amount)
	}
	state.TokenAmountUSD = state.TokenAmount.Mul(price)
	state.VolumeAmount = state.VolumeAmount.Add(amount)
	state.VolumeUSD = state.VolumeUSD.Add(amount.Mul(price))
	state.FeeRate = pool.FeeRate
	state.Timestamp = at.Unix()

	return a.store.Upsert(ctx, state)
}

// AddFees accumulates swap fees for one token leg. protocolFee may be nil
// when the protocol does not split it out.
func (a *TokenAccumulator) AddFees(ctx context.Context, pool *model.PoolInfo, tokenIndex int, fee, protocolFee *big.Int, at time.Time) error {
	if fee == nil {
		return nil
	}
	state, err := a.GetOrCreate(ctx, pool, tokenIndex, at)
	if err != nil {
		return err
	}

	decimals := pool.TokenDecimals(tokenIndex)
	price := a.price(ctx, state.TokenAddress, at)
	feeUSD := clmm.ScaleDown(fee, decimals).Mul(price)
	protocolUSD := decimal.Zero
	if protocolFee != nil {
		protocolUSD = clmm.ScaleDown(protocolFee, decimals).Mul(price)
	}

	state.TotalFeesUSD = state.TotalFeesUSD.Add(feeUSD)
	state.ProtocolFeesUSD = state.ProtocolFeesUSD.Add(protocolUSD)
	state.UserFeesUSD = state.UserFeesUSD.Add(feeUSD.Sub(protocolUSD))
	state.Timestamp = at.Unix()

	return a.store.Upsert(ctx, state)
}

// FlushAndReset emits one PoolSnapshot record per token leg of the pool
// and zeroes the per-period counters. The running balance survives.
// Failures are contained per token row.
func (a *TokenAccumulator) FlushAndReset(ctx context.Context, poolID string, at time.Time) error {
	filters := []store.Filter{{Field: "pool_address", Op: store.OpEq, Value: poolID}}
	ents, err := a.store.List(ctx, model.KindPoolTokenState, filters)
	if err != nil {
		return fmt.Errorf("list token states for %s: %w", poolID, err)
	}

	flushed := make([]model.Entity, 0, len(ents))
	for _, ent := range ents {
		state := ent.(*model.PoolTokenState)
		price := a.price(ctx, state.TokenAddress, at)
		state.TokenAmountUSD = state.TokenAmount.Mul(price)

		a.sink.Emit("PoolSnapshot", map[string]any{
			"timestamp":         at.Unix(),
			"pool_address":      state.PoolAddress,
			"token_index":       state.TokenIndex,
			"token_address":     state.TokenAddress,
			"token_symbol":      state.TokenSymbol,
			"token_amount":      state.TokenAmount.String(),
			"token_amount_usd":  state.TokenAmountUSD.String(),
			"volume_amount":     state.VolumeAmount.String(),
			"volume_usd":        state.VolumeUSD.String(),
			"fee_rate":          state.FeeRate.String(),
			"total_fees_usd":    state.TotalFeesUSD.String(),
			"user_fees_usd":     state.UserFeesUSD.String(),
			"protocol_fees_usd": state.ProtocolFeesUSD.String(),
		})

		state.VolumeAmount = decimal.Zero
		state.VolumeUSD = decimal.Zero
		state.TotalFeesUSD = decimal.Zero
		state.UserFeesUSD = decimal.Zero
		state.ProtocolFeesUSD = decimal.Zero
		state.Timestamp = at.Unix()
		flushed = append(flushed, state)
	}
	if len(flushed) == 0 {
		return nil
	}
	return a.store.Upsert(ctx, flushed...)
}
