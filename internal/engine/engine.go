package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/telemetry"
)

// Engine dispatches canonical events to the accounting components. No
// error crosses back to the event source: every failure is classified,
// logged, and processing moves on.
type Engine struct {
	registry  *PoolRegistry
	tokens    *TokenAccumulator
	positions *PositionLedger
	prices    oracle.Source
	fallback  decimal.Decimal
	sink      telemetry.Sink
	logger    *zap.Logger
}

func New(registry *PoolRegistry, tokens *TokenAccumulator, positions *PositionLedger, prices oracle.Source, fallback decimal.Decimal, sink telemetry.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Engine{
		registry:  registry,
		tokens:    tokens,
		positions: positions,
		prices:    prices,
		fallback:  fallback,
		sink:      sink,
		logger:    logger,
	}
}

// HandleEvent applies one decoded event. It never returns an error;
// internal failures degrade per step and surface only as diagnostics.
func (e *Engine) HandleEvent(ctx context.Context, env model.Envelope) {
	if env.Event == nil {
		e.report(env, "dispatch", fmt.Errorf("%w: nil event", ErrMalformed))
		return
	}

	switch ev := env.Event.(type) {
	case model.PoolCreated:
		e.handlePoolCreated(ctx, env, ev)
	case model.Swap:
		e.handleSwap(ctx, env, ev)
	case model.LiquidityAdded:
		e.handleLiquidity(ctx, env, ev.LiquidityChange, DirectionAdd)
	case model.LiquidityRemoved:
		e.handleLiquidity(ctx, env, ev.LiquidityChange, DirectionRemove)
	case model.FeeChanged:
		if err := e.registry.UpdateFee(ctx, ev.PoolID, ev.NewFeeRate); err != nil {
			e.report(env, "fee update", err)
		}
	case model.OwnershipTransferred:
		e.handleTransfer(ctx, env, ev)
	default:
		e.report(env, "dispatch", fmt.Errorf("%w: unknown event kind %s", ErrMalformed, env.Event.EventKind()))
	}
}

func (e *Engine) handlePoolCreated(ctx context.Context, env model.Envelope, ev model.PoolCreated) {
	pool := e.registry.RegisterPool(ctx, ev)
	pair := pool.Symbol0 + "-" + pool.Symbol1

	for index := 0; index < 2; index++ {
		state, err := e.tokens.GetOrCreate(ctx, pool, index, env.Timestamp)
		if err != nil {
			e.report(env, "token state bootstrap", err)
			continue
		}
		e.sink.Emit("Pool", map[string]any{
			"timestamp":     env.Timestamp.Unix(),
			"pool_address":  pool.ID,
			"token_index":   index,
			"token_address": state.TokenAddress,
			"token_symbol":  state.TokenSymbol,
			"pair_name":     pair,
			"fee_rate":      pool.FeeRate.String(),
			"dex_type":      env.Protocol,
		})
	}
}

func (e *Engine) handleSwap(ctx context.Context, env model.Envelope, ev model.Swap) {
	pool := e.registry.GetOrCreatePool(ctx, ev.PoolID)

	tick, ok := swapTick(ev)
	if ok {
		if err := e.registry.UpdateCurrentTick(ctx, ev.PoolID, tick); err != nil {
			e.report(env, "tick update", err)
		}
	}

	inIndex, outIndex := swapLegs(ev, pool)

	if err := e.tokens.ApplyDelta(ctx, pool, inIndex, ev.AmountIn, DirectionAdd, env.Timestamp); err != nil {
		e.report(env, "swap in leg", err)
	}
	if err := e.tokens.ApplyDelta(ctx, pool, outIndex, ev.AmountOut, DirectionRemove, env.Timestamp); err != nil {
		e.report(env, "swap out leg", err)
	}
	if err := e.tokens.AddFees(ctx, pool, inIndex, ev.FeeAmount, ev.ProtocolFee, env.Timestamp); err != nil {
		e.report(env, "swap fees", err)
	}

	amountIn := clmm.ScaleDown(bigOrZero(ev.AmountIn), pool.TokenDecimals(inIndex)).Abs()
	amountOut := clmm.ScaleDown(bigOrZero(ev.AmountOut), pool.TokenDecimals(outIndex)).Abs()
	e.sink.Emit("Trade", map[string]any{
		"timestamp":    env.Timestamp.Unix(),
		"tx_hash":      env.TxHash,
		"sender":       env.Sender,
		"pool_address": pool.ID,
		"pair_name":    pool.Symbol0 + "-" + pool.Symbol1,
		"token_in":     pool.TokenAddress(inIndex),
		"token_out":    pool.TokenAddress(outIndex),
		"amount_in":    amountIn.String(),
		"amount_out":   amountOut.String(),
		"value_usd":    amountIn.Mul(e.price(ctx, pool.TokenAddress(inIndex), env.Timestamp)).String(),
		"fee_rate":     pool.FeeRate.String(),
		"dex_type":     env.Protocol,
	})
}

func (e *Engine) handleLiquidity(ctx context.Context, env model.Envelope, ev model.LiquidityChange, direction Direction) {
	pool := e.registry.GetOrCreatePool(ctx, ev.PoolID)

	if err := e.positions.ApplyLiquidityEvent(ctx, ev, direction, env.Timestamp); err != nil {
		e.report(env, "position update", err)
	}
	if err := e.tokens.ApplyDelta(ctx, pool, 0, ev.Amount0, direction, env.Timestamp); err != nil {
		e.report(env, "liquidity token0", err)
	}
	if err := e.tokens.ApplyDelta(ctx, pool, 1, ev.Amount1, direction, env.Timestamp); err != nil {
		e.report(env, "liquidity token1", err)
	}

	name := "LPMint"
	if direction == DirectionRemove {
		name = "LPBurn"
	}
	e.sink.Emit(name, map[string]any{
		"timestamp":    env.Timestamp.Unix(),
		"tx_hash":      env.TxHash,
		"pool_address": pool.ID,
		"position_id":  ev.PositionID,
		"owner":        ev.Owner,
		"amount_0":     clmm.ScaleDown(bigOrZero(ev.Amount0), pool.Decimals0).Abs().String(),
		"amount_1":     clmm.ScaleDown(bigOrZero(ev.Amount1), pool.Decimals1).Abs().String(),
		"dex_type":     env.Protocol,
	})
}

func (e *Engine) handleTransfer(ctx context.Context, env model.Envelope, ev model.OwnershipTransferred) {
	if err := e.positions.TransferOwnership(ctx, ev, env.Timestamp); err != nil {
		e.report(env, "ownership transfer", err)
		return
	}
	e.sink.Emit("Transfer", map[string]any{
		"timestamp":     env.Timestamp.Unix(),
		"tx_hash":       env.TxHash,
		"object_id":     ev.ObjectID,
		"new_object_id": ev.NewObjectID,
		"from_owner":    ev.FromOwner,
		"to_owner":      ev.ToOwner,
		"dex_type":      env.Protocol,
	})
}

func (e *Engine) price(ctx context.Context, token string, at time.Time) decimal.Decimal {
	p, err := e.prices.Price(ctx, token, at)
	if err != nil {
		if !errors.Is(err, oracle.ErrNoPrice) {
			e.logger.Warn("price lookup failed", zap.String("token", token), zap.Error(err))
		}
		return e.fallback
	}
	return p
}

// report logs one failed step. Recoverable conditions are warnings;
// anything else is a malformed event worth operator attention.
func (e *Engine) report(env model.Envelope, step string, err error) {
	fields := []zap.Field{
		zap.String("step", step),
		zap.String("protocol", env.Protocol),
		zap.String("tx_hash", env.TxHash),
		zap.Error(err),
	}
	if Recoverable(err) {
		e.logger.Warn("event handling degraded", fields...)
		return
	}
	e.logger.Error("event handling failed", fields...)
}

// swapLegs resolves which token leg the input amount belongs to. An input
// coin type, when the adapter reports one, wins over the direction flag;
// a coin type matching neither leg falls back to the flag.
func swapLegs(ev model.Swap, pool *model.PoolInfo) (in, out int) {
	if ev.TokenIn != "" {
		if ev.TokenIn == pool.Token1 {
			return 1, 0
		}
		if ev.TokenIn == pool.Token0 {
			return 0, 1
		}
	}
	if ev.AToB {
		return 0, 1
	}
	return 1, 0
}

// swapTick derives the post-swap tick, preferring the explicit tick and
// falling back to the sqrt price when only that is reported.
func swapTick(ev model.Swap) (int32, bool) {
	if ev.TickAfter != nil {
		return *ev.TickAfter, true
	}
	if ev.SqrtPriceAfter != nil && ev.SqrtPriceAfter.Sign() > 0 {
		if tick, err := clmm.TickAtSqrtRatio(ev.SqrtPriceAfter); err == nil {
			return tick, true
		}
	}
	return 0, false
}
