package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store"
)

// PositionLedger tracks per-position liquidity and value incrementally.
// Positions are never deleted, even at zero liquidity.
type PositionLedger struct {
	store    store.Store
	registry *PoolRegistry
	prices   oracle.Source
	fallback decimal.Decimal
	logger   *zap.Logger
}

func NewPositionLedger(st store.Store, registry *PoolRegistry, prices oracle.Source, fallback decimal.Decimal, logger *zap.Logger) *PositionLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionLedger{
		store:    st,
		registry: registry,
		prices:   prices,
		fallback: fallback,
		logger:   logger,
	}
}

// priceOrErr resolves a quote. A missing quote substitutes the configured
// fallback; a transient oracle failure is returned so the caller can leave
// state untouched.
func (l *PositionLedger) priceOrErr(ctx context.Context, token string, at time.Time) (decimal.Decimal, error) {
	p, err := l.prices.Price(ctx, token, at)
	if err != nil {
		if errors.Is(err, oracle.ErrNoPrice) {
			return l.fallback, nil
		}
		return decimal.Zero, fmt.Errorf("price %s: %w", token, err)
	}
	return p, nil
}

// ApplyLiquidityEvent applies one add or remove delta to a position. The
// position is created zeroed on first reference, recording its tick
// bounds; bounds never change afterwards. All mutations land in a single
// upsert, so a mid-update failure leaves the stored row as it was.
func (l *PositionLedger) ApplyLiquidityEvent(ctx context.Context, ev model.LiquidityChange, direction Direction, at time.Time) error {
	if ev.PositionID == "" || ev.PoolID == "" {
		return fmt.Errorf("%w: liquidity event missing position or pool id", ErrMalformed)
	}

	pool := l.registry.GetOrCreatePool(ctx, ev.PoolID)

	var position *model.UserPosition
	ent, err := l.store.Get(ctx, model.KindUserPosition, ev.PositionID)
	switch {
	case err == nil:
		position = ent.(*model.UserPosition)
	case errors.Is(err, store.ErrNotFound):
		position = &model.UserPosition{
			ID:          ev.PositionID,
			UserAddress: ev.Owner,
			PositionID:  ev.PositionID,
			PoolAddress: ev.PoolID,
			LowerTick:   ev.TickLower,
			UpperTick:   ev.TickUpper,
		}
	default:
		return fmt.Errorf("position %s: %w", ev.PositionID, err)
	}

	var price0, price1 decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		price0, err = l.priceOrErr(gctx, pool.Token0, at)
		return err
	})
	g.Go(func() error {
		var err error
		price1, err = l.priceOrErr(gctx, pool.Token1, at)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	amount0 := clmm.ScaleDown(bigOrZero(ev.Amount0), pool.Decimals0).Abs()
	amount1 := clmm.ScaleDown(bigOrZero(ev.Amount1), pool.Decimals1).Abs()
	deltaUSD := amount0.Mul(price0).Add(amount1.Mul(price1))
	liquidity := decimal.NewFromBigInt(bigOrZero(ev.LiquidityDelta), 0).Abs()

	if direction == DirectionRemove {
		position.Amount0 = position.Amount0.Sub(amount0)
		position.Amount1 = position.Amount1.Sub(amount1)
		position.AmountUSD = position.AmountUSD.Sub(deltaUSD)
		position.Liquidity = position.Liquidity.Sub(liquidity)
	} else {
		position.Amount0 = position.Amount0.Add(amount0)
		position.Amount1 = position.Amount1.Add(amount1)
		position.AmountUSD = position.AmountUSD.Add(deltaUSD)
		position.Liquidity = position.Liquidity.Add(liquidity)
	}
	clampPosition(position)

	if ev.Owner != "" {
		position.UserAddress = ev.Owner
	}
	position.Timestamp = at.Unix()

	if err := l.store.Upsert(ctx, position); err != nil {
		return fmt.Errorf("position %s: %w", ev.PositionID, err)
	}
	return l.registerUser(ctx, position.UserAddress)
}

// TransferOwnership rewrites the owner of an existing position. When the
// protocol keys positions by (position, user) the transfer re-keys the row
// under the new composite id; the old row is left behind.
func (l *PositionLedger) TransferOwnership(ctx context.Context, ev model.OwnershipTransferred, at time.Time) error {
	ent, err := l.store.Get(ctx, model.KindUserPosition, ev.ObjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingPosition, ev.ObjectID)
		}
		return fmt.Errorf("position %s: %w", ev.ObjectID, err)
	}
	position := ent.(*model.UserPosition)

	if ev.NewObjectID != "" && ev.NewObjectID != ev.ObjectID {
		position.ID = ev.NewObjectID
	}
	position.UserAddress = ev.ToOwner
	position.Timestamp = at.Unix()

	if err := l.store.Upsert(ctx, position); err != nil {
		return fmt.Errorf("position %s: %w", position.ID, err)
	}
	return l.registerUser(ctx, ev.ToOwner)
}

func (l *PositionLedger) registerUser(ctx context.Context, user string) error {
	if user == "" {
		return nil
	}
	return l.store.Upsert(ctx, &model.UserState{ID: user, User: user})
}

// clampPosition floors amounts, USD value, and liquidity at zero. A
// well-formed stream never drives them negative; the floor only contains
// damage from one that is not.
func clampPosition(p *model.UserPosition) {
	if p.Amount0.IsNegative() {
		p.Amount0 = decimal.Zero
	}
	if p.Amount1.IsNegative() {
		p.Amount1 = decimal.Zero
	}
	if p.AmountUSD.IsNegative() {
		p.AmountUSD = decimal.Zero
	}
	if p.Liquidity.IsNegative() {
		p.Liquidity = decimal.Zero
	}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
