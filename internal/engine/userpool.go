package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store"
	"poolLedger/internal/telemetry"
)

// UserAggregate is the per (user, pool) rollup consumed once per scoring
// cycle. Totals are raw token units, rebuilt from positions each cycle and
// zeroed after the score snapshot goes out.
type UserAggregate struct {
	store    store.Store
	prices   oracle.Source
	fallback decimal.Decimal
	sink     telemetry.Sink
	logger   *zap.Logger
}

func NewUserAggregate(st store.Store, prices oracle.Source, fallback decimal.Decimal, sink telemetry.Sink, logger *zap.Logger) *UserAggregate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &UserAggregate{
		store:    st,
		prices:   prices,
		fallback: fallback,
		sink:     sink,
		logger:   logger,
	}
}

func (u *UserAggregate) price(ctx context.Context, token string, at time.Time) decimal.Decimal {
	p, err := u.prices.Price(ctx, token, at)
	if err != nil {
		if !errors.Is(err, oracle.ErrNoPrice) {
			u.logger.Warn("price lookup failed", zap.String("token", token), zap.Error(err))
		}
		return u.fallback
	}
	return p
}

// Accumulate adds raw token amounts into the user's running totals and,
// when the position is in range, into the in-range counters too.
func (u *UserAggregate) Accumulate(ctx context.Context, user string, pool *model.PoolInfo, amount0, amount1 decimal.Decimal, inRange bool) error {
	id := model.UserPoolID(pool.ID, user)

	var row *model.UserPool
	ent, err := u.store.Get(ctx, model.KindUserPool, id)
	switch {
	case err == nil:
		row = ent.(*model.UserPool)
	case errors.Is(err, store.ErrNotFound):
		row = &model.UserPool{ID: id, UserAddress: user, PoolAddress: pool.ID}
	default:
		return fmt.Errorf("user pool %s: %w", id, err)
	}

	row.Amount0 = row.Amount0.Add(amount0)
	row.Amount1 = row.Amount1.Add(amount1)
	if inRange {
		row.Amount0InRange = row.Amount0InRange.Add(amount0)
		row.Amount1InRange = row.Amount1InRange.Add(amount1)
	}
	return u.store.Upsert(ctx, row)
}

// EmitAndReset converts the totals to USD, emits one LPSnapshot per token
// leg plus a UserScoreSnapshot, then zeroes all four counters. A user with
// no rollup row for the pool is a no-op.
func (u *UserAggregate) EmitAndReset(ctx context.Context, user string, pool *model.PoolInfo, at time.Time) error {
	id := model.UserPoolID(pool.ID, user)
	ent, err := u.store.Get(ctx, model.KindUserPool, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("user pool %s: %w", id, err)
	}
	row := ent.(*model.UserPool)

	price0 := u.price(ctx, pool.Token0, at)
	price1 := u.price(ctx, pool.Token1, at)

	amount0 := row.Amount0.Shift(-pool.Decimals0)
	amount1 := row.Amount1.Shift(-pool.Decimals1)
	inRange0 := row.Amount0InRange.Shift(-pool.Decimals0)
	inRange1 := row.Amount1InRange.Shift(-pool.Decimals1)

	totalUSD := amount0.Mul(price0).Add(amount1.Mul(price1))
	inRangeUSD := inRange0.Mul(price0).Add(inRange1.Mul(price1))

	legs := []struct {
		index   int
		token   string
		symbol  string
		amount  decimal.Decimal
		inRange decimal.Decimal
		price   decimal.Decimal
	}{
		{0, pool.Token0, pool.Symbol0, amount0, inRange0, price0},
		{1, pool.Token1, pool.Symbol1, amount1, inRange1, price1},
	}
	for _, leg := range legs {
		u.sink.Emit("LPSnapshot", map[string]any{
			"timestamp":           at.Unix(),
			"user_address":        user,
			"pool_address":        pool.ID,
			"token_index":         leg.index,
			"token_address":       leg.token,
			"token_symbol":        leg.symbol,
			"token_amount":        leg.amount.String(),
			"token_amount_usd":    leg.amount.Mul(leg.price).String(),
			"amount_in_range":     leg.inRange.String(),
			"amount_in_range_usd": leg.inRange.Mul(leg.price).String(),
		})
	}
	u.sink.Emit("UserScoreSnapshot", map[string]any{
		"timestamp":          at.Unix(),
		"user_address":       user,
		"pool_address":       pool.ID,
		"total_value_usd":    totalUSD.String(),
		"in_range_value_usd": inRangeUSD.String(),
	})

	row.Amount0 = decimal.Zero
	row.Amount1 = decimal.Zero
	row.Amount0InRange = decimal.Zero
	row.Amount1InRange = decimal.Zero
	return u.store.Upsert(ctx, row)
}
