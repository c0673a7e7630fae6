package engine

import (
	"context"
	"errors"
	"math/big"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/chain"
	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/oracle"
	"poolLedger/internal/store"
)

// feeRateDenominator converts the on-chain integer fee rate to a fraction.
var feeRateDenominator = decimal.NewFromInt(1_000_000)

// PoolRegistry lazily bootstraps PoolInfo records and serves them from an
// in-process cache. The store is the source of truth; the cache only avoids
// redundant chain reads within the process lifetime.
type PoolRegistry struct {
	store  store.Store
	reader chain.Reader
	prices oracle.Source
	cache  *xsync.Map[string, *model.PoolInfo]
	logger *zap.Logger
}

func NewPoolRegistry(st store.Store, reader chain.Reader, prices oracle.Source, logger *zap.Logger) *PoolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolRegistry{
		store:  st,
		reader: reader,
		prices: prices,
		cache:  xsync.NewMap[string, *model.PoolInfo](),
		logger: logger,
	}
}

// GetOrCreatePool returns the pool record, bootstrapping it from chain
// object state on first reference. Bootstrap failures degrade to a pool
// with zero defaults; callers never see an error here.
func (r *PoolRegistry) GetOrCreatePool(ctx context.Context, poolID string) *model.PoolInfo {
	if pool, ok := r.cache.Load(poolID); ok {
		return pool
	}

	ent, err := r.store.Get(ctx, model.KindPoolInfo, poolID)
	if err == nil {
		pool := ent.(*model.PoolInfo)
		r.cache.Store(poolID, pool)
		return pool
	}
	if !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("pool lookup failed", zap.String("pool", poolID), zap.Error(err))
	}

	pool := &model.PoolInfo{ID: poolID}
	r.bootstrap(ctx, pool)
	if err := r.store.Upsert(ctx, pool); err != nil {
		r.logger.Warn("pool upsert failed", zap.String("pool", poolID), zap.Error(err))
	}
	r.cache.Store(poolID, pool)
	return pool
}

// RegisterPool creates a pool record straight from a creation event,
// skipping the chain read. Token metadata comes from the oracle source.
func (r *PoolRegistry) RegisterPool(ctx context.Context, ev model.PoolCreated) *model.PoolInfo {
	if pool, ok := r.cache.Load(ev.PoolID); ok {
		return pool
	}
	if ent, err := r.store.Get(ctx, model.KindPoolInfo, ev.PoolID); err == nil {
		pool := ent.(*model.PoolInfo)
		r.cache.Store(ev.PoolID, pool)
		return pool
	}

	pool := &model.PoolInfo{
		ID:          ev.PoolID,
		Token0:      ev.Token0,
		Token1:      ev.Token1,
		FeeRate:     ev.FeeRate,
		TickSpacing: ev.TickSpacing,
	}
	r.fillTokenMeta(ctx, pool)
	if err := r.store.Upsert(ctx, pool); err != nil {
		r.logger.Warn("pool upsert failed", zap.String("pool", ev.PoolID), zap.Error(err))
	}
	r.cache.Store(ev.PoolID, pool)
	return pool
}

// UpdateFee rewrites the pool fee rate. The only fee mutation after
// bootstrap.
func (r *PoolRegistry) UpdateFee(ctx context.Context, poolID string, rate decimal.Decimal) error {
	pool := r.GetOrCreatePool(ctx, poolID)
	pool.FeeRate = rate
	return r.store.Upsert(ctx, pool)
}

// UpdateCurrentTick rewrites the pool's current tick, driven by swaps.
func (r *PoolRegistry) UpdateCurrentTick(ctx context.Context, poolID string, tick int32) error {
	pool := r.GetOrCreatePool(ctx, poolID)
	pool.CurrentTick = tick
	return r.store.Upsert(ctx, pool)
}

// Refresh re-reads the pool object and updates the mutable fields (fee
// rate, current tick). Used by the snapshot cycle; failure leaves the
// stored record untouched.
func (r *PoolRegistry) Refresh(ctx context.Context, poolID string) error {
	obj, err := r.reader.GetObject(ctx, poolID)
	if err != nil {
		return err
	}
	pool := r.GetOrCreatePool(ctx, poolID)
	r.applyObjectState(pool, obj)
	return r.store.Upsert(ctx, pool)
}

// bootstrap fills a fresh pool record from chain object state. Every step
// is best effort; a failed read leaves zero defaults in place.
func (r *PoolRegistry) bootstrap(ctx context.Context, pool *model.PoolInfo) {
	obj, err := r.reader.GetObject(ctx, pool.ID)
	if err != nil {
		r.logger.Warn("pool bootstrap read failed", zap.String("pool", pool.ID), zap.Error(err))
		return
	}

	pool.Token0, pool.Token1 = chain.CoinTypesFromPoolType(obj.Type)
	r.fillTokenMeta(ctx, pool)
	r.applyObjectState(pool, obj)

	if raw := obj.StringField("tick_spacing"); raw != "" {
		if spacing, ok := parseInt32(raw); ok {
			pool.TickSpacing = spacing
		}
	}
}

func (r *PoolRegistry) applyObjectState(pool *model.PoolInfo, obj *chain.Object) {
	if raw := obj.StringField("fee_rate"); raw != "" {
		if rate, err := decimal.NewFromString(raw); err == nil {
			pool.FeeRate = rate.Div(feeRateDenominator)
		}
	}
	if raw := obj.StringField("current_sqrt_price"); raw != "" {
		if sqrtPrice, ok := new(big.Int).SetString(raw, 10); ok {
			if tick, err := clmm.TickAtSqrtRatio(sqrtPrice); err == nil {
				pool.CurrentTick = tick
			} else {
				r.logger.Warn("sqrt price out of range", zap.String("pool", pool.ID), zap.String("sqrt_price", raw))
			}
		}
	}
	if raw := obj.StringField("current_tick_index"); raw != "" {
		if bits, ok := parseUint32(raw); ok {
			pool.CurrentTick = clmm.UnwrapTick(bits)
		}
	}
}

func (r *PoolRegistry) fillTokenMeta(ctx context.Context, pool *model.PoolInfo) {
	if info, err := r.prices.TokenInfo(ctx, pool.Token0); err == nil {
		pool.Symbol0 = info.Symbol
		pool.Decimals0 = info.Decimals
	} else {
		r.logger.Warn("token metadata missing", zap.String("token", pool.Token0), zap.Error(err))
	}
	if info, err := r.prices.TokenInfo(ctx, pool.Token1); err == nil {
		pool.Symbol1 = info.Symbol
		pool.Decimals1 = info.Decimals
	} else {
		r.logger.Warn("token metadata missing", zap.String("token", pool.Token1), zap.Error(err))
	}
}

func parseInt32(raw string) (int32, bool) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || !v.IsInt64() {
		return 0, false
	}
	n := v.Int64()
	if n < -(1<<31) || n > (1<<31)-1 {
		return 0, false
	}
	return int32(n), true
}

func parseUint32(raw string) (uint32, bool) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || !v.IsUint64() || v.Uint64() > (1<<32)-1 {
		return 0, false
	}
	return uint32(v.Uint64()), true
}
