package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
	"poolLedger/internal/store"
)

// Snapshotter drives one snapshot cycle: per-pool token-state flush plus
// the per-user scoring pass. The two families read disjoint entity sets
// and run interleaved on a shared worker pool.
type Snapshotter struct {
	store    store.Store
	registry *PoolRegistry
	tokens   *TokenAccumulator
	users    *UserAggregate
	workers  pond.Pool
	logger   *zap.Logger
}

func NewSnapshotter(st store.Store, registry *PoolRegistry, tokens *TokenAccumulator, users *UserAggregate, parallel int, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallel <= 0 {
		parallel = 4
	}
	return &Snapshotter{
		store:    st,
		registry: registry,
		tokens:   tokens,
		users:    users,
		workers:  pond.NewPool(parallel, pond.WithQueueSize(parallel*16)),
		logger:   logger,
	}
}

// Close drains the worker pool.
func (s *Snapshotter) Close() {
	s.workers.StopAndWait()
}

// Run executes one full snapshot cycle at the given wall-clock instant.
// Per-pool and per-user failures are logged and do not abort the cycle.
func (s *Snapshotter) Run(ctx context.Context, at time.Time) error {
	pools, err := s.store.List(ctx, model.KindPoolInfo, nil)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	userEnts, err := s.store.List(ctx, model.KindUserState, nil)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	group := s.workers.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, ent := range pools {
		poolID := ent.EntityID()
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			if err := s.registry.Refresh(groupCtx, poolID); err != nil {
				s.logger.Warn("pool refresh failed", zap.String("pool", poolID), zap.Error(err))
			}
			if err := s.tokens.FlushAndReset(groupCtx, poolID, at); err != nil {
				s.logger.Warn("token flush failed", zap.String("pool", poolID), zap.Error(err))
			}
		})
	}

	for _, ent := range userEnts {
		user := ent.(*model.UserState).User
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			if err := s.scoreUser(groupCtx, user, at); err != nil {
				s.logger.Warn("user scoring failed", zap.String("user", user), zap.Error(err))
			}
		})
	}

	return group.Wait()
}

// scoreUser rebuilds the user's per-pool rollup from position rows, then
// emits and resets it. Rebuilding from liquidity avoids double counting
// when one user holds several overlapping positions in a pool.
func (s *Snapshotter) scoreUser(ctx context.Context, user string, at time.Time) error {
	filters := []store.Filter{{Field: "user_address", Op: store.OpEq, Value: user}}
	ents, err := s.store.List(ctx, model.KindUserPosition, filters)
	if err != nil {
		return fmt.Errorf("list positions for %s: %w", user, err)
	}

	seen := make(map[string]*model.PoolInfo)
	for _, ent := range ents {
		pos := ent.(*model.UserPosition)
		pool := s.registry.GetOrCreatePool(ctx, pos.PoolAddress)

		amount0, amount1, err := clmm.AmountsForLiquidity(pool.CurrentTick, pos.LowerTick, pos.UpperTick, pos.Liquidity)
		if err != nil {
			s.logger.Warn("liquidity split failed", zap.String("position", pos.ID), zap.Error(err))
			continue
		}
		inRange := clmm.InRange(pool.CurrentTick, pos.LowerTick, pos.UpperTick)
		if err := s.users.Accumulate(ctx, user, pool, amount0, amount1, inRange); err != nil {
			s.logger.Warn("accumulate failed", zap.String("position", pos.ID), zap.Error(err))
			continue
		}
		seen[pool.ID] = pool
	}

	for _, pool := range seen {
		if err := s.users.EmitAndReset(ctx, user, pool, at); err != nil {
			s.logger.Warn("score emit failed", zap.String("user", user), zap.String("pool", pool.ID), zap.Error(err))
		}
	}
	return nil
}
