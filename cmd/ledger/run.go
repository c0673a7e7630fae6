package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolLedger/internal/chain"
	"poolLedger/internal/config"
	"poolLedger/internal/engine"
	"poolLedger/internal/oracle"
	"poolLedger/internal/protocol"
	"poolLedger/internal/store"
	"poolLedger/internal/store/memory"
	"poolLedger/internal/store/postgres"
	"poolLedger/internal/telemetry"
)

// app bundles the wired components for one command invocation.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  store.Store
	eng    *engine.Engine
	snap   *engine.Snapshotter

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// noChain serves deployments without an RPC endpoint: bootstrap reads fail
// and pools keep zero defaults.
type noChain struct{}

func (noChain) GetObject(ctx context.Context, id string) (*chain.Object, error) {
	return nil, fmt.Errorf("no rpc endpoint configured")
}

func buildApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			a.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		a.store = pg
	} else {
		a.store = memory.NewStore()
	}

	var reader chain.Reader = noChain{}
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		reader = client
	}

	prices := oracle.NewStatic()
	if cfg.Prices != "" {
		prices, err = oracle.LoadStatic(cfg.Prices)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	fallback := decimal.Zero
	if cfg.MissingPrice == "one" {
		fallback = decimal.NewFromInt(1)
	}

	sink := telemetry.NewJSONLSink(cfg.TelemetryOut, logger)

	registry := engine.NewPoolRegistry(a.store, reader, prices, logger)
	tokens := engine.NewTokenAccumulator(a.store, prices, fallback, sink, logger)
	positions := engine.NewPositionLedger(a.store, registry, prices, fallback, logger)
	users := engine.NewUserAggregate(a.store, prices, fallback, sink, logger)

	a.snap = engine.NewSnapshotter(a.store, registry, tokens, users, cfg.FlushParallel, logger)
	a.closers = append(a.closers, a.snap.Close)
	a.eng = engine.New(registry, tokens, positions, prices, fallback, sink, logger)

	return a, nil
}

// processFeed streams a JSONL file of native protocol events through the
// adapters and the engine. Undecodable lines are logged and skipped.
func processFeed(ctx context.Context, path string, eng *engine.Engine, logger *zap.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	processed := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var native protocol.NativeEvent
		if err := json.Unmarshal(line, &native); err != nil {
			logger.Warn("bad feed line", zap.Error(err))
			continue
		}
		env, err := protocol.Decode(native)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownEvent) {
				logger.Debug("skipping event", zap.String("protocol", native.Protocol), zap.String("type", native.Type))
			} else {
				logger.Warn("decode failed", zap.String("protocol", native.Protocol), zap.String("type", native.Type), zap.Error(err))
			}
			continue
		}

		eng.HandleEvent(ctx, env)
		processed++
	}
	return processed, scanner.Err()
}

func runLedger(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("ledger start",
		zap.String("feed", a.cfg.Feed),
		zap.String("snapshot_cron", a.cfg.SnapshotCron),
		zap.String("missing_price", a.cfg.MissingPrice),
		zap.Int("flush_parallel", a.cfg.FlushParallel),
		zap.Bool("postgres", a.cfg.PGDSN != ""),
	)

	if a.cfg.Feed != "" {
		n, err := processFeed(ctx, a.cfg.Feed, a.eng, a.logger)
		if err != nil {
			return err
		}
		a.logger.Info("feed processed", zap.Int("events", n))
	}

	scheduler := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err = scheduler.AddFunc(a.cfg.SnapshotCron, func() {
		at := time.Now().UTC()
		if err := a.snap.Run(context.Background(), at); err != nil {
			a.logger.Error("snapshot cycle failed", zap.Error(err))
			return
		}
		a.logger.Info("snapshot cycle complete", zap.Time("at", at))
	})
	if err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Feed == "" {
		return fmt.Errorf("feed path is required")
	}

	n, err := processFeed(ctx, a.cfg.Feed, a.eng, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("feed processed", zap.Int("events", n))

	if err := a.snap.Run(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("snapshot cycle: %w", err)
	}
	a.logger.Info("snapshot cycle complete")
	return nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required: a one-shot snapshot needs stored state")
	}

	if err := a.snap.Run(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("snapshot cycle: %w", err)
	}
	a.logger.Info("snapshot cycle complete")
	return nil
}
