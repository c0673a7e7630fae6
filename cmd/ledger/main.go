package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "DEX pool accounting engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Consume an event feed and run periodic snapshots",
		RunE:  runLedger,
	}
	runCmd.Flags().String("rpc", "", "chain RPC URL for pool object reads")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs in-memory)")
	runCmd.Flags().String("feed", "", "native events JSONL path")
	runCmd.Flags().String("prices", "", "price seed JSON path")
	runCmd.Flags().String("telemetry-out", "./data/telemetry.jsonl", "telemetry JSONL path")
	runCmd.Flags().String("snapshot-cron", "0 0 0 * * *", "snapshot schedule (cron, with seconds)")
	runCmd.Flags().String("missing-price", "zero", "price substituted when the oracle has none (zero or one)")
	runCmd.Flags().Int("flush-parallel", 8, "snapshot flush worker count")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a native events file and emit one final snapshot",
		RunE:  runReplay,
	}
	replayCmd.Flags().String("rpc", "", "chain RPC URL for pool object reads")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs in-memory)")
	replayCmd.Flags().String("feed", "", "native events JSONL path")
	replayCmd.Flags().String("prices", "", "price seed JSON path")
	replayCmd.Flags().String("telemetry-out", "./data/telemetry.jsonl", "telemetry JSONL path")
	replayCmd.Flags().String("missing-price", "zero", "price substituted when the oracle has none (zero or one)")
	replayCmd.Flags().Int("flush-parallel", 8, "snapshot flush worker count")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(replayCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one snapshot cycle against the stored state",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().String("rpc", "", "chain RPC URL for pool object reads")
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	snapshotCmd.Flags().String("prices", "", "price seed JSON path")
	snapshotCmd.Flags().String("telemetry-out", "./data/telemetry.jsonl", "telemetry JSONL path")
	snapshotCmd.Flags().String("missing-price", "zero", "price substituted when the oracle has none (zero or one)")
	snapshotCmd.Flags().Int("flush-parallel", 8, "snapshot flush worker count")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
