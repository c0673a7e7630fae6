package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("missing-price", "zero", "")
	flags.Int("flush-parallel", 8, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", newFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SnapshotCron != "0 0 0 * * *" {
		t.Fatalf("snapshot cron = %q", cfg.SnapshotCron)
	}
	if cfg.MissingPrice != "zero" {
		t.Fatalf("missing price = %q", cfg.MissingPrice)
	}
	if cfg.FlushParallel != 8 {
		t.Fatalf("flush parallel = %d", cfg.FlushParallel)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadFlagOverride(t *testing.T) {
	flags := newFlags()
	if err := flags.Set("rpc", "https://node.example"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := flags.Set("missing-price", "one"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "https://node.example" {
		t.Fatalf("rpc = %q", cfg.RPCURL)
	}
	if cfg.MissingPrice != "one" {
		t.Fatalf("missing price = %q", cfg.MissingPrice)
	}
}

func TestLoadRejectsBadMissingPrice(t *testing.T) {
	flags := newFlags()
	if err := flags.Set("missing-price", "nan"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if _, err := Load("", flags); err == nil {
		t.Fatal("expected error for invalid missing-price")
	}
}
