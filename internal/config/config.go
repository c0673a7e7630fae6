package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	PGDSN         string
	Feed          string
	Prices        string
	TelemetryOut  string
	SnapshotCron  string
	MissingPrice  string
	FlushParallel int
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("telemetry-out", "./data/telemetry.jsonl")
	v.SetDefault("snapshot-cron", "0 0 0 * * *")
	v.SetDefault("missing-price", "zero")
	v.SetDefault("flush-parallel", 8)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		PGDSN:         v.GetString("pg-dsn"),
		Feed:          v.GetString("feed"),
		Prices:        v.GetString("prices"),
		TelemetryOut:  v.GetString("telemetry-out"),
		SnapshotCron:  v.GetString("snapshot-cron"),
		MissingPrice:  v.GetString("missing-price"),
		FlushParallel: v.GetInt("flush-parallel"),
		LogLevel:      v.GetString("log-level"),
	}

	if cfg.MissingPrice != "zero" && cfg.MissingPrice != "one" {
		return Config{}, fmt.Errorf("missing-price must be zero or one, got %q", cfg.MissingPrice)
	}

	return cfg, nil
}
