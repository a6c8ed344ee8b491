package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Vault VaultConfig

	Decimals0    uint8
	Decimals1    uint8
	InitialPrice decimal.Decimal
	RangeWidth   int32
	MigrateWidth int32

	PoolLiquidity string
	Seed          string
	Deposit       string
	TradeVolume   string
	Rounds        int
	BurnDivisor   uint64

	Out       string
	StateFile string
	PGDSN     string
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, merge(vaultDefaults(), map[string]interface{}{
		"decimals0":      18,
		"decimals1":      18,
		"initial-price":  "1",
		"range-width":    600,
		"migrate-width":  0,
		"pool-liquidity": "1000000000",
		"seed":           "1000000",
		"deposit":        "100000",
		"trade-volume":   "5000000",
		"rounds":         5,
		"burn-divisor":   uint64(4),
		"out":            "./data/vault_events.jsonl",
		"state-file":     "./data/vault_state.json",
		"log-level":      "info",
	}))
	if err != nil {
		return SimulateConfig{}, err
	}

	price, err := decimal.NewFromString(v.GetString("initial-price"))
	if err != nil {
		return SimulateConfig{}, fmt.Errorf("parse initial price: %w", err)
	}
	if !price.IsPositive() {
		return SimulateConfig{}, fmt.Errorf("initial price must be positive, got %s", price)
	}

	cfg := SimulateConfig{
		Vault:         loadVault(v),
		Decimals0:     uint8(v.GetUint("decimals0")),
		Decimals1:     uint8(v.GetUint("decimals1")),
		InitialPrice:  price,
		RangeWidth:    v.GetInt32("range-width"),
		MigrateWidth:  v.GetInt32("migrate-width"),
		PoolLiquidity: v.GetString("pool-liquidity"),
		Seed:          v.GetString("seed"),
		Deposit:       v.GetString("deposit"),
		TradeVolume:   v.GetString("trade-volume"),
		Rounds:        v.GetInt("rounds"),
		BurnDivisor:   v.GetUint64("burn-divisor"),
		Out:           v.GetString("out"),
		StateFile:     v.GetString("state-file"),
		PGDSN:         v.GetString("pg-dsn"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Decimals0 > 77 || cfg.Decimals1 > 77 {
		return SimulateConfig{}, fmt.Errorf("token decimals must be at most 77")
	}
	if cfg.RangeWidth <= 0 {
		return SimulateConfig{}, fmt.Errorf("range width must be positive, got %d", cfg.RangeWidth)
	}
	return cfg, nil
}
