package config

import (
	"time"

	"github.com/spf13/pflag"
)

// PriceConfig holds configuration for the price command.
type PriceConfig struct {
	RPCURL       string
	Pool         string
	TwapPeriod   uint32
	Vault        string
	MaxRetries   int
	RetryBackoff time.Duration
	Samples      int
	Interval     time.Duration
	LogLevel     string
}

// LoadPrice merges config file, environment variables, and flags into PriceConfig.
func LoadPrice(cfgFile string, flags *pflag.FlagSet) (PriceConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"twap-period":   uint32(3600),
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"samples":       1,
		"interval":      12 * time.Second,
		"log-level":     "info",
	})
	if err != nil {
		return PriceConfig{}, err
	}

	return PriceConfig{
		RPCURL:       v.GetString("rpc"),
		Pool:         v.GetString("pool"),
		TwapPeriod:   v.GetUint32("twap-period"),
		Vault:        v.GetString("vault"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Samples:      v.GetInt("samples"),
		Interval:     v.GetDuration("interval"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
