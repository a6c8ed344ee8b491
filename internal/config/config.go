package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// VaultConfig holds the vault settings shared by every command that builds a vault.
type VaultConfig struct {
	MintFee                 uint64
	BurnFee                 uint64
	ClaimFee                uint64
	TwapPeriod              uint32
	BufferPercentage        uint64
	BlockLockDuration       uint64
	MaxTwapDeviationDivisor uint64
	SlippageDivisor         uint64
	PriceLimitTicks         int32
	RebalanceRounds         int
}

// newViper merges config file, environment variables, and flags. Keys missing from all three fall back to
// defaults.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func vaultDefaults() map[string]interface{} {
	return map[string]interface{}{
		"mint-fee":                   uint64(1250),
		"burn-fee":                   uint64(1250),
		"claim-fee":                  uint64(50),
		"twap-period":                uint32(3600),
		"buffer-percentage":          uint64(5),
		"block-lock-duration":        uint64(5),
		"max-twap-deviation-divisor": uint64(100),
		"slippage-divisor":           uint64(100),
		"price-limit-ticks":          500,
		"rebalance-rounds":           8,
	}
}

func loadVault(v *viper.Viper) VaultConfig {
	return VaultConfig{
		MintFee:                 v.GetUint64("mint-fee"),
		BurnFee:                 v.GetUint64("burn-fee"),
		ClaimFee:                v.GetUint64("claim-fee"),
		TwapPeriod:              v.GetUint32("twap-period"),
		BufferPercentage:        v.GetUint64("buffer-percentage"),
		BlockLockDuration:       v.GetUint64("block-lock-duration"),
		MaxTwapDeviationDivisor: v.GetUint64("max-twap-deviation-divisor"),
		SlippageDivisor:         v.GetUint64("slippage-divisor"),
		PriceLimitTicks:         v.GetInt32("price-limit-ticks"),
		RebalanceRounds:         v.GetInt("rebalance-rounds"),
	}
}

func merge(sets ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, set := range sets {
		for k, val := range set {
			out[k] = val
		}
	}
	return out
}

// ParseAddress parses a hex account address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses parses a list of hex addresses.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseAmount converts a human decimal amount such as "1.5" into native units of a token with the given
// decimals. Digits beyond the token's precision are an error rather than silently dropped.
func ParseAmount(input string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", input)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", input, decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", input)
	}
	return out, nil
}

// FormatAmount renders native units of a token as a human decimal string.
func FormatAmount(amount *uint256.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals)).String()
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
