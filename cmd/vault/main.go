package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vault",
		Short:        "Pooled concentrated-liquidity vault tools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the vault against a simulated pool",
		RunE:  runSimulate,
	}

	addVaultFlags(simulateCmd)
	simulateCmd.Flags().Uint8("decimals0", 18, "asset0 decimals")
	simulateCmd.Flags().Uint8("decimals1", 18, "asset1 decimals")
	simulateCmd.Flags().String("initial-price", "1", "initial price of asset0 in asset1")
	simulateCmd.Flags().Int32("range-width", 600, "position half-width in ticks")
	simulateCmd.Flags().Int32("migrate-width", 0, "half-width to migrate to halfway through, 0 disables")
	simulateCmd.Flags().String("pool-liquidity", "1000000000", "outside liquidity per asset, in whole tokens")
	simulateCmd.Flags().String("seed", "1000000", "initial vault deposit per asset, in whole tokens")
	simulateCmd.Flags().String("deposit", "100000", "deposit per depositor per round, in whole tokens")
	simulateCmd.Flags().String("trade-volume", "5000000", "asset0 traded through the pool per round, in whole tokens")
	simulateCmd.Flags().Int("rounds", 5, "number of rounds")
	simulateCmd.Flags().Uint64("burn-divisor", 4, "each depositor burns balance/divisor per round")
	simulateCmd.Flags().String("out", "./data/vault_events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("state-file", "./data/vault_state.json", "vault snapshot file")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN, enables the database sink")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Read TWAP and spot prices from a deployed pool",
		RunE:  runPrice,
	}

	priceCmd.Flags().String("rpc", "", "RPC URL")
	priceCmd.Flags().String("pool", "", "pool address")
	priceCmd.Flags().Uint32("twap-period", 3600, "TWAP window in seconds")
	priceCmd.Flags().String("vault", "", "optional vault address to report token balances for")
	priceCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	priceCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	priceCmd.Flags().Int("samples", 1, "number of readings to take")
	priceCmd.Flags().Duration("interval", 12*time.Second, "delay between readings")
	priceCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(priceCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a stored vault snapshot and its events",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("state-file", "./data/vault_state.json", "vault snapshot file")
	inspectCmd.Flags().String("events", "./data/vault_events.jsonl", "events JSONL")
	inspectCmd.Flags().String("pg-dsn", "", "Postgres DSN, read from the database instead of files")
	inspectCmd.Flags().String("vault", "", "vault address (database mode)")
	inspectCmd.Flags().StringSlice("event", nil, "only show these event names (comma-separated)")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addVaultFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("mint-fee", 1250, "mint fee divisor")
	cmd.Flags().Uint64("burn-fee", 1250, "burn fee divisor")
	cmd.Flags().Uint64("claim-fee", 50, "claim fee divisor")
	cmd.Flags().Uint32("twap-period", 3600, "TWAP window in seconds")
	cmd.Flags().Uint64("buffer-percentage", 5, "share of holdings kept unstaked")
	cmd.Flags().Uint64("block-lock-duration", 5, "blocks an account stays locked after a mint or burn")
	cmd.Flags().Uint64("max-twap-deviation-divisor", 100, "TWAP deviation guard divisor, 0 disables")
	cmd.Flags().Uint64("slippage-divisor", 100, "swap slippage divisor")
	cmd.Flags().Int32("price-limit-ticks", 500, "swap price limit distance from the TWAP tick")
	cmd.Flags().Int("rebalance-rounds", 8, "maximum corrective swaps per rebalance")
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

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
