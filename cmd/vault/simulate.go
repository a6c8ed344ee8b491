package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/config"
	"liquidityVault/internal/scenario"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/postgres"
	"liquidityVault/internal/vault"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sqrtPrice, err := scenario.SqrtPriceX96(cfg.InitialPrice, cfg.Decimals0, cfg.Decimals1)
	if err != nil {
		return fmt.Errorf("initial price: %w", err)
	}

	decimals := [2]uint8{cfg.Decimals0, cfg.Decimals1}
	poolLiquidity, err := parsePair(cfg.PoolLiquidity, decimals)
	if err != nil {
		return fmt.Errorf("pool liquidity: %w", err)
	}
	seed, err := parsePair(cfg.Seed, decimals)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	deposit, err := parsePair(cfg.Deposit, decimals)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	volume, err := config.ParseAmount(cfg.TradeVolume, cfg.Decimals0)
	if err != nil {
		return fmt.Errorf("trade volume: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := storage.Fanout{storage.NewJsonlStorage(cfg.Out)}
	snapshots := []storage.SnapshotStore{&storage.FileSnapshotStore{Path: cfg.StateFile}}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
		snapshots = append(snapshots, &storage.DBSnapshotStore{Store: store, Vault: scenario.VaultAddress.Hex()})
	}

	runner := scenario.NewRunner(scenario.Config{
		Vault:               vaultConfig(cfg.Vault),
		Decimals0:           cfg.Decimals0,
		Decimals1:           cfg.Decimals1,
		InitialSqrtPriceX96: sqrtPrice,
		RangeWidth:          cfg.RangeWidth,
		MigrateWidth:        cfg.MigrateWidth,
		PoolLiquidity:       poolLiquidity,
		Seed:                seed,
		Deposit:             deposit,
		TradeVolume:         volume,
		Rounds:              cfg.Rounds,
		BurnDivisor:         cfg.BurnDivisor,
		Events:              sinks,
	}, logger)

	logger.Info("simulate start",
		zap.String("initial_price", cfg.InitialPrice.String()),
		zap.Uint8("decimals0", cfg.Decimals0),
		zap.Uint8("decimals1", cfg.Decimals1),
		zap.Int32("range_width", cfg.RangeWidth),
		zap.Int("rounds", cfg.Rounds),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, store := range snapshots {
		if err := store.Save(ctx, report.Snapshot); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	logger.Info("simulate done",
		zap.Int("events", report.Events),
		zap.String("fees0", report.FeesWithdrawn[0]),
		zap.String("fees1", report.FeesWithdrawn[1]),
		zap.String("state_file", cfg.StateFile),
	)
	return writeJSON(cmd.OutOrStdout(), report)
}

func parsePair(input string, decimals [2]uint8) ([2]*uint256.Int, error) {
	var out [2]*uint256.Int
	for i := range out {
		amount, err := config.ParseAmount(input, decimals[i])
		if err != nil {
			return out, err
		}
		out[i] = amount
	}
	return out, nil
}

func vaultConfig(c config.VaultConfig) vault.Config {
	return vault.Config{
		MintFee:                 c.MintFee,
		BurnFee:                 c.BurnFee,
		ClaimFee:                c.ClaimFee,
		TwapPeriod:              c.TwapPeriod,
		BufferPercentage:        c.BufferPercentage,
		BlockLockDuration:       c.BlockLockDuration,
		MaxTwapDeviationDivisor: c.MaxTwapDeviationDivisor,
		DisableTwapDeviation:    c.MaxTwapDeviationDivisor == 0,
		SlippageDivisor:         c.SlippageDivisor,
		PriceLimitTicks:         c.PriceLimitTicks,
		RebalanceRounds:         c.RebalanceRounds,
	}
}
