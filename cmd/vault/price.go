package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/chain"
	"liquidityVault/internal/clmath"
	"liquidityVault/internal/config"
	"liquidityVault/internal/dex"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

type priceReport struct {
	ChainID     string          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockTime   uint64          `json:"block_time"`
	Pool        string          `json:"pool"`
	Token0      model.TokenMeta `json:"token0"`
	Token1      model.TokenMeta `json:"token1"`
	Fee         uint32          `json:"fee"`
	Liquidity   string          `json:"liquidity,omitempty"`
	TwapPeriod  uint32          `json:"twap_period"`
	MeanTick    int32           `json:"mean_tick"`
	TwapAsset0  decimal.Decimal `json:"twap_asset0_price"`
	TwapAsset1  decimal.Decimal `json:"twap_asset1_price"`
	SpotTick    int32           `json:"spot_tick"`
	SpotAsset0  decimal.Decimal `json:"spot_asset0_price"`
	SpotAsset1  decimal.Decimal `json:"spot_asset1_price"`
	Vault       string          `json:"vault,omitempty"`
	VaultAsset0 string          `json:"vault_asset0_balance,omitempty"`
	VaultAsset1 string          `json:"vault_asset1_balance,omitempty"`
}

// priceSource is the RPC surface a reading needs. *chain.Client satisfies it.
type priceSource interface {
	dex.Caller
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// priceReader takes readings of one pool. Pool and token metadata are fetched on the first reading and
// served from its caches afterwards.
type priceReader struct {
	src          priceSource
	pool         common.Address
	vault        *common.Address
	twapPeriod   uint32
	maxRetries   int
	retryBackoff time.Duration
	pools        *dex.PoolMetaCache
	tokens       *dex.TokenMetaCache
	logger       *zap.Logger
}

func newPriceReader(src priceSource, cfg config.PriceConfig, logger *zap.Logger) (*priceReader, error) {
	if cfg.TwapPeriod == 0 {
		return nil, fmt.Errorf("twap period must be > 0")
	}
	pool, err := config.ParseAddress(cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	p := &priceReader{
		src:          src,
		pool:         pool,
		twapPeriod:   cfg.TwapPeriod,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		pools:        dex.NewPoolMetaCache(),
		tokens:       dex.NewTokenMetaCache(),
		logger:       logger,
	}
	if cfg.Vault != "" {
		vault, err := config.ParseAddress(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		p.vault = &vault
	}
	return p, nil
}

func (p *priceReader) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := p.tokens.Get(token); ok {
		return meta, nil
	}
	var meta model.TokenMeta
	err := chain.Retry(ctx, p.maxRetries, p.retryBackoff, func(ctx context.Context) error {
		var err error
		meta, err = dex.FetchTokenMeta(ctx, p.src, token, p.logger)
		return err
	})
	if err != nil {
		return model.TokenMeta{}, err
	}
	p.tokens.Set(token, meta)
	return meta, nil
}

// read takes one reading at the latest block. The spot price and liquidity are pinned to that block; the
// TWAP window ends at the chain head.
func (p *priceReader) read(ctx context.Context) (priceReport, error) {
	chainID, err := p.src.GetChainID(ctx)
	if err != nil {
		return priceReport{}, fmt.Errorf("chain id: %w", err)
	}
	block, err := p.src.LatestBlockNumber(ctx)
	if err != nil {
		return priceReport{}, fmt.Errorf("block number: %w", err)
	}
	blockTime, err := p.src.BlockTimestamp(ctx, block)
	if err != nil {
		return priceReport{}, fmt.Errorf("block %d timestamp: %w", block, err)
	}

	reader, err := chain.NewPoolReader(ctx, chain.PoolReaderConfig{
		Caller:       p.src,
		Pool:         p.pool,
		MaxRetries:   p.maxRetries,
		RetryBackoff: p.retryBackoff,
		Logger:       p.logger,
		Cache:        p.pools,
		Tokens:       p.tokens,
	})
	if err != nil {
		return priceReport{}, err
	}

	var tokens [2]model.TokenMeta
	for i, addr := range []common.Address{reader.Token0(), reader.Token1()} {
		if tokens[i], err = p.tokenMeta(ctx, addr); err != nil {
			return priceReport{}, fmt.Errorf("token%d meta: %w", i, err)
		}
	}

	q, err := oracle.New(reader, tokens[0].Decimals, tokens[1].Decimals).Quote(ctx, p.twapPeriod)
	if err != nil {
		return priceReport{}, fmt.Errorf("twap: %w", err)
	}

	state, err := dex.FetchPoolOptionalMeta(ctx, p.src, p.pool, block, p.logger)
	if err != nil {
		return priceReport{}, err
	}
	if state.Slot0 == nil {
		return priceReport{}, fmt.Errorf("slot0 unavailable at block %d", block)
	}
	sqrt, err := uint256.FromDecimal(state.Slot0.SqrtPriceX96)
	if err != nil {
		return priceReport{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	spot0, spot1, err := clmath.PricesAtSqrtRatio(sqrt, tokens[0].Decimals, tokens[1].Decimals)
	if err != nil {
		return priceReport{}, fmt.Errorf("spot price: %w", err)
	}

	report := priceReport{
		ChainID:     chainID.String(),
		BlockNumber: block,
		BlockTime:   blockTime,
		Pool:        p.pool.Hex(),
		Token0:      tokens[0],
		Token1:      tokens[1],
		Fee:         reader.Fee(),
		Liquidity:   state.Liquidity,
		TwapPeriod:  q.Period,
		MeanTick:    q.MeanTick,
		TwapAsset0:  q.Asset0.Decimal(),
		TwapAsset1:  q.Asset1.Decimal(),
		SpotTick:    state.Slot0.Tick,
		SpotAsset0:  spot0.Decimal(),
		SpotAsset1:  spot1.Decimal(),
	}

	if p.vault != nil {
		report.Vault = p.vault.Hex()
		for i, addr := range []common.Address{reader.Token0(), reader.Token1()} {
			bal, err := dex.FetchBalance(ctx, p.src, addr, *p.vault)
			if err != nil {
				return priceReport{}, fmt.Errorf("vault balance%d: %w", i, err)
			}
			formatted := config.FormatAmount(bal, tokens[i].Decimals)
			if i == 0 {
				report.VaultAsset0 = formatted
			} else {
				report.VaultAsset1 = formatted
			}
		}
	}
	return report, nil
}

func runPrice(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrice(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Samples < 1 {
		return fmt.Errorf("samples must be > 0")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	p, err := newPriceReader(chainClient, cfg, logger)
	if err != nil {
		return err
	}

	for i := 0; i < cfg.Samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
		report, err := p.read(ctx)
		if err != nil {
			return err
		}
		logger.Info("price read",
			zap.String("pool", report.Pool),
			zap.Uint64("block", report.BlockNumber),
			zap.Int32("mean_tick", report.MeanTick),
			zap.Int32("spot_tick", report.SpotTick),
			zap.String("twap_asset0", report.TwapAsset0.String()),
		)
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return nil
}
