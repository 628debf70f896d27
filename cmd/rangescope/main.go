package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rangescope/internal/config"
	"rangescope/internal/model"
)

func main() {
	root := &cobra.Command{
		Use:          "rangescope",
		Short:        "Liquidity position range explorer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote <pool-address>",
		Short: "Quote a deposit split and fee APR for a range",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuote,
	}
	addBackendFlags(quoteCmd)
	quoteCmd.Flags().String("deposit", "1000", "deposit amount in USD")
	quoteCmd.Flags().String("min", "", "range lower bound price")
	quoteCmd.Flags().String("max", "", "range upper bound price")
	quoteCmd.Flags().Bool("full-range", false, "quote a full-range position")
	quoteCmd.Flags().Int("timeframe-days", 30, "price history window in days")
	quoteCmd.Flags().Int("horizon-days", 30, "APR simulation horizon in days")
	quoteCmd.Flags().String("apr-method", "historical", "APR method (historical, spot)")
	quoteCmd.Flags().Duration("timeout", 30*time.Second, "overall quote timeout")
	root.AddCommand(quoteCmd)

	snapCmd := &cobra.Command{
		Use:   "snap <price>",
		Short: "Snap a price onto the pool's tick grid",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnap,
	}
	snapCmd.Flags().Int("spacing", 60, "tick spacing")
	snapCmd.Flags().Int("decimals0", 18, "token0 decimals")
	snapCmd.Flags().Int("decimals1", 18, "token1 decimals")
	snapCmd.Flags().Bool("round-up", false, "round toward the upper tick instead of the lower")
	snapCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(snapCmd)

	chartCmd := &cobra.Command{
		Use:   "chart <pool-address>",
		Short: "Render liquidity distribution and price history charts",
		Args:  cobra.ExactArgs(1),
		RunE:  runChart,
	}
	addBackendFlags(chartCmd)
	chartCmd.Flags().String("min", "", "range lower bound price")
	chartCmd.Flags().String("max", "", "range upper bound price")
	chartCmd.Flags().Int("timeframe-days", 30, "price history window in days")
	chartCmd.Flags().Int("height", 12, "chart height in rows")
	root.AddCommand(chartCmd)

	watchCmd := &cobra.Command{
		Use:   "watch <pool-address>",
		Short: "Stream live prices and keep the quote fresh",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	addBackendFlags(watchCmd)
	watchCmd.Flags().String("stream", "", "backend websocket endpoint")
	watchCmd.Flags().String("deposit", "1000", "deposit amount in USD")
	watchCmd.Flags().String("min", "", "range lower bound price")
	watchCmd.Flags().String("max", "", "range upper bound price")
	root.AddCommand(watchCmd)

	batchCmd := &cobra.Command{
		Use:   "batch <pools-file>",
		Short: "Quote many pools concurrently at their suggested ranges",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	addBackendFlags(batchCmd)
	batchCmd.Flags().String("deposit", "1000", "deposit amount in USD")
	batchCmd.Flags().Int("concurrency", 4, "concurrent pool quotes")
	batchCmd.Flags().Duration("timeout", 2*time.Minute, "overall batch timeout")
	root.AddCommand(batchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "http://localhost:8080", "position backend base URL")
	cmd.Flags().String("rpc", "", "chain RPC URL for on-chain metadata fallback")
	cmd.Flags().Uint64("chain-id", 1, "chain ID")
	cmd.Flags().String("dex", "uniswap-v3", "exchange identifier")
	cmd.Flags().String("range-preset", "standard", "default range preset")
	cmd.Flags().Int("tick-window", 200, "distribution tick window")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func parsePool(cfg config.Config, arg string) (model.PoolRef, error) {
	if !common.IsHexAddress(arg) {
		return model.PoolRef{}, fmt.Errorf("invalid pool address %q", arg)
	}
	return model.PoolRef{
		Address: common.HexToAddress(arg),
		ChainID: cfg.ChainID,
		Dex:     cfg.Dex,
	}, nil
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
