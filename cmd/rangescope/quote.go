package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangescope/internal/api"
	"rangescope/internal/chain"
	"rangescope/internal/config"
	"rangescope/internal/dex"
	"rangescope/internal/model"
	"rangescope/internal/orchestrator"
	"rangescope/internal/rangectl"
)

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := parsePool(cfg, args[0])
	if err != nil {
		return err
	}

	minText, _ := cmd.Flags().GetString("min")
	maxText, _ := cmd.Flags().GetString("max")
	fullRange, _ := cmd.Flags().GetBool("full-range")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if fullRange && (minText != "" || maxText != "") {
		return fmt.Errorf("--full-range excludes --min/--max")
	}
	if (minText == "") != (maxText == "") {
		return fmt.Errorf("--min and --max must be given together")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	orch, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	orch.SelectPool(pool)
	if !orch.SetDeposit(cfg.DepositUSD) {
		return fmt.Errorf("invalid deposit %q", cfg.DepositUSD)
	}
	orch.SetTimeframe(cfg.TimeframeDays)
	orch.SetHorizon(cfg.HorizonDays)
	orch.SetMethod(model.AprMethod(cfg.AprMethod))

	if minText != "" {
		orch.FocusBound(rangectl.SideLow)
		if !orch.CommitBound(rangectl.SideLow, minText) {
			return fmt.Errorf("invalid lower bound %q", minText)
		}
		orch.FocusBound(rangectl.SideHigh)
		if !orch.CommitBound(rangectl.SideHigh, maxText) {
			return fmt.Errorf("invalid upper bound %q", maxText)
		}
	}

	if err := awaitQuote(ctx, orch, fullRange); err != nil {
		return err
	}

	printQuote(orch)
	return nil
}

// buildPipeline wires the backend client, range controller, and
// pipeline together, with the optional on-chain metadata fallback.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, func(), error) {
	client := api.NewClient(cfg.BackendURL, logger)
	ranges := rangectl.NewController(logger)

	orch := orchestrator.New(orchestrator.Config{
		DistributionDebounce: cfg.DistributionDebounce,
		AllocationDebounce:   cfg.AllocationDebounce,
		AprDebounce:          cfg.AprDebounce,
		TickWindow:           cfg.TickWindow,
		RangePreset:          cfg.RangePreset,
	}, client, ranges, logger)

	cleanup := func() { orch.Close() }

	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			orch.Close()
			return nil, nil, fmt.Errorf("connect rpc: %w", err)
		}
		orch.SetMetadataFallback(dex.NewReader(chainClient, logger))
		cleanup = func() {
			orch.Close()
			chainClient.Close()
		}
	}

	return orch, cleanup, nil
}

// awaitQuote blocks until the allocation and APR stages both hold
// results. With wantFullRange the range is toggled to full once the
// suggested range has landed, since the toggle needs a valid range to
// snapshot.
func awaitQuote(ctx context.Context, orch *orchestrator.Orchestrator, wantFullRange bool) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	toggled := !wantFullRange
	for {
		if !toggled {
			if _, _, _, ok := resolvedRange(orch); ok {
				orch.SetFullRange(true)
				toggled = true
			}
		}

		if toggled {
			alloc := orch.Allocation()
			apr := orch.Apr()
			if alloc.Err != "" {
				return fmt.Errorf("allocation: %s", alloc.Err)
			}
			if apr.Err != "" {
				return fmt.Errorf("apr simulation: %s", apr.Err)
			}
			meta := orch.Metadata()
			if meta.Err != "" {
				return fmt.Errorf("pool metadata: %s", meta.Err)
			}
			if alloc.Data != nil && apr.Data != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("quote timed out: %w", ctx.Err())
		case <-orch.Changes():
		case <-ticker.C:
		}
	}
}

func resolvedRange(orch *orchestrator.Orchestrator) (minPrice, maxPrice float64, full, ok bool) {
	r := orch.Range()
	if r.IsFullRange {
		return 0, 0, true, true
	}
	if r.MinPrice > 0 && r.MaxPrice > 0 && r.MinPrice < r.MaxPrice {
		return r.MinPrice, r.MaxPrice, false, true
	}
	return 0, 0, false, false
}

func printQuote(orch *orchestrator.Orchestrator) {
	meta := orch.Metadata().Data
	alloc := orch.Allocation().Data
	apr := orch.Apr().Data
	r := orch.Range()

	sym0, sym1 := "token0", "token1"
	if meta != nil {
		if meta.Token0.Symbol != "" {
			sym0 = meta.Token0.Symbol
		}
		if meta.Token1.Symbol != "" {
			sym1 = meta.Token1.Symbol
		}
		fmt.Printf("pool     %s/%s %.2f%%\n", sym0, sym1, float64(meta.FeeTier)/10000)
	}

	fmt.Printf("range    %s - %s\n", r.MinText, r.MaxText)
	if bounds, err := orch.Bounds(); err == nil {
		fmt.Printf("ticks    [%d, %d] spacing %d\n", bounds.LowerTick, bounds.UpperTick, bounds.Spacing)
	}

	if alloc != nil {
		fmt.Printf("%-8s %.6f ($%.2f each)\n", sym0, alloc.AmountToken0, alloc.PriceToken0USD)
		fmt.Printf("%-8s %.6f ($%.2f each)\n", sym1, alloc.AmountToken1, alloc.PriceToken1USD)
	}
	if apr != nil {
		fmt.Printf("fee apr  %.2f%% (~$%.2f/month, $%.2f/year)\n",
			apr.FeeAPR*100, apr.MonthlyUSD, apr.YearlyUSD)
	}
}
