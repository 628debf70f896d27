package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangescope/internal/model"
	"rangescope/internal/orchestrator"
	"rangescope/internal/rangectl"
	"rangescope/internal/stream"
)

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.StreamURL == "" {
		return fmt.Errorf("stream url is required")
	}

	pool, err := parsePool(cfg, args[0])
	if err != nil {
		return err
	}

	minText, _ := cmd.Flags().GetString("min")
	maxText, _ := cmd.Flags().GetString("max")
	if (minText == "") != (maxText == "") {
		return fmt.Errorf("--min and --max must be given together")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		if !orch.CommitBound(rangectl.SideLow, minText) {
			return fmt.Errorf("invalid lower bound %q", minText)
		}
		if !orch.CommitBound(rangectl.SideHigh, maxText) {
			return fmt.Errorf("invalid upper bound %q", maxText)
		}
	}

	feed, err := stream.Dial(ctx, cfg.StreamURL, pool, nil, logger)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer feed.Close()

	logger.Info("watching pool",
		zap.String("pool", pool.Address.Hex()),
		zap.String("stream", cfg.StreamURL),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, open := <-feed.Ticks():
			if !open {
				return fmt.Errorf("price stream closed")
			}
			if orch.ApplyLivePrice(tick.Pool, tick.Price) {
				fmt.Printf("price %s\n", model.FormatPrice(tick.Price))
			}
		case name := <-orch.Changes():
			printWatchUpdate(orch, name)
		}
	}
}

func printWatchUpdate(orch *orchestrator.Orchestrator, name orchestrator.StageName) {
	switch name {
	case orchestrator.StageRange:
		r := orch.Range()
		fmt.Printf("range %s - %s\n", r.MinText, r.MaxText)
	case orchestrator.StageAllocation:
		if alloc := orch.Allocation().Data; alloc != nil {
			fmt.Printf("split %.6f / %.6f\n", alloc.AmountToken0, alloc.AmountToken1)
		}
	case orchestrator.StageApr:
		if apr := orch.Apr().Data; apr != nil {
			fmt.Printf("apr   %.2f%% (~$%.2f/month)\n", apr.FeeAPR*100, apr.MonthlyUSD)
		}
	}
}
