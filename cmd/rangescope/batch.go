package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangescope/internal/api"
	"rangescope/internal/config"
	"rangescope/internal/model"
	"rangescope/internal/tickmath"
)

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	deposit, err := model.ParseDecimal(cfg.DepositUSD)
	if err != nil || deposit <= 0 {
		return fmt.Errorf("invalid deposit %q", cfg.DepositUSD)
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	refs, err := readPoolsFile(cfg, args[0])
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no pool addresses in %s", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := api.NewClient(cfg.BackendURL, logger)

	workers, err := ants.NewPool(concurrency)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer workers.Release()

	var (
		wg      sync.WaitGroup
		printMu sync.Mutex
		failed  int
	)

	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()

			line, err := batchQuote(ctx, client, cfg, ref, deposit)

			printMu.Lock()
			defer printMu.Unlock()
			if err != nil {
				failed++
				logger.Warn("pool quote failed",
					zap.String("pool", ref.Address.Hex()),
					zap.Error(err),
				)
				return
			}
			fmt.Println(line)
		}); err != nil {
			wg.Done()
			return fmt.Errorf("submit quote: %w", err)
		}
	}

	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d pool quotes failed", failed, len(refs))
	}
	return nil
}

// batchQuote runs one pool through the suggested-range quote flow and
// formats a single result line.
func batchQuote(ctx context.Context, client *api.Client, cfg config.Config, pool model.PoolRef, deposit float64) (string, error) {
	meta, err := client.PoolMetadata(ctx, pool)
	if err != nil {
		return "", fmt.Errorf("metadata: %w", err)
	}

	history, err := client.PriceSeries(ctx, pool, cfg.TimeframeDays)
	if err != nil {
		return "", fmt.Errorf("price series: %w", err)
	}
	price, ok := history.LastPrice()
	if !ok {
		return "", fmt.Errorf("no price data")
	}

	sugg, err := client.DefaultRange(ctx, pool, price, cfg.RangePreset)
	if err != nil {
		return "", fmt.Errorf("default range: %w", err)
	}

	alloc, err := client.Allocation(ctx, api.AllocationParams{
		Pool:       pool,
		DepositUSD: deposit,
		RangeMin:   sugg.MinPrice,
		RangeMax:   sugg.MaxPrice,
	})
	if err != nil {
		return "", fmt.Errorf("allocation: %w", err)
	}

	adjust := meta.DecimalAdjust()
	spacing := int(meta.TickSpacing)
	lower, err := tickmath.PriceToTick(sugg.MinPrice, spacing, adjust, true)
	if err != nil {
		return "", fmt.Errorf("lower tick: %w", err)
	}
	upper, err := tickmath.PriceToTick(sugg.MaxPrice, spacing, adjust, false)
	if err != nil {
		return "", fmt.Errorf("upper tick: %w", err)
	}

	apr, err := client.SimulateApr(ctx, api.AprParams{
		Pool:        pool,
		TickLower:   lower,
		TickUpper:   upper,
		MinPrice:    sugg.MinPrice,
		MaxPrice:    sugg.MaxPrice,
		HorizonDays: cfg.HorizonDays,
		Method:      model.AprMethod(cfg.AprMethod),
	})
	if err != nil {
		return "", fmt.Errorf("apr simulation: %w", err)
	}

	return fmt.Sprintf("%s  %s/%s %.2f%%  range %s - %s  %.6f/%.6f  apr %.2f%%",
		pool.Address.Hex(),
		meta.Token0.Symbol, meta.Token1.Symbol, float64(meta.FeeTier)/10000,
		model.FormatPrice(sugg.MinPrice), model.FormatPrice(sugg.MaxPrice),
		alloc.AmountToken0, alloc.AmountToken1,
		apr.FeeAPR*100,
	), nil
}

// readPoolsFile loads pool addresses, one per line. Blank lines and
// '#' comments are skipped.
func readPoolsFile(cfg config.Config, path string) ([]model.PoolRef, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pools file: %w", err)
	}
	defer file.Close()

	var refs []model.PoolRef
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := parsePool(cfg, line)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pools file: %w", err)
	}
	return refs, nil
}
