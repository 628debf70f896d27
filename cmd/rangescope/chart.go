package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rangescope/internal/api"
	"rangescope/internal/chart"
	"rangescope/internal/model"
)

func runChart(cmd *cobra.Command, args []string) error {
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
	height, _ := cmd.Flags().GetInt("height")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := api.NewClient(cfg.BackendURL, logger)

	meta, err := client.PoolMetadata(ctx, pool)
	if err != nil {
		return fmt.Errorf("pool metadata: %w", err)
	}

	history, err := client.PriceSeries(ctx, pool, cfg.TimeframeDays)
	if err != nil {
		return fmt.Errorf("price series: %w", err)
	}

	rangeMin, rangeMax, err := chartRange(ctx, client, pool, history, cfg.RangePreset, minText, maxText)
	if err != nil {
		return err
	}

	dist, err := client.Distribution(ctx, pool, rangeMin, rangeMax, cfg.TickWindow)
	if err != nil {
		return fmt.Errorf("distribution: %w", err)
	}

	fmt.Printf("%s/%s %.2f%%  range %s - %s\n\n",
		meta.Token0.Symbol, meta.Token1.Symbol, float64(meta.FeeTier)/10000,
		model.FormatPrice(rangeMin), model.FormatPrice(rangeMax))

	tickChart, err := chart.NewTickChart(dist, float64(meta.TickSpacing)*5)
	if err != nil {
		return fmt.Errorf("liquidity chart: %w", err)
	}
	fmt.Println("liquidity distribution")
	fmt.Print(tickChart.Render(height))
	fmt.Println()

	timeChart, err := chart.NewTimeChart(history.Series, chart.MeasurePrice, time.Hour)
	if err != nil {
		return fmt.Errorf("price chart: %w", err)
	}
	fmt.Printf("price, last %d days\n", cfg.TimeframeDays)
	fmt.Print(timeChart.Render(height))

	return nil
}

// chartRange resolves the distribution bounds: explicit flags win,
// otherwise the backend's suggested range around the last price.
func chartRange(ctx context.Context, client *api.Client, pool model.PoolRef, history model.PriceHistory, preset, minText, maxText string) (float64, float64, error) {
	if minText != "" && maxText != "" {
		minPrice, err := model.ParseDecimal(minText)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid lower bound %q: %w", minText, err)
		}
		maxPrice, err := model.ParseDecimal(maxText)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid upper bound %q: %w", maxText, err)
		}
		if minPrice <= 0 || maxPrice <= minPrice {
			return 0, 0, fmt.Errorf("bounds must satisfy 0 < min < max")
		}
		return minPrice, maxPrice, nil
	}

	price, ok := history.LastPrice()
	if !ok {
		return 0, 0, fmt.Errorf("no price data for pool")
	}

	sugg, err := client.DefaultRange(ctx, pool, price, preset)
	if err != nil {
		return 0, 0, fmt.Errorf("default range: %w", err)
	}
	return sugg.MinPrice, sugg.MaxPrice, nil
}
