package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"rangescope/internal/model"
	"rangescope/internal/tickmath"
)

func runSnap(cmd *cobra.Command, args []string) error {
	price, err := model.ParseDecimal(args[0])
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", args[0], err)
	}

	spacing, _ := cmd.Flags().GetInt("spacing")
	decimals0, _ := cmd.Flags().GetInt("decimals0")
	decimals1, _ := cmd.Flags().GetInt("decimals1")
	roundUp, _ := cmd.Flags().GetBool("round-up")

	adjust := math.Pow(10, float64(decimals0-decimals1))

	snapped, err := tickmath.Snap(price, spacing, adjust, !roundUp)
	if err != nil {
		return err
	}
	tick, err := tickmath.PriceToTick(price, spacing, adjust, !roundUp)
	if err != nil {
		return err
	}

	fmt.Printf("price    %s\n", model.FormatPrice(price))
	fmt.Printf("snapped  %s\n", model.FormatPrice(snapped))
	fmt.Printf("tick     %d\n", tick)
	return nil
}
