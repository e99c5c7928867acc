package main

import (
	"github.com/spf13/cobra"

	"BandPilot/internal/di"
)

var (
	bandDate  string
	bandPrice float64
	bandLive  bool

	bandCmd = &cobra.Command{
		Use:       "band [sentiment|price|curve|all]",
		Short:     "Print the band at a date",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sentiment", "price", "curve", "all"},
		RunE:      runBand,
	}
)

func init() {
	bandCmd.Flags().StringVar(&bandDate, "date", "", "date (YYYY-MM-DD); empty means the latest")
	bandCmd.Flags().Float64Var(&bandPrice, "price", 0, "price to classify; 0 uses the close at date")
	bandCmd.Flags().BoolVar(&bandLive, "live", false, "classify the current Binance spot price")
}

func runBand(cmd *cobra.Command, args []string) error {
	which := "all"
	if len(args) == 1 {
		which = args[0]
	}
	date, err := parseDateFlag("date", bandDate)
	if err != nil {
		return err
	}

	return withCore(func(core *di.Core) error {
		ctx := cmd.Context()
		var (
			res any
			err error
		)
		switch which {
		case "sentiment":
			res, err = core.Bands.SentimentAt(ctx, date)
		case "price":
			res, err = core.Bands.PriceAt(ctx, date, bandPrice, bandLive)
		case "curve":
			res, err = core.Bands.CurveAt(ctx, date)
		default:
			res, err = core.Bands.Summary(ctx, date)
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	})
}
