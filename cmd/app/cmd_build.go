package main

import (
	"time"

	"github.com/spf13/cobra"

	"BandPilot/internal/di"
	"BandPilot/internal/domain/repository"
	"BandPilot/internal/usecase"
)

var (
	buildFrom string
	buildTo   string

	buildCmd = &cobra.Command{
		Use:       "build [sentiment|price|all]",
		Short:     "Refresh the cached series and print a summary",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sentiment", "price", "all"},
		RunE:      runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVar(&buildFrom, "from", "", "first date of the summary window")
	buildCmd.Flags().StringVar(&buildTo, "to", "", "last date of the summary window")
}

type buildSummary struct {
	Key     string    `json:"key"`
	Rows    int       `json:"rows"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Last    float64   `json:"last"`
	Elapsed string    `json:"elapsed"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	which := "all"
	if len(args) == 1 {
		which = args[0]
	}
	from, err := parseDateFlag("from", buildFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", buildTo)
	if err != nil {
		return err
	}

	return withCore(func(core *di.Core) error {
		targets := []struct {
			key     string
			fetcher repository.Fetcher
		}{
			{usecase.KeySentiment, core.Sentiment},
			{usecase.KeyPrice, core.Price},
		}
		var out []buildSummary
		for _, t := range targets {
			if (which == "sentiment" && t.key != usecase.KeySentiment) || (which == "price" && t.key != usecase.KeyPrice) {
				continue
			}
			start := time.Now()
			s, err := core.Builder.Build(cmd.Context(), usecase.BuildRequest{
				Key:            t.key,
				Fetcher:        t.fetcher,
				RequestedStart: core.Config.StartDate(),
				Window:         usecase.Window{From: from, To: to},
			})
			if err != nil {
				return err
			}
			sum := buildSummary{Key: t.key, Rows: s.Len(), From: s.MinDate(), To: s.MaxDate(), Elapsed: time.Since(start).Round(time.Millisecond).String()}
			if p, ok := s.Last(); ok {
				sum.Last = p.Values[s.Primary()]
			}
			out = append(out, sum)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	})
}
