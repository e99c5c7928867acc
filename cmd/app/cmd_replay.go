package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"BandPilot/internal/di"
	domsvc "BandPilot/internal/domain/service"
	"BandPilot/internal/services/bands"
	"BandPilot/internal/services/strategy"
	"BandPilot/internal/usecase"
)

var (
	replayStrategyFile string
	replayKind         string
	replayPeriod       int
	replayAmount       float64
	replayPercents     []float64
	replayWeights      []float64
	replayClassifier   string
	replayFrom         string
	replayTo           string
	replayCash         float64
	replayCommission   float64

	replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Replay a strategy over the cached price series with paper fills",
		Long: `Replay drives a strategy day by day over the daily price series and fills
every order at the close. Decisions are journaled to Kafka when enabled.`,
		RunE: runReplay,
	}
)

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayStrategyFile, "strategy", "", "YAML strategy config; overrides the strategy flags")
	f.StringVar(&replayKind, "kind", string(strategy.KindDca), "hodl, dca, weighted_dca or rebalance")
	f.IntVar(&replayPeriod, "period", 7, "minimum days between orders")
	f.Float64Var(&replayAmount, "amount", 100, "buy amount for dca and weighted_dca")
	f.Float64SliceVar(&replayPercents, "percents", nil, "rebalance target percent per band")
	f.Float64SliceVar(&replayWeights, "weights", nil, "weighted_dca weight per band")
	f.StringVar(&replayClassifier, "classifier", "sentiment", "band classifier: sentiment or price")
	f.StringVar(&replayFrom, "from", "", "first replay date")
	f.StringVar(&replayTo, "to", "", "last replay date")
	f.Float64Var(&replayCash, "cash", 10000, "starting cash")
	f.Float64Var(&replayCommission, "commission", 0, "commission as a fraction of each fill")
}

func strategyConfig() (strategy.Config, error) {
	if replayStrategyFile != "" {
		var cfg strategy.Config
		b, err := os.ReadFile(replayStrategyFile)
		if err != nil {
			return cfg, fmt.Errorf("read strategy: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse strategy: %w", err)
		}
		return cfg, nil
	}
	cfg := strategy.Config{Kind: strategy.Kind(replayKind), MinOrderPeriod: strategy.Days(replayPeriod)}
	switch cfg.Kind {
	case strategy.KindDca:
		cfg.Dca = &strategy.DcaParams{BuyAmount: replayAmount}
	case strategy.KindWeightedDca:
		cfg.WeightedDca = &strategy.WeightedDcaParams{BaseAmount: replayAmount, Weights: replayWeights}
	case strategy.KindRebalance:
		cfg.Rebalance = &strategy.RebalanceParams{Percents: replayPercents}
	}
	return cfg, nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	scfg, err := strategyConfig()
	if err != nil {
		return err
	}
	from, err := parseDateFlag("from", replayFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", replayTo)
	if err != nil {
		return err
	}

	return withCore(func(core *di.Core) error {
		ctx := cmd.Context()

		cls, err := pickClassifier(ctx, core.Bands, scfg.Kind, replayClassifier)
		if err != nil {
			return err
		}

		s, err := strategy.New(scfg, cls)
		if err != nil {
			return err
		}
		prices, err := core.Builder.Build(ctx, usecase.BuildRequest{
			Key:            usecase.KeyPrice,
			Fetcher:        core.Price,
			RequestedStart: core.Config.StartDate(),
		})
		if err != nil {
			return err
		}
		res, err := core.Replay.Run(ctx, usecase.ReplayParams{
			Strategy:   s,
			Prices:     prices,
			From:       from,
			To:         to,
			Cash:       replayCash,
			Commission: replayCommission,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	})
}

type classifierSource interface {
	Curve(ctx context.Context) (*bands.CurveFitClassifier, error)
	Sentiment(ctx context.Context) (*bands.ThresholdClassifier, error)
}

// pickClassifier builds only the classifier named by name, and none when kind sizes orders without bands.
func pickClassifier(ctx context.Context, src classifierSource, kind strategy.Kind, name string) (domsvc.BandClassifier, error) {
	if name != "price" && name != "sentiment" {
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
	if !kind.NeedsClassifier() {
		return nil, nil
	}
	if name == "price" {
		curve, err := src.Curve(ctx)
		if err != nil {
			return nil, err
		}
		return curve, nil
	}
	sent, err := src.Sentiment(ctx)
	if err != nil {
		return nil, err
	}
	return sent, nil
}
