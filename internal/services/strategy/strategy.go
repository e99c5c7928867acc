package strategy

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"BandPilot/internal/domain/models"
	domsvc "BandPilot/internal/domain/service"
)

// Kind selects a strategy variant.
type Kind string

const (
	KindHodl        Kind = "hodl"
	KindDca         Kind = "dca"
	KindWeightedDca Kind = "weighted_dca"
	KindRebalance   Kind = "rebalance"
)

// NeedsClassifier reports whether the variant sizes orders by band.
func (k Kind) NeedsClassifier() bool {
	return k == KindWeightedDca || k == KindRebalance
}

// Strategy turns a period's date, price and portfolio into an order intent.
// The set of implementations is closed: Hodl, Dca, WeightedDca and Rebalance.
type Strategy interface {
	Name() string
	Kind() Kind
	Describe() string
	Decide(date time.Time, price float64, pf models.Portfolio) models.OrderIntent
	Lifecycle() *OrderLifecycle
	sealed()
}

// Config is the typed configuration of one strategy. Only the params of Kind are read.
type Config struct {
	Kind Kind   `yaml:"kind" json:"kind" validate:"required,oneof=hodl dca weighted_dca rebalance"`
	Name string `yaml:"name" json:"name"`
	// MinOrderPeriod is the minimum number of days between executions. Nil means 7.
	MinOrderPeriod *int `yaml:"min_order_period" json:"min_order_period" default:"7" validate:"required,gte=0"`

	Hodl        *HodlParams        `yaml:"hodl" json:"hodl,omitempty"`
	Dca         *DcaParams         `yaml:"dca" json:"dca,omitempty"`
	WeightedDca *WeightedDcaParams `yaml:"weighted_dca" json:"weighted_dca,omitempty"`
	Rebalance   *RebalanceParams   `yaml:"rebalance" json:"rebalance,omitempty"`
}

type HodlParams struct {
	Percent float64 `yaml:"percent" json:"percent" default:"100" validate:"gt=0,lte=100"`
}

type DcaParams struct {
	BuyAmount  float64 `yaml:"buy_amount" json:"buy_amount" default:"100" validate:"gt=0"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier" default:"1" validate:"gt=0"`
}

type WeightedDcaParams struct {
	BaseAmount float64 `yaml:"base_amount" json:"base_amount" default:"100" validate:"gt=0"`
	// Weights per band. Empty means the classifier's multipliers.
	Weights []float64 `yaml:"weights" json:"weights" validate:"dive,gte=0"`
}

type RebalanceParams struct {
	// Percents is the target position share per band, one entry per band.
	Percents []float64 `yaml:"percents" json:"percents" validate:"required,dive,gte=0,lte=100"`
	// MAPeriod of the trend filter. Zero means MinOrderPeriod.
	MAPeriod int `yaml:"ma_period" json:"ma_period" validate:"gte=0"`
	// DisableMA compares raw closes instead of a moving average.
	DisableMA bool `yaml:"disable_ma" json:"disable_ma"`
}

// Days is a helper for Config.MinOrderPeriod.
func Days(n int) *int { return &n }

var validate = validator.New()

// New builds the strategy selected by cfg. classifier is required by WeightedDca and Rebalance.
func New(cfg Config, classifier domsvc.BandClassifier) (Strategy, error) {
	switch cfg.Kind {
	case KindHodl:
		if cfg.Hodl == nil {
			cfg.Hodl = &HodlParams{}
		}
	case KindDca:
		if cfg.Dca == nil {
			cfg.Dca = &DcaParams{}
		}
	case KindWeightedDca:
		if cfg.WeightedDca == nil {
			cfg.WeightedDca = &WeightedDcaParams{}
		}
	case KindRebalance:
		if cfg.Rebalance == nil {
			cfg.Rebalance = &RebalanceParams{}
		}
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("strategy defaults: %v: %w", err, models.ErrInvalidConfiguration)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("strategy config: %v: %w", err, models.ErrInvalidConfiguration)
	}

	b := base{minOrderPeriod: *cfg.MinOrderPeriod, classifier: classifier, lc: NewOrderLifecycle(), name: cfg.Name}
	switch cfg.Kind {
	case KindHodl:
		return newHodl(b, *cfg.Hodl), nil
	case KindDca:
		return newDca(b, *cfg.Dca), nil
	case KindWeightedDca:
		return newWeightedDca(b, *cfg.WeightedDca)
	default:
		return newRebalance(b, *cfg.Rebalance)
	}
}

// base holds what every variant shares: throttle settings, classifier and lifecycle.
type base struct {
	name           string
	minOrderPeriod int
	classifier     domsvc.BandClassifier
	lc             *OrderLifecycle
}

func (b *base) Lifecycle() *OrderLifecycle { return b.lc }

func (b *base) sealed() {}

func (b *base) nameOr(def string) string {
	if b.name != "" {
		return b.name
	}
	return def
}

// band resolves the band at date, or noBand with the error.
func (b *base) band(date time.Time, price float64) (models.BandDetails, int, error) {
	d, err := b.classifier.BandAt(date, price)
	if err != nil {
		return models.BandDetails{}, noBand, err
	}
	return d, d.Index, nil
}

// gate applies the shared rules: one pending order at a time and at least
// minOrderPeriod days since the last execution.
func (b *base) gate(date time.Time) (models.OrderIntent, bool) {
	if _, ok := b.lc.Pending(); ok {
		return models.None("order pending"), true
	}
	if _, last, _, ok := b.lc.LastExecuted(); ok && models.DaysBetween(last, date) < b.minOrderPeriod {
		return models.None("throttled"), true
	}
	return models.OrderIntent{}, false
}

func requireClassifier(kind Kind, c domsvc.BandClassifier) error {
	if c == nil {
		return fmt.Errorf("%s needs a band classifier: %w", kind, models.ErrInvalidConfiguration)
	}
	return nil
}

func float(v float64) *float64 { return &v }
