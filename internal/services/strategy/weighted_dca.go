package strategy

import (
	"fmt"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
)

// WeightedDca buys base amount times the weight of the current band.
type WeightedDca struct {
	base
	amount  float64
	weights []float64
}

func newWeightedDca(b base, p WeightedDcaParams) (*WeightedDca, error) {
	if err := requireClassifier(KindWeightedDca, b.classifier); err != nil {
		return nil, err
	}
	weights := p.Weights
	if len(weights) == 0 {
		weights = b.classifier.Multipliers()
	}
	if len(weights) != b.classifier.K() {
		return nil, fmt.Errorf("%d weights for %d bands: %w", len(weights), b.classifier.K(), models.ErrInvalidConfiguration)
	}
	return &WeightedDca{base: b, amount: p.BaseAmount, weights: append([]float64(nil), weights...)}, nil
}

func (s *WeightedDca) Name() string { return s.nameOr("Weighted DCA") }

func (s *WeightedDca) Kind() Kind { return KindWeightedDca }

func (s *WeightedDca) Describe() string {
	ws := make([]string, len(s.weights))
	for i, w := range s.weights {
		ws[i] = fmt.Sprintf("%g", w)
	}
	return fmt.Sprintf("%s | %s | %d days | %g USD | %s", s.Name(), s.classifier.Describe(), s.minOrderPeriod, s.amount, strings.Join(ws, ","))
}

func (s *WeightedDca) Decide(date time.Time, price float64, _ models.Portfolio) models.OrderIntent {
	details, idx, err := s.band(date, price)
	s.lc.beginPeriod(date, price, idx)
	if intent, blocked := s.gate(date); blocked {
		return intent
	}
	if err != nil {
		return models.None("band not found")
	}
	if price <= 0 {
		return models.None("invalid price")
	}
	w := s.weights[details.Index]
	if w <= 0 {
		return models.None("zero weight")
	}
	return s.lc.register(models.OrderIntent{
		Side: models.SideBuy,
		Size: s.amount * w / price,
		Tag:  &models.IntentTag{Multiplier: float(w)},
	})
}
