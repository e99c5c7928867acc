package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"BandPilot/internal/domain/models"
)

// Rebalance moves the position towards percents[band] of the portfolio whenever the band
// changes, buying only on a rising trend and selling only on a falling one.
type Rebalance struct {
	base
	percents []float64
	window   int

	prices   []float64
	lastSeen time.Time
}

func newRebalance(b base, p RebalanceParams) (*Rebalance, error) {
	if err := requireClassifier(KindRebalance, b.classifier); err != nil {
		return nil, err
	}
	if len(p.Percents) != b.classifier.K() {
		return nil, fmt.Errorf("%d rebalance percents for %d bands: %w", len(p.Percents), b.classifier.K(), models.ErrInvalidConfiguration)
	}
	window := p.MAPeriod
	if window == 0 {
		window = b.minOrderPeriod
	}
	if p.DisableMA || window < 1 {
		window = 1
	}
	return &Rebalance{base: b, percents: append([]float64(nil), p.Percents...), window: window}, nil
}

func (s *Rebalance) Name() string { return s.nameOr("Rebalance") }

func (s *Rebalance) Kind() Kind { return KindRebalance }

func (s *Rebalance) Describe() string {
	ps := make([]string, len(s.percents))
	for i, p := range s.percents {
		ps[i] = fmt.Sprintf("%g", p)
	}
	return fmt.Sprintf("%s | %s | %d days | %s | MA%d", s.Name(), s.classifier.Describe(), s.minOrderPeriod, strings.Join(ps, ","), s.window)
}

func (s *Rebalance) Decide(date time.Time, price float64, pf models.Portfolio) models.OrderIntent {
	details, idx, err := s.band(date, price)
	s.lc.beginPeriod(date, price, idx)
	s.observe(date, price)
	if intent, blocked := s.gate(date); blocked {
		return intent
	}
	if err != nil {
		return models.None("band not found")
	}
	if _, _, lastBand, ok := s.lc.LastExecuted(); ok && lastBand == details.Index {
		return models.None("band unchanged")
	}
	if price <= 0 {
		return models.None("invalid price")
	}

	percent := s.percents[details.Index]
	target := pf.TotalValue * percent / 100
	current := pf.PositionSize * price
	if math.Round(target) == math.Round(current) {
		return models.None("already rebalanced")
	}

	trend := s.trend()
	tag := &models.IntentTag{Percent: float(percent)}
	switch {
	case target > current && trend > 0:
		return s.lc.register(models.OrderIntent{Side: models.SideBuy, Size: (target - current) / price, Tag: tag})
	case target < current && trend < 0:
		return s.lc.register(models.OrderIntent{Side: models.SideSell, Size: (current - target) / price, Tag: tag})
	default:
		return models.None("trend mismatch")
	}
}

// observe keeps the closes needed for the trend filter, one per date.
func (s *Rebalance) observe(date time.Time, price float64) {
	d := models.Day(date)
	if len(s.prices) > 0 && s.lastSeen.Equal(d) {
		s.prices[len(s.prices)-1] = price
		return
	}
	s.lastSeen = d
	s.prices = append(s.prices, price)
	if keep := s.window + 1; len(s.prices) > keep {
		s.prices = append(s.prices[:0], s.prices[len(s.prices)-keep:]...)
	}
}

// trend compares the moving average now with the one a period earlier:
// 1 rising, -1 falling, 0 flat or not enough history.
func (s *Rebalance) trend() int {
	n := len(s.prices)
	if n < 2 {
		return 0
	}
	cur := mean(s.prices[maxInt(0, n-s.window):n])
	prev := mean(s.prices[maxInt(0, n-1-s.window) : n-1])
	switch {
	case cur > prev:
		return 1
	case cur < prev:
		return -1
	}
	return 0
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
