package strategy

import (
	"fmt"
	"time"

	"BandPilot/internal/domain/models"
)

// Hodl buys percent of the portfolio value once and then holds.
type Hodl struct {
	base
	percent float64
}

func newHodl(b base, p HodlParams) *Hodl {
	return &Hodl{base: b, percent: p.Percent}
}

func (s *Hodl) Name() string { return s.nameOr("Hodl") }

func (s *Hodl) Kind() Kind { return KindHodl }

func (s *Hodl) Describe() string {
	return fmt.Sprintf("%s | %g%%", s.Name(), s.percent)
}

func (s *Hodl) Decide(date time.Time, price float64, pf models.Portfolio) models.OrderIntent {
	s.lc.beginPeriod(date, price, noBand)
	if intent, blocked := s.gate(date); blocked {
		return intent
	}
	if len(s.lc.history) > 0 {
		return models.None("holding")
	}
	if price <= 0 {
		return models.None("invalid price")
	}
	size := pf.TotalValue * s.percent / 100 / price
	if size <= 0 {
		return models.None("nothing to buy")
	}
	return s.lc.register(models.OrderIntent{
		Side: models.SideBuy,
		Size: size,
		Tag:  &models.IntentTag{Percent: float(s.percent)},
	})
}
