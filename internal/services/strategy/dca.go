package strategy

import (
	"fmt"
	"time"

	"BandPilot/internal/domain/models"
)

// Dca buys a fixed amount every eligible period.
type Dca struct {
	base
	amount     float64
	multiplier float64
}

func newDca(b base, p DcaParams) *Dca {
	return &Dca{base: b, amount: p.BuyAmount, multiplier: p.Multiplier}
}

func (s *Dca) Name() string { return s.nameOr("DCA") }

func (s *Dca) Kind() Kind { return KindDca }

func (s *Dca) Describe() string {
	return fmt.Sprintf("%s | %d days | %g USD x%g", s.Name(), s.minOrderPeriod, s.amount, s.multiplier)
}

func (s *Dca) Decide(date time.Time, price float64, _ models.Portfolio) models.OrderIntent {
	s.lc.beginPeriod(date, price, noBand)
	if intent, blocked := s.gate(date); blocked {
		return intent
	}
	if price <= 0 {
		return models.None("invalid price")
	}
	return s.lc.register(models.OrderIntent{
		Side: models.SideBuy,
		Size: s.amount * s.multiplier / price,
		Tag:  &models.IntentTag{Multiplier: float(s.multiplier)},
	})
}
