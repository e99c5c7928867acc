package usecase

import (
	"context"
	"fmt"
	"time"

	"BandPilot/internal/domain/models"
	domrepo "BandPilot/internal/domain/repository"
	"BandPilot/internal/services/strategy"
	applogger "BandPilot/pkg/logger"
	"BandPilot/pkg/metrics"
)

const defaultStartCash = 10000

// ReplayUseCase drives a strategy over a daily price series with paper fills at the close.
type ReplayUseCase struct {
	publisher domrepo.DecisionPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewReplayUseCase(pub domrepo.DecisionPublisher, m domrepo.Metrics, l *applogger.Logger) *ReplayUseCase {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ReplayUseCase{publisher: pub, metrics: m, l: l}
}

type ReplayParams struct {
	Strategy strategy.Strategy
	Prices   *models.Series
	From     time.Time
	To       time.Time
	// Cash is the starting balance. Zero means 10000.
	Cash float64
	// Commission is charged as a fraction of each fill's value.
	Commission float64
}

type ReplayResult struct {
	Strategy    string                 `json:"strategy"`
	Description string                 `json:"description"`
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Periods     int                    `json:"periods"`
	Rejected    int                    `json:"rejected"`
	Portfolio   models.Portfolio       `json:"portfolio"`
	Stats       strategy.Stats         `json:"stats"`
	History     []models.ExecutedOrder `json:"history"`
}

type paperBook struct {
	cash       float64
	position   float64
	avgPrice   float64
	commission float64
}

func (b *paperBook) portfolio(price float64) models.Portfolio {
	return models.Portfolio{
		TotalValue:       b.cash + b.position*price,
		Cash:             b.cash,
		PositionSize:     b.position,
		PositionAvgPrice: b.avgPrice,
	}
}

// execute fills intent at price, or returns the status that rejects it.
func (b *paperBook) execute(intent models.OrderIntent, date time.Time, price float64) (models.Execution, models.OrderStatus, bool) {
	size := intent.Size
	switch intent.Side {
	case models.SideBuy:
		value := size * price
		fee := value * b.commission
		if size <= 0 || value+fee > b.cash+1e-9 {
			return models.Execution{}, models.StatusMargin, false
		}
		b.avgPrice = (b.position*b.avgPrice + value) / (b.position + size)
		b.position += size
		b.cash -= value + fee
		return models.Execution{Price: price, Size: size, Value: value, Commission: fee, Date: date}, models.StatusCompleted, true
	case models.SideSell:
		if size > b.position {
			size = b.position
		}
		if size <= 0 {
			return models.Execution{}, models.StatusMargin, false
		}
		value := size * price
		fee := value * b.commission
		b.position -= size
		b.cash += value - fee
		if b.position <= 1e-12 {
			b.position, b.avgPrice = 0, 0
		}
		return models.Execution{Price: price, Size: size, Value: value, Commission: fee, Date: date}, models.StatusCompleted, true
	}
	return models.Execution{}, models.StatusRejected, false
}

func (uc *ReplayUseCase) Run(ctx context.Context, p ReplayParams) (*ReplayResult, error) {
	if p.Strategy == nil {
		return nil, fmt.Errorf("replay: no strategy: %w", models.ErrInvalidConfiguration)
	}
	prices := p.Prices.Slice(p.From, p.To)
	if prices.Empty() {
		return nil, fmt.Errorf("replay: %w", models.ErrNoDataAvailable)
	}
	if p.Cash == 0 {
		p.Cash = defaultStartCash
	}
	if p.Cash < 0 || p.Commission < 0 || p.Commission >= 1 {
		return nil, fmt.Errorf("replay: cash %g commission %g: %w", p.Cash, p.Commission, models.ErrInvalidConfiguration)
	}

	s := p.Strategy
	name := s.Name()
	l := uc.l.With(applogger.String("strategy", name))
	book := &paperBook{cash: p.Cash, commission: p.Commission}
	res := &ReplayResult{Strategy: name, Description: s.Describe(), From: prices.MinDate(), To: prices.MaxDate()}
	started := time.Now()

	var last float64
	for _, pt := range prices.Points {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay %s: %w", name, err)
		}
		price := pt.Values[prices.Primary()]
		last = price
		res.Periods++

		intent := s.Decide(pt.Date, price, book.portfolio(price))
		if intent.IsNone() {
			l.Debug("no order", applogger.Date("date", pt.Date), applogger.String("reason", intent.Reason))
			continue
		}
		uc.metrics.RecordDecision(name, intent.Side.String())
		uc.publish(ctx, l, models.DecisionEvent{Type: "intent", Strategy: name, Date: pt.Date, Side: intent.Side, Size: intent.Size, Price: price, Ref: intent.Ref})

		lc := s.Lifecycle()
		if err := lc.OnOrderSubmitted(intent.Ref); err != nil {
			return nil, fmt.Errorf("replay %s submit: %w", name, err)
		}
		exec, status, ok := book.execute(intent, pt.Date, price)
		if !ok {
			res.Rejected++
			if err := lc.OnOrderRejected(intent.Ref, status); err != nil {
				return nil, fmt.Errorf("replay %s reject: %w", name, err)
			}
			l.Info("order rejected", applogger.Date("date", pt.Date), applogger.String("status", status.String()))
			uc.publish(ctx, l, models.DecisionEvent{Type: "reject", Strategy: name, Date: pt.Date, Side: intent.Side, Size: intent.Size, Price: price, Ref: intent.Ref, Reason: status.String()})
			continue
		}
		if err := lc.OnOrderFilled(intent.Ref, exec); err != nil {
			return nil, fmt.Errorf("replay %s fill: %w", name, err)
		}
		uc.publish(ctx, l, models.DecisionEvent{Type: "fill", Strategy: name, Date: pt.Date, Side: intent.Side, Size: exec.Size, Price: exec.Price, Ref: intent.Ref})
	}

	res.Portfolio = book.portfolio(last)
	res.History = s.Lifecycle().History()
	res.Stats = s.Lifecycle().Stats(p.Cash, res.Portfolio.TotalValue)
	uc.metrics.RecordLatency("replay", time.Since(started).Seconds())
	l.Info("replay finished",
		applogger.Int("periods", res.Periods),
		applogger.Int("orders", res.Stats.Orders),
		applogger.Float64("pnl", res.Stats.PnL),
		applogger.Float64("roi", res.Stats.ROI),
	)
	return res, nil
}

func (uc *ReplayUseCase) publish(ctx context.Context, l *applogger.Logger, ev models.DecisionEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, ev); err != nil {
		l.Warn("decision publish failed", applogger.String("type", ev.Type), applogger.Error(err))
	}
}
