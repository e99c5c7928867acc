package strategy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"BandPilot/internal/domain/models"
)

// noBand marks a period whose band could not be resolved.
const noBand = -1

type period struct {
	index int
	date  time.Time
	price float64
	band  int
}

type pendingOrder struct {
	ref    string
	side   models.Side
	size   float64
	status models.OrderStatus
}

// OrderLifecycle tracks the single in-flight order of a strategy and what it executed.
// It is owned by one strategy and is not safe for concurrent use.
type OrderLifecycle struct {
	current      period
	started      bool
	pending      *pendingOrder
	lastExecuted *period
	history      []models.ExecutedOrder
}

func NewOrderLifecycle() *OrderLifecycle {
	return &OrderLifecycle{current: period{index: -1, band: noBand}}
}

// beginPeriod records the period being decided. Repeated calls for the same date stay in one period.
func (l *OrderLifecycle) beginPeriod(date time.Time, price float64, band int) {
	d := models.Day(date)
	if l.started && l.current.date.Equal(d) {
		l.current.price = price
		l.current.band = band
		return
	}
	l.started = true
	l.current = period{index: l.current.index + 1, date: d, price: price, band: band}
}

// register turns a non-empty intent into the pending order.
func (l *OrderLifecycle) register(intent models.OrderIntent) models.OrderIntent {
	if intent.IsNone() {
		return intent
	}
	intent.Ref = uuid.NewString()
	l.pending = &pendingOrder{ref: intent.Ref, side: intent.Side, size: intent.Size, status: models.StatusSubmitted}
	return intent
}

// Pending returns the ref of the in-flight order.
func (l *OrderLifecycle) Pending() (string, bool) {
	if l.pending == nil {
		return "", false
	}
	return l.pending.ref, true
}

// LastExecuted returns the period index, date and band of the last fill.
func (l *OrderLifecycle) LastExecuted() (index int, date time.Time, band int, ok bool) {
	if l.lastExecuted == nil {
		return 0, time.Time{}, noBand, false
	}
	return l.lastExecuted.index, l.lastExecuted.date, l.lastExecuted.band, true
}

// History returns a copy of the executed orders, oldest first.
func (l *OrderLifecycle) History() []models.ExecutedOrder {
	return append([]models.ExecutedOrder(nil), l.history...)
}

// OnOrderSubmitted acknowledges a submitted order. The order stays pending.
func (l *OrderLifecycle) OnOrderSubmitted(ref string) error {
	return l.OnOrderStatus(ref, models.StatusSubmitted)
}

// OnOrderStatus applies a non-fill status. Terminal statuses clear the pending order.
func (l *OrderLifecycle) OnOrderStatus(ref string, status models.OrderStatus) error {
	if err := l.match(ref); err != nil {
		return err
	}
	if status == models.StatusCompleted {
		return fmt.Errorf("order %s: completed needs an execution, use OnOrderFilled", ref)
	}
	l.pending.status = status
	if status.Terminal() {
		l.pending = nil
	}
	return nil
}

// OnOrderFilled records the execution and clears the pending order. The current period
// becomes the last executed one.
func (l *OrderLifecycle) OnOrderFilled(ref string, exec models.Execution) error {
	if err := l.match(ref); err != nil {
		return err
	}
	date := exec.Date
	if date.IsZero() {
		date = l.current.date
	}
	value := exec.Value
	if value == 0 {
		value = exec.Price * exec.Size
	}
	if value < 0 {
		value = -value
	}
	size := exec.Size
	if size < 0 {
		size = -size
	}
	l.history = append(l.history, models.ExecutedOrder{
		Ref:        ref,
		Date:       models.Day(date),
		Side:       l.pending.side,
		Size:       size,
		Price:      exec.Price,
		Value:      value,
		Commission: exec.Commission,
	})
	executed := l.current
	l.lastExecuted = &executed
	l.pending = nil
	return nil
}

// OnOrderRejected clears the pending order without recording an execution.
// reason must be one of Canceled, Margin, Rejected or Expired; anything else counts as Rejected.
func (l *OrderLifecycle) OnOrderRejected(ref string, reason models.OrderStatus) error {
	switch reason {
	case models.StatusCanceled, models.StatusMargin, models.StatusRejected, models.StatusExpired:
	default:
		reason = models.StatusRejected
	}
	return l.OnOrderStatus(ref, reason)
}

func (l *OrderLifecycle) match(ref string) error {
	if l.pending == nil || l.pending.ref != ref {
		return fmt.Errorf("order %s: %w", ref, models.ErrUnknownOrder)
	}
	return nil
}

// Stats summarises a run.
type Stats struct {
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
	PnL        float64 `json:"pnl"`
	ROI        float64 `json:"roi"`
	Orders     int     `json:"orders"`
	Buys       int     `json:"buys"`
	Sells      int     `json:"sells"`
	Bought     float64 `json:"bought"`
	Sold       float64 `json:"sold"`
	Invested   float64 `json:"invested"`
	Commission float64 `json:"commission"`
}

// Stats computes PnL and ROI (percent) between startValue and endValue.
func (l *OrderLifecycle) Stats(startValue, endValue float64) Stats {
	st := Stats{StartValue: startValue, EndValue: endValue, PnL: endValue - startValue, Orders: len(l.history)}
	if startValue != 0 {
		st.ROI = st.PnL / startValue * 100
	}
	for _, o := range l.history {
		st.Commission += o.Commission
		switch o.Side {
		case models.SideBuy:
			st.Buys++
			st.Bought += o.Size
			st.Invested += o.Value
		case models.SideSell:
			st.Sells++
			st.Sold += o.Size
		}
	}
	return st
}
