package models

import "time"

// Side of an order intent.
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "none"
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// IntentTag carries the parameter that sized an intent.
type IntentTag struct {
	Percent    *float64 `json:"percent,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
}

// OrderIntent is what a strategy wants to do this period.
// A SideNone intent carries the Reason it was skipped.
type OrderIntent struct {
	Side   Side       `json:"side"`
	Size   float64    `json:"size"`
	Tag    *IntentTag `json:"tag,omitempty"`
	Ref    string     `json:"ref,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// None builds a skipped intent.
func None(reason string) OrderIntent {
	return OrderIntent{Side: SideNone, Reason: reason}
}

func (o OrderIntent) IsNone() bool { return o.Side == SideNone }

// OrderStatus mirrors the notifications an execution engine reports.
type OrderStatus int

const (
	StatusSubmitted OrderStatus = iota + 1
	StatusAccepted
	StatusCompleted
	StatusCanceled
	StatusMargin
	StatusRejected
	StatusExpired
)

var statusNames = map[OrderStatus]string{
	StatusSubmitted: "submitted",
	StatusAccepted:  "accepted",
	StatusCompleted: "completed",
	StatusCanceled:  "canceled",
	StatusMargin:    "margin",
	StatusRejected:  "rejected",
	StatusExpired:   "expired",
}

func (s OrderStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the status ends the order's life.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusMargin, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Execution is a fill reported by the execution engine.
type Execution struct {
	Price      float64
	Size       float64
	Value      float64
	Commission float64
	Date       time.Time
}

// ExecutedOrder is one entry of a strategy's execution history.
type ExecutedOrder struct {
	Ref        string    `json:"ref"`
	Date       time.Time `json:"date"`
	Side       Side      `json:"side"`
	Size       float64   `json:"size"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"`
	Commission float64   `json:"commission"`
}

// Portfolio is the read-only snapshot the engine hands over each period.
type Portfolio struct {
	TotalValue       float64 `json:"total_value"`
	Cash             float64 `json:"cash"`
	PositionSize     float64 `json:"position_size"`
	PositionAvgPrice float64 `json:"position_avg_price"`
}

// DecisionEvent is what the decision journal publishes.
type DecisionEvent struct {
	Type     string    `json:"type"` // intent, fill, reject
	Strategy string    `json:"strategy"`
	Date     time.Time `json:"date"`
	Side     Side      `json:"side"`
	Size     float64   `json:"size"`
	Price    float64   `json:"price"`
	Ref      string    `json:"ref,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}
