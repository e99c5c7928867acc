package bands

import (
	"fmt"
	"math"
	"time"

	"BandPilot/internal/domain/models"
	domsvc "BandPilot/internal/domain/service"
)

// SentimentThresholds are the upper bounds of the fear and greed bands.
var SentimentThresholds = []float64{25, 46, 54, 75, 100}

// SentimentTable is the fear and greed band table.
var SentimentTable = models.BandTable{
	Names:       []string{"Extreme Fear", "Fear", "Neutral", "Greed", "Extreme Greed"},
	Colors:      []string{"#C05840", "#FC9A24", "#E5C769", "#B4E168", "#5CBC3C"},
	Multipliers: []float64{1.5, 1.25, 1, 0.75, 0.5},
}

var _ domsvc.BandClassifier = (*ThresholdClassifier)(nil)

// ThresholdClassifier maps a bounded index value to a band with fixed thresholds.
// Bands below the middle one are closed-open, the middle band is closed on both
// sides and bands above it are open-closed.
type ThresholdClassifier struct {
	series     *models.Series
	field      string
	thresholds []float64
	table      models.BandTable
	label      string
}

// ThresholdOption configures a ThresholdClassifier.
type ThresholdOption func(*ThresholdClassifier)

// WithThresholds replaces thresholds and band table.
func WithThresholds(thresholds []float64, table models.BandTable) ThresholdOption {
	return func(c *ThresholdClassifier) {
		c.thresholds = append([]float64(nil), thresholds...)
		c.table = table
	}
}

// WithValueField classifies a field other than the series primary one.
func WithValueField(field string) ThresholdOption {
	return func(c *ThresholdClassifier) { c.field = field }
}

// WithThresholdMultipliers overrides the table multipliers.
func WithThresholdMultipliers(m []float64) ThresholdOption {
	return func(c *ThresholdClassifier) { c.table = c.table.WithMultipliers(m) }
}

// WithLabel sets the description prefix.
func WithLabel(label string) ThresholdOption {
	return func(c *ThresholdClassifier) { c.label = label }
}

// NewThresholdClassifier builds a classifier over series. A nil series is allowed
// when only Classify is used.
func NewThresholdClassifier(series *models.Series, opts ...ThresholdOption) (*ThresholdClassifier, error) {
	c := &ThresholdClassifier{
		series:     series,
		field:      series.Primary(),
		thresholds: SentimentThresholds,
		table:      SentimentTable,
		label:      "Fear and greed bands",
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.table.Check(); err != nil {
		return nil, err
	}
	if len(c.thresholds) != c.table.K() {
		return nil, fmt.Errorf("%d thresholds for %d bands: %w", len(c.thresholds), c.table.K(), models.ErrInvalidConfiguration)
	}
	for i := 1; i < len(c.thresholds); i++ {
		if c.thresholds[i] <= c.thresholds[i-1] {
			return nil, fmt.Errorf("thresholds must be ascending: %w", models.ErrInvalidConfiguration)
		}
	}
	return c, nil
}

func (c *ThresholdClassifier) K() int { return c.table.K() }

func (c *ThresholdClassifier) Multipliers() []float64 {
	return append([]float64(nil), c.table.Multipliers...)
}

func (c *ThresholdClassifier) Describe() string {
	return fmt.Sprintf("%s (%d bands)", c.label, c.K())
}

// Classify returns the band index for v.
func (c *ThresholdClassifier) Classify(v float64) (int, error) {
	upper := c.thresholds[len(c.thresholds)-1]
	if math.IsNaN(v) || v < 0 || v > upper {
		return 0, fmt.Errorf("value %v outside [0,%v]: %w", v, upper, models.ErrNotAvailable)
	}
	mid := len(c.thresholds) / 2
	for i, t := range c.thresholds {
		if i < mid {
			if v < t {
				return i, nil
			}
			continue
		}
		if v <= t {
			return i, nil
		}
	}
	return 0, fmt.Errorf("value %v: %w", v, models.ErrNotAvailable)
}

// ClassifyDetails is Classify followed by a table lookup.
func (c *ThresholdClassifier) ClassifyDetails(v float64) (models.BandDetails, error) {
	i, err := c.Classify(v)
	if err != nil {
		return models.BandDetails{}, err
	}
	return c.table.Details(i)
}

// ValueAt returns the series value at date, or at the latest date when date is zero.
func (c *ThresholdClassifier) ValueAt(date time.Time) (float64, time.Time, error) {
	var (
		p  models.Point
		ok bool
	)
	if date.IsZero() {
		p, ok = c.series.Last()
	} else {
		p, ok = c.series.At(date)
	}
	if !ok {
		return 0, date, fmt.Errorf("value at %s: %w", date.Format(models.DateLayout), models.ErrNotFound)
	}
	v, ok := p.Value(c.field)
	if !ok {
		return 0, p.Date, fmt.Errorf("field %s at %s: %w", c.field, p.Date.Format(models.DateLayout), models.ErrNotFound)
	}
	return v, p.Date, nil
}

// BandAt classifies the series value at date. price is not used.
func (c *ThresholdClassifier) BandAt(date time.Time, _ float64) (models.BandDetails, error) {
	v, _, err := c.ValueAt(date)
	if err != nil {
		return models.BandDetails{}, err
	}
	return c.ClassifyDetails(v)
}
