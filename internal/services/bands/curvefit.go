package bands

import (
	"context"
	"fmt"
	"math"
	"time"

	"BandPilot/internal/domain/models"
	domsvc "BandPilot/internal/domain/service"
)

// DefaultCurveMultiplier is the log distance between neighbouring boundary curves.
const DefaultCurveMultiplier = 0.455

const (
	minOffset = -3
	maxOffset = 6
)

// RainbowTable goes from far above trend (0) to far below trend (8).
var RainbowTable = models.BandTable{
	Names: []string{
		"Maximum bubble!!", "Sell, seriouly sell!", "FOMO intensifies", "Is this a bubble?",
		"HODL", "Still cheap", "Accumulate", "Buy!", "Fire sale!!",
	},
	Colors: []string{
		"#6b8ed0", "#78acb2", "#84ca95", "#c0de9a", "#feed94",
		"#f8c37d", "#f1975e", "#df6a4d", "#cf463f",
	},
	Multipliers: []float64{0, 0.1, 0.2, 0.35, 0.5, 0.75, 1, 2.5, 3},
}

// RainbowFibonacciMultipliers is an alternative weighting for RainbowTable.
var RainbowFibonacciMultipliers = []float64{0, 0.1, 0.2, 0.3, 0.5, 0.8, 1.3, 2.1, 3.4}

// FittedCurve is the regression trend and its parallel boundary curves.
type FittedCurve struct {
	A, B, C    float64
	Multiplier float64
	Offsets    []int
	// Boundaries[row][j] is the boundary for Offsets[j] at series row.
	Boundaries [][]float64
}

// Trend returns the fitted log price at time index t (1-based).
func (f FittedCurve) Trend(t int) float64 {
	return f.A*math.Log(f.B+float64(t)) + f.C
}

// Boundary returns the boundary price for offset at row.
func (f FittedCurve) Boundary(row, offset int) float64 {
	return f.Boundaries[row][offset-minOffset]
}

var _ domsvc.BandClassifier = (*CurveFitClassifier)(nil)

// CurveFitClassifier classifies a price against log regression bands fitted to a price series.
type CurveFitClassifier struct {
	series *models.Series
	curve  FittedCurve
	table  models.BandTable
}

// CurveOption configures a CurveFitClassifier.
type CurveOption func(*curveSettings)

type curveSettings struct {
	multiplier float64
	table      models.BandTable
}

// WithCurveMultiplier sets the log distance between boundary curves.
func WithCurveMultiplier(m float64) CurveOption {
	return func(s *curveSettings) { s.multiplier = m }
}

// WithFibonacciMultipliers swaps the band weights for the Fibonacci set.
func WithFibonacciMultipliers() CurveOption {
	return func(s *curveSettings) { s.table = s.table.WithMultipliers(RainbowFibonacciMultipliers) }
}

// NewCurveFitClassifier fits the curve over the whole series. The fit runs on its own
// goroutine and the call returns only once it has finished or ctx is done.
func NewCurveFitClassifier(ctx context.Context, series *models.Series, opts ...CurveOption) (*CurveFitClassifier, error) {
	st := curveSettings{multiplier: DefaultCurveMultiplier, table: RainbowTable}
	for _, opt := range opts {
		opt(&st)
	}
	if st.multiplier <= 0 {
		return nil, fmt.Errorf("curve multiplier %v: %w", st.multiplier, models.ErrInvalidConfiguration)
	}
	if series.Empty() {
		return nil, fmt.Errorf("curve fit: %w", models.ErrInsufficientData)
	}

	type result struct {
		curve FittedCurve
		err   error
	}
	prices := series.Values()
	done := make(chan result, 1)
	go func() {
		fit, err := fitLogCurve(prices)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{curve: buildCurve(fit, len(prices), st.multiplier)}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("curve fit: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("curve fit: %w", r.err)
		}
		return &CurveFitClassifier{series: series, curve: r.curve, table: st.table}, nil
	}
}

func buildCurve(fit logFit, n int, m float64) FittedCurve {
	offsets := make([]int, 0, maxOffset-minOffset+1)
	for i := minOffset; i <= maxOffset; i++ {
		offsets = append(offsets, i)
	}
	curve := FittedCurve{A: fit.A, B: fit.B, C: fit.C, Multiplier: m, Offsets: offsets}
	curve.Boundaries = make([][]float64, n)
	for row := 0; row < n; row++ {
		trend := curve.Trend(row + 1)
		bounds := make([]float64, len(offsets))
		for j, off := range offsets {
			bounds[j] = math.Exp(trend + float64(off)*m)
		}
		curve.Boundaries[row] = bounds
	}
	return curve
}

func (c *CurveFitClassifier) K() int { return c.table.K() }

func (c *CurveFitClassifier) Multipliers() []float64 {
	return append([]float64(nil), c.table.Multipliers...)
}

func (c *CurveFitClassifier) Describe() string {
	return fmt.Sprintf("Rainbow bands (m=%g)", c.curve.Multiplier)
}

// Curve returns the fitted curve.
func (c *CurveFitClassifier) Curve() FittedCurve { return c.curve }

// BoundariesAt returns the boundary prices keyed by offset at date.
func (c *CurveFitClassifier) BoundariesAt(date time.Time) (map[int]float64, time.Time, error) {
	row, d, err := c.row(date)
	if err != nil {
		return nil, d, err
	}
	out := make(map[int]float64, len(c.curve.Offsets))
	for j, off := range c.curve.Offsets {
		out[off] = c.curve.Boundaries[row][j]
	}
	return out, d, nil
}

// CloseAt returns the series close at date, or 0 when the date is not in the series.
func (c *CurveFitClassifier) CloseAt(date time.Time) float64 {
	row, _, err := c.row(date)
	if err != nil {
		return 0
	}
	return c.series.Points[row].Values[c.series.Primary()]
}

// BandAt classifies price at date. A zero date means the latest row and a
// non-positive price means the series close at that row.
func (c *CurveFitClassifier) BandAt(date time.Time, price float64) (models.BandDetails, error) {
	row, _, err := c.row(date)
	if err != nil {
		return models.BandDetails{}, err
	}
	if price <= 0 {
		price = c.series.Points[row].Values[c.series.Primary()]
	}
	return c.table.Details(c.classify(row, price))
}

// Above the +5 curve is band 0, each lower interval (b[i], b[i+1]] adds one, and
// anything at or below the -2 curve is band 8.
func (c *CurveFitClassifier) classify(row int, price float64) int {
	if price > c.curve.Boundary(row, 5) {
		return 0
	}
	for i := 4; i >= -2; i-- {
		if price > c.curve.Boundary(row, i) {
			return 5 - i
		}
	}
	return 8
}

func (c *CurveFitClassifier) row(date time.Time) (int, time.Time, error) {
	if date.IsZero() {
		last, _ := c.series.Last()
		return c.series.Len() - 1, last.Date, nil
	}
	i, ok := c.series.Index(date)
	if !ok {
		return 0, date, fmt.Errorf("curve row at %s: %w", date.Format(models.DateLayout), models.ErrNotFound)
	}
	return i, c.series.Points[i].Date, nil
}
