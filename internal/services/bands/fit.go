package bands

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"BandPilot/internal/domain/models"
)

// u = log(b+1) keeps b > -1 so log(b+t) is defined for every t >= 1.
const (
	minU     = -8.0
	maxU     = 16.0
	gridStep = 0.25
)

type logFit struct {
	A, B, C float64
	SSE     float64
}

// fitLogCurve fits log(y[t]) ≈ a·log(b+t) + c for t = 1..n.
// For a fixed b the model is linear in (a, c), so only b is searched.
func fitLogCurve(prices []float64) (logFit, error) {
	n := len(prices)
	if n < 3 {
		return logFit{}, fmt.Errorf("%d points: %w", n, models.ErrInsufficientData)
	}
	ly := make([]float64, n)
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return logFit{}, fmt.Errorf("price %v at t=%d: %w", p, i+1, models.ErrFitFailed)
		}
		ly[i] = math.Log(p)
	}

	x := make([]float64, n)
	solve := func(u float64) logFit {
		u = math.Max(minU, math.Min(maxU, u))
		b := math.Exp(u) - 1
		for i := range x {
			x[i] = math.Log(b + float64(i+1))
		}
		c, a := stat.LinearRegression(x, ly, nil, false)
		sse := 0.0
		for i := range x {
			r := ly[i] - (a*x[i] + c)
			sse += r * r
		}
		return logFit{A: a, B: b, C: c, SSE: sse}
	}

	best, bestU := logFit{SSE: math.Inf(1)}, 0.0
	for u := minU; u <= maxU; u += gridStep {
		if f := solve(u); f.SSE < best.SSE {
			best, bestU = f, u
		}
	}
	if math.IsInf(best.SSE, 0) || math.IsNaN(best.SSE) {
		return logFit{}, fmt.Errorf("no finite residual: %w", models.ErrFitFailed)
	}

	problem := optimize.Problem{
		Func: func(v []float64) float64 { return solve(v[0]).SSE },
	}
	res, err := optimize.Minimize(problem, []float64{bestU}, &optimize.Settings{FuncEvaluations: 5000}, &optimize.NelderMead{})
	if err != nil || res == nil {
		return logFit{}, fmt.Errorf("minimize did not converge: %v: %w", err, models.ErrFitFailed)
	}
	if res.F < best.SSE {
		best, bestU = solve(res.X[0]), res.X[0]
	}
	// A minimum on the clamp means the residual keeps falling outside the searched range.
	if bestU <= minU || bestU >= maxU {
		return logFit{}, fmt.Errorf("minimum pinned at u=%g: %w", bestU, models.ErrFitFailed)
	}

	for _, v := range []float64{best.A, best.B, best.C, best.SSE} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return logFit{}, fmt.Errorf("non finite coefficients: %w", models.ErrFitFailed)
		}
	}
	if best.A <= 0 {
		return logFit{}, fmt.Errorf("slope a=%g is not positive: %w", best.A, models.ErrFitFailed)
	}
	return best, nil
}
