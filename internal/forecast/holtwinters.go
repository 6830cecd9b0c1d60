package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"supermart-dashboard/internal/models"
)

const (
	defaultPeriod        = 12
	defaultMaxIterations = 2000
	holtWintersName      = "holt-winters"
)

// HoltWinters fits additive trend + additive seasonal exponential
// smoothing. Alpha, beta and gamma are chosen by Nelder-Mead over the
// one-step-ahead squared error.
type HoltWinters struct {
	Period        int
	MaxIterations int
}

type HoltWintersModel struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
	SSE   float64 `json:"sse"`

	period int
	level  float64
	trend  float64
	season []float64
	n      int
	last   models.BucketKey
	fitted []float64
}

func (hw HoltWinters) period() int {
	if hw.Period <= 0 {
		return defaultPeriod
	}
	return hw.Period
}

func (hw HoltWinters) maxIterations() int {
	if hw.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return hw.MaxIterations
}

// Fit requires at least two full seasonal cycles. Points are treated as
// consecutive months; the forecast continues from the last bucket.
func (hw HoltWinters) Fit(series models.Series) (*HoltWintersModel, error) {
	p := hw.period()
	y := series.Values()

	if len(y) < 2*p {
		return nil, &ModelFitError{
			Model:  holtWintersName,
			Reason: fmt.Sprintf("insufficient history: need %d points, have %d", 2*p, len(y)),
		}
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ModelFitError{Model: holtWintersName, Reason: "series contains non-finite values"}
		}
	}

	level0, trend0, season0 := initialState(y, p)

	// Normalize the objective so convergence tolerances do not depend on
	// the magnitude of sales figures.
	scale := stat.Mean(absAll(y), nil)
	if scale == 0 {
		scale = 1
	}
	norm := scale * scale * float64(len(y))

	objective := func(x []float64) float64 {
		alpha, beta, gamma := logistic(x[0]), logistic(x[1]), logistic(x[2])
		sse := smooth(y, p, alpha, beta, gamma, level0, trend0, season0, nil)
		return sse / norm
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: hw.maxIterations(),
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 50,
		},
	}
	x0 := []float64{logit(0.3), logit(0.1), logit(0.1)}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, &ModelFitError{Model: holtWintersName, Reason: "optimizer failed", Err: err}
	}
	if !converged(result.Status) {
		return nil, &ModelFitError{
			Model:  holtWintersName,
			Reason: "optimizer did not converge",
			Err:    errors.New(result.Status.String()),
		}
	}

	m := &HoltWintersModel{
		Alpha:  logistic(result.X[0]),
		Beta:   logistic(result.X[1]),
		Gamma:  logistic(result.X[2]),
		period: p,
		n:      len(y),
		fitted: make([]float64, len(y)),
	}
	last, _ := series.Last()
	m.last = last.Bucket

	state := &smoothingState{}
	m.SSE = smooth(y, p, m.Alpha, m.Beta, m.Gamma, level0, trend0, season0, state)
	if math.IsNaN(m.SSE) || math.IsInf(m.SSE, 0) {
		return nil, &ModelFitError{Model: holtWintersName, Reason: "non-finite error at optimum"}
	}
	m.level, m.trend, m.season = state.level, state.trend, state.season
	copy(m.fitted, state.fitted)

	return m, nil
}

// Forecast returns exactly h points for the months following the last
// observed bucket.
func (m *HoltWintersModel) Forecast(h int) ([]models.ForecastPoint, error) {
	if h < 0 {
		return nil, fmt.Errorf("forecast horizon must not be negative, got %d", h)
	}
	out := make([]models.ForecastPoint, h)
	for i := 1; i <= h; i++ {
		s := m.season[(m.n+i-1)%m.period]
		out[i-1] = models.ForecastPoint{
			Bucket: m.last.Add(i),
			Value:  m.level + float64(i)*m.trend + s,
		}
	}
	return out, nil
}

func (m *HoltWintersModel) Fitted() []float64 {
	out := make([]float64, len(m.fitted))
	copy(out, m.fitted)
	return out
}

func (m *HoltWintersModel) LastBucket() models.BucketKey {
	return m.last
}

type smoothingState struct {
	level  float64
	trend  float64
	season []float64
	fitted []float64
}

// smooth runs the additive recursion from the given initial state and
// returns the one-step-ahead squared error.
func smooth(y []float64, p int, alpha, beta, gamma, level, trend float64, season0 []float64, state *smoothingState) float64 {
	season := make([]float64, p)
	copy(season, season0)

	var fitted []float64
	if state != nil {
		fitted = make([]float64, len(y))
	}

	var sse float64
	for t, obs := range y {
		si := t % p
		pred := level + trend + season[si]
		if fitted != nil {
			fitted[t] = pred
		}
		e := obs - pred
		sse += e * e

		prevLevel := level
		level = alpha*(obs-season[si]) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		season[si] = gamma*(obs-level) + (1-gamma)*season[si]
	}

	if state != nil {
		state.level, state.trend, state.season, state.fitted = level, trend, season, fitted
	}
	return sse
}

// initialState estimates the level just before the first observation, the
// per-period trend from the first two cycles, and seasonal offsets averaged
// over every full cycle after removing the cycle mean and trend.
func initialState(y []float64, p int) (level, trend float64, season []float64) {
	first := stat.Mean(y[:p], nil)
	second := stat.Mean(y[p:2*p], nil)
	trend = (second - first) / float64(p)
	level = first - trend*float64(p+1)/2

	cycles := len(y) / p
	season = make([]float64, p)
	mid := float64(p-1) / 2
	for c := 0; c < cycles; c++ {
		cycle := y[c*p : (c+1)*p]
		m := stat.Mean(cycle, nil)
		for i, v := range cycle {
			season[i] += v - (m + trend*(float64(i)-mid))
		}
	}
	floats.Scale(1/float64(cycles), season)

	// Seasonal offsets sum to zero.
	adj := floats.Sum(season) / float64(p)
	floats.AddConst(-adj, season)

	return level, trend, season
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
		return true
	default:
		return false
	}
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func absAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Abs(v)
	}
	return out
}
