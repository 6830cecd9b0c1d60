package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"supermart-dashboard/internal/models"
)

func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, predicted)
	return stat.Mean(absAll(diff), nil)
}

func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	return floats.Distance(actual, predicted, 2) / math.Sqrt(float64(len(actual)))
}

// MAPE is a percentage; zero actuals are skipped.
func MAPE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	var sum float64
	var n int
	for i, a := range actual {
		if a == 0 {
			continue
		}
		sum += math.Abs((a - predicted[i]) / a)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return 100 * sum / float64(n)
}

func Score(model string, actual, predicted []float64) models.Accuracy {
	return models.Accuracy{
		Model: model,
		MAE:   MAE(actual, predicted),
		RMSE:  RMSE(actual, predicted),
		MAPE:  MAPE(actual, predicted),
	}
}

// Holdout refits on all but the last h points and scores the
// forecast against them.
func (hw HoltWinters) Holdout(series models.Series, h int) (models.Accuracy, error) {
	if h <= 0 || h >= len(series) {
		return models.Accuracy{}, fmt.Errorf("holdout of %d points from %d", h, len(series))
	}
	train, test := series[:len(series)-h], series[len(series)-h:]
	m, err := hw.Fit(train)
	if err != nil {
		return models.Accuracy{}, err
	}
	pred, err := m.Forecast(h)
	if err != nil {
		return models.Accuracy{}, err
	}
	predicted := make([]float64, h)
	for i, p := range pred {
		predicted[i] = p.Value
	}
	return Score(holtWintersName, test.Values(), predicted), nil
}

// Holdout trains on every month before the last h and scores the summed
// monthly prediction across segments against observed monthly sales.
func (r SegmentRegressor) Holdout(txs []models.Transaction, h int) (models.Accuracy, error) {
	if h <= 0 {
		return models.Accuracy{}, fmt.Errorf("holdout horizon must be positive, got %d", h)
	}
	var last models.BucketKey
	for i := range txs {
		if b := txs[i].Bucket(); b.Compare(last) > 0 {
			last = b
		}
	}
	cutoff := last.Add(-h)

	var train []models.Transaction
	actualByMonth := make(map[models.BucketKey]float64, h)
	for i := range txs {
		b := txs[i].Bucket()
		if b.Compare(cutoff) <= 0 {
			train = append(train, txs[i])
		} else {
			actualByMonth[b] += txs[i].Sales
		}
	}
	if len(train) == 0 {
		return models.Accuracy{}, &ModelFitError{Model: segmentModelName, Reason: "no rows before holdout window"}
	}

	m, err := r.Fit(train)
	if err != nil {
		return models.Accuracy{}, err
	}
	all, err := m.ForecastAll(h)
	if err != nil {
		return models.Accuracy{}, err
	}

	actual := make([]float64, h)
	predicted := make([]float64, h)
	for i := range h {
		actual[i] = actualByMonth[m.LastBucket().Add(i+1)]
	}
	for _, f := range all {
		for i, p := range f.Points {
			predicted[i] += p.Value
		}
	}
	return Score(segmentModelName, actual, predicted), nil
}
