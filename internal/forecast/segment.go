package forecast

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"supermart-dashboard/internal/aggregate"
	"supermart-dashboard/internal/models"
)

const (
	segmentModelName = "segment-regressor"

	// UnitPrice converts forecast sales into stock units.
	UnitPrice = 100.0
)

// SegmentRegressor trains one boosted ensemble across every
// (category, sub-category) pair, using the encoded labels and the month
// ordinal as features.
type SegmentRegressor struct {
	Booster Booster
}

type SegmentModel struct {
	model       *BoostedModel
	categories  *LabelEncoder
	subs        *LabelEncoder
	segments    []models.Segment
	known       map[models.Segment]struct{}
	last        models.BucketKey
	trainingLen int
}

func (r SegmentRegressor) Fit(txs []models.Transaction) (*SegmentModel, error) {
	groups, err := aggregate.GroupBy(txs, aggregate.Spec{
		Keys:   []aggregate.Dimension{aggregate.DimCategory, aggregate.DimSubCategory},
		Bucket: aggregate.ByMonth,
		Field:  aggregate.FieldSales,
		Reduce: aggregate.Sum,
	})
	if err != nil {
		return nil, &ModelFitError{Model: segmentModelName, Reason: "build training table", Err: err}
	}
	if len(groups) == 0 {
		return nil, &ModelFitError{Model: segmentModelName, Reason: "no training rows"}
	}

	cats := make([]string, len(groups))
	subs := make([]string, len(groups))
	for i, g := range groups {
		cats[i], subs[i] = g.Labels[0], g.Labels[1]
	}

	m := &SegmentModel{
		categories:  FitLabelEncoder(cats),
		subs:        FitLabelEncoder(subs),
		known:       make(map[models.Segment]struct{}),
		trainingLen: len(groups),
	}

	x := make([][]float64, len(groups))
	y := make([]float64, len(groups))
	for i, g := range groups {
		seg := models.Segment{Category: g.Labels[0], SubCategory: g.Labels[1]}
		bucket := models.BucketOf(g.Period)
		if bucket.Compare(m.last) > 0 {
			m.last = bucket
		}
		if _, ok := m.known[seg]; !ok {
			m.known[seg] = struct{}{}
			m.segments = append(m.segments, seg)
		}
		x[i], _ = m.features(seg, bucket)
		y[i] = g.Value
	}

	// Groups come sorted by period first; present segments by label.
	sortSegments(m.segments)

	m.model, err = r.Booster.Fit(x, y)
	if err != nil {
		return nil, &ModelFitError{Model: segmentModelName, Reason: "boosting", Err: err}
	}
	return m, nil
}

func (m *SegmentModel) features(seg models.Segment, bucket models.BucketKey) ([]float64, bool) {
	c, ok := m.categories.Encode(seg.Category)
	if !ok {
		return nil, false
	}
	s, ok := m.subs.Encode(seg.SubCategory)
	if !ok {
		return nil, false
	}
	return []float64{float64(c), float64(s), float64(bucket.Ordinal())}, true
}

// Forecast scores the h months after the last month seen in training for
// one segment. The pair must have appeared in training.
func (m *SegmentModel) Forecast(category, subCategory string, h int) (models.SegmentForecast, error) {
	seg := models.Segment{Category: category, SubCategory: subCategory}
	if _, ok := m.known[seg]; !ok {
		return models.SegmentForecast{}, &UnknownSegmentError{Segment: seg}
	}
	if h < 0 {
		return models.SegmentForecast{}, fmt.Errorf("forecast horizon must not be negative, got %d", h)
	}

	out := models.SegmentForecast{Segment: seg, Points: make([]models.ForecastPoint, h)}
	for i := 1; i <= h; i++ {
		bucket := m.last.Add(i)
		x, _ := m.features(seg, bucket)
		v, err := m.model.Predict(x)
		if err != nil {
			return models.SegmentForecast{}, err
		}
		out.Points[i-1] = models.ForecastPoint{Bucket: bucket, Value: v}
		out.Total += v
	}
	out.StockUnits = StockUnits(out.Total)
	return out, nil
}

// ForecastAll forecasts every observed segment, ordered by category then
// sub-category.
func (m *SegmentModel) ForecastAll(h int) ([]models.SegmentForecast, error) {
	out := make([]models.SegmentForecast, 0, len(m.segments))
	for _, seg := range m.segments {
		f, err := m.Forecast(seg.Category, seg.SubCategory, h)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *SegmentModel) Segments() []models.Segment {
	return append([]models.Segment(nil), m.segments...)
}

func (m *SegmentModel) Encoders() (categories, subCategories *LabelEncoder) {
	return m.categories, m.subs
}

func (m *SegmentModel) LastBucket() models.BucketKey {
	return m.last
}

func (m *SegmentModel) TrainingRows() int {
	return m.trainingLen
}

// StockUnits is the whole number of units to stock for a forecast sales
// total; negative forecasts stock nothing.
func StockUnits(total float64) int {
	if total <= 0 || math.IsNaN(total) {
		return 0
	}
	return int(total / UnitPrice)
}

// StockingMessage renders the recommendation shown next to a segment chart.
func StockingMessage(f models.SegmentForecast) string {
	return fmt.Sprintf("Stock approximately %d units of %s (%s) for the next %d months.",
		f.StockUnits, f.Segment.SubCategory, f.Segment.Category, len(f.Points))
}

// InventoryBuffer is the recommended on-hand amount for a forecast value.
func InventoryBuffer(v float64) float64 {
	return v * 1.1
}

// Recommendations applies InventoryBuffer to each point of a seasonal
// forecast.
func Recommendations(points []models.ForecastPoint) []models.Recommendation {
	out := make([]models.Recommendation, len(points))
	for i, p := range points {
		units := int(math.Round(InventoryBuffer(p.Value)))
		if units < 0 {
			units = 0
		}
		out[i] = models.Recommendation{Label: p.Bucket.String(), Units: units}
	}
	return out
}

func sortSegments(segs []models.Segment) {
	slices.SortFunc(segs, func(a, b models.Segment) int {
		if c := cmp.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return cmp.Compare(a.SubCategory, b.SubCategory)
	})
}
