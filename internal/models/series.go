package models

import (
	"cmp"
	"fmt"
	"time"
)

// BucketKey identifies one calendar month.
type BucketKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func BucketOf(t time.Time) BucketKey {
	return BucketKey{Year: t.Year(), Month: t.Month()}
}

// Ordinal counts months since year zero; consecutive months differ by one.
func (k BucketKey) Ordinal() int {
	return k.Year*12 + int(k.Month) - 1
}

func BucketFromOrdinal(ord int) BucketKey {
	return BucketKey{Year: ord / 12, Month: time.Month(ord%12 + 1)}
}

func (k BucketKey) Add(months int) BucketKey {
	return BucketFromOrdinal(k.Ordinal() + months)
}

func (k BucketKey) Compare(o BucketKey) int {
	return cmp.Compare(k.Ordinal(), o.Ordinal())
}

func (k BucketKey) Time() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k BucketKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *BucketKey) UnmarshalText(b []byte) error {
	t, err := time.Parse("2006-01", string(b))
	if err != nil {
		return fmt.Errorf("bucket key %q: %w", b, err)
	}
	*k = BucketOf(t)
	return nil
}

type SeriesPoint struct {
	Bucket BucketKey `json:"month"`
	Value  float64   `json:"value"`
}

// Series is ordered ascending by bucket.
type Series []SeriesPoint

func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

func (s Series) Last() (SeriesPoint, bool) {
	if len(s) == 0 {
		return SeriesPoint{}, false
	}
	return s[len(s)-1], true
}

type ForecastPoint struct {
	Bucket BucketKey `json:"month"`
	Value  float64   `json:"value"`
}

type SegmentForecast struct {
	Segment    Segment         `json:"segment"`
	Points     []ForecastPoint `json:"points"`
	Total      float64         `json:"total"`
	StockUnits int             `json:"stock_units"`
}

type DailyPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}
