package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"supermart-dashboard/internal/aggregate"
	"supermart-dashboard/internal/forecast"
	"supermart-dashboard/internal/models"
)

// Fingerprint identifies the source a bundle was built from. Size and
// ModTime are a cheap staleness check; Hash is the authoritative key.
type Fingerprint struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Hash    string    `json:"hash"`
}

type SeasonalForecast struct {
	Alpha float64                `json:"alpha"`
	Beta  float64                `json:"beta"`
	Gamma float64                `json:"gamma"`
	Short []models.ForecastPoint `json:"short"`
	Long  []models.ForecastPoint `json:"long"`
}

// Bundle is every aggregate and forecast the pages read. It is never
// mutated after it is built.
type Bundle struct {
	Fingerprint Fingerprint
	BuiltAt     time.Time
	Rows        int
	Dropped     int

	Transactions []models.Transaction

	KPIs               models.KPIs
	MonthlySales       models.Series
	DailySales         []models.DailyPoint
	SalesByCategory    []models.CategoryValue
	ProfitByCategory   []models.CategoryValue
	SalesByRegion      []models.CategoryValue
	SalesByCity        []models.CategoryValue
	SalesBySubCategory []models.CategoryValue
	SalesByDiscount    []models.CategoryValue
	CategoryTree       []models.HierarchyNode
	RegionByYear       models.Heatmap
	Customers          []models.CustomerStat

	Seasonal        SeasonalForecast
	Recommendations []models.Recommendation
	Segments        []models.SegmentForecast
	Accuracy        []models.Accuracy

	Categories []string
	Cities     []string
	Years      []int
}

// Segment returns the stored forecast for one (category, sub-category) pair.
func (b *Bundle) Segment(category, subCategory string) (models.SegmentForecast, error) {
	for _, s := range b.Segments {
		if s.Segment.Category == category && s.Segment.SubCategory == subCategory {
			return s, nil
		}
	}
	return models.SegmentForecast{}, &forecast.UnknownSegmentError{
		Segment: models.Segment{Category: category, SubCategory: subCategory},
	}
}

// build runs aggregate -> fit -> predict. Both models must fit; holdout
// accuracy is best effort.
func (a *Analytics) build(ctx context.Context, txs []models.Transaction) (*Bundle, error) {
	start := time.Now()
	b := &Bundle{
		BuiltAt:      time.Now(),
		Rows:         len(txs),
		Transactions: txs,
	}

	if err := fillViews(b, txs); err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	a.metrics.RecordStage("aggregate", time.Since(start).Seconds())

	hw := forecast.HoltWinters{Period: a.opts.SeasonLength}
	seg := forecast.SegmentRegressor{Booster: a.opts.Booster}

	fitStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := hw.Fit(b.MonthlySales)
		if err != nil {
			return err
		}
		b.Seasonal.Alpha, b.Seasonal.Beta, b.Seasonal.Gamma = m.Alpha, m.Beta, m.Gamma
		if b.Seasonal.Short, err = m.Forecast(a.opts.SeasonalShort); err != nil {
			return err
		}
		if b.Seasonal.Long, err = m.Forecast(a.opts.SeasonalLong); err != nil {
			return err
		}
		b.Recommendations = forecast.Recommendations(b.Seasonal.Short)
		return gctx.Err()
	})
	g.Go(func() error {
		m, err := seg.Fit(txs)
		if err != nil {
			return err
		}
		b.Segments, err = m.ForecastAll(a.opts.SegmentSteps)
		if err != nil {
			return err
		}
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.metrics.RecordStage("fit", time.Since(fitStart).Seconds())

	b.Accuracy = a.holdout(b.MonthlySales, txs)
	return b, nil
}

func fillViews(b *Bundle, txs []models.Transaction) error {
	var err error
	b.KPIs = aggregate.Totals(txs)

	if b.MonthlySales, err = aggregate.Monthly(txs, aggregate.FieldSales, aggregate.Sum); err != nil {
		return err
	}
	if b.DailySales, err = aggregate.Daily(txs, aggregate.FieldSales, aggregate.Sum); err != nil {
		return err
	}

	byDim := []struct {
		dst   *[]models.CategoryValue
		dim   aggregate.Dimension
		field aggregate.Field
	}{
		{&b.SalesByCategory, aggregate.DimCategory, aggregate.FieldSales},
		{&b.ProfitByCategory, aggregate.DimCategory, aggregate.FieldProfit},
		{&b.SalesByRegion, aggregate.DimRegion, aggregate.FieldSales},
		{&b.SalesByCity, aggregate.DimCity, aggregate.FieldSales},
		{&b.SalesBySubCategory, aggregate.DimSubCategory, aggregate.FieldSales},
		{&b.SalesByDiscount, aggregate.DimDiscount, aggregate.FieldSales},
	}
	for _, v := range byDim {
		if *v.dst, err = aggregate.ByDimension(txs, v.dim, v.field, aggregate.Sum); err != nil {
			return err
		}
	}

	if b.CategoryTree, err = aggregate.Hierarchy(txs, aggregate.FieldSales, aggregate.Sum); err != nil {
		return err
	}
	if b.RegionByYear, err = aggregate.YearMatrix(txs, aggregate.DimRegion, aggregate.FieldSales, aggregate.Sum); err != nil {
		return err
	}

	b.Customers = aggregate.CustomerRFM(txs)
	b.Categories = aggregate.Distinct(txs, aggregate.DimCategory)
	b.Cities = aggregate.Distinct(txs, aggregate.DimCity)
	b.Years = aggregate.Years(txs)
	return nil
}

func (a *Analytics) holdout(monthly models.Series, txs []models.Transaction) []models.Accuracy {
	h := a.opts.HoldoutMonths
	if h <= 0 {
		return nil
	}

	var out []models.Accuracy
	hwAcc, err := forecast.HoltWinters{Period: a.opts.SeasonLength}.Holdout(monthly, h)
	out = a.keepAccuracy(out, hwAcc, err)
	segAcc, err := forecast.SegmentRegressor{Booster: a.opts.Booster}.Holdout(txs, h)
	out = a.keepAccuracy(out, segAcc, err)
	return out
}

func (a *Analytics) keepAccuracy(out []models.Accuracy, acc models.Accuracy, err error) []models.Accuracy {
	if err != nil {
		var fitErr *forecast.ModelFitError
		if errors.As(err, &fitErr) {
			a.logger.Debug("holdout skipped", "model", fitErr.Model, "reason", fitErr.Reason)
		} else {
			a.logger.Debug("holdout skipped", "error", err)
		}
		return out
	}
	for _, v := range []float64{acc.MAE, acc.RMSE, acc.MAPE} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return out
		}
	}
	return append(out, acc)
}
