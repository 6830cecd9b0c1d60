package services

import (
	"supermart-dashboard/internal/aggregate"
	"supermart-dashboard/internal/forecast"
	"supermart-dashboard/internal/models"
)

const topCustomerLimit = 10

type DashboardPage struct {
	KPIs             models.KPIs            `json:"kpis"`
	SalesByCategory  []models.CategoryValue `json:"sales_by_category"`
	SalesByRegion    []models.CategoryValue `json:"sales_by_region"`
	SalesByCity      []models.CategoryValue `json:"sales_by_city"`
	DailySales       []models.DailyPoint    `json:"daily_sales"`
	MonthlySales     models.Series          `json:"monthly_sales"`
	SeasonalForecast []models.ForecastPoint `json:"seasonal_forecast"`
	SegmentMonthly   []models.ForecastPoint `json:"segment_monthly"`
}

func (b *Bundle) Dashboard() DashboardPage {
	return DashboardPage{
		KPIs:             b.KPIs,
		SalesByCategory:  aggregate.SortByValue(b.SalesByCategory, true),
		SalesByRegion:    b.SalesByRegion,
		SalesByCity:      b.SalesByCity,
		DailySales:       b.DailySales,
		MonthlySales:     b.MonthlySales,
		SeasonalForecast: b.Seasonal.Short,
		SegmentMonthly:   segmentMonthly(b.Segments),
	}
}

// segmentMonthly sums the per-segment predictions for each future month.
func segmentMonthly(segs []models.SegmentForecast) []models.ForecastPoint {
	if len(segs) == 0 {
		return []models.ForecastPoint{}
	}
	out := make([]models.ForecastPoint, len(segs[0].Points))
	for i, p := range segs[0].Points {
		out[i].Bucket = p.Bucket
	}
	for _, s := range segs {
		for i, p := range s.Points {
			out[i].Value += p.Value
		}
	}
	return out
}

type FilterOptions struct {
	Categories []string `json:"categories"`
	Cities     []string `json:"cities"`
	Years      []int    `json:"years"`
}

type SalesPage struct {
	Filter         aggregate.Filter       `json:"filter"`
	Options        FilterOptions          `json:"options"`
	KPIs           models.KPIs            `json:"kpis"`
	SubCategory    []models.CategoryValue `json:"sub_category"`
	DiscountProfit []models.ScatterPoint  `json:"discount_profit"`
	Heatmap        models.Heatmap         `json:"heatmap"`
	Accuracy       []models.Accuracy      `json:"accuracy"`
}

// Sales applies f to the bundle's rows; the unfiltered views stay cached.
func (b *Bundle) Sales(f aggregate.Filter) (SalesPage, error) {
	txs := f.Apply(b.Transactions)
	sub, err := aggregate.ByDimension(txs, aggregate.DimSubCategory, aggregate.FieldSales, aggregate.Sum)
	if err != nil {
		return SalesPage{}, err
	}
	accuracy := b.Accuracy
	if accuracy == nil {
		accuracy = []models.Accuracy{}
	}
	return SalesPage{
		Filter:         f,
		Options:        FilterOptions{Categories: b.Categories, Cities: b.Cities, Years: b.Years},
		KPIs:           aggregate.Totals(txs),
		SubCategory:    aggregate.SortByValue(sub, false),
		DiscountProfit: aggregate.DiscountProfit(txs),
		Heatmap:        aggregate.WeekdayMonthHeatmap(txs),
		Accuracy:       accuracy,
	}, nil
}

type CustomerPage struct {
	Customers     []models.CustomerStat  `json:"customers"`
	TopCustomers  []models.CustomerStat  `json:"top_customers"`
	SegmentCounts []models.CategoryValue `json:"segment_counts"`
}

func (b *Bundle) CustomerInsights() CustomerPage {
	return CustomerPage{
		Customers:     b.Customers,
		TopCustomers:  aggregate.TopCustomers(b.Customers, topCustomerLimit),
		SegmentCounts: aggregate.SegmentCounts(b.Customers),
	}
}

type GeoPage struct {
	DailySales         []models.DailyPoint     `json:"daily_sales"`
	MonthlySales       models.Series           `json:"monthly_sales"`
	SeasonalForecast   []models.ForecastPoint  `json:"seasonal_forecast"`
	SalesBySubCategory []models.CategoryValue  `json:"sales_by_sub_category"`
	SalesByDiscount    []models.CategoryValue  `json:"sales_by_discount"`
	SalesByRegion      []models.CategoryValue  `json:"sales_by_region"`
	RegionByYear       models.Heatmap          `json:"region_by_year"`
	SalesByCity        []models.CategoryValue  `json:"sales_by_city"`
	Recommendations    []models.Recommendation `json:"recommendations"`
}

func (b *Bundle) GeoForecast() GeoPage {
	return GeoPage{
		DailySales:         b.DailySales,
		MonthlySales:       b.MonthlySales,
		SeasonalForecast:   b.Seasonal.Long,
		SalesBySubCategory: b.SalesBySubCategory,
		SalesByDiscount:    b.SalesByDiscount,
		SalesByRegion:      b.SalesByRegion,
		RegionByYear:       b.RegionByYear,
		SalesByCity:        aggregate.SortByValue(b.SalesByCity, true),
		Recommendations:    b.Recommendations,
	}
}

type SegmentView struct {
	models.SegmentForecast
	Message string `json:"message"`
}

type CategoryPage struct {
	KPIs             models.KPIs            `json:"kpis"`
	MonthlySales     models.Series          `json:"monthly_sales"`
	SalesByRegion    []models.CategoryValue `json:"sales_by_region"`
	SalesByCategory  []models.CategoryValue `json:"sales_by_category"`
	CategoryTree     []models.HierarchyNode `json:"category_tree"`
	SeasonalForecast []models.ForecastPoint `json:"seasonal_forecast"`
	Segments         []SegmentView          `json:"segments"`
}

func (b *Bundle) CategoryPredictions() CategoryPage {
	segs := make([]SegmentView, len(b.Segments))
	for i, s := range b.Segments {
		segs[i] = NewSegmentView(s)
	}
	return CategoryPage{
		KPIs:             b.KPIs,
		MonthlySales:     b.MonthlySales,
		SalesByRegion:    b.SalesByRegion,
		SalesByCategory:  b.SalesByCategory,
		CategoryTree:     b.CategoryTree,
		SeasonalForecast: b.Seasonal.Short,
		Segments:         segs,
	}
}

func NewSegmentView(s models.SegmentForecast) SegmentView {
	return SegmentView{SegmentForecast: s, Message: forecast.StockingMessage(s)}
}
