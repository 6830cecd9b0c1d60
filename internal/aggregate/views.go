package aggregate

import (
	"cmp"
	"math"
	"slices"
	"time"

	"supermart-dashboard/internal/models"
)

func ByDimension(txs []models.Transaction, dim Dimension, field Field, r Reduction) ([]models.CategoryValue, error) {
	groups, err := GroupBy(txs, Spec{Keys: []Dimension{dim}, Field: field, Reduce: r})
	if err != nil {
		return nil, err
	}
	out := make([]models.CategoryValue, len(groups))
	for i, g := range groups {
		out[i] = models.CategoryValue{Label: g.Labels[0], Value: g.Value}
	}
	return out, nil
}

// Monthly returns one point per month that has at least one transaction,
// strictly ascending. Empty months are not synthesized.
func Monthly(txs []models.Transaction, field Field, r Reduction) (models.Series, error) {
	groups, err := GroupBy(txs, Spec{Bucket: ByMonth, Field: field, Reduce: r})
	if err != nil {
		return nil, err
	}
	series := make(models.Series, len(groups))
	for i, g := range groups {
		series[i] = models.SeriesPoint{Bucket: models.BucketOf(g.Period), Value: g.Value}
	}
	return series, nil
}

func Daily(txs []models.Transaction, field Field, r Reduction) ([]models.DailyPoint, error) {
	groups, err := GroupBy(txs, Spec{Bucket: ByDay, Field: field, Reduce: r})
	if err != nil {
		return nil, err
	}
	out := make([]models.DailyPoint, len(groups))
	for i, g := range groups {
		out[i] = models.DailyPoint{Date: g.Period.Format(time.DateOnly), Value: g.Value}
	}
	return out, nil
}

// Hierarchy nests sub-categories under their category for drill-down
// charts. Parent values use the same reduction over the parent's rows.
func Hierarchy(txs []models.Transaction, field Field, r Reduction) ([]models.HierarchyNode, error) {
	parents, err := GroupBy(txs, Spec{Keys: []Dimension{DimCategory}, Field: field, Reduce: r})
	if err != nil {
		return nil, err
	}
	children, err := GroupBy(txs, Spec{Keys: []Dimension{DimCategory, DimSubCategory}, Field: field, Reduce: r})
	if err != nil {
		return nil, err
	}

	nodes := make([]models.HierarchyNode, len(parents))
	index := make(map[string]int, len(parents))
	for i, p := range parents {
		nodes[i] = models.HierarchyNode{Label: p.Labels[0], Value: p.Value}
		index[p.Labels[0]] = i
	}
	for _, c := range children {
		i := index[c.Labels[0]]
		nodes[i].Children = append(nodes[i].Children, models.HierarchyNode{Label: c.Labels[1], Value: c.Value})
	}
	return nodes, nil
}

// YearMatrix returns values per (dimension label, year), e.g. region sales
// by year. Missing cells are zero because this is a matrix view.
func YearMatrix(txs []models.Transaction, dim Dimension, field Field, r Reduction) (models.Heatmap, error) {
	groups, err := GroupBy(txs, Spec{Keys: []Dimension{dim}, Bucket: ByYear, Field: field, Reduce: r})
	if err != nil {
		return models.Heatmap{}, err
	}

	var rows, cols []string
	for _, g := range groups {
		year := g.Period.Format("2006")
		if !slices.Contains(cols, year) {
			cols = append(cols, year)
		}
		if !slices.Contains(rows, g.Labels[0]) {
			rows = append(rows, g.Labels[0])
		}
	}
	slices.Sort(rows)
	slices.Sort(cols)

	values := make([][]float64, len(rows))
	for i := range values {
		values[i] = make([]float64, len(cols))
	}
	for _, g := range groups {
		ri, _ := slices.BinarySearch(rows, g.Labels[0])
		ci, _ := slices.BinarySearch(cols, g.Period.Format("2006"))
		values[ri][ci] = g.Value
	}
	return models.Heatmap{Rows: rows, Cols: cols, Values: values}, nil
}

func Totals(txs []models.Transaction) models.KPIs {
	sales, _ := Reduce(txs, FieldSales, Sum)
	profit, _ := Reduce(txs, FieldProfit, Sum)
	discount, _ := Reduce(txs, FieldDiscount, Mean)
	orders, _ := Reduce(txs, FieldOrderID, NUnique)
	customers, _ := Reduce(txs, FieldCustomer, NUnique)

	kpis := models.KPIs{
		TotalSales:      sales,
		TotalProfit:     profit,
		Orders:          int(orders),
		AvgDiscount:     discount,
		Customers:       int(customers),
		TransactionRows: len(txs),
	}
	if kpis.Orders > 0 {
		kpis.AvgOrderValue = sales / orders
	}
	return kpis
}

// Filter narrows the table the way the sales-analysis page does. Zero
// values mean "no constraint".
type Filter struct {
	Category    string   `json:"category"`
	City        string   `json:"city"`
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	MinDiscount *float64 `json:"min_discount"`
	MaxDiscount *float64 `json:"max_discount"`
}

func (f Filter) Match(tx *models.Transaction) bool {
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.City != "" && tx.City != f.City {
		return false
	}
	if f.Year != 0 && tx.OrderDate.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(tx.OrderDate.Month()) != f.Month {
		return false
	}
	if f.MinDiscount != nil && tx.Discount < *f.MinDiscount {
		return false
	}
	if f.MaxDiscount != nil && tx.Discount > *f.MaxDiscount {
		return false
	}
	return true
}

func (f Filter) Apply(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		if f.Match(&txs[i]) {
			out = append(out, txs[i])
		}
	}
	return out
}

func Distinct(txs []models.Transaction, dim Dimension) []string {
	seen := make(map[string]struct{})
	for i := range txs {
		seen[dim.label(&txs[i])] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

var (
	monetaryEdges  = []float64{0, 50, 100, 200, 500, math.Inf(1)}
	monetaryLabels = []string{"Very Low Spender", "Low Spender", "Medium Spender", "High Spender", "Very High Spender"}
)

// MonetarySegment bins total spend into right-closed intervals
// (0,50], (50,100], (100,200], (200,500], (500,inf). Spend at or below zero
// has no segment.
func MonetarySegment(total float64) string {
	for i := 1; i < len(monetaryEdges); i++ {
		if total > monetaryEdges[i-1] && total <= monetaryEdges[i] {
			return monetaryLabels[i-1]
		}
	}
	return ""
}

// CustomerRFM computes recency, frequency and monetary value per customer.
// Recency counts days from the customer's latest order to the latest order
// in txs.
func CustomerRFM(txs []models.Transaction) []models.CustomerStat {
	if len(txs) == 0 {
		return []models.CustomerStat{}
	}

	var latest time.Time
	for i := range txs {
		if txs[i].OrderDate.After(latest) {
			latest = txs[i].OrderDate
		}
	}

	type acc struct {
		last   time.Time
		orders int
		spent  float64
	}
	customers := make(map[string]*acc)
	for i := range txs {
		tx := &txs[i]
		a, ok := customers[tx.CustomerName]
		if !ok {
			a = &acc{}
			customers[tx.CustomerName] = a
		}
		a.orders++
		a.spent += tx.Sales
		if tx.OrderDate.After(a.last) {
			a.last = tx.OrderDate
		}
	}

	out := make([]models.CustomerStat, 0, len(customers))
	for name, a := range customers {
		out = append(out, models.CustomerStat{
			Customer:    name,
			RecencyDays: int(latest.Sub(a.last).Hours() / 24),
			Frequency:   a.orders,
			TotalSpent:  a.spent,
			CLV:         a.spent * float64(a.orders),
			Segment:     MonetarySegment(a.spent),
		})
	}
	slices.SortFunc(out, func(a, b models.CustomerStat) int {
		return cmp.Compare(a.Customer, b.Customer)
	})
	return out
}

func TopCustomers(stats []models.CustomerStat, limit int) []models.CustomerStat {
	out := slices.Clone(stats)
	slices.SortStableFunc(out, func(a, b models.CustomerStat) int {
		return cmp.Compare(b.TotalSpent, a.TotalSpent)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// WeekdayMonthHeatmap sums sales per (weekday, calendar month).
func WeekdayMonthHeatmap(txs []models.Transaction) models.Heatmap {
	hm := models.Heatmap{
		Rows:   make([]string, len(weekdayOrder)),
		Cols:   make([]string, 12),
		Values: make([][]float64, len(weekdayOrder)),
	}
	row := make(map[string]int, len(weekdayOrder))
	for i, d := range weekdayOrder {
		hm.Rows[i] = d.String()
		hm.Values[i] = make([]float64, 12)
		row[d.String()] = i
	}
	for m := range 12 {
		hm.Cols[m] = time.Month(m + 1).String()[:3]
	}

	groups, _ := GroupBy(txs, Spec{Keys: []Dimension{DimWeekday}, Bucket: ByMonth, Field: FieldSales, Reduce: Sum})
	for _, g := range groups {
		hm.Values[row[g.Labels[0]]][int(g.Period.Month())-1] += g.Value
	}
	return hm
}

func DiscountProfit(txs []models.Transaction) []models.ScatterPoint {
	out := make([]models.ScatterPoint, len(txs))
	for i := range txs {
		tx := &txs[i]
		out[i] = models.ScatterPoint{
			X:        tx.Discount,
			Y:        tx.Profit,
			Size:     tx.Sales,
			Category: tx.Category,
			Label:    tx.City + " / " + tx.SubCategory,
		}
	}
	return out
}

func Years(txs []models.Transaction) []int {
	seen := make(map[int]struct{})
	for i := range txs {
		seen[txs[i].OrderDate.Year()] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

// SegmentCounts counts customers per monetary segment, lowest spenders first.
func SegmentCounts(stats []models.CustomerStat) []models.CategoryValue {
	counts := make(map[string]int, len(monetaryLabels))
	for _, s := range stats {
		counts[s.Segment]++
	}
	out := make([]models.CategoryValue, 0, len(monetaryLabels))
	for _, label := range monetaryLabels {
		out = append(out, models.CategoryValue{Label: label, Value: float64(counts[label])})
	}
	return out
}
