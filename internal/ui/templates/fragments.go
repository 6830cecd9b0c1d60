package templates

import (
	"html/template"
	"strings"
	"time"

	"supermart-dashboard/internal/models"
	"supermart-dashboard/internal/services"
)

const maxCustomerRows = 50

var fragments = template.Must(template.New("fragments").Funcs(funcs).Parse(`
{{define "kpis"}}<div id="kpis" class="kpi-grid">
<div class="kpi"><h3>Total Sales</h3><p>{{money .TotalSales}}</p></div>
<div class="kpi"><h3>Total Profit</h3><p>{{money .TotalProfit}}</p></div>
<div class="kpi"><h3>Orders</h3><p>{{count .Orders}}</p></div>
<div class="kpi"><h3>Avg Order Value</h3><p>{{money .AvgOrderValue}}</p></div>
<div class="kpi"><h3>Avg Discount</h3><p>{{percent .AvgDiscount}}</p></div>
<div class="kpi"><h3>Customers</h3><p>{{count .Customers}}</p></div>
</div>{{end}}

{{define "status"}}<div id="status" class="status ok">Updated {{.}}</div>{{end}}

{{define "banner"}}<div id="status" class="status banner error" role="alert">{{.}}</div>{{end}}

{{define "heatmap"}}<div id="{{.ID}}">
<table class="modern-table heatmap">
<thead><tr><th></th>{{range .Data.Cols}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range $i, $row := .Data.Rows}}<tr><th>{{$row}}</th>{{range index $.Data.Values $i}}<td>{{money .}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "accuracy"}}<div id="accuracy">
{{if .}}<table class="modern-table">
<thead><tr><th>Model</th><th>MAE</th><th>RMSE</th><th>MAPE</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Model}}</td><td>{{decimal .MAE}}</td><td>{{decimal .RMSE}}</td><td>{{decimal .MAPE}}%</td></tr>
{{end}}</tbody>
</table>{{else}}<p class="muted">Not enough history to score the models.</p>{{end}}
</div>{{end}}

{{define "customers"}}<div id="customers">
<table class="modern-table">
<thead><tr><th>Customer</th><th>Recency (days)</th><th>Orders</th><th>Total Spent</th><th>CLV</th><th>Segment</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Customer}}</td>
<td>{{.RecencyDays}}</td>
<td>{{.Frequency}}</td>
<td>{{money .TotalSpent}}</td>
<td>{{money .CLV}}</td>
<td><span class="category-badge">{{.Segment}}</span></td>
</tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "recommendations"}}<div id="recommendations">
<table class="modern-table">
<thead><tr><th>Month</th><th>Recommended Units</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Label}}</td><td>{{count .Units}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}

{{define "node"}}<li><span>{{.Label}}</span> <strong>{{money .Value}}</strong>{{if .Children}}<ul>{{range .Children}}{{template "node" .}}{{end}}</ul>{{end}}</li>{{end}}

{{define "tree"}}<div id="category-tree"><ul class="tree">{{range .}}{{template "node" .}}{{end}}</ul></div>{{end}}

{{define "segments"}}<div id="segments">
<table class="modern-table">
<thead><tr><th>Category</th><th>Sub-Category</th><th>Predicted Sales</th><th>Stock Units</th></tr></thead>
<tbody>
{{range .}}<tr>
<td><span class="category-badge">{{.Segment.Category}}</span></td>
<td>{{.Segment.SubCategory}}</td>
<td>{{money .Total}}</td>
<td>{{count .StockUnits}}</td>
</tr>
<tr class="message"><td colspan="4">{{.Message}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}
`))

func execute(name string, data any) (string, error) {
	var buf strings.Builder
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func KPIs(k models.KPIs) (string, error) {
	return execute("kpis", k)
}

func Status(at time.Time) (string, error) {
	return execute("status", at.Format("15:04:05"))
}

// ErrorBanner replaces the status line so a failed refresh is visible
// without tearing down the page.
func ErrorBanner(message string) (string, error) {
	return execute("banner", message)
}

func Heatmap(id string, h models.Heatmap) (string, error) {
	return execute("heatmap", struct {
		ID   string
		Data models.Heatmap
	}{id, h})
}

func Accuracy(rows []models.Accuracy) (string, error) {
	return execute("accuracy", rows)
}

func Customers(rows []models.CustomerStat) (string, error) {
	if len(rows) > maxCustomerRows {
		rows = rows[:maxCustomerRows]
	}
	return execute("customers", rows)
}

func Recommendations(rows []models.Recommendation) (string, error) {
	return execute("recommendations", rows)
}

func CategoryTree(nodes []models.HierarchyNode) (string, error) {
	return execute("tree", nodes)
}

func Segments(rows []services.SegmentView) (string, error) {
	return execute("segments", rows)
}
