package templates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermart-dashboard/internal/models"
	"supermart-dashboard/internal/services"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "₹1,151.15", Money(1151.15))
	assert.Equal(t, "₹0.00", Money(0))
	assert.Equal(t, "12,345", Count(12345))
	assert.Equal(t, "22.5%", Percent(0.225))
}

func TestPage_SalesShell(t *testing.T) {
	var b strings.Builder
	v := PageView{
		Frame: Frame{Title: "Sales", Viewer: &Viewer{Name: "Asha", Role: "analyst"}},
		Page: PageInfo{
			Key:    "sales",
			Prefix: "/sales/",
			Title:  "Supermart Grocery Sales Dashboard",
			Charts: []Chart{{ID: "sales-subcategory", Title: "Sales by Sub-Category"}},
			Panels: []Panel{{ID: "accuracy", Title: "Model accuracy"}},
		},
		Filter: &FilterChoices{Categories: []string{"Bakery"}, Cities: []string{"Ooty"}, Years: []int{2016}},
	}
	require.NoError(t, Page(v).Render(context.Background(), &b))
	html := b.String()

	assert.Contains(t, html, `data-init="@get(&#39;/sales/sse&#39;)"`)
	assert.Contains(t, html, `canvas id="sales-subcategory"`)
	assert.Contains(t, html, `<div id="accuracy"></div>`)
	assert.Contains(t, html, `<option value="Bakery">Bakery</option>`)
	assert.Contains(t, html, `<option value="2016">2016</option>`)
	assert.Contains(t, html, `data-bind="filter.min_discount"`)
	assert.Contains(t, html, "Asha (analyst)")
}

func TestPage_NoFilter(t *testing.T) {
	var b strings.Builder
	v := PageView{
		Frame: Frame{Title: "Customers", Viewer: &Viewer{Name: "Asha", Role: "analyst"}},
		Page:  PageInfo{Key: "customer", Prefix: "/customer/"},
	}
	require.NoError(t, Page(v).Render(context.Background(), &b))
	assert.NotContains(t, b.String(), "filter.category")
	assert.Equal(t, "{_customer: {}}", v.Signals())
}

func TestForms(t *testing.T) {
	var login strings.Builder
	require.NoError(t, Login(FormView{
		Frame:   Frame{Title: "Login"},
		Action:  "/login",
		Next:    "/sales/",
		Message: "Invalid email or password",
		Values:  map[string]string{"email": "a@b.co"},
	}).Render(context.Background(), &login))
	assert.Contains(t, login.String(), `value="/sales/"`)
	assert.Contains(t, login.String(), "Invalid email or password")
	assert.NotContains(t, login.String(), `name="role"`)

	var signup strings.Builder
	require.NoError(t, Signup(FormView{
		Frame:  Frame{Title: "Sign up"},
		Action: "/signup",
		Roles:  []string{"admin", "analyst"},
		Values: map[string]string{"role": "analyst"},
		Errors: map[string]string{"password": "password must be at least 8 characters"},
	}).Render(context.Background(), &signup))
	assert.Contains(t, signup.String(), `<option value="analyst" selected>analyst</option>`)
	assert.Contains(t, signup.String(), "password must be at least 8 characters")
}

func TestFragments(t *testing.T) {
	kpis, err := KPIs(models.KPIs{TotalSales: 1234567.891, Orders: 9994, AvgDiscount: 0.2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kpis, `<div id="kpis"`))
	assert.Contains(t, kpis, "₹1,234,567.89")
	assert.Contains(t, kpis, "9,994")
	assert.Contains(t, kpis, "20.0%")

	banner, err := ErrorBanner("Sales data is unavailable: <missing>")
	require.NoError(t, err)
	assert.Contains(t, banner, `id="status"`)
	assert.Contains(t, banner, "&lt;missing&gt;")

	status, err := Status(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, status, "Updated 15:04:05")

	segs, err := Segments([]services.SegmentView{{
		SegmentForecast: models.SegmentForecast{
			Segment:    models.Segment{Category: "Bakery", SubCategory: "Cakes"},
			Total:      2500,
			StockUnits: 25,
		},
		Message: "Stock approximately 25 units of Cakes (Bakery) for the next 3 months.",
	}})
	require.NoError(t, err)
	assert.Contains(t, segs, "₹2,500.00")
	assert.Contains(t, segs, "Stock approximately 25 units")

	heat, err := Heatmap("heatmap", models.Heatmap{Rows: []string{"Mon"}, Cols: []string{"Jan"}, Values: [][]float64{{10}}})
	require.NoError(t, err)
	assert.Contains(t, heat, "<th>Mon</th><td>₹10.00</td>")

	empty, err := Accuracy(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, "Not enough history")

	tree, err := CategoryTree([]models.HierarchyNode{{Label: "Bakery", Value: 30, Children: []models.HierarchyNode{{Label: "Cakes", Value: 30}}}})
	require.NoError(t, err)
	assert.Contains(t, tree, "<ul><li><span>Cakes</span>")
}

func TestStatic(t *testing.T) {
	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/charts.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "window.supermart")
}
