package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"supermart-dashboard/internal/aggregate"
	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/errors"
	"supermart-dashboard/internal/observability"
	"supermart-dashboard/internal/services"
	"supermart-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	pageCache     = "private, no-cache"
	apiCache      = "private, max-age=60"
)

const (
	PageDashboard = "dashboard"
	PageSales     = "sales"
	PageCustomer  = "customer"
	PageGeo       = "geo_forecast"
	PageCategory  = "category"
)

// Pages lists the dashboards in navigation order. Chart IDs match the
// renderers in static/charts.js.
var Pages = []templates.PageInfo{
	{
		Key:     PageDashboard,
		Prefix:  "/dashboard/",
		Title:   "Product Demand Forecast Dashboard",
		Summary: "Headline KPIs, monthly sales with seasonal and segment forecasts.",
		Charts: []templates.Chart{
			{ID: "dash-monthly", Title: "Monthly Sales and Forecast", Wide: true},
			{ID: "dash-category", Title: "Sales by Category"},
			{ID: "dash-region", Title: "Sales by Region"},
			{ID: "dash-city", Title: "Sales by City"},
			{ID: "dash-daily", Title: "Daily Sales", Wide: true},
		},
		Panels: []templates.Panel{{ID: "kpis", Title: "Key Figures"}},
	},
	{
		Key:     PageSales,
		Prefix:  "/sales/",
		Title:   "Supermart Grocery Sales Dashboard",
		Summary: "Filterable sales by sub-category, discount against profit, weekday heatmap.",
		Charts: []templates.Chart{
			{ID: "sales-subcategory", Title: "Sales by Sub-Category"},
			{ID: "sales-discount", Title: "Discount vs Profit"},
		},
		Panels: []templates.Panel{
			{ID: "kpis", Title: "Key Figures"},
			{ID: "heatmap", Title: "Sales by Weekday and Month"},
			{ID: "accuracy", Title: "Forecast Accuracy"},
		},
	},
	{
		Key:     PageCustomer,
		Prefix:  "/customer/",
		Title:   "Customer Insights",
		Summary: "Recency, frequency and spend per customer with value segments.",
		Charts: []templates.Chart{
			{ID: "cust-segments", Title: "Customer Segments"},
			{ID: "cust-top", Title: "Top Customers"},
			{ID: "cust-rfm", Title: "Recency vs Spend", Wide: true},
		},
		Panels: []templates.Panel{{ID: "customers", Title: "Customers"}},
	},
	{
		Key:     PageGeo,
		Prefix:  "/geo_forecast/",
		Title:   "Supermart Sales Dashboard",
		Summary: "Twelve-month forecast, regional and city breakdowns, inventory recommendations.",
		Charts: []templates.Chart{
			{ID: "geo-monthly", Title: "Sales Forecast", Wide: true},
			{ID: "geo-daily", Title: "Daily Sales"},
			{ID: "geo-subcategory", Title: "Sales by Sub-Category"},
			{ID: "geo-discount", Title: "Sales by Discount"},
			{ID: "geo-region", Title: "Sales by Region"},
			{ID: "geo-city", Title: "Sales by City"},
		},
		Panels: []templates.Panel{
			{ID: "recommendations", Title: "Inventory Recommendations"},
			{ID: "region-year", Title: "Region Sales by Year"},
		},
	},
	{
		Key:     PageCategory,
		Prefix:  "/category/",
		Title:   "Category-Wise Sales Dashboard",
		Summary: "Category hierarchy and per sub-category predictions with stocking advice.",
		Charts: []templates.Chart{
			{ID: "cat-monthly", Title: "Monthly Sales and Forecast", Wide: true},
			{ID: "cat-region", Title: "Sales by Region"},
			{ID: "cat-category", Title: "Sales by Category"},
			{ID: "cat-segments", Title: "Predicted Sales by Segment", Wide: true},
		},
		Panels: []templates.Panel{
			{ID: "kpis", Title: "Key Figures"},
			{ID: "category-tree", Title: "Category Hierarchy"},
			{ID: "segments", Title: "Segment Predictions"},
		},
	},
}

type PageHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	now       func() time.Time
}

func NewPageHandlers(analytics *services.Analytics, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleShell renders the page skeleton; charts fill in from the feed.
func (h *PageHandlers) HandleShell(page templates.PageInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		view := templates.PageView{
			Frame: frame(r, page.Title),
			Page:  page,
		}
		if page.Key == PageSales {
			view.Filter = h.filterChoices(ctx)
		}

		w.Header().Set("Cache-Control", pageCache)
		if err := templates.Page(view).Render(ctx, w); err != nil {
			h.logger.Error("render page", "page", page.Key, "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// HandleFeed streams the page view as datastar signals plus the
// server-rendered panels. A pipeline failure becomes an in-page banner.
func (h *PageHandlers) HandleFeed(page templates.PageInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := observability.RequestLogger(r.Context(), h.logger).With("page", page.Key)
		view, err := h.view(r, page.Key)

		sse := datastar.NewSSE(w, r)
		if err != nil {
			patchError(sse, logger, err)
			return
		}

		signals, err := json.Marshal(map[string]any{page.Signal(): view})
		if err != nil {
			logger.Error("marshal page view", "error", err)
			patchError(sse, logger, err)
			return
		}
		if err := sse.PatchSignals(signals); err != nil {
			logger.Debug("patch signals", "error", err)
			return
		}

		panels, err := renderPanels(view)
		if err != nil {
			logger.Error("render panels", "error", err)
			patchError(sse, logger, err)
			return
		}
		status, err := templates.Status(h.now())
		if err != nil {
			logger.Error("render status", "error", err)
			return
		}
		for _, html := range append(panels, status) {
			if err := sse.PatchElements(html); err != nil {
				logger.Debug("patch elements", "error", err)
				return
			}
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// HandleJSON serves the same view the feed streams.
func (h *PageHandlers) HandleJSON(page templates.PageInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.view(r, page.Key)
		if err != nil {
			errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
			return
		}

		headers := map[string]string{
			"Cache-Control": apiCache,
		}

		errors.WriteSuccessWithHeaders(w, view, headers)
	}
}

func (h *PageHandlers) view(r *http.Request, key string) (any, error) {
	var filter aggregate.Filter
	if key == PageSales {
		f, err := salesFilter(r)
		if err != nil {
			return nil, err
		}
		filter = f
	}

	bundle, err := h.analytics.Bundle(r.Context())
	if err != nil {
		return nil, err
	}

	switch key {
	case PageDashboard:
		return bundle.Dashboard(), nil
	case PageSales:
		return bundle.Sales(filter)
	case PageCustomer:
		return bundle.CustomerInsights(), nil
	case PageGeo:
		return bundle.GeoForecast(), nil
	case PageCategory:
		return bundle.CategoryPredictions(), nil
	}
	return nil, errors.NotFound("Unknown page " + key)
}

func patchError(sse *datastar.ServerSentEventGenerator, logger *slog.Logger, err error) {
	appErr := errors.FromError(err)
	logger.Warn("page feed failed",
		"error_code", appErr.Code,
		"error", err,
	)

	banner, renderErr := templates.ErrorBanner(appErr.Message)
	if renderErr != nil {
		logger.Error("render error banner", "error", renderErr)
		return
	}
	if err := sse.PatchElements(banner); err != nil {
		logger.Debug("patch error banner", "error", err)
	}
}

// filterChoices feeds the sales filter dropdowns. The shell still renders
// when the data is unavailable; the feed reports the failure.
func (h *PageHandlers) filterChoices(ctx context.Context) *templates.FilterChoices {
	bundle, err := h.analytics.Bundle(ctx)
	if err != nil {
		h.logger.Debug("filter choices unavailable", "error", err)
		return &templates.FilterChoices{}
	}
	return &templates.FilterChoices{
		Categories: bundle.Categories,
		Cities:     bundle.Cities,
		Years:      bundle.Years,
	}
}

func renderPanels(view any) ([]string, error) {
	var renders []func() (string, error)
	switch v := view.(type) {
	case services.DashboardPage:
		renders = append(renders, func() (string, error) { return templates.KPIs(v.KPIs) })
	case services.SalesPage:
		renders = append(renders,
			func() (string, error) { return templates.KPIs(v.KPIs) },
			func() (string, error) { return templates.Heatmap("heatmap", v.Heatmap) },
			func() (string, error) { return templates.Accuracy(v.Accuracy) },
		)
	case services.CustomerPage:
		renders = append(renders, func() (string, error) { return templates.Customers(v.Customers) })
	case services.GeoPage:
		renders = append(renders,
			func() (string, error) { return templates.Recommendations(v.Recommendations) },
			func() (string, error) { return templates.Heatmap("region-year", v.RegionByYear) },
		)
	case services.CategoryPage:
		renders = append(renders,
			func() (string, error) { return templates.KPIs(v.KPIs) },
			func() (string, error) { return templates.CategoryTree(v.CategoryTree) },
			func() (string, error) { return templates.Segments(v.Segments) },
		)
	}

	out := make([]string, 0, len(renders))
	for _, render := range renders {
		html, err := render()
		if err != nil {
			return nil, err
		}
		out = append(out, html)
	}
	return out, nil
}

func frame(r *http.Request, title string) templates.Frame {
	f := templates.Frame{Title: title}
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		f.Viewer = &templates.Viewer{Name: c.Name, Email: c.Email, Role: c.Role}
	}
	return f
}
