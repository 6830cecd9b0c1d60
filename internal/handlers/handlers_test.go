package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"supermart-dashboard/internal/models"
	"supermart-dashboard/internal/services"
)

var testSegments = []models.Segment{
	{Category: "Bakery", SubCategory: "Breads & Buns"},
	{Category: "Bakery", SubCategory: "Cakes"},
	{Category: "Snacks", SubCategory: "Chocolates"},
	{Category: "Snacks", SubCategory: "Cookies"},
}

var testCities = []string{"Vellore", "Ooty", "Madurai"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRows yields three years of monthly rows for four segments, starting
// January 2015.
func testRows() []models.Transaction {
	start := time.Date(2015, time.January, 10, 0, 0, 0, 0, time.UTC)
	var txs []models.Transaction
	for m := range 36 {
		base := 250 + 2.5*float64(m) + 25*math.Sin(2*math.Pi*float64(m)/12)
		for i, seg := range testSegments {
			txs = append(txs, models.Transaction{
				OrderID:      fmt.Sprintf("OD%d-%d", m, i),
				OrderDate:    start.AddDate(0, m, i),
				CustomerName: fmt.Sprintf("Customer%d", (m+i)%7),
				Region:       []string{"North", "South", "West"}[i%3],
				City:         testCities[i%3],
				Category:     seg.Category,
				SubCategory:  seg.SubCategory,
				Sales:        math.Round((base+float64(40*i))*100) / 100,
				Profit:       float64(10 + i),
				Discount:     0.1 * float64(i%3+1),
			})
		}
	}
	return txs
}

func createTestAnalytics(t *testing.T) *services.Analytics {
	t.Helper()
	opts := services.DefaultOptions("")
	opts.CacheDir = ""
	a := services.NewAnalytics(opts, quietLogger())
	if err := a.SetData(context.Background(), testRows()); err != nil {
		t.Fatalf("SetData() failed: %v", err)
	}
	return a
}

// brokenAnalytics points at a file that does not exist.
func brokenAnalytics(t *testing.T) *services.Analytics {
	opts := services.DefaultOptions(filepath.Join(t.TempDir(), "missing.csv"))
	opts.CacheDir = ""
	return services.NewAnalytics(opts, quietLogger())
}
