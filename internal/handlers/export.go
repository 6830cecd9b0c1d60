package handlers

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"

	"supermart-dashboard/internal/errors"
	"supermart-dashboard/internal/observability"
	"supermart-dashboard/internal/services"
)

const (
	sheetMonthly  = "Monthly Sales"
	sheetCategory = "Categories"
	sheetSeasonal = "Seasonal Forecast"
	sheetSegments = "Segment Forecast"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HandleExport downloads the current aggregates and forecasts as a workbook.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	bundle, err := h.analytics.Bundle(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	f, err := Workbook(bundle)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Could not build the workbook"), requestID)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="supermart-forecast.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("write workbook", "error", err, "request_id", requestID)
	}
}

// Workbook lays the bundle out as one sheet per view.
func Workbook(b *services.Bundle) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), sheetMonthly); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{sheetCategory, sheetSeasonal, sheetSegments} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheets := map[string][][]any{
		sheetMonthly:  monthlyRows(b),
		sheetCategory: categoryRows(b),
		sheetSeasonal: seasonalRows(b),
		sheetSegments: segmentRows(b),
	}
	for name, rows := range sheets {
		if err := writeRows(f, name, rows, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func monthlyRows(b *services.Bundle) [][]any {
	rows := [][]any{{"Month", "Sales"}}
	for _, p := range b.MonthlySales {
		rows = append(rows, []any{p.Bucket.String(), p.Value})
	}
	return rows
}

func categoryRows(b *services.Bundle) [][]any {
	profit := make(map[string]float64, len(b.ProfitByCategory))
	for _, c := range b.ProfitByCategory {
		profit[c.Label] = c.Value
	}
	rows := [][]any{{"Category", "Sales", "Profit"}}
	for _, c := range b.SalesByCategory {
		rows = append(rows, []any{c.Label, c.Value, profit[c.Label]})
	}
	return rows
}

func seasonalRows(b *services.Bundle) [][]any {
	rows := [][]any{{"Month", "Forecast Sales"}}
	for _, p := range b.Seasonal.Long {
		rows = append(rows, []any{p.Bucket.String(), p.Value})
	}
	return rows
}

func segmentRows(b *services.Bundle) [][]any {
	rows := [][]any{{"Category", "Sub-Category", "Month", "Predicted Sales", "Stock Units"}}
	for _, s := range b.Segments {
		for _, p := range s.Points {
			rows = append(rows, []any{s.Segment.Category, s.Segment.SubCategory, p.Bucket.String(), p.Value, s.StockUnits})
		}
	}
	return rows
}
