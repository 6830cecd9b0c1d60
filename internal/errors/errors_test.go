package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermart-dashboard/internal/forecast"
	"supermart-dashboard/internal/loader"
	"supermart-dashboard/internal/models"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"app error passes through", NotFound("missing"), CodeNotFound, http.StatusNotFound},
		{"data source", &loader.DataSourceError{Path: "x.csv", Reason: "file not found"}, CodeServiceUnavail, http.StatusServiceUnavailable},
		{"wrapped model fit", fmt.Errorf("pipeline: %w", &forecast.ModelFitError{Model: "holt-winters", Reason: "insufficient history"}), CodeServiceUnavail, http.StatusServiceUnavailable},
		{"unknown segment", &forecast.UnknownSegmentError{Segment: models.Segment{Category: "A", SubCategory: "z"}}, CodeNotFound, http.StatusNotFound},
		{"cancelled", context.Canceled, CodeServiceUnavail, http.StatusServiceUnavailable},
		{"other", io.ErrUnexpectedEOF, CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.StatusCode)
		})
	}
}

func TestFromError_Messages(t *testing.T) {
	got := FromError(&forecast.UnknownSegmentError{Segment: models.Segment{Category: "Snacks", SubCategory: "Cakes"}})
	assert.Equal(t, "No forecast for Snacks > Cakes", got.Message)

	got = FromError(&loader.DataSourceError{Path: "x.csv", Reason: "file not found"})
	assert.Equal(t, "Sales data is unavailable: file not found", got.Message)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	WriteError(rec, logger, &forecast.ModelFitError{Model: "holt-winters", Reason: "insufficient history"}, "req-1")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeServiceUnavail, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "holt-winters", resp.Error.Details)
}

func TestWriteError_DoesNotMutateSharedError(t *testing.T) {
	shared := Forbidden("Cross-origin form submission")
	WriteError(httptest.NewRecorder(), slog.New(slog.NewTextHandler(io.Discard, nil)), shared, "req-2")
	assert.Empty(t, shared.RequestID)
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]int{"rows": 3})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"rows":3},"success":true}`, rec.Body.String())
}
