package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"supermart-dashboard/internal/errors"
	"supermart-dashboard/internal/observability"
	"supermart-dashboard/internal/services"
)

const version = "1.0.0"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleSegment returns one (category, sub-category) forecast with its
// stocking message.
func (h *APIHandlers) HandleSegment(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	bundle, err := h.analytics.Bundle(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	seg, err := bundle.Segment(r.PathValue("category"), r.PathValue("subcategory"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	headers := map[string]string{
		"Cache-Control": apiCache,
	}

	errors.WriteSuccessWithHeaders(w, services.NewSegmentView(seg), headers)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().Format(time.RFC3339),
		"version":     version,
		"data_loaded": h.analytics.Stats()["loaded"],
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}
