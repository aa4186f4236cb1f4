package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"closet-cast/internal/models"
	"closet-cast/internal/services"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// HealthChecker reports whether storage is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	responder
	ingestion *services.IngestionService
	weather   *services.WeatherService
	health    HealthChecker
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	ingestion *services.IngestionService,
	weather *services.WeatherService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		ingestion: ingestion,
		weather:   weather,
		health:    health,
	}
}

// Ingest handles POST /api/weather/ingest.
// It runs one pass for the latest issuance, or for base_date/base_time when both are given.
func (h *WeatherHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	baseDate := r.URL.Query().Get("base_date")
	baseTime := r.URL.Query().Get("base_time")

	var (
		result *services.IngestionResult
		err    error
	)
	switch {
	case baseDate == "" && baseTime == "":
		result, err = h.ingestion.RunLatest(ctx)
	case baseDate == "" || baseTime == "":
		err = &models.ValidationError{Field: "base_date", Message: "base_date and base_time must be given together"}
	default:
		if _, err = models.ParseDate(baseDate); err != nil {
			break
		}
		if _, perr := time.Parse(models.TimeLayout, baseTime); perr != nil {
			err = &models.ValidationError{Field: "base_time", Value: baseTime, Message: "base_time must be HHmm"}
			break
		}
		result, err = h.ingestion.RunPass(ctx, baseDate, baseTime)
	}
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, result, http.StatusOK)
}

// ReadWeather handles GET /api/weather/read.
// Returns the three-day window starting at ?date=yyyyMMdd, today by default.
func (h *WeatherHandler) ReadWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.weather.Today()
	}

	window, err := h.weather.ReadWindow(ctx, date)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, window, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// RegisterRoutes registers all weather API routes. protected wraps routes that need a bearer token.
func (h *WeatherHandler) RegisterRoutes(router *mux.Router, protected mux.MiddlewareFunc) {
	router.Handle("/api/weather/ingest", protected(http.HandlerFunc(h.Ingest))).Methods("POST")
	router.HandleFunc("/api/weather/read", h.ReadWeather).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
