package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"closet-cast/internal/services"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// RecommendHandler handles outfit recommendation endpoints
type RecommendHandler struct {
	responder
	recommender *services.RecommendService
}

// NewRecommendHandler creates a new recommendation handler
func NewRecommendHandler(recommender *services.RecommendService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RecommendHandler {
	return &RecommendHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		recommender: recommender,
	}
}

// Recommend handles GET /api/recommend/{memberId}
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDFromPath(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	rec, err := h.recommender.Recommend(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccess(w, rec)
}

// RegisterRoutes registers the recommendation route behind protected
func (h *RecommendHandler) RegisterRoutes(router *mux.Router, protected mux.MiddlewareFunc) {
	router.Handle("/api/recommend/{memberId}", protected(http.HandlerFunc(h.Recommend))).Methods("GET")
}
