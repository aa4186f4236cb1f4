package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"closet-cast/pkg/metrics"
)

// RouterConfig lists the handlers mounted by NewRouter
type RouterConfig struct {
	Weather   *WeatherHandler
	Members   *MemberHandler
	Recommend *RecommendHandler
	Docs      *DocsHandler
	Auth      *Authenticator
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
}

// NewRouter builds the API router with request-id and metrics middleware
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID)
	router.Use(Metrics(cfg.Metrics))

	protected := cfg.Auth.Middleware

	cfg.Weather.RegisterRoutes(router, protected)
	cfg.Members.RegisterRoutes(router, protected)
	cfg.Recommend.RegisterRoutes(router, protected)
	cfg.Docs.RegisterRoutes(router)

	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
