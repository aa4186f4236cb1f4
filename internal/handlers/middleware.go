package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"closet-cast/internal/auth"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

type claimsKey struct{}

// RequestID tags every request with an X-Request-ID, generating one when the
// client did not send it, and stores it in the context for the logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
			r.Header.Set("X-Request-ID", reqID)
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), reqID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Metrics records request counts and latency per route template
func Metrics(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := routeName(r)
			collector.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			collector.RecordAPIRequest(route, r.Method, strconv.Itoa(rec.status))
		})
	}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// Authenticator verifies bearer tokens issued at sign-in
type Authenticator struct {
	responder
	tokens *auth.TokenIssuer
}

// NewAuthenticator creates a bearer token middleware
func NewAuthenticator(tokens *auth.TokenIssuer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Authenticator {
	return &Authenticator{
		responder: responder{logger: logger, metrics: metricsCollector},
		tokens:    tokens,
	}
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			a.sendError(w, r, errUnauthorized)
			return
		}

		claims, err := a.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.logger.Warn(r.Context(), "[AUTH_REJECTED] Invalid bearer token", logging.Fields{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			a.sendError(w, r, errUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the verified token claims of an authenticated request
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}
