package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"closet-cast/internal/feed"
	"closet-cast/internal/models"
	"closet-cast/internal/repository"
	"closet-cast/internal/services"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// APIResponse is the envelope used by the member and recommendation endpoints
type APIResponse struct {
	IsSuccess bool        `json:"isSuccess"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Result    interface{} `json:"result,omitempty"`
}

var (
	errForbidden    = errors.New("token does not belong to this member")
	errUnauthorized = errors.New("authentication required")
)

var validate = validator.New()

// responder holds the helpers shared by every handler
type responder struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response
func (h *responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *responder) sendSuccess(w http.ResponseWriter, result interface{}) {
	h.sendJSON(w, APIResponse{
		IsSuccess: true,
		Code:      "COMMON200",
		Message:   "OK",
		Result:    result,
	}, http.StatusOK)
}

// sendError maps err to a status and error code and writes the envelope
func (h *responder) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
			"status": status,
			"code":   code,
		}, err)
	} else {
		h.logger.Debug(r.Context(), "[API_REJECTED] Request rejected", logging.Fields{
			"path":   r.URL.Path,
			"status": status,
			"code":   code,
			"error":  err.Error(),
		})
	}
	h.metrics.RecordAPIError(code, routeName(r))

	h.sendJSON(w, APIResponse{
		IsSuccess: false,
		Code:      code,
		Message:   message,
	}, status)
}

func classify(err error) (int, string, string) {
	var (
		validationErr *models.ValidationError
		invalidReq    validator.ValidationErrors
		authErr       *models.AuthError
		conflictErr   *models.ConflictError
		notFound      *repository.NotFoundError
		completionErr *services.CompletionError
		parseErr      *services.RecommendationParseError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "COMMON400", validationErr.Error()
	case errors.As(err, &invalidReq):
		return http.StatusBadRequest, "COMMON400", invalidReq.Error()
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "COMMON401", err.Error()
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "COMMON403", err.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "MEMBER4003", authErr.Message
	case errors.As(err, &conflictErr):
		return http.StatusConflict, "MEMBER4002", conflictErr.Error()
	case errors.As(err, &notFound):
		if notFound.Resource == "member" {
			return http.StatusNotFound, "MEMBER4001", notFound.Error()
		}
		return http.StatusNotFound, "WEATHER4001", notFound.Error()
	case errors.Is(err, feed.ErrFeedUnavailable):
		return http.StatusBadGateway, "WEATHER5021", "forecast feed unavailable"
	case errors.As(err, &completionErr):
		return http.StatusBadGateway, "RECOMMEND5021", "completion service failed"
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "RECOMMEND5022", "completion reply could not be parsed"
	default:
		return http.StatusInternalServerError, "COMMON500", "internal server error"
	}
}

// decodeBody reads a JSON request body into dst and validates it
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Message: "invalid JSON body: " + err.Error()}
	}
	return validate.Struct(dst)
}

// pagination reads page and limit query parameters
func pagination(r *http.Request) (int, int) {
	page := 1
	limit := 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}
