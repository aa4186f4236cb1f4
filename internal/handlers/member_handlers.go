package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"closet-cast/internal/models"
	"closet-cast/internal/services"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// SignUpRequest is the body of POST /api/member/signup
type SignUpRequest struct {
	Name        string   `json:"name" validate:"required,max=50"`
	LoginID     string   `json:"loginId" validate:"required,min=4,max=30"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	Preferences []string `json:"preference" validate:"dive,required"`
	Tendencies  []string `json:"tendencies" validate:"dive,required"`
}

// SignInRequest is the body of POST /api/member/signin
type SignInRequest struct {
	LoginID  string `json:"loginId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateMemberRequest is the body of PATCH /api/member/update/{memberId}.
// Omitted fields are left unchanged.
type UpdateMemberRequest struct {
	CurrentPassword string   `json:"currentPassword"`
	NewPassword     *string  `json:"newPassword" validate:"omitempty,min=8,max=72"`
	Preferences     []string `json:"preference" validate:"omitempty,dive,required"`
	Tendencies      []string `json:"tendencies" validate:"omitempty,dive,required"`
	Clothes         []string `json:"clothes" validate:"omitempty,min=3,dive,required"`
}

// MemberResponse is the public view of a member
type MemberResponse struct {
	MemberID    int64               `json:"memberId"`
	Name        string              `json:"name"`
	LoginID     string              `json:"loginId"`
	Preferences []models.Preference `json:"preference"`
	Tendencies  []models.Tendency   `json:"tendencies"`
	Clothes     []models.Cloth      `json:"clothes"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func toMemberResponse(m *models.Member) MemberResponse {
	return MemberResponse{
		MemberID:    m.ID,
		Name:        m.Name,
		LoginID:     m.LoginID,
		Preferences: m.Preferences,
		Tendencies:  m.Tendencies,
		Clothes:     m.Clothes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// MemberHandler handles member API endpoints
type MemberHandler struct {
	responder
	members *services.MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(members *services.MemberService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MemberHandler {
	return &MemberHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		members:   members,
	}
}

// SignUp handles POST /api/member/signup
func (h *MemberHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	member, err := h.members.SignUp(r.Context(), services.SignUpInput{
		Name:        req.Name,
		LoginID:     req.LoginID,
		Password:    req.Password,
		Preferences: req.Preferences,
		Tendencies:  req.Tendencies,
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccess(w, toMemberResponse(member))
}

// SignIn handles POST /api/member/signin
func (h *MemberHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	result, err := h.members.SignIn(r.Context(), req.LoginID, req.Password)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccess(w, result)
}

// List handles GET /api/member/read
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	members, err := h.members.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	h.sendSuccess(w, out)
}

// Get handles GET /api/member/read/{memberId}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDFromPath(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	member, err := h.members.Get(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccess(w, toMemberResponse(member))
}

// Update handles PATCH /api/member/update/{memberId}. Members may only update themselves.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := ownMemberID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	var req UpdateMemberRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	member, err := h.members.Update(r.Context(), id, services.UpdateInput{
		Password:    req.CurrentPassword,
		NewPassword: req.NewPassword,
		Preferences: req.Preferences,
		Tendencies:  req.Tendencies,
		Clothes:     req.Clothes,
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.logger.Info(r.Context(), "[MEMBER_UPDATE] Member updated", logging.Fields{
		"member_id":        id,
		"password_changed": req.NewPassword != nil,
	})
	h.sendSuccess(w, toMemberResponse(member))
}

// Delete handles DELETE /api/member/delete/{memberId}. Members may only delete themselves.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := ownMemberID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	member, err := h.members.Delete(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.logger.Info(r.Context(), "[MEMBER_DELETE] Member deleted", logging.Fields{
		"member_id": id,
	})
	h.sendSuccess(w, toMemberResponse(member))
}

func memberIDFromPath(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["memberId"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &models.ValidationError{Field: "memberId", Value: raw, Message: "memberId must be a positive integer"}
	}
	return id, nil
}

func ownMemberID(r *http.Request) (int64, error) {
	id, err := memberIDFromPath(r)
	if err != nil {
		return 0, err
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return 0, errUnauthorized
	}
	if claims.MemberID != id {
		return 0, errForbidden
	}
	return id, nil
}

// RegisterRoutes registers all member API routes. protected wraps routes that need a bearer token.
func (h *MemberHandler) RegisterRoutes(router *mux.Router, protected mux.MiddlewareFunc) {
	router.HandleFunc("/api/member/signup", h.SignUp).Methods("POST")
	router.HandleFunc("/api/member/signin", h.SignIn).Methods("POST")
	router.Handle("/api/member/read", protected(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/api/member/read/{memberId}", protected(http.HandlerFunc(h.Get))).Methods("GET")
	router.Handle("/api/member/update/{memberId}", protected(http.HandlerFunc(h.Update))).Methods("PATCH")
	router.Handle("/api/member/delete/{memberId}", protected(http.HandlerFunc(h.Delete))).Methods("DELETE")
}
