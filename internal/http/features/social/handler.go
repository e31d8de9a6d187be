// Package social serves friend and plan requests, friends, plans and
// notifications.
package social

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/planhub/internal/http/middleware"
	"github.com/tendant/planhub/internal/httputil"
	"github.com/tendant/planhub/pkg/auth"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/social"
)

// Requests is the request workflow and the read models around it.
type Requests interface {
	SendFriendRequest(ctx context.Context, from, to uuid.UUID) (*domain.Request, error)
	SendPlanRequest(ctx context.Context, from, to, planID uuid.UUID) (*domain.Request, error)
	Accept(ctx context.Context, userID, requestID uuid.UUID) (*domain.Request, error)
	Reject(ctx context.Context, userID, requestID uuid.UUID) (*domain.Request, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]social.PendingRequest, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]domain.Profile, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

// Plans creates and reads plans.
type Plans interface {
	CreatePlan(ctx context.Context, ownerID uuid.UUID, title string) (*domain.Plan, error)
	GetPlan(ctx context.Context, userID, planID uuid.UUID) (*domain.Plan, error)
}

// Handler handles the social graph endpoints.
type Handler struct {
	requests Requests
	plans    Plans
}

// NewHandler creates a new social handler.
func NewHandler(requests Requests, plans Plans) *Handler {
	return &Handler{requests: requests, plans: plans}
}

// FriendRequestBody names the user to befriend.
type FriendRequestBody struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// PlanRequestBody names the other participant of a plan request: an
// outsider when sent by the owner, the owner when sent by an outsider.
type PlanRequestBody struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// CreatePlanBody creates a plan.
type CreatePlanBody struct {
	Title string `json:"title" validate:"required,max=120"`
}

// ListResponse wraps a list.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// SendFriendRequest asks another user to become friends.
// POST /v1/friends/requests
func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body FriendRequestBody
	if err := httputil.DecodeValidate(r, &body); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	req, err := h.requests.SendFriendRequest(r.Context(), userID, uuid.MustParse(body.UserID))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, req)
}

// ListFriends returns the current user's friends.
// GET /v1/friends
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	friends, err := h.requests.ListFriends(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ListResponse[domain.Profile]{Items: friends})
}

// CreatePlan creates a plan owned by the current user.
// POST /v1/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body CreatePlanBody
	if err := httputil.DecodeValidate(r, &body); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	plan, err := h.plans.CreatePlan(r.Context(), userID, auth.SanitizeInput(body.Title))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, plan)
}

// GetPlan returns a plan the current user owns or collaborates on.
// GET /v1/plans/{planID}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	planID, ok := pathUUID(w, r, "planID")
	if !ok {
		return
	}

	plan, err := h.plans.GetPlan(r.Context(), userID, planID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, plan)
}

// SendPlanRequest invites a user to a plan, or asks its owner to join.
// POST /v1/plans/{planID}/requests
func (h *Handler) SendPlanRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	planID, ok := pathUUID(w, r, "planID")
	if !ok {
		return
	}

	var body PlanRequestBody
	if err := httputil.DecodeValidate(r, &body); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	req, err := h.requests.SendPlanRequest(r.Context(), userID, uuid.MustParse(body.UserID), planID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, req)
}

// ListRequests returns pending requests addressed to the current user.
// GET /v1/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pending, err := h.requests.ListPending(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ListResponse[social.PendingRequest]{Items: pending})
}

// Accept accepts a pending request.
// POST /v1/requests/{requestID}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.requests.Accept)
}

// Reject rejects a pending request.
// POST /v1/requests/{requestID}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.requests.Reject)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, requestID uuid.UUID) (*domain.Request, error)) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	requestID, ok := pathUUID(w, r, "requestID")
	if !ok {
		return
	}

	req, err := fn(r.Context(), userID, requestID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, req)
}

// ListNotifications returns the current user's latest notifications.
// GET /v1/notifications?limit=N
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, r, domain.Invalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	list, err := h.requests.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ListResponse[*domain.Notification]{Items: list})
}

// MarkNotificationRead marks one notification as read.
// POST /v1/notifications/{notificationID}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notificationID, ok := pathUUID(w, r, "notificationID")
	if !ok {
		return
	}

	if err := h.requests.MarkNotificationRead(r.Context(), userID, notificationID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, r, domain.Invalid("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
