package handlers

import (
	"context"
	"net/http"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// NotificationService is the subset of services.NotificationService used by the HTTP layer.
type NotificationService interface {
	ListForUser(ctx context.Context, userID int, unreadOnly bool) ([]types.Notification, error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	MarkRead(ctx context.Context, id, callerID int) (services.Result[bool], error)
	MarkAllRead(ctx context.Context, userID int) (int64, error)
	Delete(ctx context.Context, id, callerID int) (services.Result[bool], error)
	DeleteRead(ctx context.Context, userID int) (int64, error)
}

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// NotificationRouter registers notification routes. Every route requires auth.
func NotificationRouter(r chi.Router, notifications NotificationService, auth *Authenticator) {
	handler := NewNotificationHandler(notifications)

	r.Use(auth.RequireAuth)
	r.Get("/", handler.ListNotifications)
	r.Get("/unread-count", handler.UnreadCount)
	r.Put("/read-all", handler.MarkAllRead)
	r.Delete("/read", handler.DeleteRead)
	r.Put("/{notificationID}/read", handler.MarkRead)
	r.Delete("/{notificationID}", handler.DeleteNotification)
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type AffectedResponse struct {
	Message  string `json:"message"`
	Affected int64  `json:"affected"`
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	unreadOnly, err := parseBoolQuery(r, "unreadOnly")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.notifications.ListForUser(r.Context(), user.ID, unreadOnly)
	if err != nil {
		writeInternal(w, r, "failed to list notifications", err)
		return
	}
	if items == nil {
		items = []types.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	count, err := h.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, "failed to count notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "notificationID", "notification")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.notifications.MarkRead(r.Context(), id, user.ID)
	if err != nil {
		writeInternal(w, r, "failed to update notification", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	n, err := h.notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, "failed to update notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, AffectedResponse{Message: "notifications marked as read", Affected: n})
}

func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "notificationID", "notification")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.notifications.Delete(r.Context(), id, user.ID)
	if err != nil {
		writeInternal(w, r, "failed to delete notification", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	n, err := h.notifications.DeleteRead(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, "failed to delete notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, AffectedResponse{Message: "read notifications deleted", Affected: n})
}
