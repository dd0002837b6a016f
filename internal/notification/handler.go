package notification

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giftforyoube/giftipie/pkg/middleware"
	"github.com/giftforyoube/giftipie/pkg/response"
)

// Handler handles HTTP requests for notification operations
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for notification endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/subscribe", h.Subscribe)
	r.Get("/", h.List)
	r.Put("/{notificationId}", h.MarkAsRead)
	r.Delete("/{notificationId}", h.Delete)
	r.Delete("/", h.DeleteAllRead)
	r.Post("/test", h.SendTest)

	return r
}

// NotificationResponse is the projection pushed on streams and returned by
// the management endpoints
type NotificationResponse struct {
	ID               int64  `json:"id"`
	Content          string `json:"content"`
	URL              string `json:"url,omitempty"`
	NotificationType Type   `json:"notification_type"`
	IsRead           bool   `json:"is_read"`
	CreatedAt        string `json:"created_at"`
}

// toResponse converts a Notification to a NotificationResponse
func toResponse(n *Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:               n.ID,
		Content:          n.Content,
		URL:              n.URL,
		NotificationType: n.Type,
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt.Format(time.RFC3339),
	}
}

// Subscribe handles GET /notification/subscribe
// @Summary      Open a notification event stream
// @Description  Long-lived SSE stream of notification events; supply Last-Event-ID to replay missed events
// @Tags         notifications
// @Produce      text/event-stream
// @Param        Last-Event-ID header string false "Identifier of the last event received"
// @Success      200
// @Failure      500 {object} response.APIResponse
// @Router       /notification/subscribe [get]
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "Streaming is not supported")
		return
	}

	lastEventID := r.Header.Get("Last-Event-ID")
	sub := h.service.Subscribe(userID, lastEventID)
	defer h.service.Unsubscribe(sub.Conn)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Stops intermediaries (nginx) from buffering the stream
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Handshake and catch-up precede live delivery; any write failure here
	// tears the connection down without retry
	for _, ev := range sub.Backlog {
		if err := writeEvent(w, flusher, ev); err != nil {
			log.Printf("connection %s: %v", sub.Conn.ID(), err)
			return
		}
	}

	lifetime := time.NewTimer(sub.Timeout)
	defer lifetime.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lifetime.C:
			return
		case <-sub.Conn.Done():
			return
		case ev := <-sub.Conn.Events():
			if err := writeEvent(w, flusher, ev); err != nil {
				log.Printf("connection %s: %v", sub.Conn.ID(), err)
				return
			}
		}
	}
}

// List handles GET /notification
// @Summary      List notifications
// @Description  Get all notifications of the authenticated user, newest first
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]NotificationResponse}
// @Router       /notification [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	notifications, err := h.service.GetNotifications(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list notifications")
		return
	}

	notificationResponses := make([]*NotificationResponse, len(notifications))
	for i, n := range notifications {
		notificationResponses[i] = toResponse(n)
	}

	response.JSON(w, http.StatusOK, notificationResponses)
}

// MarkAsRead handles PUT /notification/{notificationId}
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Param        notificationId path int true "Notification ID"
// @Success      200 {object} response.APIResponse{data=NotificationResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /notification/{notificationId} [put]
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	updated, err := h.service.ReadNotification(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrNotRecipient) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to mark notification as read")
		return
	}

	response.JSON(w, http.StatusOK, toResponse(updated))
}

// Delete handles DELETE /notification/{notificationId}
// @Summary      Delete a notification
// @Tags         notifications
// @Produce      json
// @Param        notificationId path int true "Notification ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /notification/{notificationId} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.DeleteNotification(r.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrNotRecipient) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to delete notification")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

// DeleteAllRead handles DELETE /notification
// @Summary      Delete all read notifications
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /notification [delete]
func (h *Handler) DeleteAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.DeleteReadNotifications(r.Context(), userID); err != nil {
		if errors.Is(err, ErrNoReadNotifications) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to delete read notifications")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "All read notifications deleted"})
}

// SendTest handles POST /notification/test
// @Summary      Send a test notification to the caller
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse
// @Router       /notification/test [post]
func (h *Handler) SendTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	h.service.Send(Recipient{ID: userID}, TypeDonation, "This is a test notification!", "")

	response.JSON(w, http.StatusOK, map[string]string{"message": "Test notification dispatched"})
}
