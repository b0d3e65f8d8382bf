package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/hub"
)

type NotifyRequest struct {
	// UserID is omitted or null for a broadcast.
	UserID  *int64 `json:"user_id"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type NotificationHandler struct {
	notifications *core.Dispatcher
	hub           *hub.Hub
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *core.Dispatcher, h *hub.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		hub:           h,
		logger:        logger,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.ListFor(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// MarkRead only touches notifications the caller can see.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	n, err := h.notifications.Get(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !n.VisibleTo(currentUser(c).UserID) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: fmt.Sprintf("notification %d not found", id)})
		return
	}

	if err := h.notifications.MarkRead(ctx, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notif_id": id, "status": "Read"})
}

func (h *NotificationHandler) ClearAll(c *gin.Context) {
	n, err := h.notifications.ClearAllUnread(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (h *NotificationHandler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	n, err := h.notifications.Notify(c.Request.Context(), req.UserID, req.Subject, req.Message)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// Subscribe upgrades to a websocket that receives the caller's notifications
// as they are created, starting with the current unread count.
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	userID := currentUser(c).UserID
	ctx := c.Request.Context()

	err := h.hub.ServeWS(c.Writer, c.Request, userID, func() (*hub.Message, error) {
		count, err := h.notifications.UnreadCount(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &hub.Message{Type: hub.TypeUnreadCount, UnreadCount: &count}, nil
	})
	if err != nil {
		h.logger.Warn("websocket session failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
