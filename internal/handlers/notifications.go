package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

const defaultNotificationPageSize = 20

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	inbox *services.InboxService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(inbox *services.InboxService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	h.list(c, false)
}

// Unread returns the caller's unread notifications, newest first.
func (h *NotificationHandler) Unread(c *gin.Context) {
	h.list(c, true)
}

func (h *NotificationHandler) list(c *gin.Context, unreadOnly bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", defaultNotificationPageSize)
	cursor := c.Query("cursor")

	var (
		page services.NotificationPage
		err  error
	)
	if unreadOnly {
		page, err = h.inbox.ListUnread(requestContext(c), actor.ID, limit, cursor)
	} else {
		page, err = h.inbox.List(requestContext(c), actor.ID, limit, cursor)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{
		Limit:      page.Limit,
		NextCursor: page.NextCursor,
	})
}

// Count returns the caller's unread notification count.
func (h *NotificationHandler) Count(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	count, err := h.inbox.UnreadCount(requestContext(c), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// MarkRead marks one notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.inbox.MarkRead(requestContext(c), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// MarkAllRead marks every notification of the caller read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.inbox.MarkAllRead(requestContext(c), actor.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete removes a notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.inbox.Delete(requestContext(c), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
