package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// ChatHandler exposes one-to-one chat endpoints.
type ChatHandler struct {
	chats *services.ChatService
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type openChatRequest struct {
	RecipientID string `json:"recipientId" validate:"required,max=64"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,notblank,max=10000"`
	Type    string `json:"type" validate:"omitempty,max=16"`
}

// Open returns the chat with a recipient, creating it on first contact.
func (h *ChatHandler) Open(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req openChatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	chat, created, err := h.chats.Open(requestContext(c), actor, req.RecipientID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, chat)
}

// Messages lists a chat's messages, oldest first.
func (h *ChatHandler) Messages(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.chats.ListMessages(requestContext(c), actor, chatID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, messages)
}

// Send posts a text message to the other participant.
func (h *ChatHandler) Send(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.chats.SendMessage(requestContext(c), actor, chatID, services.SendMessageInput{
		Content: req.Content,
		Type:    req.Type,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, message)
}

// Seen marks every message addressed to the caller as seen.
func (h *ChatHandler) Seen(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.chats.SetChatSeen(requestContext(c), actor, chatID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Unread returns how many messages in the chat the caller has not seen.
func (h *ChatHandler) Unread(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.chats.UnreadCount(requestContext(c), actor, chatID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// Upload sends the multipart "file" field as a media message.
func (h *ChatHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errors.NewBadRequest("file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, errors.NewBadRequest("file could not be read"))
		return
	}
	defer file.Close()

	message, err := h.chats.UploadMedia(requestContext(c), actor, chatID, services.UploadMediaInput{
		Filename: header.Filename,
		Reader:   file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, message)
}
