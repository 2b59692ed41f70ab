package api

import (
	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/handlers"
)

func registerChatRoutes(api *gin.RouterGroup, handler *handlers.ChatHandler) {
	group := api.Group("/chats")
	{
		group.POST("", handler.Open)
		group.GET("/:id/messages", handler.Messages)
		group.POST("/:id/messages", handler.Send)
		group.PATCH("/:id/seen", handler.Seen)
		group.GET("/:id/unread", handler.Unread)
		group.POST("/:id/media", handler.Upload)
	}
}
