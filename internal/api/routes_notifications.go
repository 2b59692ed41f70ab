package api

import (
	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread", handler.Unread)
		group.GET("/count", handler.Count)
		group.PUT("/read-all", handler.MarkAllRead)
		group.PUT("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
}
