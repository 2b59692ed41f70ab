package api

import (
	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/handlers"
)

func registerGroupRoutes(api *gin.RouterGroup, handler *handlers.GroupHandler) {
	group := api.Group("/groups")
	{
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.DELETE("/:id", handler.Delete)
		group.PUT("/:id/archive", handler.Archive)
		group.POST("/:id/leave", handler.Leave)

		group.GET("/:id/members", handler.Members)
		group.POST("/:id/members", handler.AddMember)
		group.DELETE("/:id/members/:userId", handler.RemoveMember)
		group.PUT("/:id/members/:userId/co-admin", handler.AssignCoAdmin)
	}
}
