package api

import (
	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/handlers"
)

func registerPostRoutes(api *gin.RouterGroup, posts *handlers.PostHandler, comments *handlers.CommentHandler) {
	group := api.Group("/posts")
	{
		group.POST("", posts.Create)
		group.GET("/:id", posts.Get)
		group.DELETE("/:id", posts.Delete)
		group.PUT("/:id/status", posts.UpdateStatus)
		group.PUT("/:id/pin", posts.SetPinned)

		group.POST("/:id/like", posts.Like)
		group.GET("/:id/liked", posts.Liked)
		group.POST("/:id/bookmark", posts.Bookmark)
		group.POST("/:id/vote", posts.Vote)
		group.GET("/:id/counters", posts.Counters)
		group.POST("/:id/counters/reconcile", posts.Reconcile)

		group.POST("/:id/comments", comments.Create)
		group.GET("/:id/comments", comments.List)
		group.DELETE("/:id/comments/:commentId", comments.Delete)
	}
}
