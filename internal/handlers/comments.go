package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// CommentHandler exposes post comment endpoints.
type CommentHandler struct {
	comments *services.CommentService
}

// NewCommentHandler constructs a comment handler.
func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type createCommentRequest struct {
	Content         string `json:"content" form:"content" validate:"required,notblank,max=5000"`
	ParentCommentID *int64 `json:"parentCommentId" form:"parentCommentId" validate:"omitempty,gt=0"`
}

// Create adds a comment or reply. Both form and JSON bodies are accepted.
func (h *CommentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createCommentRequest
	if !bindFormAndValidate(c, &req) {
		return
	}

	comment, err := h.comments.Create(requestContext(c), actor, services.CreateCommentInput{
		PostID:          postID,
		Content:         req.Content,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, comment)
}

// List returns the post's comment tree.
func (h *CommentHandler) List(c *gin.Context) {
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	tree, err := h.comments.ListTree(requestContext(c), postID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, tree)
}

// Delete removes a comment written by the caller together with its replies.
func (h *CommentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseIDParam(c, "commentId")
	if !ok {
		return
	}

	if err := h.comments.Delete(requestContext(c), actor, postID, commentID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
