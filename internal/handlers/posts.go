package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// PostHandler exposes post lifecycle and engagement endpoints.
type PostHandler struct {
	posts   *services.PostService
	toggles *services.ToggleEngine
}

// NewPostHandler constructs a post handler.
func NewPostHandler(posts *services.PostService, toggles *services.ToggleEngine) *PostHandler {
	return &PostHandler{posts: posts, toggles: toggles}
}

type createPostRequest struct {
	Content  string `json:"content" validate:"max=10000"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url,max=512"`
	GroupID  *int64 `json:"groupId" validate:"omitempty,gt=0"`
}

type updatePostStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
}

type pinPostRequest struct {
	Pinned *bool `json:"pinned" validate:"required"`
}

// Create publishes a post for the caller.
func (h *PostHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req createPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Create(requestContext(c), actor, services.CreatePostInput{
		Content:  req.Content,
		ImageURL: req.ImageURL,
		GroupID:  req.GroupID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, post)
}

// Get returns a single post.
func (h *PostHandler) Get(c *gin.Context) {
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	post, err := h.posts.Get(requestContext(c), postID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// Delete removes a post owned by the caller.
func (h *PostHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(requestContext(c), actor, postID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// UpdateStatus moderates a post.
func (h *PostHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updatePostStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.UpdateStatus(requestContext(c), actor, postID, models.PostStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// SetPinned pins or unpins a post.
func (h *PostHandler) SetPinned(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req pinPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.SetPinned(requestContext(c), actor, postID, *req.Pinned)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// Like toggles the caller's like on a post.
func (h *PostHandler) Like(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.toggles.ToggleLike(requestContext(c), postID, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	action := "unliked"
	if result.Active() {
		action = "liked"
	}
	payload := gin.H{
		"liked":     result.Active(),
		"action":    action,
		"likeCount": result.Count(),
	}
	if result.Record != nil {
		payload["like"] = result.Record
	}
	response.Success(c, http.StatusOK, payload)
}

// Liked reports whether the caller likes a post.
func (h *PostHandler) Liked(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	liked, err := h.posts.HasLiked(requestContext(c), postID, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, liked)
}

// Bookmark toggles the caller's bookmark on a post.
func (h *PostHandler) Bookmark(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.toggles.ToggleBookmark(requestContext(c), postID, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	action := "removed"
	if result.Active() {
		action = "added"
	}
	payload := gin.H{
		"bookmarked":    result.Active(),
		"action":        action,
		"bookmarkCount": result.Count(),
	}
	if result.Record != nil {
		payload["bookmark"] = result.Record
	}
	response.Success(c, http.StatusOK, payload)
}

// Vote casts, flips or withdraws the caller's vote. The direction comes from ?upvote=.
func (h *PostHandler) Vote(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	upvote, ok := parseBoolQuery(c, "upvote")
	if !ok {
		response.Error(c, errors.NewBadRequest("upvote must be true or false"))
		return
	}

	result, err := h.toggles.ToggleVote(requestContext(c), postID, actor.ID, upvote)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"vote":          result.Record,
		"action":        result.Action,
		"upvoteCount":   result.Counters.Upvotes,
		"downvoteCount": result.Counters.Downvotes,
	})
}

// Counters returns the post's engagement counters.
func (h *PostHandler) Counters(c *gin.Context) {
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.posts.Counters(requestContext(c), postID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Reconcile recomputes the post's counters from its records.
func (h *PostHandler) Reconcile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.posts.Reconcile(requestContext(c), actor, postID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
