package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// GroupHandler exposes group and membership endpoints.
type GroupHandler struct {
	groups *services.GroupService
}

// NewGroupHandler constructs a group handler.
func NewGroupHandler(groups *services.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Subject     string `json:"subject" validate:"max=255"`
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

// Create creates a group administered by the caller.
func (h *GroupHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	group, err := h.groups.Create(requestContext(c), actor, services.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Subject:     req.Subject,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, group)
}

// Get returns a group.
func (h *GroupHandler) Get(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	group, err := h.groups.Get(requestContext(c), groupID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, group)
}

// Members lists a group's members.
func (h *GroupHandler) Members(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	members, err := h.groups.Members(requestContext(c), groupID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, members)
}

// Delete removes a group.
func (h *GroupHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Delete(requestContext(c), actor, groupID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Archive archives a group.
func (h *GroupHandler) Archive(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	group, err := h.groups.Archive(requestContext(c), actor, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, group)
}

// AddMember adds a user to a group.
func (h *GroupHandler) AddMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req addMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	member, err := h.groups.AddMember(requestContext(c), actor, groupID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, member)
}

// RemoveMember removes a user from a group.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := h.groups.RemoveMember(requestContext(c), actor, groupID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Leave removes the caller from a group.
func (h *GroupHandler) Leave(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Leave(requestContext(c), actor, groupID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AssignCoAdmin makes a member co-admin of a group.
func (h *GroupHandler) AssignCoAdmin(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	member, err := h.groups.AssignCoAdmin(requestContext(c), actor, groupID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, member)
}

func userIDParam(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		response.Error(c, errors.NewBadRequest("user id is required"))
		return "", false
	}
	return userID, true
}
