package services

import (
	"context"
	"slices"
	"strings"

	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

// Realm roles that publish posts without moderation and moderate others' posts.
const (
	RoleTeacher    = "ROLE_TEACHER"
	RoleAdmin      = "ROLE_ADMIN"
	RoleInstructor = "ROLE_INSTRUCTOR"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Roles []string
}

// HasAnyRole reports whether the actor carries one of roles.
func (a Actor) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(a.Roles, role) {
			return true
		}
	}
	return false
}

// IsModerator reports whether the actor may approve and pin posts.
func (a Actor) IsModerator() bool {
	return a.HasAnyRole(RoleTeacher, RoleAdmin, RoleInstructor)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func int64Ptr(v int64) *int64 {
	return &v
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}

var (
	errPostNotFound  = apperrors.NewNotFound("post not found")
	errUserRequired  = apperrors.NewBadRequest("user id is required")
	errChatNotFound  = apperrors.NewNotFound("chat not found")
	errGroupNotFound = apperrors.NewNotFound("group not found")
)
