package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/middleware"
	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actorFromContext returns the authenticated caller. When the auth middleware
// did not run, a 401 is written and false is returned.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{
		ID:    userID,
		Roles: c.GetStringSlice(middleware.CtxRolesKey),
	}, true
}

// parseIDParam reads a positive numeric path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errors.NewBadRequest("invalid "+prettifyFieldName(name)))
		return 0, false
	}
	return id, true
}
