package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// Recovery converts handler panics into a 500 envelope. The stack and the
// caller are logged; clients only see the generic error. A panic after the
// response was committed, such as on an upgraded socket, is logged only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.WithModule("http").Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("route", routeLabel(c)),
				zap.String("user_id", c.GetString(CtxUserIDKey)),
				zap.Any("error", rec),
				zap.ByteString("stack", debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound(fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
