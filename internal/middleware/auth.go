package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/anaslahboub/app-microservice/internal/auth"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRolesKey  = "userRoles"
)

// Auth enforces JWT authentication using the supplied JWT service. Browsers
// cannot set headers on WebSocket upgrades, so the token may also arrive in
// the token query parameter.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxRolesKey, claims.RealmAccess.Roles)

		ctx := userclient.WithBearerToken(c.Request.Context(), token)
		ctx = userclient.WithCaller(ctx, userclient.User{
			ID:        claims.UserID(),
			FirstName: claims.GivenName,
			LastName:  claims.FamilyName,
			Email:     claims.Email,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
