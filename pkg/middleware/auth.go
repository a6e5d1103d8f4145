package middleware

import (
	"strings"

	"licensing-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const bearerTokenKey = "bearer_token"

// BearerAuth extracts the license token from the Authorization header. The
// token is verified downstream; this only enforces the header shape.
func BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			_ = c.Error(errutil.Unauthorized("missing bearer token"))
			c.Abort()
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			_ = c.Error(errutil.Unauthorized("invalid authorization header"))
			c.Abort()
			return
		}

		c.Set(bearerTokenKey, token)
		c.Next()
	}
}

// BearerToken returns the token stashed by BearerAuth.
func BearerToken(c *gin.Context) string {
	return c.GetString(bearerTokenKey)
}
