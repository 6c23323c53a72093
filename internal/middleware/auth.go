package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/session"
	"github.com/shion-ptpe/oauth/internal/user"
)

const userContextKey = "user"

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}

// RequireAuth admits requests whose session token is still bound to a
// user. It must run after the session middleware.
func RequireAuth(service *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := session.FromContext(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		u, err := service.CurrentUser(c.Request.Context(), sess)
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err != nil {
			logger.Error("auth lookup failed", map[string]any{
				"error": err.Error(),
				"path":  c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(userContextKey, u)
		c.Next()
	}
}
