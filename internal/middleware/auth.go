package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/analytics-service/internal/auth"
	"github.com/kosarica/analytics-service/internal/backend"
)

// HeaderUserID carries the backend user id alongside the token
const HeaderUserID = "X-User-ID"

// SessionMiddleware reads the caller's backend session from the
// "Authorization: Token <token>" and X-User-ID headers and attaches it to
// the request context. Requests without both are rejected.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Token ")
		token = strings.TrimSpace(token)
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if !ok || token == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": backend.MsgNotAuthenticated,
			})
			return
		}

		ctx := auth.WithSession(c.Request.Context(), auth.Session{AccessToken: token, UserID: userID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
