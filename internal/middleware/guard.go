package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthSignal is the read side of the session manager.
type AuthSignal interface {
	IsAuthenticated() bool
	Loading() bool
}

// RequireSession lets a request through only while a user is signed in.
// Browsers are redirected to loginRoute, API callers get a 401 naming it.
// It never performs network calls of its own.
func RequireSession(sig AuthSignal, loginRoute string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sig.IsAuthenticated() {
			c.Next()
			return
		}
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "authentication required",
				"redirect": loginRoute,
			})
			return
		}
		c.Redirect(http.StatusFound, loginRoute)
		c.Abort()
	}
}

// SessionReady holds requests off while the session is being restored.
func SessionReady(sig AuthSignal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sig.Loading() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session loading"})
			return
		}
		c.Next()
	}
}

// RedirectAuthenticated sends a signed-in user away from public-only routes
// such as the login page.
func RedirectAuthenticated(sig AuthSignal, target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sig.IsAuthenticated() && c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
