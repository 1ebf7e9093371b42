package middleware

import (
	"net/http"
	"strings"

	"condoadmin/internal/service"
	"condoadmin/pkg/constraints"

	"github.com/gin-gonic/gin"
)

// AccessVerifier turns a bearer token into the operator it was issued to.
type AccessVerifier interface {
	ParseAccess(token string) (*service.OperatorInfo, error)
}

// BearerAuth guards dev API routes. Failures answer 401 in the shape the
// console client expects, so its renewal path is exercised.
func BearerAuth(v AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader(constraints.HeaderAuthorization)
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == strings.TrimSpace(constraints.BearerPrefix) {
				tokenString = strings.TrimSpace(parts[1])
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}

		op, err := v.ParseAccess(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}

		ctx := service.WithOperator(c.Request.Context(), op)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
