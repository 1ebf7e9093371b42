package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"condoadmin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(string) (*service.OperatorInfo, error)

func (f verifierFunc) ParseAccess(token string) (*service.OperatorInfo, error) { return f(token) }

func TestBearerAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := verifierFunc(func(token string) (*service.OperatorInfo, error) {
		if token == "good" {
			return &service.OperatorInfo{UserID: 1, Username: "admin"}, nil
		}
		return nil, errors.New("bad token")
	})

	r := gin.New()
	r.GET("/me", BearerAuth(v), func(c *gin.Context) {
		op := service.GetOperatorInfo(c.Request.Context())
		c.String(http.StatusOK, op.Username)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid", header: "Bearer good", wantCode: http.StatusOK, wantBody: "admin"},
		{name: "missing", header: "", wantCode: http.StatusUnauthorized, wantBody: "not provided"},
		{name: "wrong scheme", header: "Token good", wantCode: http.StatusUnauthorized, wantBody: "not provided"},
		{name: "invalid", header: "Bearer bad", wantCode: http.StatusUnauthorized, wantBody: "token_not_valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantCode, w.Code)
			require.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
