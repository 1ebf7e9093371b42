package api

import (
	"context"
	"errors"
	"net/http"

	"condoadmin/internal/dto/req"
	"condoadmin/internal/service"
	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenIssuer is the dev API's auth backend.
type TokenIssuer interface {
	Login(ctx context.Context, username, password string) (*v1.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*v1.RefreshResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(op *service.OperatorInfo) (*v1.UserProfile, error)
}

// AuthHandler serves auth/login/, auth/logout/, token/refresh/ and users/me/
// with the payload shapes of the production API.
type AuthHandler struct {
	svc TokenIssuer
}

func NewAuthHandler(svc TokenIssuer) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body v1.LoginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Debe incluir username y password."}})
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Credenciales inválidas."}})
			return
		}
		logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "login failed"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var body req.RefreshReq
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"refresh": []string{"This field is required."}})
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), body.Refresh)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		logger.Error("refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "refresh failed"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Logout is public: it must work even after the caller's access token is gone.
func (h *AuthHandler) Logout(c *gin.Context) {
	var body v1.LogoutRequest
	_ = c.ShouldBindJSON(&body)

	err := h.svc.Logout(c.Request.Context(), body.Token())
	switch {
	case err == nil:
		c.Status(http.StatusResetContent)
	case errors.Is(err, service.ErrTokenMissing):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "refresh token required"})
	case errors.Is(err, service.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid refresh token"})
	default:
		logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "logout failed"})
	}
}

func (h *AuthHandler) Me(c *gin.Context) {
	op := service.GetOperatorInfo(c.Request.Context())
	user, err := h.svc.Profile(op)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Collections is the read side of the dev API's directory.
type Collections interface {
	Collection(ctx context.Context, name string) ([]map[string]any, error)
}

type DirectoryHandler struct {
	dir Collections
}

func NewDirectoryHandler(dir Collections) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

func (h *DirectoryHandler) List(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.dir.Collection(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, service.ErrUnknownCollection) {
				c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
