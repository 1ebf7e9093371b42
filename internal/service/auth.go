package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AccessTokenTTL  = 5 * time.Minute
	RefreshTokenTTL = 24 * time.Hour
	Issuer          = "condoadmin-devapi"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUnknownUser        = errors.New("unknown user")
	ErrTokenMissing       = errors.New("refresh token required")
)

type UserClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type AuthOption func(*AuthService)

func WithTTLs(access, refresh time.Duration) AuthOption {
	return func(s *AuthService) {
		if access > 0 {
			s.accessTokenTTL = access
		}
		if refresh > 0 {
			s.refreshTokenTTL = refresh
		}
	}
}

// WithRotation makes Refresh issue a new refresh token and revoke the old one.
func WithRotation(rotate bool) AuthOption {
	return func(s *AuthService) { s.rotate = rotate }
}

// AuthService issues and verifies the dev API's JWT pairs.
type AuthService struct {
	directory       *Directory
	allow           AllowList
	signingKey      []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	rotate          bool
	now             func() time.Time
}

func NewAuthService(dir *Directory, allow AllowList, signingKey string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		directory:       dir,
		allow:           allow,
		signingKey:      []byte(signingKey),
		accessTokenTTL:  AccessTokenTTL,
		refreshTokenTTL: RefreshTokenTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Directory() *Directory { return s.directory }

// Login checks the password and returns a fresh pair plus the profile.
func (s *AuthService) Login(ctx context.Context, username, password string) (*v1.LoginResponse, error) {
	user, ok := s.directory.Authenticate(username, password)
	if !ok {
		s.directory.Record("ACCESO_FALLIDO", http.StatusBadRequest, username)
		return nil, ErrInvalidCredentials
	}

	access, err := s.sign(user.ID, user.Username, TokenTypeAccess, s.accessTokenTTL, "")
	if err != nil {
		return nil, err
	}
	refresh, err := s.issueRefresh(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	s.directory.Record("ACCESO", http.StatusOK, username)
	return &v1.LoginResponse{Access: access, Refresh: refresh, User: user}, nil
}

// Refresh exchanges a live refresh token for a new access token. With
// rotation on, the old refresh token is revoked and a new one returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*v1.RefreshResponse, error) {
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	live, err := s.allow.Exists(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrTokenInvalid
	}

	access, err := s.sign(claims.UserID, claims.Username, TokenTypeAccess, s.accessTokenTTL, "")
	if err != nil {
		return nil, err
	}
	out := &v1.RefreshResponse{Access: access}

	if s.rotate {
		if err := s.allow.Revoke(ctx, claims.ID); err != nil {
			return nil, err
		}
		if out.Refresh, err = s.issueRefresh(ctx, claims.UserID, claims.Username); err != nil {
			return nil, err
		}
	}

	logger.Debug("token refreshed", zap.Int64("user_id", claims.UserID), zap.Bool("rotated", s.rotate))
	return out, nil
}

// Logout revokes a refresh token. Every attempt lands in the activity log,
// failed ones as LOGOUT_FALLIDO.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		s.directory.Record("LOGOUT_FALLIDO", http.StatusBadRequest, "")
		return ErrTokenMissing
	}
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		s.directory.Record("LOGOUT_FALLIDO", http.StatusBadRequest, "")
		return err
	}
	live, err := s.allow.Exists(ctx, claims.ID)
	if err != nil {
		return err
	}
	if !live {
		s.directory.Record("LOGOUT_FALLIDO", http.StatusBadRequest, claims.Username)
		return ErrTokenInvalid
	}
	if err := s.allow.Revoke(ctx, claims.ID); err != nil {
		return err
	}
	s.directory.Record("LOGOUT", http.StatusResetContent, claims.Username)
	return nil
}

// ParseAccess verifies an access token and returns the operator it names.
func (s *AuthService) ParseAccess(token string) (*OperatorInfo, error) {
	claims, err := s.parse(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &OperatorInfo{UserID: claims.UserID, Username: claims.Username}, nil
}

func (s *AuthService) Profile(op *OperatorInfo) (*v1.UserProfile, error) {
	if op == nil {
		return nil, ErrUnknownUser
	}
	user, ok := s.directory.Profile(op.UserID)
	if !ok {
		return nil, ErrUnknownUser
	}
	return user, nil
}

func (s *AuthService) issueRefresh(ctx context.Context, userID int64, username string) (string, error) {
	jti := uuid.NewString()
	token, err := s.sign(userID, username, TokenTypeRefresh, s.refreshTokenTTL, jti)
	if err != nil {
		return "", err
	}
	if err := s.allow.Add(ctx, jti, userID, s.refreshTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) sign(userID int64, username, tokenType string, ttl time.Duration, jti string) (string, error) {
	now := s.now()
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := UserClaims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *AuthService) parse(raw, tokenType string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != tokenType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
