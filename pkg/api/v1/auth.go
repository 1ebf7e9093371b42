package v1

import "encoding/json"

// UserProfile is the user record returned by login and users/me/.
type UserProfile struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	CI                 string `json:"ci,omitempty"`
	Telefono           string `json:"telefono,omitempty"`
	Rol                *int64 `json:"rol,omitempty"`
	UnidadHabitacional *int64 `json:"unidad_habitacional,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *UserProfile `json:"user"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RefreshResponse carries a new access token. Refresh is set only when the
// server rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// LogoutRequest accepts either spelling of the refresh field.
type LogoutRequest struct {
	Refresh      string `json:"refresh,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (r LogoutRequest) Token() string {
	if r.Refresh != "" {
		return r.Refresh
	}
	return r.RefreshToken
}

// ErrorBody is the usual shape of an API error payload.
type ErrorBody struct {
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ParseErrorDetail extracts a human message from an error payload, falling
// back to the raw body.
func ParseErrorDetail(body []byte) string {
	var e ErrorBody
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return string(body)
}
