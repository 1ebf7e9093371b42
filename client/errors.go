package client

import (
	"errors"
	"fmt"
	"net/http"

	v1 "condoadmin/pkg/api/v1"
)

var (
	ErrInvalidBaseURL   = errors.New("client: invalid base url")
	ErrNoRefreshToken   = errors.New("client: no refresh token stored")
	ErrMalformedRenewal = errors.New("client: renewal response carries no access token")
)

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("client: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response. Body holds the payload verbatim so callers
// can show server-side validation messages.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("client: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Detail is the server's message, or the raw body when it has none.
func (e *HTTPError) Detail() string {
	return v1.ParseErrorDetail(e.Body)
}

// RenewalError is returned in place of the original result when the access
// token could not be renewed. By the time it is returned the stored
// credentials are gone and the session has been invalidated.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return "client: token renewal failed: " + e.Err.Error()
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

// StatusCode reports the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsRenewal(err error) bool {
	var re *RenewalError
	return errors.As(err, &re)
}
