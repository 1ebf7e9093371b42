package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"condoadmin/client"
	"condoadmin/client/session"
	"condoadmin/internal/dto/req"
	"condoadmin/internal/dto/resp"
	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/constraints"
	"condoadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// SessionService is the part of *session.Manager the console handlers use.
type SessionService interface {
	Login(ctx context.Context, username, password string) (*v1.UserProfile, error)
	Logout(ctx context.Context)
	Snapshot() session.Event
	Since(seq int64) ([]session.Event, bool)
	Subscribe(buffer int) *session.Subscription
	IsAuthenticated() bool
	Loading() bool
}

type SessionHandler struct {
	sessions  SessionService
	navigator *RedirectRecorder
	landing   string
}

func NewSessionHandler(sessions SessionService, navigator *RedirectRecorder) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		navigator: navigator,
		landing:   constraints.RouteDashboard,
	}
}

// LoginPage tells the browser it is on the sign-in route. Signed-in users
// never reach it.
func (h *SessionHandler) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"route": constraints.RouteLogin, "fields": []string{"username", "password"}})
}

func (h *SessionHandler) Login(c *gin.Context) {
	var body req.LoginReq
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, resp.ErrorResp{Error: "username and password are required"})
		return
	}

	user, err := h.sessions.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		logger.Warn("console login failed",
			zap.String("username", body.Username),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		writeLoginError(c, err)
		return
	}

	h.navigator.Reset()
	c.JSON(http.StatusOK, resp.SessionResp{
		Authenticated: true,
		DisplayName:   user.DisplayName(),
		User:          user,
		Redirect:      h.landing,
	})
}

// Logout always succeeds; server-side revocation is best effort.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.JSON(http.StatusOK, resp.SessionResp{Redirect: constraints.RouteLogin})
}

func (h *SessionHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.view(h.sessions.Snapshot()))
}

// Stream pushes every change of the authentication signal as a server-sent
// event. A fresh stream starts with the current state; one resuming with
// ?last_seq= first gets the events it missed, or a reset when they are gone.
func (h *SessionHandler) Stream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub := h.sessions.Subscribe(16)
	defer sub.Close()

	logger.Debug("session stream connected", zap.String("ip", c.ClientIP()))

	var maxSent int64
	resumed := false
	if raw := c.Query("last_seq"); raw != "" {
		if last, err := strconv.ParseInt(raw, 10, 64); err == nil {
			missed, ok := h.sessions.Since(last)
			if ok {
				resumed = true
				maxSent = last
				for _, ev := range missed {
					c.SSEvent(string(ev.Kind), ev)
					maxSent = ev.Seq
				}
			} else {
				c.SSEvent("reset", "history_too_old")
			}
		}
	}
	if !resumed {
		snap := h.sessions.Snapshot()
		c.SSEvent("snapshot", h.view(snap))
		maxSent = snap.Seq
	}
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			// already sent from history
			if ev.Seq <= maxSent {
				return true
			}
			c.SSEvent(string(ev.Kind), ev)
			maxSent = ev.Seq
			return true
		case <-ticker.C:
			c.SSEvent("ping", "pong")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *SessionHandler) view(ev session.Event) resp.SessionResp {
	out := resp.SessionResp{
		Seq:           ev.Seq,
		Authenticated: ev.Authenticated,
		Loading:       ev.Loading,
		User:          ev.User,
		DisplayName:   ev.User.DisplayName(),
	}
	if !ev.Authenticated && !ev.Loading {
		out.Redirect = h.navigator.Last()
	}
	return out
}

func writeLoginError(c *gin.Context, err error) {
	var he *client.HTTPError
	switch {
	case errors.As(err, &he):
		c.JSON(he.StatusCode, resp.ErrorResp{Error: "login rejected", Detail: he.Detail()})
	case errors.Is(err, session.ErrMalformedLogin):
		c.JSON(http.StatusBadGateway, resp.ErrorResp{Error: "unexpected login response"})
	case client.IsNetwork(err):
		c.JSON(http.StatusBadGateway, resp.ErrorResp{Error: "api unreachable"})
	default:
		c.JSON(http.StatusInternalServerError, resp.ErrorResp{Error: "login failed"})
	}
}
