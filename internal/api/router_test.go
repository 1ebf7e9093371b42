package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"condoadmin/client"
	"condoadmin/client/credential"
	"condoadmin/client/session"
	"condoadmin/internal/dto/resp"
	"condoadmin/internal/middleware"
	"condoadmin/internal/service"
	"condoadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

type harness struct {
	devapi  *httptest.Server
	console *gin.Engine
	store   *credential.MemoryStore
	manager *session.Manager
	nav     *RedirectRecorder
}

func newHarness(t *testing.T, restore bool) *harness {
	t.Helper()

	dir, err := service.NewDirectory(service.DefaultSeed(), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(dir, service.NewMemoryAllowList(), "test-key")
	devapi := httptest.NewServer(RegisterDevAPIRoutes(NewAuthHandler(auth), NewDirectoryHandler(dir), auth))
	t.Cleanup(devapi.Close)

	store := credential.NewMemoryStore()
	nav := NewRedirectRecorder()
	c, err := client.New(devapi.URL+"/api", store, client.WithNavigator(nav))
	require.NoError(t, err)

	mgr := session.NewManager(c)
	t.Cleanup(mgr.Dispose)
	if restore {
		require.NoError(t, mgr.Init(context.Background()))
	}

	console := RegisterConsoleRoutes(ConsoleDeps{
		Sessions:     NewSessionHandler(mgr, nav),
		Resources:    NewResourceHandler(c, mgr),
		Signal:       mgr,
		LoginLimiter: middleware.NewLoginLimiter(600, 100),
	})
	return &harness{devapi: devapi, console: console, store: store, manager: mgr, nav: nav}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.console.ServeHTTP(w, req)
	return w
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	w := h.do(http.MethodPost, "/login", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConsole_GuardBeforeLogin(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"redirect":"/login"`)

	req := httptest.NewRequest(http.MethodGet, "/usuarios", nil)
	rec := httptest.NewRecorder()
	h.console.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	w = h.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestConsole_NotReadyUntilRestored(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	// health and metrics stay reachable
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", nil).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", nil).Code)

	require.NoError(t, h.manager.Init(context.Background()))
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/session", nil).Code)
}

func TestConsole_LoginAndBrowse(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(http.MethodPost, "/login", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess resp.SessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.True(t, sess.Authenticated)
	require.Equal(t, "Admin Condominio", sess.DisplayName)
	require.Equal(t, "/dashboard", sess.Redirect)

	pair, err := h.store.Get(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	// the login page bounces a signed-in user
	w = h.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = h.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = h.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dash resp.DashboardResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	require.Equal(t, map[string]int{"unidades": 2, "cuotas": 2, "users": 2}, dash.Counts)

	for _, res := range ConsoleResources {
		w = h.do(http.MethodGet, res.Route, nil)
		require.Equal(t, http.StatusOK, w.Code, res.Route)
	}

	w = h.do(http.MethodGet, "/bitacora", nil)
	var log resp.ResourceResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &log))
	require.Equal(t, 1, log.Count)
}

func TestConsole_LoginRejected(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(http.MethodPost, "/login", gin.H{"username": "admin", "password": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Credenciales")
	require.False(t, h.manager.IsAuthenticated())

	w = h.do(http.MethodPost, "/login", gin.H{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsole_ExpiredAccessIsRenewed(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	ctx := context.Background()

	pair, err := h.store.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, h.store.Set(ctx, credential.Pair{Access: "expired", Refresh: pair.Refresh}))

	w := h.do(http.MethodGet, "/cuotas", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	renewed, err := h.store.Get(ctx)
	require.NoError(t, err)
	require.NotEqual(t, "expired", renewed.Access)
	require.Equal(t, pair.Refresh, renewed.Refresh)
	require.True(t, h.manager.IsAuthenticated())
}

func TestConsole_RevokedRefreshEndsSession(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	ctx := context.Background()

	pair, err := h.store.Get(ctx)
	require.NoError(t, err)

	// revoke the refresh token behind the console's back
	body, _ := json.Marshal(gin.H{"refresh_token": pair.Refresh})
	res, err := http.Post(h.devapi.URL+"/api/auth/logout/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusResetContent, res.StatusCode)

	require.NoError(t, h.store.Set(ctx, credential.Pair{Access: "expired", Refresh: pair.Refresh}))

	w := h.do(http.MethodGet, "/unidades", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"redirect":"/login"`)

	require.False(t, h.manager.IsAuthenticated())
	gone, err := h.store.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, gone)
	require.Equal(t, "/login", h.nav.Last())

	w = h.do(http.MethodGet, "/session", nil)
	var sess resp.SessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.False(t, sess.Authenticated)
	require.Equal(t, "/login", sess.Redirect)

	// signing in again clears the pending redirect
	h.login(t)
	require.Empty(t, h.nav.Last())
}

func TestConsole_Logout(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)

	w := h.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, h.manager.IsAuthenticated())
	pair, err := h.store.Get(context.Background())
	require.NoError(t, err)
	require.Nil(t, pair)

	// the dev API saw a successful logout
	h.login(t)
	w = h.do(http.MethodGet, "/bitacora", nil)
	require.Contains(t, w.Body.String(), `"accion":"LOGOUT"`)
	require.Contains(t, w.Body.String(), `"status":205`)
}

func TestConsole_LoginIsThrottled(t *testing.T) {
	h := newHarness(t, true)
	h.console = RegisterConsoleRoutes(ConsoleDeps{
		Sessions:     NewSessionHandler(h.manager, h.nav),
		Resources:    NewResourceHandler(nil, h.manager),
		Signal:       h.manager,
		LoginLimiter: middleware.NewLoginLimiter(1, 1),
	})

	w := h.do(http.MethodPost, "/login", gin.H{"username": "admin", "password": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/login", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	require.False(t, h.manager.IsAuthenticated())
}

func openStream(t *testing.T, url string) <-chan string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	mediaType, _, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", mediaType)

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(res.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event:"); ok {
				events <- strings.TrimSpace(name)
			}
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	for {
		select {
		case got, ok := <-events:
			require.True(t, ok, "stream closed")
			if got != "ping" {
				return got
			}
		case <-time.After(3 * time.Second):
			t.Fatal("no event")
			return ""
		}
	}
}

func TestConsole_SessionStream(t *testing.T) {
	h := newHarness(t, true)
	srv := httptest.NewServer(h.console)
	t.Cleanup(srv.Close)

	events := openStream(t, srv.URL+"/session/stream")
	require.Equal(t, "snapshot", nextEvent(t, events))

	h.login(t)
	require.Equal(t, string(session.EventLoggedIn), nextEvent(t, events))
	h.do(http.MethodPost, "/logout", nil)
	require.Equal(t, string(session.EventLoggedOut), nextEvent(t, events))
}

func TestConsole_SessionStreamResumes(t *testing.T) {
	h := newHarness(t, true)
	srv := httptest.NewServer(h.console)
	t.Cleanup(srv.Close)

	// seq 1 is the restore at startup
	h.login(t)
	h.do(http.MethodPost, "/logout", nil)

	events := openStream(t, srv.URL+"/session/stream?last_seq=1")
	require.Equal(t, string(session.EventLoggedIn), nextEvent(t, events))
	require.Equal(t, string(session.EventLoggedOut), nextEvent(t, events))

	h.login(t)
	require.Equal(t, string(session.EventLoggedIn), nextEvent(t, events))
}
