package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"condoadmin/client"
	"condoadmin/internal/dto/req"
	"condoadmin/internal/dto/resp"
	"condoadmin/internal/middleware"
	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resource maps a console route to the API collection behind it.
type Resource struct {
	Route string
	Path  string
}

// ConsoleResources are the pages of the admin console.
var ConsoleResources = []Resource{
	{Route: "/usuarios", Path: "users/"},
	{Route: "/roles", Path: "roles/"},
	{Route: "/privilegios", Path: "privileges/"},
	{Route: "/unidades", Path: "unidades/"},
	{Route: "/cuotas", Path: "cuotas/"},
	{Route: "/bitacora", Path: "bitacora/"},
}

// dashboardCounts are the collections summarized on the landing page.
var dashboardCounts = []string{"unidades/", "cuotas/", "users/"}

// APIDoer is the authorized request dispatcher.
type APIDoer interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
	LoginRoute() string
}

type CurrentUser interface {
	CurrentUser() *v1.UserProfile
}

type ResourceHandler struct {
	api      APIDoer
	sessions CurrentUser
}

func NewResourceHandler(api APIDoer, sessions CurrentUser) *ResourceHandler {
	return &ResourceHandler{api: api, sessions: sessions}
}

// List proxies a collection listing through the dispatcher, so an expired
// access token is renewed transparently.
func (h *ResourceHandler) List(res Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q req.ListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, resp.ErrorResp{Error: "invalid params", Detail: err.Error()})
			return
		}

		data, err := h.fetch(c.Request.Context(), res.Path, listValues(q), middleware.TraceID(c))
		if err != nil {
			h.writeError(c, res.Path, err)
			return
		}
		c.JSON(http.StatusOK, resp.ResourceResp{Resource: res.Path, Count: count(data), Data: data})
	}
}

func (h *ResourceHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	traceID := middleware.TraceID(c)
	counts := make([]int, len(dashboardCounts))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range dashboardCounts {
		g.Go(func() error {
			data, err := h.fetch(gctx, path, nil, traceID)
			if err != nil {
				return err
			}
			counts[i] = count(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.writeError(c, "dashboard", err)
		return
	}

	user := h.sessions.CurrentUser()
	out := resp.DashboardResp{
		Welcome: "Bienvenido, " + user.DisplayName(),
		User:    user,
		Counts:  make(map[string]int, len(dashboardCounts)),
	}
	for i, path := range dashboardCounts {
		out.Counts[path[:len(path)-1]] = counts[i]
	}
	c.JSON(http.StatusOK, out)
}

func (h *ResourceHandler) fetch(ctx context.Context, path string, query url.Values, traceID string) (any, error) {
	header := http.Header{}
	if traceID != "" {
		header.Set(middleware.TraceHeader, traceID)
	}
	r, err := h.api.Do(ctx, &client.Request{Method: http.MethodGet, Path: path, Query: query, Header: header})
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// writeError surfaces API errors to the console. Domain errors keep their
// status and message; a failed renewal means the session is already gone.
func (h *ResourceHandler) writeError(c *gin.Context, what string, err error) {
	var he *client.HTTPError
	switch {
	case client.IsRenewal(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": h.api.LoginRoute()})
	case errors.As(err, &he):
		c.JSON(he.StatusCode, resp.ErrorResp{Error: http.StatusText(he.StatusCode), Detail: he.Detail()})
	case client.IsNetwork(err):
		logger.Error("api unreachable", zap.String("resource", what), zap.Error(err))
		c.JSON(http.StatusBadGateway, resp.ErrorResp{Error: "api unreachable"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		logger.Error("resource fetch failed", zap.String("resource", what), zap.Error(err))
		c.JSON(http.StatusInternalServerError, resp.ErrorResp{Error: "internal error"})
	}
}

func listValues(q req.ListQuery) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// count handles both plain lists and paginated {"count": n, "results": [...]}.
func count(data any) int {
	switch d := data.(type) {
	case []any:
		return len(d)
	case map[string]any:
		if n, ok := d["count"].(float64); ok {
			return int(n)
		}
		if results, ok := d["results"].([]any); ok {
			return len(results)
		}
	}
	return 0
}
