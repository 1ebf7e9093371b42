// Package client is the single choke point for calls to the condominium API.
// It attaches the stored access token to every request and, when the API
// answers 401, renews the token once and replays the request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"condoadmin/client/credential"
	"condoadmin/internal/metrics"
	"condoadmin/pkg/constraints"
	"condoadmin/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL      = "http://localhost:8000/api"
	DefaultRenewTimeout = 15 * time.Second
)

// Navigator moves the user interface to another route.
type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

// Request describes one logical API call. Path is relative to the base URL.
// Body is sent as JSON unless it is already []byte or json.RawMessage.
// Anonymous requests carry no access token and are never renewed.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      any
	Anonymous bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// attempt is a Request in flight. retried is set once the request has been
// replayed after a renewal; a second 401 is then final.
type attempt struct {
	req        *Request
	body       []byte
	retried    bool
	sentAccess string
}

type Client struct {
	baseURL    string
	store      credential.Store
	httpClient *http.Client
	observer   metrics.ClientObserver
	navigator  Navigator

	refreshPath  string
	loginRoute   string
	renewTimeout time.Duration

	renewals singleflight.Group

	mu            sync.RWMutex
	onInvalidated []func(error)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(o metrics.ClientObserver) Option {
	return func(c *Client) { c.observer = o }
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithRefreshPath overrides the renewal endpoint, e.g. "auth/token/refresh/".
func WithRefreshPath(path string) Option {
	return func(c *Client) { c.refreshPath = strings.TrimPrefix(path, "/") }
}

func WithLoginRoute(route string) Option {
	return func(c *Client) { c.loginRoute = route }
}

func WithRenewTimeout(d time.Duration) Option {
	return func(c *Client) { c.renewTimeout = d }
}

func New(baseURL string, store credential.Store, opts ...Option) (*Client, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:      base,
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		observer:     metrics.Nop,
		navigator:    noopNavigator{},
		refreshPath:  constraints.PathRefresh,
		loginRoute:   constraints.RouteLogin,
		renewTimeout: DefaultRenewTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL returns raw with exactly one trailing slash. An empty raw
// yields DefaultBaseURL.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	return strings.TrimRight(raw, "/") + "/", nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Store() credential.Store {
	return c.store
}

func (c *Client) LoginRoute() string {
	return c.loginRoute
}

// OnSessionInvalidated registers fn to run after a failed renewal has cleared
// the stored credentials.
func (c *Client) OnSessionInvalidated(fn func(error)) {
	c.mu.Lock()
	c.onInvalidated = append(c.onInvalidated, fn)
	c.mu.Unlock()
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Do sends req with the current access token. On a first 401 it renews the
// token and replays req exactly once. A 401 with nothing stored ends the
// session like any other failed renewal. Non-2xx
// answers are returned as *HTTPError, transport failures as *NetworkError and
// failed renewals as *RenewalError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	a, err := newAttempt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, a)
	if !IsUnauthorized(err) || a.retried || a.req.Anonymous {
		return resp, err
	}

	if _, err := c.renew(ctx, a.sentAccess); err != nil {
		return nil, err
	}

	a.retried = true
	c.observer.RecordReplay()
	logger.Debug("replaying request after renewal",
		zap.String("method", a.req.Method),
		zap.String("path", a.req.Path))
	return c.send(ctx, a)
}

func newAttempt(req *Request) (*attempt, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	a := &attempt{req: req}
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		a.body = b
	case json.RawMessage:
		a.body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("client: encode %s %s body: %w", req.Method, req.Path, err)
		}
		a.body = data
	}
	return a, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	var target string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	} else {
		target = c.baseURL + strings.TrimPrefix(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

// send performs one HTTP exchange, reading the access token from the store
// at send time.
func (c *Client) send(ctx context.Context, a *attempt) (*Response, error) {
	var body io.Reader
	if a.body != nil {
		body = bytes.NewReader(a.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, a.req.Method, c.resolve(a.req.Path, a.req.Query), body)
	if err != nil {
		return nil, fmt.Errorf("client: build %s %s: %w", a.req.Method, a.req.Path, err)
	}
	for k, vs := range a.req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Del(constraints.HeaderAuthorization)
	if a.req.Anonymous {
		return c.exchange(httpReq, a.req.Method, a.req.Path, a.body != nil)
	}

	pair, err := c.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: load credentials: %w", err)
	}
	a.sentAccess = ""
	if pair != nil {
		a.sentAccess = pair.Access
		httpReq.Header.Set(constraints.HeaderAuthorization, constraints.BearerPrefix+pair.Access)
	}

	return c.exchange(httpReq, a.req.Method, a.req.Path, a.body != nil)
}

func (c *Client) exchange(httpReq *http.Request, method, path string, hasBody bool) (*Response, error) {
	if hasBody && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set(constraints.HeaderRequestID, uuid.New().String())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observer.ObserveRequest(method, 0, time.Since(start))
		logger.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observer.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
