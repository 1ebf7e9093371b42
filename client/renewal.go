package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"condoadmin/client/credential"
	"condoadmin/internal/metrics"
	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/logger"

	"go.uber.org/zap"
)

const renewKey = "renew"

// renew returns a fresh access token. Concurrent callers share a single call
// to the refresh endpoint. The shared call is detached from any one caller's
// cancellation and bounded by renewTimeout instead; each caller still stops
// waiting when its own ctx is done.
//
// stale is the token the failed request was sent with. If the store already
// holds a different token, another request renewed in the meantime and that
// token is returned without calling the endpoint.
func (c *Client) renew(ctx context.Context, stale string) (string, error) {
	ch := c.renewals.DoChan(renewKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.renewTimeout)
		defer cancel()
		return c.renewOnce(rctx, stale)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.observer.RecordRenewal(metrics.RenewalShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) renewOnce(ctx context.Context, stale string) (string, error) {
	pair, err := c.store.Get(ctx)
	if err != nil {
		return "", c.fail(ctx, fmt.Errorf("load credentials: %w", err))
	}
	if pair != nil && pair.Access != stale {
		c.observer.RecordRenewal(metrics.RenewalSkipped)
		return pair.Access, nil
	}
	if pair == nil || pair.Refresh == "" {
		return "", c.fail(ctx, ErrNoRefreshToken)
	}

	body, err := json.Marshal(v1.RefreshRequest{Refresh: pair.Refresh})
	if err != nil {
		return "", c.fail(ctx, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.refreshPath, nil), bytes.NewReader(body))
	if err != nil {
		return "", c.fail(ctx, err)
	}

	// The refresh call never carries the access token and is never itself renewed.
	resp, err := c.exchange(httpReq, http.MethodPost, c.refreshPath, true)
	if err != nil {
		return "", c.fail(ctx, err)
	}

	var out v1.RefreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", c.fail(ctx, fmt.Errorf("decode renewal response: %w", err))
	}
	if out.Access == "" {
		return "", c.fail(ctx, ErrMalformedRenewal)
	}

	next := credential.Pair{Access: out.Access, Refresh: pair.Refresh}
	if out.Refresh != "" {
		next.Refresh = out.Refresh
	}
	if err := c.store.Set(ctx, next); err != nil {
		return "", c.fail(ctx, fmt.Errorf("store renewed credentials: %w", err))
	}

	c.observer.RecordRenewal(metrics.RenewalSuccess)
	logger.Info("access token renewed", zap.Bool("refresh_rotated", out.Refresh != ""))
	return next.Access, nil
}

// fail tears the session down: credentials are cleared, invalidation hooks
// run, and the user is sent to the login route.
func (c *Client) fail(ctx context.Context, cause error) error {
	c.observer.RecordRenewal(metrics.RenewalFailure)
	logger.Warn("token renewal failed, ending session", zap.Error(cause))

	if err := c.store.Clear(ctx); err != nil {
		logger.Error("failed to clear credentials", zap.Error(err))
	}

	c.mu.RLock()
	hooks := append([]func(error){}, c.onInvalidated...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(cause)
	}

	c.navigator.Navigate(c.loginRoute)
	return &RenewalError{Err: cause}
}
