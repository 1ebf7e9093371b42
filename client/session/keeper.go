package session

import (
	"context"
	"errors"
	"time"

	"condoadmin/client"
	"condoadmin/pkg/logger"

	"go.uber.org/zap"
)

// Keeper revalidates the signed-in user's profile on an interval, so a
// session that expired while the console sat idle ends promptly and every
// stream listener is told.
type Keeper struct {
	manager  *Manager
	interval time.Duration
}

func NewKeeper(m *Manager, interval time.Duration) *Keeper {
	return &Keeper{manager: m, interval: interval}
}

func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	logger.Info("session keeper started", zap.Duration("interval", k.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("session keeper stopped")
			return
		case <-ticker.C:
			k.check(ctx)
		}
	}
}

func (k *Keeper) check(ctx context.Context) {
	if !k.manager.IsAuthenticated() {
		return
	}
	_, err := k.manager.ReloadProfile(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, ErrSessionChanged), errors.Is(err, ErrNotAuthenticated):
		// signed out or replaced mid-check; nothing to keep alive
	case client.IsRenewal(err):
		logger.Info("session keeper: session ended", zap.Error(err))
	default:
		// transient; the next tick tries again
		logger.Warn("session keeper: profile check failed", zap.Error(err))
	}
}
