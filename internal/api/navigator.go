package api

import (
	"sync"

	"condoadmin/pkg/logger"

	"go.uber.org/zap"
)

// RedirectRecorder is the console's client.Navigator. A server cannot move
// the browser itself, so it remembers the forced redirect and reports it on
// the next session read; live pages get it from the session stream.
type RedirectRecorder struct {
	mu   sync.Mutex
	last string
}

func NewRedirectRecorder() *RedirectRecorder {
	return &RedirectRecorder{}
}

func (r *RedirectRecorder) Navigate(target string) {
	logger.Info("session ended, redirecting", zap.String("target", target))
	r.mu.Lock()
	r.last = target
	r.mu.Unlock()
}

func (r *RedirectRecorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Reset forgets the pending redirect after a fresh sign-in.
func (r *RedirectRecorder) Reset() {
	r.mu.Lock()
	r.last = ""
	r.mu.Unlock()
}
