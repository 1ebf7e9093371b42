package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeeper_EndsExpiredSession(t *testing.T) {
	b := &fakeBackend{refreshCode: http.StatusUnauthorized}
	m, store, nav := setup(t, b, nil)
	_, err := m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewKeeper(m, 10*time.Millisecond).Run(ctx)

	// still valid: the keeper only refreshes the profile
	require.Eventually(t, func() bool { return b.meCalls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, m.IsAuthenticated())

	b.mu.Lock()
	b.validAccess = "ROTATED"
	b.mu.Unlock()

	require.Eventually(t, func() bool { return !m.IsAuthenticated() }, 2*time.Second, 5*time.Millisecond)
	pair, _ := store.Get(context.Background())
	require.Nil(t, pair)
	require.Contains(t, nav.all(), "/login")
}

func TestKeeper_IdleWhenSignedOut(t *testing.T) {
	b := &fakeBackend{}
	m, _, _ := setup(t, b, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	NewKeeper(m, 5*time.Millisecond).Run(ctx)

	require.Zero(t, b.meCalls.Load())
}
