package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	return NewManager(handler, cfg, zap.NewNop())
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "api", cfg.Name)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, 90*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestNewManager_FillsDefaults(t *testing.T) {
	m := NewManager(http.NewServeMux(), Config{Addr: ":9999"}, nil)
	assert.Equal(t, "api", m.config.Name)
	assert.Equal(t, 30*time.Second, m.config.ShutdownTimeout)
	assert.Equal(t, ":9999", m.Addr())
	assert.True(t, m.IsRunning())
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	require.NoError(t, m.Start())

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_DoubleStartAndRestart(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())
	require.NoError(t, m.Start())

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_RegisterOnShutdown(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())
	require.NoError(t, m.Start())

	called := make(chan struct{})
	m.RegisterOnShutdown(func() { close(called) })
	require.NoError(t, m.Shutdown(context.Background()))

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook not called")
	}
}

func TestWaitForShutdown_ContextAndFailure(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, WaitForShutdown(ctx, zap.NewNop(), m))

	m.errCh <- errors.New("listener gone")
	err := WaitForShutdown(context.Background(), nil, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server: listener gone")
}

func TestShutdownAll_JoinsErrors(t *testing.T) {
	var ran atomic.Int32
	ok := func(context.Context) error { ran.Add(1); return nil }
	boom := func(context.Context) error { ran.Add(1); return errors.New("boom") }

	err := ShutdownAll(context.Background(), ok, boom, nil, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(3), ran.Load())

	assert.NoError(t, ShutdownAll(context.Background()))
}
