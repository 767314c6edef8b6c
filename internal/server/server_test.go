package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, s *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	return "http://" + ln.Addr().String(), cancel, done
}

func TestServer_ServesAndShutsDownInReverseOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s := New(handler, Options{ShutdownTimeout: time.Second}, testLogger())

	var order []string
	for _, name := range []string{"store", "cache", "metrics"} {
		name := name
		s.OnShutdown(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	url, cancel, done := startServer(t, s)

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"metrics", "cache", "store"}, order)
}

func TestServer_ShutdownErrorsAreJoined(t *testing.T) {
	s := New(http.NotFoundHandler(), Options{ShutdownTimeout: time.Second}, testLogger())

	errCache := errors.New("cache close failed")
	var storeStopped bool
	s.OnShutdown("store", func(ctx context.Context) error {
		storeStopped = true
		return nil
	})
	s.OnShutdown("cache", func(ctx context.Context) error { return errCache })

	_, cancel, done := startServer(t, s)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errCache)
		assert.Contains(t, err.Error(), "cache")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, storeStopped, "later failures must not skip earlier hooks")
}

func TestServer_Addr(t *testing.T) {
	s := New(http.NotFoundHandler(), Options{Port: 8080}, testLogger())
	assert.Equal(t, ":8080", s.Addr())
}
