package livestatus

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/counters"
)

type testServer struct {
	srv    *Server
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// startServer serves the fixture core on a socket in a short temp dir.
// UNIX socket paths are limited to about 100 bytes, so t.TempDir is not
// used.
func startServer(t *testing.T, tune func(*config.Config)) *testServer {
	t.Helper()
	dir, err := os.MkdirTemp("", "ls")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := testConfig()
	cfg.SocketPath = filepath.Join(dir, "live")
	cfg.NumClientThreads = 2
	if tune != nil {
		tune(cfg)
	}
	store, err := NewStore(newFakeCore(t), cfg, testLogger())
	require.NoError(t, err)
	srv := NewServer(store, cfg, testLogger())
	srv.pollInterval = 20 * time.Millisecond
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(t.Context())
	ts := &testServer{srv: srv, path: cfg.SocketPath, cancel: cancel, done: make(chan struct{})}
	go func() {
		ts.err = srv.Serve(ctx)
		close(ts.done)
	}()
	t.Cleanup(ts.stop)
	return ts
}

func (ts *testServer) stop() {
	ts.cancel()
	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
	}
}

func (ts *testServer) dial(t *testing.T) *net.UnixConn {
	t.Helper()
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: ts.path, Net: "unix"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAll(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func TestServerAnswersQuery(t *testing.T) {
	ts := startServer(t, nil)
	conn := ts.dial(t)
	_, err := io.WriteString(conn, "GET hosts\nColumns: name state\n\n")
	require.NoError(t, err)
	require.NoError(t, conn.CloseWrite())
	assert.Equal(t, "web;0\ndb;1\nmail;2\n", readAll(t, conn))
}

func TestServerKeepAlive(t *testing.T) {
	ts := startServer(t, nil)
	conn := ts.dial(t)
	_, err := io.WriteString(conn,
		"GET hosts\nColumns: name\nFilter: name = web\nKeepAlive: on\nResponseHeader: fixed16\n\n"+
			"GET hosts\nStats: state = 0\nResponseHeader: fixed16\n\n"+
			"GET hosts\nColumns: name\n\n")
	require.NoError(t, err)
	// the second request closes the connection, the third is never answered
	assert.Equal(t, "200           4\nweb\n200           2\n1\n", readAll(t, conn))
}

func TestServerReportsClientErrors(t *testing.T) {
	t.Run("incomplete request", func(t *testing.T) {
		ts := startServer(t, nil)
		conn := ts.dial(t)
		_, err := io.WriteString(conn, "GET hosts\nColumns: na")
		require.NoError(t, err)
		require.NoError(t, conn.CloseWrite())
		assert.Equal(t, "Client sent unexpected EOF\n", readAll(t, conn))
	})

	t.Run("idle timeout", func(t *testing.T) {
		ts := startServer(t, func(cfg *config.Config) { cfg.IdleTimeout = 50 * time.Millisecond })
		conn := ts.dial(t)
		assert.Equal(t, "Client connection timed out\n", readAll(t, conn))
	})
}

func TestServerShutdownClosesQueuedConnections(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) {
		cfg.NumClientThreads = 1
		cfg.IdleTimeout = time.Minute
	})

	// occupies the only worker
	busy := ts.dial(t)
	require.Eventually(t, func() bool { return ts.srv.ActiveConnections() == 1 }, 5*time.Second, 10*time.Millisecond)

	queued := []*net.UnixConn{ts.dial(t), ts.dial(t), ts.dial(t)}
	require.Eventually(t, func() bool { return ts.srv.QueuedConnections() == 3 }, 5*time.Second, 10*time.Millisecond)

	ts.cancel()
	select {
	case <-ts.done:
		require.NoError(t, ts.err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	for _, conn := range append(queued, busy) {
		assert.Empty(t, readAll(t, conn))
	}
	assert.Zero(t, ts.srv.QueuedConnections())
	_, err := os.Stat(ts.path)
	assert.True(t, os.IsNotExist(err), "socket file is removed")
}

func TestServerDropsOldestOnOverflow(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) {
		cfg.NumClientThreads = 1
		cfg.MaxQueuedConnections = 1
		cfg.IdleTimeout = time.Minute
	})
	before := counters.Value(counters.Overflows)

	ts.dial(t)
	require.Eventually(t, func() bool { return ts.srv.ActiveConnections() == 1 }, 5*time.Second, 10*time.Millisecond)

	oldest := ts.dial(t)
	require.Eventually(t, func() bool { return ts.srv.QueuedConnections() == 1 }, 5*time.Second, 10*time.Millisecond)
	ts.dial(t)

	assert.Empty(t, readAll(t, oldest))
	assert.Eventually(t, func() bool { return counters.Value(counters.Overflows) == before+1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ts.srv.QueuedConnections())
}

func TestServeRequiresListen(t *testing.T) {
	store := newTestStore(t, newFakeCore(t))
	srv := NewServer(store, testConfig(), testLogger())
	assert.Error(t, srv.Serve(t.Context()))
}

func TestServerSurvivesPollFailures(t *testing.T) {
	ts := startServer(t, nil)
	require.NoError(t, ts.srv.ln.Close())

	select {
	case <-ts.done:
		t.Fatalf("Serve returned while the context is live: %v", ts.err)
	case <-time.After(200 * time.Millisecond):
	}

	ts.cancel()
	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
	assert.NoError(t, ts.err)
	_, err := os.Stat(ts.path)
	assert.True(t, os.IsNotExist(err), "socket file removed")
}
