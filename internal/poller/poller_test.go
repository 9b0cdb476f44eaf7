package poller

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unixPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()
	client, err := net.Dial("unix", path)
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestWaitRead(t *testing.T) {
	client, server := unixPair(t)

	ready, err := Wait(server, Read, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready, "no data written yet")

	_, err = client.Write([]byte("GET status\n"))
	require.NoError(t, err)
	ready, err = Wait(server, Read, time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestWaitReadOnHangup(t *testing.T) {
	client, server := unixPair(t)
	client.Close()
	ready, err := Wait(server, Read, time.Second)
	require.NoError(t, err)
	assert.True(t, ready, "EOF must wake the reader")
}

func TestWaitWrite(t *testing.T) {
	_, server := unixPair(t)
	ready, err := Wait(server, Write, time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestWaitWithoutDescriptor(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ready, err := Wait(a, Read, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ready)
}
