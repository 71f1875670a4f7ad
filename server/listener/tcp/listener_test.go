package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerAcceptsConnections(t *testing.T) {
	l := NewListener("127.0.0.1:0").(*Listener)

	accepted := make(chan net.Conn, 1)
	done := make(chan error, 1)
	go func() {
		done <- l.Listen(func(conn net.Conn) {
			accepted <- conn
		})
	}()

	require.Eventually(t, func() bool { return l.Addr() != nil }, time.Second, 10*time.Millisecond)

	client, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	select {
	case conn := <-accepted:
		defer conn.Close()

		_, err = client.Write([]byte("PING\n"))
		require.NoError(t, err)

		buf := make([]byte, 5)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		n, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "PING\n", string(buf[:n]))
	case <-time.After(time.Second):
		t.Fatal("connection was not accepted")
	}

	require.NoError(t, l.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Close")
	}
}

func TestListenerBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	l := NewListener(occupied.Addr().String()).(*Listener)
	require.Error(t, l.Listen(func(conn net.Conn) {}))
}
