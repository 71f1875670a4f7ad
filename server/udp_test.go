package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/Starystars67/BeamNG-MP-Server-old/metrics"
)

func startRelay(t *testing.T, registry *Registry) *UDPRelay {
	t.Helper()

	m, err := metrics.NewAppMetrics(otel.Meter(""))
	require.NoError(t, err)

	relay := NewUDPRelay(registry, m)
	go func() {
		_ = relay.Listen("127.0.0.1:0")
	}()
	require.Eventually(t, func() bool { return relay.LocalAddr() != nil }, time.Second, 10*time.Millisecond)
	t.Cleanup(func() { _ = relay.Close() })
	return relay
}

func udpClient(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func registerEndpoint(r *Registry, nickname string, conn *net.UDPConn) {
	addr := conn.LocalAddr().(*net.UDPAddr)
	player := &Player{
		RemoteAddress: addr.IP.String(),
		RemotePort:    addr.Port,
		Nickname:      nickname,
		ID:            nickname,
		CurrentVehID:  "0",
	}
	fc := newFakeConn(addr.String())
	r.Add(player, fc, nil)
}

func recvWithin(t *testing.T, conn *net.UDPConn, timeout time.Duration) ([]byte, bool) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, false
	}
	return buf[:n], true
}

func TestUDPPingPong(t *testing.T) {
	relay := startRelay(t, NewRegistry())
	client := udpClient(t)

	_, err := client.WriteTo([]byte("PING"), relay.LocalAddr())
	require.NoError(t, err)

	data, ok := recvWithin(t, client, time.Second)
	require.True(t, ok)
	assert.Equal(t, "PONG\n", string(data))
}

func TestUDPVehicleRelay(t *testing.T) {
	registry := NewRegistry()
	relay := startRelay(t, registry)

	receiver := udpClient(t)
	registerEndpoint(registry, "Alice", receiver)

	sender := udpClient(t)
	_, err := sender.WriteTo([]byte("U-VP1|2.5|3.5"), relay.LocalAddr())
	require.NoError(t, err)

	data, ok := recvWithin(t, receiver, time.Second)
	require.True(t, ok)
	// the raw datagram is forwarded with its opcode intact
	assert.Equal(t, "U-VP1|2.5|3.5", string(data))
}

func TestUDPVehicleRelaySkipsOwnAddress(t *testing.T) {
	registry := NewRegistry()
	relay := startRelay(t, registry)

	// an entry resolving to the relay's own endpoint is never targeted,
	// otherwise the relay would feed itself
	self := relay.LocalAddr().(*net.UDPAddr)
	registry.Add(&Player{
		RemoteAddress: self.IP.String(),
		RemotePort:    self.Port,
		Nickname:      "self",
		ID:            "self",
		CurrentVehID:  "0",
	}, newFakeConn(self.String()), nil)

	receiver := udpClient(t)
	registerEndpoint(registry, "Alice", receiver)

	sender := udpClient(t)
	_, err := sender.WriteTo([]byte("U-VL7"), relay.LocalAddr())
	require.NoError(t, err)

	data, ok := recvWithin(t, receiver, time.Second)
	require.True(t, ok)
	assert.Equal(t, "U-VL7", string(data))

	// only the one datagram arrives; the self entry produced no echo loop
	_, ok = recvWithin(t, receiver, 200*time.Millisecond)
	assert.False(t, ok)
}

func TestUDPUnrecognizedCodeReachesEveryAddress(t *testing.T) {
	registry := NewRegistry()
	relay := startRelay(t, registry)

	first := udpClient(t)
	registerEndpoint(registry, "Alice", first)
	second := udpClient(t)
	registerEndpoint(registry, "Bob", second)

	sender := udpClient(t)
	_, err := sender.WriteTo([]byte("U-VCpickup"), relay.LocalAddr())
	require.NoError(t, err)

	data, ok := recvWithin(t, first, time.Second)
	require.True(t, ok)
	assert.Equal(t, "U-VCpickup", string(data))

	data, ok = recvWithin(t, second, time.Second)
	require.True(t, ok)
	assert.Equal(t, "U-VCpickup", string(data))
}

func TestUDPDropsShortAndNonTextDatagrams(t *testing.T) {
	registry := NewRegistry()
	relay := startRelay(t, registry)

	receiver := udpClient(t)
	registerEndpoint(registry, "Alice", receiver)

	sender := udpClient(t)
	_, err := sender.WriteTo([]byte("abc"), relay.LocalAddr())
	require.NoError(t, err)
	_, err = sender.WriteTo([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb}, relay.LocalAddr())
	require.NoError(t, err)

	_, ok := recvWithin(t, receiver, 200*time.Millisecond)
	assert.False(t, ok)
}
