package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/Starystars67/BeamNG-MP-Server-old/messages"
	"github.com/Starystars67/BeamNG-MP-Server-old/metrics"
	"github.com/Starystars67/BeamNG-MP-Server-old/server/listener"
	"github.com/Starystars67/BeamNG-MP-Server-old/server/listener/tcp"
)

// Config carries everything the relay server needs at construction time.
type Config struct {
	Meter metric.Meter

	// TCPAddress is the reliable-channel listen address. Failing to bind it
	// is fatal.
	TCPAddress string
	// UDPAddress is the unreliable-channel listen address. Failing to bind it
	// leaves the server running TCP-only.
	UDPAddress string

	// InitialMap may be empty (no map selected).
	InitialMap string
	// Environment is the initial environment descriptor.
	Environment string
}

// Server is the rendezvous point: it admits reliable-channel connections,
// runs their handshakes and read loops, and relays unreliable-channel
// traffic. It holds no simulation state beyond the registry and the two
// session descriptors.
type Server struct {
	registry *Registry
	session  *SessionState
	metrics  *metrics.AppMetrics

	tcpListener listener.Listener
	udpRelay    *UDPRelay
	udpAddress  string
}

func NewServer(cfg Config) (*Server, error) {
	m, err := metrics.NewAppMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating app metrics: %w", err)
	}

	registry := NewRegistry()
	return &Server{
		registry:    registry,
		session:     NewSessionState(cfg.InitialMap, cfg.Environment),
		metrics:     m,
		tcpListener: tcp.NewListener(cfg.TCPAddress),
		udpRelay:    NewUDPRelay(registry, m),
		udpAddress:  cfg.UDPAddress,
	}, nil
}

// Listen binds both transports and blocks until Shutdown. The returned error
// is the reliable listener's: a UDP bind failure only costs the relay and is
// logged instead.
func (s *Server) Listen() error {
	go func() {
		if err := s.udpRelay.Listen(s.udpAddress); err != nil {
			log.Errorf("failed to bind UDP relay on %s, continuing TCP-only: %s", s.udpAddress, err)
		}
	}()

	return s.tcpListener.Listen(s.accept)
}

// Shutdown stops accepting connections, closes both transports and closes
// every registered player's channel so their read loops wind down.
func (s *Server) Shutdown(ctx context.Context) error {
	tErr := s.tcpListener.Close()
	uErr := s.udpRelay.Close()
	s.registry.CloseAll()
	return errors.Join(tErr, uErr)
}

// ErrServerFull rejects an admission attempt beyond the player cap, before
// any identity is issued.
var ErrServerFull = errors.New("server full")

// accept admits one reliable-channel connection and serves it until
// disconnect. It runs on its own goroutine per connection.
func (s *Server) accept(conn net.Conn) {
	if s.registry.Len() >= maxPlayers {
		log.Infof("denied connection from %s: %s (max %d players)", conn.RemoteAddr(), ErrServerFull, maxPlayers)
		if err := conn.Close(); err != nil {
			log.Debugf("failed to close connection, %s: %s", conn.RemoteAddr(), err)
		}
		return
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	player, err := s.handshake(conn, reader, writer)
	if err != nil {
		log.Errorf("failed to handshake with %s: %s", conn.RemoteAddr(), err)
		if cErr := conn.Close(); cErr != nil {
			log.Debugf("failed to close connection, %s: %s", conn.RemoteAddr(), cErr)
		}
		return
	}

	log.Infof("player %s connected from %s", player.Nickname, conn.RemoteAddr())
	s.metrics.PlayerConnected()

	s.serve(player, reader)

	s.metrics.PlayerDisconnected()
	if err := conn.Close(); err != nil {
		log.Debugf("failed to close connection, %s: %s", conn.RemoteAddr(), err)
	}
}

// Registry exposes the connection registry, shared with the UDP relay and
// inspected by tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Session exposes the shared session state.
func (s *Server) Session() *SessionState {
	return s.session
}

// Version returns the protocol tag sent during every handshake.
func Version() string {
	return messages.ProtocolVersion
}
