package server

import (
	"context"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Starystars67/BeamNG-MP-Server-old/messages"
	"github.com/Starystars67/BeamNG-MP-Server-old/metrics"
)

// UDPRelay is the unreliable-channel side of the server: a single shared
// receive loop that fans incoming datagrams out to the registered players'
// addresses. It keeps no identity of its own; the connectionless transport
// has no handshake, no admission and no disconnect cleanup.
type UDPRelay struct {
	registry *Registry
	metrics  *metrics.AppMetrics

	conn *net.UDPConn
	wg   sync.WaitGroup
	quit chan struct{}
	lock sync.Mutex
}

func NewUDPRelay(registry *Registry, appMetrics *metrics.AppMetrics) *UDPRelay {
	return &UDPRelay{
		registry: registry,
		metrics:  appMetrics,
	}
}

// Listen binds the relay socket and blocks until Close is called. A bind
// failure is returned immediately.
func (u *UDPRelay) Listen(address string) error {
	u.lock.Lock()

	u.quit = make(chan struct{})

	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		log.Errorf("invalid listen address '%s': %s", address, err)
		u.lock.Unlock()
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		log.Errorf("failed to listen on address: %s, %s", address, err)
		u.lock.Unlock()
		return err
	}
	log.Infof("UDP relay is listening on address: %s", addr.String())
	u.conn = conn
	u.wg.Add(1)
	go u.readLoop()

	u.lock.Unlock()
	<-u.quit
	return nil
}

// LocalAddr returns the bound relay endpoint, nil before Listen succeeds.
func (u *UDPRelay) LocalAddr() net.Addr {
	u.lock.Lock()
	defer u.lock.Unlock()

	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

func (u *UDPRelay) Close() error {
	u.lock.Lock()
	defer u.lock.Unlock()

	if u.conn == nil {
		return nil
	}

	close(u.quit)
	err := u.conn.Close()
	u.wg.Wait()
	u.conn = nil
	return err
}

func (u *UDPRelay) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, messages.MaxDatagramSize)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.quit:
				return
			default:
				log.Errorf("failed to receive datagram: %s", err)
				continue
			}
		}
		u.metrics.TransferBytesUDP.Add(context.Background(), int64(n))
		u.handleDatagram(buf[:n], addr)
	}
}

func (u *UDPRelay) handleDatagram(buf []byte, src *net.UDPAddr) {
	code, _, err := messages.SplitDatagram(buf)
	if err != nil {
		log.Debugf("dropping datagram from %s: %s", src, err)
		return
	}

	switch {
	case code == messages.MsgPing:
		if _, err := u.conn.WriteToUDP([]byte(messages.Line(messages.MsgPong, "")), src); err != nil {
			log.Errorf("failed to send PONG to %s: %s", src, err)
		}

	case messages.IsVehicleUpdate(code):
		// Self-exclusion works by comparing addresses against the relay's own
		// bound endpoint, not by sender identity.
		local := u.conn.LocalAddr().String()
		for _, dst := range u.registry.Addresses() {
			if dst.String() == local {
				continue
			}
			if _, err := u.conn.WriteToUDP(buf, dst); err != nil {
				log.Errorf("failed to relay %s to %s: %s", code, dst, err)
			}
		}

	default:
		// Vehicle creation and unrecognized codes go to every address.
		for _, dst := range u.registry.Addresses() {
			if _, err := u.conn.WriteToUDP(buf, dst); err != nil {
				log.Errorf("failed to relay %s to %s: %s", code, dst, err)
			}
		}
	}
}
