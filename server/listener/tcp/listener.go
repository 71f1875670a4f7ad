package tcp

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Starystars67/BeamNG-MP-Server-old/server/listener"
)

// Listener accepts reliable-channel connections and hands each one to the
// configured accept callback on its own goroutine.
type Listener struct {
	address string

	onAcceptFn func(conn net.Conn)
	wg         sync.WaitGroup
	quit       chan struct{}
	listener   net.Listener
	lock       sync.Mutex
}

func NewListener(address string) listener.Listener {
	return &Listener{
		address: address,
	}
}

// Listen binds the listener and blocks until Close is called. A bind failure
// is returned immediately.
func (l *Listener) Listen(onAcceptFn func(conn net.Conn)) error {
	l.lock.Lock()

	l.onAcceptFn = onAcceptFn
	l.quit = make(chan struct{})

	li, err := net.Listen("tcp", l.address)
	if err != nil {
		log.Errorf("failed to listen on address: %s, %s", l.address, err)
		l.lock.Unlock()
		return err
	}
	log.Infof("TCP server is listening on address: %s", l.address)
	l.listener = li
	l.wg.Add(1)
	go l.acceptLoop()

	l.lock.Unlock()
	<-l.quit
	return nil
}

// Addr returns the bound listener address, nil before Listen succeeds.
func (l *Listener) Addr() net.Addr {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.listener == nil {
		return nil
	}

	close(l.quit)
	err := l.listener.Close()
	l.wg.Wait()
	l.listener = nil
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.quit:
				return
			default:
				log.Errorf("failed to accept connection: %s", err)
				continue
			}
		}
		go l.onAcceptFn(conn)
	}
}
