package server

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// ErrPlayerNotFound is returned by SendPrivate when the target player has
// already left the registry. Callers hold a stale reference and must stop
// using it.
var ErrPlayerNotFound = fmt.Errorf("player not found")

type entry struct {
	player *Player
	conn   net.Conn
	writer *bufio.Writer
}

func (e *entry) write(msg string) error {
	if _, err := e.writer.WriteString(msg); err != nil {
		return err
	}
	return e.writer.Flush()
}

// Registry holds every connected player together with the write half of its
// TCP channel. The registry is the only writer of those channels; every
// outgoing TCP message goes through one of its send methods.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*entry // key is the server-assigned player id
}

func NewRegistry() *Registry {
	return &Registry{
		players: make(map[string]*entry),
	}
}

// Add registers a player with its write handle. Re-adding the same id
// replaces the previous handle.
func (r *Registry) Add(player *Player, conn net.Conn, writer *bufio.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.players[player.ID] = &entry{
		player: player,
		conn:   conn,
		writer: writer,
	}
	log.Debugf("player registered [%s]", player.ID)
}

// Remove deletes the player's entry. It is a no-op if the player is absent.
func (r *Registry) Remove(player *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.players, player.ID)
	log.Debugf("player deregistered [%s]", player.ID)
}

// Broadcast writes msg to every registered channel. The fan-out is best
// effort: a failed write is collected and the loop carries on with the
// remaining channels.
func (r *Registry) Broadcast(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeAll(msg, "")
}

// BroadcastExcept writes msg to every registered channel but the one owned
// by except.
func (r *Registry) BroadcastExcept(msg string, except *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeAll(msg, except.ID)
}

func (r *Registry) writeAll(msg string, exceptID string) error {
	var errs *multierror.Error
	for id, e := range r.players {
		if id == exceptID {
			continue
		}
		if err := e.write(msg); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write to %s: %w", id, err))
		}
	}
	return errs.ErrorOrNil()
}

// SendPrivate writes msg to exactly one player's channel.
func (r *Registry) SendPrivate(msg string, to *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.players[to.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, to.ID)
	}
	if err := e.write(msg); err != nil {
		return fmt.Errorf("write to %s: %w", to.ID, err)
	}
	return nil
}

// SetCurrentVehicle updates the player's vehicle id in place if it changed.
func (r *Registry) SetCurrentVehicle(player *Player, vehID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if player.CurrentVehID != vehID {
		player.CurrentVehID = vehID
	}
}

// Players returns a snapshot of the registered player records, consistent
// with the registry at the moment of the call. Order is unspecified.
func (r *Registry) Players() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]Player, 0, len(r.players))
	for _, e := range r.players {
		players = append(players, *e.player)
	}
	return players
}

// Addresses returns the players' observed network endpoints as UDP addresses
// for unreliable-channel targeting.
func (r *Registry) Addresses() []*net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make([]*net.UDPAddr, 0, len(r.players))
	for _, e := range r.players {
		addrs = append(addrs, &net.UDPAddr{
			IP:   net.ParseIP(e.player.RemoteAddress),
			Port: e.player.RemotePort,
		})
	}
	return addrs
}

// Len returns the current player count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players)
}

// CloseAll closes every registered connection. The owning read loops observe
// the close as a transport error and run their usual teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.players {
		if err := e.conn.Close(); err != nil {
			log.Debugf("failed to close connection of %s: %s", id, err)
		}
	}
}
