package server

import (
	"bufio"
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Starystars67/BeamNG-MP-Server-old/messages"
)

// adminClaimToken grants the sender admin status when it appears anywhere in
// a chat payload. Self-declared, like everything else in this protocol.
const adminClaimToken = "!admin_plox"

// serve runs the per-player read loop until the player quits, the line is too
// short to carry an opcode, or the transport fails. Whichever way it ends,
// only this player's task ends with it.
func (s *Server) serve(player *Player, reader *bufio.Reader) {
	plog := log.WithFields(log.Fields{
		"player": player.Nickname,
		"id":     player.ID,
	})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			plog.Debugf("read loop ended: %s", err)
			s.closePlayer(player, plog)
			return
		}
		s.metrics.TransferBytesTCP.Add(context.Background(), int64(len(line)))

		code, payload, err := messages.Split(line)
		if err != nil {
			plog.Debugf("short line, treating as disconnect: %s", err)
			s.closePlayer(player, plog)
			return
		}

		if !s.route(player, plog, code, payload) {
			return
		}
	}
}

// route applies one routing rule and reports whether the loop should carry
// on. Which sends skip the sender and which include it is protocol contract.
func (s *Server) route(player *Player, plog *log.Entry, code, payload string) bool {
	switch code {
	case messages.MsgQuit, messages.MsgQuitLegacy:
		s.closePlayer(player, plog)
		return false

	case messages.MsgPing:
		if err := s.registry.SendPrivate(messages.Line(messages.MsgPong, ""), player); err != nil {
			plog.Errorf("failed to send PONG: %s", err)
			s.closePlayer(player, plog)
			return false
		}

	case messages.MsgChat:
		s.handleChat(player, plog, payload)

	case messages.MsgMapSelect:
		s.session.SetMap(payload)
		plog.Infof("set map to %s", payload)
		if err := s.registry.SendPrivate(messages.Line(messages.MsgMapCurrent, payload), player); err != nil {
			plog.Errorf("failed to confirm map change: %s", err)
			s.closePlayer(player, plog)
			return false
		}

	case messages.MsgVehicleCreate:
		// Vehicle creation goes to everyone, the sender included.
		if err := s.registry.Broadcast(messages.Line(code, payload)); err != nil {
			plog.Errorf("failed to broadcast %s: %s", code, err)
		}

	case messages.MsgVehicleNewID:
		// Observed but not acted upon until re-identification lands.
		plog.Debugf("U-NV: %s", payload)

	case messages.MsgVehicleState:
		s.registry.SetCurrentVehicle(player, payload)

	case messages.MsgSetEnv:
		s.session.SetEnvironment(payload)
		if err := s.registry.BroadcastExcept(messages.Line(messages.MsgEnvironment, payload), player); err != nil {
			plog.Errorf("failed to broadcast environment: %s", err)
		}

	default:
		if messages.IsVehicleUpdate(code) {
			if err := s.registry.BroadcastExcept(messages.Line(code, payload), player); err != nil {
				plog.Errorf("failed to relay %s: %s", code, err)
			}
		} else {
			plog.Infof("unknown request from %s:%d: %s%s", player.RemoteAddress, player.RemotePort, code, payload)
		}
	}
	return true
}

func (s *Server) handleChat(player *Player, plog *log.Entry, payload string) {
	if strings.Contains(payload, adminClaimToken) {
		notice := messages.Line(messages.MsgServerNotice, "Player "+player.Nickname+" is now admin")
		if err := s.registry.BroadcastExcept(notice, player); err != nil {
			plog.Errorf("failed to broadcast admin notice: %s", err)
		}
		if err := s.registry.SendPrivate(messages.Line(messages.MsgAdminGrant, ""), player); err != nil {
			plog.Errorf("failed to grant admin: %s", err)
		}
		return
	}

	plog.Debugf("chat: %s", payload)
	if err := s.registry.Broadcast(messages.Line(messages.MsgChat, payload)); err != nil {
		plog.Errorf("failed to broadcast chat: %s", err)
	}
}

// closePlayer runs the close procedure: deregister, tell the remaining
// players, and clear the map once the room is empty. The environment is
// deliberately left as is.
func (s *Server) closePlayer(player *Player, plog *log.Entry) {
	plog.Infof("player disconnected")

	s.registry.Remove(player)
	if err := s.announcePlayers(); err != nil {
		plog.Errorf("failed to announce departure: %s", err)
	}
	if s.registry.Len() == 0 {
		s.session.SetMap("")
	}
}
