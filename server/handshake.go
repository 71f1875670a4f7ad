package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Starystars67/BeamNG-MP-Server-old/messages"
)

const (
	// maxPlayers caps the registry; the check runs before any identity is
	// issued.
	maxPlayers = 8

	// identityAttempts bounds how many non-identity lines the handshake
	// tolerates before giving up on the client.
	identityAttempts = 10
)

// ErrHandshakeTimeout is returned when a client burns through its identity
// attempts without ever declaring a nickname.
var ErrHandshakeTimeout = errors.New("client did not declare an identity")

// handshake admits a new connection: it assigns a fresh id, advertises the
// map state and protocol version, waits for the client's nickname, syncs the
// environment and finally publishes the updated player list to everyone.
//
// Until the registry insert in the final step nothing is shared, so a failure
// anywhere before it needs no compensation beyond closing the connection.
func (s *Server) handshake(conn net.Conn, reader *bufio.Reader, writer *bufio.Writer) (*Player, error) {
	id := uuid.New().String()

	if err := s.greet(writer, id); err != nil {
		return nil, fmt.Errorf("greeting: %w", err)
	}

	player, err := awaitIdentity(conn, reader, id)
	if err != nil {
		return nil, err
	}

	if _, err := writer.WriteString(messages.Line(messages.MsgEnvironment, s.session.Environment())); err != nil {
		return nil, fmt.Errorf("environment sync: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("environment sync: %w", err)
	}

	s.registry.Add(player, conn, writer)
	// The join stands even if announcing it fails; affected clients catch up
	// on the next list broadcast.
	if err := s.announcePlayers(); err != nil {
		log.Warnf("failed to announce player %s: %s", player.Nickname, err)
	}
	return player, nil
}

// greet sends the identity assignment, the current map state and the version
// tag. All three go out before the first read.
func (s *Server) greet(writer *bufio.Writer, id string) error {
	if _, err := writer.WriteString(messages.Line(messages.MsgHello, id)); err != nil {
		return err
	}

	mapID := s.session.Map()
	if mapID == "" {
		if _, err := writer.WriteString(messages.Line(messages.MsgMapNone, "")); err != nil {
			return err
		}
	} else {
		if _, err := writer.WriteString(messages.Line(messages.MsgMapCurrent, mapID)); err != nil {
			return err
		}
	}

	if _, err := writer.WriteString(messages.Line(messages.MsgVersionCheck, messages.ProtocolVersion)); err != nil {
		return err
	}
	return writer.Flush()
}

// awaitIdentity reads until the client declares its nickname. Lines that do
// not carry the identity opcode are skipped, up to identityAttempts of them.
// The player's endpoint comes from the connection, never from the client.
func awaitIdentity(conn net.Conn, reader *bufio.Reader, id string) (*Player, error) {
	for attempt := 0; attempt < identityAttempts; attempt++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("client disconnected during handshake: %w", err)
		}

		code, payload, err := messages.Split(line)
		if err != nil {
			return nil, fmt.Errorf("client disconnected during handshake: %w", err)
		}
		if code != messages.MsgUser {
			continue
		}

		return NewPlayer(id, strings.TrimSpace(payload), conn.RemoteAddr()), nil
	}
	return nil, ErrHandshakeTimeout
}

// announcePlayers broadcasts the complete, fresh player list to every
// registered player, the joining (and leaving) signal of the protocol.
func (s *Server) announcePlayers() error {
	list, err := json.Marshal(s.registry.Players())
	if err != nil {
		return fmt.Errorf("serialize player list: %w", err)
	}
	return s.registry.Broadcast(messages.Line(messages.MsgPlayerList, string(list)))
}
