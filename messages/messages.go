// Package messages defines the wire format shared by the TCP and UDP
// transports: newline-delimited (TCP) or datagram-framed (UDP) text where the
// first four bytes are an opcode and the remainder is an opaque payload.
package messages

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// CodeSize is the fixed width of every opcode.
	CodeSize = 4

	// MaxDatagramSize bounds a single UDP receive.
	MaxDatagramSize = 2048

	// ProtocolVersion is sent to every client during the handshake version
	// check.
	ProtocolVersion = "0.0.4"
)

// Server to client opcodes.
const (
	MsgHello        = "HOLA" // identity assignment
	MsgMapNone      = "MAPS" // no map selected (bare, no payload)
	MsgMapCurrent   = "MAPC" // current map id
	MsgVersionCheck = "VCHK" // protocol/version tag
	MsgEnvironment  = "ENVT" // environment descriptor sync
	MsgPlayerList   = "PLST" // JSON-serialized player list
	MsgPong         = "PONG"
	MsgAdminGrant   = "ADMN"
	MsgServerNotice = "SMSG"
)

// Client to server opcodes. MsgChat and MsgMapSelect double as
// server-to-client echoes.
const (
	MsgUser          = "USER" // nickname declaration
	MsgPing          = "PING"
	MsgChat          = "CHAT"
	MsgMapSelect     = "MAPS"
	MsgQuit          = "QUIT"
	MsgQuitLegacy    = "2001" // numeric alias kept from the first protocol revision
	MsgVehicleInit   = "U-VI"
	MsgVehicleEnter  = "U-VE"
	MsgVehicleNew    = "U-VN"
	MsgVehiclePos    = "U-VP"
	MsgVehicleLeave  = "U-VL"
	MsgVehicleRemove = "U-VR"
	MsgVehicleCreate = "U-VC" // broadcast to everyone, sender included
	MsgVehicleNewID  = "U-NV" // observed only, no routing yet
	MsgVehicleState  = "C-VS" // updates the sender's current vehicle id
	MsgSetEnv        = "SENV"
)

var (
	// ErrTooShort marks a line or datagram too small to carry an opcode.
	ErrTooShort = errors.New("message too short")
	// ErrNotText marks a datagram that is not valid UTF-8.
	ErrNotText = errors.New("message is not valid text")
)

// Split separates a raw wire line into its opcode and payload. The line is
// trimmed at both ends; interior payload whitespace is preserved.
func Split(line string) (code string, payload string, err error) {
	line = strings.TrimSpace(line)
	if len(line) < CodeSize {
		return "", "", fmt.Errorf("%w: %d bytes", ErrTooShort, len(line))
	}
	return line[:CodeSize], line[CodeSize:], nil
}

// SplitDatagram validates and separates a received datagram. The payload is
// not trimmed: datagram payloads are relayed byte for byte.
func SplitDatagram(buf []byte) (code string, payload string, err error) {
	if len(buf) < CodeSize {
		return "", "", fmt.Errorf("%w: %d bytes", ErrTooShort, len(buf))
	}
	if !utf8.Valid(buf) {
		return "", "", ErrNotText
	}
	s := string(buf)
	return s[:CodeSize], s[CodeSize:], nil
}

// Line builds an outgoing newline-terminated message.
func Line(code, payload string) string {
	return code + payload + "\n"
}

// IsVehicleUpdate reports whether code is one of the six per-participant
// vehicle updates that are relayed to everyone except their sender.
func IsVehicleUpdate(code string) bool {
	switch code {
	case MsgVehicleInit, MsgVehicleEnter, MsgVehicleNew, MsgVehiclePos, MsgVehicleLeave, MsgVehicleRemove:
		return true
	default:
		return false
	}
}
