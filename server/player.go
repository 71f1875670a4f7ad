package server

import (
	"net"
	"strconv"
)

// Player is the presence record of a connected client. The JSON field names
// are protocol contract: the serialized form is what clients receive in every
// player-list broadcast.
type Player struct {
	RemoteAddress string `json:"remoteAddress"`
	RemotePort    int    `json:"remotePort"`
	Nickname      string `json:"nickname"`
	ID            string `json:"id"`
	CurrentVehID  string `json:"currentVehID"`
}

// NewPlayer builds a player record from its server-assigned id, self-declared
// nickname and the endpoint observed on its connection. The endpoint is never
// taken from client-supplied data.
func NewPlayer(id string, nickname string, addr net.Addr) *Player {
	host, portStr, err := net.SplitHostPort(addr.String())
	port := 0
	if err != nil {
		host = addr.String()
	} else {
		port, _ = strconv.Atoi(portStr)
	}

	return &Player{
		RemoteAddress: host,
		RemotePort:    port,
		Nickname:      nickname,
		ID:            id,
		CurrentVehID:  "0",
	}
}

// Equal reports whether both records name the same player. Identity is the
// id alone; nickname and endpoint do not participate.
func (p *Player) Equal(other *Player) bool {
	return p.ID == other.ID
}
