package server

import "sync"

// SessionState holds the two session descriptors every player shares: the
// active map id and the environment descriptor. The two cells are locked
// independently so a map write never blocks an environment read.
type SessionState struct {
	mapMu sync.RWMutex
	mapID string

	envMu sync.RWMutex
	env   string
}

func NewSessionState(mapID, env string) *SessionState {
	return &SessionState{
		mapID: mapID,
		env:   env,
	}
}

// Map returns the active map id, empty if no map is selected.
func (s *SessionState) Map() string {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.mapID
}

func (s *SessionState) SetMap(mapID string) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.mapID = mapID
}

// Environment returns the environment descriptor (weather, time of day).
func (s *SessionState) Environment() string {
	s.envMu.RLock()
	defer s.envMu.RUnlock()
	return s.env
}

func (s *SessionState) SetEnvironment(env string) {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	s.env = env
}
