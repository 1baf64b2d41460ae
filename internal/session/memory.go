package session

import (
	"context"
	"sync"

	"murmur/internal/config"
	"murmur/internal/core"
)

// Memory keeps sessions for the lifetime of the process.
type Memory struct {
	Config *config.Config

	mu       sync.RWMutex
	sessions map[string]core.Session
}

func (m *Memory) Init(context.Context) error {
	m.sessions = map[string]core.Session{}
	return nil
}

func (m *Memory) Get(context.Context) (core.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[m.Config.Profile]
	if !ok {
		return core.Session{}, core.ErrNoSession
	}
	return s, nil
}

func (m *Memory) Put(_ context.Context, s core.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[m.Config.Profile] = s
	return nil
}

func (m *Memory) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, m.Config.Profile)
	return nil
}
