package session

import (
	"context"
	"sync"

	"github.com/knightmint/knightmint/internal/domain"
)

// Factory builds a controller for a user key. The Manager starts it.
type Factory func(userKey string) *Controller

// Manager holds one controller per user key. Only one logical session per
// user is assumed active at a time; a second device simply shares the
// server-side controller.
type Manager struct {
	mu       sync.Mutex
	factory  Factory
	sessions map[string]*Controller
}

// NewManager creates a Manager around a controller factory.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Controller),
	}
}

// Open returns the existing controller for the user key, or creates and
// starts a fresh one.
func (m *Manager) Open(ctx context.Context, userKey string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[userKey]; ok {
		return c, nil
	}
	c := m.factory(userKey)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	m.sessions[userKey] = c
	return c, nil
}

// Get returns the controller for a user key if one is already open.
func (m *Manager) Get(userKey string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userKey]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return c, nil
}
