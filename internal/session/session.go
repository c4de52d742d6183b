// Package session resolves the identity the process works as.
package session

import (
	"context"
	"sync"

	"github.com/mgmu/greenlog/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Authenticator is the part of the gateway the session needs.
type Authenticator interface {
	Authenticate(ctx context.Context) (gateway.Identity, error)
}

// Manager authenticates once per process. When the backend fails or returns
// no identity the session continues as the guest user.
type Manager struct {
	auth Authenticator
	log  logrus.FieldLogger

	once     sync.Once
	mu       sync.RWMutex
	user     gateway.Identity
	resolved bool
}

func New(auth Authenticator, log logrus.FieldLogger) *Manager {
	return &Manager{auth: auth, log: log}
}

// Resolve authenticates on its first call and returns the resolved identity
// on every call.
func (m *Manager) Resolve(ctx context.Context) gateway.Identity {
	m.once.Do(func() {
		user, err := m.auth.Authenticate(ctx)
		switch {
		case err != nil:
			m.log.WithError(err).Warn("Running without backend authentication, using guest identity")
			user = gateway.Guest()
		case user.Uid == "":
			m.log.Warn("Backend returned no identity, using guest identity")
			user = gateway.Guest()
		default:
			m.log.WithField("uid", user.Uid).Info("Authenticated")
		}
		m.mu.Lock()
		m.user, m.resolved = user, true
		m.mu.Unlock()
	})
	user, _ := m.Current()
	return user
}

// Current returns the identity and whether it has been resolved yet.
func (m *Manager) Current() (gateway.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.resolved
}
