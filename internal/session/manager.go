package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateSession is returned when the ID generator keeps producing IDs
// that are already live.
var ErrDuplicateSession = errors.New("duplicate session id")

// maxIDAttempts bounds how many IDs NewSession draws before giving up.
const maxIDAttempts = 8

// Manager creates and tracks one Store per user session.
type Manager struct {
	mu       sync.Mutex
	ids      TokenGenerator
	opts     []Option
	sessions map[string]*Store
}

// NewManager creates a manager. ids generates session identifiers; nil
// means UUIDv7. opts apply to every Store it creates.
func NewManager(ids TokenGenerator, opts ...Option) *Manager {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Manager{
		ids:      ids,
		opts:     opts,
		sessions: make(map[string]*Store),
	}
}

// NewSession creates a fresh store with a new session ID. A live session is
// never replaced: an ID already in use is skipped and another is drawn.
func (m *Manager) NewSession() (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	for range maxIDAttempts {
		id = m.ids.Generate()
		if _, live := m.sessions[id]; live {
			continue
		}
		s := NewStore(id, m.opts...)
		m.sessions[id] = s
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q after %d attempts", ErrDuplicateSession, id, maxIDAttempts)
}

// Session returns the store for id.
func (m *Manager) Session(id string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// End forgets the session.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
