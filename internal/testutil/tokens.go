package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/gridsync/internal/session"
)

// CountingTokens generates "<prefix>-0001", "<prefix>-0002", ... without
// limit.
//
// Unlike session.SequenceGenerator it never runs out, so tests that rotate
// keys an unknown number of times still get reproducible keys.
//
// Thread-safety: safe for concurrent use via internal mutex.
type CountingTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingTokens creates a generator. An empty prefix means "tok".
func NewCountingTokens(prefix string) *CountingTokens {
	if prefix == "" {
		prefix = "tok"
	}
	return &CountingTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *CountingTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// FixedToken returns the same token every time. Keys built from it differ
// only by generation.
type FixedToken string

// Generate returns the token, or "fixed" when empty.
func (t FixedToken) Generate() string {
	if t == "" {
		return "fixed"
	}
	return string(t)
}

// NewSession creates a session store whose keys are reproducible:
// counting tokens and a clock starting at zero.
func NewSession(id string) *session.Store {
	return session.NewStore(id,
		session.WithTokenGenerator(NewCountingTokens("key")),
		session.WithClock(session.NewClock()),
	)
}
