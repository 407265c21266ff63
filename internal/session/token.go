package session

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces the random suffix of session keys and session IDs.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predetermined tokens in order.
//
// Tests use it to make keys, and therefore golden traces, reproducible.
// Panics once all tokens are consumed so a test that rotates more often
// than expected fails loudly.
type SequenceGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewSequenceGenerator creates a generator that returns tokens in order.
func NewSequenceGenerator(tokens ...string) *SequenceGenerator {
	return &SequenceGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("SequenceGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
