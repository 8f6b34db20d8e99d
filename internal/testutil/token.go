package testutil

import (
	"fmt"
	"sync"
)

// CountingTokenGenerator mints "<prefix>-1", "<prefix>-2", ... in order.
//
// Unlike binding.FixedGenerator it never runs out, so a scenario can rebind
// any number of times and still produce byte-identical traces.
//
// Thread-safety: safe for concurrent use.
type CountingTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingTokenGenerator creates a generator. An empty prefix means "sub".
func NewCountingTokenGenerator(prefix string) *CountingTokenGenerator {
	if prefix == "" {
		prefix = "sub"
	}
	return &CountingTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
//
// Implements binding.TokenGenerator.
func (g *CountingTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *CountingTokenGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
