package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... for deterministic
// root IDs in traces and golden files.
//
// Unlike engine.FixedGenerator it never runs out, and Reset lets the same
// scenario run twice with identical IDs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialIDs creates a generator. An empty prefix becomes "root".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "root"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID. Implements engine.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
