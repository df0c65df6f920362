package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable ids: "<prefix>-0001", "<prefix>-0002", ...
//
// Zero-padding keeps lexical order equal to generation order, matching the
// guarantee of the production UUIDv7 generator up to 9999 ids.
//
// Thread-safety: safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix uses "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements event.IDGenerator.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// ScriptedIDs returns the given ids in order, then falls back to a
// SequenceIDs with prefix "id". Used by scenarios that name ids up front
// ("cp1", "wf1").
type ScriptedIDs struct {
	mu       sync.Mutex
	ids      []string
	fallback *SequenceIDs
}

// NewScriptedIDs creates a generator that yields ids first.
func NewScriptedIDs(ids ...string) *ScriptedIDs {
	return &ScriptedIDs{ids: ids, fallback: NewSequenceIDs("id")}
}

// Generate returns the next scripted id, or a sequential one when exhausted.
func (g *ScriptedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) == 0 {
		return g.fallback.Generate()
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id
}
