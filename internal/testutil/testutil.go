// Package testutil provides deterministic sequencing and ID generation so
// scenario runs produce byte-identical traces.
package testutil

import (
	"fmt"
	"sync"
)

// SeqClock is a resettable logical clock. It satisfies store.Sequencer and
// can be shared by several stores to get one global commit order.
//
// Safe for concurrent use.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock creates a clock whose first Next returns 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next increments and returns the sequence number.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued sequence number.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *SeqClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// IDs hands out predetermined instance IDs, then falls back to
// "<prefix>-<n>" once the list is exhausted. It satisfies
// store.IDGenerator.
//
// Safe for concurrent use.
type IDs struct {
	mu     sync.Mutex
	prefix string
	fixed  []string
	n      int
}

// NewIDs creates a generator returning fixed in order, then prefix-N.
// An empty prefix defaults to "instance".
func NewIDs(prefix string, fixed ...string) *IDs {
	if prefix == "" {
		prefix = "instance"
	}
	return &IDs{prefix: prefix, fixed: fixed}
}

// Generate returns the next ID.
func (g *IDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.fixed) {
		return g.fixed[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
