package tools

import (
	"sync"
	"time"
)

// breakerEntry tracks consecutive failures of one tool.
type breakerEntry struct {
	failures    int
	lastFailure time.Time
}

// Breaker is a per-tool circuit breaker shared across all executions in the
// process: a tool failing for one project's worker also throttles it for
// others, since repeated failures usually mean the downstream dependency
// itself is unhealthy.
type Breaker struct {
	mu          sync.Mutex
	entries     map[string]*breakerEntry
	maxFailures int
	resetWindow time.Duration
}

// NewBreaker creates a circuit breaker.
func NewBreaker(maxFailures int, resetWindow time.Duration) *Breaker {
	return &Breaker{
		entries:     make(map[string]*breakerEntry),
		maxFailures: maxFailures,
		resetWindow: resetWindow,
	}
}

// Allow reports whether a tool may execute. An entry past the reset window
// is lazily expired, re-admitting the tool.
func (b *Breaker) Allow(toolName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[toolName]
	if !ok {
		return true
	}
	if time.Since(entry.lastFailure) > b.resetWindow {
		delete(b.entries, toolName)
		return true
	}
	return entry.failures < b.maxFailures
}

// RecordSuccess clears the tool's failure entry.
func (b *Breaker) RecordSuccess(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, toolName)
}

// RecordFailure increments the tool's consecutive failure count, creating
// the entry on first failure.
func (b *Breaker) RecordFailure(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[toolName]
	if !ok {
		entry = &breakerEntry{}
		b.entries[toolName] = entry
	}
	entry.failures++
	entry.lastFailure = time.Now()
}

// Failures returns the current consecutive failure count for a tool.
func (b *Breaker) Failures(toolName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry, ok := b.entries[toolName]; ok {
		return entry.failures
	}
	return 0
}
