// Package override implements the single-writer-single-reader model_override
// cell described in spec.md §4.1 and §9: a per-loop-invocation value written
// by the select_llm action and read at the top of each reasoning-loop
// iteration. It is deliberately not a package global — one Cell is created
// per loop invocation and threaded through explicitly. this_session and
// permanent overrides outlive the Cell itself: internal/loop persists them
// via internal/store.SaveModelOverride and reloads them into a fresh Cell at
// the top of every invocation, so the Cell only ever needs to track state
// for the invocation currently running.
package override

import (
	"sync"

	"github.com/sipeed/picoclaw-core/internal/providers"
)

// Duration controls how long a select_llm override remains in effect.
type Duration string

const (
	ThisTurn    Duration = "this_turn"
	ThisSession Duration = "this_session"
	Permanent   Duration = "permanent"
)

type entry struct {
	model    string
	duration Duration
}

// Cell holds the current per-purpose model override for one loop
// invocation. The zero value is ready to use.
type Cell struct {
	mu  sync.Mutex
	set map[providers.Purpose]entry
}

// NewCell returns an empty override cell.
func NewCell() *Cell {
	return &Cell{set: map[providers.Purpose]entry{}}
}

// Set installs an override for purpose, to take effect starting the next
// iteration that resolves that purpose (spec.md §4.1: "writes inside
// iteration k take effect in iteration k+1, never retroactively").
func (c *Cell) Set(purpose providers.Purpose, model string, duration Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[purpose] = entry{model: model, duration: duration}
}

// Resolve returns the override model for purpose, if any. A this_turn
// override is consumed on read: the very next resolution reverts to the
// caller's default, matching scenario S4. this_session and permanent
// overrides persist for the remainder of the invocation and, since the
// caller reloads them from storage at the start of the next invocation,
// across invocations too.
func (c *Cell) Resolve(purpose providers.Purpose) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.set[purpose]
	if !ok {
		return "", false
	}
	if e.duration == ThisTurn {
		delete(c.set, purpose)
	}
	return e.model, true
}

// Peek reports the override model for purpose, if any, without consuming a
// this_turn entry. For read-only display (the LLM-config context block),
// never Resolve — that would silently spend a this_turn override before
// the iteration that is supposed to use it ever runs.
func (c *Cell) Peek(purpose providers.Purpose) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.set[purpose]
	return e.model, ok
}
