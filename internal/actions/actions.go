// Package actions implements the action dispatcher of spec.md §4.3: a
// process-global, write-once registry of named tool handlers, each
// operating on a per-call RunContext supplied by the reasoning loop.
package actions

import (
	"context"

	"github.com/sipeed/picoclaw-core/internal/memory"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/override"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/internal/workspace"
)

// Result is the structured outcome of one action invocation, folded into a
// tool-result turn by the caller.
type Result struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	SideEffects []string       `json:"side_effects,omitempty"`
}

// Handler executes one action against a RunContext and its parsed
// arguments. A returned error is folded into an error Result by Dispatch;
// handlers do not need to build error Results themselves.
type Handler func(rc *RunContext, args map[string]any) (Result, error)

// Action is the process-global, immutable-after-registration descriptor
// from spec.md §3: name, description, JSON-Schema parameters, plus the
// handler and whether it belongs to the terminal set (spec.md §4.1).
type Action struct {
	Name        string
	Description string
	Parameters  map[string]any
	Terminal    bool
	Handler     Handler
}

// RunContext is the "shared context value passed at call time" described
// in spec.md §9's cyclic-reference note: the action registry never holds a
// reference to the agent, only this per-call bundle built fresh by the
// reasoning loop for each tool invocation.
type RunContext struct {
	Ctx context.Context

	AgentID       string
	AgentName     string
	SessionID     string
	TurnNumber    int
	SpeakerID     string
	CurrentPurpose providers.Purpose

	DB        *store.DB
	Workspace *workspace.Workspace
	Memory    *memory.Service
	Skills    *skills.Manager
	Router    *providers.Router
	Override  *override.Cell

	SelectableAliases []string

	// LastMetricsID points at the loop's own last-metrics-id slot so
	// evaluate_response can read and clear it without the registry ever
	// holding loop state directly.
	LastMetricsID *int64

	// Outgoing accumulates OutgoingMessages produced by terminal utterance
	// actions; the loop reads it after the call returns.
	Outgoing *[]messages.OutgoingMessage
}
