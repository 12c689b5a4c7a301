package actions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/providers"
)

// Registry is the process-global map name -> Action. Registration is
// write-once: once Freeze is called (typically right after startup wiring),
// further Register calls panic, matching spec.md §4.3's "write-once at
// startup" contract.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Action
	frozen   bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Action{}}
}

// Register adds one action. It panics if the registry is frozen or the
// name is already registered — both are programmer errors, not runtime
// conditions callers should recover from.
func (r *Registry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("actions: Register called after Freeze")
	}
	if _, exists := r.handlers[a.Name]; exists {
		panic(fmt.Sprintf("actions: duplicate registration for %q", a.Name))
	}
	r.handlers[a.Name] = a
}

// Freeze marks the registry read-only. Safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the action registered under name, if any.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.handlers[name]
	return a, ok
}

// IsTerminal reports whether name is in the terminal action set.
func (r *Registry) IsTerminal(name string) bool {
	a, ok := r.Get(name)
	return ok && a.Terminal
}

// Descriptors returns the ToolDefinition view of a set of action names, in
// the order given, skipping unknown names. Used by the reasoning loop to
// materialize the tool list from an agent's active skills (spec.md §4.1
// step 2, and the no-duplicates invariant in §8.4 — callers should
// deduplicate names before calling this).
func (r *Registry) Descriptors(names []string) []providers.ToolDefinition {
	out := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		a, ok := r.Get(name)
		if !ok {
			continue
		}
		out = append(out, providers.ToolDefinition{
			Name:        a.Name,
			Description: a.Description,
			Parameters:  a.Parameters,
		})
	}
	return out
}

// All returns every registered action, sorted by name, mainly for
// diagnostics and tests.
func (r *Registry) All() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, 0, len(r.handlers))
	for _, a := range r.handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch parses argsJSON, invokes the named handler, and folds any
// handler error into an error Result. Parse failures and unknown names are
// reported the same way, so the reasoning loop can treat every Dispatch
// call uniformly as "always returns a Result, never an unhandled error for
// tool-shaped problems" — only a nil rc or a context cancellation escapes.
func (r *Registry) Dispatch(name string, argsJSON []byte, rc *RunContext) Result {
	a, ok := r.Get(name)
	if !ok {
		return Result{Success: false, Error: (&errs.ActionError{
			Kind: errs.ActionErrorNotFound, Action: name, Detail: "unknown action",
		}).Error()}
	}

	var args map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return Result{Success: false, Error: (&errs.ActionError{
				Kind: errs.ActionErrorSchema, Action: name, Detail: err.Error(), Wrapped: err,
			}).Error()}
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if missing := missingRequiredArgs(a.Parameters, args); len(missing) > 0 {
		detail := fmt.Sprintf("missing required argument(s): %s", strings.Join(missing, ", "))
		return Result{Success: false, Error: (&errs.ActionError{
			Kind: errs.ActionErrorSchema, Action: name, Detail: detail,
		}).Error()}
	}

	result, err := a.Handler(rc, args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return result
}
