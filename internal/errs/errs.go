// Package errs defines the error taxonomy shared by the router, dispatcher,
// and reasoning loop. Each kind is a distinct type so callers can use
// errors.As instead of comparing strings.
package errs

import "fmt"

// ConfigError signals a missing provider credential or a misconfigured
// alias. It aborts the loop before any LLM call is attempted.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string { return "config error: " + e.Detail }

// RouterError wraps a provider-level failure. Retriable is true for
// timeouts, 5xx responses, and rate limiting; false for authentication
// and schema failures, which never trigger fallback.
type RouterError struct {
	Provider  string
	Model     string
	Retriable bool
	Cause     error
}

func (e *RouterError) Error() string {
	kind := "non-retriable"
	if e.Retriable {
		kind = "retriable"
	}
	return fmt.Sprintf("router error (%s, %s/%s): %v", kind, e.Provider, e.Model, e.Cause)
}

func (e *RouterError) Unwrap() error { return e.Cause }

// ActionErrorKind classifies why a tool call failed.
type ActionErrorKind string

const (
	ActionErrorSchema       ActionErrorKind = "schema"
	ActionErrorPermission   ActionErrorKind = "permission"
	ActionErrorNotFound     ActionErrorKind = "not_found"
	ActionErrorPrecondition ActionErrorKind = "precondition"
	ActionErrorQuota        ActionErrorKind = "quota"
	ActionErrorInternal     ActionErrorKind = "internal"
)

// ActionError is returned by a tool handler and folded into a tool result;
// it never propagates past the dispatcher.
type ActionError struct {
	Kind    ActionErrorKind
	Action  string
	Detail  string
	Wrapped error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed (%s): %s", e.Action, e.Kind, e.Detail)
}

func (e *ActionError) Unwrap() error { return e.Wrapped }

// PersistenceError signals the storage layer is unavailable. It propagates
// to the caller after the loop attempts to write a terminating metric stub.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// LoopExhausted is not an error condition — it tags a non-terminal outcome
// for observability when the iteration bound is reached.
type LoopExhausted struct {
	Iterations int
}

func (e *LoopExhausted) Error() string {
	return fmt.Sprintf("loop exhausted after %d iterations", e.Iterations)
}

// Cancelled signals the loop observed a cancellation signal at a
// suspension point and stopped without further side effects.
type Cancelled struct {
	Stage string
}

func (e *Cancelled) Error() string { return "cancelled during " + e.Stage }
