package actions

// NewStandardRegistry builds and freezes the registry containing every
// action group defined in spec.md §4.3.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	registerUtterance(r)
	registerWorkspace(r)
	registerLearning(r)
	registerSearch(r)
	registerSelfManagement(r)
	r.Freeze()
	return r
}

// TerminalNames is the fixed terminal set from spec.md §4.1.
var TerminalNames = []string{"send_speech", "send_noreact", "declare_done", "broadcast_guidance"}
