// Package agent is the external boundary of the core (spec.md §6): a
// single Agent facade that wires persona, identity, workspace, router,
// dispatcher, memory, skills, and the reasoning loop together behind one
// Process entry point.
package agent

import (
	"context"
	"fmt"

	"github.com/sipeed/picoclaw-core/internal/actions"
	"github.com/sipeed/picoclaw-core/internal/config"
	loopctx "github.com/sipeed/picoclaw-core/internal/context"
	"github.com/sipeed/picoclaw-core/internal/identity"
	"github.com/sipeed/picoclaw-core/internal/loop"
	"github.com/sipeed/picoclaw-core/internal/memory"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/persona"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/internal/workspace"
)

// IncomingMessage and OutgoingMessage are re-exported so callers outside
// the core never need to import internal/messages directly.
type IncomingMessage = messages.IncomingMessage
type OutgoingMessage = messages.OutgoingMessage

// Agent is one persistent entity: identity, persona, workspace, memory,
// skills, and an LLM configuration, ready to process inbound messages.
type Agent struct {
	id   string
	name string

	db        *store.DB
	workspace *workspace.Workspace
	router    *providers.Router
	registry  *actions.Registry
	memory    *memory.Service
	skills    *skills.Manager
	builder   *loopctx.Builder

	maxIterations     int
	selectableAliases []string
	fallbackProviders []string
}

// Deps bundles the process-wide singletons an Agent is built from: the
// persistence handle, the shared router, and the shared action registry
// (spec.md §3's "process-wide singletons" note).
type Deps struct {
	DB       *store.DB
	Router   *providers.Router
	Registry *actions.Registry
	Cfg      *config.Config
}

// New constructs (or resumes) the agent identified by agentID, seeding
// default persona/identity/bundled skills the first time it is seen.
func New(ctx context.Context, agentID, agentName string, deps Deps, bundledSkills []skills.Bundled) (*Agent, error) {
	if err := deps.DB.EnsureAgent(agentID); err != nil {
		return nil, fmt.Errorf("ensure agent: %w", err)
	}

	ws, err := workspace.New(deps.Cfg.WorkspaceBase, agentID, deps.Cfg.WorkspaceQuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("build workspace: %w", err)
	}

	mem := memory.New(deps.DB)
	skillMgr := skills.NewManager(deps.DB)
	if err := skillMgr.Seed(agentID, bundledSkills); err != nil {
		return nil, fmt.Errorf("seed skills: %w", err)
	}

	return &Agent{
		id:                agentID,
		name:              agentName,
		db:                deps.DB,
		workspace:         ws,
		router:            deps.Router,
		registry:          deps.Registry,
		memory:            mem,
		skills:            skillMgr,
		builder:           loopctx.New(),
		maxIterations:     deps.Cfg.MaxIterations,
		selectableAliases: deps.Cfg.SelectableAliases,
		fallbackProviders: deps.Cfg.FallbackChain,
	}, nil
}

// ID returns the agent's stable opaque id.
func (a *Agent) ID() string { return a.id }

// SetPersona overwrites the agent's persona document.
func (a *Agent) SetPersona(p persona.Persona) error { return a.db.SavePersona(a.id, p) }

// SetIdentity overwrites the agent's identity document.
func (a *Agent) SetIdentity(id identity.Identity) error { return a.db.SaveIdentity(a.id, id) }

// Process is the core entry point from spec.md §6:
// process(agent_id, incoming) -> list<OutgoingMessage>. sessionID scopes
// the session-log and session-state rows this invocation reads and writes.
func (a *Agent) Process(ctx context.Context, sessionID string, incoming messages.IncomingMessage) ([]messages.OutgoingMessage, error) {
	l := loop.New(loop.Config{
		AgentID:           a.id,
		AgentName:         a.name,
		MaxIterations:     a.maxIterations,
		SelectableAliases: a.selectableAliases,
		FallbackProviders: a.fallbackProviders,
		DB:                a.db,
		Workspace:         a.workspace,
		Router:            a.router,
		Registry:          a.registry,
		Memory:            a.memory,
		Skills:            a.skills,
		Builder:           a.builder,
	})

	outcome, err := l.Run(ctx, sessionID, incoming)
	if err != nil {
		return outcome.Outgoing, err
	}
	return outcome.Outgoing, nil
}
