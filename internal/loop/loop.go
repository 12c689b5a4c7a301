// Package loop implements the reasoning loop (skill engine) from
// spec.md §4.1: the bounded iterative controller that interleaves LLM
// calls and action dispatch for one inbound message.
package loop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sipeed/picoclaw-core/internal/actions"
	loopctx "github.com/sipeed/picoclaw-core/internal/context"
	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/logging"
	"github.com/sipeed/picoclaw-core/internal/memory"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/override"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/internal/workspace"
)

// DefaultMaxIterations is the fallback iteration bound when Config.MaxIterations
// is zero.
const DefaultMaxIterations = 10

// Config bundles everything one Loop needs to run invocations for a single
// agent. It plays the role of the "handle to persistence, workspace,
// router, dispatcher" in spec.md §4.1's per-invocation state.
type Config struct {
	AgentID           string
	AgentName         string
	MaxIterations     int
	SelectableAliases []string
	FallbackProviders []string

	DB        *store.DB
	Workspace *workspace.Workspace
	Router    *providers.Router
	Registry  *actions.Registry
	Memory    *memory.Service
	Skills    *skills.Manager
	Builder   *loopctx.Builder
}

// Loop runs one reasoning-loop invocation at a time for its agent. Two
// invocations for different sessions of the same agent must not share a
// Loop value concurrently — construct one per invocation, per spec.md §5's
// "concurrent loops for different sessions" note; the fields it holds
// (Config) are read-only and safe to share.
type Loop struct {
	cfg Config
}

// New builds a Loop bound to cfg. MaxIterations defaults to
// DefaultMaxIterations if unset.
func New(cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Loop{cfg: cfg}
}

// Outcome is what one invocation of Run produces: the outgoing messages
// dispatched to the gateway, plus whether the loop exhausted its iteration
// bound without a terminal action (spec.md §4.1 step 4).
type Outcome struct {
	Outgoing []messages.OutgoingMessage
	Exhausted bool
}

// Run executes the reasoning loop for one inbound message within
// sessionID, following the algorithm in spec.md §4.1.
func (l *Loop) Run(ctx context.Context, sessionID string, incoming messages.IncomingMessage) (Outcome, error) {
	state := &invocationState{
		override:      override.NewCell(),
		currentPurpose: providers.PurposeToolCalling,
	}

	persisted, err := l.cfg.DB.LoadModelOverrides(l.cfg.AgentID, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	for _, o := range persisted {
		state.override.Set(o.Purpose, o.Model, override.Duration(o.Duration))
	}

	id, err := l.cfg.DB.LoadIdentity(l.cfg.AgentID)
	if err != nil {
		return Outcome{}, err
	}
	p, err := l.cfg.DB.LoadPersona(l.cfg.AgentID)
	if err != nil {
		return Outcome{}, err
	}
	memoryBlock, err := l.cfg.Memory.BuildContext(l.cfg.AgentID)
	if err != nil {
		return Outcome{}, err
	}
	active, err := l.cfg.Skills.ActiveSkills(l.cfg.AgentID)
	if err != nil {
		return Outcome{}, err
	}
	state.actionSkills = skillsByAction(active)

	systemPrompt := l.cfg.Builder.Build(id, p, memoryBlock, active, loopctx.LLMConfigView{
		SelectedByPurpose: l.selectedByPurpose(state),
		SelectableAliases: l.cfg.SelectableAliases,
	})

	transcript := []providers.Message{
		{Role: providers.RoleSystem, Content: systemPrompt},
		{Role: providers.RoleUser, Content: incoming.Content},
	}

	toolNames := skills.ActionNames(active)
	tools := l.cfg.Registry.Descriptors(toolNames)

	outgoing := []messages.OutgoingMessage{}
	turn := 0

	for iter := 0; iter < l.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Outgoing: outgoing}, &errs.Cancelled{Stage: "iteration_start"}
		}

		model := l.resolveModel(state)

		resp, metricID, err := l.cfg.Router.Dispatch(ctx, model, l.cfg.FallbackProviders, providers.ChatRequest{
			Messages: transcript,
			Tools:    tools,
			Purpose:  state.currentPurpose,
			AgentID:  l.cfg.AgentID,
		})
		if metricID != 0 {
			state.lastMetricsID = metricID
		}
		if err != nil {
			return Outcome{Outgoing: outgoing}, err
		}

		if len(resp.ToolCalls) == 0 {
			transcript = append(transcript, providers.Message{Role: providers.RoleAssistant, Content: resp.Content})
			outgoing = append(outgoing, messages.OutgoingMessage{Content: resp.Content, Target: replyTarget(incoming)})
			return Outcome{Outgoing: outgoing}, nil
		}

		transcript = append(transcript, providers.Message{
			Role: providers.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls,
		})

		terminated, terminalOutcome, terminalErr := l.dispatchToolCalls(ctx, state, sessionID, incoming, &turn, resp.ToolCalls, &transcript, &outgoing)
		if terminalErr != nil {
			return Outcome{Outgoing: outgoing}, terminalErr
		}
		if terminated {
			return terminalOutcome, nil
		}
	}

	logging.WarnCF("loop", "iteration bound reached", map[string]any{
		"agent_id": l.cfg.AgentID, "session_id": sessionID, "max_iterations": l.cfg.MaxIterations,
	})
	return Outcome{Outgoing: outgoing, Exhausted: true}, nil
}

// invocationState is the mutable per-invocation state from spec.md §4.1,
// owned exclusively by one Run call.
type invocationState struct {
	override       *override.Cell
	lastMetricsID  int64
	currentPurpose providers.Purpose
	actionSkills   map[string][]string
}

// skillsByAction inverts a skill list into an action-name -> skill-IDs
// index, so a dispatched call can be traced back to the skill(s) that
// exposed it for usage-counting (spec.md §4.6's record_usage).
func skillsByAction(active []store.Skill) map[string][]string {
	out := make(map[string][]string)
	for _, s := range active {
		for _, a := range s.Actions {
			out[a] = append(out[a], s.ID)
		}
	}
	return out
}

// resolveModel re-reads model_override at the top of the iteration
// (spec.md §4.1 step 3a). With no override, "" resolves to the router's
// configured default model via AliasResolver.Resolve.
func (l *Loop) resolveModel(state *invocationState) string {
	if model, ok := state.override.Resolve(state.currentPurpose); ok {
		return model
	}
	return ""
}

// selectedByPurpose renders the "currently selected model" for every
// purpose, active select_llm override or configured default, for the
// LLM-config context block (spec.md §4.7 step 5). It uses Peek rather than
// Resolve so displaying the value never consumes a this_turn override
// before the iteration loop actually applies it.
func (l *Loop) selectedByPurpose(state *invocationState) map[string]string {
	out := make(map[string]string, len(providers.AllPurposes()))
	for _, purpose := range providers.AllPurposes() {
		alias, ok := state.override.Peek(purpose)
		if !ok {
			alias = ""
		}
		out[string(purpose)] = l.cfg.Router.ResolveModel(alias).String()
	}
	return out
}

// dispatchToolCalls executes one LLM response's tool calls in order,
// appending assistant/tool-result turns to transcript and outgoing replies
// to outgoing. It returns terminated=true once a terminal action commits,
// per spec.md §4.1 step 3d's "first one wins" rule.
func (l *Loop) dispatchToolCalls(
	ctx context.Context,
	state *invocationState,
	sessionID string,
	incoming messages.IncomingMessage,
	turn *int,
	calls []providers.ToolCall,
	transcript *[]providers.Message,
	outgoing *[]messages.OutgoingMessage,
) (bool, Outcome, error) {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return true, Outcome{Outgoing: *outgoing}, &errs.Cancelled{Stage: "tool_call"}
		}

		*turn++
		argsJSON, marshalErr := json.Marshal(call.Arguments)
		if marshalErr != nil {
			*transcript = append(*transcript, invalidArgumentsResult(call, marshalErr))
			continue
		}

		metricsID := state.lastMetricsID
		rc := &actions.RunContext{
			Ctx:               ctx,
			AgentID:           l.cfg.AgentID,
			AgentName:         l.cfg.AgentName,
			SessionID:         sessionID,
			TurnNumber:        *turn,
			SpeakerID:         incoming.Sender,
			CurrentPurpose:    state.currentPurpose,
			DB:                l.cfg.DB,
			Workspace:         l.cfg.Workspace,
			Memory:            l.cfg.Memory,
			Skills:            l.cfg.Skills,
			Router:            l.cfg.Router,
			Override:          state.override,
			SelectableAliases: l.cfg.SelectableAliases,
			LastMetricsID:     &metricsID,
			Outgoing:          outgoing,
		}

		result := l.cfg.Registry.Dispatch(call.Name, argsJSON, rc)
		state.lastMetricsID = metricsID

		if result.Success {
			for _, skillID := range state.actionSkills[call.Name] {
				if err := l.cfg.Skills.RecordUsage(l.cfg.AgentID, skillID); err != nil {
					logging.WarnCF("loop", "record skill usage failed", map[string]any{
						"agent_id": l.cfg.AgentID, "skill_id": skillID, "action": call.Name, "error": err.Error(),
					})
				}
			}
		}

		resultJSON, _ := json.Marshal(result)
		*transcript = append(*transcript, providers.Message{
			Role: providers.RoleTool, Content: string(resultJSON), ToolCallID: call.ID,
		})

		if l.cfg.Registry.IsTerminal(call.Name) && result.Success {
			return true, Outcome{Outgoing: *outgoing}, nil
		}
	}
	return false, Outcome{}, nil
}

func invalidArgumentsResult(call providers.ToolCall, err error) providers.Message {
	payload, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   fmt.Sprintf("invalid_arguments: %v", err),
	})
	return providers.Message{Role: providers.RoleTool, Content: string(payload), ToolCallID: call.ID}
}

func replyTarget(incoming messages.IncomingMessage) string {
	if incoming.Channel != "" {
		return "channel(" + incoming.Channel + ")"
	}
	return "dm(" + incoming.Sender + ")"
}
