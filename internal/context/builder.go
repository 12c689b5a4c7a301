// Package context assembles the per-turn system prompt from persona,
// identity, memory, skills, and LLM configuration, in the fixed section
// order spec.md §4.7 requires.
package context

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sipeed/picoclaw-core/internal/identity"
	"github.com/sipeed/picoclaw-core/internal/persona"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// LLMConfigView is the LLM-config block's inputs: the model currently
// selected for each purpose, and the aliases the agent may pick with
// select_llm.
type LLMConfigView struct {
	SelectedByPurpose  map[string]string
	SelectableAliases  []string
}

const directive = "For every turn, choose one or more tool calls that make progress. " +
	"If no tool call is needed, respond with plain text instead."

// Builder composes system prompts. It holds no per-agent state; every
// method call is a pure function of its arguments.
type Builder struct{}

// New constructs a context Builder.
func New() *Builder { return &Builder{} }

// Build renders the six ordered sections described in spec.md §4.7,
// omitting any section whose inputs are empty.
func (b *Builder) Build(id identity.Identity, p persona.Persona, memoryBlock string, activeSkills []store.Skill, cfg LLMConfigView) string {
	var sections []string

	if idBlock := id.BuildContext(); strings.TrimSpace(idBlock) != "" {
		sections = append(sections, idBlock)
	}

	sections = append(sections, p.BuildContext())

	if strings.TrimSpace(memoryBlock) != "" {
		sections = append(sections, "## Memory\n"+memoryBlock)
	}

	if skillBlock := renderSkills(activeSkills); skillBlock != "" {
		sections = append(sections, skillBlock)
	}

	if cfgBlock := renderLLMConfig(cfg); cfgBlock != "" {
		sections = append(sections, cfgBlock)
	}

	sections = append(sections, directive)

	return strings.Join(sections, "\n\n")
}

func renderSkills(active []store.Skill) string {
	if len(active) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Skills\n")
	for _, s := range active {
		b.WriteString(fmt.Sprintf("### %s\n%s\n\n", s.Name, s.Guidance))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLLMConfig(cfg LLMConfigView) string {
	if len(cfg.SelectedByPurpose) == 0 && len(cfg.SelectableAliases) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## LLM configuration\n")
	purposes := make([]string, 0, len(cfg.SelectedByPurpose))
	for purpose := range cfg.SelectedByPurpose {
		purposes = append(purposes, purpose)
	}
	sort.Strings(purposes)
	for _, purpose := range purposes {
		b.WriteString(fmt.Sprintf("- %s: %s\n", purpose, cfg.SelectedByPurpose[purpose]))
	}
	if len(cfg.SelectableAliases) > 0 {
		b.WriteString("Selectable aliases: " + strings.Join(cfg.SelectableAliases, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
