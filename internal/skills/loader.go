// Package skills loads bundled skill files and manages the active set of
// skills for an agent (spec.md §4.6, §6's "skill file format").
package skills

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/store"
)

// Bundled is a skill parsed from a text file: a YAML header followed by a
// `---` delimiter and a free-text body, preserved verbatim.
type Bundled struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Actions     []string `yaml:"actions"`
	Body        string   `yaml:"-"`
}

const frontMatterDelim = "---"

// ParseFile reads one skill file: a YAML front-matter header between two
// `---` lines, followed by the guidance body kept byte-for-byte.
func ParseFile(path string) (Bundled, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bundled{}, &errs.ActionError{Kind: errs.ActionErrorNotFound, Action: "load_skill", Detail: path, Wrapped: err}
	}
	return Parse(string(raw))
}

// Parse splits raw skill-file content into its header and body.
func Parse(raw string) (Bundled, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontMatterDelim {
		return Bundled{}, &errs.ActionError{Kind: errs.ActionErrorSchema, Action: "load_skill", Detail: "missing front-matter delimiter"}
	}

	var header strings.Builder
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontMatterDelim {
			closed = true
			break
		}
		header.WriteString(line)
		header.WriteString("\n")
	}
	if !closed {
		return Bundled{}, &errs.ActionError{Kind: errs.ActionErrorSchema, Action: "load_skill", Detail: "unterminated front-matter"}
	}

	var b Bundled
	if err := yaml.Unmarshal([]byte(header.String()), &b); err != nil {
		return Bundled{}, &errs.ActionError{Kind: errs.ActionErrorSchema, Action: "load_skill", Detail: err.Error(), Wrapped: err}
	}

	var body strings.Builder
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteString("\n")
	}
	b.Body = strings.TrimRight(body.String(), "\n")
	if b.Name == "" {
		return Bundled{}, &errs.ActionError{Kind: errs.ActionErrorSchema, Action: "load_skill", Detail: "skill has no name"}
	}
	return b, nil
}

// Loader resolves bundled skills across three tiers, workspace overriding
// global overriding builtin, matching the lookup order in SPEC_FULL.md §4.6.
type Loader struct {
	workspaceDir string
	globalDir    string
	builtinDir   string
}

// NewLoader builds a Loader from the three search roots. Any of them may be
// empty, in which case that tier contributes nothing.
func NewLoader(workspaceDir, globalDir, builtinDir string) *Loader {
	return &Loader{workspaceDir: workspaceDir, globalDir: globalDir, builtinDir: builtinDir}
}

// LoadAll returns every skill file found across all three tiers, with
// workspace-tier files shadowing global-tier files of the same name, which
// in turn shadow builtin-tier files.
func (l *Loader) LoadAll() ([]Bundled, error) {
	seen := map[string]bool{}
	var out []Bundled
	for _, dir := range []string{l.workspaceDir, l.globalDir, l.builtinDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, &errs.PersistenceError{Op: "LoadAll skills", Cause: err}
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".skill.md") {
				continue
			}
			b, err := ParseFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			if seen[b.Name] {
				continue
			}
			seen[b.Name] = true
			out = append(out, b)
		}
	}
	return out, nil
}

// ToStoreSkill converts a parsed bundled skill into a store.Skill row ready
// for persistence at agent creation, active by default.
func ToStoreSkill(agentID string, b Bundled) store.Skill {
	return store.Skill{
		AgentID:     agentID,
		Name:        b.Name,
		Description: b.Description,
		Guidance:    b.Body,
		Actions:     b.Actions,
		Source:      store.SkillBundled,
		Active:      true,
	}
}
