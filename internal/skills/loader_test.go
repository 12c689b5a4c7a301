package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

const validSkill = "---\nname: greeting\ndescription: say hello\nactions:\n  - send_speech\n---\nAlways greet warmly.\n"

func TestParseValidSkill(t *testing.T) {
	b, err := Parse(validSkill)
	require.NoError(t, err)
	assert.Equal(t, "greeting", b.Name)
	assert.Equal(t, "say hello", b.Description)
	assert.Equal(t, []string{"send_speech"}, b.Actions)
	assert.Equal(t, "Always greet warmly.", b.Body)
}

func TestParseMissingDelimiterIsSchemaError(t *testing.T) {
	_, err := Parse("name: greeting\n---\nbody\n")
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorSchema, actionErr.Kind)
}

func TestParseUnterminatedFrontMatterIsSchemaError(t *testing.T) {
	_, err := Parse("---\nname: greeting\nbody without closing delimiter\n")
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorSchema, actionErr.Kind)
}

func TestParseMissingNameIsSchemaError(t *testing.T) {
	_, err := Parse("---\ndescription: no name here\n---\nbody\n")
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorSchema, actionErr.Kind)
}

func TestParseFileNotFound(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/skill.skill.md")
	require.Error(t, err)
	var actionErr *errs.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, errs.ActionErrorNotFound, actionErr.Kind)
}

func writeSkillFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadAllShadowsByTierPriority(t *testing.T) {
	workspace := t.TempDir()
	global := t.TempDir()
	builtin := t.TempDir()

	writeSkillFile(t, builtin, "greeting.skill.md", "---\nname: greeting\ndescription: builtin version\n---\nbuiltin body\n")
	writeSkillFile(t, global, "greeting.skill.md", "---\nname: greeting\ndescription: global version\n---\nglobal body\n")
	writeSkillFile(t, workspace, "greeting.skill.md", "---\nname: greeting\ndescription: workspace version\n---\nworkspace body\n")
	writeSkillFile(t, builtin, "farewell.skill.md", "---\nname: farewell\ndescription: builtin only\n---\nbye\n")

	loader := NewLoader(workspace, global, builtin)
	all, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	byName := map[string]Bundled{}
	for _, b := range all {
		byName[b.Name] = b
	}
	assert.Equal(t, "workspace version", byName["greeting"].Description)
	assert.Equal(t, "builtin only", byName["farewell"].Description)
}

func TestLoadAllToleratesMissingDirectories(t *testing.T) {
	loader := NewLoader("", "", filepath.Join(t.TempDir(), "does-not-exist"))
	all, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoadAllSkipsNonSkillFiles(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "readme.md", "not a skill file")
	writeSkillFile(t, dir, "greeting.skill.md", validSkill)

	loader := NewLoader("", "", dir)
	all, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "greeting", all[0].Name)
}

func TestToStoreSkillIsActiveAndBundled(t *testing.T) {
	b, err := Parse(validSkill)
	require.NoError(t, err)

	s := ToStoreSkill("agent-1", b)
	assert.True(t, s.Active)
	assert.Equal(t, "agent-1", s.AgentID)
	assert.Equal(t, "Always greet warmly.", s.Guidance)
}
