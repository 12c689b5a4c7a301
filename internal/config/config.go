// Package config loads the settings the core needs: provider credentials,
// the alias-to-model map, the workspace root, the iteration bound, and the
// pricing table path. Everything else (secret files, process supervision,
// server ports) lives outside the core per SPEC_FULL.md.
package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds one provider's credential and base URL.
type ProviderConfig struct {
	APIKey  string `env:"API_KEY" yaml:"api_key"`
	BaseURL string `env:"BASE_URL" yaml:"base_url"`
}

// Config is the process-wide configuration the core reads at startup.
type Config struct {
	// WorkspaceBase is the directory under which every agent gets
	// base/agent_id/workspace.
	WorkspaceBase string `env:"PICOCLAW_WORKSPACE_BASE" envDefault:"./data/workspaces" yaml:"workspace_base"`

	// DatabasePath is the sqlite file backing the persistence layer.
	DatabasePath string `env:"PICOCLAW_DB_PATH" envDefault:"./data/picoclaw.db" yaml:"database_path"`

	// MaxIterations bounds the reasoning loop (spec.md §4.1, default 10).
	MaxIterations int `env:"PICOCLAW_MAX_ITERATIONS" envDefault:"10" yaml:"max_iterations"`

	// WorkspaceQuotaBytes caps total bytes under an agent's workspace root.
	WorkspaceQuotaBytes int64 `env:"PICOCLAW_WORKSPACE_QUOTA_BYTES" envDefault:"104857600" yaml:"workspace_quota_bytes"`

	// DefaultModel is used when an alias cannot be resolved.
	DefaultModel string `env:"PICOCLAW_DEFAULT_MODEL" envDefault:"anthropic:claude-sonnet-4-5" yaml:"default_model"`

	// FallbackChain is the ordered provider list tried on retriable failure.
	FallbackChain []string `env:"PICOCLAW_FALLBACK_CHAIN" envSeparator:"," envDefault:"anthropic,openai,local" yaml:"fallback_chain"`

	// Aliases maps symbolic names (fast, smart, reasoning, ...) to provider:model.
	Aliases map[string]string `yaml:"aliases"`

	// SelectableAliases is the whitelist select_llm may choose from.
	SelectableAliases []string `env:"PICOCLAW_SELECTABLE_ALIASES" envSeparator:"," envDefault:"fast,smart,reasoning,creative,cheap,local" yaml:"selectable_aliases"`

	Anthropic ProviderConfig `envPrefix:"PICOCLAW_ANTHROPIC_" yaml:"anthropic"`
	OpenAI    ProviderConfig `envPrefix:"PICOCLAW_OPENAI_" yaml:"openai"`
	Local     ProviderConfig `envPrefix:"PICOCLAW_LOCAL_" yaml:"local"`

	// LogLevel is passed straight to internal/logging.SetLevel.
	LogLevel string `env:"PICOCLAW_LOG_LEVEL" envDefault:"info" yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Aliases: map[string]string{
			"fast":      "anthropic:claude-haiku-4-5",
			"smart":     "anthropic:claude-sonnet-4-5",
			"reasoning": "anthropic:claude-opus-4-6",
			"creative":  "openai:gpt-5",
			"cheap":     "openai:gpt-5-mini",
			"local":     "local:default",
		},
	}
}

// Load reads environment variables into a Config seeded with defaults, then
// applies an optional YAML override file if yamlPath is non-empty and exists.
func Load(yamlPath string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	if cfg.Aliases == nil {
		cfg.Aliases = defaults().Aliases
	}

	return &cfg, nil
}
