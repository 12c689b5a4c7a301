// Command picoclaw-core is a smoke-test entry point: it constructs one
// agent from configuration, feeds it a single message read from stdin, and
// prints the resulting OutgoingMessages as JSON. The HTTP server, channel
// adapters, and dashboard that normally front this core are out of scope
// (spec.md §1) and are not implemented here.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picoclaw-core/internal/actions"
	"github.com/sipeed/picoclaw-core/internal/config"
	"github.com/sipeed/picoclaw-core/internal/logging"
	"github.com/sipeed/picoclaw-core/internal/messages"
	"github.com/sipeed/picoclaw-core/internal/providers"
	"github.com/sipeed/picoclaw-core/internal/skills"
	"github.com/sipeed/picoclaw-core/internal/store"
	"github.com/sipeed/picoclaw-core/pkg/agent"
)

func main() {
	var agentID, agentName, sessionID, configPath, skillsDir string

	root := &cobra.Command{
		Use:   "picoclaw-core",
		Short: "Feed one message through a picoclaw-core agent and print the replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), agentID, agentName, sessionID, configPath, skillsDir)
		},
	}
	root.Flags().StringVar(&agentID, "agent-id", "default-agent", "agent id to load or create")
	root.Flags().StringVar(&agentName, "agent-name", "Agent", "agent display name")
	root.Flags().StringVar(&sessionID, "session-id", "cli-session", "session id to scope logs to")
	root.Flags().StringVar(&configPath, "config", "", "optional YAML config override path")
	root.Flags().StringVar(&skillsDir, "builtin-skills", "", "directory of builtin .skill.md files")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, agentID, agentName, sessionID, configPath, skillsDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetLevel(cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.RepairIndex(); err != nil {
		return fmt.Errorf("repair index: %w", err)
	}

	pricing, err := db.LoadPricingTable()
	if err != nil {
		return fmt.Errorf("load pricing: %w", err)
	}

	adapters := providers.BuildAdapters(
		cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL,
		cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
		cfg.Local.APIKey, cfg.Local.BaseURL,
	)
	aliases := providers.NewAliasResolver(cfg.Aliases, cfg.DefaultModel, "anthropic")
	router := providers.NewRouter(adapters, aliases, pricing, db,
		providers.WithCompatibilityMap(providers.DefaultCompatibilityMap()))

	registry := actions.NewStandardRegistry()

	var bundled []skills.Bundled
	if skillsDir != "" {
		loader := skills.NewLoader("", "", skillsDir)
		bundled, err = loader.LoadAll()
		if err != nil {
			return fmt.Errorf("load builtin skills: %w", err)
		}
	}

	a, err := agent.New(ctx, agentID, agentName, agent.Deps{DB: db, Router: router, Registry: registry, Cfg: cfg}, bundled)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	content, err := readStdin()
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	outgoing, err := a.Process(ctx, sessionID, messages.IncomingMessage{
		ID: sessionID, Source: "cli", Content: content, Sender: "cli-user",
	})
	if err != nil {
		return fmt.Errorf("process message: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outgoing)
}

func readStdin() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out, nil
}
