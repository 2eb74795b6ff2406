// ABOUTME: Entry point for the companion client to the AI gateway.
// ABOUTME: Interactive chat, agent listing, history management, and daily sync.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/lifeos/companion/internal/agents"
	"github.com/lifeos/companion/internal/config"
	"github.com/lifeos/companion/internal/daily"
	"github.com/lifeos/companion/internal/dedupe"
	"github.com/lifeos/companion/internal/gateway"
	"github.com/lifeos/companion/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(ctx, os.Args[2:])
	case "agents":
		err = runAgents(ctx)
	case "sessions":
		err = runSessions(ctx)
	case "sync":
		err = runSync(ctx)
	case "clear":
		err = runClear(ctx, os.Args[2:])
	case "version":
		fmt.Printf("companion %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: companion <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  chat [agent-id]   Chat with an agent (default: main)")
	fmt.Println("  agents            List available agents")
	fmt.Println("  sessions          List active gateway sessions")
	fmt.Println("  sync              Sync today's conversations to the gateway")
	fmt.Println("  clear <agent-id>  Clear one conversation (--all for everything)")
	fmt.Println("  version           Print version")
}

// getConfigPath returns the path to the companion config file.
// Priority: COMPANION_CONFIG env var > XDG_CONFIG_HOME > ~/.config.
func getConfigPath() string {
	if envPath := os.Getenv("COMPANION_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "companion.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "companion", "companion.yaml")
}

// app bundles the wired-up dependencies shared by all subcommands.
type app struct {
	cfg     *config.Config
	store   *store.ConversationStore
	backend *store.SQLiteBackend
	client  *gateway.Client
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	setupLogger(cfg.Logging)

	backend, err := store.NewSQLiteBackend(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening conversation database: %w", err)
	}

	st, err := store.New(ctx, backend, nil)
	if err != nil {
		backend.Close()
		return nil, err
	}

	client := gateway.New(gateway.Options{
		BaseURL: cfg.Gateway.URL,
		Token:   cfg.Gateway.Token,
		Model:   cfg.Gateway.Model,
		UserID:  cfg.Gateway.UserID,
		Timeout: cfg.Gateway.Timeout,
	})

	return &app{cfg: cfg, store: st, backend: backend, client: client}, nil
}

func (a *app) close() {
	a.backend.Close()
}

func runAgents(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	fmt.Println("Available agents:")
	for _, a := range agents.All() {
		cyan.Printf("  %s %s (%s)\n", a.Emoji, a.Name, a.ID)
		gray.Printf("     %s\n", a.Description)
	}
	return nil
}

func runSessions(ctx context.Context) error {
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	sessions, err := app.client.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No active sessions")
		return nil
	}

	fmt.Println("Active sessions:")
	for _, s := range sessions {
		label := s.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("  %s  label=%s  created=%s\n", s.ID, label, s.CreatedAt)
	}
	return nil
}

func runSync(ctx context.Context) error {
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	cache := dedupe.New(24*time.Hour, 256)
	defer cache.Close()

	syncer := daily.New(app.store, app.client, cache, app.cfg.Sync.MaxPreviewLen, nil)
	synced, err := syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync incomplete (%d submitted): %w", synced, err)
	}

	color.Green("Synced %d conversation(s)", synced)
	return nil
}

func runClear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	all := fs.Bool("all", false, "Clear every conversation")
	fs.Parse(args)

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	if *all {
		app.store.ClearAll(ctx)
		color.Yellow("Cleared all conversations")
		return nil
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: companion clear <agent-id> | --all")
	}
	agentID := fs.Arg(0)
	if _, ok := agents.Lookup(agentID); !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}

	app.store.ClearConversation(ctx, agentID)
	color.Yellow("Cleared conversation with %s", agentID)
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	noStream := fs.Bool("no-stream", false, "Wait for whole responses instead of streaming")
	fs.Parse(args)

	agentID := agents.MainAgentID
	if fs.NArg() > 0 {
		agentID = fs.Arg(0)
	}

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	return chatLoop(ctx, app, agentID, !*noStream)
}
