package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentor/internal/agent"
	"mentor/internal/config"
	"mentor/internal/db"
	"mentor/internal/history"
	"mentor/internal/llm"
	"mentor/internal/logger"
	"mentor/internal/memory"
	"mentor/internal/persona"
	"mentor/internal/repl"
	"mentor/internal/trace"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	sessionFlag    string
	newSessionFlag bool
	streamFlag     bool
)

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id to continue")
	cmd.Flags().BoolVar(&newSessionFlag, "new-session", false, "start a session with a fresh random id")
	cmd.Flags().BoolVar(&streamFlag, "stream", false, "print the reply as it is generated")
}

// loadConfig reads .env, the config file and validates the result.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch {
	case newSessionFlag:
		cfg.Session.ID = uuid.Must(uuid.NewV7()).String()
	case sessionFlag != "":
		cfg.Session.ID = sessionFlag
	}
	if cmd.Flags().Changed("stream") {
		cfg.Chat.Stream = streamFlag
	}

	llmCfg, err := cfg.LLM()
	if err != nil {
		return err
	}
	apiKey, err := llmCfg.ResolveAPIKey()
	if err != nil {
		return err
	}

	if cfg.Trace.Enabled {
		shutdown, err := trace.Init(ctx, cfg.Trace)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("trace shutdown failed", "error", err)
			}
		}()
	}

	p, err := persona.Load(cfg.Persona.File)
	if err != nil {
		return fmt.Errorf("loading persona: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := newProvider(llmCfg, apiKey)
	if err != nil {
		return err
	}
	runner := agent.NewSimpleRunner(provider, store, p.SystemPrompt,
		agent.WithMemory(newMemory(cfg, store, provider)),
	)

	slog.Info("starting chat",
		"session_id", cfg.Session.ID,
		"llm", cfg.DefaultLLM,
		"model", llmCfg.Model,
		"history_mode", cfg.History.Mode,
		"history_store", cfg.History.Store,
		"history_window", cfg.History.Window,
	)

	return repl.New(runner, os.Stdin, os.Stdout, repl.Options{
		SessionID: cfg.Session.ID,
		Persona:   p,
		Stream:    cfg.Chat.Stream,
		Color:     term.IsTerminal(int(os.Stdout.Fd())),
	}).Run(ctx)
}

// openStore returns the history backend selected by [history]. The returned
// close function is always safe to call.
func openStore(cfg *config.Config) (history.Store, func(), error) {
	if cfg.History.Mode == config.ModeFresh {
		return history.NewFreshStore(), func() {}, nil
	}
	if cfg.History.Store != config.StoreSQLite {
		return history.NewMemoryStore(), func() {}, nil
	}

	database, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return history.NewSQLiteStore(database), func() { database.Close() }, nil
}

func openDB(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return database, nil
}

func newMemory(cfg *config.Config, store history.Store, provider llm.Provider) memory.Memory {
	switch cfg.History.Window {
	case config.WindowLast:
		return memory.NewWindowMemory(store, cfg.History.MaxTurns)
	case config.WindowCompact:
		slog.Info("compaction enabled",
			"threshold", cfg.History.Compaction.TurnThreshold,
			"keep_recent", cfg.History.Compaction.KeepRecent,
		)
		return memory.NewCompactor(store, provider, cfg.History.Compaction)
	default:
		return memory.NewConversationMemory(store)
	}
}

func newProvider(l *config.LLMConfig, apiKey string) (llm.Provider, error) {
	opts := llm.Options{
		BaseURL:     l.BaseURL,
		APIKey:      apiKey,
		Model:       l.Model,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	}
	switch l.Type {
	case config.ProviderOpenAI:
		return llm.NewOpenAI(opts), nil
	case config.ProviderOpenAIChat:
		return llm.NewChat(opts), nil
	case config.ProviderAnthropic:
		return llm.NewAnthropic(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm type %q", l.Type)
	}
}
