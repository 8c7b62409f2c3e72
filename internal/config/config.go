package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrMissingAPIKey is returned when no credential is configured for the selected LLM.
var ErrMissingAPIKey = errors.New("missing API key")

// Provider types accepted in [llm.<name>].type.
const (
	ProviderOpenAI     = "openai"      // Responses API
	ProviderOpenAIChat = "openai-chat" // Chat Completions API
	ProviderAnthropic  = "anthropic"
)

// History modes.
const (
	ModePersist = "persist"
	ModeFresh   = "fresh"
)

// History backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// History-window policies.
const (
	WindowFull    = "full"
	WindowLast    = "last"
	WindowCompact = "compact"
)

type Config struct {
	LogLevel   string                `toml:"log_level"`
	DefaultLLM string                `toml:"default_llm"`
	LLMs       map[string]*LLMConfig `toml:"llm"`
	Session    SessionConfig         `toml:"session"`
	History    HistoryConfig         `toml:"history"`
	Persona    PersonaConfig         `toml:"persona"`
	Chat       ChatConfig            `toml:"chat"`
	DB         DBConfig              `toml:"db"`
	Trace      TraceConfig           `toml:"trace"`
}

type LLMConfig struct {
	Type        string  `toml:"type"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int64   `toml:"max_tokens"`
}

type SessionConfig struct {
	ID string `toml:"id"`
}

type HistoryConfig struct {
	Mode       string           `toml:"mode"`
	Store      string           `toml:"store"`
	Window     string           `toml:"window"`
	MaxTurns   int              `toml:"max_turns"`
	Compaction CompactionConfig `toml:"compaction"`
}

type CompactionConfig struct {
	TurnThreshold int `toml:"turn_threshold"`
	KeepRecent    int `toml:"keep_recent"`
}

type PersonaConfig struct {
	File string `toml:"file"`
}

type ChatConfig struct {
	Stream bool `toml:"stream"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
}

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// Default returns the built-in configuration: the fine-tuned OpenAI model,
// one in-memory session replayed in full.
func Default() *Config {
	return &Config{
		LogLevel:   "warn",
		DefaultLLM: "openai",
		LLMs: map[string]*LLMConfig{
			"openai": {
				Type:        ProviderOpenAI,
				Model:       "ft:gpt-4o-mini-2024-07-18:personal:insta:BF6KYkse",
				APIKeyEnv:   "OPENAI_API_KEY",
				Temperature: defaultTemperature,
			},
			"anthropic": {
				Type:        ProviderAnthropic,
				Model:       "claude-sonnet-4-20250514",
				APIKeyEnv:   "ANTHROPIC_API_KEY",
				Temperature: defaultTemperature,
				MaxTokens:   defaultMaxTokens,
			},
		},
		Session: SessionConfig{
			ID: "default_session",
		},
		History: HistoryConfig{
			Mode:     ModePersist,
			Store:    StoreMemory,
			Window:   WindowFull,
			MaxTurns: 20,
			Compaction: CompactionConfig{
				TurnThreshold: 40,
				KeepRecent:    10,
			},
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path selects
// the user config file, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = Path()
	}

	if _, err := os.Stat(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	// A [llm.<name>] table replaces the default entry wholesale.
	for name, l := range cfg.LLMs {
		if l == nil {
			continue
		}
		if l.Type == "" {
			l.Type = ProviderOpenAI
			if name == ProviderAnthropic {
				l.Type = ProviderAnthropic
			}
		}
		if !meta.IsDefined("llm", name, "temperature") {
			l.Temperature = defaultTemperature
		}
		if l.MaxTokens == 0 && l.Type == ProviderAnthropic {
			l.MaxTokens = defaultMaxTokens
		}
	}
	return cfg, nil
}

// Validate checks that enumerated settings hold known values.
func (c *Config) Validate() error {
	llm, err := c.LLM()
	if err != nil {
		return err
	}
	switch llm.Type {
	case ProviderOpenAI, ProviderOpenAIChat, ProviderAnthropic:
	default:
		return fmt.Errorf("llm %q: unknown type %q", c.DefaultLLM, llm.Type)
	}
	if llm.Model == "" {
		return fmt.Errorf("llm %q: model is required", c.DefaultLLM)
	}

	switch c.History.Mode {
	case ModePersist, ModeFresh:
	default:
		return fmt.Errorf("history: unknown mode %q", c.History.Mode)
	}
	switch c.History.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("history: unknown store %q", c.History.Store)
	}
	switch c.History.Window {
	case WindowFull:
	case WindowLast:
		if c.History.MaxTurns <= 0 {
			return fmt.Errorf("history: max_turns must be positive for window %q", WindowLast)
		}
	case WindowCompact:
		cc := c.History.Compaction
		if cc.TurnThreshold <= 0 || cc.KeepRecent < 0 || cc.KeepRecent >= cc.TurnThreshold {
			return fmt.Errorf("history: compaction needs 0 <= keep_recent < turn_threshold, got %d and %d", cc.KeepRecent, cc.TurnThreshold)
		}
	default:
		return fmt.Errorf("history: unknown window %q", c.History.Window)
	}

	if strings.TrimSpace(c.Session.ID) == "" {
		return errors.New("session: id must not be empty")
	}
	return nil
}

// LLM returns the configuration selected by default_llm.
func (c *Config) LLM() (*LLMConfig, error) {
	llm, ok := c.LLMs[c.DefaultLLM]
	if !ok || llm == nil {
		return nil, fmt.Errorf("default LLM %q not found in config", c.DefaultLLM)
	}
	return llm, nil
}

// ResolveAPIKey returns the inline api_key, or the value of the environment
// variable named by api_key_env.
func (l *LLMConfig) ResolveAPIKey() (string, error) {
	if l.APIKey != "" {
		return l.APIKey, nil
	}
	env := l.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv(l.Type)
	}
	if key := strings.TrimSpace(os.Getenv(env)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: set %s or api_key in the config file", ErrMissingAPIKey, env)
}

func defaultKeyEnv(providerType string) string {
	if providerType == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Path returns the default config file location.
func Path() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "mentor", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "mentor", "mentor.db")
}
