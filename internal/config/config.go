// Package config handles Palaver configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./palaver.yaml, ~/.config/palaver/config.yaml, /etc/palaver/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"palaver.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "palaver", "config.yaml"))
	}

	paths = append(paths, "/etc/palaver/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Palaver configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Persona  PersonaConfig  `yaml:"persona"`
	Model    ModelConfig    `yaml:"model"`
	History  HistoryConfig  `yaml:"history"`
	Tools    ToolsConfig    `yaml:"tools"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// TelegramConfig defines the messaging platform connection.
type TelegramConfig struct {
	// Token is the bot token from @BotFather. Environment variables in the
	// config file are expanded, so "${TELEGRAM_BOT_TOKEN}" works.
	Token string `yaml:"token"`
	// PollTimeoutSec is the long-poll timeout in seconds (default 30).
	PollTimeoutSec int `yaml:"poll_timeout_sec"`
}

// PersonaConfig defines the bot's identity in prompts.
type PersonaConfig struct {
	// Name is the persona label used for the assistant's turns. It should
	// match the bot's platform username so participants address it naturally.
	Name string `yaml:"name"`
}

// ModelConfig defines the completion backend and sampling parameters.
type ModelConfig struct {
	// Engine selects the wire protocol: llamacpp, kobold, or openai.
	Engine string `yaml:"engine"`
	// APIURL is the completion endpoint.
	APIURL string `yaml:"api_url"`
	// Name is the model identifier, passed through to engines that need it.
	Name string `yaml:"name"`
	// APIKey is sent as a bearer token for engines that require one.
	APIKey string `yaml:"api_key"`

	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`

	// MaxTokens is the prompt token budget for the whole context window.
	MaxTokens int `yaml:"max_tokens"`
	// MaxLength is the requested maximum new tokens per completion.
	MaxLength int `yaml:"max_length"`
	// MaxTries bounds completion retries within one response cycle.
	MaxTries int `yaml:"max_tries"`
	// MaxToolDepth bounds tool-call round-trips within one response cycle,
	// counted independently of MaxTries.
	MaxToolDepth int `yaml:"max_tool_depth"`
	// RequestTimeoutSec caps one completion HTTP request (default 300).
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// HistoryConfig defines chat history persistence.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty defaults to
	// <data_dir>/palaver.db.
	Path string `yaml:"path"`
	// BatchSize is how many messages the prompt builder pulls per store
	// query while filling the budget (default 20).
	BatchSize int `yaml:"batch_size"`
	// MaxMessages caps retained rows per conversation (default 500,
	// 0 = unlimited).
	MaxMessages int `yaml:"max_messages"`
}

// ToolsConfig toggles the built-in tool catalogue.
type ToolsConfig struct {
	// Enabled turns the tool catalogue on. When false the preamble omits
	// the catalogue and tool markup in output is stripped without execution.
	Enabled bool `yaml:"enabled"`
	// GitHubToken authenticates the github_repo tool. Empty runs against
	// the unauthenticated rate limits.
	GitHubToken string `yaml:"github_token"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Model.APIURL == "" {
		return fmt.Errorf("model.api_url is required")
	}
	switch c.Model.Engine {
	case "llamacpp", "kobold", "openai":
	default:
		return fmt.Errorf("unknown model.engine %q (valid: llamacpp, kobold, openai)", c.Model.Engine)
	}
	return nil
}

// HistoryPath resolves the SQLite file location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(expandHome(dir), "palaver.db")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeoutSec: 30,
		},
		Persona: PersonaConfig{
			Name: "palaver_bot",
		},
		Model: ModelConfig{
			Engine:            "llamacpp",
			Name:              "OpenHermes 2.5 (7B)",
			Temperature:       0.7,
			TopP:              0.9,
			TopK:              40,
			MaxTokens:         16384,
			MaxLength:         750,
			MaxTries:          2,
			MaxToolDepth:      3,
			RequestTimeoutSec: 300,
		},
		History: HistoryConfig{
			BatchSize:   20,
			MaxMessages: 500,
		},
		Tools: ToolsConfig{
			Enabled: true,
		},
	}
}
