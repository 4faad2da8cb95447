package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

const envPrefix = "MINDDOCK_"

// RAGConfig controls retrieval-augmentation.
type RAGConfig struct {
	Enabled         bool `yaml:"enabled"`
	DefaultTopK     int  `yaml:"default_top_k"`
	LocalVectorSize int  `yaml:"local_vector_size"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI embeddings provider.
type OpenAIEmbedderConfig struct {
	APIKey             string `yaml:"api_key,omitempty"`
	BaseURL            string `yaml:"base_url,omitempty"`
	EmbeddingModel     string `yaml:"embedding_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	TimeoutSecs        int    `yaml:"timeout_secs"`
	MaxRetries         int    `yaml:"max_retries"`
}

// OllamaEmbedderConfig holds configuration for an Ollama embeddings server.
type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects the remote embedding provider. The local hashing
// backend needs no configuration beyond RAGConfig.LocalVectorSize.
type EmbedderConfig struct {
	Provider string               `yaml:"provider"`
	OpenAI   OpenAIEmbedderConfig `yaml:"openai"`
	Ollama   OllamaEmbedderConfig `yaml:"ollama"`
}

// HasCredential reports whether the selected remote provider is usable.
func (c EmbedderConfig) HasCredential() bool {
	switch c.Provider {
	case "ollama":
		return c.Ollama.BaseURL != ""
	default:
		return c.OpenAI.APIKey != ""
	}
}

// AssistantConfig configures grounded replies.
type AssistantConfig struct {
	Provider        string `yaml:"provider"`
	OpenAIModel     string `yaml:"openai_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty"`
	AnthropicModel  string `yaml:"anthropic_model"`
	MaxSnippets     int    `yaml:"max_snippets"`
	MaxTokens       int    `yaml:"max_tokens"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	RAG       RAGConfig       `yaml:"rag"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Assistant AssistantConfig `yaml:"assistant"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	return cfg, cfg.Validate()
}

// LoadDefault loads .env, then tries ./config.yaml, then ~/.config/minddock/config.yaml.
// If neither exists, it writes defaults to ~/.config/minddock/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	_ = godotenv.Load()

	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
// Secrets are never written; they come from the environment.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out := *cfg
	out.Embedder.OpenAI.APIKey = ""
	out.Assistant.AnthropicAPIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks numeric bounds and provider names.
func (c *AppConfig) Validate() error {
	if c.RAG.DefaultTopK <= 0 {
		return fmt.Errorf("%w: rag.default_top_k must be positive", ErrInvalidConfig)
	}
	if c.RAG.LocalVectorSize <= 0 {
		return fmt.Errorf("%w: rag.local_vector_size must be positive", ErrInvalidConfig)
	}
	switch c.Embedder.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, c.Embedder.Provider)
	}
	switch c.Assistant.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("%w: unknown assistant provider %q", ErrInvalidConfig, c.Assistant.Provider)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "minddock", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		RAG: RAGConfig{Enabled: true, DefaultTopK: 3, LocalVectorSize: 512},
		Embedder: EmbedderConfig{
			Provider: "openai",
			OpenAI: OpenAIEmbedderConfig{
				EmbeddingModel:     "text-embedding-3-small",
				TranscriptionModel: "whisper-1",
				TimeoutSecs:        30,
				MaxRetries:         2,
			},
			Ollama: OllamaEmbedderConfig{Model: "nomic-embed-text", TimeoutSecs: 30},
		},
		Assistant: AssistantConfig{
			Provider:       "openai",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
			MaxSnippets:    3,
			MaxTokens:      1024,
		},
		Database: DatabaseConfig{Path: "minddock.db"},
		Log:      LogConfig{Level: "info"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "openai"
	}
	if cfg.Embedder.OpenAI.EmbeddingModel == "" {
		cfg.Embedder.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = 30
	}
	if cfg.Embedder.Ollama.Model == "" {
		cfg.Embedder.Ollama.Model = "nomic-embed-text"
	}
	if cfg.Embedder.Ollama.TimeoutSecs == 0 {
		cfg.Embedder.Ollama.TimeoutSecs = 30
	}
	if cfg.Assistant.Provider == "" {
		cfg.Assistant.Provider = "openai"
	}
	if cfg.Assistant.MaxSnippets <= 0 {
		cfg.Assistant.MaxSnippets = 3
	}
	if cfg.Assistant.MaxTokens <= 0 {
		cfg.Assistant.MaxTokens = 1024
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "minddock.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnv(cfg *AppConfig) {
	envBool("RAG_ENABLED", &cfg.RAG.Enabled)
	envInt("RAG_DEFAULT_TOP_K", &cfg.RAG.DefaultTopK)
	envInt("RAG_LOCAL_VECTOR_SIZE", &cfg.RAG.LocalVectorSize)

	envString("EMBEDDER_PROVIDER", &cfg.Embedder.Provider)
	envString("OPENAI_API_KEY", &cfg.Embedder.OpenAI.APIKey)
	if cfg.Embedder.OpenAI.APIKey == "" {
		cfg.Embedder.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	envString("OPENAI_BASE_URL", &cfg.Embedder.OpenAI.BaseURL)
	envString("OPENAI_EMBEDDING_MODEL", &cfg.Embedder.OpenAI.EmbeddingModel)
	envString("OPENAI_TRANSCRIPTION_MODEL", &cfg.Embedder.OpenAI.TranscriptionModel)
	envString("OLLAMA_BASE_URL", &cfg.Embedder.Ollama.BaseURL)
	envString("OLLAMA_MODEL", &cfg.Embedder.Ollama.Model)

	envString("ASSISTANT_PROVIDER", &cfg.Assistant.Provider)
	envString("OPENAI_MODEL", &cfg.Assistant.OpenAIModel)
	envString("ANTHROPIC_API_KEY", &cfg.Assistant.AnthropicAPIKey)
	if cfg.Assistant.AnthropicAPIKey == "" {
		cfg.Assistant.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	envString("ANTHROPIC_MODEL", &cfg.Assistant.AnthropicModel)

	envString("DATABASE_PATH", &cfg.Database.Path)
	envString("LOG_LEVEL", &cfg.Log.Level)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
