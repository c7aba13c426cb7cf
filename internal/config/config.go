package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ambedkargpt/internal/domain"
)

// CorpusConfig locates the source text.
type CorpusConfig struct {
	Path    string `yaml:"path"`
	Subject string `yaml:"subject"`
}

// ChunkerConfig configures how the corpus is split into chunks.
type ChunkerConfig struct {
	Size      int    `yaml:"chunk_size"`
	Overlap   int    `yaml:"chunk_overlap"`
	Separator string `yaml:"separator"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains gRPC connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	UseTLS      bool   `yaml:"use_tls"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig controls top-k retrieval.
type RetrievalConfig struct {
	K        int     `yaml:"k"`
	MinScore float64 `yaml:"min_score"`
}

// PromptConfig bounds the context handed to the generator.
type PromptConfig struct {
	MaxContextChars int `yaml:"max_context_chars"`
}

// GeneratorConfig configures the OpenAI-compatible chat completion backend.
type GeneratorConfig struct {
	Type        string   `yaml:"type"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Stop        []string `yaml:"stop,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	AutoInit    bool     `yaml:"auto_init"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus      CorpusConfig      `yaml:"corpus"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ambedkargpt/config.yaml.
// If neither exists, it writes defaults to ~/.config/ambedkargpt/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
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
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the fields the pipeline relies on.
func (c *AppConfig) Validate() error {
	var problems []error
	if c.Chunker.Size <= 0 {
		problems = append(problems, fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		problems = append(problems, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.Overlap))
	}
	if c.Retrieval.K <= 0 {
		problems = append(problems, fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K))
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 1 {
		problems = append(problems, fmt.Errorf("generator.temperature must be in [0, 1], got %.2f", c.Generator.Temperature))
	}
	if c.Prompt.MaxContextChars < 0 {
		problems = append(problems, fmt.Errorf("prompt.max_context_chars must not be negative, got %d", c.Prompt.MaxContextChars))
	}
	if c.Corpus.Path == "" {
		problems = append(problems, errors.New("corpus.path is required"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(problems...))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ambedkargpt", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Corpus:      CorpusConfig{Path: "speech.txt", Subject: "Dr. B.R. Ambedkar's speech"},
		Chunker:     ChunkerConfig{Size: 200, Overlap: 50, Separator: ". "},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retrieval:   RetrievalConfig{K: 3},
		Prompt:      PromptConfig{MaxContextChars: 4000},
		Generator: GeneratorConfig{
			Type:        "openai",
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "mistral",
			Temperature: 0.7,
			TimeoutSecs: 120,
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Server:     ServerConfig{Addr: ":8000", CORSOrigins: []string{"*"}},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Host == "" {
			cfg.VectorStore.Qdrant.Host = "localhost"
		}
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ambedkar_speech"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 120
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}
