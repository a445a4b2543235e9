package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pdfrag/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// GoogleEmbedderConfig holds configuration for the Gemini embedder.
type GoogleEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type       string                `yaml:"type"`
	MaxRetries int                   `yaml:"max_retries"`
	OpenAI     *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Google     *GoogleEmbedderConfig `yaml:"google,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks. Sizes are in
// characters for the character chunker and sentences for the sentence one.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig configures the local index and any remote ones. Remote
// indexes are queried after the local one in the order qdrant, pgvector.
type VectorStoreConfig struct {
	Metric   string          `yaml:"metric"`
	TopK     int             `yaml:"top_k"`
	Snapshot string          `yaml:"snapshot"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PGVector *PGVectorConfig `yaml:"pgvector,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKeyEnv  string `yaml:"api_key_env"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	ReadOnly   bool   `yaml:"read_only"`
}

// PGVectorConfig contains connection details for a pgvector table.
type PGVectorConfig struct {
	DSNEnv   string `yaml:"dsn_env"`
	Table    string `yaml:"table"`
	ReadOnly bool   `yaml:"read_only"`
}

// ResponderConfig selects the chat model that writes answers.
type ResponderConfig struct {
	Type            string   `yaml:"type"`
	Model           string   `yaml:"model"`
	BaseURL         string   `yaml:"base_url,omitempty"`
	APIKeyEnv       string   `yaml:"api_key_env"`
	Temperature     *float32 `yaml:"temperature,omitempty"`
	MaxTokens       int      `yaml:"max_tokens,omitempty"`
	MaxHistoryTurns int      `yaml:"max_history_turns"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// HistoryConfig selects where conversations are kept between runs.
type HistoryConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// LogConfig controls log output.
type LogConfig struct {
	File   string `yaml:"file"`
	JSON   bool   `yaml:"json"`
	Pretty bool   `yaml:"pretty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Responder   ResponderConfig   `yaml:"responder"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	History     HistoryConfig     `yaml:"history"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfrag/config.yaml and returns them.
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
	cfg := Default()
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "openai", MaxRetries: 3, OpenAI: &OpenAIEmbedderConfig{}},
		Chunker:     ChunkerConfig{Type: "character", ChunkSize: 1000, ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{Metric: "cosine", TopK: 4, Snapshot: "pdf_knowledge_base.gob"},
		Responder:   ResponderConfig{Type: "openai"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		History:     HistoryConfig{Type: "sqlite"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "character"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
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
			cfg.Embedder.OpenAI.BatchSize = 64
		}
	}
	if cfg.Embedder.Type == "google" {
		if cfg.Embedder.Google == nil {
			cfg.Embedder.Google = &GoogleEmbedderConfig{}
		}
		if cfg.Embedder.Google.APIKeyEnv == "" {
			cfg.Embedder.Google.APIKeyEnv = "GOOGLE_API_KEY"
		}
		if cfg.Embedder.Google.Model == "" {
			cfg.Embedder.Google.Model = "text-embedding-004"
		}
	}

	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.VectorStore.TopK == 0 {
		cfg.VectorStore.TopK = 4
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Host == "" {
			q.Host = "localhost"
		}
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.Collection == "" {
			q.Collection = "pdf_knowledge_base"
		}
	}
	if p := cfg.VectorStore.PGVector; p != nil {
		if p.DSNEnv == "" {
			p.DSNEnv = "PGVECTOR_DSN"
		}
		if p.Table == "" {
			p.Table = "pdf_chunks"
		}
	}

	if cfg.Responder.Type == "" {
		cfg.Responder.Type = "openai"
	}
	if cfg.Responder.APIKeyEnv == "" {
		switch cfg.Responder.Type {
		case "openai":
			cfg.Responder.APIKeyEnv = "OPENAI_API_KEY"
		case "google":
			cfg.Responder.APIKeyEnv = "GOOGLE_API_KEY"
		case "anthropic":
			cfg.Responder.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if cfg.Responder.Model == "" {
		switch cfg.Responder.Type {
		case "openai":
			cfg.Responder.Model = "gpt-4o-mini"
		case "google":
			cfg.Responder.Model = "gemini-1.5-flash"
		case "anthropic":
			cfg.Responder.Model = "claude-3-5-haiku-latest"
		}
	}
	if cfg.Responder.MaxHistoryTurns == 0 {
		cfg.Responder.MaxHistoryTurns = 10
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.History.Type == "" {
		cfg.History.Type = "sqlite"
	}
	if cfg.History.Path == "" && cfg.History.Type == "sqlite" {
		cfg.History.Path = "pdfrag_history.db"
	}
}

// Validate reports unusable settings as domain.ErrInvalidConfiguration.
func (c *AppConfig) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidConfiguration}, args...)...))
	}

	switch c.Chunker.Type {
	case "character":
		if c.Chunker.ChunkSize <= 0 {
			invalid("chunk_size must be positive, got %d", c.Chunker.ChunkSize)
		}
		if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
			invalid("chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.ChunkOverlap)
		}
	case "sentence":
		if c.Chunker.OverlapSentences < 0 || c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
			invalid("overlap_sentences must be in [0, sentences_per_chunk), got %d", c.Chunker.OverlapSentences)
		}
	default:
		invalid("unknown chunker %q", c.Chunker.Type)
	}

	switch c.Embedder.Type {
	case "openai", "google", "tfidf":
	default:
		invalid("unknown embedder %q", c.Embedder.Type)
	}
	if c.Embedder.MaxRetries < 0 {
		invalid("max_retries must not be negative")
	}

	switch c.VectorStore.Metric {
	case "cosine", "inner_product":
	default:
		invalid("unknown metric %q", c.VectorStore.Metric)
	}
	if c.VectorStore.TopK < 0 {
		invalid("top_k must not be negative")
	}

	switch c.Responder.Type {
	case "openai", "google", "anthropic", "extractive":
	default:
		invalid("unknown responder %q", c.Responder.Type)
	}

	switch c.History.Type {
	case "sqlite", "memory":
	default:
		invalid("unknown history store %q", c.History.Type)
	}
	return errors.Join(errs...)
}
