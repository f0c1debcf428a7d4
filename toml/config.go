// Package toml loads ragchat configuration from TOML files.
package toml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fwojciec/ragchat"
	"github.com/pelletier/go-toml/v2"
)

// ConfigEnv names the environment variable that overrides the default
// configuration path.
const ConfigEnv = "RAGCHAT_CONFIG"

// Providers and vector store backends.
const (
	ProviderOpenAI     = "openai"
	ProviderXinference = "xinference"
	ProviderGemini     = "gemini"

	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMilvus = "milvus"
)

// Config is the complete ragchat configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Embedding ProviderConfig  `toml:"embedding"`
	Chat      ProviderConfig  `toml:"chat"`
	Splitter  SplitterConfig  `toml:"splitter"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Query     QueryConfig     `toml:"query"`
	Server    ServerConfig    `toml:"server"`
}

// StoreConfig selects the vector store.
type StoreConfig struct {
	Backend string `toml:"backend"`

	// Path is the SQLite database file or the badger directory.
	Path string `toml:"path"`

	EmbeddingCollection string `toml:"embedding_collection"`
	MetadataCollection  string `toml:"metadata_collection"`
}

// ProviderConfig selects an embedding or chat model provider.
type ProviderConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// SplitterConfig controls how documents are split into fragments.
type SplitterConfig struct {
	ChunkSize     int      `toml:"chunk_size"`
	ChunkOverlap  int      `toml:"chunk_overlap"`
	SplitByTokens bool     `toml:"split_by_tokens"`
	Separators    []string `toml:"separators,omitempty"`

	// TokenModel selects the tokenizer when splitting by tokens.
	TokenModel string `toml:"token_model,omitempty"`
}

// RetrievalConfig controls embedding and search.
type RetrievalConfig struct {
	NResults    int `toml:"n_results"`
	BatchSize   int `toml:"batch_size"`
	Concurrency int `toml:"concurrency"`

	// RequestsPerSecond paces embedding calls. Zero disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// QueryConfig configures query generation.
type QueryConfig struct {
	// Schema is a BioCypher YAML, SQL DDL, or table JSON file.
	Schema   string `toml:"schema,omitempty"`
	Language string `toml:"language"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:             BackendSQLite,
			Path:                defaultStorePath(),
			EmbeddingCollection: ragchat.DefaultEmbeddingCollection,
			MetadataCollection:  ragchat.DefaultMetadataCollection,
		},
		Embedding: ProviderConfig{Provider: ProviderOpenAI},
		Chat:      ProviderConfig{Provider: ProviderOpenAI},
		Splitter: SplitterConfig{
			ChunkSize:    ragchat.DefaultChunkSize,
			ChunkOverlap: ragchat.DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			NResults:    3,
			BatchSize:   64,
			Concurrency: 4,
		},
		Query:  QueryConfig{Language: "Cypher"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// DefaultPath returns $RAGCHAT_CONFIG, or ~/.ragchat/config.toml.
func DefaultPath() string {
	if path := os.Getenv(ConfigEnv); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".ragchat", "config.toml")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ragchat.db"
	}
	return filepath.Join(home, ".ragchat", "ragchat.db")
}

// Load reads the configuration at path, or at DefaultPath when path is
// empty. A missing file yields DefaultConfig. Values not set in the file
// keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a configuration over the defaults. ${VAR} references are
// expanded from the environment before parsing and unknown keys are
// rejected. API keys not set in the file are taken from OPENAI_API_KEY or
// GEMINI_API_KEY according to the provider.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	expanded := os.Expand(string(data), os.Getenv)

	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, ragchat.Errorf(ragchat.EINVALID, "invalid config at line %d, column %d: %s", row, col, derr.Error())
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, ragchat.Errorf(ragchat.EINVALID, "unknown config key: %s", serr.String())
		}
		return nil, ragchat.Errorf(ragchat.EINVALID, "invalid config: %s", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for _, p := range []*ProviderConfig{&c.Embedding, &c.Chat} {
		if p.APIKey != "" {
			continue
		}
		switch p.Provider {
		case ProviderOpenAI:
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			p.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger, BackendMilvus:
	default:
		return ragchat.Errorf(ragchat.EINVALID, "unknown store backend %q", c.Store.Backend)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderXinference, ProviderGemini:
	default:
		return ragchat.Errorf(ragchat.EINVALID, "unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == ProviderXinference && c.Embedding.BaseURL == "" {
		return ragchat.Errorf(ragchat.EINVALID, "xinference embedding requires base_url")
	}
	switch c.Chat.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return ragchat.Errorf(ragchat.EINVALID, "unknown chat provider %q", c.Chat.Provider)
	}
	if c.Splitter.ChunkSize <= 0 {
		return ragchat.Errorf(ragchat.EINVALID, "chunk_size must be positive")
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return ragchat.Errorf(ragchat.EINVALID, "chunk_overlap must be between 0 and chunk_size")
	}
	if c.Retrieval.RequestsPerSecond < 0 {
		return ragchat.Errorf(ragchat.EINVALID, "requests_per_second must not be negative")
	}
	return nil
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Splitter.Separators = append([]string(nil), c.Splitter.Separators...)
	for _, p := range []*ProviderConfig{&out.Embedding, &out.Chat} {
		if p.APIKey != "" {
			p.APIKey = "********"
		}
	}
	return &out
}

// Encode writes the configuration as TOML.
func Encode(w io.Writer, c *Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}
