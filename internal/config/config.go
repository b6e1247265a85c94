// Package config loads Archon's runtime configuration, layering defaults,
// an optional YAML file, and environment variable overrides in increasing
// order of precedence, matching the teacher's config-layering convention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is Archon's complete runtime configuration, covering the items
// enumerated in spec.md's Configuration table.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	VectorDB   VectorDBConfig   `yaml:"vector_db" json:"vector_db"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	MCP        MCPConfig        `yaml:"mcp" json:"mcp"`
	Security   SecurityConfig   `yaml:"security" json:"security"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	LogLevel       string   `yaml:"log_level" json:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AuthToken      string   `yaml:"-" json:"-"`
}

// VectorDBConfig selects and configures the VectorStore backend.
type VectorDBConfig struct {
	Backend string `yaml:"backend" json:"backend"` // "sqlite" or "hnsw"
	Path    string `yaml:"path" json:"path"`
}

// EmbeddingsConfig configures the EmbeddingProvider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // "ollama", "openai", "static"
	Model      string `yaml:"model" json:"model"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"` // clamped [20,200]
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIKey  string `yaml:"-" json:"-"`
}

// LLMConfig configures the LLMProvider used for contextual prefixes, source
// summaries, and RAG agent completions.
type LLMConfig struct {
	Provider         string `yaml:"provider" json:"provider"` // "anthropic", "bedrock", "ollama"
	AgentModel       string `yaml:"rag_agent_model" json:"rag_agent_model"`
	ContextualModel  string `yaml:"contextual_model" json:"contextual_model"`
	AnthropicKey     string `yaml:"-" json:"-"`
	BedrockRegion    string `yaml:"bedrock_region" json:"bedrock_region"`
	OllamaHost       string `yaml:"ollama_host" json:"ollama_host"`
	ContextualPrefix bool   `yaml:"contextual_prefix_enabled" json:"contextual_prefix_enabled"`
}

// CrawlConfig bounds crawl concurrency and result truncation.
type CrawlConfig struct {
	ConcurrentLimit int `yaml:"concurrent_crawl_limit" json:"concurrent_crawl_limit"`
	MaxPageChars    int `yaml:"max_page_chars" json:"max_page_chars"`
}

// MCPConfig configures the ToolBridge's JSON-RPC session lifecycle.
type MCPConfig struct {
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds" json:"session_timeout_seconds"`
}

// SecurityConfig holds the credential-at-rest encryption key. Archon fails
// to start without one: provider credentials are stored encrypted.
type SecurityConfig struct {
	EncryptionKey string `yaml:"-" json:"-"`
}

// NewConfig returns a Config populated with defaults matching spec.md's
// Configuration table.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			LogLevel:       "info",
			AllowedOrigins: []string{},
		},
		VectorDB: VectorDBConfig{
			Backend: "sqlite",
			Path:    "archon.db",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			BatchSize: 100,
		},
		LLM: LLMConfig{
			Provider:         "anthropic",
			AgentModel:       "claude-3-5-sonnet-20241022",
			ContextualModel:  "claude-3-5-haiku-20241022",
			ContextualPrefix: true,
		},
		Crawl: CrawlConfig{
			ConcurrentLimit: 3,
			MaxPageChars:    20000,
		},
		MCP: MCPConfig{
			SessionTimeoutSeconds: 3600,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at
// <dir>/archon.yaml, and environment variable overrides, in that order of
// increasing precedence.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	configPath := filepath.Join(dir, "archon.yaml")
	if fileExists(configPath) {
		if err := cfg.loadYAML(configPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnvOverrides reads the environment variable names spec.md's
// Configuration table enumerates. Unset variables leave the current value
// (default or file-loaded) untouched.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}

	if v := os.Getenv("VECTOR_DB_BACKEND"); v != "" {
		c.VectorDB.Backend = v
	}
	if v := os.Getenv("VECTOR_DB_PATH"); v != "" {
		c.VectorDB.Path = v
	}

	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embeddings.BatchSize = clamp(n, 20, 200)
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIKey = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("RAG_AGENT_MODEL"); v != "" {
		c.LLM.AgentModel = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicKey = v
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		c.LLM.BedrockRegion = v
	}

	if v := os.Getenv("CONCURRENT_CRAWL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.ConcurrentLimit = n
		}
	}
	if v := os.Getenv("MAX_PAGE_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxPageChars = n
		}
	}

	if v := os.Getenv("MCP_SESSION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MCP.SessionTimeoutSeconds = n
		}
	}

	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
}

// Validate fails loudly on configuration that would otherwise surface as a
// confusing runtime error deep inside a provider call.
func (c *Config) Validate() error {
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for credential storage")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" && c.Server.AuthToken != "" {
			return fmt.Errorf("ALLOWED_ORIGINS must never be \"*\" while an auth token is configured")
		}
	}
	if c.Embeddings.BatchSize < 20 || c.Embeddings.BatchSize > 200 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be in [20,200], got %d", c.Embeddings.BatchSize)
	}
	if c.VectorDB.Backend != "sqlite" && c.VectorDB.Backend != "hnsw" {
		return fmt.Errorf("unknown vector_db backend %q", c.VectorDB.Backend)
	}
	return nil
}

// WriteYAML writes the configuration (excluding secret fields, which are
// tagged yaml:"-") to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
