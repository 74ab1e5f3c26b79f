// Package config provides configuration types and loading for kortex.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Providers, Memory, Tools, Telemetry, Audit, Server.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Memory    MemoryConfig    `json:"memory"`
	Tools     ToolsConfig     `json:"tools"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Audit     AuditConfig     `json:"audit"`
	Server    ServerConfig    `json:"server"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings. Relative skill paths are
// resolved against Root.
type PathsConfig struct {
	Root         string `json:"root" envconfig:"ROOT"`
	SkillsDir    string `json:"skillsDir" envconfig:"SKILLS_DIR"`
	SkillsIndex  string `json:"skillsIndex" envconfig:"SKILLS_INDEX"`
	SkillsConfig string `json:"skillsConfig" envconfig:"SKILLS_CONFIG"`
	DataDir      string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model and agent-loop settings.
type ModelConfig struct {
	Provider        string  `json:"provider" envconfig:"PROVIDER"`
	Name            string  `json:"name" envconfig:"MODEL"`
	ClassifierModel string  `json:"classifierModel" envconfig:"CLASSIFIER_MODEL"`
	MaxSteps        int     `json:"maxSteps" envconfig:"MAX_STEPS"`
	MaxTokens       int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature     float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ---------------------------------------------------------------------------
// Providers – LLM API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	Groq       ProviderConfig `json:"groq"`
	Gemini     ProviderConfig `json:"gemini"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	VLLM       ProviderConfig `json:"vllm"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Memory – persistent memory store
// ---------------------------------------------------------------------------

// MemoryConfig selects and configures the memory backend.
type MemoryConfig struct {
	Backend       string `json:"backend" envconfig:"BACKEND"` // "sqlite" or "qdrant"
	DBPath        string `json:"dbPath" envconfig:"DB_PATH"`
	QdrantAddr    string `json:"qdrantAddr" envconfig:"QDRANT_ADDR"`
	Collection    string `json:"collection" envconfig:"COLLECTION"`
	Dimension     int    `json:"dimension" envconfig:"DIMENSION"` // 0 = embed provider default
	EmbedProvider string `json:"embedProvider" envconfig:"EMBED_PROVIDER"`
	EmbedModel    string `json:"embedModel" envconfig:"EMBED_MODEL"` // empty = embed provider default
}

// ---------------------------------------------------------------------------
// Tools – tool-specific behaviour
// ---------------------------------------------------------------------------

// ToolsConfig contains tool-specific settings.
type ToolsConfig struct {
	Exec          ExecToolConfig `json:"exec"`
	WritableGlobs []string       `json:"writableGlobs" envconfig:"WRITABLE_GLOBS"`
}

// ExecToolConfig contains shell execution tool settings.
type ExecToolConfig struct {
	Timeout        time.Duration `json:"timeout" envconfig:"TIMEOUT"`
	MaxOutputBytes int           `json:"maxOutputBytes" envconfig:"MAX_OUTPUT_BYTES"`
	DenyExtra      []string      `json:"denyExtra" envconfig:"DENY_EXTRA"`
}

// ---------------------------------------------------------------------------
// Telemetry – logs, traces, metrics
// ---------------------------------------------------------------------------

// TelemetryConfig configures slog and OpenTelemetry.
type TelemetryConfig struct {
	Exporter  string `json:"exporter" envconfig:"EXPORTER"` // "none", "stdout" or "otlp"
	Endpoint  string `json:"endpoint" envconfig:"ENDPOINT"`
	Insecure  bool   `json:"insecure" envconfig:"INSECURE"`
	LogLevel  string `json:"logLevel" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"logFormat" envconfig:"LOG_FORMAT"` // "text" or "json"
}

// ---------------------------------------------------------------------------
// Audit – Kafka execution feed
// ---------------------------------------------------------------------------

// AuditConfig configures the Kafka execution feed.
type AuditConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// ---------------------------------------------------------------------------
// Server – HTTP API
// ---------------------------------------------------------------------------

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Host      string `json:"host" envconfig:"HOST"`
	Port      int    `json:"port" envconfig:"PORT"`
	AuthToken string `json:"authToken,omitempty" envconfig:"AUTH_TOKEN"` // Bearer token; empty disables auth
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Root:         ".",
			SkillsDir:    "skills",
			SkillsIndex:  "skills_index.json",
			SkillsConfig: "skills_config.json",
			DataDir:      "~/.kortex",
		},
		Model: ModelConfig{
			Provider:    "groq",
			Name:        "llama-3.3-70b-versatile",
			MaxSteps:    5,
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Memory: MemoryConfig{
			Backend:       "sqlite",
			DBPath:        "~/.kortex/memory.db",
			QdrantAddr:    "localhost:6334",
			Collection:    "kortex_memories",
			EmbedProvider: "gemini",
		},
		Tools: ToolsConfig{
			Exec: ExecToolConfig{
				Timeout:        30 * time.Second,
				MaxOutputBytes: 1 << 20,
			},
			WritableGlobs: []string{"**"},
		},
		Telemetry: TelemetryConfig{
			Exporter:  "none",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Audit: AuditConfig{
			Topic: "kortex.executions",
		},
		Server: ServerConfig{
			Host: "127.0.0.1", // Secure default
			Port: 18800,
		},
	}
}
