package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ModeInteractive = "interactive"
	ModeAsync       = "async"
)

type Config struct {
	Env             string        `yaml:"env"`
	Port            string        `yaml:"port"`
	DataDir         string        `yaml:"data_dir"`
	LogLevel        string        `yaml:"log_level"`
	HITLMode        string        `yaml:"hitl_mode"`
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
	StageTimeout    time.Duration `yaml:"stage_timeout"`
	Concurrency     int           `yaml:"concurrency"`

	Artifact  ArtifactConfig  `yaml:"artifact"`
	LLM       LLMConfig       `yaml:"llm"`
	MCP       MCPConfig       `yaml:"mcp"`
	Risk      RiskConfig      `yaml:"risk"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LLMConfig struct {
	// Provider is gemini, anthropic or fake.
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	GeminiKey    string  `yaml:"gemini_api_key"`
	AnthropicKey string  `yaml:"anthropic_api_key"`
	RPS          float64 `yaml:"rps"`
	Burst        int     `yaml:"burst"`
	MaxAttempts  int     `yaml:"max_attempts"`
}

type MCPConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RiskConfig struct {
	DSN     string `yaml:"dsn"`
	LogPath string `yaml:"log_path"`
}

type RetrievalConfig struct {
	DSN       string        `yaml:"dsn"`
	ChunksDir string        `yaml:"chunks_dir"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func Default() *Config {
	return &Config{
		Env:             "local",
		Port:            ":8081",
		DataDir:         "data",
		LogLevel:        "info",
		HITLMode:        ModeAsync,
		ApprovalTimeout: 30 * time.Minute,
		StageTimeout:    60 * time.Second,
		Concurrency:     4,
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			MaxAttempts: 3,
		},
		MCP: MCPConfig{Timeout: 60 * time.Second},
		Retrieval: RetrievalConfig{
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
	}
}

// Load reads .env, an optional YAML file and the process environment, in
// that order of increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if strings.TrimSpace(path) != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = firstNonEmpty(env("APP_ENV"), cfg.Env)
	if p := env("PORT"); p != "" {
		if !strings.HasPrefix(p, ":") {
			p = ":" + p
		}
		cfg.Port = p
	}
	cfg.DataDir = firstNonEmpty(env("DATA_DIR"), cfg.DataDir)
	cfg.LogLevel = firstNonEmpty(env("LOG_LEVEL"), cfg.LogLevel)
	cfg.HITLMode = strings.ToLower(firstNonEmpty(env("HITL_MODE"), cfg.HITLMode))
	cfg.ApprovalTimeout = envDuration("APPROVAL_TIMEOUT", cfg.ApprovalTimeout)
	cfg.StageTimeout = envDuration("STAGE_TIMEOUT", cfg.StageTimeout)
	cfg.Concurrency = envInt("CONCURRENCY", cfg.Concurrency)

	applyArtifactEnv(cfg)

	cfg.LLM.Provider = strings.ToLower(firstNonEmpty(env("LLM_PROVIDER"), cfg.LLM.Provider))
	cfg.LLM.Model = firstNonEmpty(env("LLM_MODEL"), cfg.LLM.Model)
	cfg.LLM.GeminiKey = firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY"), cfg.LLM.GeminiKey)
	cfg.LLM.AnthropicKey = firstNonEmpty(env("ANTHROPIC_API_KEY"), cfg.LLM.AnthropicKey)
	cfg.LLM.RPS = envFloat("LLM_RPS", cfg.LLM.RPS)
	cfg.LLM.Burst = envInt("LLM_BURST", cfg.LLM.Burst)
	cfg.LLM.MaxAttempts = envInt("LLM_MAX_ATTEMPTS", cfg.LLM.MaxAttempts)

	cfg.MCP.URL = firstNonEmpty(env("MCP_SERVER_URL"), cfg.MCP.URL)
	cfg.MCP.Timeout = envDuration("MCP_TIMEOUT", cfg.MCP.Timeout)

	cfg.Risk.DSN = firstNonEmpty(env("RISK_DSN"), cfg.Risk.DSN)
	cfg.Risk.LogPath = firstNonEmpty(env("RISK_LOG_PATH"), cfg.Risk.LogPath)

	cfg.Retrieval.DSN = firstNonEmpty(env("RETRIEVAL_DSN"), cfg.Retrieval.DSN)
	cfg.Retrieval.ChunksDir = firstNonEmpty(env("RETRIEVAL_CHUNKS_DIR"), cfg.Retrieval.ChunksDir)
	cfg.Retrieval.CacheTTL = envDuration("RETRIEVAL_CACHE_TTL", cfg.Retrieval.CacheTTL)

	cfg.Tracing.Endpoint = firstNonEmpty(env("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.Tracing.Endpoint)
}

func applyArtifactEnv(cfg *Config) {
	a := &cfg.Artifact
	local := strings.EqualFold(cfg.Env, "local")
	if local {
		a.Endpoint = firstNonEmpty(env("ARTIFACT_MINIO_ENDPOINT"), a.Endpoint)
	} else {
		a.Endpoint = firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), a.Endpoint)
	}
	a.Region = firstNonEmpty(env("ARTIFACT_S3_REGION"), a.Region, "us-east-1")
	a.AccessKey = firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER"), a.AccessKey)
	a.SecretKey = firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD"), a.SecretKey)
	a.Bucket = firstNonEmpty(env("ARTIFACT_S3_BUCKET"), a.Bucket, "ddgraph-dashboards")
	if raw := env("ARTIFACT_S3_USE_SSL"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			a.UseSSL = v
		}
	} else if !local && a.Endpoint != "" {
		a.UseSSL = true
	}
	a.Enabled = a.Endpoint != ""
}

func (c *Config) Validate() error {
	switch c.HITLMode {
	case ModeInteractive, ModeAsync:
	default:
		return &Error{Field: "hitl_mode", Message: fmt.Sprintf("must be %q or %q, got %q", ModeInteractive, ModeAsync, c.HITLMode)}
	}
	switch c.LLM.Provider {
	case "gemini", "anthropic", "fake":
	default:
		return &Error{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return &Error{Field: "data_dir", Message: "is required"}
	}
	if c.Concurrency < 1 {
		return &Error{Field: "concurrency", Message: "must be at least 1"}
	}
	if c.StageTimeout <= 0 {
		return &Error{Field: "stage_timeout", Message: "must be positive"}
	}
	if c.Artifact.Enabled && strings.TrimSpace(c.Artifact.Bucket) == "" {
		return &Error{Field: "artifact.bucket", Message: "is required when object storage is enabled"}
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, def int) int {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := env(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := env(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
