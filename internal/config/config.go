package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const keychainService = "interviewd"

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Stream    StreamConfig
	Providers ProvidersConfig
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	HTTPChat  HTTPChatConfig
	Ollama    OllamaConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
	MCPStdio bool
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	DataDir string
}

// StreamConfig holds the dispatcher pool size and the two timeout classes.
// Durations are kept as strings so every backend can store them verbatim.
type StreamConfig struct {
	PoolSize     int
	ShortTimeout string
	LongTimeout  string
	PaceMin      string
	PaceMax      string
}

type ProvidersConfig struct {
	MaxConcurrent int
	MaxRetries    int
}

type AnthropicConfig struct {
	Enabled        bool
	APIKey         string
	Model          string
	ThinkingBudget int
	MaxTokens      int
}

type OpenAIConfig struct {
	Enabled         bool
	APIKey          string
	BaseURL         string
	Model           string
	ReasoningEffort string
}

type GeminiConfig struct {
	Enabled bool
	APIKey  string
	Model   string
}

type HTTPChatConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Model   string
}

type OllamaConfig struct {
	Enabled  bool
	BaseURL  string
	Model    string
	AutoPull bool
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SessionTTL string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     8080,
			MaxConns: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Stream: StreamConfig{
			PoolSize:     64,
			ShortTimeout: "5m",
			LongTimeout:  "10m",
			PaceMin:      "300ms",
			PaceMax:      "500ms",
		},
		Providers: ProvidersConfig{
			MaxConcurrent: 8,
			MaxRetries:    3,
		},
		Anthropic: AnthropicConfig{
			Enabled:        true,
			Model:          "claude-sonnet-4-5",
			ThinkingBudget: 4096,
			MaxTokens:      8192,
		},
		OpenAI: OpenAIConfig{
			Enabled:         true,
			Model:           "o3-mini",
			ReasoningEffort: "medium",
		},
		Gemini: GeminiConfig{
			Enabled: true,
			Model:   "gemini-2.5-flash",
		},
		HTTPChat: HTTPChatConfig{
			Enabled: true,
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "deepseek/deepseek-chat",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:7b",
		},
		Redis: RedisConfig{
			SessionTTL: "1h",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.interviewd.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a YAML file at $XDG_CONFIG_HOME/interviewd/config.yaml
// and secrets fall back to $XDG_DATA_HOME/interviewd/secrets.yaml.
//
// Environment variables (INTERVIEWD_*) override backend values on all
// platforms. Values from .env never override variables already set.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills empty secret keys from the platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

func (c Config) validate() error {
	for _, s := range specs {
		if s.typ != kDuration {
			continue
		}
		if _, err := time.ParseDuration(s.extract(c).(string)); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", s.key, err)
		}
	}
	if c.Stream.PoolSize <= 0 {
		return fmt.Errorf("stream.pool_size must be positive, got %d", c.Stream.PoolSize)
	}
	if c.Providers.MaxConcurrent <= 0 {
		return fmt.Errorf("providers.max_concurrent must be positive, got %d", c.Providers.MaxConcurrent)
	}
	if c.PaceMin() > c.PaceMax() {
		return fmt.Errorf("stream.pace_min %s exceeds stream.pace_max %s", c.Stream.PaceMin, c.Stream.PaceMax)
	}
	return nil
}

// ShortTimeout is the session timeout for mock and generic paths.
func (c Config) ShortTimeout() time.Duration { return mustDuration(c.Stream.ShortTimeout) }

// LongTimeout is the session timeout for deep reasoning and network paths.
func (c Config) LongTimeout() time.Duration { return mustDuration(c.Stream.LongTimeout) }

func (c Config) PaceMin() time.Duration { return mustDuration(c.Stream.PaceMin) }

func (c Config) PaceMax() time.Duration { return mustDuration(c.Stream.PaceMax) }

func (c Config) SessionTTL() time.Duration { return mustDuration(c.Redis.SessionTTL) }

// mustDuration parses a duration validated at load time.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ensureDir is used by the file-backed stores.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
