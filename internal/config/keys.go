package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	// kDuration is stored as a string and must parse with time.ParseDuration.
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "INTERVIEWD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "INTERVIEWD_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.mcp_stdio", typ: kBool, env: "INTERVIEWD_SERVER_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPStdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPStdio },
	},
	{
		key: "log.level", typ: kString, env: "INTERVIEWD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.data_dir", typ: kString, env: "INTERVIEWD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "stream.pool_size", typ: kInt, env: "INTERVIEWD_STREAM_POOL_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Stream.PoolSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Stream.PoolSize },
	},
	{
		key: "stream.short_timeout", typ: kDuration, env: "INTERVIEWD_STREAM_SHORT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Stream.ShortTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Stream.ShortTimeout },
	},
	{
		key: "stream.long_timeout", typ: kDuration, env: "INTERVIEWD_STREAM_LONG_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Stream.LongTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Stream.LongTimeout },
	},
	{
		key: "stream.pace_min", typ: kDuration, env: "INTERVIEWD_STREAM_PACE_MIN",
		apply:   func(cfg *Config, v any) { cfg.Stream.PaceMin = v.(string) },
		extract: func(cfg Config) any { return cfg.Stream.PaceMin },
	},
	{
		key: "stream.pace_max", typ: kDuration, env: "INTERVIEWD_STREAM_PACE_MAX",
		apply:   func(cfg *Config, v any) { cfg.Stream.PaceMax = v.(string) },
		extract: func(cfg Config) any { return cfg.Stream.PaceMax },
	},
	{
		key: "providers.max_concurrent", typ: kInt, env: "INTERVIEWD_PROVIDERS_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Providers.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Providers.MaxConcurrent },
	},
	{
		key: "providers.max_retries", typ: kInt, env: "INTERVIEWD_PROVIDERS_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Providers.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Providers.MaxRetries },
	},
	{
		key: "anthropic.enabled", typ: kBool, env: "INTERVIEWD_ANTHROPIC_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Anthropic.Enabled },
	},
	{
		key: "anthropic.api_key", typ: kString, env: "INTERVIEWD_ANTHROPIC_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Anthropic.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.APIKey },
	},
	{
		key: "anthropic.model", typ: kString, env: "INTERVIEWD_ANTHROPIC_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Anthropic.Model },
	},
	{
		key: "anthropic.thinking_budget", typ: kInt, env: "INTERVIEWD_ANTHROPIC_THINKING_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.ThinkingBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Anthropic.ThinkingBudget },
	},
	{
		key: "anthropic.max_tokens", typ: kInt, env: "INTERVIEWD_ANTHROPIC_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Anthropic.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Anthropic.MaxTokens },
	},
	{
		key: "openai.enabled", typ: kBool, env: "INTERVIEWD_OPENAI_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.OpenAI.Enabled },
	},
	{
		key: "openai.api_key", typ: kString, env: "INTERVIEWD_OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "INTERVIEWD_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.model", typ: kString, env: "INTERVIEWD_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.reasoning_effort", typ: kString, env: "INTERVIEWD_OPENAI_REASONING_EFFORT",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ReasoningEffort = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ReasoningEffort },
	},
	{
		key: "gemini.enabled", typ: kBool, env: "INTERVIEWD_GEMINI_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Gemini.Enabled },
	},
	{
		key: "gemini.api_key", typ: kString, env: "INTERVIEWD_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.model", typ: kString, env: "INTERVIEWD_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "httpchat.enabled", typ: kBool, env: "INTERVIEWD_HTTPCHAT_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.HTTPChat.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.HTTPChat.Enabled },
	},
	{
		key: "httpchat.api_key", typ: kString, env: "INTERVIEWD_HTTPCHAT_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.HTTPChat.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.HTTPChat.APIKey },
	},
	{
		key: "httpchat.base_url", typ: kString, env: "INTERVIEWD_HTTPCHAT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.HTTPChat.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.HTTPChat.BaseURL },
	},
	{
		key: "httpchat.model", typ: kString, env: "INTERVIEWD_HTTPCHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.HTTPChat.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.HTTPChat.Model },
	},
	{
		key: "ollama.enabled", typ: kBool, env: "INTERVIEWD_OLLAMA_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ollama.Enabled },
	},
	{
		key: "ollama.base_url", typ: kString, env: "INTERVIEWD_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "INTERVIEWD_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "ollama.auto_pull", typ: kBool, env: "INTERVIEWD_OLLAMA_AUTO_PULL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.AutoPull = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ollama.AutoPull },
	},
	{
		key: "redis.addr", typ: kString, env: "INTERVIEWD_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Addr },
	},
	{
		key: "redis.password", typ: kString, env: "INTERVIEWD_REDIS_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Redis.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Password },
	},
	{
		key: "redis.db", typ: kInt, env: "INTERVIEWD_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Redis.DB = v.(int) },
		extract: func(cfg Config) any { return cfg.Redis.DB },
	},
	{
		key: "redis.session_ttl", typ: kDuration, env: "INTERVIEWD_REDIS_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Redis.SessionTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.SessionTTL },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString, kDuration:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
