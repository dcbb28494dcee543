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
	kFloat
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
		key: "server.port", typ: kInt, env: "CHATPARSE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "providers.base_url", typ: kString, env: "CHATPARSE_PROVIDERS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Providers.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.BaseURL },
	},
	{
		key: "providers.openrouter_api_key", typ: kString, env: "CHATPARSE_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OpenRouterAPIKey },
	},
	{
		key: "providers.fast_model", typ: kString, env: "CHATPARSE_PROVIDERS_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.FastModel },
	},
	{
		key: "providers.fast_timeout", typ: kString, env: "CHATPARSE_PROVIDERS_FAST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Providers.FastTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.FastTimeout },
	},
	{
		key: "providers.premium_model", typ: kString, env: "CHATPARSE_PROVIDERS_PREMIUM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.PremiumModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.PremiumModel },
	},
	{
		key: "providers.premium_timeout", typ: kString, env: "CHATPARSE_PROVIDERS_PREMIUM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Providers.PremiumTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.PremiumTimeout },
	},
	{
		key: "providers.ollama_base_url", typ: kString, env: "CHATPARSE_PROVIDERS_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Providers.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OllamaBaseURL },
	},
	{
		key: "providers.ollama_model", typ: kString, env: "CHATPARSE_PROVIDERS_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OllamaModel },
	},
	{
		key: "providers.ollama_enabled", typ: kBool, env: "CHATPARSE_PROVIDERS_OLLAMA_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Providers.OllamaEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Providers.OllamaEnabled },
	},
	{
		key: "parser.low_confidence_threshold", typ: kFloat, env: "CHATPARSE_PARSER_LOW_CONFIDENCE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Parser.LowConfidenceThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Parser.LowConfidenceThreshold },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CHATPARSE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CHATPARSE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "CHATPARSE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
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
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
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
		case kString:
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
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
