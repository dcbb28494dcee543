package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Parser    ParserConfig
	Storage   StorageConfig
	Log       LogConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
}

// ProvidersConfig describes the vision providers raced on each request:
// two remote models (fast and premium) behind one OpenRouter-compatible
// endpoint, plus an optional local Ollama model.
type ProvidersConfig struct {
	BaseURL          string
	OpenRouterAPIKey string
	FastModel        string
	FastTimeout      string
	PremiumModel     string
	PremiumTimeout   string
	OllamaBaseURL    string
	OllamaModel      string
	OllamaEnabled    bool
}

type ParserConfig struct {
	LowConfidenceThreshold float64
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// APIConfig holds the HTTP API settings. An empty Token disables bearer
// auth, which is only sensible for local use.
type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Providers: ProvidersConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			FastModel:      "google/gemini-2.5-flash",
			FastTimeout:    "30s",
			PremiumModel:   "anthropic/claude-sonnet-4.5",
			PremiumTimeout: "120s",
			OllamaBaseURL:  "http://localhost:11434",
			OllamaModel:    "qwen2.5vl",
		},
		Parser: ParserConfig{
			LowConfidenceThreshold: 0.3,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/chatparse/config.json, then applies CHATPARSE_*
// environment overrides. Secrets are accepted from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Providers.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenRouter API key. " +
			"Set it via environment variable CHATPARSE_OPENROUTER_API_KEY")
	}

	return cfg, nil
}

// Duration parses a config timeout string, falling back when it is empty
// or malformed. Config timeouts are stored as strings ("30s", "2m") so
// the backend stays a flat JSON object.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
