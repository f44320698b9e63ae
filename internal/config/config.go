package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const appName = "collegeai"

type Config struct {
	Oracle       OracleConfig
	Intake       IntakeConfig
	Scholarships ScholarshipsConfig
	Verify       VerifyConfig
	Prep         PrepConfig
	Pipeline     PipelineConfig
	Chat         ChatConfig
	Storage      StorageConfig
	Server       ServerConfig
	Log          LogConfig
}

type OracleConfig struct {
	Provider        string
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	MaxOutputTokens int
}

type IntakeConfig struct {
	CompletionMode string
}

type ScholarshipsConfig struct {
	MaxRecommendations int
}

type VerifyConfig struct {
	ProbeTimeout time.Duration
	FetchTimeout time.Duration
	UserAgent    string
	Concurrency  int
}

type PrepConfig struct {
	MaxSuggestions int
}

type PipelineConfig struct {
	MaxTurns int
}

type ChatConfig struct {
	HistoryLimit int
}

type StorageConfig struct {
	Backend string
	DataDir string
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Oracle: OracleConfig{
			Provider:        "openai",
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-5.2",
			Timeout:         60 * time.Second,
			MaxOutputTokens: 700,
		},
		Intake:       IntakeConfig{CompletionMode: "deep"},
		Scholarships: ScholarshipsConfig{MaxRecommendations: 8},
		Verify: VerifyConfig{
			ProbeTimeout: 10 * time.Second,
			FetchTimeout: 12 * time.Second,
			UserAgent:    "collegeai/1.0",
			Concurrency:  1,
		},
		Prep:     PrepConfig{MaxSuggestions: 15},
		Pipeline: PipelineConfig{MaxTurns: 12},
		Chat:     ChatConfig{HistoryLimit: 10},
		Storage: StorageConfig{
			Backend: "json",
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{Port: 4100},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.collegeai.app) and the
// API key and the turn API token fall back to the Keychain (service:
// collegeai, accounts: openai_api_key and api_token). Elsewhere the backend is a JSON file at
// $XDG_CONFIG_HOME/collegeai/config.json.
//
// Environment variables (COLLEGEAI_*) override backend values. A missing API
// key is not an error: agents run without an oracle and ask the user to
// configure one.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Oracle.APIKey == "" && kc != nil {
		if key, err := kc.Get(appName, "openai_api_key"); err == nil && key != "" {
			cfg.Oracle.APIKey = key
		}
	}
	if cfg.Server.APIToken == "" && kc != nil {
		if tok, err := kc.Get(appName, "api_token"); err == nil && tok != "" {
			cfg.Server.APIToken = tok
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Oracle.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid oracle.provider %q: want openai or ollama", c.Oracle.Provider)
	}
	switch strings.ToLower(c.Intake.CompletionMode) {
	case "deep", "core":
	default:
		return fmt.Errorf("invalid intake.completion_mode %q: want deep or core", c.Intake.CompletionMode)
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid storage.backend %q: want json or sqlite", c.Storage.Backend)
	}
	if c.Scholarships.MaxRecommendations < 1 {
		return fmt.Errorf("scholarships.max_recommendations must be positive")
	}
	if c.Verify.Concurrency < 1 {
		return fmt.Errorf("verify.concurrency must be positive")
	}
	return nil
}

// HasOracle reports whether an oracle can be reached with this config.
// Ollama needs no credentials.
func (c Config) HasOracle() bool {
	return c.Oracle.Provider == "ollama" || c.Oracle.APIKey != ""
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
