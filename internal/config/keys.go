package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
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
		key: "oracle.provider", typ: kString, env: "COLLEGEAI_ORACLE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Provider },
	},
	{
		key: "oracle.base_url", typ: kString, env: "COLLEGEAI_ORACLE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.BaseURL },
	},
	{
		key: "oracle.model", typ: kString, env: "COLLEGEAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Model },
	},
	{
		key: "oracle.api_key", typ: kString, env: "COLLEGEAI_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Oracle.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.APIKey },
	},
	{
		key: "oracle.timeout", typ: kDuration, env: "COLLEGEAI_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Oracle.Timeout },
	},
	{
		key: "oracle.max_output_tokens", typ: kInt, env: "COLLEGEAI_MAX_OUTPUT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Oracle.MaxOutputTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Oracle.MaxOutputTokens },
	},
	{
		key: "intake.completion_mode", typ: kString, env: "COLLEGEAI_INTAKE_COMPLETION_MODE",
		apply:   func(cfg *Config, v any) { cfg.Intake.CompletionMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Intake.CompletionMode },
	},
	{
		key: "scholarships.max_recommendations", typ: kInt, env: "COLLEGEAI_SCHOLARSHIPS_MAX_RECOMMENDATIONS",
		apply:   func(cfg *Config, v any) { cfg.Scholarships.MaxRecommendations = v.(int) },
		extract: func(cfg Config) any { return cfg.Scholarships.MaxRecommendations },
	},
	{
		key: "verify.probe_timeout", typ: kDuration, env: "COLLEGEAI_SCHOLARSHIPS_VERIFY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Verify.ProbeTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Verify.ProbeTimeout },
	},
	{
		key: "verify.fetch_timeout", typ: kDuration, env: "COLLEGEAI_SCHOLARSHIPS_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Verify.FetchTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Verify.FetchTimeout },
	},
	{
		key: "verify.user_agent", typ: kString, env: "COLLEGEAI_USER_AGENT",
		apply:   func(cfg *Config, v any) { cfg.Verify.UserAgent = v.(string) },
		extract: func(cfg Config) any { return cfg.Verify.UserAgent },
	},
	{
		key: "verify.concurrency", typ: kInt, env: "COLLEGEAI_VERIFY_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Verify.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Verify.Concurrency },
	},
	{
		key: "prep.max_suggestions", typ: kInt, env: "COLLEGEAI_PREP_MAX_SUGGESTIONS",
		apply:   func(cfg *Config, v any) { cfg.Prep.MaxSuggestions = v.(int) },
		extract: func(cfg Config) any { return cfg.Prep.MaxSuggestions },
	},
	{
		key: "pipeline.max_turns", typ: kInt, env: "COLLEGEAI_PIPELINE_MAX_TURNS",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.MaxTurns = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.MaxTurns },
	},
	{
		key: "chat.history_limit", typ: kInt, env: "COLLEGEAI_CHAT_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Chat.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.HistoryLimit },
	},
	{
		key: "storage.backend", typ: kString, env: "COLLEGEAI_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "COLLEGEAI_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "COLLEGEAI_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "COLLEGEAI_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "log.level", typ: kString, env: "COLLEGEAI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
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
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			if pv, err := parseValue(s.typ, v); err == nil {
				s.apply(cfg, pv)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
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
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
