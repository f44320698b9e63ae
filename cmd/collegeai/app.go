package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/advisor"
	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/config"
	"github.com/kalambet/collegeai/internal/cvreview"
	"github.com/kalambet/collegeai/internal/intake"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/pipeline"
	"github.com/kalambet/collegeai/internal/prep"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/scholarships"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/storage"
	"github.com/kalambet/collegeai/internal/webcheck"
)

const defaultOllamaURL = "http://localhost:11434"

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    storage.DocumentStore
	profiles *profile.Manager
	agents   pipeline.Agents
	close    func() error
}

func (a *app) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// loadApp is a variable so tests can substitute an in-memory app.
var loadApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, stderr)
}

func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	logger := newLogger(cfg.Log.Level, logOut)

	store, closeFn, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	o := newOracle(cfg.Oracle)
	if o == nil {
		logger.Warn("no oracle configured; agents will ask for an API key")
	}
	agents, err := buildAgents(cfg, o, logger)
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		profiles: profile.NewManager(store),
		agents:   agents,
		close:    closeFn,
	}, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cfg config.StorageConfig) (storage.DocumentStore, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := storage.OpenFiles(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, nil, nil
	}
}

// newOracle returns nil when no oracle can be reached; agents then degrade
// to a configuration hint instead of failing at startup.
func newOracle(cfg config.OracleConfig) oracle.Oracle {
	switch cfg.Provider {
	case "ollama":
		base := cfg.BaseURL
		if base == "" || strings.Contains(base, "api.openai.com") {
			base = defaultOllamaURL
		}
		return oracle.NewOllama(base, cfg.Model, cfg.Timeout)
	default:
		if cfg.APIKey == "" {
			return nil
		}
		return oracle.NewOpenAIWithBaseURL(cfg.APIKey, cfg.Model, cfg.BaseURL).WithTimeout(cfg.Timeout)
	}
}

func buildAgents(cfg config.Config, o oracle.Oracle, logger *slog.Logger) (pipeline.Agents, error) {
	mode, err := slots.ParseMode(cfg.Intake.CompletionMode)
	if err != nil {
		return pipeline.Agents{}, err
	}

	web := webcheck.New(
		webcheck.WithUserAgent(cfg.Verify.UserAgent),
		webcheck.WithTimeouts(cfg.Verify.ProbeTimeout, cfg.Verify.FetchTimeout),
	)
	verifier := scholarships.NewVerifier(web, cfg.Scholarships.MaxRecommendations, cfg.Verify.Concurrency, logger)

	return pipeline.Agents{
		Intake: intake.New(o,
			intake.WithMode(mode),
			intake.WithMaxOutputTokens(cfg.Oracle.MaxOutputTokens),
			intake.WithLogger(logger),
		),
		Advisor:  advisor.New(o, advisor.WithLogger(logger)),
		CVReview: cvreview.New(o, cvreview.WithLogger(logger)),
		Scholarships: scholarships.New(o, verifier,
			scholarships.WithMaxRecommendations(cfg.Scholarships.MaxRecommendations),
			scholarships.WithLogger(logger),
		),
		Prep: prep.New(o,
			prep.WithMaxSuggestions(cfg.Prep.MaxSuggestions),
			prep.WithLogger(logger),
		),
		Chat: chat.New(o,
			chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
			chat.WithLogger(logger),
		),
	}, nil
}
