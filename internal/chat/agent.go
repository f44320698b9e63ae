// Package chat answers free-form questions about a student's file. The
// file is aggregated from every per-client store and sent as context.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/oracle"
)

const (
	defaultHistoryLimit    = 10
	defaultMaxOutputTokens = 800
	defaultTemperature     = 0.7
	requestName            = "general_chat"
)

// Opening prompts the orchestrator sends instead of user text.
const (
	StartIntake       = "START_INTAKE"
	ExistingUserLogin = "EXISTING_USER_LOGIN"
)

var openingPrompts = map[string]string{
	StartIntake:       "I have just completed my profile intake. Please analyze my data, welcome me, and suggest next steps.",
	ExistingUserLogin: "I am logging back in. Please welcome me back briefly. Do NOT summarize my profile. Just ask how you can help me today.",
}

const systemInstructions = `You are the "CollegeAI" Master Counselor.
You have access to a student's complete file (Profile, Advisor Results, CV Review, Scholarships).

STRICT OUTPUT RULES:
1. **NO FLUFF**: Do not use opening phrases like "Based on your profile..." or "That is a great question." Start directly with the answer.
2. **EXTREME BREVITY**: Keep answers under 3 sentences unless a list is required.
3. **DETAIL ON DEMAND ONLY**: Do NOT expand on "why" or "how" unless the user explicitly asks.
4. **SYNTHESIZE**: Use the provided JSON data to give factual answers.

DATA SOURCES:
- Intake Profile (Stats, Major)
- Advisor Results (College List)
- CV Review (Application Strategy)
- Scholarships (Financial Aid)

If the user asks something not in the data, say "I don't have that information in your file."`

// ExpandPrompt replaces an opening prompt marker with its text.
func ExpandPrompt(query string) string {
	if p, ok := openingPrompts[query]; ok {
		return p
	}
	return query
}

// Agent answers chat messages.
type Agent struct {
	oracle          oracle.Oracle
	historyLimit    int
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithHistoryLimit sets how many prior messages are sent with each query
// and kept in the returned history.
func WithHistoryLimit(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.historyLimit = n
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Agent.
func New(o oracle.Oracle, opts ...Option) *Agent {
	a := &Agent{
		oracle:          o,
		historyLimit:    defaultHistoryLimit,
		maxOutputTokens: defaultMaxOutputTokens,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply answers query against the aggregated student file. It returns the
// answer and history extended by the exchange, keeping at most the history
// limit of most recent messages.
func (a *Agent) Reply(ctx context.Context, query string, aggregated map[string]any, history []oracle.Message) (string, []oracle.Message, error) {
	if a.oracle == nil {
		return "", history, oracle.ErrNoOracle
	}
	query = ExpandPrompt(strings.TrimSpace(query))

	file, err := json.MarshalIndent(aggregated, "", "  ")
	if err != nil {
		return "", history, fmt.Errorf("encoding student file: %w", err)
	}

	recent := history
	if len(recent) > a.historyLimit {
		recent = recent[len(recent)-a.historyLimit:]
	}
	msgs := make([]oracle.Message, 0, len(recent)+1)
	msgs = append(msgs, recent...)
	msgs = append(msgs, oracle.Message{Role: oracle.RoleUser, Content: query})

	temp := defaultTemperature
	answer, err := a.oracle.Complete(ctx, oracle.Request{
		Name:            requestName,
		Instructions:    systemInstructions + "\n\n=== STUDENT FILE DATA ===\n" + string(file),
		Messages:        msgs,
		MaxOutputTokens: a.maxOutputTokens,
		Temperature:     &temp,
	})
	if err != nil {
		return "", history, fmt.Errorf("chat: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", history, fmt.Errorf("chat: %w", oracle.ErrEmptyOutput)
	}
	a.logger.Debug("chat reply", "history", len(recent), "answer_chars", len(answer))

	out := make([]oracle.Message, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		oracle.Message{Role: oracle.RoleUser, Content: query},
		oracle.Message{Role: oracle.RoleAssistant, Content: answer},
	)
	if len(out) > a.historyLimit {
		out = out[len(out)-a.historyLimit:]
	}
	return answer, out, nil
}
