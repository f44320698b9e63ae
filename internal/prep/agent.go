// Package prep suggests programs, internships and application work that
// raise a student's chances for their recommended scholarships. It first
// asks a fixed set of activity questions, then makes one oracle call.
package prep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/turn"
)

const (
	defaultMaxSuggestions  = 15
	defaultMaxOutputTokens = 4000
	defaultTemperature     = 0.7
	schemaName             = "scholarship_prep_next_turn"
	maxErrorChars          = 100
)

const (
	noteGate     = "Let me learn more about your current activities to give you personalized suggestions."
	noteNoOracle = "Set OPENAI_API_KEY (or COLLEGEAI_OPENAI_API_KEY) to use the scholarship prep advisor."
	errorPrefix  = "Error generating suggestions: "
)

var categories = []string{
	"internship", "program", "competition", "volunteer", "course", "certification",
	"leadership", "research", "skill_building", "application_tip", "essay_strategy",
	"networking", "other",
}

// Suggestion is one concrete preparation step.
type Suggestion struct {
	Title              string   `json:"title"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	TargetScholarships []string `json:"target_scholarships"`
	Link               *string  `json:"link"`
	Deadline           *string  `json:"deadline"`
	EstimatedTime      *string  `json:"estimated_time"`
	Priority           string   `json:"priority"`
	Difficulty         string   `json:"difficulty"`
	ActionSteps        []string `json:"action_steps"`
}

// Payload is the SUGGEST payload.
type Payload struct {
	Suggestions []Suggestion `json:"suggestions"`
	Summary     *string      `json:"summary"`
}

// Result is one prep turn.
type Result = turn.Result[Payload]

type nextTurn struct {
	turn.Wire
	Suggestions []Suggestion `json:"suggestions"`
	Summary     *string      `json:"summary"`
}

func (n *nextTurn) Validate() error {
	if err := n.Check(turn.ActionAsk, turn.ActionClarify, turn.ActionSuggest, turn.ActionEnd); err != nil {
		return err
	}
	for i := range n.Suggestions {
		s := &n.Suggestions[i]
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("suggestion %d has no title", i)
		}
		if !validCategory(s.Category) {
			return fmt.Errorf("suggestion %d has unknown category %q", i, s.Category)
		}
		switch s.Priority {
		case "":
			s.Priority = "medium"
		case "high", "medium", "low":
		default:
			return fmt.Errorf("suggestion %d has unknown priority %q", i, s.Priority)
		}
		switch s.Difficulty {
		case "":
			s.Difficulty = "moderate"
		case "easy", "moderate", "challenging":
		default:
			return fmt.Errorf("suggestion %d has unknown difficulty %q", i, s.Difficulty)
		}
		if s.TargetScholarships == nil {
			s.TargetScholarships = []string{}
		}
		if s.ActionSteps == nil {
			s.ActionSteps = []string{}
		}
	}
	return nil
}

func validCategory(c string) bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

// Agent runs scholarship prep turns.
type Agent struct {
	oracle          oracle.Oracle
	maxSuggestions  int
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSuggestions caps the number of suggestions returned.
func WithMaxSuggestions(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSuggestions = n
		}
	}
}

// WithMaxOutputTokens sets the oracle output budget.
func WithMaxOutputTokens(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxOutputTokens = n
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
		maxSuggestions:  defaultMaxSuggestions,
		maxOutputTokens: defaultMaxOutputTokens,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next runs one turn. scholarships is the stored scholarships result (with a
// "recommendations" list) and may be nil.
//
// Oracle failures do not surface as errors: the turn answers CLARIFY with a
// short description of the failure so the user can retry.
func (a *Agent) Next(ctx context.Context, in turn.Input, scholarships document.Document) (Result, document.Document, error) {
	doc, userOps := turn.Begin(in)
	if userOps == nil {
		userOps = []document.PatchOp{}
	}

	if q, ok := turn.NextGate(doc, Gates); ok {
		return Result{Action: turn.ActionAsk, Question: &q, ProfilePatch: userOps, NoteToUser: noteGate}, doc, nil
	}

	if a.oracle == nil {
		return Result{Action: turn.ActionClarify, ProfilePatch: userOps, NoteToUser: noteNoOracle}, doc, nil
	}

	temp := defaultTemperature
	out, err := oracle.Call[nextTurn](ctx, a.oracle, oracle.Request{
		Name:            schemaName,
		Instructions:    systemInstructions,
		Messages:        []oracle.Message{{Role: oracle.RoleUser, Content: userMessage(doc, scholarships, a.maxSuggestions)}},
		Schema:          nextTurnSchema(),
		MaxOutputTokens: a.maxOutputTokens,
		Temperature:     &temp,
	})
	if err != nil {
		a.logger.Warn("prep suggestions failed", "error", err)
		return Result{
			Action:       turn.ActionClarify,
			ProfilePatch: userOps,
			NoteToUser:   errorPrefix + turn.Truncate(err.Error(), maxErrorChars),
		}, doc, nil
	}

	modelOps := out.Ops()
	document.ApplyPatches(doc, modelOps)
	res := Result{
		Action:       out.Action,
		Question:     out.Question,
		ProfilePatch: append(userOps, modelOps...),
		NoteToUser:   out.NoteToUser,
	}
	if out.Action == turn.ActionSuggest {
		suggestions := out.Suggestions
		if suggestions == nil {
			suggestions = []Suggestion{}
		}
		if len(suggestions) > a.maxSuggestions {
			suggestions = suggestions[:a.maxSuggestions]
		}
		res.Question = nil
		res.Payload = &Payload{Suggestions: suggestions, Summary: out.Summary}
	}
	return res, doc, nil
}
