// Package intake runs the college intake interview. Eligibility and
// residency are asked deterministically; every later question comes from the
// oracle, steered by the slot tracker.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/turn"
)

const (
	defaultMaxOutputTokens = 700
	schemaName             = "college_intake_next_turn"
)

const (
	noteNotUS    = "This intake currently serves students applying to US colleges only."
	noteNoOracle = "Set OPENAI_API_KEY (or COLLEGEAI_OPENAI_API_KEY) to continue the intake interview."
)

// Gates are asked before the oracle is consulted.
var Gates = []turn.Gate{
	{Question: turn.Question{
		ID:         "us_only",
		Text:       "Are you applying only to colleges in the United States?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"Yes", "No", "Skip"},
	}},
	{Question: turn.Question{
		ID:         "residency_status",
		Text:       "What is your residency status?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"US citizen", "Permanent resident", "DACA", "Other", "Prefer not to say"},
	}},
	{Question: turn.Question{
		ID:         "state_of_residence",
		Text:       "Which U.S. state do you live in?",
		AnswerType: turn.AnswerText,
		Options:    []string{"Skip"},
	}},
}

// Result is one intake turn.
type Result = turn.Result[turn.None]

type nextTurn struct {
	turn.Wire
}

func (n *nextTurn) Validate() error {
	return n.Check(turn.ActionAsk, turn.ActionClarify, turn.ActionFinish, turn.ActionEndNotUS)
}

// Agent runs intake turns.
type Agent struct {
	oracle          oracle.Oracle
	mode            slots.Mode
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMode sets the completion mode. The default is slots.ModeDeep.
func WithMode(m slots.Mode) Option {
	return func(a *Agent) {
		if m != "" {
			a.mode = m
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

// New creates an Agent. A nil oracle makes every turn past the gating
// questions answer CLARIFY with a configuration hint.
func New(o oracle.Oracle, opts ...Option) *Agent {
	a := &Agent{
		oracle:          o,
		mode:            slots.ModeDeep,
		maxOutputTokens: defaultMaxOutputTokens,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next runs one turn. The returned profile is a private copy with the
// result's patch already applied; in.Profile is never modified.
//
// In deep mode a FINISH from the oracle is not honored while deep paths
// remain unfilled: the oracle is asked exactly once more, directed at the
// first remaining path, and that second answer is returned as is.
func (a *Agent) Next(ctx context.Context, in turn.Input) (Result, document.Document, error) {
	if turn.DeclinedUS(in.Profile) {
		return Result{Action: turn.ActionEndNotUS, ProfilePatch: []document.PatchOp{}, NoteToUser: noteNotUS}, document.Clone(in.Profile), nil
	}

	doc, userOps := turn.Begin(in)
	if userOps == nil {
		userOps = []document.PatchOp{}
	}
	if turn.DeclinedUS(doc) {
		return Result{Action: turn.ActionEndNotUS, ProfilePatch: userOps, NoteToUser: noteNotUS}, doc, nil
	}

	if q, ok := turn.NextGate(doc, Gates); ok {
		return Result{Action: turn.ActionAsk, Question: &q, ProfilePatch: userOps}, doc, nil
	}

	if a.oracle == nil {
		return Result{Action: turn.ActionClarify, ProfilePatch: userOps, NoteToUser: noteNoOracle}, doc, nil
	}

	priority := slots.Compute(doc, profile.PrioritySlots, nil, slots.ModeCore)
	deep := slots.Compute(doc, profile.DeepPaths, document.AskedSet(doc), a.mode)
	msgs := buildMessages(doc, priority, deep, a.mode, in)

	out, err := a.call(ctx, msgs)
	if err != nil {
		return Result{}, nil, err
	}
	ops := out.Ops()
	document.ApplyPatches(doc, ops)

	if a.mode == slots.ModeDeep && out.Action == turn.ActionFinish {
		remaining := slots.Compute(doc, profile.DeepPaths, document.AskedSet(doc), a.mode)
		if next, ok := remaining.Next(); ok {
			a.logger.Info("intake finished early, forcing continuation", "next_path", next, "unfilled", len(remaining.Unfilled))
			forced, err := a.call(ctx, forceDirective(msgs, next))
			if err != nil {
				return Result{}, nil, err
			}
			forcedOps := forced.Ops()
			document.ApplyPatches(doc, forcedOps)
			ops = append(ops, forcedOps...)
			out = forced
		}
	}

	return Result{
		Action:       out.Action,
		Question:     out.Question,
		ProfilePatch: append(userOps, ops...),
		NoteToUser:   out.NoteToUser,
	}, doc, nil
}

func (a *Agent) call(ctx context.Context, msgs []oracle.Message) (nextTurn, error) {
	out, err := oracle.Call[nextTurn](ctx, a.oracle, oracle.Request{
		Name:            schemaName,
		Instructions:    systemInstructions,
		Messages:        msgs,
		Schema:          nextTurnSchema(),
		MaxOutputTokens: a.maxOutputTokens,
	})
	if err != nil {
		return nextTurn{}, fmt.Errorf("intake turn: %w", err)
	}
	return out, nil
}
