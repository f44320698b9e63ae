// Package scholarships recommends real scholarships for a US-bound student.
// Eligibility questions are asked deterministically first; recommendations
// come from the oracle and are kept only after link verification.
package scholarships

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/turn"
	"github.com/kalambet/collegeai/internal/webcheck"
)

const (
	defaultMaxRecommendations = 8
	defaultMaxOutputTokens    = 4000
	schemaName                = "scholarships_next_turn"
)

// Scholarship kinds.
const (
	KindInstitutional = "institutional"
	KindExternal      = "external"
	KindNeedBasedAid  = "need_based_aid"
)

const (
	noteNotUS      = "This scholarships flow currently targets US-based scholarships."
	noteNoOracle   = "Set OPENAI_API_KEY (or COLLEGEAI_OPENAI_API_KEY) to use the scholarships recommender."
	noteGate       = "Quick eligibility question so I can target the right college-specific scholarships."
	noteUnverified = "I couldn't verify the scholarship links I generated. " +
		"Please share your constraints (citizenship, ethnicity if relevant, state, household income range, and student level), " +
		"or provide a shortlist of scholarship providers/universities to target."
)

// Scholarship is one recommended opportunity.
type Scholarship struct {
	Name     string  `json:"name"`
	College  *string `json:"college"`
	Kind     string  `json:"kind"`
	Provider *string `json:"provider"`
	Award    *string `json:"award"`
	// Deadline is YYYY-MM-DD after verification, or nil when unknown.
	Deadline       *string  `json:"deadline"`
	Link           string   `json:"link"`
	WhySuitable    string   `json:"why_suitable"`
	KeyEligibility []string `json:"key_eligibility"`
	HowToApply     []string `json:"how_to_apply"`
}

// Payload is the RECOMMEND payload.
type Payload struct {
	Recommendations []Scholarship `json:"recommendations"`
}

// Result is one scholarships turn.
type Result = turn.Result[Payload]

type nextTurn struct {
	turn.Wire
	Recommendations []Scholarship `json:"recommendations"`
}

func (n *nextTurn) Validate() error {
	if err := n.Check(turn.ActionAsk, turn.ActionClarify, turn.ActionRecommend, turn.ActionEndNotUS); err != nil {
		return err
	}
	for i := range n.Recommendations {
		r := &n.Recommendations[i]
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("recommendation %d has no name", i)
		}
		switch r.Kind {
		case "":
			r.Kind = KindExternal
		case KindInstitutional, KindExternal, KindNeedBasedAid:
		default:
			return fmt.Errorf("recommendation %d has unknown kind %q", i, r.Kind)
		}
		if r.KeyEligibility == nil {
			r.KeyEligibility = []string{}
		}
		if r.HowToApply == nil {
			r.HowToApply = []string{}
		}
	}
	return nil
}

// Agent runs scholarships turns.
type Agent struct {
	oracle          oracle.Oracle
	verifier        *Verifier
	maxRecs         int
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxRecommendations caps the number of recommendations requested and
// verified.
func WithMaxRecommendations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRecs = n
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

// New creates an Agent. A nil verifier checks links with a default
// webcheck client. A nil oracle makes every turn past the gating
// questions answer CLARIFY with a configuration hint.
func New(o oracle.Oracle, v *Verifier, opts ...Option) *Agent {
	a := &Agent{
		oracle:          o,
		verifier:        v,
		maxRecs:         defaultMaxRecommendations,
		maxOutputTokens: defaultMaxOutputTokens,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.verifier == nil {
		a.verifier = NewVerifier(webcheck.New(), a.maxRecs, 1, a.logger)
	}
	return a
}

// Next runs one turn. advisor is the stored advisor output for the client
// and may be nil. The returned profile is a private copy with the result's
// patch already applied; in.Profile is never modified.
func (a *Agent) Next(ctx context.Context, in turn.Input, advisor document.Document) (Result, document.Document, error) {
	if turn.DeclinedUS(in.Profile) {
		return Result{Action: turn.ActionEndNotUS, ProfilePatch: []document.PatchOp{}, NoteToUser: noteNotUS}, document.Clone(in.Profile), nil
	}

	profile, userOps := turn.Begin(in)
	if userOps == nil {
		userOps = []document.PatchOp{}
	}
	if turn.DeclinedUS(profile) {
		return Result{Action: turn.ActionEndNotUS, ProfilePatch: userOps, NoteToUser: noteNotUS}, profile, nil
	}

	if q, ok := turn.NextGate(profile, Gates); ok {
		return Result{Action: turn.ActionAsk, Question: &q, ProfilePatch: userOps, NoteToUser: noteGate}, profile, nil
	}

	if a.oracle == nil {
		return Result{Action: turn.ActionClarify, ProfilePatch: userOps, NoteToUser: noteNoOracle}, profile, nil
	}

	out, err := oracle.Call[nextTurn](ctx, a.oracle, oracle.Request{
		Name:            schemaName,
		Instructions:    systemInstructions,
		Messages:        buildMessages(profile, advisor, a.maxRecs),
		Schema:          nextTurnSchema(),
		MaxOutputTokens: a.maxOutputTokens,
	})
	if err != nil {
		return Result{}, nil, fmt.Errorf("scholarships turn: %w", err)
	}

	modelOps := out.Ops()
	document.ApplyPatches(profile, modelOps)

	res := Result{
		Action:       out.Action,
		Question:     out.Question,
		ProfilePatch: append(userOps, modelOps...),
		NoteToUser:   out.NoteToUser,
	}

	if out.Action != turn.ActionRecommend {
		return res, profile, nil
	}

	verified := a.verifier.Verify(ctx, out.Recommendations)
	a.logger.Info("scholarships verified", "proposed", len(out.Recommendations), "kept", len(verified))
	if len(verified) == 0 {
		res.Action = turn.ActionClarify
		res.NoteToUser = noteUnverified
		res.Question = nil
		return res, profile, nil
	}
	res.Question = nil
	res.Payload = &Payload{Recommendations: verified}
	return res, profile, nil
}
