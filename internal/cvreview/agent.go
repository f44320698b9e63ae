// Package cvreview critiques a student's profile and resume against the
// reach and target colleges the advisor recommended.
package cvreview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/advisor"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
)

const (
	defaultMaxOutputTokens = 2500
	schemaName             = "cv_review_output"
)

// NoTargetsSummary is returned without an oracle call when the advisor
// recommended no reach or target schools.
const NoTargetsSummary = "No Reach or Target schools found to analyze."

const systemInstructions = `You are a top-tier Ivy League Admissions Consultant.
Your job is to critique a student's profile against a specific list of "Reach" and "Target" colleges.

RULES:
1. **Ignore Safety Schools**: Focus ONLY on increasing chances for the hardest schools in the list.
2. **Be Specific**: Don't say "get more leadership." Say "Convert your Member role in the Coding Club to President by launching a new initiative."
3. **Quantify**: Push the student to add numbers (impact, dollars raised, people reached).
4. **Narrative**: Help them find a "Spike" or theme that connects their activities to their major.

OUTPUT:
Return strict JSON matching the provided schema.`

// Improvement is one concrete change to the application.
type Improvement struct {
	Section              string `json:"section"`
	CurrentWeakness      string `json:"current_weakness"`
	Suggestion           string `json:"suggestion"`
	TargetCollegeContext string `json:"target_college_context"`
}

// Output is the review stored per client.
type Output struct {
	StrategicSummary string        `json:"strategic_summary"`
	Improvements     []Improvement `json:"improvements"`
}

// Validate implements oracle.Validator.
func (o *Output) Validate() error {
	if strings.TrimSpace(o.StrategicSummary) == "" {
		return fmt.Errorf("strategic_summary is empty")
	}
	if o.Improvements == nil {
		o.Improvements = []Improvement{}
	}
	return nil
}

// Agent reviews applications.
type Agent struct {
	oracle          oracle.Oracle
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

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
	a := &Agent{oracle: o, maxOutputTokens: defaultMaxOutputTokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Review analyzes the profile against the reach and target colleges in the
// stored advisor output. resume may be empty.
func (a *Agent) Review(ctx context.Context, profile, advisorOut document.Document, resume string) (Output, error) {
	targets := Targets(advisorOut)
	if len(targets) == 0 {
		return Output{StrategicSummary: NoTargetsSummary, Improvements: []Improvement{}}, nil
	}
	if a.oracle == nil {
		return Output{}, oracle.ErrNoOracle
	}
	a.logger.Debug("cv review", "targets", len(targets), "resume_chars", len(resume))

	out, err := oracle.Call[Output](ctx, a.oracle, oracle.Request{
		Name:            schemaName,
		Instructions:    systemInstructions,
		Messages:        []oracle.Message{{Role: oracle.RoleUser, Content: userMessage(profile, targets, resume)}},
		Schema:          outputSchema(),
		MaxOutputTokens: a.maxOutputTokens,
	})
	if err != nil {
		return Output{}, fmt.Errorf("cv review: %w", err)
	}
	return out, nil
}

// Targets returns the advisor recommendations categorized as Extreme Reach
// or Target Match, in their original order.
func Targets(advisorOut document.Document) []map[string]any {
	list, _ := document.Get(advisorOut, "recommendations").([]any)
	out := []map[string]any{}
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch rec["category"] {
		case string(advisor.ExtremeReach), string(advisor.TargetMatch):
			out = append(out, rec)
		}
	}
	return out
}

func userMessage(profile document.Document, targets []map[string]any, resume string) string {
	p, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		p = []byte("{}")
	}
	t, err := json.MarshalIndent(targets, "", "  ")
	if err != nil {
		t = []byte("[]")
	}
	var b strings.Builder
	b.WriteString("STUDENT PROFILE:\n")
	b.Write(p)
	b.WriteString("\n\nTARGET COLLEGES (Reach/Target only):\n")
	b.Write(t)
	if strings.TrimSpace(resume) != "" {
		b.WriteString("\n\nRESUME TEXT:\n")
		b.WriteString(resume)
	}
	b.WriteString("\n\nProvide specific CV improvements to maximize acceptance chances.")
	return b.String()
}

func outputSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"strategic_summary": str,
			"improvements": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"section":                str,
						"current_weakness":       str,
						"suggestion":             str,
						"target_college_context": str,
					},
					"required": []any{"section", "current_weakness", "suggestion", "target_college_context"},
				},
			},
		},
		"required": []any{"strategic_summary", "improvements"},
	}
}
