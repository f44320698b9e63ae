// Package advisor recommends a balanced college list for a finished intake
// profile. Candidates come from a college catalog filtered by GPA; the oracle
// categorizes and explains them in one call.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
)

const (
	defaultMaxOutputTokens = 3000
	schemaName             = "advisor_output"
)

// Category places a college relative to the student's stats.
type Category string

const (
	ExtremeReach Category = "Extreme Reach"
	TargetMatch  Category = "Target Match"
	Safety       Category = "Safety"
)

const systemInstructions = `You are an expert US College Admissions Counselor and Research Assistant.
Your goal is to analyze a student's profile and recommend a balanced list of colleges.

CATEGORIZATION RULES:
Divide the colleges being recommended into three categories:
1. **Extreme Reach**: Schools where the student's stats are significantly below the 25th percentile, or highly selective schools (Ivy League, Stanford, MIT) which are reaches for everyone.
2. **Target Match**: Schools where the student's stats are within the middle 50% range.
3. **Safety**: Schools where the student's stats are well above the 75th percentile and admission is highly likely.

RESEARCH RULES:
- Prefer official university pages when citing.
- Keep answers concise unless asked for detail.
- Provide specific scholarship names or deadlines if relevant to the student's profile.
- **CRITICAL**: You MUST provide the official admissions website URL and specific scholarship URLs in the corresponding JSON fields.

OUTPUT RULES:
- You must output your response in strict JSON format matching the provided schema.
- Ensure you provide at least one option for each category if possible.`

// Recommendation is one recommended college.
type Recommendation struct {
	CollegeName         string   `json:"college_name"`
	Location            string   `json:"location"`
	Category            Category `json:"category"`
	MatchScore          int      `json:"match_score"`
	Reasoning           string   `json:"reasoning"`
	TuitionEstimate     *string  `json:"tuition_estimate"`
	ApplicationDeadline *string  `json:"application_deadline"`
	AdmissionWebsite    *string  `json:"admission_website"`
	ScholarshipInfo     *string  `json:"scholarship_info"`
	ScholarshipWebsite  *string  `json:"scholarship_website"`
}

// Output is the advisor result stored per client.
type Output struct {
	Summary         string           `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Validate implements oracle.Validator.
func (o *Output) Validate() error {
	if o.Recommendations == nil {
		o.Recommendations = []Recommendation{}
	}
	for i, r := range o.Recommendations {
		if strings.TrimSpace(r.CollegeName) == "" {
			return fmt.Errorf("recommendation %d has no college_name", i)
		}
		switch r.Category {
		case ExtremeReach, TargetMatch, Safety:
		default:
			return fmt.Errorf("recommendation %d has unknown category %q", i, r.Category)
		}
		if r.MatchScore < 0 || r.MatchScore > 100 {
			return fmt.Errorf("recommendation %d match_score %d out of range", i, r.MatchScore)
		}
	}
	return nil
}

// Agent produces college recommendations.
type Agent struct {
	oracle          oracle.Oracle
	catalog         []College
	maxOutputTokens int
	logger          *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithCatalog replaces the built-in college catalog.
func WithCatalog(c []College) Option {
	return func(a *Agent) {
		if c != nil {
			a.catalog = c
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

// New creates an Agent. With a nil oracle Recommend returns
// oracle.ErrNoOracle.
func New(o oracle.Oracle, opts ...Option) *Agent {
	a := &Agent{
		oracle:          o,
		maxOutputTokens: defaultMaxOutputTokens,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.catalog == nil {
		a.catalog = DefaultCatalog()
	}
	return a
}

// Recommend searches the catalog for the profile and asks the oracle for a
// categorized recommendation list.
func (a *Agent) Recommend(ctx context.Context, profile document.Document) (Output, error) {
	if a.oracle == nil {
		return Output{}, oracle.ErrNoOracle
	}

	matches := Search(a.catalog, profile)
	a.logger.Debug("advisor catalog search", "matches", len(matches), "catalog", len(a.catalog))

	out, err := oracle.Call[Output](ctx, a.oracle, oracle.Request{
		Name:            schemaName,
		Instructions:    systemInstructions,
		Messages:        []oracle.Message{{Role: oracle.RoleUser, Content: userMessage(profile, matches)}},
		Schema:          outputSchema(),
		MaxOutputTokens: a.maxOutputTokens,
	})
	if err != nil {
		return Output{}, fmt.Errorf("advisor: %w", err)
	}
	return out, nil
}

func userMessage(profile document.Document, matches []College) string {
	p, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		p = []byte("{}")
	}
	m, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		m = []byte("[]")
	}
	return "Here is the Student Profile:\n" + string(p) +
		"\n\nHere is a list of potential colleges found in our database:\n" + string(m) +
		"\n\nBased on this, generate a final recommendation list."
}

func outputSchema() map[string]any {
	nullableString := map[string]any{"type": []any{"string", "null"}}
	rec := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"college_name":         map[string]any{"type": "string"},
			"location":             map[string]any{"type": "string"},
			"category":             map[string]any{"type": "string", "enum": []any{string(ExtremeReach), string(TargetMatch), string(Safety)}},
			"match_score":          map[string]any{"type": "integer"},
			"reasoning":            map[string]any{"type": "string"},
			"tuition_estimate":     nullableString,
			"application_deadline": nullableString,
			"admission_website":    nullableString,
			"scholarship_info":     nullableString,
			"scholarship_website":  nullableString,
		},
		"required": []any{
			"college_name", "location", "category", "match_score", "reasoning",
			"tuition_estimate", "application_deadline", "admission_website",
			"scholarship_info", "scholarship_website",
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"summary":         map[string]any{"type": "string"},
			"recommendations": map[string]any{"type": "array", "items": rec},
		},
		"required": []any{"summary", "recommendations"},
	}
}
