package scholarships

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/turn"
)

const maxPriorityColleges = 10

const systemInstructions = `You are a scholarships recommender.

Constraints:
- There is NO internal scholarships database/catalog available.
- You MUST return real scholarships that actually exist.
- Include a direct link to the scholarship's official page (provider/foundation/university page). Do NOT use aggregator-only pages.
- If you are not confident a scholarship exists and you cannot provide an official link, do not include it.
- Deadlines must be specific and returned as an ISO date string YYYY-MM-DD when available.
- Prefer scholarships tied to the colleges already recommended (institutional scholarships / scholarship portals / priority deadlines),
  and then add a small number of national external scholarships.
- Ask at most ONE question per turn, only if it would materially improve the recommendations.
- If you ask a question, set question.id to a dot-path where the answer should be stored in the profile.
  Prefer storing scholarship-only fields under the 'scholarships.' namespace.

Output MUST be valid JSON that matches the provided schema.`

// collegeNames returns the names of the first advisor recommendations.
func collegeNames(advisor document.Document) []string {
	names := []string{}
	for _, rec := range advisorRecs(advisor, maxPriorityColleges) {
		if name, ok := rec["college_name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// collegeURLs maps college names to the official scholarship page, or the
// admissions page when no scholarship page is known.
func collegeURLs(advisor document.Document) map[string]string {
	urls := map[string]string{}
	for _, rec := range advisorRecs(advisor, maxPriorityColleges) {
		name, _ := rec["college_name"].(string)
		if name == "" {
			continue
		}
		for _, key := range []string{"scholarship_website", "admission_website"} {
			if u, ok := rec[key].(string); ok && u != "" {
				if strings.HasPrefix(u, "http") {
					urls[name] = u
				}
				break
			}
		}
	}
	return urls
}

func advisorRecs(advisor document.Document, n int) []map[string]any {
	list, _ := advisor["recommendations"].([]any)
	var recs []map[string]any
	for _, item := range list {
		if len(recs) == n {
			break
		}
		if rec, ok := item.(map[string]any); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

func buildMessages(profile, advisor document.Document, maxRecs int) []oracle.Message {
	advisorOut := map[string]any{"summary": nil, "recommendations": nil}
	if advisor != nil {
		advisorOut["summary"] = advisor["summary"]
		advisorOut["recommendations"] = advisor["recommendations"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "STUDENT PROFILE (JSON):\n%s\n\n", mustJSON(profile))
	fmt.Fprintf(&b, "ADVISOR OUTPUT (JSON, may be null):\n%s\n\n", mustJSON(advisorOut))
	fmt.Fprintf(&b, "COLLEGES TO PRIORITIZE (from advisor):\n%s\n\n", mustJSON(collegeNames(advisor)))
	fmt.Fprintf(&b, "KNOWN OFFICIAL PAGES (from advisor; use these as starting points):\n%s\n\n", mustJSON(collegeURLs(advisor)))
	b.WriteString("Decide the next turn. If recommending, return scholarships with official links.\n")
	b.WriteString("Rules for recommendations:\n")
	b.WriteString("- Include as many college-specific institutional scholarship opportunities as possible for the advisor colleges.\n")
	b.WriteString("- For colleges with no merit scholarships (e.g., need-based only), include their official financial aid deadlines.\n")
	b.WriteString("- Provide ISO deadlines YYYY-MM-DD when possible (do not say 'varies by year').\n")
	b.WriteString("- If a specific deadline is not on the official page, set deadline=null.\n")
	fmt.Fprintf(&b, "- Keep total recommendations <= %d.", maxRecs)

	return []oracle.Message{{Role: oracle.RoleUser, Content: b.String()}}
}

func mustJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(out)
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []any{typ, "null"}}
}

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// nextTurnSchema is the strict output schema of the recommender.
func nextTurnSchema() map[string]any {
	scholarship := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":            map[string]any{"type": "string", "minLength": 1},
			"college":         nullable("string"),
			"kind":            map[string]any{"type": "string", "enum": []any{KindInstitutional, KindExternal, KindNeedBasedAid}},
			"provider":        nullable("string"),
			"award":           nullable("string"),
			"deadline":        map[string]any{"type": []any{"string", "null"}, "description": "ISO date YYYY-MM-DD when available"},
			"link":            map[string]any{"type": "string", "minLength": 1},
			"why_suitable":    map[string]any{"type": "string"},
			"key_eligibility": stringList(),
			"how_to_apply":    stringList(),
		},
		"required": []any{"name", "college", "kind", "provider", "award", "deadline", "link", "why_suitable", "key_eligibility", "how_to_apply"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action":          turn.ActionSchema(turn.ActionAsk, turn.ActionClarify, turn.ActionRecommend, turn.ActionEndNotUS),
			"question":        turn.QuestionSchema(),
			"profile_patch":   turn.PatchSchema(),
			"note_to_user":    map[string]any{"type": "string"},
			"recommendations": map[string]any{"type": []any{"array", "null"}, "items": scholarship},
		},
		"required": []any{"action", "question", "profile_patch", "note_to_user", "recommendations"},
	}
}
