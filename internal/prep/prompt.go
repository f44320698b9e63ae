package prep

import (
	"fmt"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/turn"
)

const systemInstructions = `You are an expert college and scholarship preparation advisor. Your goal is to suggest specific, actionable programs, internships, competitions, and improvements that will strengthen the student's scholarship applications.

Given:
1. The student's current profile (academics, demographics, activities)
2. Their recommended scholarships

Your task:
- Analyze what each scholarship is looking for
- Identify gaps between the student's current profile and scholarship requirements
- Suggest SPECIFIC, REAL programs and opportunities (with actual names and links where possible)
- Prioritize suggestions by impact and feasibility given their timeline

Categories of suggestions to include:
1. INTERNSHIPS: Summer programs, pre-college internships (Google CSSI, Microsoft Explore, NASA internships, MOSTEC, etc.)
2. PROGRAMS: Academic enrichment programs (RSI, COSMOS, SSP, MIT PRIMES, etc.)
3. COMPETITIONS: Science fairs, hackathons, olympiads, essay contests
4. VOLUNTEER/SERVICE: Community service opportunities aligned with their interests
5. COURSES/CERTIFICATIONS: Online courses, certifications that build relevant skills
6. LEADERSHIP: Ways to develop leadership experience
7. RESEARCH: Research opportunities at local universities
8. APPLICATION TIPS: Specific essay strategies and application advice for their target scholarships
9. SKILL BUILDING: Technical or soft skills to develop
10. NETWORKING: Professional connections to make

For each suggestion:
- Be SPECIFIC with program names, not generic advice
- Include official links when possible
- Note which scholarships it helps with
- Provide concrete action steps
- Consider their available time and timeline

Output MUST be valid JSON matching the provided schema with action=SUGGEST.`

const noScholarships = "No scholarships have been recommended yet."

// formatScholarships renders stored scholarship recommendations as a
// numbered list.
func formatScholarships(stored document.Document) string {
	list, _ := document.Get(stored, "recommendations").([]any)
	var recs []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			recs = append(recs, m)
		}
	}
	if len(recs) == 0 {
		return noScholarships
	}

	lines := []string{"Recommended Scholarships:"}
	for i, r := range recs {
		lines = append(lines,
			fmt.Sprintf("\n%d. %s", i+1, field(r, "name", "Unknown")),
			"   Provider: "+field(r, "provider", "Unknown"),
			"   Type: "+field(r, "kind", "external"),
			"   Award: "+field(r, "award", "Varies"),
			"   Deadline: "+field(r, "deadline", "Check website"),
		)
		if elig, ok := r["key_eligibility"].([]any); ok && len(elig) > 0 {
			if len(elig) > 3 {
				elig = elig[:3]
			}
			parts := make([]string, 0, len(elig))
			for _, e := range elig {
				parts = append(parts, profile.FormatValue(e))
			}
			lines = append(lines, "   Key Requirements: "+strings.Join(parts, "; "))
		}
	}
	return strings.Join(lines, "\n")
}

func field(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok && document.IsAnswered(v) {
		return profile.FormatValue(v)
	}
	return fallback
}

func userMessage(doc, scholarships document.Document, maxSuggestions int) string {
	return fmt.Sprintf(`Based on this student's profile and their recommended scholarships, provide specific suggestions for programs, internships, and improvements to strengthen their scholarship applications.

STUDENT PROFILE:
%s

%s

Provide up to %d prioritized suggestions that are:
1. Specific and actionable (real program names, not generic advice)
2. Appropriate for their timeline and available hours
3. Aligned with their target scholarships
4. Feasible given their current skill level

Focus especially on:
- Programs that directly address eligibility requirements for their top scholarships
- Opportunities that fill gaps in their current profile
- High-impact activities that multiple scholarships value

Return your response as JSON with action=SUGGEST.`, profile.Summarize(doc), formatScholarships(scholarships), maxSuggestions)
}

func nextTurnSchema() map[string]any {
	str := map[string]any{"type": "string"}
	nullableString := map[string]any{"type": []any{"string", "null"}}
	strList := map[string]any{"type": "array", "items": str}
	suggestion := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":               str,
			"category":            map[string]any{"type": "string", "enum": stringsToAny(categories)},
			"description":         str,
			"target_scholarships": strList,
			"link":                nullableString,
			"deadline":            nullableString,
			"estimated_time":      nullableString,
			"priority":            map[string]any{"type": "string", "enum": []any{"high", "medium", "low"}},
			"difficulty":          map[string]any{"type": "string", "enum": []any{"easy", "moderate", "challenging"}},
			"action_steps":        strList,
		},
		"required": []any{
			"title", "category", "description", "target_scholarships", "link",
			"deadline", "estimated_time", "priority", "difficulty", "action_steps",
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action":        turn.ActionSchema(turn.ActionAsk, turn.ActionClarify, turn.ActionSuggest, turn.ActionEnd),
			"question":      turn.QuestionSchema(),
			"profile_patch": turn.PatchSchema(),
			"note_to_user":  str,
			"suggestions":   map[string]any{"type": []any{"array", "null"}, "items": suggestion},
			"summary":       nullableString,
		},
		"required": []any{"action", "question", "profile_patch", "note_to_user", "suggestions", "summary"},
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
