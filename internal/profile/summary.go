package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/collegeai/internal/document"
)

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

const emptySummary = "Limited profile information available."

type summaryField struct {
	label string
	path  string
}

type summarySection struct {
	title  string
	fields []summaryField
}

var summarySections = []summarySection{
	{"ACADEMIC PROFILE", []summaryField{
		{"GPA (Unweighted)", "gpa_unweighted"},
		{"GPA (Weighted)", "gpa_weighted"},
		{"SAT", "sat.best_total"},
		{"ACT", "act.best_composite"},
		{"Intended Major", "intended_major_primary"},
		{"Class Rank", "class_rank"},
	}},
	{"DEMOGRAPHICS", []summaryField{
		{"Residency", "residency_status"},
		{"State", "scholarships.state_of_residence"},
		{"Ethnicity", "scholarships.ethnicity"},
		{"Household Income", "scholarships.household_income_range"},
	}},
	{"CURRENT ACTIVITIES & AVAILABILITY", []summaryField{
		{"Extracurriculars", "prep.current_extracurriculars"},
		{"Leadership", "prep.leadership_roles"},
		{"Work/Internship Experience", "prep.work_experience"},
		{"Volunteer/Service", "prep.volunteer_service"},
		{"Technical Skills", "prep.technical_skills"},
		{"Competitions/Awards", "prep.competitions_awards"},
		{"Available Hours/Week", "prep.available_hours_weekly"},
		{"College Start", "prep.timeline"},
	}},
}

// Summarize renders the academic, demographic and activity fields of a
// profile as labelled sections for a prompt. Unanswered fields are left out.
func Summarize(doc document.Document) string {
	var sections []string
	for _, sec := range summarySections {
		var lines []string
		for _, f := range sec.fields {
			v := document.Get(doc, f.path)
			if !document.IsAnswered(v) {
				continue
			}
			lines = append(lines, fmt.Sprintf("  - %s: %s", f.label, FormatValue(v)))
		}
		if len(lines) > 0 {
			sections = append(sections, sec.title+":\n"+strings.Join(lines, "\n"))
		}
	}
	if len(sections) == 0 {
		return emptySummary
	}

	summary := strings.Join(sections, "\n\n")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

// FormatValue renders a profile value for display: numbers without trailing
// zeros, lists joined with commas, mappings as JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
