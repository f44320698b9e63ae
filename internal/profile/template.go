// Package profile owns the intake profile: its template, the ordered field
// paths the intake interview walks through, a cached per-client manager over
// the document store, and a prompt-ready summary.
package profile

import "github.com/kalambet/collegeai/internal/document"

// PrioritySlots are the fields the intake interview fills first, in order.
var PrioritySlots = []string{
	"us_only",
	"residency_status",
	"state_of_residence",
	"applicant_type",
	"intended_major_primary",
	"budget_range_all_in",
	// At least one of these two should get filled early.
	"regions_open_to",
	"distance_preference",
}

// DeepPaths is the full-depth intake order. The oracle uses these paths as
// question ids and patch paths.
var DeepPaths = []string{
	// Gatekeeping and applicant type
	"us_only",
	"residency_status",
	"state_of_residence",
	"applicant_type",
	"entry_term",
	"hs_grad_year",
	"college_gpa",

	// Major and goals
	"intended_major_primary",
	"intended_major_alternates",
	"major_certainty",
	"career_goal",
	"grad_school_plan",

	// Budget and aid
	"budget_range_all_in",
	"loan_tolerance",
	"in_state_importance",
	"fafsa_intent",
	"css_profile_willing",

	// Preferences
	"regions_open_to",
	"distance_preference",
	"setting_preference",
	"campus_size_pref",
	"vibe_pref",

	// Academics
	"gpa_unweighted",
	"gpa_weighted",
	"class_rank",
	"highest_math",
	"highest_science",
	"rigor_tags",

	// Testing
	"test_strategy",
	"sat.status",
	"sat.best_total",
	"sat.ebrw",
	"sat.math",
	"act.status",
	"act.best_composite",

	// Constraints and activities
	"hard_dealbreakers",
	"soft_preferences",
	"top_activities",

	// Output preference
	"want_reach_match_safety",
	"list_size_target",
}

// New returns a fresh intake profile with every known field present and
// unanswered.
func New() document.Document {
	return document.Document{
		"_meta": map[string]any{"asked_paths": []any{}},

		"us_only":            nil,
		"residency_status":   nil,
		"state_of_residence": nil,

		"applicant_type": nil,
		"entry_term":     nil,
		"hs_grad_year":   nil,
		"college_gpa":    nil,

		"gpa_unweighted":  nil,
		"gpa_weighted":    nil,
		"class_rank":      nil,
		"highest_math":    nil,
		"highest_science": nil,
		"rigor_tags":      []any{},

		"sat":           map[string]any{"status": nil, "best_total": nil, "ebrw": nil, "math": nil},
		"act":           map[string]any{"status": nil, "best_composite": nil},
		"test_strategy": nil,

		"intended_major_primary":    nil,
		"intended_major_alternates": []any{},
		"major_certainty":           nil,
		"career_goal":               nil,
		"grad_school_plan":          nil,

		"regions_open_to":     []any{},
		"distance_preference": nil,
		"setting_preference":  nil,
		"campus_size_pref":    nil,
		"vibe_pref":           nil,

		"budget_range_all_in": nil,
		"loan_tolerance":      nil,
		"in_state_importance": nil,
		"fafsa_intent":        nil,
		"css_profile_willing": nil,

		"hard_dealbreakers": []any{},
		"soft_preferences":  []any{},

		"top_activities": []any{},

		"want_reach_match_safety": nil,
		"list_size_target":        nil,
	}
}
