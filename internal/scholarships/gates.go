package scholarships

import "github.com/kalambet/collegeai/internal/turn"

// Gates are the eligibility questions asked before any recommendation is
// generated. Answers live under the scholarships namespace.
var Gates = []turn.Gate{
	{Question: turn.Question{
		ID:         "scholarships.student_level",
		Text:       "What is your current student level for scholarship eligibility?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"High school senior", "High school junior", "College freshman", "Transfer applicant", "Other", "Skip"},
	}},
	{Question: turn.Question{
		ID:         "scholarships.citizenship",
		Text:       "What is your citizenship/residency status (for scholarship eligibility)?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"U.S. citizen", "Permanent resident", "International", "Other", "Prefer not to say", "Skip"},
	}},
	{Question: turn.Question{
		ID:         "scholarships.state_of_residence",
		Text:       "Which U.S. state do you live in (or are you applying from)?",
		AnswerType: turn.AnswerText,
		Options:    []string{"Skip"},
	}},
	{Question: turn.Question{
		ID:         "scholarships.household_income_range",
		Text:       "Rough household income range (helps need-based aid + some programs)?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"<$40k", "$40k–$80k", "$80k–$140k", "$140k+", "Not sure", "Prefer not to say", "Skip"},
	}},
	{Question: turn.Question{
		ID:         "scholarships.identity_scholarships_opt_in",
		Text:       "Do you want me to include identity-based scholarships (gender/ethnicity/etc.)?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"Yes", "No", "Prefer not to say"},
	}},
	{
		Question: turn.Question{
			ID:         "scholarships.ethnicity",
			Text:       "Which eligibility group(s) apply (for identity-based scholarships)?",
			AnswerType: turn.AnswerMultiChoice,
			Options: []string{
				"Asian",
				"Black/African American",
				"Hispanic/Latino",
				"Middle Eastern/North African",
				"Native/Indigenous",
				"Pacific Islander",
				"White",
				"Multiracial",
				"Prefer not to say",
				"Skip",
			},
		},
		DependsOn: &turn.DependsOn{Path: "scholarships.identity_scholarships_opt_in", Equals: "Yes"},
	},
}
