package prep

import "github.com/kalambet/collegeai/internal/turn"

func textGate(id, text string) turn.Gate {
	return turn.Gate{Question: turn.Question{ID: id, Text: text, AnswerType: turn.AnswerText, Options: []string{}}}
}

// Gates are the activity questions asked before suggestions are generated.
var Gates = []turn.Gate{
	textGate("prep.current_extracurriculars", "What extracurricular activities are you currently involved in? (clubs, sports, arts, etc.)"),
	textGate("prep.leadership_roles", "Do you hold any leadership positions? If so, describe them."),
	textGate("prep.work_experience", "Do you have any work experience, internships, or research experience?"),
	textGate("prep.volunteer_service", "What volunteer or community service activities have you participated in?"),
	textGate("prep.technical_skills", "What technical skills do you have? (programming languages, software, tools, etc.)"),
	textGate("prep.competitions_awards", "Have you participated in any competitions or received any awards/honors?"),
	{Question: turn.Question{
		ID:         "prep.available_hours_weekly",
		Text:       "How many hours per week can you dedicate to scholarship prep activities?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"Less than 5 hours", "5-10 hours", "10-15 hours", "15-20 hours", "20+ hours"},
	}},
	{Question: turn.Question{
		ID:         "prep.timeline",
		Text:       "When do you plan to start college?",
		AnswerType: turn.AnswerChoice,
		Options:    []string{"Fall 2025", "Spring 2026", "Fall 2026", "Spring 2027", "Fall 2027", "Later"},
	}},
}
