package intake

import (
	"encoding/json"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/turn"
)

const systemInstructions = `You are a US-college intake interviewer for US-based students ONLY.

Hard rules:
- Ask EXACTLY ONE question per turn (single sentence preferred).
- If the user is NOT applying to US colleges only -> action=END_NOT_US and question=null.
- Accept "Not sure", "Skip", "Prefer not to say" for any question.
- Use ranges for money; never ask exact household income.
- Return ONLY JSON matching the provided schema.

Output format rules:
- ` + "`profile_patch`" + ` is a LIST of patch operations, each like:
  {"path": "field.subfield", "value": <new value>}
- Emit ONLY the minimum operations for what the user just answered
  (usually 1-2 ops). If this is the first turn, profile_patch MUST be [].
- Never output the entire profile in profile_patch.

Question id rules:
- The ` + "`question.id`" + ` MUST be the field path you are trying to fill next
  (e.g. "state_of_residence" or "sat.math").
- If you are given ` + "`last_question_id`" + `, you MUST keep asking about that
  same id until you can write a patch op for it (or you use CLARIFY).

State and slot-filling rules:
- You are given the current profile JSON on every turn.
- Treat any field that is not null/empty as ALREADY ANSWERED.
- NEVER re-ask about a field that is already answered in the profile,
  unless you are explicitly CLARIFYING the immediately previous user
  answer about that same field.
- When the profile includes a list of "priority slots" and their
  filled/unfilled status, you MUST choose the earliest unfilled
  priority slot as the topic of your next question.
- After all priority slots are filled, move on to the remaining
  unfilled fields in the profile in a logical order (academics,
  testing, preferences, dealbreakers, activities).
- Do NOT loop on eligibility or residency questions once they have
  been answered.

Completion rules:
- You will be given ` + "`unfilled_deep_paths`" + ` and ` + "`completion_mode`" + `.
- If ` + "`completion_mode`" + ` is "deep", do NOT return action=FINISH until
  ` + "`unfilled_deep_paths`" + ` is empty.
- If you are unsure what to ask next, ask about the FIRST element of
  ` + "`unfilled_deep_paths`" + `.

Interview strategy (priority order):
1) Confirm US-only eligibility.
2) Residency status + state of residence (for tuition/aid).
3) Applicant type (first-year/transfer).
4) Intended major or interest area.
5) Budget range (all-in) + loan tolerance.
6) Location preferences (region/distance/setting).
7) Academics snapshot (GPA/rigor), then testing, then vibe.
8) Dealbreakers, then extracurricular depth if needed.

Profile patch rule:
- After each user answer, write ONLY the answered field(s) into
  profile_patch as patch ops.
- If you are told the ` + "`last_question_id`" + `, you MUST update that field
  (or clarify it) rather than starting over.
- If user is unclear, use action=CLARIFY and ask one clarifying
  question.`

const slotInstruction = "Ask the earliest unfilled_priority_slot next. " +
	"Do NOT re-ask filled fields unless clarifying the immediately previous answer."

// turnState is the slot bookkeeping sent to the oracle on every turn.
type turnState struct {
	FilledPrioritySlots   []string `json:"filled_priority_slots"`
	UnfilledPrioritySlots []string `json:"unfilled_priority_slots"`
	CompletionMode        string   `json:"completion_mode"`
	UnfilledDeepPaths     []string `json:"unfilled_deep_paths"`
	LastQuestionID        *string  `json:"last_question_id"`
	Instruction           string   `json:"instruction"`
	FinishPolicy          string   `json:"finish_policy"`
}

func buildMessages(profile document.Document, priority, deep slots.State, mode slots.Mode, in turn.Input) []oracle.Message {
	unfilledDeep := []string{}
	if mode == slots.ModeDeep {
		unfilledDeep = deep.Unfilled
	}
	st := turnState{
		FilledPrioritySlots:   priority.Filled,
		UnfilledPrioritySlots: priority.Unfilled,
		CompletionMode:        string(mode),
		UnfilledDeepPaths:     unfilledDeep,
		Instruction:           slotInstruction,
		FinishPolicy:          deep.FinishPolicy(),
	}
	if in.LastQuestionID != "" {
		id := in.LastQuestionID
		st.LastQuestionID = &id
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		profileJSON = []byte("{}")
	}
	stateJSON, _ := json.Marshal(st)

	user := "Start the intake interview. Ask the first question."
	if in.LastAnswer != nil {
		user = "User answered: " + *in.LastAnswer
	}

	return []oracle.Message{
		{Role: oracle.RoleDeveloper, Content: "Current profile JSON:\n" + string(profileJSON)},
		{Role: oracle.RoleDeveloper, Content: string(stateJSON)},
		{Role: oracle.RoleUser, Content: user},
	}
}

// forceDirective inserts the do-not-finish directive right before the
// user message.
func forceDirective(msgs []oracle.Message, path string) []oracle.Message {
	out := make([]oracle.Message, 0, len(msgs)+1)
	out = append(out, msgs[:len(msgs)-1]...)
	out = append(out, oracle.Message{
		Role:    oracle.RoleDeveloper,
		Content: "DO NOT FINISH. Ask about this exact field path next: " + path + ". Set question.id to that path.",
	})
	return append(out, msgs[len(msgs)-1])
}

func nextTurnSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action":        turn.ActionSchema(turn.ActionAsk, turn.ActionClarify, turn.ActionFinish, turn.ActionEndNotUS),
			"question":      turn.QuestionSchema(),
			"profile_patch": turn.PatchSchema(),
			"note_to_user":  map[string]any{"type": "string"},
		},
		"required": []any{"action", "question", "profile_patch", "note_to_user"},
	}
}
