package turn

import (
	"fmt"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
)

// MaxPatchOps bounds the number of ops the oracle may emit per turn.
const MaxPatchOps = 12

// ActionSchema returns the enum schema for the given actions.
func ActionSchema(actions ...Action) map[string]any {
	enum := make([]any, len(actions))
	for i, a := range actions {
		enum[i] = string(a)
	}
	return map[string]any{"type": "string", "enum": enum}
}

// QuestionSchema returns the nullable question object schema.
func QuestionSchema() map[string]any {
	return map[string]any{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"id":          map[string]any{"type": "string"},
			"text":        map[string]any{"type": "string", "minLength": 1},
			"answer_type": map[string]any{"type": "string", "enum": []any{"text", "number", "choice", "multi_choice"}},
			"options":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"id", "text", "answer_type", "options"},
	}
}

// PatchSchema returns the profile_patch list schema. Ops are kept small
// (one path, one value) so the model never has to echo the whole profile.
func PatchSchema() map[string]any {
	return map[string]any{
		"type":     "array",
		"maxItems": MaxPatchOps,
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "minLength": 1},
				"value": map[string]any{"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "number"},
					map[string]any{"type": "boolean"},
					map[string]any{"type": "null"},
					map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
				}},
			},
			"required": []any{"path", "value"},
		},
	}
}

// Wire is the oracle-side encoding of a turn shared by every agent schema.
// Agent outputs embed it and add their payload fields.
type Wire struct {
	Action       Action    `json:"action"`
	Question     *Question `json:"question"`
	ProfilePatch []any     `json:"profile_patch"`
	NoteToUser   string    `json:"note_to_user"`
}

// Ops returns the well-formed patch ops of the wire turn.
func (w Wire) Ops() []document.PatchOp {
	return document.ParsePatchOps(w.ProfilePatch)
}

// Check validates the action against allowed and the question shape.
func (w Wire) Check(allowed ...Action) error {
	ok := false
	for _, a := range allowed {
		if w.Action == a {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("unexpected action %q", w.Action)
	}
	if len(w.ProfilePatch) > MaxPatchOps {
		return fmt.Errorf("profile_patch has %d ops, max %d", len(w.ProfilePatch), MaxPatchOps)
	}
	if w.Question != nil {
		if strings.TrimSpace(w.Question.Text) == "" {
			return fmt.Errorf("question text is empty")
		}
		if !w.Question.AnswerType.Valid() {
			return fmt.Errorf("unknown answer_type %q", w.Question.AnswerType)
		}
		if w.Question.Options == nil {
			w.Question.Options = []string{}
		}
	}
	if w.Action == ActionAsk && w.Question == nil {
		return fmt.Errorf("ASK without a question")
	}
	return nil
}
