// Package turn holds the types and helpers shared by every conversational
// agent: the result shape handed back to the caller, deterministic gating
// questions, and the copy-on-write answer application that starts each turn.
package turn

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/collegeai/internal/document"
)

// Action is the decision an agent made for one turn.
type Action string

const (
	ActionAsk       Action = "ASK"
	ActionClarify   Action = "CLARIFY"
	ActionFinish    Action = "FINISH"
	ActionEndNotUS  Action = "END_NOT_US"
	ActionRecommend Action = "RECOMMEND"
	ActionSuggest   Action = "SUGGEST"
	ActionEnd       Action = "END"
)

// AnswerType tells the caller how to collect the answer.
type AnswerType string

const (
	AnswerText        AnswerType = "text"
	AnswerNumber      AnswerType = "number"
	AnswerChoice      AnswerType = "choice"
	AnswerMultiChoice AnswerType = "multi_choice"
)

// Valid reports whether a is one of the known answer types.
func (a AnswerType) Valid() bool {
	switch a {
	case AnswerText, AnswerNumber, AnswerChoice, AnswerMultiChoice:
		return true
	}
	return false
}

// Question is presented to the user. ID is the dot-path the answer is
// written to.
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	AnswerType AnswerType `json:"answer_type"`
	Options    []string   `json:"options"`
}

// Result is what an agent returns for one turn. Payload carries the
// action-specific output (recommendations, suggestions) and is nil for
// question and terminal actions without data.
type Result[P any] struct {
	Action       Action             `json:"action"`
	Question     *Question          `json:"question"`
	ProfilePatch []document.PatchOp `json:"profile_patch"`
	NoteToUser   string             `json:"note_to_user"`
	Payload      *P                 `json:"payload,omitempty"`
}

// None is the payload type of agents that only ask questions.
type None struct{}

// Input is the caller's view of the previous turn.
type Input struct {
	Profile        document.Document
	LastQuestionID string
	// LastAnswer is nil on the first turn or when the caller has nothing to
	// report for LastQuestionID.
	LastAnswer *string
}

// Answered reports whether the input carries an answer for a question.
func (in Input) Answered() bool {
	return strings.TrimSpace(in.LastQuestionID) != "" && in.LastAnswer != nil
}

// Answer is a convenience for building Input.LastAnswer.
func Answer(s string) *string { return &s }

// DependsOn makes a gate reachable only when Path currently equals Equals.
type DependsOn struct {
	Path   string
	Equals any
}

// Gate is a deterministic question asked before any oracle delegation.
type Gate struct {
	Question  Question
	DependsOn *DependsOn
}

// NextGate returns the first gate whose precondition holds and whose path is
// not answered yet.
func NextGate(profile document.Document, gates []Gate) (Question, bool) {
	for _, g := range gates {
		if g.DependsOn != nil && !reflect.DeepEqual(document.Get(profile, g.DependsOn.Path), g.DependsOn.Equals) {
			continue
		}
		if document.IsAnswered(document.Get(profile, g.Question.ID)) {
			continue
		}
		q := g.Question
		if q.Options == nil {
			q.Options = []string{}
		}
		return q, true
	}
	return Question{}, false
}

var numericAnswer = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// PatchForAnswer converts a raw answer into the op that stores it. A blank
// answer produces no op. Non-negative decimal numbers are stored as float64.
func PatchForAnswer(questionID, answer string) []document.PatchOp {
	id := strings.TrimSpace(questionID)
	a := strings.TrimSpace(answer)
	if id == "" || a == "" {
		return nil
	}
	if numericAnswer.MatchString(a) {
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			return []document.PatchOp{{Path: id, Value: f}}
		}
	}
	return []document.PatchOp{{Path: id, Value: a}}
}

// Begin performs the common start of a turn. It copies the profile, applies
// the previous answer and records the question as asked. The returned ops
// reproduce every change on the caller's own copy.
func Begin(in Input) (document.Document, []document.PatchOp) {
	profile := document.Clone(in.Profile)
	if !in.Answered() {
		return profile, nil
	}
	ops := PatchForAnswer(in.LastQuestionID, *in.LastAnswer)
	if list, ok := document.WithAsked(profile, in.LastQuestionID); ok {
		ops = append(ops, document.PatchOp{Path: document.AskedPathsKey, Value: list})
	}
	document.ApplyPatches(profile, ops)
	return profile, ops
}

// DeclinedUS reports whether the profile records that the applicant is not
// looking for US colleges.
func DeclinedUS(profile document.Document) bool {
	switch v := document.Get(profile, "us_only").(type) {
	case bool:
		return !v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "no", "false", "n":
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
