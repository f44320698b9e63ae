package turn

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/slots"
)

func TestPatchForAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   []document.PatchOp
	}{
		{"3.8", []document.PatchOp{{Path: "gpa", Value: 3.8}}},
		{" 1450 ", []document.PatchOp{{Path: "gpa", Value: 1450.0}}},
		{".5", []document.PatchOp{{Path: "gpa", Value: 0.5}}},
		{"-2", []document.PatchOp{{Path: "gpa", Value: "-2"}}},
		{"1.2.3", []document.PatchOp{{Path: "gpa", Value: "1.2.3"}}},
		{"Not sure", []document.PatchOp{{Path: "gpa", Value: "Not sure"}}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := PatchForAnswer("gpa", tt.answer)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("PatchForAnswer(%q) mismatch (-want +got):\n%s", tt.answer, diff)
		}
	}
	if ops := PatchForAnswer("", "yes"); ops != nil {
		t.Errorf("PatchForAnswer with empty id = %v, want nil", ops)
	}
}

func TestBeginCopyOnWrite(t *testing.T) {
	orig := document.Document{"sat": map[string]any{"math": nil}}
	profile, ops := Begin(Input{Profile: orig, LastQuestionID: "sat.math", LastAnswer: Answer("720")})

	if document.Get(orig, "sat.math") != nil {
		t.Errorf("caller profile mutated: %v", orig)
	}
	if document.Get(profile, "sat.math") != 720.0 {
		t.Errorf("sat.math = %v, want 720", document.Get(profile, "sat.math"))
	}

	replay := document.Clone(orig)
	document.ApplyPatches(replay, ops)
	if diff := cmp.Diff(profile, replay); diff != "" {
		t.Errorf("ops do not reproduce the turn's changes (-turn +replay):\n%s", diff)
	}
}

func TestBeginFirstTurnExempt(t *testing.T) {
	profile, ops := Begin(Input{Profile: document.Document{}, LastQuestionID: "us_only"})
	if len(ops) != 0 {
		t.Errorf("ops = %v, want none without an answer", ops)
	}
	if len(document.AskedPaths(profile)) != 0 {
		t.Errorf("asked paths recorded without an answer: %v", document.AskedPaths(profile))
	}
}

func TestBeginBlankAnswerStillMarksAsked(t *testing.T) {
	profile, _ := Begin(Input{Profile: document.Document{}, LastQuestionID: "career_goal", LastAnswer: Answer("")})
	if document.Get(profile, "career_goal") != nil {
		t.Errorf("blank answer stored: %v", document.Get(profile, "career_goal"))
	}
	if !document.AskedSet(profile)["career_goal"] {
		t.Error("career_goal not marked asked")
	}
}

func TestEndToEndSkipAdvancesTracker(t *testing.T) {
	ordered := []string{"us_only", "state"}

	profile, _ := Begin(Input{Profile: document.Document{}, LastQuestionID: "us_only", LastAnswer: Answer("Skip")})

	if profile["us_only"] != "Skip" {
		t.Errorf("us_only = %v, want Skip", profile["us_only"])
	}
	if !document.AskedSet(profile)["us_only"] {
		t.Error("asked_paths does not contain us_only")
	}
	st := slots.Compute(profile, ordered, document.AskedSet(profile), slots.ModeDeep)
	if diff := cmp.Diff([]string{"state"}, st.Unfilled); diff != "" {
		t.Errorf("Unfilled mismatch (-want +got):\n%s", diff)
	}
}

func TestNextGateDependsOn(t *testing.T) {
	gates := []Gate{
		{Question: Question{ID: "s.opt_in", Text: "Opt in?", AnswerType: AnswerChoice, Options: []string{"Yes", "No"}}},
		{
			Question:  Question{ID: "s.ethnicity", Text: "Which?", AnswerType: AnswerMultiChoice},
			DependsOn: &DependsOn{Path: "s.opt_in", Equals: "Yes"},
		},
		{Question: Question{ID: "s.last", Text: "Last", AnswerType: AnswerText}},
	}

	q, ok := NextGate(document.Document{}, gates)
	if !ok || q.ID != "s.opt_in" {
		t.Fatalf("first gate = %q, %v; want s.opt_in", q.ID, ok)
	}

	declined := document.Document{"s": map[string]any{"opt_in": "No"}}
	q, _ = NextGate(declined, gates)
	if q.ID != "s.last" {
		t.Errorf("gate after No = %q, want s.last", q.ID)
	}

	accepted := document.Document{"s": map[string]any{"opt_in": "Yes"}}
	q, _ = NextGate(accepted, gates)
	if q.ID != "s.ethnicity" {
		t.Errorf("gate after Yes = %q, want s.ethnicity", q.ID)
	}
	if q.Options == nil {
		t.Error("Options should be an empty list, not nil")
	}

	done := document.Document{"s": map[string]any{"opt_in": "No", "last": "x"}}
	if _, ok := NextGate(done, gates); ok {
		t.Error("NextGate reported a question when all gates are answered")
	}
}

func TestDeclinedUS(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{false, true},
		{true, false},
		{"No", true},
		{" n ", true},
		{"Yes", false},
		{"Skip", false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := DeclinedUS(document.Document{"us_only": tt.v}); got != tt.want {
			t.Errorf("DeclinedUS(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("héllo", 2); got != "h" {
		t.Errorf("Truncate mid-rune = %q, want h", got)
	}
}
