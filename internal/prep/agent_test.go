package prep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle/oracletest"
	"github.com/kalambet/collegeai/internal/turn"
)

func answeredProfile() document.Document {
	doc := document.Document{"gpa_unweighted": 3.9, "intended_major_primary": "Biology"}
	for _, g := range Gates {
		document.Set(doc, g.Question.ID, "some answer")
	}
	document.Set(doc, "prep.available_hours_weekly", "5-10 hours")
	return doc
}

func suggestReply(n int) string {
	var items []string
	for i := range n {
		items = append(items, fmt.Sprintf(`{"title":"Idea %d","category":"program","description":"d","target_scholarships":["Gates"],`+
			`"link":null,"deadline":null,"estimated_time":"2 months","priority":"high","difficulty":"moderate","action_steps":["apply"]}`, i))
	}
	return `{"action":"SUGGEST","question":null,"profile_patch":[{"path":"prep.focus","value":"research"}],"note_to_user":"Here you go.",` +
		`"suggestions":[` + strings.Join(items, ",") + `],"summary":"Focus on research."}`
}

func TestGatesInOrder(t *testing.T) {
	script := oracletest.New()
	a := New(script)

	in := turn.Input{Profile: document.Document{}}
	for i, g := range Gates {
		res, doc, err := a.Next(context.Background(), in, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Action != turn.ActionAsk || res.Question.ID != g.Question.ID {
			t.Fatalf("turn %d: got %s %v, want ASK %s", i, res.Action, res.Question, g.Question.ID)
		}
		if res.NoteToUser != noteGate {
			t.Errorf("note = %q", res.NoteToUser)
		}
		in = turn.Input{Profile: doc, LastQuestionID: res.Question.ID, LastAnswer: turn.Answer("answer")}
	}
	if script.Calls() != 0 {
		t.Errorf("oracle called %d times during gating", script.Calls())
	}
}

func TestSuggest(t *testing.T) {
	script := oracletest.New(suggestReply(20))
	a := New(script, WithMaxSuggestions(5))

	stored := document.Document{"recommendations": []any{
		map[string]any{"name": "Gates Scholarship", "provider": "Gates Foundation", "kind": "external", "award": nil,
			"deadline": "2026-09-15", "key_eligibility": []any{"Pell eligible", "3.3 GPA", "Leadership", "Minority"}},
	}}
	res, doc, err := a.Next(context.Background(), turn.Input{Profile: answeredProfile()}, stored)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionSuggest || res.Payload == nil || res.Question != nil {
		t.Fatalf("got %+v", res)
	}
	if len(res.Payload.Suggestions) != 5 {
		t.Errorf("suggestions = %d, want capped at 5", len(res.Payload.Suggestions))
	}
	if doc["prep"].(map[string]any)["focus"] != "research" {
		t.Errorf("model patch not applied: %v", doc["prep"])
	}

	req := script.Requests[0]
	if req.Temperature == nil || *req.Temperature != 0.7 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	msg := req.Messages[0].Content
	for _, want := range []string{
		"ACADEMIC PROFILE:\n  - GPA (Unweighted): 3.9",
		"1. Gates Scholarship\n   Provider: Gates Foundation\n   Type: external\n   Award: Varies\n   Deadline: 2026-09-15",
		"Key Requirements: Pell eligible; 3.3 GPA; Leadership\n",
		"Provide up to 5 prioritized suggestions",
	} {
		if !strings.Contains(msg+"\n", want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNoScholarshipsText(t *testing.T) {
	if got := formatScholarships(nil); got != noScholarships {
		t.Errorf("formatScholarships(nil) = %q", got)
	}
}

func TestSoftErrors(t *testing.T) {
	long := strings.Repeat("x", 300)
	tests := []struct {
		name   string
		script *oracletest.Script
	}{
		{"transport", (&oracletest.Script{}).Fail(errors.New(long))},
		{"parse", oracletest.New("not json at all")},
		{"bad category", oracletest.New(strings.Replace(suggestReply(1), `"program"`, `"vacation"`, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := turn.Input{Profile: answeredProfile(), LastQuestionID: "prep.timeline", LastAnswer: turn.Answer("Fall 2026")}
			res, doc, err := New(tt.script).Next(context.Background(), in, nil)
			if err != nil {
				t.Fatalf("error escaped: %v", err)
			}
			if res.Action != turn.ActionClarify || !strings.HasPrefix(res.NoteToUser, errorPrefix) {
				t.Errorf("got %s %q", res.Action, res.NoteToUser)
			}
			if len(res.NoteToUser) > len(errorPrefix)+maxErrorChars {
				t.Errorf("note too long: %d", len(res.NoteToUser))
			}
			if document.Get(doc, "prep.timeline") != "Fall 2026" || len(res.ProfilePatch) == 0 {
				t.Errorf("answer lost on soft error: %v", res.ProfilePatch)
			}
		})
	}
}

func TestNoOracle(t *testing.T) {
	res, _, err := New(nil).Next(context.Background(), turn.Input{Profile: answeredProfile()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionClarify || res.NoteToUser != noteNoOracle {
		t.Errorf("got %s %q", res.Action, res.NoteToUser)
	}
}
