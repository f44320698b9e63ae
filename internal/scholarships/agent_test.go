package scholarships

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/oracle/oracletest"
	"github.com/kalambet/collegeai/internal/turn"
)

// gatedProfile has every eligibility question answered.
func gatedProfile() document.Document {
	return document.Document{
		"us_only": true,
		"scholarships": map[string]any{
			"student_level":                "High school senior",
			"citizenship":                  "U.S. citizen",
			"state_of_residence":           "Texas",
			"household_income_range":       "Not sure",
			"identity_scholarships_opt_in": "No",
		},
	}
}

func reachableWeb(urls ...string) *fakeWeb {
	w := &fakeWeb{reachable: map[string]bool{}}
	for _, u := range urls {
		w.reachable[u] = true
	}
	return w
}

func TestNextEndNotUS(t *testing.T) {
	script := oracletest.New()
	a := New(script, NewVerifier(reachableWeb(), 8, 1, nil))

	for _, v := range []any{false, "No"} {
		in := turn.Input{Profile: document.Document{"us_only": v}}
		res, _, err := a.Next(context.Background(), in, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Action != turn.ActionEndNotUS {
			t.Errorf("us_only=%v: action = %s, want END_NOT_US", v, res.Action)
		}
	}
	if script.Calls() != 0 {
		t.Errorf("oracle called %d times", script.Calls())
	}
}

func TestNextGatingOrder(t *testing.T) {
	script := oracletest.New()
	a := New(script, NewVerifier(reachableWeb(), 8, 1, nil))

	profile := document.Document{"us_only": true}
	answers := map[string]string{
		"scholarships.student_level":                "High school senior",
		"scholarships.citizenship":                  "U.S. citizen",
		"scholarships.state_of_residence":           "Skip",
		"scholarships.household_income_range":       "<$40k",
		"scholarships.identity_scholarships_opt_in": "Yes",
		"scholarships.ethnicity":                    "Hispanic/Latino",
	}
	want := []string{
		"scholarships.student_level",
		"scholarships.citizenship",
		"scholarships.state_of_residence",
		"scholarships.household_income_range",
		"scholarships.identity_scholarships_opt_in",
		"scholarships.ethnicity",
	}

	var asked []string
	in := turn.Input{Profile: profile}
	for range want {
		res, next, err := a.Next(context.Background(), in, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Action != turn.ActionAsk || res.Question == nil {
			t.Fatalf("action = %s, want ASK with question", res.Action)
		}
		asked = append(asked, res.Question.ID)
		in = turn.Input{Profile: next, LastQuestionID: res.Question.ID, LastAnswer: turn.Answer(answers[res.Question.ID])}
	}
	if diff := cmp.Diff(want, asked); diff != "" {
		t.Errorf("gating order mismatch (-want +got):\n%s", diff)
	}
	if script.Calls() != 0 {
		t.Errorf("oracle called %d times during gating", script.Calls())
	}
}

func TestNextEthnicitySkippedWithoutOptIn(t *testing.T) {
	a := New(nil, NewVerifier(reachableWeb(), 8, 1, nil))
	res, _, err := a.Next(context.Background(), turn.Input{Profile: gatedProfile()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionClarify || res.Question != nil {
		t.Errorf("got %s with question %v, want CLARIFY without question", res.Action, res.Question)
	}
	if !strings.Contains(res.NoteToUser, "OPENAI_API_KEY") {
		t.Errorf("note = %q", res.NoteToUser)
	}
}

func TestNextRecommendVerifies(t *testing.T) {
	script := oracletest.New(`{
		"action": "RECOMMEND",
		"question": null,
		"profile_patch": [{"path": "scholarships.target_level", "value": "undergraduate"}],
		"note_to_user": "Here are some options.",
		"recommendations": [
			{"name": "Good", "college": "UT Austin", "kind": "institutional", "provider": null, "award": "$5,000",
			 "deadline": "December 1st, 2026", "link": "https://ut.example.edu/aid", "why_suitable": "fits",
			 "key_eligibility": ["Texas resident"], "how_to_apply": ["Apply online"]},
			{"name": "Broken", "college": null, "kind": "external", "provider": null, "award": null,
			 "deadline": null, "link": "https://gone.example.org", "why_suitable": "fits",
			 "key_eligibility": [], "how_to_apply": []}
		]
	}`)
	a := New(script, NewVerifier(reachableWeb("https://ut.example.edu/aid"), 8, 1, nil))

	in := turn.Input{
		Profile:        gatedProfile(),
		LastQuestionID: "scholarships.notes",
		LastAnswer:     turn.Answer("engineering"),
	}
	advisor := document.Document{
		"summary": "Strong STEM profile.",
		"recommendations": []any{
			map[string]any{"college_name": "UT Austin", "admission_website": "https://admissions.utexas.edu/"},
			map[string]any{"college_name": "Nowhere", "scholarship_website": "ftp://nowhere"},
		},
	}
	res, profile, err := a.Next(context.Background(), in, advisor)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionRecommend || res.Payload == nil {
		t.Fatalf("action = %s payload = %v, want RECOMMEND with payload", res.Action, res.Payload)
	}
	if diff := cmp.Diff([]string{"Good"}, names(res.Payload.Recommendations)); diff != "" {
		t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
	}
	if dl := res.Payload.Recommendations[0].Deadline; dl == nil || *dl != "2026-12-01" {
		t.Errorf("deadline = %v, want 2026-12-01", dl)
	}

	if len(res.ProfilePatch) < 3 || res.ProfilePatch[0].Path != "scholarships.notes" {
		t.Errorf("patch = %v, want user answer first", res.ProfilePatch)
	}
	if got := res.ProfilePatch[len(res.ProfilePatch)-1]; got.Path != "scholarships.target_level" {
		t.Errorf("last op = %v, want the model op", got)
	}
	if document.Get(profile, "scholarships.target_level") != "undergraduate" {
		t.Error("model op not applied to returned profile")
	}
	if document.Get(in.Profile, "scholarships.notes") != nil {
		t.Error("caller profile mutated")
	}

	req := script.Requests[0]
	if req.Name != schemaName || req.Schema == nil {
		t.Errorf("request name/schema = %q/%v", req.Name, req.Schema != nil)
	}
	ctx := req.Messages[0].Content
	for _, want := range []string{"Strong STEM profile.", `"UT Austin"`, "https://admissions.utexas.edu/", "<= 8"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q", want)
		}
	}
	if _, ok := collegeURLs(advisor)["Nowhere"]; ok {
		t.Error("non-http URL listed as an official page")
	}
}

func TestNextRecommendAllDroppedClarifies(t *testing.T) {
	script := oracletest.New(`{
		"action": "RECOMMEND",
		"question": null,
		"profile_patch": [],
		"note_to_user": "done",
		"recommendations": [
			{"name": "X", "college": null, "kind": "external", "provider": null, "award": null,
			 "deadline": null, "link": "not-a-url", "why_suitable": "", "key_eligibility": [], "how_to_apply": []}
		]
	}`)
	a := New(script, NewVerifier(reachableWeb(), 8, 1, nil))
	res, _, err := a.Next(context.Background(), turn.Input{Profile: gatedProfile()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionClarify {
		t.Errorf("action = %s, want CLARIFY", res.Action)
	}
	if res.NoteToUser != noteUnverified {
		t.Errorf("note = %q", res.NoteToUser)
	}
	if res.Question != nil || res.Payload != nil {
		t.Errorf("question/payload = %v/%v, want neither", res.Question, res.Payload)
	}
}

func TestNextOracleAsk(t *testing.T) {
	script := oracletest.New(`{"action":"ASK","question":{"id":"scholarships.intended_major","text":"What major?","answer_type":"text","options":null},"profile_patch":[],"note_to_user":"","recommendations":null}`)
	a := New(script, NewVerifier(reachableWeb(), 8, 1, nil))
	res, _, err := a.Next(context.Background(), turn.Input{Profile: gatedProfile()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != turn.ActionAsk || res.Question == nil || res.Question.ID != "scholarships.intended_major" {
		t.Fatalf("got %+v", res)
	}
	if res.Question.Options == nil {
		t.Error("options should be an empty list, not nil")
	}
	if res.Payload != nil {
		t.Error("ASK carries a payload")
	}
}

func TestNextSchemaErrors(t *testing.T) {
	tests := []string{
		`not json at all`,
		`{"action":"SHOUT","question":null,"profile_patch":[],"note_to_user":"","recommendations":null}`,
		`{"action":"RECOMMEND","question":null,"profile_patch":[],"note_to_user":"","recommendations":[{"name":"","kind":"external","link":"https://x.org"}]}`,
		`{"action":"RECOMMEND","question":null,"profile_patch":[],"note_to_user":"","recommendations":[{"name":"A","kind":"lottery","link":"https://x.org"}]}`,
	}
	for _, raw := range tests {
		a := New(oracletest.New(raw), NewVerifier(reachableWeb(), 8, 1, nil))
		_, _, err := a.Next(context.Background(), turn.Input{Profile: gatedProfile()}, nil)
		var se *oracle.SchemaError
		if !errors.As(err, &se) {
			t.Errorf("Next(%s) error = %v, want SchemaError", raw, err)
		}
	}
}
