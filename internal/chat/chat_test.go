package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/oracle/oracletest"
	"github.com/kalambet/collegeai/internal/storage"
)

func staticSource(name string, all map[string]document.Document, err error) Source {
	return Source{Name: name, Load: func() (map[string]document.Document, error) { return all, err }}
}

func TestAggregateMarkers(t *testing.T) {
	sources := []Source{
		staticSource("intake_profiles", map[string]document.Document{"c1": {"us_only": "Yes"}}, nil),
		staticSource("advisor_results", nil, storage.ErrStoreNotFound),
		staticSource("cv_review_results", map[string]document.Document{"other": {"x": 1.0}}, nil),
		staticSource("prep_suggestions", map[string]document.Document{"c1": {}}, nil),
		staticSource("scholarships_profiles", nil, storage.ErrMalformed),
		staticSource("scholarship_recommendations", nil, errors.New("permission denied")),
	}
	got := Aggregate("c1", sources)
	want := map[string]any{
		"intake_profiles":             document.Document{"us_only": "Yes"},
		"advisor_results":             MarkerNotGenerated,
		"cv_review_results":           MarkerNoData,
		"prep_suggestions":            MarkerNoData,
		"scholarships_profiles":       MarkerReadError,
		"scholarship_recommendations": MarkerReadError,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreSources(t *testing.T) {
	store, err := storage.OpenFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Put(store, storage.IntakeProfiles, "c1", document.Document{"career_goal": "nurse"}); err != nil {
		t.Fatal(err)
	}
	got := Aggregate("c1", StoreSources(store, storage.ContextStores...))
	if len(got) != len(storage.ContextStores) {
		t.Fatalf("got %d keys", len(got))
	}
	if doc, ok := got[storage.IntakeProfiles].(document.Document); !ok || doc["career_goal"] != "nurse" {
		t.Errorf("intake = %v", got[storage.IntakeProfiles])
	}
	if got[storage.AdvisorResults] != MarkerNotGenerated {
		t.Errorf("advisor = %v", got[storage.AdvisorResults])
	}
}

func TestReply(t *testing.T) {
	script := oracletest.New("Stanford is a reach.")
	a := New(script, WithHistoryLimit(2))

	history := []oracle.Message{
		{Role: oracle.RoleUser, Content: "q1"},
		{Role: oracle.RoleAssistant, Content: "a1"},
		{Role: oracle.RoleUser, Content: "q2"},
		{Role: oracle.RoleAssistant, Content: "a2"},
	}
	answer, newHistory, err := a.Reply(context.Background(), "Is Stanford a reach?", map[string]any{"advisor_results": MarkerNotGenerated}, history)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Stanford is a reach." {
		t.Errorf("answer = %q", answer)
	}
	wantHistory := []oracle.Message{
		{Role: oracle.RoleUser, Content: "Is Stanford a reach?"},
		{Role: oracle.RoleAssistant, Content: "Stanford is a reach."},
	}
	if diff := cmp.Diff(wantHistory, newHistory); diff != "" {
		t.Errorf("returned history not trimmed to the limit (-want +got):\n%s", diff)
	}
	if len(history) != 4 {
		t.Errorf("caller history modified: %d messages", len(history))
	}

	req := script.Requests[0]
	if req.Schema != nil {
		t.Error("chat must request free text")
	}
	if !strings.Contains(req.Instructions, "=== STUDENT FILE DATA ===\n{\n  \"advisor_results\": \"File not generated yet.\"") {
		t.Errorf("instructions missing file data:\n%s", req.Instructions)
	}
	wantMsgs := []oracle.Message{
		{Role: oracle.RoleUser, Content: "q2"},
		{Role: oracle.RoleAssistant, Content: "a2"},
		{Role: oracle.RoleUser, Content: "Is Stanford a reach?"},
	}
	if diff := cmp.Diff(wantMsgs, req.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestReplyOpeningPrompt(t *testing.T) {
	script := oracletest.New("Welcome back!")
	if _, _, err := New(script).Reply(context.Background(), ExistingUserLogin, nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := script.Requests[0].Messages[0].Content; !strings.HasPrefix(got, "I am logging back in.") {
		t.Errorf("opening prompt not expanded: %q", got)
	}
}

func TestReplyErrors(t *testing.T) {
	if _, _, err := New(nil).Reply(context.Background(), "hi", nil, nil); !errors.Is(err, oracle.ErrNoOracle) {
		t.Errorf("nil oracle: %v", err)
	}
	if _, _, err := New(oracletest.New("   ")).Reply(context.Background(), "hi", nil, nil); !errors.Is(err, oracle.ErrEmptyOutput) {
		t.Errorf("blank answer: %v", err)
	}
}
