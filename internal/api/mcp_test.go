package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Store:    store,
		Profiles: profile.NewManager(store),
		Locks:    NewClientLocks(),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_GetStudentFile(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if err := storage.Put(store, storage.IntakeProfiles, "c1", document.Document{"us_only": "Yes"}); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, mcpGetStudentFile(deps), "get_student_file", map[string]interface{}{"client_id": "c1"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var file map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &file); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if p, _ := file[storage.IntakeProfiles].(map[string]any); p["us_only"] != "Yes" {
		t.Errorf("intake_profiles = %v", file[storage.IntakeProfiles])
	}
	if file[storage.CVReviewResults] != chat.MarkerNotGenerated {
		t.Errorf("cv_review_results = %v, want %q", file[storage.CVReviewResults], chat.MarkerNotGenerated)
	}
}

func TestMCPTool_GetStudentFile_MissingClientID(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result := callTool(t, mcpGetStudentFile(deps), "get_student_file", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_PatchProfile(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	result := callTool(t, mcpPatchProfile(deps), "patch_profile", map[string]interface{}{
		"client_id": "c1",
		"ops":       `[{"path":"intended_major_primary","value":"Biology"},{"path":"act.best_composite","value":31}]`,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	doc, err := storage.Get(store, storage.IntakeProfiles, "c1")
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if doc["intended_major_primary"] != "Biology" {
		t.Errorf("intended_major_primary = %v", doc["intended_major_primary"])
	}
	if got := document.Get(doc, "act.best_composite"); got != float64(31) {
		t.Errorf("act.best_composite = %v", got)
	}
	if _, ok := doc["us_only"]; !ok {
		t.Error("patching a new client should start from the profile template")
	}
}

func TestMCPTool_PatchProfile_InvalidOps(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing ops", map[string]interface{}{"client_id": "c1"}},
		{"bad json", map[string]interface{}{"client_id": "c1", "ops": "[{"}},
		{"empty path", map[string]interface{}{"client_id": "c1", "ops": `[{"path":"","value":1}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, mcpPatchProfile(deps), "patch_profile", tt.args)
			if !result.IsError {
				t.Errorf("expected error result, got %s", toolText(t, result))
			}
		})
	}
}

func TestMCPTool_IntakeStatus(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	result := callTool(t, mcpIntakeStatus(deps), "intake_status", map[string]interface{}{"client_id": "c1"})
	if !result.IsError {
		t.Fatal("expected error for a client without a profile")
	}

	doc := profile.New()
	document.ApplyPatches(doc, []document.PatchOp{
		{Path: "us_only", Value: "Yes"},
		{Path: "residency_status", Value: "US citizen"},
	})
	document.MarkAsked(doc, "state_of_residence")
	if err := storage.Put(store, storage.IntakeProfiles, "c1", doc); err != nil {
		t.Fatal(err)
	}

	result = callTool(t, mcpIntakeStatus(deps), "intake_status", map[string]interface{}{"client_id": "c1"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var st intakeStatus
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if st.AllowFinish {
		t.Error("allow_finish = true with deep paths unfilled")
	}
	if st.NextPath != "applicant_type" {
		t.Errorf("next_path = %q, want applicant_type (state_of_residence was already asked)", st.NextPath)
	}
	if len(st.FilledPriority) != 2 {
		t.Errorf("filled priority = %v", st.FilledPriority)
	}

	deps.Mode = slots.ModeCore
	result = callTool(t, mcpIntakeStatus(deps), "intake_status", map[string]interface{}{"client_id": "c1"})
	st = intakeStatus{}
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatal(err)
	}
	if !st.AllowFinish || st.NextPath != "state_of_residence" {
		t.Errorf("core mode: allow_finish=%v next=%q, want true/state_of_residence", st.AllowFinish, st.NextPath)
	}
}
