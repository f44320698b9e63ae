package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplyPatchesIdempotent(t *testing.T) {
	ops := []PatchOp{
		{Path: "sat.math", Value: 720.0},
		{Path: "rigor_tags", Value: []any{"AP", "IB"}},
		{Path: "us_only", Value: true},
	}

	once := Document{}
	ApplyPatches(once, ops)

	twice := Document{}
	ApplyPatches(twice, ops)
	ApplyPatches(twice, ops)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("applying twice changed the document (-once +twice):\n%s", diff)
	}
}

func TestApplyPatchesLaterOpWins(t *testing.T) {
	doc := Document{}
	ApplyPatches(doc, []PatchOp{
		{Path: "major", Value: "History"},
		{Path: "major", Value: "Physics"},
	})
	if got := doc["major"]; got != "Physics" {
		t.Errorf("major = %v, want Physics", got)
	}
}

func TestApplyPatchesOverwritesScalarIntermediate(t *testing.T) {
	doc := Document{"sat": "not taken"}
	ApplyPatches(doc, []PatchOp{{Path: "sat.math", Value: 700.0}})

	want := Document{"sat": map[string]any{"math": 700.0}}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestApplyPatchesSkipsEmptyPaths(t *testing.T) {
	doc := Document{"a": 1.0}
	ApplyPatches(doc, []PatchOp{{Path: "", Value: "x"}, {Path: "   ", Value: "y"}})
	if diff := cmp.Diff(Document{"a": 1.0}, doc); diff != "" {
		t.Errorf("document changed (-want +got):\n%s", diff)
	}
}

func TestParsePatchOpsSkipsMalformed(t *testing.T) {
	raw := []any{
		map[string]any{"path": "gpa_unweighted", "value": 3.8},
		"not an op",
		map[string]any{"path": 12, "value": "x"},
		map[string]any{"path": "", "value": "x"},
		map[string]any{"value": "no path"},
		map[string]any{"path": "career_goal", "value": nil},
	}
	got := ParsePatchOps(raw)
	want := []PatchOp{
		{Path: "gpa_unweighted", Value: 3.8},
		{Path: "career_goal", Value: nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParsePatchOps mismatch (-want +got):\n%s", diff)
	}

	if ops := ParsePatchOps("garbage"); len(ops) != 0 {
		t.Errorf("ParsePatchOps(string) = %v, want empty", ops)
	}
}

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name  string
		dst   Document
		patch Document
		want  Document
	}{
		{
			name:  "nested mappings merge",
			dst:   Document{"a": map[string]any{"x": 1.0}},
			patch: Document{"a": map[string]any{"y": 2.0}},
			want:  Document{"a": map[string]any{"x": 1.0, "y": 2.0}},
		},
		{
			name:  "scalar replaced by mapping",
			dst:   Document{"a": 1.0},
			patch: Document{"a": map[string]any{"y": 2.0}},
			want:  Document{"a": map[string]any{"y": 2.0}},
		},
		{
			name:  "list overwritten",
			dst:   Document{"tags": []any{"a"}},
			patch: Document{"tags": []any{"b", "c"}},
			want:  Document{"tags": []any{"b", "c"}},
		},
		{
			name:  "nil dst",
			dst:   nil,
			patch: Document{"k": "v"},
			want:  Document{"k": "v"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeepMerge(tt.dst, tt.patch)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DeepMerge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Document{"sat": map[string]any{"math": 700.0}, "tags": []any{"AP"}}
	c := Clone(orig)
	Set(c, "sat.math", 800.0)
	c["tags"].([]any)[0] = "IB"

	if Get(orig, "sat.math") != 700.0 {
		t.Errorf("original nested value mutated: %v", Get(orig, "sat.math"))
	}
	if orig["tags"].([]any)[0] != "AP" {
		t.Errorf("original list mutated: %v", orig["tags"])
	}
}

func TestIsAnswered(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"blank string", "  ", false},
		{"empty list", []any{}, false},
		{"empty string list", []string{}, false},
		{"empty mapping", map[string]any{}, false},
		{"mapping of nulls", map[string]any{"status": nil, "best_total": ""}, false},
		{"skip", "Skip", true},
		{"zero", 0.0, true},
		{"int zero", 0, true},
		{"false", false, true},
		{"list", []any{"x"}, true},
		{"mapping with value", map[string]any{"status": "taken"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAnswered(tt.v); got != tt.want {
				t.Errorf("IsAnswered(%#v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	doc := Document{"a": "scalar"}
	if v := Get(doc, "a.b"); v != nil {
		t.Errorf("Get through scalar = %v, want nil", v)
	}
	if v := Get(doc, "missing.path"); v != nil {
		t.Errorf("Get missing = %v, want nil", v)
	}
	if v := Get(nil, "a"); v != nil {
		t.Errorf("Get on nil doc = %v, want nil", v)
	}
}

func TestMarkAskedOnce(t *testing.T) {
	doc := Document{}
	if !MarkAsked(doc, "us_only") {
		t.Fatal("first MarkAsked returned false")
	}
	if MarkAsked(doc, "us_only") {
		t.Error("second MarkAsked returned true")
	}
	MarkAsked(doc, "state_of_residence")
	MarkAsked(doc, "")

	want := []string{"us_only", "state_of_residence"}
	if diff := cmp.Diff(want, AskedPaths(doc)); diff != "" {
		t.Errorf("AskedPaths mismatch (-want +got):\n%s", diff)
	}
	if !AskedSet(doc)["us_only"] {
		t.Error("AskedSet missing us_only")
	}
}

func TestFromValue(t *testing.T) {
	type rec struct {
		Name  string   `json:"name"`
		Score int      `json:"score"`
		URL   *string  `json:"url"`
		Tags  []string `json:"tags"`
	}
	doc, err := FromValue(struct {
		Recs []rec `json:"recs"`
	}{Recs: []rec{{Name: "MIT", Score: 90, Tags: []string{"stem"}}}})
	if err != nil {
		t.Fatal(err)
	}
	if got := Get(doc, "recs"); len(got.([]any)) != 1 {
		t.Fatalf("recs = %v", got)
	}
	first := doc["recs"].([]any)[0].(map[string]any)
	if first["name"] != "MIT" || first["score"] != 90.0 || first["url"] != nil {
		t.Errorf("first = %v", first)
	}
}
