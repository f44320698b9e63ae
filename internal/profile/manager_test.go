package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/slots"
	"github.com/kalambet/collegeai/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu     sync.Mutex
	stores map[string]map[string]document.Document

	loadCalls int
}

func newMockStore() *mockStore {
	return &mockStore{stores: make(map[string]map[string]document.Document)}
}

func (m *mockStore) Load(store string) (map[string]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	all, ok := m.stores[store]
	if !ok {
		return nil, storage.ErrStoreNotFound
	}
	cp := make(map[string]document.Document, len(all))
	for k, v := range all {
		cp[k] = document.Clone(v)
	}
	return cp, nil
}

func (m *mockStore) Save(store string, docs map[string]document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]document.Document, len(docs))
	for k, v := range docs {
		cp[k] = document.Clone(v)
	}
	m.stores[store] = cp
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func TestGet_Missing(t *testing.T) {
	mgr := NewManager(newMockStore())

	if _, err := mgr.Get("c1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
	ok, err := mgr.Exists("c1")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false", ok, err)
	}
	doc, err := mgr.GetOrNew("c1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["sat"]; !ok {
		t.Errorf("GetOrNew did not return the template: %v", doc)
	}
}

func TestPatchStartsFromTemplate(t *testing.T) {
	mgr := NewManager(newMockStore())

	doc, err := mgr.Patch("c1", []document.PatchOp{{Path: "sat.math", Value: 700.0}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if document.Get(doc, "sat.math") != 700.0 {
		t.Errorf("sat.math = %v", document.Get(doc, "sat.math"))
	}
	if _, ok := doc["budget_range_all_in"]; !ok {
		t.Error("template fields missing after first patch")
	}

	got, err := mgr.Get("c1")
	if err != nil {
		t.Fatal(err)
	}
	if document.Get(got, "sat.math") != 700.0 {
		t.Errorf("persisted sat.math = %v", document.Get(got, "sat.math"))
	}
}

func TestPatchOverCorruptStoreKeepsOtherClients(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.OpenFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)
	for _, id := range []string{"alice", "bob"} {
		if _, err := m.Patch(id, []document.PatchOp{{Path: "us_only", Value: "Yes"}}); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, storage.IntakeProfiles+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-2], 0o644); err != nil {
		t.Fatal(err)
	}

	fresh := NewManager(store)
	if _, err := fresh.Patch("carol", []document.PatchOp{{Path: "us_only", Value: "No"}}); !errors.Is(err, storage.ErrMalformed) {
		t.Errorf("Patch over corrupt store = %v, want ErrMalformed", err)
	}
	if _, err := fresh.Get("alice"); !errors.Is(err, storage.ErrMalformed) {
		t.Errorf("Get over corrupt store = %v, want ErrMalformed", err)
	}
	if _, err := fresh.GetOrNew("alice"); err == nil {
		t.Error("GetOrNew over corrupt store returned a fresh template")
	}
	if _, err := fresh.Create("carol"); !errors.Is(err, storage.ErrMalformed) {
		t.Errorf("Create over corrupt store = %v, want ErrMalformed", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"alice", "bob"} {
		if doc, err := fresh.Get(id); err != nil || doc["us_only"] != "Yes" {
			t.Errorf("Get(%s) after repair = %v, %v", id, doc, err)
		}
	}
}

func TestGetReturnsCopies(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.Patch("c1", []document.PatchOp{{Path: "career_goal", Value: "doctor"}})

	a, _ := mgr.Get("c1")
	a["career_goal"] = "astronaut"

	b, _ := mgr.Get("c1")
	if b["career_goal"] != "doctor" {
		t.Errorf("cached profile mutated through a returned copy: %v", b["career_goal"])
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.Patch("c1", []document.PatchOp{{Path: "us_only", Value: true}})

	doc, err := mgr.Create("c1")
	if err != nil {
		t.Fatal(err)
	}
	if doc["us_only"] != true {
		t.Errorf("Create overwrote an existing profile: %v", doc["us_only"])
	}

	if _, err := mgr.Create("c2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := mgr.Exists("c2"); !ok {
		t.Error("Create did not persist a new profile")
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	mgr.Patch("c1", []document.PatchOp{{Path: "us_only", Value: true}})
	before := store.calls()

	mgr.Get("c1")
	mgr.Get("c1")

	if calls := store.calls() - before; calls != 1 {
		t.Errorf("expected 1 store load (cache hit on second), got %d", calls)
	}
}

func TestCacheInvalidation(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	ttl := 60 * time.Second
	mgr := NewManagerWithClock(store, clock, ttl)

	mgr.Patch("c1", []document.PatchOp{{Path: "us_only", Value: true}})
	before := store.calls()

	mgr.Get("c1")
	clock.Advance(ttl + time.Second)
	mgr.Get("c1")

	if calls := store.calls() - before; calls != 2 {
		t.Errorf("expected 2 store loads (cache expired), got %d", calls)
	}

	mgr.Patch("c1", []document.PatchOp{{Path: "us_only", Value: false}})
	doc, _ := mgr.Get("c1")
	if doc["us_only"] != false {
		t.Errorf("stale cache after Patch: us_only = %v", doc["us_only"])
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(New()); got != emptySummary {
		t.Errorf("Summarize(template) = %q", got)
	}
}

func TestSummarize_Sections(t *testing.T) {
	doc := New()
	document.ApplyPatches(doc, []document.PatchOp{
		{Path: "gpa_unweighted", Value: 3.8},
		{Path: "sat.best_total", Value: 1450.0},
		{Path: "scholarships.ethnicity", Value: []any{"Asian", "White"}},
		{Path: "prep.available_hours_weekly", Value: "5-10 hours"},
	})

	got := Summarize(doc)
	for _, want := range []string{
		"ACADEMIC PROFILE:\n  - GPA (Unweighted): 3.8\n  - SAT: 1450",
		"DEMOGRAPHICS:\n  - Ethnicity: Asian, White",
		"CURRENT ACTIVITIES & AVAILABILITY:\n  - Available Hours/Week: 5-10 hours",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "- ACT:") {
		t.Errorf("summary lists an unanswered field:\n%s", got)
	}
}

func TestSummarize_TokenBudget(t *testing.T) {
	doc := New()
	document.Set(doc, "prep.current_extracurriculars", strings.Repeat("robotics club captain and debate ", 200))

	summary := Summarize(doc)
	if tokens := len(summary) / 4; tokens >= 500 {
		t.Errorf("summary too long: %d estimated tokens (len=%d)", tokens, len(summary))
	}
}

func TestTemplateCoversDeepPaths(t *testing.T) {
	doc := New()
	state := slots.Compute(doc, DeepPaths, nil, slots.ModeDeep)
	if len(state.Unfilled) != len(DeepPaths) {
		t.Errorf("fresh template has answered fields: filled = %v", state.Filled)
	}
	for _, p := range PrioritySlots {
		found := false
		for _, d := range DeepPaths {
			if d == p {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("priority slot %q missing from DeepPaths", p)
		}
	}
}
