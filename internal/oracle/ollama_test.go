package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"{\"ok\":true}"}}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL+"/", "llama3", time.Second)
	text, err := c.Complete(context.Background(), Request{
		Instructions: "be brief",
		Messages: []Message{
			{Role: RoleDeveloper, Content: "context"},
			{Role: RoleUser, Content: "hi"},
		},
		Schema:          map[string]any{"type": "object"},
		MaxOutputTokens: 300,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("text = %q", text)
	}

	if got.Model != "llama3" || got.Stream {
		t.Errorf("model = %q stream = %v", got.Model, got.Stream)
	}
	wantRoles := []string{"system", "system", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("messages = %v", got.Messages)
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("messages[%d].role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
	if got.Format == nil {
		t.Error("schema not sent as format")
	}
	if got.Options["num_predict"] != 300.0 {
		t.Errorf("num_predict = %v", got.Options["num_predict"])
	}
}

func TestOllamaCompleteFreeText(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"message":{"role":"assistant","content":"Hello."}}`))
	}))
	defer srv.Close()

	text, err := NewOllama(srv.URL, "llama3", 0).Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil || text != "Hello." {
		t.Fatalf("Complete = %q, %v", text, err)
	}
	if _, ok := raw["format"]; ok {
		t.Error("format sent without a schema")
	}
}

func TestOllamaCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllama(srv.URL, "missing", time.Second).Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for a non-200 status")
	}
}
