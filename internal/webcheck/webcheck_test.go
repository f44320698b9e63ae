package webcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsWebURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.org/aid", true},
		{"http://example.org", true},
		{" https://example.org ", true},
		{"ftp://example.org", false},
		{"/relative/path", false},
		{"example.org", false},
		{"", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := IsWebURL(tt.in); got != tt.want {
			t.Errorf("IsWebURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProbe(t *testing.T) {
	var gotUA, gotMethod string
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotMethod = r.Method
		w.Write([]byte("hello"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(WithUserAgent("probe-test/1.0"))
	ctx := context.Background()

	if err := c.Probe(ctx, srv.URL+"/ok"); err != nil {
		t.Fatalf("Probe(/ok) = %v", err)
	}
	if gotUA != "probe-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}

	if err := c.Probe(ctx, srv.URL+"/moved"); err != nil {
		t.Errorf("Probe(/moved) = %v, redirects should be followed", err)
	}

	err := c.Probe(ctx, srv.URL+"/gone")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("Probe(/gone) = %v, want StatusError 404", err)
	}

	if err := c.Probe(ctx, "mailto:aid@example.org"); err == nil {
		t.Error("Probe(mailto) = nil, want error")
	}
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(WithTimeouts(50*time.Millisecond, 0))
	start := time.Now()
	if err := c.Probe(context.Background(), srv.URL); err == nil {
		t.Fatal("Probe = nil, want timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Probe took %v, timeout not applied", elapsed)
	}
}

func TestFetchText(t *testing.T) {
	page := `<!doctype html><html><head><title>Aid</title>
<style>body { color: red }</style>
<script>var deadline = "January 1, 2020";</script></head>
<body><noscript>Enable JS. Deadline: June 1, 2021</noscript>
<h1>Merit   Scholarship</h1>
<!-- Deadline: July 4, 2019 -->
<p>Application
deadline: <b>March 1st, 2026</b></p></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("Due   3/1/2026\n"))
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(page))
		}
	}))
	defer srv.Close()

	c := New()
	got, err := c.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	want := "Aid Merit Scholarship Application deadline: March 1st, 2026"
	if got != want {
		t.Errorf("FetchText = %q, want %q", got, want)
	}

	got, err = c.FetchText(context.Background(), srv.URL+"/plain")
	if err != nil {
		t.Fatalf("FetchText plain: %v", err)
	}
	if got != "Due 3/1/2026" {
		t.Errorf("FetchText plain = %q", got)
	}
}
