package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubGenerator struct {
	resp string
	err  error
}

func (s stubGenerator) GenerateCompletion(context.Context, string, bool) (string, error) {
	return s.resp, s.err
}

func TestDiscover_FiltersAndCanonicalizes(t *testing.T) {
	gen := stubGenerator{resp: `{"opportunities": [
		{"title": "Statewide ERP Modernization", "agency": "Ohio DAS", "category": "TECHNOLOGY", "url": "https://example.gov/erp"},
		{"title": "   ", "agency": "Nobody"},
		{"title": "Translation Services", "category": "linguistics"}
	]}`}

	got, err := Discover(context.Background(), gen, []string{"erp"}, 5, []string{"technology", "education"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(got))
	}
	if got[0].Category != "technology" {
		t.Errorf("category = %q, want canonical technology", got[0].Category)
	}
	if got[1].Category != "" {
		t.Errorf("unknown category kept: %q", got[1].Category)
	}
}

func TestDiscover_Errors(t *testing.T) {
	if _, err := Discover(context.Background(), stubGenerator{err: errors.New("down")}, nil, 3, nil); err == nil {
		t.Fatal("expected generator error")
	}
	if _, err := Discover(context.Background(), stubGenerator{resp: "not json"}, nil, 3, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOllamaClient_GenerateCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("request = %+v, want json mode without streaming", req)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: `{"ok":true}`, Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "test-model", srv.Client())
	got, err := c.GenerateCompletion(context.Background(), "hi", true)
	if err != nil {
		t.Fatalf("GenerateCompletion: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("response = %q", got)
	}
}

func TestOllamaClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllamaClient(srv.URL, "", srv.Client()).GenerateCompletion(context.Background(), "hi", false); err == nil {
		t.Fatal("expected error for 404")
	}
}
