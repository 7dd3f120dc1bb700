package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/document"
)

const unitsJSON = `{"units": [{"unit": {"unitCode": "64", "sellValue": 100000}, "sources": [{"field": "unitCode", "chunk_id": "chunk_000"}], "confidence": {"unitCode": "high"}}]}`

func testDoc() *document.Document {
	return document.FromChunks([]document.Chunk{
		{ID: "chunk_000", Page: 1, Type: constants.ElementText, Text: "UNIDADE 64 - Preço Total R$ 100.000,00"},
	}, []document.PageInfo{{Width: 595, Height: 842}})
}

// chatServer fakes the chat/completions endpoint, replying with content as
// the single choice.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["response_format"] == nil {
			t.Errorf("request missing response_format")
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestExtractDecodesUnits(t *testing.T) {
	srv := chatServer(t, unitsJSON)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	units, meta, err := c.Extract(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("units = %d, want 1", len(units))
	}
	if got := units[0].Fields["unitCode"]; got != "64" {
		t.Errorf("unitCode = %v, want 64", got)
	}
	if meta.Name != "contract_information" {
		t.Errorf("meta.Name = %q", meta.Name)
	}
	if meta.Elapsed <= 0 {
		t.Errorf("meta.Elapsed not set")
	}
}

func TestExtractStripsCodeFence(t *testing.T) {
	srv := chatServer(t, "```json\n"+unitsJSON+"\n```")
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	units, _, err := c.Extract(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("units = %d, want 1", len(units))
	}
}

func TestExtractRejectsOffSchemaReply(t *testing.T) {
	srv := chatServer(t, `{"units": [{"unit": {"installmentPlans": [{"series": "SEMANAL"}]}}]}`)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	if _, _, err := c.Extract(context.Background(), testDoc()); err == nil {
		t.Fatalf("off-schema reply accepted")
	}
}

func TestExtractSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	_, _, err := c.Extract(context.Background(), testDoc())
	if err == nil {
		t.Fatalf("500 reply accepted")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error does not carry status: %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "test-key"}, nil)
	if c.cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("BaseURL = %q", c.cfg.BaseURL)
	}
	if c.cfg.Model == "" {
		t.Errorf("Model not defaulted")
	}
	if c.cfg.Task.Name != "contract_information" {
		t.Errorf("Task = %q", c.cfg.Task.Name)
	}
}
