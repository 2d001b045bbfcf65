package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExtractText_Shapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"top-level text", `{"text":"rest and monitor"}`, "rest and monitor"},
		{"response string", `{"response":"refer to specialist"}`, "refer to specialist"},
		{"nested response.text", `{"response":{"text":"repeat imaging in 6 months"}}`, "repeat imaging in 6 months"},
		{"choices array", `{"choices":[{"text":"start treatment"}]}`, "start treatment"},
		{"unknown shape", `{"result":"ignored"}`, FallbackText},
		{"not json", `plain text`, FallbackText},
		{"empty text falls through", `{"text":"","response":"use this"}`, "use this"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := ExtractText([]byte(tc.body))
			if got != tc.want {
				t.Errorf("ExtractText(%s) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestGenerate_SendsPromptOnce(t *testing.T) {
	var calls int
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		gotPrompt = payload["prompt"]
		w.Write([]byte(`{"text":"advice"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	text, err := c.Generate(context.Background(), "severity: high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "advice" {
		t.Errorf("expected advice, got %q", text)
	}
	if gotPrompt != "severity: high" {
		t.Errorf("prompt not sent: %q", gotPrompt)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestGenerate_UnknownShapeFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"done"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	text, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != FallbackText {
		t.Errorf("expected fallback, got %q", text)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	if _, err := c.Generate(context.Background(), "prompt"); err == nil {
		t.Error("expected error for 500 response")
	}
}
