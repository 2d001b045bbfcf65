// Package llm calls the external text-generation service used for treatment
// recommendations. The service guarantees no fixed response schema, so the
// body is matched against an ordered list of known shapes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// FallbackText is returned when no known response shape matches.
const FallbackText = "No recommendation could be generated for this diagnosis."

type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

func NewClient(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Generate sends the prompt and returns the extracted text. The service is
// called exactly once; an unrecognized body yields FallbackText, not an error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text-generation endpoint returned status %d", resp.StatusCode)
	}

	text, shape := ExtractText(body)
	if shape == "" {
		c.log.Warn().Msg("text-generation response matched no known shape, using fallback")
	}
	return text, nil
}

// shapeMatcher tries one known response layout against the decoded body.
type shapeMatcher struct {
	name    string
	extract func(map[string]interface{}) (string, bool)
}

// matchers is the ordered list of response shapes seen from the service.
var matchers = []shapeMatcher{
	{"text", func(m map[string]interface{}) (string, bool) {
		s, ok := m["text"].(string)
		return s, ok && s != ""
	}},
	{"response", func(m map[string]interface{}) (string, bool) {
		s, ok := m["response"].(string)
		return s, ok && s != ""
	}},
	{"response.text", func(m map[string]interface{}) (string, bool) {
		nested, ok := m["response"].(map[string]interface{})
		if !ok {
			return "", false
		}
		s, ok := nested["text"].(string)
		return s, ok && s != ""
	}},
	{"choices[0].text", func(m map[string]interface{}) (string, bool) {
		choices, ok := m["choices"].([]interface{})
		if !ok || len(choices) == 0 {
			return "", false
		}
		first, ok := choices[0].(map[string]interface{})
		if !ok {
			return "", false
		}
		s, ok := first["text"].(string)
		return s, ok && s != ""
	}},
}

// ExtractText applies the shape matchers in order and returns the first
// match plus the shape name, or FallbackText and "" when nothing matches.
func ExtractText(body []byte) (string, string) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return FallbackText, ""
	}
	for _, m := range matchers {
		if text, ok := m.extract(decoded); ok {
			return text, m.name
		}
	}
	return FallbackText, ""
}
