package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIClient calls an OpenAI-compatible chat-completions endpoint
// (OpenAI, Groq, local gateways). It decodes the response body and returns
// it as-is; the envelope adapter extracts choices[0].message.content
// downstream.
type OpenAIClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// NewOpenAIClient creates a client. Empty apiKey falls back to the
// OPENAI_API_KEY env var; empty baseURL targets the OpenAI API.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func (c *OpenAIClient) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	body := chatRequest{
		Model:          c.model,
		Messages:       msgs,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(raw) > max {
			raw = raw[:max]
		}
		err := fmt.Errorf("openai: unexpected status %s: %s", resp.Status, string(raw))
		// Context-length rejections never resolve with retries.
		if resp.StatusCode == 400 && strings.Contains(string(raw), "context_length_exceeded") {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
