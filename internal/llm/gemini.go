package llm

import (
	"context"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client. It
// returns the first candidate's text as a bare string; shape normalization
// happens downstream in the envelope adapter.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	full := joinMessages(msgs)
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if opts.Temperature > 0 {
		t := opts.Temperature
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		cfg,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrInvalidJSON
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func joinMessages(msgs []Message) string {
	var out string
	for i, m := range msgs {
		if i > 0 {
			out += "\n\n"
		}
		if m.Role == "system" {
			out += m.Content
		} else {
			out += "[" + m.Role + "]\n" + m.Content
		}
	}
	return out
}
