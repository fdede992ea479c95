package llm

import (
	"context"
	"fmt"
)

// FakeClient returns deterministic, minimal payloads per dimension for
// offline runs and tests. Responses rotate through the envelope shapes the
// adapter recognizes, so an offline run exercises the same normalization
// path a live provider would.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch DimensionFrom(ctx) {
	case "performance":
		// Choice-array shape with a fenced payload.
		return map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"role":    "assistant",
						"content": "```json\n{\"score\": 82, \"issues\": [\"n+1 loop in hot path\"], \"summary\": \"fake performance output\"}\n```",
					},
				},
			},
		}, nil
	case "security":
		// Nested-wrapper shape with an empty sibling top-level content.
		return map[string]any{
			"content": "",
			"response": map[string]any{
				"content": `{"score": 74, "issues": ["unchecked input"], "severity": "medium", "summary": "fake security output"}`,
			},
		}, nil
	case "standards":
		// Typed-block-array shape.
		return map[string]any{
			"content": []any{
				map[string]any{"type": "text", "text": `{"score": 90, "issues": [], "summary": "fake standards output"}`},
			},
		}, nil
	case "maintainability":
		// Bare string with a trailing comma, feeding the repair strategy.
		return `{"score": 67, "issues": ["long function"], "summary": "fake maintainability output",}`, nil
	default:
		return fmt.Sprintf(`{"note": "no fake payload for dimension %q"}`, DimensionFrom(ctx)), nil
	}
}
