package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapt_ChoiceArray(t *testing.T) {
	raw := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"role": "assistant", "content": `{"score":85}`},
			},
		},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeChoiceArray, got.Meta.Shape)
	assert.Equal(t, "choices[0].message.content", got.Meta.ExtractionPath)
	assert.Equal(t, `{"score":85}`, got.Content)
	assert.Equal(t, 1.0, got.Meta.Confidence)
}

func TestAdapt_ChoiceArrayLegacyText(t *testing.T) {
	raw := map[string]any{
		"choices": []any{map[string]any{"text": "plain completion"}},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeChoiceArray, got.Meta.Shape)
	assert.Equal(t, "choices[0].text", got.Meta.ExtractionPath)
	assert.Equal(t, "plain completion", got.Content)
}

func TestAdapt_NestedWrapper(t *testing.T) {
	raw := map[string]any{
		"response": map[string]any{"content": `{"ok":true}`},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeNestedWrapper, got.Meta.Shape)
	assert.Equal(t, "response.content", got.Meta.ExtractionPath)
	assert.Equal(t, `{"ok":true}`, got.Content)
}

// The nested content field must win over a sibling top-level content field
// when the top-level one is empty. This ordering fixes a lossy extraction
// where providers emit an empty top-level content next to the real payload.
func TestAdapt_NestedWrapperPreferredOverEmptyTopLevel(t *testing.T) {
	raw := map[string]any{
		"content":  "",
		"response": map[string]any{"content": `{"inner":1}`},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeNestedWrapper, got.Meta.Shape)
	assert.Equal(t, "response.content", got.Meta.ExtractionPath)
	assert.Equal(t, `{"inner":1}`, got.Content)
}

// When both the wrapper's inner content and the top-level sibling are
// non-empty, the inner field wins: wrapper shapes are probed because that
// is where these provider formats carry the model output.
func TestAdapt_NestedWrapperWinsWhenBothNonEmpty(t *testing.T) {
	raw := map[string]any{
		"content":  `{"top":1}`,
		"response": map[string]any{"content": `{"inner":1}`},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeNestedWrapper, got.Meta.Shape)
	assert.Equal(t, "response.content", got.Meta.ExtractionPath)
	assert.Equal(t, `{"inner":1}`, got.Content)
}

func TestAdapt_TopLevelWinsOverEmptyNested(t *testing.T) {
	raw := map[string]any{
		"content":  `{"top":1}`,
		"response": map[string]any{"content": ""},
	}
	got := Adapt(raw)
	assert.Equal(t, "content", got.Meta.ExtractionPath)
	assert.Equal(t, `{"top":1}`, got.Content)
}

func TestAdapt_BlockArray(t *testing.T) {
	raw := map[string]any{
		"content": []any{
			map[string]any{"type": "thinking", "thinking": "hmm"},
			map[string]any{"type": "text", "text": `{"score":1}`},
		},
	}
	got := Adapt(raw)
	assert.Equal(t, ShapeBlockArray, got.Meta.Shape)
	assert.Equal(t, "content[1].text", got.Meta.ExtractionPath)
	assert.Equal(t, `{"score":1}`, got.Content)
}

func TestAdapt_BareString(t *testing.T) {
	got := Adapt(`{"score":85}`)
	assert.Equal(t, ShapePlainText, got.Meta.Shape)
	assert.Equal(t, `{"score":85}`, got.Content)
}

func TestAdapt_RawJSONBytes(t *testing.T) {
	raw := json.RawMessage(`{"choices":[{"message":{"content":"hi"}}]}`)
	got := Adapt(raw)
	assert.Equal(t, ShapeChoiceArray, got.Meta.Shape)
	assert.Equal(t, "hi", got.Content)
}

func TestAdapt_NonJSONBytes(t *testing.T) {
	got := Adapt([]byte("not json"))
	assert.Equal(t, ShapePlainText, got.Meta.Shape)
	assert.Equal(t, "not json", got.Content)
}

func TestAdapt_TotalFunction(t *testing.T) {
	// Any input, including nil and garbage, yields a string Content without
	// panicking.
	inputs := []any{
		nil,
		42,
		3.14,
		true,
		[]any{1, 2, 3},
		map[string]any{"unrelated": "keys"},
		map[int]string{1: "bad key type"},
		struct{ X int }{X: 1},
		make(chan int),
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			got := Adapt(in)
			assert.NotEmpty(t, got.Meta.Shape)
			_ = got.Content
		})
	}
}

func TestAdapt_NilHasEmptyContent(t *testing.T) {
	got := Adapt(nil)
	assert.Equal(t, ShapeOpaque, got.Meta.Shape)
	assert.Equal(t, "", got.Content)
	assert.Equal(t, 0.0, got.Meta.Confidence)
}

func TestAdapt_StringifyFallbackConfidence(t *testing.T) {
	got := Adapt([]any{"a", "b"})
	assert.Equal(t, ShapeOpaque, got.Meta.Shape)
	assert.Equal(t, `["a","b"]`, got.Content)
	assert.InDelta(t, 0.3, got.Meta.Confidence, 1e-9)
}

func TestAdapt_StructViaJSONRoundTrip(t *testing.T) {
	type resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	var r resp
	r.Choices = make([]struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}, 1)
	r.Choices[0].Message.Content = "from struct"
	got := Adapt(r)
	assert.Equal(t, ShapeChoiceArray, got.Meta.Shape)
	assert.Equal(t, "from struct", got.Content)
}
