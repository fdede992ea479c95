// Package envelope normalizes provider-shaped model responses into a
// uniform content + metadata pair. Providers disagree on wrapper formats
// (choice arrays, nested wrappers, typed block arrays, bare text); the
// adapter probes a fixed, ordered list of recognized shapes and extracts
// the text via the first match. It is a total function: any input,
// including nil, yields an Adapted with a string Content.
package envelope

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ShapeKind identifies the envelope shape a response matched.
type ShapeKind string

const (
	// ShapeChoiceArray is the chat-completions style: choices[0].message.content.
	ShapeChoiceArray ShapeKind = "choice_array"
	// ShapeNestedWrapper holds content under a wrapper object such as
	// response.content or result.content.
	ShapeNestedWrapper ShapeKind = "nested_wrapper"
	// ShapeBlockArray is an array of typed blocks; the first text block wins.
	ShapeBlockArray ShapeKind = "block_array"
	// ShapePlainText is a bare string response.
	ShapePlainText ShapeKind = "plain_text"
	// ShapeOpaque is the stringify fallback for anything unrecognized.
	ShapeOpaque ShapeKind = "opaque"
)

const opaqueConfidence = 0.3

// Metadata records how content was extracted.
type Metadata struct {
	Shape          ShapeKind `json:"shape"`
	ExtractionPath string    `json:"extraction_path"`
	Confidence     float64   `json:"confidence"`
}

// Adapted is the normalized response. Content is always present, possibly
// empty, never absent.
type Adapted struct {
	Content string         `json:"content"`
	Meta    Metadata       `json:"meta"`
	Debug   map[string]any `json:"debug,omitempty"`
}

// Options tunes adaptation. The zero value is usable.
type Options struct {
	Logger *zap.Logger
}

// wrapperKeys are probed in order for the nested-wrapper shape.
var wrapperKeys = []string{"response", "result", "data", "output", "message"}

// Adapt normalizes raw into an Adapted. It never panics.
func Adapt(raw any, opts ...Options) Adapted {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := adapt(raw)
	logger.Debug("envelope adapted",
		zap.String("shape", string(out.Meta.Shape)),
		zap.String("path", out.Meta.ExtractionPath),
		zap.Float64("confidence", out.Meta.Confidence),
		zap.Int("content_len", len(out.Content)))
	return out
}

func adapt(raw any) Adapted {
	if raw == nil {
		return Adapted{
			Meta:  Metadata{Shape: ShapeOpaque, ExtractionPath: "", Confidence: 0},
			Debug: map[string]any{"reason": "nil response"},
		}
	}

	// Byte payloads are decoded first so JSON bodies probe like objects.
	switch b := raw.(type) {
	case []byte:
		return adaptBytes(b)
	case json.RawMessage:
		return adaptBytes(b)
	}

	if s, ok := raw.(string); ok {
		return Adapted{
			Content: s,
			Meta:    Metadata{Shape: ShapePlainText, ExtractionPath: "$", Confidence: 1.0},
		}
	}

	m, ok := asMap(raw)
	if !ok {
		return stringify(raw)
	}

	// Most specific shapes first.
	if content, path, ok := extractChoiceArray(m); ok {
		return Adapted{
			Content: content,
			Meta:    Metadata{Shape: ShapeChoiceArray, ExtractionPath: path, Confidence: matchConfidence(content)},
		}
	}
	if content, path, ok := extractNestedWrapper(m); ok {
		return Adapted{
			Content: content,
			Meta:    Metadata{Shape: ShapeNestedWrapper, ExtractionPath: path, Confidence: matchConfidence(content)},
		}
	}
	if content, path, ok := extractBlockArray(m); ok {
		return Adapted{
			Content: content,
			Meta:    Metadata{Shape: ShapeBlockArray, ExtractionPath: path, Confidence: matchConfidence(content)},
		}
	}
	if content, ok := m["content"].(string); ok {
		return Adapted{
			Content: content,
			Meta:    Metadata{Shape: ShapeNestedWrapper, ExtractionPath: "content", Confidence: matchConfidence(content)},
		}
	}
	return stringify(raw)
}

func adaptBytes(b []byte) Adapted {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err == nil {
		if _, isStr := decoded.(string); !isStr {
			return adapt(decoded)
		}
	}
	return Adapted{
		Content: string(b),
		Meta:    Metadata{Shape: ShapePlainText, ExtractionPath: "$", Confidence: 1.0},
	}
}

func matchConfidence(content string) float64 {
	if content == "" {
		return opaqueConfidence
	}
	return 1.0
}

// extractChoiceArray handles choices[0].message.content.
func extractChoiceArray(m map[string]any) (string, string, bool) {
	choices, ok := m["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", "", false
	}
	if msg, ok := first["message"].(map[string]any); ok {
		if content, ok := msg["content"].(string); ok {
			return content, "choices[0].message.content", true
		}
	}
	// Legacy completions carry text directly on the choice.
	if text, ok := first["text"].(string); ok {
		return text, "choices[0].text", true
	}
	return "", "", false
}

// extractNestedWrapper handles {response:{content:...}} and friends.
//
// The wrapper's inner field wins whenever it is non-empty; a sibling
// top-level content field is used only when the inner field is empty. Some
// providers emit an empty top-level content next to the real nested
// payload; preferring the inner field is intentional ordering, not an
// oversight.
func extractNestedWrapper(m map[string]any) (string, string, bool) {
	top, topOK := m["content"].(string)
	for _, key := range wrapperKeys {
		inner, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range []string{"content", "text"} {
			content, ok := inner[field].(string)
			if !ok {
				continue
			}
			path := key + "." + field
			if topOK && top != "" && content == "" {
				// Non-empty sibling beats an empty nested field.
				return top, "content", true
			}
			return content, path, true
		}
	}
	if topOK && top != "" {
		return top, "content", true
	}
	return "", "", false
}

// extractBlockArray handles {content:[{type:"text", text:...}, ...]}.
func extractBlockArray(m map[string]any) (string, string, bool) {
	blocks, ok := m["content"].([]any)
	if !ok {
		return "", "", false
	}
	for i, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "" && t != "text" {
			continue
		}
		if text, ok := block["text"].(string); ok {
			return text, fmt.Sprintf("content[%d].text", i), true
		}
	}
	return "", "", false
}

// asMap converts structs and maps into map[string]any via a JSON round trip.
func asMap(raw any) (map[string]any, bool) {
	if m, ok := raw.(map[string]any); ok {
		return m, true
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	return m, true
}

// stringify is the last resort: best-effort string conversion with low
// confidence.
func stringify(raw any) Adapted {
	var content string
	if b, err := json.Marshal(raw); err == nil {
		content = string(b)
	} else {
		content = fmt.Sprintf("%v", raw)
	}
	return Adapted{
		Content: content,
		Meta:    Metadata{Shape: ShapeOpaque, ExtractionPath: "", Confidence: opaqueConfidence},
		Debug:   map[string]any{"reason": "unrecognized shape"},
	}
}
