package tool

import (
	"bytes"
	"fmt"
	"strings"

	"facet/internal/schema"
	"facet/internal/util/jsonutil"
)

// PromptSpec defines the sections of a structured analysis prompt. The
// output field list is rendered from the dimension schema so the prompt
// and the validator can never drift apart.
type PromptSpec struct {
	Purpose     string
	Background  string
	Constraints []string
	Rules       []string
	Language    string
}

// PromptPreset holds reusable constraints and rules.
type PromptPreset struct {
	Constraints []string
	Rules       []string
}

// ApplyPresets prepends preset constraints/rules to a prompt spec.
func ApplyPresets(spec PromptSpec, presets ...PromptPreset) PromptSpec {
	if len(presets) == 0 {
		return spec
	}
	var merged PromptPreset
	for _, p := range presets {
		merged.Constraints = append(merged.Constraints, p.Constraints...)
		merged.Rules = append(merged.Rules, p.Rules...)
	}
	spec.Constraints = append(merged.Constraints, spec.Constraints...)
	spec.Rules = append(merged.Rules, spec.Rules...)
	return spec
}

// PresetStrictJSON enforces strict JSON-only output.
func PresetStrictJSON() PromptPreset {
	return PromptPreset{
		Constraints: []string{
			"Return strict JSON only.",
			"Match the schema exactly; no extra fields.",
			"No markdown, comments, or trailing commas.",
		},
	}
}

// PresetNoInvent prevents fabricated findings.
func PresetNoInvent() PromptPreset {
	return PromptPreset{
		Constraints: []string{
			"Do not invent code locations, symbols, or behavior; use only the provided subject.",
		},
	}
}

// PresetCautious encourages explicit uncertainty.
func PresetCautious() PromptPreset {
	return PromptPreset{
		Rules: []string{
			"Avoid guessing; if unsure, make uncertainty explicit or leave the field empty.",
		},
	}
}

// Build renders the prompt for a subject against the given schema.
func (p PromptSpec) Build(subject any, sc schema.Schema) (string, error) {
	if strings.TrimSpace(p.Purpose) == "" {
		return "", fmt.Errorf("tool: prompt purpose is empty")
	}
	if len(sc.Fields) == 0 {
		return "", fmt.Errorf("tool: schema %q has no fields", sc.Name)
	}
	subjectJSON, err := formatAnyJSON(subject)
	if err != nil {
		return "", fmt.Errorf("tool: encode subject: %w", err)
	}

	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", p.Purpose)
	writeSection(&buf, "BACKGROUND", p.Background)
	writeSection(&buf, "SUBJECT", subjectJSON)
	writeSection(&buf, "OUTPUT", formatFields(sc.Fields))
	writeSection(&buf, "CONSTRAINTS", formatList(p.Constraints))
	writeSection(&buf, "RULES", formatList(p.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", "Respond with a single JSON object containing exactly the OUTPUT fields.")
	writeSection(&buf, "LANGUAGE", p.Language)

	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatAnyJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := jsonutil.MarshalIndentNoEscape(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func formatFields(fields []schema.Field) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
