package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"facet/internal/envelope"
	"facet/internal/llm"
	"facet/internal/schema"
	"facet/internal/textprep"
)

// structuralRepair applies rule-based fixes beyond what the strategy chain
// already tried: it drops stray control characters, rewrites invalid
// escapes, closes an unterminated string, and completes unbalanced
// structures before a final syntax-repair pass. Returns the input
// unchanged when there is nothing to fix.
func structuralRepair(content string) string {
	s := strings.TrimSpace(content)
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	s = stripControlChars(s)
	s = strings.ReplaceAll(s, `\'`, `'`)
	s = completeTruncated(s)
	return textprep.RepairSyntax(s)
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

const repairTimeout = 15 * time.Second

const repairSystemPrompt = `You reformat malformed JSON. Output ONLY a valid JSON object matching the requested field list. Do not add commentary, markdown fences, or extra fields. Preserve every value you can recover from the input; use null for values you cannot recover.`

// modelRepair asks the model to reformat the malformed output into valid
// JSON, then adapts, cleans, and direct-parses the reply. Any failure in
// the round trip reports a miss; the caller falls through to fallback
// synthesis.
func (p *Parser) modelRepair(ctx context.Context, content string, sc schema.Schema) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, repairTimeout)
	defer cancel()

	var fields []string
	for _, f := range sc.Fields {
		fields = append(fields, fmt.Sprintf("%s (%s)", f.Name, f.Type))
	}
	user := fmt.Sprintf("Required fields: %s\n\nMalformed output:\n%s",
		strings.Join(fields, ", "), content)

	raw, err := p.repair.Invoke(ctx, llm.SystemUser(repairSystemPrompt, user), llm.Options{
		Temperature: 0,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil
	}
	adapted := envelope.Adapt(raw)
	cleaned := textprep.Process(adapted.Content)
	return parseDirect(cleaned.Content, sc)
}
