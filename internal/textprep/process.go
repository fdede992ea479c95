// Package textprep cleans model-extracted text before parsing: it strips
// markdown fences, comments, and leading declarations, recovers the JSON
// object embedded in surrounding prose, and repairs common syntax defects.
// Processing is an ordered pipeline of independently toggleable rules; a
// rule that fails internally is skipped, never fatal, and the pipeline is
// idempotent.
package textprep

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Rule names, in pipeline order.
const (
	RuleDetectFormat     = "detect_format"
	RuleStripCodeFence   = "strip_code_fence"
	RuleStripComments    = "strip_comments"
	RuleStripDeclaration = "strip_declaration"
	RuleExtractObject    = "extract_object"
	RuleNormalizeSpace   = "normalize_whitespace"
	RuleRepairSyntax     = "repair_syntax"
)

// Format records the signals detected in the input.
type Format struct {
	Type           string `json:"type"` // "json" or "text"
	HasCodeBlock   bool   `json:"has_code_block"`
	HasComments    bool   `json:"has_comments"`
	HasDeclaration bool   `json:"has_declaration"`
	ObjectLike     bool   `json:"object_like"`
}

// Processed is the cleaning result plus a report of what was done.
type Processed struct {
	Content      string        `json:"content"`
	Format       Format        `json:"format"`
	AppliedRules []string      `json:"applied_rules"`
	InputLen     int           `json:"input_len"`
	OutputLen    int           `json:"output_len"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Options toggles individual rules. The zero value runs every rule.
type Options struct {
	Disabled []string
	Logger   *zap.Logger
}

func (o Options) disabled(name string) bool {
	for _, d := range o.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

var (
	reFenceOpen     = regexp.MustCompile("^\\s*```[a-zA-Z0-9_-]*\\s*\n?")
	reFenceClose    = regexp.MustCompile("\n?\\s*```\\s*$")
	reLineComment   = regexp.MustCompile(`(?m)^[ \t]*//[^\n]*\n?`)
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reMarkupComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reDeclaration   = regexp.MustCompile(`^\s*(?:const|let|var)\s+[A-Za-z_$][A-Za-z0-9_$]*\s*=\s*`)
	reBlankLines    = regexp.MustCompile(`\n{3,}`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	reUnquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

type rule struct {
	name  string
	apply func(string) string
}

var pipeline = []rule{
	{RuleStripCodeFence, stripCodeFence},
	{RuleStripComments, stripComments},
	{RuleStripDeclaration, stripDeclaration},
	{RuleExtractObject, extractObject},
	{RuleNormalizeSpace, normalizeWhitespace},
	{RuleRepairSyntax, RepairSyntax},
}

// Process runs the cleaning pipeline. It is a pure function of its input
// and never panics; a rule that panics internally is skipped and the
// content passes through that stage untouched.
func Process(in string, opts ...Options) Processed {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	out := Processed{
		Content:  in,
		InputLen: len(in),
	}
	if !o.disabled(RuleDetectFormat) {
		out.Format = detectFormat(in)
		out.AppliedRules = append(out.AppliedRules, RuleDetectFormat)
	}

	for _, r := range pipeline {
		if o.disabled(r.name) {
			continue
		}
		next, ok := applySafe(r.apply, out.Content)
		if !ok {
			logger.Warn("cleaning rule failed, skipped", zap.String("rule", r.name))
			continue
		}
		if next != out.Content {
			out.AppliedRules = append(out.AppliedRules, r.name)
			out.Content = next
		}
	}

	out.OutputLen = len(out.Content)
	out.Elapsed = time.Since(start)
	logger.Debug("content preprocessed",
		zap.Strings("rules", out.AppliedRules),
		zap.Int("in", out.InputLen),
		zap.Int("out", out.OutputLen),
		zap.Duration("elapsed", out.Elapsed))
	return out
}

func applySafe(f func(string) string, s string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = s, false
		}
	}()
	return f(s), true
}

func detectFormat(s string) Format {
	trimmed := strings.TrimSpace(s)
	f := Format{
		Type:           "text",
		HasCodeBlock:   strings.Contains(s, "```"),
		HasComments:    reLineComment.MatchString(s) || reBlockComment.MatchString(s) || reMarkupComment.MatchString(s),
		HasDeclaration: reDeclaration.MatchString(s),
		ObjectLike:     strings.Contains(trimmed, "{") && strings.Contains(trimmed, "}"),
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || f.HasCodeBlock && f.ObjectLike {
		f.Type = "json"
	}
	return f
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, "```") {
		return s
	}
	out := reFenceOpen.ReplaceAllString(trimmed, "")
	out = reFenceClose.ReplaceAllString(out, "")
	return out
}

func stripComments(s string) string {
	out := reMarkupComment.ReplaceAllString(s, "")
	out = reBlockComment.ReplaceAllString(out, "")
	out = reLineComment.ReplaceAllString(out, "")
	return out
}

func stripDeclaration(s string) string {
	out := reDeclaration.ReplaceAllString(s, "")
	// Drop a trailing statement terminator left behind by the declaration.
	if out != s {
		out = strings.TrimRight(strings.TrimSpace(out), ";")
	}
	return out
}

// extractObject returns the substring from the first '{' to its
// best-matching '}'. The scan is string-aware, and when braces never
// balance (truncated output) it keeps everything from the first '{' so a
// later tolerant parse can finish the job.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

func normalizeWhitespace(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = reBlankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// RepairSyntax fixes the two most common model-emitted JSON defects:
// trailing commas before a closing bracket/brace and unquoted object keys.
// Content that already parses is returned untouched so the rewrites cannot
// corrupt string values that happen to look like keys. Exported because the
// parser's repaired-syntax strategy reapplies it.
func RepairSyntax(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}
	out := reTrailingComma.ReplaceAllString(s, "$1")
	out = reUnquotedKey.ReplaceAllString(out, `$1"$2"$3`)
	return out
}
