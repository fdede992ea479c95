package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"facet/internal/schema"
	"facet/internal/textprep"
	"facet/internal/util/jsonutil"
)

// parseDirect decodes the content as-is. Only top-level objects count; a
// bare array or scalar is not a usable analysis payload.
func parseDirect(content string, _ schema.Schema) map[string]any {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var obj map[string]any
	if err := jsonutil.UnmarshalFlex([]byte(trimmed), &obj); err != nil {
		return nil
	}
	return obj
}

// parseRepaired reapplies syntax repair (trailing commas, unquoted keys)
// and retries a direct decode. When repair changes nothing there is no new
// information and the strategy reports a miss.
func parseRepaired(content string, sc schema.Schema) map[string]any {
	repaired := textprep.RepairSyntax(strings.TrimSpace(content))
	if repaired == strings.TrimSpace(content) {
		return nil
	}
	return parseDirect(repaired, sc)
}

// parseTolerant completes truncated output: it closes an open string,
// drops a dangling separator, and appends the missing closers recorded by
// a string-aware bracket scan. When the completed text still fails to
// decode it backs off to the previous comma and tries again, so a garbled
// tail costs at most the last entries.
func parseTolerant(content string, sc schema.Schema) map[string]any {
	s := strings.TrimSpace(content)
	start := strings.Index(s, "{")
	if start < 0 {
		return nil
	}
	s = s[start:]
	if completeTruncated(s) == s {
		// Nothing owed: the input is not truncated. Trailing prose after a
		// balanced object belongs to substring extraction, which keeps the
		// whole object instead of backing off entries.
		return nil
	}
	const maxBackoff = 10
	for i := 0; i <= maxBackoff; i++ {
		if obj := parseDirect(completeTruncated(s), sc); obj != nil {
			return obj
		}
		cut := lastTopComma(s)
		if cut < 0 {
			return nil
		}
		s = s[:cut]
	}
	return nil
}

// completeTruncated appends whatever closers the input still owes.
func completeTruncated(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := s
	if inString {
		out += `"`
	}
	trimmed := strings.TrimRight(out, " \t\n\r")
	if strings.HasSuffix(trimmed, ",") {
		out = strings.TrimSuffix(trimmed, ",")
	} else if strings.HasSuffix(trimmed, ":") {
		out = trimmed + " null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

// lastTopComma finds the byte offset of the last comma outside strings,
// used to trim a garbled tail one entry at a time.
func lastTopComma(s string) int {
	last := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
		case ',':
			last = i
		}
	}
	return last
}

var reMinimalObject = regexp.MustCompile(`\{[^{}]*\}`)

// parseSubstring hunts for a decodable object embedded in noise. Passes
// grow more permissive: balanced candidates as-is, balanced candidates
// after syntax repair, then flat single-level objects anywhere in the
// text.
func parseSubstring(content string, sc schema.Schema) map[string]any {
	candidates := balancedObjects(content, 16)
	for _, c := range candidates {
		if obj := parseDirect(c, sc); obj != nil {
			return obj
		}
	}
	for _, c := range candidates {
		if obj := parseDirect(textprep.RepairSyntax(c), sc); obj != nil {
			return obj
		}
	}
	for _, c := range reMinimalObject.FindAllString(content, 16) {
		if obj := parseDirect(textprep.RepairSyntax(c), sc); obj != nil && len(obj) > 0 {
			return obj
		}
	}
	return nil
}

// balancedObjects collects up to limit balanced {...} substrings, longest
// candidates first (scan order starts at each '{').
func balancedObjects(s string, limit int) []string {
	var out []string
	for start := 0; start < len(s) && len(out) < limit; start++ {
		if s[start] != '{' {
			continue
		}
		end := matchBrace(s, start)
		if end > start {
			out = append(out, s[start:end+1])
		}
	}
	return out
}

// matchBrace returns the index of the brace closing s[start], or -1.
func matchBrace(s string, start int) int {
	return matchBracket(s, start, '{', '}')
}

// parseFields reconstructs an object field by field with per-type
// extraction patterns. A partial result is acceptable; anything found at
// all beats a fallback.
func parseFields(content string, sc schema.Schema) map[string]any {
	out := make(map[string]any)
	for _, f := range sc.Fields {
		if v, ok := extractField(content, f); ok {
			out[f.Name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func extractField(content string, f schema.Field) (any, bool) {
	key := regexp.QuoteMeta(f.Name)
	switch f.Type {
	case schema.TypeNumber:
		re := regexp.MustCompile(`"?` + key + `"?\s*:\s*(-?\d+(?:\.\d+)?)`)
		if m := re.FindStringSubmatch(content); m != nil {
			var n float64
			if err := json.Unmarshal([]byte(m[1]), &n); err == nil {
				return n, true
			}
		}
	case schema.TypeBool:
		re := regexp.MustCompile(`"?` + key + `"?\s*:\s*(true|false)`)
		if m := re.FindStringSubmatch(content); m != nil {
			return m[1] == "true", true
		}
	case schema.TypeString:
		re := regexp.MustCompile(`"?` + key + `"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
		if m := re.FindStringSubmatch(content); m != nil {
			var s string
			if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &s); err == nil {
				return s, true
			}
		}
	case schema.TypeArray:
		if v, ok := extractComposite(content, key, '[', ']'); ok {
			if arr, isArr := v.([]any); isArr {
				return arr, true
			}
		}
	case schema.TypeObject:
		if v, ok := extractComposite(content, key, '{', '}'); ok {
			if obj, isObj := v.(map[string]any); isObj {
				return obj, true
			}
		}
	}
	return nil, false
}

// extractComposite locates `"key": <open>...` and decodes the balanced
// bracketed span that follows.
func extractComposite(content, quotedKey string, open, closer byte) (any, bool) {
	re := regexp.MustCompile(`"?` + quotedKey + `"?\s*:\s*` + regexp.QuoteMeta(string(open)))
	loc := re.FindStringIndex(content)
	if loc == nil {
		return nil, false
	}
	start := loc[1] - 1
	end := matchBracket(content, start, open, closer)
	if end < 0 {
		return nil, false
	}
	span := textprep.RepairSyntax(content[start : end+1])
	var v any
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return nil, false
	}
	return v, true
}

func matchBracket(s string, start int, open, closer byte) int {
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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
