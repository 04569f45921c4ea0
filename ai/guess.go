package ai

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseGuess extracts a TemplateGuess from the model's response text.
// The response may contain markdown fencing or surrounding text, so we
// search for the JSON object within it.
func ParseGuess(response string) (*TemplateGuess, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, errors.New("no JSON found in model response")
	}

	var g TemplateGuess
	if err := json.Unmarshal([]byte(jsonStr), &g); err != nil {
		return nil, errors.Wrapf(err, "parse template guess %q", jsonStr)
	}
	g.TemplateID = strings.TrimSpace(g.TemplateID)
	if g.Params == nil {
		g.Params = map[string]any{}
	}
	if g.Confidence < 0 {
		g.Confidence = 0
	}
	if g.Confidence > 1 {
		g.Confidence = 1
	}
	return &g, nil
}

// extractJSON finds the first {...} JSON object in the text,
// handling markdown code fences and surrounding narrative.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		end := strings.Index(text[start:], "```")
		if end >= 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + len("```")
		end := strings.Index(text[start:], "```")
		if end >= 0 {
			candidate := strings.TrimSpace(text[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Match braces, skipping string contents.
	depth, start := 0, -1
	inStr, esc := false, false
	for i, ch := range text {
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inStr = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
