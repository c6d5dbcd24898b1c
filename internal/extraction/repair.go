package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripCodeFences removes markdown code fences wrapped around a model reply
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// outermostObject returns the first balanced {...} in text. Braces inside JSON
// strings are ignored. It reports false if the object never closes.
func outermostObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeObject parses a model reply into a generic JSON object. It makes one
// direct attempt and, if that fails, one attempt on the outermost brace pair.
func decodeObject(reply string) (map[string]any, error) {
	text := stripCodeFences(reply)
	if text == "" {
		return nil, malformed("response is empty")
	}

	doc, directErr := decodeJSON(text)
	if directErr == nil {
		return asObject(doc)
	}

	candidate, ok := outermostObject(text)
	if !ok {
		return nil, malformed("response is not valid JSON and has no complete object: %v", directErr)
	}
	doc, err := decodeJSON(candidate)
	if err != nil {
		return nil, malformed("repaired response is still not valid JSON: %v", err)
	}
	return asObject(doc)
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	// Reject trailing content such as a second object or prose.
	if rest := strings.TrimSpace(text[dec.InputOffset():]); rest != "" {
		return nil, fmt.Errorf("unexpected content after JSON value at offset %d", dec.InputOffset())
	}
	return doc, nil
}

func asObject(doc any) (map[string]any, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, malformed("response top level is %T, not an object", doc)
	}
	return obj, nil
}
