package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSON extracts a JSON object or array from a raw model response.
// Responses frequently wrap JSON in markdown fences or reasoning tags,
// so this strips the noise before locating the first balanced JSON value.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	cleaned = strings.TrimSpace(cleaned)

	if strings.Contains(cleaned, "```") {
		if start := strings.Index(cleaned, "```json"); start != -1 {
			cleaned = cleaned[start+len("```json"):]
		} else if start := strings.Index(cleaned, "```"); start != -1 {
			cleaned = cleaned[start+len("```"):]
		}
		if end := strings.Index(cleaned, "```"); end != -1 {
			cleaned = cleaned[:end]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	start := objStart
	open, close := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON found in response")
	}

	extracted, err := extractBalanced(cleaned[start:], open, close)
	if err != nil {
		return "", err
	}

	if !json.Valid([]byte(extracted)) {
		return "", fmt.Errorf("extracted text is not valid JSON")
	}
	return extracted, nil
}

// extractBalanced returns the prefix of s that forms a balanced JSON value
// starting at the given opening delimiter, tracking string and escape state.
func extractBalanced(s string, open, close byte) (string, error) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == close:
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON in response")
}

// ParseJSONResponse extracts JSON from a model response and unmarshals it
// into target.
func ParseJSONResponse(response string, target any) error {
	extracted, err := ExtractJSON(response)
	if err != nil {
		return fmt.Errorf("failed to extract JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
