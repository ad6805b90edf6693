package standup

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Generation output is untrusted: models wrap JSON in prose or code fences,
// or return none at all. Parsing failures never fail the run; every caller
// has a degrade path back to the best prior structured value.

// ParseError reports unparsable generation output. Callers degrade rather
// than propagate it; it exists so logs can say what was wrong.
type ParseError struct {
	// What names the structure being parsed ("draft", "analysis").
	What string
	// Err is the underlying JSON error, if any.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable %s in generation output: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// extractJSONObject pulls the first top-level JSON object out of model
// output, tolerating code fences and surrounding prose.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeDraft parses a draft object from model output.
func decodeDraft(output string) (Draft, error) {
	obj, ok := extractJSONObject(output)
	if !ok {
		return Draft{}, &ParseError{What: "draft"}
	}
	var d Draft
	if err := json.Unmarshal([]byte(obj), &d); err != nil {
		return Draft{}, &ParseError{What: "draft", Err: err}
	}
	return d, nil
}

// analysis is the result of the draft completeness review.
type analysis struct {
	NeedsClarification bool     `json:"needs_clarification"`
	Questions          []string `json:"questions"`
}

// decodeAnalysis parses an analysis object from model output.
func decodeAnalysis(output string) (analysis, error) {
	obj, ok := extractJSONObject(output)
	if !ok {
		return analysis{}, &ParseError{What: "analysis"}
	}
	var a analysis
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return analysis{}, &ParseError{What: "analysis", Err: err}
	}
	return a, nil
}

// draftFromActivities builds the fallback draft skeleton used when
// generation output cannot be parsed.
func draftFromActivities(acts Activities) Draft {
	return Draft{
		Accomplishments: append([]string(nil), acts.Accomplishments...),
		Plans:           append([]string(nil), acts.Plans...),
		Blockers:        append([]string(nil), acts.Blockers...),
	}
}
