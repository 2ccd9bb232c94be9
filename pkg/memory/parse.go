package memory

import (
	"encoding/json"
	"strconv"
	"strings"
)

type rawFact struct {
	Fact       string          `json:"fact"`
	Category   string          `json:"category"`
	Importance json.RawMessage `json:"importance"`
}

// ParseFacts decodes a model response into facts. Code fences and prose
// around the array are tolerated. Anything that is not a JSON array yields
// no facts; array elements that don't decode or have empty text are skipped.
func ParseFacts(response string) []Fact {
	raw := extractArray(response)
	if raw == "" {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil
	}

	facts := make([]Fact, 0, len(elems))
	for _, elem := range elems {
		var rf rawFact
		if err := json.Unmarshal(elem, &rf); err != nil {
			continue
		}
		text := strings.TrimSpace(rf.Fact)
		if text == "" {
			continue
		}
		facts = append(facts, Fact{
			Text:       text,
			Category:   NormalizeCategory(rf.Category),
			Importance: parseImportance(rf.Importance),
		})
	}
	return facts
}

func parseImportance(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return DefaultImportance
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultImportance
	}
	return ClampImportance(n)
}

// extractArray returns the first balanced top-level JSON array in text, or
// "" when there is none.
func extractArray(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
