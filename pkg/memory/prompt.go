package memory

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You extract durable facts about the USER from a single exchange with their %s coach.

Rules:
- Include only facts the user explicitly stated or strongly implied in their own words. Never take facts from the coach's reply.
- Write each fact as a short third-person statement, e.g. "Runs 3x per week".
- category must be one of: personal, goal, preference, achievement, challenge.
- importance is an integer from 1 (trivia) to 10 (central to the user's goals).
- If nothing is worth remembering, return [].

Respond with only a JSON array and no other text:
[{"fact": "...", "category": "goal", "importance": 7}]`

// ExtractionPrompt returns the system prompt and user message for the
// secondary extraction call.
func ExtractionPrompt(userText, assistantText, domain string) (system, message string) {
	if strings.TrimSpace(domain) == "" {
		domain = "personal"
	}
	system = fmt.Sprintf(extractionSystemPrompt, domain)
	message = fmt.Sprintf("User: %s\n\nCoach: %s", userText, assistantText)
	return system, message
}

// FormatForPrompt renders facts as a system prompt section. Returns "" when
// there are no facts.
func FormatForPrompt(facts []Fact) string {
	if len(facts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("What you know about this user from earlier conversations:\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s (%s)\n", f.Text, f.Category)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// AugmentSystemPrompt appends the rendered facts to a persona's system prompt.
func AugmentSystemPrompt(system string, facts []Fact) string {
	section := FormatForPrompt(facts)
	switch {
	case section == "":
		return system
	case system == "":
		return section
	default:
		return system + "\n\n" + section
	}
}
