// Package memory extracts durable facts about a user from exchanges, stores
// them per (user, persona) with case-insensitive deduplication, and renders
// them back into persona system prompts.
package memory

import (
	"math"
	"strings"
	"time"
)

// Fact categories.
const (
	CategoryPersonal    = "personal"
	CategoryGoal        = "goal"
	CategoryPreference  = "preference"
	CategoryAchievement = "achievement"
	CategoryChallenge   = "challenge"
)

// Importance bounds.
const (
	MinImportance     = 1
	MaxImportance     = 10
	DefaultImportance = 5
)

// Categories lists every valid category.
func Categories() []string {
	return []string{CategoryPersonal, CategoryGoal, CategoryPreference, CategoryAchievement, CategoryChallenge}
}

// Fact is one durable piece of knowledge about a user. ID, Source and
// CreatedAt are only set on facts read back from the store.
type Fact struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"fact"`
	Category   string    `json:"category"`
	Importance int       `json:"importance"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// Key is the case-insensitive identity used for deduplication.
func (f Fact) Key() string {
	return normalizeKey(f.Text)
}

func normalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeCategory maps unknown categories to personal.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, known := range Categories() {
		if c == known {
			return c
		}
	}
	return CategoryPersonal
}

// ClampImportance rounds and bounds importance to [MinImportance, MaxImportance].
func ClampImportance(importance float64) int {
	if math.IsNaN(importance) {
		return DefaultImportance
	}
	// Bound before converting: int() of an out-of-range float is undefined.
	clamped := math.Max(MinImportance, math.Min(MaxImportance, math.Round(importance)))
	return int(clamped)
}
