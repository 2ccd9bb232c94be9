// Package persona holds the read-only catalog of AI personas the relay can
// answer as. The catalog is loaded from configuration and may be swapped
// atomically when the configuration file changes.
package persona

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrUnknownPersona is returned when a persona ID is not in the catalog.
	ErrUnknownPersona = errors.New("unknown persona")

	// ErrInvalidPersona is returned when a persona definition is incomplete.
	ErrInvalidPersona = errors.New("invalid persona")
)

// Persona decides which provider and model answer, and how.
type Persona struct {
	ID           string `toml:"id" json:"id" mapstructure:"id"`
	Name         string `toml:"name" json:"name" mapstructure:"name"`
	ProviderID   string `toml:"provider" json:"provider" mapstructure:"provider"`
	ModelID      string `toml:"model" json:"model" mapstructure:"model"`
	SystemPrompt string `toml:"system_prompt" json:"-" mapstructure:"system_prompt"`
	Domain       string `toml:"domain" json:"domain" mapstructure:"domain"`
	MaxTokens    int    `toml:"max_tokens,omitempty" json:"max_tokens,omitempty" mapstructure:"max_tokens"`
}

// Validate checks the fields the relay depends on.
func (p Persona) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidPersona)
	case p.ProviderID == "":
		return fmt.Errorf("%w: %q has no provider", ErrInvalidPersona, p.ID)
	case p.ModelID == "":
		return fmt.Errorf("%w: %q has no model", ErrInvalidPersona, p.ID)
	case p.MaxTokens < 0:
		return fmt.Errorf("%w: %q has negative max_tokens", ErrInvalidPersona, p.ID)
	}
	return nil
}

// Catalog is a concurrency-safe set of personas keyed by ID.
type Catalog struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewCatalog builds a catalog from personas.
func NewCatalog(personas []Persona) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(personas); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps the whole catalog. On a validation error the current
// catalog is left untouched.
func (c *Catalog) Replace(personas []Persona) error {
	next := make(map[string]Persona, len(personas))
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidPersona, p.ID)
		}
		next[p.ID] = p
	}

	c.mu.Lock()
	c.personas = next
	c.mu.Unlock()
	return nil
}

// Get resolves a persona by ID.
func (c *Catalog) Get(id string) (Persona, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return p, nil
}

// List returns all personas sorted by ID.
func (c *Catalog) List() []Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Persona, 0, len(c.personas))
	for _, p := range c.personas {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Persona) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of personas.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.personas)
}
