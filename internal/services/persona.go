// Package services – PersonaCatalog
//
// The persona catalog lists the coaching identities a user may talk to. It is
// loaded from a YAML file when PERSONAS_PATH is set and falls back to a
// built-in set otherwise.
package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// DefaultPersonas is the built-in catalog.
var DefaultPersonas = []domain.Persona{
	{ID: "1", Name: "Coach Maya", Greeting: "Hi, I'm Maya, your fitness coach. What would you like to work on today?"},
	{ID: "2", Name: "Chef Leo", Greeting: "Hi, I'm Leo. Tell me about your eating habits and goals."},
	{ID: "3", Name: "Zen Ava", Greeting: "Hi, I'm Ava. How are you feeling today?"},
}

// PersonaCatalog is an immutable, ordered set of personas.
type PersonaCatalog struct {
	list []domain.Persona
	byID map[string]domain.Persona
}

type catalogFile struct {
	Personas []domain.Persona `yaml:"personas"`
}

// NewPersonaCatalog validates personas and builds a catalog. IDs must be
// unique and non-empty; names must be non-empty.
func NewPersonaCatalog(personas []domain.Persona) (*PersonaCatalog, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("%w: no personas", ErrInvalidCatalog)
	}
	c := &PersonaCatalog{
		list: make([]domain.Persona, 0, len(personas)),
		byID: make(map[string]domain.Persona, len(personas)),
	}
	for i, p := range personas {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		p.Greeting = strings.TrimSpace(p.Greeting)
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: persona #%d needs id and name", ErrInvalidCatalog, i+1)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate persona id %q", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = p
		c.list = append(c.list, p)
	}
	return c, nil
}

// LoadPersonaCatalog reads a YAML catalog of the form
//
//	personas:
//	  - id: "1"
//	    name: Coach Maya
//	    greeting: Hi!
//
// An empty path yields DefaultPersonas.
func LoadPersonaCatalog(path string) (*PersonaCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return NewPersonaCatalog(DefaultPersonas)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewPersonaCatalog(f.Personas)
}

// List returns the personas in catalog order.
func (c *PersonaCatalog) List() []domain.Persona {
	out := make([]domain.Persona, len(c.list))
	copy(out, c.list)
	return out
}

// Get looks up a persona by id.
func (c *PersonaCatalog) Get(id string) (domain.Persona, bool) {
	p, ok := c.byID[strings.TrimSpace(id)]
	return p, ok
}
