package memory

import (
	"fmt"
	"strings"
)

// Default character budgets for the two core memory blocks. Raising these
// grows every prompt, so they stay small.
const (
	DefaultPersonaCharLimit = 2000
	DefaultHumanCharLimit   = 2000
)

// Core holds the two bounded blocks that are rendered verbatim into every
// prompt assembly: persona (who the agent is) and human (what the agent
// knows about its counterpart). Both are edited in place by tool calls, never
// replaced wholesale by the step engine itself.
type Core struct {
	Persona string
	Human   string

	PersonaCharLimit int
	HumanCharLimit   int
}

// NewCore builds a Core with the default character limits applied.
func NewCore(persona, human string) *Core {
	return &Core{
		Persona:          persona,
		Human:            human,
		PersonaCharLimit: DefaultPersonaCharLimit,
		HumanCharLimit:   DefaultHumanCharLimit,
	}
}

// ErrCharLimitExceeded is returned by the Edit* methods when new content
// would exceed the block's character budget.
type ErrCharLimitExceeded struct {
	Field     string
	Limit     int
	Requested int
}

func (e *ErrCharLimitExceeded) Error() string {
	return fmt.Sprintf("edit failed: exceeds %d character limit for %s (requested %d)", e.Limit, e.Field, e.Requested)
}

// EditPersona replaces the persona block wholesale.
func (c *Core) EditPersona(content string) error {
	return c.edit("persona", content)
}

// EditHuman replaces the human block wholesale.
func (c *Core) EditHuman(content string) error {
	return c.edit("human", content)
}

// EditAppend appends content to the named field, separated by sep (newline
// when empty).
func (c *Core) EditAppend(field, content, sep string) error {
	current, err := c.get(field)
	if err != nil {
		return err
	}
	if sep == "" {
		sep = "\n"
	}
	return c.edit(field, current+sep+content)
}

// EditReplace finds oldContent inside the named field and replaces it with
// newContent. It returns an error if oldContent is not found verbatim.
func (c *Core) EditReplace(field, oldContent, newContent string) error {
	if oldContent == "" {
		return fmt.Errorf("oldContent cannot be an empty string (must specify oldContent to replace)")
	}
	current, err := c.get(field)
	if err != nil {
		return err
	}
	if !strings.Contains(current, oldContent) {
		return fmt.Errorf("content not found in %s (make sure to use the exact string)", field)
	}
	return c.edit(field, strings.Replace(current, oldContent, newContent, 1))
}

func (c *Core) get(field string) (string, error) {
	switch field {
	case "persona":
		return c.Persona, nil
	case "human":
		return c.Human, nil
	default:
		return "", fmt.Errorf("no memory section named %q (must be either %q or %q)", field, "persona", "human")
	}
}

func (c *Core) edit(field, content string) error {
	switch field {
	case "persona":
		limit := c.limitFor(field)
		if limit > 0 && len(content) > limit {
			return &ErrCharLimitExceeded{Field: field, Limit: limit, Requested: len(content)}
		}
		c.Persona = content
		return nil
	case "human":
		limit := c.limitFor(field)
		if limit > 0 && len(content) > limit {
			return &ErrCharLimitExceeded{Field: field, Limit: limit, Requested: len(content)}
		}
		c.Human = content
		return nil
	default:
		return fmt.Errorf("no memory section named %q (must be either %q or %q)", field, "persona", "human")
	}
}

func (c *Core) limitFor(field string) int {
	switch field {
	case "persona":
		if c.PersonaCharLimit > 0 {
			return c.PersonaCharLimit
		}
		return DefaultPersonaCharLimit
	case "human":
		if c.HumanCharLimit > 0 {
			return c.HumanCharLimit
		}
		return DefaultHumanCharLimit
	}
	return 0
}

// Render produces the core-memory section of the prompt preamble.
func (c *Core) Render() string {
	var b strings.Builder
	b.WriteString("=== Persona ===\n")
	b.WriteString(c.Persona)
	b.WriteString("\n=== Human ===\n")
	b.WriteString(c.Human)
	return b.String()
}
