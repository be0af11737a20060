package memory

import (
	"errors"
	"strings"
	"testing"
)

func TestCoreEditWithinLimit(t *testing.T) {
	core := NewCore("persona text", "human text")
	if err := core.EditPersona("new persona"); err != nil {
		t.Fatalf("EditPersona: %v", err)
	}
	if core.Persona != "new persona" {
		t.Fatalf("persona = %q", core.Persona)
	}
}

func TestCoreEditOverLimit(t *testing.T) {
	core := NewCore("p", "h")
	core.PersonaCharLimit = 10

	err := core.EditPersona(strings.Repeat("x", 11))
	if err == nil {
		t.Fatal("expected char-limit error")
	}
	var limitErr *ErrCharLimitExceeded
	if !errors.As(err, &limitErr) {
		t.Fatalf("error type = %T", err)
	}
	if limitErr.Limit != 10 || limitErr.Requested != 11 {
		t.Fatalf("limit error = %+v", limitErr)
	}
	// Failed edits must not change state.
	if core.Persona != "p" {
		t.Fatalf("persona mutated on failed edit: %q", core.Persona)
	}
}

func TestCoreEditAppend(t *testing.T) {
	core := NewCore("p", "h")
	if err := core.EditAppend("human", "more", ""); err != nil {
		t.Fatalf("EditAppend: %v", err)
	}
	if core.Human != "h\nmore" {
		t.Fatalf("human = %q", core.Human)
	}
	if err := core.EditAppend("human", "third", " | "); err != nil {
		t.Fatalf("EditAppend with sep: %v", err)
	}
	if core.Human != "h\nmore | third" {
		t.Fatalf("human = %q", core.Human)
	}
}

func TestCoreEditAppendOverLimit(t *testing.T) {
	core := NewCore("p", strings.Repeat("h", 1999))
	if err := core.EditAppend("human", "overflow", ""); err == nil {
		t.Fatal("append past the limit must fail")
	}
}

func TestCoreEditReplace(t *testing.T) {
	core := NewCore("p", "likes tea and toast")

	if err := core.EditReplace("human", "tea", "coffee"); err != nil {
		t.Fatalf("EditReplace: %v", err)
	}
	if core.Human != "likes coffee and toast" {
		t.Fatalf("human = %q", core.Human)
	}

	if err := core.EditReplace("human", "", "x"); err == nil {
		t.Fatal("empty old content must be rejected")
	}
	if err := core.EditReplace("human", "absent", "x"); err == nil {
		t.Fatal("missing old content must be rejected")
	}
}

func TestCoreUnknownField(t *testing.T) {
	core := NewCore("p", "h")
	if err := core.EditAppend("memories", "x", ""); err == nil {
		t.Fatal("unknown field must be rejected")
	}
	if err := core.EditReplace("memories", "a", "b"); err == nil {
		t.Fatal("unknown field must be rejected")
	}
}

func TestCoreRender(t *testing.T) {
	core := NewCore("the persona", "the human")
	rendered := core.Render()
	if !strings.Contains(rendered, "the persona") || !strings.Contains(rendered, "the human") {
		t.Fatalf("render missing blocks: %s", rendered)
	}
}
