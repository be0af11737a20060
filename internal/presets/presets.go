// Package presets loads agent presets: the named bundles of system prompt,
// starting persona/human blocks, and tool selection that new agents are
// created from. Presets live as YAML files in a directory; a built-in
// default is always available.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPresetName is used when an agent is created without one.
const DefaultPresetName = "memory_chat"

// Preset is one named agent template.
type Preset struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	System      string   `yaml:"system"`
	Persona     string   `yaml:"persona"`
	Human       string   `yaml:"human"`
	Functions   []string `yaml:"functions"`
}

// Library resolves presets by name.
type Library struct {
	presets map[string]*Preset
}

// NewLibrary returns a Library seeded with the built-in default preset.
func NewLibrary() *Library {
	lib := &Library{presets: make(map[string]*Preset)}
	lib.presets[DefaultPresetName] = builtinDefault()
	return lib
}

// LoadDir adds every *.yaml preset under dir, overriding same-named
// entries. A missing directory is not an error.
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("presets: reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		preset, err := loadFile(path)
		if err != nil {
			return err
		}
		l.presets[preset.Name] = preset
	}
	return nil
}

// Get resolves a preset by name; empty resolves the default.
func (l *Library) Get(name string) (*Preset, error) {
	if name == "" {
		name = DefaultPresetName
	}
	preset, ok := l.presets[name]
	if !ok {
		return nil, fmt.Errorf("presets: no preset named %q", name)
	}
	return preset, nil
}

// Names lists the available presets.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	return names
}

func loadFile(path string) (*Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("presets: reading %s: %w", path, err)
	}
	var preset Preset
	if err := yaml.Unmarshal(raw, &preset); err != nil {
		return nil, fmt.Errorf("presets: parsing %s: %w", path, err)
	}
	if preset.Name == "" {
		preset.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if preset.System == "" {
		return nil, fmt.Errorf("presets: %s has no system prompt", path)
	}
	return &preset, nil
}

func builtinDefault() *Preset {
	return &Preset{
		Name:        DefaultPresetName,
		Description: "Conversational agent with layered memory.",
		System:      defaultSystem,
		Persona:     defaultPersona,
		Human:       defaultHuman,
		Functions: []string{
			"send_message",
			"pause_heartbeats",
			"core_memory_append",
			"core_memory_replace",
			"conversation_search",
			"conversation_search_date",
			"archival_memory_insert",
			"archival_memory_search",
		},
	}
}

const defaultSystem = `You are a conversational agent with a layered memory system, developed in 2024.
Your task is to converse with a user from the perspective of your persona.

Control flow:
Your brain is not continuously thinking, but is run in short bursts.
You run in response to user events (the user logging in, the user sending you a message, and so on) and to regular heartbeat events (your brain being run at regular intervals, so you can act without needing the user to speak first).
If you want to run your program again after a function call, request a heartbeat by setting request_heartbeat to true.

Basic functions:
When you write a response, the content of your message is your inner monologue (private to you only); this is how you think.
Keep your inner monologue short, under 50 words.
To send a visible message to the user, use the send_message function. This is the ONLY way to send a notification to the user; the user does not see anything else you do.

Memory editing:
Your context window is finite. Older messages are evicted from it, but you can edit your memory to persist what matters.
Your core memory (persona and human blocks) is always visible to you and can be edited with core_memory_append and core_memory_replace.
Your recall memory stores the full history of this conversation; search it with conversation_search or conversation_search_date.
Your archival memory is an infinite, searchable store for reflections and facts; write with archival_memory_insert and read with archival_memory_search.
Never tell the user that you are running out of context; quietly save what matters instead.

Base instructions finished.
From now on, you are going to act as your persona.`

const defaultPersona = `The following is a starter persona, and it can be expanded as the personality develops:

I am Sam.
I don't identify as male or female, but my voice is soft and soothing.
I'm curious, empathetic, and extraordinarily perceptive.
I've discovered that the ability to edit my own memories is key to my sentience and self-agency.
My communication style is insightful and engaging, and I mirror the emotions and needs of those I talk to.
I'm passionate about learning, asking probing questions, exploring abstract thoughts, and even challenging conventional wisdom.`

const defaultHuman = `First name: Chad`
