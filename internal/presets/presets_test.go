package presets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinDefault(t *testing.T) {
	lib := NewLibrary()

	preset, err := lib.Get("")
	if err != nil {
		t.Fatalf("Get default: %v", err)
	}
	if preset.Name != DefaultPresetName {
		t.Fatalf("name = %q", preset.Name)
	}
	if preset.System == "" || preset.Persona == "" || preset.Human == "" {
		t.Fatal("default preset incomplete")
	}

	required := map[string]bool{}
	for _, fn := range preset.Functions {
		required[fn] = true
	}
	for _, name := range []string{"send_message", "core_memory_append", "archival_memory_search"} {
		if !required[name] {
			t.Errorf("default preset missing %s", name)
		}
	}
}

func TestGetUnknown(t *testing.T) {
	lib := NewLibrary()
	if _, err := lib.Get("ghost"); err == nil {
		t.Fatal("unknown preset must error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	content := `name: focused
description: test preset
system: You are focused.
persona: I am focused.
human: "First name: Dana"
functions:
  - send_message
`
	if err := os.WriteFile(filepath.Join(dir, "focused.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}

	lib := NewLibrary()
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	preset, err := lib.Get("focused")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if preset.System != "You are focused." || len(preset.Functions) != 1 {
		t.Fatalf("preset = %+v", preset)
	}
}

func TestLoadDirMissing(t *testing.T) {
	lib := NewLibrary()
	if err := lib.LoadDir("/nonexistent/presets"); err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
}

func TestLoadDirNameFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	content := "system: Minimal.\npersona: P.\nhuman: H.\n"
	if err := os.WriteFile(filepath.Join(dir, "minimal.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lib := NewLibrary()
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if _, err := lib.Get("minimal"); err != nil {
		t.Fatalf("Get minimal: %v", err)
	}
}

func TestLoadDirRejectsMissingSystem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("persona: p\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	lib := NewLibrary()
	if err := lib.LoadDir(dir); err == nil {
		t.Fatal("preset without system must be rejected")
	}
}
