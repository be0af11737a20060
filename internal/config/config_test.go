package config

import (
	"strings"
	"testing"
)

const sampleINI = `
; server configuration
[defaults]
preset = memory_chat
persona_char_limit = 3000
human_char_limit = "2500"

[model]
provider = openai
name = gpt-4
context_window = 8192
endpoint = https://api.example.com/v1

[embedding]
provider = openai
name = text-embedding-3-small
embedding_dim = 1536
embedding_chunk_size = 300

[archival_storage]
backend = pgvector
dsn = postgres://localhost/archival

[recall_storage]
backend = postgres
dsn = postgres://localhost/recall

[metadata_storage]
backend = memory

[client]
timeout_seconds = 30
max_retries = 20
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleINI))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Defaults.Preset != "memory_chat" {
		t.Errorf("preset = %q", cfg.Defaults.Preset)
	}
	// String-encoded numerics are coerced, quoted or not.
	if cfg.Defaults.PersonaCharLimit != 3000 || cfg.Defaults.HumanCharLimit != 2500 {
		t.Errorf("char limits = %d/%d", cfg.Defaults.PersonaCharLimit, cfg.Defaults.HumanCharLimit)
	}
	if cfg.Model.ContextWindow != 8192 {
		t.Errorf("context_window = %d", cfg.Model.ContextWindow)
	}
	if cfg.Embedding.EmbeddingDim != 1536 || cfg.Embedding.EmbeddingChunkSize != 300 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.ArchivalStorage.Backend != "pgvector" || cfg.ArchivalStorage.DSN == "" {
		t.Errorf("archival = %+v", cfg.ArchivalStorage)
	}
	if cfg.RecallStorage.Backend != "postgres" {
		t.Errorf("recall = %+v", cfg.RecallStorage)
	}
	if cfg.MetadataStorage.Backend != "memory" {
		t.Errorf("metadata = %+v", cfg.MetadataStorage)
	}
	if cfg.Client.TimeoutSeconds != 30 || cfg.Client.MaxRetries != 20 {
		t.Errorf("client = %+v", cfg.Client)
	}
}

func TestParseDefaultsWhenSectionsMissing(t *testing.T) {
	cfg, err := Parse(strings.NewReader("[model]\nname = gpt-4\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Defaults.PersonaCharLimit != 2000 {
		t.Errorf("persona limit default = %d", cfg.Defaults.PersonaCharLimit)
	}
	if cfg.Model.Name != "gpt-4" {
		t.Errorf("model name = %q", cfg.Model.Name)
	}
	if cfg.Model.ContextWindow != 128000 {
		t.Errorf("context window default = %d", cfg.Model.ContextWindow)
	}
}

func TestParseRejectsBadNumeric(t *testing.T) {
	_, err := Parse(strings.NewReader("[model]\ncontext_window = lots\n"))
	if err == nil {
		t.Fatal("non-numeric context_window must be rejected")
	}
	if !strings.Contains(err.Error(), "context_window") {
		t.Fatalf("error should name the field: %v", err)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("[model]\nthis line has no equals\n"))
	if err == nil {
		t.Fatal("malformed line must be rejected")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/to/config.ini")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.Preset != "default" {
		t.Errorf("preset = %q", cfg.Defaults.Preset)
	}
}

func TestParseComments(t *testing.T) {
	cfg, err := Parse(strings.NewReader("# comment\n; another\n[client]\ntimeout_seconds = 5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Client.TimeoutSeconds != 5 {
		t.Errorf("timeout = %d", cfg.Client.TimeoutSeconds)
	}
}
