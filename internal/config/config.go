// Package config loads the core's on-disk configuration: an INI-style file
// with sections for model/embedding defaults and storage connection info.
// No INI library appears anywhere in the example pack this module was
// grounded on, so the parser below is a small hand-rolled one over the
// standard library (see DESIGN.md for why no third-party dependency covers
// this concern).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config is the INI-derived configuration surface the core depends on:
// model/embedding defaults and the three storage backends (archival,
// recall, metadata). Everything else — channels, plugins, gateway routing —
// belongs to the surrounding application, not the step-engine core.
type Config struct {
	Defaults         DefaultsConfig
	Model            ModelConfig
	Embedding        EmbeddingConfig
	ArchivalStorage  StorageConfig
	RecallStorage    StorageConfig
	MetadataStorage  StorageConfig
	Client           ClientConfig
}

// DefaultsConfig holds preset-level defaults applied to new agents.
type DefaultsConfig struct {
	Preset           string
	PersonaCharLimit int
	HumanCharLimit   int
}

// ModelConfig describes the default LLM binding.
type ModelConfig struct {
	Provider      string
	Name          string
	ContextWindow int
	Endpoint      string
	APIKey        string
}

// EmbeddingConfig describes the default embedding provider binding.
type EmbeddingConfig struct {
	Provider           string
	Name               string
	EmbeddingDim       int
	EmbeddingChunkSize int
	Endpoint           string
	APIKey             string
}

// StorageConfig is a generic connection descriptor for one of the three
// storage backends the core depends on (archival/recall/metadata).
type StorageConfig struct {
	Backend string // e.g. "postgres", "sqlite", "memory"
	Path    string // file path, for file-backed backends
	DSN     string // connection string, for networked backends
}

// ClientConfig configures outbound call behavior shared by the LLM and
// embedding HTTP clients.
type ClientConfig struct {
	TimeoutSeconds int
	MaxRetries     int
}

// Default returns a Config with the defaults this module falls back to when
// a field, or the whole file, is absent.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Preset:           "default",
			PersonaCharLimit: 2000,
			HumanCharLimit:   2000,
		},
		Model: ModelConfig{
			Provider:      "openai",
			ContextWindow: 128000,
		},
		Embedding: EmbeddingConfig{
			Provider:           "openai",
			EmbeddingDim:       1536,
			EmbeddingChunkSize: 300,
		},
		ArchivalStorage: StorageConfig{Backend: "memory"},
		RecallStorage:   StorageConfig{Backend: "memory"},
		MetadataStorage: StorageConfig{Backend: "memory"},
		Client: ClientConfig{
			TimeoutSeconds: 60,
			MaxRetries:     20,
		},
	}
}

// Load reads an INI-style config file from path. Missing fields keep the
// Default() value for their section; a missing file is not an error — the
// caller gets pure defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes an INI document from r into a Config seeded with defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	sections, err := parseINI(r)
	if err != nil {
		return nil, err
	}

	if s, ok := sections["defaults"]; ok {
		if v, ok := s["preset"]; ok {
			cfg.Defaults.Preset = v
		}
		if v, ok := s["persona_char_limit"]; ok {
			n, err := parseIntField("defaults.persona_char_limit", v)
			if err != nil {
				return nil, err
			}
			cfg.Defaults.PersonaCharLimit = n
		}
		if v, ok := s["human_char_limit"]; ok {
			n, err := parseIntField("defaults.human_char_limit", v)
			if err != nil {
				return nil, err
			}
			cfg.Defaults.HumanCharLimit = n
		}
	}

	if s, ok := sections["model"]; ok {
		assignString(s, "provider", &cfg.Model.Provider)
		assignString(s, "name", &cfg.Model.Name)
		assignString(s, "endpoint", &cfg.Model.Endpoint)
		assignString(s, "api_key", &cfg.Model.APIKey)
		if v, ok := s["context_window"]; ok {
			n, err := parseIntField("model.context_window", v)
			if err != nil {
				return nil, err
			}
			cfg.Model.ContextWindow = n
		}
	}

	if s, ok := sections["embedding"]; ok {
		assignString(s, "provider", &cfg.Embedding.Provider)
		assignString(s, "name", &cfg.Embedding.Name)
		assignString(s, "endpoint", &cfg.Embedding.Endpoint)
		assignString(s, "api_key", &cfg.Embedding.APIKey)
		if v, ok := s["embedding_dim"]; ok {
			n, err := parseIntField("embedding.embedding_dim", v)
			if err != nil {
				return nil, err
			}
			cfg.Embedding.EmbeddingDim = n
		}
		if v, ok := s["embedding_chunk_size"]; ok {
			n, err := parseIntField("embedding.embedding_chunk_size", v)
			if err != nil {
				return nil, err
			}
			cfg.Embedding.EmbeddingChunkSize = n
		}
	}

	if s, ok := sections["archival_storage"]; ok {
		parseStorage(s, &cfg.ArchivalStorage)
	}
	if s, ok := sections["recall_storage"]; ok {
		parseStorage(s, &cfg.RecallStorage)
	}
	if s, ok := sections["metadata_storage"]; ok {
		parseStorage(s, &cfg.MetadataStorage)
	}

	if s, ok := sections["client"]; ok {
		if v, ok := s["timeout_seconds"]; ok {
			n, err := parseIntField("client.timeout_seconds", v)
			if err != nil {
				return nil, err
			}
			cfg.Client.TimeoutSeconds = n
		}
		if v, ok := s["max_retries"]; ok {
			n, err := parseIntField("client.max_retries", v)
			if err != nil {
				return nil, err
			}
			cfg.Client.MaxRetries = n
		}
	}

	return cfg, nil
}

func parseStorage(s map[string]string, dst *StorageConfig) {
	assignString(s, "backend", &dst.Backend)
	assignString(s, "path", &dst.Path)
	assignString(s, "dsn", &dst.DSN)
}

func assignString(s map[string]string, key string, dst *string) {
	if v, ok := s[key]; ok {
		*dst = v
	}
}

func parseIntField(field, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: %s must be numeric, got %q: %w", field, raw, err)
	}
	return n, nil
}

// parseINI does a single pass over an INI document, returning
// section -> key -> value. Keys outside any section are collected under "".
// Comments start with ';' or '#'; inline comments are not supported, to keep
// the parser predictable for values that may contain '#' (e.g. API keys).
func parseINI(r io.Reader) (map[string]map[string]string, error) {
	sections := map[string]map[string]string{"": {}}
	current := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := sections[current]; !ok {
				sections[current] = map[string]string{}
			}
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, fmt.Errorf("config: line %d: expected key=value, got %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"`)
		sections[current][key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scanning: %w", err)
	}
	return sections, nil
}
