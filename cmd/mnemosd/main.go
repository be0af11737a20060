// Package main provides the CLI entry point for the mnemos agent daemon.
//
// mnemos hosts long-lived conversational agents with a bounded in-context
// working set and two tiers of overflow memory (recall and archival),
// exposing them over a minimal HTTP/SSE surface.
//
// # Basic Usage
//
// Start the server:
//
//	mnemosd serve --config mnemos.ini
//
// # Environment Variables
//
//   - MNEMOS_CONFIG: Path to configuration file (default: mnemos.ini)
//   - OPENAI_API_KEY: API key for the completion and embedding endpoints
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/mnemos/internal/agent/providers"
	"github.com/haasonsaas/mnemos/internal/auth"
	"github.com/haasonsaas/mnemos/internal/config"
	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/internal/httpapi"
	"github.com/haasonsaas/mnemos/internal/memory"
	"github.com/haasonsaas/mnemos/internal/memory/backend"
	"github.com/haasonsaas/mnemos/internal/memory/backend/memstore"
	"github.com/haasonsaas/mnemos/internal/memory/backend/pgvector"
	"github.com/haasonsaas/mnemos/internal/memory/backend/sqlitestore"
	"github.com/haasonsaas/mnemos/internal/memory/embeddings"
	ollamaembed "github.com/haasonsaas/mnemos/internal/memory/embeddings/ollama"
	openaiembed "github.com/haasonsaas/mnemos/internal/memory/embeddings/openai"
	"github.com/haasonsaas/mnemos/internal/metadata"
	"github.com/haasonsaas/mnemos/internal/observability"
	"github.com/haasonsaas/mnemos/internal/presets"
	"github.com/haasonsaas/mnemos/internal/recall"
	"github.com/haasonsaas/mnemos/internal/tools"
	agentpkg "github.com/haasonsaas/mnemos/internal/agent"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mnemosd",
		Short:        "mnemos - conversational agents with layered memory",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var configPath string
	var listenAddr string
	var presetsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("MNEMOS_CONFIG")
			}
			if configPath == "" {
				configPath = "mnemos.ini"
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, listenAddr, presetsDir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8283", "Listen address")
	cmd.Flags().StringVar(&presetsDir, "presets", "presets", "Directory of preset YAML files")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, listenAddr, presetsDir string) error {
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
	metrics := observability.NewMetrics()

	apiKey := cfg.Model.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	provider := providers.NewOpenAIProvider(apiKey, cfg.Model.Endpoint,
		time.Duration(cfg.Client.TimeoutSeconds)*time.Second)

	recallStore, err := buildRecallStore(cfg)
	if err != nil {
		return err
	}
	metadataStore, err := buildMetadataStore(cfg)
	if err != nil {
		return err
	}

	registry := agentpkg.NewToolRegistry()
	tools.RegisterBuiltins(registry)

	archivalFn, err := buildArchivalFactory(cfg)
	if err != nil {
		// Archival is an enrichment, not a prerequisite: agents still run
		// with core and recall memory only.
		logger.Error(ctx, "archival memory unavailable, continuing without it", "error", err)
		archivalFn = nil
	}

	eng := engine.New(provider, registry, recallStore, metadataStore, archivalFn, logger, metrics, engine.Config{
		CoreLimits: engine.CoreLimits{
			Persona: cfg.Defaults.PersonaCharLimit,
			Human:   cfg.Defaults.HumanCharLimit,
		},
	})

	scheduler := heartbeat.NewScheduler(heartbeat.DefaultConfig())
	eng.SetHeartbeatScheduler(scheduler)
	defer scheduler.StopAll()

	if archivalFn != nil {
		eng.SetMemoryHooks(memory.NewHooks(
			memory.AutoCaptureConfig{Enabled: true},
			memory.AutoRecallConfig{Enabled: true},
			nil))
	}

	library := presets.NewLibrary()
	if err := library.LoadDir(presetsDir); err != nil {
		return err
	}

	authService := auth.NewService(auth.Config{}, metadataStore)

	server := httpapi.NewServer(eng, authService, library, logger, metrics, httpapi.Defaults{
		LLM: engine.LLMConfig{
			Provider:      cfg.Model.Provider,
			Model:         cfg.Model.Name,
			Endpoint:      cfg.Model.Endpoint,
			ContextWindow: cfg.Model.ContextWindow,
		},
		Embedding: engine.EmbeddingConfig{
			Provider:           cfg.Embedding.Provider,
			Model:              cfg.Embedding.Name,
			Endpoint:           cfg.Embedding.Endpoint,
			EmbeddingDim:       cfg.Embedding.EmbeddingDim,
			EmbeddingChunkSize: cfg.Embedding.EmbeddingChunkSize,
		},
	})

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildRecallStore(cfg *config.Config) (recall.Store, error) {
	switch cfg.RecallStorage.Backend {
	case "postgres":
		return recall.NewPostgresStoreFromDSN(cfg.RecallStorage.DSN, nil)
	case "memory", "":
		return recall.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown recall backend %q", cfg.RecallStorage.Backend)
	}
}

func buildMetadataStore(cfg *config.Config) (metadata.Store, error) {
	switch cfg.MetadataStorage.Backend {
	case "postgres":
		return metadata.NewPostgresStoreFromDSN(cfg.MetadataStorage.DSN, 0)
	case "memory", "":
		return metadata.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataStorage.Backend)
	}
}

// buildArchivalFactory wires per-agent archival memory over the configured
// vector backend and embedding provider. A nil factory disables archival
// for every agent.
func buildArchivalFactory(cfg *config.Config) (engine.ArchivalFactory, error) {
	var store backend.Store
	var err error
	switch cfg.ArchivalStorage.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		store = memstore.New()
	case "sqlite":
		store, err = sqlitestore.Open(cfg.ArchivalStorage.Path)
	case "pgvector", "postgres":
		store, err = pgvector.Open(pgvector.Config{
			DSN:           cfg.ArchivalStorage.DSN,
			Dimension:     embeddings.MaxEmbeddingDim,
			RunMigrations: true,
		})
	default:
		return nil, fmt.Errorf("unknown archival backend %q", cfg.ArchivalStorage.Backend)
	}
	if err != nil {
		return nil, err
	}

	embedCfg := embeddings.Config{
		Provider: cfg.Embedding.Provider,
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.Endpoint,
		Model:    cfg.Embedding.Name,
	}
	var embedder embeddings.Provider
	switch cfg.Embedding.Provider {
	case "openai", "":
		embedder, err = openaiembed.New(embedCfg)
	case "ollama":
		embedder, err = ollamaembed.New(embedCfg)
	default:
		err = fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}
	// Vectors are padded to the fixed maximum width so backends with
	// fixed-width columns survive embedding model changes.
	padded := embeddings.NewPadded(embedder)

	return func(record *engine.AgentRecord) *memory.Archival {
		return memory.NewArchival(store, padded, record.ID, record.Embedding.EmbeddingChunkSize)
	}, nil
}
