// Package observability provides monitoring and debugging capabilities for
// the agent server through metrics, structured logging, and distributed
// tracing.
//
// # Overview
//
// The package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Metrics
//
// Metrics track agent steps and chaining, LLM request latency and token
// usage, tool dispatch outcomes, context compactions, and the HTTP surface.
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a step
//	metrics.RecordStep(agentID, false, completionTokens)
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("openai", "gpt-4", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.Info(ctx, "step complete", "agent_id", agentID)
//
// # Tracing
//
// Tracing uses OpenTelemetry and exports spans over OTLP/gRPC when
// configured; without an endpoint it is a no-op.
package observability
