// Package provider abstracts the external reasoning service consulted for
// semantic prompt analysis. One concrete implementation ships (Ollama);
// custom providers satisfy the same interface.
package provider

import "context"

// Health reports the outcome of a provider pre-flight check.
type Health struct {
	OK    bool
	Error string
}

// ReasoningProvider is the capability required by the semantic analyzer.
// All failures must surface as errors or a non-OK Health, never panics;
// callers treat every failure stage as recoverable.
type ReasoningProvider interface {
	// Generate sends one prompt (userText plus optional systemText) and
	// returns the raw model output.
	Generate(ctx context.Context, userText, systemText string) (string, error)

	// HealthCheck verifies the provider is reachable and the configured
	// model is available.
	HealthCheck(ctx context.Context) Health

	// ModelName returns the configured model identifier.
	ModelName() string
}
