package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DeanShandler123/promptier/internal/logging"
)

// DefaultEndpoint is the standard local Ollama address.
const DefaultEndpoint = "http://localhost:11434"

// Ollama calls a local Ollama server for semantic analysis.
type Ollama struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// OllamaOption configures an Ollama provider.
type OllamaOption func(*Ollama)

// WithTimeout sets the per-call timeout. Default is 60s.
func WithTimeout(d time.Duration) OllamaOption {
	return func(o *Ollama) { o.client.Timeout = d }
}

// WithTemperature overrides the sampling temperature. Analysis calls want
// deterministic output, so the default is 0.1.
func WithTemperature(t float64) OllamaOption {
	return func(o *Ollama) { o.temperature = t }
}

// WithHTTPClient replaces the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) { o.client = c }
}

// NewOllama creates a provider against the given endpoint and model.
// Empty endpoint defaults to DefaultEndpoint.
func NewOllama(endpoint, model string, opts ...OllamaOption) *Ollama {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	o := &Ollama{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		model:       model,
		temperature: 0.1,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ModelName returns the configured model identifier.
func (o *Ollama) ModelName() string { return o.model }

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	System      string  `json:"system,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate performs one non-streaming generation call.
func (o *Ollama) Generate(ctx context.Context, userText, systemText string) (string, error) {
	timer := logging.StartTimer(logging.CategoryProvider, "Ollama.Generate")
	defer timer.Stop()

	req := generateRequest{
		Model:       o.model,
		Prompt:      userText,
		Stream:      false,
		Temperature: o.temperature,
		System:      systemText,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HealthCheck lists the server's models and verifies the configured model is
// present, matching exactly or with a trailing ":tag" suffix (so "llama3"
// matches "llama3:latest").
func (o *Ollama) HealthCheck(ctx context.Context) Health {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return Health{Error: fmt.Sprintf("failed to create request: %v", err)}
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Health{Error: fmt.Sprintf("ollama unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{Error: fmt.Sprintf("ollama returned status %d", resp.StatusCode)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Health{Error: fmt.Sprintf("failed to decode models list: %v", err)}
	}

	for _, m := range tags.Models {
		if m.Name == o.model || strings.HasPrefix(m.Name, o.model+":") {
			return Health{OK: true}
		}
	}
	return Health{Error: fmt.Sprintf("model %q not available on server", o.model)}
}
