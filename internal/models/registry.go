// Package models maps model identifiers to capability facts and provides
// token counting. Lookup is three-tiered: exact id match, pattern-based
// family inference, then a conservative default for unknown models.
package models

import (
	"sort"
	"strings"
	"sync"

	"github.com/DeanShandler123/promptier/internal/logging"
)

// Preferred prompt formats reported by capability lookup. The prompt package
// maps these onto its formatter strategies.
const (
	FormatTags    = "tags"
	FormatHeaders = "headers"
	FormatPlain   = "plain"
)

// Capabilities describes what a target model supports.
type Capabilities struct {
	// ContextWindow is the maximum prompt size in tokens.
	ContextWindow int `json:"context_window"`

	// PreferredFormat is the prompt format the model family responds best to
	// (FormatTags, FormatHeaders or FormatPlain).
	PreferredFormat string `json:"preferred_format"`

	// SupportsCaching reports whether the provider offers cached prompt
	// prefixes for this model.
	SupportsCaching bool `json:"supports_caching"`

	// Tokenizer names the tokenizer family used for exact counting.
	Tokenizer string `json:"tokenizer"`
}

// DefaultCapabilities is the safe fallback for unrecognized models:
// a small window, plain formatting, no caching assumption.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		ContextWindow:   8192,
		PreferredFormat: FormatPlain,
		SupportsCaching: false,
		Tokenizer:       "estimator",
	}
}

// knownModels maps exact model ids to capabilities.
var knownModels = map[string]Capabilities{
	"claude-opus-4":     {ContextWindow: 200000, PreferredFormat: FormatTags, SupportsCaching: true, Tokenizer: "claude"},
	"claude-sonnet-4":   {ContextWindow: 200000, PreferredFormat: FormatTags, SupportsCaching: true, Tokenizer: "claude"},
	"claude-haiku-3":    {ContextWindow: 200000, PreferredFormat: FormatTags, SupportsCaching: true, Tokenizer: "claude"},
	"gpt-4o":            {ContextWindow: 128000, PreferredFormat: FormatHeaders, SupportsCaching: true, Tokenizer: "o200k"},
	"gpt-4o-mini":       {ContextWindow: 128000, PreferredFormat: FormatHeaders, SupportsCaching: true, Tokenizer: "o200k"},
	"gpt-4-turbo":       {ContextWindow: 128000, PreferredFormat: FormatHeaders, SupportsCaching: false, Tokenizer: "cl100k"},
	"gemini-2.0-flash":  {ContextWindow: 1000000, PreferredFormat: FormatHeaders, SupportsCaching: true, Tokenizer: "gemini"},
	"gemini-1.5-pro":    {ContextWindow: 2000000, PreferredFormat: FormatHeaders, SupportsCaching: true, Tokenizer: "gemini"},
	"llama3.3":          {ContextWindow: 128000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "llama"},
	"mistral-large":     {ContextWindow: 128000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "mistral"},
	"o1":                {ContextWindow: 200000, PreferredFormat: FormatHeaders, SupportsCaching: false, Tokenizer: "o200k"},
	"deepseek-r1":       {ContextWindow: 128000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "deepseek"},
}

// familyPattern infers capabilities for model ids that are not an exact
// match. Patterns are substring matches checked in order.
type familyPattern struct {
	substr string
	caps   Capabilities
}

var familyPatterns = []familyPattern{
	{"claude", Capabilities{ContextWindow: 200000, PreferredFormat: FormatTags, SupportsCaching: true, Tokenizer: "claude"}},
	{"gpt-", Capabilities{ContextWindow: 128000, PreferredFormat: FormatHeaders, SupportsCaching: false, Tokenizer: "cl100k"}},
	{"gemini", Capabilities{ContextWindow: 1000000, PreferredFormat: FormatHeaders, SupportsCaching: true, Tokenizer: "gemini"}},
	{"llama", Capabilities{ContextWindow: 128000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "llama"}},
	{"mistral", Capabilities{ContextWindow: 32000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "mistral"}},
	{"qwen", Capabilities{ContextWindow: 32000, PreferredFormat: FormatPlain, SupportsCaching: false, Tokenizer: "qwen"}},
}

// Registry resolves model ids to capabilities. One process-scoped instance
// (see Default) is created at init and lives for the process lifetime;
// Register extends it at runtime for custom or self-hosted models.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]Capabilities
}

// defaultRegistry is the process-scoped registry. Created once at package
// init, read/written thereafter through Default().
var defaultRegistry = NewRegistry()

// Default returns the process-scoped registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry creates an empty registry layered over the built-in tables.
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]Capabilities)}
}

// Register adds or replaces a custom model entry. Custom entries take
// precedence over the built-in table on exact match.
func (r *Registry) Register(modelID string, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[modelID] = caps
	logging.Get(logging.CategoryBoot).Debug("Registered custom model %q (window=%d)", modelID, caps.ContextWindow)
}

// Unregister removes a custom model entry. Built-in entries are unaffected.
func (r *Registry) Unregister(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, modelID)
}

// Lookup resolves a model id: custom exact match, built-in exact match,
// family pattern, then DefaultCapabilities. Never fails.
func (r *Registry) Lookup(modelID string) Capabilities {
	r.mu.RLock()
	if caps, ok := r.custom[modelID]; ok {
		r.mu.RUnlock()
		return caps
	}
	r.mu.RUnlock()

	if caps, ok := knownModels[modelID]; ok {
		return caps
	}

	lower := strings.ToLower(modelID)
	for _, fp := range familyPatterns {
		if strings.Contains(lower, fp.substr) {
			return fp.caps
		}
	}

	logging.Get(logging.CategoryBoot).Debug("Unknown model %q, using default capabilities", modelID)
	return DefaultCapabilities()
}

// Known returns all exactly-registered model ids, sorted. Custom entries are
// included.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(knownModels)+len(r.custom))
	for id := range knownModels {
		ids = append(ids, id)
	}
	for id := range r.custom {
		if _, builtin := knownModels[id]; !builtin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
