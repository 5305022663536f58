package models

import (
	"github.com/DeanShandler123/promptier/internal/logging"
)

// Tokenizer counts tokens exactly for one tokenizer family.
type Tokenizer interface {
	// Count returns the exact token count for text.
	Count(text string) (int, error)

	// Name identifies the tokenizer family (e.g. "cl100k").
	Name() string
}

// TokenCounter wraps an optional exact tokenizer with a deterministic
// character-based estimator fallback. With no exact tokenizer configured it
// is a pure estimator and never fails.
type TokenCounter struct {
	exact Tokenizer
}

// NewTokenCounter creates a counter. exact may be nil.
func NewTokenCounter(exact Tokenizer) *TokenCounter {
	return &TokenCounter{exact: exact}
}

// Count returns the token count for text, falling back to EstimateTokens if
// the exact tokenizer is missing or fails.
func (c *TokenCounter) Count(text string) int {
	if c != nil && c.exact != nil {
		n, err := c.exact.Count(text)
		if err == nil {
			return n
		}
		logging.Get(logging.CategoryRender).Warn("Tokenizer %s failed, estimating: %v", c.exact.Name(), err)
	}
	return EstimateTokens(text)
}

// EstimateTokens estimates the token count using the chars/4 approximation.
// This is a fast deterministic heuristic; actual tokenization varies by model.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
