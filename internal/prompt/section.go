// Package prompt implements the promptier render pipeline: typed sections
// are resolved against a context, reordered to maximize the cacheable prefix,
// and assembled by a pluggable formatter into a single system prompt with a
// character-level provenance table.
//
// The pipeline guarantees:
// 1. Deterministic output - dynamic sections resolve strictly in declaration
//    order, never concurrently.
// 2. Traceable output - every located section maps to a non-overlapping
//    output range in the provenance table.
// 3. Cache-friendly output - cacheable sections are grouped into a stable
//    prefix when optimization is on.
package prompt

import (
	"context"
	"fmt"
)

// SectionType classifies a section's role in the prompt. The set is closed;
// SectionCustom carries a user-supplied name for anything outside it.
type SectionType string

const (
	// SectionIdentity defines who the assistant is.
	SectionIdentity SectionType = "identity"

	// SectionCapabilities lists what the assistant can do.
	SectionCapabilities SectionType = "capabilities"

	// SectionConstraints lists what the assistant must not do.
	SectionConstraints SectionType = "constraints"

	// SectionDomain carries domain background knowledge.
	SectionDomain SectionType = "domain"

	// SectionTools describes available tools.
	SectionTools SectionType = "tools"

	// SectionContext carries per-request dynamic context.
	SectionContext SectionType = "context"

	// SectionExamples holds few-shot examples.
	SectionExamples SectionType = "examples"

	// SectionFormat specifies the required response format.
	SectionFormat SectionType = "format"

	// SectionCustom is the escape hatch; Name is required.
	SectionCustom SectionType = "custom"
)

// AllSectionTypes returns the closed set of section types.
func AllSectionTypes() []SectionType {
	return []SectionType{
		SectionIdentity,
		SectionCapabilities,
		SectionConstraints,
		SectionDomain,
		SectionTools,
		SectionContext,
		SectionExamples,
		SectionFormat,
		SectionCustom,
	}
}

// defaultPriority orders section types when a section declares none.
// Lower sorts earlier. Identity leads, format trails, dynamic context sits
// late so the stable material stays at the front.
var defaultPriority = map[SectionType]int{
	SectionIdentity:     10,
	SectionCapabilities: 20,
	SectionConstraints:  30,
	SectionDomain:       40,
	SectionTools:        50,
	SectionExamples:     60,
	SectionContext:      70,
	SectionFormat:       80,
	SectionCustom:       90,
}

// defaultCacheable marks which types hold content that is normally identical
// across renders.
var defaultCacheable = map[SectionType]bool{
	SectionIdentity:     true,
	SectionCapabilities: true,
	SectionConstraints:  true,
	SectionDomain:       true,
	SectionTools:        true,
	SectionExamples:     true,
	SectionContext:      false,
	SectionFormat:       true,
	SectionCustom:       false,
}

// displayLabel is the human-readable label used by header and plain
// formatters.
var displayLabel = map[SectionType]string{
	SectionIdentity:     "Identity",
	SectionCapabilities: "Capabilities",
	SectionConstraints:  "Constraints",
	SectionDomain:       "Domain Knowledge",
	SectionTools:        "Tools",
	SectionContext:      "Context",
	SectionExamples:     "Examples",
	SectionFormat:       "Output Format",
	SectionCustom:       "Custom",
}

// DefaultPriority returns the default priority for a type.
func DefaultPriority(t SectionType) int {
	if p, ok := defaultPriority[t]; ok {
		return p
	}
	return defaultPriority[SectionCustom]
}

// DefaultCacheable returns the default cacheability for a type.
func DefaultCacheable(t SectionType) bool {
	return defaultCacheable[t]
}

// Label returns the display label for a section; custom sections use their
// own name.
func Label(t SectionType, name string) string {
	if t == SectionCustom && name != "" {
		return name
	}
	if l, ok := displayLabel[t]; ok {
		return l
	}
	return string(t)
}

// FragmentRef points at a versioned fragment whose text fills a section.
type FragmentRef struct {
	ID      string
	Version int
	Text    string

	// Source location, when the fragment was loaded from a file.
	File string
	Line int
}

// Generator produces section content from the render context. Generators may
// perform I/O; the resolver invokes them one at a time in declaration order.
// A generator error aborts the whole render.
type Generator func(ctx context.Context, rc *RenderContext) (string, error)

// Section is one typed slot of a prompt. Exactly one of Text, Fragment, or
// Generate supplies its content. Sections are treated as immutable once
// handed to a Prompt.
type Section struct {
	Type        SectionType
	Name        string // required for SectionCustom
	Priority    int
	Cacheable   bool
	Truncatable bool
	MaxTokens   int

	Text     string
	Fragment *FragmentRef
	Generate Generator

	// Key optionally names the context input a generator consumes; recorded
	// in dynamic provenance origins.
	Key string
}

// Validate checks a section for consistency errors.
func (s *Section) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("section type is required")
	}
	known := false
	for _, t := range AllSectionTypes() {
		if t == s.Type {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown section type %q", s.Type)
	}
	if s.Type == SectionCustom && s.Name == "" {
		return fmt.Errorf("custom section requires a name")
	}

	sources := 0
	if s.Text != "" {
		sources++
	}
	if s.Fragment != nil {
		sources++
	}
	if s.Generate != nil {
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("section %s has multiple content sources", s.describe())
	}
	return nil
}

// describe returns "type" or "type(name)" for error messages.
func (s *Section) describe() string {
	if s.Name != "" {
		return fmt.Sprintf("%s(%s)", s.Type, s.Name)
	}
	return string(s.Type)
}

// MetaKey is the key used for per-section token accounting: the name when
// set, the type otherwise.
func (s *Section) MetaKey() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Type)
}

// NewSection creates a section of the given type with table defaults applied.
func NewSection(t SectionType, opts ...SectionOption) *Section {
	s := &Section{
		Type:      t,
		Priority:  DefaultPriority(t),
		Cacheable: DefaultCacheable(t),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SectionOption configures a section at construction.
type SectionOption func(*Section)

// WithName sets the section name (required for SectionCustom).
func WithName(name string) SectionOption {
	return func(s *Section) { s.Name = name }
}

// WithText sets literal content.
func WithText(text string) SectionOption {
	return func(s *Section) { s.Text = text }
}

// WithFragment sets fragment-backed content.
func WithFragment(ref *FragmentRef) SectionOption {
	return func(s *Section) { s.Fragment = ref }
}

// WithGenerator sets dynamic content. key names the context input it reads
// and may be empty.
func WithGenerator(gen Generator, key string) SectionOption {
	return func(s *Section) {
		s.Generate = gen
		s.Key = key
	}
}

// WithPriority overrides the default priority.
func WithPriority(p int) SectionOption {
	return func(s *Section) { s.Priority = p }
}

// WithCacheable overrides the default cacheability.
func WithCacheable(c bool) SectionOption {
	return func(s *Section) { s.Cacheable = c }
}

// WithBudget sets a max-token budget and whether the section may be
// truncated to fit it.
func WithBudget(maxTokens int, truncatable bool) SectionOption {
	return func(s *Section) {
		s.MaxTokens = maxTokens
		s.Truncatable = truncatable
	}
}
