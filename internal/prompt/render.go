package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/models"
	"github.com/DeanShandler123/promptier/internal/provenance"
)

// Prompt is an ordered set of typed sections targeting one model. Build one
// with New and treat it as immutable afterwards; a Prompt is safe to render
// any number of times.
type Prompt struct {
	Name     string
	Model    string
	Sections []*Section

	// Optimize enables cache-aware reordering. Default true.
	Optimize bool

	// Style overrides the formatter strategy. Empty means infer from the
	// target model's capabilities.
	Style FormatStyle
}

// Option configures a Prompt at construction.
type Option func(*Prompt)

// WithModel sets the target model id.
func WithModel(model string) Option {
	return func(p *Prompt) { p.Model = model }
}

// WithSections appends sections in declaration order.
func WithSections(sections ...*Section) Option {
	return func(p *Prompt) { p.Sections = append(p.Sections, sections...) }
}

// WithoutOptimization disables cache-aware reordering.
func WithoutOptimization() Option {
	return func(p *Prompt) { p.Optimize = false }
}

// WithStyle forces a formatter strategy instead of inferring one.
func WithStyle(style FormatStyle) Option {
	return func(p *Prompt) { p.Style = style }
}

// New builds a prompt.
func New(name string, opts ...Option) (*Prompt, error) {
	p := &Prompt{Name: name, Optimize: true}
	for _, opt := range opts {
		opt(p)
	}
	for _, sec := range p.Sections {
		if err := sec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid prompt %q: %w", name, err)
		}
	}
	return p, nil
}

// FragmentReference records one fragment used by a render.
type FragmentReference struct {
	ID           string `json:"id"`
	Version      int    `json:"version"`
	SectionType  string `json:"section_type"`
	SectionIndex int    `json:"section_index"`
}

// Meta describes a rendered document.
type Meta struct {
	Name                  string              `json:"name"`
	Model                 string              `json:"model"`
	TokenCount            int                 `json:"token_count"`
	TokensBySection       map[string]int      `json:"tokens_by_section"`
	Provenance            provenance.Record   `json:"provenance"`
	Warnings              []string            `json:"warnings,omitempty"`
	CacheablePrefixChars  int                 `json:"cacheable_prefix_chars"`
	CacheablePrefixTokens int                 `json:"cacheable_prefix_tokens"`
	FragmentReferences    []FragmentReference `json:"fragment_references,omitempty"`
}

// Result is the output of one render.
type Result struct {
	Text string
	Meta Meta

	// Table is the live provenance table (Meta.Provenance is its record
	// form).
	Table *provenance.Table

	// Rendered exposes the ordered resolved sections for downstream
	// consumers such as the lint engine.
	Rendered []*RenderedSection
}

// Renderer runs the resolve -> order -> assemble pipeline.
type Renderer struct {
	registry *models.Registry
	counter  *models.TokenCounter
	resolver *ContentResolver
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRegistry replaces the model-capability registry (default: the
// process-scoped registry).
func WithRegistry(r *models.Registry) RendererOption {
	return func(rd *Renderer) { rd.registry = r }
}

// WithTokenCounter replaces the token counter (default: pure estimator).
func WithTokenCounter(c *models.TokenCounter) RendererOption {
	return func(rd *Renderer) { rd.counter = c }
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	rd := &Renderer{
		registry: models.Default(),
		counter:  models.NewTokenCounter(nil),
		resolver: NewContentResolver(),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Render resolves, orders, and assembles the prompt against rc. The only
// fatal path is a failing dynamic-section generator; every other problem is
// degraded to a warning in the result meta.
func (rd *Renderer) Render(ctx context.Context, p *Prompt, rc *RenderContext) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryRender, "Renderer.Render")
	defer timer.Stop()

	if p == nil {
		return nil, fmt.Errorf("prompt is required")
	}
	if rc == nil {
		rc = NewRenderContext(nil)
	}

	caps := rd.registry.Lookup(p.Model)

	// Populate reserved keys unless the caller set them.
	if _, ok := rc.Get(ContextKeyModel); !ok {
		rc.Set(ContextKeyModel, p.Model)
	}
	if _, ok := rc.Get(ContextKeyNow); !ok {
		rc.Set(ContextKeyNow, time.Now().UTC().Format(time.RFC3339))
	}
	if _, ok := rc.Get(ContextKeyTokenBudget); !ok {
		rc.Set(ContextKeyTokenBudget, caps.ContextWindow)
	}

	resolved, err := rd.resolver.Resolve(ctx, p.Sections, rc)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", p.Name, err)
	}

	var warnings []string
	for _, rs := range resolved {
		if msg := rd.applyBudget(rs); msg != "" {
			warnings = append(warnings, msg)
		}
	}

	ordered := resolved
	if p.Optimize {
		ordered = OrderForCache(resolved)
	}

	style := p.Style
	if style == "" {
		style = InferStyle(caps)
	}

	subject := fmt.Sprintf("%s/%s", p.Name, uuid.NewString())
	assembler := NewAssembler(FormatterFor(style))
	text, table := assembler.Assemble(ordered, subject)

	prefixChars := rd.cacheablePrefixChars(ordered, table)

	meta := Meta{
		Name:                 p.Name,
		Model:                p.Model,
		TokenCount:           rd.counter.Count(text),
		TokensBySection:      rd.tokensBySection(ordered),
		Provenance:           table.ToRecord(),
		Warnings:             warnings,
		CacheablePrefixChars: prefixChars,
	}
	if prefixChars > 0 {
		meta.CacheablePrefixTokens = rd.counter.Count(text[:prefixChars])
	}
	for _, rs := range ordered {
		if rs.Section.Fragment != nil {
			meta.FragmentReferences = append(meta.FragmentReferences, FragmentReference{
				ID:           rs.Section.Fragment.ID,
				Version:      rs.Section.Fragment.Version,
				SectionType:  string(rs.Section.Type),
				SectionIndex: rs.Index,
			})
		}
	}

	logging.Get(logging.CategoryRender).Info(
		"Rendered %q: %d sections, %d chars, ~%d tokens (cacheable prefix %d chars)",
		p.Name, len(ordered), len(text), meta.TokenCount, prefixChars)

	return &Result{Text: text, Meta: meta, Table: table, Rendered: ordered}, nil
}

// applyBudget enforces a section's max-token budget. Truncatable sections
// are cut at a paragraph or word boundary; oversized non-truncatable
// sections pass through (the lint engine reports them). Returns a warning
// message or "".
func (rd *Renderer) applyBudget(rs *RenderedSection) string {
	if rs.Section.MaxTokens <= 0 {
		return ""
	}
	tokens := rd.counter.Count(rs.Text)
	if tokens <= rs.Section.MaxTokens {
		return ""
	}
	if !rs.Section.Truncatable {
		return fmt.Sprintf("section %s exceeds its budget (%d > %d tokens)",
			rs.Section.describe(), tokens, rs.Section.MaxTokens)
	}

	rs.Text = truncateAt(rs.Text, rs.Section.MaxTokens*4)
	return fmt.Sprintf("section %s truncated to fit %d tokens",
		rs.Section.describe(), rs.Section.MaxTokens)
}

// truncateAt cuts content near maxLen, preferring a paragraph boundary and
// falling back to a word boundary.
func truncateAt(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	cut := content[:maxLen]
	if para := strings.LastIndex(cut, "\n\n"); para > maxLen/2 {
		return strings.TrimRight(cut[:para], " \t\n")
	}
	if word := strings.LastIndexAny(cut, " \t\n"); word > maxLen/2 {
		return strings.TrimRight(cut[:word], " \t\n")
	}
	return cut
}

// tokensBySection accounts tokens per section, keyed by name-or-type and
// merged on collision.
func (rd *Renderer) tokensBySection(sections []*RenderedSection) map[string]int {
	out := make(map[string]int, len(sections))
	for _, rs := range sections {
		out[rs.Section.MetaKey()] += rd.counter.Count(rs.Text)
	}
	return out
}

// cacheablePrefixChars computes how many leading output characters come from
// the leading run of cacheable sections: the end offset of the last mapping
// belonging to that run.
func (rd *Renderer) cacheablePrefixChars(ordered []*RenderedSection, table *provenance.Table) int {
	run := CacheableRun(ordered)
	if run == 0 {
		return 0
	}
	inRun := make(map[int]bool, run)
	for _, rs := range ordered[:run] {
		inRun[rs.Index] = true
	}

	end := 0
	for _, m := range table.Mappings() {
		if inRun[m.Origin.SectionIndex] && m.End > end {
			end = m.End
		}
	}
	return end
}
