package prompt

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/provenance"
)

// Reserved context keys. Callers may read them like any other key; the
// renderer populates model and time automatically.
const (
	ContextKeyModel       = "model"
	ContextKeyNow         = "now"
	ContextKeyTokenBudget = "token_budget"
)

// RenderContext carries the key/value inputs for one render. Values may nest
// (map[string]any inside map[string]any); template placeholders address them
// by dotted path.
type RenderContext struct {
	values map[string]any
}

// NewRenderContext creates a context over the given values. values may be
// nil for an empty context.
func NewRenderContext(values map[string]any) *RenderContext {
	if values == nil {
		values = make(map[string]any)
	}
	return &RenderContext{values: values}
}

// Set stores a value under a top-level key.
func (rc *RenderContext) Set(key string, value any) {
	rc.values[key] = value
}

// Get returns the raw value at a top-level key.
func (rc *RenderContext) Get(key string) (any, bool) {
	v, ok := rc.values[key]
	return v, ok
}

// Lookup resolves a dotted path ("user.profile.name") through nested maps
// and returns the value rendered as a string. Missing paths and non-leaf
// terminal values report ok=false.
func (rc *RenderContext) Lookup(path string) (string, bool) {
	if rc == nil {
		return "", false
	}
	parts := strings.Split(path, ".")
	var cur any = rc.values
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// placeholderPattern matches {{path.to.value}} template placeholders.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Substitute replaces {{path}} placeholders with context values. Unresolved
// paths are left verbatim: a later render with richer context may fill them,
// and the lint engine flags leftovers.
func Substitute(text string, rc *RenderContext) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := rc.Lookup(path); ok {
			return val
		}
		return match
	})
}

// RenderedSection is a section resolved against one context.
type RenderedSection struct {
	// Section is the declaration this text came from.
	Section *Section

	// Index is the declaration position in the prompt.
	Index int

	// Text is the resolved content.
	Text string

	// OriginKind is the provisional origin (fragment/dynamic/literal)
	// recorded in provenance once the assembler locates the text.
	OriginKind provenance.OriginKind
}

// Origin builds the full provenance origin for this rendered section.
func (rs *RenderedSection) Origin() provenance.Origin {
	o := provenance.Origin{
		Kind:         rs.OriginKind,
		SectionType:  string(rs.Section.Type),
		SectionIndex: rs.Index,
	}
	switch rs.OriginKind {
	case provenance.OriginFragment:
		o.FragmentID = rs.Section.Fragment.ID
		o.FragmentVersion = rs.Section.Fragment.Version
		o.File = rs.Section.Fragment.File
		o.FileLine = rs.Section.Fragment.Line
	case provenance.OriginDynamic:
		o.Key = rs.Section.Key
	}
	return o
}

// ContentResolver turns ordered section declarations plus a context into
// resolved text per section.
type ContentResolver struct{}

// NewContentResolver creates a resolver.
func NewContentResolver() *ContentResolver {
	return &ContentResolver{}
}

// Resolve produces one RenderedSection per input section, in input order.
// Generators run strictly sequentially in declaration order so provenance
// ordering stays deterministic even when a generator performs I/O. A
// generator error aborts the resolve; this is the pipeline's only fatal path.
func (r *ContentResolver) Resolve(ctx context.Context, sections []*Section, rc *RenderContext) ([]*RenderedSection, error) {
	timer := logging.StartTimer(logging.CategoryRender, "ContentResolver.Resolve")
	defer timer.Stop()

	out := make([]*RenderedSection, 0, len(sections))
	for i, sec := range sections {
		rs := &RenderedSection{Section: sec, Index: i}

		switch {
		case sec.Generate != nil:
			text, err := sec.Generate(ctx, rc)
			if err != nil {
				return nil, fmt.Errorf("generator for section %s failed: %w", sec.describe(), err)
			}
			rs.Text = text
			rs.OriginKind = provenance.OriginDynamic

		case sec.Fragment != nil:
			rs.Text = Substitute(sec.Fragment.Text, rc)
			rs.OriginKind = provenance.OriginFragment

		default:
			rs.Text = Substitute(sec.Text, rc)
			rs.OriginKind = provenance.OriginLiteral
		}

		out = append(out, rs)
	}

	logging.Get(logging.CategoryRender).Debug("Resolved %d sections", len(out))
	return out, nil
}
