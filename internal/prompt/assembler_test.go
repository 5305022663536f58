package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeanShandler123/promptier/internal/provenance"
)

func literalSection(t SectionType, index int, text string) *RenderedSection {
	return &RenderedSection{
		Section:    NewSection(t, WithText(text)),
		Index:      index,
		Text:       text,
		OriginKind: provenance.OriginLiteral,
	}
}

func TestAssembleMapsEverySection(t *testing.T) {
	sections := []*RenderedSection{
		literalSection(SectionIdentity, 0, "You are a test assistant."),
		literalSection(SectionFormat, 1, "Answer in one sentence."),
	}

	text, table := NewAssembler(FormatterFor(StyleTags)).Assemble(sections, "demo/1")
	require.Equal(t, 2, table.Len())

	mappings := table.Mappings()
	for i, m := range mappings {
		assert.Equal(t, sections[i].Text, text[m.Start:m.End], "mapping %d covers its section text", i)
		assert.Equal(t, i, m.Origin.SectionIndex)
	}
	assert.Equal(t, "demo/1", table.Subject())
}

func TestAssembleDuplicateTextGetsDistinctRanges(t *testing.T) {
	// Two sections resolve to the same literal. The forward-only scan must
	// map each occurrence to its own range, in output order.
	sections := []*RenderedSection{
		literalSection(SectionIdentity, 0, "Be helpful."),
		literalSection(SectionConstraints, 1, "Be helpful."),
	}

	text, table := NewAssembler(FormatterFor(StyleTags)).Assemble(sections, "demo/2")
	require.Equal(t, 2, table.Len())

	first, second := table.Mappings()[0], table.Mappings()[1]
	assert.Equal(t, "Be helpful.", text[first.Start:first.End])
	assert.Equal(t, "Be helpful.", text[second.Start:second.End])
	assert.LessOrEqual(t, first.End, second.Start, "ranges are ordered and disjoint")
	assert.Equal(t, "identity", first.Origin.SectionType)
	assert.Equal(t, "constraints", second.Origin.SectionType)
}

func TestAssembleSkipsEmptySections(t *testing.T) {
	sections := []*RenderedSection{
		literalSection(SectionIdentity, 0, "You are a test assistant."),
		literalSection(SectionContext, 1, ""),
		literalSection(SectionFormat, 2, "Answer briefly."),
	}

	text, table := NewAssembler(FormatterFor(StylePlain)).Assemble(sections, "demo/3")
	assert.Equal(t, 2, table.Len())
	assert.NotContains(t, text, "CONTEXT")
}

func TestAssembleRecordsLineAndColumn(t *testing.T) {
	sections := []*RenderedSection{
		literalSection(SectionIdentity, 0, "first line\nsecond line"),
	}

	text, table := NewAssembler(FormatterFor(StyleTags)).Assemble(sections, "demo/4")
	require.Equal(t, 1, table.Len())

	m := table.Mappings()[0]
	// Tag style puts the opening tag on line 1, content from line 2.
	assert.Equal(t, 2, m.Line)
	assert.Equal(t, 1, m.Column)
	assert.True(t, strings.HasPrefix(text, "<identity>\n"))
}
