// Package provenance tracks where every character of a rendered prompt came
// from. The assembler records one mapping per located section; queries answer
// "which fragment produced the text at this offset" for debugging and audit.
package provenance

import (
	"fmt"
	"sort"
	"strings"
)

// OriginKind discriminates the origin variants.
type OriginKind string

const (
	// OriginFragment marks text that came from a versioned fragment file.
	OriginFragment OriginKind = "fragment"

	// OriginDynamic marks text produced by a generator function.
	OriginDynamic OriginKind = "dynamic"

	// OriginLiteral marks inline literal section text.
	OriginLiteral OriginKind = "literal"

	// OriginGenerated marks formatter-inserted decoration (tags, headers,
	// separators) not attributable to any one section.
	OriginGenerated OriginKind = "generated"
)

// Origin describes the source of one output range.
type Origin struct {
	Kind OriginKind `json:"kind"`

	// Fragment identity, set when Kind == OriginFragment.
	FragmentID      string `json:"fragment_id,omitempty"`
	FragmentVersion int    `json:"fragment_version,omitempty"`

	// Section placement. SectionIndex is the declaration index in the
	// prompt, -1 when not attributable (OriginGenerated decoration).
	SectionType  string `json:"section_type,omitempty"`
	SectionIndex int    `json:"section_index"`

	// Source file location for fragment origins, when known.
	File     string `json:"file,omitempty"`
	FileLine int    `json:"file_line,omitempty"`

	// Key names the generator input for dynamic origins, when known.
	Key string `json:"key,omitempty"`
}

// Describe renders a stable human-readable origin description. Identical
// descriptions are consolidated by Table.Visualize.
func (o Origin) Describe() string {
	switch o.Kind {
	case OriginFragment:
		desc := fmt.Sprintf("fragment %s@v%d (%s section)", o.FragmentID, o.FragmentVersion, o.SectionType)
		if o.File != "" {
			desc += fmt.Sprintf(" [%s:%d]", o.File, o.FileLine)
		}
		return desc
	case OriginDynamic:
		if o.Key != "" {
			return fmt.Sprintf("dynamic %s section (key %s)", o.SectionType, o.Key)
		}
		return fmt.Sprintf("dynamic %s section", o.SectionType)
	case OriginLiteral:
		return fmt.Sprintf("literal %s section", o.SectionType)
	case OriginGenerated:
		if o.SectionType != "" {
			return fmt.Sprintf("generated decoration (%s section)", o.SectionType)
		}
		return "generated decoration"
	default:
		return string(o.Kind)
	}
}

// Mapping ties one half-open output range [Start, End) to its origin.
// Line and Column are 1-indexed and locate Start.
type Mapping struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Origin Origin `json:"origin"`
}

// Table is an append-only ordered list of non-overlapping mappings for one
// rendered document. Mappings are added in output order and never mutated;
// gaps between mappings (separators) are permitted.
type Table struct {
	subject  string
	mappings []Mapping
}

// NewTable creates an empty table for the given subject (typically a prompt
// name plus render id).
func NewTable(subject string) *Table {
	return &Table{subject: subject}
}

// Subject returns the table's subject identifier.
func (t *Table) Subject() string { return t.subject }

// Len returns the number of mappings.
func (t *Table) Len() int { return len(t.mappings) }

// Mappings returns a copy of the mapping list in insertion order.
func (t *Table) Mappings() []Mapping {
	out := make([]Mapping, len(t.mappings))
	copy(out, t.mappings)
	return out
}

// Add appends a mapping. Returns an error if the range is empty, inverted,
// or overlaps an existing mapping; the table is unchanged on error.
func (t *Table) Add(m Mapping) error {
	if m.End <= m.Start {
		return fmt.Errorf("invalid mapping range [%d,%d)", m.Start, m.End)
	}
	for _, existing := range t.mappings {
		if m.Start < existing.End && existing.Start < m.End {
			return fmt.Errorf("mapping [%d,%d) overlaps existing [%d,%d)",
				m.Start, m.End, existing.Start, existing.End)
		}
	}
	t.mappings = append(t.mappings, m)
	return nil
}

// OriginAtOffset returns the origin covering the given output offset, or nil
// if the offset falls in a gap or outside the document.
func (t *Table) OriginAtOffset(offset int) *Origin {
	for i := range t.mappings {
		m := &t.mappings[i]
		if offset >= m.Start && offset < m.End {
			o := m.Origin
			return &o
		}
	}
	return nil
}

// OriginAt converts a 1-indexed line/column position to an offset against the
// rendered text and returns the covering origin, or nil. The text must be the
// same document the table was built from.
func (t *Table) OriginAt(text string, line, column int) *Origin {
	offset, ok := offsetOf(text, line, column)
	if !ok {
		return nil
	}
	return t.OriginAtOffset(offset)
}

// PositionsFrom returns every mapping citing the given fragment id, in
// insertion order.
func (t *Table) PositionsFrom(fragmentID string) []Mapping {
	var out []Mapping
	for _, m := range t.mappings {
		if m.Origin.Kind == OriginFragment && m.Origin.FragmentID == fragmentID {
			out = append(out, m)
		}
	}
	return out
}

// Visualize renders a per-line origin summary of the document, consolidating
// contiguous output lines that share an identical origin description:
//
//	Lines 1-3:   fragment greet@v2 (identity section)
//	Line 4:      literal format section
//
// text must be the rendered document the table was built from.
func (t *Table) Visualize(text string) string {
	if text == "" || len(t.mappings) == 0 {
		return ""
	}

	lines := strings.Split(text, "\n")
	descByLine := make([]string, len(lines))

	// Assign each output line the description of the mapping covering its
	// first mapped character. Later mappings never override earlier ones on
	// the same line since ranges are non-overlapping and ordered.
	lineStarts := make([]int, len(lines))
	offset := 0
	for i, l := range lines {
		lineStarts[i] = offset
		offset += len(l) + 1
	}

	for _, m := range t.mappings {
		desc := m.Origin.Describe()
		startLine := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > m.Start }) - 1
		endLine := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > m.End-1 }) - 1
		for i := startLine; i <= endLine && i < len(descByLine); i++ {
			if descByLine[i] == "" {
				descByLine[i] = desc
			}
		}
	}

	var b strings.Builder
	runStart := 0
	flush := func(from, to int) {
		desc := descByLine[from]
		if desc == "" {
			return
		}
		if from == to {
			fmt.Fprintf(&b, "Line %d:      %s\n", from+1, desc)
		} else {
			fmt.Fprintf(&b, "Lines %d-%d:   %s\n", from+1, to+1, desc)
		}
	}
	for i := 1; i <= len(descByLine); i++ {
		if i == len(descByLine) || descByLine[i] != descByLine[runStart] {
			flush(runStart, i-1)
			runStart = i
		}
	}
	return b.String()
}

// offsetOf converts 1-indexed line/column to a byte offset via a linear
// newline scan. Linear per query is acceptable for typical prompt sizes
// (tens of KB); callers needing many conversions should batch them.
func offsetOf(text string, line, column int) (int, bool) {
	if line < 1 || column < 1 {
		return 0, false
	}
	cur := 1
	lineStart := 0
	for i := 0; i < len(text) && cur < line; i++ {
		if text[i] == '\n' {
			cur++
			lineStart = i + 1
		}
	}
	if cur != line {
		return 0, false
	}
	offset := lineStart + column - 1
	if offset > len(text) {
		return 0, false
	}
	return offset, true
}

// LineColumnAt computes the 1-indexed line and column of an offset by a
// linear newline count. Same performance note as offsetOf.
func LineColumnAt(text string, offset int) (line, column int) {
	line, column = 1, 1
	if offset > len(text) {
		offset = len(text)
	}
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

// Record is the serializable form of a Table.
type Record struct {
	Subject  string    `json:"subject"`
	Mappings []Mapping `json:"mappings"`
}

// ToRecord serializes the table to a plain record.
func (t *Table) ToRecord() Record {
	return Record{Subject: t.subject, Mappings: t.Mappings()}
}

// FromRecord reconstructs a table from a record, preserving mapping order.
func FromRecord(r Record) *Table {
	t := NewTable(r.Subject)
	t.mappings = make([]Mapping, len(r.Mappings))
	copy(t.mappings, r.Mappings)
	return t
}
