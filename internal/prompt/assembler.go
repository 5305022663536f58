package prompt

import (
	"strings"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/provenance"
)

// Assembler feeds ordered sections to a formatter and builds the provenance
// table over the result.
type Assembler struct {
	formatter Formatter
}

// NewAssembler creates an assembler using the given formatter.
func NewAssembler(formatter Formatter) *Assembler {
	return &Assembler{formatter: formatter}
}

// Assemble produces the final text and its provenance table. The table's
// subject identifies the rendered document.
//
// Each section's resolved text is located in the output by a forward-only
// search starting at the end of the previous match, so duplicate substrings
// map to distinct, correctly ordered ranges. Assembly assumes sections are
// fully and stably resolved in order before it runs; a section whose text
// cannot be found past the cursor loses its mapping (logged, non-fatal),
// never the render.
func (a *Assembler) Assemble(sections []*RenderedSection, subject string) (string, *provenance.Table) {
	timer := logging.StartTimer(logging.CategoryRender, "Assembler.Assemble")
	defer timer.Stop()

	text := a.formatter.Format(sections)
	table := provenance.NewTable(subject)

	cursor := 0
	for _, rs := range sections {
		if rs.Text == "" {
			continue
		}
		idx := strings.Index(text[cursor:], rs.Text)
		if idx < 0 {
			logging.Get(logging.CategoryRender).Warn(
				"Section %s text not found in output past offset %d, skipping mapping",
				rs.Section.describe(), cursor)
			continue
		}
		start := cursor + idx
		end := start + len(rs.Text)
		line, column := provenance.LineColumnAt(text, start)

		if err := table.Add(provenance.Mapping{
			Start:  start,
			End:    end,
			Line:   line,
			Column: column,
			Origin: rs.Origin(),
		}); err != nil {
			logging.Get(logging.CategoryRender).Warn(
				"Dropping mapping for section %s: %v", rs.Section.describe(), err)
			continue
		}
		cursor = end
	}

	logging.Get(logging.CategoryRender).Debug(
		"Assembled %d chars with %d provenance mappings", len(text), table.Len())
	return text, table
}
