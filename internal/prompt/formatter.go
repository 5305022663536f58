package prompt

import (
	"fmt"
	"strings"

	"github.com/DeanShandler123/promptier/internal/models"
)

// FormatStyle selects a built-in formatter strategy.
type FormatStyle string

const (
	// StyleTags wraps each section in XML-ish tags (<identity>...</identity>).
	StyleTags FormatStyle = "tags"

	// StyleHeaders introduces each section with a markdown header.
	StyleHeaders FormatStyle = "headers"

	// StylePlain labels each section with an uppercase prefix line.
	StylePlain FormatStyle = "plain"
)

// Formatter turns ordered rendered sections into the final document text.
// Implementations must preserve each section's resolved text verbatim so the
// assembler's forward scan can locate it.
type Formatter interface {
	Format(sections []*RenderedSection) string
}

// formatters is the enum-keyed strategy table.
var formatters = map[FormatStyle]Formatter{
	StyleTags:    tagFormatter{},
	StyleHeaders: headerFormatter{},
	StylePlain:   plainFormatter{},
}

// FormatterFor returns the strategy for a style, defaulting to StylePlain
// for unknown styles.
func FormatterFor(style FormatStyle) Formatter {
	if f, ok := formatters[style]; ok {
		return f
	}
	return formatters[StylePlain]
}

// InferStyle picks a style from model capabilities.
func InferStyle(caps models.Capabilities) FormatStyle {
	switch caps.PreferredFormat {
	case models.FormatTags:
		return StyleTags
	case models.FormatHeaders:
		return StyleHeaders
	default:
		return StylePlain
	}
}

// tagName returns the wrapping tag for a section: the type, or a slugged
// name for custom sections.
func tagName(rs *RenderedSection) string {
	if rs.Section.Type == SectionCustom && rs.Section.Name != "" {
		return slug(rs.Section.Name)
	}
	return string(rs.Section.Type)
}

// slug lowercases and hyphenates a name for use as a tag.
func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")
	return s
}

type tagFormatter struct{}

func (tagFormatter) Format(sections []*RenderedSection) string {
	parts := make([]string, 0, len(sections))
	for _, rs := range sections {
		if rs.Text == "" {
			continue
		}
		tag := tagName(rs)
		parts = append(parts, fmt.Sprintf("<%s>\n%s\n</%s>", tag, rs.Text, tag))
	}
	return strings.Join(parts, "\n\n")
}

type headerFormatter struct{}

func (headerFormatter) Format(sections []*RenderedSection) string {
	parts := make([]string, 0, len(sections))
	for _, rs := range sections {
		if rs.Text == "" {
			continue
		}
		label := Label(rs.Section.Type, rs.Section.Name)
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", label, rs.Text))
	}
	return strings.Join(parts, "\n\n")
}

type plainFormatter struct{}

func (plainFormatter) Format(sections []*RenderedSection) string {
	parts := make([]string, 0, len(sections))
	for _, rs := range sections {
		if rs.Text == "" {
			continue
		}
		label := strings.ToUpper(Label(rs.Section.Type, rs.Section.Name))
		parts = append(parts, fmt.Sprintf("%s:\n%s", label, rs.Text))
	}
	return strings.Join(parts, "\n\n")
}
