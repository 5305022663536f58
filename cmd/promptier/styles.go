package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/DeanShandler123/promptier/internal/lint"
)

// Severity and status colors.
var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// severityStyle picks the style for a severity.
func severityStyle(s lint.Severity) lipgloss.Style {
	switch s {
	case lint.SeverityError:
		return errorStyle
	case lint.SeverityWarning:
		return warningStyle
	default:
		return infoStyle
	}
}

// renderReport prints a lint result for terminal consumption.
func renderReport(r *lint.Result) string {
	var b strings.Builder

	writeFinding := func(f lint.Finding) {
		label := severityStyle(f.Severity).Render(strings.ToUpper(string(f.Severity)))
		fmt.Fprintf(&b, "%s  %s  %s\n", label, dimStyle.Render(f.RuleID), f.Message)
		if f.Position != nil {
			fmt.Fprintf(&b, "        %s\n", dimStyle.Render(fmt.Sprintf("at line %d, column %d", f.Position.Line, f.Position.Column)))
		}
		if f.Evidence != "" {
			fmt.Fprintf(&b, "        %s\n", dimStyle.Render("> "+f.Evidence))
		}
		if f.Suggestion != "" {
			fmt.Fprintf(&b, "        %s\n", f.Suggestion)
		}
	}

	for _, f := range r.All() {
		writeFinding(f)
	}

	summary := lint.FormatSummary(r)
	if r.Passed {
		b.WriteString(passStyle.Render(summary))
	} else {
		b.WriteString(errorStyle.Render(summary))
	}
	fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf(
		"(%d rules, %d external call(s), %v)",
		r.Stats.RulesChecked, r.Stats.ExternalCalls, r.Stats.Elapsed.Round(time.Millisecond))))
	return b.String()
}
