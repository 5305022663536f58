// Package lint runs a registry of checks over a rendered prompt. Heuristic
// rules inspect surface text patterns and section metadata; an optional
// semantic analyzer adds one external reasoning call per run. The engine is
// stateless per call: configuration and fault isolation are the whole game.
package lint

import (
	"context"
	"time"

	"github.com/DeanShandler123/promptier/internal/models"
	"github.com/DeanShandler123/promptier/internal/prompt"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"

	// SeverityOff disables a rule via configuration; never appears on a
	// finding.
	SeverityOff Severity = "off"
)

// ValidSeverity reports whether s may appear on a finding.
func ValidSeverity(s Severity) bool {
	return s == SeverityError || s == SeverityWarning || s == SeverityInfo
}

// Category groups rules by concern.
type Category string

const (
	CategoryStructure    Category = "structure"
	CategoryClarity      Category = "clarity"
	CategoryEfficiency   Category = "efficiency"
	CategorySecurity     Category = "security"
	CategoryBestPractice Category = "best-practice"
)

// Position locates a finding in the rendered text. Line and Column are
// 1-indexed.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Finding is one lint result.
type Finding struct {
	RuleID     string    `json:"rule_id"`
	Category   Category  `json:"category"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Evidence   string    `json:"evidence,omitempty"`
	Position   *Position `json:"position,omitempty"`
}

// CheckContext is the shared input handed to every rule check, merged with
// any rule-specific options.
type CheckContext struct {
	// Text is the rendered document (empty render context).
	Text string

	// Sections are the prompt's declared sections, in declaration order.
	Sections []*prompt.Section

	// Rendered are the resolved sections in output order.
	Rendered []*prompt.RenderedSection

	// Model and its capability facts.
	Model string
	Caps  models.Capabilities

	// TokenCount of the rendered text.
	TokenCount int

	// Style actually used by the formatter.
	Style prompt.FormatStyle

	// Counter for per-section token math.
	Counter *models.TokenCounter

	// Options holds rule-specific configuration for the rule being invoked;
	// unknown options are ignored.
	Options map[string]any
}

// CheckFunc inspects the context and returns findings. I/O-bound checks use
// ctx as their suspension point; the engine awaits each check before the
// next, sync or not.
type CheckFunc func(ctx context.Context, cc *CheckContext) ([]Finding, error)

// Rule describes one registered check.
type Rule struct {
	ID              string
	Category        Category
	DefaultSeverity Severity
	Description     string
	Check           CheckFunc
}

// RuleConfig overrides one rule's behavior. Severity SeverityOff disables
// the rule; Options are passed through to the check.
type RuleConfig struct {
	Severity Severity
	Options  map[string]any
}

// Stats summarizes one lint run.
type Stats struct {
	RulesChecked  int           `json:"rules_checked"`
	Elapsed       time.Duration `json:"elapsed"`
	ExternalCalls int           `json:"external_calls"`
}

// Result partitions findings by severity.
type Result struct {
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Infos    []Finding `json:"infos"`

	// Passed is true when no error-severity findings were produced.
	Passed bool `json:"passed"`

	Stats Stats `json:"stats"`
}

// All returns every finding in severity-bucket order.
func (r *Result) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(r.Infos))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	out = append(out, r.Infos...)
	return out
}

// add routes a finding to its severity bucket.
func (r *Result) add(f Finding) {
	switch f.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, f)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, f)
	default:
		r.Infos = append(r.Infos, f)
	}
}
