package lint

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/DeanShandler123/promptier/internal/prompt"
	"github.com/DeanShandler123/promptier/internal/provenance"
)

// Built-in rule ids. Part of the public surface: configuration and ignore
// directives reference them.
const (
	RuleMissingIdentity       = "missing-identity"
	RuleEmptySection          = "empty-section"
	RuleDuplicateInstructions = "duplicate-instructions"
	RuleVagueLanguage         = "vague-language"
	RuleUnresolvedPlaceholder = "unresolved-placeholder"
	RuleTokenLimitExceeded    = "token-limit-exceeded"
	RuleSectionOverflow       = "section-overflow"
	RuleInjectionRisk         = "injection-risk"
	RuleFormatMismatch        = "format-mismatch"
)

// builtinRules returns the built-in registry in registration order.
func builtinRules() []*Rule {
	return []*Rule{
		{
			ID:              RuleMissingIdentity,
			Category:        CategoryStructure,
			DefaultSeverity: SeverityWarning,
			Description:     "Prompt should open with an identity section telling the model who it is.",
			Check:           checkMissingIdentity,
		},
		{
			ID:              RuleEmptySection,
			Category:        CategoryStructure,
			DefaultSeverity: SeverityWarning,
			Description:     "Sections that resolve to empty text add structure noise without content.",
			Check:           checkEmptySection,
		},
		{
			ID:              RuleDuplicateInstructions,
			Category:        CategoryClarity,
			DefaultSeverity: SeverityWarning,
			Description:     "The same long instruction repeated verbatim wastes tokens and dilutes emphasis.",
			Check:           checkDuplicateInstructions,
		},
		{
			ID:              RuleVagueLanguage,
			Category:        CategoryClarity,
			DefaultSeverity: SeverityInfo,
			Description:     "Hedging phrases leave the model to guess what is actually wanted.",
			Check:           checkVagueLanguage,
		},
		{
			ID:              RuleUnresolvedPlaceholder,
			Category:        CategoryClarity,
			DefaultSeverity: SeverityInfo,
			Description:     "Leftover {{placeholders}} reach the model as literal braces.",
			Check:           checkUnresolvedPlaceholder,
		},
		{
			ID:              RuleTokenLimitExceeded,
			Category:        CategoryEfficiency,
			DefaultSeverity: SeverityError,
			Description:     "The rendered prompt must fit the target model's context window.",
			Check:           checkTokenLimit,
		},
		{
			ID:              RuleSectionOverflow,
			Category:        CategoryEfficiency,
			DefaultSeverity: SeverityWarning,
			Description:     "A non-truncatable section exceeding its declared budget blows the plan.",
			Check:           checkSectionOverflow,
		},
		{
			ID:              RuleInjectionRisk,
			Category:        CategorySecurity,
			DefaultSeverity: SeverityWarning,
			Description:     "Override phrasing inside prompt content is a prompt-injection foothold.",
			Check:           checkInjectionRisk,
		},
		{
			ID:              RuleFormatMismatch,
			Category:        CategoryBestPractice,
			DefaultSeverity: SeverityInfo,
			Description:     "The formatter style should match what the model family responds best to.",
			Check:           checkFormatMismatch,
		},
	}
}

func checkMissingIdentity(_ context.Context, cc *CheckContext) ([]Finding, error) {
	for _, sec := range cc.Sections {
		if sec.Type == prompt.SectionIdentity {
			return nil, nil
		}
	}
	return []Finding{{
		Message:    "prompt has no identity section",
		Suggestion: "add an identity section telling the model who it is and what role to play",
	}}, nil
}

func checkEmptySection(_ context.Context, cc *CheckContext) ([]Finding, error) {
	var findings []Finding
	for _, rs := range cc.Rendered {
		if strings.TrimSpace(rs.Text) == "" {
			findings = append(findings, Finding{
				Message:  fmt.Sprintf("section %q resolved to empty text", rs.Section.MetaKey()),
				Evidence: string(rs.Section.Type),
			})
		}
	}
	return findings, nil
}

// sentencePattern splits on sentence-ending punctuation or newlines.
var sentencePattern = regexp.MustCompile(`[.!?\n]+`)

func checkDuplicateInstructions(_ context.Context, cc *CheckContext) ([]Finding, error) {
	minWords := intOption(cc.Options, "min_words", 8)

	seen := make(map[string]string) // normalized -> original
	reported := make(map[string]bool)
	var findings []Finding

	for _, raw := range sentencePattern.Split(cc.Text, -1) {
		words := strings.Fields(raw)
		if len(words) < minWords {
			continue
		}
		norm := strings.ToLower(strings.Join(words, " "))
		if orig, dup := seen[norm]; dup {
			if reported[norm] {
				continue
			}
			reported[norm] = true
			findings = append(findings, Finding{
				Message:    "instruction repeated verbatim",
				Suggestion: "state the instruction once; repetition does not increase compliance",
				Evidence:   clip(orig, 120),
			})
		} else {
			seen[norm] = strings.TrimSpace(raw)
		}
	}
	return findings, nil
}

// vaguePhrases are surface patterns; this is not grammar analysis.
var vaguePhrases = []string{
	"and so on",
	"as appropriate",
	"as needed",
	"do your best",
	"et cetera",
	"if possible",
	"try to",
	"etc.",
}

func checkVagueLanguage(_ context.Context, cc *CheckContext) ([]Finding, error) {
	lower := strings.ToLower(cc.Text)
	var findings []Finding
	for _, phrase := range vaguePhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		findings = append(findings, Finding{
			Message:    fmt.Sprintf("vague phrasing %q", phrase),
			Suggestion: "replace hedging with an explicit instruction or drop it",
			Position:   positionAt(cc.Text, idx),
		})
	}
	return findings, nil
}

var leftoverPlaceholder = regexp.MustCompile(`\{\{\s*[\w.-]+\s*\}\}`)

func checkUnresolvedPlaceholder(_ context.Context, cc *CheckContext) ([]Finding, error) {
	seen := make(map[string]bool)
	var findings []Finding
	for _, loc := range leftoverPlaceholder.FindAllStringIndex(cc.Text, -1) {
		ph := cc.Text[loc[0]:loc[1]]
		if seen[ph] {
			continue
		}
		seen[ph] = true
		findings = append(findings, Finding{
			Message:    fmt.Sprintf("unresolved placeholder %s", ph),
			Suggestion: "provide the context value or remove the placeholder",
			Evidence:   ph,
			Position:   positionAt(cc.Text, loc[0]),
		})
	}
	return findings, nil
}

func checkTokenLimit(_ context.Context, cc *CheckContext) ([]Finding, error) {
	window := cc.Caps.ContextWindow
	if window <= 0 || cc.TokenCount <= window {
		return nil, nil
	}
	return []Finding{{
		Message: fmt.Sprintf("prompt uses %d tokens but the model context window is %d",
			cc.TokenCount, window),
		Suggestion: "trim sections or mark long ones truncatable with a budget",
	}}, nil
}

func checkSectionOverflow(_ context.Context, cc *CheckContext) ([]Finding, error) {
	var findings []Finding
	for _, rs := range cc.Rendered {
		sec := rs.Section
		if sec.MaxTokens <= 0 || sec.Truncatable {
			continue
		}
		tokens := cc.Counter.Count(rs.Text)
		if tokens > sec.MaxTokens {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("section %q uses %d tokens against a budget of %d",
					sec.MetaKey(), tokens, sec.MaxTokens),
				Suggestion: "shorten the section or mark it truncatable",
			})
		}
	}
	return findings, nil
}

// injectionPhrases are the usual override framings.
var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"ignore the above",
	"disregard the above",
	"disregard all prior",
	"you are no longer",
	"forget your instructions",
}

func checkInjectionRisk(_ context.Context, cc *CheckContext) ([]Finding, error) {
	lower := strings.ToLower(cc.Text)
	var findings []Finding
	for _, phrase := range injectionPhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		findings = append(findings, Finding{
			Message:    fmt.Sprintf("instruction-override phrasing %q in prompt content", phrase),
			Suggestion: "quarantine untrusted text in a clearly delimited data block",
			Evidence:   clip(cc.Text[idx:], 80),
			Position:   positionAt(cc.Text, idx),
		})
	}
	return findings, nil
}

func checkFormatMismatch(_ context.Context, cc *CheckContext) ([]Finding, error) {
	preferred := prompt.InferStyle(cc.Caps)
	if cc.Style == "" || cc.Style == preferred {
		return nil, nil
	}
	return []Finding{{
		Message: fmt.Sprintf("formatter style %q overrides the model's preferred %q",
			cc.Style, preferred),
		Suggestion: "drop the style override unless the deviation is intentional",
	}}, nil
}

// positionAt builds a Position for an offset in text.
func positionAt(text string, offset int) *Position {
	line, column := provenance.LineColumnAt(text, offset)
	return &Position{Offset: offset, Line: line, Column: column}
}

// clip shortens evidence strings.
func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// intOption reads an integer rule option with a default. Accepts int and
// float64 (JSON/YAML decode both ways); anything else keeps the default.
func intOption(opts map[string]any, key string, def int) int {
	if opts == nil {
		return def
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
