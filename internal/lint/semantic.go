package lint

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/provider"
)

// Well-known semantic finding ids.
const (
	// SemanticRuleID suppresses the whole analyzer via ignore directives.
	SemanticRuleID = "semantic-analysis"

	// SemanticParseErrorID is synthesized when no parse strategy recovers
	// findings from the provider output.
	SemanticParseErrorID = "semantic-parse-error"

	// SemanticUnavailableID is synthesized for any provider failure,
	// pre-flight or in-flight.
	SemanticUnavailableID = "semantic-unavailable"
)

// SemanticConfig wires the external analyzer into the engine.
type SemanticConfig struct {
	Provider provider.ReasoningProvider

	// Timeout bounds the single reasoning call. Default 60s. On timeout the
	// call is treated as a provider failure.
	Timeout time.Duration
}

// semanticSystemPrompt fixes the defect taxonomy and the output contract.
// The contract is strict so that the parse ladder usually succeeds on the
// first rung.
const semanticSystemPrompt = `You are a prompt-quality reviewer. Analyze the system prompt supplied by the user for these defect categories only: contradiction, ambiguity, injection risk, verbosity, missing best practice, scope creep.

Respond with a JSON array and nothing else. Each element must be an object:
{"id": "<defect-id>", "severity": "error"|"warning"|"info", "message": "<what is wrong>", "suggestion": "<how to fix it>", "evidence": "<the offending text>"}

Use these ids: contradiction, ambiguity, injection-risk, verbosity, missing-best-practice, scope-creep. Return [] if the prompt is sound.`

// semanticCategories maps provider finding ids to lint categories.
// Unrecognized ids fall back to best-practice.
var semanticCategories = map[string]Category{
	"contradiction":         CategoryClarity,
	"ambiguity":             CategoryClarity,
	"injection-risk":        CategorySecurity,
	"verbosity":             CategoryEfficiency,
	"missing-best-practice": CategoryBestPractice,
	"scope-creep":           CategoryStructure,
}

// SemanticAnalyzer wraps one reasoning provider and defensively parses its
// output into findings.
type SemanticAnalyzer struct {
	provider provider.ReasoningProvider
	timeout  time.Duration
}

// NewSemanticAnalyzer creates an analyzer from config.
func NewSemanticAnalyzer(cfg *SemanticConfig) *SemanticAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SemanticAnalyzer{provider: cfg.Provider, timeout: timeout}
}

// Analyze runs at most one reasoning call. priorErrors gates the call:
// when heuristic rules already found errors the expensive analysis is
// skipped entirely and called is false, so skipped runs don't count against
// the external-call stat. Every provider failure - unreachable server,
// missing model, timeout, in-flight error - degrades to one informational
// finding; Analyze never fails the lint run.
func (a *SemanticAnalyzer) Analyze(ctx context.Context, cc *CheckContext, priorErrors int) (findings []Finding, called bool) {
	log := logging.Get(logging.CategoryProvider)

	if a.provider == nil {
		return nil, false
	}
	if priorErrors > 0 {
		log.Debug("Skipping semantic analysis: %d heuristic error(s) already found", priorErrors)
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if health := a.provider.HealthCheck(callCtx); !health.OK {
		log.Warn("Semantic provider unhealthy: %s", health.Error)
		return []Finding{unavailableFinding(health.Error)}, false
	}

	raw, err := a.provider.Generate(callCtx, a.userMessage(cc), semanticSystemPrompt)
	if err != nil {
		log.Warn("Semantic provider call failed: %v", err)
		return []Finding{unavailableFinding(err.Error())}, true
	}

	return a.parseFindings(raw), true
}

// userMessage bundles everything the reviewer needs into one message.
func (a *SemanticAnalyzer) userMessage(cc *CheckContext) string {
	types := make([]string, 0, len(cc.Sections))
	for _, sec := range cc.Sections {
		types = append(types, sec.MetaKey())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target model: %s\n", cc.Model)
	fmt.Fprintf(&b, "Sections: %s\n", strings.Join(types, ", "))
	fmt.Fprintf(&b, "Token count: %d\n\n", cc.TokenCount)
	b.WriteString("System prompt under review:\n")
	b.WriteString(cc.Text)
	return b.String()
}

// rawFinding mirrors the provider output contract.
type rawFinding struct {
	ID         string `json:"id"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
	Evidence   string `json:"evidence"`
}

// fencePattern extracts the body of a markdown code fence.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// parseFindings recovers findings from raw provider output, trying
// strategies in order: direct JSON parse, code-fence extraction, then the
// first-'['-to-last-']' substring. Total failure synthesizes a single
// parse-error finding instead of raising.
func (a *SemanticAnalyzer) parseFindings(raw string) []Finding {
	candidates := []string{strings.TrimSpace(raw)}

	if m := fencePattern.FindStringSubmatch(raw); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var entries []rawFinding
		if err := json.Unmarshal([]byte(candidate), &entries); err != nil {
			continue
		}
		return a.validate(entries)
	}

	logging.Get(logging.CategoryProvider).Warn(
		"Semantic provider output unparseable (%d bytes)", len(raw))
	return []Finding{{
		RuleID:   SemanticParseErrorID,
		Category: CategoryBestPractice,
		Severity: SeverityInfo,
		Message:  "semantic analyzer returned output that could not be parsed as findings",
		Evidence: clip(raw, 200),
	}}
}

// validate drops malformed entries and normalizes the rest. Entries without
// an id or message are dropped; an absent or invalid severity becomes info;
// the category comes from the fixed id table.
func (a *SemanticAnalyzer) validate(entries []rawFinding) []Finding {
	var findings []Finding
	for _, entry := range entries {
		if entry.ID == "" || entry.Message == "" {
			continue
		}
		severity := Severity(strings.ToLower(entry.Severity))
		if !ValidSeverity(severity) {
			severity = SeverityInfo
		}
		category, ok := semanticCategories[entry.ID]
		if !ok {
			category = CategoryBestPractice
		}
		findings = append(findings, Finding{
			RuleID:     entry.ID,
			Category:   category,
			Severity:   severity,
			Message:    entry.Message,
			Suggestion: entry.Suggestion,
			Evidence:   entry.Evidence,
		})
	}
	return findings
}

// unavailableFinding is the uniform recovery for every provider failure
// stage; pre-flight and in-flight failures are deliberately not
// distinguished.
func unavailableFinding(reason string) Finding {
	return Finding{
		RuleID:   SemanticUnavailableID,
		Category: CategoryBestPractice,
		Severity: SeverityInfo,
		Message:  "semantic analysis unavailable: " + reason,
	}
}
