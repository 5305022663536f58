package lint

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/models"
	"github.com/DeanShandler123/promptier/internal/prompt"
)

// Config holds engine-level configuration.
type Config struct {
	// Rules maps rule id to overrides. Unknown ids are tolerated (they may
	// target custom rules registered later) and simply never match.
	Rules map[string]RuleConfig

	// Semantic enables the external analyzer when non-nil.
	Semantic *SemanticConfig
}

// DefaultConfig returns an empty configuration: every rule at its default
// severity, semantic analysis off.
func DefaultConfig() Config {
	return Config{Rules: make(map[string]RuleConfig)}
}

// Engine runs registered rules over rendered prompts. The registry is
// read-mostly: register rules up front, then reuse the engine sequentially
// across many prompts. Registration is guarded for hosts that mutate from
// multiple goroutines.
type Engine struct {
	mu    sync.RWMutex
	rules []*Rule
	index map[string]int // id -> position in rules

	config   Config
	renderer *prompt.Renderer
	registry *models.Registry
	counter  *models.TokenCounter
	semantic *SemanticAnalyzer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.config = cfg }
}

// WithRenderer replaces the renderer used for lint-time rendering.
func WithRenderer(r *prompt.Renderer) EngineOption {
	return func(e *Engine) { e.renderer = r }
}

// WithModelRegistry replaces the capability registry.
func WithModelRegistry(r *models.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithTokenCounter replaces the token counter.
func WithTokenCounter(c *models.TokenCounter) EngineOption {
	return func(e *Engine) { e.counter = c }
}

// NewEngine creates an engine with the built-in rules registered first.
// Custom rules registered afterwards may shadow a built-in by reusing its id;
// the shadowed rule keeps its registration position so finding order stays
// deterministic.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		index:    make(map[string]int),
		config:   DefaultConfig(),
		registry: models.Default(),
		counter:  models.NewTokenCounter(nil),
	}
	for _, rule := range builtinRules() {
		e.register(rule)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = prompt.NewRenderer(
			prompt.WithRegistry(e.registry),
			prompt.WithTokenCounter(e.counter),
		)
	}
	if e.config.Semantic != nil {
		e.semantic = NewSemanticAnalyzer(e.config.Semantic)
	}
	return e
}

// Register adds a custom rule. Reusing an existing id shadows that rule in
// place.
func (e *Engine) Register(rule *Rule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if rule.Check == nil {
		return fmt.Errorf("rule %q has no check function", rule.ID)
	}
	if !ValidSeverity(rule.DefaultSeverity) {
		return fmt.Errorf("rule %q has invalid default severity %q", rule.ID, rule.DefaultSeverity)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.register(rule)
	return nil
}

// register inserts or shadows without locking.
func (e *Engine) register(rule *Rule) {
	if pos, ok := e.index[rule.ID]; ok {
		e.rules[pos] = rule
		return
	}
	e.index[rule.ID] = len(e.rules)
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in registration order.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// effectiveSeverity resolves the configured severity for a rule.
func (e *Engine) effectiveSeverity(rule *Rule) Severity {
	if cfg, ok := e.config.Rules[rule.ID]; ok && cfg.Severity != "" {
		return cfg.Severity
	}
	return rule.DefaultSeverity
}

// Lint renders the prompt with an empty context and runs every enabled rule
// over the result. It returns an error only when the render itself fails
// (a dynamic-section generator error); rule failures, provider failures, and
// malformed provider output are all degraded to findings or skips.
func (e *Engine) Lint(ctx context.Context, p *prompt.Prompt) (*Result, error) {
	start := time.Now()
	log := logging.Get(logging.CategoryLint)

	rendered, err := e.renderer.Render(ctx, p, prompt.NewRenderContext(nil))
	if err != nil {
		return nil, fmt.Errorf("lint render failed: %w", err)
	}

	ignores := parseIgnoreDirectives(rendered.Text)
	caps := e.registry.Lookup(p.Model)

	style := p.Style
	if style == "" {
		style = prompt.InferStyle(caps)
	}

	cc := &CheckContext{
		Text:       rendered.Text,
		Sections:   p.Sections,
		Rendered:   rendered.Rendered,
		Model:      p.Model,
		Caps:       caps,
		TokenCount: rendered.Meta.TokenCount,
		Style:      style,
		Counter:    e.counter,
	}

	result := &Result{}
	for _, rule := range e.Rules() {
		severity := e.effectiveSeverity(rule)
		if severity == SeverityOff {
			continue
		}
		if ignores.Ignored(rule.ID) {
			log.Debug("Rule %s suppressed by inline directive", rule.ID)
			continue
		}
		if !ValidSeverity(severity) {
			log.Warn("Rule %s configured with invalid severity %q, using default", rule.ID, severity)
			severity = rule.DefaultSeverity
		}

		findings := e.runRule(ctx, rule, cc)
		result.Stats.RulesChecked++

		for _, f := range findings {
			f.RuleID = rule.ID
			f.Category = rule.Category
			// Configured severity always wins over whatever the check set.
			f.Severity = severity
			result.add(f)
		}
	}

	if e.semantic != nil && !ignores.Ignored(SemanticRuleID) {
		findings, called := e.semantic.Analyze(ctx, cc, len(result.Errors))
		if called {
			result.Stats.ExternalCalls++
		}
		for _, f := range findings {
			result.add(f)
		}
	}

	result.Passed = len(result.Errors) == 0
	result.Stats.Elapsed = time.Since(start)

	log.Info("Linted %q: %d errors, %d warnings, %d infos (%d rules, %v)",
		p.Name, len(result.Errors), len(result.Warnings), len(result.Infos),
		result.Stats.RulesChecked, result.Stats.Elapsed)
	return result, nil
}

// runRule invokes one check with panic and error isolation. A failing rule
// is logged and skipped; it never aborts the run.
func (e *Engine) runRule(ctx context.Context, rule *Rule, cc *CheckContext) (findings []Finding) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryLint).Error("Rule %s panicked: %v", rule.ID, r)
			findings = nil
		}
	}()

	ruleCC := *cc
	if cfg, ok := e.config.Rules[rule.ID]; ok {
		ruleCC.Options = cfg.Options
	}

	findings, err := rule.Check(ctx, &ruleCC)
	if err != nil {
		logging.Get(logging.CategoryLint).Error("Rule %s failed: %v", rule.ID, err)
		return nil
	}
	return findings
}

// FormatSummary renders a one-line pass/fail summary for logs and CLI use.
func FormatSummary(r *Result) string {
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	parts := []string{status}
	if n := len(r.Errors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", n))
	}
	if n := len(r.Warnings); n > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", n))
	}
	if n := len(r.Infos); n > 0 {
		parts = append(parts, fmt.Sprintf("%d info(s)", n))
	}
	return strings.Join(parts, ", ")
}
