package lint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeanShandler123/promptier/internal/models"
	"github.com/DeanShandler123/promptier/internal/prompt"
)

// fixedTokenizer reports the same count for any text, letting tests pin the
// document's token count without megabytes of input.
type fixedTokenizer struct{ n int }

func (f fixedTokenizer) Count(text string) (int, error) { return f.n, nil }
func (f fixedTokenizer) Name() string                   { return "fixed" }

func newFixedCounter(n int) *models.TokenCounter {
	return models.NewTokenCounter(fixedTokenizer{n})
}

func mustPrompt(t *testing.T, opts ...prompt.Option) *prompt.Prompt {
	t.Helper()
	p, err := prompt.New("test-prompt", opts...)
	require.NoError(t, err)
	return p
}

func cleanPrompt(t *testing.T) *prompt.Prompt {
	return mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity,
			prompt.WithText("You are a precise release-notes assistant for the platform team.")),
		prompt.NewSection(prompt.SectionFormat,
			prompt.WithText("Write one bullet per change and include the ticket number.")),
	))
}

func TestLintCleanPromptPasses(t *testing.T) {
	engine := NewEngine()
	result, err := engine.Lint(context.Background(), cleanPrompt(t))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.All())
	assert.Equal(t, len(builtinRules()), result.Stats.RulesChecked)
	assert.Zero(t, result.Stats.ExternalCalls)
	assert.Positive(t, result.Stats.Elapsed)
}

func TestLintMissingIdentityAndDuplicates(t *testing.T) {
	sentence := "Always include the ticket number when you describe a change."
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionCapabilities,
			prompt.WithText(sentence+" "+sentence)),
	))

	result, err := NewEngine().Lint(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, result.Passed, "warnings do not fail the run")
	ids := make([]string, 0, len(result.Warnings))
	for _, f := range result.Warnings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, RuleMissingIdentity)
	assert.Contains(t, ids, RuleDuplicateInstructions)
}

func TestLintDuplicateReportedOncePerSentence(t *testing.T) {
	sentence := "Always include the ticket number when you describe a change."
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity,
			prompt.WithText(sentence+" "+sentence+" "+sentence)),
	))

	result, err := NewEngine().Lint(context.Background(), p)
	require.NoError(t, err)

	count := 0
	for _, f := range result.Warnings {
		if f.RuleID == RuleDuplicateInstructions {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLintTokenLimitExceeded(t *testing.T) {
	// A fixed tokenizer pins the document at 250000 tokens against the
	// 200000-token claude window.
	engine := NewEngine(WithTokenCounter(newFixedCounter(250000)))
	result, err := engine.Lint(context.Background(), cleanPrompt(t))
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	f := result.Errors[0]
	assert.Equal(t, RuleTokenLimitExceeded, f.RuleID)
	assert.Contains(t, f.Message, "250000")
	assert.Contains(t, f.Message, "200000")
}

func TestLintEmptySection(t *testing.T) {
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity, prompt.WithText("You are a helper with a clear azimuth.")),
		prompt.NewSection(prompt.SectionContext),
	))

	result, err := NewEngine().Lint(context.Background(), p)
	require.NoError(t, err)

	found := false
	for _, f := range result.Warnings {
		if f.RuleID == RuleEmptySection {
			found = true
			assert.Contains(t, f.Message, "context")
		}
	}
	assert.True(t, found)
}

func TestLintUnresolvedPlaceholder(t *testing.T) {
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity,
			prompt.WithText("You are a helper working for {{customer.name}} on {{customer.name}} issues.")),
	))

	result, err := NewEngine().Lint(context.Background(), p)
	require.NoError(t, err)

	matches := 0
	for _, f := range result.Infos {
		if f.RuleID == RuleUnresolvedPlaceholder {
			matches++
			assert.Contains(t, f.Message, "{{customer.name}}")
			require.NotNil(t, f.Position)
			assert.Positive(t, f.Position.Line)
		}
	}
	assert.Equal(t, 1, matches, "identical placeholders are deduplicated")
}

func TestLintConfiguredSeverity(t *testing.T) {
	noIdentity := func() *prompt.Prompt {
		return mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
			prompt.NewSection(prompt.SectionCapabilities, prompt.WithText("Summarize changes accurately.")),
		))
	}

	t.Run("escalated to error lands in the error bucket", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Rules[RuleMissingIdentity] = RuleConfig{Severity: SeverityError}

		result, err := NewEngine(WithConfig(cfg)).Lint(context.Background(), noIdentity())
		require.NoError(t, err)

		assert.False(t, result.Passed)
		require.NotEmpty(t, result.Errors)
		assert.Equal(t, RuleMissingIdentity, result.Errors[0].RuleID)
	})

	t.Run("off disables the rule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Rules[RuleMissingIdentity] = RuleConfig{Severity: SeverityOff}

		result, err := NewEngine(WithConfig(cfg)).Lint(context.Background(), noIdentity())
		require.NoError(t, err)
		for _, f := range result.All() {
			assert.NotEqual(t, RuleMissingIdentity, f.RuleID)
		}
		assert.Equal(t, len(builtinRules())-1, result.Stats.RulesChecked)
	})

	t.Run("invalid configured severity falls back to the default", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Rules[RuleMissingIdentity] = RuleConfig{Severity: "loud"}

		result, err := NewEngine(WithConfig(cfg)).Lint(context.Background(), noIdentity())
		require.NoError(t, err)

		found := false
		for _, f := range result.Warnings {
			if f.RuleID == RuleMissingIdentity {
				found = true
			}
		}
		assert.True(t, found, "default warning severity applies")
	})
}

func TestLintRuleOptions(t *testing.T) {
	// Lowering min_words makes a short repeated sentence count.
	short := "Cite the ticket number always."
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity, prompt.WithText("You are a helper with a clear azimuth.")),
		prompt.NewSection(prompt.SectionConstraints, prompt.WithText(short+" "+short)),
	))

	result, err := NewEngine().Lint(context.Background(), p)
	require.NoError(t, err)
	for _, f := range result.Warnings {
		assert.NotEqual(t, RuleDuplicateInstructions, f.RuleID, "below the default threshold")
	}

	cfg := DefaultConfig()
	cfg.Rules[RuleDuplicateInstructions] = RuleConfig{Options: map[string]any{"min_words": 4}}
	result, err = NewEngine(WithConfig(cfg)).Lint(context.Background(), p)
	require.NoError(t, err)

	found := false
	for _, f := range result.Warnings {
		if f.RuleID == RuleDuplicateInstructions {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLintIgnoreDirectives(t *testing.T) {
	t.Run("single rule suppressed inline", func(t *testing.T) {
		p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
			prompt.NewSection(prompt.SectionIdentity,
				prompt.WithText("You are a helper. Try to be concise.\n<!-- promptier-ignore vague-language -->")),
		))

		result, err := NewEngine().Lint(context.Background(), p)
		require.NoError(t, err)
		for _, f := range result.All() {
			assert.NotEqual(t, RuleVagueLanguage, f.RuleID)
		}
	})

	t.Run("ignore-all suppresses every rule", func(t *testing.T) {
		p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
			prompt.NewSection(prompt.SectionCapabilities,
				prompt.WithText("Try to summarize changes. {{unset.value}}\n[promptier-ignore-all]")),
		))

		result, err := NewEngine().Lint(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, result.All())
		assert.Zero(t, result.Stats.RulesChecked)
	})
}

func TestRegisterCustomRule(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Register(&Rule{
		ID:              "no-exclamations",
		Category:        CategoryClarity,
		DefaultSeverity: SeverityInfo,
		Check: func(_ context.Context, cc *CheckContext) ([]Finding, error) {
			if strings.Contains(cc.Text, "!") {
				return []Finding{{Message: "exclamation marks read as shouting"}}, nil
			}
			return nil, nil
		},
	}))

	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionIdentity, prompt.WithText("You are an enthusiastic helper!")),
	))
	result, err := engine.Lint(context.Background(), p)
	require.NoError(t, err)

	found := false
	for _, f := range result.Infos {
		if f.RuleID == "no-exclamations" {
			found = true
			assert.Equal(t, CategoryClarity, f.Category)
		}
	}
	assert.True(t, found)
}

func TestRegisterValidation(t *testing.T) {
	engine := NewEngine()
	assert.Error(t, engine.Register(nil))
	assert.Error(t, engine.Register(&Rule{ID: "", Check: func(context.Context, *CheckContext) ([]Finding, error) { return nil, nil }}))
	assert.Error(t, engine.Register(&Rule{ID: "x", DefaultSeverity: SeverityInfo}))
	assert.Error(t, engine.Register(&Rule{ID: "x", DefaultSeverity: "shrug", Check: func(context.Context, *CheckContext) ([]Finding, error) { return nil, nil }}))
}

func TestRegisterShadowsInPlace(t *testing.T) {
	engine := NewEngine()

	var originalPos int
	for i, r := range engine.Rules() {
		if r.ID == RuleVagueLanguage {
			originalPos = i
		}
	}

	replacement := &Rule{
		ID:              RuleVagueLanguage,
		Category:        CategoryClarity,
		DefaultSeverity: SeverityWarning,
		Description:     "replacement",
		Check:           func(context.Context, *CheckContext) ([]Finding, error) { return nil, nil },
	}
	require.NoError(t, engine.Register(replacement))

	rules := engine.Rules()
	assert.Len(t, rules, len(builtinRules()), "shadowing does not grow the registry")
	assert.Equal(t, "replacement", rules[originalPos].Description, "position is preserved")
}

func TestLintFaultIsolation(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Register(&Rule{
		ID:              "panicky",
		Category:        CategoryStructure,
		DefaultSeverity: SeverityError,
		Check: func(context.Context, *CheckContext) ([]Finding, error) {
			panic("rule bug")
		},
	}))
	require.NoError(t, engine.Register(&Rule{
		ID:              "flaky",
		Category:        CategoryStructure,
		DefaultSeverity: SeverityError,
		Check: func(context.Context, *CheckContext) ([]Finding, error) {
			return nil, errors.New("backend down")
		},
	}))

	result, err := engine.Lint(context.Background(), cleanPrompt(t))
	require.NoError(t, err, "faulty rules never abort the run")

	assert.True(t, result.Passed)
	assert.Empty(t, result.All())
	assert.Equal(t, len(builtinRules())+2, result.Stats.RulesChecked)
}

func TestLintRenderFailureIsFatal(t *testing.T) {
	p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
		prompt.NewSection(prompt.SectionContext, prompt.WithGenerator(
			func(context.Context, *prompt.RenderContext) (string, error) {
				return "", errors.New("generator backend down")
			}, "ticket")),
	))

	_, err := NewEngine().Lint(context.Background(), p)
	assert.Error(t, err)
}

func TestLintSemanticIntegration(t *testing.T) {
	semanticEngine := func(fp *fakeProvider) *Engine {
		cfg := DefaultConfig()
		cfg.Semantic = &SemanticConfig{Provider: fp, Timeout: time.Second}
		return NewEngine(WithConfig(cfg))
	}

	t.Run("unparseable output yields exactly one parse-error info", func(t *testing.T) {
		fp := &fakeProvider{response: "not json"}
		result, err := semanticEngine(fp).Lint(context.Background(), cleanPrompt(t))
		require.NoError(t, err)

		require.Len(t, result.Infos, 1)
		assert.Equal(t, SemanticParseErrorID, result.Infos[0].RuleID)
		assert.Equal(t, 1, result.Stats.ExternalCalls)
		assert.True(t, result.Passed)
	})

	t.Run("parsed findings land in their own buckets", func(t *testing.T) {
		fp := &fakeProvider{response: `[{"id":"ambiguity","severity":"warning","message":"the scope is unclear"}]`}
		result, err := semanticEngine(fp).Lint(context.Background(), cleanPrompt(t))
		require.NoError(t, err)

		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "ambiguity", result.Warnings[0].RuleID)
		assert.Equal(t, 1, result.Stats.ExternalCalls)
	})

	t.Run("heuristic errors gate the call", func(t *testing.T) {
		fp := &fakeProvider{response: "[]"}
		cfg := DefaultConfig()
		cfg.Semantic = &SemanticConfig{Provider: fp, Timeout: time.Second}

		engine := NewEngine(WithConfig(cfg), WithTokenCounter(newFixedCounter(250000)))
		result, err := engine.Lint(context.Background(), cleanPrompt(t))
		require.NoError(t, err)

		assert.False(t, result.Passed)
		assert.Zero(t, fp.genCalls)
		assert.Zero(t, result.Stats.ExternalCalls)
	})

	t.Run("inline directive suppresses the analyzer", func(t *testing.T) {
		fp := &fakeProvider{response: "[]"}
		p := mustPrompt(t, prompt.WithModel("claude-sonnet-4"), prompt.WithSections(
			prompt.NewSection(prompt.SectionIdentity,
				prompt.WithText("You are a helper.\n[promptier-ignore: semantic-analysis]")),
		))

		result, err := semanticEngine(fp).Lint(context.Background(), p)
		require.NoError(t, err)
		assert.Zero(t, fp.genCalls)
		assert.Zero(t, result.Stats.ExternalCalls)
	})
}

func TestFormatSummary(t *testing.T) {
	pass := &Result{Passed: true}
	assert.Equal(t, "PASS", FormatSummary(pass))

	fail := &Result{
		Errors:   []Finding{{}, {}},
		Warnings: []Finding{{}},
	}
	assert.Equal(t, "FAIL, 2 error(s), 1 warning(s)", FormatSummary(fail))
}
