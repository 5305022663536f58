package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DeanShandler123/promptier/internal/fragments"
	"github.com/DeanShandler123/promptier/internal/lint"
	"github.com/DeanShandler123/promptier/internal/prompt"
	"github.com/DeanShandler123/promptier/internal/provider"
)

// promptFile is the YAML schema the CLI consumes. It maps one file to one
// prompt.Prompt plus optional lint configuration.
type promptFile struct {
	Name         string            `yaml:"name"`
	Model        string            `yaml:"model"`
	Style        string            `yaml:"style"`
	Optimize     *bool             `yaml:"optimize"`
	FragmentsDir string            `yaml:"fragments_dir"`
	Sections     []sectionSpec     `yaml:"sections"`
	Lint         lintSpec          `yaml:"lint"`
	Context      map[string]any    `yaml:"context"`
}

type sectionSpec struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Priority    *int   `yaml:"priority"`
	Cacheable   *bool  `yaml:"cacheable"`
	Truncatable bool   `yaml:"truncatable"`
	MaxTokens   int    `yaml:"max_tokens"`
	Text        string `yaml:"text"`
	Fragment    string `yaml:"fragment"`
}

type lintSpec struct {
	Rules    map[string]ruleSetting `yaml:"rules"`
	Semantic *semanticSpec          `yaml:"semantic"`
}

type semanticSpec struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ruleSetting accepts either a bare severity string ("error", "off") or a
// mapping with severity and options.
type ruleSetting struct {
	Severity string         `yaml:"severity"`
	Options  map[string]any `yaml:"options"`
}

// UnmarshalYAML handles the scalar shorthand.
func (rs *ruleSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		rs.Severity = node.Value
		return nil
	}
	type plain ruleSetting
	return node.Decode((*plain)(rs))
}

// loadPromptFile reads and translates a prompt YAML file. Fragment
// references resolve against fragments_dir (relative to the file) first,
// then as direct file paths.
func loadPromptFile(path string) (*prompt.Prompt, *promptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	if pf.Name == "" {
		pf.Name = filepath.Base(path)
	}

	var fragsByID map[string]*fragments.Fragment
	if pf.FragmentsDir != "" {
		dir := pf.FragmentsDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		fragsByID, err = fragments.LoadDir(dir)
		if err != nil {
			return nil, nil, err
		}
	}

	sections := make([]*prompt.Section, 0, len(pf.Sections))
	for i, ss := range pf.Sections {
		sec, err := buildSection(ss, fragsByID, filepath.Dir(path))
		if err != nil {
			return nil, nil, fmt.Errorf("section %d: %w", i, err)
		}
		sections = append(sections, sec)
	}

	opts := []prompt.Option{
		prompt.WithModel(pf.Model),
		prompt.WithSections(sections...),
	}
	if pf.Style != "" {
		opts = append(opts, prompt.WithStyle(prompt.FormatStyle(pf.Style)))
	}
	if pf.Optimize != nil && !*pf.Optimize {
		opts = append(opts, prompt.WithoutOptimization())
	}

	p, err := prompt.New(pf.Name, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, &pf, nil
}

// buildSection translates one sectionSpec.
func buildSection(ss sectionSpec, fragsByID map[string]*fragments.Fragment, baseDir string) (*prompt.Section, error) {
	opts := []prompt.SectionOption{}
	if ss.Name != "" {
		opts = append(opts, prompt.WithName(ss.Name))
	}
	if ss.Priority != nil {
		opts = append(opts, prompt.WithPriority(*ss.Priority))
	}
	if ss.Cacheable != nil {
		opts = append(opts, prompt.WithCacheable(*ss.Cacheable))
	}
	if ss.MaxTokens > 0 {
		opts = append(opts, prompt.WithBudget(ss.MaxTokens, ss.Truncatable))
	}

	switch {
	case ss.Fragment != "":
		frag, err := resolveFragment(ss.Fragment, fragsByID, baseDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, prompt.WithFragment(&prompt.FragmentRef{
			ID:      frag.ID,
			Version: frag.Version,
			Text:    frag.Text,
			File:    frag.File,
			Line:    frag.BodyLine,
		}))
	case ss.Text != "":
		opts = append(opts, prompt.WithText(ss.Text))
	}

	return prompt.NewSection(prompt.SectionType(ss.Type), opts...), nil
}

// resolveFragment looks a reference up by id, then as a file path.
func resolveFragment(ref string, fragsByID map[string]*fragments.Fragment, baseDir string) (*fragments.Fragment, error) {
	if frag, ok := fragsByID[ref]; ok {
		return frag, nil
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	frag, err := fragments.Load(path)
	if err != nil {
		return nil, fmt.Errorf("fragment %q not found by id or path: %w", ref, err)
	}
	return frag, nil
}

// lintConfig translates the file's lint block into engine configuration.
func lintConfig(pf *promptFile) lint.Config {
	cfg := lint.DefaultConfig()
	for id, setting := range pf.Lint.Rules {
		cfg.Rules[id] = lint.RuleConfig{
			Severity: lint.Severity(setting.Severity),
			Options:  setting.Options,
		}
	}
	if s := pf.Lint.Semantic; s != nil && s.Enabled {
		timeout := time.Duration(s.TimeoutSeconds) * time.Second
		cfg.Semantic = &lint.SemanticConfig{
			Provider: provider.NewOllama(s.Endpoint, s.Model),
			Timeout:  timeout,
		}
	}
	return cfg
}
