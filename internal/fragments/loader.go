// Package fragments loads versioned, reusable prompt text from files.
// A fragment file is plain text with an optional leading front-matter block
// delimited by "---" lines; the block holds key: value metadata (id, version,
// author, tags). Files without front matter are valid fragments whose id
// defaults to the file name.
package fragments

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeanShandler123/promptier/internal/logging"
)

// Fragment is one reusable piece of prompt text plus its metadata.
type Fragment struct {
	// ID identifies the fragment; defaults to the file base name without
	// extension when the front matter has no id key.
	ID string

	// Version of the fragment content, 1 if unspecified.
	Version int

	// Text is the fragment body with front matter stripped.
	Text string

	// Author and Tags come from front matter, if present.
	Author string
	Tags   []string

	// File is the source path; BodyLine is the 1-indexed line where the body
	// starts in that file.
	File     string
	BodyLine int
}

// frontMatter mirrors the recognized front-matter keys.
type frontMatter struct {
	ID      string   `yaml:"id"`
	Version int      `yaml:"version"`
	Author  string   `yaml:"author"`
	Tags    []string `yaml:"tags"`
}

// Load reads one fragment file.
func Load(path string) (*Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment %s: %w", path, err)
	}
	frag, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment %s: %w", path, err)
	}
	frag.File = path
	if frag.ID == "" {
		frag.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return frag, nil
}

// Parse extracts front matter and body from fragment file content.
// The front-matter block must start on the very first line.
func Parse(content string) (*Fragment, error) {
	frag := &Fragment{Version: 1, BodyLine: 1}

	body, block, blockLines := splitFrontMatter(content)
	if block != "" {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
		frag.ID = fm.ID
		frag.Author = fm.Author
		frag.Tags = fm.Tags
		if fm.Version > 0 {
			frag.Version = fm.Version
		}
		frag.BodyLine = blockLines + 1
	}

	frag.Text = strings.TrimSpace(body)
	return frag, nil
}

// splitFrontMatter returns (body, frontMatterBlock, linesConsumed).
// linesConsumed counts the two delimiter lines plus the block itself.
func splitFrontMatter(content string) (string, string, int) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return content, "", 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			block := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return body, block, i + 1
		}
	}
	// Unterminated front matter: treat the whole file as body.
	return content, "", 0
}

// LoadDir recursively loads all .md and .txt fragments under dir, keyed by
// fragment id. Files that fail to parse are logged and skipped.
func LoadDir(dir string) (map[string]*Fragment, error) {
	timer := logging.StartTimer(logging.CategoryFragments, "fragments.LoadDir")
	defer timer.Stop()

	out := make(map[string]*Fragment)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		frag, loadErr := Load(path)
		if loadErr != nil {
			logging.Get(logging.CategoryFragments).Warn("Skipping %s: %v", path, loadErr)
			return nil
		}
		if prev, dup := out[frag.ID]; dup {
			logging.Get(logging.CategoryFragments).Warn(
				"Duplicate fragment id %q (%s overrides %s)", frag.ID, path, prev.File)
		}
		out[frag.ID] = frag
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk fragment directory %s: %w", dir, err)
	}

	logging.Get(logging.CategoryFragments).Info("Loaded %d fragments from %s", len(out), dir)
	return out, nil
}
