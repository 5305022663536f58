package lint

import (
	"regexp"
	"strings"
)

// Inline ignore directives suppress rule ids for one render. Two syntaxes
// are recognized, case-insensitively, anywhere in the rendered text:
//
//	<!-- promptier-ignore rule-id[, rule-id...] -->
//	<!-- promptier-ignore-all -->
//	[promptier-ignore: rule-id[, rule-id...]]
//	[promptier-ignore-all]
var (
	commentIgnoreAll = regexp.MustCompile(`(?i)<!--\s*promptier-ignore-all\s*-->`)
	commentIgnore    = regexp.MustCompile(`(?i)<!--\s*promptier-ignore\s+([^>]+?)\s*-->`)
	bracketIgnoreAll = regexp.MustCompile(`(?i)\[promptier-ignore-all\]`)
	bracketIgnore    = regexp.MustCompile(`(?i)\[promptier-ignore:\s*([^\]]+)\]`)
)

// ignoreSet is the parsed result of directive scanning.
type ignoreSet struct {
	all   bool
	rules map[string]bool
}

// Ignored reports whether a rule id is suppressed.
func (s ignoreSet) Ignored(ruleID string) bool {
	return s.all || s.rules[strings.ToLower(ruleID)]
}

// parseIgnoreDirectives scans rendered text for inline directives. Malformed
// directives are simply not matched; the scan never fails.
func parseIgnoreDirectives(text string) ignoreSet {
	set := ignoreSet{rules: make(map[string]bool)}

	if commentIgnoreAll.MatchString(text) || bracketIgnoreAll.MatchString(text) {
		set.all = true
		return set
	}

	collect := func(pattern *regexp.Regexp) {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			for _, id := range strings.Split(match[1], ",") {
				id = strings.ToLower(strings.TrimSpace(id))
				if id != "" {
					set.rules[id] = true
				}
			}
		}
	}
	collect(commentIgnore)
	collect(bracketIgnore)
	return set
}
