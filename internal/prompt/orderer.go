package prompt

import "sort"

// OrderForCache reorders resolved sections to maximize the contiguous
// cacheable prefix: cacheable sections first, then the rest, each group
// stable-sorted ascending by priority. Idempotent - re-running on an already
// ordered list is a no-op. Returns a new slice; the input is not modified.
//
// Rationale: providers cache a stable request prefix, so every cacheable
// byte pushed ahead of the first dynamic byte is a byte the provider can
// reuse across renders.
func OrderForCache(sections []*RenderedSection) []*RenderedSection {
	cacheable := make([]*RenderedSection, 0, len(sections))
	rest := make([]*RenderedSection, 0, len(sections))
	for _, rs := range sections {
		if rs.Section.Cacheable {
			cacheable = append(cacheable, rs)
		} else {
			rest = append(rest, rs)
		}
	}

	byPriority := func(group []*RenderedSection) {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Section.Priority < group[j].Section.Priority
		})
	}
	byPriority(cacheable)
	byPriority(rest)

	return append(cacheable, rest...)
}

// CacheableRun returns the length of the leading run of cacheable sections
// in an ordered list.
func CacheableRun(sections []*RenderedSection) int {
	n := 0
	for _, rs := range sections {
		if !rs.Section.Cacheable {
			break
		}
		n++
	}
	return n
}
