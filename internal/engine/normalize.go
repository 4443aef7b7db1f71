package engine

import (
	"sort"
	"strings"
)

// option carries a selection in two forms: display (label resolved to
// content, original casing preserved for weightage lookup and rationale)
// and cmp (trimmed, case-folded, used for all set comparisons).
type option struct {
	display string
	cmp     string
}

func compareForm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolveOption maps a selection to option content. An exact
// (case-sensitive) label match wins, then a case-insensitive one;
// anything else passes through unchanged on the assumption that it is
// already content text.
func resolveOption(sel string, options map[string]string) string {
	if len(options) == 0 {
		return sel
	}
	if content, ok := options[sel]; ok {
		return content
	}
	want := compareForm(sel)
	for _, label := range sortedKeys(options) {
		if compareForm(label) == want {
			return options[label]
		}
	}
	return sel
}

// normalizeSelections resolves selections to content form and deduplicates
// them on the comparison form, preserving first-seen order.
func normalizeSelections(selections []string, options map[string]string) []option {
	out := make([]option, 0, len(selections))
	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		display := resolveOption(sel, options)
		cmp := compareForm(display)
		if seen[cmp] {
			continue
		}
		seen[cmp] = true
		out = append(out, option{display: display, cmp: cmp})
	}
	return out
}

// keyUsesLabels reports whether a correct-answer set is authored as
// labels: true if any entry case-insensitively matches an options key.
// Answer keys themselves may be written either way.
func keyUsesLabels(correct []string, options map[string]string) bool {
	if len(options) == 0 {
		return false
	}
	for _, c := range correct {
		want := compareForm(c)
		for label := range options {
			if compareForm(label) == want {
				return true
			}
		}
	}
	return false
}

// normalizeCorrect resolves the correct-answer set the same way student
// selections are resolved, converting labels only when the key is judged
// to use them.
func normalizeCorrect(correct []string, options map[string]string) []option {
	if !keyUsesLabels(correct, options) {
		return normalizeSelections(correct, nil)
	}
	return normalizeSelections(correct, options)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func displays(opts []option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.display)
	}
	return out
}
