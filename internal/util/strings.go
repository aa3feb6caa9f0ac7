// Package util provides shared utility functions used across the codebase.
package util

import "strings"

// SplitList splits a comma-separated flag value into its items, trimming
// whitespace and dropping empty and repeated items. Order is kept.
// Returns nil for empty strings.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var result []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		result = append(result, part)
	}
	return result
}
