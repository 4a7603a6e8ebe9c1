package utils

import "strings"

// StringSliceContainsElement checks if a string slice contains a specific element
func StringSliceContainsElement(slice []string, element string) bool {
	for _, s := range slice {
		if s == element {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated value, trimming whitespace and dropping empty items
func SplitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
