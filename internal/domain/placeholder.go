package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// FindPlaceholders returns the distinct {{NAME}} placeholders in command, in
// order of first appearance.
func FindPlaceholders(command string) []string {
	var names []string
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(command, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// SubstitutePlaceholders replaces every {{NAME}} with values[NAME]. Values are
// inserted verbatim; the result is classified again before it runs.
func SubstitutePlaceholders(command string, values map[string]string) (string, error) {
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(command, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := values[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedPlaceholders, strings.Join(missing, ", "))
	}
	return result, nil
}
