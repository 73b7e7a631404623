package build

import (
	"strings"
)

// FilterLog splits build output into lines and drops blank lines and every
// line containing one of the noise patterns. The remaining lines keep their
// original order.
func FilterLog(output string, patterns []string) []string {
	var kept []string

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" || isNoise(line, patterns) {
			continue
		}
		kept = append(kept, line)
	}

	return kept
}

func isNoise(line string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}

	return false
}
