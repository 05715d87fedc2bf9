package inferencer

import (
	"regexp"
	"sort"
)

var moduleNotFound = regexp.MustCompile(`(?:ModuleNotFoundError: )?No module named ['"]([\w.]+)['"]`)

// MissingModules collects every distinct Python module name reported as
// missing in stderr ("ModuleNotFoundError: No module named 'X'" or the
// bare "No module named 'X'"), mapped through the same distribution table
// InferPackages uses, de-duplicated and sorted. Used by the Orchestrator's
// auto-install retry.
func MissingModules(stderr string) []string {
	seen := make(map[string]bool)
	for _, m := range moduleNotFound.FindAllStringSubmatch(stderr, -1) {
		top := m[1]
		if idx := indexDot(top); idx >= 0 {
			top = top[:idx]
		}
		seen[mapDistribution(top)] = true
	}

	result := make([]string, 0, len(seen))
	for d := range seen {
		result = append(result, d)
	}
	sort.Strings(result)
	return result
}

func indexDot(s string) int {
	for i, r := range s {
		if r == '.' {
			return i
		}
	}
	return -1
}
