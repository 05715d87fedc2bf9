package orchestrator

import (
	"github.com/neuroforge-dev/kernel/pkg/inferencer"
)

// adaptiveTimeout computes EXECUTE's per-attempt timeout floor:
//
//	timeout = max(state.timeout, 30 + (20 if inferred_pkgs else 0) + (20 if heavy else 0))
func adaptiveTimeout(currentTimeout int, inferredPkgs []string) int {
	floor := 30
	if len(inferredPkgs) > 0 {
		floor += 20
	}
	if anyHeavy(inferredPkgs) {
		floor += 20
	}
	if currentTimeout > floor {
		return currentTimeout
	}
	return floor
}

func anyHeavy(pkgs []string) bool {
	for _, p := range pkgs {
		if inferencer.HeavyDistributions[p] {
			return true
		}
	}
	return false
}

// clampTimeout bounds v to [lo, hi]; REPAIR's timeout growth and the
// auto-install retry both call it with [60, 300].
func clampTimeout(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mergeRequirements dedups b into a, preserving a's order and appending
// any new entries from b in order.
func mergeRequirements(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, r := range a {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range b {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
