package orchestrator

import (
	"strings"
)

// languageTokens is the fixed set of bare language labels that can appear
// as a stray leading line or trailing an opening code fence.
var languageTokens = map[string]bool{
	"python": true, "c": true, "cpp": true, "c++": true,
	"javascript": true, "java": true,
}

// sanitizeCode cleans a Generator's or Repairer's raw text response into
// bare source code:
//
//  1. If a fenced block (```) is present, take the first non-empty inner
//     block, dropping a leading language-label line if one matches
//     languageTokens.
//  2. Otherwise, strip any leading lines that are themselves exactly a
//     language token, and drop stray fence-marker lines wherever they
//     appear as a full line.
//  3. Strip a leading UTF-8 BOM.
func sanitizeCode(text string) string {
	raw := strings.TrimSpace(stripBOM(text))
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "```") {
		parts := strings.Split(raw, "```")
		for i := 1; i < len(parts); i += 2 {
			block := parts[i]
			lines := splitLines(block)
			if len(lines) > 0 {
				first := strings.ToLower(strings.TrimSpace(lines[0]))
				if languageTokens[first] {
					lines = lines[1:]
				}
			}
			code := strings.TrimSpace(strings.Join(lines, "\n"))
			if code != "" {
				return code
			}
		}
		// No fenced block yielded code: fall through to non-fence cleanup.
	}

	lines := splitLines(raw)
	for len(lines) > 0 && languageTokens[strings.ToLower(strings.TrimSpace(lines[0]))] {
		lines = lines[1:]
	}
	kept := lines[:0]
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
