package inferencer

import (
	"regexp"
	"sort"
	"strings"
)

// missingFileExt is the fixed extension set recognized as a plausible
// "input file" in stderr, case-insensitively.
var missingFileExt = map[string]bool{
	".pdf": true, ".csv": true, ".xls": true, ".xlsx": true, ".txt": true,
	".json": true, ".xml": true, ".jpg": true, ".png": true,
}

var (
	quotedFilename = regexp.MustCompile(`['"]([^'"]+\.[A-Za-z0-9]+)['"]`)
	noSuchFile     = regexp.MustCompile(`(?i)no such file or directory:\s*['"]?([^'"\s]+)['"]?`)
	fileNotFound   = regexp.MustCompile(`(?i)file not found:\s*['"]?([^'"\s]+)['"]?`)
	inputFileNot   = regexp.MustCompile(`(?i)input\s+\S*\s*file\s+['"]([^'"]+)['"]\s+not found`)
)

// MissingFiles extracts filenames from stderr that look like required
// input files. Returns the
// sorted, de-duplicated set; callers surface it as inputs_required only
// when non-empty.
func MissingFiles(stderr string) []string {
	found := make(map[string]bool)

	for _, m := range quotedFilename.FindAllStringSubmatch(stderr, -1) {
		if hasTrackedExt(m[1]) {
			found[m[1]] = true
		}
	}
	for _, re := range []*regexp.Regexp{noSuchFile, fileNotFound, inputFileNot} {
		for _, m := range re.FindAllStringSubmatch(stderr, -1) {
			if hasTrackedExt(m[1]) {
				found[m[1]] = true
			}
		}
	}

	result := make([]string, 0, len(found))
	for f := range found {
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}

func hasTrackedExt(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	return missingFileExt[strings.ToLower(name[idx:])]
}
