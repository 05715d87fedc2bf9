package inferencer

import (
	"bufio"
	"regexp"
	"sort"
	"strings"
)

// stdlibAllowlist holds import names that never imply a third-party
// distribution.
var stdlibAllowlist = map[string]bool{
	"sys": true, "os": true, "json": true, "re": true, "math": true,
	"itertools": true, "functools": true, "collections": true,
	"subprocess": true, "pathlib": true, "typing": true, "dataclasses": true,
	"datetime": true, "time": true, "random": true, "logging": true,
	"argparse": true, "shutil": true, "tempfile": true, "uuid": true,
	"hashlib": true, "base64": true, "gzip": true, "bz2": true, "lzma": true,
	"csv": true, "configparser": true, "enum": true, "statistics": true,
}

// distributionByImport maps an import name to its PyPI distribution name
// when it differs from the import name.
var distributionByImport = map[string]string{
	"cv2":        "opencv-python",
	"PIL":        "Pillow",
	"sklearn":    "scikit-learn",
	"bs4":        "beautifulsoup4",
	"yaml":       "PyYAML",
	"Crypto":     "pycryptodome",
	"dateutil":   "python-dateutil",
	"pdf2image":  "pdf2image",
	"pdfplumber": "pdfplumber",
	"PyPDF2":     "PyPDF2",
	"openpyxl":   "openpyxl",
	"reportlab":  "reportlab",
	"tabula":     "tabula-py",
	"pandas":     "pandas",
	"numpy":      "numpy",
}

// HeavyDistributions is the subset of mapped distributions whose presence
// earns an adaptive-timeout bump in the Orchestrator's EXECUTE state.
var HeavyDistributions = map[string]bool{
	"pandas": true, "numpy": true, "torch": true, "opencv-python": true,
	"pdfplumber": true, "tabula-py": true, "openpyxl": true,
}

var (
	importLine     = regexp.MustCompile(`^import\s+([A-Za-z_][\w.]*)`)
	fromImportLine = regexp.MustCompile(`^from\s+([A-Za-z_][\w.]*)\s+import\s+`)
)

// InferPackages parses Python source line by line, collects top-level
// import statements, discards the stdlib allowlist, and maps the
// remainder to distribution names. Returns an empty, non-nil slice (not an
// error) when no third-party imports are found. This is a best-effort
// heuristic: an unparseable-looking line is simply not an import, so
// there is no distinct parse-failure case.
func InferPackages(source string) []string {
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) != len(line) {
			// Not top-level (indented): skip.
			continue
		}

		var name string
		if m := importLine.FindStringSubmatch(trimmed); m != nil {
			name = m[1]
		} else if m := fromImportLine.FindStringSubmatch(trimmed); m != nil {
			name = m[1]
		} else {
			continue
		}

		top := strings.SplitN(name, ".", 2)[0]
		if stdlibAllowlist[top] {
			continue
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

func mapDistribution(importName string) string {
	if dist, ok := distributionByImport[importName]; ok {
		return dist
	}
	return importName
}
