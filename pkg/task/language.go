package task

import "strings"

// Language identifies one of the canonical Language Profiles.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	C          Language = "c"
	Cpp        Language = "cpp"
	Java       Language = "java"
)

// Languages lists every supported enum value, in the order they appear in
// the Language Profiles table.
var Languages = []Language{Python, JavaScript, C, Cpp, Java}

// ParseLanguage normalizes a caller-supplied language string into a
// Language, accepting the "c++" alias for Cpp. Returns false if the value
// is not one of the known enum members.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python":
		return Python, true
	case "javascript", "js":
		return JavaScript, true
	case "c":
		return C, true
	case "cpp", "c++":
		return Cpp, true
	case "java":
		return Java, true
	default:
		return "", false
	}
}

// Valid reports whether l is one of the known enum members.
func (l Language) Valid() bool {
	_, ok := ParseLanguage(string(l))
	return ok
}
