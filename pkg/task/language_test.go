package task

import "testing"

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in     string
		want   Language
		wantOK bool
	}{
		{"python", Python, true},
		{" Python ", Python, true},
		{"JavaScript", JavaScript, true},
		{"js", JavaScript, true},
		{"c", C, true},
		{"cpp", Cpp, true},
		{"c++", Cpp, true},
		{"java", Java, true},
		{"rust", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseLanguage(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseLanguage(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLanguage_Valid(t *testing.T) {
	if !Python.Valid() {
		t.Error("Python should be valid")
	}
	if Language("cobol").Valid() {
		t.Error("cobol should not be valid")
	}
}
