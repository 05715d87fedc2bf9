package memory

import "testing"

func TestMetadata_Clean_DropsNil(t *testing.T) {
	m := Metadata{"a": nil, "b": "kept"}
	got := m.clean()
	if _, ok := got["a"]; ok {
		t.Error("expected nil value to be dropped")
	}
	if got["b"] != "kept" {
		t.Errorf("b = %v, want kept", got["b"])
	}
}

func TestMetadata_Clean_PassesPrimitivesThrough(t *testing.T) {
	m := Metadata{"s": "x", "i": 1, "f": 1.5, "b": true, "list": []string{"a", "b"}}
	got := m.clean()
	if got["s"] != "x" || got["i"] != 1 || got["f"] != 1.5 || got["b"] != true {
		t.Errorf("unexpected clean result: %+v", got)
	}
	list, ok := got["list"].([]string)
	if !ok || len(list) != 2 {
		t.Errorf("list = %v, want [a b]", got["list"])
	}
}

func TestMetadata_Clean_StringifiesOther(t *testing.T) {
	type custom struct{ X int }
	m := Metadata{"c": custom{X: 3}}
	got := m.clean()
	if _, ok := got["c"].(string); !ok {
		t.Errorf("expected non-primitive to be stringified, got %T", got["c"])
	}
}

func TestFloatValue_DefaultsWhenAbsent(t *testing.T) {
	if v := floatValue(map[string]any{}, "success_count", 1); v != 1 {
		t.Errorf("got %v, want 1", v)
	}
}

func TestFloatValue_DefaultsWhenZero(t *testing.T) {
	if v := floatValue(map[string]any{"success_count": float64(0)}, "success_count", 1); v != 1 {
		t.Errorf("got %v, want 1 (zero treated as missing, matching `x or default`)", v)
	}
}

func TestFloatValue_ReadsStored(t *testing.T) {
	if v := floatValue(map[string]any{"success_count": float64(3)}, "success_count", 1); v != 3 {
		t.Errorf("got %v, want 3", v)
	}
}

func TestStringValue(t *testing.T) {
	if v := stringValue(map[string]any{"created_at": "2026-01-01T00:00:00Z"}, "created_at"); v == "" {
		t.Error("expected non-empty created_at")
	}
	if v := stringValue(map[string]any{}, "created_at"); v != "" {
		t.Errorf("got %q, want empty", v)
	}
}
