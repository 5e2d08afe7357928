package hashutil

import (
	"encoding/json"
	"testing"
)

func mustHash(t *testing.T, raw string) string {
	t.Helper()
	h, err := HashJSONText(raw)
	if err != nil {
		t.Fatalf("HashJSONText(%s): %v", raw, err)
	}
	if len(h) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars: %q", len(h), h)
	}
	return h
}

func TestHashStability_KeyReordering(t *testing.T) {
	a := `{"command":"echo","args":["hi"],"name":"alpha"}`
	b := `{"name":"alpha","args":["hi"],"command":"echo"}`
	if mustHash(t, a) != mustHash(t, b) {
		t.Fatal("expected reordered-key objects to hash equal")
	}
}

func TestHashStability_NestedObjectReordering(t *testing.T) {
	a := `{"env":{"A":"1","B":"2"},"name":"x"}`
	b := `{"name":"x","env":{"B":"2","A":"1"}}`
	if mustHash(t, a) != mustHash(t, b) {
		t.Fatal("expected reordered nested-object keys to hash equal")
	}
}

func TestHashChanges_OnValueDifference(t *testing.T) {
	a := `{"command":"echo"}`
	b := `{"command":"echo2"}`
	if mustHash(t, a) == mustHash(t, b) {
		t.Fatal("expected different command values to hash differently")
	}
}

func TestHashStability_ArrayOrderMatters(t *testing.T) {
	a := `{"args":["a","b"]}`
	b := `{"args":["b","a"]}`
	if mustHash(t, a) == mustHash(t, b) {
		t.Fatal("array element order should be significant")
	}
}

func TestCanonicalJSON_NoWhitespace(t *testing.T) {
	var v any
	if err := json.Unmarshal([]byte(`{"b": 1, "a": 2}`), &v); err != nil {
		t.Fatal(err)
	}
	data, err := CanonicalJSON(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":2,"b":1}` {
		t.Fatalf("unexpected canonical form: %s", data)
	}
}

func TestHash_ByteForByteProperty(t *testing.T) {
	// hash(canon(x)) == hash(canon(y)) iff canon(x) == canon(y) byte-for-byte.
	var x, y any
	_ = json.Unmarshal([]byte(`{"a":1,"b":[1,2,3]}`), &x)
	_ = json.Unmarshal([]byte(`{"b":[1,2,3],"a":1}`), &y)

	cx, err := CanonicalJSON(x)
	if err != nil {
		t.Fatal(err)
	}
	cy, err := CanonicalJSON(y)
	if err != nil {
		t.Fatal(err)
	}
	if string(cx) != string(cy) {
		t.Fatalf("expected identical canonical bytes: %s vs %s", cx, cy)
	}

	hx, _ := Hash(x)
	hy, _ := Hash(y)
	if hx != hy {
		t.Fatal("equal canonical bytes must hash equal")
	}
}
