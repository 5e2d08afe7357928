// Package hashutil produces a stable hex digest for a JSON-shaped value.
//
// A manifest entry can arrive with its object keys in any order; two
// byte-different JSON documents that describe the same value must hash
// equal, or the reconciler would treat an irrelevant key-ordering change
// as a real config update. Canonicalize recursively sorts object keys
// (arrays keep their order) before hashing, so the result depends only on
// the value, never on how it happened to be serialized.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize walks v (the result of json.Unmarshal into any) and returns
// a new value with every map turned into an order-preserving canonical
// form: object keys are emitted in sorted order. Arrays are canonicalized
// element-wise but keep their original order.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, kv{k, Canonicalize(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// kv is one canonicalized object entry; orderedMap is a slice of kv pairs
// that marshals as a JSON object with keys in the slice's order. Plain
// map[string]any would also marshal with sorted keys (encoding/json sorts
// map keys), but routing through an explicit ordered form makes the sort
// a property of this package rather than an accident of the standard
// library's map-marshaling behavior, and keeps CanonicalJSON's output
// independently testable byte-for-byte.
type kv struct {
	key string
	val any
}

type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(e.val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// CanonicalJSON returns the canonical, whitespace-free JSON encoding of v.
func CanonicalJSON(v any) ([]byte, error) {
	canon := Canonicalize(v)
	data, err := json.Marshal(canon)
	if err != nil {
		return nil, fmt.Errorf("hashutil: marshal canonical form: %w", err)
	}
	return data, nil
}

// Hash returns the lowercase hex SHA-256 digest of v's canonical JSON form.
func Hash(v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashJSONText parses raw JSON text and hashes its canonical form. Used
// when the caller already holds a config value as stored text rather than
// a decoded any.
func HashJSONText(raw string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", fmt.Errorf("hashutil: parse json: %w", err)
	}
	return Hash(v)
}
