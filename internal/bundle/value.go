package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the types a Bundle may hold.
type Value interface {
	bundleValue()
}

// String is a string entry.
type String string

func (String) bundleValue() {}

// Int is an integer entry. Always int64.
type Int int64

func (Int) bundleValue() {}

// Bool is a boolean entry.
type Bool bool

func (Bool) bundleValue() {}

// Bundle maps keys to values. A nil Bundle is empty and safe to read.
type Bundle map[string]Value

func (Bundle) bundleValue() {}

// New returns an empty bundle.
func New() Bundle {
	return make(Bundle)
}

// Clone returns a deep copy of b. Nested bundles are copied too, so the
// result can be mutated without affecting b.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		if nested, ok := v.(Bundle); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// PutAll copies every entry of src into b, overwriting existing keys.
func (b Bundle) PutAll(src Bundle) {
	for k, v := range src {
		b[k] = v
	}
}

// GetString returns the string stored under key, or "" when the key is
// missing or holds another type.
func (b Bundle) GetString(key string) string {
	s, _ := b[key].(String)
	return string(s)
}

// GetInt returns the integer stored under key, or 0.
func (b Bundle) GetInt(key string) int64 {
	n, _ := b[key].(Int)
	return int64(n)
}

// GetBool returns the boolean stored under key, or false.
func (b Bundle) GetBool(key string) bool {
	v, _ := b[key].(Bool)
	return bool(v)
}

// GetBundle returns the nested bundle stored under key, or nil.
func (b Bundle) GetBundle(key string) Bundle {
	nested, _ := b[key].(Bundle)
	return nested
}

// Has reports whether key is present.
func (b Bundle) Has(key string) bool {
	_, ok := b[key]
	return ok
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (b Bundle) SortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// MarshalJSON writes the bundle with sorted keys.
func (b Bundle) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(b[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Bundle:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown bundle value type: %T", v)
	}
}

// UnmarshalJSON decodes a JSON object. Floats, arrays and nulls are
// rejected.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := FromMap(raw)
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// FromMap converts a generic map (as produced by encoding/json or
// yaml.v3) into a Bundle.
func FromMap(m map[string]any) (Bundle, error) {
	out := make(Bundle, len(m))
	for k, raw := range m {
		v, err := convert(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func convert(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not allowed in a bundle")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not allowed in a bundle: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float64:
		// yaml.v3 and plain encoding/json decode integers as float64.
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed in a bundle: %v", val)
		}
		return Int(int64(val)), nil
	case map[string]any:
		return FromMap(val)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
