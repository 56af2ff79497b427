package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Fields is a case-insensitive key/value map that keeps the casing of the
// first insert and iterates in insertion order. The zero value is ready to use.
type Fields struct {
	entries map[string]*fieldEntry
	order   []string
}

type fieldEntry struct {
	key   string
	value interface{}
}

// NewFields creates a Fields map populated from the given pairs.
// Keys are inserted in sorted order so construction from a Go map is deterministic.
func NewFields(values map[string]interface{}) Fields {
	var f Fields
	for _, k := range sortedKeys(values) {
		f.Set(k, values[k])
	}
	return f
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}

func (f *Fields) init() {
	if f.entries == nil {
		f.entries = make(map[string]*fieldEntry)
	}
}

// Set stores value under key. An existing key keeps its original casing.
func (f *Fields) Set(key string, value interface{}) {
	f.init()
	norm := normalizeKey(key)
	if e, ok := f.entries[norm]; ok {
		e.value = value
		return
	}
	f.entries[norm] = &fieldEntry{key: key, value: value}
	f.order = append(f.order, norm)
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (interface{}, bool) {
	if f.entries == nil {
		return nil, false
	}
	e, ok := f.entries[normalizeKey(key)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Has reports whether key is present.
func (f *Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Delete removes key if present.
func (f *Fields) Delete(key string) {
	if f.entries == nil {
		return
	}
	norm := normalizeKey(key)
	if _, ok := f.entries[norm]; !ok {
		return
	}
	delete(f.entries, norm)
	for i, k := range f.order {
		if k == norm {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	return len(f.order)
}

// Keys returns the keys in insertion order with their original casing.
func (f *Fields) Keys() []string {
	keys := make([]string, 0, len(f.order))
	for _, norm := range f.order {
		keys = append(keys, f.entries[norm].key)
	}
	return keys
}

// Range calls fn for each pair in insertion order until fn returns false.
func (f *Fields) Range(fn func(key string, value interface{}) bool) {
	for _, norm := range f.order {
		e := f.entries[norm]
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (f *Fields) Clone() Fields {
	var out Fields
	f.Range(func(k string, v interface{}) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// ToMap returns a plain map keyed by the original casing.
func (f *Fields) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, f.Len())
	f.Range(func(k string, v interface{}) bool {
		m[k] = v
		return true
	})
	return m
}

// MarshalJSON writes the pairs as a JSON object in insertion order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	f.Range(func(k string, v interface{}) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("failed to marshal field %s: %w", k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order. Integral numbers
// decode as int64, other numbers as float64.
func (f *Fields) UnmarshalJSON(data []byte) error {
	*f = Fields{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read field key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected field key %v", tok)
		}
		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read field %s: %w", key, err)
		}
		f.Set(key, normalizeJSONValue(raw))
	}

	_, err = dec.Token()
	return err
}

func normalizeJSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if fl, err := t.Float64(); err == nil {
			return fl
		}
		return t.String()
	case []interface{}:
		for i := range t {
			t[i] = normalizeJSONValue(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = normalizeJSONValue(t[k])
		}
		return t
	default:
		return v
	}
}

// String renders the pairs as key=value in insertion order.
func (f Fields) String() string {
	parts := make([]string, 0, f.Len())
	f.Range(func(k string, v interface{}) bool {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}
