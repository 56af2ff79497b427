package core

import (
	"fmt"
	"sort"
)

// Item is a single row split into identifier fields and data fields.
type Item struct {
	// Identifiers are the fields that address the row in its store.
	Identifiers Fields `json:"identifiers"`

	// Data holds every other field.
	Data Fields `json:"data"`
}

// NewItem builds an item from plain maps.
func NewItem(identifiers, data map[string]interface{}) *Item {
	return &Item{
		Identifiers: NewFields(identifiers),
		Data:        NewFields(data),
	}
}

// NewDataItem builds an item whose fields are all data fields.
func NewDataItem(data map[string]interface{}) *Item {
	return NewItem(nil, data)
}

// CombinedView merges identifiers and data. Identifiers win on key collision.
func (i *Item) CombinedView() Fields {
	combined := i.Identifiers.Clone()
	i.Data.Range(func(k string, v interface{}) bool {
		if !combined.Has(k) {
			combined.Set(k, v)
		}
		return true
	})
	return combined
}

// Get looks key up in identifiers first, then data.
func (i *Item) Get(key string) (interface{}, bool) {
	if v, ok := i.Identifiers.Get(key); ok {
		return v, true
	}
	return i.Data.Get(key)
}

// Has reports whether key exists in either map.
func (i *Item) Has(key string) bool {
	_, ok := i.Get(key)
	return ok
}

// Set overwrites key wherever it currently lives, adding it to data otherwise.
func (i *Item) Set(key string, value interface{}) {
	if i.Identifiers.Has(key) {
		i.Identifiers.Set(key, value)
		return
	}
	i.Data.Set(key, value)
}

// Remove deletes key from both maps.
func (i *Item) Remove(key string) {
	i.Identifiers.Delete(key)
	i.Data.Delete(key)
}

// Keys returns the keys of the combined view.
func (i *Item) Keys() []string {
	combined := i.CombinedView()
	return combined.Keys()
}

// SplitByIdentifierKeys moves every data field named in keys into the
// identifier map. A key already present in identifiers is a conflict.
func (i *Item) SplitByIdentifierKeys(keys []string) error {
	keySet := NewKeySet(keys...)
	var move []string
	i.Data.Range(func(k string, _ interface{}) bool {
		if keySet.Contains(k) {
			move = append(move, k)
		}
		return true
	})

	for _, k := range move {
		if i.Identifiers.Has(k) {
			return fmt.Errorf("%w: the key %q exists in both data and identifiers", ErrKeyConflict, k)
		}
	}
	for _, k := range move {
		v, _ := i.Data.Get(k)
		i.Identifiers.Set(k, v)
		i.Data.Delete(k)
	}
	return nil
}

// Clone returns a copy whose maps can be mutated independently.
func (i *Item) Clone() *Item {
	return &Item{
		Identifiers: i.Identifiers.Clone(),
		Data:        i.Data.Clone(),
	}
}

func (i *Item) String() string {
	return fmt.Sprintf("Item{Identifiers: %s, Data: %s}", i.Identifiers, i.Data)
}

// SplitItemsByIdentifierKeys applies SplitByIdentifierKeys to every item.
func SplitItemsByIdentifierKeys(items []*Item, keys []string) error {
	for _, item := range items {
		if err := item.SplitByIdentifierKeys(keys); err != nil {
			return err
		}
	}
	return nil
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []*Item) []*Item {
	out := make([]*Item, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

// KeySet is a case-insensitive set of field names.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[normalizeKey(k)] = struct{}{}
	}
	return s
}

// Contains reports whether key is in the set.
func (s KeySet) Contains(key string) bool {
	_, ok := s[normalizeKey(key)]
	return ok
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
