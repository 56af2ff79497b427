package matching

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// ValuesEqual compares two field values by JSON equivalence, so int and
// int64 from different drivers compare equal while "1" and 1 do not.
func ValuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// FieldsEqual reports whether a and b hold the same keys, ignoring case,
// with equivalent values.
func FieldsEqual(a, b core.Fields) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Range(func(k string, v interface{}) bool {
		bv, ok := b.Get(k)
		if !ok || !ValuesEqual(v, bv) {
			equal = false
		}
		return equal
	})
	return equal
}

// IdentityKey renders fields as a canonical string: keys lower-cased and
// sorted, values JSON-encoded. Fields that are FieldsEqual share an IdentityKey.
func IdentityKey(fields core.Fields) string {
	pairs := make([][2]string, 0, fields.Len())
	fields.Range(func(k string, v interface{}) bool {
		encoded, err := json.Marshal(v)
		if err != nil {
			encoded = []byte(reflect.TypeOf(v).String())
		}
		pairs = append(pairs, [2]string{strings.ToLower(k), string(encoded)})
		return true
	})
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	out, _ := json.Marshal(pairs)
	return string(out)
}
