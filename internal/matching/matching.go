// Package matching pairs two row collections by a set of compare keys.
package matching

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// Match pairs a source row with the single target row it matched.
type Match struct {
	Source *core.Item
	Target *core.Item
}

// RowMap is the result of FindMatchingRowMap. Matches keep source order.
type RowMap struct {
	Matches   []Match
	Unmatched []*core.Item
}

// TargetFor returns the target row paired with source.
func (m *RowMap) TargetFor(source *core.Item) (*core.Item, bool) {
	for _, match := range m.Matches {
		if match.Source == source {
			return match.Target, true
		}
	}
	return nil, false
}

// FindMatchingRowMap pairs every source row with the target rows that agree
// on all compare keys the source row carries. A compare key missing from the
// source row imposes no constraint.
//
// A source row that matches several target rows fails with ErrDuplicateMatch.
// Two source rows claiming the same target row fail with ErrSourceNotUnique.
func FindMatchingRowMap(source, target []*core.Item, compareKeys []string) (*RowMap, error) {
	result := &RowMap{}
	claimed := make(map[*core.Item]bool)

	targetViews := make([]core.Fields, len(target))
	for i, t := range target {
		targetViews[i] = t.CombinedView()
	}

	for _, src := range source {
		srcView := src.CombinedView()

		var found []*core.Item
		for i, t := range target {
			if IsRowMatch(srcView, targetViews[i], compareKeys) {
				found = append(found, t)
			}
		}

		switch len(found) {
		case 0:
			result.Unmatched = append(result.Unmatched, src)
		case 1:
			if claimed[found[0]] {
				return nil, fmt.Errorf("%w. Items are not unique by compare keys %s. Values: %s",
					core.ErrSourceNotUnique, strings.Join(compareKeys, ","), valuesByKeys(targetViews, target, found[0], compareKeys))
			}
			claimed[found[0]] = true
			result.Matches = append(result.Matches, Match{Source: src, Target: found[0]})
		default:
			return nil, fmt.Errorf("%w. Items are not unique by compare keys %s. Values: %s",
				core.ErrDuplicateMatch, strings.Join(compareKeys, ","), valuesByKeys(targetViews, target, found[0], compareKeys))
		}
	}

	return result, nil
}

func valuesByKeys(views []core.Fields, items []*core.Item, item *core.Item, keys []string) string {
	for i, it := range items {
		if it == item {
			projected := ValuesByKeys(views[i], keys)
			parts := make([]string, 0, projected.Len())
			projected.Range(func(_ string, v interface{}) bool {
				parts = append(parts, fmt.Sprint(v))
				return true
			})
			return strings.Join(parts, ",")
		}
	}
	return ""
}

// IsRowMatch reports whether every compare key present on src exists on
// target with an equivalent value.
func IsRowMatch(src, target core.Fields, keys []string) bool {
	keySet := core.NewKeySet(keys...)
	match := true
	src.Range(func(k string, v interface{}) bool {
		if !keySet.Contains(k) {
			return true
		}
		tv, ok := target.Get(k)
		if !ok || !ValuesEqual(v, tv) {
			match = false
			return false
		}
		return true
	})
	return match
}

// ValuesByKeys projects fields onto keys, in key order. Missing keys are skipped.
func ValuesByKeys(fields core.Fields, keys []string) core.Fields {
	var out core.Fields
	for _, k := range keys {
		if v, ok := fields.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// CollectionKeysAreUnique reports whether no two rows share the same
// projection onto keys.
func CollectionKeysAreUnique(rows []*core.Item, keys []string) bool {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[IdentityKey(ValuesByKeys(row.CombinedView(), keys))] = struct{}{}
	}
	return len(seen) == len(rows)
}
