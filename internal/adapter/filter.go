package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// condition is one "field = value" comparison.
type condition struct {
	field string
	value string
}

// Filter is a parsed predicate of the form
//
//	Name = 'Apple' AND Age = 12 OR Id = 3
//
// AND binds tighter than OR. Values are compared to the string form of the
// item's field, looked up in identifiers first and then data.
type Filter struct {
	// groups are OR-ed together; the conditions within a group are AND-ed.
	groups [][]condition
}

var (
	orSplit  = regexp.MustCompile(`(?i)\s+OR\s+`)
	andSplit = regexp.MustCompile(`(?i)\s+AND\s+`)
)

// ParseFilter parses expr. An empty expression matches every item. A
// leading "where " is ignored.
func ParseFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if len(expr) >= 6 && strings.EqualFold(expr[:6], "where ") {
		expr = strings.TrimSpace(expr[6:])
	}

	f := &Filter{}
	if expr == "" {
		return f, nil
	}

	for _, groupExpr := range orSplit.Split(expr, -1) {
		var group []condition
		for _, condExpr := range andSplit.Split(groupExpr, -1) {
			c, err := parseCondition(condExpr)
			if err != nil {
				return nil, err
			}
			group = append(group, c)
		}
		f.groups = append(f.groups, group)
	}
	return f, nil
}

func parseCondition(expr string) (condition, error) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return condition{}, fmt.Errorf("invalid filter condition %q: expected field = 'value'", expr)
	}
	field := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if field == "" {
		return condition{}, fmt.Errorf("invalid filter condition %q: missing field name", expr)
	}
	if len(value) >= 2 && strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") {
		value = value[1 : len(value)-1]
	}
	return condition{field: field, value: value}, nil
}

// Match reports whether item satisfies the filter.
func (f *Filter) Match(item *core.Item) bool {
	if len(f.groups) == 0 {
		return true
	}
	for _, group := range f.groups {
		if matchAll(item, group) {
			return true
		}
	}
	return false
}

func matchAll(item *core.Item, group []condition) bool {
	for _, c := range group {
		v, ok := item.Get(c.field)
		if !ok || fmt.Sprint(v) != c.value {
			return false
		}
	}
	return true
}

// project keeps only the named fields of item. An empty list keeps all.
func project(item *core.Item, fields []string) *core.Item {
	if len(fields) == 0 {
		return item
	}
	keep := core.NewKeySet(fields...)
	out := &core.Item{}
	item.Identifiers.Range(func(k string, v interface{}) bool {
		if keep.Contains(k) {
			out.Identifiers.Set(k, v)
		}
		return true
	})
	item.Data.Range(func(k string, v interface{}) bool {
		if keep.Contains(k) {
			out.Data.Set(k, v)
		}
		return true
	})
	return out
}
