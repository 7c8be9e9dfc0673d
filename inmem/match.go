package inmem

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/jelrec"
)

// matchRow reports whether the row satisfies every condition of the filter.
// A nil filter matches.
func matchRow(row map[string]any, filter jelrec.Filter) (bool, error) {
	for field, cond := range filter {
		ok, err := matchValue(row[field], cond)
		if err != nil {
			return false, jelrec.NewError(fmt.Sprintf("filter field %q", field), err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(v any, cond any) (bool, error) {
	switch cv := cond.(type) {
	case nil:
		return v == nil, nil
	case jelrec.Cond:
		return matchCond(v, cv)
	case map[string]any:
		return matchCond(v, jelrec.Cond(cv))
	case []any:
		for _, item := range cv {
			if valuesEqual(v, item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return valuesEqual(v, cond), nil
	}
}

func matchCond(v any, c jelrec.Cond) (bool, error) {
	marker, arg, ok := jelrec.CondMarker(c)
	if !ok {
		return false, jelrec.NewError("condition has no recognized marker", jelrec.ErrBadArgument)
	}

	switch marker {
	case "between":
		bounds, ok := arg.([]any)
		if !ok || len(bounds) != 2 {
			return false, jelrec.NewError("between needs a two-element list", jelrec.ErrBadArgument)
		}
		lo, err := compareValues(v, bounds[0])
		if err != nil {
			return false, err
		}
		hi, err := compareValues(v, bounds[1])
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case "lt", "gt", "lte", "gte":
		cmp, err := compareValues(v, arg)
		if err != nil {
			return false, err
		}
		switch marker {
		case "lt":
			return cmp < 0, nil
		case "gt":
			return cmp > 0, nil
		case "lte":
			return cmp <= 0, nil
		default:
			return cmp >= 0, nil
		}
	case "neq":
		switch av := arg.(type) {
		case nil:
			return v != nil, nil
		case []any:
			for _, item := range av {
				if valuesEqual(v, item) {
					return false, nil
				}
			}
			return true, nil
		default:
			return !valuesEqual(v, arg), nil
		}
	case "like":
		pattern, ok := arg.(string)
		if !ok {
			return false, jelrec.NewError("like needs a string pattern", jelrec.ErrBadArgument)
		}
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		return likeMatch(s, pattern), nil
	default:
		return false, jelrec.NewError(fmt.Sprintf("unknown marker %q", marker), jelrec.ErrBadArgument)
	}
}

// likeMatch matches s against a pattern whose only wildcard is %, matching
// any run of characters.
func likeMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]

	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		i := strings.Index(s, mid)
		if i < 0 {
			return false
		}
		s = s[i+len(mid):]
	}
	return true
}

// valuesEqual compares two canonical field values for equality, coercing
// across the numeric kinds cleaning can produce.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	if as, ok := a.(string); ok {
		bs, bok := b.(string)
		return bok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders two canonical field values. Numbers order
// numerically, strings lexically. Mixing the two is an error.
func compareValues(a, b any) (int, error) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, jelrec.NewError(fmt.Sprintf("cannot compare number with %T", b), jelrec.ErrBadArgument)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, jelrec.NewError(fmt.Sprintf("cannot order %T against %T", a, b), jelrec.ErrBadArgument)
	}
	return strings.Compare(as, bs), nil
}

func asFloat(v any) (float64, bool) {
	switch nv := v.(type) {
	case int:
		return float64(nv), true
	case int64:
		return float64(nv), true
	case uint64:
		return float64(nv), true
	case float64:
		return nv, true
	case float32:
		return float64(nv), true
	default:
		return 0, false
	}
}

// orderRows sorts rows by the given terms, falling back to the primary key
// so results are deterministic.
func orderRows(rows []map[string]any, orderBy []jelrec.Order, primary string) {
	terms := orderBy
	if len(terms) == 0 {
		terms = []jelrec.Order{{Field: primary}}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range terms {
			cmp, err := compareValues(rows[i][term.Field], rows[j][term.Field])
			if err != nil {
				// unorderable pairs keep their relative order
				continue
			}
			if cmp == 0 {
				continue
			}
			if term.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
