package jelrec

import (
	"reflect"
	"strconv"
)

// GenerateDiff computes a structural diff between two values, usually the
// before and after states of a record. The result is nil when the values are
// deeply equal.
//
// For maps and slices the diff recurses, producing a map of only the changed
// keys (slice indices become string keys via their decimal form; an index
// present on only one side diffs against nil). When the number of changed
// keys reaches or exceeds the key count of the larger side,
// the partial diff degenerates to a whole-value replacement: a map with just
// "old" and "new". Scalars and type mismatches always produce the "old"/"new"
// pair.
func GenerateDiff(old, new any) map[string]any {
	if reflect.DeepEqual(old, new) {
		return nil
	}

	oldMap, oldIsMap := asValueMap(old)
	newMap, newIsMap := asValueMap(new)

	if !oldIsMap || !newIsMap {
		return map[string]any{"old": old, "new": new}
	}

	keys := map[string]struct{}{}
	for k := range oldMap {
		keys[k] = struct{}{}
	}
	for k := range newMap {
		keys[k] = struct{}{}
	}

	partial := map[string]any{}
	for k := range keys {
		ov, oOK := oldMap[k]
		nv, nOK := newMap[k]

		switch {
		case oOK && nOK:
			if sub := GenerateDiff(ov, nv); sub != nil {
				partial[k] = sub
			}
		case oOK:
			partial[k] = map[string]any{"old": ov, "new": nil}
		default:
			partial[k] = map[string]any{"old": nil, "new": nv}
		}
	}

	if len(partial) == 0 {
		return nil
	}

	// diff degenerated to a total replacement; emit the whole values rather
	// than a partial diff that repeats every key.
	larger := len(oldMap)
	if len(newMap) > larger {
		larger = len(newMap)
	}
	if len(partial) >= larger {
		return map[string]any{"old": old, "new": new}
	}

	return partial
}

// asValueMap views a map or slice value as a string-keyed map so the diff
// walk can treat both uniformly. Returns false for scalars and for anything
// that is not traversable.
func asValueMap(v any) (map[string]any, bool) {
	switch tv := v.(type) {
	case map[string]any:
		return tv, true
	case []any:
		m := make(map[string]any, len(tv))
		for i := range tv {
			m[strconv.Itoa(i)] = tv[i]
		}
		return m, true
	default:
		return nil, false
	}
}
