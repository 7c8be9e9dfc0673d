package jelrec

// Filter maps field names to match conditions. A condition is one of:
//
//   - a scalar value, matched by equality (nil matches "is null");
//   - a list of values, matched as membership (IN);
//   - a Cond, a marker-keyed mapping selecting a range or pattern check.
//
// These are the same shapes a backend receives, and each backend translates
// them to its native query form.
type Filter map[string]any

// Cond is a marker-keyed match condition. Exactly one marker key must be
// present: "between" (two-element list, inclusive), "lt", "gt", "lte", "gte",
// "neq" (scalar, nil, or a list for NOT IN), or "like" (pattern with %
// wildcards).
type Cond map[string]any

// Between matches values between lo and hi inclusive.
func Between(lo, hi any) Cond { return Cond{"between": []any{lo, hi}} }

// Lt matches values strictly below v.
func Lt(v any) Cond { return Cond{"lt": v} }

// Gt matches values strictly above v.
func Gt(v any) Cond { return Cond{"gt": v} }

// Lte matches values at or below v.
func Lte(v any) Cond { return Cond{"lte": v} }

// Gte matches values at or above v.
func Gte(v any) Cond { return Cond{"gte": v} }

// Neq matches values not equal to v. If v is a list, values not contained in
// it; if v is nil, values that are set.
func Neq(v any) Cond { return Cond{"neq": v} }

// Like matches string values against a pattern with % wildcards.
func Like(pattern string) Cond { return Cond{"like": pattern} }

// condMarkers is the closed set of Cond keys, in the order backends check
// them.
var condMarkers = []string{"between", "lt", "gt", "lte", "gte", "neq", "like"}

// CondMarker extracts the single marker of a Cond. ok is false when the Cond
// carries no recognized marker.
func CondMarker(c Cond) (marker string, value any, ok bool) {
	for _, m := range condMarkers {
		if v, present := c[m]; present {
			return m, v, true
		}
	}
	return "", nil, false
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Limit bounds a result set. A nil *Limit means unbounded.
type Limit struct {
	Offset int
	Count  int
}

// Query is the full shape of a read or bulk-write selection: a filter plus
// projection, ordering, and bounds.
type Query struct {
	// Filter restricts which records are selected. A nil Filter selects all.
	Filter Filter

	// Fields restricts the returned columns. Nil returns every schema field.
	Fields []string

	// OrderBy sorts the result.
	OrderBy []Order

	// Limit bounds the result.
	Limit *Limit
}
