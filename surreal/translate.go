package surreal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/internal/sortby"
)

// vars accumulates bound query variables, naming them $p0, $p1, ...
type vars map[string]any

func (v vars) bind(value any) string {
	name := fmt.Sprintf("p%d", len(v))
	v[name] = value
	return "$" + name
}

// thing renders the record id of key in st's table.
func thing(st *jelrec.Struct, key any) string {
	return fmt.Sprintf("%s:`%v`", st.Table, key)
}

// keyFromThing strips the table prefix off a record id, returning the bare
// key.
func keyFromThing(id any) any {
	s, ok := id.(string)
	if !ok {
		return id
	}
	if _, after, found := cutFirst(s, ":"); found {
		return strings.Trim(after, "`⟨⟩")
	}
	return s
}

func cutFirst(s, sep string) (before, after string, found bool) {
	i := strings.Index(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// buildWhere renders a filter as a WHERE clause with bound vars, or "" for
// a nil filter. Fields are emitted in sorted order so statements are
// deterministic.
func buildWhere(filter jelrec.Filter, v vars) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	fields = sortby.Strings(fields)

	terms := make([]string, len(fields))
	for i, f := range fields {
		term, err := condTerm(f, filter[f], v)
		if err != nil {
			return "", err
		}
		terms[i] = term
	}
	return " WHERE " + strings.Join(terms, " AND "), nil
}

// condTerm renders one filter field's condition.
func condTerm(field string, value any, v vars) (string, error) {
	switch tv := value.(type) {
	case nil:
		return field + " = NONE", nil

	case []any:
		if nils := countNils(tv); nils > 0 {
			return tupleTerm(field, tv, nils, v)
		}
		return fmt.Sprintf("%s INSIDE %s", field, v.bind(tv)), nil

	case jelrec.Cond, map[string]any:
		var c jelrec.Cond
		if cv, ok := tv.(jelrec.Cond); ok {
			c = cv
		} else {
			c = jelrec.Cond(tv.(map[string]any))
		}

		marker, arg, ok := jelrec.CondMarker(c)
		if !ok {
			return "", jelrec.NewError(`key must be one of "between", "lt", "gt", "lte", "gte", "neq", or "like"`, jelrec.ErrBadArgument)
		}

		switch marker {
		case "between":
			bounds, ok := arg.([]any)
			if !ok || len(bounds) != 2 {
				return "", jelrec.NewError("between needs a two-element list", jelrec.ErrBadArgument)
			}
			return fmt.Sprintf("(%s >= %s AND %s <= %s)",
				field, v.bind(bounds[0]), field, v.bind(bounds[1])), nil
		case "lt":
			return fmt.Sprintf("%s < %s", field, v.bind(arg)), nil
		case "gt":
			return fmt.Sprintf("%s > %s", field, v.bind(arg)), nil
		case "lte":
			return fmt.Sprintf("%s <= %s", field, v.bind(arg)), nil
		case "gte":
			return fmt.Sprintf("%s >= %s", field, v.bind(arg)), nil
		case "neq":
			switch av := arg.(type) {
			case nil:
				return field + " != NONE", nil
			case []any:
				return fmt.Sprintf("%s NOT INSIDE %s", field, v.bind(av)), nil
			default:
				return fmt.Sprintf("%s != %s", field, v.bind(arg)), nil
			}
		default: // like
			pattern, ok := arg.(string)
			if !ok {
				return "", jelrec.NewError("like needs a string pattern", jelrec.ErrBadArgument)
			}
			return fmt.Sprintf("string::matches(%s, %s)", field, v.bind(likeToRegex(pattern))), nil
		}

	default:
		return fmt.Sprintf("%s = %s", field, v.bind(value)), nil
	}
}

func countNils(list []any) int {
	var n int
	for _, el := range list {
		if el == nil {
			n++
		}
	}
	return n
}

// tupleTerm renders a positional match against an array-valued field. A nil
// element leaves that position free; at most one position may be free.
func tupleTerm(field string, tuple []any, nils int, v vars) (string, error) {
	if nils > 1 || nils == len(tuple) {
		return "", jelrec.NewError("tuple may leave at most one position free", jelrec.ErrBadArgument)
	}

	terms := make([]string, 0, len(tuple)-1)
	for i, el := range tuple {
		if el == nil {
			continue
		}
		terms = append(terms, fmt.Sprintf("%s[%d] = %s", field, i, v.bind(el)))
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return "(" + strings.Join(terms, " AND ") + ")", nil
}

// likeToRegex converts a %-wildcard pattern to an anchored regular
// expression.
func likeToRegex(pattern string) string {
	parts := strings.Split(pattern, "%")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}

// buildOrder renders an ORDER BY clause, or "" for no terms.
func buildOrder(orderBy []jelrec.Order) string {
	if len(orderBy) == 0 {
		return ""
	}
	terms := make([]string, len(orderBy))
	for i, o := range orderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = o.Field + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// buildLimit renders LIMIT/START clauses, or "" for nil.
func buildLimit(limit *jelrec.Limit) string {
	if limit == nil {
		return ""
	}
	clause := fmt.Sprintf(" LIMIT %d", limit.Count)
	if limit.Offset > 0 {
		clause += fmt.Sprintf(" START %d", limit.Offset)
	}
	return clause
}

// buildColumns renders the projected column list, or * when fields is nil.
func buildColumns(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	return strings.Join(fields, ", ")
}
