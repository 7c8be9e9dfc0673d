package mysql

import (
	"fmt"
	"strings"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/internal/sortby"
	"github.com/dekarrin/jelrec/schema"
)

// fieldType returns the schema type escaping should use for the named
// field. The revision field is not part of the tree and stores as text.
func fieldType(st *jelrec.Struct, field string) (schema.Type, error) {
	if st.Revisions && field == st.RevField {
		return schema.String, nil
	}
	n, ok := st.Tree.Node(field)
	if !ok {
		return schema.Any, jelrec.NewError(fmt.Sprintf("field %q", field), jelrec.ErrUnknownField)
	}
	return n.Type(), nil
}

// processValue renders the match condition for one filter field as the SQL
// following the column name: "= x", "IN (...)", "BETWEEN a AND b", and so
// on.
func processValue(d dialect, st *jelrec.Struct, field string, value any) (string, error) {
	t, err := fieldType(st, field)
	if err != nil {
		return "", err
	}

	switch v := value.(type) {
	case nil:
		return "IS NULL", nil

	case []any:
		in, err := escapeList(d, t, v)
		if err != nil {
			return "", err
		}
		return "IN (" + in + ")", nil

	case jelrec.Cond, map[string]any:
		var c jelrec.Cond
		if cv, ok := v.(jelrec.Cond); ok {
			c = cv
		} else {
			c = jelrec.Cond(v.(map[string]any))
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
			lo, err := escape(d, t, bounds[0])
			if err != nil {
				return "", err
			}
			hi, err := escape(d, t, bounds[1])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("BETWEEN %s AND %s", lo, hi), nil
		case "lt", "gt", "lte", "gte":
			ops := map[string]string{"lt": "<", "gt": ">", "lte": "<=", "gte": ">="}
			ev, err := escape(d, t, arg)
			if err != nil {
				return "", err
			}
			return ops[marker] + " " + ev, nil
		case "neq":
			switch av := arg.(type) {
			case nil:
				return "IS NOT NULL", nil
			case []any:
				in, err := escapeList(d, t, av)
				if err != nil {
					return "", err
				}
				return "NOT IN (" + in + ")", nil
			default:
				ev, err := escape(d, t, arg)
				if err != nil {
					return "", err
				}
				return "!= " + ev, nil
			}
		default: // like
			ev, err := escape(d, t, arg)
			if err != nil {
				return "", err
			}
			return "LIKE " + ev, nil
		}

	default:
		ev, err := escape(d, t, value)
		if err != nil {
			return "", err
		}
		return "= " + ev, nil
	}
}

func escapeList(d dialect, t schema.Type, items []any) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			parts[i] = "NULL"
			continue
		}
		ev, err := escape(d, t, item)
		if err != nil {
			return "", err
		}
		parts[i] = ev
	}
	return strings.Join(parts, ","), nil
}

// buildWhere renders a filter as a WHERE clause, or "" for a nil filter.
// Fields are emitted in sorted order so statements are deterministic.
func buildWhere(d dialect, st *jelrec.Struct, filter jelrec.Filter) (string, error) {
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
		cond, err := processValue(d, st, f, filter[f])
		if err != nil {
			return "", err
		}
		terms[i] = fmt.Sprintf("`%s` %s", f, cond)
	}
	return " WHERE " + strings.Join(terms, " AND "), nil
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
		terms[i] = fmt.Sprintf("`%s` %s", o.Field, dir)
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

// buildLimit renders a LIMIT clause, or "" for nil.
func buildLimit(limit *jelrec.Limit) string {
	if limit == nil {
		return ""
	}
	if limit.Offset > 0 {
		return fmt.Sprintf(" LIMIT %d, %d", limit.Offset, limit.Count)
	}
	return fmt.Sprintf(" LIMIT %d", limit.Count)
}

// buildColumns renders the projected column list, or * when fields is nil.
func buildColumns(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = "`" + f + "`"
	}
	return strings.Join(quoted, ",")
}
