package mysql

import (
	"fmt"
	"strconv"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/schema"
)

// Literal is a raw SQL fragment used as a field value. It is emitted into
// statements verbatim, with no escaping, so callers can store server-side
// expressions like CURRENT_TIMESTAMP. Never wrap user input in a Literal.
type Literal string

// escape renders value as a SQL literal appropriate for a field of type t.
func escape(d dialect, t schema.Type, value any) (string, error) {
	if lit, ok := value.(Literal); ok {
		return string(lit), nil
	}
	if value == nil {
		return "NULL", nil
	}

	switch t {
	case schema.Bool:
		switch v := value.(type) {
		case bool:
			if v {
				return "1", nil
			}
			return "0", nil
		case int64:
			if v == 1 {
				return "1", nil
			}
			return "0", nil
		case string:
			switch v {
			case "true", "True", "TRUE", "t", "T", "1":
				return "1", nil
			}
			return "0", nil
		}

	case schema.Base64, schema.Date, schema.Datetime, schema.MD5, schema.Time, schema.UUID:
		return fmt.Sprintf("'%v'", value), nil

	case schema.Decimal, schema.Float, schema.Price:
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case string:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return "", jelrec.NewError(fmt.Sprintf("%q is not numeric", v), jelrec.ErrBadArgument)
			}
			return v, nil
		}

	case schema.Int, schema.UInt:
		switch v := value.(type) {
		case int64:
			return strconv.FormatInt(v, 10), nil
		case int:
			return strconv.Itoa(v), nil
		case float64:
			return strconv.FormatInt(int64(v), 10), nil
		}

	case schema.Timestamp:
		switch v := value.(type) {
		case int64:
			return d.fromUnixtime(strconv.FormatInt(v, 10)), nil
		case int:
			return d.fromUnixtime(strconv.Itoa(v)), nil
		case float64:
			return d.fromUnixtime(strconv.FormatInt(int64(v), 10)), nil
		case string:
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				return d.fromUnixtime(v), nil
			}
		}
	}

	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	return "'" + d.escapeString(s) + "'", nil
}
