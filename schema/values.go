package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
)

var (
	md5Pat    = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	digitsPat = regexp.MustCompile(`^\d+$`)
)

// Clean returns the canonical form of v for the node's type, or an error if v
// is not acceptable. Cleaning an already-canonical value returns it unchanged.
func (n *Node) Clean(v any) (any, error) {
	switch n.typ {
	case Any:
		return v, nil
	case Bool:
		return cleanBool(v)
	case Int:
		iv, err := cleanInt(v)
		if err != nil {
			return nil, err
		}
		return n.checkRange(iv.(int64), iv)
	case UInt:
		iv, err := cleanInt(v)
		if err != nil {
			return nil, err
		}
		if iv.(int64) < 0 {
			return nil, fmt.Errorf("negative value for uint field")
		}
		return n.checkRange(iv.(int64), iv)
	case Float:
		return cleanFloat(v)
	case Decimal:
		return cleanDecimalStr(v, -1)
	case Price:
		return cleanDecimalStr(v, 2)
	case Date:
		return cleanTimeStr(v, dateLayout)
	case Datetime:
		return cleanTimeStr(v, datetimeLayout)
	case Time:
		return cleanTimeStr(v, timeLayout)
	case Timestamp:
		return cleanTimestamp(v)
	case String:
		return n.cleanString(v)
	case Base64:
		s, err := n.cleanString(v)
		if err != nil {
			return nil, err
		}
		if _, decErr := base64.StdEncoding.DecodeString(s.(string)); decErr != nil {
			return nil, fmt.Errorf("not valid base64: %v", decErr)
		}
		return s, nil
	case UUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("uuid value must be a string, not %T", v)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("not a valid uuid: %v", err)
		}
		return id.String(), nil
	case MD5:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("md5 value must be a string, not %T", v)
		}
		if !md5Pat.MatchString(s) {
			return nil, fmt.Errorf("not a valid md5 hex digest")
		}
		return strings.ToLower(s), nil
	case JSON:
		if _, err := json.Marshal(v); err != nil {
			return nil, fmt.Errorf("not JSON-encodable: %v", err)
		}
		return v, nil
	case IP:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("ip value must be a string, not %T", v)
		}
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("not a valid IP address")
		}
		return ip.String(), nil
	case Array:
		return n.cleanArray(v)
	default:
		return nil, fmt.Errorf("node has unknown type %v", n.typ)
	}
}

// validate checks v against the node and returns path-qualified failures. It
// shares all checking logic with Clean so the two can never disagree.
func (n *Node) validate(path string, v any) []Failure {
	if n.typ == Array {
		items, ok := asSlice(v)
		if !ok {
			return []Failure{{Path: path, Detail: fmt.Sprintf("array value must be a list, not %T", v)}}
		}
		if fail := n.checkLen(int64(len(items)), path, "element count"); fail != nil {
			return fail
		}

		var fails []Failure
		for i, item := range items {
			if n.elem == nil {
				break
			}
			fails = append(fails, n.elem.validate(fmt.Sprintf("%s.%d", path, i), item)...)
		}
		return fails
	}

	if _, err := n.Clean(v); err != nil {
		return []Failure{{Path: path, Detail: err.Error()}}
	}
	return nil
}

func (n *Node) cleanString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("value must be a string, not %T", v)
	}

	if len(n.options) > 0 {
		for _, opt := range n.options {
			if s == opt {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of the allowed options", s)
	}

	if fail := n.checkLen(int64(len(s)), "", "length"); fail != nil {
		return nil, fmt.Errorf("%s", fail[0].Detail)
	}
	return s, nil
}

func (n *Node) cleanArray(v any) (any, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("array value must be a list, not %T", v)
	}
	if fail := n.checkLen(int64(len(items)), "", "element count"); fail != nil {
		return nil, fmt.Errorf("%s", fail[0].Detail)
	}

	out := make([]any, len(items))
	for i, item := range items {
		if n.elem == nil {
			out[i] = item
			continue
		}
		cv, err := n.elem.Clean(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		out[i] = cv
	}
	return out, nil
}

// checkRange bounds-checks an integer value and passes canonical through.
func (n *Node) checkRange(iv int64, canonical any) (any, error) {
	if n.min != nil && iv < *n.min {
		return nil, fmt.Errorf("value %d below minimum %d", iv, *n.min)
	}
	if n.max != nil && iv > *n.max {
		return nil, fmt.Errorf("value %d above maximum %d", iv, *n.max)
	}
	return canonical, nil
}

func (n *Node) checkLen(l int64, path, what string) []Failure {
	if n.min != nil && l < *n.min {
		return []Failure{{Path: path, Detail: fmt.Sprintf("%s %d below minimum %d", what, l, *n.min)}}
	}
	if n.max != nil && l > *n.max {
		return []Failure{{Path: path, Detail: fmt.Sprintf("%s %d above maximum %d", what, l, *n.max)}}
	}
	return nil
}

func cleanBool(v any) (any, error) {
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		iv, _ := asInt64(tv)
		if iv == 0 || iv == 1 {
			return iv == 1, nil
		}
		return nil, fmt.Errorf("integer bool value must be 0 or 1")
	case string:
		switch tv {
		case "true", "True", "TRUE", "t", "T", "1":
			return true, nil
		case "false", "False", "FALSE", "f", "F", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a valid bool string", tv)
	default:
		return nil, fmt.Errorf("value must be a bool, not %T", v)
	}
}

func cleanInt(v any) (any, error) {
	if iv, ok := asInt64(v); ok {
		return iv, nil
	}
	if fv, ok := v.(float64); ok {
		iv := int64(fv)
		if float64(iv) == fv {
			return iv, nil
		}
		return nil, fmt.Errorf("value %v is not an integer", fv)
	}
	if s, ok := v.(string); ok {
		iv, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid integer", s)
		}
		return iv, nil
	}
	return nil, fmt.Errorf("value must be an integer, not %T", v)
}

func cleanFloat(v any) (any, error) {
	switch tv := v.(type) {
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case string:
		fv, err := strconv.ParseFloat(tv, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid number", tv)
		}
		return fv, nil
	default:
		if iv, ok := asInt64(v); ok {
			return float64(iv), nil
		}
		return nil, fmt.Errorf("value must be a number, not %T", v)
	}
}

// cleanDecimalStr canonicalizes decimal-like values as strings so no
// precision is lost in transit. places of -1 preserves the input's scale.
func cleanDecimalStr(v any, places int) (any, error) {
	var s string
	switch tv := v.(type) {
	case string:
		s = tv
	case float64:
		s = strconv.FormatFloat(tv, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(tv), 'f', -1, 32)
	default:
		if iv, ok := asInt64(v); ok {
			s = strconv.FormatInt(iv, 10)
		} else {
			return nil, fmt.Errorf("value must be a decimal string or number, not %T", v)
		}
	}

	fv, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid decimal", s)
	}

	if places >= 0 {
		return strconv.FormatFloat(fv, 'f', places, 64), nil
	}
	return s, nil
}

func cleanTimeStr(v any, layout string) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("value must be a string, not %T", v)
	}
	if _, err := time.Parse(layout, s); err != nil {
		return nil, fmt.Errorf("%q does not match layout %q", s, layout)
	}
	return s, nil
}

func cleanTimestamp(v any) (any, error) {
	if iv, ok := asInt64(v); ok {
		if iv < 0 {
			return nil, fmt.Errorf("timestamp cannot be negative")
		}
		return iv, nil
	}
	if fv, ok := v.(float64); ok {
		iv := int64(fv)
		if float64(iv) == fv && iv >= 0 {
			return iv, nil
		}
		return nil, fmt.Errorf("value %v is not a valid timestamp", fv)
	}
	if s, ok := v.(string); ok {
		if !digitsPat.MatchString(s) {
			return nil, fmt.Errorf("%q is not a valid timestamp", s)
		}
		iv, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid timestamp", s)
		}
		return iv, nil
	}
	if tv, ok := v.(time.Time); ok {
		return tv.Unix(), nil
	}
	return nil, fmt.Errorf("value must be a timestamp, not %T", v)
}

func asInt64(v any) (int64, bool) {
	switch tv := v.(type) {
	case int:
		return int64(tv), true
	case int8:
		return int64(tv), true
	case int16:
		return int64(tv), true
	case int32:
		return int64(tv), true
	case int64:
		return tv, true
	case uint:
		return int64(tv), true
	case uint8:
		return int64(tv), true
	case uint16:
		return int64(tv), true
	case uint32:
		return int64(tv), true
	case uint64:
		return int64(tv), true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch tv := v.(type) {
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = tv[i]
		}
		return out, true
	case []int64:
		out := make([]any, len(tv))
		for i := range tv {
			out[i] = tv[i]
		}
		return out, true
	default:
		return nil, false
	}
}
