package schema

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Node_Clean(t *testing.T) {
	i64 := func(v int64) *int64 { return &v }

	testCases := []struct {
		name      string
		node      *Node
		value     any
		expect    any
		expectErr bool
	}{
		{name: "any passes anything", node: NewNode(Any, NodeOpts{}), value: struct{}{}, expect: struct{}{}},

		{name: "bool true", node: NewNode(Bool, NodeOpts{}), value: true, expect: true},
		{name: "bool from 1", node: NewNode(Bool, NodeOpts{}), value: 1, expect: true},
		{name: "bool from 0", node: NewNode(Bool, NodeOpts{}), value: 0, expect: false},
		{name: "bool from string", node: NewNode(Bool, NodeOpts{}), value: "F", expect: false},
		{name: "bool from 2", node: NewNode(Bool, NodeOpts{}), value: 2, expectErr: true},
		{name: "bool from bad string", node: NewNode(Bool, NodeOpts{}), value: "si", expectErr: true},

		{name: "int passthrough", node: NewNode(Int, NodeOpts{}), value: int64(-4), expect: int64(-4)},
		{name: "int from int", node: NewNode(Int, NodeOpts{}), value: 12, expect: int64(12)},
		{name: "int from whole float", node: NewNode(Int, NodeOpts{}), value: 12.0, expect: int64(12)},
		{name: "int from fractional float", node: NewNode(Int, NodeOpts{}), value: 12.5, expectErr: true},
		{name: "int from string", node: NewNode(Int, NodeOpts{}), value: "12", expect: int64(12)},
		{name: "int from bad string", node: NewNode(Int, NodeOpts{}), value: "1.2", expectErr: true},
		{name: "int below minimum", node: NewNode(Int, NodeOpts{Minimum: i64(0)}), value: int64(-1), expectErr: true},
		{name: "int above maximum", node: NewNode(Int, NodeOpts{Maximum: i64(150)}), value: int64(151), expectErr: true},
		{name: "int at maximum", node: NewNode(Int, NodeOpts{Maximum: i64(150)}), value: int64(150), expect: int64(150)},

		{name: "uint ok", node: NewNode(UInt, NodeOpts{}), value: int64(5), expect: int64(5)},
		{name: "uint negative", node: NewNode(UInt, NodeOpts{}), value: int64(-5), expectErr: true},

		{name: "float passthrough", node: NewNode(Float, NodeOpts{}), value: 2.5, expect: 2.5},
		{name: "float from int", node: NewNode(Float, NodeOpts{}), value: 2, expect: 2.0},
		{name: "float from string", node: NewNode(Float, NodeOpts{}), value: "2.5", expect: 2.5},
		{name: "float from bad string", node: NewNode(Float, NodeOpts{}), value: "two", expectErr: true},

		{name: "decimal keeps scale", node: NewNode(Decimal, NodeOpts{}), value: "1.230", expect: "1.230"},
		{name: "decimal from float", node: NewNode(Decimal, NodeOpts{}), value: 1.5, expect: "1.5"},
		{name: "decimal from int", node: NewNode(Decimal, NodeOpts{}), value: 3, expect: "3"},
		{name: "decimal from bad string", node: NewNode(Decimal, NodeOpts{}), value: "abc", expectErr: true},

		{name: "price forces two places", node: NewNode(Price, NodeOpts{}), value: 5, expect: "5.00"},
		{name: "price keeps two places", node: NewNode(Price, NodeOpts{}), value: "9.99", expect: "9.99"},

		{name: "date", node: NewNode(Date, NodeOpts{}), value: "2024-04-13", expect: "2024-04-13"},
		{name: "bad date", node: NewNode(Date, NodeOpts{}), value: "04/13/2024", expectErr: true},
		{name: "datetime", node: NewNode(Datetime, NodeOpts{}), value: "2024-04-13 16:13:01", expect: "2024-04-13 16:13:01"},
		{name: "time", node: NewNode(Time, NodeOpts{}), value: "16:13:01", expect: "16:13:01"},

		{name: "timestamp from int", node: NewNode(Timestamp, NodeOpts{}), value: int64(1713024781), expect: int64(1713024781)},
		{name: "timestamp from digit string", node: NewNode(Timestamp, NodeOpts{}), value: "1713024781", expect: int64(1713024781)},
		{name: "timestamp from time", node: NewNode(Timestamp, NodeOpts{}), value: time.Unix(1713024781, 0), expect: int64(1713024781)},
		{name: "negative timestamp", node: NewNode(Timestamp, NodeOpts{}), value: int64(-1), expectErr: true},
		{name: "non-digit timestamp string", node: NewNode(Timestamp, NodeOpts{}), value: "12a", expectErr: true},

		{name: "string", node: NewNode(String, NodeOpts{}), value: "vriska", expect: "vriska"},
		{name: "string not a string", node: NewNode(String, NodeOpts{}), value: 8, expectErr: true},
		{name: "string too long", node: NewNode(String, NodeOpts{Maximum: i64(4)}), value: "vriska", expectErr: true},
		{name: "string in options", node: NewNode(String, NodeOpts{Options: []string{"a", "b"}}), value: "b", expect: "b"},
		{name: "string not in options", node: NewNode(String, NodeOpts{Options: []string{"a", "b"}}), value: "c", expectErr: true},

		{name: "base64", node: NewNode(Base64, NodeOpts{}), value: "aGVsbG8=", expect: "aGVsbG8="},
		{name: "bad base64", node: NewNode(Base64, NodeOpts{}), value: "!!!", expectErr: true},

		{name: "uuid canonicalizes case", node: NewNode(UUID, NodeOpts{}), value: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", expect: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "bad uuid", node: NewNode(UUID, NodeOpts{}), value: "not-a-uuid", expectErr: true},

		{name: "md5 canonicalizes case", node: NewNode(MD5, NodeOpts{}), value: "D41D8CD98F00B204E9800998ECF8427E", expect: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "md5 wrong length", node: NewNode(MD5, NodeOpts{}), value: "d41d8c", expectErr: true},

		{name: "json map", node: NewNode(JSON, NodeOpts{}), value: map[string]any{"a": int64(1)}, expect: map[string]any{"a": int64(1)}},
		{name: "json unencodable", node: NewNode(JSON, NodeOpts{}), value: math.NaN(), expectErr: true},

		{name: "ip", node: NewNode(IP, NodeOpts{}), value: "192.168.0.1", expect: "192.168.0.1"},
		{name: "bad ip", node: NewNode(IP, NodeOpts{}), value: "999.1.1.1", expectErr: true},

		{
			name:   "array cleans elements",
			node:   NewNode(Array, NodeOpts{Elem: NewNode(Int, NodeOpts{})}),
			value:  []any{1, "2", int64(3)},
			expect: []any{int64(1), int64(2), int64(3)},
		},
		{
			name:   "array of strings coerced to list",
			node:   NewNode(Array, NodeOpts{Elem: NewNode(String, NodeOpts{})}),
			value:  []string{"a", "b"},
			expect: []any{"a", "b"},
		},
		{
			name:      "array element fails",
			node:      NewNode(Array, NodeOpts{Elem: NewNode(Int, NodeOpts{})}),
			value:     []any{1, "two"},
			expectErr: true,
		},
		{
			name:      "array too long",
			node:      NewNode(Array, NodeOpts{Maximum: i64(1), Elem: NewNode(Int, NodeOpts{})}),
			value:     []any{1, 2},
			expectErr: true,
		},
		{
			name:      "array not a list",
			node:      NewNode(Array, NodeOpts{Elem: NewNode(Int, NodeOpts{})}),
			value:     "not a list",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := tc.node.Clean(tc.value)

			if tc.expectErr {
				assert.Error(err)
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_Node_Clean_Idempotent(t *testing.T) {
	assert := assert.New(t)

	n := NewNode(Price, NodeOpts{})

	once, err := n.Clean(9.5)
	if !assert.NoError(err) {
		return
	}
	twice, err := n.Clean(once)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(once, twice)
}
