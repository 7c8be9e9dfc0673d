package surreal

import (
	"errors"
	"testing"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStruct(t *testing.T) *jelrec.Struct {
	t.Helper()

	max := int64(32)
	tree, err := schema.New("widget", []schema.Field{
		{Name: "id", Node: schema.NewNode(schema.UInt, schema.NodeOpts{})},
		{Name: "label", Node: schema.NewNode(schema.String, schema.NodeOpts{Maximum: &max})},
	}, map[string]map[string]any{"record": {"db": "testdb"}})
	require.NoError(t, err)

	st, err := jelrec.NewStruct(tree)
	require.NoError(t, err)
	return st
}

func Test_vars_bind(t *testing.T) {
	assert := assert.New(t)

	v := vars{}
	assert.Equal("$p0", v.bind("a"))
	assert.Equal("$p1", v.bind(int64(2)))
	assert.Equal(vars{"p0": "a", "p1": int64(2)}, v)
}

func Test_thing(t *testing.T) {
	assert := assert.New(t)
	st := testStruct(t)

	assert.Equal("widget:`1`", thing(st, int64(1)))
	assert.Equal("widget:`abc-123`", thing(st, "abc-123"))
}

func Test_keyFromThing(t *testing.T) {
	testCases := []struct {
		name   string
		id     any
		expect any
	}{
		{name: "backtick quoted", id: "widget:`abc`", expect: "abc"},
		{name: "angle quoted", id: "widget:⟨550e8400⟩", expect: "550e8400"},
		{name: "bare key after table", id: "widget:12", expect: "12"},
		{name: "no table prefix", id: "plain", expect: "plain"},
		{name: "not a string", id: int64(5), expect: int64(5)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tc.expect, keyFromThing(tc.id))
		})
	}
}

func Test_likeToRegex(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		expect  string
	}{
		{name: "prefix", pattern: "jo%", expect: "^jo.*$"},
		{name: "suffix", pattern: "%son", expect: "^.*son$"},
		{name: "contains", pattern: "%ar%", expect: "^.*ar.*$"},
		{name: "no wildcard", pattern: "karkat", expect: "^karkat$"},
		{name: "regex metachars quoted", pattern: "a.c%", expect: `^a\.c.*$`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tc.expect, likeToRegex(tc.pattern))
		})
	}
}

func Test_condTerm(t *testing.T) {
	testCases := []struct {
		name       string
		field      string
		value      any
		expect     string
		expectVars vars
		expectErr  error
	}{
		{
			name:       "scalar equality",
			field:      "label",
			value:      "a",
			expect:     "label = $p0",
			expectVars: vars{"p0": "a"},
		},
		{
			name:       "nil matches none",
			field:      "label",
			value:      nil,
			expect:     "label = NONE",
			expectVars: vars{},
		},
		{
			name:       "list membership",
			field:      "count",
			value:      []any{int64(1), int64(2)},
			expect:     "count INSIDE $p0",
			expectVars: vars{"p0": []any{int64(1), int64(2)}},
		},
		{
			name:       "tuple with free position matches bound positions",
			field:      "coord",
			value:      []any{int64(4), nil, int64(9)},
			expect:     "(coord[0] = $p0 AND coord[2] = $p1)",
			expectVars: vars{"p0": int64(4), "p1": int64(9)},
		},
		{
			name:       "tuple with one bound position",
			field:      "coord",
			value:      []any{nil, int64(7)},
			expect:     "coord[1] = $p0",
			expectVars: vars{"p0": int64(7)},
		},
		{
			name:      "tuple with two free positions",
			field:     "coord",
			value:     []any{int64(4), nil, nil},
			expectErr: jelrec.ErrBadArgument,
		},
		{
			name:      "tuple with all positions free",
			field:     "coord",
			value:     []any{nil, nil},
			expectErr: jelrec.ErrBadArgument,
		},
		{
			name:       "between binds both bounds",
			field:      "count",
			value:      jelrec.Between(int64(5), int64(10)),
			expect:     "(count >= $p0 AND count <= $p1)",
			expectVars: vars{"p0": int64(5), "p1": int64(10)},
		},
		{
			name:       "lt",
			field:      "count",
			value:      jelrec.Lt(int64(5)),
			expect:     "count < $p0",
			expectVars: vars{"p0": int64(5)},
		},
		{
			name:       "gte",
			field:      "label",
			value:      jelrec.Gte("m"),
			expect:     "label >= $p0",
			expectVars: vars{"p0": "m"},
		},
		{
			name:       "neq nil",
			field:      "label",
			value:      jelrec.Neq(nil),
			expect:     "label != NONE",
			expectVars: vars{},
		},
		{
			name:       "neq list",
			field:      "count",
			value:      jelrec.Neq([]any{int64(1)}),
			expect:     "count NOT INSIDE $p0",
			expectVars: vars{"p0": []any{int64(1)}},
		},
		{
			name:       "neq scalar",
			field:      "label",
			value:      jelrec.Neq("a"),
			expect:     "label != $p0",
			expectVars: vars{"p0": "a"},
		},
		{
			name:       "like becomes an anchored regex match",
			field:      "label",
			value:      jelrec.Like("jo%"),
			expect:     "string::matches(label, $p0)",
			expectVars: vars{"p0": "^jo.*$"},
		},
		{
			name:       "plain map treated as cond",
			field:      "count",
			value:      map[string]any{"gt": int64(2)},
			expect:     "count > $p0",
			expectVars: vars{"p0": int64(2)},
		},
		{
			name:      "unknown marker",
			field:     "count",
			value:     jelrec.Cond{"equals": int64(1)},
			expectErr: jelrec.ErrBadArgument,
		},
		{
			name:      "like needs a string",
			field:     "label",
			value:     jelrec.Cond{"like": int64(1)},
			expectErr: jelrec.ErrBadArgument,
		},
		{
			name:      "malformed between",
			field:     "count",
			value:     jelrec.Cond{"between": []any{int64(1)}},
			expectErr: jelrec.ErrBadArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			v := vars{}
			actual, err := condTerm(tc.field, tc.value, v)

			if tc.expectErr != nil {
				assert.True(errors.Is(err, tc.expectErr))
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
			assert.Equal(tc.expectVars, v)
		})
	}
}

func Test_buildWhere(t *testing.T) {
	assert := assert.New(t)

	v := vars{}
	where, err := buildWhere(nil, v)
	require.NoError(t, err)
	assert.Equal("", where)
	assert.Empty(v)

	// fields render in sorted order, numbering vars as they bind
	v = vars{}
	where, err = buildWhere(jelrec.Filter{
		"label": jelrec.Like("a%"),
		"count": jelrec.Gt(int64(2)),
	}, v)
	require.NoError(t, err)
	assert.Equal(" WHERE count > $p0 AND string::matches(label, $p1)", where)
	assert.Equal(vars{"p0": int64(2), "p1": "^a.*$"}, v)
}

func Test_buildOrder(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", buildOrder(nil))
	assert.Equal(" ORDER BY label ASC", buildOrder([]jelrec.Order{{Field: "label"}}))
	assert.Equal(
		" ORDER BY count DESC, label ASC",
		buildOrder([]jelrec.Order{{Field: "count", Desc: true}, {Field: "label"}}),
	)
}

func Test_buildLimit(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", buildLimit(nil))
	assert.Equal(" LIMIT 10", buildLimit(&jelrec.Limit{Count: 10}))
	assert.Equal(" LIMIT 10 START 20", buildLimit(&jelrec.Limit{Offset: 20, Count: 10}))
}

func Test_buildColumns(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("*", buildColumns(nil))
	assert.Equal("id, label", buildColumns([]string{"id", "label"}))
}
