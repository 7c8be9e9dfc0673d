package mysql

import (
	"errors"
	"testing"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int64) *int64 {
	return &v
}

func testStruct(t *testing.T, record map[string]any) *jelrec.Struct {
	t.Helper()

	if record == nil {
		record = map[string]any{}
	}
	if _, ok := record["db"]; !ok {
		record["db"] = "testdb"
	}

	tree, err := schema.New("widget", []schema.Field{
		{Name: "id", Node: schema.NewNode(schema.UInt, schema.NodeOpts{})},
		{Name: "label", Node: schema.NewNode(schema.String, schema.NodeOpts{Maximum: intPtr(32)})},
		{Name: "count", Node: schema.NewNode(schema.UInt, schema.NodeOpts{Optional: true})},
		{Name: "active", Node: schema.NewNode(schema.Bool, schema.NodeOpts{Optional: true})},
		{Name: "price", Node: schema.NewNode(schema.Price, schema.NodeOpts{Optional: true})},
		{Name: "seen", Node: schema.NewNode(schema.Timestamp, schema.NodeOpts{Optional: true})},
	}, map[string]map[string]any{"record": record})
	require.NoError(t, err)

	st, err := jelrec.NewStruct(tree)
	require.NoError(t, err)
	return st
}

func Test_processValue(t *testing.T) {
	st := testStruct(t, nil)

	testCases := []struct {
		name      string
		field     string
		value     any
		expect    string
		expectErr error
	}{
		{
			name:   "scalar equality",
			field:  "label",
			value:  "a",
			expect: "= 'a'",
		},
		{
			name:   "nil is a null check",
			field:  "count",
			value:  nil,
			expect: "IS NULL",
		},
		{
			name:   "list membership",
			field:  "count",
			value:  []any{int64(1), int64(2), int64(3)},
			expect: "IN (1,2,3)",
		},
		{
			name:   "between",
			field:  "count",
			value:  jelrec.Between(int64(5), int64(10)),
			expect: "BETWEEN 5 AND 10",
		},
		{
			name:   "lt",
			field:  "count",
			value:  jelrec.Lt(int64(5)),
			expect: "< 5",
		},
		{
			name:   "gte",
			field:  "label",
			value:  jelrec.Gte("m"),
			expect: ">= 'm'",
		},
		{
			name:   "neq scalar",
			field:  "label",
			value:  jelrec.Neq("a"),
			expect: "!= 'a'",
		},
		{
			name:   "neq nil",
			field:  "count",
			value:  jelrec.Neq(nil),
			expect: "IS NOT NULL",
		},
		{
			name:   "neq list",
			field:  "count",
			value:  jelrec.Neq([]any{int64(1), int64(2)}),
			expect: "NOT IN (1,2)",
		},
		{
			name:   "like",
			field:  "label",
			value:  jelrec.Like("jo%"),
			expect: "LIKE 'jo%'",
		},
		{
			name:   "plain map treated as cond",
			field:  "count",
			value:  map[string]any{"gt": int64(2)},
			expect: "> 2",
		},
		{
			name:   "timestamp equality goes through from_unixtime",
			field:  "seen",
			value:  int64(1713024781),
			expect: "= FROM_UNIXTIME(1713024781)",
		},
		{
			name:      "unknown field",
			field:     "nope",
			value:     "x",
			expectErr: jelrec.ErrUnknownField,
		},
		{
			name:      "unknown marker",
			field:     "count",
			value:     map[string]any{"equals": int64(1)},
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

			actual, err := processValue(mysqlDialect{}, st, tc.field, tc.value)

			if tc.expectErr != nil {
				assert.True(errors.Is(err, tc.expectErr))
				return
			}
			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_processValue_RevisionField(t *testing.T) {
	assert := assert.New(t)

	st := testStruct(t, map[string]any{"revisions": true})

	// the revision field is not in the tree but still filterable
	actual, err := processValue(mysqlDialect{}, st, st.RevField, "1-abc")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("= '1-abc'", actual)
}

func Test_buildWhere(t *testing.T) {
	assert := assert.New(t)
	st := testStruct(t, nil)

	where, err := buildWhere(mysqlDialect{}, st, nil)
	require.NoError(t, err)
	assert.Equal("", where)

	// fields render in sorted order so statements are deterministic
	where, err = buildWhere(mysqlDialect{}, st, jelrec.Filter{
		"label": jelrec.Like("a%"),
		"count": jelrec.Gt(int64(2)),
	})
	require.NoError(t, err)
	assert.Equal(" WHERE `count` > 2 AND `label` LIKE 'a%'", where)
}

func Test_buildOrder(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", buildOrder(nil))
	assert.Equal(" ORDER BY `label` ASC", buildOrder([]jelrec.Order{{Field: "label"}}))
	assert.Equal(
		" ORDER BY `count` DESC, `label` ASC",
		buildOrder([]jelrec.Order{{Field: "count", Desc: true}, {Field: "label"}}),
	)
}

func Test_buildLimit(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", buildLimit(nil))
	assert.Equal(" LIMIT 10", buildLimit(&jelrec.Limit{Count: 10}))
	assert.Equal(" LIMIT 20, 10", buildLimit(&jelrec.Limit{Offset: 20, Count: 10}))
}

func Test_buildColumns(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("*", buildColumns(nil))
	assert.Equal("`id`,`label`", buildColumns([]string{"id", "label"}))
}

func Test_escape(t *testing.T) {
	testCases := []struct {
		name   string
		d      dialect
		t      schema.Type
		value  any
		expect string
	}{
		{name: "nil", d: mysqlDialect{}, t: schema.String, value: nil, expect: "NULL"},
		{name: "literal passes through", d: mysqlDialect{}, t: schema.String, value: Literal("CURRENT_TIMESTAMP"), expect: "CURRENT_TIMESTAMP"},
		{name: "bool true", d: mysqlDialect{}, t: schema.Bool, value: true, expect: "1"},
		{name: "bool false", d: mysqlDialect{}, t: schema.Bool, value: false, expect: "0"},
		{name: "bool from string", d: mysqlDialect{}, t: schema.Bool, value: "true", expect: "1"},
		{name: "int", d: mysqlDialect{}, t: schema.Int, value: int64(-4), expect: "-4"},
		{name: "float", d: mysqlDialect{}, t: schema.Float, value: 2.5, expect: "2.5"},
		{name: "price string", d: mysqlDialect{}, t: schema.Price, value: "9.99", expect: "9.99"},
		{name: "uuid quoted", d: mysqlDialect{}, t: schema.UUID, value: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", expect: "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{name: "timestamp mysql", d: mysqlDialect{}, t: schema.Timestamp, value: int64(100), expect: "FROM_UNIXTIME(100)"},
		{name: "timestamp sqlite", d: sqliteDialect{}, t: schema.Timestamp, value: int64(100), expect: "datetime(100, 'unixepoch')"},
		{name: "string quoting mysql", d: mysqlDialect{}, t: schema.String, value: `it's "big"`, expect: `'it\'s \"big\"'`},
		{name: "string quoting sqlite", d: sqliteDialect{}, t: schema.String, value: "it's", expect: "'it''s'"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := escape(tc.d, tc.t, tc.value)

			if !assert.NoError(err) {
				return
			}
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_escape_RejectsNonNumeric(t *testing.T) {
	assert := assert.New(t)

	_, err := escape(mysqlDialect{}, schema.Price, "nine")
	assert.True(errors.Is(err, jelrec.ErrBadArgument))
}
