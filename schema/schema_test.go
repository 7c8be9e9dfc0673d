package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseType(t *testing.T) {
	assert := assert.New(t)

	for typ, name := range typeNames {
		parsed, err := ParseType(name)
		if assert.NoError(err, name) {
			assert.Equal(typ, parsed, name)
		}
	}

	parsed, err := ParseType("STRING")
	if assert.NoError(err) {
		assert.Equal(String, parsed)
	}

	_, err = ParseType("varchar")
	assert.Error(err)
}

func Test_New(t *testing.T) {
	assert := assert.New(t)

	n := NewNode(String, NodeOpts{})

	_, err := New("", []Field{{Name: "a", Node: n}}, nil)
	assert.Error(err, "empty name")

	_, err = New("user", nil, nil)
	assert.Error(err, "no fields")

	_, err = New("user", []Field{{Name: "", Node: n}}, nil)
	assert.Error(err, "empty field name")

	_, err = New("user", []Field{{Name: "a", Node: n}, {Name: "a", Node: n}}, nil)
	assert.Error(err, "duplicate field")

	_, err = New("user", []Field{{Name: "a", Node: nil}}, nil)
	assert.Error(err, "nil node")
}

func Test_Tree_Accessors(t *testing.T) {
	assert := assert.New(t)

	tree, err := New("user", []Field{
		{Name: "id", Node: NewNode(UInt, NodeOpts{})},
		{Name: "name", Node: NewNode(String, NodeOpts{})},
	}, map[string]map[string]any{"record": {"db": "testdata"}})
	require.NoError(t, err)

	assert.Equal("user", tree.Name())
	assert.Equal([]string{"id", "name"}, tree.Keys())
	assert.True(tree.Has("name"))
	assert.False(tree.Has("email"))

	n, ok := tree.Node("id")
	if assert.True(ok) {
		assert.Equal(UInt, n.Type())
	}
	_, ok = tree.Node("email")
	assert.False(ok)

	assert.Equal(map[string]any{"db": "testdata"}, tree.Special("record"))
	assert.Nil(tree.Special("sql"))
}

func Test_Tree_Validate(t *testing.T) {
	max := int64(8)
	tree, err := New("user", []Field{
		{Name: "id", Node: NewNode(UInt, NodeOpts{})},
		{Name: "name", Node: NewNode(String, NodeOpts{Maximum: &max})},
		{Name: "email", Node: NewNode(String, NodeOpts{Optional: true})},
		{Name: "tags", Node: NewNode(Array, NodeOpts{Optional: true, Elem: NewNode(String, NodeOpts{Maximum: &max})})},
	}, nil)
	require.NoError(t, err)

	testCases := []struct {
		name        string
		values      map[string]any
		expectPaths []string
	}{
		{
			name:   "all fields valid",
			values: map[string]any{"id": int64(1), "name": "nepeta", "email": "ac@example.com"},
		},
		{
			name:   "optional fields absent",
			values: map[string]any{"id": int64(1), "name": "nepeta"},
		},
		{
			name:        "unknown field",
			values:      map[string]any{"id": int64(1), "name": "nepeta", "lusus": "pounce"},
			expectPaths: []string{"lusus"},
		},
		{
			name:        "missing required field",
			values:      map[string]any{"id": int64(1)},
			expectPaths: []string{"name"},
		},
		{
			name:        "nil required field",
			values:      map[string]any{"id": int64(1), "name": nil},
			expectPaths: []string{"name"},
		},
		{
			name:        "bad value",
			values:      map[string]any{"id": int64(1), "name": "way too long a name"},
			expectPaths: []string{"name"},
		},
		{
			name:        "array element failure carries index path",
			values:      map[string]any{"id": int64(1), "name": "nepeta", "tags": []any{"ok", "way too long a tag"}},
			expectPaths: []string{"tags.1"},
		},
		{
			name:        "multiple failures",
			values:      map[string]any{"name": "way too long a name", "lusus": "pounce"},
			expectPaths: []string{"lusus", "id", "name"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			fails := tree.Validate(tc.values)

			if len(tc.expectPaths) == 0 {
				assert.Nil(fails)
				return
			}
			paths := make([]string, len(fails))
			for i, f := range fails {
				paths[i] = f.Path
			}
			assert.ElementsMatch(tc.expectPaths, paths)
		})
	}
}

func Test_Tree_Clean(t *testing.T) {
	assert := assert.New(t)

	tree, err := New("user", []Field{
		{Name: "id", Node: NewNode(UInt, NodeOpts{})},
		{Name: "age", Node: NewNode(UInt, NodeOpts{Optional: true})},
	}, nil)
	require.NoError(t, err)

	in := map[string]any{"id": "12", "age": 24}
	out, fails := tree.Clean(in)

	assert.Nil(fails)
	assert.Equal(map[string]any{"id": int64(12), "age": int64(24)}, out)

	// input is untouched
	assert.Equal(map[string]any{"id": "12", "age": 24}, in)

	_, fails = tree.Clean(map[string]any{"id": "twelve"})
	assert.NotEmpty(fails)
}
