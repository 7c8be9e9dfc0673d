package jelrec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func Test_GenerateDiff(t *testing.T) {
	testCases := []struct {
		name   string
		old    any
		new    any
		expect map[string]any
	}{
		{
			name:   "identical maps",
			old:    map[string]any{"a": int64(1)},
			new:    map[string]any{"a": int64(1)},
			expect: nil,
		},
		{
			name:   "both nil",
			old:    nil,
			new:    nil,
			expect: nil,
		},
		{
			name:   "scalar change",
			old:    "old-value",
			new:    "new-value",
			expect: map[string]any{"old": "old-value", "new": "new-value"},
		},
		{
			name: "one key of three changed",
			old:  map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)},
			new:  map[string]any{"a": int64(1), "b": int64(5), "c": int64(3)},
			expect: map[string]any{
				"b": map[string]any{"old": int64(2), "new": int64(5)},
			},
		},
		{
			name: "key added",
			old:  map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)},
			new:  map[string]any{"a": int64(1), "b": int64(2), "c": int64(3), "d": int64(4)},
			expect: map[string]any{
				"d": map[string]any{"old": nil, "new": int64(4)},
			},
		},
		{
			name: "key removed",
			old:  map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)},
			new:  map[string]any{"a": int64(1), "b": int64(2)},
			expect: map[string]any{
				"c": map[string]any{"old": int64(3), "new": nil},
			},
		},
		{
			name: "every key changed collapses to whole values",
			old:  map[string]any{"a": int64(1), "b": int64(2)},
			new:  map[string]any{"a": int64(3), "b": int64(4)},
			expect: map[string]any{
				"old": map[string]any{"a": int64(1), "b": int64(2)},
				"new": map[string]any{"a": int64(3), "b": int64(4)},
			},
		},
		{
			name: "single-key map always collapses",
			old:  map[string]any{"a": int64(1)},
			new:  map[string]any{"a": int64(2)},
			expect: map[string]any{
				"old": map[string]any{"a": int64(1)},
				"new": map[string]any{"a": int64(2)},
			},
		},
		{
			name: "nested map diffs recursively",
			old: map[string]any{
				"name": "deka",
				"addr": map[string]any{"city": "here", "zip": "11111", "state": "XX"},
			},
			new: map[string]any{
				"name": "deka",
				"addr": map[string]any{"city": "there", "zip": "11111", "state": "XX"},
			},
			expect: map[string]any{
				"addr": map[string]any{
					"city": map[string]any{"old": "here", "new": "there"},
				},
			},
		},
		{
			name: "slice element change keyed by index",
			old:  map[string]any{"tags": []any{"a", "b", "c"}, "name": "deka", "id": int64(1)},
			new:  map[string]any{"tags": []any{"a", "x", "c"}, "name": "deka", "id": int64(1)},
			expect: map[string]any{
				"tags": map[string]any{
					"1": map[string]any{"old": "b", "new": "x"},
				},
			},
		},
		{
			name: "slice grew",
			old:  map[string]any{"tags": []any{"a", "b", "c"}, "id": int64(1)},
			new:  map[string]any{"tags": []any{"a", "b", "c", "d"}, "id": int64(1)},
			expect: map[string]any{
				"tags": map[string]any{
					"3": map[string]any{"old": nil, "new": "d"},
				},
			},
		},
		{
			name: "type mismatch is a whole-value change",
			old:  map[string]any{"v": map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)}, "id": int64(1), "x": "y"},
			new:  map[string]any{"v": "scalar now", "id": int64(1), "x": "y"},
			expect: map[string]any{
				"v": map[string]any{
					"old": map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)},
					"new": "scalar now",
				},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual := GenerateDiff(tc.old, tc.new)

			if !assert.True(cmp.Equal(tc.expect, actual)) {
				t.Log(cmp.Diff(tc.expect, actual))
			}
		})
	}
}
