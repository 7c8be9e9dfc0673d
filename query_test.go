package jelrec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_CondMarker(t *testing.T) {
	testCases := []struct {
		name         string
		cond         Cond
		expectMarker string
		expectValue  any
		expectOK     bool
	}{
		{
			name:         "between",
			cond:         Between(int64(1), int64(10)),
			expectMarker: "between",
			expectValue:  []any{int64(1), int64(10)},
			expectOK:     true,
		},
		{
			name:         "lt",
			cond:         Lt(int64(5)),
			expectMarker: "lt",
			expectValue:  int64(5),
			expectOK:     true,
		},
		{
			name:         "gte",
			cond:         Gte("m"),
			expectMarker: "gte",
			expectValue:  "m",
			expectOK:     true,
		},
		{
			name:         "neq with nil",
			cond:         Neq(nil),
			expectMarker: "neq",
			expectValue:  nil,
			expectOK:     true,
		},
		{
			name:         "like",
			cond:         Like("deka%"),
			expectMarker: "like",
			expectValue:  "deka%",
			expectOK:     true,
		},
		{
			name:         "between wins over like when both present",
			cond:         Cond{"like": "x%", "between": []any{int64(1), int64(2)}},
			expectMarker: "between",
			expectValue:  []any{int64(1), int64(2)},
			expectOK:     true,
		},
		{
			name:     "no recognized marker",
			cond:     Cond{"equals": int64(1)},
			expectOK: false,
		},
		{
			name:     "empty",
			cond:     Cond{},
			expectOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			marker, value, ok := CondMarker(tc.cond)

			assert.Equal(tc.expectOK, ok)
			if !tc.expectOK {
				return
			}
			assert.Equal(tc.expectMarker, marker)
			assert.Equal(tc.expectValue, value)
		})
	}
}

func Test_Conflict(t *testing.T) {
	assert := assert.New(t)

	assert.True(ConflictError().IsError())
	assert.True(ConflictIgnore().IsIgnore())
	assert.True(ConflictReplace().IsReplace())

	var zero Conflict
	assert.True(zero.IsError(), "zero value must surface conflicts as errors")

	upd := ConflictUpdate("name", "email")
	assert.False(upd.IsError())
	assert.False(upd.IsIgnore())
	assert.False(upd.IsReplace())
	assert.Equal([]string{"name", "email"}, upd.UpdateFields())
}
