package jelrec

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dekarrin/jelrec/schema"
	"github.com/stretchr/testify/assert"
)

func Test_Error_Is(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		target error
		expect bool
	}{
		{
			name:   "matches direct cause",
			err:    NewError("bad id", ErrNotFound),
			target: ErrNotFound,
			expect: true,
		},
		{
			name:   "matches second cause",
			err:    NewError("insert failed", ErrDuplicateKey, ErrDB),
			target: ErrDB,
			expect: true,
		},
		{
			name:   "matches nested cause",
			err:    NewError("outer", NewError("inner", ErrQuery)),
			target: ErrQuery,
			expect: true,
		},
		{
			name:   "does not match unrelated sentinel",
			err:    NewError("bad id", ErrNotFound),
			target: ErrValidation,
			expect: false,
		},
		{
			name:   "no causes matches nothing",
			err:    NewError("just a message"),
			target: ErrDB,
			expect: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, errors.Is(tc.err, tc.target))
		})
	}
}

func Test_Error_Error(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("just a message", NewError("just a message").Error())

	withCause := NewError("save failed", ErrRevisionConflict)
	assert.Equal("save failed: "+ErrRevisionConflict.Error(), withCause.Error())

	noMsg := NewError("", ErrNotFound)
	assert.Equal(ErrNotFound.Error(), noMsg.Error())
}

func Test_WrapDBError(t *testing.T) {
	assert := assert.New(t)

	cause := fmt.Errorf("socket closed")

	err := WrapDBError(cause)
	assert.True(errors.Is(err, ErrDB))
	assert.True(errors.Is(err, cause))

	err = WrapDBErrorf(cause, "querying %s", "users")
	assert.True(errors.Is(err, ErrDB))
	assert.Contains(err.Error(), "querying users")
}

func Test_NewValidationError(t *testing.T) {
	assert := assert.New(t)

	err := NewValidationError([]schema.Failure{
		{Path: "name", Detail: "missing required field"},
		{Path: "age", Detail: "negative value for uint field"},
	})

	assert.True(errors.Is(err, ErrValidation))
	assert.Contains(err.Error(), "name")
	assert.Contains(err.Error(), "age")
}
