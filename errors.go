package jelrec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dekarrin/jelrec/schema"
)

var (
	ErrDB                = errors.New("an error occured with the DB")
	ErrNotFound          = errors.New("the requested record could not be found")
	ErrValidation        = errors.New("record data does not validate against its schema")
	ErrUnknownField      = errors.New("no field with that name exists in the schema")
	ErrKeyNotFound       = errors.New("no field with that name exists in the record")
	ErrMissingPrimaryKey = errors.New("record has no primary key; it was never stored or was deleted")
	ErrDuplicateKey      = errors.New("a uniqueness constraint was violated")
	ErrQuery             = errors.New("the backend rejected the statement")
	ErrConnection        = errors.New("could not reach the backend after all retries")
	ErrRevisionConflict  = errors.New("the stored record revision does not match; reload before saving")
	ErrUnsupported       = errors.New("operation is not supported by this backend")
	ErrBadArgument       = errors.New("one or more of the arguments is invalid")
)

// Error is a typed error returned by jelrec functions as their error value. It
// contains both a message explaining what happened as well as one or more
// error values it considers to be its causes. Error is compatible with the use
// of errors.Is() - calling errors.Is on some Error value err along with any
// value of error it holds as one of its causes will return true. This allows
// for easy examination and failure condition checking without needing to
// resort to manual typecasting.
//
// If Error has at least one cause defined, the result of calling Error.Error()
// will be its primary message with the result of calling Error() on its first
// cause appended to it.
//
// Error should not be used directly; call NewError to create one.
type Error struct {
	msg   string
	cause []error
}

// Error returns the message defined for the Error. If a message was defined
// for it when created, that message is returned, concatenated with the result
// of calling Error() on its first cause if one is defined. If no message or an
// empty message was defined for it when created, but there is at least one
// cause defined for it, the result of calling Error() on the first cause is
// returned. If no message is defined and no causes are defined, returns the
// empty string.
func (e Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause[0].Error()
	}

	if e.cause != nil {
		return e.msg + ": " + e.cause[0].Error()
	}

	return e.msg
}

// Unwrap returns the causes of Error. The return value will be nil if no
// causes were defined for it.
//
// This function is for interaction with the errors API.
func (e Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// Is returns whether Error either Is itself the given target error, or one of
// its causes is.
//
// This function is for interaction with the errors API.
func (e Error) Is(target error) bool {
	if errTarget, ok := target.(Error); ok {
		if e.msg == errTarget.msg {
			if len(e.cause) == len(errTarget.cause) {
				allCausesEqual := true
				for i := range e.cause {
					if e.cause[i] != errTarget.cause[i] {
						allCausesEqual = false
						break
					}
				}
				if allCausesEqual {
					return true
				}
			}
		}
	}

	for i := range e.cause {
		// we must check if any are of type Error, because if they are, we need
		// to run the normal Is.
		if sErr, ok := e.cause[i].(Error); ok {
			if sErr.Is(target) {
				return true
			}
		} else if e.cause[i] == target {
			return true
		}
	}
	return false
}

// NewError creates a new Error with the given message, along with any errors
// it should wrap as its causes. Providing cause errors is not required, but
// will cause it to return true when it is checked against that error via a
// call to errors.Is.
func NewError(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

// WrapDBError creates a new Error that wraps the given error as a cause and
// automatically adds ErrDB as another cause. A user-set message may be
// provided if desired with msg, but it may be left as "".
func WrapDBError(err error, msg ...any) Error {
	var errMsg string
	if len(msg) > 0 {
		errMsg = fmt.Sprint(msg...)
	}

	return Error{
		msg:   errMsg,
		cause: []error{err, ErrDB},
	}
}

// WrapDBErrorf creates a new Error that wraps the given error as a cause and
// automatically adds ErrDB as another cause, with a message created by
// calling fmt.Sprintf on format and a.
func WrapDBErrorf(err error, format string, a ...any) Error {
	return Error{
		msg:   fmt.Sprintf(format, a...),
		cause: []error{err, ErrDB},
	}
}

// NewValidationError creates an Error carrying ErrValidation as a cause and
// listing every failing field path in its message.
func NewValidationError(failures []schema.Failure) Error {
	strs := make([]string, len(failures))
	for i := range failures {
		strs[i] = failures[i].String()
	}

	return NewError("validation failed: "+strings.Join(strs, "; "), ErrValidation)
}
