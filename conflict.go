package jelrec

import "strings"

type conflictMode int

const (
	conflictError conflictMode = iota
	conflictIgnore
	conflictReplace
	conflictUpdate
)

// Conflict selects the behavior of an insert when it collides with an
// existing record on the primary key or a unique index. The zero value is
// ConflictError, which surfaces the collision as ErrDuplicateKey.
type Conflict struct {
	mode   conflictMode
	fields []string
}

// ConflictError surfaces duplicate-key collisions as errors. This is the
// default.
func ConflictError() Conflict {
	return Conflict{mode: conflictError}
}

// ConflictIgnore silently skips inserts that collide.
func ConflictIgnore() Conflict {
	return Conflict{mode: conflictIgnore}
}

// ConflictReplace replaces every stored field of the colliding record with
// the inserted values.
func ConflictReplace() Conflict {
	return Conflict{mode: conflictReplace}
}

// ConflictUpdate updates only the named fields of the colliding record with
// the inserted values.
func ConflictUpdate(fields ...string) Conflict {
	return Conflict{mode: conflictUpdate, fields: fields}
}

// IsError returns whether the conflict policy surfaces collisions as errors.
func (c Conflict) IsError() bool { return c.mode == conflictError }

// IsIgnore returns whether the conflict policy skips colliding inserts.
func (c Conflict) IsIgnore() bool { return c.mode == conflictIgnore }

// IsReplace returns whether the conflict policy replaces colliding records.
func (c Conflict) IsReplace() bool { return c.mode == conflictReplace }

// UpdateFields returns the fields updated on collision, or nil if the policy
// is not ConflictUpdate.
func (c Conflict) UpdateFields() []string {
	if c.mode != conflictUpdate {
		return nil
	}
	return c.fields
}

func (c Conflict) String() string {
	switch c.mode {
	case conflictIgnore:
		return "ignore"
	case conflictReplace:
		return "replace"
	case conflictUpdate:
		return "update(" + strings.Join(c.fields, ",") + ")"
	default:
		return "error"
	}
}
