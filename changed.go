package jelrec

import "github.com/dekarrin/jelrec/internal/sortby"

// Changed tracks the dirty state of a Record. It is either empty, a set of
// field names, or the whole-record "everything changed" flag; once the flag
// is raised, marking individual fields has no further effect.
//
// The zero value is an empty Changed ready for use.
type Changed struct {
	all    bool
	fields map[string]struct{}
}

// Mark records that the named field was mutated.
func (c *Changed) Mark(name string) {
	if c.all {
		return
	}
	if c.fields == nil {
		c.fields = map[string]struct{}{}
	}
	c.fields[name] = struct{}{}
}

// MarkAll raises the whole-record flag. Afterward every field reports as
// changed regardless of per-field marks.
func (c *Changed) MarkAll() {
	c.all = true
	c.fields = nil
}

// Clear resets the dirty state to empty.
func (c *Changed) Clear() {
	c.all = false
	c.fields = nil
}

// Any returns whether anything at all is dirty.
func (c *Changed) Any() bool {
	return c.all || len(c.fields) > 0
}

// All returns whether the whole-record flag is raised.
func (c *Changed) All() bool {
	return c.all
}

// Is returns whether the named field is dirty. When the whole-record flag is
// raised, every field is.
func (c *Changed) Is(name string) bool {
	if c.all {
		return true
	}
	_, ok := c.fields[name]
	return ok
}

// Fields returns the dirty field names sorted alphabetically. When the
// whole-record flag is raised it returns nil; use All to distinguish that
// case from an empty set.
func (c *Changed) Fields() []string {
	if c.all || len(c.fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	return sortby.Strings(names)
}
