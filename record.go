package jelrec

import (
	"context"
	"fmt"
	"reflect"
)

// Record is one record of a record type: a map of cleaned field values plus
// the dirty state tracking which of them were mutated since the last store
// operation. Records are produced by Table.New (unstored) and by the Table
// read operations (stored); they are not safe for concurrent use.
type Record struct {
	tbl    *Table
	fields map[string]any
	stored bool

	changed Changed

	// snapshot is the pre-mutation state of a stored record, captured on
	// first mutation when the record type logs changes. Save diffs against
	// it.
	snapshot map[string]any
}

// Table returns the Table the record belongs to.
func (r *Record) Table() *Table {
	return r.tbl
}

// Field returns the value of the named field and whether the record holds
// one.
func (r *Record) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Fields returns a copy of the record's field values.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// PrimaryKey returns the record's primary key, or nil if it has none.
func (r *Record) PrimaryKey() any {
	return r.fields[r.tbl.st.Primary]
}

// Revision returns the record's revision token, or "" when the record type
// does not track revisions or the record was never stored.
func (r *Record) Revision() Revision {
	s, _ := r.fields[r.tbl.st.RevField].(string)
	return Revision(s)
}

// IsChanged returns whether the named field is dirty.
func (r *Record) IsChanged(name string) bool {
	return r.changed.Is(name)
}

// ChangedFields returns the dirty field names sorted alphabetically, or nil
// when nothing is dirty or everything is.
func (r *Record) ChangedFields() []string {
	return r.changed.Fields()
}

// HasChanges returns whether any field is dirty.
func (r *Record) HasChanges() bool {
	return r.changed.Any()
}

// SetField cleans value against the field's node and stores it, marking the
// field dirty. Setting a value identical to the current one is a no-op and
// leaves the field clean. The revision field cannot be set directly, and the
// primary key cannot be re-set once the record is stored.
func (r *Record) SetField(name string, value any) error {
	if name == r.tbl.st.RevField {
		return NewError(fmt.Sprintf("field %q is managed by revision tracking", name), ErrBadArgument)
	}
	if name == r.tbl.st.Primary && r.stored {
		return NewError(fmt.Sprintf("field %q is the primary key of a stored record", name), ErrBadArgument)
	}
	n, ok := r.tbl.st.Tree.Node(name)
	if !ok {
		return NewError(fmt.Sprintf("field %q", name), ErrUnknownField)
	}

	if value != nil {
		cv, err := n.Clean(value)
		if err != nil {
			return NewError(fmt.Sprintf("field %q: %s", name, err.Error()), ErrValidation)
		}
		value = cv
	}

	if cur, ok := r.fields[name]; ok && reflect.DeepEqual(cur, value) {
		return nil
	}

	r.mutating()
	r.fields[name] = value
	r.changed.Mark(name)
	return nil
}

// DeleteField removes the named field from the record and marks the whole
// record dirty, so the next save writes every field rather than patching the
// removed one. It returns ErrKeyNotFound when the record does not hold the
// field.
func (r *Record) DeleteField(name string) error {
	if name == r.tbl.st.RevField {
		return NewError(fmt.Sprintf("field %q is managed by revision tracking", name), ErrBadArgument)
	}
	if name == r.tbl.st.Primary && r.stored {
		return NewError(fmt.Sprintf("field %q is the primary key of a stored record", name), ErrBadArgument)
	}
	if _, ok := r.fields[name]; !ok {
		return NewError(fmt.Sprintf("field %q", name), ErrKeyNotFound)
	}

	r.mutating()
	delete(r.fields, name)
	r.changed.MarkAll()
	return nil
}

// mutating captures the pre-mutation snapshot needed for change-log diffs.
func (r *Record) mutating() {
	if !r.tbl.st.Changes || !r.stored || r.snapshot != nil {
		return
	}
	r.snapshot = make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		r.snapshot[k] = v
	}
}

// CreateOpts adjusts record creation.
type CreateOpts struct {
	// Conflict selects the duplicate-key behavior. Zero value surfaces
	// collisions as ErrDuplicateKey.
	Conflict Conflict

	// Changes supplies the extra change-payload fields the record type
	// requires, if any.
	Changes map[string]any
}

// Create stores the record with default options. See CreateWith.
func (r *Record) Create(ctx context.Context) (bool, error) {
	return r.CreateWith(ctx, CreateOpts{})
}

// CreateWith validates the record's content and inserts it. On success the
// record holds its primary key (generated by the backend when the record
// type uses auto-generation) and its first revision token, its dirty state
// is cleared, and a creation entry is appended to the change log when the
// record type keeps one.
//
// The returned bool is false when a duplicate-key collision was ignored
// under ConflictIgnore; the record is then not stored.
func (r *Record) CreateWith(ctx context.Context, opts CreateOpts) (bool, error) {
	if r.stored {
		return false, NewError("record is already stored", ErrBadArgument)
	}

	st := r.tbl.st
	if st.Changes {
		if err := r.tbl.checkChangeExtras(opts.Changes); err != nil {
			return false, err
		}
	}
	if st.Revisions {
		r.fields[st.RevField] = string(firstRevision(r.fields, st.RevField, st.Primary))
	}

	values, err := r.insertValues()
	if err != nil {
		return false, err
	}

	b, err := r.tbl.backend()
	if err != nil {
		return false, err
	}

	key, err := b.Insert(ctx, st, values, opts.Conflict)
	if err != nil {
		return false, err
	}
	if key == nil {
		// collision skipped under ConflictIgnore
		return false, nil
	}

	r.fields[st.Primary] = key
	r.stored = true
	r.changed.Clear()
	r.snapshot = nil

	if st.Changes {
		items := map[string]any{"old": nil, "new": "inserted"}
		for k, v := range opts.Changes {
			items[k] = v
		}
		if err := b.AddChange(ctx, st, key, items); err != nil {
			return true, err
		}
	}

	return true, nil
}

// insertValues assembles the field values an insert stores: every held field
// except an auto-generated primary key.
func (r *Record) insertValues() (map[string]any, error) {
	st := r.tbl.st
	if err := r.validateContent(true); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		if st.AutoPrimary && k == st.Primary {
			continue
		}
		values[k] = v
	}
	return values, nil
}

// validateContent checks the record's fields against the tree. The revision
// field is exempt, and a missing primary key is acceptable when the backend
// generates it on insert.
func (r *Record) validateContent(forCreate bool) error {
	st := r.tbl.st

	check := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		if k == st.RevField {
			continue
		}
		check[k] = v
	}

	fails := st.Tree.Validate(check)
	if forCreate && st.AutoPrimary {
		kept := fails[:0]
		for _, f := range fails {
			if f.Path == st.Primary {
				if _, present := check[st.Primary]; !present {
					continue
				}
			}
			kept = append(kept, f)
		}
		fails = kept
	}

	if len(fails) > 0 {
		return NewValidationError(fails)
	}
	return nil
}

// SaveOpts adjusts record saving.
type SaveOpts struct {
	// Replace writes every field rather than only the dirty ones.
	Replace bool

	// Changes supplies the extra change-payload fields the record type
	// requires, if any.
	Changes map[string]any
}

// Save stores the record's dirty fields with default options. See SaveWith.
func (r *Record) Save(ctx context.Context) (bool, error) {
	return r.SaveWith(ctx, SaveOpts{})
}

// SaveWith writes the record's mutations back to storage. It returns false
// without touching storage when nothing is dirty, when revision hashing
// shows the content is semantically unchanged, or when the stored record no
// longer exists.
//
// For revision-tracked record types, SaveWith verifies the stored revision
// still matches the one this record was loaded with and returns
// ErrRevisionConflict when it does not; on success the record carries the
// incremented revision.
func (r *Record) SaveWith(ctx context.Context, opts SaveOpts) (bool, error) {
	st := r.tbl.st

	if !r.changed.Any() {
		return false, nil
	}
	key := r.fields[st.Primary]
	if key == nil {
		return false, NewError("", ErrMissingPrimaryKey)
	}
	if st.Changes {
		if err := r.tbl.checkChangeExtras(opts.Changes); err != nil {
			return false, err
		}
	}
	if err := r.validateContent(false); err != nil {
		return false, err
	}

	b, err := r.tbl.backend()
	if err != nil {
		return false, err
	}

	if st.Revisions {
		cur := r.Revision()
		next, contentChanged := nextRevision(cur, r.fields, st.RevField, st.Primary)
		if !contentChanged {
			r.changed.Clear()
			r.snapshot = nil
			return false, nil
		}

		storedRev, ok, err := b.ReadField(ctx, st, key, st.RevField)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, NewError(fmt.Sprintf("%s %v", st.Table, key), ErrNotFound)
		}
		if s, _ := storedRev.(string); s != string(cur) {
			return false, NewError(fmt.Sprintf("stored revision is %v, not %s", storedRev, cur), ErrRevisionConflict)
		}

		r.fields[st.RevField] = string(next)
		r.changed.Mark(st.RevField)
	}

	values := map[string]any{}
	if opts.Replace || r.changed.All() {
		// a full replace covers every schema field, writing nil for the
		// ones the record no longer holds
		for _, k := range st.Tree.Keys() {
			if k == st.Primary {
				continue
			}
			if v, ok := r.fields[k]; ok {
				values[k] = v
			} else {
				values[k] = nil
			}
		}
		if st.Revisions {
			values[st.RevField] = r.fields[st.RevField]
		}
	} else {
		for _, name := range r.changed.Fields() {
			if name == st.Primary {
				continue
			}
			if v, ok := r.fields[name]; ok {
				values[name] = v
			} else {
				values[name] = nil
			}
		}
	}

	n, err := b.Update(ctx, st, key, values)
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	var diff map[string]any
	if st.Changes {
		diff = GenerateDiff(r.snapshot, r.fields)
	}

	r.changed.Clear()
	r.snapshot = nil

	if st.Changes && diff != nil {
		items := diff
		for k, v := range opts.Changes {
			items[k] = v
		}
		if err := b.AddChange(ctx, st, key, items); err != nil {
			return true, err
		}
	}

	return true, nil
}

// DeleteOpts adjusts record deletion.
type DeleteOpts struct {
	// Changes supplies the extra change-payload fields the record type
	// requires, if any.
	Changes map[string]any
}

// Delete removes the record with default options. See DeleteWith.
func (r *Record) Delete(ctx context.Context) (bool, error) {
	return r.DeleteWith(ctx, DeleteOpts{})
}

// DeleteWith removes the record from storage. It returns false when the
// stored record no longer exists. On success the record loses its primary
// key and may be Created again; when the record type keeps a change log, a
// deletion entry holding the record's last content is appended first.
func (r *Record) DeleteWith(ctx context.Context, opts DeleteOpts) (bool, error) {
	st := r.tbl.st

	key := r.fields[st.Primary]
	if key == nil {
		return false, NewError("", ErrMissingPrimaryKey)
	}
	if st.Changes {
		if err := r.tbl.checkChangeExtras(opts.Changes); err != nil {
			return false, err
		}
	}

	b, err := r.tbl.backend()
	if err != nil {
		return false, err
	}

	n, err := b.DeleteOne(ctx, st, key)
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	if st.Changes {
		items := map[string]any{"old": r.Fields(), "new": nil}
		for k, v := range opts.Changes {
			items[k] = v
		}
		if err := b.AddChange(ctx, st, key, items); err != nil {
			return true, err
		}
	}

	delete(r.fields, st.Primary)
	r.stored = false
	r.changed.Clear()
	r.snapshot = nil

	return true, nil
}
