package jelrec

import (
	"context"
	"fmt"

	"github.com/dekarrin/jelrec/schema"
)

// Table binds a record type's Struct to the Registry holding its storage
// host. All bulk and keyed operations on the type go through its Table;
// per-record lifecycle operations go through the Records it produces.
//
// The Table resolves the registry's database-name prefix once, at
// construction; the Struct it carries is a prefix-qualified copy of the one
// given to NewTable.
type Table struct {
	reg *Registry
	st  *Struct
}

// NewTable binds st to the hosts and prefix of reg. The original Struct is
// not modified.
func NewTable(reg *Registry, st *Struct) *Table {
	resolved := *st
	resolved.DB = reg.DBName(st.DB)
	return &Table{reg: reg, st: &resolved}
}

// Struct returns the prefix-qualified Struct the table operates on.
func (t *Table) Struct() *Struct {
	return t.st
}

func (t *Table) backend() (Backend, error) {
	return t.reg.Backend(t.st.Host)
}

// New creates an unstored Record holding the given values. Each value is
// cleaned to its canonical form; unknown fields and uncleanable values fail
// with an Error carrying ErrValidation. Required fields may be absent at
// this point; Create checks completeness.
func (t *Table) New(values map[string]any) (*Record, error) {
	fields := make(map[string]any, len(values))
	for name, v := range values {
		n, ok := t.st.Tree.Node(name)
		if !ok {
			return nil, NewError(fmt.Sprintf("field %q", name), ErrUnknownField)
		}
		if v == nil {
			fields[name] = nil
			continue
		}
		cv, err := n.Clean(v)
		if err != nil {
			return nil, NewError(fmt.Sprintf("field %q: %s", name, err.Error()), ErrValidation)
		}
		fields[name] = cv
	}

	return &Record{tbl: t, fields: fields}, nil
}

// Get returns the record with the given primary key, or an Error carrying
// ErrNotFound if no such record exists.
func (t *Table) Get(ctx context.Context, key any) (*Record, error) {
	b, err := t.backend()
	if err != nil {
		return nil, err
	}

	rows, err := b.Select(ctx, t.st, Query{
		Filter: Filter{t.st.Primary: key},
		Limit:  &Limit{Count: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, NewError(fmt.Sprintf("%s %v", t.st.Table, key), ErrNotFound)
	}

	return t.stored(rows[0]), nil
}

// Filter returns every record matching q as full Records, in q's order. Any
// field projection in q is ignored; use Select for partial rows.
func (t *Table) Filter(ctx context.Context, q Query) ([]*Record, error) {
	b, err := t.backend()
	if err != nil {
		return nil, err
	}

	q.Fields = nil
	rows, err := b.Select(ctx, t.st, q)
	if err != nil {
		return nil, err
	}

	recs := make([]*Record, len(rows))
	for i := range rows {
		recs[i] = t.stored(rows[i])
	}
	return recs, nil
}

// FilterOne returns the first record matching the filter, or an Error
// carrying ErrNotFound if none does.
func (t *Table) FilterOne(ctx context.Context, filter Filter) (*Record, error) {
	recs, err := t.Filter(ctx, Query{Filter: filter, Limit: &Limit{Count: 1}})
	if err != nil {
		return nil, err
	}
	if len(recs) < 1 {
		return nil, NewError(t.st.Table, ErrNotFound)
	}
	return recs[0], nil
}

// Select returns the raw rows matching q, honoring its field projection.
func (t *Table) Select(ctx context.Context, q Query) ([]map[string]any, error) {
	b, err := t.backend()
	if err != nil {
		return nil, err
	}
	return b.Select(ctx, t.st, q)
}

// Count returns the number of records matching the filter. A nil filter
// counts every record.
func (t *Table) Count(ctx context.Context, filter Filter) (int64, error) {
	b, err := t.backend()
	if err != nil {
		return 0, err
	}
	return b.Count(ctx, t.st, filter)
}

// Exists returns whether a record with the given primary key exists.
func (t *Table) Exists(ctx context.Context, key any) (bool, error) {
	return t.ExistsBy(ctx, Filter{t.st.Primary: key})
}

// ExistsBy returns whether any record matches the filter.
func (t *Table) ExistsBy(ctx context.Context, filter Filter) (bool, error) {
	n, err := t.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateMany stores the given unstored records in one backend call and fills
// in their primary keys. All records must belong to this table. Change
// logging does not apply to bulk creation; CreateMany returns ErrUnsupported
// for record types with changes enabled.
func (t *Table) CreateMany(ctx context.Context, recs []*Record, conflict Conflict) error {
	if t.st.Changes {
		return NewError("bulk creation cannot record changes", ErrUnsupported)
	}

	b, err := t.backend()
	if err != nil {
		return err
	}

	values := make([]map[string]any, len(recs))
	for i, r := range recs {
		if r.tbl != t {
			return NewError("record does not belong to this table", ErrBadArgument)
		}
		if t.st.Revisions {
			r.fields[t.st.RevField] = string(firstRevision(r.fields, t.st.RevField, t.st.Primary))
		}
		v, err := r.insertValues()
		if err != nil {
			return err
		}
		values[i] = v
	}

	keys, err := b.InsertMany(ctx, t.st, values, conflict)
	if err != nil {
		return err
	}

	for i, r := range recs {
		if i < len(keys) && keys[i] != nil {
			r.fields[t.st.Primary] = keys[i]
			r.stored = true
		}
		r.changed.Clear()
		r.snapshot = nil
	}
	return nil
}

// DeleteMany removes every record matching the filter and returns how many
// were removed. A nil filter removes every record. Bulk deletion is not
// change-logged.
func (t *Table) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	b, err := t.backend()
	if err != nil {
		return 0, err
	}
	return b.DeleteMany(ctx, t.st, filter)
}

// UpdateField sets one field to the same cleaned value on every record
// matching the filter and returns how many records were updated. The
// primary-key and revision fields cannot be bulk-updated.
func (t *Table) UpdateField(ctx context.Context, field string, value any, filter Filter) (int64, error) {
	if field == t.st.Primary || field == t.st.RevField {
		return 0, NewError(fmt.Sprintf("field %q cannot be bulk-updated", field), ErrBadArgument)
	}
	n, ok := t.st.Tree.Node(field)
	if !ok {
		return 0, NewError(fmt.Sprintf("field %q", field), ErrUnknownField)
	}
	if value != nil {
		cv, err := n.Clean(value)
		if err != nil {
			return 0, NewError(fmt.Sprintf("field %q: %s", field, err.Error()), ErrValidation)
		}
		value = cv
	}

	b, err := t.backend()
	if err != nil {
		return 0, err
	}
	return b.UpdateField(ctx, t.st, field, value, filter)
}

// Append appends value to the named array field of the record with the given
// primary key. The value is cleaned against the array's element node.
// Backends without native array storage return ErrUnsupported.
func (t *Table) Append(ctx context.Context, key any, field string, value any) error {
	cv, err := t.cleanElem(field, value)
	if err != nil {
		return err
	}
	b, err := t.backend()
	if err != nil {
		return err
	}
	return b.ArrayAppend(ctx, t.st, key, field, cv)
}

// Remove removes every occurrence of value from the named array field of the
// record with the given primary key. Backends without native array storage
// return ErrUnsupported.
func (t *Table) Remove(ctx context.Context, key any, field string, value any) error {
	cv, err := t.cleanElem(field, value)
	if err != nil {
		return err
	}
	b, err := t.backend()
	if err != nil {
		return err
	}
	return b.ArrayRemove(ctx, t.st, key, field, cv)
}

// Contains reports whether the named array field of the record with the
// given primary key holds value. Backends without native array storage
// return ErrUnsupported.
func (t *Table) Contains(ctx context.Context, key any, field string, value any) (bool, error) {
	cv, err := t.cleanElem(field, value)
	if err != nil {
		return false, err
	}
	b, err := t.backend()
	if err != nil {
		return false, err
	}
	return b.ArrayContains(ctx, t.st, key, field, cv)
}

func (t *Table) cleanElem(field string, value any) (any, error) {
	n, ok := t.st.Tree.Node(field)
	if !ok {
		return nil, NewError(fmt.Sprintf("field %q", field), ErrUnknownField)
	}
	if n.Type() != schema.Array {
		return nil, NewError(fmt.Sprintf("field %q is not an array", field), ErrBadArgument)
	}
	elem := n.Elem()
	if elem == nil || value == nil {
		return value, nil
	}
	cv, err := elem.Clean(value)
	if err != nil {
		return nil, NewError(fmt.Sprintf("field %q: %s", field, err.Error()), ErrValidation)
	}
	return cv, nil
}

// TableCreate creates the record type's table, indexes, and change-log
// sibling on its host.
func (t *Table) TableCreate(ctx context.Context, ifNotExists bool) error {
	b, err := t.backend()
	if err != nil {
		return err
	}
	return b.TableCreate(ctx, t.st, ifNotExists)
}

// TableDrop removes the record type's table and change-log sibling from its
// host.
func (t *Table) TableDrop(ctx context.Context) error {
	b, err := t.backend()
	if err != nil {
		return err
	}
	return b.TableDrop(ctx, t.st)
}

// AddChange appends a manual entry to the record type's change log. Every
// extra payload field the record type requires must be present in items.
func (t *Table) AddChange(ctx context.Context, key any, items map[string]any) error {
	if !t.st.Changes {
		return NewError(fmt.Sprintf("%s does not record changes", t.st.Table), ErrUnsupported)
	}
	if err := t.checkChangeExtras(items); err != nil {
		return err
	}

	b, err := t.backend()
	if err != nil {
		return err
	}
	return b.AddChange(ctx, t.st, key, items)
}

// GetChanges returns the change-log entries of the record with the given
// primary key, oldest first, or newest first when orderDesc is set.
func (t *Table) GetChanges(ctx context.Context, key any, orderDesc bool) ([]Change, error) {
	if !t.st.Changes {
		return nil, NewError(fmt.Sprintf("%s does not record changes", t.st.Table), ErrUnsupported)
	}

	b, err := t.backend()
	if err != nil {
		return nil, err
	}
	return b.GetChanges(ctx, t.st, key, orderDesc)
}

// GenerateUUID returns a new UUID from the record type's storage host.
func (t *Table) GenerateUUID(ctx context.Context) (string, error) {
	b, err := t.backend()
	if err != nil {
		return "", err
	}
	return b.GenerateUUID(ctx)
}

// checkChangeExtras verifies that every extra change-payload field the record
// type requires is present in extras.
func (t *Table) checkChangeExtras(extras map[string]any) error {
	for _, f := range t.st.ChangesFields {
		if _, ok := extras[f]; !ok {
			return NewError(fmt.Sprintf("change payload is missing required field %q", f), ErrBadArgument)
		}
	}
	return nil
}

// stored wraps a backend row as a clean, stored Record.
func (t *Table) stored(row map[string]any) *Record {
	fields := make(map[string]any, len(row))
	for k, v := range row {
		fields[k] = v
	}
	return &Record{tbl: t, fields: fields, stored: true}
}
