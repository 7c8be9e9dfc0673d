package jelrec

import (
	"context"
	"time"
)

// Change is one entry of a record type's change log.
type Change struct {
	// Key is the primary key of the record the change applies to.
	Key any

	// Created is when the change was recorded.
	Created time.Time

	// Items is the change payload. For created records it holds
	// {"old": nil, "new": "inserted"}, for deletions {"old": <record>,
	// "new": nil}, and for saves the diff of the changed fields, plus any
	// extra fields the record type requires.
	Items map[string]any
}

// Backend is a storage engine that record types can be bound to. Each
// method receives the Struct of the record type it operates on; backends do
// not retain per-type state beyond connections.
//
// Backends store and return field values in the canonical forms produced by
// schema cleaning. Select and ReadField return what is stored; the record
// layer does not re-clean read values.
type Backend interface {
	// Insert stores one record and returns its primary key. When the
	// Struct's primary key is auto-generated, values will not contain it
	// and the returned key is the generated one; otherwise the returned
	// key is values[st.Primary]. conflict selects the duplicate-key
	// behavior. Insert returns ErrDuplicateKey on a duplicate under
	// ConflictError.
	Insert(ctx context.Context, st *Struct, values map[string]any, conflict Conflict) (any, error)

	// InsertMany stores the given records in order and returns their
	// primary keys. It fails on the first error; earlier inserts are not
	// rolled back.
	InsertMany(ctx context.Context, st *Struct, values []map[string]any, conflict Conflict) ([]any, error)

	// Update sets the given fields on the record with the given primary
	// key and returns the number of records updated (0 or 1).
	Update(ctx context.Context, st *Struct, key any, values map[string]any) (int64, error)

	// DeleteOne removes the record with the given primary key and returns
	// the number of records removed (0 or 1).
	DeleteOne(ctx context.Context, st *Struct, key any) (int64, error)

	// Select returns the records matching q, honoring its field
	// projection, ordering, and limit. A nil filter matches everything.
	Select(ctx context.Context, st *Struct, q Query) ([]map[string]any, error)

	// Count returns the number of records matching the filter. A nil
	// filter counts everything.
	Count(ctx context.Context, st *Struct, filter Filter) (int64, error)

	// DeleteMany removes every record matching the filter and returns the
	// number removed. A nil filter removes everything.
	DeleteMany(ctx context.Context, st *Struct, filter Filter) (int64, error)

	// UpdateField sets one field on every record matching the filter and
	// returns the number of records updated.
	UpdateField(ctx context.Context, st *Struct, field string, value any, filter Filter) (int64, error)

	// ReadField returns the stored value of one field of the record with
	// the given primary key. The bool is false when no such record exists.
	ReadField(ctx context.Context, st *Struct, key any, field string) (any, bool, error)

	// ArrayAppend appends value to the named array field of the record
	// with the given primary key. Backends without native array storage
	// return ErrUnsupported.
	ArrayAppend(ctx context.Context, st *Struct, key any, field string, value any) error

	// ArrayRemove removes every occurrence of value from the named array
	// field. Backends without native array storage return ErrUnsupported.
	ArrayRemove(ctx context.Context, st *Struct, key any, field string, value any) error

	// ArrayContains reports whether the named array field of the record
	// with the given primary key contains value. Backends without native
	// array storage return ErrUnsupported.
	ArrayContains(ctx context.Context, st *Struct, key any, field string, value any) (bool, error)

	// TableCreate creates the record type's table, its indexes, and its
	// change-log sibling when changes are enabled. ifNotExists suppresses
	// the already-exists error.
	TableCreate(ctx context.Context, st *Struct, ifNotExists bool) error

	// TableDrop removes the record type's table and its change-log
	// sibling.
	TableDrop(ctx context.Context, st *Struct) error

	// AddChange appends one entry to the record type's change log.
	AddChange(ctx context.Context, st *Struct, key any, items map[string]any) error

	// GetChanges returns the change-log entries for the record with the
	// given primary key, oldest first. orderDesc reverses the order.
	GetChanges(ctx context.Context, st *Struct, key any, orderDesc bool) ([]Change, error)

	// GenerateUUID returns a new UUID from the storage engine.
	GenerateUUID(ctx context.Context) (string, error)

	// DBCreate creates the named database. Backends without a database
	// concept treat it as a no-op.
	DBCreate(ctx context.Context, name string) error

	// DBDrop removes the named database and everything in it.
	DBDrop(ctx context.Context, name string) error

	// Close releases the backend's connections. The backend may not be
	// used afterward.
	Close() error
}
