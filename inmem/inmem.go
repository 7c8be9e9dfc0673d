// Package inmem provides an in-memory record storage backend. It implements
// the full backend contract, including change logs and native array fields,
// so it doubles as the reference backend in tests and as real storage for
// programs that do not need an external engine.
//
// A Store is obtained with [Open], which loads previously persisted data when
// the given file exists. The data within can be saved to disk by calling
// [Store.Persist] at appropriate times; [Store.Close] persists and ends all
// operations. An in-memory-only Store is obtained by passing "" to Open or by
// creating a &Store{} manually.
package inmem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/logging"
	"github.com/google/uuid"
)

// Store is an in-memory record store. The zero value is ready for use. Store
// is safe for concurrent access.
type Store struct {
	// DataFile is the file on disk that the store will save state data to
	// when [Store.Persist] is called. It is set automatically when the Store
	// is created via [Open].
	//
	// If set to the empty string, calls to [Store.Persist] will have no
	// effect.
	DataFile string

	mtx    sync.Mutex
	closed bool
	log    logging.Logger

	// tables maps "db.table" to its rows, keyed by canonical primary key.
	tables map[string]map[string]map[string]any

	// seqs holds the next auto-generated integer key per table.
	seqs map[string]int64

	// changes holds the change-log rows per table, in insertion order.
	changes map[string][]changeRow
}

type changeRow struct {
	Key     string         `json:"key"`
	Created time.Time      `json:"created"`
	Items   map[string]any `json:"items"`
}

// Opener returns a host opener that opens the store persisted at dataFile,
// or a purely in-memory store when dataFile is "".
func Opener(dataFile string) jelrec.HostOpener {
	return func(log logging.Logger) (jelrec.Backend, error) {
		s, err := Open(dataFile)
		if err != nil {
			return nil, err
		}
		s.log = log
		return s, nil
	}
}

func (s *Store) init() {
	if s.tables == nil {
		s.tables = map[string]map[string]map[string]any{}
	}
	if s.seqs == nil {
		s.seqs = map[string]int64{}
	}
	if s.changes == nil {
		s.changes = map[string][]changeRow{}
	}
	if s.log == nil {
		s.log = logging.NoOpLogger{}
	}
}

func tableKey(st *jelrec.Struct) string {
	return st.DB + "." + st.Table
}

// keyString is the canonical string form a primary key is indexed under.
func keyString(key any) string {
	switch kv := key.(type) {
	case string:
		return kv
	case int64:
		return strconv.FormatInt(kv, 10)
	case int:
		return strconv.Itoa(kv)
	case float64:
		if kv == float64(int64(kv)) {
			return strconv.FormatInt(int64(kv), 10)
		}
		return strconv.FormatFloat(kv, 'g', -1, 64)
	default:
		return fmt.Sprint(key)
	}
}

// rows returns the row map of st's table, or an error when the table was
// never created.
func (s *Store) rows(st *jelrec.Struct) (map[string]map[string]any, error) {
	tbl, ok := s.tables[tableKey(st)]
	if !ok {
		return nil, jelrec.NewError(fmt.Sprintf("no table %s", tableKey(st)), jelrec.ErrQuery)
	}
	return tbl, nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return jelrec.NewError("operation called on closed *Store", jelrec.ErrConnection)
	}
	return nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// uniqueViolated returns the name of a unique index that writing row under
// key would violate, or "".
func (s *Store) uniqueViolated(st *jelrec.Struct, tbl map[string]map[string]any, key string, row map[string]any) string {
	for _, idx := range st.Indexes {
		if !idx.Unique {
			continue
		}
		for existingKey, existing := range tbl {
			if existingKey == key {
				continue
			}
			same := true
			for _, f := range idx.Fields {
				if !valuesEqual(existing[f], row[f]) {
					same = false
					break
				}
			}
			if same {
				return idx.Name
			}
		}
	}
	return ""
}

func (s *Store) generateKey(st *jelrec.Struct) any {
	if strings.Contains(strings.ToUpper(st.AutoPrimaryExpr), "UUID") {
		return uuid.NewString()
	}
	tk := tableKey(st)
	s.seqs[tk]++
	return s.seqs[tk]
}

func (s *Store) Insert(ctx context.Context, st *jelrec.Struct, values map[string]any, conflict jelrec.Conflict) (any, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return s.insertUnsafe(st, values, conflict)
}

func (s *Store) insertUnsafe(st *jelrec.Struct, values map[string]any, conflict jelrec.Conflict) (any, error) {
	tbl, err := s.rows(st)
	if err != nil {
		return nil, err
	}

	key, hasKey := values[st.Primary]
	if !hasKey || key == nil {
		if !st.AutoPrimary {
			return nil, jelrec.NewError("", jelrec.ErrMissingPrimaryKey)
		}
		key = s.generateKey(st)
	}
	ks := keyString(key)

	row := copyRow(values)
	row[st.Primary] = key

	_, exists := tbl[ks]
	if !exists {
		if idx := s.uniqueViolated(st, tbl, ks, row); idx != "" {
			exists = true
		}
	}

	if exists {
		switch {
		case conflict.IsIgnore():
			return nil, nil
		case conflict.IsReplace():
			// fall through to plain write
		case conflict.UpdateFields() != nil:
			cur, ok := tbl[ks]
			if !ok {
				// collided on a unique index, not the key; replace is the
				// closest sensible behavior there
				break
			}
			upd := copyRow(cur)
			for _, f := range conflict.UpdateFields() {
				if v, ok := row[f]; ok {
					upd[f] = v
				}
			}
			tbl[ks] = upd
			return key, nil
		default:
			return nil, jelrec.NewError(fmt.Sprintf("%s %v already exists", st.Table, key), jelrec.ErrDuplicateKey)
		}
	}

	tbl[ks] = row
	return key, nil
}

func (s *Store) InsertMany(ctx context.Context, st *jelrec.Struct, values []map[string]any, conflict jelrec.Conflict) ([]any, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	keys := make([]any, 0, len(values))
	for i, v := range values {
		key, err := s.insertUnsafe(st, v, conflict)
		if err != nil {
			return keys, jelrec.NewError(fmt.Sprintf("record %d", i), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) Update(ctx context.Context, st *jelrec.Struct, key any, values map[string]any) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return 0, err
	}

	ks := keyString(key)
	cur, ok := tbl[ks]
	if !ok {
		return 0, nil
	}

	upd := copyRow(cur)
	for f, v := range values {
		if v == nil {
			delete(upd, f)
			continue
		}
		upd[f] = v
	}

	if idx := s.uniqueViolated(st, tbl, ks, upd); idx != "" {
		return 0, jelrec.NewError(fmt.Sprintf("unique index %q", idx), jelrec.ErrDuplicateKey)
	}

	tbl[ks] = upd
	return 1, nil
}

func (s *Store) DeleteOne(ctx context.Context, st *jelrec.Struct, key any) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return 0, err
	}

	ks := keyString(key)
	if _, ok := tbl[ks]; !ok {
		return 0, nil
	}
	delete(tbl, ks)
	return 1, nil
}

func (s *Store) Select(ctx context.Context, st *jelrec.Struct, q jelrec.Query) ([]map[string]any, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, row := range tbl {
		ok, err := matchRow(row, q.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, copyRow(row))
		}
	}

	orderRows(matched, q.OrderBy, st.Primary)

	if q.Limit != nil {
		start := q.Limit.Offset
		if start > len(matched) {
			start = len(matched)
		}
		end := len(matched)
		if q.Limit.Count > 0 && start+q.Limit.Count < end {
			end = start + q.Limit.Count
		}
		matched = matched[start:end]
	}

	if q.Fields != nil {
		for i, row := range matched {
			proj := make(map[string]any, len(q.Fields))
			for _, f := range q.Fields {
				if v, ok := row[f]; ok {
					proj[f] = v
				}
			}
			matched[i] = proj
		}
	}

	return matched, nil
}

func (s *Store) Count(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, row := range tbl {
		ok, err := matchRow(row, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteMany(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return 0, err
	}

	var n int64
	for ks, row := range tbl {
		ok, err := matchRow(row, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			delete(tbl, ks)
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateField(ctx context.Context, st *jelrec.Struct, field string, value any, filter jelrec.Filter) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return 0, err
	}

	var n int64
	for ks, row := range tbl {
		ok, err := matchRow(row, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		upd := copyRow(row)
		if value == nil {
			delete(upd, field)
		} else {
			upd[field] = value
		}
		tbl[ks] = upd
		n++
	}
	return n, nil
}

func (s *Store) ReadField(ctx context.Context, st *jelrec.Struct, key any, field string) (any, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return nil, false, err
	}

	row, ok := tbl[keyString(key)]
	if !ok {
		return nil, false, nil
	}
	return row[field], true, nil
}

func (s *Store) ArrayAppend(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return err
	}

	ks := keyString(key)
	row, ok := tbl[ks]
	if !ok {
		return jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}

	upd := copyRow(row)
	arr, _ := upd[field].([]any)
	upd[field] = append(append([]any{}, arr...), value)
	tbl[ks] = upd
	return nil
}

func (s *Store) ArrayRemove(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return err
	}

	ks := keyString(key)
	row, ok := tbl[ks]
	if !ok {
		return jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}

	upd := copyRow(row)
	arr, _ := upd[field].([]any)
	kept := make([]any, 0, len(arr))
	for _, item := range arr {
		if !valuesEqual(item, value) {
			kept = append(kept, item)
		}
	}
	upd[field] = kept
	tbl[ks] = upd
	return nil
}

func (s *Store) ArrayContains(ctx context.Context, st *jelrec.Struct, key any, field string, value any) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	tbl, err := s.rows(st)
	if err != nil {
		return false, err
	}

	row, ok := tbl[keyString(key)]
	if !ok {
		return false, jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}

	arr, _ := row[field].([]any)
	for _, item := range arr {
		if valuesEqual(item, value) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TableCreate(ctx context.Context, st *jelrec.Struct, ifNotExists bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tk := tableKey(st)
	if _, ok := s.tables[tk]; ok {
		if ifNotExists {
			return nil
		}
		return jelrec.NewError(fmt.Sprintf("table %s already exists", tk), jelrec.ErrDuplicateKey)
	}

	s.tables[tk] = map[string]map[string]any{}
	if st.Changes {
		s.changes[tk] = nil
	}
	s.log.Debugf("created table %s", tk)
	return nil
}

func (s *Store) TableDrop(ctx context.Context, st *jelrec.Struct) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tk := tableKey(st)
	delete(s.tables, tk)
	delete(s.changes, tk)
	delete(s.seqs, tk)
	return nil
}

func (s *Store) AddChange(ctx context.Context, st *jelrec.Struct, key any, items map[string]any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tk := tableKey(st)
	s.changes[tk] = append(s.changes[tk], changeRow{
		Key:     keyString(key),
		Created: time.Now().UTC(),
		Items:   items,
	})
	return nil
}

func (s *Store) GetChanges(ctx context.Context, st *jelrec.Struct, key any, orderDesc bool) ([]jelrec.Change, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ks := keyString(key)
	var out []jelrec.Change
	for _, cr := range s.changes[tableKey(st)] {
		if cr.Key != ks {
			continue
		}
		out = append(out, jelrec.Change{Key: cr.Key, Created: cr.Created, Items: cr.Items})
	}

	if orderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *Store) GenerateUUID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) DBCreate(ctx context.Context, name string) error {
	return nil
}

func (s *Store) DBDrop(ctx context.Context, name string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	if err := s.checkOpen(); err != nil {
		return err
	}

	prefix := name + "."
	for tk := range s.tables {
		if strings.HasPrefix(tk, prefix) {
			delete(s.tables, tk)
			delete(s.changes, tk)
			delete(s.seqs, tk)
		}
	}
	return nil
}

// Close persists any data to the DataFile, if one is set, and ends all
// operations on the Store.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil
	}
	s.init()

	err := s.persistUnsafe()
	s.closed = true
	return err
}
