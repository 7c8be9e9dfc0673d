package surreal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/internal/sortby"
	"github.com/google/uuid"
)

// cleanRows strips the engine's own id column from result rows. When the
// record type's primary field is literally "id" the bare key is kept there
// instead.
func cleanRows(st *jelrec.Struct, rows []map[string]any) []map[string]any {
	for _, row := range rows {
		if st.Primary == "id" {
			row["id"] = keyFromThing(row["id"])
		} else {
			delete(row, "id")
		}
	}
	return rows
}

func (s *Store) Insert(ctx context.Context, st *jelrec.Struct, values map[string]any, conflict jelrec.Conflict) (any, error) {
	data := make(map[string]any, len(values)+1)
	for k, v := range values {
		data[k] = v
	}

	key, hasKey := data[st.Primary]
	if !hasKey || key == nil {
		if !st.AutoPrimary {
			return nil, jelrec.NewError("", jelrec.ErrMissingPrimaryKey)
		}
		key = uuid.NewString()
		data[st.Primary] = key
	}

	v := vars{"data": data}
	sql := fmt.Sprintf("CREATE %s CONTENT $data", thing(st, key))
	_, err := s.query(ctx, st.DB, sql, v)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, jelrec.ErrDuplicateKey) {
		return nil, err
	}

	switch {
	case conflict.IsIgnore():
		return nil, nil
	case conflict.IsReplace():
		sql = fmt.Sprintf("UPDATE %s CONTENT $data", thing(st, key))
		if _, err := s.query(ctx, st.DB, sql, vars{"data": data}); err != nil {
			return nil, err
		}
		return key, nil
	case conflict.UpdateFields() != nil:
		subset := map[string]any{}
		for _, f := range conflict.UpdateFields() {
			if fv, ok := data[f]; ok {
				subset[f] = fv
			}
		}
		sql = fmt.Sprintf("UPDATE %s MERGE $data", thing(st, key))
		if _, err := s.query(ctx, st.DB, sql, vars{"data": subset}); err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, err
	}
}

func (s *Store) InsertMany(ctx context.Context, st *jelrec.Struct, values []map[string]any, conflict jelrec.Conflict) ([]any, error) {
	keys := make([]any, 0, len(values))
	for i, v := range values {
		key, err := s.Insert(ctx, st, v, conflict)
		if err != nil {
			return keys, jelrec.NewError(fmt.Sprintf("record %d", i), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// exists reports whether the record with the given key is present. UPDATE
// in SurrealQL creates missing records, so mutating operations check first.
func (s *Store) exists(ctx context.Context, st *jelrec.Struct, key any) (bool, error) {
	rows, err := s.query(ctx, st.DB, fmt.Sprintf("SELECT id FROM %s", thing(st, key)), nil)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *Store) Update(ctx context.Context, st *jelrec.Struct, key any, values map[string]any) (int64, error) {
	ok, err := s.exists(ctx, st, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	sql := fmt.Sprintf("UPDATE %s MERGE $data", thing(st, key))
	if _, err := s.query(ctx, st.DB, sql, vars{"data": values}); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) DeleteOne(ctx context.Context, st *jelrec.Struct, key any) (int64, error) {
	ok, err := s.exists(ctx, st, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	if _, err := s.query(ctx, st.DB, fmt.Sprintf("DELETE %s", thing(st, key)), nil); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) Select(ctx context.Context, st *jelrec.Struct, q jelrec.Query) ([]map[string]any, error) {
	v := vars{}
	where, err := buildWhere(q.Filter, v)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s%s",
		buildColumns(q.Fields),
		st.Table,
		where,
		buildOrder(q.OrderBy),
		buildLimit(q.Limit),
	)
	rows, err := s.query(ctx, st.DB, sql, v)
	if err != nil {
		return nil, err
	}
	return cleanRows(st, rows), nil
}

func (s *Store) Count(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	v := vars{}
	where, err := buildWhere(filter, v)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf("SELECT count() AS count FROM %s%s GROUP ALL", st.Table, where)
	rows, err := s.query(ctx, st.DB, sql, v)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asInt64(rows[0]["count"]), nil
}

func (s *Store) DeleteMany(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	n, err := s.Count(ctx, st, filter)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	v := vars{}
	where, err := buildWhere(filter, v)
	if err != nil {
		return 0, err
	}

	if _, err := s.query(ctx, st.DB, fmt.Sprintf("DELETE %s%s", st.Table, where), v); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) UpdateField(ctx context.Context, st *jelrec.Struct, field string, value any, filter jelrec.Filter) (int64, error) {
	v := vars{}
	where, err := buildWhere(filter, v)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s = %s%s", st.Table, field, v.bind(value), where)
	rows, err := s.query(ctx, st.DB, sql, v)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (s *Store) ReadField(ctx context.Context, st *jelrec.Struct, key any, field string) (any, bool, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s", field, thing(st, key))
	rows, err := s.query(ctx, st.DB, sql, nil)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0][field], true, nil
}

func (s *Store) ArrayAppend(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	ok, err := s.exists(ctx, st, key)
	if err != nil {
		return err
	}
	if !ok {
		return jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}

	v := vars{}
	sql := fmt.Sprintf("UPDATE %s SET %s = array::append(%s, %s)",
		thing(st, key), field, field, v.bind(value))
	_, err = s.query(ctx, st.DB, sql, v)
	return err
}

func (s *Store) ArrayRemove(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	cur, ok, err := s.ReadField(ctx, st, key, field)
	if err != nil {
		return err
	}
	if !ok {
		return jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}

	arr, _ := cur.([]any)
	kept := make([]any, 0, len(arr))
	for _, item := range arr {
		if !reflect.DeepEqual(item, value) {
			kept = append(kept, item)
		}
	}

	v := vars{}
	sql := fmt.Sprintf("UPDATE %s SET %s = %s", thing(st, key), field, v.bind(kept))
	_, err = s.query(ctx, st.DB, sql, v)
	return err
}

func (s *Store) ArrayContains(ctx context.Context, st *jelrec.Struct, key any, field string, value any) (bool, error) {
	v := vars{}
	sql := fmt.Sprintf("SELECT array::find_index(%s, %s) AS idx FROM %s",
		field, v.bind(value), thing(st, key))
	rows, err := s.query(ctx, st.DB, sql, v)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, jelrec.NewError(fmt.Sprintf("%s %v", st.Table, key), jelrec.ErrNotFound)
	}
	return rows[0]["idx"] != nil, nil
}

func (s *Store) TableCreate(ctx context.Context, st *jelrec.Struct, ifNotExists bool) error {
	if _, err := s.query(ctx, st.DB, fmt.Sprintf("DEFINE TABLE %s SCHEMALESS", st.Table), nil); err != nil {
		return err
	}

	for _, idx := range st.Indexes {
		unique := ""
		if idx.Unique {
			unique = " UNIQUE"
		}
		cols := ""
		for i, f := range idx.Fields {
			if i > 0 {
				cols += ", "
			}
			cols += f
		}
		sql := fmt.Sprintf("DEFINE INDEX %s ON TABLE %s COLUMNS %s%s", idx.Name, st.Table, cols, unique)
		if _, err := s.query(ctx, st.DB, sql, nil); err != nil {
			return err
		}
	}

	if st.Changes {
		sql := fmt.Sprintf("DEFINE TABLE %s_changes SCHEMALESS", st.Table)
		if _, err := s.query(ctx, st.DB, sql, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) TableDrop(ctx context.Context, st *jelrec.Struct) error {
	if st.Changes {
		if _, err := s.query(ctx, st.DB, fmt.Sprintf("REMOVE TABLE %s_changes", st.Table), nil); err != nil {
			return err
		}
	}
	_, err := s.query(ctx, st.DB, fmt.Sprintf("REMOVE TABLE %s", st.Table), nil)
	return err
}

// AddChange merges one change into the record's change document. The
// document holds the timestamp of the latest change and every change keyed
// by its timestamp:
//
//	{last: <ms>, items: {<ms>: <items>, ...}}
func (s *Store) AddChange(ctx context.Context, st *jelrec.Struct, key any, items map[string]any) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	data := map[string]any{
		"last":  ts,
		"items": map[string]any{ts: items},
	}

	sql := fmt.Sprintf("UPDATE %s_changes:`%v` MERGE $data", st.Table, key)
	_, err := s.query(ctx, st.DB, sql, vars{"data": data})
	return err
}

func (s *Store) GetChanges(ctx context.Context, st *jelrec.Struct, key any, orderDesc bool) ([]jelrec.Change, error) {
	sql := fmt.Sprintf("SELECT * FROM %s_changes:`%v`", st.Table, key)
	rows, err := s.query(ctx, st.DB, sql, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	itemsDoc, _ := rows[0]["items"].(map[string]any)
	stamps := make([]string, 0, len(itemsDoc))
	for ts := range itemsDoc {
		stamps = append(stamps, ts)
	}
	stamps = sortby.By(stamps, func(l, r string) bool {
		ln, _ := strconv.ParseInt(l, 10, 64)
		rn, _ := strconv.ParseInt(r, 10, 64)
		if orderDesc {
			return ln > rn
		}
		return ln < rn
	})

	out := make([]jelrec.Change, 0, len(stamps))
	for _, ts := range stamps {
		ms, _ := strconv.ParseInt(ts, 10, 64)
		payload, _ := itemsDoc[ts].(map[string]any)
		out = append(out, jelrec.Change{
			Key:     key,
			Created: time.UnixMilli(ms).UTC(),
			Items:   payload,
		})
	}
	return out, nil
}

func (s *Store) GenerateUUID(ctx context.Context) (string, error) {
	rows, err := s.query(ctx, "", "RETURN rand::uuid()", nil)
	if err != nil {
		return "", err
	}
	if len(rows) > 0 {
		if v, ok := rows[0]["value"].(string); ok {
			return v, nil
		}
	}
	return uuid.NewString(), nil
}

func (s *Store) DBCreate(ctx context.Context, name string) error {
	_, err := s.query(ctx, name, fmt.Sprintf("DEFINE DATABASE %s", name), nil)
	return err
}

func (s *Store) DBDrop(ctx context.Context, name string) error {
	_, err := s.query(ctx, name, fmt.Sprintf("REMOVE DATABASE %s", name), nil)
	return err
}

func asInt64(v any) int64 {
	switch tv := v.(type) {
	case int64:
		return tv
	case float64:
		return int64(tv)
	case int:
		return int64(tv)
	default:
		return 0
	}
}
