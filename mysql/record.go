package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/internal/sortby"
	"github.com/dekarrin/jelrec/schema"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// insertParts assembles the column and value lists of an INSERT in tree key
// order. When the primary key is generated from an expression, its value is
// the @_AUTO_PRIMARY session variable set just before the statement runs;
// clientKey instead treats the primary key as an ordinary supplied field.
func (s *Store) insertParts(st *jelrec.Struct, values map[string]any, clientKey bool) (cols, vals []string, err error) {
	for _, f := range st.Tree.Keys() {
		if f == st.Primary && st.AutoPrimary && !clientKey {
			if st.AutoPrimaryExpr != "" {
				cols = append(cols, "`"+f+"`")
				vals = append(vals, "@_AUTO_PRIMARY")
			}
			continue
		}

		v, ok := values[f]
		if !ok {
			continue
		}
		t, err := fieldType(st, f)
		if err != nil {
			return nil, nil, err
		}
		ev, err := escape(s.d, t, v)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, "`"+f+"`")
		vals = append(vals, ev)
	}

	if st.Revisions {
		if rv, ok := values[st.RevField]; ok {
			ev, err := escape(s.d, schema.String, rv)
			if err != nil {
				return nil, nil, err
			}
			cols = append(cols, "`"+st.RevField+"`")
			vals = append(vals, ev)
		}
	}

	return cols, vals, nil
}

func (s *Store) Insert(ctx context.Context, st *jelrec.Struct, values map[string]any, conflict jelrec.Conflict) (any, error) {
	// engines without session variables cannot stage a key expression; a
	// UUID expression is generated client-side instead
	var clientKey any
	if st.AutoPrimary && st.AutoPrimaryExpr != "" && s.d.serverUUID() == "" {
		if !strings.Contains(strings.ToUpper(st.AutoPrimaryExpr), "UUID") {
			return nil, jelrec.NewError(
				fmt.Sprintf("%s cannot evaluate key expression %q", s.d.name(), st.AutoPrimaryExpr),
				jelrec.ErrUnsupported,
			)
		}
		clientKey = uuid.NewString()
		withKey := make(map[string]any, len(values)+1)
		for k, v := range values {
			withKey[k] = v
		}
		withKey[st.Primary] = clientKey
		values = withKey
	}

	cols, vals, err := s.insertParts(st, values, clientKey != nil)
	if err != nil {
		return nil, err
	}

	var prefix, upsert string
	switch {
	case conflict.IsIgnore():
		prefix = s.d.insertIgnore()
	case conflict.IsReplace():
		fields := make([]string, 0, len(cols))
		for _, c := range cols {
			f := strings.Trim(c, "`")
			if f == st.Primary {
				continue
			}
			fields = append(fields, f)
		}
		upsert = "\n" + s.d.upsert(fields)
	case conflict.UpdateFields() != nil:
		upsert = "\n" + s.d.upsert(conflict.UpdateFields())
	}

	stmt := fmt.Sprintf("INSERT %sINTO %s (%s)\n VALUES (%s)%s",
		prefix,
		s.d.table(st.DB, st.Table),
		strings.Join(cols, ","),
		strings.Join(vals, ","),
		upsert,
	)

	if clientKey != nil {
		n, err := s.execute(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if n == 0 && conflict.IsIgnore() {
			return nil, nil
		}
		return clientKey, nil
	}

	if st.AutoPrimary {
		if st.AutoPrimaryExpr != "" {
			return s.insertAutoExpr(ctx, st, stmt)
		}
		id, err := s.insert(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if id == 0 && conflict.IsIgnore() {
			return nil, nil
		}
		return id, nil
	}

	n, err := s.execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if n == 0 && conflict.IsIgnore() {
		return nil, nil
	}
	return values[st.Primary], nil
}

// insertAutoExpr runs an INSERT whose primary key comes from evaluating the
// record type's key expression. The expression result is staged in the
// @_AUTO_PRIMARY session variable, so all three statements are pinned to one
// connection.
func (s *Store) insertAutoExpr(ctx context.Context, st *jelrec.Struct, stmt string) (any, error) {
	var key any
	err := s.run(ctx, stmt, func(db *sqlx.DB) error {
		conn, err := db.Connx(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "SET @_AUTO_PRIMARY = "+st.AutoPrimaryExpr); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}

		var cell any
		if err := conn.QueryRowxContext(ctx, "SELECT @_AUTO_PRIMARY").Scan(&cell); err != nil {
			return err
		}
		key = normalizeValue(cell)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
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

func (s *Store) Update(ctx context.Context, st *jelrec.Struct, key any, values map[string]any) (int64, error) {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	fields = sortby.Strings(fields)

	sets := make([]string, len(fields))
	for i, f := range fields {
		t, err := fieldType(st, f)
		if err != nil {
			return 0, err
		}
		ev, err := escape(s.d, t, values[f])
		if err != nil {
			return 0, err
		}
		sets[i] = fmt.Sprintf("`%s` = %s", f, ev)
	}

	keyCond, err := processValue(s.d, st, st.Primary, key)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE `%s` %s",
		s.d.table(st.DB, st.Table),
		strings.Join(sets, ", "),
		st.Primary,
		keyCond,
	)
	return s.execute(ctx, stmt)
}

func (s *Store) DeleteOne(ctx context.Context, st *jelrec.Struct, key any) (int64, error) {
	keyCond, err := processValue(s.d, st, st.Primary, key)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE `%s` %s",
		s.d.table(st.DB, st.Table), st.Primary, keyCond)
	return s.execute(ctx, stmt)
}

func (s *Store) Select(ctx context.Context, st *jelrec.Struct, q jelrec.Query) ([]map[string]any, error) {
	where, err := buildWhere(s.d, st, q.Filter)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s%s",
		buildColumns(q.Fields),
		s.d.table(st.DB, st.Table),
		where,
		buildOrder(q.OrderBy),
		buildLimit(q.Limit),
	)
	return s.selectAll(ctx, stmt)
}

func (s *Store) Count(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	where, err := buildWhere(s.d, st, filter)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.d.table(st.DB, st.Table), where)
	cell, ok, err := s.selectCell(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return asInt64(cell), nil
}

func (s *Store) DeleteMany(ctx context.Context, st *jelrec.Struct, filter jelrec.Filter) (int64, error) {
	where, err := buildWhere(s.d, st, filter)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s%s", s.d.table(st.DB, st.Table), where)
	return s.execute(ctx, stmt)
}

func (s *Store) UpdateField(ctx context.Context, st *jelrec.Struct, field string, value any, filter jelrec.Filter) (int64, error) {
	t, err := fieldType(st, field)
	if err != nil {
		return 0, err
	}
	ev, err := escape(s.d, t, value)
	if err != nil {
		return 0, err
	}
	where, err := buildWhere(s.d, st, filter)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET `%s` = %s%s",
		s.d.table(st.DB, st.Table), field, ev, where)
	return s.execute(ctx, stmt)
}

func (s *Store) ReadField(ctx context.Context, st *jelrec.Struct, key any, field string) (any, bool, error) {
	if _, err := fieldType(st, field); err != nil {
		return nil, false, err
	}
	keyCond, err := processValue(s.d, st, st.Primary, key)
	if err != nil {
		return nil, false, err
	}

	stmt := fmt.Sprintf("SELECT `%s` FROM %s WHERE `%s` %s LIMIT 1",
		field, s.d.table(st.DB, st.Table), st.Primary, keyCond)
	return s.selectCell(ctx, stmt)
}

// Relational tables have no native array storage. The document backend
// supports these.
func (s *Store) ArrayAppend(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	return jelrec.NewError("array operations", jelrec.ErrUnsupported)
}

func (s *Store) ArrayRemove(ctx context.Context, st *jelrec.Struct, key any, field string, value any) error {
	return jelrec.NewError("array operations", jelrec.ErrUnsupported)
}

func (s *Store) ArrayContains(ctx context.Context, st *jelrec.Struct, key any, field string, value any) (bool, error) {
	return false, jelrec.NewError("array operations", jelrec.ErrUnsupported)
}

func (s *Store) AddChange(ctx context.Context, st *jelrec.Struct, key any, items map[string]any) error {
	t, err := fieldType(st, st.Primary)
	if err != nil {
		return err
	}
	ek, err := escape(s.d, t, key)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return jelrec.NewError("encode change items: "+err.Error(), jelrec.ErrBadArgument)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (`%s`, `created`, `items`) VALUES(%s, CURRENT_TIMESTAMP, '%s')",
		s.d.table(st.DB, st.Table+"_changes"),
		st.Primary,
		ek,
		s.d.escapeString(string(payload)),
	)
	_, err = s.execute(ctx, stmt)
	return err
}

func (s *Store) GetChanges(ctx context.Context, st *jelrec.Struct, key any, orderDesc bool) ([]jelrec.Change, error) {
	keyCond, err := processValue(s.d, st, st.Primary, key)
	if err != nil {
		return nil, err
	}

	dir := "ASC"
	if orderDesc {
		dir = "DESC"
	}
	stmt := fmt.Sprintf("SELECT `%s`, `created`, `items` FROM %s WHERE `%s` %s ORDER BY `created` %s",
		st.Primary,
		s.d.table(st.DB, st.Table+"_changes"),
		st.Primary,
		keyCond,
		dir,
	)

	rows, err := s.selectAll(ctx, stmt)
	if err != nil {
		return nil, err
	}

	out := make([]jelrec.Change, 0, len(rows))
	for _, row := range rows {
		c := jelrec.Change{Key: row[st.Primary]}
		c.Created = asTime(row["created"])
		if payload, ok := row["items"].(string); ok {
			if err := json.Unmarshal([]byte(payload), &c.Items); err != nil {
				return nil, jelrec.NewError("decode change items: "+err.Error(), jelrec.ErrDB)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) GenerateUUID(ctx context.Context) (string, error) {
	stmt := s.d.serverUUID()
	if stmt == "" {
		return uuid.NewString(), nil
	}

	cell, ok, err := s.selectCell(ctx, stmt)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", jelrec.NewError("no UUID returned", jelrec.ErrDB)
	}
	return fmt.Sprint(cell), nil
}

func asInt64(v any) int64 {
	switch tv := v.(type) {
	case int64:
		return tv
	case int:
		return int64(tv)
	case uint64:
		return int64(tv)
	case float64:
		return int64(tv)
	case string:
		var n int64
		fmt.Sscan(tv, &n)
		return n
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch tv := v.(type) {
	case time.Time:
		return tv
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
			if ts, err := time.Parse(layout, tv); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
