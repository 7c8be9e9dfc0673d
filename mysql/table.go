package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/schema"
)

// nodeToSQL is the default column type per schema type. Types mapped to ""
// have no default and require a maximum or a per-field sql override.
var nodeToSQL = map[schema.Type]string{
	schema.Bool:      "tinyint(1) unsigned",
	schema.Date:      "date",
	schema.Datetime:  "datetime",
	schema.Decimal:   "decimal",
	schema.Float:     "double",
	schema.Int:       "integer",
	schema.IP:        "char(15)",
	schema.JSON:      "text",
	schema.MD5:       "char(32)",
	schema.Price:     "decimal(8,2)",
	schema.Time:      "time",
	schema.Timestamp: "timestamp",
	schema.UInt:      "integer unsigned",
	schema.UUID:      "char(36)",
}

// columnType resolves the SQL type of one field: the per-field sql special
// section wins, then string sizing rules, then the default table.
func (s *Store) columnType(n *schema.Node) (string, error) {
	if sqlSec := n.Special("sql"); sqlSec != nil {
		if t, ok := sqlSec["type"].(string); ok && t != "" {
			return t, nil
		}
	}

	switch n.Type() {
	case schema.String, schema.Base64:
		if opts := n.Options(); opts != nil {
			vals := make([]string, len(opts))
			for i, o := range opts {
				vals[i] = "'" + s.d.escapeString(o) + "'"
			}
			return "enum(" + strings.Join(vals, ",") + ")", nil
		}

		min, max := n.MinMax()
		if max == nil {
			return "", fmt.Errorf("string fields need a maximum or a sql type override")
		}
		if min != nil && *min == *max {
			return fmt.Sprintf("char(%d)", *max), nil
		}
		switch *max {
		case 4294967296:
			return "longtext", nil
		case 16777216:
			return "mediumtext", nil
		case 65536:
			return "text", nil
		default:
			return fmt.Sprintf("varchar(%d)", *max), nil
		}

	case schema.Array, schema.Any:
		return "", fmt.Errorf("%q fields have no relational representation", n.Type())

	default:
		if t, ok := nodeToSQL[n.Type()]; ok {
			return t, nil
		}
		return "", fmt.Errorf("no column type for %q fields", n.Type())
	}
}

// columnOpts returns the opts tail of the per-field sql special section.
func columnOpts(n *schema.Node) string {
	if sqlSec := n.Special("sql"); sqlSec != nil {
		if o, ok := sqlSec["opts"].(string); ok {
			return o
		}
	}
	return ""
}

func (s *Store) TableCreate(ctx context.Context, st *jelrec.Struct, ifNotExists bool) error {
	var cols []string
	var idxs []string

	// primary key column first
	pkNode, _ := st.Tree.Node(st.Primary)
	pkType, err := s.columnType(pkNode)
	if err != nil {
		return jelrec.NewError(fmt.Sprintf("field %q: %s", st.Primary, err.Error()), jelrec.ErrBadArgument)
	}

	auto := ""
	if st.AutoPrimary && st.AutoPrimaryExpr == "" {
		auto = s.d.autoIncrement()
	}
	cols = append(cols, fmt.Sprintf("`%s` %s not null %s%s",
		st.Primary, pkType, auto, columnOpts(pkNode)))
	idxs = append(idxs, fmt.Sprintf("primary key (`%s`)", st.Primary))

	for _, f := range st.Tree.Keys() {
		if f == st.Primary {
			continue
		}
		n, _ := st.Tree.Node(f)
		colType, err := s.columnType(n)
		if err != nil {
			return jelrec.NewError(fmt.Sprintf("field %q: %s", f, err.Error()), jelrec.ErrBadArgument)
		}

		null := "not null "
		if n.Optional() {
			null = ""
		}
		cols = append(cols, fmt.Sprintf("`%s` %s %s%s", f, colType, null, columnOpts(n)))
	}

	if st.Revisions {
		cols = append(cols, fmt.Sprintf("`%s` varchar(45) not null", st.RevField))
	}

	// secondary indexes go inline when the engine allows, otherwise each
	// becomes a CREATE INDEX run after the table
	var post []string
	for _, idx := range st.Indexes {
		quoted := make([]string, len(idx.Fields))
		for i, f := range idx.Fields {
			quoted[i] = "`" + f + "`"
		}

		if s.d.inlineIndexes() {
			kind := "index"
			if idx.Unique {
				kind = "unique"
			}
			idxs = append(idxs, fmt.Sprintf("%s `%s` (%s)", kind, idx.Name, strings.Join(quoted, ",")))
			continue
		}

		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		post = append(post, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS `%s_%s` ON %s (%s)",
			unique, st.Table, idx.Name, s.d.table(st.DB, st.Table), strings.Join(quoted, ",")))
	}

	exists := ""
	if ifNotExists {
		exists = "IF NOT EXISTS "
	}

	stmt := fmt.Sprintf("CREATE TABLE %s%s (%s, %s)%s",
		exists,
		s.d.table(st.DB, st.Table),
		strings.Join(cols, ", "),
		strings.Join(idxs, ", "),
		s.d.createTail(),
	)
	if _, err := s.execute(ctx, stmt); err != nil {
		return err
	}
	for _, p := range post {
		if _, err := s.execute(ctx, p); err != nil {
			return err
		}
	}

	if st.Changes {
		changesTbl := st.Table + "_changes"
		inlineIdx := ""
		if s.d.inlineIndexes() {
			inlineIdx = fmt.Sprintf(", index `%s` (`%s`)", st.Primary, st.Primary)
		}
		stmt = fmt.Sprintf("CREATE TABLE %s%s ("+
			"`%s` %s not null, "+
			"`created` datetime not null DEFAULT CURRENT_TIMESTAMP, "+
			"`items` text not null%s)%s",
			exists,
			s.d.table(st.DB, changesTbl),
			st.Primary, pkType,
			inlineIdx,
			s.d.createTail(),
		)
		if _, err := s.execute(ctx, stmt); err != nil {
			return err
		}
		if !s.d.inlineIndexes() {
			p := fmt.Sprintf("CREATE INDEX IF NOT EXISTS `%s_%s` ON %s (`%s`)",
				changesTbl, st.Primary, s.d.table(st.DB, changesTbl), st.Primary)
			if _, err := s.execute(ctx, p); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Store) TableDrop(ctx context.Context, st *jelrec.Struct) error {
	if st.Changes {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.d.table(st.DB, st.Table+"_changes"))
		if _, err := s.execute(ctx, stmt); err != nil {
			return err
		}
	}

	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.d.table(st.DB, st.Table))
	_, err := s.execute(ctx, stmt)
	return err
}

func (s *Store) DBCreate(ctx context.Context, name string) error {
	if !s.d.hasDatabases() {
		return nil
	}
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET %s", name, s.cfg.Charset)
	_, err := s.execute(ctx, stmt)
	return err
}

func (s *Store) DBDrop(ctx context.Context, name string) error {
	if !s.d.hasDatabases() {
		return nil
	}
	stmt := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	_, err := s.execute(ctx, stmt)
	return err
}
