package mysql

import (
	"fmt"
	"strings"
)

// dialect covers the statement shapes that differ between engines. The rest
// of the SQL the package builds is common to both.
type dialect interface {
	name() string

	// table quotes the fully-qualified table name. SQLite has no database
	// qualifier and ignores db.
	table(db, tbl string) string

	// insertIgnore is the INSERT modifier that skips duplicate-key rows.
	insertIgnore() string

	// upsert is the clause appended to an INSERT to update the named
	// columns of a colliding row with the inserted values.
	upsert(fields []string) string

	// autoIncrement is the column modifier for a generated integer primary
	// key. SQLite generates for any INTEGER PRIMARY KEY and needs none.
	autoIncrement() string

	// createTail is appended to CREATE TABLE for engine options.
	createTail() string

	// fromUnixtime wraps an epoch-seconds literal for storage in a
	// datetime column.
	fromUnixtime(epoch string) string

	// serverUUID is the statement that generates a UUID server-side, or ""
	// when the engine has none and the client must generate.
	serverUUID() string

	// inlineIndexes is whether secondary indexes can be declared inside
	// CREATE TABLE. When false they need separate CREATE INDEX statements.
	inlineIndexes() bool

	// escapeString makes s safe for inclusion in a single-quoted literal.
	escapeString(s string) string

	// hasDatabases is whether CREATE DATABASE and DROP DATABASE apply.
	hasDatabases() bool
}

type mysqlDialect struct{}

func (mysqlDialect) name() string { return "mysql" }

func (mysqlDialect) table(db, tbl string) string {
	return fmt.Sprintf("`%s`.`%s`", db, tbl)
}

func (mysqlDialect) insertIgnore() string { return "IGNORE " }

func (mysqlDialect) upsert(fields []string) string {
	clause := "ON DUPLICATE KEY UPDATE "
	for i, f := range fields {
		if i > 0 {
			clause += ", "
		}
		clause += fmt.Sprintf("`%s` = VALUES(`%s`)", f, f)
	}
	return clause
}

func (mysqlDialect) autoIncrement() string { return "auto_increment " }

func (mysqlDialect) createTail() string {
	return " ENGINE=InnoDB CHARSET=utf8mb4 COLLATE=utf8mb4_bin"
}

func (mysqlDialect) fromUnixtime(epoch string) string {
	return fmt.Sprintf("FROM_UNIXTIME(%s)", epoch)
}

func (mysqlDialect) serverUUID() string { return "SELECT UUID()" }

func (mysqlDialect) inlineIndexes() bool { return true }

// escapeString escapes the characters the MySQL text protocol treats
// specially inside a quoted literal.
func (mysqlDialect) escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case '\x1a':
			b.WriteString(`\Z`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (mysqlDialect) hasDatabases() bool { return true }

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) table(db, tbl string) string {
	return fmt.Sprintf("`%s`", tbl)
}

func (sqliteDialect) insertIgnore() string { return "OR IGNORE " }

func (sqliteDialect) upsert(fields []string) string {
	clause := "ON CONFLICT DO UPDATE SET "
	for i, f := range fields {
		if i > 0 {
			clause += ", "
		}
		clause += fmt.Sprintf("`%s` = excluded.`%s`", f, f)
	}
	return clause
}

func (sqliteDialect) autoIncrement() string { return "" }

func (sqliteDialect) createTail() string { return "" }

func (sqliteDialect) fromUnixtime(epoch string) string {
	return fmt.Sprintf("datetime(%s, 'unixepoch')", epoch)
}

func (sqliteDialect) serverUUID() string { return "" }

func (sqliteDialect) inlineIndexes() bool { return false }

// escapeString doubles single quotes, the only escape SQLite honors.
func (sqliteDialect) escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (sqliteDialect) hasDatabases() bool { return false }
