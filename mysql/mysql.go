// Package mysql provides the relational record storage backend. The primary
// dialect is MySQL over go-sql-driver/mysql; a SQLite dialect over
// modernc.org/sqlite is available for single-file deployments and differs
// only in DDL and conflict syntax.
//
// The package keeps one lazily-opened connection pool per Store. Statements
// run with up to three attempts one second apart; transport failures evict
// the pool so the next attempt redials. Statement errors never retry.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/logging"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// Config is the connection configuration of one relational host.
type Config struct {
	// Dialect selects the engine: "mysql" (default) or "sqlite".
	Dialect string `yaml:"dialect"`

	// Host and Port locate the MySQL server. Ignored for SQLite.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// User and Password authenticate against the MySQL server. Ignored for
	// SQLite.
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Charset is the MySQL connection charset. Defaults to utf8mb4.
	Charset string `yaml:"charset"`

	// File is the database file path for SQLite. ":memory:" or "" opens an
	// in-memory database.
	File string `yaml:"file"`
}

// FillDefaults returns a copy of cfg with all unset values set to their
// defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg
	if newCFG.Dialect == "" {
		newCFG.Dialect = "mysql"
	}
	if newCFG.Host == "" {
		newCFG.Host = "localhost"
	}
	if newCFG.Port == 0 {
		newCFG.Port = 3306
	}
	if newCFG.Charset == "" {
		newCFG.Charset = "utf8mb4"
	}
	return newCFG
}

// Validate checks that cfg is usable.
func (cfg Config) Validate() error {
	switch cfg.Dialect {
	case "", "mysql":
		if cfg.User == "" {
			return fmt.Errorf("user must not be empty")
		}
	case "sqlite":
	default:
		return fmt.Errorf("dialect must be \"mysql\" or \"sqlite\", not %q", cfg.Dialect)
	}
	return nil
}

// Opener returns a host opener for the configured relational host.
func Opener(cfg Config) jelrec.HostOpener {
	return func(log logging.Logger) (jelrec.Backend, error) {
		return New(cfg, log)
	}
}

// Store is a relational storage backend. Use New to create one.
type Store struct {
	cfg Config
	d   dialect
	log logging.Logger

	mtx sync.Mutex
	db  *sqlx.DB
}

// New creates a Store for the configured host. The connection pool is not
// opened until the first statement runs.
func New(cfg Config, log logging.Logger) (*Store, error) {
	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}

	var d dialect
	switch cfg.Dialect {
	case "mysql":
		d = mysqlDialect{}
	case "sqlite":
		d = sqliteDialect{}
	}

	return &Store{cfg: cfg, d: d, log: log}, nil
}

// conn returns the open pool, dialing it if needed.
func (s *Store) conn() (*sqlx.DB, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	var db *sqlx.DB
	var err error
	switch s.cfg.Dialect {
	case "sqlite":
		file := s.cfg.File
		if file == "" {
			file = ":memory:"
		}
		db, err = sqlx.Open("sqlite", file)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?charset=%s&parseTime=true",
			s.cfg.User, s.cfg.Password, s.cfg.Host, s.cfg.Port, s.cfg.Charset)
		db, err = sqlx.Open("mysql", dsn)
	}
	if err != nil {
		return nil, jelrec.WrapDBErrorf(err, "open %s", s.cfg.Dialect)
	}

	s.db = db
	return db, nil
}

// evict drops the pool so the next statement redials.
func (s *Store) evict() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

// retryable reports whether err is a transport failure worth redialing for.
// Statement errors are not; neither is unknown-column, which will not change
// on a fresh connection.
func retryable(err error) bool {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// translate maps a driver error to the package error taxonomy.
func translate(err error, stmt string) error {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == 1062 {
			return jelrec.NewError(myErr.Message, jelrec.ErrDuplicateKey, jelrec.ErrDB)
		}
		return jelrec.NewError(fmt.Sprintf("SQL error (%d): %s\n%s", myErr.Number, myErr.Message, stmt), jelrec.ErrQuery, jelrec.ErrDB)
	}
	if isSQLiteUnique(err) {
		return jelrec.NewError(err.Error(), jelrec.ErrDuplicateKey, jelrec.ErrDB)
	}
	return jelrec.WrapDBError(err, stmt)
}

// isSQLiteUnique reports whether err is a SQLite constraint violation.
// Primary result code 19 is SQLITE_CONSTRAINT.
func isSQLiteUnique(err error) bool {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == 19
	}
	return false
}

// run executes fn against the pool with the retry discipline: up to
// maxRetries attempts with a fixed delay, evicting the pool on transport
// failures.
func (s *Store) run(ctx context.Context, stmt string, fn func(db *sqlx.DB) error) error {
	s.log.Tracef("SQL: %s", stmt)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			s.log.Warnf("retrying after connection failure: %v", lastErr)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return jelrec.WrapDBError(ctx.Err(), stmt)
			}
		}

		db, err := s.conn()
		if err != nil {
			lastErr = err
			continue
		}

		err = fn(db)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return translate(err, stmt)
		}

		s.evict()
		lastErr = err
	}

	return jelrec.NewError(fmt.Sprintf("%d attempts failed", maxRetries), lastErr, jelrec.ErrConnection, jelrec.ErrDB)
}

// execute runs a statement that returns no rows and reports rows affected.
func (s *Store) execute(ctx context.Context, stmt string) (int64, error) {
	var n int64
	err := s.run(ctx, stmt, func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// insert runs an INSERT and reports the generated row id.
func (s *Store) insert(ctx context.Context, stmt string) (int64, error) {
	var id int64
	err := s.run(ctx, stmt, func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// selectAll runs a query and returns every row as a field map.
func (s *Store) selectAll(ctx context.Context, stmt string) ([]map[string]any, error) {
	var rows []map[string]any
	err := s.run(ctx, stmt, func(db *sqlx.DB) error {
		rows = nil
		rs, err := db.QueryxContext(ctx, stmt)
		if err != nil {
			return err
		}
		defer rs.Close()

		for rs.Next() {
			row := map[string]any{}
			if err := rs.MapScan(row); err != nil {
				return err
			}
			rows = append(rows, normalizeRow(row))
		}
		return rs.Err()
	})
	return rows, err
}

// selectCell runs a query and returns the first column of its first row. ok
// is false when the query returned no rows.
func (s *Store) selectCell(ctx context.Context, stmt string) (any, bool, error) {
	var cell any
	var ok bool
	err := s.run(ctx, stmt, func(db *sqlx.DB) error {
		cell, ok = nil, false
		row := db.QueryRowxContext(ctx, stmt)
		if err := row.Scan(&cell); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		ok = true
		cell = normalizeValue(cell)
		return nil
	})
	return cell, ok, err
}

// normalizeRow converts driver value kinds to the canonical field forms:
// text comes back from MySQL as []byte and must be string.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case []byte:
		return string(tv)
	default:
		return v
	}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
