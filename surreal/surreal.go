// Package surreal provides the document record storage backend over
// SurrealDB's websocket RPC. Unlike the relational backend it supports
// native array fields, and its change log is a merge-updated document per
// record rather than a row per change.
//
// The client connects lazily with the same discipline as the relational
// backend: three attempts one second apart, dropping the websocket on
// transport failures so the next attempt redials. Statement errors reported
// by the server never retry.
package surreal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/logging"
	"github.com/gorilla/websocket"
	"github.com/surrealdb/surrealdb.go"
)

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// Config is the connection configuration of one SurrealDB host.
type Config struct {
	// URL is the websocket RPC endpoint, e.g. "ws://localhost:8000/rpc".
	URL string `yaml:"url"`

	// Namespace is the SurrealDB namespace records live under. Record
	// types select their database within it.
	Namespace string `yaml:"namespace"`

	// User and Password authenticate the connection.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// FillDefaults returns a copy of cfg with all unset values set to their
// defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg
	if newCFG.URL == "" {
		newCFG.URL = "ws://localhost:8000/rpc"
	}
	if newCFG.Namespace == "" {
		newCFG.Namespace = "records"
	}
	return newCFG
}

// Validate checks that cfg is usable.
func (cfg Config) Validate() error {
	if cfg.URL == "" {
		return fmt.Errorf("url must not be empty")
	}
	return nil
}

// Opener returns a host opener for the configured SurrealDB host.
func Opener(cfg Config) jelrec.HostOpener {
	return func(log logging.Logger) (jelrec.Backend, error) {
		return New(cfg, log)
	}
}

// Store is a SurrealDB storage backend. Use New to create one.
type Store struct {
	cfg Config
	log logging.Logger

	mtx   sync.Mutex
	db    *surrealdb.DB
	curDB string
}

// New creates a Store for the configured host. The websocket is not dialed
// until the first operation runs.
func New(cfg Config, log logging.Logger) (*Store, error) {
	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Store{cfg: cfg, log: log}, nil
}

// conn returns the connected client, dialing and authenticating if needed,
// and selects db as the session database.
func (s *Store) conn(db string) (*surrealdb.DB, error) {
	if s.db == nil {
		cl, err := surrealdb.New(s.cfg.URL)
		if err != nil {
			return nil, err
		}
		if s.cfg.User != "" {
			if _, err := cl.Signin(map[string]any{"user": s.cfg.User, "pass": s.cfg.Password}); err != nil {
				cl.Close()
				return nil, err
			}
		}
		s.db = cl
		s.curDB = ""
	}

	if db != "" && db != s.curDB {
		if _, err := s.db.Use(s.cfg.Namespace, db); err != nil {
			return nil, err
		}
		s.curDB = db
	}

	return s.db, nil
}

func (s *Store) evict() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
		s.curDB = ""
	}
}

// retryable reports whether err is worth redialing for. Only transport
// failures are; anything the server reported against the statement
// propagates.
func retryable(err error) bool {
	if errors.Is(err, surrealdb.ErrQuery) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// query runs one SurrealQL statement with bound vars against db and returns
// the result rows of its last statement.
func (s *Store) query(ctx context.Context, db, sql string, vars map[string]any) ([]map[string]any, error) {
	s.log.Tracef("SurrealQL: %s", sql)

	s.mtx.Lock()
	defer s.mtx.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			s.log.Warnf("retrying after connection failure: %v", lastErr)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, jelrec.WrapDBError(ctx.Err(), sql)
			}
		}

		cl, err := s.conn(db)
		if err != nil {
			s.evict()
			lastErr = err
			continue
		}

		res, err := cl.Query(sql, vars)
		if err != nil {
			if !retryable(err) {
				return nil, statementError(err.Error(), sql)
			}
			s.evict()
			lastErr = err
			continue
		}

		rows, err := unwrap(res)
		if err != nil {
			return nil, statementError(err.Error(), sql)
		}
		return rows, nil
	}

	return nil, jelrec.NewError(fmt.Sprintf("%d attempts failed", maxRetries), lastErr, jelrec.ErrConnection, jelrec.ErrDB)
}

// statementError maps a server-reported statement failure to the package
// error taxonomy. Record-exists failures carry ErrDuplicateKey.
func statementError(msg, sql string) error {
	if strings.Contains(msg, "already exists") {
		return jelrec.NewError(msg, jelrec.ErrDuplicateKey, jelrec.ErrDB)
	}
	return jelrec.NewError(fmt.Sprintf("%s\n%s", msg, sql), jelrec.ErrQuery, jelrec.ErrDB)
}

// unwrap extracts the result rows of the last statement in a query
// response. Each statement comes back as {time, status, result}.
func unwrap(res any) ([]map[string]any, error) {
	stmts, ok := res.([]any)
	if !ok || len(stmts) == 0 {
		return nil, nil
	}

	last, ok := stmts[len(stmts)-1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed response statement")
	}
	if status, _ := last["status"].(string); status != "" && status != "OK" {
		detail, _ := last["detail"].(string)
		return nil, fmt.Errorf("statement status %s: %s", status, detail)
	}

	switch result := last["result"].(type) {
	case nil:
		return nil, nil
	case []any:
		rows := make([]map[string]any, 0, len(result))
		for _, item := range result {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return rows, nil
	case map[string]any:
		return []map[string]any{result}, nil
	default:
		return []map[string]any{{"value": result}}, nil
	}
}

// Close closes the websocket.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.evict()
	return nil
}
