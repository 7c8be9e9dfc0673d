package jelrec

import (
	"fmt"
	"sync"

	"github.com/dekarrin/jelrec/logging"
)

// HostOpener opens a connection to a storage host and returns the Backend
// that talks to it. Openers are called lazily, the first time a record
// operation needs the host.
type HostOpener func(log logging.Logger) (Backend, error)

// Registry holds the storage hosts record types may be bound to, and the
// database-name prefix applied to every record type using it. It is safe for
// concurrent use.
type Registry struct {
	mtx     sync.Mutex
	prefix  string
	log     logging.Logger
	openers map[string]HostOpener
	open    map[string]Backend
}

// NewRegistry creates a Registry with the given database-name prefix. A nil
// log disables logging.
func NewRegistry(prefix string, log logging.Logger) *Registry {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Registry{
		prefix:  prefix,
		log:     log,
		openers: map[string]HostOpener{},
		open:    map[string]Backend{},
	}
}

// AddHost registers a storage host under the given name. If a host of that
// name already exists, AddHost returns ErrDuplicateKey unless update is set,
// in which case the opener is replaced and any open connection to the old
// host is closed.
func (r *Registry) AddHost(name string, open HostOpener, update bool) error {
	if open == nil {
		return fmt.Errorf("%w: host opener must not be nil", ErrBadArgument)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.openers[name]; ok {
		if !update {
			return fmt.Errorf("%w: host %q is already registered", ErrDuplicateKey, name)
		}
		if b, ok := r.open[name]; ok {
			if err := b.Close(); err != nil {
				r.log.Warnf("closing replaced host %q: %v", name, err)
			}
			delete(r.open, name)
		}
	}

	r.openers[name] = open
	return nil
}

// Backend returns the Backend connected to the named host, opening it if
// this is its first use. It returns ErrKeyNotFound when no host of that name
// is registered.
func (r *Registry) Backend(name string) (Backend, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if b, ok := r.open[name]; ok {
		return b, nil
	}

	open, ok := r.openers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no host %q is registered", ErrKeyNotFound, name)
	}

	r.log.Debugf("opening storage host %q", name)
	b, err := open(r.log)
	if err != nil {
		return nil, fmt.Errorf("open host %q: %w", name, err)
	}

	r.open[name] = b
	return b, nil
}

// Prefix returns the registry's database-name prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// DBName returns the given database name with the registry's prefix applied.
func (r *Registry) DBName(db string) string {
	return r.prefix + db
}

// Close closes every host connection the registry has opened. The registry
// may be used again afterward; hosts re-open on next use.
func (r *Registry) Close() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var errs []error
	for name, b := range r.open {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close host %q: %w", name, err))
		}
	}
	r.open = map[string]Backend{}

	if len(errs) > 0 {
		return NewError("close registry", errs...)
	}
	return nil
}
