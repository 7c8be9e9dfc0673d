// Package config provides configuration bundles for setting up record hosts
// and logging. A Bundle is typically loaded from a YAML or JSON file with
// Load, filled with FillDefaults, checked with Validate, and then turned into
// a ready-to-use host registry with Registry.
package config

import (
	"fmt"
	"strings"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/inmem"
	"github.com/dekarrin/jelrec/logging"
	"github.com/dekarrin/jelrec/mysql"
	"github.com/dekarrin/jelrec/surreal"
)

// HostType is the kind of storage engine a Host entry refers to.
type HostType string

const (
	HostInMemory HostType = "inmem"
	HostMySQL    HostType = "mysql"
	HostSQLite   HostType = "sqlite"
	HostSurreal  HostType = "surreal"
)

// ParseHostType parses a string into a HostType. Case-insensitive.
func ParseHostType(s string) (HostType, error) {
	switch strings.ToLower(s) {
	case string(HostInMemory), "memory", "mem":
		return HostInMemory, nil
	case string(HostMySQL):
		return HostMySQL, nil
	case string(HostSQLite):
		return HostSQLite, nil
	case string(HostSurreal), "surrealdb":
		return HostSurreal, nil
	default:
		return HostInMemory, fmt.Errorf("%q is not a valid host type", s)
	}
}

// Log holds configuration for logging of record operations.
type Log struct {
	// Enabled is whether logging is enabled for the registry. If false, all
	// hosts receive a no-op logger.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Provider is the name of the log provider. Must be parsable with
	// logging.ParseProvider.
	Provider string `yaml:"provider" json:"provider"`

	// File is the path to the log file on disk, for providers that log to
	// one.
	File string `yaml:"file" json:"file"`
}

// FillDefaults returns a copy of l with all missing fields set to their
// defaults.
func (l Log) FillDefaults() Log {
	newL := l

	if newL.Enabled && newL.Provider == "" {
		newL.Provider = logging.Jellog.String()
	}

	return newL
}

// Validate returns a non-nil error if l is not valid.
func (l Log) Validate() error {
	if !l.Enabled {
		return nil
	}
	if _, err := logging.ParseProvider(l.Provider); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	return nil
}

// Create creates a logger based on the configured provider. If logging is not
// enabled, a no-op logger is returned.
func (l Log) Create() (logging.Logger, error) {
	if !l.Enabled {
		return logging.NoOpLogger{}, nil
	}
	p, err := logging.ParseProvider(l.Provider)
	if err != nil {
		return nil, err
	}
	return logging.New(p, l.File)
}

// Host is the configuration of a single named storage host. Which fields are
// meaningful depends on Type; unused fields are ignored.
type Host struct {
	// Type is the kind of engine backing the host. It must be one of
	// "inmem", "mysql", "sqlite", or "surreal".
	Type string `yaml:"type" json:"type"`

	// DataFile is the path to the persistence file. Used by inmem and sqlite
	// hosts.
	DataFile string `yaml:"data_file" json:"data_file"`

	// Address is the network address of the database server, without port.
	// Used by mysql hosts.
	Address string `yaml:"address" json:"address"`

	// Port is the TCP port of the database server. Used by mysql hosts.
	Port int `yaml:"port" json:"port"`

	// User is the username to authenticate as. Used by mysql and surreal
	// hosts.
	User string `yaml:"user" json:"user"`

	// Password is the password to authenticate with. Used by mysql and
	// surreal hosts.
	Password string `yaml:"password" json:"password"`

	// Charset is the connection character set. Used by mysql hosts.
	Charset string `yaml:"charset" json:"charset"`

	// URL is the websocket RPC endpoint of the server. Used by surreal
	// hosts.
	URL string `yaml:"url" json:"url"`

	// Namespace is the namespace that databases are selected within. Used by
	// surreal hosts.
	Namespace string `yaml:"namespace" json:"namespace"`
}

// FillDefaults returns a copy of h with all missing fields set to their
// defaults for the configured type.
func (h Host) FillDefaults() Host {
	newH := h

	if newH.Type == "" {
		newH.Type = string(HostInMemory)
	}

	switch ht, _ := ParseHostType(newH.Type); ht {
	case HostMySQL:
		cfg := h.mysqlConfig().FillDefaults()
		newH.Address = cfg.Host
		newH.Port = cfg.Port
		newH.Charset = cfg.Charset
	case HostSurreal:
		cfg := h.surrealConfig().FillDefaults()
		newH.URL = cfg.URL
		newH.Namespace = cfg.Namespace
	}

	return newH
}

// Validate returns a non-nil error if h is not valid.
func (h Host) Validate() error {
	ht, err := ParseHostType(h.Type)
	if err != nil {
		return fmt.Errorf("type: %w", err)
	}

	switch ht {
	case HostMySQL:
		return h.mysqlConfig().Validate()
	case HostSQLite:
		if h.DataFile == "" {
			return fmt.Errorf("data_file must be set for sqlite hosts")
		}
		return h.mysqlConfig().Validate()
	case HostSurreal:
		return h.surrealConfig().Validate()
	}

	return nil
}

func (h Host) mysqlConfig() mysql.Config {
	ht, _ := ParseHostType(h.Type)
	if ht == HostSQLite {
		return mysql.Config{
			Dialect: "sqlite",
			File:    h.DataFile,
		}
	}
	return mysql.Config{
		Dialect:  "mysql",
		Host:     h.Address,
		Port:     h.Port,
		User:     h.User,
		Password: h.Password,
		Charset:  h.Charset,
	}
}

func (h Host) surrealConfig() surreal.Config {
	return surreal.Config{
		URL:       h.URL,
		Namespace: h.Namespace,
		User:      h.User,
		Password:  h.Password,
	}
}

func (h Host) opener() (jelrec.HostOpener, error) {
	ht, err := ParseHostType(h.Type)
	if err != nil {
		return nil, err
	}

	switch ht {
	case HostInMemory:
		return inmem.Opener(h.DataFile), nil
	case HostMySQL, HostSQLite:
		return mysql.Opener(h.mysqlConfig()), nil
	case HostSurreal:
		return surreal.Opener(h.surrealConfig()), nil
	}

	return nil, fmt.Errorf("%q is not a valid host type", h.Type)
}

// Bundle is a complete description of record storage for an application. It
// names the hosts that record structs may refer to and sets global options
// that apply across all of them.
type Bundle struct {
	// Prefix is prepended to every database name before it is selected on a
	// host. It allows multiple deployments to share one server.
	Prefix string `yaml:"prefix" json:"prefix"`

	// Log is the logging configuration used by all hosts.
	Log Log `yaml:"logging" json:"logging"`

	// Hosts is all configured storage hosts, keyed by the name that record
	// structs refer to them with. Most deployments will have at least a host
	// named "primary".
	Hosts map[string]Host `yaml:"hosts" json:"hosts"`
}

// FillDefaults returns a copy of b with all missing fields set to their
// defaults. If no hosts at all are configured, a single in-memory host named
// "primary" is added.
func (b Bundle) FillDefaults() Bundle {
	newB := b

	if len(newB.Hosts) == 0 {
		newB.Hosts = map[string]Host{
			"primary": {Type: string(HostInMemory)},
		}
	}

	newHosts := map[string]Host{}
	for name, h := range newB.Hosts {
		newHosts[name] = h.FillDefaults()
	}
	newB.Hosts = newHosts
	newB.Log = newB.Log.FillDefaults()

	return newB
}

// Validate returns a non-nil error if b is not valid.
func (b Bundle) Validate() error {
	if err := b.Log.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if len(b.Hosts) < 1 {
		return fmt.Errorf("hosts: at least one host must be configured")
	}
	for name, h := range b.Hosts {
		if name == "" {
			return fmt.Errorf("hosts: host name cannot be blank")
		}
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hosts: %s: %w", name, err)
		}
	}
	return nil
}

// Registry creates a host registry from the bundle, with an opener installed
// for every configured host. The hosts themselves are not connected to until
// first use.
func (b Bundle) Registry() (*jelrec.Registry, error) {
	log, err := b.Log.Create()
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	reg := jelrec.NewRegistry(b.Prefix, log)
	for name, h := range b.Hosts {
		op, err := h.opener()
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", name, err)
		}
		if err := reg.AddHost(name, op, false); err != nil {
			return nil, fmt.Errorf("host %s: %w", name, err)
		}
	}

	return reg, nil
}
