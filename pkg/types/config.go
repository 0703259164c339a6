package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Config selects the content repository backend and where it keeps its files.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// SupportedBackends returns the backend names Validate accepts, sorted.
func SupportedBackends() []string {
	names := make([]string, 0, len(knownBackends))
	for name := range knownBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the backend name. An unknown backend is reported with the
// supported names and wraps ErrBackendUnknown. DataDir is resolved by the
// caller and may be empty here.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend) == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w %q (supported: %s)", ErrBackendUnknown, c.Backend, strings.Join(SupportedBackends(), ", "))
	}
	return nil
}
