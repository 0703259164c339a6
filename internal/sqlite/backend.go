// Package sqlite implements the SQLite content repository and link index.
// JSONL files in DataDir are the source of truth; SQLite is rebuilt from them
// on Attach and used as the query engine.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

var _ types.Repository = (*Backend)(nil)

// File names inside DataDir.
const (
	dbFileName    = "content.db"
	itemsFileName = "items.jsonl"
	linksFileName = "links.jsonl"
)

// Backend implements types.ContentStore and types.LinkIndex on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	registry types.FieldRegistry
}

// NewBackend creates a new SQLite backend instance. The registry derives the
// link index from field values. The backend is not attached; call Attach with
// a Config to initialize.
func NewBackend(registry types.FieldRegistry) *Backend {
	return &Backend{registry: registry}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds a fresh SQLite schema, loads
// the JSONL files, and seeds the content root on first run.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	config.DataDir = dataDir

	// The database is a cache of the JSONL files; start from an empty one.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// One connection serializes writers and avoids SQLITE_BUSY between the
	// worker goroutine and pollers.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}

	b.db = db
	b.config = config

	loaded, err := b.loadAllJSONL()
	if err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("load JSONL: %w", err)
	}
	if err := b.seedRoot(); err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("seed root: %w", err)
	}
	if !loaded.links {
		if err := b.reindexAllLocked(context.Background()); err != nil {
			db.Close()
			b.db = nil
			return fmt.Errorf("reindex links: %w", err)
		}
	}

	b.attached = true
	return nil
}

// Detach releases all resources held by the backend. After Detach, all
// operations return ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

// newUUID generates a UUID v7 string, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
