// Package audit records user-attributed actions to the structured log and,
// optionally, to an append-only JSONL file.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// FileName is the audit trail file created in the data directory.
const FileName = "audit.jsonl"

var _ types.AuditSink = (*Logger)(nil)

// Entry is one audit record.
type Entry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor"`
	Message string    `json:"message"`
}

// Logger is an AuditSink. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	path   string
	now    func() time.Time

	mu sync.Mutex
}

// New returns a Logger writing to logger and, when path is non-empty,
// appending entries to the file at path.
func New(logger *slog.Logger, path string) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, path: path, now: time.Now}
}

// Record formats the message and writes it to every destination. A failure
// to append to the file is logged, not returned.
func (l *Logger) Record(actor, format string, args ...any) {
	e := Entry{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Time:    l.now().UTC(),
		Actor:   actor,
		Message: fmt.Sprintf(format, args...),
	}
	l.logger.Info(e.Message, "audit", true, "actor", e.Actor, "audit_id", e.ID)

	if l.path == "" {
		return
	}
	if err := l.appendEntry(e); err != nil {
		l.logger.Error("writing audit entry", "error", err, "path", l.path)
	}
}

func (l *Logger) appendEntry(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadEntries returns every entry in the audit file at path, oldest first.
// A missing file yields no entries.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// FormatItem renders an item for audit messages.
func FormatItem(item *types.Item) string {
	if item == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s, id: {%s}", item.Path, item.ItemID)
}
