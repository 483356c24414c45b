// Package progress persists the per (file, sheet) watermarks that record how
// far each sheet has been delivered.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
)

const lockRetryDelay = 50 * time.Millisecond

// Snapshot is an immutable copy of the stored map, key "path|sheet" to
// watermark text. It is handed to tasks for read-only lookups.
type Snapshot map[string]string

// Lookup returns the watermark for key. A missing or unparseable value
// reports ok=false, which means every row is eligible.
func (s Snapshot) Lookup(key models.ProgressKey) (time.Time, bool) {
	raw, ok := s[key.String()]
	if !ok {
		return time.Time{}, false
	}
	t, err := models.ParseWatermark(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Entry is one stored watermark, used for status listings.
type Entry struct {
	Key   models.ProgressKey `json:"key" msgpack:"key"`
	Raw   string             `json:"watermark" msgpack:"watermark"`
	Valid bool               `json:"valid" msgpack:"valid"`
}

// Entries returns the snapshot sorted by key.
func (s Snapshot) Entries() []Entry {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		key, err := models.ParseProgressKey(k)
		if err != nil {
			key = models.ProgressKey{FilePath: k}
		}
		_, perr := models.ParseWatermark(s[k])
		out = append(out, Entry{Key: key, Raw: s[k], Valid: perr == nil})
	}
	return out
}

// Store is a JSON file of watermarks. Writes replace the file atomically and
// are serialized across processes with an advisory lock.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewStore returns a store backed by path. The file need not exist.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "progress"),
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored map. A missing file is an empty store; so is a
// corrupt one, after a warning, since nothing can be recovered from it.
func (s *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("progress file is corrupt; treating as empty",
			logging.String(logging.FieldFile, s.path),
			logging.Error(err),
		)
		return Snapshot{}, nil
	}

	snap := make(Snapshot, len(raw))
	for k, v := range raw {
		// non-string values are kept as their JSON text so Lookup rejects them
		if str, ok := v.(string); ok {
			snap[k] = str
		} else {
			snap[k] = fmt.Sprint(v)
		}
	}
	return snap, nil
}

// Merge unions delta into the stored map, delta winning on conflicts, and
// rewrites the file. Keys outside delta are preserved.
func (s *Store) Merge(ctx context.Context, delta models.Delta) error {
	if len(delta) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure progress directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock progress file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock progress file: not acquired")
	}
	defer s.lock.Unlock()

	current, err := s.Load()
	if err != nil {
		return err
	}
	for _, w := range delta {
		current[w.Key.String()] = models.FormatWatermark(w.Time)
	}
	return s.write(current)
}

func (s *Store) write(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp progress file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp progress file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}
