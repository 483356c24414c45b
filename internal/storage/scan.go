package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
)

// Scanner enumerates the data files that have a sidecar.
type Scanner struct {
	root   string
	logger *slog.Logger
}

func NewScanner(root string, logger *slog.Logger) *Scanner {
	return &Scanner{root: root, logger: logging.NewComponentLogger(logger, "scanner")}
}

// Scan walks {root}/{deviceid}/{dataid}/ and returns one task per data file,
// ordered by path. Files without a readable sidecar are skipped.
func (s *Scanner) Scan() ([]models.Task, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolve save path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("save path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("save path %s is not a directory", root)
	}

	devices, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list save path: %w", err)
	}

	var tasks []models.Task
	for _, device := range devices {
		if !device.IsDir() {
			continue
		}
		deviceDir := filepath.Join(root, device.Name())
		datas, err := os.ReadDir(deviceDir)
		if err != nil {
			s.logger.Warn("cannot list device directory", logging.String(logging.FieldFile, deviceDir), logging.Error(err))
			continue
		}
		for _, data := range datas {
			if !data.IsDir() {
				continue
			}
			tasks = append(tasks, s.scanDataDir(filepath.Join(deviceDir, data.Name()))...)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].FilePath < tasks[j].FilePath })
	return tasks, nil
}

func (s *Scanner) scanDataDir(dir string) []models.Task {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("cannot list data directory", logging.String(logging.FieldFile, dir), logging.Error(err))
		return nil
	}

	var tasks []models.Task
	for _, e := range entries {
		if e.IsDir() || !IsDataFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		task, err := LoadTask(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping file with unreadable sidecar",
				logging.String(logging.FieldFile, path),
				logging.Error(err),
			)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// IsDataFile reports whether a file name can be a data file rather than a
// sidecar, a partial upload or an editor lock file.
func IsDataFile(name string) bool {
	lower := strings.ToLower(name)
	return !strings.HasSuffix(lower, SidecarSuffix) &&
		!strings.HasSuffix(lower, TempSuffix) &&
		!strings.HasPrefix(name, OfficeLockPrefix)
}

// LoadTask builds a task from a data file path and its sidecar. Missing ids
// fall back to the directory names; an unusable headerline falls back to
// row 1 and an unusable columnline to no skipping.
func LoadTask(path string) (models.Task, error) {
	data, err := os.ReadFile(path + SidecarSuffix)
	if err != nil {
		return models.Task{}, err
	}

	var sc models.Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return models.Task{}, fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}

	dir := filepath.Dir(path)
	task := models.Task{
		FilePath:   path,
		DeviceID:   strings.TrimSpace(sc.DeviceID),
		DataID:     strings.TrimSpace(sc.DataID),
		Header:     headerFromSidecar(sc.HeaderLine),
		ColumnLine: models.ParseColumnLine(sc.ColumnLine),
	}
	if task.DataID == "" {
		task.DataID = filepath.Base(dir)
	}
	if task.DeviceID == "" {
		task.DeviceID = filepath.Base(filepath.Dir(dir))
	}
	return task, nil
}

func headerFromSidecar(raw json.RawMessage) models.HeaderSpec {
	if len(raw) == 0 {
		return models.DefaultHeaderSpec
	}
	var spec models.HeaderSpec
	if err := json.Unmarshal(raw, &spec); err != nil || spec.Validate() != nil {
		return models.DefaultHeaderSpec
	}
	return spec
}
