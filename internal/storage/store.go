// Package storage owns the on-disk layout shared by the ingress service and
// the worker: {root}/{deviceid}/{dataid}/{file} plus a "{file}.json" sidecar.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SidecarSuffix is appended to a data file's name to locate its metadata.
	SidecarSuffix = ".json"
	// TempSuffix marks files that are still being written.
	TempSuffix = ".tmp"
	// OfficeLockPrefix marks the lock files spreadsheet editors leave behind.
	OfficeLockPrefix = "~$"
)

var (
	// ErrInvalidSidecar is returned when a sidecar cannot be decoded.
	ErrInvalidSidecar = errors.New("invalid sidecar")
	// ErrInvalidComponent is returned for ids or names that would escape the root.
	ErrInvalidComponent = errors.New("invalid path component")
)

// SavedFile describes an upload that has been committed to disk.
type SavedFile struct {
	Path        string    `json:"path" msgpack:"path"`
	SidecarPath string    `json:"sidecarPath" msgpack:"sidecarPath"`
	DeviceID    string    `json:"deviceid" msgpack:"deviceid"`
	DataID      string    `json:"dataid" msgpack:"dataid"`
	OrgFileName string    `json:"orgfilename" msgpack:"orgfilename"`
	Size        int64     `json:"size" msgpack:"size"`
	ReceivedAt  time.Time `json:"receivedAt" msgpack:"receivedAt"`
}

// LocalStore writes uploads under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute storage root.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes r to {root}/{deviceid}/{dataid}/{orgfilename} and then writes
// params as the sidecar. The data file only appears under its final name once
// fully written, so a scan never sees a partial workbook.
func (s *LocalStore) Save(params map[string]string, r io.Reader) (*SavedFile, error) {
	deviceID, dataID, name := params["deviceid"], params["dataid"], params["orgfilename"]
	for _, c := range []string{deviceID, dataID, name} {
		if err := ValidateComponent(c); err != nil {
			return nil, err
		}
	}

	dir := filepath.Join(s.root, deviceID, dataID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating target directory: %w", err)
	}
	path := filepath.Join(dir, name)

	size, err := writeAtomic(path, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	sidecar, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sidecar: %w", err)
	}
	if _, err := writeAtomic(path+SidecarSuffix, func(w io.Writer) (int64, error) {
		n, err := w.Write(sidecar)
		return int64(n), err
	}); err != nil {
		return nil, fmt.Errorf("writing sidecar: %w", err)
	}

	return &SavedFile{
		Path:        path,
		SidecarPath: path + SidecarSuffix,
		DeviceID:    deviceID,
		DataID:      dataID,
		OrgFileName: name,
		Size:        size,
		ReceivedAt:  time.Now(),
	}, nil
}

// ValidateComponent rejects values that are empty or would not stay a single
// path element.
func ValidateComponent(c string) error {
	switch {
	case strings.TrimSpace(c) == "":
		return fmt.Errorf("%w: empty", ErrInvalidComponent)
	case c == "." || c == "..":
		return fmt.Errorf("%w: %q", ErrInvalidComponent, c)
	case strings.ContainsAny(c, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidComponent, c)
	}
	return nil
}

func writeAtomic(path string, fill func(io.Writer) (int64, error)) (int64, error) {
	tmp := path + "." + uuid.NewString() + TempSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	n, err := fill(f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}
