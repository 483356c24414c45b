package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry holds the available workbook readers keyed by file extension.
type Registry struct {
	readers []WorkbookReader
}

func NewRegistry() *Registry {
	return &Registry{
		readers: []WorkbookReader{
			NewXLSXReader(),
			NewXLSReader(),
			NewCSVReader(),
		},
	}
}

// Register adds a new reader to the registry.
func (r *Registry) Register(reader WorkbookReader) {
	r.readers = append(r.readers, reader)
}

// ReaderFor picks the reader for a file path by its extension.
func (r *Registry) ReaderFor(path string) (WorkbookReader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, reader := range r.readers {
		for _, e := range reader.Extensions() {
			if e == ext {
				return reader, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// GetReaderByName returns a reader by its name.
func (r *Registry) GetReaderByName(name string) (WorkbookReader, error) {
	name = strings.ToLower(name)
	for _, reader := range r.readers {
		if strings.ToLower(reader.Name()) == name {
			return reader, nil
		}
	}
	return nil, fmt.Errorf("reader not found: %s", name)
}
