package selection

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/koustreak/classiflow/internal/errs"
	"go.yaml.in/yaml/v3"
)

// fileState is the on-disk document.
type fileState struct {
	SelectedTable string `yaml:"selected_table"`
}

// File stores the selection in a small YAML document.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a store backed by the YAML file at path. The file is
// created on the first Save.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "selection file path is required")
	}
	return &File{path: path}, nil
}

// Load reads the stored table name. A missing file means no selection.
func (f *File) Load(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "read selection file", err)
	}

	var st fileState
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "decode selection file", err)
	}
	return st.SelectedTable, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so a crash never leaves a truncated document.
func (f *File) Save(_ context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := yaml.Marshal(fileState{SelectedTable: table})
	if err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "encode selection file", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "create selection dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".selection-*.yaml")
	if err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write selection file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errs.Wrap(errs.ErrKindQueryFailed, "write selection file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write selection file", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write selection file", err)
	}
	return nil
}

// Close is a no-op.
func (f *File) Close() error { return nil }
