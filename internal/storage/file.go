package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	errStorageFileIsDir = errors.New("storage file is dir")
)

// File keeps every key in a single json document. Writes land in a temp file
// that is renamed over the original, so readers never see half of a SetAll.
type File struct {
	path string

	mu sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readfile()
	if errors.Is(err, ErrCorrupt) {
		return "", fmt.Errorf("get: %w", err)
	}
	if err != nil {
		return "", unavailable("get", err)
	}

	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) SetAll(_ context.Context, kv map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readfile()
	if errors.Is(err, ErrCorrupt) {
		data = map[string]string{}
	} else if err != nil {
		return unavailable("set", err)
	}

	for k, v := range kv {
		data[k] = v
	}

	if err := f.writefile(data); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readfile()
	corrupt := errors.Is(err, ErrCorrupt)
	if corrupt {
		data = map[string]string{}
	} else if err != nil {
		return unavailable("delete", err)
	}

	changed := corrupt
	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	if err := f.writefile(data); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// readfile treats a missing file as empty. A file that exists but cannot be
// decoded returns ErrCorrupt.
func (f *File) readfile() (map[string]string, error) {
	data := map[string]string{}

	finfo, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	if finfo.IsDir() {
		return nil, errStorageFileIsDir
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return data, nil
}

func (f *File) writefile(data map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}
