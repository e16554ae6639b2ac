// Package share exposes the node's shared directory: the set of files this
// peer serves over LS/DL and the destination for downloads. Listings are
// derived fresh from the filesystem on every call, never cached, so they are
// always consistent with the directory at request time.
package share

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileInfo is one entry of a directory listing.
type FileInfo struct {
	Name string
	Size int64
}

// Dir is a validated handle on the shared directory.
type Dir struct {
	path string
}

// Open validates that path is an existing, readable directory. A failure here
// is a fatal configuration error: the node must not start without its shared
// directory.
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("shared directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shared directory: %s is not a directory", path)
	}
	if _, err := os.ReadDir(path); err != nil {
		return nil, fmt.Errorf("shared directory: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// List enumerates the directory's regular files with their byte sizes, in
// name order. Subdirectories are skipped; the protocol has no notion of
// nesting.
func (d *Dir) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list shared directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the whole content of one shared file.
func (d *Dir) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.path, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("read shared file: %w", err)
	}
	return data, nil
}

// Exists reports whether name is a regular file in the directory.
func (d *Dir) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(d.path, filepath.Base(name)))
	return err == nil && info.Mode().IsRegular()
}

// Write stores a downloaded file under its reported name, overwriting any
// existing file of that name.
func (d *Dir) Write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(d.path, filepath.Base(name)), data, 0o644); err != nil {
		return fmt.Errorf("write shared file: %w", err)
	}
	return nil
}
