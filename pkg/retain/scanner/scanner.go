// Package scanner lists the direct children of a directory and turns each
// one into a types.FileRecord. It never descends into subdirectories.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/retain/pkg/retain/types"
)

// List returns the full paths of the direct children of dir, sorted by name.
// Failure to read the directory is returned to the caller; there is nothing
// to evaluate without it.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// Stat builds a FileRecord for path using lstat, so symlinks are described
// as links rather than their targets.
func Stat(path string) (types.FileRecord, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return types.FileRecord{}, err
	}

	name := info.Name()
	return types.FileRecord{
		Path:    path,
		Name:    name,
		Ext:     Ext(name),
		Size:    info.Size(),
		Created: getCreateTime(path, info),
		Mode:    info.Mode(),
	}, nil
}

// Ext returns the final extension of name without the leading dot.
// Names whose only dot is the first character (".bashrc") and names
// ending in a dot have no extension; "archive.tar.gz" yields "gz".
func Ext(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}
