package stdlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscape       = errors.New("stdlib/fs: path escape violation")
	ErrFileTooLarge     = errors.New("stdlib/fs: file size limit exceeded")
	ErrPermissionDenied = errors.New("stdlib/fs: permission denied")
)

// SourceExt is the extension of DRASM compilation units.
const SourceExt = ".drasm"

// FSSandbox reads compilation units from a jailed directory tree.
type FSSandbox struct {
	Root        string
	MaxFileSize int
}

func NewFSSandbox(root string, maxFileSize int) *FSSandbox {
	absRoot, _ := filepath.Abs(root)
	return &FSSandbox{
		Root:        absRoot,
		MaxFileSize: maxFileSize,
	}
}

func (s *FSSandbox) resolve(path string) (string, error) {
	clean := filepath.Join(s.Root, filepath.Clean(path))
	if clean != s.Root && !strings.HasPrefix(clean, s.Root+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return clean, nil
}

// ReadSource returns the text of the unit at path, relative to Root.
func (s *FSSandbox) ReadSource(path string) (string, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(clean)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return "", ErrPermissionDenied
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("stdlib/fs: %s is a directory", path)
	}
	if s.MaxFileSize > 0 && info.Size() > int64(s.MaxFileSize) {
		return "", ErrFileTooLarge
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return "", ErrPermissionDenied
		}
		return "", err
	}
	return string(data), nil
}

// ListSources returns every unit under Root, relative and sorted.
func (s *FSSandbox) ListSources() ([]string, error) {
	var units []string
	err := filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != SourceExt {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		units = append(units, rel)
		return nil
	})
	return units, err
}
