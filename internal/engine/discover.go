// internal/engine/discover.go
package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// skippedDirs are never descended into during discovery.
var skippedDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
}

// Discover expands targets into a sorted, de-duplicated list of files.
// Directories are walked for files with one of the extensions; files named
// explicitly are always included. A leading ~ is expanded.
func Discover(targets []string, extensions []string) ([]string, error) {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, target := range targets {
		path, err := homedir.Expand(target)
		if err != nil {
			return nil, fmt.Errorf("expanding target %q: %w", target, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", target, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && skippedDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if exts[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", target, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
