package utils

import (
	"io/fs"
	"path/filepath"

	ds "github.com/bmatcuk/doublestar/v4"
)

// GlobRecursive walks base and returns files whose slash-separated path relative to base
// matches the doublestar pattern (supports **) and none of the exclude patterns.
func GlobRecursive(base, pattern string, exclude ...string) ([]string, error) {
	matches := []string{}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := ds.Match(pattern, rel)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		skip, err := MatchAny(exclude, rel)
		if err != nil {
			return err
		}
		if !skip {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

// MatchAny reports whether the slash-separated name matches any of the doublestar patterns.
func MatchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := ds.Match(p, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
