package extraction

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoExtraction is returned when no export file matches any
// discovery pattern in the configured directory.
var ErrNoExtraction = errors.New("no slack extraction file found")

// DefaultPatterns returns the filename patterns recognized as export files
func DefaultPatterns() []string {
	return []string{
		"hemingway_*.json",
		"slack_*.json",
		"*_slack_export.json",
	}
}

// Discoverer locates the newest export file in a directory.
// Directory and patterns are explicit so tests can point it at a
// synthetic file set.
type Discoverer struct {
	Dir      string
	Patterns []string
}

// NewDiscoverer creates a Discoverer for dir. With no patterns given,
// the default export patterns are used.
func NewDiscoverer(dir string, patterns ...string) *Discoverer {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Discoverer{Dir: dir, Patterns: patterns}
}

type candidate struct {
	path  string
	mtime int64
}

// Discover scans the directory for files matching any pattern and
// returns the most recently modified match. Ties on modification time
// are broken by the lexicographically greatest filename so repeated
// runs over the same directory pick the same file.
func (d *Discoverer) Discover() (string, error) {
	seen := make(map[string]bool)
	var candidates []candidate

	for _, pattern := range d.Patterns {
		matches, err := filepath.Glob(filepath.Join(d.Dir, pattern))
		if err != nil {
			return "", err
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue // skip unreadable entries
			}
			candidates = append(candidates, candidate{
				path:  path,
				mtime: info.ModTime().UnixNano(),
			})
		}
	}

	if len(candidates) == 0 {
		return "", ErrNoExtraction
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].mtime != candidates[j].mtime {
			return candidates[i].mtime > candidates[j].mtime
		}
		return candidates[i].path > candidates[j].path
	})

	return candidates[0].path, nil
}
