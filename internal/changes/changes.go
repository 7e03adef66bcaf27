// Package changes models the changed-file set supplied to a run. The list
// comes from version-control tooling one responsibility boundary away; this
// package only parses and indexes it.
package changes

import (
	"bufio"
	"io"
	"os"
	"strings"

	"affected/internal/cells"
	"affected/internal/errors"
	"affected/internal/labels"
)

// Set is an immutable set of changed files, indexed as cell paths.
type Set struct {
	set  map[labels.CellPath]bool
	list []labels.CellPath // input order, deduplicated
}

// Read parses a changed-file list. Each non-empty line is a
// repository-relative path, optionally prefixed by a one-letter VCS status
// (`M path`, `A path`, `D path`, tab- or space-separated). Status letters
// are accepted and ignored: membership alone drives classification.
func Read(r io.Reader, mapping *cells.Mapping) (*Set, error) {
	s := &Set{set: make(map[labels.CellPath]bool)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		path := stripStatus(line)
		if path == "" {
			continue
		}
		cp := mapping.CellPath(path)
		if !s.set[cp] {
			s.set[cp] = true
			s.list = append(s.list, cp)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "reading changed-file list")
	}
	return s, nil
}

// Load reads a changed-file list from a file.
func Load(path string, mapping *cells.Mapping) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "opening changed-file list %s", path)
	}
	defer func() { _ = f.Close() }()
	return Read(f, mapping)
}

// stripStatus removes a leading one-letter VCS status marker, if present.
func stripStatus(line string) string {
	if len(line) >= 2 && (line[1] == ' ' || line[1] == '\t') {
		switch line[0] {
		case 'M', 'A', 'D', 'R', 'C', '?', '!':
			return strings.TrimSpace(line[2:])
		}
	}
	return line
}

// Contains reports whether the cell path is in the changed set.
func (s *Set) Contains(p labels.CellPath) bool {
	return s.set[p]
}

// ContainsPackage reports whether the package's directory itself is listed
// in the changed set. Listing a directory marks every target of that
// package as changed.
func (s *Set) ContainsPackage(pkg labels.Package) bool {
	return s.set[pkg.AsCellPath()]
}

// Len returns the number of distinct changed paths.
func (s *Set) Len() int { return len(s.list) }

// Paths returns the changed cell paths in input order.
func (s *Set) Paths() []labels.CellPath { return s.list }

// IsEmpty reports whether no files changed.
func (s *Set) IsEmpty() bool { return len(s.list) == 0 }
