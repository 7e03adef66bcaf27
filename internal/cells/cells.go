// Package cells maps repository-relative paths into cell paths. The mapping
// lives in .affected/cells.toml and mirrors the cell layout the extraction
// tool reports; without a file everything falls into a single `root` cell.
package cells

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"affected/internal/labels"
)

// FileName is the cells config file name under .affected/
const FileName = "cells.toml"

type cellsFile struct {
	Cells map[string]string `toml:"cells"`
}

type cell struct {
	name string
	root string // repo-relative, "." for the repo root
}

// Mapping resolves repository-relative paths to cell paths.
type Mapping struct {
	// sorted by root length descending so the most specific cell wins
	cells []cell
}

// Default returns a mapping with a single `root` cell at the repo root.
func Default() *Mapping {
	return &Mapping{cells: []cell{{name: "root", root: "."}}}
}

// Load reads a cells.toml file.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f cellsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(f.Cells) == 0 {
		return nil, fmt.Errorf("%s has no [cells] entries", path)
	}

	m := &Mapping{cells: make([]cell, 0, len(f.Cells))}
	for name, root := range f.Cells {
		m.cells = append(m.cells, cell{name: name, root: filepath.ToSlash(filepath.Clean(root))})
	}
	sort.Slice(m.cells, func(i, j int) bool {
		if len(m.cells[i].root) != len(m.cells[j].root) {
			return len(m.cells[i].root) > len(m.cells[j].root)
		}
		return m.cells[i].name < m.cells[j].name
	})
	return m, nil
}

// LoadOrDefault loads .affected/cells.toml under repoRoot, falling back to
// the single-cell default when the file does not exist.
func LoadOrDefault(repoRoot string) (*Mapping, error) {
	path := filepath.Join(repoRoot, ".affected", FileName)
	m, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return m, err
}

// WriteDefault writes a skeleton cells.toml under repoRoot/.affected.
func WriteDefault(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".affected")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(cellsFile{Cells: map[string]string{"root": "."}})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0644)
}

// CellPath translates a repository-relative file path into a cell path by
// longest-root match, e.g. `fbcode/lib/a.c` -> `fbcode//lib/a.c`.
func (m *Mapping) CellPath(repoRelPath string) labels.CellPath {
	p := filepath.ToSlash(repoRelPath)
	for _, c := range m.cells {
		if c.root == "." {
			continue
		}
		if p == c.root {
			return labels.CellPath(c.name + "//")
		}
		if strings.HasPrefix(p, c.root+"/") {
			return labels.CellPath(c.name + "//" + p[len(c.root)+1:])
		}
	}
	// Fall back to the cell rooted at "."
	for _, c := range m.cells {
		if c.root == "." {
			return labels.CellPath(c.name + "//" + p)
		}
	}
	return labels.CellPath("root//" + p)
}
