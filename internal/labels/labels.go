// Package labels defines target labels, package keys and target patterns.
// A label looks like `cell//path/to/pkg:name`, a package like
// `cell//path/to/pkg`, and a cell path like `cell//path/to/file.txt`.
package labels

import (
	"fmt"
	"strings"
)

// Label uniquely identifies a single buildable target.
type Label string

// Package identifies the build file that defines a set of targets.
type Package string

// CellPath is a file path qualified with the cell it lives in.
type CellPath string

// New builds a label from its package and target name.
func New(pkg Package, name string) Label {
	return Label(string(pkg) + ":" + name)
}

// Package returns the package portion of the label.
func (l Label) Package() Package {
	if i := strings.LastIndexByte(string(l), ':'); i >= 0 {
		return Package(l[:i])
	}
	return Package(l)
}

// Name returns the target name portion of the label.
func (l Label) Name() string {
	if i := strings.LastIndexByte(string(l), ':'); i >= 0 {
		return string(l[i+1:])
	}
	return ""
}

// Valid reports whether the label has the `cell//pkg:name` shape.
func (l Label) Valid() bool {
	i := strings.LastIndexByte(string(l), ':')
	if i <= 0 || i == len(l)-1 {
		return false
	}
	return Package(l[:i]).Valid()
}

// Valid reports whether the package has a cell qualifier.
func (p Package) Valid() bool {
	i := strings.Index(string(p), "//")
	return i > 0 && !strings.Contains(string(p), ":")
}

// AsCellPath returns the package directory as a cell path.
func (p Package) AsCellPath() CellPath {
	return CellPath(p)
}

// Cell returns the cell name of the path.
func (c CellPath) Cell() string {
	if i := strings.Index(string(c), "//"); i >= 0 {
		return string(c[:i])
	}
	return ""
}

// Path returns the cell-relative portion of the path.
func (c CellPath) Path() string {
	if i := strings.Index(string(c), "//"); i >= 0 {
		return string(c[i+2:])
	}
	return string(c)
}

// patternKind distinguishes the three pattern shapes.
type patternKind int

const (
	patternRecursive patternKind = iota // cell//dir/...
	patternPackage                      // cell//dir:
	patternExplicit                     // cell//dir:name
)

// Pattern selects a set of targets, e.g. `cell//dir/...` (everything under
// dir), `cell//dir:` (the targets of one package) or `cell//dir:name`
// (a single target).
type Pattern struct {
	raw  string
	pkg  string
	name string
	kind patternKind
}

// ParsePattern parses and validates a target pattern. Patterns must carry a
// cell qualifier; `//dir/...` is rejected because filtering cannot infer a
// default cell.
func ParsePattern(s string) (Pattern, error) {
	i := strings.Index(s, "//")
	if i <= 0 {
		return Pattern{}, fmt.Errorf("pattern must have a cell qualifier like `cell//dir/...`, got %q", s)
	}
	switch {
	case strings.HasSuffix(s, "/..."):
		return Pattern{raw: s, pkg: strings.TrimSuffix(s, "/..."), kind: patternRecursive}, nil
	case strings.HasSuffix(s, "..."):
		// `cell//...` selects the whole cell
		return Pattern{raw: s, pkg: strings.TrimSuffix(s, "..."), kind: patternRecursive}, nil
	case strings.HasSuffix(s, ":"):
		return Pattern{raw: s, pkg: strings.TrimSuffix(s, ":"), kind: patternPackage}, nil
	case strings.Contains(s[i:], ":"):
		j := strings.LastIndexByte(s, ':')
		return Pattern{raw: s, pkg: s[:j], name: s[j+1:], kind: patternExplicit}, nil
	default:
		// A bare package selects exactly that package, like `cell//dir:`.
		return Pattern{raw: s, pkg: s, kind: patternPackage}, nil
	}
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// IsExplicit reports whether the pattern names a single target.
func (p Pattern) IsExplicit() bool { return p.kind == patternExplicit }

// Matches reports whether the label is selected by the pattern.
func (p Pattern) Matches(l Label) bool {
	if p.kind == patternExplicit {
		return string(l) == p.pkg+":"+p.name
	}
	return p.MatchesPackage(l.Package())
}

// MatchesPackage reports whether any target of the package could be selected.
func (p Pattern) MatchesPackage(pkg Package) bool {
	switch p.kind {
	case patternRecursive:
		s := string(pkg)
		if !strings.HasPrefix(s, p.pkg) {
			return false
		}
		rest := s[len(p.pkg):]
		return rest == "" || strings.HasPrefix(rest, "/") || strings.HasSuffix(p.pkg, "//")
	default:
		return string(pkg) == p.pkg
	}
}

// AnyMatch reports whether the label is selected by at least one pattern.
// An empty pattern list selects everything.
func AnyMatch(patterns []Pattern, l Label) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p.Matches(l) {
			return true
		}
	}
	return false
}
