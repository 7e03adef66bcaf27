// Package scope loads target-selection scope files. A scope file is a small
// YAML document CI jobs use to pin their universe of interest:
//
//	name: mobile-ci
//	universe:
//	  - apps//mobile/...
//	  - libs//ui:
package scope

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"affected/internal/labels"
)

// Scope is a named set of universe patterns.
type Scope struct {
	Name     string   `yaml:"name"`
	Universe []string `yaml:"universe"`
}

// Load reads and validates a scope file.
func Load(path string) (*Scope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scope
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scope file %s: %w", path, err)
	}
	if len(s.Universe) == 0 {
		return nil, fmt.Errorf("scope file %s has no universe patterns", path)
	}
	return &s, nil
}

// Patterns parses the scope's universe into validated patterns. Explicit
// single-target patterns are rejected, matching the universe rules of the
// determine command.
func (s *Scope) Patterns() ([]labels.Pattern, error) {
	return ParseUniverse(s.Universe)
}

// ParseUniverse validates a list of universe pattern strings.
func ParseUniverse(raw []string) ([]labels.Pattern, error) {
	patterns := make([]labels.Pattern, 0, len(raw))
	for _, u := range raw {
		p, err := labels.ParsePattern(u)
		if err != nil {
			return nil, err
		}
		if p.IsExplicit() {
			return nil, fmt.Errorf("universe should not use explicit targets, only patterns like `cell//dir/...` and `cell//dir:`, got %q", u)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
