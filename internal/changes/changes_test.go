package changes

import (
	"strings"
	"testing"

	"affected/internal/cells"
	"affected/internal/labels"
)

func TestRead(t *testing.T) {
	input := `M pkg/a.c
A	pkg/b.c
pkg/c.c

# comment
D old/gone.c
pkg/a.c
`
	s, err := Read(strings.NewReader(input), cells.Default())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4 (deduplicated)", s.Len())
	}
	for _, want := range []string{"root//pkg/a.c", "root//pkg/b.c", "root//pkg/c.c", "root//old/gone.c"} {
		if !s.Contains(labels.CellPath(want)) {
			t.Errorf("missing %s", want)
		}
	}
	if s.Contains("root//pkg/d.c") {
		t.Error("unexpected membership")
	}
}

func TestContainsPackage(t *testing.T) {
	s, err := Read(strings.NewReader("pkg/sub\n"), cells.Default())
	if err != nil {
		t.Fatal(err)
	}
	if !s.ContainsPackage("root//pkg/sub") {
		t.Error("directory listing should mark the package changed")
	}
	if s.ContainsPackage("root//pkg") {
		t.Error("parent package should not be marked")
	}
}

func TestReadEmpty(t *testing.T) {
	s, err := Read(strings.NewReader(""), cells.Default())
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsEmpty() {
		t.Error("expected empty set")
	}
}

func TestStatusLetterNotAPath(t *testing.T) {
	// A bare path that happens to start with "M " stripped; a path with no
	// status prefix is taken whole.
	s, err := Read(strings.NewReader("Makefile\n"), cells.Default())
	if err != nil {
		t.Fatal(err)
	}
	if !s.Contains("root//Makefile") {
		t.Error("Makefile should be kept intact")
	}
}
