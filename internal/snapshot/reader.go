package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"affected/internal/errors"
	"affected/internal/labels"
)

// record is one line of the snapshot stream. Exactly one of Targets or
// Error is set; a package is never both healthy and erroring. Error is a
// pointer so that an error state with an empty message stays
// distinguishable from a healthy package.
type record struct {
	Package string   `json:"package"`
	Targets []Target `json:"targets"`
	Error   *string  `json:"error"`
}

// Read ingests a snapshot record stream. The stream is consumed
// sequentially; the whole dump never needs to be in memory at once.
// Duplicate package keys are fatal: they indicate a malformed or
// concurrently-mutated extraction.
func Read(r io.Reader) (*Snapshot, error) {
	s := newSnapshot()

	scanner := bufio.NewScanner(r)
	// Packages with many targets produce long lines
	scanner.Buffer(make([]byte, 0, 1<<16), 64<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(errors.StreamMalformed, err, "snapshot stream line %d", lineNo)
		}
		if err := s.addRecord(&rec, lineNo); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.StreamMalformed, err, "snapshot stream line %d", lineNo+1)
	}
	return s, nil
}

func (s *Snapshot) addRecord(rec *record, lineNo int) error {
	pkg := labels.Package(rec.Package)
	if !pkg.Valid() {
		return errors.New(errors.StreamMalformed, "line %d: invalid package key %q", lineNo, rec.Package)
	}
	if s.packages[pkg] {
		return errors.New(errors.DuplicatePackage, "package %q appears twice in one snapshot stream", rec.Package)
	}
	if rec.Error != nil && len(rec.Targets) > 0 {
		return errors.New(errors.StreamMalformed, "line %d: package %q has both targets and an error", lineNo, rec.Package)
	}
	s.packages[pkg] = true

	if rec.Error != nil {
		s.errors[pkg] = *rec.Error
		return nil
	}

	for i := range rec.Targets {
		t := rec.Targets[i]
		t.Package = pkg
		if t.Name == "" {
			return errors.New(errors.StreamMalformed, "line %d: package %q has a target without a name", lineNo, rec.Package)
		}
		// A target duplicated within its own package record is the same
		// malformation as a duplicated package.
		if _, exists := s.byLabel[t.Label()]; exists {
			return errors.New(errors.DuplicatePackage, "target %q defined twice", t.Label())
		}
		copied := t
		s.byLabel[copied.Label()] = &copied
		s.targets = append(s.targets, &copied)
		s.numEdges += len(copied.Deps)
	}
	return nil
}

// Load reads a snapshot from a file. Files ending in .zst are
// transparently decompressed.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "opening snapshot %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(errors.IOError, err, "decompressing snapshot %s", path)
		}
		defer dec.Close()
		r = dec
	}

	s, err := Read(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadPair loads the base and diff snapshots concurrently. The two indices
// share no mutable state, so each is built single-writer on its own
// goroutine and is immutable by the time LoadPair returns.
func LoadPair(ctx context.Context, load func() (*Snapshot, error), loadOther func() (*Snapshot, error)) (*Snapshot, *Snapshot, error) {
	var base, diff *Snapshot
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		base, err = load()
		return err
	})
	g.Go(func() error {
		var err error
		diff, err = loadOther()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return base, diff, nil
}
