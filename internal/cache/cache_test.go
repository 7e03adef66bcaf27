package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"affected/internal/logging"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel, Output: &bytes.Buffer{}})
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t)
	stream := []byte(`{"package":"root//a","targets":[{"name":"x"}]}` + "\n")

	if err := c.Put("rev-abc", stream); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get("rev-abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || !bytes.Equal(got, stream) {
		t.Errorf("Get = %q, %v", got, ok)
	}
}

func TestGetMiss(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get("never-stored")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unexpected hit")
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("k", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("k", []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, ok, _ := c.Get("k")
	if !ok || string(got) != "two" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestCorruptEntryEvicted(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("k", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.conn.Exec("UPDATE extractions SET data = ? WHERE key = ?", []byte("garbage"), "k"); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("corrupt entry returned as hit")
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("corrupt entry not evicted, Len = %d", n)
	}
}

func TestGC(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("old", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("new", []byte("b")); err != nil {
		t.Fatal(err)
	}
	// Backdate one entry past the cutoff
	old := time.Now().Add(-48 * time.Hour).Unix()
	if _, err := c.conn.Exec("UPDATE extractions SET created_at = ? WHERE key = ?", old, "old"); err != nil {
		t.Fatal(err)
	}

	removed, err := c.GC(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok, _ := c.Get("new"); !ok {
		t.Error("fresh entry pruned")
	}
}

func TestDigestStable(t *testing.T) {
	if Digest([]byte("x")) != Digest([]byte("x")) {
		t.Error("digest not deterministic")
	}
	if Digest([]byte("x")) == Digest([]byte("y")) {
		t.Error("digest collision on different inputs")
	}
}
