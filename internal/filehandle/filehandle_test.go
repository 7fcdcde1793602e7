package filehandle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rescale/xferengine/internal/rangeset"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	c := New()
	defer c.Close()

	part1 := []byte("hello ")
	part2 := []byte("world!")
	total := int64(len(part1) + len(part2))

	if err := c.Write(path, rangeset.Range{Low: 0, High: int64(len(part1))}, part1, total); err != nil {
		t.Fatalf("write part1: %v", err)
	}
	if err := c.Write(path, rangeset.Range{Low: int64(len(part1)), High: total}, part2, total); err != nil {
		t.Fatalf("write part2: %v", err)
	}

	got, err := c.Read(path, rangeset.Range{Low: 0, High: total})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := append(append([]byte{}, part1...), part2...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadSharesHandleAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(path, []byte("abcdefgh"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New()
	defer c.Close()

	b1, err := c.Read(path, rangeset.Range{Low: 0, High: 4})
	if err != nil {
		t.Fatalf("read1: %v", err)
	}
	if string(b1) != "abcd" {
		t.Fatalf("b1 = %q", b1)
	}
	b2, err := c.Read(path, rangeset.Range{Low: 4, High: 8})
	if err != nil {
		t.Fatalf("read2: %v", err)
	}
	if string(b2) != "efgh" {
		t.Fatalf("b2 = %q", b2)
	}
}

func TestClosePermitsReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, []byte("xyz"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New()
	if _, err := c.Read(path, rangeset.Range{Low: 0, High: 3}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := c.Read(path, rangeset.Range{Low: 0, High: 3}); err != nil {
		t.Fatalf("read after close: %v", err)
	}
}

func TestUnlinkToleratesMissing(t *testing.T) {
	if err := Unlink(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
}

func TestPathFromFileURL(t *testing.T) {
	if got := PathFromFileURL("file:///tmp/x"); got != "/tmp/x" {
		t.Fatalf("got %q", got)
	}
}
