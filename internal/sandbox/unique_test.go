package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	x := filepath.Join(dir, "x.txt")

	if got := UniquePath(x); got != x {
		t.Errorf("absent path should be returned as is, got %s", got)
	}

	touch(t, x)
	if got := UniquePath(x); got != filepath.Join(dir, "x_1.txt") {
		t.Errorf("expected x_1.txt, got %s", got)
	}

	touch(t, filepath.Join(dir, "x_1.txt"))
	if got := UniquePath(x); got != filepath.Join(dir, "x_2.txt") {
		t.Errorf("expected x_2.txt, got %s", got)
	}
}

func TestUniquePath_NoExtensionAndDotfile(t *testing.T) {
	dir := t.TempDir()
	mk := filepath.Join(dir, "Makefile")
	env := filepath.Join(dir, ".env")
	touch(t, mk)
	touch(t, env)

	if got := UniquePath(mk); got != filepath.Join(dir, "Makefile_1") {
		t.Errorf("got %s", got)
	}
	if got := UniquePath(env); got != filepath.Join(dir, ".env_1") {
		t.Errorf("got %s", got)
	}
}

func TestUniquePath_TimestampFallback(t *testing.T) {
	dir := t.TempDir()
	x := filepath.Join(dir, "x.txt")
	touch(t, x)
	touch(t, filepath.Join(dir, "x_1.txt"))
	touch(t, filepath.Join(dir, "x_2.txt"))

	fixed := time.Unix(1700000000, 0)
	got := uniquePath(x, 2, func() time.Time { return fixed })
	if want := filepath.Join(dir, "x_1700000000.txt"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestUniquePath_BrokenSymlinkCounts(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "l.txt")
	if err := os.Symlink(filepath.Join(dir, "nowhere"), link); err != nil {
		t.Skip("symlinks unavailable")
	}
	if got := UniquePath(link); got != filepath.Join(dir, "l_1.txt") {
		t.Errorf("dangling symlink must not be reused, got %s", got)
	}
}
