package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomicCreatesParentsAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.soda")

	if err := WriteAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content = %q, want second", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "sub", "dst.bin")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyFileFailureLeavesNoPartialDestination(t *testing.T) {
	dir := t.TempDir()
	// Opening a directory succeeds but reading it fails mid-copy.
	src := filepath.Join(dir, "not-a-file")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	dst := filepath.Join(outDir, "dst.bin")

	if err := CopyFile(src, dst); err == nil {
		t.Fatal("expected copy from a directory to fail")
	}
	if Exists(dst) {
		t.Fatal("failed copy left a destination file")
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}

	if err := os.WriteFile(dst, []byte("kept"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err == nil {
		t.Fatal("expected copy from a directory to fail")
	}
	if got, _ := os.ReadFile(dst); string(got) != "kept" {
		t.Fatalf("failed copy clobbered destination: %q", got)
	}
}

func TestLinkOrCopyKeepsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.fbx")
	dst := filepath.Join(dir, "characters", "bob", "dst.fbx")
	if err := os.WriteFile(src, []byte("mesh"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LinkOrCopy(src, dst); err != nil {
		t.Fatal(err)
	}
	if !Exists(dst) {
		t.Fatal("expected destination to exist")
	}

	if err := os.WriteFile(src, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LinkOrCopy(filepath.Join(dir, "other"), dst); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) == "x" {
		t.Fatal("existing destination was overwritten")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Fatal("directories are not files")
	}
	if Exists(filepath.Join(dir, "missing")) {
		t.Fatal("missing file reported as existing")
	}
}
