package squashfs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/NoNoNGU/squashfs"
)

func openFixture(t *testing.T) *squashfs.Superblock {
	t.Helper()
	img := buildTestImage(t)
	sb, err := squashfs.New(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sb
}

func TestExtractorRun(t *testing.T) {
	sb := openFixture(t)
	dir := t.TempDir()

	ext := squashfs.NewExtractor(sb, squashfs.NewOSSink(dir))
	if err := ext.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	hello, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	if err != nil {
		t.Fatalf("reading hello.txt: %v", err)
	}
	if string(hello) != "hello\n" {
		t.Errorf("hello.txt = %q, want %q", hello, "hello\n")
	}

	nested, err := os.ReadFile(filepath.Join(dir, "sub", "nested.txt"))
	if err != nil {
		t.Fatalf("reading sub/nested.txt: %v", err)
	}
	if string(nested) != "nested\n" {
		t.Errorf("sub/nested.txt = %q, want %q", nested, "nested\n")
	}

	sparse, err := os.ReadFile(filepath.Join(dir, "sparse"))
	if err != nil {
		t.Fatalf("reading sparse: %v", err)
	}
	if len(sparse) != 65536 {
		t.Fatalf("sparse length = %d, want 65536", len(sparse))
	}
	if !bytes.Equal(sparse, make([]byte, 65536)) {
		t.Errorf("sparse content is not all zero")
	}

	linkTarget, err := os.Readlink(filepath.Join(dir, "link"))
	if err != nil {
		t.Fatalf("reading link: %v", err)
	}
	if linkTarget != "hello.txt" {
		t.Errorf("link target = %q, want %q", linkTarget, "hello.txt")
	}

	st := ext.Stats
	if st.Dirs != 2 {
		t.Errorf("Dirs = %d, want 2", st.Dirs)
	}
	if st.Files != 3 {
		t.Errorf("Files = %d, want 3", st.Files)
	}
	if st.Symlinks != 1 {
		t.Errorf("Symlinks = %d, want 1", st.Symlinks)
	}
	if st.Other != 0 {
		t.Errorf("Other = %d, want 0", st.Other)
	}
	if st.TotalEntries() != 6 {
		t.Errorf("TotalEntries = %d, want 6 (matches inode_count)", st.TotalEntries())
	}
	if st.TotalBytes != 6+7+65536 {
		t.Errorf("TotalBytes = %d, want %d", st.TotalBytes, 6+7+65536)
	}
	if st.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2 (sub/nested.txt)", st.MaxDepth)
	}
	if len(st.FragmentsUsed) != 0 {
		t.Errorf("FragmentsUsed = %d, want 0 (no file used a tail fragment)", len(st.FragmentsUsed))
	}
}

func TestExtractorWithoutMetadata(t *testing.T) {
	sb := openFixture(t)
	dir := t.TempDir()

	ext := squashfs.NewExtractor(sb, squashfs.NewOSSink(dir), squashfs.WithoutMetadata())
	if err := ext.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello.txt")); err != nil {
		t.Fatalf("hello.txt missing: %v", err)
	}
}

func TestExtractorConcurrency(t *testing.T) {
	sb := openFixture(t)
	dir := t.TempDir()

	ext := squashfs.NewExtractor(sb, squashfs.NewOSSink(dir), squashfs.WithConcurrency(4))
	if err := ext.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ext.Stats.Files != 3 {
		t.Errorf("Files = %d, want 3", ext.Stats.Files)
	}
}
