package squashfs_test

import (
	"testing"

	"github.com/NoNoNGU/squashfs"
)

func TestXattrs(t *testing.T) {
	sb := openFixture(t)

	hello, err := sb.FindInode("hello.txt", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}

	pairs, err := sb.Xattrs(hello.XattrIdx)
	if err != nil {
		t.Fatalf("Xattrs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].Name != "user.comment" {
		t.Errorf("Name = %q, want %q", pairs[0].Name, "user.comment")
	}
	if string(pairs[0].Value) != "hi" {
		t.Errorf("Value = %q, want %q", pairs[0].Value, "hi")
	}
}

func TestXattrsNoneForPlainFile(t *testing.T) {
	sb := openFixture(t)

	nested, err := sb.FindInode("sub/nested.txt", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if nested.XattrIdx != squashfs.NoXattr {
		t.Fatalf("XattrIdx = %d, want NoXattr", nested.XattrIdx)
	}
	pairs, err := sb.Xattrs(nested.XattrIdx)
	if err != nil {
		t.Fatalf("Xattrs: %v", err)
	}
	if pairs != nil {
		t.Errorf("pairs = %v, want nil", pairs)
	}
}
