package squashfs_test

import (
	"testing"
)

func TestFindInodePlainPath(t *testing.T) {
	sb := openFixture(t)

	ino, err := sb.FindInode("sub/nested.txt", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if ino.Ino != 4 {
		t.Errorf("Ino = %d, want 4", ino.Ino)
	}
}

func TestFindInodeSymlinkNoFollow(t *testing.T) {
	sb := openFixture(t)

	ino, err := sb.FindInode("link", false)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if !ino.Type.IsSymlink() {
		t.Errorf("Type = %v, want symlink", ino.Type)
	}
}

func TestFindInodeSymlinkFollow(t *testing.T) {
	sb := openFixture(t)

	ino, err := sb.FindInode("link", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if ino.Ino != 2 {
		t.Errorf("Ino = %d, want 2 (resolved through link -> hello.txt)", ino.Ino)
	}
}

func TestFindInodeDotDot(t *testing.T) {
	sb := openFixture(t)

	ino, err := sb.FindInode("sub/../hello.txt", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if ino.Ino != 2 {
		t.Errorf("Ino = %d, want 2", ino.Ino)
	}
}

func TestFindInodeMissing(t *testing.T) {
	sb := openFixture(t)

	if _, err := sb.FindInode("does/not/exist", true); err == nil {
		t.Fatalf("expected an error for a missing path")
	}
}

func TestFindInodeAbsolutePathThroughSymlink(t *testing.T) {
	// A leading slash on the looked-up path is accepted and the final
	// symlink is followed. link's target is relative, so the absolute-target
	// branch of FindInode is not exercised here.
	sb := openFixture(t)

	ino, err := sb.FindInode("/link", true)
	if err != nil {
		t.Fatalf("FindInode: %v", err)
	}
	if ino.Ino != 2 {
		t.Errorf("Ino = %d, want 2", ino.Ino)
	}
}
