package squashfs

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Sink is the external collaborator (spec.md §6) that receives the
// directory tree an Extractor walks. Paths passed to every method are
// slash-separated and relative to the extraction root; implementations own
// translating that into whatever backing store they write to.
type Sink interface {
	Mkdir(path string) error
	WriteFile(path string, data []byte) error
	Symlink(target, path string) error
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid int) error
	Setxattr(path, key string, value []byte) error
}

// OSSink writes extracted entries under Root on the host filesystem, the
// default Sink used by cmd/sqfs.
type OSSink struct {
	Root string
}

// NewOSSink returns a Sink rooted at dir. dir is created lazily: the first
// Mkdir("") call (for the image's root directory) brings it into being.
func NewOSSink(dir string) *OSSink {
	return &OSSink{Root: dir}
}

func (s *OSSink) path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

func (s *OSSink) Mkdir(rel string) error {
	return os.MkdirAll(s.path(rel), 0o755)
}

func (s *OSSink) WriteFile(rel string, data []byte) error {
	full := s.path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// Symlink creates target as the link text of path. Any pre-existing entry
// at path (from a prior extraction of the same image) is replaced.
func (s *OSSink) Symlink(target, rel string) error {
	full := s.path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(full); err == nil {
		os.Remove(full)
	}
	return os.Symlink(target, full)
}

func (s *OSSink) Chmod(rel string, mode uint32) error {
	return os.Chmod(s.path(rel), os.FileMode(mode&0o7777))
}

// Chown uses Lchown (not Chown) so that applying ownership to a symlink
// sets the link itself, not whatever it points to.
func (s *OSSink) Chown(rel string, uid, gid int) error {
	return unix.Lchown(s.path(rel), uid, gid)
}

// Setxattr uses Lsetxattr for the same reason Chown uses Lchown.
func (s *OSSink) Setxattr(rel, key string, value []byte) error {
	return unix.Lsetxattr(s.path(rel), key, value, 0)
}

var (
	_ Sink = (*OSSink)(nil)
)
