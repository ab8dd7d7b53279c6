package squashfs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
)

// Ensure Superblock satisfies the fs package's read-only filesystem
// interfaces, so it can be handed directly to anything that accepts an
// fs.FS (archive/zip-style tooling, http.FileServer, etc).
var (
	_ fs.FS         = (*Superblock)(nil)
	_ fs.ReadDirFS  = (*Superblock)(nil)
	_ fs.StatFS     = (*Superblock)(nil)
	_ fs.ReadLinkFS = (*Superblock)(nil)
)

// Open opens the image at path and parses its superblock. The returned
// Superblock owns the underlying file and will close it on Close.
func Open(name string, opts ...Option) (*Superblock, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	sb, err := New(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	sb.closer = f
	return sb, nil
}

// root lazily decodes and caches the image's root inode.
func (s *Superblock) root() (*Inode, error) {
	err := s.rootOnce.do(func() error {
		ref := inodeRef(s.RootInode)
		ino, err := s.GetInodeRef(ref)
		if err != nil {
			return err
		}
		s.rootIno = ino
		s.rootInoN = uint64(ino.Ino) + s.inoOfft
		s.setInodeRefCache(ino.Ino, ref)
		return nil
	})
	return s.rootIno, err
}

// Open implements fs.FS. name is a slash-separated path relative to the
// image root ("." selects the root directory itself).
func (s *Superblock) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	root, err := s.root()
	if err != nil {
		return nil, err
	}

	ino := root
	if name != "." {
		ino, err = root.LookupRelativeInodePath(noopCtx, name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
	}

	return ino.OpenFile(name), nil
}

// ReadDir implements fs.ReadDirFS.
func (s *Superblock) ReadDir(name string) ([]fs.DirEntry, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dd, ok := f.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	return dd.ReadDir(-1)
}

// Stat implements fs.StatFS.
func (s *Superblock) Stat(name string) (fs.FileInfo, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Stat()
}

// ReadLink implements fs.ReadLinkFS: it resolves name without following a
// final symlink component, and returns its target text.
func (s *Superblock) ReadLink(name string) (string, error) {
	ino, err := s.lookupNoFollow(name)
	if err != nil {
		return "", err
	}
	target, err := ino.Readlink()
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	return string(target), nil
}

// Lstat implements fs.ReadLinkFS: it returns the info of name itself
// without following any symlink. Open and Stat resolve paths the same way,
// so Stat on a symlink also returns the symlink's own info.
func (s *Superblock) Lstat(name string) (fs.FileInfo, error) {
	ino, err := s.lookupNoFollow(name)
	if err != nil {
		return nil, err
	}
	return &fileinfo{name: path.Base(name), ino: ino}, nil
}

func (s *Superblock) lookupNoFollow(name string) (*Inode, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrInvalid}
	}
	root, err := s.root()
	if err != nil {
		return nil, err
	}
	if name == "." {
		return root, nil
	}
	ino, err := root.LookupRelativeInodePath(noopCtx, name)
	if err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	return ino, nil
}

// Summary reports the top-line facts about an open image (version, block
// size, compression) as a single line.
func (s *Superblock) Summary() string {
	return fmt.Sprintf("SquashFS %d.%d, block size %d, compression %s", s.VMajor, s.VMinor, s.BlockSize, s.Comp)
}
