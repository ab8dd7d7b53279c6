package squashfs

import (
	"context"
	"strings"
)

// noopCtx is handed to the context.Context parameters carried by
// LookupRelativeInode/LookupRelativeInodePath when a caller (fs.FS methods,
// FindInode) has none of its own to propagate; none of the lookup path
// currently does anything context-sensitive, but the parameter is kept so a
// future cancellable backing store does not need a signature change.
var noopCtx = context.Background()

// maxSymlinkDepth bounds how many symlink hops FindInode will follow
// before giving up. Without this an image containing a symlink cycle (or
// one deliberately crafted to be adversarial) would recurse forever.
const maxSymlinkDepth = 40

// FindInode resolves a slash-separated path against the image root,
// transparently following symlinks encountered as intermediate path
// components and, optionally, a symlink in the final component too.
// followLast controls that last-component behavior: false gives Lstat-like
// semantics (the symlink's own inode), true gives Stat-like semantics (the
// inode it ultimately points to).
//
// ".." components walk up via the current directory's ParentIno rather
// than being treated as an ordinary entry name, since SquashFS directories
// do not store "." or ".." as real entries.
func (sb *Superblock) FindInode(name string, followLast bool) (*Inode, error) {
	root, err := sb.root()
	if err != nil {
		return nil, err
	}

	cur := root
	queue := splitPath(name)
	depth := 0

	for len(queue) > 0 {
		comp := queue[0]
		queue = queue[1:]

		switch comp {
		case "", ".":
			continue
		case "..":
			if cur.IsDir() && cur.ParentIno != 0 {
				parent, err := sb.GetInode(uint64(cur.ParentIno))
				if err != nil {
					return nil, err
				}
				cur = parent
			}
			continue
		}

		next, err := cur.LookupRelativeInode(noopCtx, comp)
		if err != nil {
			return nil, err
		}

		isLast := len(queue) == 0
		if next.Type.IsSymlink() && (!isLast || followLast) {
			depth++
			if depth > maxSymlinkDepth {
				return nil, ErrTooManySymlinks
			}

			target, err := next.Readlink()
			if err != nil {
				return nil, err
			}
			targetStr := string(target)
			if strings.HasPrefix(targetStr, "/") {
				cur = root
			}
			queue = append(splitPath(targetStr), queue...)
			continue
		}

		cur = next
	}

	return cur, nil
}

// splitPath breaks a slash-separated path into non-empty components,
// tolerating a leading/trailing slash and repeated separators.
func splitPath(name string) []string {
	name = strings.Trim(name, "/")
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}
