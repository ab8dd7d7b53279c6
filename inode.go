package squashfs

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// Inode is a decoded SquashFS inode. Which fields are meaningful depends on
// Type: directories use StartBlock/Offset/ParentIno, regular files use
// StartBlock/Blocks/BlocksOfft/FragBlock/FragOfft, symlinks use SymTarget.
// Device, fifo and socket inodes (basic and extended) decode only the
// common header below; callers that need to special-case them check Type
// against DirType/FileType/SymlinkType etc from type.go.
type Inode struct {
	sb *Superblock

	Type    Type
	Perm    uint16
	UidIdx  uint16
	GidIdx  uint16
	ModTime int32
	Ino     uint32 // inode number

	StartBlock uint64
	NLink      uint32
	Size       uint64 // careful, actual on-disk size/meaning varies by type
	Offset     uint32 // uint16 on disk for directories
	ParentIno  uint32 // for directories
	SymTarget  []byte // the target path this symlink points to
	IdxCount   uint16 // index count for extended directories
	XattrIdx   uint32 // xattr table index, NoXattr if none
	Sparse     uint64 // extended file sparse byte count

	// fragment (tail block stored in the shared fragment table instead of
	// a dedicated data block)
	FragBlock uint32
	FragOfft  uint32

	// Blocks holds the raw on-disk block-size words (bit 24 set means
	// stored uncompressed, low 24 bits are the on-disk size; 0 means a
	// sparse hole). BlocksOfft[i] is the byte offset of block i relative
	// to StartBlock.
	Blocks     []uint32
	BlocksOfft []uint64
}

// NoXattr is the sentinel xattr index meaning "this inode carries no
// extended attributes".
const NoXattr = 0xFFFFFFFF

// noFrag is the sentinel fragment index meaning "this file has no tail
// fragment; all of its data lives in full-size blocks".
const noFrag = 0xFFFFFFFF

// GetInode resolves an inode by its on-disk inode number. Number 1 always
// refers to the image's root directory. Any other number must have been
// seen already (via a directory listing or a path lookup) for the lookup
// to succeed; the export table is never consulted.
func (sb *Superblock) GetInode(ino uint64) (*Inode, error) {
	if ino == 1 {
		return sb.root()
	}

	sb.inoIdxL.RLock()
	ref, ok := sb.inoIdx[uint32(ino)]
	sb.inoIdxL.RUnlock()
	if ok {
		return sb.GetInodeRef(ref)
	}

	return nil, fmt.Errorf("%w: inode %d not indexed (export table lookups are not implemented)", ErrBadImage, ino)
}

// GetInodeRef decodes the inode at the given 48-bit metadata reference
// (spec.md §4.5): a 16-byte common header, followed by a type-specific
// tail read transparently across metablock boundaries.
func (sb *Superblock) GetInodeRef(inor inodeRef) (*Inode, error) {
	r, err := sb.newInodeReader(inor)
	if err != nil {
		return nil, err
	}

	ino := &Inode{sb: sb, XattrIdx: NoXattr, FragBlock: noFrag}
	order := binary.LittleEndian

	if err := binary.Read(r, order, &ino.Type); err != nil {
		return nil, fmt.Errorf("%w: inode header: %w", ErrTruncated, err)
	}
	if err := binary.Read(r, order, &ino.Perm); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &ino.UidIdx); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &ino.GidIdx); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &ino.ModTime); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &ino.Ino); err != nil {
		return nil, err
	}

	switch ino.Type {
	case DirType:
		var u32 uint32
		var u16 uint16

		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		ino.StartBlock = uint64(u32)

		if err := binary.Read(r, order, &ino.NLink); err != nil {
			return nil, err
		}

		if err := binary.Read(r, order, &u16); err != nil {
			return nil, err
		}
		// spec.md §3/§9: basic directory file_size carries a +3 bias for
		// the implicit "." and ".." entries.
		if u16 < 3 {
			return nil, fmt.Errorf("%w: basic directory size %d underflows bias", ErrBadImage, u16)
		}
		ino.Size = uint64(u16) - 3

		if err := binary.Read(r, order, &u16); err != nil {
			return nil, err
		}
		ino.Offset = uint32(u16)

		if err := binary.Read(r, order, &ino.ParentIno); err != nil {
			return nil, err
		}

	case XDirType:
		var u32 uint32
		var u16 uint16

		if err := binary.Read(r, order, &ino.NLink); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		ino.Size = uint64(u32)

		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		ino.StartBlock = uint64(u32)

		if err := binary.Read(r, order, &ino.ParentIno); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.IdxCount); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &u16); err != nil {
			return nil, err
		}
		ino.Offset = uint32(u16)

		if err := binary.Read(r, order, &ino.XattrIdx); err != nil {
			return nil, err
		}

	case FileType:
		var u32 uint32

		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		ino.StartBlock = uint64(u32)

		if err := binary.Read(r, order, &ino.FragBlock); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.FragOfft); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		ino.Size = uint64(u32)

		if err := ino.readBlockList(r, sb.BlockSize); err != nil {
			return nil, err
		}

	case XFileType:
		if err := binary.Read(r, order, &ino.StartBlock); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.Size); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.Sparse); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.NLink); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.FragBlock); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.FragOfft); err != nil {
			return nil, err
		}
		if err := binary.Read(r, order, &ino.XattrIdx); err != nil {
			return nil, err
		}

		if err := ino.readBlockList(r, sb.BlockSize); err != nil {
			return nil, err
		}

	case SymlinkType, XSymlinkType:
		if err := binary.Read(r, order, &ino.NLink); err != nil {
			return nil, err
		}

		var u32 uint32
		if err := binary.Read(r, order, &u32); err != nil {
			return nil, err
		}
		if u32 > 4096 {
			return nil, fmt.Errorf("%w: symlink target length %d implausible", ErrBadImage, u32)
		}
		ino.Size = uint64(u32)

		buf := make([]byte, u32)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: symlink target: %w", ErrTruncated, err)
		}
		ino.SymTarget = buf

		if ino.Type == XSymlinkType {
			if err := binary.Read(r, order, &ino.XattrIdx); err != nil {
				return nil, err
			}
		}

	default:
		// Device, fifo, socket and their extended variants: the common
		// header is all the extractor needs to emit a placeholder.
	}

	return ino, nil
}

// readBlockList reads the per-block size word array following a regular
// file's fixed header (spec.md §4.5's "Block-size array length" rule: one
// word per full block, plus a final partial-block word only when the file
// has no tail fragment).
func (i *Inode) readBlockList(r io.Reader, blockSize uint32) error {
	blocks := int(i.Size / uint64(blockSize))
	if i.FragBlock == noFrag && i.Size%uint64(blockSize) != 0 {
		blocks++
	}

	i.Blocks = make([]uint32, blocks)
	i.BlocksOfft = make([]uint64, blocks)

	offt := uint64(0)
	order := binary.LittleEndian
	for n := 0; n < blocks; n++ {
		var u32 uint32
		if err := binary.Read(r, order, &u32); err != nil {
			return fmt.Errorf("%w: block size word %d: %w", ErrTruncated, n, err)
		}
		i.Blocks[n] = u32
		i.BlocksOfft[n] = offt
		offt += uint64(u32 &^ (1 << 24))
	}

	return nil
}

// ReadAt implements io.ReaderAt over the decompressed content of a regular
// file's data, reassembling full blocks, sparse holes and the tail
// fragment as described in spec.md §4.7. See datablocks.go.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	if i.Type != FileType && i.Type != XFileType {
		return 0, fs.ErrInvalid
	}
	return i.readDataAt(p, off)
}

// LookupRelativeInode looks up a single path component inside a directory
// inode.
func (i *Inode) LookupRelativeInode(ctx context.Context, name string) (*Inode, error) {
	if !i.IsDir() {
		return nil, ErrNotDirectory
	}

	dr, err := i.sb.dirReader(i, nil)
	if err != nil {
		return nil, err
	}
	for {
		ename, inoR, err := dr.next()
		if err != nil {
			if err == io.EOF {
				return nil, fs.ErrNotExist
			}
			return nil, err
		}

		if name == ename {
			found, err := i.sb.GetInodeRef(inoR)
			if err != nil {
				return nil, err
			}
			i.sb.setInodeRefCache(found.Ino, inoR)
			return found, nil
		}
	}
}

// LookupRelativeInodePath resolves a slash-separated path relative to i,
// without following symlinks encountered along the way (callers wanting
// symlink resolution use FindInode in path.go).
func (i *Inode) LookupRelativeInodePath(ctx context.Context, name string) (*Inode, error) {
	cur := i

	for {
		if len(name) == 0 {
			return cur, nil
		}
		pos := strings.IndexByte(name, '/')
		if pos == -1 {
			return cur.LookupRelativeInode(ctx, name)
		}
		if pos == 0 {
			name = name[1:]
			continue
		}
		next, err := cur.LookupRelativeInode(ctx, name[:pos])
		if err != nil {
			return nil, err
		}
		cur = next
		name = name[pos+1:]
	}
}

// Mode returns the inode's fs.FileMode, combining its permission bits with
// its SquashFS type.
func (i *Inode) Mode() fs.FileMode {
	return UnixToMode(uint32(i.Perm)) | i.Type.Mode()
}

func (i *Inode) IsDir() bool {
	return i.Type.IsDir()
}

// Readlink returns the stored symlink target. It returns ErrInvalid for
// any non-symlink inode.
func (i *Inode) Readlink() ([]byte, error) {
	if i.Type.IsSymlink() {
		return i.SymTarget, nil
	}
	return nil, fs.ErrInvalid
}
