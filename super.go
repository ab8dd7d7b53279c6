package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// magic is the little-endian encoding of the 4-byte SquashFS signature
// "hsqs" (spec.md §3: magic constant 0x73717368).
const magic = 0x73717368

// superblockSize is the fixed 96-byte on-disk header size (spec.md §3).
const superblockSize = 96

// noTable is the sentinel offset meaning "this table is absent".
const noTable = 0xFFFFFFFFFFFFFFFF

// Superblock is an open SquashFS v4 image: the parsed 96-byte header plus
// the runtime state (metablock cache, lazily-loaded lookup tables) needed
// to decode the rest of the image. Callers obtain one with Open or New.
type Superblock struct {
	fs     io.ReaderAt
	closer io.Closer // non-nil when owned (opened via Open, not New)

	Magic       uint32
	InodeCnt    uint32
	ModTime     int32
	BlockSize   uint32
	BlockLog    uint16
	FragCount   uint32
	Comp        SquashComp
	Flags       SquashFlags
	IdCount     uint16
	VMajor      uint16
	VMinor      uint16
	RootInode   uint64
	BytesUsed   uint64

	IdTableStart      uint64
	XattrIdTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	ExportTableStart  uint64

	mb *metablockStream

	idOnce  onceErr
	idList  []uint32

	fragOnce  onceErr
	fragments []fragmentEntry

	xattrOnce   onceErr
	xattrLookup []xattrLookupEntry
	xattrBase   uint64

	rootOnce onceErr
	rootIno  *Inode
	rootInoN uint64

	// inoOfft is set via the InodeOffset Option and is added to the root
	// inode's number to form rootInoN. Inode.Ino values and GetInode
	// lookups are not shifted by it.
	inoOfft uint64

	// inoIdx caches inode-number -> inodeRef mappings discovered while
	// walking directories, so a later GetInode by number (hardlink
	// resolution, NFS-style export lookups) avoids a full tree walk.
	inoIdxL sync.RWMutex
	inoIdx  map[uint32]inodeRef
}

// New parses the superblock of an already-open image and prepares the
// runtime readers. The caller retains ownership of fs (New never closes
// it); use Open to have the Superblock own a *os.File instead.
func New(fs io.ReaderAt, opts ...Option) (*Superblock, error) {
	sb := &Superblock{fs: fs}

	head := make([]byte, superblockSize)
	if _, err := io.ReadFull(io.NewSectionReader(fs, 0, superblockSize), head); err != nil {
		return nil, fmt.Errorf("%w: reading superblock: %w", ErrTruncated, err)
	}

	if err := sb.unmarshal(head); err != nil {
		return nil, err
	}

	if !sb.Comp.available() {
		return nil, fmt.Errorf("%w: compressor %s", ErrUnsupportedCompressor, sb.Comp)
	}

	sb.mb = newMetablockStream(sb)
	sb.inoIdx = make(map[uint32]inodeRef)

	for _, opt := range opts {
		if err := opt(sb); err != nil {
			return nil, err
		}
	}

	return sb, nil
}

// setInodeRefCache records where an inode number was found on disk, so a
// later lookup by number can skip straight to it.
func (s *Superblock) setInodeRefCache(ino uint32, ref inodeRef) {
	s.inoIdxL.Lock()
	s.inoIdx[ino] = ref
	s.inoIdxL.Unlock()
}

func (s *Superblock) unmarshal(d []byte) error {
	if len(d) < superblockSize {
		return fmt.Errorf("%w: short superblock", ErrTruncated)
	}

	order := binary.LittleEndian

	s.Magic = order.Uint32(d[0:4])
	if s.Magic != magic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrBadImage, s.Magic)
	}

	s.InodeCnt = order.Uint32(d[4:8])
	s.ModTime = int32(order.Uint32(d[8:12]))
	s.BlockSize = order.Uint32(d[12:16])
	s.FragCount = order.Uint32(d[16:20])
	s.Comp = SquashComp(order.Uint16(d[20:22]))
	s.BlockLog = order.Uint16(d[22:24])
	s.Flags = SquashFlags(order.Uint16(d[24:26]))
	s.IdCount = order.Uint16(d[26:28])
	s.VMajor = order.Uint16(d[28:30])
	s.VMinor = order.Uint16(d[30:32])
	s.RootInode = order.Uint64(d[32:40])
	s.BytesUsed = order.Uint64(d[40:48])
	s.IdTableStart = order.Uint64(d[48:56])
	s.XattrIdTableStart = order.Uint64(d[56:64])
	s.InodeTableStart = order.Uint64(d[64:72])
	s.DirTableStart = order.Uint64(d[72:80])
	s.FragTableStart = order.Uint64(d[80:88])
	s.ExportTableStart = order.Uint64(d[88:96])

	if s.VMajor != 4 {
		return fmt.Errorf("%w: version %d.%d, only 4.x is supported", ErrBadImage, s.VMajor, s.VMinor)
	}
	if s.BlockSize == 0 || s.BlockSize&(s.BlockSize-1) != 0 {
		return fmt.Errorf("%w: block size %d is not a power of two", ErrBadImage, s.BlockSize)
	}
	if uint32(1)<<s.BlockLog != s.BlockSize {
		return fmt.Errorf("%w: block_log %d does not match block size %d", ErrBadImage, s.BlockLog, s.BlockSize)
	}

	return nil
}

// Close releases resources owned by the Superblock (the underlying file,
// when opened via Open). Calling Close on a Superblock obtained from New
// is a no-op, since the caller retains ownership of that reader.
func (s *Superblock) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
