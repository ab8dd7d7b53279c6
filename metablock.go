package squashfs

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// metablockCapacity is the maximum decompressed size of one on-disk
// metablock (spec.md §3: "at most 8192 bytes").
const metablockCapacity = 8192

// metablockStream implements C3: random access over the logical byte
// stream formed by concatenating decompressed metablocks, with a cache
// keyed by absolute on-disk offset. It replaces the teacher's two
// near-identical tableReader/inodeReader types (neither of which cached
// anything, per tableReader.go's own "TODO add buf cache" note) with one
// implementation shared by the inode table, directory table, fragment
// table, id table and xattr tables.
type metablockStream struct {
	sb *Superblock

	mu    sync.Mutex
	cache map[int64]cachedBlock

	// memo maps (tableStart, blockIndex) to the absolute on-disk offset of
	// that block's 2-byte header, letting locate avoid re-walking from the
	// table start on every call once a block has been located once
	// (spec.md §4.3: "implementations may memoize the mapping").
	memo map[memoKey]int64
}

type memoKey struct {
	tableStart int64
	blockIndex int64
}

type cachedBlock struct {
	data    []byte
	onDisk  int // on-disk size of the compressed/raw payload, header excluded
}

func newMetablockStream(sb *Superblock) *metablockStream {
	return &metablockStream{
		sb:    sb,
		cache: make(map[int64]cachedBlock),
		memo:  make(map[memoKey]int64),
	}
}

// readMetablock reads and decompresses the metablock whose 2-byte header
// starts at absOffset, caching the result.
func (m *metablockStream) readMetablock(absOffset int64) (data []byte, onDisk int, err error) {
	m.mu.Lock()
	if c, ok := m.cache[absOffset]; ok {
		m.mu.Unlock()
		return c.data, c.onDisk, nil
	}
	m.mu.Unlock()

	hdr := make([]byte, 2)
	if _, err := m.sb.fs.ReadAt(hdr, absOffset); err != nil {
		return nil, 0, fmt.Errorf("%w: metablock header at %d: %w", ErrTruncated, absOffset, err)
	}
	raw := binary.LittleEndian.Uint16(hdr)
	uncompressed := raw&0x8000 != 0
	size := int(raw &^ 0x8000)

	buf := make([]byte, size)
	if _, err := m.sb.fs.ReadAt(buf, absOffset+2); err != nil {
		return nil, 0, fmt.Errorf("%w: metablock payload at %d: %w", ErrTruncated, absOffset, err)
	}

	if !uncompressed {
		buf, err = m.sb.Comp.decompress(buf)
		if err != nil {
			return nil, 0, err
		}
		if len(buf) > metablockCapacity {
			return nil, 0, fmt.Errorf("%w: metablock decompressed to %d bytes (> %d)", ErrBadImage, len(buf), metablockCapacity)
		}
	}

	m.mu.Lock()
	m.cache[absOffset] = cachedBlock{data: buf, onDisk: size}
	m.mu.Unlock()

	return buf, size, nil
}

// next returns the absolute offset of the metablock following the one
// whose header is at absOffset.
func (m *metablockStream) next(absOffset int64) (int64, error) {
	_, onDisk, err := m.readMetablock(absOffset)
	if err != nil {
		return 0, err
	}
	return absOffset + 2 + int64(onDisk), nil
}

// locate resolves a (tableStart, relOffset) logical position to the
// absolute on-disk offset of the physical metablock that contains it, plus
// the byte offset within that block's decompressed payload. Intermediate
// block lookups are memoized per spec.md §4.3.
func (m *metablockStream) locate(tableStart int64, relOffset int64) (abs int64, inBlock int, err error) {
	blockIndex := relOffset / metablockCapacity
	inBlock = int(relOffset % metablockCapacity)

	key := memoKey{tableStart, blockIndex}
	m.mu.Lock()
	abs, ok := m.memo[key]
	m.mu.Unlock()

	if ok {
		return abs, inBlock, nil
	}

	abs = tableStart
	for i := int64(0); i < blockIndex; i++ {
		next, err := m.next(abs)
		if err != nil {
			return 0, 0, err
		}
		abs = next
	}

	m.mu.Lock()
	m.memo[key] = abs
	m.mu.Unlock()

	return abs, inBlock, nil
}

// readTableHeader reads n raw, uncompressed bytes directly from the image
// at abs — used for the flat arrays of metablock pointers that precede the
// id, fragment and xattr lookup tables (those pointer arrays are never
// themselves wrapped in a metablock).
func (m *metablockStream) readTableHeader(abs int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := m.sb.fs.ReadAt(buf, abs); err != nil {
		return nil, fmt.Errorf("%w: table header at %d: %w", ErrTruncated, abs, err)
	}
	return buf, nil
}
