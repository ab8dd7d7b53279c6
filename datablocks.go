package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// blockUncompressedFlag is bit 24 of an on-disk block-size word: when set,
// the block's payload (data block, fragment, or metablock-adjacent table
// entry) is stored as-is, with no compression pass needed.
const blockUncompressedFlag = 1 << 24

// blockSizeMask extracts the on-disk byte length from a block-size word.
const blockSizeMask = blockUncompressedFlag - 1

// readDataAt implements spec.md §4.7's data reassembly algorithm: walk the
// block list computing which physical block covers off, decompress or
// pass through as needed, zero-fill sparse holes, and fall through to the
// shared fragment table for any tail smaller than a full block.
func (i *Inode) readDataAt(p []byte, off int64) (int, error) {
	if uint64(off) >= i.Size {
		return 0, io.EOF
	}
	if uint64(off)+uint64(len(p)) > i.Size {
		p = p[:i.Size-uint64(off)]
	}

	blockSize := int64(i.sb.BlockSize)
	block := int(off / blockSize)
	offset := int(off % blockSize)
	n := 0

	for n < len(p) {
		var buf []byte

		if block >= len(i.Blocks) {
			// Past the last stored block: the remainder of the file lives
			// in the tail fragment.
			fbuf, err := i.readFragment()
			if err != nil {
				return n, err
			}
			buf = fbuf
		} else {
			word := i.Blocks[block]
			switch {
			case word == 0:
				// Sparse hole: on-disk size 0 means a full block of zeroes.
				buf = make([]byte, blockSize)
			default:
				size := word & blockSizeMask
				raw := make([]byte, size)
				if _, err := i.sb.fs.ReadAt(raw, int64(i.StartBlock)+int64(i.BlocksOfft[block])); err != nil {
					return n, fmt.Errorf("%w: data block %d: %w", ErrTruncated, block, err)
				}
				if word&blockUncompressedFlag != 0 {
					buf = raw
				} else {
					dec, err := i.sb.Comp.decompress(raw)
					if err != nil {
						return n, err
					}
					buf = dec
				}
			}
		}

		if offset > 0 {
			if offset > len(buf) {
				return n, fmt.Errorf("%w: block %d shorter than offset", ErrBadImage, block)
			}
			buf = buf[offset:]
		}

		c := copy(p[n:], buf)
		n += c
		if n >= len(p) {
			return n, nil
		}

		block++
		offset = 0
	}

	return n, nil
}

// readFragment fetches and decompresses this file's tail fragment out of
// the shared fragment block it lives in, per spec.md §4.7's fragment path:
// look up the fragment block's table entry, decompress the whole block if
// needed, then slice out this file's byte range within it.
func (i *Inode) readFragment() ([]byte, error) {
	if i.FragBlock == noFrag {
		return nil, fmt.Errorf("%w: read past end of stored blocks with no fragment", ErrBadImage)
	}

	entry, err := i.sb.fragmentEntry(i.FragBlock)
	if err != nil {
		return nil, err
	}

	var buf []byte
	if entry.Size&blockUncompressedFlag != 0 {
		buf = make([]byte, entry.Size&blockSizeMask)
		if _, err := i.sb.fs.ReadAt(buf, int64(entry.Start)); err != nil {
			return nil, fmt.Errorf("%w: fragment block: %w", ErrTruncated, err)
		}
	} else {
		raw := make([]byte, entry.Size&blockSizeMask)
		if _, err := i.sb.fs.ReadAt(raw, int64(entry.Start)); err != nil {
			return nil, fmt.Errorf("%w: fragment block: %w", ErrTruncated, err)
		}
		buf, err = i.sb.Comp.decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	if int(i.FragOfft) > len(buf) {
		return nil, fmt.Errorf("%w: fragment offset %d beyond block of %d bytes", ErrBadImage, i.FragOfft, len(buf))
	}
	buf = buf[i.FragOfft:]

	tailLen := int(i.Size % uint64(i.sb.BlockSize))
	if tailLen == 0 {
		tailLen = len(buf)
	}
	if tailLen > len(buf) {
		return nil, fmt.Errorf("%w: fragment tail shorter than expected", ErrTruncated)
	}
	return buf[:tailLen], nil
}

// fragmentTableEntrySize is the on-disk size of one fragment table entry
// (spec.md §4.8): an 8-byte start offset and a 4-byte size/flags word,
// followed by 4 reserved bytes.
const fragmentTableEntrySize = 16

type fragmentEntry struct {
	Start uint64
	Size  uint32
}

func unmarshalFragmentEntry(d []byte) fragmentEntry {
	order := binary.LittleEndian
	return fragmentEntry{
		Start: order.Uint64(d[0:8]),
		Size:  order.Uint32(d[8:12]),
	}
}
