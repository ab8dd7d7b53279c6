package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// xattrLookupEntrySize is the on-disk size of one entry in the xattr id
// lookup table: an 8-byte metadata reference into the key/value stream, a
// 4-byte pair count, and a 4-byte total byte length of the serialized
// pairs (spec.md §4.8).
const xattrLookupEntrySize = 16

// xattrEntriesPerBlock mirrors the id/fragment tables' packing.
const xattrEntriesPerBlock = metablockCapacity / xattrLookupEntrySize

// xattrOOLFlag marks a value entry whose 8-byte payload is itself a
// reference to the real value stored elsewhere in the key/value stream,
// used by mksquashfs to deduplicate repeated large values.
const xattrOOLFlag = 0x0100

// xattrTypeMask isolates the namespace id from a key type word.
const xattrTypeMask = 0x00FF

type xattrLookupEntry struct {
	Ref   inodeRef
	Count uint32
	Size  uint32
}

// XattrPair is one decoded extended attribute: Name already carries its
// namespace prefix (user., trusted., security.), matching the conventional
// Linux xattr namespacing (spec.md §4.8).
type XattrPair struct {
	Name  string
	Value []byte
}

var xattrNamespace = map[uint16]string{
	0: "user.",
	1: "trusted.",
	2: "security.",
}

// loadXattrIds reads the xattr id table header and its lookup-entry array.
func (sb *Superblock) loadXattrIds() error {
	return sb.xattrOnce.do(func() error {
		if sb.XattrIdTableStart == noTable || sb.Flags.Has(NO_XATTRS) {
			return nil
		}

		head, err := sb.mb.readTableHeader(int64(sb.XattrIdTableStart), 16)
		if err != nil {
			return err
		}
		order := binary.LittleEndian
		kvBase := order.Uint64(head[0:8])
		idCount := order.Uint32(head[8:12])
		sb.xattrBase = kvBase

		if idCount == 0 {
			return nil
		}

		numBlocks := (int(idCount) + xattrEntriesPerBlock - 1) / xattrEntriesPerBlock
		ptrBuf, err := sb.mb.readTableHeader(int64(sb.XattrIdTableStart)+16, numBlocks*8)
		if err != nil {
			return err
		}

		entries := make([]xattrLookupEntry, 0, idCount)
		remaining := int(idCount)

		for b := 0; b < numBlocks; b++ {
			blockAbs := int64(order.Uint64(ptrBuf[b*8:]))
			count := xattrEntriesPerBlock
			if remaining < count {
				count = remaining
			}

			data, _, err := sb.mb.readMetablock(blockAbs)
			if err != nil {
				return err
			}
			if len(data) < count*xattrLookupEntrySize {
				return fmt.Errorf("%w: xattr id metablock %d short", ErrTruncated, b)
			}

			for e := 0; e < count; e++ {
				off := e * xattrLookupEntrySize
				entries = append(entries, xattrLookupEntry{
					Ref:   inodeRef(order.Uint64(data[off : off+8])),
					Count: order.Uint32(data[off+8 : off+12]),
					Size:  order.Uint32(data[off+12 : off+16]),
				})
			}
			remaining -= count
		}

		sb.xattrLookup = entries
		return nil
	})
}

// Xattrs returns the decoded extended attributes for xattr table index
// idx, resolving any out-of-line value references against the shared
// key/value stream.
func (sb *Superblock) Xattrs(idx uint32) ([]XattrPair, error) {
	if idx == NoXattr {
		return nil, nil
	}
	if err := sb.loadXattrIds(); err != nil {
		return nil, err
	}
	if int(idx) >= len(sb.xattrLookup) {
		return nil, fmt.Errorf("%w: xattr index %d out of range (%d entries)", ErrBadImage, idx, len(sb.xattrLookup))
	}

	entry := sb.xattrLookup[idx]
	r := &metaReader{
		mb:  sb.mb,
		abs: int64(sb.xattrBase) + int64(entry.Ref.Index()),
		pos: int(entry.Ref.Offset()),
	}

	out := make([]XattrPair, 0, entry.Count)
	order := binary.LittleEndian

	for n := uint32(0); n < entry.Count; n++ {
		var keyType, keySize uint16
		if err := binary.Read(r, order, &keyType); err != nil {
			return nil, fmt.Errorf("%w: xattr key header: %w", ErrTruncated, err)
		}
		if err := binary.Read(r, order, &keySize); err != nil {
			return nil, err
		}

		keyBuf := make([]byte, keySize)
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			return nil, fmt.Errorf("%w: xattr key: %w", ErrTruncated, err)
		}

		var valSize uint32
		if err := binary.Read(r, order, &valSize); err != nil {
			return nil, fmt.Errorf("%w: xattr value header: %w", ErrTruncated, err)
		}

		var value []byte
		if keyType&xattrOOLFlag != 0 {
			if valSize != 8 {
				return nil, fmt.Errorf("%w: out-of-line xattr value size %d != 8", ErrBadImage, valSize)
			}
			var ref uint64
			if err := binary.Read(r, order, &ref); err != nil {
				return nil, err
			}

			secondary := inodeRef(ref)
			sr := &metaReader{
				mb:  sb.mb,
				abs: int64(sb.xattrBase) + int64(secondary.Index()),
				pos: int(secondary.Offset()),
			}
			var realSize uint32
			if err := binary.Read(sr, order, &realSize); err != nil {
				return nil, fmt.Errorf("%w: out-of-line xattr value header: %w", ErrTruncated, err)
			}
			value = make([]byte, realSize)
			if _, err := io.ReadFull(sr, value); err != nil {
				return nil, fmt.Errorf("%w: out-of-line xattr value: %w", ErrTruncated, err)
			}
		} else {
			value = make([]byte, valSize)
			if _, err := io.ReadFull(r, value); err != nil {
				return nil, fmt.Errorf("%w: xattr value: %w", ErrTruncated, err)
			}
		}

		prefix, known := xattrNamespace[keyType&xattrTypeMask]
		if !known {
			// Unknown namespace: the key/value bytes are already consumed,
			// so just drop the pair rather than emitting a prefix-less name.
			continue
		}
		out = append(out, XattrPair{Name: prefix + string(keyBuf), Value: value})
	}

	return out, nil
}
