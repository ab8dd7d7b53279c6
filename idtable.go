package squashfs

import (
	"encoding/binary"
	"fmt"
)

// idEntriesPerBlock is the number of 4-byte uid/gid table entries packed
// into one 8KiB metablock (spec.md §4.4).
const idEntriesPerBlock = metablockCapacity / 4

// loadIds reads the id table's pointer array and every id entry it points
// to, caching the flat uid/gid list. IdCount in the superblock is the
// total number of distinct uid/gid values stored, not a byte count.
func (sb *Superblock) loadIds() error {
	return sb.idOnce.do(func() error {
		if sb.IdTableStart == noTable || sb.IdCount == 0 {
			return nil
		}

		numBlocks := (int(sb.IdCount) + idEntriesPerBlock - 1) / idEntriesPerBlock
		ptrBuf, err := sb.mb.readTableHeader(int64(sb.IdTableStart), numBlocks*8)
		if err != nil {
			return err
		}

		order := binary.LittleEndian
		ids := make([]uint32, 0, sb.IdCount)
		remaining := int(sb.IdCount)

		for b := 0; b < numBlocks; b++ {
			blockAbs := int64(order.Uint64(ptrBuf[b*8:]))
			count := idEntriesPerBlock
			if remaining < count {
				count = remaining
			}

			data, _, err := sb.mb.readMetablock(blockAbs)
			if err != nil {
				return err
			}
			if len(data) < count*4 {
				return fmt.Errorf("%w: id metablock %d short", ErrTruncated, b)
			}

			for e := 0; e < count; e++ {
				ids = append(ids, order.Uint32(data[e*4:]))
			}
			remaining -= count
		}

		sb.idList = ids
		return nil
	})
}

// ResolveId maps a uid/gid table index (as stored in an inode's UidIdx or
// GidIdx) to the actual numeric id.
func (sb *Superblock) ResolveId(idx uint16) (uint32, error) {
	if err := sb.loadIds(); err != nil {
		return 0, err
	}
	if int(idx) >= len(sb.idList) {
		return 0, fmt.Errorf("%w: id index %d out of range (%d entries)", ErrBadImage, idx, len(sb.idList))
	}
	return sb.idList[idx], nil
}
