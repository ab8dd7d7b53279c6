package squashfs

import (
	"encoding/binary"
	"fmt"
)

// fragEntriesPerBlock is the number of 16-byte fragment table entries
// packed into one 8KiB metablock (spec.md §4.8).
const fragEntriesPerBlock = metablockCapacity / fragmentTableEntrySize

// loadFragments reads the fragment table's pointer array (one absolute
// metablock offset per 512 entries) and then every fragment entry it
// points to. Per spec.md §4.4 this only ever runs once per Superblock.
func (sb *Superblock) loadFragments() error {
	return sb.fragOnce.do(func() error {
		if sb.FragTableStart == noTable || sb.FragCount == 0 {
			return nil
		}

		numBlocks := int((sb.FragCount + fragEntriesPerBlock - 1) / fragEntriesPerBlock)
		ptrBuf, err := sb.mb.readTableHeader(int64(sb.FragTableStart), numBlocks*8)
		if err != nil {
			return err
		}

		entries := make([]fragmentEntry, 0, sb.FragCount)
		order := binary.LittleEndian

		remaining := int(sb.FragCount)
		for b := 0; b < numBlocks; b++ {
			blockAbs := int64(order.Uint64(ptrBuf[b*8:]))
			count := fragEntriesPerBlock
			if remaining < count {
				count = remaining
			}

			data, _, err := sb.mb.readMetablock(blockAbs)
			if err != nil {
				return err
			}
			if len(data) < count*fragmentTableEntrySize {
				return fmt.Errorf("%w: fragment metablock %d short", ErrTruncated, b)
			}

			for e := 0; e < count; e++ {
				off := e * fragmentTableEntrySize
				entries = append(entries, unmarshalFragmentEntry(data[off:off+fragmentTableEntrySize]))
			}
			remaining -= count
		}

		sb.fragments = entries
		return nil
	})
}

// fragmentEntry returns the fragment table entry at index idx, loading the
// table on first use.
func (sb *Superblock) fragmentEntry(idx uint32) (fragmentEntry, error) {
	if err := sb.loadFragments(); err != nil {
		return fragmentEntry{}, err
	}
	if int(idx) >= len(sb.fragments) {
		return fragmentEntry{}, fmt.Errorf("%w: fragment index %d out of range (%d entries)", ErrBadImage, idx, len(sb.fragments))
	}
	return sb.fragments[idx], nil
}
