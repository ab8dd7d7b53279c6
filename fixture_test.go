package squashfs_test

import (
	"encoding/binary"
	"testing"
)

// imgBuilder assembles a byte-exact SquashFS v4 image by hand, the same
// way the teacher's own fixtures are built for unit tests that predate a
// real testdata/*.squashfs corpus. Every block (metadata and data) is
// marked uncompressed (the high bit of a metablock header, or bit 24 of a
// data block-size word) so the fixture never has to invoke a real codec;
// this keeps construction fully deterministic without shelling out to
// mksquashfs or depending on a compression library at test time.
type imgBuilder struct {
	buf []byte
}

func (b *imgBuilder) off() int { return len(b.buf) }

func (b *imgBuilder) u16(v uint16) int {
	o := len(b.buf)
	b.buf = append(b.buf, 0, 0)
	binary.LittleEndian.PutUint16(b.buf[o:], v)
	return o
}

func (b *imgBuilder) i16(v int16) int { return b.u16(uint16(v)) }

func (b *imgBuilder) u32(v uint32) int {
	o := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(b.buf[o:], v)
	return o
}

func (b *imgBuilder) u64(v uint64) int {
	o := len(b.buf)
	b.buf = append(b.buf, make([]byte, 8)...)
	binary.LittleEndian.PutUint64(b.buf[o:], v)
	return o
}

func (b *imgBuilder) raw(p []byte) int {
	o := len(b.buf)
	b.buf = append(b.buf, p...)
	return o
}

func (b *imgBuilder) patchU16(off int, v uint16) { binary.LittleEndian.PutUint16(b.buf[off:], v) }
func (b *imgBuilder) patchU32(off int, v uint32) { binary.LittleEndian.PutUint32(b.buf[off:], v) }
func (b *imgBuilder) patchU64(off int, v uint64) { binary.LittleEndian.PutUint64(b.buf[off:], v) }

// metablock appends an uncompressed metablock (2-byte header, high bit set,
// plus the raw payload) and returns the absolute offset of its header.
func (b *imgBuilder) metablock(payload []byte) int {
	abs := b.off()
	b.u16(uint16(len(payload)) | 0x8000)
	b.raw(payload)
	return abs
}

const noTableOff = 0xFFFFFFFFFFFFFFFF

// buildTestImage hand-assembles a minimal, fully uncompressed SquashFS v4
// image exercising every inode type the extractor cares about:
//
//	/hello.txt   regular file, 6 bytes, carries xattr user.comment=hi
//	/link        symlink -> hello.txt
//	/sparse      regular file, 64KiB, single sparse block
//	/sub/        directory
//	/sub/nested.txt  regular file, 7 bytes
//
// Block size is 64KiB so every regular file above fits in a single block
// with no tail fragment, matching spec.md §8 scenario 3 (sparse) and
// keeping the fixture's arithmetic simple.
func buildTestImage(t *testing.T) []byte {
	t.Helper()

	b := &imgBuilder{}
	b.raw(make([]byte, 96)) // superblock placeholder, patched at the end

	// ---- inode table ----
	ip := &imgBuilder{}

	rootOff := ip.off()
	ip.u16(1)   // type: basic directory
	ip.u16(0o755)
	ip.u16(0) // uid_idx
	ip.u16(0) // gid_idx
	ip.u32(0) // mtime
	ip.u32(1) // ino
	ip.u32(0) // start_block (dir table, rel to DirTableStart)
	ip.u32(2) // nlink
	rootSizeField := ip.u16(0)
	ip.u16(0) // block_offset
	ip.u32(1) // parent_ino (root is its own parent)

	helloOff := ip.off()
	ip.u16(9) // type: extended file (carries xattr_idx)
	ip.u16(0o644)
	ip.u16(0)
	ip.u16(0)
	ip.u32(0)
	ip.u32(2) // ino
	helloStartBlockField := ip.u64(0)
	ip.u64(6)          // file_size
	ip.u64(0)          // sparse
	ip.u32(0)          // nlink
	ip.u32(0xFFFFFFFF) // frag_idx: none
	ip.u32(0)          // frag_off
	ip.u32(0)          // xattr_idx
	ip.u32(6 | (1 << 24))

	subOff := ip.off()
	ip.u16(1) // type: basic directory
	ip.u16(0o755)
	ip.u16(0)
	ip.u16(0)
	ip.u32(0)
	ip.u32(3) // ino
	ip.u32(0) // start_block
	ip.u32(1) // nlink
	subSizeField := ip.u16(0)
	subOffsetField := ip.u16(0)
	ip.u32(1) // parent_ino

	nestedOff := ip.off()
	ip.u16(2) // type: basic file
	ip.u16(0o644)
	ip.u16(0)
	ip.u16(0)
	ip.u32(0)
	ip.u32(4) // ino
	nestedStartBlockField := ip.u32(0)
	ip.u32(0xFFFFFFFF)
	ip.u32(0)
	ip.u32(7) // file_size
	ip.u32(7 | (1 << 24))

	linkOff := ip.off()
	ip.u16(3) // type: basic symlink
	ip.u16(0o777)
	ip.u16(0)
	ip.u16(0)
	ip.u32(0)
	ip.u32(5) // ino
	ip.u32(0) // nlink
	ip.u32(9) // target length
	ip.raw([]byte("hello.txt"))

	sparseOff := ip.off()
	ip.u16(2) // type: basic file
	ip.u16(0o644)
	ip.u16(0)
	ip.u16(0)
	ip.u32(0)
	ip.u32(6) // ino
	ip.u32(0) // start_block: unused, the only block is sparse
	ip.u32(0xFFFFFFFF)
	ip.u32(0)
	ip.u32(65536) // file_size
	ip.u32(0)     // block-size word: on_disk=0 => sparse

	// ---- directory table ----
	dp := &imgBuilder{}

	rootEntries := dp.off()
	dp.u32(3) // count-1: 4 entries follow
	dp.u32(0) // inode_table_rel_start: all targets live in the one inode metablock
	dp.u32(0) // ref_ino_base

	writeEntry := func(offInBlock int, inoDelta int16, entType uint16, name string) {
		dp.u16(uint16(offInBlock))
		dp.i16(inoDelta)
		dp.u16(entType)
		dp.u16(uint16(len(name) - 1))
		dp.raw([]byte(name))
	}
	writeEntry(helloOff, 2, 2, "hello.txt")
	writeEntry(linkOff, 5, 3, "link")
	writeEntry(sparseOff, 6, 2, "sparse")
	writeEntry(subOff, 3, 1, "sub")

	subBlockOffset := dp.off()
	dp.u32(0) // count-1: 1 entry
	dp.u32(0)
	dp.u32(0)
	writeEntry(nestedOff, 4, 2, "nested.txt")

	rootPayloadLen := subBlockOffset - rootEntries
	subPayloadLen := dp.off() - subBlockOffset

	ip.patchU16(rootSizeField, uint16(rootPayloadLen+3))
	ip.patchU16(subSizeField, uint16(subPayloadLen+3))
	ip.patchU16(subOffsetField, uint16(subBlockOffset))

	inodeTableAbs := b.metablock(ip.buf)
	dirTableAbs := b.metablock(dp.buf)

	// ---- data blocks (raw, no metablock framing) ----
	helloDataAbs := b.raw([]byte("hello\n"))
	nestedDataAbs := b.raw([]byte("nested\n"))

	b.patchU64(inodeTableAbs+2+helloStartBlockField, uint64(helloDataAbs))
	b.patchU32(inodeTableAbs+2+nestedStartBlockField, uint32(nestedDataAbs))

	// ---- id table: one entry, uid/gid 0 ----
	idPtrArray := b.u64(0)
	idBlockAbs := b.metablock([]byte{0, 0, 0, 0})
	b.patchU64(idPtrArray, uint64(idBlockAbs))

	// ---- xattr tables: one entry, user.comment=hi, on hello.txt ----
	xattrIDHeader := b.off()
	b.u64(0) // kv_stream_abs_start, patched below
	b.u32(1) // xattr_ids
	b.u32(0) // pad
	xattrPtrArray := b.u64(0)

	xattrLookupPayload := &imgBuilder{}
	xattrLookupPayload.u64(0) // ref: rel_offset 0 into the kv stream
	xattrLookupPayload.u32(1) // count
	xattrLookupPayload.u32(17) // size of the serialized pair
	xattrLookupAbs := b.metablock(xattrLookupPayload.buf)
	b.patchU64(xattrPtrArray, uint64(xattrLookupAbs))

	kvPayload := &imgBuilder{}
	kvPayload.u16(0) // type: namespace=user, not out-of-line
	kvPayload.u16(7) // name_size
	kvPayload.raw([]byte("comment"))
	kvPayload.u32(2) // value_size
	kvPayload.raw([]byte("hi"))
	kvAbs := b.metablock(kvPayload.buf)
	b.patchU64(xattrIDHeader, uint64(kvAbs))

	// ---- superblock ----
	order := binary.LittleEndian
	sb := b.buf[0:96]
	order.PutUint32(sb[0:4], 0x73717368)
	order.PutUint32(sb[4:8], 6) // inode_count
	order.PutUint32(sb[8:12], 0)
	order.PutUint32(sb[12:16], 65536) // block_size
	order.PutUint32(sb[16:20], 0)     // fragment_entry_count
	order.PutUint16(sb[20:22], 1)     // compression_id: gzip
	order.PutUint16(sb[22:24], 16)    // block_log
	order.PutUint16(sb[24:26], 0)     // flags
	order.PutUint16(sb[26:28], 1)     // id_count
	order.PutUint16(sb[28:30], 4)     // version_major
	order.PutUint16(sb[30:32], 0)     // version_minor
	order.PutUint64(sb[32:40], 0)     // root_inode_ref
	order.PutUint64(sb[40:48], uint64(len(b.buf)))
	order.PutUint64(sb[48:56], uint64(idPtrArray))
	order.PutUint64(sb[56:64], uint64(xattrIDHeader))
	order.PutUint64(sb[64:72], uint64(inodeTableAbs))
	order.PutUint64(sb[72:80], uint64(dirTableAbs))
	order.PutUint64(sb[80:88], noTableOff)
	order.PutUint64(sb[88:96], noTableOff)

	_ = rootOff
	return b.buf
}
