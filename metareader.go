package squashfs

import "io"

// metaReader is a sequential io.Reader over the logical metablock stream,
// used wherever the teacher's code reads a table or an inode with
// binary.Read rather than slurping a fixed span up front (directory
// entries and the inode table are both consumed this way, since neither
// tells the reader its exact byte length ahead of time). It shares its
// underlying block cache with every other metaReader through the
// metablockStream it was created from.
type metaReader struct {
	mb      *metablockStream
	abs     int64 // absolute offset of the next metablock to load
	buf     []byte
	pos     int
	nextAbs int64
	primed  bool
}

var _ io.Reader = (*metaReader)(nil)

// newTableReader returns a metaReader positioned relOffset bytes into the
// logical stream rooted at tableStart (spec.md §4.3), used for the
// directory table. The id and fragment loaders read whole metablocks
// directly, and the xattr decoder builds its metaReader by hand.
func (sb *Superblock) newTableReader(tableStart int64, relOffset int) (*metaReader, error) {
	abs, inBlock, err := sb.mb.locate(tableStart, int64(relOffset))
	if err != nil {
		return nil, err
	}
	return &metaReader{mb: sb.mb, abs: abs, pos: inBlock}, nil
}

// newInodeReader returns a metaReader positioned at the start of the inode
// referenced by inor.
func (sb *Superblock) newInodeReader(inor inodeRef) (*metaReader, error) {
	abs := int64(sb.InodeTableStart) + int64(inor.Index())
	return &metaReader{mb: sb.mb, abs: abs, pos: int(inor.Offset())}, nil
}

func (r *metaReader) fill() error {
	data, onDisk, err := r.mb.readMetablock(r.abs)
	if err != nil {
		return err
	}
	r.buf = data
	r.nextAbs = r.abs + 2 + int64(onDisk)
	r.primed = true
	return nil
}

func (r *metaReader) Read(p []byte) (int, error) {
	if !r.primed {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n := 0
	for n < len(p) {
		if r.pos >= len(r.buf) {
			r.abs = r.nextAbs
			if err := r.fill(); err != nil {
				if n > 0 {
					return n, nil
				}
				return n, err
			}
			r.pos = 0
			if len(r.buf) == 0 {
				return n, io.EOF
			}
		}
		c := copy(p[n:], r.buf[r.pos:])
		n += c
		r.pos += c
	}
	return n, nil
}
