package squashfs

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaRawDictSize is the dictionary size mksquashfs uses for its legacy
// LZMA1 ("lzma") codec when no compressor-options block overrides it.
const lzmaRawDictSize = 1 << 23

// lzmaDefaultProps encodes lc=3, lp=0, pb=2 as lc + lp*9 + pb*45, the
// default LZMA properties byte used whenever an image stores raw LZMA1
// without its own header.
const lzmaDefaultProps = 3 + 0*9 + 2*45

func init() {
	RegisterDecompressor(LZMA, lzmaDecompress)
}

// lzmaDecompress implements the two-step strategy spec.md §4.1 calls for:
// first try decoding buf as a classic, self-described .lzma stream (header
// + props + dict size + uncompressed size); if that fails, re-decode as a
// headerless raw LZMA1 stream using a synthetic header built from the
// default properties and a fixed 2^23 dictionary, the same technique used
// to decode CHD's headerless LZMA hunks (see DESIGN.md).
func lzmaDecompress(buf []byte) ([]byte, error) {
	if r, err := lzma.NewReader(bytes.NewReader(buf)); err == nil {
		if out, err := io.ReadAll(r); err == nil {
			return out, nil
		}
	}

	header := make([]byte, 13)
	header[0] = lzmaDefaultProps
	binary.LittleEndian.PutUint32(header[1:5], lzmaRawDictSize)
	// Unknown uncompressed size: all-ones tells the decoder to read until
	// the end of stream rather than a fixed byte count.
	for i := 5; i < 13; i++ {
		header[i] = 0xff
	}

	raw := make([]byte, 0, len(header)+len(buf))
	raw = append(raw, header...)
	raw = append(raw, buf...)

	r, err := lzma.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
