package squashfs

import "fmt"

// SquashComp identifies the compressor used for every metablock and data
// block in an image. It is fixed for the lifetime of an open image.
type SquashComp uint16

const (
	GZip SquashComp = 1
	LZMA SquashComp = 2
	LZO  SquashComp = 3
	XZ   SquashComp = 4
	LZ4  SquashComp = 5
	ZSTD SquashComp = 6
)

func (s SquashComp) String() string {
	switch s {
	case GZip:
		return "GZip"
	case LZMA:
		return "LZMA"
	case LZO:
		return "LZO"
	case XZ:
		return "XZ"
	case LZ4:
		return "LZ4"
	case ZSTD:
		return "ZSTD"
	}
	return fmt.Sprintf("SquashComp(%d)", s)
}

// decompress runs the registered backend for s. Called on metablocks (≤8KiB)
// and data blocks (≤ superblock block size); a backend error is returned
// wrapped in ErrCodecFailure.
func (s SquashComp) decompress(buf []byte) ([]byte, error) {
	h := lookupCompHandler(s)
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, s)
	}
	out, err := h.Decompress(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCodecFailure, s, err)
	}
	return out, nil
}

// available reports whether a backend is registered for s, used by New()
// to fail fast at image-open time rather than mid-extract.
func (s SquashComp) available() bool {
	return lookupCompHandler(s) != nil
}
