package squashfs

import (
	"compress/zlib"
	"io"
)

// SquashFS's "GZIP" codec is actually zlib-wrapped deflate, which is
// exactly what compress/zlib decodes; no third-party backend is needed or
// available in the wild for this one (see DESIGN.md).
func init() {
	RegisterCompHandler(GZip, &CompHandler{
		Decompress: MakeDecompressorErr(func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		}),
	})
}
