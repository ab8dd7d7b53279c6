package squashfs

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

func init() {
	RegisterCompHandler(LZ4, &CompHandler{
		Decompress: MakeDecompressorErr(func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		}),
	})
}
