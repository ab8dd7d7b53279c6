package squashfs

import "github.com/klauspost/compress/zstd"

func init() {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		// zstd.NewReader(nil) only fails on bad options; none are passed here.
		panic(err)
	}
	RegisterDecompressor(ZSTD, MakeDecompressor(dec))
}
