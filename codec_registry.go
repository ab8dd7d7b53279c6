package squashfs

import (
	"bytes"
	"io"
)

// CompHandler is the decode-side backend for one SquashComp. Decompress
// receives the on-disk (still compressed) bytes of a metablock or data
// block and returns the decompressed payload.
type CompHandler struct {
	Decompress func(buf []byte) ([]byte, error)
}

var compHandlers = map[SquashComp]*CompHandler{}

// RegisterCompHandler installs the backend for c. Called from the init()
// of each codec_*.go file; last registration for a given id wins, which
// lets a build override a default backend if it wants to.
func RegisterCompHandler(c SquashComp, h *CompHandler) {
	compHandlers[c] = h
}

// RegisterDecompressor is a convenience wrapper for backends that only
// need a Decompress function.
func RegisterDecompressor(c SquashComp, fn func([]byte) ([]byte, error)) {
	RegisterCompHandler(c, &CompHandler{Decompress: fn})
}

func lookupCompHandler(c SquashComp) *CompHandler {
	return compHandlers[c]
}

// MakeDecompressor adapts a whole-buffer decompressor (anything with a
// DecodeAll(input, dst []byte) ([]byte, error) method, such as
// *zstd.Decoder) into the []byte -> []byte shape the registry expects.
func MakeDecompressor(dec interface {
	DecodeAll(input []byte, dst []byte) ([]byte, error)
}) func([]byte) ([]byte, error) {
	return func(buf []byte) ([]byte, error) {
		return dec.DecodeAll(buf, nil)
	}
}

// MakeDecompressorErr adapts a constructor of io.Reader-based decompressors
// (e.g. xz.NewReader, zlib.NewReader) into the []byte -> []byte shape the
// registry expects: it feeds buf through the constructed reader and drains
// it fully.
func MakeDecompressorErr(newReader func(io.Reader) (io.ReadCloser, error)) func([]byte) ([]byte, error) {
	return func(buf []byte) ([]byte, error) {
		rc, err := newReader(bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
