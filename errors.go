package squashfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrBadImage is returned for a bad magic, unsupported version, or any
	// structurally inconsistent offset or field.
	ErrBadImage = errors.New("squashfs: invalid or inconsistent image")

	// ErrTruncated is returned when the underlying reader returned fewer
	// bytes than a structural element requires.
	ErrTruncated = errors.New("squashfs: truncated read")

	// ErrUnsupportedCompressor is returned at image-open time when the
	// image declares a compressor id whose backend was not registered.
	ErrUnsupportedCompressor = errors.New("squashfs: unsupported compressor")

	// ErrCodecFailure is returned when a registered decompressor rejects
	// a buffer it was asked to decode.
	ErrCodecFailure = errors.New("squashfs: decompression failed")

	// ErrIoError is returned for a sink-side I/O failure while writing
	// extracted output.
	ErrIoError = errors.New("squashfs: output I/O error")

	// ErrNotDirectory is returned when attempting to perform directory
	// operations on a non-directory.
	ErrNotDirectory = errors.New("squashfs: not a directory")

	// ErrTooManySymlinks is returned when symlink resolution exceeds the
	// maximum depth, preventing infinite loops.
	ErrTooManySymlinks = errors.New("squashfs: too many levels of symbolic links")
)
