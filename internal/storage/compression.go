package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/dynamobackup/internal/config"
)

var extensions = map[string]string{
	config.CompressionNone: "",
	config.CompressionZstd: ".zst",
	config.CompressionGzip: ".gz",
}

// Extension returns the key suffix of a compression, "" for none.
func Extension(compression string) (string, error) {
	if compression == "" {
		return "", nil
	}
	ext, ok := extensions[compression]
	if !ok {
		return "", fmt.Errorf("unknown compression %q", compression)
	}
	return ext, nil
}

// CompressionOf guesses the compression of a file or key from its suffix.
func CompressionOf(name string) string {
	switch {
	case strings.HasSuffix(name, ".zst"):
		return config.CompressionZstd
	case strings.HasSuffix(name, ".gz"):
		return config.CompressionGzip
	default:
		return config.CompressionNone
	}
}

func newCompressor(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case "", config.CompressionNone:
		return nopWriteCloser{w}, nil
	case config.CompressionZstd:
		return zstd.NewWriter(w)
	case config.CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

func newDecompressor(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case "", config.CompressionNone:
		return io.NopCloser(r), nil
	case config.CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case config.CompressionGzip:
		return gzip.NewReader(r)
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
