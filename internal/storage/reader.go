package storage

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize bounds a single line read back by LineReader.
const MaxLineSize = 16 << 20

// LineReader iterates the non-empty lines of a backup object.
//
//	r, _ := NewLineReader(f, config.CompressionZstd)
//	for r.Next() {
//		use(r.Line())
//	}
//	err := r.Err()
type LineReader struct {
	scanner *bufio.Scanner
	src     io.ReadCloser
	line    []byte
	lineNo  int
}

// NewLineReader decompresses r according to compression and splits it
// into lines. Closing the LineReader does not close r.
func NewLineReader(r io.Reader, compression string) (*LineReader, error) {
	src, err := newDecompressor(r, compression)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, bufferSize), MaxLineSize)
	return &LineReader{scanner: scanner, src: src}, nil
}

// Next advances to the next non-empty line.
func (r *LineReader) Next() bool {
	for r.scanner.Scan() {
		r.lineNo++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.line = line
		return true
	}
	return false
}

// Line returns the current line. It is only valid until the next call to
// Next.
func (r *LineReader) Line() []byte {
	return r.line
}

// LineNo is the 1-based number of the current line in the input.
func (r *LineReader) LineNo() int {
	return r.lineNo
}

func (r *LineReader) Err() error {
	return r.scanner.Err()
}

func (r *LineReader) Close() error {
	return r.src.Close()
}
