// Package storage holds the object stores that receive backups: S3 for
// production and a local directory for development runs. Objects are
// JSON-lines, optionally compressed.
package storage

import (
	"bufio"
	"io"
)

const bufferSize = 64 << 10

// lineWriter frames lines and pushes them through the compressor into dst.
type lineWriter struct {
	buf    *bufio.Writer
	comp   io.WriteCloser
	closed bool
}

func newLineWriter(dst io.Writer, compression string) (*lineWriter, error) {
	comp, err := newCompressor(dst, compression)
	if err != nil {
		return nil, err
	}
	return &lineWriter{
		buf:  bufio.NewWriterSize(comp, bufferSize),
		comp: comp,
	}, nil
}

func (w *lineWriter) WriteLine(line []byte) error {
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// finish flushes buffered lines and the compressor trailer. It does not
// close dst.
func (w *lineWriter) finish() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	w.closed = true
	return w.comp.Close()
}

// abandon releases the compressor after the destination has been failed.
func (w *lineWriter) abandon() {
	if !w.closed {
		w.closed = true
		_ = w.comp.Close()
	}
}
