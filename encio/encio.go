// Package encio provides the byte level arithmetic used by codecs, io helpers for framed streams, and error types.
//
// Input is consumed through a cursor, a *[]byte that is re-sliced from the front as bytes are claimed.
// Output is a plain []byte that is only ever appended to.
package encio

import (
	"errors"
	"fmt"
	"io"
)

// TooBig is a byte count used for simple sanity checking before allocation with numbers decoded from readers.
// ErrTooBig is returned if a declared size exceeds this.
//
// By default it is 32MB on 32bit machines, and 128MB on 64bit machines.
// Feel free to change it.
var TooBig = int(1 << (25 + ((^uint(0) >> 32) & 2)))

// Read reads from r, completely filling the buffer. It provides error handling with as little overhead as possible.
// In an ideal read, only a single int equality check is performed. If the read reports the whole buffer is read, returned errors are ignored.
//
// io.EOF is only returned if no bytes at all could be read; a short read returns a wrapped io.ErrUnexpectedEOF.
func Read(buff []byte, r io.Reader) error {
	n, err := r.Read(buff)
	if n == len(buff) {
		return nil
	}

	end := n
	for end < len(buff) && err == nil {
		n, err = r.Read(buff[end:])
		end += n
		if n == 0 && err == nil {
			err = io.ErrNoProgress
		}
	}

	switch {
	case end == len(buff):
		return nil
	case end > len(buff):
		return fmt.Errorf("bad io.Reader implementation: reported %v bytes read, but buffer is only %v bytes", end, len(buff))
	case errors.Is(err, io.EOF) && end == 0:
		return io.EOF
	case errors.Is(err, io.EOF):
		return fmt.Errorf("want %v bytes but only got %v: %w", len(buff), end, io.ErrUnexpectedEOF)
	default:
		return fmt.Errorf("want %v bytes but only got %v: %w", len(buff), end, err)
	}
}

// Write writes to w from buff, handling errors of io.Writer with as little overhead as possible.
// In an ideal write, only a single int equality check is performed. It returns any error from Write().
func Write(buff []byte, w io.Writer) error {
	n, err := w.Write(buff)
	if n == len(buff) {
		return err
	}

	end := n
	for end < len(buff) && err == nil && n > 0 {
		n, err = w.Write(buff[end:])
		end += n
	}

	switch {
	case end == len(buff):
		return err
	case end > len(buff):
		return fmt.Errorf("bad io.Writer implementation: Write() reported %v bytes written, but was only given %v bytes", end, len(buff))
	case err == nil:
		return fmt.Errorf("want %v bytes but only wrote %v bytes: %w", len(buff), end, io.ErrShortWrite)
	default:
		return fmt.Errorf("want %v bytes but wrote %v bytes: %w", len(buff), end, err)
	}
}
