package encio

import (
	"fmt"
	"math/bits"
	"slices"
)

// Consume claims n bytes from the front of in.
func Consume(in *[]byte, n int) ([]byte, error) {
	if n < 0 || n > len(*in) {
		return nil, NewValidationError(ErrEOF, fmt.Sprintf("want %v bytes but only %v remain", n, len(*in)))
	}
	bytes := (*in)[:n:n]
	*in = (*in)[n:]
	return bytes, nil
}

// ConsumeArrays claims length arrays of size bytes from the front of in.
// The multiplication can never overflow; the length is checked by division first.
func ConsumeArrays(in *[]byte, length, size int) ([]byte, error) {
	if length < 0 || size < 0 {
		return nil, NewValidationError(ErrLengthOverflow, fmt.Sprintf("negative length %v or size %v", length, size))
	}
	if size == 0 {
		return (*in)[:0:0], nil
	}
	if len(*in)/size < length {
		return nil, NewValidationError(ErrEOF, fmt.Sprintf("want %v values of %v bytes but only %v bytes remain", length, size, len(*in)))
	}

	mid := length * size
	bytes := (*in)[:mid:mid]
	*in = (*in)[mid:]
	return bytes, nil
}

// ConsumeArraysUnchecked is ConsumeArrays without the bounds check.
// The caller must have validated in for length arrays of size bytes.
// It still panics on out-of-range slicing; it never reads out of bounds.
func ConsumeArraysUnchecked(in *[]byte, length, size int) []byte {
	mid := length * size
	bytes := (*in)[:mid:mid]
	*in = (*in)[mid:]
	return bytes
}

// ExpectEOF returns an error if in is not empty.
func ExpectEOF(in []byte) error {
	if len(in) != 0 {
		return NewValidationError(ErrTrailingBytes, fmt.Sprintf("%v bytes left after decoding", len(in)))
	}
	return nil
}

// MulLength returns length * size if it does not overflow an int.
func MulLength(length, size int) (int, error) {
	if length < 0 || size < 0 {
		return 0, NewValidationError(ErrLengthOverflow, fmt.Sprintf("negative length %v or size %v", length, size))
	}
	hi, lo := bits.Mul(uint(length), uint(size))
	if hi != 0 || lo > uint(maxInt) {
		return 0, NewValidationError(ErrLengthOverflow, fmt.Sprintf("%v * %v overflows", length, size))
	}
	return int(lo), nil
}

const maxInt = int(^uint(0) >> 1)

// Reserve extends out by n bytes, returning the extended buffer and the n byte window at its end.
// The window is where in-place encoders write.
func Reserve(out []byte, n int) ([]byte, []byte) {
	l := len(out)
	out = slices.Grow(out, n)[:l+n]
	return out, out[l:]
}
