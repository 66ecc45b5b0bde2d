package codec

import (
	"fmt"
	"unsafe"

	"github.com/stewi1014/bitshape/encio"
)

// Wire values are the little-endian bytes of the value in memory.
// bitshape only supports little-endian hosts, where both are the same.

// NewPrimitive returns a Primitive of the given byte width.
// valid, if non-nil, is called with every encoded value when validating; it receives the value's bytes.
func NewPrimitive(width uintptr, valid func([]byte) bool) *Primitive {
	switch width {
	case 1, 2, 4, 8:
	default:
		panic(encio.NewError(encio.ErrBadType, fmt.Sprintf("%v byte primitives are not supported", width), 0))
	}

	return &Primitive{
		width: width,
		valid: valid,
	}
}

// Primitive is a Codec for fixed width scalars. Values are moved by raw copy.
type Primitive struct {
	width uintptr
	valid func([]byte) bool
}

// ValidBool accepts 0 and 1.
func ValidBool(b []byte) bool {
	return b[0] <= 1
}

// ValidChar accepts Unicode scalar values; 0 to 0xD7FF and 0xE000 to 0x10FFFF.
func ValidChar(b []byte) bool {
	c := encio.DecodeUint32(b)
	return c < 0xD800 || (c > 0xDFFF && c <= 0x10FFFF)
}

// Size implements Codec.
func (e *Primitive) Size() uintptr { return e.width }

// InPlace implements Codec.
func (e *Primitive) InPlace() bool { return true }

// EncodeOne implements Codec.
func (e *Primitive) EncodeOne(ptr unsafe.Pointer, out []byte) []byte {
	checkPtr(ptr)
	return append(out, bytesAt(ptr, e.width)...)
}

// EncodeMany implements Codec.
// Like-sized primitives have no padding between them, so the run is one copy.
func (e *Primitive) EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte {
	if n == 0 {
		return out
	}
	checkPtr(ptr)
	return append(out, bytesAt(ptr, uintptr(n)*e.width)...)
}

// Validate implements Codec.
func (e *Primitive) Validate(in *[]byte, n int) error {
	bytes, err := encio.ConsumeArrays(in, n, int(e.width))
	if err != nil {
		return err
	}
	if e.valid == nil {
		return nil
	}

	invalid := 0
	for i := 0; i < len(bytes); i += int(e.width) {
		if !e.valid(bytes[i : i+int(e.width)]) {
			invalid++
		}
	}
	if invalid != 0 {
		return encio.NewValidationError(encio.ErrInvalidBitPattern, fmt.Sprintf("%v of %v values", invalid, n))
	}
	return nil
}

// DecodeOne implements Codec.
func (e *Primitive) DecodeOne(in *[]byte, ptr unsafe.Pointer) {
	copy(bytesAt(ptr, e.width), encio.ConsumeArraysUnchecked(in, 1, int(e.width)))
}

// DecodeMany implements Codec.
func (e *Primitive) DecodeMany(in *[]byte, ptr unsafe.Pointer, n int) {
	copy(bytesAt(ptr, uintptr(n)*e.width), encio.ConsumeArraysUnchecked(in, n, int(e.width)))
}

func (e *Primitive) String() string {
	return fmt.Sprintf("Primitive(%d)", e.width)
}
