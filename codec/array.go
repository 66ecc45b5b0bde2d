package codec

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/stewi1014/bitshape/encio"
)

// NewArray returns a Codec for arrays of length elements.
// ty is the array type, and is only required if the elements hold pointers.
func NewArray(ty reflect.Type, length int, elem Codec, pointers bool) Codec {
	a := Array{
		elem: elem,
		len:  length,
		size: uintptr(length) * elem.Size(),
	}
	if !pointers || length == 0 {
		return &a
	}

	if ty == nil || ty.Kind() != reflect.Array {
		panic(encio.NewError(encio.ErrBadType, fmt.Sprintf("arrays of pointer holding elements need their array type, got %v", ty), 0))
	}
	return &PointerArray{
		Array: a,
		ty:    ty,
	}
}

// Array is a Codec for fixed length arrays.
// A run of n arrays is encoded as the run of all n*len elements.
type Array struct {
	elem Codec
	len  int
	size uintptr
}

// Size implements Codec.
func (e *Array) Size() uintptr { return e.size }

// InPlace implements Codec.
func (e *Array) InPlace() bool { return e.elem.InPlace() }

// EncodeOne implements Codec.
func (e *Array) EncodeOne(ptr unsafe.Pointer, out []byte) []byte {
	return EncodeOneOrMany(e.elem, ptr, e.len, out)
}

// EncodeMany implements Codec.
func (e *Array) EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte {
	return e.elem.EncodeMany(ptr, n*e.len, out)
}

// Validate implements Codec.
func (e *Array) Validate(in *[]byte, n int) error {
	total, err := encio.MulLength(n, e.len)
	if err != nil {
		return err
	}
	return e.elem.Validate(in, total)
}

// DecodeOne implements Codec.
func (e *Array) DecodeOne(in *[]byte, ptr unsafe.Pointer) {
	DecodeOneOrMany(e.elem, in, ptr, e.len)
}

// DecodeMany implements Codec.
func (e *Array) DecodeMany(in *[]byte, ptr unsafe.Pointer, n int) {
	e.elem.DecodeMany(in, ptr, n*e.len)
}

func (e *Array) String() string {
	return fmt.Sprintf("Array(%d, %v)", e.len, e.elem)
}

// PointerArray is an Array whose elements hold pointers.
// Runs of arrays that are not contiguous are staged in typed memory before being encoded as one run.
type PointerArray struct {
	Array
	ty reflect.Type
}

func (e *PointerArray) encodeStrided(ptr unsafe.Pointer, n int, stride uintptr, out []byte) []byte {
	if stride == e.size {
		return e.EncodeMany(ptr, n, out)
	}

	staged := typedStaging(e.ty, n)
	for i := 0; i < n; i++ {
		typedCopy(e.ty, unsafe.Add(staged, uintptr(i)*e.size), unsafe.Add(ptr, uintptr(i)*stride))
	}
	return e.EncodeMany(staged, n, out)
}

func (e *PointerArray) decodeStrided(in *[]byte, ptr unsafe.Pointer, n int, stride uintptr) {
	if stride == e.size {
		e.DecodeMany(in, ptr, n)
		return
	}

	staged := typedStaging(e.ty, n)
	e.DecodeMany(in, staged, n)
	for i := 0; i < n; i++ {
		typedCopy(e.ty, unsafe.Add(ptr, uintptr(i)*stride), unsafe.Add(staged, uintptr(i)*e.size))
	}
}
