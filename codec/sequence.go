package codec

import (
	"fmt"
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/stewi1014/bitshape/encio"
)

// sliceHeader is the memory layout of a slice.
// Stores through it are typed, so the garbage collector sees the data pointer.
type sliceHeader struct {
	data unsafe.Pointer
	len  int
	cap  int
}

// stringHeader is the memory layout of a string.
type stringHeader struct {
	data unsafe.Pointer
	len  int
}

type sequenceKind uint8

const (
	kindSlice sequenceKind = iota
	kindString
	kindView
)

// NewSlice returns a Codec for the slice type ty with elements encoded by elem.
// elemPointers must be true if the elements hold pointers.
func NewSlice(ty reflect.Type, elem Codec, elemPointers bool) *Sequence {
	return newSequence(ty, kindSlice, elem, elemPointers)
}

// NewView returns an encode-only Codec for the borrowed slice type ty.
// Validating or decoding with it panics; a borrowed slice has no owner to decode into.
func NewView(ty reflect.Type, elem Codec, elemPointers bool) *Sequence {
	return newSequence(ty, kindView, elem, elemPointers)
}

// NewString returns a Codec for strings, encoded as sequences of bytes.
func NewString(ty reflect.Type) *Sequence {
	return newSequence(ty, kindString, NewPrimitive(1, nil), false)
}

func newSequence(ty reflect.Type, kind sequenceKind, elem Codec, elemPointers bool) *Sequence {
	if ty == nil {
		panic(encio.NewError(encio.ErrBadType, "sequences need their type", 1))
	}
	switch {
	case kind == kindString && ty.Kind() != reflect.String,
		kind != kindString && ty.Kind() != reflect.Slice:
		panic(encio.NewError(encio.ErrBadType, fmt.Sprintf("%v is not a sequence", ty), 1))
	}

	return &Sequence{
		ty:           ty,
		kind:         kind,
		elem:         elem,
		elemSize:     elem.Size(),
		elemPointers: elemPointers,
	}
}

// Sequence is a Codec for slices and strings.
// A sequence is encoded as its length, a 4 byte little-endian unsigned integer, followed by its elements.
// A run of sequences is encoded as the run of all their lengths, followed by the run of all their elements.
//
// Decoded sequences of length 0 are nil.
type Sequence struct {
	ty           reflect.Type
	kind         sequenceKind
	elem         Codec
	elemSize     uintptr
	elemPointers bool
}

// Size implements Codec.
func (e *Sequence) Size() uintptr {
	if e.kind == kindString {
		return unsafe.Sizeof(stringHeader{})
	}
	return unsafe.Sizeof(sliceHeader{})
}

// InPlace implements Codec.
func (e *Sequence) InPlace() bool { return false }

// EncodeOne implements Codec.
func (e *Sequence) EncodeOne(ptr unsafe.Pointer, out []byte) []byte {
	checkPtr(ptr)
	data, l := e.header(ptr)
	out = encio.AppendUint32(out, e.length(l))
	return EncodeOneOrMany(e.elem, data, l, out)
}

// EncodeMany implements Codec.
func (e *Sequence) EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte {
	return e.encodeStrided(ptr, n, e.Size(), out)
}

func (e *Sequence) encodeStrided(ptr unsafe.Pointer, n int, stride uintptr, out []byte) []byte {
	if n == 0 {
		return out
	}
	if n == 1 {
		return e.EncodeOne(ptr, out)
	}

	out, lengths := encio.Reserve(out, n*encio.LengthSize)
	total := 0
	for i := 0; i < n; i++ {
		_, l := e.header(unsafe.Add(ptr, uintptr(i)*stride))
		encio.EncodeUint32(lengths[i*encio.LengthSize:], e.length(l))
		total += l
	}
	if total == 0 {
		return out
	}

	size := total * int(e.elemSize)
	switch {
	case e.elem.InPlace():
		out, window := encio.Reserve(out, size)
		off := 0
		for i := 0; i < n; i++ {
			data, l := e.header(unsafe.Add(ptr, uintptr(i)*stride))
			off += copy(window[off:], bytesAt(data, uintptr(l)*e.elemSize))
		}
		return out

	case !e.elemPointers:
		staged, buff, release := getScratch(size)
		defer release()
		off := 0
		for i := 0; i < n; i++ {
			data, l := e.header(unsafe.Add(ptr, uintptr(i)*stride))
			off += copy(buff[off:], bytesAt(data, uintptr(l)*e.elemSize))
		}
		return e.elem.EncodeMany(staged, total, out)

	default:
		staged := reflect.MakeSlice(e.ty, total, total)
		off := 0
		for i := 0; i < n; i++ {
			src := reflect.NewAt(e.ty, unsafe.Add(ptr, uintptr(i)*stride)).Elem()
			off += reflect.Copy(staged.Slice(off, off+src.Len()), src)
		}
		return e.elem.EncodeMany(staged.UnsafePointer(), total, out)
	}
}

// Validate implements Codec.
// Declared lengths are checked against the remaining input before any element is validated,
// so a bogus length can never cause work or allocation proportional to itself.
func (e *Sequence) Validate(in *[]byte, n int) error {
	e.checkDecodable()

	lengths, err := encio.ConsumeArrays(in, n, encio.LengthSize)
	if err != nil {
		return err
	}

	var total, carry uint64
	for i := 0; i < n; i++ {
		total, carry = bits.Add64(total, uint64(encio.DecodeUint32(lengths[i*encio.LengthSize:])), 0)
		if carry != 0 {
			return encio.NewValidationError(encio.ErrLengthOverflow, "summing sequence lengths")
		}
	}
	if total > uint64(maxInt) {
		return encio.NewValidationError(encio.ErrLengthOverflow, fmt.Sprintf("%v elements", total))
	}
	if _, err := encio.MulLength(int(total), int(e.elemSize)); err != nil {
		return err
	}

	// Every element with a non-zero size encodes to at least one byte.
	if e.elemSize > 0 && total > uint64(len(*in)) {
		return encio.NewValidationError(encio.ErrEOF, fmt.Sprintf("%v elements declared but only %v bytes remain", total, len(*in)))
	}
	// Zero sized elements cost nothing to decode, but the slices are still allocated.
	if e.elemSize == 0 && total > uint64(encio.TooBig) {
		return encio.NewValidationError(encio.ErrTooBig, fmt.Sprintf("%v zero sized elements", total))
	}

	return e.elem.Validate(in, int(total))
}

// DecodeOne implements Codec.
func (e *Sequence) DecodeOne(in *[]byte, ptr unsafe.Pointer) {
	e.checkDecodable()
	checkPtr(ptr)

	l := int(encio.DecodeUint32(encio.ConsumeArraysUnchecked(in, 1, encio.LengthSize)))
	data := e.alloc(l)
	DecodeOneOrMany(e.elem, in, data, l)
	e.setHeader(ptr, data, l)
}

// DecodeMany implements Codec.
func (e *Sequence) DecodeMany(in *[]byte, ptr unsafe.Pointer, n int) {
	e.decodeStrided(in, ptr, n, e.Size())
}

func (e *Sequence) decodeStrided(in *[]byte, ptr unsafe.Pointer, n int, stride uintptr) {
	e.checkDecodable()
	if n == 0 {
		return
	}
	if n == 1 {
		e.DecodeOne(in, ptr)
		return
	}

	lengths := encio.ConsumeArraysUnchecked(in, n, encio.LengthSize)
	total := 0
	for i := 0; i < n; i++ {
		l := int(encio.DecodeUint32(lengths[i*encio.LengthSize:]))
		e.setHeader(unsafe.Add(ptr, uintptr(i)*stride), e.alloc(l), l)
		total += l
	}
	if total == 0 {
		return
	}

	size := total * int(e.elemSize)
	switch {
	case e.elem.InPlace():
		src := encio.ConsumeArraysUnchecked(in, total, int(e.elemSize))
		off := 0
		for i := 0; i < n; i++ {
			data, l := e.header(unsafe.Add(ptr, uintptr(i)*stride))
			off += copy(bytesAt(data, uintptr(l)*e.elemSize), src[off:])
		}

	case !e.elemPointers:
		staged, buff, release := getScratch(size)
		defer release()
		e.elem.DecodeMany(in, staged, total)
		off := 0
		for i := 0; i < n; i++ {
			data, l := e.header(unsafe.Add(ptr, uintptr(i)*stride))
			off += copy(bytesAt(data, uintptr(l)*e.elemSize), buff[off:])
		}

	default:
		staged := reflect.MakeSlice(e.ty, total, total)
		e.elem.DecodeMany(in, staged.UnsafePointer(), total)
		off := 0
		for i := 0; i < n; i++ {
			dst := reflect.NewAt(e.ty, unsafe.Add(ptr, uintptr(i)*stride)).Elem()
			off += reflect.Copy(dst, staged.Slice(off, off+dst.Len()))
		}
	}
}

func (e *Sequence) header(ptr unsafe.Pointer) (unsafe.Pointer, int) {
	if e.kind == kindString {
		h := (*stringHeader)(ptr)
		return h.data, h.len
	}
	h := (*sliceHeader)(ptr)
	return h.data, h.len
}

func (e *Sequence) setHeader(ptr, data unsafe.Pointer, l int) {
	if e.kind == kindString {
		*(*stringHeader)(ptr) = stringHeader{data: data, len: l}
		return
	}
	*(*sliceHeader)(ptr) = sliceHeader{data: data, len: l, cap: l}
}

// alloc allocates the backing memory for a sequence of l elements.
func (e *Sequence) alloc(l int) unsafe.Pointer {
	if l == 0 {
		return nil
	}
	if e.kind == kindString {
		return unsafe.Pointer(unsafe.SliceData(make([]byte, l)))
	}
	return reflect.MakeSlice(e.ty, l, l).UnsafePointer()
}

func (e *Sequence) length(l int) uint32 {
	if uint64(l) > encio.MaxLength {
		panic(encio.NewError(encio.ErrLengthOverflow, fmt.Sprintf("sequence of length %v is longer than the encodable maximum of %v", l, uint64(encio.MaxLength)), 2))
	}
	return uint32(l)
}

func (e *Sequence) checkDecodable() {
	if e.kind == kindView {
		panic(encio.NewError(encio.ErrNotDecodable, fmt.Sprintf("cannot decode borrowed %v", e.ty), 2))
	}
}

func (e *Sequence) String() string {
	switch e.kind {
	case kindString:
		return "String"
	case kindView:
		return fmt.Sprintf("View(%v)", e.elem)
	default:
		return fmt.Sprintf("Slice(%v)", e.elem)
	}
}

const maxInt = int(^uint(0) >> 1)
