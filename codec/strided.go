package codec

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/stewi1014/bitshape/encio"
)

// NewStrided returns a Strided for a field at offset, in values that are stride bytes apart.
func NewStrided(c Codec, offset, stride uintptr) Strided {
	s := Strided{
		codec:  c,
		offset: offset,
		size:   c.Size(),
		stride: stride,
	}

	switch sc := c.(type) {
	case stridedCodec:
		s.strided = sc
	default:
		s.inPlace = c.InPlace()
	}

	return s
}

// Strided moves one field of a run of values.
// When encoding, the field is gathered out of each value into a contiguous run,
// which the field's Codec then encodes as if it were a slice of the field's type.
// In-place codecs are gathered straight into the output; others are gathered into staging memory first.
// Decoding decodes the contiguous run and scatters it back.
type Strided struct {
	codec   Codec
	strided stridedCodec
	inPlace bool
	offset  uintptr
	size    uintptr
	stride  uintptr
}

// EncodeOne encodes the field of the value at ptr.
func (e *Strided) EncodeOne(ptr unsafe.Pointer, out []byte) []byte {
	return e.codec.EncodeOne(unsafe.Add(ptr, e.offset), out)
}

// EncodeMany encodes the field of the n values starting at ptr.
func (e *Strided) EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte {
	field := unsafe.Add(ptr, e.offset)
	switch {
	case n == 0:
		return out
	case n == 1:
		return e.codec.EncodeOne(field, out)
	case e.strided != nil:
		return e.strided.encodeStrided(field, n, e.stride, out)
	case e.stride == e.size:
		return e.codec.EncodeMany(field, n, out)
	case e.inPlace:
		out, window := encio.Reserve(out, n*int(e.size))
		gather(window, field, n, e.stride, e.size)
		return out
	default:
		staged, buff, release := getScratch(n * int(e.size))
		defer release()
		gather(buff, field, n, e.stride, e.size)
		return e.codec.EncodeMany(staged, n, out)
	}
}

// Validate validates n encoded fields.
func (e *Strided) Validate(in *[]byte, n int) error {
	return e.codec.Validate(in, n)
}

// DecodeOne decodes the field of the value at ptr.
func (e *Strided) DecodeOne(in *[]byte, ptr unsafe.Pointer) {
	e.codec.DecodeOne(in, unsafe.Add(ptr, e.offset))
}

// DecodeMany decodes the field of the n values starting at ptr.
func (e *Strided) DecodeMany(in *[]byte, ptr unsafe.Pointer, n int) {
	field := unsafe.Add(ptr, e.offset)
	switch {
	case n == 0:
	case n == 1:
		e.codec.DecodeOne(in, field)
	case e.strided != nil:
		e.strided.decodeStrided(in, field, n, e.stride)
	case e.stride == e.size:
		e.codec.DecodeMany(in, field, n)
	case e.inPlace:
		scatter(field, encio.ConsumeArraysUnchecked(in, n, int(e.size)), n, e.stride, e.size)
	default:
		staged, buff, release := getScratch(n * int(e.size))
		defer release()
		e.codec.DecodeMany(in, staged, n)
		scatter(field, buff, n, e.stride, e.size)
	}
}

// gather copies size bytes from each of n values stride bytes apart into dst.
func gather(dst []byte, src unsafe.Pointer, n int, stride, size uintptr) {
	switch size {
	case 1:
		for i := 0; i < n; i++ {
			dst[i] = *(*byte)(unsafe.Add(src, uintptr(i)*stride))
		}
	case 2:
		gatherArrays[[2]byte](dst, src, n, stride)
	case 4:
		gatherArrays[[4]byte](dst, src, n, stride)
	case 8:
		gatherArrays[[8]byte](dst, src, n, stride)
	case 16:
		gatherArrays[[16]byte](dst, src, n, stride)
	case 24:
		gatherArrays[[24]byte](dst, src, n, stride)
	case 32:
		gatherArrays[[32]byte](dst, src, n, stride)
	case 64:
		gatherArrays[[64]byte](dst, src, n, stride)
	default:
		for i := 0; i < n; i++ {
			copy(dst[uintptr(i)*size:], bytesAt(unsafe.Add(src, uintptr(i)*stride), size))
		}
	}
}

// byte arrays have no alignment requirement, so they can be loaded and stored anywhere.
func gatherArrays[T any](dst []byte, src unsafe.Pointer, n int, stride uintptr) {
	d := unsafe.Slice((*T)(unsafe.Pointer(&dst[0])), n)
	for i := range d {
		d[i] = *(*T)(unsafe.Add(src, uintptr(i)*stride))
	}
}

// scatter copies n runs of size bytes from src into values stride bytes apart.
func scatter(dst unsafe.Pointer, src []byte, n int, stride, size uintptr) {
	switch size {
	case 1:
		for i := 0; i < n; i++ {
			*(*byte)(unsafe.Add(dst, uintptr(i)*stride)) = src[i]
		}
	case 2:
		scatterArrays[[2]byte](dst, src, n, stride)
	case 4:
		scatterArrays[[4]byte](dst, src, n, stride)
	case 8:
		scatterArrays[[8]byte](dst, src, n, stride)
	case 16:
		scatterArrays[[16]byte](dst, src, n, stride)
	case 24:
		scatterArrays[[24]byte](dst, src, n, stride)
	case 32:
		scatterArrays[[32]byte](dst, src, n, stride)
	case 64:
		scatterArrays[[64]byte](dst, src, n, stride)
	default:
		for i := 0; i < n; i++ {
			copy(bytesAt(unsafe.Add(dst, uintptr(i)*stride), size), src[uintptr(i)*size:])
		}
	}
}

func scatterArrays[T any](dst unsafe.Pointer, src []byte, n int, stride uintptr) {
	s := unsafe.Slice((*T)(unsafe.Pointer(&src[0])), n)
	for i := range s {
		*(*T)(unsafe.Add(dst, uintptr(i)*stride)) = s[i]
	}
}

// NewStruct returns a Codec for structs of the given size made of fields.
// Fields whose Codec is itself a Struct are flattened into the returned Struct's fields,
// and zero sized fields, which encode nothing, are dropped.
// A struct left with a single field filling the whole struct is just that field, and its Codec is returned.
func NewStruct(size uintptr, fields []Strided) Codec {
	flat := make([]Strided, 0, len(fields))
	for _, field := range fields {
		if nested, ok := field.codec.(*Struct); ok {
			for _, nf := range nested.fields {
				flat = append(flat, NewStrided(nf.codec, field.offset+nf.offset, size))
			}
			continue
		}
		if field.size == 0 {
			continue
		}
		flat = append(flat, field)
	}

	if len(flat) == 1 && flat[0].size == size {
		if flat[0].offset != 0 {
			panic(encio.NewError(encio.ErrBadType, fmt.Sprintf("field fills a %v byte struct from offset %v", size, flat[0].offset), 0))
		}
		return flat[0].codec
	}

	return &Struct{
		fields: flat,
		size:   size,
	}
}

// Struct is a Codec for structs.
// Fields are encoded in declaration order. A run of structs encodes each field's whole run before the next field.
type Struct struct {
	fields []Strided
	size   uintptr
}

// NumFields returns the number of flattened fields.
func (e *Struct) NumFields() int { return len(e.fields) }

// Size implements Codec.
func (e *Struct) Size() uintptr { return e.size }

// InPlace implements Codec.
func (e *Struct) InPlace() bool { return false }

// EncodeOne implements Codec.
func (e *Struct) EncodeOne(ptr unsafe.Pointer, out []byte) []byte {
	checkPtr(ptr)
	for i := range e.fields {
		out = e.fields[i].EncodeOne(ptr, out)
	}
	return out
}

// EncodeMany implements Codec.
func (e *Struct) EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte {
	for i := range e.fields {
		out = e.fields[i].EncodeMany(ptr, n, out)
	}
	return out
}

// Validate implements Codec.
func (e *Struct) Validate(in *[]byte, n int) error {
	for i := range e.fields {
		if err := e.fields[i].Validate(in, n); err != nil {
			return err
		}
	}
	return nil
}

// DecodeOne implements Codec.
func (e *Struct) DecodeOne(in *[]byte, ptr unsafe.Pointer) {
	checkPtr(ptr)
	for i := range e.fields {
		e.fields[i].DecodeOne(in, ptr)
	}
}

// DecodeMany implements Codec.
func (e *Struct) DecodeMany(in *[]byte, ptr unsafe.Pointer, n int) {
	for i := range e.fields {
		e.fields[i].DecodeMany(in, ptr, n)
	}
}

func (e *Struct) String() string {
	var sb strings.Builder
	sb.WriteString("Struct(")
	for i, f := range e.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d: %v", f.offset, f.codec)
	}
	sb.WriteString(")")
	return sb.String()
}
