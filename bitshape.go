// Package bitshape is a fast binary serialization library for plain-data Go types.
//
// Values are encoded by their memory layout: integers, floats, bools and Chars as their little-endian bytes,
// structs as their fields in declaration order, and slices and strings as a 4 byte length followed by their elements.
// Runs of structs are laid out column by column, which lets runs of fields move as single copies.
// There is no type information or versioning on the wire; both ends must agree on the type.
//
// Types holding pointers, maps, interfaces, funcs, channels or complex numbers cannot be encoded,
// and asking to encode them panics with an encio.Error.
//
// Codecs are compiled once per type and cached for the life of the process.
//
// bitshape/frame carries encoded values over streams, with optional compression and checksums.
//
// bitshape/encio provides the buffer arithmetic and error types used throughout.
package bitshape

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/stewi1014/bitshape/cache"
	"github.com/stewi1014/bitshape/codec"
	"github.com/stewi1014/bitshape/encio"
	"github.com/stewi1014/bitshape/shape"
)

// Char is a Unicode scalar value. Decoding rejects surrogates and values over 0x10FFFF.
type Char = shape.Char

// View is a borrowed slice. It encodes exactly like []T, but values holding one cannot be decoded.
type View[T any] = shape.View[T]

// Serialize returns the encoding of v.
// v may be a value or a pointer to one; passing a pointer avoids copying v.
func Serialize(v any) []byte {
	return SerializeInto(nil, v)
}

// SerializeInto appends the encoding of v to buf.
func SerializeInto(buf []byte, v any) []byte {
	return serialize(cache.Default, buf, v)
}

// Deserialize decodes a T from b.
// b must hold exactly one encoded T; trailing bytes are an error.
func Deserialize[T any](b []byte) (T, error) {
	var v T
	err := deserialize(cache.Default, b, reflect.TypeFor[T](), unsafe.Pointer(&v))
	return v, err
}

// DeserializeInto decodes b into the value ptr points to.
// ptr must be a non-nil pointer. Nothing is written if an error is returned.
func DeserializeInto(b []byte, ptr any) error {
	ty, p := target(ptr)
	return deserialize(cache.Default, b, ty, p)
}

func serialize(c *cache.Cache, buf []byte, v any) []byte {
	cd, ptr := source(c, v)
	return cd.EncodeOne(ptr, buf)
}

func deserialize(c *cache.Cache, b []byte, ty reflect.Type, ptr unsafe.Pointer) error {
	cd := c.For(ty)

	in := b
	if err := cd.Validate(&in, 1); err != nil {
		return err
	}
	if err := encio.ExpectEOF(in); err != nil {
		return err
	}

	in = b
	cd.DecodeOne(&in, ptr)
	return nil
}

// source returns the codec and location of the value held in v.
func source(c *cache.Cache, v any) (codec.Codec, unsafe.Pointer) {
	if v == nil {
		panic(encio.NewError(encio.ErrNilPointer, "cannot encode nil interface", 1))
	}

	ty := reflect.TypeOf(v)
	if ty.Kind() == reflect.Ptr {
		val := reflect.ValueOf(v)
		if val.IsNil() {
			panic(encio.NewError(encio.ErrNilPointer, fmt.Sprintf("cannot encode nil %v", ty), 1))
		}
		return c.For(ty.Elem()), val.UnsafePointer()
	}

	// Compiling first refuses the pointer shaped types whose interface holds the value itself.
	cd := c.For(ty)
	return cd, ptrInterface(unsafe.Pointer(&v)).elem
}

// target returns the type and location ptr points to.
func target(ptr any) (reflect.Type, unsafe.Pointer) {
	if ptr == nil {
		panic(encio.NewError(encio.ErrNilPointer, "cannot decode into nil interface", 1))
	}

	val := reflect.ValueOf(ptr)
	if val.Kind() != reflect.Ptr {
		panic(encio.NewError(encio.ErrBadType, fmt.Sprintf("decoded values must be passed by reference (pointer), got %v", val.Type()), 1))
	}
	if val.IsNil() {
		panic(encio.NewError(encio.ErrNilPointer, "cannot decode into nil pointer", 1))
	}

	return val.Type().Elem(), val.UnsafePointer()
}
