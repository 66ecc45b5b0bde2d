// Package codec provides Codecs, compiled per type from a shape.Shape, that move values between memory and the bitshape wire format.
//
// Codecs work on unsafe.Pointer values. A codec for type T must only ever be given pointers to allocated instances of T,
// or to runs of them; giving a codec any other pointer has undefined behaviour.
//
// Batches of values are encoded column by column: every instance's first struct field, then every instance's second field, and so on.
// Each field is then a run of values of one type, which is moved with a single specialised loop, or a single copy.
//
// Decoding is split in two. Validate checks that input holds well formed values without touching memory, and only after it succeeds
// may DecodeOne or DecodeMany be called on the same input and count. Decode performs no checks of its own.
package codec

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/stewi1014/bitshape/encio"
)

// Codec encodes, validates and decodes one type.
// Codecs are immutable once built, and safe for concurrent use.
type Codec interface {
	// Size returns the in-memory size of one instance.
	Size() uintptr

	// InPlace returns true if the encoded form of a contiguous run of instances is identical to their memory,
	// so runs can be copied straight between memory and the wire.
	InPlace() bool

	// EncodeOne appends the instance at ptr to out.
	// It has the same result as EncodeMany with n == 1.
	EncodeOne(ptr unsafe.Pointer, out []byte) []byte

	// EncodeMany appends the n contiguous instances starting at ptr to out.
	EncodeMany(ptr unsafe.Pointer, n int, out []byte) []byte

	// Validate consumes the encoding of n instances from in, returning an error if it is truncated or malformed.
	Validate(in *[]byte, n int) error

	// DecodeOne decodes an instance from in into ptr.
	// in must have been validated for one instance.
	DecodeOne(in *[]byte, ptr unsafe.Pointer)

	// DecodeMany decodes n instances from in into the contiguous run starting at ptr.
	// in must have been validated for n instances.
	DecodeMany(in *[]byte, ptr unsafe.Pointer, n int)
}

// stridedCodec is implemented by codecs for values holding pointers.
// Their instances cannot be moved through untyped staging memory,
// so they read and write runs spaced stride bytes apart themselves.
type stridedCodec interface {
	Codec
	encodeStrided(ptr unsafe.Pointer, n int, stride uintptr, out []byte) []byte
	decodeStrided(in *[]byte, ptr unsafe.Pointer, n int, stride uintptr)
}

// EncodeOneOrMany calls EncodeOne if n == 1, else EncodeMany.
func EncodeOneOrMany(c Codec, ptr unsafe.Pointer, n int, out []byte) []byte {
	if n == 1 {
		return c.EncodeOne(ptr, out)
	}
	return c.EncodeMany(ptr, n, out)
}

// DecodeOneOrMany calls DecodeOne if n == 1, else DecodeMany.
func DecodeOneOrMany(c Codec, in *[]byte, ptr unsafe.Pointer, n int) {
	if n == 1 {
		c.DecodeOne(in, ptr)
		return
	}
	c.DecodeMany(in, ptr, n)
}

// bytesAt returns a byteslice of length n backed by the memory at ptr.
func bytesAt(ptr unsafe.Pointer, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

// checkPtr panics if ptr is nil.
func checkPtr(ptr unsafe.Pointer) {
	if ptr == nil {
		panic(encio.NewError(encio.ErrNilPointer, "codecs must be given pointers to allocated values", 1))
	}
}

// Staging memory for runs that must be re-laid out before a child codec can take them.
// Only pointer-free values are ever staged here.
var scratchPool = sync.Pool{
	New: func() interface{} {
		b := make([]uint64, 0, 64)
		return &b
	},
}

// getScratch returns a zeroed-length, 8 byte aligned buffer of at least n bytes.
// The returned release func must be called once the buffer is no longer used.
func getScratch(n int) (unsafe.Pointer, []byte, func()) {
	bp := scratchPool.Get().(*[]uint64)
	words := (n + 7) / 8
	if cap(*bp) < words {
		*bp = make([]uint64, words)
	}
	*bp = (*bp)[:words]

	if words == 0 {
		return nil, nil, func() { scratchPool.Put(bp) }
	}
	ptr := unsafe.Pointer(&(*bp)[0])
	return ptr, unsafe.Slice((*byte)(ptr), n), func() { scratchPool.Put(bp) }
}

// typedStaging allocates a run of n values of type t.
// It is used to stage values holding pointers, so the garbage collector can see them.
func typedStaging(t reflect.Type, n int) unsafe.Pointer {
	return reflect.MakeSlice(reflect.SliceOf(t), n, n).UnsafePointer()
}

// typedCopy copies one value of type t from src to dst with write barriers.
func typedCopy(t reflect.Type, dst, src unsafe.Pointer) {
	reflect.NewAt(t, dst).Elem().Set(reflect.NewAt(t, src).Elem())
}
