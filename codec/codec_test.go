package codec_test

import (
	"errors"
	"math"
	"reflect"
	"runtime"
	"testing"
	"unsafe"

	"github.com/maxatome/go-testdeep/td"
	"github.com/stewi1014/bitshape/codec"
	"github.com/stewi1014/bitshape/encio"
	"github.com/stewi1014/bitshape/shape"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func encode[T any](v T) []byte {
	c := codec.CompileType(typeOf[T]())
	return c.EncodeOne(unsafe.Pointer(&v), nil)
}

func decode[T any](b []byte) (v T, err error) {
	c := codec.CompileType(typeOf[T]())

	validated := b
	if err = c.Validate(&validated, 1); err != nil {
		return
	}
	if err = encio.ExpectEOF(validated); err != nil {
		return
	}

	decoded := b
	c.DecodeOne(&decoded, unsafe.Pointer(&v))
	if len(decoded) != len(validated) {
		panic("validate and decode consumed different amounts of input")
	}
	return
}

func roundTrip[T any](t *testing.T, v T) {
	t.Helper()
	got, err := decode[T](encode(v))
	if td.CmpNoError(t, err) {
		td.Cmp(t, got, v)
	}
}

// recovered runs fn, returning the error it panicked with.
func recovered(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
			if err == nil {
				err = errors.New("panicked with non-error")
			}
		}
	}()
	fn()
	return nil
}

type foo struct {
	A uint32
	B uint8
	C bool
}

func TestEncodePrimitives(t *testing.T) {
	td.Cmp(t, encode(uint8(5)), []byte{5})
	td.Cmp(t, encode(uint16(5)), []byte{5, 0})
	td.Cmp(t, encode(uint32(5)), []byte{5, 0, 0, 0})
	td.Cmp(t, encode(uint64(5)), []byte{5, 0, 0, 0, 0, 0, 0, 0})

	td.Cmp(t, encode(int8(-5)), []byte{251})
	td.Cmp(t, encode(int16(-5)), []byte{251, 255})
	td.Cmp(t, encode(int32(-5)), []byte{251, 255, 255, 255})
	td.Cmp(t, encode(int64(-5)), []byte{251, 255, 255, 255, 255, 255, 255, 255})

	td.Cmp(t, encode(float32(5)), encio.AppendUint32(nil, math.Float32bits(5)))
	td.Cmp(t, encode(float64(5))[:8], []byte{0, 0, 0, 0, 0, 0, 0x14, 0x40})

	td.Cmp(t, encode(false), []byte{0})
	td.Cmp(t, encode(true), []byte{1})

	td.Cmp(t, encode(shape.Char('a')), []byte{'a', 0, 0, 0})
}

func TestEncodeStruct(t *testing.T) {
	td.Cmp(t, encode(foo{3, 2, true}), []byte{3, 0, 0, 0, 2, 1})

	td.Cmp(t, encode([]foo{{33, 3, true}, {22, 2, false}, {11, 1, true}}), []byte{
		3, 0, 0, 0,
		33, 0, 0, 0, 22, 0, 0, 0, 11, 0, 0, 0,
		3, 2, 1,
		1, 0, 1,
	})
}

func TestEncodeSequences(t *testing.T) {
	td.Cmp(t, encode([]uint32{5}), []byte{1, 0, 0, 0, 5, 0, 0, 0})
	td.Cmp(t, encode(shape.View[uint32]{5}), []byte{1, 0, 0, 0, 5, 0, 0, 0})
	td.Cmp(t, encode([]foo{{3, 2, true}}), []byte{1, 0, 0, 0, 3, 0, 0, 0, 2, 1})

	v0 := []uint32{5, 6}
	td.Cmp(t, encode([][]uint32{v0, v0}), []byte{
		2, 0, 0, 0,
		2, 0, 0, 0, 2, 0, 0, 0,
		5, 0, 0, 0, 6, 0, 0, 0, 5, 0, 0, 0, 6, 0, 0, 0,
	})

	td.Cmp(t, encode([][][]uint32{{{5}}}), []byte{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 5, 0, 0, 0})

	td.Cmp(t, encode("hi"), []byte{2, 0, 0, 0, 'h', 'i'})
	td.Cmp(t, encode([]string{"a", "bc"}), []byte{2, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 'a', 'b', 'c'})
}

func TestRoundTripPrimitives(t *testing.T) {
	roundTrip(t, uint8(5))
	roundTrip(t, uint16(5))
	roundTrip(t, uint32(5))
	roundTrip(t, uint64(math.MaxUint64))
	roundTrip(t, uint(7))
	roundTrip(t, uintptr(9))

	roundTrip(t, int8(-5))
	roundTrip(t, int16(-5))
	roundTrip(t, int32(-5))
	roundTrip(t, int64(math.MinInt64))
	roundTrip(t, int(-7))

	roundTrip(t, float32(5.5))
	roundTrip(t, math.Inf(-1))

	roundTrip(t, false)
	roundTrip(t, true)

	roundTrip(t, shape.Char('a'))
	roundTrip(t, shape.Char(0x10FFFF))
}

type inner struct {
	A uint16
	B [2]bool
}

type pair struct {
	a uint8
	b uint16
}

type vertex struct {
	Pos     [3]float32
	ID      uint64
	Small   int8
	Inner   inner
	Name    string
	Tags    []uint16
	Weights [2][]uint8
	Pairs   [2]pair
	Wide16  [2]uint64
	Wide24  [3]uint64
	Wide32  [4]uint64
	Wide64  [8]uint64
	Letter  shape.Char
	_       struct{}
	Nothing [0]uint32
	Last    int16
}

func newVertex(i int) vertex {
	v := vertex{
		Pos:     [3]float32{float32(i), float32(i) + 0.5, -float32(i)},
		ID:      uint64(i) << 40,
		Small:   int8(-i),
		Inner:   inner{A: uint16(i * 3), B: [2]bool{i%2 == 0, true}},
		Weights: [2][]uint8{{uint8(i)}, nil},
		Pairs:   [2]pair{{a: uint8(i), b: uint16(i * 7)}, {a: 1, b: 2}},
		Letter:  shape.Char('a' + i%26),
		Last:    int16(i * -11),
	}
	for j := range v.Wide64 {
		v.Wide64[j] = uint64(i * j)
	}
	v.Wide16[1] = uint64(i)
	v.Wide24[2] = uint64(i)
	v.Wide32[3] = uint64(i)
	if i%3 != 0 {
		v.Name = "vertex"
		v.Tags = []uint16{uint16(i), uint16(i + 1)}
	}
	return v
}

func TestRoundTripStructs(t *testing.T) {
	roundTrip(t, foo{3, 2, true})
	roundTrip(t, struct{ V uint32 }{7})
	roundTrip(t, struct{ W struct{ V uint32 } }{struct{ V uint32 }{7}})
	roundTrip(t, struct{}{})
	roundTrip(t, newVertex(4))

	vertices := make([]vertex, 17)
	for i := range vertices {
		vertices[i] = newVertex(i)
	}
	roundTrip(t, vertices)
	roundTrip(t, [4]vertex{newVertex(1), newVertex(2), newVertex(3), newVertex(4)})
}

func TestRoundTripSequences(t *testing.T) {
	roundTrip(t, []uint32{1, 2, 3})
	roundTrip(t, []uint32(nil))
	roundTrip(t, [][]uint32{{1}, nil, {2, 3}})
	roundTrip(t, [][][]int8{{{1}, {2, 3}}, nil, {{-4}}})
	roundTrip(t, []bool{true, false, true})
	roundTrip(t, []shape.Char("hello, 世界"))
	roundTrip(t, "hello, 世界")
	roundTrip(t, []string{"a", "", "bcd"})
	roundTrip(t, [][]string{{"a", "b"}, {"c"}})
	roundTrip(t, []struct {
		Name string
		Vals []int32
	}{{"x", []int32{1, 2}}, {"y", nil}, {"", []int32{3}}})
	roundTrip(t, []struct{}{{}, {}})
	roundTrip(t, [][2]uint16{{1, 2}, {3, 4}})
	roundTrip(t, [][2]pair{{{1, 2}, {3, 4}}})
	roundTrip(t, [3][]uint8{{1}, nil, {2, 3}})
}

func TestInvalidBool(t *testing.T) {
	_, err := decode[bool](encode(uint8(2)))
	td.Cmp(t, errors.Is(err, encio.ErrInvalidBitPattern), true, "got %v", err)

	_, err = decode[[]bool]([]byte{3, 0, 0, 0, 0, 1, 2})
	td.Cmp(t, errors.Is(err, encio.ErrInvalidBitPattern), true, "got %v", err)
}

func TestInvalidChar(t *testing.T) {
	testCases := []struct {
		value uint32
		valid bool
	}{
		{0, true},
		{0xD7FF, true},
		{0xD800, false},
		{0xDFFF, false},
		{0xE000, true},
		{0x10FFFF, true},
		{0x110000, false},
		{math.MaxUint32, false},
	}
	for _, tC := range testCases {
		_, err := decode[shape.Char](encode(tC.value))
		if tC.valid {
			td.CmpNoError(t, err, "%#x", tC.value)
		} else {
			td.Cmp(t, errors.Is(err, encio.ErrInvalidBitPattern), true, "%#x: got %v", tC.value, err)
		}
	}
}

func TestTruncated(t *testing.T) {
	vertices := []vertex{newVertex(1), newVertex(2), newVertex(5)}
	encoded := encode(vertices)

	for i := 0; i < len(encoded); i++ {
		_, err := decode[[]vertex](encoded[:i])
		var valErr encio.ValidationError
		if !td.Cmp(t, errors.As(err, &valErr), true, "%v of %v bytes: got %v", i, len(encoded), err) {
			return
		}
	}
}

func TestTrailingBytes(t *testing.T) {
	encoded := append(encode(foo{3, 2, true}), 0)
	_, err := decode[foo](encoded)
	td.Cmp(t, errors.Is(err, encio.ErrTrailingBytes), true, "got %v", err)
}

func TestHugeLength(t *testing.T) {
	encoded := []byte{0xff, 0xff, 0xff, 0xff, 1, 2, 3, 4}
	_, err := decode[[]uint64](encoded)
	td.Cmp(t, errors.Is(err, encio.ErrEOF), true, "got %v", err)

	// Each inner length fits on its own, but together they outrun the input.
	batch := []byte{2, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	_, err = decode[[][]uint8](batch)
	td.Cmp(t, errors.Is(err, encio.ErrEOF), true, "got %v", err)

	c := codec.CompileType(typeOf[[]uint64]())
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	for i := 0; i < 10; i++ {
		in := encoded
		_ = c.Validate(&in, 1)
	}
	runtime.ReadMemStats(&after)
	td.Cmp(t, after.TotalAlloc-before.TotalAlloc, td.Lt(uint64(1<<20)), "validating a bogus length allocated memory")
}

func TestViewNotDecodable(t *testing.T) {
	c := codec.CompileType(typeOf[shape.View[uint32]]())
	encoded := encode(shape.View[uint32]{5})

	err := recovered(func() {
		in := encoded
		_ = c.Validate(&in, 1)
	})
	td.Cmp(t, errors.Is(err, encio.ErrNotDecodable), true, "got %v", err)

	err = recovered(func() {
		var v shape.View[uint32]
		in := encoded
		c.DecodeOne(&in, unsafe.Pointer(&v))
	})
	td.Cmp(t, errors.Is(err, encio.ErrNotDecodable), true, "got %v", err)
}

type node struct {
	Children []node
}

func TestUnsupported(t *testing.T) {
	testCases := []struct {
		desc string
		ty   reflect.Type
	}{
		{"map", typeOf[map[int]int]()},
		{"pointer", typeOf[*int]()},
		{"interface", typeOf[interface{}]()},
		{"complex", typeOf[complex128]()},
		{"func field", typeOf[struct{ F func() }]()},
		{"recursive", typeOf[node]()},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			err := recovered(func() { codec.CompileType(tC.ty) })
			td.Cmp(t, errors.Is(err, encio.ErrBadType), true, "got %v", err)

			var encErr encio.Error
			td.Cmp(t, errors.As(err, &encErr), true)
		})
	}

	for _, s := range []*shape.Shape{
		{Kind: shape.Uint, Size: 3},
		{Kind: shape.Int, Size: 16},
		{Kind: shape.Float, Size: 2},
		{Kind: shape.Bool, Size: 2},
		{Kind: shape.Slice, Size: 24, Elem: &shape.Shape{Kind: shape.Uint, Size: 1}},
	} {
		err := recovered(func() { codec.Compile(s) })
		td.Cmp(t, errors.Is(err, encio.ErrBadType), true, "%v: got %v", s, err)
	}
}

func TestFlatten(t *testing.T) {
	type nested struct {
		X  uint8
		In struct {
			A uint16
			B struct {
				C uint32
				D []uint8
			}
		}
		E struct{}
	}

	c := codec.CompileType(typeOf[nested]())
	if td.Cmp(t, c, td.Isa(&codec.Struct{})) {
		td.Cmp(t, c.(*codec.Struct).NumFields(), 4)
	}

	td.Cmp(t, codec.CompileType(typeOf[struct{ V uint32 }]()), td.Isa(&codec.Primitive{}))
	td.Cmp(t, codec.CompileType(typeOf[struct{ W struct{ V []uint8 } }]()), td.Isa(&codec.Sequence{}))

	// Padding after the only field is not elided.
	type padded struct {
		V uint32
		_ [0]uint64
	}
	td.Cmp(t, codec.CompileType(typeOf[padded]()), td.Isa(&codec.Struct{}))
}

func TestHandBuiltShape(t *testing.T) {
	// A struct of (u32, u8, bool) laid out without reflection.
	s := &shape.Shape{
		Kind: shape.Struct,
		Size: 8,
		Fields: []shape.Field{
			{Shape: &shape.Shape{Kind: shape.Uint, Size: 4}, Offset: 0, Size: 4},
			{Shape: &shape.Shape{Kind: shape.Uint, Size: 1}, Offset: 4, Size: 1},
			{Shape: &shape.Shape{Kind: shape.Bool, Size: 1}, Offset: 5, Size: 1},
		},
	}
	c := codec.Compile(s)

	v := foo{3, 2, true}
	td.Cmp(t, c.EncodeOne(unsafe.Pointer(&v), nil), []byte{3, 0, 0, 0, 2, 1})
}

func BenchmarkEncodeVertices(b *testing.B) {
	vertices := make([]vertex, 1000)
	for i := range vertices {
		vertices[i] = newVertex(i)
	}
	c := codec.CompileType(typeOf[[]vertex]())

	var out []byte
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out = c.EncodeOne(unsafe.Pointer(&vertices), out[:0])
	}
	b.SetBytes(int64(len(out)))
}

func BenchmarkDecodeVertices(b *testing.B) {
	vertices := make([]vertex, 1000)
	for i := range vertices {
		vertices[i] = newVertex(i)
	}
	c := codec.CompileType(typeOf[[]vertex]())
	encoded := c.EncodeOne(unsafe.Pointer(&vertices), nil)

	b.SetBytes(int64(len(encoded)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in := encoded
		if err := c.Validate(&in, 1); err != nil {
			b.Fatal(err)
		}
		var got []vertex
		in = encoded
		c.DecodeOne(&in, unsafe.Pointer(&got))
	}
}
