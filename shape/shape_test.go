package shape_test

import (
	"reflect"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/stewi1014/bitshape/shape"
)

type point struct {
	X, Y int32
	Tag  string
}

type tree struct {
	Value    uint8
	Children []tree
}

func TestOf(t *testing.T) {
	testCases := []struct {
		desc     string
		value    interface{}
		kind     shape.Kind
		str      string
		pointers bool
	}{
		{"uint8", uint8(0), shape.Uint, "uint1", false},
		{"int64", int64(0), shape.Int, "int8", false},
		{"rune", rune(0), shape.Int, "int4", false},
		{"char", shape.Char(0), shape.KindChar, "char4", false},
		{"bool", false, shape.Bool, "bool1", false},
		{"float32", float32(0), shape.Float, "float4", false},
		{"string", "", shape.String, "string", true},
		{"slice", []uint16{}, shape.Slice, "[]uint2", true},
		{"view", shape.View[uint16]{}, shape.KindView, "view[]uint2", true},
		{"array", [3]bool{}, shape.Array, "[3]bool1", false},
		{"array of strings", [2]string{}, shape.Array, "[2]string", true},
		{"empty array of strings", [0]string{}, shape.Array, "[0]string", false},
		{"struct", point{}, shape.Struct, "struct{int4, int4, string}", true},
		{"empty struct", struct{}{}, shape.Struct, "struct{}", false},
		{"map", map[int]int{}, shape.Invalid, "invalid8", true},
		{"complex", complex64(0), shape.Invalid, "invalid8", true},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			ty := reflect.TypeOf(tC.value)
			s := shape.Of(ty)

			td.Cmp(t, s.Kind, tC.kind)
			td.Cmp(t, s.String(), tC.str)
			td.Cmp(t, s.Pointers, tC.pointers)
			td.Cmp(t, s.Size, ty.Size())
			td.Cmp(t, s.Type == ty, true)
			td.Cmp(t, s.ID, shape.TypeID(ty))
		})
	}
}

func TestOfStructFields(t *testing.T) {
	s := shape.Of(reflect.TypeOf(point{}))

	for i, name := range []string{"X", "Y", "Tag"} {
		td.Cmp(t, s.Fields[i].Name, name)
	}
	td.Cmp(t, s.Fields, td.Len(3))
	td.Cmp(t, s.Fields[1].Offset, uintptr(4))
	td.Cmp(t, s.Fields[2].Shape.Kind, shape.String)
}

func TestOfRecursive(t *testing.T) {
	s := shape.Of(reflect.TypeOf(tree{}))

	td.Cmp(t, s.Kind, shape.Struct)
	children := s.Fields[1].Shape
	td.Cmp(t, children.Kind, shape.Slice)
	td.Cmp(t, children.Elem.Kind, shape.Invalid)
}

type letter shape.Char

func TestOfDefinedChar(t *testing.T) {
	// Types declared from Char are plain integers.
	s := shape.Of(reflect.TypeOf(letter(0)))
	td.Cmp(t, s.Kind, shape.Int)
	td.Cmp(t, s.Size, uintptr(4))

	td.Cmp(t, shape.Of(reflect.TypeOf(shape.Char(0))).Kind, shape.KindChar)
	td.Cmp(t, shape.KindChar.String(), "char")
}

func TestTypeID(t *testing.T) {
	a := shape.TypeID(reflect.TypeOf(point{}))
	b := shape.TypeID(reflect.TypeOf(point{}))
	c := shape.TypeID(reflect.TypeOf(tree{}))

	td.Cmp(t, a, b)
	td.CmpNot(t, a, c)
	td.CmpNot(t, a, shape.ID(0))
	td.Cmp(t, shape.TypeID(nil), shape.ID(0))
}

func TestKind(t *testing.T) {
	td.Cmp(t, shape.Slice.IsSequence(), true)
	td.Cmp(t, shape.String.IsSequence(), true)
	td.Cmp(t, shape.KindView.IsSequence(), true)
	td.Cmp(t, shape.Array.IsSequence(), false)
	td.Cmp(t, shape.Kind(200).String(), "Kind(200)")
}
