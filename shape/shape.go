// Package shape describes the memory layout of Go types in the terms codecs are built from.
//
// A Shape is immutable once built. Of builds shapes from reflect.Type values, but shapes can also be
// built by hand for layouts that reflection cannot express.
package shape

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"
)

// Kind classifies a Shape.
type Kind uint8

// Kinds of shape.
const (
	Invalid Kind = iota
	Uint
	Int
	Float
	Bool
	KindChar
	Struct
	Array
	Slice    // owned, growable sequence
	String   // owned sequence of bytes
	KindView // borrowed sequence; encode only
)

var kindNames = [...]string{
	Invalid:  "invalid",
	Uint:     "uint",
	Int:      "int",
	Float:    "float",
	Bool:     "bool",
	KindChar: "char",
	Struct:   "struct",
	Array:    "array",
	Slice:    "slice",
	String:   "string",
	KindView: "view",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsSequence returns true for length-prefixed kinds.
func (k Kind) IsSequence() bool {
	return k == Slice || k == String || k == KindView
}

// ID identifies a type. IDs are totally ordered and stable for the life of the process.
type ID uintptr

// Shape describes the layout of a type.
type Shape struct {
	// ID is the type's identity, used as a cache key. Zero for hand-built shapes that are not cached.
	ID ID

	// Type is the described type. It is required for sequences and arrays whose values hold pointers,
	// which must be allocated and copied as typed memory.
	Type reflect.Type

	Kind  Kind
	Size  uintptr
	Align uintptr

	// Pointers is true if values of the type hold pointers.
	Pointers bool

	// Fields holds struct fields in declaration order.
	Fields []Field

	// Elem is the element shape of arrays and sequences.
	Elem *Shape

	// Len is the length of arrays.
	Len int
}

// Field is a struct field.
type Field struct {
	Name   string
	Shape  *Shape
	Offset uintptr
	Size   uintptr
}

// String returns a compact description of the shape, e.g. "struct{uint4, []bool1}".
func (s *Shape) String() string {
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s *Shape) write(sb *strings.Builder) {
	switch s.Kind {
	case Struct:
		sb.WriteString("struct{")
		for i, f := range s.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			f.Shape.write(sb)
		}
		sb.WriteString("}")
	case Array:
		fmt.Fprintf(sb, "[%d]", s.Len)
		s.Elem.write(sb)
	case Slice:
		sb.WriteString("[]")
		s.Elem.write(sb)
	case KindView:
		sb.WriteString("view[]")
		s.Elem.write(sb)
	case String:
		sb.WriteString("string")
	default:
		fmt.Fprintf(sb, "%v%d", s.Kind, s.Size)
	}
}

// Char is a Unicode code point.
// Plain rune is an alias of int32 and is indistinguishable from it under reflection,
// so values that must hold valid Unicode scalar values are written as Char.
//
// Only Char itself is a character. Reflection does not record what a defined type was declared from,
// so a type such as
//
//	type Letter shape.Char
//
// has the shape of an int32 and its values are not checked for validity.
type Char rune

// View is a borrowed sequence. It encodes exactly like a slice, but cannot be decoded;
// decoding a type that holds a View panics.
type View[T any] []T

var (
	charType = reflect.TypeOf(Char(0))
	viewPkg  = reflect.TypeOf(View[byte]{}).PkgPath()
	byteType = reflect.TypeOf(byte(0))
)

func isView(t reflect.Type) bool {
	return t.PkgPath() == viewPkg && strings.HasPrefix(t.Name(), "View[")
}

// TypeID returns the ID of t without building its shape.
func TypeID(t reflect.Type) ID {
	if t == nil {
		return 0
	}
	return ID(uintptr(ptrInterface(unsafe.Pointer(&t)).elem))
}

// ptr must be pointer to a non-empty interface.
func ptrInterface(ptr unsafe.Pointer) *interfacePtr {
	return (*interfacePtr)(ptr)
}

type interfacePtr struct {
	typeInfo unsafe.Pointer
	elem     unsafe.Pointer
}

// Of returns the shape of t.
// Types that have no encodable layout (maps, pointers, interfaces, complex numbers...) have Kind Invalid;
// it is up to the consumer to refuse them.
// Recursive types, such as a struct holding a slice of itself, are Invalid at the point of recursion.
func Of(t reflect.Type) *Shape {
	return of(t, make(map[reflect.Type]bool))
}

func of(t reflect.Type, building map[reflect.Type]bool) *Shape {
	s := &Shape{
		ID:    TypeID(t),
		Type:  t,
		Size:  t.Size(),
		Align: uintptr(t.Align()),
	}

	if building[t] {
		s.Pointers = true
		return s
	}
	building[t] = true
	defer delete(building, t)

	switch t.Kind() {
	case reflect.Bool:
		s.Kind = Bool

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		s.Kind = Int
		if t == charType {
			s.Kind = KindChar
		}

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		s.Kind = Uint

	case reflect.Float32, reflect.Float64:
		s.Kind = Float

	case reflect.Struct:
		s.Kind = Struct
		s.Fields = make([]Field, t.NumField())
		for i := range s.Fields {
			f := t.Field(i)
			fs := of(f.Type, building)
			s.Fields[i] = Field{
				Name:   f.Name,
				Shape:  fs,
				Offset: f.Offset,
				Size:   f.Type.Size(),
			}
			s.Pointers = s.Pointers || fs.Pointers
		}

	case reflect.Array:
		s.Kind = Array
		s.Len = t.Len()
		s.Elem = of(t.Elem(), building)
		s.Pointers = s.Len > 0 && s.Elem.Pointers

	case reflect.Slice:
		s.Kind = Slice
		if isView(t) {
			s.Kind = KindView
		}
		s.Elem = of(t.Elem(), building)
		s.Pointers = true

	case reflect.String:
		s.Kind = String
		s.Elem = of(byteType, building)
		s.Pointers = true

	default:
		s.Kind = Invalid
		s.Pointers = true
	}

	return s
}
