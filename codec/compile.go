package codec

import (
	"fmt"
	"reflect"

	"github.com/stewi1014/bitshape/encio"
	"github.com/stewi1014/bitshape/shape"
)

// CompileType returns a new Codec for ty.
func CompileType(ty reflect.Type) Codec {
	if ty == nil {
		panic(encio.NewError(encio.ErrNilPointer, "cannot compile a nil type", 0))
	}
	return Compile(shape.Of(ty))
}

// Compile returns a new Codec for the layout s describes.
// It panics with an encio.Error wrapping encio.ErrBadType if s, or any shape in it, cannot be encoded.
func Compile(s *shape.Shape) Codec {
	switch s.Kind {
	case shape.Uint, shape.Int:
		return primitive(s, s.Size, nil)

	case shape.Float:
		if s.Size != 4 && s.Size != 8 {
			panic(unsupported(s, fmt.Sprintf("%v byte floats are not supported", s.Size)))
		}
		return primitive(s, s.Size, nil)

	case shape.Bool:
		return primitive(s, 1, ValidBool)

	case shape.KindChar:
		return primitive(s, 4, ValidChar)

	case shape.Struct:
		fields := make([]Strided, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = NewStrided(Compile(f.Shape), f.Offset, s.Size)
		}
		return NewStruct(s.Size, fields)

	case shape.Array:
		return NewArray(s.Type, s.Len, Compile(s.Elem), s.Elem.Pointers)

	case shape.Slice:
		return NewSlice(s.Type, Compile(s.Elem), s.Elem.Pointers)

	case shape.KindView:
		return NewView(s.Type, Compile(s.Elem), s.Elem.Pointers)

	case shape.String:
		return NewString(s.Type)

	default:
		panic(unsupported(s, "no codec for this kind of type"))
	}
}

func primitive(s *shape.Shape, width uintptr, valid func([]byte) bool) Codec {
	if s.Size != width {
		panic(unsupported(s, fmt.Sprintf("%v needs %v bytes", s.Kind, width)))
	}
	switch width {
	case 1, 2, 4, 8:
		return NewPrimitive(width, valid)
	default:
		panic(unsupported(s, fmt.Sprintf("%v byte primitives are not supported", width)))
	}
}

func unsupported(s *shape.Shape, why string) error {
	name := s.String()
	if s.Type != nil {
		name = s.Type.String()
	}
	return encio.NewError(encio.ErrBadType, fmt.Sprintf("%v: %v", name, why), 2)
}
