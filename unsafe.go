package bitshape

import "unsafe"

// ptr must be pointer to interface{}; not other interface types.
func ptrInterface(ptr unsafe.Pointer) *interfacePtr {
	return (*interfacePtr)(ptr)
}

// interfacePtr is the layout of an interface{}.
// For every type a codec exists for, elem points to a copy of the held value.
type interfacePtr struct {
	typeInfo unsafe.Pointer
	elem     unsafe.Pointer
}
