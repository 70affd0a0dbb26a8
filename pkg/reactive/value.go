package reactive

import (
	"reflect"
	"unsafe"
)

// sameValue reports whether writing b over a is a no-op. Comparable values
// compare with ==, maps and slices by identity, everything else never
// matches.
func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		// Interface-typed struct fields may still hold incomparable values.
		defer func() {
			if recover() != nil {
				same = false
			}
		}()
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	}
	return false
}

// identity returns the address backing a map, or nil.
func identity(m map[string]any) unsafe.Pointer {
	if m == nil {
		return nil
	}
	return reflect.ValueOf(m).UnsafePointer()
}

// unwrap returns the plain value stored for v.
func unwrap(v any) any {
	switch x := v.(type) {
	case *Object:
		return x.data
	case *Array:
		return x.raw()
	}
	return v
}
