package core

import "reflect"

// EqualFunc returns the default key equivalence: == when values of K can be
// compared without panicking, reflect.DeepEqual otherwise. NaN keys never
// compare equal, so every NaN pair lands in its own bucket.
func EqualFunc[K any]() CompareFunc[K] {
	if SafelyComparable(reflect.TypeFor[K]()) {
		return func(a, b K) bool { return any(a) == any(b) }
	}
	return func(a, b K) bool { return reflect.DeepEqual(a, b) }
}

// SafelyComparable reports whether every value of t supports == without a
// runtime panic. Interface components disqualify a type because their dynamic
// values may not be comparable.
func SafelyComparable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return SafelyComparable(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !SafelyComparable(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}
