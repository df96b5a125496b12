//go:build debug_heap_utils

package heaputils

// DebugValidate will call Validate on the provided object and panic if any errors
// are returned. This method no-ops unless the debug_heap_utils build tag is present.
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two,
// and panic if it is not. This method no-ops unless the debug_heap_utils build tag
// is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2(value, name)
	if err != nil {
		panic(err)
	}
}
