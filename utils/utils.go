package utils

// Box lifts a value onto the heap and returns a pointer to it, letting
// call sites build optional/pointer fields (e.g. a resolved scope depth)
// without an intermediate local variable.
func Box[T any](t T) *T { return &t }
