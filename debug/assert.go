package debug

import "fmt"

// DEBUG gates every assertion in the package to a no-op in release builds,
// the same switch the bytecode-VM predecessor of this interpreter used.
const DEBUG = false

func Assertf(b bool, format string, a ...any) {
	if DEBUG && !b {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertEq[T comparable](expected, got T) { Assertf(expected == got, "%v != %v", expected, got) }
