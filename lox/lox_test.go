package lox_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/rami3l/golox/lox"
	"github.com/stretchr/testify/assert"
)

// run scans, parses, resolves, and interprets src against the supplied
// interpreter, returning everything printed via
// `print` plus any pipeline error. It mirrors the teacher's
// `assertEval`/`TestPair` harness, generalized to the full scan-through-
// execute pipeline instead of a single compile-and-run VM call.
func run(t *testing.T, in *lox.Interpreter, src string) (string, error) {
	t.Helper()
	tokens, scanErrs := lox.NewScanner(src).ScanTokens()
	if len(scanErrs) > 0 {
		return "", scanErrs[0]
	}
	stmts, err := lox.NewParser(tokens).Parse()
	if err != nil {
		return "", err
	}
	if err := lox.NewResolver().Resolve(stmts); err != nil {
		return "", err
	}
	var out bytes.Buffer
	in.Out = &out
	_, err = in.Interpret(stmts)
	return out.String(), err
}

func assertOutput(t *testing.T, src, want string) {
	t.Helper()
	out, err := run(t, lox.NewInterpreter(), src)
	assert.NoError(t, err)
	assert.Equal(t, want, strings.TrimRight(out, "\n"))
}

func assertRuntimeErr(t *testing.T, src, errSubstr string) {
	t.Helper()
	_, err := run(t, lox.NewInterpreter(), src)
	assert.ErrorContains(t, err, errSubstr)
}

func TestArithmeticPrecedence(t *testing.T) {
	assertOutput(t, "print 1 + 2 * 3;", "7.0")
}

func TestStringConcat(t *testing.T) {
	assertOutput(t, `var a = "hi"; print a + " world";`, "hi world")
}

func TestBlockScopingShadows(t *testing.T) {
	assertOutput(t,
		"var a = 1; { var a = 2; print a; } print a;",
		"2\n1",
	)
}

func TestClosureCounter(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		fun make() {
			var i = 0;
			fun inc() { i = i + 1; return i; }
			return inc;
		}
		var c = make();
		print c();
		print c();
		print c();
	`), "1.0\n2.0\n3.0")
}

func TestMethodSeesThis(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		class A { greet() { print "hi " + this.name; } }
		var a = A();
		a.name = "lox";
		a.greet();
	`), "hi lox")
}

func TestSuperDispatch(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		class A { f() { print "A"; } }
		class B < A { f() { super.f(); print "B"; } }
		B().f();
	`), "A\nB")
}

func TestAddStringToNumberIsRuntimeError(t *testing.T) {
	assertRuntimeErr(t, `1 + "x";`, "operands must be")
}

func TestUnaryMinusRequiresNumber(t *testing.T) {
	assertRuntimeErr(t, `-"x";`, "operand must be a number")
}

func TestAndShortCircuitsAndReturnsOperandValue(t *testing.T) {
	assertOutput(t, `print false and sideEffect();`, "false")
}

func TestAndDoesNotEvaluateRight(t *testing.T) {
	// If `and` evaluated its right operand, this would be a runtime error
	// for calling an undefined function; it must short-circuit instead.
	assertOutput(t, `print nil and undefinedFunction();`, "nil")
}

func TestOrShortCircuits(t *testing.T) {
	assertOutput(t, `print "trick" or undefinedFunction();`, "trick")
}

func TestGlobalVarSeenByLateBoundFunction(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		fun f() { return a; }
		var a = 4;
		print f();
	`), "4.0")
}

func TestRecursiveFunction(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		fun fact(n) {
			if (n <= 1) return 1;
			return n * fact(n - 1);
		}
		print fact(5);
	`), "120.0")
}

func TestClosureCapturesByReference(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		var globalSet; var globalGet;
		fun main() {
			var a = "initial";
			fun set() { a = "updated"; }
			fun get() { return a; }
			globalSet = set; globalGet = get;
		}
		main();
		globalSet();
		print globalGet();
	`), "updated")
}

func TestClassInitReturnsInstance(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		class CoffeeMaker {
			init(coffee) { this.coffee = coffee; }
			brew() {
				var res = "Enjoy your cup of " + this.coffee;
				this.coffee = nil;
				return res;
			}
		}
		var maker = CoffeeMaker("coffee and chicory");
		print maker.brew();
	`), "Enjoy your cup of coffee and chicory")
}

func TestBoundMethodKeepsThisWhenDetached(t *testing.T) {
	assertOutput(t, heredoc.Doc(`
		class Egotist { speak() { return "Just " + this.name; } }
		var jimmy = Egotist();
		jimmy.name = "Jimmy";
		var s = jimmy.speak;
		print s();
	`), "Just Jimmy")
}

func TestUndefinedPropertyIsRuntimeError(t *testing.T) {
	assertRuntimeErr(t, "class Foo {} Foo().bar;", "undefined property")
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	assertRuntimeErr(t, "fun f(a, b) { return a + b; } f(1);", "expected 2 arguments but got 1")
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	assertRuntimeErr(t, `var x = 1; x();`, "can only call functions and classes")
}

func TestVarOwnInitializerIsResolutionError(t *testing.T) {
	_, err := run(t, lox.NewInterpreter(), "{ var a = a; }")
	assert.ErrorContains(t, err, "can't reference a variable in its own initializer")
}

func TestTopLevelReturnIsResolutionError(t *testing.T) {
	_, err := run(t, lox.NewInterpreter(), "return 1;")
	assert.ErrorContains(t, err, "can't return from top-level code")
}

func TestManOrBoyTest(t *testing.T) {
	// https://www.rosettacode.org/wiki/Man_or_boy_test
	const program = `
		fun A(k, xa, xb, xc, xd, xe) {
			fun B() {
				k = k - 1;
				return A(k, B, xa, xb, xc, xd);
			}
			if (k <= 0) return xd() + xe();
			return B();
		}
		fun I0()  { return  0; }
		fun I1()  { return  1; }
		fun I_1() { return -1; }
		print A(10, I1, I_1, I_1, I1, I0);
	`
	assertOutput(t, heredoc.Doc(program), "-67.0")
}

func TestClockIsCallableWithNoArgs(t *testing.T) {
	out, err := run(t, lox.NewInterpreter(), "print clock() >= 0;")
	assert.NoError(t, err)
	assert.Equal(t, "true", strings.TrimRight(out, "\n"))
}

func TestInterpreterStatePersistsAcrossCalls(t *testing.T) {
	in := lox.NewInterpreter()
	_, err := run(t, in, "var counter = 0;")
	assert.NoError(t, err)
	out, err := run(t, in, "counter = counter + 1; print counter;")
	assert.NoError(t, err)
	assert.Equal(t, "1.0", strings.TrimRight(out, "\n"))
}
