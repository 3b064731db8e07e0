package lox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	e "github.com/rami3l/golox/errors"
	"github.com/sirupsen/logrus"
)

// Interpreter walks a resolved AST, executing statements against a chain of
// Environments rooted at Globals. It is stateful across calls to Interpret,
// so a REPL session can build up globals one line at a time.
type Interpreter struct {
	Globals *Environment
	env     *Environment

	// Out is where `print` writes to; defaults to os.Stdout but is
	// swappable so tests can capture output.
	Out io.Writer
}

func NewInterpreter() *Interpreter {
	globals := NewEnvironment(nil)
	in := &Interpreter{Globals: globals, env: globals, Out: os.Stdout}
	in.defineNatives()
	return in
}

func (in *Interpreter) defineNatives() {
	in.Globals.Define("clock", NewNativeFunction("clock", 0, func(*Interpreter, []Value) (Value, error) {
		return Number(float64(time.Now().UnixNano()) / 1e9), nil
	}))
}

// Interpret executes every statement in order, stopping at the first
// runtime error. It returns the value of the final expression statement, or
// nil if there was none (used by the REPL to echo a result); script
// execution ignores it.
func (in *Interpreter) Interpret(stmts []Stmt) (Value, error) {
	var last Value
	for _, s := range stmts {
		v, err := in.execTop(s)
		if err != nil {
			return nil, err
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

// execTop runs one top-level statement and, if it was an expression
// statement, also returns its value for REPL echoing.
func (in *Interpreter) execTop(stmt Stmt) (Value, error) {
	if s, ok := stmt.(*ExprStmt); ok {
		v, err := in.eval(s.Expr)
		return v, err
	}
	return nil, in.exec(stmt)
}

func (in *Interpreter) exec(stmt Stmt) error {
	switch s := stmt.(type) {
	case *ExprStmt:
		_, err := in.eval(s.Expr)
		return err
	case *PrintStmt:
		v, err := in.eval(s.Expr)
		if err != nil {
			return err
		}
		fmt.Fprintln(in.Out, Display(v))
		return nil
	case *VarStmt:
		val := Value(Nil{})
		if s.Init != nil {
			v, err := in.eval(s.Init)
			if err != nil {
				return err
			}
			val = v
		}
		in.env.Define(s.Name.Lexeme, val)
		return nil
	case *BlockStmt:
		return in.execBlock(s.Stmts, NewEnvironment(in.env))
	case *IfStmt:
		cond, err := in.eval(s.Cond)
		if err != nil {
			return err
		}
		switch {
		case Truthy(cond):
			return in.exec(s.Then)
		case s.Else != nil:
			return in.exec(s.Else)
		}
		return nil
	case *WhileStmt:
		for {
			cond, err := in.eval(s.Cond)
			if err != nil {
				return err
			}
			if !Truthy(cond) {
				return nil
			}
			if err := in.exec(s.Body); err != nil {
				return err
			}
		}
	case *FunctionStmt:
		fn := NewFunction(s, in.env, false)
		in.env.Define(s.Name.Lexeme, fn)
		return nil
	case *ReturnStmt:
		val := Value(Nil{})
		if s.Value != nil {
			v, err := in.eval(s.Value)
			if err != nil {
				return err
			}
			val = v
		}
		return &returnSignal{value: val}
	case *ClassStmt:
		return in.execClass(s)
	default:
		panic(e.ErrUnreachable)
	}
}

// execBlock runs stmts in a fresh child environment, always restoring the
// caller's environment afterwards, regardless of how execution exits
// (normal completion, a return unwind, or a runtime error).
func (in *Interpreter) execBlock(stmts []Stmt, env *Environment) error {
	prev := in.env
	in.env = env
	defer func() { in.env = prev }()

	logrus.WithField("scope", env.names()).Debug("entering block")

	for _, s := range stmts {
		if err := in.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) execClass(s *ClassStmt) error {
	var superclass *Class
	if s.Superclass != nil {
		v, err := in.eval(s.Superclass)
		if err != nil {
			return err
		}
		sc, ok := v.(*Class)
		if !ok {
			return newRuntimeError(s.Superclass.Name, "superclass must be a class")
		}
		superclass = sc
	}

	in.env.Define(s.Name.Lexeme, Nil{})

	classEnv := in.env
	if s.Superclass != nil {
		classEnv = NewEnvironment(in.env)
		classEnv.Define("super", superclass)
	}

	methods := map[string]*Function{}
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = NewFunction(m, classEnv, m.Name.Lexeme == "init")
	}

	class := NewClass(s.Name.Lexeme, superclass, methods)
	return in.env.Assign(s.Name, class)
}

func (in *Interpreter) eval(expr Expr) (Value, error) {
	switch x := expr.(type) {
	case *LiteralExpr:
		return x.Value, nil
	case *GroupingExpr:
		return in.eval(x.Inner)
	case *UnaryExpr:
		return in.evalUnary(x)
	case *BinaryExpr:
		return in.evalBinary(x)
	case *LogicalExpr:
		return in.evalLogical(x)
	case *VariableExpr:
		return in.lookUpVariable(x.Name, x.Depth)
	case *AssignExpr:
		return in.evalAssign(x)
	case *CallExpr:
		return in.evalCall(x)
	case *GetExpr:
		return in.evalGet(x)
	case *SetExpr:
		return in.evalSet(x)
	case *ThisExpr:
		return in.lookUpVariable(x.Keyword, x.Depth)
	case *SuperExpr:
		return in.evalSuper(x)
	default:
		panic(e.ErrUnreachable)
	}
}

func (in *Interpreter) lookUpVariable(name Token, depth *int) (Value, error) {
	if depth == nil {
		return in.Globals.Get(name)
	}
	v, ok := in.env.GetAt(*depth, name.Lexeme)
	if !ok {
		return nil, newRuntimeError(name, fmt.Sprintf("undefined variable '%s'", name.Lexeme))
	}
	return v, nil
}

func (in *Interpreter) evalAssign(x *AssignExpr) (Value, error) {
	val, err := in.eval(x.Value)
	if err != nil {
		return nil, err
	}
	if x.Depth == nil {
		if err := in.Globals.Assign(x.Name, val); err != nil {
			return nil, err
		}
		return val, nil
	}
	in.env.AssignAt(*x.Depth, x.Name, val)
	return val, nil
}

func (in *Interpreter) evalUnary(x *UnaryExpr) (Value, error) {
	operand, err := in.eval(x.Operand)
	if err != nil {
		return nil, err
	}
	switch x.Op.Type {
	case TMinus:
		n, ok := operand.(Number)
		if !ok {
			return nil, newRuntimeError(x.Op, "operand must be a number")
		}
		return -n, nil
	case TBang:
		return Boolean(!Truthy(operand)), nil
	default:
		panic(e.ErrUnreachable)
	}
}

func (in *Interpreter) evalBinary(x *BinaryExpr) (Value, error) {
	left, err := in.eval(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := in.eval(x.Right)
	if err != nil {
		return nil, err
	}

	switch x.Op.Type {
	case TPlus:
		switch l := left.(type) {
		case Number:
			if r, ok := right.(Number); ok {
				return l + r, nil
			}
		case String:
			if r, ok := right.(String); ok {
				return l + r, nil
			}
		}
		return nil, newRuntimeError(x.Op, "operands must be two numbers or two strings")
	case TMinus:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l - r, nil
	case TStar:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l * r, nil
	case TSlash:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return l / r, nil
	case TGreater:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return Boolean(l > r), nil
	case TGreaterEqual:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return Boolean(l >= r), nil
	case TLess:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return Boolean(l < r), nil
	case TLessEqual:
		l, r, err := in.numOperands(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return Boolean(l <= r), nil
	case TEqualEqual:
		return Boolean(Eq(left, right)), nil
	case TBangEqual:
		return Boolean(!Eq(left, right)), nil
	default:
		panic(e.ErrUnreachable)
	}
}

func (in *Interpreter) numOperands(op Token, left, right Value) (Number, Number, error) {
	l, lok := left.(Number)
	r, rok := right.(Number)
	if !lok || !rok {
		return 0, 0, newRuntimeError(op, "operands must be numbers")
	}
	return l, r, nil
}

// evalLogical short-circuits and, unlike a BinaryExpr, returns the operand
// value itself rather than coercing it to a boolean.
func (in *Interpreter) evalLogical(x *LogicalExpr) (Value, error) {
	left, err := in.eval(x.Left)
	if err != nil {
		return nil, err
	}
	switch x.Op.Type {
	case TOr:
		if Truthy(left) {
			return left, nil
		}
	case TAnd:
		if !Truthy(left) {
			return left, nil
		}
	default:
		panic(e.ErrUnreachable)
	}
	return in.eval(x.Right)
}

func (in *Interpreter) evalCall(x *CallExpr) (Value, error) {
	callee, err := in.eval(x.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		v, err := in.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	fn, ok := callee.(Callable)
	if !ok {
		return nil, newRuntimeError(x.ClosParen, "can only call functions and classes")
	}
	if len(args) != fn.Arity() {
		return nil, newRuntimeError(x.ClosParen,
			fmt.Sprintf("expected %d arguments but got %d", fn.Arity(), len(args)))
	}
	return fn.Call(in, args)
}

func (in *Interpreter) evalGet(x *GetExpr) (Value, error) {
	obj, err := in.eval(x.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, newRuntimeError(x.Name, "only instances have properties")
	}
	return inst.Get(x.Name)
}

func (in *Interpreter) evalSet(x *SetExpr) (Value, error) {
	obj, err := in.eval(x.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, newRuntimeError(x.Name, "only instances have fields")
	}
	val, err := in.eval(x.Value)
	if err != nil {
		return nil, err
	}
	inst.Set(x.Name, val)
	return val, nil
}

// evalSuper looks up Method on the superclass bound at depth, then binds it
// to `this`, which the resolver guarantees sits exactly one scope closer in.
func (in *Interpreter) evalSuper(x *SuperExpr) (Value, error) {
	superVal, err := in.lookUpVariable(x.Keyword, x.Depth)
	if err != nil {
		return nil, err
	}
	superclass := superVal.(*Class)

	thisVal, ok := in.env.GetAt(*x.Depth-1, "this")
	if !ok {
		panic(e.ErrUnreachable)
	}
	instance := thisVal.(*Instance)

	method, ok := superclass.FindMethod(x.Method.Lexeme)
	if !ok {
		return nil, newRuntimeError(x.Method, fmt.Sprintf("undefined property '%s'", x.Method.Lexeme))
	}
	return method.Bind(instance), nil
}

/* Return-as-control-flow */

// returnSignal is threaded through exec/execBlock as a Go error so that a
// `return` inside arbitrarily nested blocks unwinds straight back to the
// call boundary without every caller needing a separate sentinel check.
type returnSignal struct{ value Value }

func (r *returnSignal) Error() string { return "return outside of a function call" }

func asReturn(err error, target **returnSignal) bool {
	return errors.As(err, target)
}

func newRuntimeError(tk Token, reason string) error {
	err := &e.RuntimeError{Line: tk.Line, Reason: reason}
	logrus.WithField("line", tk.Line).WithField("lexeme", tk.Lexeme).Debug(err)
	return err
}
