package lox

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/josharian/intern"
)

// Value is the tagged union of every runtime value: Nil, Boolean, Number,
// String, *Function, *Class, *Instance, and *NativeFunction.
type Value interface{ isValue() }

type Nil struct{}

type Boolean bool

type Number float64

type String string

func (Nil) isValue()     {}
func (Boolean) isValue() {}
func (Number) isValue()  {}
func (String) isValue()  {}

// Truthy implements Lox's truthiness: everything is truthy except nil and
// the boolean false.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Nil:
		return false
	case Boolean:
		return bool(v)
	default:
		return true
	}
}

// Eq implements `==`: Nil equals only Nil, numbers/strings/booleans compare
// by value, and every other variant (functions, classes, instances) compares
// by identity.
func Eq(a, b Value) bool {
	switch a := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Boolean:
		b, ok := b.(Boolean)
		return ok && a == b
	case Number:
		b, ok := b.(Number)
		return ok && a == b
	case String:
		b, ok := b.(String)
		return ok && a == b
	default:
		return a == b
	}
}

// Display renders a Value the way `print` and the REPL echo do: no quotes
// around strings, integral doubles below 1e21 in magnitude are written out
// in full with a trailing ".0", and other numbers use the shortest %g form.
func Display(v Value) string {
	switch v := v.(type) {
	case Nil:
		return "nil"
	case Boolean:
		return strconv.FormatBool(bool(v))
	case Number:
		f := float64(v)
		format := byte('g')
		if f == math.Trunc(f) && math.Abs(f) < 1e21 {
			format = 'f'
		}
		s := strconv.FormatFloat(f, format, -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case String:
		return string(v)
	case *Function:
		return fmt.Sprintf("<fn %s>", v.Decl.Name.Lexeme)
	case *Class:
		return fmt.Sprintf("<class %s>", v.Name)
	case *Instance:
		return fmt.Sprintf("<instance of %s>", v.Class.Name)
	case *NativeFunction:
		return fmt.Sprintf("<native fn %s>", v.name)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Callable is implemented by every Value that can appear as the callee of a
// Call expression: user functions, classes (as constructors), and natives.
type Callable interface {
	Value
	Arity() int
	Call(in *Interpreter, args []Value) (Value, error)
}

// Function is a user-defined function or method, closing over the
// environment active at its declaration site.
type Function struct {
	Decl          *FunctionStmt
	Closure       *Environment
	IsInitializer bool
}

func NewFunction(decl *FunctionStmt, closure *Environment, isInitializer bool) *Function {
	return &Function{Decl: decl, Closure: closure, IsInitializer: isInitializer}
}

func (*Function) isValue()     {}
func (f *Function) Arity() int { return len(f.Decl.Params) }

func (f *Function) Call(in *Interpreter, args []Value) (Value, error) {
	env := NewEnvironment(f.Closure)
	for i, param := range f.Decl.Params {
		env.Define(param.Lexeme, args[i])
	}

	if err := in.execBlock(f.Decl.Body, env); err != nil {
		var ret *returnSignal
		if asReturn(err, &ret) {
			if f.IsInitializer {
				this, _ := f.Closure.GetAt(0, "this")
				return this, nil
			}
			return ret.value, nil
		}
		return nil, err
	}

	if f.IsInitializer {
		this, _ := f.Closure.GetAt(0, "this")
		return this, nil
	}
	return Nil{}, nil
}

// Bind returns a copy of f whose closure is a fresh child environment
// defining `this` as instance, used for every method lookup off an Instance.
func (f *Function) Bind(instance *Instance) *Function {
	env := NewEnvironment(f.Closure)
	env.Define("this", instance)
	return NewFunction(f.Decl, env, f.IsInitializer)
}

// Class is a Lox class: a name, its own methods, and an optional
// superclass to fall back to for method lookup.
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Function
}

func NewClass(name string, superclass *Class, methods map[string]*Function) *Class {
	return &Class{Name: intern.String(name), Superclass: superclass, Methods: methods}
}

func (*Class) isValue() {}

// FindMethod looks up name on the class itself, then its superclass chain.
func (c *Class) FindMethod(name string) (*Function, bool) {
	if m, ok := c.Methods[name]; ok {
		return m, true
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil, false
}

func (c *Class) Arity() int {
	if init, ok := c.FindMethod("init"); ok {
		return init.Arity()
	}
	return 0
}

func (c *Class) Call(in *Interpreter, args []Value) (Value, error) {
	instance := NewInstance(c)
	if init, ok := c.FindMethod("init"); ok {
		if _, err := init.Bind(instance).Call(in, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// Instance is a runtime object of some Class, with its own mutable field
// table consulted before the class's methods.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: map[string]Value{}}
}

func (*Instance) isValue() {}

func (i *Instance) Get(name Token) (Value, error) {
	if v, ok := i.Fields[name.Lexeme]; ok {
		return v, nil
	}
	if m, ok := i.Class.FindMethod(name.Lexeme); ok {
		return m.Bind(i), nil
	}
	return nil, newRuntimeError(name, fmt.Sprintf("undefined property '%s'", name.Lexeme))
}

func (i *Instance) Set(name Token, v Value) { i.Fields[intern.String(name.Lexeme)] = v }

// NativeFunction wraps a Go function as a Lox callable, per the registry
// described in SPEC_FULL.md §4 (currently just `clock`).
type NativeFunction struct {
	name  string
	arity int
	fn    func(in *Interpreter, args []Value) (Value, error)
}

func NewNativeFunction(name string, arity int, fn func(*Interpreter, []Value) (Value, error)) *NativeFunction {
	return &NativeFunction{name: name, arity: arity, fn: fn}
}

func (*NativeFunction) isValue()        {}
func (n *NativeFunction) Arity() int    { return n.arity }
func (n *NativeFunction) Call(in *Interpreter, args []Value) (Value, error) {
	return n.fn(in, args)
}
