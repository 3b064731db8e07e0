package lox

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	e "github.com/rami3l/golox/errors"
	"github.com/rami3l/golox/utils"
	"github.com/sirupsen/logrus"
)

type funcType int

const (
	funcNone funcType = iota
	funcFunction
	funcMethod
	funcInitializer
)

type classType int

const (
	classNone classType = iota
	classBase
	classSubclass
)

// Resolver is the single static pass between parsing and execution. It
// tracks only block-local scopes (globals are resolved dynamically by the
// interpreter) and annotates every Variable/Assign/This/Super node it visits
// with the number of enclosing scopes between its use and its definition.
type Resolver struct {
	scopes []map[string]bool

	currentFunction funcType
	currentClass    classType

	errs *multierror.Error
}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve walks every statement once and returns every resolution error
// found, accumulated rather than stopping at the first one, per SPEC_FULL.md.
func (r *Resolver) Resolve(stmts []Stmt) error {
	r.resolveStmts(stmts)
	return r.errs.ErrorOrNil()
}

func (r *Resolver) resolveStmts(stmts []Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) resolveStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *ExprStmt:
		r.resolveExpr(s.Expr)
	case *PrintStmt:
		r.resolveExpr(s.Expr)
	case *VarStmt:
		r.declare(s.Name)
		if s.Init != nil {
			r.resolveExpr(s.Init)
		}
		r.define(s.Name)
	case *BlockStmt:
		r.beginScope()
		r.resolveStmts(s.Stmts)
		r.endScope()
	case *IfStmt:
		r.resolveExpr(s.Cond)
		r.resolveStmt(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}
	case *WhileStmt:
		r.resolveExpr(s.Cond)
		r.resolveStmt(s.Body)
	case *FunctionStmt:
		r.declare(s.Name)
		r.define(s.Name)
		r.resolveFunction(s, funcFunction)
	case *ReturnStmt:
		if r.currentFunction == funcNone {
			r.error(s.Keyword, "can't return from top-level code")
		}
		if s.Value != nil {
			if r.currentFunction == funcInitializer {
				r.error(s.Keyword, "can't return a value from an initializer")
			}
			r.resolveExpr(s.Value)
		}
	case *ClassStmt:
		r.resolveClass(s)
	default:
		panic(e.ErrUnreachable)
	}
}

func (r *Resolver) resolveClass(s *ClassStmt) {
	enclosingClass := r.currentClass
	r.currentClass = classBase

	r.declare(s.Name)
	r.define(s.Name)

	if s.Superclass != nil {
		if s.Superclass.Name.Eq(s.Name) {
			r.error(s.Superclass.Name, "a class can't inherit from itself")
		}
		r.currentClass = classSubclass
		r.resolveExpr(s.Superclass)

		r.beginScope()
		r.scopes[len(r.scopes)-1]["super"] = true
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = true

	for _, m := range s.Methods {
		ty := funcMethod
		if m.Name.Lexeme == "init" {
			ty = funcInitializer
		}
		r.resolveFunction(m, ty)
	}

	r.endScope()
	if s.Superclass != nil {
		r.endScope()
	}

	r.currentClass = enclosingClass
}

func (r *Resolver) resolveFunction(fn *FunctionStmt, ty funcType) {
	enclosingFunction := r.currentFunction
	r.currentFunction = ty

	r.beginScope()
	for _, p := range fn.Params {
		r.declare(p)
		r.define(p)
	}
	r.resolveStmts(fn.Body)
	r.endScope()

	r.currentFunction = enclosingFunction
}

func (r *Resolver) resolveExpr(expr Expr) {
	switch x := expr.(type) {
	case *LiteralExpr:
		// No subexpressions, no names.
	case *GroupingExpr:
		r.resolveExpr(x.Inner)
	case *UnaryExpr:
		r.resolveExpr(x.Operand)
	case *BinaryExpr:
		r.resolveExpr(x.Left)
		r.resolveExpr(x.Right)
	case *LogicalExpr:
		r.resolveExpr(x.Left)
		r.resolveExpr(x.Right)
	case *VariableExpr:
		if len(r.scopes) > 0 {
			if ready, declared := r.scopes[len(r.scopes)-1][x.Name.Lexeme]; declared && !ready {
				r.error(x.Name, "can't reference a variable in its own initializer")
			}
		}
		r.resolveLocal(x.Name, func(d int) { x.Depth = utils.Box(d) })
	case *AssignExpr:
		r.resolveExpr(x.Value)
		r.resolveLocal(x.Name, func(d int) { x.Depth = utils.Box(d) })
	case *CallExpr:
		r.resolveExpr(x.Callee)
		for _, a := range x.Args {
			r.resolveExpr(a)
		}
	case *GetExpr:
		r.resolveExpr(x.Object)
	case *SetExpr:
		r.resolveExpr(x.Value)
		r.resolveExpr(x.Object)
	case *ThisExpr:
		if r.currentClass == classNone {
			r.error(x.Keyword, "can't use 'this' outside of a class")
			return
		}
		r.resolveLocal(x.Keyword, func(d int) { x.Depth = utils.Box(d) })
	case *SuperExpr:
		switch r.currentClass {
		case classNone:
			r.error(x.Keyword, "can't use 'super' outside of a class")
		case classBase:
			r.error(x.Keyword, "can't use 'super' in a class with no superclass")
		}
		r.resolveLocal(x.Keyword, func(d int) { x.Depth = utils.Box(d) })
	default:
		panic(e.ErrUnreachable)
	}
}

func (r *Resolver) beginScope() { r.scopes = append(r.scopes, map[string]bool{}) }

func (r *Resolver) endScope() { r.scopes = r.scopes[:len(r.scopes)-1] }

func (r *Resolver) declare(name Token) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, ok := scope[name.Lexeme]; ok {
		r.error(name, "already a variable with this name in this scope")
	}
	scope[name.Lexeme] = false
}

func (r *Resolver) define(name Token) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name.Lexeme] = true
}

// resolveLocal searches the scope stack from innermost outwards and, if
// name is found at index i from the top, invokes set with that depth. If
// it's never found, set is left uncalled, leaving the node's Depth nil,
// meaning "global" at runtime.
func (r *Resolver) resolveLocal(name Token, set func(depth int)) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][name.Lexeme]; ok {
			set(len(r.scopes) - 1 - i)
			return
		}
	}
}

func (r *Resolver) error(tk Token, reason string) {
	where := whereOf(tk)
	err := &e.CompilationError{Line: tk.Line, Where: where, Reason: reason}
	logrus.WithField("line", tk.Line).Debug(err)
	r.errs = multierror.Append(r.errs, err)
}

func whereOf(tk Token) string {
	switch tk.Type {
	case TEOF:
		return " at end"
	default:
		return fmt.Sprintf(" at '%s'", tk.Lexeme)
	}
}
