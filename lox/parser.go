package lox

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	e "github.com/rami3l/golox/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// syncBoundary lists the token types synchronize() treats as the start of a
// new declaration, i.e. a safe place to resume parsing after an error.
var syncBoundary = []TokenType{TClass, TFun, TVar, TFor, TIf, TWhile, TPrint, TReturn}

const maxArgs = 255

// Parser is a hand-written recursive-descent, panic-mode-recovering parser.
// It consumes the full token stream up front (via Scanner.ScanTokens) rather
// than pulling tokens lazily, which keeps lookahead trivial: peek() and
// previous() read Parser.tokens at Parser.cur and Parser.cur-1.
type Parser struct {
	tokens []Token
	cur    int
	errs   *multierror.Error
}

func NewParser(tokens []Token) *Parser { return &Parser{tokens: tokens} }

// Parse returns every top-level statement it could recover, plus every
// parse error found across all synchronisation points.
func (p *Parser) Parse() ([]Stmt, error) {
	var stmts []Stmt
	for !p.check(TEOF) {
		if s := p.declaration(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts, p.errs.ErrorOrNil()
}

/* Declarations */

func (p *Parser) declaration() (stmt Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseError); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()

	switch {
	case p.match(TVar):
		return p.varDecl()
	case p.match(TFun):
		return p.function("function")
	case p.match(TClass):
		return p.classDecl()
	default:
		return p.statement()
	}
}

func (p *Parser) varDecl() Stmt {
	name := p.consume(TIdent, "expect variable name")
	var init Expr
	if p.match(TEqual) {
		init = p.expression()
	}
	p.consume(TSemi, "expect ';' after variable declaration")
	return &VarStmt{Name: name, Init: init}
}

func (p *Parser) function(kind string) *FunctionStmt {
	name := p.consume(TIdent, fmt.Sprintf("expect %s name", kind))
	p.consume(TLParen, fmt.Sprintf("expect '(' after %s name", kind))

	var params []Token
	if !p.check(TRParen) {
		for {
			if len(params) >= maxArgs {
				p.errorAtCurrent(fmt.Sprintf("can't have more than %d parameters", maxArgs))
			}
			params = append(params, p.consume(TIdent, "expect parameter name"))
			if !p.match(TComma) {
				break
			}
		}
	}
	p.consume(TRParen, "expect ')' after parameters")

	p.consume(TLBrace, fmt.Sprintf("expect '{' before %s body", kind))
	body := p.block()
	return &FunctionStmt{Name: name, Params: params, Body: body}
}

func (p *Parser) classDecl() Stmt {
	name := p.consume(TIdent, "expect class name")

	var superclass *VariableExpr
	if p.match(TLess) {
		superName := p.consume(TIdent, "expect superclass name")
		superclass = &VariableExpr{Name: superName}
	}

	p.consume(TLBrace, "expect '{' before class body")
	var methods []*FunctionStmt
	for !p.check(TRBrace) && !p.check(TEOF) {
		methods = append(methods, p.function("method"))
	}
	p.consume(TRBrace, "expect '}' after class body")

	return &ClassStmt{Name: name, Superclass: superclass, Methods: methods}
}

/* Statements */

func (p *Parser) statement() Stmt {
	switch {
	case p.match(TPrint):
		return p.printStmt()
	case p.match(TLBrace):
		return &BlockStmt{Stmts: p.block()}
	case p.match(TIf):
		return p.ifStmt()
	case p.match(TWhile):
		return p.whileStmt()
	case p.match(TFor):
		return p.forStmt()
	case p.match(TReturn):
		return p.returnStmt()
	default:
		return p.exprStmt()
	}
}

func (p *Parser) printStmt() Stmt {
	val := p.expression()
	p.consume(TSemi, "expect ';' after value")
	return &PrintStmt{Expr: val}
}

func (p *Parser) exprStmt() Stmt {
	val := p.expression()
	p.consume(TSemi, "expect ';' after expression")
	return &ExprStmt{Expr: val}
}

func (p *Parser) block() []Stmt {
	var stmts []Stmt
	for !p.check(TRBrace) && !p.check(TEOF) {
		if s := p.declaration(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.consume(TRBrace, "expect '}' after block")
	return stmts
}

func (p *Parser) ifStmt() Stmt {
	p.consume(TLParen, "expect '(' after 'if'")
	cond := p.expression()
	p.consume(TRParen, "expect ')' after if condition")

	then := p.statement()
	var els Stmt
	if p.match(TElse) {
		els = p.statement()
	}
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

func (p *Parser) whileStmt() Stmt {
	p.consume(TLParen, "expect '(' after 'while'")
	cond := p.expression()
	p.consume(TRParen, "expect ')' after while condition")
	body := p.statement()
	return &WhileStmt{Cond: cond, Body: body}
}

// forStmt desugars `for (init; cond; incr) body` into the equivalent
// `{ init; while (cond) { body; incr; } }`. The outer block is only built
// when there is an initializer, and the inner one only when there is an
// increment; a missing condition becomes the literal `true`.
func (p *Parser) forStmt() Stmt {
	p.consume(TLParen, "expect '(' after 'for'")

	var init Stmt
	switch {
	case p.match(TSemi):
		// No initializer.
	case p.match(TVar):
		init = p.varDecl()
	default:
		init = p.exprStmt()
	}

	var cond Expr
	if !p.check(TSemi) {
		cond = p.expression()
	}
	p.consume(TSemi, "expect ';' after loop condition")

	var incr Expr
	if !p.check(TRParen) {
		incr = p.expression()
	}
	p.consume(TRParen, "expect ')' after for clauses")

	body := p.statement()

	if incr != nil {
		body = &BlockStmt{Stmts: []Stmt{body, &ExprStmt{Expr: incr}}}
	}
	if cond == nil {
		cond = &LiteralExpr{Value: Boolean(true)}
	}
	body = &WhileStmt{Cond: cond, Body: body}

	if init != nil {
		body = &BlockStmt{Stmts: []Stmt{init, body}}
	}
	return body
}

func (p *Parser) returnStmt() Stmt {
	keyword := p.previous()
	var val Expr
	if !p.check(TSemi) {
		val = p.expression()
	}
	p.consume(TSemi, "expect ';' after return value")
	return &ReturnStmt{Keyword: keyword, Value: val}
}

/* Expressions */

func (p *Parser) expression() Expr { return p.assignment() }

// assignment parses the LHS as an ordinary expression, then rewrites it
// into an Assign/Set node if a trailing '=' follows; this is how a Pratt-less
// recursive-descent parser matches the grammar's `(call ".")? IDENT "=" ...`
// production without a special-cased lvalue grammar.
func (p *Parser) assignment() Expr {
	expr := p.or()

	if p.match(TEqual) {
		equals := p.previous()
		value := p.assignment() // Right-associative.

		switch target := expr.(type) {
		case *VariableExpr:
			return &AssignExpr{Name: target.Name, Value: value}
		case *GetExpr:
			return &SetExpr{Object: target.Object, Name: target.Name, Value: value}
		default:
			p.error(equals, "cannot assign to this left side of equals")
		}
	}
	return expr
}

func (p *Parser) or() Expr {
	expr := p.and()
	for p.match(TOr) {
		op := p.previous()
		right := p.and()
		expr = &LogicalExpr{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) and() Expr {
	expr := p.equality()
	for p.match(TAnd) {
		op := p.previous()
		right := p.equality()
		expr = &LogicalExpr{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) equality() Expr {
	return p.binaryLeft(p.comparison, TBangEqual, TEqualEqual)
}

func (p *Parser) comparison() Expr {
	return p.binaryLeft(p.term, TGreater, TGreaterEqual, TLess, TLessEqual)
}

func (p *Parser) term() Expr {
	return p.binaryLeft(p.factor, TMinus, TPlus)
}

func (p *Parser) factor() Expr {
	return p.binaryLeft(p.unary, TSlash, TStar)
}

// binaryLeft folds a left-associative run of same-precedence binary
// operators: it's the one helper every `term`/`factor`/... level shares, per
// the grammar's note that "the same helper consumes a run of same-precedence
// operators".
func (p *Parser) binaryLeft(next func() Expr, types ...TokenType) Expr {
	expr := next()
	for p.matchAny(types...) {
		op := p.previous()
		right := next()
		expr = &BinaryExpr{Left: expr, Op: op, Right: right}
	}
	return expr
}

func (p *Parser) unary() Expr {
	if p.matchAny(TBang, TMinus) {
		op := p.previous()
		operand := p.unary()
		return &UnaryExpr{Op: op, Operand: operand}
	}
	return p.call()
}

func (p *Parser) call() Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(TLParen):
			expr = p.finishCall(expr)
		case p.match(TDot):
			name := p.consume(TIdent, "expect property name after '.'")
			expr = &GetExpr{Object: expr, Name: name}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee Expr) Expr {
	var args []Expr
	if !p.check(TRParen) {
		for {
			if len(args) >= maxArgs {
				p.errorAtCurrent(fmt.Sprintf("can't have more than %d arguments", maxArgs))
			}
			args = append(args, p.expression())
			if !p.match(TComma) {
				break
			}
		}
	}
	closeParen := p.consume(TRParen, "expect ')' after arguments")
	return &CallExpr{Callee: callee, Args: args, ClosParen: closeParen}
}

func (p *Parser) primary() Expr {
	switch {
	case p.match(TFalse):
		return &LiteralExpr{Value: Boolean(false)}
	case p.match(TTrue):
		return &LiteralExpr{Value: Boolean(true)}
	case p.match(TNil):
		return &LiteralExpr{Value: Nil{}}
	case p.match(TNum):
		return &LiteralExpr{Value: Number(p.previous().Literal.(float64))}
	case p.match(TStr):
		return &LiteralExpr{Value: String(p.previous().Literal.(string))}
	case p.match(TSuper):
		keyword := p.previous()
		p.consume(TDot, "expect '.' after 'super'")
		method := p.consume(TIdent, "expect superclass method name")
		return &SuperExpr{Keyword: keyword, Method: method}
	case p.match(TThis):
		return &ThisExpr{Keyword: p.previous()}
	case p.match(TIdent):
		return &VariableExpr{Name: p.previous()}
	case p.match(TLParen):
		inner := p.expression()
		p.consume(TRParen, "expect ')' after expression")
		return &GroupingExpr{Inner: inner}
	default:
		panic(p.error(p.peek(), "expect expression"))
	}
}

/* Token-stream helpers */

func (p *Parser) match(ty TokenType) bool { return p.matchAny(ty) }

func (p *Parser) matchAny(types ...TokenType) bool {
	if slices.Contains(types, p.peek().Type) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(ty TokenType) bool { return p.peek().Type == ty }

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.cur++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool { return p.peek().Type == TEOF }
func (p *Parser) peek() Token   { return p.tokens[p.cur] }
func (p *Parser) previous() Token { return p.tokens[p.cur-1] }

func (p *Parser) consume(ty TokenType, msg string) Token {
	if p.check(ty) {
		return p.advance()
	}
	panic(p.error(p.peek(), msg))
}

/* Error handling */

// parseError is the panic payload used to unwind out of a broken
// declaration to declaration()'s recover, which then synchronises.
type parseError struct{ err error }

func (p *Parser) error(tk Token, reason string) parseError {
	err := &e.CompilationError{Line: tk.Line, Where: whereOf(tk), Reason: reason}
	logrus.WithField("line", tk.Line).Debug(err)
	p.errs = multierror.Append(p.errs, err)
	return parseError{err: err}
}

func (p *Parser) errorAtCurrent(reason string) { p.error(p.peek(), reason) }

// synchronize discards tokens until it reaches a likely statement boundary,
// so one bad declaration doesn't cascade into spurious follow-on errors.
func (p *Parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.tokens[p.cur-1].Type == TSemi {
			return
		}
		if slices.Contains(syncBoundary, p.peek().Type) {
			return
		}
		p.advance()
	}
}
