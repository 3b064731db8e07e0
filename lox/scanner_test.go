package lox_test

import (
	"testing"

	"github.com/rami3l/golox/lox"
	"github.com/stretchr/testify/assert"
)

func tokenTypes(tokens []lox.Token) []lox.TokenType {
	types := make([]lox.TokenType, len(tokens))
	for i, t := range tokens {
		types[i] = t.Type
	}
	return types
}

func TestScanPunctuation(t *testing.T) {
	tokens, errs := lox.NewScanner("(){};,.+-*!= == <= >= < > / !").ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, []lox.TokenType{
		lox.TLParen, lox.TRParen, lox.TLBrace, lox.TRBrace, lox.TSemi, lox.TComma,
		lox.TDot, lox.TPlus, lox.TMinus, lox.TStar, lox.TBangEqual, lox.TEqualEqual,
		lox.TLessEqual, lox.TGreaterEqual, lox.TLess, lox.TGreater, lox.TSlash, lox.TBang,
		lox.TEOF,
	}, tokenTypes(tokens))
}

func TestScanComment(t *testing.T) {
	tokens, errs := lox.NewScanner("1 // a comment\n2").ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, []lox.TokenType{lox.TNum, lox.TNum, lox.TEOF}, tokenTypes(tokens))
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 2, tokens[1].Line)
}

func TestScanString(t *testing.T) {
	tokens, errs := lox.NewScanner(`"hello world"`).ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, "hello world", tokens[0].Literal)
}

func TestScanMultilineString(t *testing.T) {
	tokens, errs := lox.NewScanner("\"line1\nline2\"\n1").ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, "line1\nline2", tokens[0].Literal)
	assert.Equal(t, 3, tokens[1].Line)
}

func TestScanUnterminatedString(t *testing.T) {
	_, errs := lox.NewScanner(`"oops`).ScanTokens()
	assert.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "unterminated string")
}

func TestScanNumber(t *testing.T) {
	tokens, errs := lox.NewScanner("123 45.67 8.").ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, 123.0, tokens[0].Literal)
	assert.Equal(t, 45.67, tokens[1].Literal)
	// A trailing '.' with no digit after it is not part of the number.
	assert.Equal(t, 8.0, tokens[2].Literal)
	assert.Equal(t, lox.TDot, tokens[3].Type)
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	tokens, errs := lox.NewScanner("foo_bar and class Fortune").ScanTokens()
	assert.Empty(t, errs)
	assert.Equal(t, []lox.TokenType{
		lox.TIdent, lox.TAnd, lox.TClass, lox.TIdent, lox.TEOF,
	}, tokenTypes(tokens))
	assert.Equal(t, "foo_bar", tokens[0].Lexeme)
	assert.Equal(t, "Fortune", tokens[3].Lexeme)
}

func TestScanUnexpectedCharacter(t *testing.T) {
	_, errs := lox.NewScanner("@").ScanTokens()
	assert.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "unexpected character")
}

func TestScanAlwaysReturnsFullTokenList(t *testing.T) {
	// Even with an error partway through, scanning continues to EOF.
	tokens, errs := lox.NewScanner("1 @ 2").ScanTokens()
	assert.Len(t, errs, 1)
	assert.Equal(t, []lox.TokenType{lox.TNum, lox.TNum, lox.TEOF}, tokenTypes(tokens))
}
