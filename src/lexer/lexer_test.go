// Verifies that the lexer tokenizes a small sample program into the token
// kinds, in the order, that a hand-built expectation table records, mirroring the
// teacher's frontend/lexer_test.go approach of comparing against a manually
// captured tuple slice rather than golden files.
package lexer

import (
	"testing"

	"anthem/src/diag"
	"anthem/src/token"
)

func TestLexerBasics(t *testing.T) {
	src := "fn main() : i32 { return 2 + 3; }"
	d := diag.New()
	toks := New("sample.an", src, d).Lex()

	if d.HasErrors() {
		t.Fatalf("unexpected lex errors: %v", d.Errors())
	}

	exp := []token.Kind{
		token.FN, token.IDENT, token.LPAREN, token.RPAREN, token.COLON, token.I32,
		token.LBRACE, token.RETURN, token.INT, token.PLUS, token.INT, token.SEMI,
		token.RBRACE, token.EOF,
	}
	if len(toks) != len(exp) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(exp), toks)
	}
	for i, k := range exp {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestLexerComments(t *testing.T) {
	src := "// line comment\nlet /* block */ a : i32 = 1;"
	d := diag.New()
	toks := New("sample.an", src, d).Lex()
	if d.HasErrors() {
		t.Fatalf("unexpected lex errors: %v", d.Errors())
	}
	if toks[0].Kind != token.LET {
		t.Fatalf("expected LET first, got %s", toks[0].Kind)
	}
	if toks[0].Pos.Line != 2 {
		t.Fatalf("expected LET on line 2, got %d", toks[0].Pos.Line)
	}
}

func TestLexerUnknownCharacter(t *testing.T) {
	d := diag.New()
	toks := New("sample.an", "let a : i32 = 1 @ 2;", d).Lex()
	if !d.HasErrors() {
		t.Fatalf("expected an error for '@'")
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Fatalf("expected scan to terminate with EOF after the error token")
	}
}

func TestLexerKeywordFolding(t *testing.T) {
	d := diag.New()
	toks := New("sample.an", "internal external global loop while for and or", d).Lex()
	if d.HasErrors() {
		t.Fatalf("unexpected lex errors: %v", d.Errors())
	}
	exp := []token.Kind{
		token.INTERNAL, token.EXTERNAL, token.GLOBAL, token.LOOP,
		token.WHILE, token.FOR, token.AND, token.OR, token.EOF,
	}
	for i, k := range exp {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}
