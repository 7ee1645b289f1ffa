package types

import (
	"testing"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/lexer"
	"anthem/src/parser"
	"anthem/src/resolve"
)

func check(t *testing.T, src string) (*ast.Program, *SymbolTable, *diag.Diagnostics) {
	t.Helper()
	d := diag.New()
	toks := lexer.New("t.an", src, d).Lex()
	prog := parser.New(toks, d).Parse()
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", d.Errors())
	}
	resolve.New(d).Resolve(prog)
	if d.HasErrors() {
		t.Fatalf("unexpected resolve errors: %v", d.Errors())
	}
	syms := New(d).Check(prog)
	return prog, syms, d
}

func TestArityMismatchIsReported(t *testing.T) {
	_, _, d := check(t, `
		fn add(a: i32, b: i32) : i32 { return a + b; }
		fn main() : i32 { return add(1); }
	`)
	if !d.HasErrors() {
		t.Fatalf("expected arity mismatch error")
	}
}

func TestExternalCallIsFlagged(t *testing.T) {
	prog, _, d := check(t, `
		external fn puts(s: i32) : i32;
		fn main() : i32 { return puts(1); }
	`)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	main := prog.Decls[1].(*ast.FunctionDecl)
	body := main.Body.(*ast.BlockStmt)
	ret := body.Items[0].(*ast.ReturnStmt)
	call := ret.Expr.(*ast.CallExpr)
	if !call.IsExternal {
		t.Fatalf("expected call to puts to be marked external")
	}
}

func TestExternalVariableWithInitializerIsRejected(t *testing.T) {
	_, _, d := check(t, "external x : i32 = 1; fn f() : i32 { return 0; }")
	if !d.HasErrors() {
		t.Fatalf("expected error for external variable with initializer")
	}
}

func TestGlobalNonConstantInitializerIsRejected(t *testing.T) {
	_, _, d := check(t, `
		fn one() : i32 { return 1; }
		global x : i32 = one();
		fn f() : i32 { return x; }
	`)
	if !d.HasErrors() {
		t.Fatalf("expected error for non-constant global initializer")
	}
}

func TestLocalInitializerMayBeAnyExpression(t *testing.T) {
	_, _, d := check(t, `
		fn one() : i32 { return 1; }
		fn f() : i32 { let a : i32 = one() + 1; return a; }
	`)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
}
