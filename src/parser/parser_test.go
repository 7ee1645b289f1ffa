package parser

import (
	"testing"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/lexer"
)

func parse(t *testing.T, src string) (*ast.Program, *diag.Diagnostics) {
	t.Helper()
	d := diag.New()
	toks := lexer.New("t.an", src, d).Lex()
	prog := New(toks, d).Parse()
	return prog, d
}

func TestParseSimpleFunction(t *testing.T) {
	prog, d := parse(t, "fn main() : i32 { return 2; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(prog.Decls))
	}
	fn, ok := prog.Decls[0].(*ast.FunctionDecl)
	if !ok {
		t.Fatalf("expected *ast.FunctionDecl, got %T", prog.Decls[0])
	}
	body, ok := fn.Body.(*ast.BlockStmt)
	if !ok || len(body.Items) != 1 {
		t.Fatalf("expected a one-statement block body")
	}
	if _, ok := body.Items[0].(*ast.ReturnStmt); !ok {
		t.Fatalf("expected a return statement, got %T", body.Items[0])
	}
}

func TestPrecedenceClimbing(t *testing.T) {
	prog, d := parse(t, "fn f() : i32 { return 1 + 2 * 3; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	fn := prog.Decls[0].(*ast.FunctionDecl)
	body := fn.Body.(*ast.BlockStmt)
	ret := body.Items[0].(*ast.ReturnStmt)
	bin, ok := ret.Expr.(*ast.BinaryExpr)
	if !ok || bin.Op.Lexeme != "+" {
		t.Fatalf("expected top-level '+', got %#v", ret.Expr)
	}
	rhs, ok := bin.R.(*ast.BinaryExpr)
	if !ok || rhs.Op.Lexeme != "*" {
		t.Fatalf("expected '*' to bind tighter on the right, got %#v", bin.R)
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	prog, d := parse(t, "fn f() : i32 { a = b = 1; return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	fn := prog.Decls[0].(*ast.FunctionDecl)
	body := fn.Body.(*ast.BlockStmt)
	es := body.Items[0].(*ast.ExprStmt)
	outer, ok := es.Expr.(*ast.AssignmentExpr)
	if !ok {
		t.Fatalf("expected assignment, got %T", es.Expr)
	}
	if _, ok := outer.Value.(*ast.AssignmentExpr); !ok {
		t.Fatalf("expected nested assignment on the right, got %T", outer.Value)
	}
}

func TestStabilizeRecoversAfterError(t *testing.T) {
	prog, d := parse(t, "fn bad( : i32 { return 0; } fn good() : i32 { return 1; }")
	if !d.HasErrors() {
		t.Fatalf("expected a parse error for the malformed parameter list")
	}
	found := false
	for _, decl := range prog.Decls {
		if fn, ok := decl.(*ast.FunctionDecl); ok && fn.NameTok.Lexeme == "good" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the parser to recover and still parse 'good'")
	}
}

func TestInvalidAssignmentTargetIsStillParsed(t *testing.T) {
	// Legality of the lvalue is a resolver concern (spec.md §4.4), not a
	// syntax error: the parser accepts any expression on the left of '='.
	prog, d := parse(t, "fn f() : i32 { 1 = 2; return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", d.Errors())
	}
	fn := prog.Decls[0].(*ast.FunctionDecl)
	body := fn.Body.(*ast.BlockStmt)
	es := body.Items[0].(*ast.ExprStmt)
	if _, ok := es.Expr.(*ast.AssignmentExpr); !ok {
		t.Fatalf("expected assignment expression, got %T", es.Expr)
	}
}
