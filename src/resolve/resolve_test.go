package resolve

import (
	"testing"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/lexer"
	"anthem/src/parser"
)

func resolveSrc(t *testing.T, src string) (*ast.Program, *diag.Diagnostics) {
	t.Helper()
	d := diag.New()
	toks := lexer.New("t.an", src, d).Lex()
	prog := parser.New(toks, d).Parse()
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", d.Errors())
	}
	New(d).Resolve(prog)
	return prog, d
}

func TestRedeclarationInSameScopeIsReported(t *testing.T) {
	prog, d := resolveSrc(t, "fn f() : i32 { let a : i32 = 1; let a : i32 = 2; return 0; }")
	if !d.HasErrors() {
		t.Fatalf("expected redeclaration error")
	}
	_ = prog
}

func TestShadowingAcrossBlocksIsAllowed(t *testing.T) {
	_, d := resolveSrc(t, `fn f() : i32 {
		let a : i32 = 1;
		{ let a : i32 = 2; }
		return a;
	}`)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
}

func TestUndefinedNameIsReported(t *testing.T) {
	_, d := resolveSrc(t, "fn f() : i32 { return x; }")
	if !d.HasErrors() {
		t.Fatalf("expected undefined-variable error")
	}
}

func TestBreakOutsideLoopIsReported(t *testing.T) {
	_, d := resolveSrc(t, "fn f() : i32 { break; return 0; }")
	if !d.HasErrors() {
		t.Fatalf("expected break-outside-loop error")
	}
}

func TestLoopIDsAreAttached(t *testing.T) {
	prog, d := resolveSrc(t, "fn f() : i32 { loop { break; } return 0; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	fn := prog.Decls[0].(*ast.FunctionDecl)
	body := fn.Body.(*ast.BlockStmt)
	loop := body.Items[0].(*ast.LoopStmt)
	inner := loop.Body.(*ast.BlockStmt)
	brk := inner.Items[0].(*ast.BreakStmt)
	if brk.ID != loop.ID {
		t.Fatalf("break id %d does not match enclosing loop id %d", brk.ID, loop.ID)
	}
}

func TestInvalidAssignmentTarget(t *testing.T) {
	_, d := resolveSrc(t, "fn f() : i32 { 1 = 2; return 0; }")
	if !d.HasErrors() {
		t.Fatalf("expected invalid assignment target error")
	}
}

func TestInternalVariablesAreRenamedGlobal(t *testing.T) {
	prog, d := resolveSrc(t, "internal x : i32 = 1; fn f() : i32 { return x; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	v := prog.Decls[0].(*ast.VariableDecl)
	if v.Token.Lexeme == "x" {
		t.Fatalf("expected internal variable to be uniquely renamed, still 'x'")
	}
}

func TestGlobalVariablesKeepTheirName(t *testing.T) {
	prog, d := resolveSrc(t, "global x : i32 = 1; fn f() : i32 { return x; }")
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	v := prog.Decls[0].(*ast.VariableDecl)
	if v.Token.Lexeme != "x" {
		t.Fatalf("expected global variable to keep its name, got %q", v.Token.Lexeme)
	}
}
