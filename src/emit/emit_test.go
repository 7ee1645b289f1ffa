package emit

import (
	"bytes"
	"strings"
	"testing"

	"anthem/src/air"
	"anthem/src/codegen"
	"anthem/src/diag"
	"anthem/src/lexer"
	"anthem/src/parser"
	"anthem/src/resolve"
	"anthem/src/types"

	"golang.org/x/arch/x86/x86asm"
)

func emitSrc(t *testing.T, src string, windows bool) string {
	t.Helper()
	d := diag.New()
	toks := lexer.New("t.an", src, d).Lex()
	prog := parser.New(toks, d).Parse()
	resolve.New(d).Resolve(prog)
	syms := types.New(d).Check(prog)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %v", d.Errors())
	}
	airProg := air.New(d).Generate(prog, syms)
	asmProg := codegen.New(codegen.SystemV).Generate(airProg)

	var buf bytes.Buffer
	if err := New(&buf, windows).Emit(asmProg); err != nil {
		t.Fatalf("emit error: %v", err)
	}
	return buf.String()
}

func TestEmptyFunctionEmitsUnconditionalZeroAllocation(t *testing.T) {
	out := emitSrc(t, "fn f() : i32 { }", false)
	if !strings.Contains(out, "subq $0, %rsp") {
		t.Fatalf("expected an unconditional `subq $0, %%rsp` for an empty body, got:\n%s", out)
	}
}

func TestFunctionHasPrologueAndEpilogue(t *testing.T) {
	out := emitSrc(t, "fn f() : i32 { return 1; }", false)
	if !strings.Contains(out, "pushq %rbp") || !strings.Contains(out, "movq %rsp, %rbp") {
		t.Fatalf("expected a standard prologue, got:\n%s", out)
	}
	if !strings.Contains(out, "popq %rbp") || !strings.Contains(out, "ret") {
		t.Fatalf("expected a standard epilogue, got:\n%s", out)
	}
}

func TestExternalCallGetsPLTSuffixOnNonWindows(t *testing.T) {
	out := emitSrc(t, `
		external fn puts(s : i32) : i32;
		fn main() : i32 { return puts(1); }
	`, false)
	if !strings.Contains(out, "call puts@PLT") {
		t.Fatalf("expected call puts@PLT on non-Windows, got:\n%s", out)
	}
}

func TestExternalCallHasNoPLTSuffixOnWindows(t *testing.T) {
	out := emitSrc(t, `
		external fn puts(s : i32) : i32;
		fn main() : i32 { return puts(1); }
	`, true)
	if strings.Contains(out, "@PLT") {
		t.Fatalf("expected no @PLT suffix on Windows, got:\n%s", out)
	}
	if !strings.Contains(out, "call puts") {
		t.Fatalf("expected a plain call to puts, got:\n%s", out)
	}
}

func TestGNUStackNoteOmittedOnWindows(t *testing.T) {
	out := emitSrc(t, "fn f() : i32 { return 0; }", true)
	if strings.Contains(out, "GNU-stack") {
		t.Fatalf("expected no GNU-stack note on Windows, got:\n%s", out)
	}
}

func TestGNUStackNotePresentOnNonWindows(t *testing.T) {
	out := emitSrc(t, "fn f() : i32 { return 0; }", false)
	if !strings.Contains(out, "GNU-stack") {
		t.Fatalf("expected a GNU-stack note on non-Windows, got:\n%s", out)
	}
}

func TestEveryFunctionGetsGlobl(t *testing.T) {
	out := emitSrc(t, "internal fn helper() : i32 { return 0; } fn main() : i32 { return 0; }", false)
	if !strings.Contains(out, ".globl helper") {
		t.Fatalf("expected .globl for helper (unconditional per function), got:\n%s", out)
	}
	if !strings.Contains(out, ".globl main") {
		t.Fatalf("expected .globl for main, got:\n%s", out)
	}
}

func TestGlobalVariableWithInitializerLandsInData(t *testing.T) {
	out := emitSrc(t, "global x : i32 = 7; fn f() : i32 { return x; }", false)
	if !strings.Contains(out, ".data") || !strings.Contains(out, "x:") || !strings.Contains(out, ".long 7") {
		t.Fatalf("expected x to be emitted in .data with initializer 7, got:\n%s", out)
	}
}

func TestSelfCheckRunsWithoutError(t *testing.T) {
	d := diag.New()
	toks := lexer.New("t.an", "fn f() : i32 { return 1; }", d).Lex()
	prog := parser.New(toks, d).Parse()
	resolve.New(d).Resolve(prog)
	syms := types.New(d).Check(prog)
	airProg := air.New(d).Generate(prog, syms)
	asmProg := codegen.New(codegen.SystemV).Generate(airProg)

	// "return 1" lowers to a Move{Src: Integer(1), Dst: Reg{AX}} ahead of
	// the Return, which is exactly the movl $imm, %reg form selfCheck
	// hand-encodes and round-trips through x86asm.
	var buf bytes.Buffer
	e := New(&buf, false)
	e.SelfCheck = true
	if err := e.Emit(asmProg); err != nil {
		t.Fatalf("self-check failed: %v", err)
	}
}

func TestEncodeMovImm32MatchesKnownBytes(t *testing.T) {
	got := encodeMovImm32(codegen.CX, 42)
	want := []byte{0xB9, 0x2A, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeMovImm32(CX, 42) = % x, want % x", got, want)
	}
}

func TestEncodeMovImm32UsesRexBForExtendedRegisters(t *testing.T) {
	got := encodeMovImm32(codegen.R9, -1)
	want := []byte{0x41, 0xB9, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeMovImm32(R9, -1) = % x, want % x", got, want)
	}
}

func TestCheckMovImm32DetectsCorruptedEncoding(t *testing.T) {
	if err := checkMovImm32(codegen.AX, 5); err != nil {
		t.Fatalf("uncorrupted encoding should pass: %v", err)
	}

	code := encodeMovImm32(codegen.AX, 5)
	code[1] = 6 // corrupt the encoded immediate's low byte
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if imm, ok := inst.Args[1].(x86asm.Imm); !ok || int64(imm) == 5 {
		t.Fatalf("corrupted encoding should no longer decode to immediate 5, got %v", inst.Args[1])
	}
}
