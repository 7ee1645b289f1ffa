package codegen

import (
	"testing"

	"anthem/src/air"
	"anthem/src/diag"
	"anthem/src/lexer"
	"anthem/src/parser"
	"anthem/src/resolve"
	"anthem/src/types"
)

func generate(t *testing.T, src string, abi ABI) *Program {
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
	return New(abi).Generate(airProg)
}

func TestEveryFunctionBeginsWithAllocateStack(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 1; return a; }", SystemV)
	fn := prog.Functions[0]
	alloc, ok := fn.Instructions[0].(AllocateStack)
	if !ok {
		t.Fatalf("expected first instruction to be AllocateStack, got %T", fn.Instructions[0])
	}
	if alloc.Size%16 != 0 {
		t.Fatalf("expected 16-byte-rounded stack size, got %d", alloc.Size)
	}
}

func TestEmptyFunctionStillAllocatesZero(t *testing.T) {
	prog := generate(t, "fn f() : i32 { }", SystemV)
	fn := prog.Functions[0]
	alloc, ok := fn.Instructions[0].(AllocateStack)
	if !ok {
		t.Fatalf("expected AllocateStack, got %T", fn.Instructions[0])
	}
	if alloc.Size != 0 {
		t.Fatalf("expected a zero-size allocation for an empty body, got %d", alloc.Size)
	}
}

func TestPseudoOffsetsAreStableAcrossUses(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 1; return a + a; }", SystemV)
	fn := prog.Functions[0]
	var offsets []int
	for _, instr := range fn.Instructions {
		if mv, ok := instr.(Move); ok {
			if p, ok := mv.Src.(*Pseudo); ok && p.Name == "a#0" {
				offsets = append(offsets, p.Offset)
			}
		}
	}
	if len(offsets) < 2 {
		t.Fatalf("expected at least two uses of 'a', got %d", len(offsets))
	}
	for _, o := range offsets[1:] {
		if o != offsets[0] {
			t.Fatalf("expected every use of the same pseudo to share one offset, got %v", offsets)
		}
	}
}

func TestFixUpRewritesMemoryToMemoryMove(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 1; let b : i32 = 2; b = a; return b; }", SystemV)
	fn := prog.Functions[0]
	for i, instr := range fn.Instructions {
		if mv, ok := instr.(Move); ok {
			srcMem := isMemory(mv.Src)
			dstMem := isMemory(mv.Dst)
			if srcMem && dstMem {
				t.Fatalf("instruction %d is an illegal mem-to-mem Move that fix-up should have rewritten: %+v", i, mv)
			}
		}
	}
}

func TestCompareNeverHasTwoMemoryOperands(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 1; let b : i32 = 2; return a < b; }", SystemV)
	fn := prog.Functions[0]
	for i, instr := range fn.Instructions {
		if cmp, ok := instr.(Compare); ok {
			if isMemory(cmp.A) && isMemory(cmp.B) {
				t.Fatalf("instruction %d is an illegal mem/mem Compare: %+v", i, cmp)
			}
		}
	}
}

func TestParametersAreMarshalledFromArgRegisters(t *testing.T) {
	prog := generate(t, "fn add(a : i32, b : i32) : i32 { return a + b; }", SystemV)
	fn := prog.Functions[0]
	var moves []Move
	for _, instr := range fn.Instructions {
		if mv, ok := instr.(Move); ok {
			moves = append(moves, mv)
		}
	}
	foundDI, foundSI := false, false
	for _, mv := range moves {
		if r, ok := mv.Src.(Reg); ok {
			if r.R == DI {
				foundDI = true
			}
			if r.R == SI {
				foundSI = true
			}
		}
	}
	if !foundDI || !foundSI {
		t.Fatalf("expected the first two SystemV arg registers (DI, SI) to marshal a, b; moves: %+v", moves)
	}
}

func TestMicrosoftABIUsesDifferentArgRegisters(t *testing.T) {
	prog := generate(t, "fn add(a : i32, b : i32) : i32 { return a + b; }", Microsoft)
	fn := prog.Functions[0]
	foundCX := false
	for _, instr := range fn.Instructions {
		if mv, ok := instr.(Move); ok {
			if r, ok := mv.Src.(Reg); ok && r.R == CX {
				foundCX = true
			}
		}
	}
	if !foundCX {
		t.Fatalf("expected the Microsoft ABI's first arg register (CX) to marshal a")
	}
}

func TestDivisionLowersToSignExtendThenDivide(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 10; let b : i32 = 3; return a / b; }", SystemV)
	fn := prog.Functions[0]
	sawExtend, sawDivide := false, false
	for _, instr := range fn.Instructions {
		switch instr.(type) {
		case SignExtend:
			sawExtend = true
		case Divide:
			sawDivide = true
		}
	}
	if !sawExtend || !sawDivide {
		t.Fatalf("expected division to lower via SignExtend+Divide, instructions: %+v", fn.Instructions)
	}
}

func TestStackArgumentsAreStagedThroughEAXBeforePush(t *testing.T) {
	src := `external fn sum7(a:i32,b:i32,c:i32,d:i32,e:i32,f:i32,g:i32):i32;
fn f() : i32 { return sum7(1,2,3,4,5,6,7); }`
	prog := generate(t, src, SystemV)
	fn := prog.Functions[0]
	var pushes []Push
	for i, instr := range fn.Instructions {
		if p, ok := instr.(Push); ok {
			pushes = append(pushes, p)
			if r, ok := p.Operand.(Reg); !ok || r.R != AX {
				t.Fatalf("instruction %d: expected Push to take a register (staged through EAX), got %+v", i, p)
			}
			mv, ok := fn.Instructions[i-1].(Move)
			if !ok {
				t.Fatalf("instruction %d: expected the Push at %d to be preceded by a Move into EAX, got %T", i, i, fn.Instructions[i-1])
			}
			if r, ok := mv.Dst.(Reg); !ok || r.R != AX {
				t.Fatalf("instruction %d: expected the preceding Move's destination to be EAX, got %+v", i, mv)
			}
		}
	}
	if len(pushes) != 1 {
		t.Fatalf("expected exactly one stack-passed argument (7 args - 6 SystemV regs), got %d pushes", len(pushes))
	}
}

func TestDivideNeverTakesAnImmediateOperand(t *testing.T) {
	prog := generate(t, "fn f() : i32 { let a : i32 = 10; return a / 3; }", SystemV)
	fn := prog.Functions[0]
	for i, instr := range fn.Instructions {
		if dv, ok := instr.(Divide); ok {
			if isInteger(dv.Operand) {
				t.Fatalf("instruction %d is an illegal immediate Divide operand: %+v", i, dv)
			}
		}
	}
}
