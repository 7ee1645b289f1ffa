// Package codegen implements the code generator (spec component C7): three
// sub-passes that turn an air.Program into a tree of pseudo-x86
// instructions (selectFunction/selectInstruction), replace pseudo-registers with stack
// slots (allocateStack), and rewrite instructions whose operand
// combinations are illegal on real x86 (fixUpInstructions). The three-pass
// shape and the scratch-register fix-up technique are grounded on
// original_source/Anthem/src/CodeGenerator/CodeGenerator.cpp; this package
// generalizes it from the original's single hard-coded calling convention
// to the spec's selectable SystemV/Microsoft ABI.
package codegen

import (
	"anthem/src/air"
	"anthem/src/ast"
)

// Register names a physical x86-64 general-purpose register. Emission
// decides the width suffix; codegen only ever names the register itself.
type Register int

const (
	AX Register = iota
	CX
	DX
	BX
	SI
	DI
	BP
	SP
	R8
	R9
	R10
	R11
)

func (r Register) String() string {
	names := [...]string{"ax", "cx", "dx", "bx", "si", "di", "bp", "sp", "r8", "r9", "r10", "r11"}
	if int(r) < len(names) {
		return names[r]
	}
	return "reg(?)"
}

// Condition is the x86 condition-code family SetConditional/
// JumpConditional select among.
type Condition int

const (
	Equal Condition = iota
	NotEqual
	Greater
	GreaterEqual
	Less
	LessEqual
)

func conditionFor(op air.BinOp) Condition {
	switch op {
	case air.Lt:
		return Less
	case air.Gt:
		return Greater
	case air.Le:
		return LessEqual
	case air.Ge:
		return GreaterEqual
	case air.Eq:
		return Equal
	case air.Ne:
		return NotEqual
	}
	return Equal
}

// UnaryOp is the pseudo-ASM unary operator set; Not here is the bitwise
// complement (x86 NOT), distinct from air.OpNot's logical negation, which
// lowers to Compare+SetConditional instead.
type UnaryOp int

const (
	Negate UnaryOp = iota
	Not
)

// BinaryOp is the pseudo-ASM binary arithmetic/bitwise operator set.
// Division and remainder are not members: they lower to SignExtend+Divide.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mult
	And
	Or
)

// Operand is the ASM operand sum type.
type Operand interface{ isOperand() }

type Integer int64

func (Integer) isOperand() {}

type Reg struct{ R Register }

func (Reg) isOperand() {}

type Stack struct{ Offset int }

func (Stack) isOperand() {}

// Pseudo is a not-yet-allocated virtual register. Each AIR temporary or
// source variable maps to exactly one *Pseudo per function, memoized by
// name, so later passes can freely rewrite every use in place by mutating
// the single shared struct (the "arena" operand technique).
type Pseudo struct {
	Name    string
	Offset  int // filled in by allocateStack; 0 until then
	Flagged bool
}

func (*Pseudo) isOperand() {}

// Instruction is the ASM instruction sum type.
type Instruction interface{ isASM() }

type Move struct{ Src, Dst Operand }

func (Move) isASM() {}

type Unary struct {
	Op  UnaryOp
	Dst Operand
}

func (Unary) isASM() {}

type Binary struct {
	Op       BinaryOp
	Src, Dst Operand
}

func (Binary) isASM() {}

// Compare represents AT&T `cmpl A, B`, which computes B-A and sets flags
// for "B <cond> A". Both call sites that construct one (the relational
// Binary lowering and Unary-Not's Compare-against-zero) are written so A,B
// already carry that ordering; see the two comments at the construction
// sites for the derivation.
type Compare struct{ A, B Operand }

func (Compare) isASM() {}

type Divide struct{ Operand Operand }

func (Divide) isASM() {}

// SignExtend is `cdq`: sign-extends EAX into EDX:EAX ahead of a Divide.
type SignExtend struct{}

func (SignExtend) isASM() {}

type Jump struct{ Label string }

func (Jump) isASM() {}

type JumpConditional struct {
	Cond  Condition
	Label string
}

func (JumpConditional) isASM() {}

type SetConditional struct {
	Cond Condition
	Dst  Operand
}

func (SetConditional) isASM() {}

type Label struct{ Name string }

func (Label) isASM() {}

type AllocateStack struct{ Size int }

func (AllocateStack) isASM() {}

type DeallocateStack struct{ Size int }

func (DeallocateStack) isASM() {}

type Push struct{ Operand Operand }

func (Push) isASM() {}

type Call struct {
	Name       string
	IsExternal bool
}

func (Call) isASM() {}

type Return struct{}

func (Return) isASM() {}

// ABI describes a calling convention: the registers argument K is passed
// in for K within len(ArgRegs), spilling to the stack beyond that.
type ABI struct {
	Name     string
	ArgRegs  []Register
	ShadowSp int // Microsoft's 32-byte shadow space in bytes; 0 for SystemV
}

var SystemV = ABI{Name: "sysv", ArgRegs: []Register{DI, SI, DX, CX, R8, R9}}
var Microsoft = ABI{Name: "ms", ArgRegs: []Register{CX, DX, R8, R9}, ShadowSp: 32}

// Function is one function's pseudo/stack-resident ASM instruction list.
// StackSize is filled in by allocateStack.
type Function struct {
	Name         string
	Flag         ast.Flag
	Instructions []Instruction
	StackSize    int
}

type FlaggedVar struct {
	Name        string
	Flag        ast.Flag
	Initializer *int64
}

// Program is codegen's complete output, ready for the emitter.
type Program struct {
	Functions []*Function
	Vars      []*FlaggedVar
	ABI       ABI
}

// Generator runs the three sub-passes over an air.Program.
type Generator struct {
	abi ABI

	// per-function state, reset in selectFunction
	pseudos map[string]*Pseudo
	cur     []Instruction
}

// New returns a Generator targeting the given calling convention.
func New(abi ABI) *Generator {
	return &Generator{abi: abi}
}

// Generate runs all three sub-passes and returns the final Program.
func (g *Generator) Generate(prog *air.Program) *Program {
	out := &Program{ABI: g.abi}
	for _, fn := range prog.Functions {
		asmFn := g.selectFunction(fn)
		g.allocateStack(asmFn)
		g.fixUpInstructions(asmFn)
		out.Functions = append(out.Functions, asmFn)
	}
	for _, v := range prog.Vars {
		out.Vars = append(out.Vars, &FlaggedVar{Name: v.Name, Flag: v.Flag, Initializer: v.Initializer})
	}
	return out
}

// ---- sub-pass (a): AIR -> pseudo-ASM ----

func (g *Generator) pseudoFor(name string, flagged bool) *Pseudo {
	if p, ok := g.pseudos[name]; ok {
		return p
	}
	p := &Pseudo{Name: name, Flagged: flagged}
	g.pseudos[name] = p
	return p
}

func (g *Generator) operand(v air.Value) Operand {
	switch val := v.(type) {
	case air.Integer:
		return Integer(val)
	case air.Variable:
		return g.pseudoFor(val.Name, val.Flagged)
	}
	return Integer(0)
}

func (g *Generator) emit(i Instruction) { g.cur = append(g.cur, i) }

func (g *Generator) selectFunction(fn *air.Function) *Function {
	g.pseudos = map[string]*Pseudo{}
	g.cur = nil

	// Parameter marshalling: incoming arguments arrive in ABI registers
	// (or on the caller's stack beyond ArgRegs) and are copied into this
	// function's own pseudo-registers immediately, per spec.md §4.7(a).
	for i, name := range fn.Params {
		dst := g.pseudoFor(name, false)
		if i < len(g.abi.ArgRegs) {
			g.emit(Move{Src: Reg{g.abi.ArgRegs[i]}, Dst: dst})
		} else {
			// Incoming stack arguments sit above the return address; slot
			// index is relative to the first stack-passed parameter.
			slot := i - len(g.abi.ArgRegs)
			g.emit(Move{Src: Stack{Offset: 16 + 8*slot}, Dst: dst})
		}
	}

	for _, instr := range fn.Instructions {
		g.selectInstruction(instr)
	}

	return &Function{Name: fn.Name, Flag: fn.Flag, Instructions: g.cur}
}

func (g *Generator) selectInstruction(instr air.Instruction) {
	switch v := instr.(type) {
	case air.UnaryInstr:
		g.selectUnary(v)
	case air.BinaryInstr:
		g.selectBinary(v)
	case air.SetInstr:
		g.emit(Move{Src: g.operand(v.Val), Dst: g.pseudoFor(v.Var.Name, v.Var.Flagged)})
	case air.ReturnInstr:
		g.emit(Move{Src: g.operand(v.Val), Dst: Reg{AX}})
		g.emit(Return{})
	case air.LabelInstr:
		g.emit(Label{Name: v.Name})
	case air.JumpInstr:
		g.emit(Jump{Label: v.Label})
	case air.JumpIfZeroInstr:
		g.emit(Compare{A: Integer(0), B: g.operand(v.Cond)})
		g.emit(JumpConditional{Cond: Equal, Label: v.Label})
	case air.JumpIfNotZeroInstr:
		g.emit(Compare{A: Integer(0), B: g.operand(v.Cond)})
		g.emit(JumpConditional{Cond: NotEqual, Label: v.Label})
	case air.CallInstr:
		g.selectCall(v)
	}
}

func (g *Generator) selectUnary(v air.UnaryInstr) {
	src := g.operand(v.Src)
	dst := g.pseudoFor(v.Dst.Name, v.Dst.Flagged)
	switch v.Op {
	case air.OpNegate:
		g.emit(Move{Src: src, Dst: dst})
		g.emit(Unary{Op: Negate, Dst: dst})
	case air.OpComplement:
		g.emit(Move{Src: src, Dst: dst})
		g.emit(Unary{Op: Not, Dst: dst})
	case air.OpNone:
		g.emit(Move{Src: src, Dst: dst})
	case air.OpNot:
		// d = (s == 0): cmpl $0, s sets flags for "s cmp 0", i.e. B=s,A=0.
		g.emit(Compare{A: Integer(0), B: src})
		g.emit(Move{Src: Integer(0), Dst: dst})
		g.emit(SetConditional{Cond: Equal, Dst: dst})
	}
}

func (g *Generator) selectBinary(v air.BinaryInstr) {
	dst := g.pseudoFor(v.Dst.Name, v.Dst.Flagged)
	a := g.operand(v.A)
	b := g.operand(v.B)

	if v.Op.IsRelational() {
		// d = (a <op> b): cmpl b, a computes a-b and sets flags for
		// "a cmp b", i.e. B=a, A=b in Compare's A,B=cmp-A,B convention.
		g.emit(Compare{A: b, B: a})
		g.emit(Move{Src: Integer(0), Dst: dst})
		g.emit(SetConditional{Cond: conditionFor(v.Op), Dst: dst})
		return
	}

	switch v.Op {
	case air.Add:
		g.emit(Move{Src: a, Dst: dst})
		g.emit(Binary{Op: Add, Src: b, Dst: dst})
	case air.Sub:
		g.emit(Move{Src: a, Dst: dst})
		g.emit(Binary{Op: Sub, Src: b, Dst: dst})
	case air.Mul:
		g.emit(Move{Src: a, Dst: dst})
		g.emit(Binary{Op: Mult, Src: b, Dst: dst})
	case air.BitAnd:
		g.emit(Move{Src: a, Dst: dst})
		g.emit(Binary{Op: And, Src: b, Dst: dst})
	case air.BitOr:
		g.emit(Move{Src: a, Dst: dst})
		g.emit(Binary{Op: Or, Src: b, Dst: dst})
	case air.Div:
		g.emit(Move{Src: a, Dst: Reg{AX}})
		g.emit(SignExtend{})
		g.emit(Divide{Operand: b})
		g.emit(Move{Src: Reg{AX}, Dst: dst})
	case air.Rem:
		g.emit(Move{Src: a, Dst: Reg{AX}})
		g.emit(SignExtend{})
		g.emit(Divide{Operand: b})
		g.emit(Move{Src: Reg{DX}, Dst: dst})
	}
}

func (g *Generator) selectCall(v air.CallInstr) {
	nstack := 0
	if len(v.Args) > len(g.abi.ArgRegs) {
		nstack = len(v.Args) - len(g.abi.ArgRegs)
	}
	padding := 0
	if nstack%2 != 0 {
		padding = 8
	}
	if padding > 0 {
		g.emit(AllocateStack{Size: padding})
	}

	// Stack-passed arguments are pushed in reverse order so they land in
	// increasing-address order at the callee's prologue. Every AIR call
	// argument is a Variable at this point (never an AIR Integer literal or
	// a register), so it is always memory once lowered to a *Pseudo; x86
	// has no memory-to-stack push, so each one is staged through EAX first.
	for i := len(v.Args) - 1; i >= len(g.abi.ArgRegs); i-- {
		arg := g.pseudoFor(v.Args[i].Name, v.Args[i].Flagged)
		g.emit(Move{Src: arg, Dst: Reg{AX}})
		g.emit(Push{Operand: Reg{AX}})
	}
	regCount := len(v.Args)
	if regCount > len(g.abi.ArgRegs) {
		regCount = len(g.abi.ArgRegs)
	}
	for i := regCount - 1; i >= 0; i-- {
		arg := g.pseudoFor(v.Args[i].Name, v.Args[i].Flagged)
		g.emit(Move{Src: arg, Dst: Reg{g.abi.ArgRegs[i]}})
	}

	g.emit(Call{Name: v.Func, IsExternal: v.IsExternal})

	dealloc := 8*nstack + padding
	if dealloc > 0 {
		g.emit(DeallocateStack{Size: dealloc})
	}
	g.emit(Move{Src: Reg{AX}, Dst: g.pseudoFor(v.Dst.Name, v.Dst.Flagged)})
}

// ---- sub-pass (b): pseudo -> stack allocation ----

// forEachOperand visits every operand slot instr carries, in the order the
// instruction's fields are declared, rewrites it through f, and returns the
// (possibly modified) instruction. *Pseudo operands are shared pointers, so
// mutating the pointee through f (as allocateStack's assign does) is
// visible at every other use site without this rewrite; the rewrite exists
// only to make the traversal uniform across instruction shapes.
func forEachOperand(instr Instruction, f func(*Operand)) Instruction {
	switch v := instr.(type) {
	case Move:
		f(&v.Src)
		f(&v.Dst)
		return v
	case Unary:
		f(&v.Dst)
		return v
	case Binary:
		f(&v.Src)
		f(&v.Dst)
		return v
	case Compare:
		f(&v.A)
		f(&v.B)
		return v
	case Divide:
		f(&v.Operand)
		return v
	case SetConditional:
		f(&v.Dst)
		return v
	case Push:
		f(&v.Operand)
		return v
	default:
		return instr
	}
}

// allocateStack assigns every distinct *Pseudo operand in fn a stack slot
// below the frame pointer and records the 16-byte-rounded total in
// fn.StackSize. Because every pseudoFor call for a given name returns the
// same *Pseudo pointer, writing Offset here is visible at every use site
// without rewriting the instruction list.
func (g *Generator) allocateStack(fn *Function) {
	offsets := map[string]int{}
	next := 0
	assign := func(op *Operand) {
		p, ok := (*op).(*Pseudo)
		if !ok {
			return
		}
		if off, seen := offsets[p.Name]; seen {
			p.Offset = off
			return
		}
		next += 4
		offsets[p.Name] = -next
		p.Offset = -next
	}
	for i, instr := range fn.Instructions {
		fn.Instructions[i] = forEachOperand(instr, assign)
	}
	size := next
	if rem := size % 16; rem != 0 {
		size += 16 - rem
	}
	fn.StackSize = size
	fn.Instructions = append([]Instruction{AllocateStack{Size: size}}, fn.Instructions...)
}

// ---- sub-pass (c): x86 legality fix-up ----

func isMemory(o Operand) bool {
	switch o.(type) {
	case Stack, *Pseudo:
		return true
	}
	return false
}

func isInteger(o Operand) bool {
	_, ok := o.(Integer)
	return ok
}

// fixUpInstructions rewrites instruction forms x86 cannot encode directly:
// two memory operands, an immediate where only a register fits, a memory
// destination for imul, or an immediate operand for idiv. R10D is the
// scratch register for every rewrite except a Compare whose second operand
// is an immediate, which is staged through R11D.
func (g *Generator) fixUpInstructions(fn *Function) {
	var out []Instruction
	emit := func(i Instruction) { out = append(out, i) }
	scratch := Reg{R10}
	scratch2 := Reg{R11}

	for _, instr := range fn.Instructions {
		switch v := instr.(type) {
		case Move:
			if isMemory(v.Src) && isMemory(v.Dst) {
				emit(Move{Src: v.Src, Dst: scratch})
				emit(Move{Src: scratch, Dst: v.Dst})
				continue
			}
			emit(v)
		case Binary:
			if v.Op == Mult && isMemory(v.Dst) {
				emit(Move{Src: v.Dst, Dst: scratch})
				emit(Binary{Op: Mult, Src: v.Src, Dst: scratch})
				emit(Move{Src: scratch, Dst: v.Dst})
				continue
			}
			if isMemory(v.Src) && isMemory(v.Dst) {
				emit(Move{Src: v.Src, Dst: scratch})
				emit(Binary{Op: v.Op, Src: scratch, Dst: v.Dst})
				continue
			}
			emit(v)
		case Compare:
			if isMemory(v.A) && isMemory(v.B) {
				emit(Move{Src: v.A, Dst: scratch})
				emit(Compare{A: scratch, B: v.B})
				continue
			}
			if isInteger(v.B) {
				emit(Move{Src: v.B, Dst: scratch2})
				emit(Compare{A: v.A, B: scratch2})
				continue
			}
			emit(v)
		case Divide:
			if isInteger(v.Operand) {
				emit(Move{Src: v.Operand, Dst: scratch})
				emit(Divide{Operand: scratch})
				continue
			}
			emit(v)
		case Push:
			emit(v)
		default:
			emit(v)
		}
	}
	fn.Instructions = out
}
