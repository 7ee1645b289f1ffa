// Package emit implements the textual AT&T/GAS emitter (spec component
// C8): it walks a codegen.Program and writes assembly text. The
// prologue/epilogue shape and the external-symbol @PLT suffix convention
// are grounded on original_source/Anthem/src/CodeGenerator/
// CodeGenerator.cpp's print_program; the register-width view tables below
// are this package's own, since the original always worked in one fixed
// width and never needed to select among them per instruction.
package emit

import (
	"fmt"
	"io"

	"anthem/src/ast"
	"anthem/src/codegen"
)

// reg8, reg32, reg64 are AT&T register-name views for the twelve
// general-purpose registers codegen.Register enumerates. reg64 uses the
// spec's non-standard "%r8q".."%r11q" suffix convention for the extended
// registers rather than their real GAS names (%r8-%r11); Push is the only
// instruction that reaches into this table, and it is meant to emit
// exactly that literal spelling.
var reg8 = [...]string{"al", "cl", "dl", "bl", "sil", "dil", "bpl", "spl", "r8b", "r9b", "r10b", "r11b"}
var reg32 = [...]string{"eax", "ecx", "edx", "ebx", "esi", "edi", "ebp", "esp", "r8d", "r9d", "r10d", "r11d"}
var reg64 = [...]string{"rax", "rcx", "rdx", "rbx", "rsi", "rdi", "rbp", "rsp", "r8q", "r9q", "r10q", "r11q"}

func regName(table [12]string, r codegen.Register) string {
	if int(r) < len(table) {
		return table[r]
	}
	return "?"
}

var conditionSuffix = map[codegen.Condition]string{
	codegen.Equal:        "e",
	codegen.NotEqual:     "ne",
	codegen.Greater:      "g",
	codegen.GreaterEqual: "ge",
	codegen.Less:         "l",
	codegen.LessEqual:    "le",
}

// Emitter renders a codegen.Program as GAS assembly text. Windows selects
// the Microsoft object-file conventions: no @PLT suffix on external calls,
// and the GNU-stack note (meaningful only to ELF linkers) is omitted.
type Emitter struct {
	Out       io.Writer
	Windows   bool
	SelfCheck bool
}

// New returns an Emitter writing to w.
func New(w io.Writer, windows bool) *Emitter {
	return &Emitter{Out: w, Windows: windows}
}

func (e *Emitter) printf(format string, args ...interface{}) {
	fmt.Fprintf(e.Out, format, args...)
}

// Emit writes prog's complete assembly listing, including the data section
// for any non-local variables and the trailing GNU-stack note.
func (e *Emitter) Emit(prog *codegen.Program) error {
	e.printf(".text\n")
	for _, fn := range prog.Functions {
		e.printf(".globl %s\n", fn.Name)
	}
	for _, fn := range prog.Functions {
		e.emitFunction(fn)
	}
	e.emitData(prog.Vars)
	if !e.Windows {
		e.printf(".section .note.GNU-stack,\"\",@progbits\n")
	}
	if e.SelfCheck {
		return e.selfCheck(prog)
	}
	return nil
}

func (e *Emitter) emitFunction(fn *codegen.Function) {
	e.printf("%s:\n", fn.Name)
	e.printf("\tpushq %%rbp\n")
	e.printf("\tmovq %%rsp, %%rbp\n")
	for _, instr := range fn.Instructions {
		e.emitInstruction(instr)
	}
}

func (e *Emitter) emitInstruction(instr codegen.Instruction) {
	switch v := instr.(type) {
	case codegen.Move:
		e.printf("\tmovl %s, %s\n", e.operand32(v.Src), e.operand32(v.Dst))
	case codegen.Unary:
		mnemonic := "negl"
		if v.Op == codegen.Not {
			mnemonic = "notl"
		}
		e.printf("\t%s %s\n", mnemonic, e.operand32(v.Dst))
	case codegen.Binary:
		mnemonic := map[codegen.BinaryOp]string{
			codegen.Add: "addl", codegen.Sub: "subl", codegen.Mult: "imull",
			codegen.And: "andl", codegen.Or: "orl",
		}[v.Op]
		e.printf("\t%s %s, %s\n", mnemonic, e.operand32(v.Src), e.operand32(v.Dst))
	case codegen.Compare:
		e.printf("\tcmpl %s, %s\n", e.operand32(v.A), e.operand32(v.B))
	case codegen.Divide:
		e.printf("\tidivl %s\n", e.operand32(v.Operand))
	case codegen.SignExtend:
		e.printf("\tcltd\n")
	case codegen.Jump:
		e.printf("\tjmp %s\n", v.Label)
	case codegen.JumpConditional:
		e.printf("\tj%s %s\n", conditionSuffix[v.Cond], v.Label)
	case codegen.SetConditional:
		e.printf("\tset%s %s\n", conditionSuffix[v.Cond], e.operand8(v.Dst))
	case codegen.Label:
		e.printf("%s:\n", v.Name)
	case codegen.AllocateStack:
		// Emitted unconditionally, even for Size==0: spec's documented
		// boundary case for an empty function body is
		// `subq $0, %rsp; movl $0, %eax; ...`.
		e.printf("\tsubq $%d, %%rsp\n", v.Size)
	case codegen.DeallocateStack:
		e.printf("\taddq $%d, %%rsp\n", v.Size)
	case codegen.Push:
		e.printf("\tpushq %s\n", e.operand64(v.Operand))
	case codegen.Call:
		e.printf("\tcall %s\n", e.callTarget(v))
	case codegen.Return:
		e.printf("\tmovq %%rbp, %%rsp\n")
		e.printf("\tpopq %%rbp\n")
		e.printf("\tret\n")
	}
}

func (e *Emitter) callTarget(c codegen.Call) string {
	if c.IsExternal && !e.Windows {
		return c.Name + "@PLT"
	}
	return c.Name
}

func (e *Emitter) operand32(o codegen.Operand) string {
	switch v := o.(type) {
	case codegen.Integer:
		return fmt.Sprintf("$%d", v)
	case codegen.Reg:
		return "%" + regName(reg32, v.R)
	case codegen.Stack:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	case *codegen.Pseudo:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	}
	return "?"
}

func (e *Emitter) operand64(o codegen.Operand) string {
	switch v := o.(type) {
	case codegen.Integer:
		return fmt.Sprintf("$%d", v)
	case codegen.Reg:
		return "%" + regName(reg64, v.R)
	case codegen.Stack:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	case *codegen.Pseudo:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	}
	return "?"
}

func (e *Emitter) operand8(o codegen.Operand) string {
	switch v := o.(type) {
	case codegen.Reg:
		return "%" + regName(reg8, v.R)
	case codegen.Stack:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	case *codegen.Pseudo:
		return fmt.Sprintf("%d(%%rbp)", v.Offset)
	}
	return "?"
}

// emitData writes the .data entries for global/internal variables with a
// constant initializer, the .bss-style zero-initialized form for those
// without one, and an .extern-equivalent reference for External variables
// — spec.md §9's open question on external-variable linkage is resolved in
// favor of this symbol-reference form rather than synthesizing a
// definition the linker would then see twice.
func (e *Emitter) emitData(vars []*codegen.FlaggedVar) {
	var withInit, withoutInit, external []*codegen.FlaggedVar
	for _, v := range vars {
		switch {
		case v.Flag == ast.FlagExternal:
			external = append(external, v)
		case v.Initializer != nil:
			withInit = append(withInit, v)
		default:
			withoutInit = append(withoutInit, v)
		}
	}
	for _, v := range external {
		e.printf(".extern %s\n", v.Name)
	}
	if len(withInit) > 0 {
		e.printf(".data\n")
		for _, v := range withInit {
			if v.Flag != ast.FlagInternal {
				e.printf(".globl %s\n", v.Name)
			}
			e.printf("%s:\n\t.long %d\n", v.Name, *v.Initializer)
		}
	}
	if len(withoutInit) > 0 {
		e.printf(".bss\n")
		for _, v := range withoutInit {
			if v.Flag != ast.FlagInternal {
				e.printf(".globl %s\n", v.Name)
			}
			e.printf("%s:\n\t.zero 4\n", v.Name)
		}
	}
}
