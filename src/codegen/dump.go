package codegen

import (
	"fmt"
	"io"
)

// Dump writes an indented trace of prog's pseudo/stack-resident ASM
// instruction streams, filling the same debugging-aid role as ast.Dump and
// air.Dump for the ASM-tree stage, which spec.md §9 does not itself name a
// printer for.
func Dump(w io.Writer, prog *Program) {
	fmt.Fprintf(w, "ABI %s\n", prog.ABI.Name)
	for _, fn := range prog.Functions {
		fmt.Fprintf(w, "FUNCTION %s (%s) stack=%d\n", fn.Name, fn.Flag, fn.StackSize)
		for _, instr := range fn.Instructions {
			fmt.Fprintf(w, "  %s\n", dumpInstr(instr))
		}
	}
}

func dumpInstr(instr Instruction) string {
	switch v := instr.(type) {
	case Move:
		return fmt.Sprintf("mov %s, %s", dumpOperand(v.Src), dumpOperand(v.Dst))
	case Unary:
		return fmt.Sprintf("unary(%d) %s", v.Op, dumpOperand(v.Dst))
	case Binary:
		return fmt.Sprintf("binary(%d) %s, %s", v.Op, dumpOperand(v.Src), dumpOperand(v.Dst))
	case Compare:
		return fmt.Sprintf("cmp %s, %s", dumpOperand(v.A), dumpOperand(v.B))
	case Divide:
		return fmt.Sprintf("idiv %s", dumpOperand(v.Operand))
	case SignExtend:
		return "cdq"
	case Jump:
		return fmt.Sprintf("jmp %s", v.Label)
	case JumpConditional:
		return fmt.Sprintf("j(%d) %s", v.Cond, v.Label)
	case SetConditional:
		return fmt.Sprintf("set(%d) %s", v.Cond, dumpOperand(v.Dst))
	case Label:
		return fmt.Sprintf("%s:", v.Name)
	case AllocateStack:
		return fmt.Sprintf("allocstack %d", v.Size)
	case DeallocateStack:
		return fmt.Sprintf("deallocstack %d", v.Size)
	case Push:
		return fmt.Sprintf("push %s", dumpOperand(v.Operand))
	case Call:
		return fmt.Sprintf("call %s external=%v", v.Name, v.IsExternal)
	case Return:
		return "return"
	default:
		return fmt.Sprintf("<unknown instruction %T>", v)
	}
}

func dumpOperand(o Operand) string {
	switch v := o.(type) {
	case Integer:
		return fmt.Sprintf("$%d", int64(v))
	case Reg:
		return fmt.Sprintf("reg(%d)", v.R)
	case Stack:
		return fmt.Sprintf("%d(stack)", v.Offset)
	case *Pseudo:
		return fmt.Sprintf("%%%s", v.Name)
	default:
		return "<?>"
	}
}
