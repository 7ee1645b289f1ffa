package air

import (
	"fmt"
	"io"
)

// Dump writes an indented trace of prog's instruction streams, in the
// teacher's ir.Node.Print style (see ast.Dump's doc comment): a debugging
// aid, not an authoritative serialization.
func Dump(w io.Writer, prog *Program) {
	for _, v := range prog.Vars {
		if v.Initializer != nil {
			fmt.Fprintf(w, "VAR %s (%s) = %d\n", v.Name, v.Flag, *v.Initializer)
		} else {
			fmt.Fprintf(w, "VAR %s (%s)\n", v.Name, v.Flag)
		}
	}
	for _, fn := range prog.Functions {
		fmt.Fprintf(w, "FUNCTION %s (%s) params=%v\n", fn.Name, fn.Flag, fn.Params)
		for _, instr := range fn.Instructions {
			fmt.Fprintf(w, "  %s\n", dumpInstr(instr))
		}
	}
}

func dumpInstr(instr Instruction) string {
	switch v := instr.(type) {
	case UnaryInstr:
		return fmt.Sprintf("%s = %s %s", dumpValue(v.Dst), v.Op, dumpValue(v.Src))
	case BinaryInstr:
		return fmt.Sprintf("%s = %s %s %s", dumpValue(v.Dst), dumpValue(v.A), v.Op, dumpValue(v.B))
	case SetInstr:
		return fmt.Sprintf("%s = %s", dumpValue(v.Var), dumpValue(v.Val))
	case ReturnInstr:
		return fmt.Sprintf("RETURN %s", dumpValue(v.Val))
	case LabelInstr:
		return fmt.Sprintf("%s:", v.Name)
	case JumpInstr:
		return fmt.Sprintf("JUMP %s", v.Label)
	case JumpIfZeroInstr:
		return fmt.Sprintf("JUMPZ %s, %s", dumpValue(v.Cond), v.Label)
	case JumpIfNotZeroInstr:
		return fmt.Sprintf("JUMPNZ %s, %s", dumpValue(v.Cond), v.Label)
	case CallInstr:
		return fmt.Sprintf("%s = CALL %s(%v) external=%v", dumpValue(v.Dst), v.Func, v.Args, v.IsExternal)
	default:
		return fmt.Sprintf("<unknown instruction %T>", v)
	}
}

func dumpValue(v Value) string {
	switch val := v.(type) {
	case Integer:
		return fmt.Sprintf("%d", int64(val))
	case Variable:
		return val.Name
	default:
		return "<?>"
	}
}
