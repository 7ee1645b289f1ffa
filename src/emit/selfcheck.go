package emit

import (
	"fmt"

	"anthem/src/codegen"
	"golang.org/x/arch/x86/x86asm"
)

// movImm32Reg maps a codegen.Register to the x86asm register constant
// hand-encoding targets: the B8+rd opcode family loads a 32-bit immediate
// into one of these eight or twelve registers, with REX.B needed only for
// the extended (r8-r11) ones.
var movImm32Reg = map[codegen.Register]x86asm.Reg{
	codegen.AX:  x86asm.EAX,
	codegen.CX:  x86asm.ECX,
	codegen.DX:  x86asm.EDX,
	codegen.BX:  x86asm.EBX,
	codegen.SI:  x86asm.ESI,
	codegen.DI:  x86asm.EDI,
	codegen.BP:  x86asm.EBP,
	codegen.SP:  x86asm.ESP,
	codegen.R8:  x86asm.R8L,
	codegen.R9:  x86asm.R9L,
	codegen.R10: x86asm.R10L,
	codegen.R11: x86asm.R11L,
}

// selfCheck hand-encodes the `movl $imm, %reg`-class immediate loads that
// fn.Instructions actually contains and decodes the resulting bytes with
// x86asm, verifying the operand the emitter meant to produce (the
// instruction's own Src/Dst, not a stand-in constant) round-trips through
// a real x86 decoder. It is deliberately narrow: a full assembler belongs
// in C8's text-emission path, not here.
func (e *Emitter) selfCheck(prog *codegen.Program) error {
	for _, fn := range prog.Functions {
		for _, instr := range fn.Instructions {
			mv, ok := instr.(codegen.Move)
			if !ok {
				continue
			}
			imm, ok := mv.Src.(codegen.Integer)
			if !ok {
				continue
			}
			reg, ok := mv.Dst.(codegen.Reg)
			if !ok {
				continue
			}
			if err := checkMovImm32(reg.R, int32(imm)); err != nil {
				return fmt.Errorf("self-check failed in function %s: %w", fn.Name, err)
			}
		}
	}
	return nil
}

// checkMovImm32 hand-encodes `movl $imm, %reg` using the B8+rd opcode
// (REX.B-prefixed for the extended registers) and decodes it back with
// x86asm, asserting the decoded instruction is a MOV carrying the same
// immediate into the same destination register.
func checkMovImm32(reg codegen.Register, imm int32) error {
	want, ok := movImm32Reg[reg]
	if !ok {
		return fmt.Errorf("no B8+rd encoding known for register %s", reg)
	}
	code := encodeMovImm32(reg, imm)
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return fmt.Errorf("decode movl $%d, %%%s: %w", imm, reg, err)
	}
	if inst.Len != len(code) {
		return fmt.Errorf("expected a %d-byte encoding, decoded %d bytes", len(code), inst.Len)
	}
	if inst.Op != x86asm.MOV {
		return fmt.Errorf("expected MOV, x86asm decoded %v", inst.Op)
	}
	dst, ok := inst.Args[0].(x86asm.Reg)
	if !ok || dst != want {
		return fmt.Errorf("expected destination register %v, x86asm decoded %v", want, inst.Args[0])
	}
	src, ok := inst.Args[1].(x86asm.Imm)
	if !ok || int64(src) != int64(imm) {
		return fmt.Errorf("expected immediate %d, x86asm decoded %v", imm, inst.Args[1])
	}
	return nil
}

func encodeMovImm32(reg codegen.Register, imm int32) []byte {
	r := int(reg)
	// codegen.Register orders SI, DI, BP, SP differently from the hardware
	// register numbers the rd field takes.
	switch reg {
	case codegen.SP:
		r = 4
	case codegen.BP:
		r = 5
	case codegen.SI:
		r = 6
	case codegen.DI:
		r = 7
	}
	var code []byte
	if r >= 8 {
		code = append(code, 0x41) // REX.B: extend the opcode's register field
		r -= 8
	}
	code = append(code, byte(0xB8+r))
	u := uint32(imm)
	code = append(code, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	return code
}
