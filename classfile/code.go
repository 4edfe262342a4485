package classfile

import "encoding/binary"

// Opcodes the bytecode walker cares about.
const (
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpGetStatic       = 0xb2
	OpInvokeVirtual   = 0xb6
	OpInvokeSpecial   = 0xb7
	OpInvokeStatic    = 0xb8
	OpInvokeInterface = 0xb9
	OpInvokeDynamic   = 0xba
	OpNew             = 0xbb
	OpANewArray       = 0xbd
	OpCheckCast       = 0xc0
	OpInstanceOf      = 0xc1
	OpTableSwitch     = 0xaa
	OpLookupSwitch    = 0xab
	OpWide            = 0xc4
	OpMultiANewArray  = 0xc5
	OpIinc            = 0x84
)

const invalidOp = -1

// operandWidths holds the fixed operand size of every opcode; the switch
// instructions and wide are variable and handled by WalkCode.
var operandWidths = func() [256]int {
	var w [256]int
	for i := range w {
		w[i] = invalidOp
	}
	set := func(from, to, width int) {
		for op := from; op <= to; op++ {
			w[op] = width
		}
	}
	set(0x00, 0x0f, 0) // nop, constants
	set(0x10, 0x10, 1) // bipush
	set(0x11, 0x11, 2) // sipush
	set(0x12, 0x12, 1) // ldc
	set(0x13, 0x14, 2) // ldc_w, ldc2_w
	set(0x15, 0x19, 1) // loads
	set(0x1a, 0x35, 0)
	set(0x36, 0x3a, 1) // stores
	set(0x3b, 0x83, 0)
	set(0x84, 0x84, 2) // iinc
	set(0x85, 0x98, 0)
	set(0x99, 0xa8, 2) // branches, goto, jsr
	set(0xa9, 0xa9, 1) // ret
	set(0xac, 0xb1, 0) // returns
	set(0xb2, 0xb8, 2) // field access, invokes
	set(0xb9, 0xba, 4) // invokeinterface, invokedynamic
	set(0xbb, 0xbb, 2) // new
	set(0xbc, 0xbc, 1) // newarray
	set(0xbd, 0xbd, 2) // anewarray
	set(0xbe, 0xbf, 0)
	set(0xc0, 0xc1, 2) // checkcast, instanceof
	set(0xc2, 0xc3, 0) // monitors
	set(0xc5, 0xc5, 3) // multianewarray
	set(0xc6, 0xc7, 2) // ifnull, ifnonnull
	set(0xc8, 0xc9, 4) // goto_w, jsr_w
	set(0xca, 0xca, 0) // breakpoint
	set(0xfe, 0xff, 0) // impdep
	return w
}()

// Instruction is one decoded bytecode instruction. Index holds the constant
// pool operand for instructions that have one, otherwise zero.
type Instruction struct {
	PC     int
	Opcode byte
	Index  uint16
}

func hasPoolOperand(op byte) bool {
	switch op {
	case OpLdc, OpLdcW, OpLdc2W, OpNew, OpANewArray, OpCheckCast, OpInstanceOf,
		OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface,
		OpInvokeDynamic, OpMultiANewArray:
		return true
	}
	return op >= OpGetStatic && op <= 0xb5
}

// WalkCode decodes every instruction in a Code attribute and calls fn for
// each. It fails on unknown opcodes or operands running past the end, since a
// desynchronized walk would misread every following instruction.
func WalkCode(code []byte, fn func(Instruction) error) error {
	pc := 0
	for pc < len(code) {
		op := code[pc]
		next := pc + 1

		switch op {
		case OpTableSwitch:
			next = align4(next)
			if next+12 > len(code) {
				return invalid("tableswitch at %d truncated", pc)
			}
			low := int32(binary.BigEndian.Uint32(code[next+4:]))
			high := int32(binary.BigEndian.Uint32(code[next+8:]))
			if high < low {
				return invalid("tableswitch at %d has low %d > high %d", pc, low, high)
			}
			next += 12 + (int(high)-int(low)+1)*4
		case OpLookupSwitch:
			next = align4(next)
			if next+8 > len(code) {
				return invalid("lookupswitch at %d truncated", pc)
			}
			npairs := int32(binary.BigEndian.Uint32(code[next+4:]))
			if npairs < 0 {
				return invalid("lookupswitch at %d has %d pairs", pc, npairs)
			}
			next += 8 + int(npairs)*8
		case OpWide:
			if next >= len(code) {
				return invalid("wide at %d truncated", pc)
			}
			if code[next] == OpIinc {
				next += 5
			} else {
				next += 3
			}
		default:
			width := operandWidths[op]
			if width == invalidOp {
				return invalid("unknown opcode 0x%02x at %d", op, pc)
			}
			next += width
		}

		if next > len(code) {
			return invalid("operands of opcode 0x%02x at %d run past end of code", op, pc)
		}

		ins := Instruction{PC: pc, Opcode: op}
		if hasPoolOperand(op) {
			if op == OpLdc {
				ins.Index = uint16(code[pc+1])
			} else {
				ins.Index = binary.BigEndian.Uint16(code[pc+1:])
			}
		}
		if err := fn(ins); err != nil {
			return err
		}
		pc = next
	}
	return nil
}

func align4(pos int) int {
	return (pos + 3) &^ 3
}
