package bytecode

import "fmt"

// ConstName resolves a constant-pool index to a short display name for
// disassembly. Callers (normally pkg/value, which owns the constant pool's
// element type) supply one so this package doesn't need to depend on the
// value model.
type ConstName func(idx int) (name string, ok bool)

// GlobalName resolves a builtin-table index to its name for disassembly of
// GETGBL/SETGBL. Built from the same table the solidifier's global-access
// validator checks against.
type GlobalName func(idx int) (name string, ok bool)

// Disassemble renders a single instruction as a human-readable line, e.g.
//
//	GETGBL   3  ; println
//	SEND     2, 1  ; "+"
//
// This is the "VM-provided formatter" spec §4.5 step 7 calls for: the
// prototype emitter embeds this text as a trailing comment next to each
// emitted bytecode word.
func Disassemble(instr Instruction, names ConstName, globals GlobalName) string {
	mnemonic := instr.Op.String()

	switch instr.Op {
	case OpSend, OpSuperSend:
		selIdx, argc := DecodeSend(instr.Operand)
		line := fmt.Sprintf("%-8s %d, %d", mnemonic, selIdx, argc)
		if names != nil {
			if n, ok := names(selIdx); ok {
				line += fmt.Sprintf("  ; %s", n)
			}
		}
		return line

	case OpLoadGlobal, OpStoreGlobal:
		line := fmt.Sprintf("%-8s %d", mnemonic, instr.Operand)
		if globals != nil {
			if n, ok := globals(instr.Operand); ok {
				line += fmt.Sprintf("  ; %s", n)
			}
		}
		return line

	case OpPush, OpNewObject, OpDefineClass:
		line := fmt.Sprintf("%-8s %d", mnemonic, instr.Operand)
		if names != nil {
			if n, ok := names(instr.Operand); ok {
				line += fmt.Sprintf("  ; %s", n)
			}
		}
		return line

	case OpMakeClosure:
		return fmt.Sprintf("%-8s %d         ; sub-proto", mnemonic, instr.Operand)

	case OpPop, OpDup, OpReturn, OpNonLocalReturn, OpPushSelf, OpPushNil, OpPushTrue, OpPushFalse:
		return mnemonic

	default:
		return fmt.Sprintf("%-8s %d", mnemonic, instr.Operand)
	}
}

// Encode packs an instruction into a single 32-bit word as
// [opcode:8][operand:24], the form the solidifier emits as the hex literal
// in `binstruction` arrays (spec §4.5 step 7). Operands wider than 24 bits
// are not representable in this target's instruction word and are a
// compiler bug, not a solidifier concern.
func Encode(instr Instruction) uint32 {
	return uint32(instr.Op)<<24 | (uint32(instr.Operand) & 0x00FFFFFF)
}
