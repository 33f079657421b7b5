// Package regir is the register-based intermediate representation that
// Wasm function bodies are lowered to after validation (spec.md §3 RegInstr,
// §4.3). Both the interpreter (internal/interpreter) and the JIT
// (internal/jit) consume RegFunc; neither walks raw Wasm bytecode directly.
package regir

import "github.com/zwasm/zwasm/internal/wasm"

// Op is a RegIR instruction opcode. Opcodes shared with a one-to-one Wasm
// instruction (numeric ops, loads/stores, bulk-memory ops) reuse the
// underlying wasm.Opcode numeric value directly, so e.g. an i32.add
// RegInstr's Op equals wasm.OpcodeI32Add — there is no separate renumbering
// table to keep in sync with the decoder. Instructions that only exist in
// RegIR (register moves, resolved branches, call argument data words) live
// in a disjoint range starting at opBase so they can never collide with a
// real Wasm opcode or its 0xfc-prefixed extension (which tops out under
// wasm.OpcodeSIMDPrefixBase+0x100).
type Op = wasm.Opcode

const opBase Op = 0x400

const (
	// OpMove copies Rs1 into Rd. Emitted to materialize a local before it is
	// overwritten by local.set/local.tee while an earlier alias of it is
	// still live on the operand stack, and to place block/loop/if results
	// into their frame's fixed result registers.
	OpMove Op = opBase + iota
	// OpConstI64 loads Pool[Operand] into Rd. Used for i64.const/f64.const,
	// whose 64-bit payload doesn't fit in the 32-bit Operand field.
	OpConstI64
	// OpJump is an unconditional branch to the absolute PC in Operand.
	OpJump
	// OpBrIfZ branches to the absolute PC in Operand when Rs1 is zero. `if`
	// lowers to it to jump to its else arm or end; br_if lowers to OpBrIfNZ
	// (see lower.go and step.go).
	OpBrIfZ
	// OpBrIfNZ branches to the absolute PC in Operand when Rs1 is nonzero.
	OpBrIfNZ
	// OpBrTable reads Rs1 as an index into the jump table starting at
	// Operand in Pool (one absolute PC per uint64 entry, last entry is the
	// default target).
	OpBrTable
	// OpReturn ends the function; the Rd..Rd+n-1 contiguous registers
	// (n = number of function results) hold the return values, copied there
	// by OpMove instructions immediately preceding it.
	OpReturn
	// OpCall invokes function index Operand; Rd is the base of the
	// contiguous result registers, Rs1 is the first argument register, and
	// any further argument registers follow in trailing OpNop data words.
	OpCall
	// OpCallIndirect invokes a function pulled from table TableIdx (low 16
	// bits of Operand) against expected type TypeIdx (high 16 bits),
	// checking the table element's signature at runtime; Rs1 is the element
	// index operand register, and every argument register travels in
	// trailing OpNop data words.
	OpCallIndirect
	// OpNop is the "data word" sentinel: a RegInstr immediately following
	// OpCall/OpCallIndirect that packs up to 4 argument-register indices
	// (Rd, Rs1 and the two low bytes of Operand) for arguments the primary
	// instruction does not carry.
	OpNop
	// OpUnreachable traps immediately (Wasm's `unreachable` instruction).
	OpUnreachable
	// OpSelect picks Rs1 or Rs2 (low byte of Operand) into Rd based on the
	// zero-ness of the condition register packed into the high byte of
	// Operand.
	OpSelect
)

// Fused superinstructions (spec.md §4.3 "Superinstructions"), occupying the
// reserved 0xE0..0xEF range so they never collide with a real Wasm opcode
// byte (core single-byte opcodes defined in internal/wasm/opcodes.go stop at
// 0xd2, ref.func). Each takes an immediate folded into Operand and a single local
// register in Rs1, producing a fresh temp in Rd.
const (
	OpAddImmI32 Op = 0xE0 + iota
	OpSubImmI32
	OpMulImmI32
	OpAndImmI32
	OpOrImmI32
	OpXorImmI32
	OpEqImmI32
	OpNeImmI32
	OpLtSImmI32
	OpLtUImmI32
	OpGtSImmI32
	OpGtUImmI32
	OpLeSImmI32
	OpGeSImmI32
)

// RegInstr is the 64-bit RegIR instruction word (spec.md §3): a 16-bit
// opcode, two 8-bit virtual-register operands, and a 32-bit operand field
// that doubles as an immediate, a second source register (its low byte), a
// branch target PC, or a type/function/table index.
type RegInstr struct {
	Op      Op
	Rd      uint8
	Rs1     uint8
	Operand uint32
}

// Rs2 returns the second source register packed into the low byte of
// Operand, for binary RegInstrs that read two registers (e.g. i32.add).
func (i RegInstr) Rs2() uint8 { return uint8(i.Operand) }

// WithRs2 returns a copy of i with Rs2 packed into the low byte of Operand,
// preserving any high bytes already set (e.g. a select's condition byte).
func (i RegInstr) WithRs2(rs2 uint8) RegInstr {
	i.Operand = (i.Operand &^ 0xff) | uint32(rs2)
	return i
}

// RegFunc is the lowered form of one Wasm function body (spec.md §3
// RegFunc). Every register index used in Code is < RegCount; every branch
// target Operand is a valid index into Code; the first LocalCount registers
// correspond 1:1 to the function's Wasm locals, parameters first.
type RegFunc struct {
	Code       []RegInstr
	Pool64     []uint64
	RegCount   uint8
	LocalCount uint8
	NumResults uint8
}
