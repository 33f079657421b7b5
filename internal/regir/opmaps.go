package regir

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/zwasm/zwasm/internal/leb128"
	"github.com/zwasm/zwasm/internal/wasm"
)

func readI64Leb(r *bytes.Reader) (int64, uint64, error) { return leb128.DecodeInt64(r) }

func readRawU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readRawU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

var loadOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Load: true, wasm.OpcodeI64Load: true, wasm.OpcodeF32Load: true, wasm.OpcodeF64Load: true,
	wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true, wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true, wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
}

var storeOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Store: true, wasm.OpcodeI64Store: true, wasm.OpcodeF32Store: true, wasm.OpcodeF64Store: true,
	wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true,
	wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true, wasm.OpcodeI64Store32: true,
}

var i32BinaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Eq: true, wasm.OpcodeI32Ne: true,
	wasm.OpcodeI32LtS: true, wasm.OpcodeI32LtU: true, wasm.OpcodeI32GtS: true, wasm.OpcodeI32GtU: true,
	wasm.OpcodeI32LeS: true, wasm.OpcodeI32LeU: true, wasm.OpcodeI32GeS: true, wasm.OpcodeI32GeU: true,
	wasm.OpcodeI32Add: true, wasm.OpcodeI32Sub: true, wasm.OpcodeI32Mul: true,
	wasm.OpcodeI32DivS: true, wasm.OpcodeI32DivU: true, wasm.OpcodeI32RemS: true, wasm.OpcodeI32RemU: true,
	wasm.OpcodeI32And: true, wasm.OpcodeI32Or: true, wasm.OpcodeI32Xor: true,
	wasm.OpcodeI32Shl: true, wasm.OpcodeI32ShrS: true, wasm.OpcodeI32ShrU: true,
	wasm.OpcodeI32Rotl: true, wasm.OpcodeI32Rotr: true,
}

var i64BinaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI64Eq: true, wasm.OpcodeI64Ne: true,
	wasm.OpcodeI64LtS: true, wasm.OpcodeI64LtU: true, wasm.OpcodeI64GtS: true, wasm.OpcodeI64GtU: true,
	wasm.OpcodeI64LeS: true, wasm.OpcodeI64LeU: true, wasm.OpcodeI64GeS: true, wasm.OpcodeI64GeU: true,
	wasm.OpcodeI64Add: true, wasm.OpcodeI64Sub: true, wasm.OpcodeI64Mul: true,
	wasm.OpcodeI64DivS: true, wasm.OpcodeI64DivU: true, wasm.OpcodeI64RemS: true, wasm.OpcodeI64RemU: true,
	wasm.OpcodeI64And: true, wasm.OpcodeI64Or: true, wasm.OpcodeI64Xor: true,
	wasm.OpcodeI64Shl: true, wasm.OpcodeI64ShrS: true, wasm.OpcodeI64ShrU: true,
	wasm.OpcodeI64Rotl: true, wasm.OpcodeI64Rotr: true,
}

// f32BinaryOpcodes/f64BinaryOpcodes cover both the arithmetic and comparison
// opcodes for their type: every one of them pops two operands of that type
// and pushes a single result (f32/f64 for arithmetic, i32 for comparisons),
// the same two-register-in-one-out RegInstr shape regardless of result type.
var f32BinaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeF32Eq: true, wasm.OpcodeF32Ne: true, wasm.OpcodeF32Lt: true,
	wasm.OpcodeF32Gt: true, wasm.OpcodeF32Le: true, wasm.OpcodeF32Ge: true,
	wasm.OpcodeF32Add: true, wasm.OpcodeF32Sub: true, wasm.OpcodeF32Mul: true, wasm.OpcodeF32Div: true,
	wasm.OpcodeF32Min: true, wasm.OpcodeF32Max: true, wasm.OpcodeF32Copysign: true,
}

var f64BinaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeF64Eq: true, wasm.OpcodeF64Ne: true, wasm.OpcodeF64Lt: true,
	wasm.OpcodeF64Gt: true, wasm.OpcodeF64Le: true, wasm.OpcodeF64Ge: true,
	wasm.OpcodeF64Add: true, wasm.OpcodeF64Sub: true, wasm.OpcodeF64Mul: true, wasm.OpcodeF64Div: true,
	wasm.OpcodeF64Min: true, wasm.OpcodeF64Max: true, wasm.OpcodeF64Copysign: true,
}

// unaryNumericOpcodes covers every opcode with a single register operand and
// a single register result that isn't already special-cased in step (i32.eqz
// and ref.is_null are): i64.eqz, the f32/f64 unary float ops, every numeric
// conversion, the sign-extension ops, and saturating truncation.
var unaryNumericOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI64Eqz: true,

	wasm.OpcodeF32Abs: true, wasm.OpcodeF32Neg: true, wasm.OpcodeF32Ceil: true, wasm.OpcodeF32Floor: true,
	wasm.OpcodeF32Trunc: true, wasm.OpcodeF32Nearest: true, wasm.OpcodeF32Sqrt: true,
	wasm.OpcodeF64Abs: true, wasm.OpcodeF64Neg: true, wasm.OpcodeF64Ceil: true, wasm.OpcodeF64Floor: true,
	wasm.OpcodeF64Trunc: true, wasm.OpcodeF64Nearest: true, wasm.OpcodeF64Sqrt: true,

	wasm.OpcodeI32WrapI64: true,
	wasm.OpcodeI32TruncF32S: true, wasm.OpcodeI32TruncF32U: true, wasm.OpcodeI32TruncF64S: true, wasm.OpcodeI32TruncF64U: true,
	wasm.OpcodeI64ExtendI32S: true, wasm.OpcodeI64ExtendI32U: true,
	wasm.OpcodeI64TruncF32S: true, wasm.OpcodeI64TruncF32U: true, wasm.OpcodeI64TruncF64S: true, wasm.OpcodeI64TruncF64U: true,
	wasm.OpcodeF32ConvertI32S: true, wasm.OpcodeF32ConvertI32U: true, wasm.OpcodeF32ConvertI64S: true, wasm.OpcodeF32ConvertI64U: true,
	wasm.OpcodeF32DemoteF64: true,
	wasm.OpcodeF64ConvertI32S: true, wasm.OpcodeF64ConvertI32U: true, wasm.OpcodeF64ConvertI64S: true, wasm.OpcodeF64ConvertI64U: true,
	wasm.OpcodeF64PromoteF32: true,
	wasm.OpcodeI32ReinterpretF32: true, wasm.OpcodeI64ReinterpretF64: true,
	wasm.OpcodeF32ReinterpretI32: true, wasm.OpcodeF64ReinterpretI64: true,

	wasm.OpcodeI32Extend8S: true, wasm.OpcodeI32Extend16S: true,
	wasm.OpcodeI64Extend8S: true, wasm.OpcodeI64Extend16S: true, wasm.OpcodeI64Extend32S: true,

	wasm.OpcodeI32TruncSatF32S: true, wasm.OpcodeI32TruncSatF32U: true,
	wasm.OpcodeI32TruncSatF64S: true, wasm.OpcodeI32TruncSatF64U: true,
	wasm.OpcodeI64TruncSatF32S: true, wasm.OpcodeI64TruncSatF32U: true,
	wasm.OpcodeI64TruncSatF64S: true, wasm.OpcodeI64TruncSatF64U: true,
}

func isLoadOpcode(op wasm.Opcode) bool  { return loadOpcodes[op] }
func isStoreOpcode(op wasm.Opcode) bool { return storeOpcodes[op] }
func isI32BinaryOpcode(op wasm.Opcode) bool {
	return i32BinaryOpcodes[op]
}
func isI64BinaryOpcode(op wasm.Opcode) bool    { return i64BinaryOpcodes[op] }
func isF32BinaryOpcode(op wasm.Opcode) bool    { return f32BinaryOpcodes[op] }
func isF64BinaryOpcode(op wasm.Opcode) bool    { return f64BinaryOpcodes[op] }
func isUnaryNumericOpcode(op wasm.Opcode) bool { return unaryNumericOpcodes[op] }
