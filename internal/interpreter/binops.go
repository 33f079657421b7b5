package interpreter

import (
	"math"
	"math/bits"

	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

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

var f32UnaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeF32Abs: true, wasm.OpcodeF32Neg: true, wasm.OpcodeF32Ceil: true, wasm.OpcodeF32Floor: true,
	wasm.OpcodeF32Trunc: true, wasm.OpcodeF32Nearest: true, wasm.OpcodeF32Sqrt: true,
}

var f64UnaryOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeF64Abs: true, wasm.OpcodeF64Neg: true, wasm.OpcodeF64Ceil: true, wasm.OpcodeF64Floor: true,
	wasm.OpcodeF64Trunc: true, wasm.OpcodeF64Nearest: true, wasm.OpcodeF64Sqrt: true,
}

var conversionOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32WrapI64:       true,
	wasm.OpcodeI32TruncF32S:     true,
	wasm.OpcodeI32TruncF32U:     true,
	wasm.OpcodeI32TruncF64S:     true,
	wasm.OpcodeI32TruncF64U:     true,
	wasm.OpcodeI64ExtendI32S:    true,
	wasm.OpcodeI64ExtendI32U:    true,
	wasm.OpcodeI64TruncF32S:     true,
	wasm.OpcodeI64TruncF32U:     true,
	wasm.OpcodeI64TruncF64S:     true,
	wasm.OpcodeI64TruncF64U:     true,
	wasm.OpcodeF32ConvertI32S:   true,
	wasm.OpcodeF32ConvertI32U:   true,
	wasm.OpcodeF32ConvertI64S:   true,
	wasm.OpcodeF32ConvertI64U:   true,
	wasm.OpcodeF32DemoteF64:     true,
	wasm.OpcodeF64ConvertI32S:   true,
	wasm.OpcodeF64ConvertI32U:   true,
	wasm.OpcodeF64ConvertI64S:   true,
	wasm.OpcodeF64ConvertI64U:   true,
	wasm.OpcodeF64PromoteF32:    true,
	wasm.OpcodeI32ReinterpretF32: true,
	wasm.OpcodeI64ReinterpretF64: true,
	wasm.OpcodeF32ReinterpretI32: true,
	wasm.OpcodeF64ReinterpretI64: true,
}

var signExtendOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Extend8S: true, wasm.OpcodeI32Extend16S: true,
	wasm.OpcodeI64Extend8S: true, wasm.OpcodeI64Extend16S: true, wasm.OpcodeI64Extend32S: true,
}

var satTruncOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32TruncSatF32S: true, wasm.OpcodeI32TruncSatF32U: true,
	wasm.OpcodeI32TruncSatF64S: true, wasm.OpcodeI32TruncSatF64U: true,
	wasm.OpcodeI64TruncSatF32S: true, wasm.OpcodeI64TruncSatF32U: true,
	wasm.OpcodeI64TruncSatF64S: true, wasm.OpcodeI64TruncSatF64U: true,
}

func isI32BinaryOpcode(op wasm.Opcode) bool  { return i32BinaryOpcodes[op] }
func isI64BinaryOpcode(op wasm.Opcode) bool  { return i64BinaryOpcodes[op] }
func isF32BinaryOpcode(op wasm.Opcode) bool  { return f32BinaryOpcodes[op] }
func isF64BinaryOpcode(op wasm.Opcode) bool  { return f64BinaryOpcodes[op] }
func isF32UnaryOpcode(op wasm.Opcode) bool   { return f32UnaryOpcodes[op] }
func isF64UnaryOpcode(op wasm.Opcode) bool   { return f64UnaryOpcodes[op] }
func isConversionOpcode(op wasm.Opcode) bool { return conversionOpcodes[op] }
func isSignExtendOpcode(op wasm.Opcode) bool { return signExtendOpcodes[op] }
func isSatTruncOpcode(op wasm.Opcode) bool   { return satTruncOpcodes[op] }

// fusedRealOpcode reverses regir's 0xE0-0xED immediate-fusion opcode range
// back to the real i32 binary opcode it stands in for (see internal/regir's
// fuseImmTable), in the exact declaration order regir.go lists the fused
// constants.
var fusedRealOps = [...]wasm.Opcode{
	wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul,
	wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
	wasm.OpcodeI32Eq, wasm.OpcodeI32Ne,
	wasm.OpcodeI32LtS, wasm.OpcodeI32LtU, wasm.OpcodeI32GtS, wasm.OpcodeI32GtU,
	wasm.OpcodeI32LeS, wasm.OpcodeI32GeS,
}

func fusedRealOpcode(op regir.Op) (wasm.Opcode, bool) {
	idx := int(op) - int(regir.OpAddImmI32)
	if idx < 0 || idx >= len(fusedRealOps) {
		return 0, false
	}
	return fusedRealOps[idx], true
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// evalI32Binary computes a two's-complement i32 binary opcode over a and b,
// both already sign-extended from the register's low 32 bits, returning the
// u64-zero-extended result (arithmetic) or a 0/1 (comparisons) the way
// LinearMemory's own accessors keep the wider register word canonical.
func evalI32Binary(op wasm.Opcode, a, b int32) (uint64, *wasm.WasmError) {
	ua, ub := uint32(a), uint32(b)
	switch op {
	case wasm.OpcodeI32Add:
		return uint64(ua + ub), nil
	case wasm.OpcodeI32Sub:
		return uint64(ua - ub), nil
	case wasm.OpcodeI32Mul:
		return uint64(ua * ub), nil
	case wasm.OpcodeI32DivS:
		if b == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		if a == math.MinInt32 && b == -1 {
			return 0, wasm.Trap(wasm.ErrIntegerOverflow)
		}
		return uint64(uint32(a / b)), nil
	case wasm.OpcodeI32DivU:
		if ub == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		return uint64(ua / ub), nil
	case wasm.OpcodeI32RemS:
		if b == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		if a == math.MinInt32 && b == -1 {
			return 0, nil
		}
		return uint64(uint32(a % b)), nil
	case wasm.OpcodeI32RemU:
		if ub == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		return uint64(ua % ub), nil
	case wasm.OpcodeI32And:
		return uint64(ua & ub), nil
	case wasm.OpcodeI32Or:
		return uint64(ua | ub), nil
	case wasm.OpcodeI32Xor:
		return uint64(ua ^ ub), nil
	case wasm.OpcodeI32Shl:
		return uint64(ua << (ub & 31)), nil
	case wasm.OpcodeI32ShrS:
		return uint64(uint32(a >> (ub & 31))), nil
	case wasm.OpcodeI32ShrU:
		return uint64(ua >> (ub & 31)), nil
	case wasm.OpcodeI32Rotl:
		return uint64(bits.RotateLeft32(ua, int(ub&31))), nil
	case wasm.OpcodeI32Rotr:
		return uint64(bits.RotateLeft32(ua, -int(ub&31))), nil
	case wasm.OpcodeI32Eq:
		return boolU64(a == b), nil
	case wasm.OpcodeI32Ne:
		return boolU64(a != b), nil
	case wasm.OpcodeI32LtS:
		return boolU64(a < b), nil
	case wasm.OpcodeI32LtU:
		return boolU64(ua < ub), nil
	case wasm.OpcodeI32GtS:
		return boolU64(a > b), nil
	case wasm.OpcodeI32GtU:
		return boolU64(ua > ub), nil
	case wasm.OpcodeI32LeS:
		return boolU64(a <= b), nil
	case wasm.OpcodeI32LeU:
		return boolU64(ua <= ub), nil
	case wasm.OpcodeI32GeS:
		return boolU64(a >= b), nil
	case wasm.OpcodeI32GeU:
		return boolU64(ua >= ub), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

func evalI64Binary(op wasm.Opcode, a, b int64) (uint64, *wasm.WasmError) {
	ua, ub := uint64(a), uint64(b)
	switch op {
	case wasm.OpcodeI64Add:
		return ua + ub, nil
	case wasm.OpcodeI64Sub:
		return ua - ub, nil
	case wasm.OpcodeI64Mul:
		return ua * ub, nil
	case wasm.OpcodeI64DivS:
		if b == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		if a == math.MinInt64 && b == -1 {
			return 0, wasm.Trap(wasm.ErrIntegerOverflow)
		}
		return uint64(a / b), nil
	case wasm.OpcodeI64DivU:
		if ub == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		return ua / ub, nil
	case wasm.OpcodeI64RemS:
		if b == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		if a == math.MinInt64 && b == -1 {
			return 0, nil
		}
		return uint64(a % b), nil
	case wasm.OpcodeI64RemU:
		if ub == 0 {
			return 0, wasm.Trap(wasm.ErrDivisionByZero)
		}
		return ua % ub, nil
	case wasm.OpcodeI64And:
		return ua & ub, nil
	case wasm.OpcodeI64Or:
		return ua | ub, nil
	case wasm.OpcodeI64Xor:
		return ua ^ ub, nil
	case wasm.OpcodeI64Shl:
		return ua << (ub & 63), nil
	case wasm.OpcodeI64ShrS:
		return uint64(a >> (ub & 63)), nil
	case wasm.OpcodeI64ShrU:
		return ua >> (ub & 63), nil
	case wasm.OpcodeI64Rotl:
		return bits.RotateLeft64(ua, int(ub&63)), nil
	case wasm.OpcodeI64Rotr:
		return bits.RotateLeft64(ua, -int(ub&63)), nil
	case wasm.OpcodeI64Eq:
		return boolU64(a == b), nil
	case wasm.OpcodeI64Ne:
		return boolU64(a != b), nil
	case wasm.OpcodeI64LtS:
		return boolU64(a < b), nil
	case wasm.OpcodeI64LtU:
		return boolU64(ua < ub), nil
	case wasm.OpcodeI64GtS:
		return boolU64(a > b), nil
	case wasm.OpcodeI64GtU:
		return boolU64(ua > ub), nil
	case wasm.OpcodeI64LeS:
		return boolU64(a <= b), nil
	case wasm.OpcodeI64LeU:
		return boolU64(ua <= ub), nil
	case wasm.OpcodeI64GeS:
		return boolU64(a >= b), nil
	case wasm.OpcodeI64GeU:
		return boolU64(ua >= ub), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

// evalF32Binary computes a f32 binary opcode over bit-pattern operands,
// returning a zero-extended bit pattern (arithmetic) or a 0/1 (comparisons),
// matching how F32Const already stores a register's low 32 bits.
func evalF32Binary(op wasm.Opcode, abits, bbits uint32) (uint64, *wasm.WasmError) {
	a, b := math.Float32frombits(abits), math.Float32frombits(bbits)
	switch op {
	case wasm.OpcodeF32Eq:
		return boolU64(a == b), nil
	case wasm.OpcodeF32Ne:
		return boolU64(a != b), nil
	case wasm.OpcodeF32Lt:
		return boolU64(a < b), nil
	case wasm.OpcodeF32Gt:
		return boolU64(a > b), nil
	case wasm.OpcodeF32Le:
		return boolU64(a <= b), nil
	case wasm.OpcodeF32Ge:
		return boolU64(a >= b), nil
	case wasm.OpcodeF32Add:
		return uint64(math.Float32bits(a + b)), nil
	case wasm.OpcodeF32Sub:
		return uint64(math.Float32bits(a - b)), nil
	case wasm.OpcodeF32Mul:
		return uint64(math.Float32bits(a * b)), nil
	case wasm.OpcodeF32Div:
		return uint64(math.Float32bits(a / b)), nil
	case wasm.OpcodeF32Min:
		return uint64(math.Float32bits(float32(math.Min(float64(a), float64(b))))), nil
	case wasm.OpcodeF32Max:
		return uint64(math.Float32bits(float32(math.Max(float64(a), float64(b))))), nil
	case wasm.OpcodeF32Copysign:
		return uint64(math.Float32bits(float32(math.Copysign(float64(a), float64(b))))), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

func evalF64Binary(op wasm.Opcode, abits, bbits uint64) (uint64, *wasm.WasmError) {
	a, b := math.Float64frombits(abits), math.Float64frombits(bbits)
	switch op {
	case wasm.OpcodeF64Eq:
		return boolU64(a == b), nil
	case wasm.OpcodeF64Ne:
		return boolU64(a != b), nil
	case wasm.OpcodeF64Lt:
		return boolU64(a < b), nil
	case wasm.OpcodeF64Gt:
		return boolU64(a > b), nil
	case wasm.OpcodeF64Le:
		return boolU64(a <= b), nil
	case wasm.OpcodeF64Ge:
		return boolU64(a >= b), nil
	case wasm.OpcodeF64Add:
		return math.Float64bits(a + b), nil
	case wasm.OpcodeF64Sub:
		return math.Float64bits(a - b), nil
	case wasm.OpcodeF64Mul:
		return math.Float64bits(a * b), nil
	case wasm.OpcodeF64Div:
		return math.Float64bits(a / b), nil
	case wasm.OpcodeF64Min:
		return math.Float64bits(math.Min(a, b)), nil
	case wasm.OpcodeF64Max:
		return math.Float64bits(math.Max(a, b)), nil
	case wasm.OpcodeF64Copysign:
		return math.Float64bits(math.Copysign(a, b)), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

func evalF32Unary(op wasm.Opcode, abits uint32) (uint64, *wasm.WasmError) {
	a := math.Float32frombits(abits)
	switch op {
	case wasm.OpcodeF32Abs:
		return uint64(math.Float32bits(float32(math.Abs(float64(a))))), nil
	case wasm.OpcodeF32Neg:
		return uint64(math.Float32bits(-a)), nil
	case wasm.OpcodeF32Ceil:
		return uint64(math.Float32bits(float32(math.Ceil(float64(a))))), nil
	case wasm.OpcodeF32Floor:
		return uint64(math.Float32bits(float32(math.Floor(float64(a))))), nil
	case wasm.OpcodeF32Trunc:
		return uint64(math.Float32bits(float32(math.Trunc(float64(a))))), nil
	case wasm.OpcodeF32Nearest:
		return uint64(math.Float32bits(float32(math.RoundToEven(float64(a))))), nil
	case wasm.OpcodeF32Sqrt:
		return uint64(math.Float32bits(float32(math.Sqrt(float64(a))))), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

func evalF64Unary(op wasm.Opcode, abits uint64) (uint64, *wasm.WasmError) {
	a := math.Float64frombits(abits)
	switch op {
	case wasm.OpcodeF64Abs:
		return math.Float64bits(math.Abs(a)), nil
	case wasm.OpcodeF64Neg:
		return math.Float64bits(-a), nil
	case wasm.OpcodeF64Ceil:
		return math.Float64bits(math.Ceil(a)), nil
	case wasm.OpcodeF64Floor:
		return math.Float64bits(math.Floor(a)), nil
	case wasm.OpcodeF64Trunc:
		return math.Float64bits(math.Trunc(a)), nil
	case wasm.OpcodeF64Nearest:
		return math.Float64bits(math.RoundToEven(a)), nil
	case wasm.OpcodeF64Sqrt:
		return math.Float64bits(math.Sqrt(a)), nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

// evalConversion implements every numeric-conversion opcode (spec.md §4.2):
// a single register in, a single register out, trapping conversions
// rejecting NaN/out-of-range inputs the way the non-saturating variants must.
func evalConversion(op wasm.Opcode, v uint64) (uint64, *wasm.WasmError) {
	switch op {
	case wasm.OpcodeI32WrapI64:
		return uint64(uint32(v)), nil
	case wasm.OpcodeI64ExtendI32S:
		return uint64(int64(int32(uint32(v)))), nil
	case wasm.OpcodeI64ExtendI32U:
		return uint64(uint32(v)), nil

	case wasm.OpcodeI32TruncF32S:
		return truncToInt(float64(math.Float32frombits(uint32(v))), -2147483648, 2147483647, false)
	case wasm.OpcodeI32TruncF32U:
		return truncToInt(float64(math.Float32frombits(uint32(v))), 0, 4294967295, true)
	case wasm.OpcodeI32TruncF64S:
		return truncToInt(math.Float64frombits(v), -2147483648, 2147483647, false)
	case wasm.OpcodeI32TruncF64U:
		return truncToInt(math.Float64frombits(v), 0, 4294967295, true)
	case wasm.OpcodeI64TruncF32S:
		return truncToInt64(float64(math.Float32frombits(uint32(v))), false)
	case wasm.OpcodeI64TruncF32U:
		return truncToInt64(float64(math.Float32frombits(uint32(v))), true)
	case wasm.OpcodeI64TruncF64S:
		return truncToInt64(math.Float64frombits(v), false)
	case wasm.OpcodeI64TruncF64U:
		return truncToInt64(math.Float64frombits(v), true)

	case wasm.OpcodeF32ConvertI32S:
		return uint64(math.Float32bits(float32(int32(uint32(v))))), nil
	case wasm.OpcodeF32ConvertI32U:
		return uint64(math.Float32bits(float32(uint32(v)))), nil
	case wasm.OpcodeF32ConvertI64S:
		return uint64(math.Float32bits(float32(int64(v)))), nil
	case wasm.OpcodeF32ConvertI64U:
		return uint64(math.Float32bits(float32(v))), nil
	case wasm.OpcodeF32DemoteF64:
		return uint64(math.Float32bits(float32(math.Float64frombits(v)))), nil
	case wasm.OpcodeF64ConvertI32S:
		return math.Float64bits(float64(int32(uint32(v)))), nil
	case wasm.OpcodeF64ConvertI32U:
		return math.Float64bits(float64(uint32(v))), nil
	case wasm.OpcodeF64ConvertI64S:
		return math.Float64bits(float64(int64(v))), nil
	case wasm.OpcodeF64ConvertI64U:
		return math.Float64bits(float64(v)), nil
	case wasm.OpcodeF64PromoteF32:
		return math.Float64bits(float64(math.Float32frombits(uint32(v)))), nil

	case wasm.OpcodeI32ReinterpretF32:
		return uint64(uint32(v)), nil
	case wasm.OpcodeI64ReinterpretF64:
		return v, nil
	case wasm.OpcodeF32ReinterpretI32:
		return uint64(uint32(v)), nil
	case wasm.OpcodeF64ReinterpretI64:
		return v, nil
	}
	return 0, wasm.Trap(wasm.ErrIllegalOpcode)
}

// truncToInt implements the trapping i32 truncation opcodes: NaN and
// out-of-range values trap rather than saturate (contrast evalSatTrunc).
func truncToInt(f float64, min, max float64, unsigned bool) (uint64, *wasm.WasmError) {
	if math.IsNaN(f) {
		return 0, wasm.Trap(wasm.ErrInvalidConversion)
	}
	t := math.Trunc(f)
	if t < min || t > max {
		return 0, wasm.Trap(wasm.ErrIntegerOverflow)
	}
	if unsigned {
		return uint64(uint32(t)), nil
	}
	return uint64(uint32(int32(t))), nil
}

func truncToInt64(f float64, unsigned bool) (uint64, *wasm.WasmError) {
	if math.IsNaN(f) {
		return 0, wasm.Trap(wasm.ErrInvalidConversion)
	}
	t := math.Trunc(f)
	if unsigned {
		if t < 0 || t >= 18446744073709551616.0 {
			return 0, wasm.Trap(wasm.ErrIntegerOverflow)
		}
		return uint64(t), nil
	}
	if t < -9223372036854775808.0 || t >= 9223372036854775808.0 {
		return 0, wasm.Trap(wasm.ErrIntegerOverflow)
	}
	return uint64(int64(t)), nil
}

// evalSignExtend implements the sign-extension proposal's narrow-then-widen
// opcodes (spec.md §4.2): each reads a low sub-width slice of the register
// and sign-extends it back out to the full i32/i64 width.
func evalSignExtend(op wasm.Opcode, v uint64) uint64 {
	switch op {
	case wasm.OpcodeI32Extend8S:
		return uint64(uint32(int32(int8(v))))
	case wasm.OpcodeI32Extend16S:
		return uint64(uint32(int32(int16(v))))
	case wasm.OpcodeI64Extend8S:
		return uint64(int64(int8(v)))
	case wasm.OpcodeI64Extend16S:
		return uint64(int64(int16(v)))
	case wasm.OpcodeI64Extend32S:
		return uint64(int64(int32(v)))
	}
	return v
}

// evalSatTrunc implements the saturating-truncation proposal's eight
// opcodes (spec.md §4.2): NaN saturates to 0, out-of-range saturates to the
// nearest representable bound, never trapping.
func evalSatTrunc(op wasm.Opcode, v uint64) uint64 {
	switch op {
	case wasm.OpcodeI32TruncSatF32S:
		return uint64(uint32(satI32(float64(math.Float32frombits(uint32(v))), false)))
	case wasm.OpcodeI32TruncSatF32U:
		return uint64(uint32(satI32(float64(math.Float32frombits(uint32(v))), true)))
	case wasm.OpcodeI32TruncSatF64S:
		return uint64(uint32(satI32(math.Float64frombits(v), false)))
	case wasm.OpcodeI32TruncSatF64U:
		return uint64(uint32(satI32(math.Float64frombits(v), true)))
	case wasm.OpcodeI64TruncSatF32S:
		return satI64(float64(math.Float32frombits(uint32(v))), false)
	case wasm.OpcodeI64TruncSatF32U:
		return satI64(float64(math.Float32frombits(uint32(v))), true)
	case wasm.OpcodeI64TruncSatF64S:
		return satI64(math.Float64frombits(v), false)
	case wasm.OpcodeI64TruncSatF64U:
		return satI64(math.Float64frombits(v), true)
	}
	return 0
}

func satI32(f float64, unsigned bool) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if unsigned {
		if t <= 0 {
			return 0
		}
		if t >= 4294967295 {
			return int32(uint32(4294967295))
		}
		return int32(uint32(t))
	}
	if t <= -2147483648 {
		return -2147483648
	}
	if t >= 2147483647 {
		return 2147483647
	}
	return int32(t)
}

func satI64(f float64, unsigned bool) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if unsigned {
		if t <= 0 {
			return 0
		}
		if t >= 18446744073709551615.0 {
			return math.MaxUint64
		}
		return uint64(t)
	}
	if t <= -9223372036854775808.0 {
		return uint64(int64(math.MinInt64))
	}
	if t >= 9223372036854775807.0 {
		return uint64(int64(math.MaxInt64))
	}
	return uint64(int64(t))
}
