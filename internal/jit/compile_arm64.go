//go:build arm64

package jit

import (
	"fmt"
	"math"

	"github.com/zwasm/zwasm/internal/asm"
	"github.com/zwasm/zwasm/internal/asm/arm64"
	"github.com/zwasm/zwasm/internal/platform"
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasm"
)

// nativeAssembler is the slice of the golang-asm-backed arm64 assembler this
// backend actually drives. arm64.NewAssembler returns asm.AssemblerBase; the
// concrete implementation behind it also satisfies this wider method set (see
// golang_asm.go), so compile() asserts to it once up front.
type nativeAssembler interface {
	asm.AssemblerBase
	CompileTwoRegistersToRegister(instruction asm.Instruction, src1, src2, dst asm.Register)
	CompileTwoRegistersToNone(instruction asm.Instruction, src1, src2 asm.Register)
	CompileRegisterAndConstSourceToNone(instruction asm.Instruction, src asm.Register, srcConst asm.ConstantValue)
	CompileConditionalRegisterSet(cond asm.ConditionalRegisterState, dstReg asm.Register)
}

// Scratch register assignment. x0-x2 are the native entry's argument
// registers (regs base, memory base, memory length — see trampoline_arm64.s)
// and are never reused as scratch; x13 is reserved for the assembler's own
// large-constant/large-offset expansion (see golang_asm.go). Every other
// virtual register lives in the regs slice addressed through x0; nothing in
// this tier's eligible subset keeps a value cached in a physical register
// across instructions (see DESIGN.md).
const (
	tmp1 = arm64.REG_R9
	tmp2 = arm64.REG_R10
	tmp3 = arm64.REG_R11
	tmp4 = arm64.REG_R12
	tmp5 = arm64.REG_R14
	asmTempReg = arm64.REG_R13
)

// eligibleOps is the allow-list of regir.Op values tryCompileNative can turn
// into native code (DESIGN.md's "integer core" narrowing). Any function
// using an opcode outside this set falls back to the interpreter.
var eligibleOps = map[regir.Op]bool{
	// regir.OpNop is deliberately absent: it only ever trails OpCall/
	// OpCallIndirect as a packed-argument data word, and calls are excluded
	// below, so it can never legitimately appear in an eligible function.
	regir.OpMove: true, regir.OpConstI64: true,
	regir.OpJump: true, regir.OpBrIfZ: true, regir.OpBrIfNZ: true,
	regir.OpReturn: true, regir.OpUnreachable: true,
	wasm.OpcodeNop: true, wasm.OpcodeI32Const: true, wasm.OpcodeI32Eqz: true,

	wasm.OpcodeI32Eq: true, wasm.OpcodeI32Ne: true,
	wasm.OpcodeI32LtS: true, wasm.OpcodeI32LtU: true, wasm.OpcodeI32GtS: true, wasm.OpcodeI32GtU: true,
	wasm.OpcodeI32LeS: true, wasm.OpcodeI32LeU: true, wasm.OpcodeI32GeS: true, wasm.OpcodeI32GeU: true,
	wasm.OpcodeI32Add: true, wasm.OpcodeI32Sub: true, wasm.OpcodeI32Mul: true,
	wasm.OpcodeI32DivS: true, wasm.OpcodeI32DivU: true, wasm.OpcodeI32RemS: true, wasm.OpcodeI32RemU: true,
	wasm.OpcodeI32And: true, wasm.OpcodeI32Or: true, wasm.OpcodeI32Xor: true,
	wasm.OpcodeI32Shl: true, wasm.OpcodeI32ShrS: true, wasm.OpcodeI32ShrU: true,
	wasm.OpcodeI32Rotl: true, wasm.OpcodeI32Rotr: true,

	wasm.OpcodeI64Add: true, wasm.OpcodeI64Sub: true, wasm.OpcodeI64Mul: true,

	wasm.OpcodeI32Load: true, wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true,
	wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load: true, wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true,
	wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
	wasm.OpcodeI32Store: true, wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true,
	wasm.OpcodeI64Store: true, wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true, wasm.OpcodeI64Store32: true,

	regir.OpAddImmI32: true, regir.OpSubImmI32: true, regir.OpMulImmI32: true,
	regir.OpAndImmI32: true, regir.OpOrImmI32: true, regir.OpXorImmI32: true,
	regir.OpEqImmI32: true, regir.OpNeImmI32: true,
	regir.OpLtSImmI32: true, regir.OpLtUImmI32: true, regir.OpGtSImmI32: true, regir.OpGtUImmI32: true,
	regir.OpLeSImmI32: true, regir.OpGeSImmI32: true,
}

// fusedRealOps mirrors internal/interpreter/binops.go's own table: the real
// i32 opcode each fused 0xE0.. superinstruction stands in for, in regir.go's
// declaration order.
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

// tryCompileNative lowers rf to ARM64 machine code, or reports it can't.
func tryCompileNative(rf *regir.RegFunc) (*Code, bool) {
	if len(rf.Code) == 0 {
		return nil, false
	}
	hasMemory := false
	for _, instr := range rf.Code {
		if !eligibleOps[instr.Op] {
			return nil, false
		}
		if isLoadOp(instr.Op) || isStoreOp(instr.Op) {
			hasMemory = true
		}
	}

	c := &codegen{rf: rf, hasMemory: hasMemory}
	code, err := c.compile()
	if err != nil {
		return nil, false
	}

	seg, err := platform.MmapCodeSegment(code)
	if err != nil {
		return nil, false
	}
	if err := platform.RemapCodeSegment(seg); err != nil {
		return nil, false
	}
	return &Code{seg: seg, rf: rf, hasMemory: hasMemory}, true
}

type branchFixup struct {
	node   asm.Node
	target int
}

type codegen struct {
	rf        *regir.RegFunc
	hasMemory bool
	a         nativeAssembler
	nodeAt    []asm.Node
	fixups    []branchFixup
}

func (c *codegen) compile() ([]byte, error) {
	base, err := arm64.NewAssembler(asmTempReg)
	if err != nil {
		return nil, err
	}
	a, ok := base.(nativeAssembler)
	if !ok {
		return nil, fmt.Errorf("jit: assembler backend missing required arm64 methods")
	}
	c.a = a
	c.nodeAt = make([]asm.Node, len(c.rf.Code)+1)

	for pc, instr := range c.rf.Code {
		c.nodeAt[pc] = c.a.CompileStandAlone(arm64.NOP)
		if err := c.emit(pc, instr); err != nil {
			return nil, err
		}
	}
	// Sentinel anchor for a branch targeting the function's end.
	c.nodeAt[len(c.rf.Code)] = c.a.CompileStandAlone(arm64.NOP)
	c.emitTrapInline(wasm.ErrTrap.TrapOrdinal())

	for _, f := range c.fixups {
		f.node.AssignJumpTarget(c.nodeAt[f.target])
	}
	return c.a.Assemble()
}

func regOffset(vreg uint8) asm.ConstantValue { return asm.ConstantValue(vreg) * 8 }

func (c *codegen) loadReg(vreg uint8, dst asm.Register) {
	c.a.CompileMemoryToRegister(arm64.MOVD, arm64.REG_R0, regOffset(vreg), dst)
}

func (c *codegen) storeReg(vreg uint8, src asm.Register) {
	c.a.CompileRegisterToMemory(arm64.MOVD, src, arm64.REG_R0, regOffset(vreg))
}

// emitTrapInline sets the return ordinal and returns; used both for the
// fall-off-the-end sentinel and for every trap condition, all of which are
// control-flow terminal so clobbering x0 (shared with the regs-base
// argument) here is safe.
func (c *codegen) emitTrapInline(ordinal uint64) {
	c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(ordinal), arm64.REG_R0)
	c.a.CompileStandAlone(arm64.RET)
}

func (c *codegen) emit(pc int, instr regir.RegInstr) error {
	switch instr.Op {
	case wasm.OpcodeNop:
		return nil
	case regir.OpUnreachable:
		c.emitTrapInline(wasm.ErrUnreachable.TrapOrdinal())
		return nil
	case regir.OpReturn:
		c.emitTrapInline(0)
		return nil

	case regir.OpMove:
		c.loadReg(instr.Rs1, tmp1)
		c.storeReg(instr.Rd, tmp1)
		return nil
	case wasm.OpcodeI32Const:
		c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(instr.Operand), tmp1)
		c.storeReg(instr.Rd, tmp1)
		return nil
	case regir.OpConstI64:
		c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(c.rf.Pool64[instr.Operand]), tmp1)
		c.storeReg(instr.Rd, tmp1)
		return nil

	case regir.OpJump:
		node := c.a.CompileJump(arm64.B)
		c.fixups = append(c.fixups, branchFixup{node, int(instr.Operand)})
		return nil
	case regir.OpBrIfZ, regir.OpBrIfNZ:
		c.loadReg(instr.Rs1, tmp1)
		c.a.CompileRegisterAndConstSourceToNone(arm64.CMP, tmp1, 0)
		cond := arm64.BNE
		if instr.Op == regir.OpBrIfZ {
			cond = arm64.BEQ
		}
		node := c.a.CompileJump(cond)
		c.fixups = append(c.fixups, branchFixup{node, int(instr.Operand)})
		return nil

	case wasm.OpcodeI32Eqz:
		c.loadReg(instr.Rs1, tmp1)
		c.a.CompileRegisterAndConstSourceToNone(arm64.CMPW, tmp1, 0)
		c.a.CompileConditionalRegisterSet(arm64.COND_EQ, tmp3)
		c.storeReg(instr.Rd, tmp3)
		return nil
	}

	if real, ok := fusedRealOpcode(instr.Op); ok {
		c.loadReg(instr.Rs1, tmp1)
		c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(int64(int32(instr.Operand))), tmp2)
		return c.emitI32Binary(real, instr.Rd, tmp1, tmp2)
	}
	if isI32BinaryOp(instr.Op) {
		c.loadReg(instr.Rs1, tmp1)
		c.loadReg(instr.Rs2(), tmp2)
		return c.emitI32Binary(instr.Op, instr.Rd, tmp1, tmp2)
	}
	if isI64BinaryOp(instr.Op) {
		c.loadReg(instr.Rs1, tmp1)
		c.loadReg(instr.Rs2(), tmp2)
		return c.emitI64Binary(instr.Op, instr.Rd, tmp1, tmp2)
	}
	if isLoadOp(instr.Op) {
		return c.emitLoad(instr)
	}
	if isStoreOp(instr.Op) {
		return c.emitStore(instr)
	}
	return nil
}

// emitI32Binary computes op(a, b) into dst register vreg, with a and b
// already loaded into physical registers ra/rb.
func (c *codegen) emitI32Binary(op wasm.Opcode, dst uint8, ra, rb asm.Register) error {
	switch op {
	case wasm.OpcodeI32Add:
		c.a.CompileTwoRegistersToRegister(arm64.ADDW, ra, rb, tmp3)
	case wasm.OpcodeI32Sub:
		c.a.CompileTwoRegistersToRegister(arm64.SUBW, ra, rb, tmp3)
	case wasm.OpcodeI32Mul:
		c.a.CompileTwoRegistersToRegister(arm64.MULW, ra, rb, tmp3)
	case wasm.OpcodeI32And:
		c.a.CompileTwoRegistersToRegister(arm64.ANDW, ra, rb, tmp3)
	case wasm.OpcodeI32Or:
		c.a.CompileTwoRegistersToRegister(arm64.ORRW, ra, rb, tmp3)
	case wasm.OpcodeI32Xor:
		c.a.CompileTwoRegistersToRegister(arm64.EORW, ra, rb, tmp3)
	case wasm.OpcodeI32Shl:
		c.a.CompileTwoRegistersToRegister(arm64.LSLW, ra, rb, tmp3)
	case wasm.OpcodeI32ShrS:
		c.a.CompileTwoRegistersToRegister(arm64.ASRW, ra, rb, tmp3)
	case wasm.OpcodeI32ShrU:
		c.a.CompileTwoRegistersToRegister(arm64.LSRW, ra, rb, tmp3)
	case wasm.OpcodeI32Rotr:
		c.a.CompileTwoRegistersToRegister(arm64.RORW, ra, rb, tmp3)
	case wasm.OpcodeI32Rotl:
		c.a.CompileTwoRegistersToRegister(arm64.SUBW, arm64.REGZERO, rb, tmp4)
		c.a.CompileTwoRegistersToRegister(arm64.RORW, ra, tmp4, tmp3)
	case wasm.OpcodeI32DivS:
		c.emitDivZeroCheck(rb, true)
		c.emitOverflowCheck(ra, rb, true)
		c.a.CompileTwoRegistersToRegister(arm64.SDIVW, ra, rb, tmp3)
	case wasm.OpcodeI32DivU:
		c.emitDivZeroCheck(rb, true)
		c.a.CompileTwoRegistersToRegister(arm64.UDIVW, ra, rb, tmp3)
	case wasm.OpcodeI32RemS:
		c.emitDivZeroCheck(rb, true)
		c.emitRemS32(ra, rb)
	case wasm.OpcodeI32RemU:
		c.emitDivZeroCheck(rb, true)
		c.a.CompileTwoRegistersToRegister(arm64.UDIVW, ra, rb, tmp4)
		c.a.CompileTwoRegistersToRegister(arm64.MULW, tmp4, rb, tmp4)
		c.a.CompileTwoRegistersToRegister(arm64.SUBW, ra, tmp4, tmp3)
	case wasm.OpcodeI32Eq:
		c.emitCompare32(ra, rb, arm64.COND_EQ)
	case wasm.OpcodeI32Ne:
		c.emitCompare32(ra, rb, arm64.COND_NE)
	case wasm.OpcodeI32LtS:
		c.emitCompare32(ra, rb, arm64.COND_LT)
	case wasm.OpcodeI32LtU:
		c.emitCompare32(ra, rb, arm64.COND_LO)
	case wasm.OpcodeI32GtS:
		c.emitCompare32(ra, rb, arm64.COND_GT)
	case wasm.OpcodeI32GtU:
		c.emitCompare32(ra, rb, arm64.COND_HI)
	case wasm.OpcodeI32LeS:
		c.emitCompare32(ra, rb, arm64.COND_LE)
	case wasm.OpcodeI32LeU:
		c.emitCompare32(ra, rb, arm64.COND_LS)
	case wasm.OpcodeI32GeS:
		c.emitCompare32(ra, rb, arm64.COND_GE)
	case wasm.OpcodeI32GeU:
		c.emitCompare32(ra, rb, arm64.COND_HS)
	}
	c.storeReg(dst, tmp3)
	return nil
}

func (c *codegen) emitI64Binary(op wasm.Opcode, dst uint8, ra, rb asm.Register) error {
	switch op {
	case wasm.OpcodeI64Add:
		c.a.CompileTwoRegistersToRegister(arm64.ADD, ra, rb, tmp3)
	case wasm.OpcodeI64Sub:
		c.a.CompileTwoRegistersToRegister(arm64.SUB, ra, rb, tmp3)
	case wasm.OpcodeI64Mul:
		c.a.CompileTwoRegistersToRegister(arm64.MUL, ra, rb, tmp3)
	}
	c.storeReg(dst, tmp3)
	return nil
}

func (c *codegen) emitCompare32(ra, rb asm.Register, cond asm.ConditionalRegisterState) {
	c.a.CompileTwoRegistersToNone(arm64.CMPW, ra, rb)
	c.a.CompileConditionalRegisterSet(cond, tmp3)
}

// emitDivZeroCheck traps DivisionByZero when rb is zero.
func (c *codegen) emitDivZeroCheck(rb asm.Register, is32 bool) {
	cmp := arm64.CMP
	if is32 {
		cmp = arm64.CMPW
	}
	c.a.CompileRegisterAndConstSourceToNone(cmp, rb, 0)
	skip := c.a.CompileJump(arm64.BNE)
	c.emitTrapInline(wasm.ErrDivisionByZero.TrapOrdinal())
	after := c.a.CompileStandAlone(arm64.NOP)
	skip.AssignJumpTarget(after)
}

// emitOverflowCheck traps IntegerOverflow for MinInt32/-1 signed division.
func (c *codegen) emitOverflowCheck(ra, rb asm.Register, is32 bool) {
	c.a.CompileRegisterAndConstSourceToNone(arm64.CMPW, ra, asm.ConstantValue(int32(math.MinInt32)))
	skip1 := c.a.CompileJump(arm64.BNE)
	c.a.CompileRegisterAndConstSourceToNone(arm64.CMPW, rb, -1)
	skip2 := c.a.CompileJump(arm64.BNE)
	c.emitTrapInline(wasm.ErrIntegerOverflow.TrapOrdinal())
	after := c.a.CompileStandAlone(arm64.NOP)
	skip1.AssignJumpTarget(after)
	skip2.AssignJumpTarget(after)
}

// emitRemS32 computes a % b into tmp3, with MinInt32 % -1 defined as 0
// (binops.go's own rule — no overflow trap for remainder).
func (c *codegen) emitRemS32(ra, rb asm.Register) {
	c.a.CompileRegisterAndConstSourceToNone(arm64.CMPW, ra, asm.ConstantValue(int32(math.MinInt32)))
	notMin := c.a.CompileJump(arm64.BNE)
	c.a.CompileRegisterAndConstSourceToNone(arm64.CMPW, rb, -1)
	notNegOne := c.a.CompileJump(arm64.BNE)
	c.a.CompileConstToRegister(arm64.MOVD, 0, tmp3)
	done := c.a.CompileJump(arm64.B)

	computeAnchor := c.a.CompileStandAlone(arm64.NOP)
	notMin.AssignJumpTarget(computeAnchor)
	notNegOne.AssignJumpTarget(computeAnchor)
	c.a.CompileTwoRegistersToRegister(arm64.SDIVW, ra, rb, tmp4)
	c.a.CompileTwoRegistersToRegister(arm64.MULW, tmp4, rb, tmp5)
	c.a.CompileTwoRegistersToRegister(arm64.SUBW, ra, tmp5, tmp3)

	doneAnchor := c.a.CompileStandAlone(arm64.NOP)
	done.AssignJumpTarget(doneAnchor)
}

var loadAccess = map[wasm.Opcode]struct {
	instr asm.Instruction
	size  int64
}{
	wasm.OpcodeI32Load:     {arm64.MOVWU, 4},
	wasm.OpcodeI32Load8S:   {arm64.MOVB, 1},
	wasm.OpcodeI32Load8U:   {arm64.MOVBU, 1},
	wasm.OpcodeI32Load16S:  {arm64.MOVH, 2},
	wasm.OpcodeI32Load16U:  {arm64.MOVHU, 2},
	wasm.OpcodeI64Load:     {arm64.MOVD, 8},
	wasm.OpcodeI64Load8S:   {arm64.MOVB, 1},
	wasm.OpcodeI64Load8U:   {arm64.MOVBU, 1},
	wasm.OpcodeI64Load16S:  {arm64.MOVH, 2},
	wasm.OpcodeI64Load16U:  {arm64.MOVHU, 2},
	wasm.OpcodeI64Load32S:  {arm64.MOVW, 4},
	wasm.OpcodeI64Load32U:  {arm64.MOVWU, 4},
}

var storeAccess = map[wasm.Opcode]struct {
	instr asm.Instruction
	size  int64
}{
	wasm.OpcodeI32Store:   {arm64.MOVW, 4},
	wasm.OpcodeI32Store8:  {arm64.MOVB, 1},
	wasm.OpcodeI32Store16: {arm64.MOVH, 2},
	wasm.OpcodeI64Store:   {arm64.MOVD, 8},
	wasm.OpcodeI64Store8:  {arm64.MOVB, 1},
	wasm.OpcodeI64Store16: {arm64.MOVH, 2},
	wasm.OpcodeI64Store32: {arm64.MOVW, 4},
}

func isLoadOp(op wasm.Opcode) bool  { _, ok := loadAccess[op]; return ok }
func isStoreOp(op wasm.Opcode) bool { _, ok := storeAccess[op]; return ok }

func isI32BinaryOp(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32Eq, wasm.OpcodeI32Ne, wasm.OpcodeI32LtS, wasm.OpcodeI32LtU,
		wasm.OpcodeI32GtS, wasm.OpcodeI32GtU, wasm.OpcodeI32LeS, wasm.OpcodeI32LeU,
		wasm.OpcodeI32GeS, wasm.OpcodeI32GeU, wasm.OpcodeI32Add, wasm.OpcodeI32Sub,
		wasm.OpcodeI32Mul, wasm.OpcodeI32DivS, wasm.OpcodeI32DivU, wasm.OpcodeI32RemS,
		wasm.OpcodeI32RemU, wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr:
		return true
	}
	return false
}

func isI64BinaryOp(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
		return true
	}
	return false
}

// emitAddrCheck computes the zero-extended effective address from vreg+off
// into tmp1, trapping OutOfBoundsMemoryAccess if addr+size overflows 32 bits
// or exceeds the live memory length (x2).
func (c *codegen) emitAddrCheck(vreg uint8, off uint32, size int64) {
	c.loadReg(vreg, tmp1)
	c.a.CompileRegisterToRegister(arm64.MOVWU, tmp1, tmp1)
	c.a.CompileConstToRegister(arm64.ADD, asm.ConstantValue(off), tmp1)

	c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(math.MaxUint32), tmp2)
	c.a.CompileTwoRegistersToNone(arm64.CMP, tmp1, tmp2)
	oobHi := c.a.CompileJump(arm64.BHI)

	c.a.CompileConstToRegister(arm64.MOVD, asm.ConstantValue(size), tmp4)
	c.a.CompileTwoRegistersToRegister(arm64.ADD, tmp1, tmp4, tmp4)
	c.a.CompileTwoRegistersToNone(arm64.CMP, tmp4, arm64.REG_R2)
	oobLen := c.a.CompileJump(arm64.BHI)

	// Both failure branches fall through to a shared inline OOB trap; the
	// success path continues past both jumps untaken.
	ok := c.a.CompileJump(arm64.B)
	oobStub := c.a.CompileStandAlone(arm64.NOP)
	oobHi.AssignJumpTarget(oobStub)
	oobLen.AssignJumpTarget(oobStub)
	c.emitTrapInline(wasm.ErrOutOfBoundsMemoryAccess.TrapOrdinal())
	cont := c.a.CompileStandAlone(arm64.NOP)
	ok.AssignJumpTarget(cont)

	c.a.CompileTwoRegistersToRegister(arm64.ADD, arm64.REG_R1, tmp1, tmp1)
}

func (c *codegen) emitLoad(instr regir.RegInstr) error {
	acc := loadAccess[instr.Op]
	c.emitAddrCheck(instr.Rs1, instr.Operand, acc.size)
	c.a.CompileMemoryToRegister(acc.instr, tmp1, 0, tmp3)
	c.storeReg(instr.Rd, tmp3)
	return nil
}

func (c *codegen) emitStore(instr regir.RegInstr) error {
	acc := storeAccess[instr.Op]
	c.loadReg(instr.Rd, tmp3) // stores repurpose Rd as the value register
	c.emitAddrCheck(instr.Rs1, instr.Operand, acc.size)
	c.a.CompileRegisterToMemory(acc.instr, tmp3, tmp1, 0)
	return nil
}
