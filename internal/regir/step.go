package regir

import "github.com/zwasm/zwasm/internal/wasm"

// fuseImmTable maps a binary i32 opcode to its immediate-operand fused form
// (spec.md §4.3: "local.get + i32.const + add/sub/compare"). Only entries
// here are eligible; everything else falls back to the three-address form.
var fuseImmTable = map[wasm.Opcode]Op{
	wasm.OpcodeI32Add:  OpAddImmI32,
	wasm.OpcodeI32Sub:  OpSubImmI32,
	wasm.OpcodeI32Mul:  OpMulImmI32,
	wasm.OpcodeI32And:  OpAndImmI32,
	wasm.OpcodeI32Or:   OpOrImmI32,
	wasm.OpcodeI32Xor:  OpXorImmI32,
	wasm.OpcodeI32Eq:   OpEqImmI32,
	wasm.OpcodeI32Ne:   OpNeImmI32,
	wasm.OpcodeI32LtS:  OpLtSImmI32,
	wasm.OpcodeI32LtU:  OpLtUImmI32,
	wasm.OpcodeI32GtS:  OpGtSImmI32,
	wasm.OpcodeI32GtU:  OpGtUImmI32,
	wasm.OpcodeI32LeS:  OpLeSImmI32,
	wasm.OpcodeI32GeS:  OpGeSImmI32,
}

func (l *lowerer) step(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeUnreachable:
		l.emit(RegInstr{Op: OpUnreachable})
		return nil
	case wasm.OpcodeNop:
		return nil

	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		bt, err := l.readBlockType()
		if err != nil {
			return err
		}
		var cond stackVal
		if op == wasm.OpcodeIf {
			cond = l.pop()
		}
		regs := l.allocRegs(len(bt))
		l.pushFrame(op, regs, len(bt), op == wasm.OpcodeLoop)
		if op == wasm.OpcodeIf {
			idx := l.emit(RegInstr{Op: OpBrIfZ, Rs1: cond.reg})
			l.topFrame().elsePatch = idx
		}
		return nil

	case wasm.OpcodeElse:
		f, err := l.popFrameKeepResults(wasm.OpcodeIf)
		if err != nil {
			return err
		}
		// jump over the else-arm once the if-arm falls through
		endJump := l.emit(RegInstr{Op: OpJump})
		if f.elsePatch >= 0 {
			l.code[f.elsePatch].Operand = uint32(l.pc())
		}
		nf := ctrlFrame{opcode: wasm.OpcodeElse, stackBase: f.stackBase, resultRegs: f.resultRegs, numResults: f.numResults, elsePatch: -1}
		nf.endPatches = append(f.endPatches, endJump)
		l.frames = append(l.frames, nf)
		return nil

	case wasm.OpcodeEnd:
		f := l.frames[len(l.frames)-1]
		l.frames = l.frames[:len(l.frames)-1]
		if f.opcode == outerFrame {
			if f.numResults > 0 {
				l.moveResultsInto(f.resultRegs)
			}
			l.emit(RegInstr{Op: OpReturn, Rd: firstOrZero(f.resultRegs)})
			return nil
		}
		if f.opcode == wasm.OpcodeIf && f.elsePatch >= 0 {
			// no else arm: the conditional jump lands right here
			l.code[f.elsePatch].Operand = uint32(l.pc())
		}
		if f.numResults > 0 {
			l.moveResultsInto(f.resultRegs)
		}
		endPC := l.pc()
		for _, idx := range f.endPatches {
			if idx < 0 {
				l.pool64[-(idx+1)] = uint64(endPC)
				continue
			}
			l.code[idx].Operand = uint32(endPC)
		}
		l.stack = l.stack[:f.stackBase]
		for _, r := range f.resultRegs {
			l.pushReg(r)
		}
		return nil

	case wasm.OpcodeBr:
		depth, err := l.readU32()
		if err != nil {
			return err
		}
		l.branchTo(l.frameAt(depth), 0)
		l.truncateToPolymorphic()
		return nil
	case wasm.OpcodeBrIf:
		depth, err := l.readU32()
		if err != nil {
			return err
		}
		l.branchTo(l.frameAt(depth), 1)
		return nil
	case wasm.OpcodeBrTable:
		return l.stepBrTable()

	case wasm.OpcodeReturn:
		outer := l.frames[0]
		if outer.numResults > 0 {
			l.moveResultsInto(outer.resultRegs)
		}
		l.emit(RegInstr{Op: OpReturn, Rd: firstOrZero(outer.resultRegs)})
		l.truncateToPolymorphic()
		return nil

	case wasm.OpcodeCall:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		typ := l.mod.TypeOfFunction(idx)
		return l.emitCall(idx, typ)
	case wasm.OpcodeReturnCall:
		// Tail calls are lowered as an ordinary call immediately followed by
		// a return of its results — this runtime has no non-growing-stack
		// TCO, so a long return_call chain still grows the Tier-2 call
		// stack.
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		typ := l.mod.TypeOfFunction(idx)
		if err := l.emitCall(idx, typ); err != nil {
			return err
		}
		return l.step(wasm.OpcodeReturn)
	case wasm.OpcodeReturnCallIndirect:
		typeIdx, err := l.readU32()
		if err != nil {
			return err
		}
		tableIdx, err := l.readU32()
		if err != nil {
			return err
		}
		elem := l.pop()
		typ := l.mod.TypeSection[typeIdx]
		nargs := len(typ.Params)
		args := make([]uint8, nargs)
		for i := nargs - 1; i >= 0; i-- {
			args[i] = l.pop().reg
		}
		rd := l.allocRegs(len(typ.Results))
		l.emit(RegInstr{Op: OpCallIndirect, Rs1: elem.reg, Rd: firstOrZero(rd), Operand: (typeIdx << 16) | (tableIdx & 0xffff)})
		l.emitArgDataAll(args)
		for _, r := range rd {
			l.pushReg(r)
		}
		return l.step(wasm.OpcodeReturn)

	case wasm.OpcodeCallIndirect:
		typeIdx, err := l.readU32()
		if err != nil {
			return err
		}
		tableIdx, err := l.readU32()
		if err != nil {
			return err
		}
		elem := l.pop()
		typ := l.mod.TypeSection[typeIdx]
		nargs := len(typ.Params)
		args := make([]uint8, nargs)
		for i := nargs - 1; i >= 0; i-- {
			args[i] = l.pop().reg
		}
		rd := l.allocRegs(len(typ.Results))
		instr := RegInstr{Op: OpCallIndirect, Rs1: elem.reg, Rd: firstOrZero(rd), Operand: (typeIdx << 16) | (tableIdx & 0xffff)}
		l.emit(instr)
		// Rs1 already holds the table element index here (needed for the
		// runtime signature check), so unlike a direct call every argument
		// register — including the first — travels in a data word.
		l.emitArgDataAll(args)
		for _, r := range rd {
			l.pushReg(r)
		}
		return nil

	case wasm.OpcodeDrop:
		l.pop()
		return nil
	case wasm.OpcodeSelect, wasm.OpcodeSelectT:
		if op == wasm.OpcodeSelectT {
			n, err := l.readU32()
			if err != nil {
				return err
			}
			for i := uint32(0); i < n; i++ {
				if _, err := l.readByte(); err != nil {
					return err
				}
			}
		}
		cond := l.pop()
		v2 := l.pop()
		v1 := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: OpSelect, Rd: rd, Rs1: v1.reg, Operand: uint32(v2.reg) | uint32(cond.reg)<<8})
		l.pushReg(rd)
		return nil

	case wasm.OpcodeLocalGet:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		l.push(stackVal{reg: uint8(idx), alias: true, local: uint8(idx), defIdx: -1})
		return nil
	case wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		v := l.pop()
		l.materialize(uint8(idx))
		if v.reg != uint8(idx) {
			l.emit(RegInstr{Op: OpMove, Rd: uint8(idx), Rs1: v.reg})
		}
		if op == wasm.OpcodeLocalTee {
			l.push(stackVal{reg: uint8(idx), alias: true, local: uint8(idx), defIdx: -1})
		}
		return nil

	case wasm.OpcodeGlobalGet:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: wasm.OpcodeGlobalGet, Rd: rd, Operand: idx})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeGlobalSet:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		v := l.pop()
		l.emit(RegInstr{Op: wasm.OpcodeGlobalSet, Rs1: v.reg, Operand: idx})
		return nil

	case wasm.OpcodeTableGet, wasm.OpcodeTableSet:
		tableIdx, err := l.readU32()
		if err != nil {
			return err
		}
		if op == wasm.OpcodeTableGet {
			e := l.pop()
			rd := l.allocReg()
			l.emit(RegInstr{Op: op, Rd: rd, Rs1: e.reg, Operand: tableIdx})
			l.pushReg(rd)
			return nil
		}
		v := l.pop()
		e := l.pop()
		l.emit(RegInstr{Op: op, Rd: v.reg, Rs1: e.reg, Operand: tableIdx})
		return nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		if _, err := l.readByte(); err != nil {
			return err
		}
		if op == wasm.OpcodeMemorySize {
			rd := l.allocReg()
			l.emit(RegInstr{Op: op, Rd: rd})
			l.pushReg(rd)
			return nil
		}
		delta := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: delta.reg})
		l.pushReg(rd)
		return nil

	case wasm.OpcodeI32Const:
		v, err := l.readI32()
		if err != nil {
			return err
		}
		rd := l.allocReg()
		idx := l.emit(RegInstr{Op: op, Rd: rd, Operand: uint32(v)})
		l.push(stackVal{reg: rd, isConst: true, constVal: v, defIdx: idx})
		return nil
	case wasm.OpcodeI64Const:
		v, _, err := readI64Leb(l.r)
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: OpConstI64, Rd: rd, Operand: l.addPool64(uint64(v))})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeF32Const:
		bits, err := readRawU32(l.r)
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Operand: bits})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeF64Const:
		bits, err := readRawU64(l.r)
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: OpConstI64, Rd: rd, Operand: l.addPool64(bits)})
		l.pushReg(rd)
		return nil

	case wasm.OpcodeRefNull:
		if _, err := l.readByte(); err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeRefFunc:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Operand: idx})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeRefIsNull:
		v := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: v.reg})
		l.pushReg(rd)
		return nil

	case wasm.OpcodeI32Eqz:
		v := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: v.reg})
		l.pushReg(rd)
		return nil

	case wasm.OpcodeMemoryCopy, wasm.OpcodeMemoryFill, wasm.OpcodeTableCopy, wasm.OpcodeTableFill:
		return l.step3Arg(op)
	case wasm.OpcodeMemoryInit, wasm.OpcodeTableInit:
		return l.stepInit(op)
	case wasm.OpcodeDataDrop, wasm.OpcodeElemDrop:
		idx, err := l.readU32()
		if err != nil {
			return err
		}
		l.emit(RegInstr{Op: op, Operand: idx})
		return nil
	case wasm.OpcodeTableGrow:
		tableIdx, err := l.readU32()
		if err != nil {
			return err
		}
		n := l.pop()
		initVal := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: n.reg, Operand: uint32(initVal.reg) | tableIdx<<8})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeTableSize:
		tableIdx, err := l.readU32()
		if err != nil {
			return err
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Operand: tableIdx})
		l.pushReg(rd)
		return nil
	}

	if isLoadOpcode(op) {
		if _, err := l.readU32(); err != nil { // align hint, unused at runtime
			return err
		}
		off, err := l.readU32()
		if err != nil {
			return err
		}
		addr := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: addr.reg, Operand: off})
		l.pushReg(rd)
		return nil
	}
	if isStoreOpcode(op) {
		if _, err := l.readU32(); err != nil {
			return err
		}
		off, err := l.readU32()
		if err != nil {
			return err
		}
		val := l.pop()
		addr := l.pop()
		// Stores produce no result, so Rd is repurposed to carry the value
		// register (the only RegInstr field left once Rs1=addr and
		// Operand=offset are spoken for).
		l.emit(RegInstr{Op: op, Rd: val.reg, Rs1: addr.reg, Operand: off})
		return nil
	}

	if fused, ok := fuseImmTable[op]; ok && isI32BinaryOpcode(op) {
		return l.binI32(op, fused)
	}
	if isI32BinaryOpcode(op) {
		rhs := l.pop()
		lhs := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: lhs.reg}.WithRs2(rhs.reg))
		l.pushReg(rd)
		return nil
	}
	if isI64BinaryOpcode(op) || isF32BinaryOpcode(op) || isF64BinaryOpcode(op) {
		rhs := l.pop()
		lhs := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: lhs.reg}.WithRs2(rhs.reg))
		l.pushReg(rd)
		return nil
	}
	if isUnaryNumericOpcode(op) {
		v := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: v.reg})
		l.pushReg(rd)
		return nil
	}
	if op >= wasm.OpcodeSIMDPrefixBase {
		return l.stepSIMD(op)
	}

	return nil // unhandled opcode: treated as a no-op by this lowering (same scope boundary as the validator's opcode table)
}

func (l *lowerer) binI32(op wasm.Opcode, fused Op) error {
	rhs := l.pop()
	lhs := l.pop()
	if rhs.isConst && !lhs.isConst {
		if rhs.defIdx >= 0 && rhs.defIdx == len(l.code)-1 {
			l.code = l.code[:rhs.defIdx]
		}
		rd := l.allocReg()
		l.emit(RegInstr{Op: fused, Rd: rd, Rs1: lhs.reg, Operand: uint32(rhs.constVal)})
		l.pushReg(rd)
		return nil
	}
	rd := l.allocReg()
	l.emit(RegInstr{Op: op, Rd: rd, Rs1: lhs.reg}.WithRs2(rhs.reg))
	l.pushReg(rd)
	return nil
}

func (l *lowerer) step3Arg(op wasm.Opcode) error {
	n := l.pop()
	src := l.pop()
	dst := l.pop()
	l.emit(RegInstr{Op: op, Rd: dst.reg, Rs1: src.reg}.WithRs2(n.reg))
	return nil
}

func (l *lowerer) stepInit(op wasm.Opcode) error {
	segIdx, err := l.readU32()
	if err != nil {
		return err
	}
	if _, err := l.readByte(); err != nil { // trailing memory/table index, single-instance scope
		return err
	}
	n := l.pop()
	src := l.pop()
	dst := l.pop()
	instr := RegInstr{Op: op, Rd: dst.reg, Rs1: src.reg}
	instr = instr.WithRs2(n.reg)
	instr.Operand |= segIdx << 8
	l.emit(instr)
	return nil
}

func (l *lowerer) stepBrTable() error {
	count, err := l.readU32()
	if err != nil {
		return err
	}
	depths := make([]uint32, count+1)
	for i := range depths[:count] {
		d, err := l.readU32()
		if err != nil {
			return err
		}
		depths[i] = d
	}
	def, err := l.readU32()
	if err != nil {
		return err
	}
	depths[count] = def

	idx := l.pop()
	defaultFrame := l.frameAt(def)
	n := defaultFrame.numResults
	if defaultFrame.isLoop {
		n = 0
	}
	if n > 0 {
		l.moveResultsInto(defaultFrame.resultRegs[:n])
	}

	// pool64[base] holds the label count (excluding the trailing default), so
	// the interpreter/JIT can clamp an out-of-range index to the default
	// entry at pool64[base+1+count] without a separate length field on the
	// instruction itself.
	base := uint32(len(l.pool64))
	l.pool64 = append(l.pool64, uint64(count))
	for _, d := range depths {
		f := l.frameAt(d)
		if f.isLoop {
			l.pool64 = append(l.pool64, uint64(f.loopStartPC))
			continue
		}
		slot := len(l.pool64)
		l.pool64 = append(l.pool64, 0)
		f.endPatches = append(f.endPatches, -(slot + 1)) // negative marks a pool64 patch, see End
	}
	l.emit(RegInstr{Op: OpBrTable, Rs1: idx.reg, Operand: base})
	l.truncateToPolymorphic()
	return nil
}

func (l *lowerer) truncateToPolymorphic() {
	if len(l.frames) == 0 {
		return
	}
	f := l.topFrame()
	l.stack = l.stack[:f.stackBase]
}

func (l *lowerer) emitCall(funcIdx uint32, typ *wasm.FunctionType) error {
	nargs := len(typ.Params)
	args := make([]uint8, nargs)
	for i := nargs - 1; i >= 0; i-- {
		args[i] = l.pop().reg
	}
	rd := l.allocRegs(len(typ.Results))
	l.emit(RegInstr{Op: OpCall, Rd: firstOrZero(rd), Operand: funcIdx})
	l.emitCallArgData(args)
	for _, r := range rd {
		l.pushReg(r)
	}
	return nil
}

// emitCallArgData packs the first arg register into the just-emitted call
// instruction's Rs1, then spills the rest into trailing OpNop data words
// (4 registers per word, spec.md §4.3 "Calls").
func (l *lowerer) emitCallArgData(args []uint8) {
	if len(args) == 0 {
		return
	}
	l.code[len(l.code)-1].Rs1 = args[0]
	l.emitArgDataAll(args[1:])
}

// emitArgDataAll packs every argument register into trailing OpNop data
// words, 4 registers per word, with none reused from the preceding
// instruction's own operand fields — used for call_indirect, whose Rs1 is
// already occupied by the table element index.
func (l *lowerer) emitArgDataAll(args []uint8) {
	rest := args
	for len(rest) > 0 {
		n := len(rest)
		if n > 4 {
			n = 4
		}
		var w RegInstr
		w.Op = OpNop
		if n > 0 {
			w.Rd = rest[0]
		}
		if n > 1 {
			w.Rs1 = rest[1]
		}
		if n > 2 {
			w.Operand |= uint32(rest[2])
		}
		if n > 3 {
			w.Operand |= uint32(rest[3]) << 8
		}
		l.emit(w)
		rest = rest[n:]
	}
}

// stepSIMD lowers the narrowed v128 subset this runtime supports (see
// internal/wasm/validator's stepSIMD for the matching validation-time
// list). A v128 value occupies two consecutive virtual registers, Rd and
// Rd+1 holding the low and high 64 bits; every SIMD RegInstr below only
// names the low register explicitly and relies on that convention.
func (l *lowerer) stepSIMD(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeV128Load:
		if _, err := l.readU32(); err != nil { // align hint, unused
			return err
		}
		off, err := l.readU32()
		if err != nil {
			return err
		}
		addr := l.pop()
		rd := l.allocRegs(2)
		l.emit(RegInstr{Op: op, Rd: rd[0], Rs1: addr.reg, Operand: off})
		l.pushReg(rd[0])
		return nil
	case wasm.OpcodeV128Store:
		if _, err := l.readU32(); err != nil {
			return err
		}
		off, err := l.readU32()
		if err != nil {
			return err
		}
		val := l.pop()
		addr := l.pop()
		l.emit(RegInstr{Op: op, Rd: val.reg, Rs1: addr.reg, Operand: off})
		return nil
	case wasm.OpcodeV128Const:
		var lo, hi uint64
		for i := 0; i < 8; i++ {
			b, err := l.readByte()
			if err != nil {
				return err
			}
			lo |= uint64(b) << (8 * i)
		}
		for i := 0; i < 8; i++ {
			b, err := l.readByte()
			if err != nil {
				return err
			}
			hi |= uint64(b) << (8 * i)
		}
		rd := l.allocRegs(2)
		base := l.addPool64(lo)
		l.addPool64(hi) // always base+1, consumed by the interpreter/JIT together
		l.emit(RegInstr{Op: op, Rd: rd[0], Operand: base})
		l.pushReg(rd[0])
		return nil

	case wasm.OpcodeI32x4Splat:
		x := l.pop()
		rd := l.allocRegs(2)
		l.emit(RegInstr{Op: op, Rd: rd[0], Rs1: x.reg})
		l.pushReg(rd[0])
		return nil
	case wasm.OpcodeI32x4ExtractLane:
		lane, err := l.readByte()
		if err != nil {
			return err
		}
		v := l.pop()
		rd := l.allocReg()
		l.emit(RegInstr{Op: op, Rd: rd, Rs1: v.reg, Operand: uint32(lane)})
		l.pushReg(rd)
		return nil
	case wasm.OpcodeI32x4ReplaceLane:
		lane, err := l.readByte()
		if err != nil {
			return err
		}
		val := l.pop()
		vec := l.pop()
		rd := l.allocRegs(2)
		// lane lives in the operand's high byte since WithRs2 claims the low
		// byte for the replacement value register.
		l.emit(RegInstr{Op: op, Rd: rd[0], Rs1: vec.reg, Operand: uint32(lane) << 8}.WithRs2(val.reg))
		l.pushReg(rd[0])
		return nil

	case wasm.OpcodeI32x4Add, wasm.OpcodeI32x4Sub, wasm.OpcodeI32x4Mul:
		rhs := l.pop()
		lhs := l.pop()
		rd := l.allocRegs(2)
		l.emit(RegInstr{Op: op, Rd: rd[0], Rs1: lhs.reg}.WithRs2(rhs.reg))
		l.pushReg(rd[0])
		return nil
	}
	return nil
}

func firstOrZero(regs []uint8) uint8 {
	if len(regs) == 0 {
		return 0
	}
	return regs[0]
}
