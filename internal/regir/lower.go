package regir

import (
	"bytes"
	"fmt"

	"github.com/zwasm/zwasm/internal/leb128"
	"github.com/zwasm/zwasm/internal/wasm"
)

// sentinel control-frame opcode marking the outer function-body frame,
// mirroring the convention internal/wasm/validator uses for the same
// purpose (wasm.OpcodeCall can't otherwise appear as a block-starting
// opcode, so it is safe to reuse as a marker here too).
const outerFrame = wasm.OpcodeCall

// stackVal is one entry of the lowering operand stack: the virtual register
// holding the value, and (when alias is true) the local index it is still a
// read-through copy of. An aliasing entry costs nothing to produce (no
// instruction emitted by local.get) but must be materialized into a fresh
// temp register before the aliased local is next written, so that the
// value already pushed on the stack is insulated from the mutation.
type stackVal struct {
	reg   uint8
	alias bool
	local uint8

	// isConst/constVal/defIdx support the immediate-fusion peephole: a
	// value produced directly by i32.const remembers its value and the
	// code index of the instruction that produced it, so a following
	// binary op can fold the constant into its own Operand and drop the
	// now-dead const instruction (see step.go's binI32).
	isConst  bool
	constVal int32
	defIdx   int
}

type ctrlFrame struct {
	opcode      wasm.Opcode
	stackBase   int
	resultRegs  []uint8
	numResults  int
	loopStartPC int  // valid when opcode == wasm.OpcodeLoop
	isLoop      bool
	endPatches  []int // code indices whose Operand must become the end PC
	elsePatch   int   // code index of the If's conditional jump to else/end; -1 once consumed
}

type lowerer struct {
	mod    *wasm.Module
	typ    *wasm.FunctionType
	locals []wasm.ValueType
	r      *bytes.Reader

	stack  []stackVal
	frames []ctrlFrame

	code    []RegInstr
	pool64  []uint64
	nextReg uint8
}

// Lower translates one validated function body into a RegFunc. The caller
// must have already run it through internal/wasm/validator — Lower does not
// re-check types or index bounds, mirroring spec.md §4.3's "Translates a
// validated function body" contract.
func Lower(mod *wasm.Module, typ *wasm.FunctionType, code *wasm.Code) (*RegFunc, error) {
	locals := make([]wasm.ValueType, 0, len(typ.Params)+len(code.LocalTypes))
	locals = append(locals, typ.Params...)
	locals = append(locals, code.LocalTypes...)
	if len(locals) > 255 {
		return nil, fmt.Errorf("regir: function has %d locals, exceeds 255-register encoding limit", len(locals))
	}

	l := &lowerer{
		mod:     mod,
		typ:     typ,
		locals:  locals,
		r:       bytes.NewReader(code.Body),
		nextReg: uint8(len(locals)),
	}

	resultRegs := l.allocRegs(len(typ.Results))
	l.pushFrame(outerFrame, resultRegs, len(typ.Results), false)

	for {
		b, err := l.r.ReadByte()
		if err != nil {
			break
		}
		op := wasm.Opcode(b)
		switch b {
		case wasm.FCPrefixByte:
			sub, _, err := leb128.DecodeUint32(l.r)
			if err != nil {
				return nil, err
			}
			op = wasm.OpcodeMiscPrefixBase + wasm.Opcode(sub)
		case wasm.SIMDPrefixByte:
			sub, _, err := leb128.DecodeUint32(l.r)
			if err != nil {
				return nil, err
			}
			op = wasm.OpcodeSIMDPrefixBase + wasm.Opcode(sub)
		}
		if err := l.step(op); err != nil {
			return nil, err
		}
		if len(l.frames) == 0 {
			break
		}
	}

	return &RegFunc{
		Code:       l.code,
		Pool64:     l.pool64,
		RegCount:   l.nextReg,
		LocalCount: uint8(len(locals)),
		NumResults: uint8(len(typ.Results)),
	}, nil
}

func (l *lowerer) allocReg() uint8 {
	r := l.nextReg
	l.nextReg++
	return r
}

func (l *lowerer) allocRegs(n int) []uint8 {
	regs := make([]uint8, n)
	for i := range regs {
		regs[i] = l.allocReg()
	}
	return regs
}

func (l *lowerer) emit(instr RegInstr) int {
	l.code = append(l.code, instr)
	return len(l.code) - 1
}

func (l *lowerer) pc() int { return len(l.code) }

func (l *lowerer) push(v stackVal)     { l.stack = append(l.stack, v) }
func (l *lowerer) pushReg(reg uint8)   { l.push(stackVal{reg: reg}) }
func (l *lowerer) pop() stackVal {
	v := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return v
}

// materialize copies every stack entry still aliasing local idx into a
// fresh register, so that an upcoming write to idx cannot retroactively
// change an already-pushed value.
func (l *lowerer) materialize(idx uint8) {
	for i := range l.stack {
		if l.stack[i].alias && l.stack[i].local == idx {
			t := l.allocReg()
			l.emit(RegInstr{Op: OpMove, Rd: t, Rs1: l.stack[i].reg})
			l.stack[i] = stackVal{reg: t}
		}
	}
}

func (l *lowerer) pushFrame(opcode wasm.Opcode, resultRegs []uint8, numResults int, isLoop bool) {
	f := ctrlFrame{
		opcode:     opcode,
		stackBase:  len(l.stack),
		resultRegs: resultRegs,
		numResults: numResults,
		elsePatch:  -1,
	}
	if isLoop {
		f.isLoop = true
		f.loopStartPC = l.pc()
	}
	l.frames = append(l.frames, f)
}

func (l *lowerer) topFrame() *ctrlFrame { return &l.frames[len(l.frames)-1] }

// moveResultsInto copies the current top numResults stack values into regs,
// emitting only the moves that aren't already a no-op (src==dst).
func (l *lowerer) moveResultsInto(regs []uint8) {
	n := len(regs)
	if n == 0 {
		return
	}
	vals := l.stack[len(l.stack)-n:]
	for i, v := range vals {
		if v.reg != regs[i] {
			l.emit(RegInstr{Op: OpMove, Rd: regs[i], Rs1: v.reg})
		}
	}
}

func (l *lowerer) readU32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(l.r)
	return v, err
}

func (l *lowerer) readI32() (int32, error) {
	v, _, err := leb128.DecodeInt32(l.r)
	return v, err
}

func (l *lowerer) readByte() (byte, error) { return l.r.ReadByte() }

// popFrameKeepResults pops the innermost frame, which must have been opened
// by want, and truncates the operand stack to that frame's base.
func (l *lowerer) popFrameKeepResults(want wasm.Opcode) (ctrlFrame, error) {
	f := l.frames[len(l.frames)-1]
	if f.opcode != want {
		return ctrlFrame{}, fmt.Errorf("regir: else without matching if")
	}
	l.frames = l.frames[:len(l.frames)-1]
	l.stack = l.stack[:f.stackBase]
	return f, nil
}

// frameAt mirrors internal/wasm/validator's depth indexing: depth 0 is the
// innermost enclosing frame.
func (l *lowerer) frameAt(depth uint32) *ctrlFrame {
	return &l.frames[len(l.frames)-1-int(depth)]
}

// branchTo emits the control transfer for a branch targeting frame f:
// move the live top-of-stack result values into f's result registers, then
// jump either to the (already known) loop start or to a position that will
// be patched once the frame's matching end is lowered.
func (l *lowerer) branchTo(f *ctrlFrame, cond int8) {
	// br_if's condition sits on top of the result values, so it must come
	// off the stack before moveResultsInto reads the true top-N values.
	var condReg uint8
	if cond == 1 {
		condReg = l.pop().reg
	}
	n := f.numResults
	if f.isLoop {
		n = 0 // a loop's branch-target arity is its params, which this runtime treats as empty (see internal/wasm/validator's equivalent simplification).
	}
	if n > 0 {
		l.moveResultsInto(f.resultRegs[:n])
	}
	var idx int
	switch cond {
	case 0: // unconditional
		idx = l.emit(RegInstr{Op: OpJump})
	case 1: // br_if, taken when condition register is nonzero
		idx = l.emit(RegInstr{Op: OpBrIfNZ, Rs1: condReg})
	}
	if f.isLoop {
		l.code[idx].Operand = uint32(f.loopStartPC)
	} else {
		f.endPatches = append(f.endPatches, idx)
	}
}

func (l *lowerer) readBlockType() ([]wasm.ValueType, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case 0x40:
		return nil, nil
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return []wasm.ValueType{b}, nil
	}
	if err := l.r.UnreadByte(); err != nil {
		return nil, err
	}
	idx, _, err := leb128.DecodeInt33AsInt64(l.r)
	if err != nil {
		return nil, err
	}
	if idx < 0 || int(idx) >= len(l.mod.TypeSection) {
		return nil, fmt.Errorf("regir: block type index %d out of range", idx)
	}
	return l.mod.TypeSection[idx].Results, nil
}

func (l *lowerer) addPool64(v uint64) uint32 {
	l.pool64 = append(l.pool64, v)
	return uint32(len(l.pool64) - 1)
}
