// Package validator implements the operand/control-stack validation
// algorithm (spec.md §4.2) that runs once per function body immediately
// after decode and before either lowering path: a rejected module never
// reaches the interpreter or the JIT (spec.md §8 property 1).
//
// The algorithm is the classic one: an operand stack of ValueTypes plus a
// parallel control-frame stack, with a per-frame "unreachable" bit that
// makes the top of the operand stack polymorphic after a dead-code-causing
// instruction (br, br_table, return, unreachable) until the frame's
// matching end/else (grounded on go-interpreter/wagon's validate.go).
package validator

import (
	"bytes"
	"fmt"

	"github.com/zwasm/zwasm/internal/leb128"
	"github.com/zwasm/zwasm/internal/wasm"
)

// wildcard is the polymorphic placeholder pushed after unreachable code; it
// matches whatever the popper expects without checking.
const wildcard wasm.ValueType = 0

// frame is one entry of the control-flow stack: one per block/loop/if/
// function body.
type frame struct {
	opcode      wasm.Opcode
	stackBase   int // operand-stack height when this frame was entered
	labelTypes  []wasm.ValueType // types a branch to this frame must carry
	endTypes    []wasm.ValueType // types this frame must leave on the stack at `end`
	unreachable bool
}

// ValidateModule validates every function body, global initializer, and
// element/data offset expression in mod. It does not mutate mod.
func ValidateModule(mod *wasm.Module, features wasm.Features) *wasm.WasmError {
	for i, g := range mod.GlobalSection {
		if err := validateConstExpr(mod, g.Init, g.Type.ValType, features); err != nil {
			return wasm.WrapError(wasm.ErrConstantExprRequired, fmt.Sprintf("global[%d] init", i), err)
		}
	}
	for i, seg := range mod.ElementSection {
		if seg.Mode == wasm.ElementModeActive {
			if err := validateConstExpr(mod, seg.OffsetExpr, wasm.ValueTypeI32, features); err != nil {
				return wasm.WrapError(wasm.ErrConstantExprRequired, fmt.Sprintf("element[%d] offset", i), err)
			}
		}
	}
	for i, seg := range mod.DataSection {
		if !seg.Passive {
			if err := validateConstExpr(mod, seg.OffsetExpr, wasm.ValueTypeI32, features); err != nil {
				return wasm.WrapError(wasm.ErrConstantExprRequired, fmt.Sprintf("data[%d] offset", i), err)
			}
		}
	}
	if mod.DataCountSection == nil {
		for _, code := range mod.CodeSection {
			if bytes.IndexByte(code.Body, byte(wasm.FCPrefixByte)) >= 0 && usesDataCount(code.Body) {
				return wasm.NewError(wasm.ErrDataCountRequired, "memory.init/data.drop require a data count section")
			}
		}
	}
	for i, code := range mod.CodeSection {
		funcIdx := mod.ImportFuncCount() + wasm.Index(i)
		typ := mod.TypeOfFunction(funcIdx)
		if typ == nil {
			return wasm.NewError(wasm.ErrUnknownType, fmt.Sprintf("function[%d] has no type", funcIdx))
		}
		if err := validateFunc(mod, typ, code, features); err != nil {
			if we, ok := err.(*wasm.WasmError); ok {
				return wasm.WrapError(we.Kind, fmt.Sprintf("function[%d]: %s", funcIdx, we.Context), we.Cause)
			}
			return wasm.WrapError(wasm.ErrTypeMismatch, fmt.Sprintf("function[%d]", funcIdx), err)
		}
	}
	return nil
}

// usesDataCount is a conservative scan for memory.init (0xfc 0x08) or
// data.drop (0xfc 0x09), the only two instructions whose validity requires a
// preceding data-count section (spec.md §4.1 bulk-memory proposal).
func usesDataCount(body []byte) bool {
	for i := 0; i+1 < len(body); i++ {
		if body[i] == wasm.FCPrefixByte && (body[i+1] == 0x08 || body[i+1] == 0x09) {
			return true
		}
	}
	return false
}

// constExprStepType returns the ValueType a single constant-expression
// instruction pushes, or an error if it's not legal in this position. want is
// the type context for ref.null (the declared type of the global/element
// being initialized), and stack is the current type stack, consulted by the
// extended-const arithmetic opcodes (spec.md §4.2).
func constExprStepType(mod *wasm.Module, op wasm.Opcode, data []byte, want wasm.ValueType, stack []wasm.ValueType) (wasm.ValueType, error) {
	switch op {
	case wasm.OpcodeI32Const:
		return wasm.ValueTypeI32, nil
	case wasm.OpcodeI64Const:
		return wasm.ValueTypeI64, nil
	case wasm.OpcodeF32Const:
		return wasm.ValueTypeF32, nil
	case wasm.OpcodeF64Const:
		return wasm.ValueTypeF64, nil
	case wasm.OpcodeRefNull:
		if len(data) != 1 {
			return 0, fmt.Errorf("ref.null: missing heap-type immediate")
		}
		switch wasm.ValueType(data[0]) {
		case wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
			return wasm.ValueType(data[0]), nil
		default:
			return 0, fmt.Errorf("ref.null: invalid heap type 0x%x", data[0])
		}
	case wasm.OpcodeRefFunc:
		idx, _, _ := leb128.LoadUint32(data)
		if idx >= totalFuncs(mod) {
			return 0, fmt.Errorf("ref.func index %d out of range", idx)
		}
		return wasm.ValueTypeFuncref, nil
	case wasm.OpcodeGlobalGet:
		idx, _, _ := leb128.LoadUint32(data)
		if idx >= uint32(len(mod.GlobalSection))+mod.ImportGlobalCount() {
			return 0, fmt.Errorf("global.get index %d out of range", idx)
		}
		if idx < mod.ImportGlobalCount() {
			return want, nil // an imported global's declared type is trusted until link time
		}
		return mod.GlobalSection[idx-mod.ImportGlobalCount()].Type.ValType, nil
	case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul:
		if err := popConstExprOperands(stack, wasm.ValueTypeI32); err != nil {
			return 0, err
		}
		return wasm.ValueTypeI32, nil
	case wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
		if err := popConstExprOperands(stack, wasm.ValueTypeI64); err != nil {
			return 0, err
		}
		return wasm.ValueTypeI64, nil
	default:
		return 0, fmt.Errorf("opcode 0x%x is not a valid constant expression", op)
	}
}

func popConstExprOperands(stack []wasm.ValueType, t wasm.ValueType) error {
	if len(stack) < 2 || stack[len(stack)-1] != t || stack[len(stack)-2] != t {
		return fmt.Errorf("extended-const arithmetic: expected two %s operands", wasm.ValueTypeName(t))
	}
	return nil
}

// validateConstExpr type-checks a (possibly extended-const) constant
// expression chain, following the same push-pop-arithmetic discipline as the
// function-body validator's operand stack, collapsing to exactly one value
// of type want.
func validateConstExpr(mod *wasm.Module, ce wasm.ConstantExpression, want wasm.ValueType, features wasm.Features) error {
	if len(ce.Extra) > 0 && !features.Get(wasm.FeatureExtendedConst) {
		return fmt.Errorf("extended-const expression requires the extended-const feature")
	}
	t, err := constExprStepType(mod, ce.Opcode, ce.Data, want, nil)
	if err != nil {
		return err
	}
	stack := []wasm.ValueType{t}
	for _, step := range ce.Extra {
		switch step.Opcode {
		case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul,
			wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
			st, serr := constExprStepType(mod, step.Opcode, step.Data, want, stack)
			if serr != nil {
				return serr
			}
			stack = append(stack[:len(stack)-2], st)
		default:
			st, serr := constExprStepType(mod, step.Opcode, step.Data, want, stack)
			if serr != nil {
				return serr
			}
			stack = append(stack, st)
		}
	}
	if len(stack) != 1 {
		return fmt.Errorf("constant expression did not reduce to a single value")
	}
	if stack[0] != want {
		return fmt.Errorf("constant expression type mismatch: want %s got %s", wasm.ValueTypeName(want), wasm.ValueTypeName(stack[0]))
	}
	return nil
}

func totalFuncs(mod *wasm.Module) uint32 { return mod.ImportFuncCount() + uint32(len(mod.FunctionSection)) }

// isNonDefaultableLocal reports whether a declared local of type t has no
// implicit zero value and must be explicitly local.set before its first
// local.get (spec.md §4.2 "Local initialization"). This runtime doesn't
// encode the function-references proposal's non-null reference-type markers
// at the local-declaration level, so it conservatively treats every
// reference-typed local (funcref/externref) as non-defaultable; tracking is
// function-scoped and monotonic (once set, always considered set for the
// rest of the function) rather than a full per-block-edge join — simpler
// than the reference algorithm and stricter than necessary in some
// branch-only-one-arm-sets-it cases, but it makes the read-before-set case
// validate.go actually cares about (spec.md §4.2) correctly rejected.
func isNonDefaultableLocal(t wasm.ValueType) bool {
	return t == wasm.ValueTypeFuncref || t == wasm.ValueTypeExternref
}

type vctx struct {
	mod        *wasm.Module
	typ        *wasm.FunctionType
	locals     []wasm.ValueType
	localInits []bool
	r          *bytes.Reader
	stack      []wasm.ValueType
	frames     []frame
	feat       wasm.Features
}

func validateFunc(mod *wasm.Module, typ *wasm.FunctionType, code *wasm.Code, features wasm.Features) error {
	locals := append(append([]wasm.ValueType{}, typ.Params...), code.LocalTypes...)
	localInits := make([]bool, len(locals))
	for i, t := range locals {
		localInits[i] = i < len(typ.Params) || !isNonDefaultableLocal(t)
	}
	v := &vctx{mod: mod, typ: typ, locals: locals, localInits: localInits, r: bytes.NewReader(code.Body), feat: features}
	v.pushFrame(wasm.OpcodeCall, nil, typ.Results)

	for v.r.Len() > 0 {
		opByte, _ := v.r.ReadByte()
		op := wasm.Opcode(opByte)
		switch opByte {
		case wasm.FCPrefixByte:
			sub, _, err := leb128.DecodeUint32(v.r)
			if err != nil {
				return fmt.Errorf("malformed 0xfc sub-opcode")
			}
			op = wasm.OpcodeMiscPrefixBase + wasm.Opcode(sub)
			if op <= wasm.OpcodeI64TruncSatF64U {
				if !features.Get(wasm.FeatureNonTrappingFloatToIntConversion) {
					return fmt.Errorf("saturating truncation requires the nontrapping-float-to-int-conversion feature")
				}
			} else if !features.Get(wasm.FeatureBulkMemoryOperations) {
				return fmt.Errorf("bulk-memory instruction requires the bulk-memory-operations feature")
			}
		case wasm.SIMDPrefixByte:
			if !features.Get(wasm.FeatureSIMD) {
				return fmt.Errorf("SIMD instruction requires the simd feature")
			}
			sub, _, err := leb128.DecodeUint32(v.r)
			if err != nil {
				return fmt.Errorf("malformed 0xfd sub-opcode")
			}
			op = wasm.OpcodeSIMDPrefixBase + wasm.Opcode(sub)
		}
		if err := v.step(op); err != nil {
			return err
		}
		if len(v.frames) == 0 {
			break
		}
	}
	if len(v.frames) != 0 {
		return fmt.Errorf("function body missing final end")
	}
	return nil
}

func (v *vctx) pushFrame(op wasm.Opcode, labelTypes, endTypes []wasm.ValueType) {
	v.frames = append(v.frames, frame{opcode: op, stackBase: len(v.stack), labelTypes: labelTypes, endTypes: endTypes})
}

// popFrame checks the current frame's endTypes are satisfied, pops it, and
// returns it (the caller pushes endTypes back for `end`, or reuses them for
// `else`).
func (v *vctx) popFrame() (frame, error) {
	if len(v.frames) == 0 {
		return frame{}, fmt.Errorf("unexpected end: no open block")
	}
	f := v.frames[len(v.frames)-1]
	for i := len(f.endTypes) - 1; i >= 0; i-- {
		if err := v.pop(f.endTypes[i]); err != nil {
			return frame{}, err
		}
	}
	if len(v.stack) != f.stackBase {
		return frame{}, fmt.Errorf("block leaves extra values on the stack")
	}
	v.frames = v.frames[:len(v.frames)-1]
	return f, nil
}

func (v *vctx) setUnreachable() {
	f := &v.frames[len(v.frames)-1]
	v.stack = v.stack[:f.stackBase]
	f.unreachable = true
}

func (v *vctx) push(t wasm.ValueType) { v.stack = append(v.stack, t) }

func (v *vctx) pop(want wasm.ValueType) error {
	f := &v.frames[len(v.frames)-1]
	if len(v.stack) == f.stackBase {
		if f.unreachable {
			return nil // polymorphic: popping past the base in dead code is fine
		}
		return fmt.Errorf("operand stack underflow, want %s", wasm.ValueTypeName(want))
	}
	got := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	if want != wildcard && got != want {
		return fmt.Errorf("type mismatch: want %s got %s", wasm.ValueTypeName(want), wasm.ValueTypeName(got))
	}
	return nil
}

func (v *vctx) popAny() (wasm.ValueType, error) {
	f := &v.frames[len(v.frames)-1]
	if len(v.stack) == f.stackBase {
		if f.unreachable {
			return wildcard, nil
		}
		return 0, fmt.Errorf("operand stack underflow")
	}
	got := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return got, nil
}

func (v *vctx) readU32() (uint32, error) {
	x, _, err := leb128.DecodeUint32(v.r)
	return x, err
}
func (v *vctx) readI32() (int32, error) {
	x, _, err := leb128.DecodeInt32(v.r)
	return x, err
}
func (v *vctx) readByte() (byte, error) { return v.r.ReadByte() }

func (v *vctx) frameAt(depth uint32) (*frame, error) {
	if int(depth) >= len(v.frames) {
		return nil, fmt.Errorf("invalid branch depth %d", depth)
	}
	return &v.frames[len(v.frames)-1-int(depth)], nil
}

// branchTypes returns the operand types a branch to f must carry: for a
// loop that's its labelTypes (the loop's params, branch target is the top),
// for every other frame kind it's endTypes (the values produced at `end`).
func branchTypes(f *frame) []wasm.ValueType {
	if f.opcode == wasm.OpcodeLoop {
		return f.labelTypes
	}
	return f.endTypes
}

func (v *vctx) step(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeUnreachable:
		v.setUnreachable()

	case wasm.OpcodeNop:

	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		bt, err := v.readBlockType()
		if err != nil {
			return err
		}
		if op == wasm.OpcodeIf {
			if err := v.pop(wasm.ValueTypeI32); err != nil {
				return err
			}
		}
		switch op {
		case wasm.OpcodeLoop:
			v.pushFrame(op, nil, bt)
		default:
			v.pushFrame(op, bt, bt)
		}

	case wasm.OpcodeElse:
		f, err := v.popFrame()
		if err != nil {
			return err
		}
		if f.opcode != wasm.OpcodeIf {
			return fmt.Errorf("else without matching if")
		}
		v.pushFrame(wasm.OpcodeElse, f.endTypes, f.endTypes)

	case wasm.OpcodeEnd:
		f, err := v.popFrame()
		if err != nil {
			return err
		}
		if f.opcode == wasm.OpcodeCall {
			// function body's outermost frame: nothing left to do, caller
			// (validateFunc) stops on empty v.frames.
			return nil
		}
		for _, t := range f.endTypes {
			v.push(t)
		}

	case wasm.OpcodeBr:
		depth, err := v.readU32()
		if err != nil {
			return err
		}
		f, ferr := v.frameAt(depth)
		if ferr != nil {
			return ferr
		}
		for _, t := range reversed(branchTypes(f)) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		v.setUnreachable()

	case wasm.OpcodeBrIf:
		depth, err := v.readU32()
		if err != nil {
			return err
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		f, ferr := v.frameAt(depth)
		if ferr != nil {
			return ferr
		}
		bt := branchTypes(f)
		for _, t := range reversed(bt) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		for _, t := range bt {
			v.push(t)
		}

	case wasm.OpcodeBrTable:
		count, err := v.readU32()
		if err != nil {
			return err
		}
		targets := make([]uint32, count)
		for i := range targets {
			d, derr := v.readU32()
			if derr != nil {
				return derr
			}
			if _, ferr := v.frameAt(d); ferr != nil {
				return ferr
			}
			targets[i] = d
		}
		def, derr := v.readU32()
		if derr != nil {
			return derr
		}
		defFrame, ferr := v.frameAt(def)
		if ferr != nil {
			return ferr
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		bt := branchTypes(defFrame)
		for _, t := range reversed(bt) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		v.setUnreachable()

	case wasm.OpcodeReturn:
		for _, t := range reversed(v.typ.Results) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		v.setUnreachable()

	case wasm.OpcodeCall:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		typ := v.mod.TypeOfFunction(idx)
		if typ == nil {
			return fmt.Errorf("call: unknown function %d", idx)
		}
		return v.applySignature(typ)

	case wasm.OpcodeReturnCall:
		if !v.feat.Get(wasm.FeatureTailCall) {
			return fmt.Errorf("return_call requires the tail-call feature")
		}
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		typ := v.mod.TypeOfFunction(idx)
		if typ == nil {
			return fmt.Errorf("return_call: unknown function %d", idx)
		}
		if !valueTypesEqualSlice(typ.Results, v.typ.Results) {
			return fmt.Errorf("return_call: callee results %v do not match caller results %v", typ.Results, v.typ.Results)
		}
		for _, t := range reversed(typ.Params) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		v.setUnreachable()

	case wasm.OpcodeReturnCallIndirect:
		if !v.feat.Get(wasm.FeatureTailCall) {
			return fmt.Errorf("return_call_indirect requires the tail-call feature")
		}
		typeIdx, err := v.readU32()
		if err != nil {
			return err
		}
		if _, terr := v.readU32(); terr != nil { // table index
			return terr
		}
		if int(typeIdx) >= len(v.mod.TypeSection) {
			return fmt.Errorf("return_call_indirect: unknown type %d", typeIdx)
		}
		typ := v.mod.TypeSection[typeIdx]
		if !valueTypesEqualSlice(typ.Results, v.typ.Results) {
			return fmt.Errorf("return_call_indirect: callee results %v do not match caller results %v", typ.Results, v.typ.Results)
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		for _, t := range reversed(typ.Params) {
			if err := v.pop(t); err != nil {
				return err
			}
		}
		v.setUnreachable()

	case wasm.OpcodeCallIndirect:
		typeIdx, err := v.readU32()
		if err != nil {
			return err
		}
		if _, terr := v.readU32(); terr != nil { // table index
			return terr
		}
		if int(typeIdx) >= len(v.mod.TypeSection) {
			return fmt.Errorf("call_indirect: unknown type %d", typeIdx)
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		return v.applySignature(v.mod.TypeSection[typeIdx])

	case wasm.OpcodeDrop:
		if _, err := v.popAny(); err != nil {
			return err
		}

	case wasm.OpcodeSelect:
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		b, err := v.popAny()
		if err != nil {
			return err
		}
		if err := v.pop(b); err != nil {
			return err
		}
		v.push(b)

	case wasm.OpcodeSelectT:
		n, err := v.readU32()
		if err != nil {
			return err
		}
		var t wasm.ValueType
		for i := uint32(0); i < n; i++ {
			b, berr := v.readByte()
			if berr != nil {
				return berr
			}
			t = wasm.ValueType(b)
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		if err := v.pop(t); err != nil {
			return err
		}
		if err := v.pop(t); err != nil {
			return err
		}
		v.push(t)

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		if int(idx) >= len(v.locals) {
			return fmt.Errorf("unknown local %d", idx)
		}
		t := v.locals[idx]
		switch op {
		case wasm.OpcodeLocalGet:
			if !v.localInits[idx] {
				return wasm.NewError(wasm.ErrUninitializedLocal, fmt.Sprintf("local.get %d before any local.set", idx))
			}
			v.push(t)
		case wasm.OpcodeLocalSet:
			if err := v.pop(t); err != nil {
				return err
			}
			v.localInits[idx] = true
		case wasm.OpcodeLocalTee:
			if err := v.pop(t); err != nil {
				return err
			}
			v.localInits[idx] = true
			v.push(t)
		}

	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		gt, gerr := globalTypeOf(v.mod, idx)
		if gerr != nil {
			return gerr
		}
		if op == wasm.OpcodeGlobalGet {
			v.push(gt.ValType)
		} else {
			if !gt.Mutable {
				return fmt.Errorf("global.set on immutable global %d", idx)
			}
			return v.pop(gt.ValType)
		}

	case wasm.OpcodeMemorySize:
		if _, err := v.readByte(); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)

	case wasm.OpcodeMemoryGrow:
		if _, err := v.readByte(); err != nil {
			return err
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)

	case wasm.OpcodeI32Const:
		if _, err := v.readI32(); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)
	case wasm.OpcodeI64Const:
		if _, _, err := leb128.DecodeInt64(v.r); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI64)
	case wasm.OpcodeF32Const:
		var b [4]byte
		if _, err := v.r.Read(b[:]); err != nil {
			return err
		}
		v.push(wasm.ValueTypeF32)
	case wasm.OpcodeF64Const:
		var b [8]byte
		if _, err := v.r.Read(b[:]); err != nil {
			return err
		}
		v.push(wasm.ValueTypeF64)

	case wasm.OpcodeRefNull:
		b, err := v.readByte()
		if err != nil {
			return err
		}
		switch wasm.ValueType(b) {
		case wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
			v.push(wasm.ValueType(b))
		default:
			return fmt.Errorf("ref.null: invalid heap type 0x%x", b)
		}
	case wasm.OpcodeRefIsNull:
		if _, err := v.popAny(); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)
	case wasm.OpcodeRefFunc:
		if _, err := v.readU32(); err != nil {
			return err
		}
		v.push(wasm.ValueTypeFuncref)

	case wasm.OpcodeMemoryCopy, wasm.OpcodeMemoryFill, wasm.OpcodeMemoryInit, wasm.OpcodeDataDrop,
		wasm.OpcodeTableCopy, wasm.OpcodeTableInit, wasm.OpcodeElemDrop, wasm.OpcodeTableFill,
		wasm.OpcodeTableGrow, wasm.OpcodeTableSize, wasm.OpcodeTableGet, wasm.OpcodeTableSet:
		return v.stepBulk(op)

	case wasm.OpcodeV128Load, wasm.OpcodeV128Store, wasm.OpcodeV128Const,
		wasm.OpcodeI32x4Splat, wasm.OpcodeI32x4ExtractLane, wasm.OpcodeI32x4ReplaceLane,
		wasm.OpcodeI32x4Add, wasm.OpcodeI32x4Sub, wasm.OpcodeI32x4Mul:
		return v.stepSIMD(op)

	default:
		if signExtensionOpcodes[op] && !v.feat.Get(wasm.FeatureSignExtensionOps) {
			return fmt.Errorf("sign-extension instruction requires the sign-extension-ops feature")
		}
		if sig, ok := numericSignatures[op]; ok {
			for _, t := range reversed(sig.in) {
				if err := v.pop(t); err != nil {
					return err
				}
			}
			for _, t := range sig.out {
				v.push(t)
			}
			return nil
		}
		if sig, ok := memorySignatures[op]; ok {
			if _, err := v.readU32(); err != nil { // align
				return err
			}
			if _, err := v.readU32(); err != nil { // offset
				return err
			}
			for _, t := range reversed(sig.in) {
				if err := v.pop(t); err != nil {
					return err
				}
			}
			for _, t := range sig.out {
				v.push(t)
			}
			return nil
		}
		return fmt.Errorf("unhandled opcode 0x%x", op)
	}
	return nil
}

// stepBulk handles the bulk-memory/reference-types 0xfc-prefixed and
// table.get/table.set instructions, all of which consume one or two
// trailing index immediates the core opcode table doesn't carry.
func (v *vctx) stepBulk(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeMemoryCopy:
		if _, err := v.readByte(); err != nil {
			return err
		}
		if _, err := v.readByte(); err != nil {
			return err
		}
		return v.popN(wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32)
	case wasm.OpcodeMemoryFill:
		if _, err := v.readByte(); err != nil {
			return err
		}
		return v.popN(wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32)
	case wasm.OpcodeMemoryInit:
		if _, err := v.readU32(); err != nil { // data index
			return err
		}
		if _, err := v.readByte(); err != nil {
			return err
		}
		return v.popN(wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32)
	case wasm.OpcodeDataDrop:
		_, err := v.readU32()
		return err
	case wasm.OpcodeTableCopy:
		if _, err := v.readU32(); err != nil {
			return err
		}
		if _, err := v.readU32(); err != nil {
			return err
		}
		return v.popN(wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32)
	case wasm.OpcodeTableInit:
		if _, err := v.readU32(); err != nil {
			return err
		}
		if _, err := v.readU32(); err != nil {
			return err
		}
		return v.popN(wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32)
	case wasm.OpcodeElemDrop:
		_, err := v.readU32()
		return err
	case wasm.OpcodeTableFill:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		tt, terr := tableTypeOf(v.mod, idx)
		if terr != nil {
			return terr
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		if err := v.pop(tt.ElemType.Kind); err != nil {
			return err
		}
		return v.pop(wasm.ValueTypeI32)
	case wasm.OpcodeTableGrow:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		tt, terr := tableTypeOf(v.mod, idx)
		if terr != nil {
			return terr
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		if err := v.pop(tt.ElemType.Kind); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)
	case wasm.OpcodeTableSize:
		if _, err := v.readU32(); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)
	case wasm.OpcodeTableGet:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		tt, terr := tableTypeOf(v.mod, idx)
		if terr != nil {
			return terr
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		v.push(tt.ElemType.Kind)
	case wasm.OpcodeTableSet:
		idx, err := v.readU32()
		if err != nil {
			return err
		}
		tt, terr := tableTypeOf(v.mod, idx)
		if terr != nil {
			return terr
		}
		if err := v.pop(tt.ElemType.Kind); err != nil {
			return err
		}
		return v.pop(wasm.ValueTypeI32)
	}
	return fmt.Errorf("unhandled bulk opcode 0x%x", op)
}

// i32x4Lanes is the lane count of the only fixed-width SIMD shape this
// runtime implements (spec.md §4.2 "SIMD lane index checks").
const i32x4Lanes = 4

// stepSIMD handles the narrowed 0xfd-prefixed subset this runtime implements
// (see opcodes.go's SIMD const block doc comment for the scope decision).
// i32x4.extract_lane/replace_lane are the only instructions here that carry
// a lane-index immediate, checked against i32x4Lanes exactly as spec.md §4.2
// requires, producing ErrInvalidLaneIndex out of range.
func (v *vctx) stepSIMD(op wasm.Opcode) error {
	switch op {
	case wasm.OpcodeV128Load:
		if _, err := v.readU32(); err != nil { // align
			return err
		}
		if _, err := v.readU32(); err != nil { // offset
			return err
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		v.push(wasm.ValueTypeV128)
	case wasm.OpcodeV128Store:
		if _, err := v.readU32(); err != nil {
			return err
		}
		if _, err := v.readU32(); err != nil {
			return err
		}
		if err := v.pop(wasm.ValueTypeV128); err != nil {
			return err
		}
		return v.pop(wasm.ValueTypeI32)
	case wasm.OpcodeV128Const:
		var b [16]byte
		if _, err := v.r.Read(b[:]); err != nil {
			return err
		}
		v.push(wasm.ValueTypeV128)
	case wasm.OpcodeI32x4Splat:
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		v.push(wasm.ValueTypeV128)
	case wasm.OpcodeI32x4ExtractLane:
		lane, err := v.readByte()
		if err != nil {
			return err
		}
		if lane >= i32x4Lanes {
			return wasm.NewError(wasm.ErrInvalidLaneIndex, fmt.Sprintf("i32x4.extract_lane: lane %d out of range", lane))
		}
		if err := v.pop(wasm.ValueTypeV128); err != nil {
			return err
		}
		v.push(wasm.ValueTypeI32)
	case wasm.OpcodeI32x4ReplaceLane:
		lane, err := v.readByte()
		if err != nil {
			return err
		}
		if lane >= i32x4Lanes {
			return wasm.NewError(wasm.ErrInvalidLaneIndex, fmt.Sprintf("i32x4.replace_lane: lane %d out of range", lane))
		}
		if err := v.pop(wasm.ValueTypeI32); err != nil {
			return err
		}
		if err := v.pop(wasm.ValueTypeV128); err != nil {
			return err
		}
		v.push(wasm.ValueTypeV128)
	case wasm.OpcodeI32x4Add, wasm.OpcodeI32x4Sub, wasm.OpcodeI32x4Mul:
		if err := v.pop(wasm.ValueTypeV128); err != nil {
			return err
		}
		if err := v.pop(wasm.ValueTypeV128); err != nil {
			return err
		}
		v.push(wasm.ValueTypeV128)
	default:
		return fmt.Errorf("unhandled SIMD opcode 0x%x", op)
	}
	return nil
}

func (v *vctx) popN(types ...wasm.ValueType) error {
	for _, t := range reversed(types) {
		if err := v.pop(t); err != nil {
			return err
		}
	}
	return nil
}

func valueTypesEqualSlice(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func reversed(ts []wasm.ValueType) []wasm.ValueType {
	out := make([]wasm.ValueType, len(ts))
	for i, t := range ts {
		out[len(ts)-1-i] = t
	}
	return out
}

func (v *vctx) applySignature(typ *wasm.FunctionType) error {
	for _, t := range reversed(typ.Params) {
		if err := v.pop(t); err != nil {
			return err
		}
	}
	for _, t := range typ.Results {
		v.push(t)
	}
	return nil
}

func globalTypeOf(mod *wasm.Module, idx uint32) (wasm.GlobalType, error) {
	if idx < mod.ImportGlobalCount() {
		var i uint32
		for _, imp := range mod.ImportSection {
			if imp.Type != wasm.ExternTypeGlobal {
				continue
			}
			if i == idx {
				return imp.DescGlobal, nil
			}
			i++
		}
		return wasm.GlobalType{}, fmt.Errorf("unknown global %d", idx)
	}
	local := idx - mod.ImportGlobalCount()
	if int(local) >= len(mod.GlobalSection) {
		return wasm.GlobalType{}, fmt.Errorf("unknown global %d", idx)
	}
	return mod.GlobalSection[local].Type, nil
}

func tableTypeOf(mod *wasm.Module, idx uint32) (wasm.TableType, error) {
	if idx < mod.ImportTableCount() {
		var i uint32
		for _, imp := range mod.ImportSection {
			if imp.Type != wasm.ExternTypeTable {
				continue
			}
			if i == idx {
				return imp.DescTable, nil
			}
			i++
		}
		return wasm.TableType{}, fmt.Errorf("unknown table %d", idx)
	}
	local := idx - mod.ImportTableCount()
	if int(local) >= len(mod.TableSection) {
		return wasm.TableType{}, fmt.Errorf("unknown table %d", idx)
	}
	return *mod.TableSection[local], nil
}

// readBlockType reads a block's type immediate: 0x40 (empty), a single
// ValueType byte, or (if the multi-value proposal is in play) a signed
// LEB128 type index. Only the block's result types are returned: for the
// type-index encoding (multi-value feature) they are the referenced type's
// Results, and that type's Params are not checked here.
func (v *vctx) readBlockType() ([]wasm.ValueType, error) {
	b, err := v.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b == 0x40 {
		return nil, nil
	}
	switch wasm.ValueType(b) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return []wasm.ValueType{wasm.ValueType(b)}, nil
	}
	if !v.feat.Get(wasm.FeatureMultiValue) {
		return nil, fmt.Errorf("multi-value block type requires the multi-value feature")
	}
	// multi-value block type: a signed LEB128 index into TypeSection,
	// re-decode the byte we already consumed as the first LEB128 byte.
	if err := v.r.UnreadByte(); err != nil {
		return nil, err
	}
	idx, _, derr := leb128.DecodeInt33AsInt64(v.r)
	if derr != nil {
		return nil, derr
	}
	if idx < 0 || int(idx) >= len(v.mod.TypeSection) {
		return nil, fmt.Errorf("invalid block type index %d", idx)
	}
	return v.mod.TypeSection[idx].Results, nil
}

type sig struct{ in, out []wasm.ValueType }

var (
	i32  = wasm.ValueTypeI32
	i64  = wasm.ValueTypeI64
	f32  = wasm.ValueTypeF32
	f64  = wasm.ValueTypeF64
)

// numericSignatures covers every comparison/arithmetic/conversion opcode not
// already special-cased in step: one (in, out) pair per Opcode, grounded on
// the type rows of spec.md §4.2's instruction table.
func buildNumericSignatures() map[wasm.Opcode]sig {
	m := map[wasm.Opcode]sig{}
	cmp1 := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{t}, []wasm.ValueType{i32}} }
	cmp2 := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{t, t}, []wasm.ValueType{i32}} }
	bin := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{t, t}, []wasm.ValueType{t}} }
	un := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{t}, []wasm.ValueType{t}} }
	conv := func(from, to wasm.ValueType) sig { return sig{[]wasm.ValueType{from}, []wasm.ValueType{to}} }

	m[wasm.OpcodeI32Eqz] = cmp1(i32)
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI32Eq, wasm.OpcodeI32Ne, wasm.OpcodeI32LtS, wasm.OpcodeI32LtU,
		wasm.OpcodeI32GtS, wasm.OpcodeI32GtU, wasm.OpcodeI32LeS, wasm.OpcodeI32LeU,
		wasm.OpcodeI32GeS, wasm.OpcodeI32GeU,
	} {
		m[op] = cmp2(i32)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul, wasm.OpcodeI32DivS,
		wasm.OpcodeI32DivU, wasm.OpcodeI32RemS, wasm.OpcodeI32RemU, wasm.OpcodeI32And,
		wasm.OpcodeI32Or, wasm.OpcodeI32Xor, wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS,
		wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr,
	} {
		m[op] = bin(i32)
	}

	m[wasm.OpcodeI64Eqz] = cmp1(i64)
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI64Eq, wasm.OpcodeI64Ne, wasm.OpcodeI64LtS, wasm.OpcodeI64LtU,
		wasm.OpcodeI64GtS, wasm.OpcodeI64GtU, wasm.OpcodeI64LeS, wasm.OpcodeI64LeU,
		wasm.OpcodeI64GeS, wasm.OpcodeI64GeU,
	} {
		m[op] = cmp2(i64)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul, wasm.OpcodeI64DivS,
		wasm.OpcodeI64DivU, wasm.OpcodeI64RemS, wasm.OpcodeI64RemU, wasm.OpcodeI64And,
		wasm.OpcodeI64Or, wasm.OpcodeI64Xor, wasm.OpcodeI64Shl, wasm.OpcodeI64ShrS,
		wasm.OpcodeI64ShrU, wasm.OpcodeI64Rotl, wasm.OpcodeI64Rotr,
	} {
		m[op] = bin(i64)
	}

	for _, op := range []wasm.Opcode{
		wasm.OpcodeF32Eq, wasm.OpcodeF32Ne, wasm.OpcodeF32Lt, wasm.OpcodeF32Gt,
		wasm.OpcodeF32Le, wasm.OpcodeF32Ge,
	} {
		m[op] = cmp2(f32)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeF64Eq, wasm.OpcodeF64Ne, wasm.OpcodeF64Lt, wasm.OpcodeF64Gt,
		wasm.OpcodeF64Le, wasm.OpcodeF64Ge,
	} {
		m[op] = cmp2(f64)
	}

	for _, op := range []wasm.Opcode{
		wasm.OpcodeF32Abs, wasm.OpcodeF32Neg, wasm.OpcodeF32Ceil, wasm.OpcodeF32Floor,
		wasm.OpcodeF32Trunc, wasm.OpcodeF32Nearest, wasm.OpcodeF32Sqrt,
	} {
		m[op] = un(f32)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul, wasm.OpcodeF32Div,
		wasm.OpcodeF32Min, wasm.OpcodeF32Max, wasm.OpcodeF32Copysign,
	} {
		m[op] = bin(f32)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeF64Abs, wasm.OpcodeF64Neg, wasm.OpcodeF64Ceil, wasm.OpcodeF64Floor,
		wasm.OpcodeF64Trunc, wasm.OpcodeF64Nearest, wasm.OpcodeF64Sqrt,
	} {
		m[op] = un(f64)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul, wasm.OpcodeF64Div,
		wasm.OpcodeF64Min, wasm.OpcodeF64Max, wasm.OpcodeF64Copysign,
	} {
		m[op] = bin(f64)
	}

	// Numeric conversions (spec.md §4.2).
	m[wasm.OpcodeI32WrapI64] = conv(i64, i32)
	m[wasm.OpcodeI32TruncF32S] = conv(f32, i32)
	m[wasm.OpcodeI32TruncF32U] = conv(f32, i32)
	m[wasm.OpcodeI32TruncF64S] = conv(f64, i32)
	m[wasm.OpcodeI32TruncF64U] = conv(f64, i32)
	m[wasm.OpcodeI64ExtendI32S] = conv(i32, i64)
	m[wasm.OpcodeI64ExtendI32U] = conv(i32, i64)
	m[wasm.OpcodeI64TruncF32S] = conv(f32, i64)
	m[wasm.OpcodeI64TruncF32U] = conv(f32, i64)
	m[wasm.OpcodeI64TruncF64S] = conv(f64, i64)
	m[wasm.OpcodeI64TruncF64U] = conv(f64, i64)
	m[wasm.OpcodeF32ConvertI32S] = conv(i32, f32)
	m[wasm.OpcodeF32ConvertI32U] = conv(i32, f32)
	m[wasm.OpcodeF32ConvertI64S] = conv(i64, f32)
	m[wasm.OpcodeF32ConvertI64U] = conv(i64, f32)
	m[wasm.OpcodeF32DemoteF64] = conv(f64, f32)
	m[wasm.OpcodeF64ConvertI32S] = conv(i32, f64)
	m[wasm.OpcodeF64ConvertI32U] = conv(i32, f64)
	m[wasm.OpcodeF64ConvertI64S] = conv(i64, f64)
	m[wasm.OpcodeF64ConvertI64U] = conv(i64, f64)
	m[wasm.OpcodeF64PromoteF32] = conv(f32, f64)
	m[wasm.OpcodeI32ReinterpretF32] = conv(f32, i32)
	m[wasm.OpcodeI64ReinterpretF64] = conv(f64, i64)
	m[wasm.OpcodeF32ReinterpretI32] = conv(i32, f32)
	m[wasm.OpcodeF64ReinterpretI64] = conv(i64, f64)

	// Sign-extension proposal (spec.md §6).
	m[wasm.OpcodeI32Extend8S] = un(i32)
	m[wasm.OpcodeI32Extend16S] = un(i32)
	m[wasm.OpcodeI64Extend8S] = un(i64)
	m[wasm.OpcodeI64Extend16S] = un(i64)
	m[wasm.OpcodeI64Extend32S] = un(i64)

	// Saturating truncation (spec.md §6 "non-trapping float-to-int").
	m[wasm.OpcodeI32TruncSatF32S] = conv(f32, i32)
	m[wasm.OpcodeI32TruncSatF32U] = conv(f32, i32)
	m[wasm.OpcodeI32TruncSatF64S] = conv(f64, i32)
	m[wasm.OpcodeI32TruncSatF64U] = conv(f64, i32)
	m[wasm.OpcodeI64TruncSatF32S] = conv(f32, i64)
	m[wasm.OpcodeI64TruncSatF32U] = conv(f32, i64)
	m[wasm.OpcodeI64TruncSatF64S] = conv(f64, i64)
	m[wasm.OpcodeI64TruncSatF64U] = conv(f64, i64)

	return m
}

// memorySignatures covers every load/store opcode; all of them also consume
// an (align, offset) immediate pair handled by the caller before the operand
// types below are checked.
func buildMemorySignatures() map[wasm.Opcode]sig {
	m := map[wasm.Opcode]sig{}
	load := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{i32}, []wasm.ValueType{t}} }
	store := func(t wasm.ValueType) sig { return sig{[]wasm.ValueType{i32, t}, nil} }

	for _, op := range []wasm.Opcode{
		wasm.OpcodeI32Load, wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U,
		wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
	} {
		m[op] = load(i32)
	}
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI64Load, wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U,
		wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U, wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
	} {
		m[op] = load(i64)
	}
	m[wasm.OpcodeF32Load] = load(f32)
	m[wasm.OpcodeF64Load] = load(f64)

	m[wasm.OpcodeI32Store] = store(i32)
	m[wasm.OpcodeI32Store8] = store(i32)
	m[wasm.OpcodeI32Store16] = store(i32)
	m[wasm.OpcodeI64Store] = store(i64)
	m[wasm.OpcodeI64Store8] = store(i64)
	m[wasm.OpcodeI64Store16] = store(i64)
	m[wasm.OpcodeI64Store32] = store(i64)
	m[wasm.OpcodeF32Store] = store(f32)
	m[wasm.OpcodeF64Store] = store(f64)
	return m
}

var numericSignatures = buildNumericSignatures()
var memorySignatures = buildMemorySignatures()

var signExtensionOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Extend8S:  true,
	wasm.OpcodeI32Extend16S: true,
	wasm.OpcodeI64Extend8S:  true,
	wasm.OpcodeI64Extend16S: true,
	wasm.OpcodeI64Extend32S: true,
}
