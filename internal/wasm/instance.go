package wasm

import (
	"encoding/binary"
	"fmt"
)

// Engine lowers and executes a function body; internal/interpreter and
// internal/jit each provide one. Kept as an interface here so internal/wasm
// never imports either, avoiding the dependency cycle spec.md §9 flags.
type Engine interface {
	// CompileFunction lowers fn's Code body to the engine's internal
	// representation, returning an opaque handle stored on the
	// FunctionInstance (RegFunc for the interpreter, JIT.Code once hot).
	CompileFunction(mod *Module, typ *FunctionType, code *Code) (interface{}, error)

	// Call invokes a previously compiled function with the given arguments,
	// returning results or a trap.
	Call(vm *VMContext, fn *FunctionInstance, args []uint64) ([]uint64, *WasmError)
}

// InstantiateConfig carries the per-instantiation knobs spec.md §6 exposes
// as CLI/embedder options: which imports to resolve from, and the
// Capabilities gating host-call dispatch.
type InstantiateConfig struct {
	Name         string // defaults to Module's declared name if empty
	Capabilities Capabilities
}

// Instantiate decodes no further (the Module is already validated) and
// performs the instantiation algorithm of spec.md §4.1/§3: resolve imports
// against ns, allocate memories/tables/globals/functions into the Store's
// arenas, apply active element and data segments, and run the start
// function if present. Mirrors the teacher's Store.instantiate control flow
// (resolveImports -> buildGlobals -> buildMemory -> buildTable -> buildExports
// -> addSections -> executeStart).
func (s *Store) Instantiate(ns *Namespace, engine Engine, mod *Module, cfg InstantiateConfig) (*Instance, *WasmError) {
	name := cfg.Name
	if name == "" {
		name = mod.String()
	}

	inst := &Instance{
		Name:         name,
		Module:       mod,
		Store:        s,
		Exports:      map[string]*ExportInstance{},
		Capabilities: cfg.Capabilities,
	}

	if err := s.resolveImports(ns, mod, inst); err != nil {
		return nil, err
	}

	if err := s.buildGlobals(mod, inst); err != nil {
		return nil, err
	}
	s.buildMemories(mod, inst)
	s.buildTables(mod, inst)
	if err := s.buildFunctions(engine, mod, inst); err != nil {
		return nil, err
	}
	if err := s.buildExports(mod, inst); err != nil {
		return nil, err
	}
	if err := s.applyElements(mod, inst); err != nil {
		return nil, err
	}
	if err := s.applyData(mod, inst); err != nil {
		return nil, err
	}

	if mod.StartSection != nil {
		fn := inst.FuncAt(*mod.StartSection)
		if fn == nil {
			return nil, NewError(ErrInvalidStartFunction, "start function index out of range")
		}
		vm := NewVMContext(s, inst)
		if _, callErr := engine.Call(vm, fn, nil); callErr != nil {
			return nil, callErr
		}
	}

	if err := ns.Register(name, inst); err != nil {
		return nil, err.(*WasmError)
	}
	return inst, nil
}

// resolveImports binds each Import entry in mod to an already-registered
// module's export in ns, appending the resolved Store index to the
// appropriate *Addrs slice on inst, in declaration order (spec.md §4.1:
// imports occupy index-space slots 0..importCount-1, before any locally
// defined entries of the same kind).
func (s *Store) resolveImports(ns *Namespace, mod *Module, inst *Instance) *WasmError {
	for _, imp := range mod.ImportSection {
		src, ok := ns.Module(imp.Module)
		if !ok {
			return NewError(ErrImportNotFound, fmt.Sprintf("module %q not instantiated", imp.Module))
		}
		exp := src.Export(imp.Name)
		if exp == nil || exp.Type != imp.Type {
			return NewError(ErrImportNotFound, fmt.Sprintf("%s.%s: no matching export", imp.Module, imp.Name))
		}
		switch imp.Type {
		case ExternTypeFunc:
			srcFn := src.FuncAt(exp.FuncIdx)
			wantType := mod.TypeSection[imp.DescFunc]
			if !srcFn.Type.EqualsSignature(wantType.Params, wantType.Results) {
				return NewError(ErrLinkMismatch, fmt.Sprintf("%s.%s: function signature mismatch", imp.Module, imp.Name))
			}
			inst.FuncAddrs = append(inst.FuncAddrs, src.FuncAddrs[exp.FuncIdx])
		case ExternTypeMemory:
			inst.MemAddrs = append(inst.MemAddrs, src.MemAddrs[exp.MemIdx])
		case ExternTypeTable:
			inst.TableAddrs = append(inst.TableAddrs, src.TableAddrs[exp.TableIdx])
		case ExternTypeGlobal:
			srcGlobal := src.GlobalAt(exp.GlobalIdx)
			if srcGlobal.Type.ValType != imp.DescGlobal.ValType {
				return NewError(ErrLinkMismatch, fmt.Sprintf("%s.%s: global type mismatch", imp.Module, imp.Name))
			}
			inst.GlobalAddrs = append(inst.GlobalAddrs, src.GlobalAddrs[exp.GlobalIdx])
		}
	}
	return nil
}

// evalConstExprStep evaluates a single constant-expression instruction given
// the values already on the (extended-const) evaluation stack, returning the
// value it pushes.
func (inst *Instance) evalConstExprStep(op Opcode, data []byte, stack []uint64) (uint64, *WasmError) {
	switch op {
	case OpcodeI32Const, OpcodeI64Const:
		v, _, _ := decodeSLEB(data)
		return uint64(v), nil
	case OpcodeF32Const:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	case OpcodeF64Const:
		return binary.LittleEndian.Uint64(data), nil
	case OpcodeGlobalGet:
		idx, _, _ := decodeULEB(data)
		g := inst.GlobalAt(Index(idx))
		if g == nil {
			return 0, NewError(ErrConstExprEvalFailed, "global.get index out of range in constant expression")
		}
		return g.Get(), nil
	case OpcodeRefNull:
		return 0, nil
	case OpcodeRefFunc:
		idx, _, _ := decodeULEB(data)
		return uint64(idx), nil
	case OpcodeI32Add, OpcodeI32Sub, OpcodeI32Mul, OpcodeI64Add, OpcodeI64Sub, OpcodeI64Mul:
		if len(stack) < 2 {
			return 0, NewError(ErrConstExprEvalFailed, "extended-const arithmetic underflow")
		}
		a, b := stack[len(stack)-2], stack[len(stack)-1]
		switch op {
		case OpcodeI32Add:
			return uint64(uint32(a) + uint32(b)), nil
		case OpcodeI32Sub:
			return uint64(uint32(a) - uint32(b)), nil
		case OpcodeI32Mul:
			return uint64(uint32(a) * uint32(b)), nil
		case OpcodeI64Add:
			return a + b, nil
		case OpcodeI64Sub:
			return a - b, nil
		default: // OpcodeI64Mul
			return a * b, nil
		}
	default:
		return 0, NewError(ErrConstExprEvalFailed, fmt.Sprintf("opcode 0x%02x not valid in a constant expression", op))
	}
}

// evalConstExpr evaluates a global/element/data-offset constant expression
// (spec.md §4.1): global.get of an already-resolved import, one of the
// i32/i64/f32/f64 .const opcodes, ref.null/ref.func, or (under the
// extended-const proposal, spec.md §4.2) a chain of those followed by
// i32/i64 add/sub/mul folds. Arithmetic opcodes pop their two operands and
// push the result, mirroring the validator/interpreter stack discipline.
func (inst *Instance) evalConstExpr(ce ConstantExpression) (uint64, *WasmError) {
	v, err := inst.evalConstExprStep(ce.Opcode, ce.Data, nil)
	if err != nil {
		return 0, err
	}
	stack := []uint64{v}
	for _, step := range ce.Extra {
		switch step.Opcode {
		case OpcodeI32Add, OpcodeI32Sub, OpcodeI32Mul, OpcodeI64Add, OpcodeI64Sub, OpcodeI64Mul:
			r, err := inst.evalConstExprStep(step.Opcode, step.Data, stack)
			if err != nil {
				return 0, err
			}
			stack = append(stack[:len(stack)-2], r)
		default:
			r, err := inst.evalConstExprStep(step.Opcode, step.Data, stack)
			if err != nil {
				return 0, err
			}
			stack = append(stack, r)
		}
	}
	if len(stack) != 1 {
		return 0, NewError(ErrConstExprEvalFailed, "constant expression did not reduce to a single value")
	}
	return stack[0], nil
}

func (s *Store) buildGlobals(mod *Module, inst *Instance) *WasmError {
	for _, g := range mod.GlobalSection {
		v, err := inst.evalConstExpr(g.Init)
		if err != nil {
			return err
		}
		idx := s.AddGlobal(&GlobalInstance{Type: g.Type, Val: v})
		inst.GlobalAddrs = append(inst.GlobalAddrs, idx)
	}
	return nil
}

func (s *Store) buildMemories(mod *Module, inst *Instance) {
	for _, mt := range mod.MemorySection {
		mem := &LinearMemory{
			Buffer: make([]byte, MemoryPagesToBytesNum(mt.Min)),
			Min:    mt.Min,
			Max:    mt.Max,
		}
		idx := s.AddMemory(mem)
		inst.MemAddrs = append(inst.MemAddrs, idx)
	}
}

func (s *Store) buildTables(mod *Module, inst *Instance) {
	for _, tt := range mod.TableSection {
		t := &Table{
			References: make([]uintptr, tt.Min),
			Type:       tt.ElemType,
			Max:        tt.Max,
			Min:        tt.Min,
		}
		idx := s.AddTable(t)
		inst.TableAddrs = append(inst.TableAddrs, idx)
	}
}

func (s *Store) buildFunctions(engine Engine, mod *Module, inst *Instance) *WasmError {
	for i, code := range mod.CodeSection {
		funcIdx := Index(i)
		typ := mod.TypeOfFunction(mod.ImportFuncCount() + funcIdx)
		fn := &FunctionInstance{
			Kind:       FunctionKindWasm,
			Type:       typ,
			ModuleName: inst.Name,
			Idx:        mod.ImportFuncCount() + funcIdx,
		}
		compiled, err := engine.CompileFunction(mod, typ, code)
		if err != nil {
			return WrapError(ErrInvalidFunctionBody, fmt.Sprintf("function %d", fn.Idx), err)
		}
		fn.RegFunc = compiled
		storeIdx := s.AddFunc(fn)
		inst.FuncAddrs = append(inst.FuncAddrs, storeIdx)
	}
	return nil
}

func (s *Store) buildExports(mod *Module, inst *Instance) *WasmError {
	for _, exp := range mod.ExportSection {
		if _, dup := inst.Exports[exp.Name]; dup {
			return NewError(ErrDuplicateExportName, exp.Name)
		}
		inst.Exports[exp.Name] = &ExportInstance{
			Type:      exp.Type,
			FuncIdx:   exp.Index,
			MemIdx:    exp.Index,
			TableIdx:  exp.Index,
			GlobalIdx: exp.Index,
		}
	}
	return nil
}

// applyElements copies each active ElementSegment's resolved function
// references into its target table (spec.md §4.1 instantiation step 9),
// and snapshots every segment (active and passive) into inst.ElementInstances
// so table.init/elem.drop can address them later.
func (s *Store) applyElements(mod *Module, inst *Instance) *WasmError {
	inst.ElementInstances = make([][]uintptr, len(mod.ElementSection))
	for i, seg := range mod.ElementSection {
		refs := make([]uintptr, len(seg.Init))
		for j, fnIdx := range seg.Init {
			if fnIdx == MissingElem {
				refs[j] = 0
				continue
			}
			refs[j] = uintptr(inst.FuncAddrs[fnIdx])
		}
		inst.ElementInstances[i] = refs

		if seg.Mode != ElementModeActive {
			continue
		}
		offVal, err := inst.evalConstExpr(seg.OffsetExpr)
		if err != nil {
			return err
		}
		t := inst.TableAt(seg.TableIndex)
		if t == nil || !t.Init(refs, uint32(offVal), 0, uint32(len(refs))) {
			return NewError(ErrElementInitOob, fmt.Sprintf("element segment %d", i))
		}
	}
	return nil
}

// applyData copies each active DataSegment's bytes into its target memory
// (spec.md §4.1 instantiation step 10), and snapshots every segment so
// memory.init/data.drop can address them later.
func (s *Store) applyData(mod *Module, inst *Instance) *WasmError {
	inst.DataInstances = make([][]byte, len(mod.DataSection))
	for i, seg := range mod.DataSection {
		inst.DataInstances[i] = seg.Init

		if seg.Passive {
			continue
		}
		offVal, err := inst.evalConstExpr(seg.OffsetExpr)
		if err != nil {
			return err
		}
		mem := inst.MemoryAt(seg.MemoryIndex)
		if mem == nil || !mem.Write(uint32(offVal), seg.Init) {
			return NewError(ErrMemoryInitOob, fmt.Sprintf("data segment %d", i))
		}
	}
	return nil
}

// decodeULEB/decodeSLEB are tiny local LEB128 readers for constant-expression
// immediates; internal/wasm cannot import internal/leb128's io.ByteReader
// based API without wrapping every []byte in a reader, so these inline the
// handful of lines needed here (mirrors the teacher's own wasm.DecodeUint32
// duplication between internal/leb128 and call sites that already hold a
// []byte slice rather than an io.Reader).
func decodeULEB(b []byte) (v uint64, n int, ok bool) {
	var shift uint
	for n < len(b) {
		c := b[n]
		n++
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, n, true
		}
		shift += 7
	}
	return 0, n, false
}

func decodeSLEB(b []byte) (v int64, n int, ok bool) {
	var shift uint
	var c byte
	for n < len(b) {
		c = b[n]
		n++
		v |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 64 && c&0x40 != 0 {
		v |= -1 << shift
	}
	return v, n, true
}
