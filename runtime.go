// Package zwasm is the embedder-facing entry point: decode a Wasm binary,
// validate it, instantiate it against a Store, and invoke its exports. It
// wires together internal/wasm (Store/Instance), internal/interpreter
// (Tier 2, the only wasm.Engine), and internal/jit (Tier 3 promotion) per
// spec.md §2's "bytes -> decode -> validate -> lower-to-RegIR -> instantiate
// -> invoke" pipeline, matching the teacher's own root-package shape
// (config.go/builder.go/runtime identifiers) adapted to this runtime's
// Store-owns-arenas design (spec.md §9).
package zwasm

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/zwasm/zwasm/internal/compilationcache"
	"github.com/zwasm/zwasm/internal/interpreter"
	"github.com/zwasm/zwasm/internal/jit"
	"github.com/zwasm/zwasm/internal/regir"
	"github.com/zwasm/zwasm/internal/wasi"
	"github.com/zwasm/zwasm/internal/wasm"
	"github.com/zwasm/zwasm/internal/wasm/binary"
	"github.com/zwasm/zwasm/internal/wasm/validator"
)

// Runtime owns one Store and its default Namespace; every CompiledModule
// instantiated through it shares that Store's memories/tables/globals/funcs
// arena (spec.md §3 Store, "process-wide collection").
type Runtime struct {
	cfg   *runtimeConfig
	store *wasm.Store
	ns    *wasm.Namespace
	eng   *interpreter.Engine
}

// NewRuntime constructs a Runtime from cfg (nil means NewRuntimeConfig()'s
// platform default).
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	rc := cfg.(*runtimeConfig)
	store, ns := wasm.NewStore(rc.features)
	r := &Runtime{cfg: rc, store: store, ns: ns, eng: interpreter.New()}
	if rc.compilerTier {
		store.RequestPromotion = r.requestPromotion
	}
	return r
}

// requestPromotion is wired to Store.RequestPromotion (spec.md §4.4
// Hotness): compile fn's already-lowered RegFunc to native code and stash
// the result on FunctionInstance.JIT for subsequent calls to pick up. A
// compile failure (ineligible opcode — see the internal/jit section of DESIGN.md) silently
// leaves fn on the interpreter forever, per spec.md §7's "JIT bailouts are
// not errors".
func (r *Runtime) requestPromotion(fn *wasm.FunctionInstance) {
	if fn.JIT != nil {
		return
	}
	rf, ok := fn.RegFunc.(*regir.RegFunc)
	if !ok || rf == nil {
		return
	}
	if code, ok := jit.Compile(rf); ok {
		fn.JIT = code
	}
}

// RegisterWASI instantiates the wasi_snapshot_preview1 host module in this
// Runtime's default Namespace, under the args/env spec.md §6's `run` CLI
// surface passes through (--env repeated K=V entries). A guest module that
// imports from "wasi_snapshot_preview1" must be instantiated after this
// call, matching the teacher's own "host module registered before guest
// Instantiate" ordering. Calling it a second time on the same Runtime fails,
// since the name is already taken in the Namespace.
func (r *Runtime) RegisterWASI(args, env []string) (*wasm.Instance, error) {
	inst, err := wasi.NewHostInstance(r.store, r.ns, args, env)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// CompiledModule is a decoded and validated Module, ready to instantiate.
// Immutable and safe to instantiate repeatedly (spec.md §3 Module
// invariant: "Immutable after decode").
type CompiledModule struct {
	mod *wasm.Module
}

// CompileModule decodes wasmBytes and runs the validator over every
// function body, global initializer, and element/data offset expression
// (spec.md §4.1, §4.2). A decode or validation failure is fatal, matching
// spec.md §7's "fatal at load time" taxonomy.
func (r *Runtime) CompileModule(wasmBytes []byte) (*CompiledModule, error) {
	mod, err := binary.DecodeModule(bytes.NewReader(wasmBytes), r.cfg.features)
	if err != nil {
		return nil, err
	}

	if r.cfg.cache == nil {
		if verr := validator.ValidateModule(mod, r.cfg.features); verr != nil {
			return nil, verr
		}
		return &CompiledModule{mod: mod}, nil
	}

	key := compilationcache.Key(sha256.Sum256(wasmBytes))
	if hit, ok, gerr := r.cfg.cache.Get(key); gerr == nil && ok {
		hit.Close()
		return &CompiledModule{mod: mod}, nil
	}
	if verr := validator.ValidateModule(mod, r.cfg.features); verr != nil {
		return nil, verr
	}
	_ = r.cfg.cache.Add(key, io.LimitReader(bytes.NewReader(nil), 0))
	return &CompiledModule{mod: mod}, nil
}

// Definitions exposes read-only introspection of the compiled module's
// imports/exports/types, backing `zwasm inspect` (SPEC_FULL.md §3
// FunctionDefinition/MemoryDefinition).
func (c *CompiledModule) Definitions() wasm.ModuleDefinition {
	return wasm.NewModuleDefinition(c.mod)
}

// ModuleConfig carries the per-instantiation knobs spec.md §6's CLI surface
// exposes: the module's registered name (for `--link NAME=PATH` / the batch
// protocol's `invoke_on MOD`) and its WASI Capabilities gate (spec.md §3).
type ModuleConfig struct {
	Name         string
	Capabilities wasm.Capabilities
}

// Module is an instantiated CompiledModule: exported functions callable via
// Function.Call, sharing the Runtime's Store.
type Module struct {
	rt   *Runtime
	inst *wasm.Instance
}

// InstantiateModule resolves compiled's imports against every module
// already registered in the Runtime's default Namespace, allocates its
// memories/tables/globals/functions into the Store, applies active
// element/data segments, and runs its start function if present (spec.md
// §4.1 instantiation algorithm, delegated to wasm.Store.Instantiate).
func (r *Runtime) InstantiateModule(compiled *CompiledModule, cfg ModuleConfig) (*Module, error) {
	inst, err := r.store.Instantiate(r.ns, r.eng, compiled.mod, wasm.InstantiateConfig{
		Name:         cfg.Name,
		Capabilities: cfg.Capabilities,
	})
	if err != nil {
		return nil, err
	}
	return &Module{rt: r, inst: inst}, nil
}

// Close marks inst closed and records exitCode (see wasm.Instance.Closed);
// it frees nothing. The Store itself (and any sibling
// Instance sharing it) is unaffected — matching spec.md §3's "Store
// exclusively owns the cells; Instances hold weak indices only".
func (m *Module) Close(exitCode uint32) { m.inst.CloseWithExitCode(exitCode) }

// ExportedFunction looks up name among inst's exports, returning nil if
// absent or not a function.
func (m *Module) ExportedFunction(name string) *Function {
	exp := m.inst.Export(name)
	if exp == nil || exp.Type != wasm.ExternTypeFunc {
		return nil
	}
	fn := m.inst.FuncAt(exp.FuncIdx)
	if fn == nil {
		return nil
	}
	return &Function{rt: m.rt, inst: m.inst, fn: fn}
}

// ExportedGlobal looks up name among inst's exports, returning (0, false)
// if absent or not a global — backs the batch protocol's `get`/`get_on`
// (spec.md §6).
func (m *Module) ExportedGlobal(name string) (uint64, bool) {
	exp := m.inst.Export(name)
	if exp == nil || exp.Type != wasm.ExternTypeGlobal {
		return 0, false
	}
	g := m.inst.GlobalAt(exp.GlobalIdx)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// Function is a callable export, dispatched to whichever tier currently
// owns fn: the JIT's native blob if promotion already happened (spec.md
// §4.4 "subsequent calls take a fast-path into native code"), else the
// interpreter.
type Function struct {
	rt   *Runtime
	inst *wasm.Instance
	fn   *wasm.FunctionInstance
}

// Type returns the function's signature.
func (f *Function) Type() (params, results []wasm.ValueType) {
	return f.fn.Type.Params, f.fn.Type.Results
}

// Call invokes f with args (one u64 per parameter, reinterpreted per
// api.ValueType — EncodeF32/EncodeF64 etc. for floats), returning one u64
// per result or a trap (spec.md §4.4 Call sequence / §7 Runtime traps).
func (f *Function) Call(args []uint64) ([]uint64, error) {
	vm := wasm.NewVMContext(f.rt.store, f.inst)
	if f.rt.cfg.fuel > 0 {
		fuel := f.rt.cfg.fuel
		vm.Fuel = &fuel
	}
	vm.Profile = f.rt.cfg.profile
	vm.Trace = f.rt.cfg.trace

	if code, ok := f.fn.JIT.(*jit.Code); ok && code != nil {
		results, err := jit.Call(vm, f.fn, code, args)
		if err != nil {
			return nil, err
		}
		return results, nil
	}
	results, err := f.rt.eng.Call(vm, f.fn, args)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// fmtErr is a small helper so CLI-facing callers (cmd/zwasm) can render a
// *wasm.WasmError the same way regardless of which layer raised it (spec.md
// §7 "error: <context>: <kind>").
func fmtErr(err error) string {
	if werr, ok := err.(*wasm.WasmError); ok {
		return werr.Error()
	}
	return fmt.Sprintf("%v", err)
}
