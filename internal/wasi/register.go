package wasi

import "github.com/zwasm/zwasm/internal/wasm"

// wasiModuleName is the import module name every guest compiled against
// wasi_snapshot_preview1 uses (spec.md §6 Host-call ABI).
const wasiModuleName = "wasi_snapshot_preview1"

// i32 and i64 are the only value types this ABI's functions use: every
// pointer, length, fd, and errno is an i32; the i64s are clock_time_get's
// precision and fd_seek's offset parameters.
var i32 = wasm.ValueTypeI32
var i64 = wasm.ValueTypeI64

func sig(params []wasm.ValueType, results ...wasm.ValueType) *wasm.FunctionType {
	return &wasm.FunctionType{Params: params, Results: results}
}

func p(n int) []wasm.ValueType {
	out := make([]wasm.ValueType, n)
	for i := range out {
		out[i] = i32
	}
	return out
}

// signatures is the wasi_snapshot_preview1 ABI this dispatch table
// implements. Every function except proc_exit returns one i32 errno; the
// only i64 parameters are clock_time_get's precision and fd_seek's offset.
var signatures = map[string]*wasm.FunctionType{
	"args_get":          sig(p(2), i32),
	"args_sizes_get":    sig(p(2), i32),
	"environ_get":       sig(p(2), i32),
	"environ_sizes_get": sig(p(2), i32),
	"clock_time_get":    sig([]wasm.ValueType{i32, i64, i32}, i32),
	"clock_res_get":     sig(p(2), i32),
	"random_get":        sig(p(2), i32),
	"proc_exit":         sig(p(1)),
	"fd_read":           sig(p(4), i32),
	"fd_write":          sig(p(4), i32),
	"fd_close":          sig(p(1), i32),
	"fd_seek":           sig([]wasm.ValueType{i32, i64, i32, i32}, i32),
	"path_open":         sig(p(9), i32),
	"poll_oneoff":       sig(p(4), i32),
	"sock_accept":       sig(p(3), i32),
}

// NewHostInstance builds the Instance that exports every wasi_snapshot_preview1
// function as a FunctionKindHost FunctionInstance, registers it under
// wasiModuleName in ns, and returns it so the CLI can also read back args/env
// for debugging. Guest modules importing "wasi_snapshot_preview1.*" resolve
// against this Instance through the ordinary Store.resolveImports path — no
// special-casing needed beyond this one-time registration (spec.md §3
// "imports resolve uniformly, host or guest").
func NewHostInstance(store *wasm.Store, ns *wasm.Namespace, args, env []string) (*wasm.Instance, error) {
	mod := &Module{Args: args, Env: env}
	funcs := mod.HostFuncs()

	inst := &wasm.Instance{
		Name:    wasiModuleName,
		Store:   store,
		Exports: map[string]*wasm.ExportInstance{},
	}
	for _, name := range hostFuncOrder {
		fn := funcs[name]
		ft, ok := signatures[name]
		if !ok {
			continue // defensive: every name in hostFuncOrder has an entry in signatures
		}
		idx := store.AddFunc(&wasm.FunctionInstance{
			DebugName:  name,
			Kind:       wasm.FunctionKindHost,
			Type:       ft,
			ModuleName: wasiModuleName,
			Host:       fn,
		})
		localIdx := wasm.Index(len(inst.FuncAddrs))
		inst.FuncAddrs = append(inst.FuncAddrs, idx)
		inst.Exports[name] = &wasm.ExportInstance{Type: wasm.ExternTypeFunc, FuncIdx: localIdx}
	}
	if err := ns.Register(wasiModuleName, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// hostFuncOrder fixes iteration order so repeated calls assign the same
// FuncAddrs layout (map iteration in HostFuncs would otherwise be
// nondeterministic, which would make inspect/trace output unstable across
// runs of the same binary).
var hostFuncOrder = []string{
	"args_get", "args_sizes_get", "environ_get", "environ_sizes_get",
	"clock_time_get", "clock_res_get", "random_get", "proc_exit",
	"fd_read", "fd_write", "fd_close", "fd_seek", "path_open",
	"poll_oneoff", "sock_accept",
}
