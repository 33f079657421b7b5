package wasm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FunctionKind distinguishes a Wasm-defined function from a host import.
type FunctionKind byte

const (
	FunctionKindWasm FunctionKind = iota
	FunctionKindHost
)

// HostFunc is the runtime representation of a host (Go) function import,
// invoked by the interpreter's call dispatch (spec.md §4.4 step 3) and by
// the JIT trampoline's slow path (spec.md §4.6 step 5).
type HostFunc func(vm *VMContext, args []uint64, results []uint64) *WasmError

// FunctionInstance is a function instance per spec.md §3 Store: either a
// RegIR-compiled Wasm function or a host function, identified by a stable
// Store-wide index (the arena+index pattern spec.md §9 calls for instead of
// raw pointers between Module/Store/Instance).
type FunctionInstance struct {
	DebugName  string
	Kind       FunctionKind
	Type       *FunctionType
	ModuleName string
	Idx        Index // position in the defining module's func index namespace, imports first

	Host HostFunc // set when Kind == FunctionKindHost

	// RegFunc and JIT are populated by the lowering pass / JIT compiler
	// after decode; RegFunc is always present for Kind == FunctionKindWasm,
	// JIT starts nil and is set once CallCount crosses HotThreshold.
	RegFunc interface{} // *regir.RegFunc; interface{} here avoids an import cycle
	JIT     interface{} // *jit.Code

	CallCount uint64 // hotness counter, spec.md §4.4
}

// Store is the process-wide, exclusive owner of every instantiated memory,
// table, global, and function (spec.md §3 Store, §9 ownership). Instances
// hold only indices into these arenas; dropping the Store invalidates every
// Instance. Not internally synchronized beyond the mutex guarding namespace
// bookkeeping (spec.md §5: "a Store and its Instances are not internally
// synchronized" beyond that).
type Store struct {
	EnabledFeatures Features

	Memories []*LinearMemory
	Tables   []*Table
	Globals  []*GlobalInstance
	Funcs    []*FunctionInstance

	typeIDs map[string]FunctionTypeID

	namespaces []*Namespace
	mux        sync.RWMutex

	// RequestPromotion is called by the interpreter (spec.md §4.4 Hotness)
	// once a function's CallCount crosses HOT_THRESHOLD, or its loop
	// back-edge counter crosses BACK_EDGE_THRESHOLD. nil (the default) means
	// no JIT tier is wired up and every call stays interpreted. Left as a
	// func field rather than an Engine method so internal/wasm never imports
	// internal/jit — the same import-cycle dodge FunctionInstance.JIT uses.
	RequestPromotion func(fn *FunctionInstance)
}

// FunctionTypeID is a per-Store unique id for a FunctionType, used for fast
// indirect-call signature comparisons (spec.md §3).
type FunctionTypeID uint32

// NewStore constructs an empty Store plus its default Namespace.
func NewStore(features Features) (*Store, *Namespace) {
	s := &Store{EnabledFeatures: features, typeIDs: map[string]FunctionTypeID{}}
	ns := newNamespace(s)
	s.namespaces = append(s.namespaces, ns)
	return s, ns
}

// typeID returns (assigning if necessary) the FunctionTypeID for t.
func (s *Store) typeID(t *FunctionType) FunctionTypeID {
	key := t.String()
	if id, ok := s.typeIDs[key]; ok {
		return id
	}
	id := FunctionTypeID(len(s.typeIDs))
	s.typeIDs[key] = id
	return id
}

// AddMemory appends mem to the Store's arena, returning its index.
func (s *Store) AddMemory(mem *LinearMemory) Index {
	s.Memories = append(s.Memories, mem)
	return Index(len(s.Memories) - 1)
}

// AddTable appends t to the Store's arena, returning its index.
func (s *Store) AddTable(t *Table) Index {
	s.Tables = append(s.Tables, t)
	return Index(len(s.Tables) - 1)
}

// AddGlobal appends g to the Store's arena, returning its index.
func (s *Store) AddGlobal(g *GlobalInstance) Index {
	s.Globals = append(s.Globals, g)
	return Index(len(s.Globals) - 1)
}

// AddFunc appends f to the Store's arena, returning its index.
func (s *Store) AddFunc(f *FunctionInstance) Index {
	s.Funcs = append(s.Funcs, f)
	return Index(len(s.Funcs) - 1)
}

// Namespace groups a set of named, mutually importable ModuleInstances
// (spec.md §3 supplement, SPEC_FULL.md §3: multi-Store linking for the
// batch protocol's `invoke_on MOD`). A Store has exactly one Namespace,
// created by NewStore; `--link NAME=PATH` modules are registered in it by name.
type Namespace struct {
	id      uuid.UUID
	store   *Store
	mux     sync.RWMutex
	modules map[string]*Instance
}

func newNamespace(store *Store) *Namespace {
	return &Namespace{id: uuid.New(), store: store, modules: map[string]*Instance{}}
}

// ID is a debug identifier surfaced in trace output and panic messages.
func (n *Namespace) ID() uuid.UUID { return n.id }

// Module looks up a previously instantiated module by name.
func (n *Namespace) Module(name string) (*Instance, bool) {
	n.mux.RLock()
	defer n.mux.RUnlock()
	inst, ok := n.modules[name]
	return inst, ok
}

// Register makes inst visible for import/linking under name, failing if the
// name is already taken (mirrors the teacher's requireModuleName check).
func (n *Namespace) Register(name string, inst *Instance) error {
	n.mux.Lock()
	defer n.mux.Unlock()
	if _, exists := n.modules[name]; exists {
		return NewError(ErrLinkMismatch, fmt.Sprintf("module %q already instantiated in this namespace", name))
	}
	n.modules[name] = inst
	return nil
}

// ExportInstance binds an export name to one of the four extern kinds.
type ExportInstance struct {
	Type      ExternType
	FuncIdx   Index
	MemIdx    Index
	TableIdx  Index
	GlobalIdx Index
}

// Instance is the per-module runtime binding (spec.md §3 Instance): indices
// into the owning Store for each of this module's memories/tables/globals,
// plus a read-only reference to the decoded Module.
type Instance struct {
	Name   string
	Module *Module
	Store  *Store

	MemAddrs    []Index
	TableAddrs  []Index
	GlobalAddrs []Index
	FuncAddrs   []Index

	Exports map[string]*ExportInstance

	// DataInstances / ElementInstances back bulk-memory `data.drop` /
	// `elem.drop`; dropping sets the entry to nil.
	DataInstances    [][]byte
	ElementInstances [][]uintptr

	// Capabilities gates WASI host-call dispatch (spec.md §3, §6).
	Capabilities Capabilities

	exitCode uint32
	closed   bool
}

// Memory returns this instance's first (and, pre multi-memory, only)
// memory, or nil if it declares none.
func (i *Instance) Memory() *LinearMemory {
	if len(i.MemAddrs) == 0 {
		return nil
	}
	return i.Store.Memories[i.MemAddrs[0]]
}

// MemoryAt returns the memory at module-local index idx (multi-memory).
func (i *Instance) MemoryAt(idx Index) *LinearMemory {
	if int(idx) >= len(i.MemAddrs) {
		return nil
	}
	return i.Store.Memories[i.MemAddrs[idx]]
}

// TableAt returns the table at module-local index idx.
func (i *Instance) TableAt(idx Index) *Table {
	if int(idx) >= len(i.TableAddrs) {
		return nil
	}
	return i.Store.Tables[i.TableAddrs[idx]]
}

// GlobalAt returns the global at module-local index idx.
func (i *Instance) GlobalAt(idx Index) *GlobalInstance {
	if int(idx) >= len(i.GlobalAddrs) {
		return nil
	}
	return i.Store.Globals[i.GlobalAddrs[idx]]
}

// FuncAt returns the function at module-local index idx (imports first).
func (i *Instance) FuncAt(idx Index) *FunctionInstance {
	if int(idx) >= len(i.FuncAddrs) {
		return nil
	}
	return i.Store.Funcs[i.FuncAddrs[idx]]
}

// Export resolves a name to its ExportInstance, or nil if unexported.
func (i *Instance) Export(name string) *ExportInstance { return i.Exports[name] }

// CloseWithExitCode marks the instance closed and records exitCode, both
// reported by Closed. It frees nothing, and Function.Call does not consult it.
func (i *Instance) CloseWithExitCode(exitCode uint32) {
	i.closed = true
	i.exitCode = exitCode
}

func (i *Instance) Closed() (closed bool, exitCode uint32) { return i.closed, i.exitCode }

// Capabilities gates WASI host-call dispatch without reaching the operating
// system (spec.md §3 Capabilities, §8 property 6).
type Capabilities struct {
	AllowRead  bool
	AllowWrite bool
	AllowEnv   bool
	AllowPath  bool
	AllowFD    bool
}

// VMContext is the per-invocation execution context threaded through the
// interpreter, JIT trampoline, and host-call dispatch: it is the "vm
// pointer" reserved slot of spec.md §3's Execution frame.
type VMContext struct {
	Store    *Store
	Instance *Instance

	// RegStack is the single contiguous register stack shared by every
	// frame of this VM, sized to at least 2^20 u64 slots (spec.md §3).
	RegStack []uint64
	RegPtr   uint32

	Fuel    *uint64 // nil means unmetered
	Profile *Profile
	Trace   *TraceConfig
}

// RegStackSize is the minimum register-stack slot count spec.md §3 requires.
const RegStackSize = 1 << 20

// NewVMContext allocates a fresh register stack for one VM (one per thread,
// spec.md §5).
func NewVMContext(store *Store, inst *Instance) *VMContext {
	return &VMContext{Store: store, Instance: inst, RegStack: make([]uint64, RegStackSize)}
}

// Profile counts executions of each opcode when enabled (spec.md §4.4
// Profile mode); enabling it disables JIT promotion so counts stay
// meaningful.
type Profile struct {
	OpCounts map[uint16]uint64
}

// TraceConfig is passed explicitly rather than set on a global, so tracing
// is zero-cost when nil (spec.md §9 Profile/Trace configuration design note).
type TraceConfig struct {
	Categories []string
	Logger     TraceLogger
}

// TraceLogger is the minimal sink TraceConfig writes through; concrete
// implementations (e.g. a logrus.FieldLogger adapter) live in
// internal/interpreter's trace.go (SPEC_FULL.md §2 domain stack).
type TraceLogger interface {
	Tracef(format string, args ...interface{})
}
