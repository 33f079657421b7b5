package zwasm

import (
	"github.com/zwasm/zwasm/internal/compilationcache"
	"github.com/zwasm/zwasm/internal/wasm"
)

// defaultMaxMemoryPages is the wasm32 address-space ceiling (4 GiB / 64 KiB
// page), used when a RuntimeConfig never calls WithMaxMemoryPages.
const defaultMaxMemoryPages = uint32(1) << 16

// RuntimeConfig configures NewRuntime. Every With* method returns a new
// copy, matching the teacher's own builder-style immutable config (the
// config.go/builder.go pattern SPEC_FULL.md §1 Configuration calls for).
type RuntimeConfig interface {
	// WithFeatures replaces the set of Wasm proposals the decoder/validator
	// accept (spec.md §6).
	WithFeatures(wasm.Features) RuntimeConfig

	// WithFuel enables fuel metering (spec.md §4.4 Fuel): every instruction
	// decrements the budget, reaching zero traps with OutOfFuel. Zero (the
	// default) disables metering.
	WithFuel(fuel uint64) RuntimeConfig

	// WithMaxMemoryPages caps memory.grow beyond a MemoryType's own declared
	// max (spec.md §9 open question: the ceiling is enforced before OS
	// allocation, never after).
	WithMaxMemoryPages(pages uint32) RuntimeConfig

	// WithProfiler attaches a Profile that counts opcode executions (spec.md
	// §4.4 Profile mode). Attaching one disables JIT promotion so counts
	// stay meaningful, per spec.md's own text.
	WithProfiler(*wasm.Profile) RuntimeConfig

	// WithTrace attaches a TraceConfig (spec.md §9 Profile/Trace design
	// note: explicit struct, never a global).
	WithTrace(*wasm.TraceConfig) RuntimeConfig

	// WithCompiler enables Tier 3 JIT promotion of hot functions (spec.md
	// §4.4 Hotness). On non-arm64 targets internal/jit (compile_other.go)
	// compiles nothing, so no promotion succeeds and the interpreter runs
	// every function.
	WithCompiler() RuntimeConfig

	// WithInterpreter disables JIT promotion, keeping every function on
	// Tier 2 regardless of call count (teacher's NewRuntimeConfigInterpreter).
	WithInterpreter() RuntimeConfig

	// WithCompilationCache skips re-running the validator (spec.md §4.2) on
	// a Wasm binary CompileModule has already validated once, keyed by the
	// binary's SHA-256 digest (SPEC_FULL.md §3 supplemented features).
	WithCompilationCache(compilationcache.Cache) RuntimeConfig
}

type runtimeConfig struct {
	features     wasm.Features
	fuel         uint64
	maxMemPages  uint32
	profile      *wasm.Profile
	trace        *wasm.TraceConfig
	compilerTier bool
	cache        compilationcache.Cache
}

// NewRuntimeConfig returns the platform-default config: the compiler tier on
// arm64 (config_supported.go), interpreter-only elsewhere
// (config_unsupported.go) — mirrors the teacher's own build-tag split, see
// those two files for the actual definition.

// NewRuntimeConfigInterpreter returns a config that never promotes to JIT.
func NewRuntimeConfigInterpreter() RuntimeConfig {
	return &runtimeConfig{features: wasm.FeatureAll, maxMemPages: defaultMaxMemoryPages}
}

// NewRuntimeConfigCompiler returns a config that promotes hot functions to
// the ARM64 JIT tier (spec.md §4.5); on a non-arm64 GOARCH this silently
// behaves like NewRuntimeConfigInterpreter; see internal/jit/compile_other.go.
func NewRuntimeConfigCompiler() RuntimeConfig {
	return &runtimeConfig{features: wasm.FeatureAll, maxMemPages: defaultMaxMemoryPages, compilerTier: true}
}

func (c *runtimeConfig) clone() *runtimeConfig { cp := *c; return &cp }

func (c *runtimeConfig) WithFeatures(f wasm.Features) RuntimeConfig {
	cp := c.clone()
	cp.features = f
	return cp
}

func (c *runtimeConfig) WithFuel(fuel uint64) RuntimeConfig {
	cp := c.clone()
	cp.fuel = fuel
	return cp
}

func (c *runtimeConfig) WithMaxMemoryPages(pages uint32) RuntimeConfig {
	cp := c.clone()
	cp.maxMemPages = pages
	return cp
}

func (c *runtimeConfig) WithProfiler(p *wasm.Profile) RuntimeConfig {
	cp := c.clone()
	cp.profile = p
	cp.compilerTier = false // spec.md §4.4: profiling disables JIT so counts stay meaningful
	return cp
}

func (c *runtimeConfig) WithTrace(t *wasm.TraceConfig) RuntimeConfig {
	cp := c.clone()
	cp.trace = t
	return cp
}

func (c *runtimeConfig) WithCompiler() RuntimeConfig {
	cp := c.clone()
	cp.compilerTier = true
	return cp
}

func (c *runtimeConfig) WithInterpreter() RuntimeConfig {
	cp := c.clone()
	cp.compilerTier = false
	return cp
}

func (c *runtimeConfig) WithCompilationCache(cache compilationcache.Cache) RuntimeConfig {
	cp := c.clone()
	cp.cache = cache
	return cp
}
