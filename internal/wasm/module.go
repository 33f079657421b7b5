// Package wasm holds the decoded, immutable representation of a Wasm binary
// (Module) plus the runtime-owned Store/Instance/Memory/Table/Global types
// that back execution. See SPEC_FULL.md §0 for the package map.
package wasm

import (
	"bytes"
	"fmt"

	"github.com/zwasm/zwasm/api"
)

// Index is a position in one of a Module's index namespaces (types, funcs,
// tables, memories, globals, locals, labels, data or element segments).
// Imports are always numbered first in each namespace.
type Index = uint32

// ValueType re-exports api.ValueType so internal code reads naturally as
// `wasm.ValueTypeI32` without importing api everywhere.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeV128      = api.ValueTypeV128
	ValueTypeFuncref   = api.ValueTypeFuncref
	ValueTypeExternref = api.ValueTypeExternref
	ValueTypeExnref    = api.ValueTypeExnref
)

// ValueTypeName re-exports api.ValueTypeName for error-message formatting.
func ValueTypeName(t ValueType) string { return api.ValueTypeName(t) }

// RefType is a ValueType restricted to reference kinds, plus a type index
// for typed function references (function-references proposal, decode-only
// GC typed refs). Two RefTypes are equal iff their Kind and (when Kind is a
// typed ref) TypeIndex coincide — see spec.md §3 ValType.
type RefType struct {
	Kind      ValueType
	TypeIndex Index // only meaningful when Kind is a typed-ref marker
	Nullable  bool
}

// FunctionType is an ordered sequence of parameter types and an ordered
// sequence of result types; Results may have length > 1 (multi-value).
type FunctionType struct {
	Params, Results []ValueType

	// string is a cache of String(), computed once since a FunctionType is
	// immutable after decode and its string form keys the Store's type ID map.
	string string
}

// String renders params and results as compact runs, e.g. "i32i64_f32" or
// "null_null" if both are empty — the same format the store uses to key
// FunctionTypeID.
func (t *FunctionType) String() string {
	if t.string != "" {
		return t.string
	}
	var buf bytes.Buffer
	writeValTypes(&buf, t.Params)
	buf.WriteByte('_')
	writeValTypes(&buf, t.Results)
	t.string = buf.String()
	return t.string
}

func writeValTypes(buf *bytes.Buffer, vs []ValueType) {
	if len(vs) == 0 {
		buf.WriteString("null")
		return
	}
	for _, v := range vs {
		buf.WriteString(api.ValueTypeName(v))
	}
}

// EqualsSignature reports whether two function types have identical params
// and results, used by indirect-call signature checks (§4.5.1, §4.6).
func (t *FunctionType) EqualsSignature(params, results []ValueType) bool {
	return valueTypesEqual(t.Params, params) && valueTypesEqual(t.Results, results)
}

func valueTypesEqual(a, b []ValueType) bool {
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

// SectionID identifies a Wasm binary section, in their defined wire order.
type SectionID = byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
)

// SectionIDName returns the human name of a SectionID, "unknown" otherwise.
func SectionIDName(s SectionID) string {
	switch s {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	}
	return "unknown"
}

// ExternType classifies an import or export. Alias of api.ExternType.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
)

// Limits carries a table's or memory's min/optional-max bounds.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

// MemoryType extends Limits with the memory64 and custom-page-size proposals.
type MemoryType struct {
	Limits
	Is64           bool
	PageSizeLog2   *uint8 // nil means the default 65536-byte page
}

// TableType describes a Table's element RefType plus Limits.
type TableType struct {
	ElemType RefType
	Limits
}

// GlobalType is a ValueType plus a mutability flag (0=const, 1=mut).
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Import is (module, name, kind, descriptor) per spec.md §4.1.
type Import struct {
	Type       ExternType
	Module     string
	Name       string
	DescFunc   Index // valid when Type == ExternTypeFunc: index into Module.TypeSection
	DescTable  TableType
	DescMem    MemoryType
	DescGlobal GlobalType
}

// Export binds a name to an index-namespace entry.
type Export struct {
	Type  ExternType
	Name  string
	Index Index
}

// Global carries a GlobalType plus a deferred constant-expression initializer.
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// ConstantExpression is the raw opcode byte plus immediate bytes of a
// constant expression (global initializer, element/data offset) — evaluated
// lazily at instantiation, never pre-parsed by the decoder (spec.md §4.1).
// Extra holds any instructions after the first, legal only under the
// extended-const proposal (spec.md §4.2): i32/i64 add/sub/mul applied to the
// values pushed so far. The common single-instruction case leaves Extra nil.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
	Extra  []ConstStep
}

// ConstStep is one instruction of an extended-const arithmetic chain.
type ConstStep struct {
	Opcode Opcode
	Data   []byte
}

// ElementSegment initializes a range of a Table with function indices or
// ref.null/ref.func constant expressions.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr ConstantExpression // nil Data for a "passive"/"declarative" segment
	Type       RefType
	Init       []Index // resolved function indices, or MissingElem for ref.null
	Mode       ElementMode
}

// MissingElem marks a null element (ref.null) within an ElementSegment.Init.
const MissingElem = ^Index(0)

// ElementMode classifies an element segment per the bulk-memory proposal.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// DataSegment initializes a range of memory with raw bytes.
type DataSegment struct {
	MemoryIndex Index
	OffsetExpr  ConstantExpression // nil Data for a passive segment
	Init        []byte
	Passive     bool
}

// Code is a function body: local declarations plus raw instruction bytes.
// The decoder does not pre-parse Body; validator and lowerer each walk it
// once (spec.md §4.1 Code body).
type Code struct {
	LocalTypes []ValueType // expanded from (count, ValueType) groups, params excluded
	Body       []byte
}

// Module is the immutable, fully decoded representation of a Wasm binary.
// Every index referenced from exports/elements/data/start/code must lie
// within its respective defined+imported range — checked by the validator,
// not the decoder (spec.md §3 Module invariant).
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // func i has signature TypeSection[FunctionSection[i]]
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   []*Export
	StartSection    *Index
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment

	// DataCountSection is non-nil iff the data-count section was present.
	// Required (spec.md §4.1) whenever a function body uses memory.init or
	// data.drop.
	DataCountSection *uint32

	// NameSection holds any decoded custom "name" section data for debugging;
	// nil if absent. Other custom sections are preserved opaquely below.
	NameSection   *NameSection
	CustomSections []*CustomSection

	// memory/table/global/func import counts, cached at decode time so
	// ImportFuncCount etc. don't rescan ImportSection on every call.
	importFuncCount, importTableCount, importMemoryCount, importGlobalCount uint32
}

// CustomSection preserves a custom section's name and payload verbatim,
// ignored semantically by decode/validate (spec.md §4.1).
type CustomSection struct {
	Name string
	Data []byte
}

// NameSection is the decoded "name" custom section (function/local names),
// used only for debugging/trace output, never for semantics.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// BuildImportCounts scans ImportSection once and caches the per-kind
// counts; called by the decoder right after populating ImportSection.
func (m *Module) BuildImportCounts() {
	m.importFuncCount, m.importTableCount, m.importMemoryCount, m.importGlobalCount = 0, 0, 0, 0
	for _, imp := range m.ImportSection {
		switch imp.Type {
		case ExternTypeFunc:
			m.importFuncCount++
		case ExternTypeTable:
			m.importTableCount++
		case ExternTypeMemory:
			m.importMemoryCount++
		case ExternTypeGlobal:
			m.importGlobalCount++
		}
	}
}

func (m *Module) ImportFuncCount() uint32   { return m.importFuncCount }
func (m *Module) ImportTableCount() uint32  { return m.importTableCount }
func (m *Module) ImportMemoryCount() uint32 { return m.importMemoryCount }
func (m *Module) ImportGlobalCount() uint32 { return m.importGlobalCount }

// TypeOfFunction returns the signature of function index idx (imports first),
// or nil if idx is out of range.
func (m *Module) TypeOfFunction(idx Index) *FunctionType {
	importedCount := m.ImportFuncCount()
	if idx < importedCount {
		var i Index
		for _, imp := range m.ImportSection {
			if imp.Type != ExternTypeFunc {
				continue
			}
			if i == idx {
				if int(imp.DescFunc) >= len(m.TypeSection) {
					return nil
				}
				return m.TypeSection[imp.DescFunc]
			}
			i++
		}
		return nil
	}
	defIdx := idx - importedCount
	if int(defIdx) >= len(m.FunctionSection) {
		return nil
	}
	typeIdx := m.FunctionSection[defIdx]
	if int(typeIdx) >= len(m.TypeSection) {
		return nil
	}
	return m.TypeSection[typeIdx]
}

// String implements fmt.Stringer for debugging/trace output.
func (m *Module) String() string {
	return fmt.Sprintf("module(types=%d funcs=%d tables=%d mems=%d globals=%d exports=%d)",
		len(m.TypeSection), len(m.FunctionSection)+int(m.ImportFuncCount()),
		len(m.TableSection)+int(m.ImportTableCount()),
		len(m.MemorySection)+int(m.ImportMemoryCount()),
		len(m.GlobalSection)+int(m.ImportGlobalCount()),
		len(m.ExportSection))
}
