package wasm

import "fmt"

// FunctionDefinition is a read-only view of one function's static metadata:
// its index, optional debug name, and signature. Backs `zwasm inspect
// --json` (SPEC_FULL.md §3) without requiring an instantiated Instance.
type FunctionDefinition struct {
	Index      Index
	Name       string
	Imported   bool
	ImportDesc string // "module.name" when Imported
	Exported   []string
	Type       *FunctionType
}

// MemoryDefinition mirrors FunctionDefinition for the memory index space.
type MemoryDefinition struct {
	Index    Index
	Imported bool
	Exported []string
	Min, Max uint32
	HasMax   bool
}

// ModuleDefinition is the full read-only introspection surface over a
// compiled (decoded+validated) Module: every function and memory's static
// metadata, keyed by its index-space position.
type ModuleDefinition struct {
	Functions []FunctionDefinition
	Memories  []MemoryDefinition
}

// NewModuleDefinition walks mod's import/export sections once, building the
// introspection tables CompiledModule.Definitions exposes.
func NewModuleDefinition(mod *Module) ModuleDefinition {
	var def ModuleDefinition

	exportsByFunc := map[Index][]string{}
	exportsByMem := map[Index][]string{}
	for _, exp := range mod.ExportSection {
		switch exp.Type {
		case ExternTypeFunc:
			exportsByFunc[exp.Index] = append(exportsByFunc[exp.Index], exp.Name)
		case ExternTypeMemory:
			exportsByMem[exp.Index] = append(exportsByMem[exp.Index], exp.Name)
		}
	}

	var funcIdx, memIdx Index
	for _, imp := range mod.ImportSection {
		switch imp.Type {
		case ExternTypeFunc:
			def.Functions = append(def.Functions, FunctionDefinition{
				Index: funcIdx, Imported: true,
				ImportDesc: fmt.Sprintf("%s.%s", imp.Module, imp.Name),
				Exported:   exportsByFunc[funcIdx],
				Type:       mod.TypeSection[imp.DescFunc],
			})
			funcIdx++
		case ExternTypeMemory:
			md := MemoryDefinition{Index: memIdx, Imported: true, Exported: exportsByMem[memIdx], Min: imp.DescMem.Min}
			if imp.DescMem.Max != nil {
				md.Max, md.HasMax = *imp.DescMem.Max, true
			}
			def.Memories = append(def.Memories, md)
			memIdx++
		}
	}
	for i := range mod.FunctionSection {
		typeIdx := mod.FunctionSection[i]
		def.Functions = append(def.Functions, FunctionDefinition{
			Index: funcIdx, Name: functionName(mod, funcIdx),
			Exported: exportsByFunc[funcIdx], Type: mod.TypeSection[typeIdx],
		})
		funcIdx++
	}
	for _, mt := range mod.MemorySection {
		md := MemoryDefinition{Index: memIdx, Exported: exportsByMem[memIdx], Min: mt.Min}
		if mt.Max != nil {
			md.Max, md.HasMax = *mt.Max, true
		}
		def.Memories = append(def.Memories, md)
		memIdx++
	}
	return def
}

func functionName(mod *Module, idx Index) string {
	if mod.NameSection == nil {
		return ""
	}
	return mod.NameSection.FunctionNames[idx]
}
