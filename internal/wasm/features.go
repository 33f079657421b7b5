package wasm

import "strings"

// Features is a bitset of Wasm proposals the runtime accepts, gating
// decode/validate behavior (spec.md §6 lists the supported proposal set).
// Every flag is a single non-zero bit, so a zero Features value means "none
// set", and Get never reports a zero query as enabled.
type Features uint64

const (
	FeatureMutableGlobal Features = 1 << iota
	FeatureSignExtensionOps
	FeatureNonTrappingFloatToIntConversion
	FeatureBulkMemoryOperations
	FeatureReferenceTypes
	FeatureMultiValue
	FeatureSIMD
	FeatureTailCall
	FeatureExtendedConst
	FeatureFunctionReferences
	FeatureMultiMemory
	FeatureMemory64
	FeatureWideArithmetic
	FeatureCustomPageSizes
	FeatureExceptionHandling

	// FeatureWasm1_0 is the baseline WebAssembly 1.0 feature set with no
	// proposals enabled.
	FeatureWasm1_0 Features = 0

	// FeatureAll enables every proposal this runtime decodes/validates.
	FeatureAll = FeatureMutableGlobal | FeatureSignExtensionOps | FeatureNonTrappingFloatToIntConversion |
		FeatureBulkMemoryOperations | FeatureReferenceTypes | FeatureMultiValue | FeatureSIMD |
		FeatureTailCall | FeatureExtendedConst | FeatureFunctionReferences | FeatureMultiMemory |
		FeatureMemory64 | FeatureWideArithmetic | FeatureCustomPageSizes | FeatureExceptionHandling
)

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureMutableGlobal, "mutable-global"},
	{FeatureSignExtensionOps, "sign-extension-ops"},
	{FeatureNonTrappingFloatToIntConversion, "nontrapping-float-to-int-conversion"},
	{FeatureBulkMemoryOperations, "bulk-memory-operations"},
	{FeatureReferenceTypes, "reference-types"},
	{FeatureMultiValue, "multi-value"},
	{FeatureSIMD, "simd"},
	{FeatureTailCall, "tail-call"},
	{FeatureExtendedConst, "extended-const"},
	{FeatureFunctionReferences, "function-references"},
	{FeatureMultiMemory, "multi-memory"},
	{FeatureMemory64, "memory64"},
	{FeatureWideArithmetic, "wide-arithmetic"},
	{FeatureCustomPageSizes, "custom-page-sizes"},
	{FeatureExceptionHandling, "exception-handling"},
}

// Get reports whether every bit set in query is also set in f. A zero query
// is never reported as set.
func (f Features) Get(query Features) bool { return query != 0 && f&query == query }

// Set returns a copy of f with query's bits set to value.
func (f Features) Set(query Features, value bool) Features {
	if value {
		return f | query
	}
	return f &^ query
}

// String lists enabled feature names, comma-separated, in declaration order.
func (f Features) String() string {
	var names []string
	for _, e := range featureNames {
		if f.Get(e.f) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, ",")
}
