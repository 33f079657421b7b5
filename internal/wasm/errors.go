package wasm

import "fmt"

// ErrorKind enumerates every decode/validation/instantiation/trap taxonomy
// member named in spec.md §7. The interpreter, JIT, and embedder all convert
// failures to one of these instead of ad-hoc strings, so a single switch at
// the CLI boundary can pick an exit code.
type ErrorKind int

const (
	_ ErrorKind = iota

	// Decode errors (spec.md §4.1) — fatal at load time.
	ErrTruncated
	ErrBadMagic
	ErrBadVersion
	ErrDuplicateSection
	ErrMalformedLeb128
	ErrLengthMismatch

	// Validation errors (spec.md §4.2) — fatal at load time.
	ErrTypeMismatch
	ErrInvalidAlignment
	ErrInvalidLaneIndex
	ErrUnknownLocal
	ErrUninitializedLocal
	ErrUnknownGlobal
	ErrUnknownFunction
	ErrUnknownType
	ErrUnknownTable
	ErrUnknownMemory
	ErrUnknownLabel
	ErrUnknownDataSegment
	ErrUnknownElemSegment
	ErrImmutableGlobal
	ErrInvalidResultArity
	ErrConstantExprRequired
	ErrDataCountRequired
	ErrIllegalOpcode
	ErrDuplicateExportName

	// Instantiation errors (spec.md §7) — fatal.
	ErrImportNotFound
	ErrLinkMismatch
	ErrMemoryInitOob
	ErrElementInitOob
	ErrConstExprEvalFailed
	ErrInvalidStartFunction
	ErrInvalidFunctionBody

	// Runtime traps (spec.md §7) — propagate through every frame.
	ErrTrap
	ErrUnreachable
	ErrStackOverflow
	ErrDivisionByZero
	ErrIntegerOverflow
	ErrOutOfBoundsMemoryAccess
	ErrInvalidConversion
	ErrUndefinedElement
	ErrMismatchedSignatures
	ErrWasmException
	ErrOutOfFuel
)

var errorKindNames = map[ErrorKind]string{
	ErrTruncated:               "Truncated",
	ErrBadMagic:                "BadMagic",
	ErrBadVersion:              "BadVersion",
	ErrDuplicateSection:        "DuplicateSection",
	ErrMalformedLeb128:         "MalformedLeb128",
	ErrLengthMismatch:          "LengthMismatch",
	ErrTypeMismatch:            "TypeMismatch",
	ErrInvalidAlignment:        "InvalidAlignment",
	ErrInvalidLaneIndex:        "InvalidLaneIndex",
	ErrUnknownLocal:            "UnknownLocal",
	ErrUninitializedLocal:      "UninitializedLocal",
	ErrUnknownGlobal:           "UnknownGlobal",
	ErrUnknownFunction:         "UnknownFunction",
	ErrUnknownType:             "UnknownType",
	ErrUnknownTable:            "UnknownTable",
	ErrUnknownMemory:           "UnknownMemory",
	ErrUnknownLabel:            "UnknownLabel",
	ErrUnknownDataSegment:      "UnknownDataSegment",
	ErrUnknownElemSegment:      "UnknownElemSegment",
	ErrImmutableGlobal:         "ImmutableGlobal",
	ErrInvalidResultArity:      "InvalidResultArity",
	ErrConstantExprRequired:    "ConstantExprRequired",
	ErrDataCountRequired:       "DataCountRequired",
	ErrIllegalOpcode:           "IllegalOpcode",
	ErrDuplicateExportName:     "DuplicateExportName",
	ErrImportNotFound:          "ImportNotFound",
	ErrLinkMismatch:            "LinkMismatch",
	ErrMemoryInitOob:           "MemoryInitOob",
	ErrElementInitOob:          "ElementInitOob",
	ErrConstExprEvalFailed:     "ConstExprEvalFailed",
	ErrInvalidStartFunction:    "InvalidStartFunction",
	ErrInvalidFunctionBody:     "InvalidFunctionBody",
	ErrTrap:                    "Trap",
	ErrUnreachable:             "Unreachable",
	ErrStackOverflow:           "StackOverflow",
	ErrDivisionByZero:          "DivisionByZero",
	ErrIntegerOverflow:         "IntegerOverflow",
	ErrOutOfBoundsMemoryAccess: "OutOfBoundsMemoryAccess",
	ErrInvalidConversion:       "InvalidConversion",
	ErrUndefinedElement:        "UndefinedElement",
	ErrMismatchedSignatures:    "MismatchedSignatures",
	ErrWasmException:           "WasmException",
	ErrOutOfFuel:               "OutOfFuel",
}

func (k ErrorKind) String() string {
	if n, ok := errorKindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// TrapOrdinal maps the subset of ErrorKind values the JIT ABI can return
// (§4.6 point 6) to their wire ordinal. Zero means success and is never
// returned by this function; callers check the zero case themselves.
func (k ErrorKind) TrapOrdinal() uint64 {
	switch k {
	case ErrTrap, ErrUnreachable:
		return 1
	case ErrStackOverflow:
		return 2
	case ErrDivisionByZero:
		return 3
	case ErrIntegerOverflow:
		return 4
	case ErrOutOfBoundsMemoryAccess:
		return 6
	case ErrWasmException:
		return 7
	default:
		return 1
	}
}

// TrapOrdinalToKind is the inverse of ErrorKind.TrapOrdinal, used by the
// trampoline (§4.6) and by the outermost interpreter frame to reconstruct a
// typed WasmError from a JIT native-code return code.
func TrapOrdinalToKind(ord uint64) ErrorKind {
	switch ord {
	case 1:
		return ErrUnreachable
	case 2:
		return ErrStackOverflow
	case 3:
		return ErrDivisionByZero
	case 4:
		return ErrIntegerOverflow
	case 6:
		return ErrOutOfBoundsMemoryAccess
	case 7:
		return ErrWasmException
	default:
		return ErrTrap
	}
}

// WasmError is the sum type every fallible operation in this module returns
// instead of ad-hoc errors or panics (spec.md §9 Error returns). It
// implements error, so it composes with %w and errors.As/Is.
type WasmError struct {
	Kind    ErrorKind
	Context string // e.g. "function[3] opcode[i32.add] pc=14"
	Cause   error  // wrapped lower-level error, if any (e.g. an os.PathError)
}

func (e *WasmError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Context, e.Kind, e.Cause)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Context, e.Kind)
	}
	return e.Kind.String()
}

func (e *WasmError) Unwrap() error { return e.Cause }

// NewError constructs a WasmError with context, no wrapped cause.
func NewError(kind ErrorKind, context string) *WasmError {
	return &WasmError{Kind: kind, Context: context}
}

// WrapError constructs a WasmError wrapping a lower-level cause.
func WrapError(kind ErrorKind, context string, cause error) *WasmError {
	return &WasmError{Kind: kind, Context: context, Cause: cause}
}

// Trap is a convenience constructor for runtime traps raised from the
// interpreter and JIT trampoline (no decode/validation context string).
func Trap(kind ErrorKind) *WasmError {
	return &WasmError{Kind: kind}
}
