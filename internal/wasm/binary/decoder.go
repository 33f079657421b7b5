// Package binary decodes the Wasm core binary format (spec.md §4.1) into an
// internal/wasm.Module. It performs purely structural decoding: indices are
// not range-checked against their target sections and instruction bytes are
// not walked except to find the matching `end` of a constant expression —
// both are the validator's job (internal/wasm/validator), kept deliberately
// separate so a corrupt/adversarial module can be rejected before any
// semantic analysis runs (spec.md §8 property 1).
package binary

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/zwasm/zwasm/internal/leb128"
	"github.com/zwasm/zwasm/internal/wasm"
)

const (
	magic            = 0x6d736100 // little-endian "\0asm"
	version          = 0x01
	funcTypeForm     = 0x60
	sectionIDCustom  = 0
	sectionIDType    = 1
	sectionIDImport  = 2
	sectionIDFunc    = 3
	sectionIDTable   = 4
	sectionIDMemory  = 5
	sectionIDGlobal  = 6
	sectionIDExport  = 7
	sectionIDStart   = 8
	sectionIDElement = 9
	sectionIDCode    = 10
	sectionIDData    = 11
	sectionIDDataCnt = 12
)

// DecodeModule reads one complete binary Wasm module from r.
func DecodeModule(r io.Reader, features wasm.Features) (*wasm.Module, *wasm.WasmError) {
	d := &decoder{r: bufio.NewReader(r), features: features, mod: &wasm.Module{}}
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	var lastID int = -1
	for {
		id, sectionR, err := d.readSectionHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapIOErr(err)
		}
		if id != sectionIDCustom {
			// The data count section (id 12) is ordered between element and code.
			rank := id * 2
			if id == sectionIDDataCnt {
				rank = sectionIDCode*2 - 1
			}
			if rank <= lastID {
				return nil, wasm.NewError(wasm.ErrDuplicateSection, "sections out of order or duplicated")
			}
			lastID = rank
		}
		sd := &decoder{r: bufio.NewReader(sectionR), features: features, mod: d.mod}
		if werr := sd.readSection(id); werr != nil {
			return nil, werr
		}
	}
	d.mod.BuildImportCounts()
	return d.mod, nil
}

// byteReader is the minimal interface decoder needs: io.Reader for bulk
// copies (io.ReadFull/io.ReadAll/io.CopyN) plus io.ByteReader for LEB128.
type byteReader interface {
	io.Reader
	io.ByteReader
}

type decoder struct {
	r        byteReader
	features wasm.Features
	mod      *wasm.Module
}

func (d *decoder) readHeader() *wasm.WasmError {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return wasm.NewError(wasm.ErrTruncated, "module shorter than the 8-byte header")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return wasm.NewError(wasm.ErrBadMagic, "missing \\0asm magic")
	}
	if binary.LittleEndian.Uint32(buf[4:8]) != version {
		return wasm.NewError(wasm.ErrBadVersion, "unsupported binary version")
	}
	return nil
}

// readSectionHeader reads the section id byte and its length-prefixed body,
// returning an io.Reader limited to exactly that body.
func (d *decoder) readSectionHeader() (int, io.Reader, error) {
	idByte := make([]byte, 1)
	if _, err := io.ReadFull(d.r, idByte); err != nil {
		return 0, nil, io.EOF
	}
	size, _, err := leb128.DecodeUint32(d.r)
	if err != nil {
		return 0, nil, err
	}
	return int(idByte[0]), io.LimitReader(d.r, int64(size)), nil
}

func (d *decoder) readSection(id int) *wasm.WasmError {
	switch id {
	case sectionIDCustom:
		return d.readCustomSection()
	case sectionIDType:
		return d.readTypeSection()
	case sectionIDImport:
		return d.readImportSection()
	case sectionIDFunc:
		return d.readFuncSection()
	case sectionIDTable:
		return d.readTableSection()
	case sectionIDMemory:
		return d.readMemorySection()
	case sectionIDGlobal:
		return d.readGlobalSection()
	case sectionIDExport:
		return d.readExportSection()
	case sectionIDStart:
		return d.readStartSection()
	case sectionIDElement:
		return d.readElementSection()
	case sectionIDCode:
		return d.readCodeSection()
	case sectionIDData:
		return d.readDataSection()
	case sectionIDDataCnt:
		return d.readDataCountSection()
	default:
		return wasm.NewError(wasm.ErrIllegalOpcode, "unknown section id")
	}
}

func (d *decoder) readCustomSection() *wasm.WasmError {
	name, err := d.readName()
	if err != nil {
		return err
	}
	data, ioerr := io.ReadAll(d.r)
	if ioerr != nil {
		return wrapIOErr(ioerr)
	}
	if name == "name" {
		d.mod.NameSection = decodeNameSection(data)
	}
	d.mod.CustomSections = append(d.mod.CustomSections, &wasm.CustomSection{Name: name, Data: data})
	return nil
}

func (d *decoder) readTypeSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.TypeSection = make([]*wasm.FunctionType, n)
	for i := range d.mod.TypeSection {
		form, ferr := d.readByte()
		if ferr != nil {
			return ferr
		}
		if form != funcTypeForm {
			return wasm.NewError(wasm.ErrIllegalOpcode, "function type must start with 0x60")
		}
		params, perr := d.readValueTypeVec()
		if perr != nil {
			return perr
		}
		results, rerr := d.readValueTypeVec()
		if rerr != nil {
			return rerr
		}
		d.mod.TypeSection[i] = &wasm.FunctionType{Params: params, Results: results}
	}
	return nil
}

func (d *decoder) readImportSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.ImportSection = make([]*wasm.Import, n)
	for i := range d.mod.ImportSection {
		modName, merr := d.readName()
		if merr != nil {
			return merr
		}
		fieldName, ferr := d.readName()
		if ferr != nil {
			return ferr
		}
		kind, kerr := d.readByte()
		if kerr != nil {
			return kerr
		}
		imp := &wasm.Import{Module: modName, Name: fieldName}
		switch kind {
		case 0x00:
			imp.Type = wasm.ExternTypeFunc
			idx, e := d.readUint32()
			if e != nil {
				return e
			}
			imp.DescFunc = idx
		case 0x01:
			imp.Type = wasm.ExternTypeTable
			tt, e := d.readTableType()
			if e != nil {
				return e
			}
			imp.DescTable = tt
		case 0x02:
			imp.Type = wasm.ExternTypeMemory
			mt, e := d.readMemoryType()
			if e != nil {
				return e
			}
			imp.DescMem = mt
		case 0x03:
			imp.Type = wasm.ExternTypeGlobal
			gt, e := d.readGlobalType()
			if e != nil {
				return e
			}
			imp.DescGlobal = gt
		default:
			return wasm.NewError(wasm.ErrIllegalOpcode, "invalid import kind")
		}
		d.mod.ImportSection[i] = imp
	}
	return nil
}

func (d *decoder) readFuncSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.FunctionSection = make([]wasm.Index, n)
	for i := range d.mod.FunctionSection {
		idx, e := d.readUint32()
		if e != nil {
			return e
		}
		d.mod.FunctionSection[i] = idx
	}
	return nil
}

func (d *decoder) readTableSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.TableSection = make([]*wasm.TableType, n)
	for i := range d.mod.TableSection {
		tt, e := d.readTableType()
		if e != nil {
			return e
		}
		d.mod.TableSection[i] = &tt
	}
	return nil
}

func (d *decoder) readMemorySection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.MemorySection = make([]*wasm.MemoryType, n)
	for i := range d.mod.MemorySection {
		mt, e := d.readMemoryType()
		if e != nil {
			return e
		}
		d.mod.MemorySection[i] = &mt
	}
	return nil
}

func (d *decoder) readGlobalSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.GlobalSection = make([]*wasm.Global, n)
	for i := range d.mod.GlobalSection {
		gt, e := d.readGlobalType()
		if e != nil {
			return e
		}
		ce, ce2 := d.readConstExpr()
		if ce2 != nil {
			return ce2
		}
		d.mod.GlobalSection[i] = &wasm.Global{Type: gt, Init: ce}
	}
	return nil
}

func (d *decoder) readExportSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.ExportSection = make([]*wasm.Export, n)
	seen := map[string]bool{}
	for i := range d.mod.ExportSection {
		name, nerr := d.readName()
		if nerr != nil {
			return nerr
		}
		if seen[name] {
			return wasm.NewError(wasm.ErrDuplicateExportName, name)
		}
		seen[name] = true
		kind, kerr := d.readByte()
		if kerr != nil {
			return kerr
		}
		idx, ierr := d.readUint32()
		if ierr != nil {
			return ierr
		}
		var typ wasm.ExternType
		switch kind {
		case 0x00:
			typ = wasm.ExternTypeFunc
		case 0x01:
			typ = wasm.ExternTypeTable
		case 0x02:
			typ = wasm.ExternTypeMemory
		case 0x03:
			typ = wasm.ExternTypeGlobal
		default:
			return wasm.NewError(wasm.ErrIllegalOpcode, "invalid export kind")
		}
		d.mod.ExportSection[i] = &wasm.Export{Type: typ, Name: name, Index: idx}
	}
	return nil
}

func (d *decoder) readStartSection() *wasm.WasmError {
	idx, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.StartSection = &idx
	return nil
}

func (d *decoder) readElementSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.ElementSection = make([]*wasm.ElementSegment, n)
	for i := range d.mod.ElementSection {
		seg, e := d.readElementSegment()
		if e != nil {
			return e
		}
		d.mod.ElementSection[i] = seg
	}
	return nil
}

// readElementSegment handles the eight element-segment encodings introduced
// by the bulk-memory/reference-types proposals (spec.md §6). Flag bits:
// bit0 = passive/declarative vs active, bit1 = explicit table index present
// (active) or declarative vs passive (bit0 set), bit2 = elements are
// expressions (ref.null/ref.func) vs raw function indices.
func (d *decoder) readElementSegment() (*wasm.ElementSegment, *wasm.WasmError) {
	flag, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	seg := &wasm.ElementSegment{Type: wasm.RefType{Kind: wasm.ValueTypeFuncref}}

	hasExplicitIdxOrFlagBit0 := flag&0x1 != 0
	hasTableIdx := flag&0x2 != 0
	exprInit := flag&0x4 != 0

	if !hasExplicitIdxOrFlagBit0 && !hasTableIdx {
		seg.Mode = wasm.ElementModeActive
		ce, e := d.readConstExpr()
		if e != nil {
			return nil, e
		}
		seg.OffsetExpr = ce
	} else if hasTableIdx {
		seg.Mode = wasm.ElementModeDeclarative
	} else {
		seg.Mode = wasm.ElementModePassive
	}

	if !hasExplicitIdxOrFlagBit0 && hasTableIdx {
		idx, e := d.readUint32()
		if e != nil {
			return nil, e
		}
		seg.TableIndex = idx
		seg.Mode = wasm.ElementModeActive
		ce, e2 := d.readConstExpr()
		if e2 != nil {
			return nil, e2
		}
		seg.OffsetExpr = ce
	}

	if flag&0x3 != 0 {
		// every flag except 0 and 4 (active on table 0) carries an
		// elemkind/reftype byte.
		if !exprInit {
			if _, e := d.readByte(); e != nil { // elemkind, always funcref (0x00) pre function-references
				return nil, e
			}
		} else {
			rt, e := d.readRefType()
			if e != nil {
				return nil, e
			}
			seg.Type = rt
		}
	}

	count, cerr := d.readUint32()
	if cerr != nil {
		return nil, cerr
	}
	seg.Init = make([]wasm.Index, count)
	for i := range seg.Init {
		if exprInit {
			ce, e := d.readConstExpr()
			if e != nil {
				return nil, e
			}
			if ce.Opcode == wasm.OpcodeRefFunc {
				idx, _, _ := decodeULEBLocal(ce.Data)
				seg.Init[i] = wasm.Index(idx)
			} else {
				seg.Init[i] = wasm.MissingElem
			}
		} else {
			idx, e := d.readUint32()
			if e != nil {
				return nil, e
			}
			seg.Init[i] = idx
		}
	}
	return seg, nil
}

func (d *decoder) readCodeSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.CodeSection = make([]*wasm.Code, n)
	for i := range d.mod.CodeSection {
		size, serr := d.readUint32()
		if serr != nil {
			return serr
		}
		body := make([]byte, size)
		if _, ioerr := io.ReadFull(d.r, body); ioerr != nil {
			return wrapIOErr(ioerr)
		}
		br := bytes.NewReader(body)
		var locals []wasm.ValueType
		localGroupCount, _, lerr := leb128.DecodeUint32(br)
		if lerr != nil {
			return wasm.NewError(wasm.ErrMalformedLeb128, "local group count")
		}
		for g := uint32(0); g < localGroupCount; g++ {
			cnt, _, cerr := leb128.DecodeUint32(br)
			if cerr != nil {
				return wasm.NewError(wasm.ErrMalformedLeb128, "local group count")
			}
			vtByte := make([]byte, 1)
			if _, e := io.ReadFull(br, vtByte); e != nil {
				return wrapIOErr(e)
			}
			for c := uint32(0); c < cnt; c++ {
				locals = append(locals, wasm.ValueType(vtByte[0]))
			}
		}
		rest := make([]byte, br.Len())
		if _, e := io.ReadFull(br, rest); e != nil && e != io.EOF {
			return wrapIOErr(e)
		}
		d.mod.CodeSection[i] = &wasm.Code{LocalTypes: locals, Body: rest}
	}
	return nil
}

func (d *decoder) readDataSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.DataSection = make([]*wasm.DataSegment, n)
	for i := range d.mod.DataSection {
		flag, ferr := d.readUint32()
		if ferr != nil {
			return ferr
		}
		seg := &wasm.DataSegment{}
		switch flag {
		case 0:
			ce, e := d.readConstExpr()
			if e != nil {
				return e
			}
			seg.OffsetExpr = ce
		case 1:
			seg.Passive = true
		case 2:
			idx, e := d.readUint32()
			if e != nil {
				return e
			}
			seg.MemoryIndex = idx
			ce, e2 := d.readConstExpr()
			if e2 != nil {
				return e2
			}
			seg.OffsetExpr = ce
		default:
			return wasm.NewError(wasm.ErrIllegalOpcode, "invalid data segment flag")
		}
		bytesLen, blerr := d.readUint32()
		if blerr != nil {
			return blerr
		}
		init := make([]byte, bytesLen)
		if _, e := io.ReadFull(d.r, init); e != nil {
			return wrapIOErr(e)
		}
		seg.Init = init
		d.mod.DataSection[i] = seg
	}
	return nil
}

func (d *decoder) readDataCountSection() *wasm.WasmError {
	n, err := d.readUint32()
	if err != nil {
		return err
	}
	d.mod.DataCountSection = &n
	return nil
}

// --- leaf readers ---

func (d *decoder) readByte() (byte, *wasm.WasmError) {
	var b [1]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, wrapIOErr(err)
	}
	return b[0], nil
}

func (d *decoder) readUint32() (uint32, *wasm.WasmError) {
	v, _, err := leb128.DecodeUint32(d.r)
	if err != nil {
		return 0, wasm.NewError(wasm.ErrMalformedLeb128, "u32")
	}
	return v, nil
}

func (d *decoder) readValueTypeVec() ([]wasm.ValueType, *wasm.WasmError) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		b, berr := d.readByte()
		if berr != nil {
			return nil, berr
		}
		out[i] = wasm.ValueType(b)
	}
	return out, nil
}

func (d *decoder) readRefType() (wasm.RefType, *wasm.WasmError) {
	b, err := d.readByte()
	if err != nil {
		return wasm.RefType{}, err
	}
	switch wasm.ValueType(b) {
	case wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return wasm.RefType{Kind: wasm.ValueType(b)}, nil
	default:
		return wasm.RefType{}, wasm.NewError(wasm.ErrIllegalOpcode, "invalid reference type")
	}
}

// limitFlag bits, per the core spec's limits production plus the memory64
// and custom-page-sizes proposals (spec.md §4.1 "Memory" bullet): bit 0 is
// "has max", bit 2 is "index type i64" (memory64), bit 3 is "has custom page
// size" (only legal alongside bit 2's absence is not required by the
// proposal, but this decoder only consults bit 3 for memories).
const (
	limitFlagHasMax  = 0x1
	limitFlagIs64    = 0x4
	limitFlagHasPage = 0x8
)

func (d *decoder) readLimits() (wasm.Limits, byte, *wasm.WasmError) {
	flag, err := d.readByte()
	if err != nil {
		return wasm.Limits{}, 0, err
	}
	min, merr := d.readUint32()
	if merr != nil {
		return wasm.Limits{}, 0, merr
	}
	l := wasm.Limits{Min: min}
	if flag&limitFlagHasMax != 0 {
		max, xerr := d.readUint32()
		if xerr != nil {
			return wasm.Limits{}, 0, xerr
		}
		l.Max = &max
	}
	return l, flag, nil
}

func (d *decoder) readTableType() (wasm.TableType, *wasm.WasmError) {
	rt, err := d.readRefType()
	if err != nil {
		return wasm.TableType{}, err
	}
	lim, _, lerr := d.readLimits()
	if lerr != nil {
		return wasm.TableType{}, lerr
	}
	return wasm.TableType{ElemType: rt, Limits: lim}, nil
}

func (d *decoder) readMemoryType() (wasm.MemoryType, *wasm.WasmError) {
	lim, flag, err := d.readLimits()
	if err != nil {
		return wasm.MemoryType{}, err
	}
	mt := wasm.MemoryType{Limits: lim, Is64: flag&limitFlagIs64 != 0}
	if flag&limitFlagHasPage != 0 {
		log2, perr := d.readByte()
		if perr != nil {
			return wasm.MemoryType{}, perr
		}
		mt.PageSizeLog2 = &log2
	}
	return mt, nil
}

func (d *decoder) readGlobalType() (wasm.GlobalType, *wasm.WasmError) {
	b, err := d.readByte()
	if err != nil {
		return wasm.GlobalType{}, err
	}
	mb, merr := d.readByte()
	if merr != nil {
		return wasm.GlobalType{}, merr
	}
	if mb != 0x00 && mb != 0x01 {
		return wasm.GlobalType{}, wasm.NewError(wasm.ErrIllegalOpcode, "invalid global mutability flag")
	}
	return wasm.GlobalType{ValType: wasm.ValueType(b), Mutable: mb == 0x01}, nil
}

func (d *decoder) readName() (string, *wasm.WasmError) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, ioerr := io.ReadFull(d.r, buf); ioerr != nil {
		return "", wrapIOErr(ioerr)
	}
	if !utf8.Valid(buf) {
		return "", wasm.NewError(wasm.ErrMalformedLeb128, "export/import name is not valid UTF-8")
	}
	return string(buf), nil
}

// readConstExprInstr reads a single instruction opcode plus its LEB128/float
// immediate, returning ok=false if opByte is 0x0b (end) without consuming
// anything further, and an error if opByte is not a legal constant-expression
// instruction (spec.md §4.2: the base set plus, under extended-const, the
// i32/i64 add/sub/mul arithmetic opcodes).
func (d *decoder) readConstExprInstr(opByte byte) (op wasm.Opcode, data []byte, err *wasm.WasmError) {
	op = wasm.Opcode(opByte)
	switch op {
	case wasm.OpcodeI32Const:
		v, _, e := leb128.DecodeInt32(d.r)
		if e != nil {
			return 0, nil, wasm.NewError(wasm.ErrMalformedLeb128, "i32.const")
		}
		data = leb128.EncodeInt32(v)
	case wasm.OpcodeI64Const:
		v, _, e := leb128.DecodeInt64(d.r)
		if e != nil {
			return 0, nil, wasm.NewError(wasm.ErrMalformedLeb128, "i64.const")
		}
		data = leb128.EncodeInt64(v)
	case wasm.OpcodeF32Const:
		var b [4]byte
		if _, e := io.ReadFull(d.r, b[:]); e != nil {
			return 0, nil, wrapIOErr(e)
		}
		data = b[:]
	case wasm.OpcodeF64Const:
		var b [8]byte
		if _, e := io.ReadFull(d.r, b[:]); e != nil {
			return 0, nil, wrapIOErr(e)
		}
		data = b[:]
	case wasm.OpcodeGlobalGet, wasm.OpcodeRefFunc:
		idx, e := d.readUint32()
		if e != nil {
			return 0, nil, e
		}
		data = leb128.EncodeUint32(idx)
	case wasm.OpcodeRefNull:
		b, e := d.readByte() // heap-type byte
		if e != nil {
			return 0, nil, e
		}
		data = []byte{b}
	case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul,
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
		// extended-const arithmetic (spec.md §4.2): no immediate.
	default:
		return 0, nil, wasm.NewError(wasm.ErrConstantExprRequired, "opcode not valid in a constant expression")
	}
	return op, data, nil
}

// readConstExpr reads a constant-expression instruction sequence terminated
// by `end` (0x0b); this is the one place the decoder looks inside an
// instruction stream, since constant expressions must be fully formed to
// become a Module field (spec.md §4.1). Under the extended-const proposal
// (spec.md §4.2) this sequence may hold more than one instruction, the first
// pushing a value and the rest either pushing more values or folding the top
// of the stack with i32/i64 add/sub/mul.
func (d *decoder) readConstExpr() (wasm.ConstantExpression, *wasm.WasmError) {
	opByte, err := d.readByte()
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	op, data, ierr := d.readConstExprInstr(opByte)
	if ierr != nil {
		return wasm.ConstantExpression{}, ierr
	}
	ce := wasm.ConstantExpression{Opcode: op, Data: data}
	for {
		b, berr := d.readByte()
		if berr != nil {
			return wasm.ConstantExpression{}, berr
		}
		if wasm.Opcode(b) == wasm.OpcodeEnd {
			return ce, nil
		}
		sop, sdata, serr := d.readConstExprInstr(b)
		if serr != nil {
			return wasm.ConstantExpression{}, serr
		}
		ce.Extra = append(ce.Extra, wasm.ConstStep{Opcode: sop, Data: sdata})
	}
}

func decodeULEBLocal(b []byte) (v uint64, n int, ok bool) {
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

func decodeNameSection(data []byte) *wasm.NameSection {
	ns := &wasm.NameSection{FunctionNames: map[wasm.Index]string{}}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		subID, err := r.ReadByte()
		if err != nil {
			return ns
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return ns
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return ns
		}
		br := bytes.NewReader(body)
		switch subID {
		case 0: // module name
			n, _, err := leb128.DecodeUint32(br)
			if err != nil {
				continue
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(br, buf); err == nil {
				ns.ModuleName = string(buf)
			}
		case 1: // function names
			count, _, err := leb128.DecodeUint32(br)
			if err != nil {
				continue
			}
			for i := uint32(0); i < count; i++ {
				idx, _, err := leb128.DecodeUint32(br)
				if err != nil {
					break
				}
				n, _, err := leb128.DecodeUint32(br)
				if err != nil {
					break
				}
				buf := make([]byte, n)
				if _, err := io.ReadFull(br, buf); err != nil {
					break
				}
				ns.FunctionNames[idx] = string(buf)
			}
		}
	}
	return ns
}

func wrapIOErr(err error) *wasm.WasmError {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return wasm.NewError(wasm.ErrTruncated, "unexpected end of module")
	}
	return wasm.WrapError(wasm.ErrTruncated, "i/o error reading module", err)
}
