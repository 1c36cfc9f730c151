// Package wasmbuild assembles small core wasm modules for tests and demos.
//
// Only the handful of sections and instructions the chain extension guests
// need are supported: types, imports of functions, one memory, functions,
// exports and active data segments.
package wasmbuild

const (
	magic   uint32 = 0x6d736100
	version uint32 = 1

	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11

	funcTypeByte byte = 0x60

	kindFunc   byte = 0x00
	kindMemory byte = 0x02
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is an imported function.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a defined function. Its index follows all imports.
type Func struct {
	Type   FuncType
	Export string
	Locals []ValType
	Body   *Code
}

// Data is an active data segment in memory 0.
type Data struct {
	Bytes  []byte
	Offset uint32
}

// Module is a core module under construction.
type Module struct {
	Imports []Import
	Funcs   []Func
	Data    []Data

	// MemoryPages is the minimum size of memory 0. Zero means no memory.
	MemoryPages uint32
	// MemoryExport names the exported memory, if any.
	MemoryExport string
}

// FuncIndex returns the index of the i-th defined function.
func (m *Module) FuncIndex(i int) uint32 {
	return uint32(len(m.Imports) + i)
}

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	var w Writer
	w.WriteU32LE(magic)
	w.WriteU32LE(version)

	types, typeIdx := m.types()

	if len(types) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(types)))
		for _, ft := range types {
			sec.Byte(funcTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&w, sectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(kindFunc)
			sec.WriteU32(typeIdx[signature(imp.Type)])
		}
		writeSection(&w, sectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.WriteU32(typeIdx[signature(f.Type)])
		}
		writeSection(&w, sectionFunction, sec.Bytes())
	}

	if m.MemoryPages > 0 {
		var sec Writer
		sec.WriteU32(1)
		sec.Byte(0x00) // min only
		sec.WriteU32(m.MemoryPages)
		writeSection(&w, sectionMemory, sec.Bytes())
	}

	var exports Writer
	var exportCount uint32
	if m.MemoryPages > 0 && m.MemoryExport != "" {
		exports.WriteName(m.MemoryExport)
		exports.Byte(kindMemory)
		exports.WriteU32(0)
		exportCount++
	}
	for i, f := range m.Funcs {
		if f.Export == "" {
			continue
		}
		exports.WriteName(f.Export)
		exports.Byte(kindFunc)
		exports.WriteU32(m.FuncIndex(i))
		exportCount++
	}
	if exportCount > 0 {
		var sec Writer
		sec.WriteU32(exportCount)
		sec.WriteBytes(exports.Bytes())
		writeSection(&w, sectionExport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body Writer
			body.WriteU32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.WriteU32(1)
				body.Byte(byte(l))
			}
			if f.Body != nil {
				body.WriteBytes(f.Body.Bytes())
			}
			body.Byte(opEnd)
			sec.WriteVec(body.Bytes())
		}
		writeSection(&w, sectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.WriteU32(0) // active, memory 0
			sec.Byte(opI32Const)
			sec.WriteS32(int32(d.Offset))
			sec.Byte(opEnd)
			sec.WriteVec(d.Bytes)
		}
		writeSection(&w, sectionData, sec.Bytes())
	}

	return w.Bytes()
}

// types collects the distinct signatures in first-use order.
func (m *Module) types() ([]FuncType, map[string]uint32) {
	var out []FuncType
	idx := make(map[string]uint32)
	add := func(ft FuncType) {
		key := signature(ft)
		if _, ok := idx[key]; ok {
			return
		}
		idx[key] = uint32(len(out))
		out = append(out, ft)
	}
	for _, imp := range m.Imports {
		add(imp.Type)
	}
	for _, f := range m.Funcs {
		add(f.Type)
	}
	return out, idx
}

func signature(ft FuncType) string {
	b := make([]byte, 0, len(ft.Params)+len(ft.Results)+1)
	for _, p := range ft.Params {
		b = append(b, byte(p))
	}
	b = append(b, '|')
	for _, r := range ft.Results {
		b = append(b, byte(r))
	}
	return string(b)
}

func writeValTypes(w *Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeSection(w *Writer, id byte, content []byte) {
	w.Byte(id)
	w.WriteVec(content)
}
