package wasmbuild

// Exports of the guest built by Forwarder.
const (
	ForwardExport         = "call"
	ForwardCapacityExport = "call_with_capacity"
)

// Forwarder builds a guest with a memory of pages pages exported as "memory"
// and two functions:
//
//	call(func_id, in_ptr, in_len, out_ptr, out_len_ptr) i32
//	call_with_capacity(func_id, in_ptr, in_len, out_ptr, out_len_ptr, capacity) i32
//
// Both pass their first five arguments to the imported module.name trap and
// return its result. call_with_capacity first stores capacity at
// out_len_ptr. data is placed at address 0.
func Forwarder(module, name string, pages uint32, data []byte) []byte {
	m := &Module{
		Imports:      []Import{{Module: module, Name: name, Type: trapType}},
		MemoryPages:  pages,
		MemoryExport: "memory",
	}

	withCapacity := FuncType{
		Params:  []ValType{I32, I32, I32, I32, I32, I32},
		Results: []ValType{I32},
	}
	m.Funcs = []Func{
		{Type: trapType, Export: ForwardExport, Body: forward(NewCode())},
		{Type: withCapacity, Export: ForwardCapacityExport, Body: forward(NewCode().LocalGet(4).LocalGet(5).I32Store(0))},
	}
	if len(data) > 0 {
		m.Data = []Data{{Offset: 0, Bytes: data}}
	}
	return m.Encode()
}

// BareForwarder builds a guest without memory whose only export is
// ForwardExport, forwarding to the imported module.name trap.
func BareForwarder(module, name string) []byte {
	m := &Module{
		Imports: []Import{{Module: module, Name: name, Type: trapType}},
		Funcs:   []Func{{Type: trapType, Export: ForwardExport, Body: forward(NewCode())}},
	}
	return m.Encode()
}

// trapType is the signature of the chain extension trap.
var trapType = FuncType{
	Params:  []ValType{I32, I32, I32, I32, I32},
	Results: []ValType{I32},
}

// forward passes the first five locals to function 0.
func forward(c *Code) *Code {
	for i := uint32(0); i < 5; i++ {
		c.LocalGet(i)
	}
	return c.Call(0)
}

// Constant builds a guest without imports whose export "answer" returns v.
func Constant(v int32) []byte {
	m := &Module{
		MemoryPages:  1,
		MemoryExport: "memory",
		Funcs: []Func{{
			Type:   FuncType{Results: []ValType{I32}},
			Export: "answer",
			Body:   NewCode().I32Const(v),
		}},
	}
	return m.Encode()
}

// Trap builds a guest whose export "boom" executes unreachable.
func Trap() []byte {
	m := &Module{
		Funcs: []Func{{
			Type:   FuncType{},
			Export: "boom",
			Body:   NewCode().Unreachable(),
		}},
	}
	return m.Encode()
}
