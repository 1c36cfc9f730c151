package memory

import (
	"encoding/binary"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	chainext "github.com/wippyai/chain-extension"
	"github.com/wippyai/chain-extension/errors"
)

var (
	_ chainext.Memory = (*Wazero)(nil)
	_ chainext.Memory = (*Linear)(nil)
)

// inBounds reports whether [offset, offset+length) fits in size bytes.
// Computed in 64 bits so offset+length cannot wrap.
func inBounds(offset, length uint32, size uint64) bool {
	return uint64(offset)+uint64(length) <= size
}

// Wazero adapts a wazero memory to chainext.Memory.
type Wazero struct {
	mem api.Memory
}

// FromModule returns the memory of a wazero module, or nil if it has none.
// wazero reports a missing memory as a typed nil inside api.Memory.
func FromModule(mod api.Module) *Wazero {
	mem := mod.Memory()
	if mem == nil || reflect.ValueOf(mem).IsNil() {
		return nil
	}
	return &Wazero{mem: mem}
}

// Wrap adapts an existing wazero memory.
func Wrap(mem api.Memory) *Wazero {
	return &Wazero{mem: mem}
}

func (m *Wazero) Size() uint64 {
	return uint64(m.mem.Size())
}

// Read copies length bytes at offset. wazero returns a view that is
// invalidated when memory grows, so the bytes are always copied out.
func (m *Wazero) Read(offset, length uint32) ([]byte, error) {
	if !inBounds(offset, length, m.Size()) {
		return nil, errors.MemoryAccessFault(offset, length, m.Size())
	}
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.MemoryAccessFault(offset, length, m.Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (m *Wazero) ReadInto(offset uint32, buf []byte) error {
	length := uint32(len(buf))
	if !inBounds(offset, length, m.Size()) {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	copy(buf, view)
	return nil
}

func (m *Wazero) Write(offset uint32, data []byte) error {
	length := uint32(len(data))
	if !inBounds(offset, length, m.Size()) {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	if !m.mem.Write(offset, data) {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	return nil
}

func (m *Wazero) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.MemoryAccessFault(offset, 4, m.Size())
	}
	return v, nil
}

func (m *Wazero) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.MemoryAccessFault(offset, 4, m.Size())
	}
	return nil
}

// Linear is guest memory backed by a plain byte slice.
// Hosts use it to drive extensions without a VM, e.g. in tests or replay tools.
type Linear struct {
	data []byte
}

// NewLinear allocates a zeroed memory of size bytes.
func NewLinear(size uint32) *Linear {
	return &Linear{data: make([]byte, size)}
}

// LinearFrom wraps data without copying it.
func LinearFrom(data []byte) *Linear {
	return &Linear{data: data}
}

// Bytes exposes the backing slice.
func (m *Linear) Bytes() []byte {
	return m.data
}

func (m *Linear) Size() uint64 {
	return uint64(len(m.data))
}

func (m *Linear) Read(offset, length uint32) ([]byte, error) {
	if !inBounds(offset, length, m.Size()) {
		return nil, errors.MemoryAccessFault(offset, length, m.Size())
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *Linear) ReadInto(offset uint32, buf []byte) error {
	length := uint32(len(buf))
	if !inBounds(offset, length, m.Size()) {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	copy(buf, m.data[offset:])
	return nil
}

func (m *Linear) Write(offset uint32, data []byte) error {
	length := uint32(len(data))
	if !inBounds(offset, length, m.Size()) {
		return errors.MemoryAccessFault(offset, length, m.Size())
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	if !inBounds(offset, 4, m.Size()) {
		return 0, errors.MemoryAccessFault(offset, 4, m.Size())
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Linear) WriteU32(offset uint32, value uint32) error {
	if !inBounds(offset, 4, m.Size()) {
		return errors.MemoryAccessFault(offset, 4, m.Size())
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}
