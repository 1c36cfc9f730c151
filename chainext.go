package chainext

// Memory represents guest linear memory.
// Implementations bounds-check every access and never hand out views into
// the underlying storage: Read returns a copy.
type Memory interface {
	Size() uint64
	Read(offset uint32, length uint32) ([]byte, error)
	ReadInto(offset uint32, buf []byte) error
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// SkipSentinel is the output pointer a guest passes to declare that it does
// not need the output of an extension call.
const SkipSentinel uint32 = 1<<32 - 1
