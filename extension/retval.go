package extension

import "fmt"

// ReturnFlags are status bits attached to a diverging return.
// Bits other than FlagRevert are host-defined.
type ReturnFlags uint32

const (
	// FlagRevert asks the host to roll back the state changes of the call.
	FlagRevert ReturnFlags = 1 << 0
)

// Reverted reports whether FlagRevert is set.
func (f ReturnFlags) Reverted() bool {
	return f&FlagRevert != 0
}

// RetVal determines how the guest continues after an extension call.
type RetVal struct {
	data      []byte
	value     uint32
	flags     ReturnFlags
	diverging bool
}

// Converging returns value to the calling guest, which resumes normally.
func Converging(value uint32) RetVal {
	return RetVal{value: value}
}

// Diverging stops the guest call. data becomes the result of the call, as if
// the guest itself had returned it with flags.
func Diverging(flags ReturnFlags, data []byte) RetVal {
	return RetVal{flags: flags, data: data, diverging: true}
}

// IsDiverging reports whether the guest call ends here.
func (r RetVal) IsDiverging() bool { return r.diverging }

// Value is the value returned to the guest by a converging call.
func (r RetVal) Value() uint32 { return r.value }

// Flags are the exit flags of a diverging call.
func (r RetVal) Flags() ReturnFlags { return r.flags }

// Data is the result buffer of a diverging call.
func (r RetVal) Data() []byte { return r.data }

func (r RetVal) String() string {
	if r.diverging {
		return fmt.Sprintf("diverging(flags=%#x, %d bytes)", uint32(r.flags), len(r.data))
	}
	return fmt.Sprintf("converging(%d)", r.value)
}
