// Package codec decodes guest-supplied bytes into Go values and encodes host
// values for guests.
//
// Values use borsh, a deterministic little-endian binary format, unless the
// type implements Unmarshaler or Marshaler itself.
package codec

import (
	"fmt"
	"reflect"

	"github.com/near/borsh-go"

	"github.com/wippyai/chain-extension/errors"
)

// Unmarshaler is implemented by types with their own guest wire format.
type Unmarshaler interface {
	UnmarshalGuest(data []byte) error
}

// Marshaler is implemented by types with their own guest wire format.
type Marshaler interface {
	MarshalGuest() ([]byte, error)
}

// Decode parses data into a T. All of data must be consumed.
func Decode[T any](data []byte) (out T, err error) {
	if u, ok := any(&out).(Unmarshaler); ok {
		if err := u.UnmarshalGuest(data); err != nil {
			return out, errors.DecodeFailure(typeName[T](), len(data), err)
		}
		return out, nil
	}

	// borsh-go panics on some malformed inputs instead of returning an error
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = errors.DecodeFailure(typeName[T](), len(data), fmt.Errorf("%v", r))
		}
	}()

	if err := borsh.Deserialize(&out, data); err != nil {
		return out, errors.DecodeFailure(typeName[T](), len(data), err)
	}

	// borsh stops reading once the value is complete; re-encoding tells us
	// how much of data it actually used.
	used, err := borsh.Serialize(out)
	if err != nil {
		return out, errors.DecodeFailure(typeName[T](), len(data), err)
	}
	if len(used) != len(data) {
		var zero T
		return zero, errors.DecodeFailure(typeName[T](), len(data),
			fmt.Errorf("%d trailing bytes", len(data)-len(used)))
	}
	return out, nil
}

// Encode serializes v for a guest.
func Encode(v any) ([]byte, error) {
	if m, ok := v.(Marshaler); ok {
		return m.MarshalGuest()
	}
	data, err := borsh.Serialize(v)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseOutput, errors.KindInvalidInput, err,
			fmt.Sprintf("encode %T", v))
	}
	return data, nil
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
