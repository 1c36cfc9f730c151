// Package extension lets a host extend the set of functions a guest can call.
//
// A host author implements Extension. Whenever the guest invokes the
// extension trap, Dispatch hands the function id and an *Init environment to
// Extension.Call. The environment uses typestate: the handler first decides
// how the four raw trap arguments are interpreted, and only gets the
// accessors that interpretation allows.
//
// # Security
//
// The host author alone is responsible for the security of an extension,
// including not exposing exploitable functions and charging the right
// amount of weight. ChargeWeight must be called before carrying out any work
// the charge pays for; reads and writes of guest memory never charge by
// themselves.
package extension

import (
	"github.com/wippyai/chain-extension/errors"
)

// Extension routes a function id and an environment to host behaviour.
//
// If Call returns an error the guest call is aborted immediately and the
// error is passed to the host. Otherwise the RetVal decides how the guest
// continues.
type Extension interface {
	Call(funcID uint32, env *Init) (RetVal, error)
}

// Gate is implemented by extensions that can be switched off. Extensions that
// do not implement it are enabled.
//
// When disabled, Call is never invoked: the trap fails with
// errors.ErrExtensionsDisabled and guests importing the trap are rejected at
// load time.
type Gate interface {
	Enabled() bool
}

// IsEnabled reports whether ext accepts calls.
func IsEnabled(ext Extension) bool {
	if ext == nil {
		return false
	}
	if g, ok := ext.(Gate); ok {
		return g.Enabled()
	}
	return true
}

// Func adapts a function to Extension.
type Func func(funcID uint32, env *Init) (RetVal, error)

func (f Func) Call(funcID uint32, env *Init) (RetVal, error) {
	return f(funcID, env)
}

// Disabled is the extension of a host that offers none.
type Disabled struct{}

var (
	_ Extension = Disabled{}
	_ Gate      = Disabled{}
)

func (Disabled) Enabled() bool { return false }

// Call is never reached through Dispatch because Enabled is false. It still
// fails cleanly in case something calls it directly.
func (Disabled) Call(uint32, *Init) (RetVal, error) {
	return RetVal{}, errors.ExtensionsDisabled()
}
