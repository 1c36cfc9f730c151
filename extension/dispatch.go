package extension

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/chain-extension/errors"
)

// Dispatch runs one extension call on behalf of the guest trap.
//
// A closed gate fails with errors.ErrExtensionsDisabled without calling
// ext. Otherwise Dispatch builds the *Init environment over rt and args,
// hands it to ext and releases it when ext returns, so an environment kept
// past its call can no longer reach guest memory or the meter. A handler
// panic, including a second mode transition, becomes an
// errors.ErrContractViolation.
func Dispatch(rt Runtime, ext Extension, funcID uint32, args CallArguments) (ret RetVal, err error) {
	if !IsEnabled(ext) {
		Logger().Debug("chain extension disabled", zap.Uint32("func_id", funcID))
		return RetVal{}, errors.ExtensionsDisabled()
	}

	env := newInit(rt, args)
	defer func() {
		env.s.released = true

		if r := recover(); r != nil {
			ret, err = RetVal{}, recovered(r)
			Logger().Warn("chain extension panicked",
				zap.Uint32("func_id", funcID),
				zap.Stringer("mode", env.s.mode),
				zap.Error(err))
			return
		}

		if err != nil {
			Logger().Debug("chain extension failed",
				zap.Uint32("func_id", funcID),
				zap.Stringer("mode", env.s.mode),
				zap.Error(err))
			return
		}
		Logger().Debug("chain extension returned",
			zap.Uint32("func_id", funcID),
			zap.Stringer("mode", env.s.mode),
			zap.Stringer("ret", ret))
	}()

	return ext.Call(funcID, env)
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		if stderrors.Is(err, errors.ErrContractViolation) {
			return err
		}
		return errors.New(errors.PhaseDispatch, errors.KindContractViolation).
			Detail("handler panicked").
			Cause(err).
			Build()
	}
	return errors.ContractViolation(fmt.Sprintf("handler panicked: %v", r), r)
}
