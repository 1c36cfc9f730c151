package host

import (
	"context"
)

// Context is the broader execution context of the current guest call,
// handed to extensions through the environment.
type Context interface {
	// Context returns the Go context the guest call runs under.
	Context() context.Context
	// Caller identifies the account that invoked the guest.
	Caller() []byte
	// Address identifies the guest being executed.
	Address() []byte
	// Depth is the nesting level of the call, 0 for a top-level call.
	Depth() int
}

// CallContext is the default Context.
type CallContext struct {
	ctx     context.Context
	caller  []byte
	address []byte
	depth   int
}

var _ Context = (*CallContext)(nil)

// NewCallContext creates a top-level call context.
func NewCallContext(ctx context.Context, caller, address []byte) *CallContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CallContext{
		ctx:     ctx,
		caller:  caller,
		address: address,
	}
}

// Nested returns the context of a call made by this guest into address.
// The current address becomes the caller.
func (c *CallContext) Nested(address []byte) *CallContext {
	return &CallContext{
		ctx:     c.ctx,
		caller:  c.address,
		address: address,
		depth:   c.depth + 1,
	}
}

func (c *CallContext) Context() context.Context { return c.ctx }
func (c *CallContext) Caller() []byte           { return c.caller }
func (c *CallContext) Address() []byte          { return c.address }
func (c *CallContext) Depth() int               { return c.depth }
