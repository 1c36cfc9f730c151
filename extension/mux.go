package extension

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wippyai/chain-extension/errors"
)

// Route describes one registered handler.
type Route struct {
	Name string
	ID   uint32
}

type route struct {
	fn   Func
	name string
}

// Mux routes calls to handlers by function id.
// Registration is safe for concurrent use with Call.
type Mux struct {
	routes   map[uint32]route
	mu       sync.RWMutex
	disabled bool
}

var (
	_ Extension = (*Mux)(nil)
	_ Gate      = (*Mux)(nil)
)

// NewMux creates an empty, enabled Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[uint32]route)}
}

// Handle registers fn for id. name is used in logs and listings.
func (m *Mux) Handle(id uint32, name string, fn Func) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("nil handler for %q", name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.routes[id]; ok {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Value(id).
			Detail("function id %#x already registered as %q", id, existing.name).
			Build()
	}
	m.routes[id] = route{fn: fn, name: name}
	return nil
}

// MustHandle is Handle that panics on error, for static registration.
func (m *Mux) MustHandle(id uint32, name string, fn Func) {
	if err := m.Handle(id, name, fn); err != nil {
		panic(err)
	}
}

// Disable closes the gate. It cannot be reopened.
func (m *Mux) Disable() {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
}

// Enabled reports whether the gate is open. A nil Mux is closed.
func (m *Mux) Enabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.disabled
}

// Name returns the registered name of id.
func (m *Mux) Name(id uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	return r.name, ok
}

// Routes lists the registered handlers ordered by id.
func (m *Mux) Routes() []Route {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Route, 0, len(m.routes))
	for id, r := range m.routes {
		out = append(out, Route{ID: id, Name: r.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mux) Call(funcID uint32, env *Init) (RetVal, error) {
	m.mu.RLock()
	r, ok := m.routes[funcID]
	m.mu.RUnlock()

	if !ok {
		return RetVal{}, errors.UnknownFunction(funcID)
	}
	return r.fn(funcID, env)
}
