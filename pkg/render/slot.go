package render

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/value"
)

// State is the lifecycle position of a Slot.
type State int

const (
	// StateUnresolved means no typed value is bound; nothing renders.
	StateUnresolved State = iota
	// StateResolving means a handle lookup is in flight.
	StateResolving
	// StateRendered means an instance is mounted for the bound value.
	StateRendered
	// StateReplacing means the bound type changed and the previous instance
	// is being torn down.
	StateReplacing
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateRendered:
		return "rendered"
	case StateReplacing:
		return "replacing"
	default:
		return "unknown"
	}
}

// Instance is one mounted renderer for a bound value. It owns the
// subscriptions registered during its life and releases them on teardown.
type Instance struct {
	ID     string
	Type   string
	Handle registry.Handle
	Value  *value.Value

	bus *events.Bus

	mu       sync.Mutex
	closed   bool
	teardown []func()
}

// OnTeardown registers fn to run when the instance is torn down. Functions
// registered after teardown run immediately.
func (i *Instance) OnTeardown(fn func()) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		fn()
		return
	}
	i.teardown = append(i.teardown, fn)
	i.mu.Unlock()
}

// Subscribe listens on topic of the renderer's bus until teardown.
func (i *Instance) Subscribe(topic string, fn events.Handler) {
	if i.bus == nil {
		return
	}
	i.OnTeardown(i.bus.Subscribe(topic, fn))
}

// Closed reports whether the instance has been torn down.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

func (i *Instance) close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	fns := i.teardown
	i.teardown = nil
	i.mu.Unlock()

	// Release in reverse registration order.
	for idx := len(fns) - 1; idx >= 0; idx-- {
		fns[idx]()
	}
}

// Slot binds one tagged value to a mounted renderer instance and drives the
// Unresolved -> Resolving -> Rendered lifecycle, passing through Replacing
// whenever the bound type changes.
type Slot struct {
	renderer *Renderer
	opts     Options
	observe  func(State)

	mu       sync.Mutex
	state    State
	instance *Instance
	html     string
}

// NewSlot creates an unbound slot. observe, when non-nil, is called on every
// state transition.
func (r *Renderer) NewSlot(opts Options, observe func(State)) *Slot {
	return &Slot{renderer: r, opts: opts, observe: observe}
}

// Bind renders v into the slot. Binding a value of the same type re-renders
// within the existing instance; a different type tears the instance down
// before a new one is mounted; an untyped value unmounts everything.
func (s *Slot) Bind(ctx context.Context, v *value.Value) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.IsPending() {
		s.unmount()
		s.html = ""
		s.transition(StateUnresolved)
		return "", nil
	}

	typeName := v.Type
	if s.instance != nil && s.instance.Type != typeName {
		s.transition(StateReplacing)
		s.unmount()
	}

	s.transition(StateResolving)
	out, err := s.renderer.render(ctx, v, s.opts)
	if err != nil {
		s.unmount()
		s.html = ""
		s.transition(StateUnresolved)
		return "", err
	}

	if s.instance != nil {
		s.instance.Value = v
		s.instance.Handle = out.Handle
	} else {
		inst := &Instance{
			ID:     uuid.NewString(),
			Type:   typeName,
			Handle: out.Handle,
			Value:  v,
			bus:    s.renderer.bus,
		}
		if mount := s.renderer.mountFor(out.Handle.Name); mount != nil {
			if err := mount(ctx, inst); err != nil {
				inst.close()
				s.html = ""
				s.transition(StateUnresolved)
				return "", err
			}
		}
		s.instance = inst
		s.renderer.logger.Debug("semantic value mounted",
			zap.String("type", typeName), zap.String("handle", out.Handle.Name), zap.String("instance", inst.ID))
	}

	s.html = out.HTML
	s.transition(StateRendered)
	return s.html, nil
}

// HTML returns the last rendered output.
func (s *Slot) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

// State returns the current lifecycle state.
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Instance returns the mounted instance or nil.
func (s *Slot) Instance() *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// Close tears down the mounted instance.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmount()
	s.html = ""
	s.transition(StateUnresolved)
}

func (s *Slot) unmount() {
	if s.instance == nil {
		return
	}
	s.instance.close()
	s.instance = nil
}

func (s *Slot) transition(next State) {
	if s.state == next && next != StateResolving {
		return
	}
	s.state = next
	if s.observe != nil {
		s.observe(next)
	}
}
