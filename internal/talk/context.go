package talk

import (
	"sort"
)

type ContextState int

const (
	ContextCreated ContextState = iota
	ContextActive
	ContextRetired
)

func (s ContextState) String() string {
	switch s {
	case ContextCreated:
		return "created"
	case ContextActive:
		return "active"
	}
	return "retired"
}

// ExecutionContext holds the locals of one handler invocation. The parent link records
// the invoking context for unwinding only; variable lookup never follows it.
type ExecutionContext struct {
	HandlerName string
	// Part is the part whose handler is executing ("this").
	Part *Part
	// Target is the part the message was originally sent to.
	Target *Part

	locals  map[string]Value
	parent  *ExecutionContext
	state   ContextState
	handler *Handler
}

func newExecutionContext(handlerName string, part, target *Part, parent *ExecutionContext) *ExecutionContext {
	return &ExecutionContext{
		HandlerName: handlerName,
		Part:        part,
		Target:      target,
		locals:      make(map[string]Value),
		parent:      parent,
		state:       ContextCreated,
	}
}

func (c *ExecutionContext) GetLocal(name string) (Value, bool) {
	v, ok := c.locals[name]
	return v, ok
}

func (c *ExecutionContext) SetLocal(name string, value Value) {
	c.locals[name] = value
}

// Locals returns a copy of the current locals.
func (c *ExecutionContext) Locals() map[string]Value {
	out := make(map[string]Value, len(c.locals))
	for k, v := range c.locals {
		out[k] = v
	}
	return out
}

func (c *ExecutionContext) Parent() *ExecutionContext { return c.parent }
func (c *ExecutionContext) State() ContextState       { return c.state }

// History maps handler names to the locals of their most recent invocation.
// Entries outlive the contexts that produced them. Live contexts on the stack are
// layered on top: while a handler runs, Lookup sees its current locals.
type History struct {
	byHandler map[string]map[string]Value
	live      *ExecutionStack
}

func newHistory(live *ExecutionStack) *History {
	return &History{byHandler: make(map[string]map[string]Value), live: live}
}

func (h *History) Lookup(handlerName string) (map[string]Value, bool) {
	if h.live != nil {
		for i := len(h.live.frames) - 1; i >= 0; i-- {
			if c := h.live.frames[i]; c.HandlerName == handlerName {
				return c.Locals(), true
			}
		}
	}
	locals, ok := h.byHandler[handlerName]
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(locals))
	for k, v := range locals {
		out[k] = v
	}
	return out, true
}

// Handlers lists the handler names with a recorded or running invocation.
func (h *History) Handlers() []string {
	seen := make(map[string]bool, len(h.byHandler))
	names := make([]string, 0, len(h.byHandler))
	for n := range h.byHandler {
		seen[n] = true
		names = append(names, n)
	}
	if h.live != nil {
		for _, c := range h.live.frames {
			if !seen[c.HandlerName] {
				seen[c.HandlerName] = true
				names = append(names, c.HandlerName)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (h *History) record(c *ExecutionContext) {
	h.byHandler[c.HandlerName] = c.Locals()
}

// ExecutionStack tracks the live chain of contexts, the world's global variables,
// and the durable history.
type ExecutionStack struct {
	frames  []*ExecutionContext
	globals map[string]Value
	history *History
}

func newExecutionStack() *ExecutionStack {
	s := &ExecutionStack{globals: make(map[string]Value)}
	s.history = newHistory(s)
	return s
}

func (s *ExecutionStack) push(c *ExecutionContext) error {
	if c.state != ContextCreated {
		return invariant("context for %q pushed in state %s", c.HandlerName, c.state)
	}
	if top := s.Current(); top != c.parent {
		return invariant("context for %q pushed over a context that is not its caller", c.HandlerName)
	}
	c.state = ContextActive
	s.frames = append(s.frames, c)
	return nil
}

// pop retires c, which must be the top of the stack, and records its locals.
func (s *ExecutionStack) pop(c *ExecutionContext) error {
	n := len(s.frames)
	if n == 0 || s.frames[n-1] != c {
		return invariant("context stack corrupted while leaving %q", c.HandlerName)
	}
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	c.state = ContextRetired
	s.history.record(c)
	return nil
}

// Current returns the innermost active context, or nil when idle.
func (s *ExecutionStack) Current() *ExecutionContext {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *ExecutionStack) Depth() int { return len(s.frames) }

func (s *ExecutionStack) History() *History { return s.history }

func (s *ExecutionStack) Global(name string) (Value, bool) {
	v, ok := s.globals[name]
	return v, ok
}

func (s *ExecutionStack) SetGlobal(name string, value Value) {
	s.globals[name] = value
}

// GlobalNames lists the defined globals in sorted order.
func (s *ExecutionStack) GlobalNames() []string {
	names := make([]string, 0, len(s.globals))
	for n := range s.globals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
