package talk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"simpletalk/internal/events"
)

const systemLogPrefix = "talk:system"

type MessageKind string

const (
	KindCommand MessageKind = "command"
	KindCompile MessageKind = "compile"
)

// Message is the unit of dispatch. It is never modified once built.
type Message struct {
	Kind         MessageKind
	Name         string
	Args         []Value
	Target       PartID
	CodeString   string
	ShouldIgnore bool
}

// PluginHost is the boundary to named external services.
type PluginHost interface {
	Load(ctx context.Context, name, sourceURL string) (bool, error)
	Get(ctx context.Context, name, prerequisite, key string) (string, error)
}

// Asker answers the ask command.
type Asker interface {
	Ask(prompt string) (string, error)
}

// SnapshotSaver persists the world for the save command.
type SnapshotSaver interface {
	SaveWorld(ctx context.Context, name string, sys *System) error
}

// System owns a part hierarchy and dispatches messages through it. Dispatch, Execute,
// RunPending and Serve must be called from a single goroutine; Post is safe from any.
type System struct {
	hierarchy     *Hierarchy
	stack         *ExecutionStack
	interp        *Interpreter
	builtins      map[string]*Handler
	publisher     events.Publisher
	plugins       PluginHost
	saver         SnapshotSaver
	asker         Asker
	out           io.Writer
	logger        *slog.Logger
	pluginTimeout time.Duration
	now           func() time.Time

	mu      sync.Mutex
	pending []Message
	wake    chan struct{}
}

type Option func(*System)

func WithOutput(w io.Writer) Option { return func(s *System) { s.out = w } }

func WithAsker(a Asker) Option { return func(s *System) { s.asker = a } }

func WithPublisher(p events.Publisher) Option { return func(s *System) { s.publisher = p } }

func WithPlugins(p PluginHost) Option { return func(s *System) { s.plugins = p } }

func WithSnapshotSaver(sv SnapshotSaver) Option { return func(s *System) { s.saver = sv } }

func WithLogger(l *slog.Logger) Option { return func(s *System) { s.logger = l } }

func WithPluginTimeout(d time.Duration) Option { return func(s *System) { s.pluginTimeout = d } }

func WithClock(now func() time.Time) Option { return func(s *System) { s.now = now } }

func NewSystem(h *Hierarchy, opts ...Option) *System {
	if h == nil {
		h = NewHierarchy()
	}
	stack := newExecutionStack()
	s := &System{
		hierarchy:     h,
		stack:         stack,
		interp:        NewInterpreter(h, stack),
		builtins:      make(map[string]*Handler, len(systemHandlers)),
		publisher:     events.NoOpPublisher{},
		out:           io.Discard,
		logger:        slog.Default(),
		pluginTimeout: 10 * time.Second,
		now:           time.Now,
		wake:          make(chan struct{}, 1),
	}
	for name, fn := range systemHandlers {
		s.builtins[name] = &Handler{Name: name, Native: fn}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) Hierarchy() *Hierarchy        { return s.hierarchy }
func (s *System) Stack() *ExecutionStack       { return s.stack }
func (s *System) History() *History            { return s.stack.history }
func (s *System) Interpreter() *Interpreter    { return s.interp }
func (s *System) World() *Part                 { return s.hierarchy.world }
func (s *System) Part(id PartID) (*Part, bool) { return s.hierarchy.Part(id) }

// Compile installs the handlers defined by source on a part. On failure the part keeps
// its previous handlers.
func (s *System) Compile(ctx context.Context, id PartID, source string) error {
	_, err := s.Dispatch(ctx, Message{Kind: KindCompile, Target: id, CodeString: source})
	return err
}

// Send dispatches a command message from outside the engine.
func (s *System) Send(ctx context.Context, id PartID, name string, args ...Value) (Value, error) {
	return s.Dispatch(ctx, Message{Kind: KindCommand, Name: name, Args: args, Target: id})
}

// Dispatch delivers a message from outside the engine and returns its result. Failures come
// back as *Error values; nothing panics across this boundary.
func (s *System) Dispatch(ctx context.Context, msg Message) (Value, error) {
	target, ok := s.hierarchy.Part(msg.Target)
	if !ok {
		err := notFound("no part with id %d", msg.Target)
		s.logger.Debug(fmt.Sprintf("%s - %v", systemLogPrefix, err))
		return nil, err
	}
	return s.dispatchTo(ctx, target, msg, s.stack.Current())
}

func (s *System) dispatchTo(ctx context.Context, target *Part, msg Message, sender *ExecutionContext) (Value, error) {
	switch msg.Kind {
	case KindCompile:
		err := s.compileInto(target, msg.CodeString)
		s.publish(ctx, msg, sender, target, nil, false, err)
		return nil, err
	case KindCommand, "":
	default:
		return nil, newError(RuntimeFailure, "unknown message kind %q", msg.Kind)
	}

	h, definer, err := s.lookup(target, msg.Name)
	if err != nil {
		if msg.ShouldIgnore && IsKind(err, ResolutionNotFound) {
			s.logger.Debug(fmt.Sprintf("%s - ignoring unhandled %s sent to %s id %d", systemLogPrefix, msg.Name, target.partType, target.id))
			s.publish(ctx, msg, sender, target, nil, true, nil)
			return nil, nil
		}
		s.publish(ctx, msg, sender, target, nil, false, err)
		return nil, err
	}

	args := make([]Value, len(msg.Args))
	for i, a := range msg.Args {
		v, err := s.interp.Interpret(a, sender)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	s.publish(ctx, msg, sender, target, definer, false, nil)

	if h.Native != nil {
		return h.Native(&Call{
			Context: ctx,
			System:  s,
			Sender:  sender,
			Target:  target,
			Args:    args,
			Message: msg,
		})
	}
	_, err = s.invoke(ctx, h, definer, target, args, sender)
	return nil, err
}

// invoke runs a script handler body in a fresh context owned by part.
func (s *System) invoke(ctx context.Context, h *Handler, part, target *Part, args []Value, sender *ExecutionContext) (Value, error) {
	ec := newExecutionContext(h.Name, part, target, sender)
	ec.handler = h
	if err := s.stack.push(ec); err != nil {
		return nil, err
	}
	for i, p := range h.Params {
		var v Value
		if i < len(args) {
			v = args[i]
		}
		ec.SetLocal(p, v)
	}

	res := s.execBlock(ctx, h.Body, ec)
	if err := s.stack.pop(ec); err != nil {
		return nil, err
	}
	if res.Error != nil {
		var te *Error
		if errors.As(res.Error, &te) && te.Fatal() {
			s.logger.Error(fmt.Sprintf("%s - engine failure in %s: %v", systemLogPrefix, h.Name, te))
		}
		return nil, res.Error
	}
	return res.Value, nil
}

// Execute runs statements on a part as an unnamed handler. Used by the REPL.
func (s *System) Execute(ctx context.Context, id PartID, source string) (Value, error) {
	part, ok := s.hierarchy.Part(id)
	if !ok {
		return nil, notFound("no part with id %d", id)
	}
	body, err := CompileBody("input", source)
	if err != nil {
		return nil, err
	}
	h := &Handler{Name: "input", Body: body, Source: source}
	return s.invoke(ctx, h, part, part, nil, s.stack.Current())
}

func (s *System) compileInto(target *Part, source string) error {
	handlers, err := Compile(fmt.Sprintf("%s %d", target.partType, target.id), source)
	if err != nil {
		return err
	}
	installed := make(map[string]*Handler, len(handlers))
	for _, h := range handlers {
		installed[h.Name] = h
	}
	target.handlers = installed
	target.script = source
	s.logger.Debug(fmt.Sprintf("%s - compiled %d handlers into %s id %d", systemLogPrefix, len(handlers), target.partType, target.id))
	return nil
}

func (s *System) publish(ctx context.Context, msg Message, sender *ExecutionContext, receiver, handler *Part, ignored bool, failure error) {
	ev := &events.MessageEvent{
		Name:      msg.Name,
		Kind:      string(msg.Kind),
		Receiver:  endpoint(receiver),
		Ignored:   ignored,
		Depth:     s.stack.Depth(),
		Timestamp: s.now(),
	}
	if ev.Kind == "" {
		ev.Kind = string(KindCommand)
	}
	if sender != nil && sender.Part != nil {
		ep := endpoint(sender.Part)
		ev.Sender = &ep
	}
	if handler != nil {
		ep := endpoint(handler)
		ev.Handler = &ep
	}
	if failure != nil {
		ev.Error = failure.Error()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn(fmt.Sprintf("%s - inspection publish failed: %v", systemLogPrefix, err))
	}
}

func endpoint(p *Part) events.Endpoint {
	return events.Endpoint{Type: p.partType, ID: int(p.id)}
}

// Post queues a message for later dispatch. Results from asynchronous work arrive this way.
func (s *System) Post(msg Message) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages.
func (s *System) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *System) next() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Message{}, false
	}
	msg := s.pending[0]
	s.pending = s.pending[1:]
	return msg, true
}

// RunPending dispatches queued messages one at a time until the queue is empty.
func (s *System) RunPending(ctx context.Context) error {
	var errs []error
	for {
		msg, ok := s.next()
		if !ok {
			return errors.Join(errs...)
		}
		if _, err := s.Dispatch(ctx, msg); err != nil {
			s.logger.Warn(fmt.Sprintf("%s - queued %s failed: %v", systemLogPrefix, msg.Name, err))
			errs = append(errs, err)
		}
	}
}

// Serve dispatches posted messages as they arrive until ctx is cancelled.
func (s *System) Serve(ctx context.Context) error {
	for {
		_ = s.RunPending(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}
