package talk

import (
	"context"
	"fmt"

	"gitlab.com/variadico/lctime"
)

const builtinsLogPrefix = "talk:builtins"

// Call is what a native handler receives.
type Call struct {
	Context context.Context
	System  *System
	// Sender is the context of the handler that sent the message; nil for external messages.
	Sender  *ExecutionContext
	Target  *Part
	Args    []Value
	Message Message
}

func (c *Call) Arg(i int) Value {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

func (c *Call) String(i int) string { return FormatValue(c.Arg(i)) }

// PartArg returns argument i as a part, or nil when it is absent.
func (c *Call) PartArg(i int) (*Part, error) {
	switch v := c.Arg(i).(type) {
	case nil:
		return nil, nil
	case *Part:
		return v, nil
	default:
		return nil, newError(RuntimeFailure, "%s expects a part, got %q", c.Message.Name, FormatValue(v))
	}
}

// Self is the part a message originated from: the sender's executing part, or the target
// for messages from outside the engine. Commands act on Target; Self is where replies go.
func (c *Call) Self() *Part {
	if c.Sender != nil && c.Sender.Part != nil {
		return c.Sender.Part
	}
	return c.Target
}

// Send dispatches a nested message on behalf of the caller.
func (c *Call) Send(target *Part, name string, shouldIgnore bool, args ...Value) (Value, error) {
	msg := Message{Kind: KindCommand, Name: name, Args: args, Target: target.id, ShouldIgnore: shouldIgnore}
	return c.System.dispatchTo(c.Context, target, msg, c.Sender)
}

// BuiltinFunc tables. systemHandlers answer any part whose branch defines nothing
// closer; privateHandlers belong to each non-world part and only answer messages sent
// to that part itself.
var systemHandlers = map[string]NativeFunc{
	// Variables and properties
	"putInto":     builtinPutInto,
	"setProperty": builtinSetProperty,

	// Parts
	"newModel":    builtinNewModel,
	"deleteModel": builtinDeleteModel,

	// Navigation
	"goToDirection": builtinGoToDirection,
	"goToPart":      builtinGoToPart,

	// I/O
	"answer": builtinAnswer,
	"ask":    builtinAsk,
	"date":   builtinDate,
	"save":   builtinSave,

	// Plugins
	"loadPlugin":    builtinLoadPlugin,
	"pluginGet":     builtinPluginGet,
	"pluginRequest": builtinPluginRequest,

	// Event relays with no default behavior
	"mouseUp":    builtinNoOp,
	"openStack":  builtinNoOp,
	"closeStack": builtinNoOp,
	"openCard":   builtinNoOp,
	"closeCard":  builtinNoOp,
}

var privateHandlers = map[string]NativeFunc{
	"moveUp":      privateMoveBy(-1),
	"moveDown":    privateMoveBy(1),
	"moveToFirst": privateMoveToFirst,
	"moveToLast":  privateMoveToLast,
	"move":        privateMove,
}

func builtinNoOp(c *Call) (Value, error) {
	return nil, nil
}

func builtinPutInto(c *Call) (Value, error) {
	name := c.String(1)
	if name == "" {
		return nil, newError(RuntimeFailure, "put needs a variable name")
	}
	if truthy(c.Arg(2)) || c.Sender == nil {
		c.System.stack.SetGlobal(name, c.Arg(0))
		return nil, nil
	}
	c.Sender.SetLocal(name, c.Arg(0))
	return nil, nil
}

func builtinSetProperty(c *Call) (Value, error) {
	part, err := c.PartArg(2)
	if err != nil {
		return nil, err
	}
	if part == nil {
		part = c.Target
	}
	return nil, part.SetProperty(c.String(0), c.Arg(1))
}

func builtinNewModel(c *Call) (Value, error) {
	partType := c.String(0)
	owner, err := c.PartArg(1)
	if err != nil {
		return nil, err
	}
	h := c.System.hierarchy
	if owner == nil {
		owner = defaultOwner(h, c.Target, partType)
	}
	if owner == nil {
		return nil, notFound("there is nowhere to add a %s", partType)
	}
	p, err := h.NewPart(partType, owner)
	if err != nil {
		return nil, err
	}
	if name := c.String(2); name != "" {
		p.properties["name"] = name
	}
	c.System.logger.Debug(fmt.Sprintf("%s - added %s id %d to %s id %d", builtinsLogPrefix, p.partType, p.id, owner.partType, owner.id))
	return p, nil
}

func defaultOwner(h *Hierarchy, self *Part, partType string) *Part {
	var owner *Part
	switch partType {
	case TypeStack:
		return h.world
	case TypeCard, TypeBackground:
		if self != nil {
			owner = self.nearest(TypeStack)
		}
		if owner == nil {
			owner = h.CurrentStack()
		}
	default:
		if self != nil {
			owner = self.nearest(TypeCard)
		}
		if owner == nil {
			owner = h.CurrentCard()
		}
	}
	return owner
}

func builtinDeleteModel(c *Call) (Value, error) {
	part, err := c.PartArg(0)
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, newError(RuntimeFailure, "delete needs a part")
	}
	if err := c.System.hierarchy.RemovePart(part); err != nil {
		return nil, err
	}
	c.System.logger.Debug(fmt.Sprintf("%s - deleted %s id %d", builtinsLogPrefix, part.partType, part.id))
	return nil, nil
}

func builtinGoToDirection(c *Call) (Value, error) {
	direction, partType := c.String(0), c.String(1)
	h := c.System.hierarchy

	var container, current *Part
	switch partType {
	case TypeCard:
		container, current = h.CurrentStack(), h.CurrentCard()
	case TypeStack:
		container, current = h.world, h.CurrentStack()
	default:
		return nil, newError(RuntimeFailure, "cannot go to the %s %s", direction, partType)
	}
	if container == nil || current == nil {
		return nil, notFound("there is no current %s", partType)
	}
	siblings := ofType(container.Subparts(), partType)
	i := 0
	for i < len(siblings) && siblings[i] != current {
		i++
	}
	n := len(siblings)
	switch direction {
	case "next":
		i = (i + 1) % n
	case "previous":
		i = (i - 1 + n) % n
	default:
		return nil, newError(RuntimeFailure, "unknown direction %q", direction)
	}
	return nil, navigate(c, siblings[i])
}

func builtinGoToPart(c *Call) (Value, error) {
	part, err := c.PartArg(0)
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, newError(RuntimeFailure, "go needs a card or stack")
	}
	return nil, navigate(c, part)
}

// navigate changes the current card or stack, relaying close and open messages to the
// parts involved. Parts without handlers for them ignore the relays.
func navigate(c *Call, dest *Part) error {
	h := c.System.hierarchy
	if dest.partType != TypeCard && dest.partType != TypeStack {
		return newError(RuntimeFailure, "cannot go to a %s", dest.partType)
	}
	oldStack, oldCard := h.CurrentStack(), h.CurrentCard()

	newStack := dest
	if dest.partType == TypeCard {
		newStack = dest.owner
	}
	newCard := dest
	if dest.partType == TypeStack {
		newCard = h.currentCardOf(dest)
	}

	if oldCard != nil && oldCard != newCard {
		if _, err := c.Send(oldCard, "closeCard", true); err != nil {
			return err
		}
	}
	if oldStack != nil && oldStack != newStack {
		if _, err := c.Send(oldStack, "closeStack", true); err != nil {
			return err
		}
	}
	if err := h.SetCurrent(dest); err != nil {
		return err
	}
	if oldStack != newStack {
		if _, err := c.Send(newStack, "openStack", true); err != nil {
			return err
		}
	}
	if newCard != nil && oldCard != newCard {
		if _, err := c.Send(newCard, "openCard", true); err != nil {
			return err
		}
	}
	return nil
}

func builtinAnswer(c *Call) (Value, error) {
	_, err := fmt.Fprintln(c.System.out, c.String(0))
	return nil, err
}

func builtinAsk(c *Call) (Value, error) {
	if c.System.asker == nil {
		return nil, newError(RuntimeFailure, "ask is not available here")
	}
	reply, err := c.System.asker.Ask(c.String(0))
	if err != nil {
		return nil, newError(RuntimeFailure, "ask failed: %v", err)
	}
	return reply, nil
}

// builtinDate formats the current time with strftime directives, "%Y-%m-%d" by default.
func builtinDate(c *Call) (Value, error) {
	format := c.String(0)
	if format == "" {
		format = "%Y-%m-%d"
	}
	return lctime.Strftime(format, c.System.now()), nil
}

func builtinSave(c *Call) (Value, error) {
	if c.System.saver == nil {
		return nil, newError(RuntimeFailure, "save is not available here")
	}
	name := c.String(0)
	if name == "" {
		name = "world"
	}
	if err := c.System.saver.SaveWorld(c.Context, name, c.System); err != nil {
		return nil, newError(RuntimeFailure, "save failed: %v", err)
	}
	return name, nil
}

func privateMoveBy(delta int) NativeFunc {
	return func(c *Call) (Value, error) {
		if c.Target.owner != nil {
			c.Target.moveTo(c.Target.owner.indexOf(c.Target) + delta)
		}
		return nil, nil
	}
}

func privateMoveToFirst(c *Call) (Value, error) {
	c.Target.moveTo(0)
	return nil, nil
}

func privateMoveToLast(c *Call) (Value, error) {
	if c.Target.owner != nil {
		c.Target.moveTo(len(c.Target.owner.subparts) - 1)
	}
	return nil, nil
}

// privateMove sets the part's position properties.
func privateMove(c *Call) (Value, error) {
	x, okx := toNumber(c.Arg(0))
	y, oky := toNumber(c.Arg(1))
	if !okx || !oky {
		return nil, newError(RuntimeFailure, "move expects two numbers, got %q and %q", c.String(0), c.String(1))
	}
	c.Target.properties["left"] = x
	c.Target.properties["top"] = y
	return nil, nil
}
