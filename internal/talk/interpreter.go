package talk

import (
	"math"
	"strings"
)

// Interpreter resolves descriptor nodes against an execution context at the moment they
// are needed. Concrete values pass through untouched.
type Interpreter struct {
	hierarchy *Hierarchy
	stack     *ExecutionStack
}

func NewInterpreter(h *Hierarchy, stack *ExecutionStack) *Interpreter {
	return &Interpreter{hierarchy: h, stack: stack}
}

// Interpret returns value unchanged unless it is a descriptor, which is resolved against
// ec. ec may be nil for messages arriving from outside the engine.
func (ip *Interpreter) Interpret(value Value, ec *ExecutionContext) (Value, error) {
	switch d := value.(type) {
	case nil:
		return nil, nil
	case Variable:
		return ip.lookupVariable(d.Name, ec)
	case *Variable:
		return ip.lookupVariable(d.Name, ec)
	case *PartReference:
		return ResolveReference(d, ip.anchors(ec))
	case Descriptor:
		return nil, invariant("unknown descriptor node %T", d)
	}
	return value, nil
}

// lookupVariable reads the invocation's locals, then the world globals.
func (ip *Interpreter) lookupVariable(name string, ec *ExecutionContext) (Value, error) {
	if ec != nil {
		if v, ok := ec.GetLocal(name); ok {
			return v, nil
		}
	}
	if v, ok := ip.stack.Global(name); ok {
		return v, nil
	}
	return nil, &Error{
		Kind:    ResolutionNotFound,
		Message: "variable " + name + " has not been defined",
		Help:    "assign it first with put ... into " + name,
	}
}

func (ip *Interpreter) anchors(ec *ExecutionContext) Anchors {
	var this *Part
	if ec != nil {
		this = ec.Part
	}
	return ip.hierarchy.Anchors(this)
}

func (l *Literal) Eval(ip *Interpreter, ec *ExecutionContext) (Value, error) {
	return l.Value, nil
}

func (r *Ref) Eval(ip *Interpreter, ec *ExecutionContext) (Value, error) {
	return ip.Interpret(r.Node, ec)
}

func (e *PropertyExpr) Eval(ip *Interpreter, ec *ExecutionContext) (Value, error) {
	var part *Part
	if e.Target == nil {
		if ec == nil || ec.Part == nil {
			return nil, notFound("the %q has no part to read from", e.Property)
		}
		part = ec.Part
	} else {
		p, err := ip.Interpret(e.Target, ec)
		if err != nil {
			return nil, err
		}
		part = p.(*Part)
	}
	v, ok := part.Property(e.Property)
	if !ok {
		return nil, notFound("%s id %d has no property %q", part.partType, part.id, e.Property)
	}
	return v, nil
}

func (e *UnaryExpr) Eval(ip *Interpreter, ec *ExecutionContext) (Value, error) {
	v, err := e.Operand.Eval(ip, ec)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "not":
		return !truthy(v), nil
	case "-":
		n, ok := toNumber(v)
		if !ok {
			return nil, newError(RuntimeFailure, "cannot negate %q", FormatValue(v))
		}
		return -n, nil
	}
	return nil, invariant("unknown unary operator %q", e.Op)
}

func (e *BinaryExpr) Eval(ip *Interpreter, ec *ExecutionContext) (Value, error) {
	left, err := e.Left.Eval(ip, ec)
	if err != nil {
		return nil, err
	}
	// Logical operators short-circuit.
	switch e.Op {
	case "and":
		if !truthy(left) {
			return false, nil
		}
		right, err := e.Right.Eval(ip, ec)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "or":
		if truthy(left) {
			return true, nil
		}
		right, err := e.Right.Eval(ip, ec)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := e.Right.Eval(ip, ec)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "&":
		return FormatValue(left) + FormatValue(right), nil
	case "=":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "<", ">", "<=", ">=":
		return compareValues(e.Op, left, right), nil
	}

	x, okx := toNumber(left)
	y, oky := toNumber(right)
	if !okx || !oky {
		return nil, &Error{
			Kind:    RuntimeFailure,
			Message: "cannot apply " + e.Op + " to \"" + FormatValue(left) + "\" and \"" + FormatValue(right) + "\"",
			Help:    "use & to join text",
		}
	}
	switch e.Op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, newError(RuntimeFailure, "division by zero")
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return nil, newError(RuntimeFailure, "division by zero")
		}
		return math.Mod(x, y), nil
	}
	return nil, invariant("unknown binary operator %q", e.Op)
}

func compareValues(op string, a, b Value) bool {
	var cmp int
	x, okx := toNumber(a)
	y, oky := toNumber(b)
	if okx && oky {
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(FormatValue(a), FormatValue(b))
	}
	switch op {
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	}
	return cmp >= 0
}
