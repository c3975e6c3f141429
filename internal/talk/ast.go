package talk

import (
	"context"
	"fmt"
	"strings"
)

// NativeFunc implements a builtin or part-native handler.
type NativeFunc func(call *Call) (Value, error)

// Handler is a compiled message handler. Script handlers carry a Body; native handlers
// carry a Native function instead.
type Handler struct {
	Name     string
	Params   []string
	Body     []Stmt
	Private  bool
	Native   NativeFunc
	Source   string
	Location Location
}

func (h *Handler) String() string {
	var b strings.Builder
	if h.Private {
		b.WriteString("private ")
	}
	b.WriteString("on " + h.Name)
	if len(h.Params) > 0 {
		b.WriteString(" " + strings.Join(h.Params, ", "))
	}
	b.WriteString("\n")
	writeBlock(&b, h.Body, 1)
	b.WriteString("end " + h.Name)
	return b.String()
}

type Expr interface {
	Eval(ip *Interpreter, ec *ExecutionContext) (Value, error)
	String() string
}

type Literal struct {
	Value Value
}

// Ref defers a descriptor to the interpreter.
type Ref struct {
	Node Descriptor
}

type BinaryExpr struct {
	Op          string
	Left, Right Expr
}

type UnaryExpr struct {
	Op      string
	Operand Expr
}

// PropertyExpr reads a property of a part; a nil Target means the executing part.
type PropertyExpr struct {
	Property string
	Target   *PartReference
}

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if l.Value == nil {
		return "empty"
	}
	return FormatValue(l.Value)
}

func (r *Ref) String() string { return r.Node.String() }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *UnaryExpr) String() string {
	if e.Op == "not" {
		return fmt.Sprintf("(not %s)", e.Operand)
	}
	return fmt.Sprintf("(%s%s)", e.Op, e.Operand)
}

func (e *PropertyExpr) String() string {
	if e.Target == nil {
		return fmt.Sprintf("the %q", e.Property)
	}
	return fmt.Sprintf("the %q of %s", e.Property, e.Target)
}

type Control int

const (
	ControlNone Control = iota
	ControlExitRepeat
	ControlNextRepeat
)

// Result is the outcome of executing a statement or block.
type Result struct {
	Value   Value
	Control Control
	Error   error
}

type Stmt interface {
	exec(ctx context.Context, s *System, ec *ExecutionContext) Result
	Loc() Location
	String() string
}

// SendStmt sends a message to Target, or to the executing part when Target is nil.
// Every command form compiles to one.
type SendStmt struct {
	At     Location
	Name   string
	Args   []Expr
	Target *PartReference
}

type IfStmt struct {
	At   Location
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type RepeatKind int

const (
	RepeatForever RepeatKind = iota
	RepeatTimes
	RepeatUntil
	RepeatWhile
	RepeatWith
)

type RepeatStmt struct {
	At   Location
	Kind RepeatKind
	// Cond holds the count for RepeatTimes and the condition for RepeatUntil/RepeatWhile.
	Cond     Expr
	Var      string
	From, To Expr
	Body     []Stmt
}

type ControlStmt struct {
	At      Location
	Control Control
}

func (s *SendStmt) Loc() Location    { return s.At }
func (s *IfStmt) Loc() Location      { return s.At }
func (s *RepeatStmt) Loc() Location  { return s.At }
func (s *ControlStmt) Loc() Location { return s.At }

func (s *SendStmt) String() string {
	var b strings.Builder
	if s.Target != nil {
		fmt.Fprintf(&b, "tell %s to ", s.Target)
	}
	b.WriteString(s.Name)
	for i, a := range s.Args {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	return b.String()
}

func (s *IfStmt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "if %s then\n", s.Cond)
	writeBlock(&b, s.Then, 1)
	if len(s.Else) > 0 {
		b.WriteString("else\n")
		writeBlock(&b, s.Else, 1)
	}
	b.WriteString("end if")
	return b.String()
}

func (s *RepeatStmt) String() string {
	var b strings.Builder
	switch s.Kind {
	case RepeatTimes:
		fmt.Fprintf(&b, "repeat %s times\n", s.Cond)
	case RepeatUntil:
		fmt.Fprintf(&b, "repeat until %s\n", s.Cond)
	case RepeatWhile:
		fmt.Fprintf(&b, "repeat while %s\n", s.Cond)
	case RepeatWith:
		fmt.Fprintf(&b, "repeat with %s = %s to %s\n", s.Var, s.From, s.To)
	default:
		b.WriteString("repeat\n")
	}
	writeBlock(&b, s.Body, 1)
	b.WriteString("end repeat")
	return b.String()
}

func (s *ControlStmt) String() string {
	if s.Control == ControlExitRepeat {
		return "exit repeat"
	}
	return "next repeat"
}

func writeBlock(b *strings.Builder, body []Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, st := range body {
		for _, line := range strings.Split(st.String(), "\n") {
			b.WriteString(indent)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
}
