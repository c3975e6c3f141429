package talk

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

type compiler struct {
	filename  string
	source    string
	loopDepth int
}

// Compile parses a part script and compiles every handler it defines.
func Compile(filename, source string) ([]*Handler, error) {
	tree, err := NewParser(filename).ParseScript(source)
	if err != nil {
		return nil, err
	}
	c := &compiler{filename: filename, source: source}
	seen := make(map[string]bool)
	handlers := make([]*Handler, 0, len(tree.Handlers))
	for _, n := range tree.Handlers {
		if seen[n.Name] {
			return nil, c.failAt(n.Pos, "handler %q is defined more than once", n.Name)
		}
		seen[n.Name] = true
		h, err := c.handler(n)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// CompileBody compiles a bare sequence of statements.
func CompileBody(filename, source string) ([]Stmt, error) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	tree, err := parseWith(NewParser(filename), bodyParser, source)
	if err != nil {
		return nil, err
	}
	c := &compiler{filename: filename, source: source}
	return c.block(tree.Lines)
}

func CompileExpression(filename, source string) (Expr, error) {
	tree, err := NewParser(filename).ParseExpression(source)
	if err != nil {
		return nil, err
	}
	c := &compiler{filename: filename, source: source}
	return c.expression(tree)
}

func CompileSpecifier(filename, source string) (*PartReference, error) {
	tree, err := NewParser(filename).ParseSpecifier(source)
	if err != nil {
		return nil, err
	}
	c := &compiler{filename: filename, source: source}
	return c.specifier(tree)
}

func (c *compiler) loc(pos lexer.Position) Location {
	return Location{Filename: c.filename, Line: pos.Line, Column: pos.Column}
}

func (c *compiler) failAt(pos lexer.Position, format string, args ...any) *Error {
	return &Error{
		Kind:     ParseFailure,
		Message:  fmt.Sprintf(format, args...),
		Location: c.loc(pos),
		Code:     sourceLine(c.source, pos.Line),
	}
}

func (c *compiler) handler(n *HandlerNode) (*Handler, error) {
	if n.End != n.Name {
		return nil, c.failAt(n.EndPos, "end %s does not close on %s", n.End, n.Name)
	}
	body, err := c.block(n.Body)
	if err != nil {
		return nil, err
	}
	return &Handler{
		Name:     n.Name,
		Params:   n.Params,
		Body:     body,
		Private:  n.Private,
		Source:   c.source,
		Location: c.loc(n.Pos),
	}, nil
}

func (c *compiler) block(lines []*StatementLine) ([]Stmt, error) {
	out := make([]Stmt, 0, len(lines))
	for _, line := range lines {
		st, err := c.statement(line.Statement)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *compiler) statement(n *StatementNode) (Stmt, error) {
	at := c.loc(n.Pos)
	switch {
	case n.Put != nil:
		v, err := c.expression(n.Put.Value)
		if err != nil {
			return nil, err
		}
		return &SendStmt{At: at, Name: "putInto", Args: []Expr{
			v, &Literal{Value: n.Put.Name}, &Literal{Value: n.Put.Global},
		}}, nil

	case n.Set != nil:
		v, err := c.expression(n.Set.Value)
		if err != nil {
			return nil, err
		}
		target, err := c.optionalTarget(n.Set.Target)
		if err != nil {
			return nil, err
		}
		return &SendStmt{At: at, Name: "setProperty", Args: []Expr{
			&Literal{Value: n.Set.Property}, v, target,
		}}, nil

	case n.Add != nil:
		target, err := c.optionalTarget(n.Add.Target)
		if err != nil {
			return nil, err
		}
		name := ""
		if n.Add.Name != nil {
			name = *n.Add.Name
		}
		return &SendStmt{At: at, Name: "newModel", Args: []Expr{
			&Literal{Value: n.Add.Type}, target, &Literal{Value: name},
		}}, nil

	case n.Delete != nil:
		ref, err := c.specifier(n.Delete.Target)
		if err != nil {
			return nil, err
		}
		return &SendStmt{At: at, Name: "deleteModel", Args: []Expr{&Ref{Node: ref}}}, nil

	case n.Go != nil:
		if n.Go.Target != nil {
			ref, err := c.specifier(n.Go.Target)
			if err != nil {
				return nil, err
			}
			return &SendStmt{At: at, Name: "goToPart", Args: []Expr{&Ref{Node: ref}}}, nil
		}
		partType := n.Go.Type
		if partType == "" {
			partType = TypeCard
		}
		return &SendStmt{At: at, Name: "goToDirection", Args: []Expr{
			&Literal{Value: n.Go.Direction}, &Literal{Value: partType},
		}}, nil

	case n.Answer != nil:
		v, err := c.expression(n.Answer.Value)
		if err != nil {
			return nil, err
		}
		return &SendStmt{At: at, Name: "answer", Args: []Expr{v}}, nil

	case n.Ask != nil:
		v, err := c.expression(n.Ask.Prompt)
		if err != nil {
			return nil, err
		}
		return &SendStmt{At: at, Name: "ask", Args: []Expr{v}}, nil

	case n.Tell != nil:
		return c.tell(at, n.Tell)

	case n.If != nil:
		return c.ifStatement(at, n.If)

	case n.Repeat != nil:
		return c.repeat(at, n.Repeat)

	case n.ExitRepeat, n.NextRepeat:
		st := &ControlStmt{At: at, Control: ControlNextRepeat}
		if n.ExitRepeat {
			st.Control = ControlExitRepeat
		}
		if c.loopDepth == 0 {
			return nil, c.failAt(n.Pos, "%s is only allowed inside a repeat loop", st)
		}
		return st, nil

	case n.Command != nil:
		return c.command(n.Command)
	}
	return nil, c.failAt(n.Pos, "empty statement")
}

// tell compiles the redirected form like a plain statement and retargets its send.
func (c *compiler) tell(at Location, n *TellNode) (Stmt, error) {
	ref, err := c.specifier(n.Target)
	if err != nil {
		return nil, err
	}
	st, err := c.statement(&StatementNode{
		Pos:     n.Pos,
		Set:     n.Set,
		Add:     n.Add,
		Delete:  n.Delete,
		Go:      n.Go,
		Answer:  n.Answer,
		Command: n.Command,
	})
	if err != nil {
		return nil, err
	}
	send, ok := st.(*SendStmt)
	if !ok {
		return nil, invariant("tell compiled to %T", st)
	}
	send.At = at
	send.Target = ref
	return send, nil
}

func (c *compiler) optionalTarget(n *SpecifierNode) (Expr, error) {
	if n == nil {
		return &Literal{}, nil
	}
	ref, err := c.specifier(n)
	if err != nil {
		return nil, err
	}
	return &Ref{Node: ref}, nil
}

func (c *compiler) command(n *CommandNode) (*SendStmt, error) {
	args := make([]Expr, 0, len(n.Args))
	for _, a := range n.Args {
		e, err := c.expression(a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return &SendStmt{At: c.loc(n.Pos), Name: n.Name, Args: args}, nil
}

func (c *compiler) ifStatement(at Location, n *IfNode) (Stmt, error) {
	cond, err := c.expression(n.Cond)
	if err != nil {
		return nil, err
	}
	st := &IfStmt{At: at, Cond: cond}
	if n.Inline != nil {
		then, err := c.statement(n.Inline)
		if err != nil {
			return nil, err
		}
		st.Then = []Stmt{then}
		if n.InlineElse != nil {
			els, err := c.statement(n.InlineElse)
			if err != nil {
				return nil, err
			}
			st.Else = []Stmt{els}
		}
		return st, nil
	}
	if st.Then, err = c.block(n.Then); err != nil {
		return nil, err
	}
	if st.Else, err = c.block(n.Else); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *compiler) repeat(at Location, n *RepeatNode) (Stmt, error) {
	st := &RepeatStmt{At: at}
	var err error
	switch {
	case n.Times != nil:
		st.Kind = RepeatTimes
		st.Cond, err = c.expression(n.Times)
	case n.Until != nil:
		st.Kind = RepeatUntil
		st.Cond, err = c.expression(n.Until)
	case n.While != nil:
		st.Kind = RepeatWhile
		st.Cond, err = c.expression(n.While)
	case n.With != nil:
		st.Kind = RepeatWith
		st.Var = n.With.Var
		if st.From, err = c.expression(n.With.From); err == nil {
			st.To, err = c.expression(n.With.To)
		}
	}
	if err != nil {
		return nil, err
	}

	c.loopDepth++
	st.Body, err = c.block(n.Body)
	c.loopDepth--
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *compiler) expression(n *ExpressionNode) (Expr, error) {
	left, err := c.and(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Right {
		right, err := c.and(r)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (c *compiler) and(n *AndNode) (Expr, error) {
	left, err := c.comparison(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Right {
		right, err := c.comparison(r)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (c *compiler) comparison(n *ComparisonNode) (Expr, error) {
	left, err := c.concat(n.Left)
	if err != nil {
		return nil, err
	}
	if n.Right == nil {
		return left, nil
	}
	right, err := c.concat(n.Right)
	if err != nil {
		return nil, err
	}
	op := n.Op
	switch op {
	case "is":
		op = "="
	case "isnot", "is not":
		op = "!="
	}
	return &BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (c *compiler) concat(n *ConcatNode) (Expr, error) {
	left, err := c.additive(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Right {
		right, err := c.additive(r)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "&", Left: left, Right: right}
	}
	return left, nil
}

func (c *compiler) additive(n *AdditiveNode) (Expr, error) {
	left, err := c.term(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Rest {
		right, err := c.term(r.Term)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: r.Op, Left: left, Right: right}
	}
	return left, nil
}

func (c *compiler) term(n *TermNode) (Expr, error) {
	left, err := c.unary(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Rest {
		right, err := c.unary(r.Unary)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: r.Op, Left: left, Right: right}
	}
	return left, nil
}

func (c *compiler) unary(n *UnaryNode) (Expr, error) {
	if n.Factor != nil {
		return c.factor(n.Factor)
	}
	operand, err := c.unary(n.Operand)
	if err != nil {
		return nil, err
	}
	// Fold negative number literals so "-0.1" stays a literal.
	if lit, ok := operand.(*Literal); ok && n.Op == "-" {
		if f, ok := lit.Value.(float64); ok {
			return &Literal{Value: -f}, nil
		}
	}
	return &UnaryExpr{Op: n.Op, Operand: operand}, nil
}

func (c *compiler) factor(n *FactorNode) (Expr, error) {
	switch {
	case n.Number != nil:
		return &Literal{Value: *n.Number}, nil
	case n.String != nil:
		return &Literal{Value: *n.String}, nil
	case n.Bool != nil:
		return &Literal{Value: *n.Bool == "true"}, nil
	case n.Property != nil:
		return c.property(n.Property)
	case n.Sub != nil:
		return c.expression(n.Sub)
	case n.Variable != nil:
		return &Ref{Node: Variable{Name: *n.Variable}}, nil
	}
	return nil, c.failAt(n.Pos, "empty expression")
}

func (c *compiler) property(n *PropertyValueNode) (Expr, error) {
	pe := &PropertyExpr{Property: n.Property}
	if n.Target != nil {
		ref, err := c.specifier(n.Target)
		if err != nil {
			return nil, err
		}
		pe.Target = ref
	}
	return pe, nil
}

func (c *compiler) specifier(n *SpecifierNode) (*PartReference, error) {
	if t := n.Terminal; t != nil {
		switch {
		case t.This != "":
			return &PartReference{ObjectType: t.This, Context: ContextThis}, nil
		case t.Current != "":
			return &PartReference{ObjectType: t.Current, Context: ContextCurrent}, nil
		case t.ID != nil:
			id := PartID(*t.ID)
			return &PartReference{ObjectType: t.Type, ObjectID: &id, Context: ContextSpecified}, nil
		}
		return nil, c.failAt(n.Pos, "incomplete specifier")
	}

	q := n.Qualifier
	ref := &PartReference{ObjectType: q.Type, Context: ContextSpecified}
	qualifiers := 0
	if q.Ordinal != "" {
		ref.Index = ordinals[q.Ordinal]
		qualifiers++
	}
	if q.Index != nil {
		ref.Index = *q.Index
		qualifiers++
	}
	if q.Name != nil {
		ref.Name = *q.Name
		qualifiers++
	}
	if qualifiers != 1 {
		return nil, c.failAt(q.Pos, "%s must be qualified by exactly one ordinal, number or name", q.Type)
	}
	if n.Of != nil {
		in, err := c.specifier(n.Of)
		if err != nil {
			return nil, err
		}
		ref.In = in
	}
	return ref, nil
}
