package talk

import (
	"context"
	"errors"
)

// execBlock runs statements in order. An error retires nothing by itself; the caller pops
// the context. Control results (exit/next repeat) stop the block and bubble up.
func (s *System) execBlock(ctx context.Context, body []Stmt, ec *ExecutionContext) Result {
	var last Value
	for _, st := range body {
		r := st.exec(ctx, s, ec)
		if r.Error != nil {
			r.Error = annotate(r.Error, st.Loc(), ec)
			return r
		}
		if r.Control != ControlNone {
			return r
		}
		if r.Value != nil {
			last = r.Value
		}
	}
	return Result{Value: last}
}

// annotate attaches the failing statement's position unless a deeper handler already did.
func annotate(err error, at Location, ec *ExecutionContext) error {
	var te *Error
	if !errors.As(err, &te) {
		return &Error{Kind: RuntimeFailure, Message: err.Error(), Location: at, Handler: ec.HandlerName}
	}
	if te.Location.Line == 0 {
		te.Location = at
		if ec.handler != nil {
			te.Code = sourceLine(ec.handler.Source, at.Line)
		}
	}
	if te.Handler == "" {
		te.Handler = ec.HandlerName
	}
	return te
}

func (st *SendStmt) exec(ctx context.Context, s *System, ec *ExecutionContext) Result {
	args := make([]Value, 0, len(st.Args))
	for _, a := range st.Args {
		v, err := a.Eval(s.interp, ec)
		if err != nil {
			return Result{Error: err}
		}
		args = append(args, v)
	}

	target := ec.Part
	if st.Target != nil {
		v, err := s.interp.Interpret(st.Target, ec)
		if err != nil {
			return Result{Error: err}
		}
		target = v.(*Part)
	}

	msg := Message{Kind: KindCommand, Name: st.Name, Args: args, Target: target.id}
	v, err := s.dispatchTo(ctx, target, msg, ec)
	if err != nil {
		return Result{Error: err}
	}
	ec.SetLocal("it", v)
	return Result{Value: v}
}

func (st *IfStmt) exec(ctx context.Context, s *System, ec *ExecutionContext) Result {
	cond, err := st.Cond.Eval(s.interp, ec)
	if err != nil {
		return Result{Error: err}
	}
	if truthy(cond) {
		return s.execBlock(ctx, st.Then, ec)
	}
	return s.execBlock(ctx, st.Else, ec)
}

func (st *ControlStmt) exec(context.Context, *System, *ExecutionContext) Result {
	return Result{Control: st.Control}
}

func (st *RepeatStmt) exec(ctx context.Context, s *System, ec *ExecutionContext) Result {
	// body runs one iteration and reports whether the loop should stop.
	body := func() (bool, Result) {
		r := s.execBlock(ctx, st.Body, ec)
		if r.Error != nil {
			return true, r
		}
		return r.Control == ControlExitRepeat, Result{}
	}

	switch st.Kind {
	case RepeatTimes:
		v, err := st.Cond.Eval(s.interp, ec)
		if err != nil {
			return Result{Error: err}
		}
		n, ok := toIndex(v)
		if !ok {
			return Result{Error: newError(RuntimeFailure, "repeat count %q is not a whole number", FormatValue(v))}
		}
		for i := 0; i < n; i++ {
			if stop, r := body(); stop {
				return r
			}
		}

	case RepeatUntil, RepeatWhile:
		for {
			v, err := st.Cond.Eval(s.interp, ec)
			if err != nil {
				return Result{Error: err}
			}
			if truthy(v) == (st.Kind == RepeatUntil) {
				break
			}
			if stop, r := body(); stop {
				return r
			}
		}

	case RepeatWith:
		from, err := st.From.Eval(s.interp, ec)
		if err != nil {
			return Result{Error: err}
		}
		to, err := st.To.Eval(s.interp, ec)
		if err != nil {
			return Result{Error: err}
		}
		lo, ok1 := toIndex(from)
		hi, ok2 := toIndex(to)
		if !ok1 || !ok2 {
			return Result{Error: newError(RuntimeFailure, "repeat with %s needs whole number bounds", st.Var)}
		}
		for i := lo; i <= hi; i++ {
			ec.SetLocal(st.Var, float64(i))
			if stop, r := body(); stop {
				return r
			}
		}

	default:
		for {
			if stop, r := body(); stop {
				return r
			}
		}
	}
	return Result{}
}
