package interp

import (
	"github.com/piarun/maroon/pkg/exprlang"
	"github.com/piarun/maroon/pkg/value"
)

// noneValue is the evaluation result of the NONE keyword. It only ever exists
// in transit: coercion into an optional slot turns it into an empty optional,
// anything else is a type error.
type noneValue struct{}

func (noneValue) TypeName() string     { return "NONE" }
func (noneValue) Display() string      { return "None" }
func (n noneValue) Clone() value.Value { return n }

// operand is an evaluated expression plus, when it was a bare variable read,
// the variable name, so type errors can name the offender.
type operand struct {
	val   value.Value
	ident string
}

type evalCtx struct {
	en *Engine
	fr *frame
}

func (ev *evalCtx) expr(e *exprlang.Expr) (value.Value, *RuntimeError) {
	op, err := ev.exprOperand(e)
	if err != nil {
		return nil, err
	}
	return op.val, nil
}

func (ev *evalCtx) exprOperand(e *exprlang.Expr) (operand, *RuntimeError) {
	left, err := ev.sumOperand(e.Left)
	if err != nil {
		return operand{}, err
	}
	if e.Op == "" {
		return left, nil
	}
	lhs, err := asU64(left)
	if err != nil {
		return operand{}, err
	}
	right, err := ev.sumOperand(e.Right)
	if err != nil {
		return operand{}, err
	}
	rhs, err := asU64(right)
	if err != nil {
		return operand{}, err
	}
	cmp, cerr := value.Compare(e.Op, lhs, rhs)
	if cerr != nil {
		return operand{}, errf(ErrInternal, "internal invariant failed: %v", cerr)
	}
	return operand{val: cmp}, nil
}

func (ev *evalCtx) sumOperand(s *exprlang.Sum) (operand, *RuntimeError) {
	left, err := ev.productOperand(s.Left)
	if err != nil || len(s.Rest) == 0 {
		return left, err
	}
	acc, err := asU64(left)
	if err != nil {
		return operand{}, err
	}
	for _, tail := range s.Rest {
		next, err := ev.productOperand(tail.Term)
		if err != nil {
			return operand{}, err
		}
		term, err := asU64(next)
		if err != nil {
			return operand{}, err
		}
		switch tail.Op {
		case "+":
			acc = value.Add(acc, term)
		case "-":
			acc = value.Sub(acc, term)
		}
	}
	return operand{val: acc}, nil
}

func (ev *evalCtx) productOperand(p *exprlang.Product) (operand, *RuntimeError) {
	left, err := ev.primaryOperand(p.Left)
	if err != nil || len(p.Rest) == 0 {
		return left, err
	}
	acc, err := asU64(left)
	if err != nil {
		return operand{}, err
	}
	for _, tail := range p.Rest {
		next, err := ev.primaryOperand(tail.Term)
		if err != nil {
			return operand{}, err
		}
		term, err := asU64(next)
		if err != nil {
			return operand{}, err
		}
		acc = value.Mul(acc, term)
	}
	return operand{val: acc}, nil
}

func (ev *evalCtx) primaryOperand(p *exprlang.Primary) (operand, *RuntimeError) {
	switch {
	case p.Call != nil:
		v, err := ev.callValue(p.Call)
		if err != nil {
			return operand{}, err
		}
		return operand{val: v}, nil
	case p.Number != nil:
		return operand{val: value.U64{Val: *p.Number}}, nil
	case p.Str != nil:
		return operand{}, errf(ErrInvalidStatement, "a string literal is only legal as a `DEBUG()` argument")
	case p.Ident != nil:
		return ev.identOperand(*p.Ident)
	case p.Group != nil:
		if len(p.Group.Items) == 1 {
			return ev.exprOperand(p.Group.Items[0])
		}
		return operand{}, errf(ErrInvalidStatement, "a tuple is only legal as the packed arguments of `CALL()`")
	}
	return operand{}, errf(ErrInternal, "internal invariant failed: empty primary expression")
}

func (ev *evalCtx) identOperand(name string) (operand, *RuntimeError) {
	switch name {
	case "true":
		return operand{val: value.Bool{Val: true}}, nil
	case "false":
		return operand{val: value.Bool{Val: false}}, nil
	case "NONE":
		return operand{val: noneValue{}}, nil
	}
	_, sl, ok := ev.fr.lookup(name)
	if !ok {
		return operand{}, errf(ErrUndefinedName, "Undefined variable `%s`.", name)
	}
	return operand{val: sl.val, ident: name}, nil
}

// callValue evaluates the intrinsic call forms that yield values. The
// statement-only forms (DEBUG, RETURN, CALL, ...) are rejected here; user
// functions are only callable through CALL.
func (ev *evalCtx) callValue(c *exprlang.Call) (value.Value, *RuntimeError) {
	switch c.Name {
	case "U64":
		if len(c.Args) != 1 {
			return nil, errf(ErrInvalidStatement, "`U64()` takes exactly one argument")
		}
		op, err := ev.exprOperand(c.Args[0])
		if err != nil {
			return nil, err
		}
		v, err := asU64(op)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "BOOL":
		if len(c.Args) != 1 {
			return nil, errf(ErrInvalidStatement, "`BOOL()` takes exactly one argument")
		}
		op, err := ev.exprOperand(c.Args[0])
		if err != nil {
			return nil, err
		}
		v, err := asBool(op)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "EXISTS":
		opt, _, err := ev.optionalArg(c)
		if err != nil {
			return nil, err
		}
		return value.Bool{Val: opt.Exists()}, nil
	case "VALUE":
		opt, name, err := ev.optionalArg(c)
		if err != nil {
			return nil, err
		}
		if !opt.Exists() {
			return nil, errf(ErrInternal, "Attempted to take the value of `%s`, which is `None`.", name)
		}
		return opt.Val.Clone(), nil
	case "DEBUG", "DEBUG_EXPR", "DEBUG_DUMP_VARS", "DEBUG_DUMP_STACK", "RETURN", "CALL":
		return nil, errf(ErrInvalidStatement, "`%s()` is only legal as a standalone statement", c.Name)
	}
	return nil, errf(ErrInvalidStatement, "`%s(...)` is not a value; function calls use `CALL()`", c.Name)
}

func (ev *evalCtx) optionalArg(c *exprlang.Call) (value.Optional, string, *RuntimeError) {
	if len(c.Args) != 1 {
		return value.Optional{}, "", errf(ErrInvalidStatement, "`%s()` takes exactly one argument", c.Name)
	}
	op, err := ev.exprOperand(c.Args[0])
	if err != nil {
		return value.Optional{}, "", err
	}
	opt, ok := op.val.(value.Optional)
	if !ok {
		name := op.ident
		if name == "" {
			name = "a value"
		}
		return value.Optional{}, "", errf(ErrTypeMismatch,
			"Attempted to use `%s` of type `%s` as an optional.", name, op.val.TypeName())
	}
	name := op.ident
	if name == "" {
		name = "an optional"
	}
	return opt, name, nil
}

func (ev *evalCtx) boolExpr(e *exprlang.Expr) (value.Bool, *RuntimeError) {
	op, err := ev.exprOperand(e)
	if err != nil {
		return value.Bool{}, err
	}
	return asBool(op)
}

func asU64(op operand) (value.U64, *RuntimeError) {
	if v, ok := op.val.(value.U64); ok {
		return v, nil
	}
	return value.U64{}, mismatch(op, "U64")
}

func asBool(op operand) (value.Bool, *RuntimeError) {
	if v, ok := op.val.(value.Bool); ok {
		return v, nil
	}
	return value.Bool{}, mismatch(op, "BOOL")
}

func mismatch(op operand, want string) *RuntimeError {
	if op.ident != "" {
		return errf(ErrTypeMismatch, accessMessage(op.ident, op.val.TypeName(), want))
	}
	return errf(ErrTypeMismatch, "Attempted to use a value of type `%s` as `%s`.", op.val.TypeName(), want)
}

// coerceTo fits an evaluated operand into a slot of the named type, wrapping
// base values and NONE into optional slots. name labels the destination for
// error messages; a bare-identifier operand labels itself instead.
func coerceTo(op operand, want string, name string) (value.Value, *RuntimeError) {
	v := op.val
	if v.TypeName() == want {
		return v.Clone(), nil
	}
	if inner, ok := value.IsOptionalName(want); ok {
		if _, isNone := v.(noneValue); isNone {
			return value.None(inner), nil
		}
		if v.TypeName() == inner {
			return value.Some(v.Clone()), nil
		}
	}
	if op.ident != "" {
		name = op.ident
	}
	return nil, errf(ErrTypeMismatch, accessMessage(name, v.TypeName(), want))
}
