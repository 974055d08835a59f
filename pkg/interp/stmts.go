package interp

import (
	"github.com/piarun/maroon/pkg/exprlang"
	"github.com/piarun/maroon/pkg/value"
)

// stmtExec compiles one opaque statement string into its step body. The
// intrinsic statement forms are recognized here, once, at compile time; the
// returned closure only evaluates.
func (cc *compiler) stmtExec(src string, line uint32) (execFn, error) {
	st, perr := exprlang.ParseStatement(src)
	if perr != nil {
		return nil, errf(ErrInvalidStatement, "invalid statement at line %d: %v", line, perr)
	}
	if st.Assign != nil {
		return cc.assignExec(st.Assign), nil
	}
	if call := asBareCall(st.Expr); call != nil {
		switch call.Name {
		case "DEBUG":
			return cc.debugExec(call, line)
		case "DEBUG_EXPR":
			return cc.debugExprExec(call, src, line)
		case "DEBUG_DUMP_VARS":
			if len(call.Args) != 0 {
				return nil, errf(ErrInvalidStatement, "`DEBUG_DUMP_VARS()` takes no arguments (line %d)", line)
			}
			return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
				en.writeLine(dumpVars(fr))
				return nil
			}, nil
		case "DEBUG_DUMP_STACK":
			if len(call.Args) != 0 {
				return nil, errf(ErrInvalidStatement, "`DEBUG_DUMP_STACK()` takes no arguments (line %d)", line)
			}
			return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
				en.writeLine(en.dumpStack())
				return nil
			}, nil
		case "RETURN":
			return cc.returnExec(call, line)
		case "CALL":
			return cc.callExec(call, line)
		}
	}
	// A bare expression statement: evaluate for effect, discard the value.
	expr := st.Expr
	return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		_, err := ev.expr(expr)
		return err
	}, nil
}

// asBareCall unwraps an expression that is exactly one call, with no
// surrounding operators.
func asBareCall(e *exprlang.Expr) *exprlang.Call {
	if e == nil || e.Op != "" || len(e.Left.Rest) != 0 || len(e.Left.Left.Rest) != 0 {
		return nil
	}
	return e.Left.Left.Left.Call
}

func asBareIdent(e *exprlang.Expr) (string, bool) {
	if e == nil || e.Op != "" || len(e.Left.Rest) != 0 || len(e.Left.Left.Rest) != 0 {
		return "", false
	}
	p := e.Left.Left.Left
	if p.Ident == nil {
		return "", false
	}
	return *p.Ident, true
}

func asBareString(e *exprlang.Expr) (string, bool) {
	if e == nil || e.Op != "" || len(e.Left.Rest) != 0 || len(e.Left.Left.Rest) != 0 {
		return "", false
	}
	p := e.Left.Left.Left
	if p.Str == nil {
		return "", false
	}
	return *p.Str, true
}

func asBareGroup(e *exprlang.Expr) ([]*exprlang.Expr, bool) {
	if e == nil || e.Op != "" || len(e.Left.Rest) != 0 || len(e.Left.Left.Rest) != 0 {
		return nil, false
	}
	p := e.Left.Left.Left
	if p.Group == nil {
		return nil, false
	}
	return p.Group.Items, true
}

func (cc *compiler) debugExec(call *exprlang.Call, line uint32) (execFn, error) {
	if len(call.Args) != 1 {
		return nil, errf(ErrInvalidStatement, "`DEBUG()` takes exactly one argument (line %d)", line)
	}
	if lit, ok := asBareString(call.Args[0]); ok {
		return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
			en.writeLine(lit)
			return nil
		}, nil
	}
	arg := call.Args[0]
	return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		v, err := ev.expr(arg)
		if err != nil {
			return err
		}
		en.writeLine(v.Display())
		return nil
	}, nil
}

func (cc *compiler) debugExprExec(call *exprlang.Call, src string, line uint32) (execFn, error) {
	if len(call.Args) != 1 {
		return nil, errf(ErrInvalidStatement, "`DEBUG_EXPR()` takes exactly one argument (line %d)", line)
	}
	arg := call.Args[0]
	raw := arg.Raw(src)
	return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		v, err := ev.expr(arg)
		if err != nil {
			return err
		}
		en.writeLine(raw + "=" + v.Display())
		return nil
	}, nil
}

func (cc *compiler) returnExec(call *exprlang.Call, line uint32) (execFn, error) {
	switch len(call.Args) {
	case 0:
		return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
			return rc.ret()
		}, nil
	case 1:
		if cc.fn.Ret == nil {
			return nil, errf(ErrInvalidStatement, "Can't `RETURN(...)` from a `unit` function.")
		}
		retType := *cc.fn.Ret
		arg := call.Args[0]
		return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
			ev := &evalCtx{en: en, fr: fr}
			op, err := ev.exprOperand(arg)
			if err != nil {
				return err
			}
			v, err := coerceTo(op, retType, "the return value")
			if err != nil {
				return err
			}
			return rc.retValue(v)
		}, nil
	}
	return nil, errf(ErrInvalidStatement, "`RETURN()` takes at most one argument (line %d)", line)
}

func (cc *compiler) callExec(call *exprlang.Call, line uint32) (execFn, error) {
	var retVar, fnName string
	var packed []*exprlang.Expr
	var ok bool
	switch len(call.Args) {
	case 2:
		if fnName, ok = asBareIdent(call.Args[0]); !ok {
			return nil, errf(ErrInvalidStatement, "`CALL()` needs a function name (line %d)", line)
		}
		if packed, ok = asBareGroup(call.Args[1]); !ok {
			return nil, errf(ErrInvalidStatement, "`CALL()` needs a parenthesized argument pack (line %d)", line)
		}
	case 3:
		if retVar, ok = asBareIdent(call.Args[0]); !ok {
			return nil, errf(ErrInvalidStatement, "`CALL()` needs a capture variable name (line %d)", line)
		}
		if fnName, ok = asBareIdent(call.Args[1]); !ok {
			return nil, errf(ErrInvalidStatement, "`CALL()` needs a function name (line %d)", line)
		}
		if packed, ok = asBareGroup(call.Args[2]); !ok {
			return nil, errf(ErrInvalidStatement, "`CALL()` needs a parenthesized argument pack (line %d)", line)
		}
	default:
		return nil, errf(ErrInvalidStatement, "`CALL()` takes two or three arguments (line %d)", line)
	}

	return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		vals := make([]value.Value, 0, len(packed))
		for _, argExpr := range packed {
			v, err := ev.expr(argExpr)
			if err != nil {
				return err
			}
			vals = append(vals, v.Clone())
		}
		callee, ok := en.compiled.fns[fnName]
		if !ok {
			return errf(ErrUndefinedName, "Function `%s` is not defined in this fiber.", fnName)
		}
		if len(vals) != len(callee.args) {
			return errf(ErrArity, "WRONG NUMBER OF ARGS")
		}
		for i, v := range vals {
			if v.TypeName() != callee.args[i] {
				return errf(ErrTypeMismatch, "Attempted to pass argument %d of type `%s` to `%s` as `%s`.",
					i+1, v.TypeName(), fnName, callee.args[i])
			}
		}
		retSlot := -1
		if retVar != "" {
			idx, sl, found := fr.lookup(retVar)
			if !found {
				return errf(ErrUndefinedName, "Undefined variable `%s`.", retVar)
			}
			if callee.ret == nil || sl.typeName != *callee.ret {
				return errf(ErrTypeMismatch, "Function call return type mismatch.")
			}
			retSlot = idx
		}
		return rc.call(callee.entry, fnName, vals, retSlot)
	}, nil
}

func (cc *compiler) assignExec(as *exprlang.Assign) execFn {
	target, op, rhs := as.Target, as.Op, as.Value
	return func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		idx, sl, found := fr.lookup(target)
		if !found {
			return errf(ErrUndefinedName, "Undefined variable `%s`.", target)
		}
		rhsOp, err := ev.exprOperand(rhs)
		if err != nil {
			return err
		}
		if op == "=" {
			v, err := coerceTo(rhsOp, sl.typeName, target)
			if err != nil {
				return err
			}
			fr.vars[idx].val = v
			return nil
		}
		cur, err := asU64(operand{val: sl.val, ident: target})
		if err != nil {
			return err
		}
		term, err := asU64(rhsOp)
		if err != nil {
			return err
		}
		var next value.U64
		switch op {
		case "+=":
			next = value.Add(cur, term)
		case "-=":
			next = value.Sub(cur, term)
		case "*=":
			next = value.Mul(cur, term)
		default:
			return errf(ErrInternal, "internal invariant failed: unknown assignment operator %q", op)
		}
		fr.vars[idx].val = next
		return nil
	}
}
