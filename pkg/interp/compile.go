package interp

import (
	"fmt"
	"sort"

	"github.com/piarun/maroon/pkg/exprlang"
	"github.com/piarun/maroon/pkg/ir"
	"github.com/piarun/maroon/pkg/value"
)

type declFn func(en *Engine, fr *frame) *RuntimeError

type execFn func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError

// step is one primitive unit of execution in the flattened function body.
// Before a step runs, the frame's live vars are truncated to varsBefore; the
// declare constructors then bring the count to varsBefore+varsDeclared.
type step struct {
	line         uint32
	varsBefore   int
	varsDeclared int
	declare      []declFn
	exec         execFn
}

type fnInfo struct {
	name  string
	entry int
	args  []string
	ret   *string
}

// Compiled is the flat step table of one fiber plus its function directory.
type Compiled struct {
	steps []*step
	fns   map[string]*fnInfo
}

func (c *Compiled) emit(s *step) int {
	c.steps = append(c.steps, s)
	return len(c.steps) - 1
}

// CompileFiber lowers every function of the named fiber into one flat step
// table. Functions are compiled in name order, so the layout is deterministic.
func CompileFiber(ns *ir.Namespace, fiberName string) (*Compiled, error) {
	fib, ok := ns.Fibers[fiberName]
	if !ok {
		return nil, fmt.Errorf("fiber %q is not defined", fiberName)
	}
	names := make([]string, 0, len(fib.Functions))
	for name := range fib.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Compiled{fns: make(map[string]*fnInfo)}
	for _, name := range names {
		fn := fib.Functions[name]
		c.fns[name] = &fnInfo{name: name, entry: len(c.steps), args: fn.Args, ret: fn.Ret}
		cc := &compiler{c: c, fn: fn}
		if err := cc.block(&fn.Body, 0); err != nil {
			return nil, err
		}
		// Guard step: falling off the end of a function is a missing RETURN.
		c.emit(&step{
			line:       fn.Line,
			varsBefore: len(fn.Body.Vars),
			exec: func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
				return errf(ErrMissingReturn, missingReturnMessage)
			},
		})
	}
	return c, nil
}

type compiler struct {
	c  *Compiled
	fn *ir.Function
}

func (cc *compiler) block(b *ir.Block, varsBefore int) error {
	decls := make([]declFn, 0, len(b.Vars))
	for _, v := range b.Vars {
		d, err := cc.varDecl(v)
		if err != nil {
			return err
		}
		decls = append(decls, d)
	}
	cc.c.emit(&step{line: b.Line, varsBefore: varsBefore, varsDeclared: len(b.Vars), declare: decls})
	inner := varsBefore + len(b.Vars)
	for _, item := range b.Code {
		if err := cc.item(item, inner); err != nil {
			return err
		}
	}
	return nil
}

func (cc *compiler) item(item ir.StmtOrBlock, vars int) error {
	switch it := item.(type) {
	case *ir.Stmt:
		exec, err := cc.stmtExec(it.Stmt, it.Line)
		if err != nil {
			return err
		}
		cc.c.emit(&step{line: it.Line, varsBefore: vars, exec: exec})
		return nil
	case *ir.Block:
		return cc.block(it, vars)
	case *ir.If:
		return cc.ifStmt(it, vars)
	case *ir.MatchEnum:
		return cc.match(it, vars)
	case *ir.BlockPlaceholder:
		return fmt.Errorf("internal invariant failed: block placeholder survived into a finalized program (line %d)", it.Line)
	}
	return fmt.Errorf("unknown statement kind %T", item)
}

func (cc *compiler) ifStmt(it *ir.If, vars int) error {
	cond, perr := exprlang.ParseExpression(it.Cond)
	if perr != nil {
		return errf(ErrInvalidStatement, "invalid condition at line %d: %v", it.Line, perr)
	}
	condStep := &step{line: it.Line, varsBefore: vars}
	cc.c.emit(condStep)

	thenStart := len(cc.c.steps)
	if err := cc.item(it.Yes, vars); err != nil {
		return err
	}
	jump := &step{line: it.Line, varsBefore: vars}
	cc.c.emit(jump)

	elseStart := len(cc.c.steps)
	if err := cc.item(it.No, vars); err != nil {
		return err
	}
	end := len(cc.c.steps)

	condStep.exec = func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		b, rerr := ev.boolExpr(cond)
		if rerr != nil {
			return rerr
		}
		if b.Val {
			return rc.branch(thenStart)
		}
		return rc.branch(elseStart)
	}
	jump.exec = func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		return rc.branch(end)
	}
	return nil
}

func (cc *compiler) match(it *ir.MatchEnum, vars int) error {
	matchStep := &step{line: it.Line, varsBefore: vars}
	cc.c.emit(matchStep)

	type armTarget struct {
		key   *string
		start int
	}
	targets := make([]armTarget, 0, len(it.Arms))
	jumps := make([]*step, 0, len(it.Arms))
	for _, arm := range it.Arms {
		start := len(cc.c.steps)
		if err := cc.block(&arm.Code, vars); err != nil {
			return err
		}
		jump := &step{line: arm.Line, varsBefore: vars}
		cc.c.emit(jump)
		jumps = append(jumps, jump)
		targets = append(targets, armTarget{key: arm.Key, start: start})
	}
	end := len(cc.c.steps)
	for _, jump := range jumps {
		jump.exec = func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
			return rc.branch(end)
		}
	}

	varName := it.Var
	matchStep.exec = func(en *Engine, fr *frame, rc *resultCollector) *RuntimeError {
		_, sl, ok := fr.lookup(varName)
		if !ok {
			return errf(ErrUndefinedName, "Undefined variable `%s`.", varName)
		}
		opt, isOpt := sl.val.(value.Optional)
		if !isOpt {
			return errf(ErrTypeMismatch, "Attempted to match on `%s` of type `%s`, which has no cases.", varName, sl.val.TypeName())
		}
		target := end
		defaultTarget := end
		for _, t := range targets {
			if t.key == nil {
				defaultTarget = t.start
			}
		}
		if opt.Exists() {
			target = defaultTarget
			for _, t := range targets {
				if t.key != nil && *t.key == opt.Inner {
					target = t.start
					break
				}
			}
		} else {
			target = defaultTarget
		}
		return rc.branch(target)
	}
	return nil
}

func (cc *compiler) varDecl(v ir.Var) (declFn, error) {
	switch v := v.(type) {
	case *ir.VarRegular:
		return cc.regularVarDecl(v)
	case *ir.VarFunctionArg:
		name, typeName := v.Name, v.Type
		return func(en *Engine, fr *frame) *RuntimeError {
			if fr.argsUsed >= len(fr.args) {
				return errf(ErrInternal, "internal invariant failed: not enough packed arguments for `%s`", name)
			}
			val := fr.args[fr.argsUsed]
			fr.argsUsed++
			if val.TypeName() != typeName {
				return errf(ErrInternal, "internal invariant failed: packed argument `%s` has type `%s`, want `%s`",
					name, val.TypeName(), typeName)
			}
			fr.vars = append(fr.vars, slot{name: name, typeName: typeName, val: val})
			return nil
		}, nil
	case *ir.VarEnumCaseCapture:
		name, key, src := v.Name, v.Key, v.Src
		return func(en *Engine, fr *frame) *RuntimeError {
			_, sl, ok := fr.lookup(src)
			if !ok {
				return errf(ErrUndefinedName, "Undefined variable `%s`.", src)
			}
			opt, isOpt := sl.val.(value.Optional)
			if !isOpt || !opt.Exists() {
				return errf(ErrInternal, "internal invariant failed: capture `%s` from `%s` which holds no `%s` payload",
					name, src, key)
			}
			fr.vars = append(fr.vars, slot{name: name, typeName: opt.Inner, val: opt.Val.Clone()})
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unknown var kind %T", v)
}

func (cc *compiler) regularVarDecl(v *ir.VarRegular) (declFn, error) {
	name, typeName := v.Name, v.Type
	if v.Init == "" {
		return func(en *Engine, fr *frame) *RuntimeError {
			zero, err := value.Zero(typeName)
			if err != nil {
				return errf(ErrInternal, "internal invariant failed: %v", err)
			}
			fr.vars = append(fr.vars, slot{name: name, typeName: typeName, val: zero})
			return nil
		}, nil
	}
	init, perr := exprlang.ParseExpression(v.Init)
	if perr != nil {
		return nil, errf(ErrInvalidStatement, "invalid initializer for `%s` at line %d: %v", name, v.Line, perr)
	}
	return func(en *Engine, fr *frame) *RuntimeError {
		ev := &evalCtx{en: en, fr: fr}
		op, rerr := ev.exprOperand(init)
		if rerr != nil {
			return rerr
		}
		val, rerr := coerceTo(op, typeName, name)
		if rerr != nil {
			return rerr
		}
		fr.vars = append(fr.vars, slot{name: name, typeName: typeName, val: val})
		return nil
	}, nil
}
