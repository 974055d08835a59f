package interp

import (
	"fmt"
	"strings"

	"github.com/piarun/maroon/pkg/ir"
	"github.com/piarun/maroon/pkg/value"
)

// slot is one live variable of a frame. Slots own their values exclusively.
type slot struct {
	name     string
	typeName string
	val      value.Value
}

// frame is one activation record on the call stack. fnName is empty for the
// entry frame, which keeps it anonymous in stack dumps. retSlot indexes the
// caller's vars, -1 when the return value is discarded or there is no caller.
type frame struct {
	stepIdx  int
	fnName   string
	retSlot  int
	vars     []slot
	args     []value.Value
	argsUsed int
}

func (fr *frame) lookup(name string) (int, *slot, bool) {
	for i := len(fr.vars) - 1; i >= 0; i-- {
		if fr.vars[i].name == name {
			return i, &fr.vars[i], true
		}
	}
	return -1, nil, false
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeBranch
	outcomeCall
	outcomeReturn
)

// resultCollector receives the single control outcome a step is allowed to
// deposit. A second deposit is a misuse surfaced as MisplacedControl.
type resultCollector struct {
	status outcome

	branchTo int

	callTo      int
	callName    string
	callArgs    []value.Value
	callRetSlot int

	hasRet bool
	retVal value.Value
}

func (rc *resultCollector) branch(to int) *RuntimeError {
	if rc.status != outcomeNone {
		return errf(ErrMisplacedControl, "attempted to branch after another control outcome in the same step")
	}
	rc.status = outcomeBranch
	rc.branchTo = to
	return nil
}

func (rc *resultCollector) call(to int, name string, args []value.Value, retSlot int) *RuntimeError {
	if rc.status != outcomeNone {
		return errf(ErrMisplacedControl, "attempted to call after another control outcome in the same step")
	}
	rc.status = outcomeCall
	rc.callTo = to
	rc.callName = name
	rc.callArgs = args
	rc.callRetSlot = retSlot
	return nil
}

func (rc *resultCollector) ret() *RuntimeError {
	if rc.status != outcomeNone {
		return errf(ErrMisplacedControl, "attempted to return after another control outcome in the same step")
	}
	rc.status = outcomeReturn
	rc.hasRet = false
	return nil
}

func (rc *resultCollector) retValue(v value.Value) *RuntimeError {
	if rc.status != outcomeNone {
		return errf(ErrMisplacedControl, "attempted to return after another control outcome in the same step")
	}
	rc.status = outcomeReturn
	rc.hasRet = true
	rc.retVal = v
	return nil
}

// Engine evaluates one fiber run over a precompiled step table.
type Engine struct {
	compiled *Compiled
	stack    []*frame
	out      strings.Builder
}

// Run executes function `main` of the named fiber in the named namespace. It returns the transcript
// on success, or an empty transcript and the error on failure.
func Run(prog *ir.Program, namespace, fiber string) (string, error) {
	ns, ok := prog.Maroon[namespace]
	if !ok {
		return "", fmt.Errorf("namespace %q is not defined", namespace)
	}
	c, err := CompileFiber(ns, fiber)
	if err != nil {
		return "", err
	}
	main, ok := c.fns["main"]
	if !ok {
		return "", fmt.Errorf("fiber %q of namespace %q has no `main` function", fiber, namespace)
	}
	if len(main.args) != 0 {
		return "", fmt.Errorf("`main` of fiber %q must take no arguments", fiber)
	}
	en := &Engine{compiled: c}
	en.stack = append(en.stack, &frame{stepIdx: main.entry, retSlot: -1})
	if rerr := en.run(); rerr != nil {
		return "", rerr
	}
	return en.out.String(), nil
}

func (en *Engine) top() *frame { return en.stack[len(en.stack)-1] }

func (en *Engine) run() *RuntimeError {
	for len(en.stack) > 0 {
		fr := en.top()
		if fr.stepIdx < 0 || fr.stepIdx >= len(en.compiled.steps) {
			return errf(ErrMissingReturn, missingReturnMessage)
		}
		st := en.compiled.steps[fr.stepIdx]

		if len(fr.vars) < st.varsBefore {
			return errf(ErrInternal, "internal invariant failed: pre-step vars count mismatch")
		}
		if len(fr.vars) > st.varsBefore {
			// Scope exit: release what is no longer visible.
			fr.vars = fr.vars[:st.varsBefore]
		}

		for _, decl := range st.declare {
			if rerr := decl(en, fr); rerr != nil {
				return rerr
			}
		}
		if len(fr.vars) != st.varsBefore+st.varsDeclared {
			return errf(ErrInternal, "internal invariant failed: intra-step vars count mismatch")
		}

		rc := &resultCollector{callRetSlot: -1}
		if st.exec != nil {
			if rerr := st.exec(en, fr, rc); rerr != nil {
				return rerr
			}
		}

		switch rc.status {
		case outcomeBranch:
			fr.stepIdx = rc.branchTo
		case outcomeCall:
			fr.stepIdx++
			en.stack = append(en.stack, &frame{
				stepIdx: rc.callTo,
				fnName:  rc.callName,
				retSlot: rc.callRetSlot,
				args:    rc.callArgs,
			})
		case outcomeReturn:
			retSlot := fr.retSlot
			en.stack = en.stack[:len(en.stack)-1]
			if rc.hasRet {
				if len(en.stack) == 0 {
					return errf(ErrInternal, "internal invariant failed: returning a value from the fiber's entry frame")
				}
				if retSlot >= 0 {
					caller := en.top()
					if retSlot >= len(caller.vars) {
						return errf(ErrInternal, "internal invariant failed: return slot %d is out of range", retSlot)
					}
					target := &caller.vars[retSlot]
					if target.typeName != rc.retVal.TypeName() {
						return errf(ErrTypeMismatch, accessMessage(target.name, rc.retVal.TypeName(), target.typeName))
					}
					target.val = rc.retVal
				}
				// Ignoring a returned value is perfectly fine.
			} else if retSlot >= 0 {
				return errf(ErrMissingReturnValue, "A return value must have been provided.")
			}
		default:
			fr.stepIdx++
		}
	}
	return nil
}

func (en *Engine) writeLine(s string) {
	en.out.WriteString(s)
	en.out.WriteByte('\n')
}

func dumpVars(fr *frame) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, sl := range fr.vars {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(sl.name)
		b.WriteByte(':')
		if sl.val != nil {
			b.WriteString(sl.val.Display())
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (en *Engine) dumpStack() string {
	var b strings.Builder
	b.WriteByte('<')
	for i, fr := range en.stack {
		if i > 0 {
			b.WriteByte(',')
		}
		if fr.fnName != "" {
			b.WriteString(fr.fnName)
			b.WriteByte('@')
		}
		b.WriteString(dumpVars(fr))
	}
	b.WriteByte('>')
	return b.String()
}
