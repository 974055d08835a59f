package ir

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError aggregates every invariant violation found in a program.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "ir: invalid program"
	}
	var b strings.Builder
	b.WriteString("ir validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Validate checks the global invariants of a finalized program: no surviving
// placeholders, a `global` fiber per namespace, resolvable type names, and
// well-formed match arms. Name uniqueness at map-keyed levels is structural;
// the builder enforces it for the event stream.
func Validate(p *Program) error {
	v := &validator{}
	for _, nsName := range sortedKeys(p.Maroon) {
		ns := p.Maroon[nsName]
		v.namespace(nsName, ns)
	}
	if len(v.issues) > 0 {
		return &ValidationError{Issues: v.issues}
	}
	return nil
}

type validator struct {
	issues []string
}

func (v *validator) addf(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) namespace(name string, ns *Namespace) {
	if _, ok := ns.Fibers[GlobalFiber]; !ok {
		v.addf("namespace %q has no %q fiber", name, GlobalFiber)
	}
	for _, tn := range sortedKeys(ns.Types) {
		v.typeDecl(name, ns, tn, ns.Types[tn])
	}
	for _, fn := range sortedKeys(ns.Fibers) {
		fib := ns.Fibers[fn]
		for _, fname := range sortedKeys(fib.Functions) {
			v.function(name, ns, fn, fname, fib.Functions[fname])
		}
	}
}

func (v *validator) typeDecl(nsName string, ns *Namespace, name string, t *TypeDecl) {
	switch def := t.Def.(type) {
	case *TypeDefStruct:
		for _, f := range def.Fields {
			v.typeName(nsName, ns, fmt.Sprintf("field %s.%s", name, f.Name), f.Type)
		}
	case *TypeDefEnum:
		seen := map[string]bool{}
		for _, c := range def.Cases {
			if seen[c.Key] {
				v.addf("enum %s.%s repeats case %q", nsName, name, c.Key)
			}
			seen[c.Key] = true
			v.typeName(nsName, ns, fmt.Sprintf("case %s.%s", name, c.Key), c.Type)
		}
	case *TypeDefOptional:
		if !strings.HasPrefix(name, OptionalPrefix) {
			v.addf("optional type %s.%s is not named %s<inner>", nsName, name, OptionalPrefix)
		}
		v.typeName(nsName, ns, "optional "+name, def.Type)
	}
}

func (v *validator) typeName(nsName string, ns *Namespace, where, typeName string) {
	if IsBaseType(typeName) {
		return
	}
	if _, ok := ns.Types[typeName]; ok {
		return
	}
	v.addf("%s in namespace %q uses undeclared type %q", where, nsName, typeName)
}

func (v *validator) function(nsName string, ns *Namespace, fiber, name string, fn *Function) {
	where := fmt.Sprintf("%s.%s.%s", nsName, fiber, name)
	if fn.Ret != nil {
		v.typeName(nsName, ns, "return of "+where, *fn.Ret)
	}
	for _, a := range fn.Args {
		v.typeName(nsName, ns, "arg of "+where, a)
	}
	v.block(nsName, ns, where, &fn.Body)
}

func (v *validator) block(nsName string, ns *Namespace, where string, b *Block) {
	for _, item := range b.Vars {
		switch item := item.(type) {
		case *VarRegular:
			v.typeName(nsName, ns, fmt.Sprintf("var %s in %s", item.Name, where), item.Type)
		case *VarFunctionArg:
			v.typeName(nsName, ns, fmt.Sprintf("arg %s in %s", item.Name, where), item.Type)
		}
	}
	for _, item := range b.Code {
		v.code(nsName, ns, where, item)
	}
}

func (v *validator) code(nsName string, ns *Namespace, where string, c StmtOrBlock) {
	switch c := c.(type) {
	case *If:
		v.code(nsName, ns, where, c.Yes)
		v.code(nsName, ns, where, c.No)
	case *Block:
		v.block(nsName, ns, where, c)
	case *MatchEnum:
		v.match(nsName, ns, where, c)
	case *BlockPlaceholder:
		v.addf("%s contains an unresolved block placeholder (idx %d)", where, c.Idx)
	}
}

func (v *validator) match(nsName string, ns *Namespace, where string, m *MatchEnum) {
	defaults := 0
	seen := map[string]bool{}
	for _, arm := range m.Arms {
		if arm.Key == nil {
			defaults++
			if arm.Capture != nil {
				v.addf("default arm of match on %q in %s has a capture", m.Var, where)
			}
		} else {
			if seen[*arm.Key] {
				v.addf("match on %q in %s repeats arm key %q", m.Var, where, *arm.Key)
			}
			seen[*arm.Key] = true
		}
		v.block(nsName, ns, where, &arm.Code)
	}
	if defaults > 1 {
		v.addf("match on %q in %s has %d default arms", m.Var, where, defaults)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
