// Package value implements the boxed runtime values the interpreter moves
// between variable slots: unsigned 64-bit integers, booleans, and the derived
// optional wrapper over each.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the shared behaviour of every boxed runtime value.
type Value interface {
	// TypeName is the static runtime type identity ("U64", "BOOL",
	// "OPTIONAL_U64", ...).
	TypeName() string
	// Display is the textual form used by the transcript.
	Display() string
	// Clone copies the value; slots own their values exclusively, so every
	// transfer that does not move ownership copies.
	Clone() Value
}

// U64 is an unsigned 64-bit integer.
type U64 struct {
	Val uint64
}

func (U64) TypeName() string  { return "U64" }
func (v U64) Display() string { return strconv.FormatUint(v.Val, 10) }
func (v U64) Clone() Value    { return U64{Val: v.Val} }

// Bool is a boolean.
type Bool struct {
	Val bool
}

func (Bool) TypeName() string { return "BOOL" }
func (v Bool) Display() string { return strconv.FormatBool(v.Val) }
func (v Bool) Clone() Value    { return Bool{Val: v.Val} }

// Optional holds either nothing or a value of its inner type.
type Optional struct {
	Inner string
	Val   Value // nil means None
}

func (v Optional) TypeName() string { return "OPTIONAL_" + v.Inner }

func (v Optional) Display() string {
	if v.Val == nil {
		return "None"
	}
	return "Some(" + v.Val.Display() + ")"
}

func (v Optional) Clone() Value {
	if v.Val == nil {
		return Optional{Inner: v.Inner}
	}
	return Optional{Inner: v.Inner, Val: v.Val.Clone()}
}

// Exists reports whether the optional holds a value.
func (v Optional) Exists() bool { return v.Val != nil }

// None returns the empty optional over the given inner type.
func None(inner string) Optional { return Optional{Inner: inner} }

// Some wraps a value into the optional over its own type.
func Some(inner Value) Optional {
	return Optional{Inner: inner.TypeName(), Val: inner}
}

// IsOptionalName reports whether a type name spells a derived optional, and if
// so returns the inner type name.
func IsOptionalName(name string) (string, bool) {
	if rest, ok := strings.CutPrefix(name, "OPTIONAL_"); ok {
		return rest, true
	}
	return "", false
}

// Zero constructs the default value of a named type: 0, false, or None.
func Zero(typeName string) (Value, error) {
	switch typeName {
	case "U64":
		return U64{}, nil
	case "BOOL":
		return Bool{}, nil
	}
	if inner, ok := IsOptionalName(typeName); ok {
		return None(inner), nil
	}
	return nil, fmt.Errorf("value: no runtime representation for type %q", typeName)
}

// Arithmetic and ordering are defined on U64 only; the callers are responsible
// for having already type-checked the operands.

func Add(a, b U64) U64 { return U64{Val: a.Val + b.Val} }
func Sub(a, b U64) U64 { return U64{Val: a.Val - b.Val} }
func Mul(a, b U64) U64 { return U64{Val: a.Val * b.Val} }

// Compare applies one of the six ordering operators to a pair of U64s.
func Compare(op string, a, b U64) (Bool, error) {
	switch op {
	case "==":
		return Bool{Val: a.Val == b.Val}, nil
	case "!=":
		return Bool{Val: a.Val != b.Val}, nil
	case "<":
		return Bool{Val: a.Val < b.Val}, nil
	case "<=":
		return Bool{Val: a.Val <= b.Val}, nil
	case ">":
		return Bool{Val: a.Val > b.Val}, nil
	case ">=":
		return Bool{Val: a.Val >= b.Val}, nil
	}
	return Bool{}, fmt.Errorf("value: unknown comparison operator %q", op)
}
