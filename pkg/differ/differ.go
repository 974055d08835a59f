// Package differ decides semantic equality of two serialized programs:
// reparse, null the line metadata, re-serialize canonically, compare strings.
package differ

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/piarun/maroon/pkg/ir"
)

// Comparison holds both canonicalized forms and the verdict.
type Comparison struct {
	Equal bool
	A     string
	B     string
}

// Canonicalize reparses a serialized program and re-serializes it with line
// numbers erased.
func Canonicalize(data []byte) (string, error) {
	prog, err := ir.Decode(data)
	if err != nil {
		return "", err
	}
	ir.EraseLines(prog)
	out, err := ir.Encode(prog)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare canonicalizes both inputs and compares them as strings. Parse
// failures name the offending side.
func Compare(a, b []byte) (*Comparison, error) {
	ca, err := Canonicalize(a)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the first IR JSON: %w", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the second IR JSON: %w", err)
	}
	return &Comparison{Equal: ca == cb, A: ca, B: cb}, nil
}

// PrettyDiff renders a diff of the two canonical forms, with semantic cleanup
// applied so that a changed word shows as one whole deletion and insertion.
func (c *Comparison) PrettyDiff() string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(c.A, c.B, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
