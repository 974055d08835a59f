// Package runner executes a program's registered test cases and compares
// transcripts and error messages against the recorded expectations.
package runner

import (
	"fmt"
	"strings"

	"github.com/piarun/maroon/pkg/interp"
	"github.com/piarun/maroon/pkg/ir"
)

// Result is the outcome of one registered test case.
type Result struct {
	Case   ir.TestCase
	Name   string
	Pass   bool
	Detail string
}

// RunAll executes every registered test case in order.
func RunAll(prog *ir.Program) []Result {
	results := make([]Result, 0, len(prog.Tests))
	for _, tc := range prog.Tests {
		results = append(results, runCase(prog, tc))
	}
	return results
}

// Failed counts the failing results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func runCase(prog *ir.Program, tc ir.TestCase) Result {
	switch tc := tc.(type) {
	case *ir.TestRunFiber:
		return runFiberCase(prog, tc)
	case *ir.TestFiberShouldThrow:
		return shouldThrowCase(prog, tc)
	}
	return Result{Case: tc, Name: "unknown", Detail: fmt.Sprintf("unknown test case kind %T", tc)}
}

func runFiberCase(prog *ir.Program, tc *ir.TestRunFiber) Result {
	r := Result{Case: tc, Name: fmt.Sprintf("run %s.%s", tc.Maroon, tc.Fiber)}
	transcript, err := interp.Run(prog, tc.Maroon, tc.Fiber)
	if err != nil {
		r.Detail = fmt.Sprintf("unexpected error: %v", err)
		return r
	}
	expected := golden(tc.GoldenOutput)
	if transcript != expected {
		r.Detail = fmt.Sprintf("transcript mismatch:\n--- want ---\n%s--- have ---\n%s", expected, transcript)
		return r
	}
	r.Pass = true
	return r
}

func shouldThrowCase(prog *ir.Program, tc *ir.TestFiberShouldThrow) Result {
	r := Result{Case: tc, Name: fmt.Sprintf("throw %s.%s", tc.Maroon, tc.Fiber)}
	transcript, err := interp.Run(prog, tc.Maroon, tc.Fiber)
	if err == nil {
		r.Detail = fmt.Sprintf("expected error %q, run succeeded with transcript %q", tc.Error, transcript)
		return r
	}
	if err.Error() != tc.Error {
		r.Detail = fmt.Sprintf("error mismatch:\n--- want ---\n%s\n--- have ---\n%s", tc.Error, err.Error())
		return r
	}
	r.Pass = true
	return r
}

func golden(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
