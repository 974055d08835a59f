package runner

import (
	"strings"
	"testing"

	"github.com/piarun/maroon/pkg/builder"
	"github.com/piarun/maroon/pkg/ir"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}
}

func registryProgram(t *testing.T) *ir.Program {
	t.Helper()
	b := builder.New()
	must(t, b.Source("registry.mrn"))
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginFiber("global", 2))
	must(t, b.BeginFunction("main", nil, 3))
	must(t, b.Stmt(`DEBUG("one")`, 4))
	must(t, b.Stmt(`DEBUG("two")`, 5))
	must(t, b.Stmt("RETURN()", 6))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())

	must(t, b.BeginNamespace("broken", 7))
	must(t, b.BeginFiber("global", 8))
	must(t, b.BeginFunction("main", nil, 9))
	must(t, b.Var("flag", "BOOL", "true", 10))
	must(t, b.Stmt("DEBUG_EXPR(flag + 1)", 11))
	must(t, b.Stmt("RETURN()", 12))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())

	must(t, b.TestFiber("demo", "global", []string{"one", "two"}, 13))
	must(t, b.TestFiberShouldThrow("broken", "global",
		"Attempted to use `flag` of type `BOOL` as `U64`.", 14))

	prog, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	return prog
}

func TestRegisteredExpectationsPass(t *testing.T) {
	results := RunAll(registryProgram(t))
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Pass {
			t.Errorf("%s failed: %s", r.Name, r.Detail)
		}
	}
	if Failed(results) != 0 {
		t.Fatalf("Failed miscounts")
	}
}

func TestTranscriptMismatchFails(t *testing.T) {
	prog := registryProgram(t)
	prog.Tests = ir.TestList{
		&ir.TestRunFiber{Line: 1, Maroon: "demo", Fiber: "global", GoldenOutput: []string{"one"}},
	}
	results := RunAll(prog)
	if results[0].Pass {
		t.Fatalf("mismatching transcript passed")
	}
	if !strings.Contains(results[0].Detail, "transcript mismatch") {
		t.Fatalf("detail %q", results[0].Detail)
	}
}

func TestErrorMismatchFails(t *testing.T) {
	prog := registryProgram(t)
	prog.Tests = ir.TestList{
		&ir.TestFiberShouldThrow{Line: 1, Maroon: "broken", Fiber: "global", Error: "some other error"},
	}
	results := RunAll(prog)
	if results[0].Pass {
		t.Fatalf("mismatching error passed")
	}
}

func TestUnexpectedSuccessFails(t *testing.T) {
	prog := registryProgram(t)
	prog.Tests = ir.TestList{
		&ir.TestFiberShouldThrow{Line: 1, Maroon: "demo", Fiber: "global", Error: "whatever"},
	}
	results := RunAll(prog)
	if results[0].Pass {
		t.Fatalf("successful run satisfied a throw expectation")
	}
}
