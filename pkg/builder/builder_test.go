package builder

import (
	"bytes"
	"strings"
	"testing"

	"github.com/piarun/maroon/pkg/ir"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}
}

func buildDemo(t *testing.T) *ir.Program {
	t.Helper()
	b := New()
	must(t, b.Source("demo.mrn"))
	must(t, b.BeginNamespace("demo", 1))

	must(t, b.BeginType("Point", 2))
	must(t, b.Field("x", "U64", 3))
	must(t, b.Field("y", "OPTIONAL<U64>", 4))
	must(t, b.EndType())

	must(t, b.BeginEnum("Shape", 5))
	must(t, b.Case("dot", "Point", 6))
	must(t, b.Case("size", "U64", 7))
	must(t, b.EndEnum())

	must(t, b.BeginFiber("global", 8))
	must(t, b.BeginFunction("main", nil, 9))
	must(t, b.Var("a", "U64", "2", 10))
	must(t, b.Var("x", "OPTIONAL<U64>", "U64(7)", 11))
	must(t, b.Stmt(`DEBUG("start")`, 12))

	must(t, b.BeginBlock(13))
	must(t, b.Var("tmp", "U64", "(a + 1)", 14))
	must(t, b.Stmt("DEBUG_EXPR(tmp)", 15))
	must(t, b.EndBlock())

	must(t, b.BeginIf("a < 3", 16))
	must(t, b.Stmt(`DEBUG("lt")`, 16))
	must(t, b.Else())
	must(t, b.Stmt(`DEBUG("ge")`, 16))
	must(t, b.EndIf())

	must(t, b.BeginMatch("x", 17))
	must(t, b.BeginArm("U64", "v", 18))
	must(t, b.Stmt("DEBUG_EXPR(v)", 18))
	must(t, b.EndArm())
	must(t, b.BeginDefaultArm(19))
	must(t, b.Stmt(`DEBUG("none")`, 19))
	must(t, b.EndArm())
	must(t, b.EndMatch())

	must(t, b.Stmt("RETURN()", 20))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())
	must(t, b.TestFiber("demo", "global", []string{"start"}, 21))

	prog, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	return prog
}

func TestBuildProducesValidProgram(t *testing.T) {
	prog := buildDemo(t)
	if err := ir.Validate(prog); err != nil {
		t.Fatalf("built program fails validation: %v", err)
	}
}

func TestNestedBlockIsSplicedOverPlaceholder(t *testing.T) {
	prog := buildDemo(t)
	body := prog.Maroon["demo"].Fibers["global"].Functions["main"].Body
	if len(body.Code) != 5 {
		t.Fatalf("want 5 top-level units, got %d", len(body.Code))
	}
	blk, ok := body.Code[1].(*ir.Block)
	if !ok {
		t.Fatalf("second unit is %T, want a spliced block", body.Code[1])
	}
	if blk.Line != 13 {
		t.Fatalf("spliced block did not inherit the opening line: %d", blk.Line)
	}
	v, ok := blk.Vars[0].(*ir.VarRegular)
	if !ok || v.Init != "a + 1" {
		t.Fatalf("outer parens not stripped from initializer: %#v", blk.Vars[0])
	}
}

func TestIfPackagesBranchesElseFirst(t *testing.T) {
	prog := buildDemo(t)
	body := prog.Maroon["demo"].Fibers["global"].Functions["main"].Body
	ifStmt, ok := body.Code[2].(*ir.If)
	if !ok {
		t.Fatalf("third unit is %T, want an if", body.Code[2])
	}
	yes, ok := ifStmt.Yes.(*ir.Stmt)
	if !ok || !strings.Contains(yes.Stmt, "lt") {
		t.Fatalf("then-branch wrong: %#v", ifStmt.Yes)
	}
	no, ok := ifStmt.No.(*ir.Stmt)
	if !ok || !strings.Contains(no.Stmt, "ge") {
		t.Fatalf("else-branch wrong: %#v", ifStmt.No)
	}
}

func TestMatchArmsCarryCaptureAlias(t *testing.T) {
	prog := buildDemo(t)
	body := prog.Maroon["demo"].Fibers["global"].Functions["main"].Body
	match, ok := body.Code[3].(*ir.MatchEnum)
	if !ok {
		t.Fatalf("fourth unit is %T, want a match", body.Code[3])
	}
	if match.Var != "x" || len(match.Arms) != 2 {
		t.Fatalf("match shape wrong: %#v", match)
	}
	keyed := match.Arms[0]
	if keyed.Key == nil || *keyed.Key != "U64" || keyed.Capture == nil || *keyed.Capture != "v" {
		t.Fatalf("keyed arm wrong: %#v", keyed)
	}
	alias, ok := keyed.Code.Vars[len(keyed.Code.Vars)-1].(*ir.VarEnumCaseCapture)
	if !ok {
		t.Fatalf("capturing arm has no alias var")
	}
	if alias.Src != "x" || alias.Key != "U64" || alias.Name != "v" {
		t.Fatalf("alias not pointed at the discriminant: %#v", alias)
	}
	if match.Arms[1].Key != nil || match.Arms[1].Capture != nil {
		t.Fatalf("default arm carries key or capture: %#v", match.Arms[1])
	}
}

func TestOptionalTypesAreSynthesized(t *testing.T) {
	prog := buildDemo(t)
	decl, ok := prog.Maroon["demo"].Types["OPTIONAL_U64"]
	if !ok {
		t.Fatalf("OPTIONAL_U64 was not synthesized")
	}
	def, ok := decl.Def.(*ir.TypeDefOptional)
	if !ok || def.Type != "U64" {
		t.Fatalf("synthesized declaration wrong: %#v", decl.Def)
	}
	// First use was the struct field on line 4.
	if decl.Line != 4 {
		t.Fatalf("synthesized declaration line = %d, want 4", decl.Line)
	}
	point := prog.Maroon["demo"].Types["Point"].Def.(*ir.TypeDefStruct)
	if point.Fields[1].Type != "OPTIONAL_U64" {
		t.Fatalf("spelled OPTIONAL<U64> not rewritten: %q", point.Fields[1].Type)
	}
}

func TestBuildTwiceIsByteIdentical(t *testing.T) {
	first, err := ir.Encode(buildDemo(t))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	second, err := ir.Encode(buildDemo(t))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("two builds of the same event stream differ")
	}
}

func TestDuplicateNamespaceIsFatal(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.EndNamespace())
	if err := b.BeginNamespace("demo", 2); err == nil {
		t.Fatalf("duplicate namespace accepted")
	}
	if b.Err() == nil {
		t.Fatalf("builder is not poisoned after a fatal event")
	}
}

func TestPoisonedBuilderIgnoresLaterEvents(t *testing.T) {
	b := New()
	if err := b.BeginFiber("global", 1); err == nil {
		t.Fatalf("fiber outside a namespace accepted")
	}
	if err := b.BeginNamespace("demo", 2); err == nil {
		t.Fatalf("poisoned builder accepted a new event")
	}
	if _, err := b.Finalize(); err == nil {
		t.Fatalf("poisoned builder finalized")
	}
}

func TestScopeViolations(t *testing.T) {
	cases := []struct {
		name  string
		build func(b *Builder) error
	}{
		{"type outside namespace", func(b *Builder) error { return b.BeginType("T", 1) }},
		{"enum outside namespace", func(b *Builder) error { return b.BeginEnum("E", 1) }},
		{"field outside type", func(b *Builder) error { return b.Field("x", "U64", 1) }},
		{"stmt outside function", func(b *Builder) error { return b.Stmt("RETURN()", 1) }},
		{"var outside function", func(b *Builder) error { return b.Var("x", "U64", "0", 1) }},
		{"block outside function", func(b *Builder) error { return b.BeginBlock(1) }},
		{"arm outside match", func(b *Builder) error { return b.BeginDefaultArm(1) }},
	}
	for _, c := range cases {
		if err := c.build(New()); err == nil {
			t.Errorf("%s accepted", c.name)
		}
	}
}

func TestCaseInsideStructIsFatal(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginType("Point", 2))
	if err := b.Case("dot", "U64", 3); err == nil {
		t.Fatalf("case inside a struct accepted")
	}
}

func TestUnbalancedBlockCloseIsFatal(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginFiber("global", 2))
	must(t, b.BeginFunction("main", nil, 3))
	if err := b.EndBlock(); err == nil {
		t.Fatalf("block close without open accepted")
	}
}

func TestUnclosedBlockAtFunctionEndIsFatal(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginFiber("global", 2))
	must(t, b.BeginFunction("main", nil, 3))
	must(t, b.BeginBlock(4))
	if err := b.EndFunction(); err == nil {
		t.Fatalf("function closed over an open block")
	}
}

func TestThenBranchMustEmitExactlyOneUnit(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginFiber("global", 2))
	must(t, b.BeginFunction("main", nil, 3))
	must(t, b.BeginIf("true", 4))
	must(t, b.Stmt(`DEBUG("one")`, 5))
	must(t, b.Stmt(`DEBUG("two")`, 6))
	if err := b.Else(); err == nil {
		t.Fatalf("two-unit then-branch accepted")
	}
}

func TestFinalizeTwiceIsFatal(t *testing.T) {
	b := New()
	if _, err := b.Finalize(); err != nil {
		t.Fatalf("first finalize failed: %v", err)
	}
	if _, err := b.Finalize(); err == nil {
		t.Fatalf("second finalize accepted")
	}
}

func TestUserDeclaredOptionalCollisionIsFatal(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginType("OPTIONAL_U64", 2))
	must(t, b.EndType())
	must(t, b.BeginFiber("global", 3))
	must(t, b.BeginFunction("main", nil, 4))
	must(t, b.Var("x", "OPTIONAL<U64>", "NONE", 5))
	must(t, b.Stmt("RETURN()", 6))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())
	if _, err := b.Finalize(); err == nil {
		t.Fatalf("collision with a user-declared OPTIONAL_U64 accepted")
	}
}

func TestNoPlaceholdersSurviveDeepNesting(t *testing.T) {
	b := New()
	must(t, b.BeginNamespace("demo", 1))
	must(t, b.BeginFiber("global", 2))
	must(t, b.BeginFunction("main", nil, 3))
	must(t, b.BeginBlock(4))
	must(t, b.BeginBlock(5))
	must(t, b.BeginBlock(6))
	must(t, b.Stmt(`DEBUG("deep")`, 7))
	must(t, b.EndBlock())
	must(t, b.EndBlock())
	must(t, b.EndBlock())
	must(t, b.Stmt("RETURN()", 8))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())
	prog, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if err := ir.Validate(prog); err != nil {
		t.Fatalf("placeholders survived: %v", err)
	}
	data, err := ir.Encode(prog)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if bytes.Contains(data, []byte("Placeholder")) {
		t.Fatalf("serialized form mentions placeholders:\n%s", data)
	}
}
