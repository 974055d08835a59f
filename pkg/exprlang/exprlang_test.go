package exprlang

import "testing"

func TestParseDebugString(t *testing.T) {
	st, err := ParseStatement(`DEBUG("hi")`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call := st.Expr.Left.Left.Left.Call
	if call == nil || call.Name != "DEBUG" || len(call.Args) != 1 {
		t.Fatalf("unexpected shape %#v", st)
	}
	lit := call.Args[0].Left.Left.Left.Str
	if lit == nil || *lit != "hi" {
		t.Fatalf("string literal not unquoted: %#v", lit)
	}
}

func TestParseComparison(t *testing.T) {
	e, err := ParseExpression("a < b")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if e.Op != "<" || e.Right == nil {
		t.Fatalf("comparison not recognized: %#v", e)
	}
}

func TestParseSumChain(t *testing.T) {
	e, err := ParseExpression("a + b - 1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(e.Left.Rest) != 2 {
		t.Fatalf("want 2 sum tails, got %d", len(e.Left.Rest))
	}
	if e.Left.Rest[0].Op != "+" || e.Left.Rest[1].Op != "-" {
		t.Fatalf("operators %q %q", e.Left.Rest[0].Op, e.Left.Rest[1].Op)
	}
}

func TestParsePrecedence(t *testing.T) {
	e, err := ParseExpression("1 + 2 * 3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// The multiplication must bind under the addition's second term.
	if len(e.Left.Rest) != 1 || len(e.Left.Rest[0].Term.Rest) != 1 {
		t.Fatalf("precedence shape wrong: %#v", e.Left)
	}
}

func TestParseCallWithPackedArgs(t *testing.T) {
	st, err := ParseStatement("CALL(r, add, (U64(2), U64(3)))")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call := st.Expr.Left.Left.Left.Call
	if call == nil || call.Name != "CALL" || len(call.Args) != 3 {
		t.Fatalf("unexpected call shape: %#v", call)
	}
	group := call.Args[2].Left.Left.Left.Group
	if group == nil || len(group.Items) != 2 {
		t.Fatalf("packed args not grouped: %#v", group)
	}
}

func TestParseEmptyPack(t *testing.T) {
	st, err := ParseStatement("CALL(f, ())")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call := st.Expr.Left.Left.Left.Call
	group := call.Args[1].Left.Left.Left.Group
	if group == nil || len(group.Items) != 0 {
		t.Fatalf("empty pack not parsed: %#v", group)
	}
}

func TestParseAssignments(t *testing.T) {
	for _, op := range []string{"=", "+=", "-=", "*="} {
		st, err := ParseStatement("x " + op + " 1")
		if err != nil {
			t.Fatalf("parse of %q failed: %v", op, err)
		}
		if st.Assign == nil || st.Assign.Op != op || st.Assign.Target != "x" {
			t.Fatalf("assignment %q misparsed: %#v", op, st)
		}
	}
}

func TestRawKeepsSourceText(t *testing.T) {
	src := "DEBUG_EXPR(a + b)"
	st, err := ParseStatement(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	call := st.Expr.Left.Left.Left.Call
	if got := call.Args[0].Raw(src); got != "a + b" {
		t.Fatalf("Raw = %q, want %q", got, "a + b")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseStatement("1 ++"); err == nil {
		t.Fatalf("garbage accepted")
	}
}
