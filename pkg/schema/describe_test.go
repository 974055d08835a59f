package schema

import (
	"strings"
	"testing"
)

func TestWalkCoversEveryNodeType(t *testing.T) {
	m := Walk()
	names := make(map[string]bool)
	for _, s := range m.Structs {
		names[s.Name] = true
	}
	for _, want := range []string{
		"MaroonIRScenarios", "MaroonIRNamespace", "MaroonIRFiber", "MaroonIRFunction",
		"MaroonIRBlock", "MaroonIRStmt", "MaroonIRIf", "MaroonIRMatchEnumStmt",
		"MaroonIRMatchEnumStmtArm", "MaroonIRBlockPlaceholder",
		"MaroonIRVarRegular", "MaroonIRVarFunctionArg", "MaroonIRVarEnumCaseCapture",
		"MaroonIRType", "MaroonIRTypeDefStruct", "MaroonIRTypeDefEnum", "MaroonIRTypeDefOptional",
		"MaroonTestCaseRunFiber", "MaroonTestCaseFiberShouldThrow",
	} {
		if !names[want] {
			t.Errorf("walk missed %s", want)
		}
	}
	if len(m.Variants) != 4 {
		t.Fatalf("want 4 variants, got %d", len(m.Variants))
	}
}

func TestWalkIsDeterministic(t *testing.T) {
	a, b := Markdown(Walk()), Markdown(Walk())
	if a != b {
		t.Fatalf("two walks render differently")
	}
}

func TestFingerprintIsStable(t *testing.T) {
	a, b := Fingerprint(Walk()), Fingerprint(Walk())
	if a == "" || a == "unavailable" {
		t.Fatalf("fingerprint unavailable")
	}
	if a != b {
		t.Fatalf("fingerprint is unstable: %q vs %q", a, b)
	}
}

func TestMarkdownShape(t *testing.T) {
	md := Markdown(Walk())
	for _, want := range []string{
		"# Maroon IR schema",
		"## `MaroonIRStmtOrBlock` (one of)",
		"| `golden_output` | `Vec<String>` |",
		"| `maroon` | `BTreeMap<String, MaroonIRNamespace>` |",
		"| `ret` | `Option<String>` |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRustShape(t *testing.T) {
	rs := Rust(Walk())
	for _, want := range []string{
		"pub struct MaroonIRScenarios {",
		"pub maroon: BTreeMap<String, MaroonIRNamespace>,",
		"pub enum MaroonIRStmtOrBlock {",
		"MaroonIRIf(MaroonIRIf),",
		"pub yes: Box<MaroonIRStmtOrBlock>,",
		"pub def: Box<MaroonIRTypeDef>,",
		"pub r#type: String,",
		"pub ret: Option<String>,",
	} {
		if !strings.Contains(rs, want) {
			t.Errorf("rust source missing %q", want)
		}
	}
}
